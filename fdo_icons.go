package appcache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"
)

const fallbackTheme = "hicolor"

const iconExtensions = "{png,svg,xpm}"

type fdoIconLookup struct {
	theme    string
	iconDirs []string
	pixmaps  []string
}

// NewFDOIconLookup returns an icon lookup over the installed FreeDesktop icon themes.
// The named theme is searched first, then hicolor, then any other theme, then the pixmaps directories.
func NewFDOIconLookup(theme string) IconLookup {
	iconDirs := []string{
		filepath.Join(xdg.Home, ".icons"),
		filepath.Join(xdg.DataHome, "icons"),
	}
	var pixmaps []string
	for _, dir := range xdg.DataDirs {
		iconDirs = append(iconDirs, filepath.Join(dir, "icons"))
		pixmaps = append(pixmaps, filepath.Join(dir, "pixmaps"))
	}
	if !slices.Contains(pixmaps, "/usr/share/pixmaps") {
		pixmaps = append(pixmaps, "/usr/share/pixmaps")
	}

	return &fdoIconLookup{theme: theme, iconDirs: iconDirs, pixmaps: pixmaps}
}

// Lookup finds the icon file for name, preferring the exact size, then scalable, then the closest size.
func (l *fdoIconLookup) Lookup(name string, size int) (string, bool) {
	if name == "" {
		return "", false
	}
	if filepath.IsAbs(name) {
		return name, fileExists(name)
	}
	if strings.ContainsAny(name, `/\*?[]{}`) {
		return "", false
	}

	for _, theme := range l.themes() {
		if path, ok := l.lookupInTheme(theme, name, size); ok {
			return path, true
		}
	}
	for _, dir := range l.pixmaps {
		for _, ext := range []string{".png", ".svg", ".xpm"} {
			if path := filepath.Join(dir, name+ext); fileExists(path) {
				return path, true
			}
		}
	}
	return "", false
}

// themes lists theme names in search order.
func (l *fdoIconLookup) themes() []string {
	var themes []string
	if l.theme != "" && l.theme != fallbackTheme {
		themes = append(themes, l.theme)
	}
	themes = append(themes, fallbackTheme)

	for _, dir := range l.iconDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && !slices.Contains(themes, e.Name()) {
				themes = append(themes, e.Name())
			}
		}
	}
	return themes
}

func (l *fdoIconLookup) lookupInTheme(theme, name string, size int) (string, bool) {
	exact := []string{
		fmt.Sprintf("%dx%d/*/%s.%s", size, size, name, iconExtensions),
		fmt.Sprintf("*/%dx%d/%s.%s", size, size, name, iconExtensions),
		fmt.Sprintf("%d/*/%s.%s", size, name, iconExtensions),
		fmt.Sprintf("*/%d/%s.%s", size, name, iconExtensions),
	}
	patterns := append(exact,
		"scalable/*/"+name+".svg",
		"*/scalable/"+name+".svg",
	)

	for _, dir := range l.iconDirs {
		root := filepath.Join(dir, theme)
		if !dirExists(root) {
			continue
		}
		fsys := os.DirFS(root)

		for _, pattern := range patterns {
			if match := firstMatch(fsys, pattern); match != "" {
				return filepath.Join(root, filepath.FromSlash(match)), true
			}
		}

		matches, _ := doublestar.Glob(fsys, "**/"+name+"."+iconExtensions)
		if best := closestSize(matches, size); best != "" {
			return filepath.Join(root, filepath.FromSlash(best)), true
		}
	}
	return "", false
}

func firstMatch(fsys fs.FS, pattern string) string {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	slices.Sort(matches)
	return matches[0]
}

// closestSize picks the match whose size directory is nearest to size.
func closestSize(matches []string, size int) string {
	best, bestDist := "", -1
	slices.Sort(matches)
	for _, m := range matches {
		dist := size
		if s, ok := iconDirSize(m); ok {
			dist = max(s-size, size-s)
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = m, dist
		}
	}
	return best
}

// iconDirSize finds the size in a theme relative path like "apps/32x32/x.png" or "32x32@2/apps/x.png".
func iconDirSize(rel string) (int, bool) {
	for _, part := range strings.Split(rel, "/") {
		part, _, _ = strings.Cut(part, "@")
		part, _, _ = strings.Cut(part, "x")
		if n, err := strconv.Atoi(part); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

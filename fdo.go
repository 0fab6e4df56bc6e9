package appcache

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

const desktopEntryGroup = "[Desktop Entry]"

type fdoLoader struct {
	dirs     []string
	desktops []string
	langs    []string
	log      *zap.Logger
}

// NewFDOLoader returns a loader reading FreeDesktop desktop entries from the XDG application
// directories. Any extra directories are searched first. A nil logger discards problems.
func NewFDOLoader(log *zap.Logger, extraDirs ...string) Loader {
	return &fdoLoader{
		dirs:     applicationDirs(extraDirs),
		desktops: currentDesktops(),
		langs:    localeNames(),
		log:      orNop(log),
	}
}

// applicationDirs lists extra first, then the XDG data home and data dirs, each with "applications" appended.
func applicationDirs(extra []string) []string {
	dirs := slices.Clone(extra)
	for _, dir := range append([]string{xdg.DataHome}, xdg.DataDirs...) {
		dirs = append(dirs, filepath.Join(dir, "applications"))
	}
	return dirs
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func currentDesktops() []string {
	env := os.Getenv("XDG_CURRENT_DESKTOP")
	if env == "" {
		return nil
	}
	return strings.Split(env, ":")
}

// localeNames returns the locale keys to try for "Name[...]", most specific first.
func localeNames() []string {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LC_MESSAGES")
	}
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" || lang == "C" || lang == "POSIX" {
		return nil
	}

	names := []string{lang}
	if i := strings.Index(lang, "_"); i > 0 {
		names = append(names, lang[:i])
	}
	return names
}

// AvailableApps lists the visible applications, sorted by title.
// A desktop file id found in an earlier directory hides the same id in later ones.
func (l *fdoLoader) AvailableApps() []App {
	seen := make(map[string]bool)
	var apps []App
	for _, dir := range l.dirs {
		for _, file := range desktopFiles(dir, l.log) {
			if seen[file.id] {
				continue
			}
			seen[file.id] = true

			entry, err := parseDesktopFile(file.path)
			if err != nil {
				l.log.Warn("could not read desktop file", zap.String("path", file.path), zap.Error(err))
				continue
			}
			if app, ok := entry.app(file.id, l.desktops, l.langs); ok {
				apps = append(apps, app)
			}
		}
	}

	slices.SortFunc(apps, func(a, b App) int {
		return strings.Compare(a.Title, b.Title)
	})
	return apps
}

type desktopFile struct {
	id, path string
}

// desktopFiles finds the desktop entries below root and derives their desktop file ids.
func desktopFiles(root string, log *zap.Logger) []desktopFile {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil
	}

	var (
		lock  sync.Mutex
		files []desktopFile
	)
	conf := fastwalk.Config{Follow: true}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".desktop") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		id := strings.ReplaceAll(strings.TrimSuffix(rel, ".desktop"), string(filepath.Separator), "-")

		lock.Lock()
		files = append(files, desktopFile{id: id, path: path})
		lock.Unlock()
		return nil
	})
	if err != nil {
		log.Warn("could not list applications", zap.String("dir", root), zap.Error(err))
	}

	slices.SortFunc(files, func(a, b desktopFile) int {
		return strings.Compare(a.id, b.id)
	})
	return files
}

type desktopEntry struct {
	values map[string]string
}

func parseDesktopFile(path string) (*desktopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entry := &desktopEntry{values: make(map[string]string)}
	inEntry := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '[' {
			inEntry = line == desktopEntryGroup
			continue
		}
		if !inEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		entry.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return entry, scanner.Err()
}

func (e *desktopEntry) bool(key string) bool {
	return strings.EqualFold(e.values[key], "true")
}

func (e *desktopEntry) list(key string) []string {
	var items []string
	for _, item := range strings.Split(e.values[key], ";") {
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (e *desktopEntry) localized(key string, langs []string) string {
	for _, lang := range langs {
		if v := e.values[key+"["+lang+"]"]; v != "" {
			return v
		}
	}
	return e.values[key]
}

// visible applies NoDisplay, Hidden and the OnlyShowIn/NotShowIn desktop filters.
func (e *desktopEntry) visible(desktops []string) bool {
	if typ := e.values["Type"]; typ != "" && typ != "Application" {
		return false
	}
	if e.bool("NoDisplay") || e.bool("Hidden") {
		return false
	}
	if len(desktops) == 0 {
		return true
	}

	if only := e.list("OnlyShowIn"); len(only) > 0 && !overlaps(only, desktops) {
		return false
	}
	return !overlaps(e.list("NotShowIn"), desktops)
}

func overlaps(a, b []string) bool {
	for _, item := range a {
		if slices.Contains(b, item) {
			return true
		}
	}
	return false
}

// app converts a visible entry with a name and command.
func (e *desktopEntry) app(id string, desktops, langs []string) (App, bool) {
	if !e.visible(desktops) {
		return App{}, false
	}
	title := e.localized("Name", langs)
	exec := e.values["Exec"]
	if title == "" || exec == "" {
		return App{}, false
	}

	app := NewApp(id, title, exec, e.values["Icon"])
	if filepath.IsAbs(app.IconName) {
		app.Icon = ResolvedIcon(app.IconName)
	}
	return app, true
}

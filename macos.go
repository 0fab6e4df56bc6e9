package appcache

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
	"howett.net/plist"
)

type macOSLoader struct {
	rootDirs []string
	log      *zap.Logger
}

type bundleInfo struct {
	Name        string `plist:"CFBundleName"`
	DisplayName string `plist:"CFBundleDisplayName"`
	ID          string `plist:"CFBundleIdentifier"`
	Executable  string `plist:"CFBundleExecutable"`
	IconFile    string `plist:"CFBundleIconFile"`
}

// NewMacOSLoader returns a loader listing the app bundles in the standard macOS locations.
// Any extra directories are searched first. A nil logger discards problems.
func NewMacOSLoader(log *zap.Logger, extraDirs ...string) Loader {
	dirs := slices.Clone(extraDirs)
	dirs = append(dirs, "/Applications", "/Applications/Utilities",
		"/System/Applications", "/System/Applications/Utilities",
		filepath.Join(xdg.Home, "Applications"))
	return &macOSLoader{rootDirs: dirs, log: orNop(log)}
}

func (m *macOSLoader) AvailableApps() []App {
	seen := make(map[string]bool)
	var apps []App
	for _, root := range m.rootDirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".app") {
				continue
			}
			app, ok := loadAppBundle(strings.TrimSuffix(e.Name(), ".app"), filepath.Join(root, e.Name()), m.log)
			if !ok || seen[app.ID] {
				continue
			}
			seen[app.ID] = true
			apps = append(apps, app)
		}
	}

	slices.SortFunc(apps, func(a, b App) int {
		return strings.Compare(a.Title, b.Title)
	})
	return apps
}

func loadAppBundle(name, path string, log *zap.Logger) (App, bool) {
	f, err := os.Open(filepath.Join(path, "Contents", "Info.plist"))
	if err != nil {
		log.Warn("could not open bundle info", zap.String("bundle", name), zap.Error(err))
		return App{}, false
	}
	defer f.Close()

	var info bundleInfo
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		log.Warn("could not parse bundle info", zap.String("bundle", name), zap.Error(err))
		return App{}, false
	}

	title := info.DisplayName
	if title == "" {
		title = info.Name
	}
	if title == "" {
		title = name
	}
	id := info.ID
	if id == "" {
		id = name
	}

	app := NewApp(id, title, `open -a "`+strings.ReplaceAll(path, `"`, `\"`)+`"`, "")
	if icon := info.IconFile; icon != "" {
		if filepath.Ext(icon) == "" {
			icon += ".icns"
		}
		if iconPath := filepath.Join(path, "Contents", "Resources", icon); fileExists(iconPath) {
			app.Icon = ResolvedIcon(iconPath)
		}
	}
	return app, true
}

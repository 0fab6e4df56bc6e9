package appcache

import (
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// App is a launchable application as presented to the launcher UI
type App struct {
	ID         string // ID is the stable identity used to match apps across snapshots
	Title      string // Title is the display name
	LowerTitle string // LowerTitle is Title lowercased, used for filter matching
	Exec       string // Exec is the launch command line, empty if unknown
	ExecCount  uint64 // ExecCount is the number of recorded launches
	IconName   string // IconName is the symbolic theme icon name, empty if unset
	Icon       IconPath

	Handle IconHandle // Handle is the render form of the icon, it is never persisted
}

// NewApp returns an App with the lowercase title filled in.
func NewApp(id, title, exec, iconName string) App {
	return App{
		ID:         id,
		Title:      title,
		LowerTitle: strings.ToLower(title),
		Exec:       exec,
		IconName:   iconName,
	}
}

// IconState records how far icon resolution has progressed for an app.
type IconState uint8

const (
	// IconUnresolved means no lookup has happened yet
	IconUnresolved IconState = iota
	// IconKnownAbsent means a lookup happened and found nothing, it will not be retried
	IconKnownAbsent
	// IconResolved means Path points at the icon asset
	IconResolved
)

// IconPath is the resolution state of an app icon along with the file it resolved to.
type IconPath struct {
	State IconState
	Path  string
}

// ResolvedIcon returns an IconPath pointing at the given file.
func ResolvedIcon(path string) IconPath {
	return IconPath{State: IconResolved, Path: path}
}

// KnownAbsentIcon returns the IconPath recorded after a failed lookup.
func KnownAbsentIcon() IconPath {
	return IconPath{State: IconKnownAbsent}
}

// Loader describes a type that can list the applications installed on the current system
type Loader interface {
	AvailableApps() []App
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func() []App

// AvailableApps calls f.
func (f LoaderFunc) AvailableApps() []App {
	return f()
}

// Launcher starts an application.
type Launcher interface {
	Launch(App) error
}

// IconLookup finds the best matching icon file for a theme icon name at the requested pixel size.
// It returns false if no icon could be found.
// The cache never calls Lookup concurrently.
type IconLookup interface {
	Lookup(name string, size int) (string, bool)
}

// SystemLoader returns an application loader for the current system.
// for macOS systems it will read app bundles, for Linux/Unix it will read FreeDesktop entries.
// Unreadable entries are reported to log, which may be nil.
func SystemLoader(log *zap.Logger, extraDirs ...string) Loader {
	switch runtime.GOOS {
	case "darwin":
		return NewMacOSLoader(log, extraDirs...)
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return NewFDOLoader(log, extraDirs...)
	}

	return LoaderFunc(func() []App { return nil })
}

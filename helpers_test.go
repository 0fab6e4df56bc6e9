package appcache

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingLookup is an IconLookup answering from a fixed map and counting calls.
type countingLookup struct {
	paths map[string]string
	calls atomic.Int32
}

func (l *countingLookup) Lookup(name string, _ int) (string, bool) {
	l.calls.Add(1)
	path, ok := l.paths[name]
	return path, ok
}

// testLoader returns a settable list of apps and counts calls.
type testLoader struct {
	lock  sync.Mutex
	apps  []App
	calls int
}

func (l *testLoader) AvailableApps() []App {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.calls++
	out := make([]App, len(l.apps))
	copy(out, l.apps)
	return out
}

func (l *testLoader) set(apps ...App) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.apps = apps
}

func (l *testLoader) callCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.calls
}

func openTestCache(t *testing.T, loader Loader, lookup IconLookup) *Cache {
	t.Helper()
	if lookup == nil {
		lookup = &countingLookup{}
	}
	c, err := Open(t.TempDir(), loader, WithIconLookup(lookup))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func makeApp(id, title string, count uint64, icon IconPath) App {
	app := NewApp(id, title, "/bin/true", "")
	app.ExecCount = count
	app.Icon = icon
	return app
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"><rect width="1" height="1" fill="red"/></svg>`

var red = color.NRGBA{R: 255, A: 255}

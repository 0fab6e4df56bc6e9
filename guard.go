package appcache

import "sync"

// Guarded serialises access to a Cache so one instance can be shared by the UI and background work.
// Every Cache operation has a locking counterpart here, Do covers anything else.
type Guarded struct {
	mu    sync.Mutex
	cache *Cache
}

// NewGuarded wraps c. c should not be used directly afterwards.
func NewGuarded(c *Cache) *Guarded {
	return &Guarded{cache: c}
}

// Do runs fn while holding the lock.
func (g *Guarded) Do(fn func(*Cache) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.cache)
}

// IsEmpty locks and calls Cache.IsEmpty.
func (g *Guarded) IsEmpty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.IsEmpty()
}

// ReadAll locks and calls Cache.ReadAll.
func (g *Guarded) ReadAll() ([]App, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.ReadAll()
}

// ReadTop locks and calls Cache.ReadTop.
func (g *Guarded) ReadTop(n int) ([]App, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.ReadTop(n)
}

// Load locks and calls Cache.Load.
func (g *Guarded) Load() []App {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Load()
}

// Refresh locks and calls Cache.Refresh.
func (g *Guarded) Refresh() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Refresh()
}

// Update locks and calls Cache.Update.
func (g *Guarded) Update(selected App) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Update(selected)
}

// StoreSnapshot locks and calls Cache.StoreSnapshot.
func (g *Guarded) StoreSnapshot(apps []App) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.StoreSnapshot(apps)
}

// BuildSnapshotWithIcons locks and calls Cache.BuildSnapshotWithIcons.
func (g *Guarded) BuildSnapshotWithIcons(apps []App) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.BuildSnapshotWithIcons(apps)
}

// Close closes the wrapped cache.
func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Close()
}

package appcache

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Namespace prefixes the cache directory name.
const Namespace = "appcache"

// Version names the on-disk cache directory, changing it starts with a fresh cache.
var Version = "1.2.0"

// Cache is a usage ranked, persistent list of applications and their icons.
// It is not safe for concurrent use, see Guarded.
type Cache struct {
	dir     string
	source  Loader
	store   *store
	icons   *resolver
	log     *zap.Logger
	workers int
}

type options struct {
	log      *zap.Logger
	lookup   IconLookup
	iconSize int
	workers  int
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger used to report degraded operation.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithIconLookup replaces the icon theme lookup.
func WithIconLookup(l IconLookup) Option {
	return func(o *options) {
		o.lookup = l
	}
}

// WithIconSize sets the pixel size requested from the icon theme.
func WithIconSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.iconSize = size
		}
	}
}

// WithWorkers sets how many icons are decoded in parallel while building a snapshot.
// Theme lookups are still made one at a time.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// DefaultDir returns the cache directory for namespace and the current Version.
func DefaultDir(namespace string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, namespace+"-"+Version), nil
}

// New opens the cache in the default location.
func New(source Loader, opts ...Option) (*Cache, error) {
	dir, err := DefaultDir(Namespace)
	if err != nil {
		return nil, fmt.Errorf("locate cache dir: %w", err)
	}
	return Open(dir, source, opts...)
}

// Open opens or creates the cache stored in dir.
// The loader is called whenever the cache is empty or a refresh is requested.
func Open(dir string, source Loader, opts ...Option) (*Cache, error) {
	o := options{
		log:      zap.NewNop(),
		lookup:   NewFDOIconLookup(""),
		iconSize: DefaultIconSize,
		workers:  4,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := openStore(dir)
	if err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		source:  source,
		store:   s,
		icons:   &resolver{lookup: o.lookup, size: o.iconSize, log: o.log},
		log:     o.log,
		workers: o.workers,
	}, nil
}

// Dir returns the directory holding the cache.
func (c *Cache) Dir() string {
	return c.dir
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.store.close()
}

// IsEmpty returns true if no applications are stored.
func (c *Cache) IsEmpty() bool {
	empty, err := c.store.empty()
	if err != nil {
		c.log.Warn("could not inspect cache", zap.Error(err))
		return true
	}
	return empty
}

// ReadAll returns every stored application, most used first.
// An empty cache is filled from the loader first. An error means the stored data could not be read.
func (c *Cache) ReadAll() ([]App, error) {
	return c.read(-1)
}

// ReadTop returns at most n stored applications, most used first.
func (c *Cache) ReadTop(n int) ([]App, error) {
	if n <= 0 {
		return []App{}, nil
	}
	return c.read(n)
}

func (c *Cache) read(limit int) ([]App, error) {
	records, err := c.store.scan(limit)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return appsFromRecords(records), nil
	}

	apps := c.source.AvailableApps()
	if len(apps) == 0 {
		return []App{}, nil
	}
	if err := c.BuildSnapshotWithIcons(apps); err != nil {
		c.log.Warn("could not store first snapshot", zap.Error(err))
		if limit >= 0 && len(apps) > limit {
			apps = apps[:limit]
		}
		return apps, nil
	}

	records, err = c.store.scan(limit)
	if err != nil {
		return nil, err
	}
	return appsFromRecords(records), nil
}

// Load returns the cached applications, asking the loader directly if the cache cannot be read.
// It always returns the best list available.
func (c *Cache) Load() []App {
	apps, err := c.ReadAll()
	if err == nil {
		return apps
	}

	c.log.Warn("cache unreadable, loading applications directly", zap.Error(err))
	apps = c.source.AvailableApps()
	if err := c.BuildSnapshotWithIcons(apps); err != nil {
		c.log.Warn("could not rebuild cache", zap.Error(err))
	}
	return apps
}

// Refresh reloads the application list, keeping usage counts and icons of known apps.
// Apps the loader no longer returns are dropped.
func (c *Cache) Refresh() error {
	return c.updateFromLoader("", false)
}

// Update reloads the application list like Refresh and counts one launch of selected.
func (c *Cache) Update(selected App) error {
	return c.updateFromLoader(selected.ID, true)
}

func (c *Cache) updateFromLoader(selected string, increment bool) error {
	latest := c.source.AvailableApps()
	cached := c.cachedByID()

	merged := make([]record, 0, len(latest))
	for _, app := range dedupe(latest) {
		old, found := cached[app.ID]
		delete(cached, app.ID)

		app.ExecCount = 0
		var prev *record
		if found {
			app.ExecCount = old.ExecCount
			prev = &old
		}
		if increment && app.ID == selected {
			app.ExecCount++
		}
		merged = append(merged, toRecord(app, prev))
	}

	return c.writeSnapshot(merged)
}

// StoreSnapshot stores apps as given, reusing icon data already cached for the same app ids.
func (c *Cache) StoreSnapshot(apps []App) error {
	return c.writeSnapshot(c.snapshotRecords(apps))
}

// BuildSnapshotWithIcons stores apps like StoreSnapshot and resolves icons for any app that has none.
// Apps whose icon cannot be found are stored without one.
func (c *Cache) BuildSnapshotWithIcons(apps []App) error {
	records := c.snapshotRecords(apps)

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range records {
		if records[i].Data != nil {
			continue
		}
		r := &records[i]
		g.Go(func() error {
			c.icons.populate(r)
			return nil
		})
	}
	_ = g.Wait()

	return c.writeSnapshot(records)
}

func (c *Cache) snapshotRecords(apps []App) []record {
	cached := c.cachedByID()
	records := make([]record, 0, len(apps))
	for _, app := range dedupe(apps) {
		var prev *record
		if old, ok := cached[app.ID]; ok {
			prev = &old
		}
		records = append(records, toRecord(app, prev))
	}
	return records
}

// cachedByID returns the stored records keyed by app id, or an empty map if they cannot be read.
func (c *Cache) cachedByID() map[string]record {
	records, err := c.store.scan(-1)
	if err != nil {
		c.log.Warn("ignoring unreadable cache contents", zap.Error(err))
	}

	byID := make(map[string]record, len(records))
	for _, r := range records {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}
	return byID
}

func (c *Cache) writeSnapshot(records []record) error {
	sortRecords(records)
	if err := c.store.replace(records); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// toRecord converts app for storage, carrying icon state over from prev when given.
// An icon path supplied without data is decoded directly, no theme lookup happens here.
func toRecord(app App, prev *record) record {
	r := recordFromApp(app)
	if prev != nil {
		r.carryIcon(*prev)
	}
	if r.Data == nil && r.Icon.State == IconResolved {
		r.Data = iconDataFromPath(r.Icon)
	}
	return r
}

// sortRecords orders by descending use count, then title, then id.
func sortRecords(records []record) {
	slices.SortFunc(records, func(a, b record) int {
		if a.ExecCount != b.ExecCount {
			return cmp.Compare(b.ExecCount, a.ExecCount)
		}
		if a.Title != b.Title {
			return strings.Compare(a.Title, b.Title)
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// dedupe keeps the first app for each id.
func dedupe(apps []App) []App {
	seen := make(map[string]bool, len(apps))
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		if seen[app.ID] {
			continue
		}
		seen[app.ID] = true
		out = append(out, app)
	}
	return out
}

func appsFromRecords(records []record) []App {
	apps := make([]App, len(records))
	for i, r := range records {
		apps[i] = r.app()
	}
	return apps
}

// DeleteCacheDir removes a cache directory and everything in it.
// A directory that does not exist is not an error.
func DeleteCacheDir(dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(dir)
}

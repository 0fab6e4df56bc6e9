package appcache

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultIconSize is the pixel size requested from the icon theme.
const DefaultIconSize = 48

// resolver fills in icon data for records, asking the theme lookup when only a name is known.
// Decoding runs in parallel but lookups are serialised, IconLookup implementations need no locking.
type resolver struct {
	lookupMu sync.Mutex
	lookup   IconLookup
	size     int
	log      *zap.Logger
}

func (res *resolver) find(name string) (string, bool) {
	res.lookupMu.Lock()
	defer res.lookupMu.Unlock()
	return res.lookup.Lookup(name, res.size)
}

// populate loads the icon for r if it has none yet.
// It reports whether r changed and so needs writing back.
func (res *resolver) populate(r *record) bool {
	if r.Data != nil {
		return false
	}

	switch r.Icon.State {
	case IconKnownAbsent:
		return false
	case IconResolved:
		r.Data = iconDataFromPath(r.Icon)
		if r.Data == nil {
			res.log.Debug("icon could not be decoded",
				zap.String("appid", r.ID), zap.String("path", r.Icon.Path))
			return false
		}
		return true
	}

	if r.IconName == "" || res.lookup == nil {
		return false
	}

	path, ok := res.find(r.IconName)
	if !ok {
		res.log.Debug("icon not found in theme",
			zap.String("appid", r.ID), zap.String("icon", r.IconName))
		r.Icon = KnownAbsentIcon()
		return true
	}

	r.Icon = ResolvedIcon(path)
	r.Data = iconDataFromPath(r.Icon)
	if r.Data == nil {
		res.log.Debug("icon could not be decoded",
			zap.String("appid", r.ID), zap.String("path", path))
	}
	return true
}

package bridge

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/hostbridge/script"
)

var log = commonlog.GetLogger("hostbridge.bridge")

// arena holds one domain's tables, indexed by TypeID, along with the
// domain's event selectors so each build skips the name lookups.
type arena struct {
	selectors *eventSelectors
	tables    []*HookTable
}

func (a *arena) get(id script.TypeID) *HookTable {
	if a != nil && int(id) < len(a.tables) {
		return a.tables[id]
	}
	return nil
}

// HookCache maps dynamic types to their hook tables. Each domain gets an
// arena indexed by TypeID, so a hit is a map read and a slice index.
//
// Tables are built at most once per type, even under concurrent first
// access, and are never evicted.
type HookCache struct {
	mu     sync.RWMutex
	arenas map[script.DomainID]*arena
	count  int
	builds atomic.Uint64
}

// NewHookCache creates an empty cache.
func NewHookCache() *HookCache {
	return &HookCache{arenas: make(map[script.DomainID]*arena)}
}

var defaultCache = NewHookCache()

// DefaultCache returns the process-wide cache proxies bind through.
func DefaultCache() *HookCache { return defaultCache }

// GetOrBuild returns the hook table for c, building it on first use.
func (hc *HookCache) GetOrBuild(c *script.Class) *HookTable {
	if t, ok := hc.Lookup(c); ok {
		return t
	}

	d := c.Domain()
	hc.mu.Lock()
	defer hc.mu.Unlock()

	// Another caller may have built it between the two locks.
	a := hc.arenas[d.ID()]
	if t := a.get(c.ID()); t != nil {
		return t
	}
	if a == nil {
		a = &arena{selectors: selectorsFor(d)}
		hc.arenas[d.ID()] = a
	}
	if n := int(c.ID()) + 1; n > len(a.tables) {
		a.tables = append(a.tables, make([]*HookTable, n-len(a.tables))...)
	}

	t := buildHookTable(c, a.selectors)
	a.tables[c.ID()] = t
	hc.count++
	hc.builds.Add(1)

	log.Debugf("hook table for %s built: %v", c.Describe(), t.Present())
	return t
}

// Lookup returns the cached table for c without building one.
func (hc *HookCache) Lookup(c *script.Class) (*HookTable, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	t := hc.arenas[c.Domain().ID()].get(c.ID())
	return t, t != nil
}

// Len returns the number of cached tables.
func (hc *HookCache) Len() int {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.count
}

// Builds returns how many tables have been resolved. It equals Len for a
// cache that has never raced, and never exceeds it.
func (hc *HookCache) Builds() uint64 { return hc.builds.Load() }

// Tables returns every cached table ordered by domain, then type.
func (hc *HookCache) Tables() []*HookTable {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	doms := make([]script.DomainID, 0, len(hc.arenas))
	for d := range hc.arenas {
		doms = append(doms, d)
	}
	sort.Slice(doms, func(i, j int) bool { return doms[i] < doms[j] })

	out := make([]*HookTable, 0, hc.count)
	for _, d := range doms {
		for _, t := range hc.arenas[d].tables {
			if t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

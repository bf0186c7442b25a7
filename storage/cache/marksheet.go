// Package cache holds in-process caches backed by go-cache.
package cache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/school"
)

// Observer is told about every lookup.
type Observer interface {
	ObserveCache(cache string, hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveCache(string, bool) {}

// MarksheetCache stores marksheets by class and unit.
// Every invalidation moves a version forward; Set drops marksheets built from an older version.
type MarksheetCache struct {
	store    *gocache.Cache
	observer Observer

	mu            sync.Mutex
	clock         uint64
	flushed       uint64
	unitVersions  map[string]uint64
	classVersions map[string]uint64
}

var (
	_ assessment.MarksheetCache = (*MarksheetCache)(nil)
	_ school.RosterListener     = (*MarksheetCache)(nil)
)

// NewMarksheetCache returns a cache whose entries expire after ttl.
func NewMarksheetCache(ttl, cleanupInterval time.Duration, observer Observer) *MarksheetCache {
	if observer == nil {
		observer = nopObserver{}
	}
	return &MarksheetCache{
		store:         gocache.New(ttl, cleanupInterval),
		observer:      observer,
		unitVersions:  make(map[string]uint64),
		classVersions: make(map[string]uint64),
	}
}

func classPrefix(classID string) string {
	return "marksheet:" + classID + ":"
}

func marksheetKey(classID, unitID string) string {
	return classPrefix(classID) + unitID
}

// version must be called with c.mu held.
func (c *MarksheetCache) version(classID, unitID string) uint64 {
	v := c.unitVersions[marksheetKey(classID, unitID)]
	if cv := c.classVersions[classID]; cv > v {
		v = cv
	}
	if c.flushed > v {
		v = c.flushed
	}
	return v
}

// Get returns the cached marksheet, if any, and the version to hand back to Set.
func (c *MarksheetCache) Get(classID, unitID string) (assessment.Marksheet, uint64, bool) {
	c.mu.Lock()
	version := c.version(classID, unitID)
	c.mu.Unlock()

	v, ok := c.store.Get(marksheetKey(classID, unitID))
	c.observer.ObserveCache("marksheet", ok)
	if !ok {
		return assessment.Marksheet{}, version, false
	}
	return v.(assessment.Marksheet), version, true
}

// Set stores ms unless its class or unit was invalidated after version was read.
func (c *MarksheetCache) Set(ms assessment.Marksheet, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version(ms.ClassID, ms.UnitID) != version {
		return false
	}
	c.store.SetDefault(marksheetKey(ms.ClassID, ms.UnitID), ms)
	return true
}

func (c *MarksheetCache) Invalidate(classID, unitID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := marksheetKey(classID, unitID)
	c.clock++
	c.unitVersions[key] = c.clock
	c.store.Delete(key)
}

// InvalidateClass drops the marksheets of every unit of a class.
func (c *MarksheetCache) InvalidateClass(classID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.classVersions[classID] = c.clock
	prefix := classPrefix(classID)
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

// RosterChanged is called by the school service when enrolments of a class change.
func (c *MarksheetCache) RosterChanged(classID string) {
	c.InvalidateClass(classID)
}

// Flush empties the cache.
func (c *MarksheetCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.flushed = c.clock
	c.unitVersions = make(map[string]uint64)
	c.classVersions = make(map[string]uint64)
	c.store.Flush()
}

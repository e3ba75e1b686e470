package application

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// warningScope identifies one job listing whose double-bookings were computed.
// Bounds are unix nanoseconds; an open side holds the extreme int64.
type warningScope struct {
	from      int64
	to        int64
	employees string
	source    string
}

func scopeForFilter(filter JobRepositoryFilter) warningScope {
	scope := warningScope{from: math.MinInt64, to: math.MaxInt64, source: filter.Source}
	if filter.StartsAfter != nil {
		scope.from = filter.StartsAfter.UnixNano()
	}
	if filter.EndsBefore != nil {
		scope.to = filter.EndsBefore.UnixNano()
	}
	if len(filter.EmployeeIDs) > 0 {
		ids := slices.Clone(filter.EmployeeIDs)
		slices.Sort(ids)
		scope.employees = strings.Join(slices.Compact(ids), ",")
	}
	return scope
}

// covers reports whether a write to job can change the warnings of the listing.
func (s warningScope) covers(job Job) bool {
	if s.source != "" && s.source != job.Source {
		return false
	}
	if s.employees != "" {
		if job.EmployeeID == nil || !slices.Contains(strings.Split(s.employees, ","), *job.EmployeeID) {
			return false
		}
	}
	from := job.Start.UnixNano()
	to := job.EffectiveEnd().UnixNano()
	if job.RecurrenceRule != nil {
		to = math.MaxInt64
	}
	return from < s.to && to > s.from
}

// warningCache keeps the double-bookings of recent listings until a job
// inside their scope changes or the entry expires.
type warningCache struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[warningScope]warningCacheEntry
}

type warningCacheEntry struct {
	warnings  []ConflictWarning
	expiresAt time.Time
}

func newWarningCache(ttl time.Duration, maxEntries int, now func() time.Time) *warningCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &warningCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[warningScope]warningCacheEntry),
	}
}

func (c *warningCache) Get(scope warningScope) ([]ConflictWarning, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[scope]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, scope)
		return nil, false
	}
	return slices.Clone(entry.warnings), true
}

func (c *warningCache) Store(scope warningScope, warnings []ConflictWarning) {
	if c == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if _, ok := c.entries[scope]; !ok && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[scope] = warningCacheEntry{warnings: slices.Clone(warnings), expiresAt: now.Add(c.ttl)}
}

// InvalidateJobs drops the listings any of jobs falls into. Pass both the
// old and the new version of an updated job.
func (c *warningCache) InvalidateJobs(jobs ...Job) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for scope := range c.entries {
		for _, job := range jobs {
			if scope.covers(job) {
				delete(c.entries, scope)
				dropped++
				break
			}
		}
	}
	return dropped
}

// Invalidate drops every listing.
func (c *warningCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *warningCache) evictOldestLocked() {
	var (
		oldest    warningScope
		oldestExp time.Time
		found     bool
	)
	for scope, entry := range c.entries {
		if !found || entry.expiresAt.Before(oldestExp) {
			oldest, oldestExp, found = scope, entry.expiresAt, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

package application

import (
	"testing"
	"time"
)

func weekScope(employees ...string) warningScope {
	from := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	return scopeForFilter(JobRepositoryFilter{EmployeeIDs: employees, StartsAfter: &from, EndsBefore: &to})
}

func TestWarningCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newWarningCache(time.Minute, 4, func() time.Time { return current })
	scope := weekScope()

	original := []ConflictWarning{{JobID: "job-1", WithJobID: "job-2", Type: "employee"}}
	cache.Store(scope, original)

	// Mutating the original slice should not affect the cached copy.
	original[0].JobID = "mutated"

	cached, ok := cache.Get(scope)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].JobID != "job-1" {
		t.Fatalf("expected cached job id to remain unchanged, got %s", cached[0].JobID)
	}

	cached[0].JobID = "changed"
	cachedAgain, ok := cache.Get(scope)
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].JobID != "job-1" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].JobID)
	}
}

func TestWarningCacheExpiresEntries(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newWarningCache(time.Second, 4, func() time.Time { return current })

	cache.Store(weekScope(), []ConflictWarning{{JobID: "job-1"}})
	if _, ok := cache.Get(weekScope()); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get(weekScope()); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestWarningCacheEvictsOldestWhenFull(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newWarningCache(time.Minute, 2, func() time.Time { return current })

	cache.Store(weekScope("emp-1"), nil)
	current = current.Add(time.Second)
	cache.Store(weekScope("emp-2"), nil)
	current = current.Add(time.Second)
	cache.Store(weekScope("emp-3"), nil)

	if _, ok := cache.Get(weekScope("emp-1")); ok {
		t.Fatalf("expected the oldest listing to be evicted")
	}
	for _, id := range []string{"emp-2", "emp-3"} {
		if _, ok := cache.Get(weekScope(id)); !ok {
			t.Fatalf("expected %s listing to be kept", id)
		}
	}
}

func TestWarningCacheInvalidate(t *testing.T) {
	cache := newWarningCache(time.Minute, 4, time.Now)
	cache.Store(weekScope(), []ConflictWarning{{JobID: "job-1"}})
	cache.Invalidate()
	if _, ok := cache.Get(weekScope()); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestWarningCacheInvalidateJobs(t *testing.T) {
	t.Parallel()

	monday := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	inWeek := Job{ID: "j", Start: monday, EmployeeID: strPtr("emp-1"), Source: SourceInternal}
	nextWeek := inWeek
	nextWeek.Start = monday.AddDate(0, 0, 7)
	recurring := nextWeek
	recurring.Start = monday.AddDate(0, 0, -14)
	recurring.RecurrenceRule = strPtr("FREQ=WEEKLY")
	unassigned := inWeek
	unassigned.EmployeeID = nil

	tests := []struct {
		name    string
		scope   warningScope
		job     Job
		dropped bool
	}{
		{"job inside the window and scope", weekScope("emp-1"), inWeek, true},
		{"everyone scope sees every employee", weekScope(), inWeek, true},
		{"other employee scope is kept", weekScope("emp-2"), inWeek, false},
		{"job in another week is kept", weekScope("emp-1"), nextWeek, false},
		{"recurring series reaches later windows", weekScope("emp-1"), recurring, true},
		{"unassigned job leaves employee scopes alone", weekScope("emp-1"), unassigned, false},
		{"source filter excludes other sources", scopeForFilter(JobRepositoryFilter{Source: SourceExternal}), inWeek, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cache := newWarningCache(time.Minute, 4, time.Now)
			cache.Store(tt.scope, []ConflictWarning{{JobID: "a", WithJobID: "b"}})
			cache.InvalidateJobs(tt.job)
			_, kept := cache.Get(tt.scope)
			if kept == tt.dropped {
				t.Fatalf("dropped=%v, want %v", !kept, tt.dropped)
			}
		})
	}
}

func TestScopeForFilterIgnoresEmployeeOrder(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	sameInstant := from.In(time.FixedZone("CET", 3600))
	a := scopeForFilter(JobRepositoryFilter{EmployeeIDs: []string{"b", "a"}, StartsAfter: &from})
	b := scopeForFilter(JobRepositoryFilter{EmployeeIDs: []string{"a", "b", "a"}, StartsAfter: &sameInstant})
	if a != b {
		t.Fatalf("expected identical scopes, got %+v and %+v", a, b)
	}

	c := scopeForFilter(JobRepositoryFilter{EmployeeIDs: []string{"a", "b"}, StartsAfter: &from, Source: SourceExternal})
	if c == a {
		t.Fatalf("expected source to change the scope")
	}
}

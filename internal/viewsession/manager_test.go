package viewsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/testfixtures"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type rangeCall struct{ from, to time.Time }

type eventSourceStub struct {
	mu     sync.Mutex
	events []calendar.CalendarEvent
	calls  []rangeCall
	err    error
}

func (s *eventSourceStub) CalendarEvents(_ context.Context, from, to time.Time, _ []string) ([]calendar.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rangeCall{from, to})
	if s.err != nil {
		return nil, s.err
	}
	out := make([]calendar.CalendarEvent, len(s.events))
	for i, e := range s.events {
		out[i] = e.Clone()
	}
	return out, nil
}

func (s *eventSourceStub) lastCall() rangeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

type resourceStub []calendar.Resource

func (r resourceStub) Resources(context.Context) ([]calendar.Resource, error) {
	return r, nil
}

type saverStub struct {
	mu        sync.Mutex
	result    calendar.SaveResult
	mutations []calendar.Mutation
}

func (s *saverStub) Save(_ context.Context, m calendar.Mutation) (calendar.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, m)
	return s.result, nil
}

func (s *saverStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mutations)
}

func officeClean() calendar.CalendarEvent {
	start := monday.Add(9 * time.Hour)
	end := monday.Add(10 * time.Hour)
	return calendar.CalendarEvent{ID: "job-1", Title: "Office clean", Start: start, End: &end}
}

func newTestManager(t *testing.T, saver calendar.Saver, clock *testfixtures.Clock) (*Manager, *eventSourceStub) {
	t.Helper()
	events := &eventSourceStub{events: []calendar.CalendarEvent{officeClean()}}
	m := NewManager(events, resourceStub{{ID: "emp-1", Name: "Alice"}}, Config{
		Location:    time.UTC,
		DefaultZoom: 60,
		Saver:       saver,
		IdleTTL:     10 * time.Minute,
		DragTimeout: time.Minute,
	}, clock.NowFunc())
	return m, events
}

func TestManagerCreateLoadsVisibleRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := testfixtures.NewClock(monday.Add(11 * time.Hour))
	m, events := newTestManager(t, &saverStub{result: calendar.SaveResult{Success: true}}, clock)

	s, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if s.ID() == "" || m.Len() != 1 {
		t.Fatalf("expected a registered view, got id=%q len=%d", s.ID(), m.Len())
	}
	call := events.lastCall()
	if !call.from.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)) || !call.to.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %v - %v", call.from, call.to)
	}
	snap := s.Snapshot()
	if snap.TimeGrid == nil || len(snap.TimeGrid.Boxes) != 1 {
		t.Fatalf("expected one box in the week layout, got %+v", snap.TimeGrid)
	}

	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get returned %v, %v", got, err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound, got %v", err)
	}
}

func TestManagerCreatePropagatesLoadErrors(t *testing.T) {
	t.Parallel()
	clock := testfixtures.NewClock(monday)
	m, events := newTestManager(t, nil, clock)
	events.err = errors.New("db down")

	if _, err := m.Create(context.Background(), Params{View: calendar.ViewDay, Date: monday}); err == nil {
		t.Fatal("expected an error")
	}
	if m.Len() != 0 {
		t.Fatal("failed views must not be registered")
	}
}

func TestSessionPointerMove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	saver := &saverStub{result: calendar.SaveResult{Success: true}}
	m, _ := newTestManager(t, saver, testfixtures.NewClock(monday))
	s, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Pointer(ctx, PointerInput{Type: PointerDown, Point: calendar.Pointer{X: 296, Y: 602}})
	if err != nil || res.Target == nil || res.Target.EventID != "job-1" {
		t.Fatalf("unexpected down result %+v (%v)", res.Target, err)
	}
	if _, err := s.Pointer(ctx, PointerInput{Type: PointerMove, Point: calendar.Pointer{X: 296, Y: 632}}); err != nil {
		t.Fatal(err)
	}
	res, err = s.Pointer(ctx, PointerInput{Type: PointerUp, Point: calendar.Pointer{X: 296, Y: 632}})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.Outcome == nil || res.Outcome.Kind != calendar.OutcomeMove || !res.Outcome.Saved {
		t.Fatalf("unexpected outcome %+v", res.Outcome)
	}
	ev, _ := s.Calendar().Event("job-1")
	if !ev.Start.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("expected the job at 10:00, got %v", ev.Start)
	}
	if saver.count() != 1 {
		t.Fatalf("expected one save, got %d", saver.count())
	}
}

func TestSessionRejectedSaveIsNotAnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	saver := &saverStub{result: calendar.SaveResult{Success: false, Error: "The slot is already booked"}}
	m, _ := newTestManager(t, saver, testfixtures.NewClock(monday))
	s, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatal(err)
	}

	s.Pointer(ctx, PointerInput{Type: PointerDown, Point: calendar.Pointer{X: 296, Y: 602}})
	s.Pointer(ctx, PointerInput{Type: PointerMove, Point: calendar.Pointer{X: 296, Y: 632}})
	res, err := s.Pointer(ctx, PointerInput{Type: PointerUp, Point: calendar.Pointer{X: 296, Y: 632}})
	if err != nil {
		t.Fatalf("rejections are reported through notifications, got %v", err)
	}
	if res.Outcome == nil || !res.Outcome.Reverted {
		t.Fatalf("expected a reverted outcome, got %+v", res.Outcome)
	}
	if len(res.Notifications) == 0 || res.Notifications[0].Kind != calendar.NotifyError {
		t.Fatalf("expected an error notification, got %+v", res.Notifications)
	}
	ev, _ := s.Calendar().Event("job-1")
	if !ev.Start.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("expected the job back at 09:00, got %v", ev.Start)
	}

	again, _ := s.Navigate(ctx, NavInput{Action: NavZoomIn})
	if len(again.Notifications) != 0 {
		t.Fatal("notifications are delivered once")
	}
}

func TestSessionCreateAndUpdateEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	saver := &saverStub{result: calendar.SaveResult{Success: true}}
	m, _ := newTestManager(t, saver, testfixtures.NewClock(monday))
	s, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.CreateEvent(ctx, EventPatch{Title: ptr("No start")}); !errors.Is(err, ErrMissingStart) {
		t.Fatalf("expected ErrMissingStart, got %v", err)
	}

	start := monday.Add(13 * time.Hour)
	res, err := s.CreateEvent(ctx, EventPatch{Title: ptr(" Windows "), Start: &start, Label: ptr("emp-1")})
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if res.Event == nil || res.Event.ID == "" || res.Event.Title != "Windows" || res.Event.Label != "emp-1" {
		t.Fatalf("unexpected created event %+v", res.Event)
	}
	if len(res.Snapshot.TimeGrid.Boxes) != 2 {
		t.Fatalf("expected the new job next to the existing one, got %d boxes", len(res.Snapshot.TimeGrid.Boxes))
	}

	res, err = s.UpdateEvent(ctx, "job-1", EventPatch{Title: ptr("Office deep clean"), ClearEnd: true, Metadata: calendar.Metadata{"status": "completed"}})
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if res.Event == nil || res.Event.Title != "Office deep clean" || res.Event.End != nil || !res.Event.Start.Equal(monday.Add(9*time.Hour)) {
		t.Fatalf("unexpected updated event %+v", res.Event)
	}
	if res.Event.Metadata.String("status") != "completed" {
		t.Fatalf("expected merged metadata, got %+v", res.Event.Metadata)
	}
	if saver.count() != 2 || saver.mutations[0].Kind != calendar.MutationCreate || saver.mutations[1].Kind != calendar.MutationUpdate {
		t.Fatalf("unexpected mutations %+v", saver.mutations)
	}

	if _, err := s.UpdateEvent(ctx, "missing", EventPatch{}); !errors.Is(err, calendar.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

func TestSessionNavigateReloads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, events := newTestManager(t, nil, testfixtures.NewClock(monday))
	s, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		in       NavInput
		wantFrom time.Time
		wantTo   time.Time
	}{
		{"next week", NavInput{Action: NavNext}, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)},
		{"day view", NavInput{Action: NavView, View: calendar.ViewDay}, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"month view", NavInput{Action: NavView, View: calendar.ViewMonth}, time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC)},
		{"jump to date", NavInput{Action: NavDate, Date: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)}, time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if _, err := s.Navigate(ctx, tt.in); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		call := events.lastCall()
		if !call.from.Equal(tt.wantFrom) || !call.to.Equal(tt.wantTo) {
			t.Fatalf("%s: unexpected range %v - %v", tt.name, call.from, call.to)
		}
	}

	if _, err := s.Navigate(ctx, NavInput{Action: "sideways"}); err == nil {
		t.Fatal("expected an error for unknown actions")
	}
}

func TestManagerSweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := testfixtures.NewClock(monday)
	saver := &saverStub{result: calendar.SaveResult{Success: true}}
	m, _ := newTestManager(t, saver, clock)

	dragging, err := m.Create(ctx, Params{View: calendar.ViewWeek, Date: monday})
	if err != nil {
		t.Fatal(err)
	}
	dragging.Pointer(ctx, PointerInput{Type: PointerDown, Point: calendar.Pointer{X: 296, Y: 602}})
	dragging.Pointer(ctx, PointerInput{Type: PointerMove, Point: calendar.Pointer{X: 296, Y: 632}})

	idle, err := m.Create(ctx, Params{View: calendar.ViewDay, Date: monday})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	if res := m.Sweep(ctx); res.Finalized != 1 || res.Evicted != 0 {
		t.Fatalf("expected the stuck drag to be finalized, got %+v", res)
	}
	if dragging.Calendar().Active() {
		t.Fatal("gesture should be closed")
	}
	if saver.count() != 1 {
		t.Fatalf("expected the drag to commit, got %d saves", saver.count())
	}

	clock.Advance(5 * time.Minute)
	if _, err := m.Get(idle.ID()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Minute)
	if res := m.Sweep(ctx); res.Evicted != 1 {
		t.Fatalf("expected one eviction, got %+v", res)
	}
	if _, err := m.Get(dragging.ID()); !errors.Is(err, ErrViewNotFound) {
		t.Fatalf("expected the dragging view to be evicted, got %v", err)
	}
	if _, err := m.Get(idle.ID()); err != nil {
		t.Fatalf("recently used view must survive, got %v", err)
	}
}

func TestManagerClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := newTestManager(t, nil, testfixtures.NewClock(monday))
	s, err := m.Create(ctx, Params{View: calendar.ViewMonth, Date: monday})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx, s.ID()); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx, s.ID()); !errors.Is(err, ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound, got %v", err)
	}
}

func TestParsePointerType(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"down", " MOVE ", "up", "cancel"} {
		if _, err := ParsePointerType(in); err != nil {
			t.Fatalf("%q: %v", in, err)
		}
	}
	if _, err := ParsePointerType("click"); err == nil {
		t.Fatal("expected an error")
	}
}

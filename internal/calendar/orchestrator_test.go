package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type saverStub struct {
	mu        sync.Mutex
	mutations []Mutation
	result    SaveResult
	err       error
}

func (s *saverStub) Save(_ context.Context, m Mutation) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, m)
	if s.err != nil {
		return SaveResult{}, s.err
	}
	return s.result, nil
}

type notification struct {
	kind           NotificationKind
	title, message string
}

type notifierStub struct {
	mu   sync.Mutex
	sent []notification
}

func (n *notifierStub) Notify(kind NotificationKind, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind, title, message})
}

type modalStub struct {
	requests []ModalRequest
}

func (m *modalStub) OpenEventModal(req ModalRequest) {
	m.requests = append(m.requests, req)
}

// Week of monday at zoom 60: the monday column spans x 216-376 and y = 32 + minutes.
func newTestCalendar(saver Saver, notifier Notifier, modals ModalOpener, events ...CalendarEvent) *Calendar {
	return New(events, Options{
		Date:     monday,
		View:     ViewWeek,
		Location: time.UTC,
		Zoom:     60,
		Saver:    saver,
		Notifier: notifier,
		Modals:   modals,
		Clock:    func() time.Time { return at(monday, 12, 0) },
	})
}

func TestCalendarNavigation(t *testing.T) {
	t.Parallel()

	c := newTestCalendar(nil, nil, nil)

	c.Next()
	if !c.Date().Equal(AddDays(monday, 7)) {
		t.Fatalf("week next: got %v", c.Date())
	}
	c.SetView(ViewMonth)
	c.Prev()
	if !c.Date().Equal(time.Date(2024, time.February, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month prev: got %v", c.Date())
	}
	c.SetView(ViewDay)
	c.Next()
	if !c.Date().Equal(time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day next: got %v", c.Date())
	}
	c.Today()
	if !c.Date().Equal(monday) {
		t.Fatalf("today: got %v", c.Date())
	}
}

func TestCalendarZoom(t *testing.T) {
	t.Parallel()

	c := newTestCalendar(nil, nil, nil)
	if c.Zoom() != 60 {
		t.Fatalf("expected 60, got %v", c.Zoom())
	}
	if !c.ZoomIn() || !c.ZoomIn() || c.ZoomIn() {
		t.Fatal("expected two steps up to the largest level")
	}
	if c.Zoom() != 120 {
		t.Fatalf("expected 120, got %v", c.Zoom())
	}
	for c.ZoomOut() {
	}
	if c.Zoom() != 30 {
		t.Fatalf("expected 30, got %v", c.Zoom())
	}
}

func TestCalendarMove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("saves the moved event", func(t *testing.T) {
		t.Parallel()
		saver := &saverStub{result: SaveResult{Success: true}}
		var changes atomic.Int32
		c := New([]CalendarEvent{meeting()}, Options{
			Date: monday, View: ViewWeek, Location: time.UTC, Zoom: 60, Saver: saver,
			OnChange: func([]CalendarEvent) { changes.Add(1) },
		})

		target, err := c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)
		if err != nil || target.Kind != TargetEvent || target.EventID != "job-1" {
			t.Fatalf("unexpected target %+v (%v)", target, err)
		}
		c.PointerMove(Pointer{X: 296, Y: 640})
		if ev, _ := c.Event("job-1"); !ev.Start.Equal(at(monday, 10, 15)) {
			t.Fatalf("expected live candidate at 10:15, got %v", ev.Start)
		}

		out, err := c.PointerUp(ctx, Pointer{X: 296, Y: 677})
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if out.Kind != OutcomeMove || !out.Saved {
			t.Fatalf("unexpected outcome %+v", out)
		}
		ev, _ := c.Event("job-1")
		if !ev.Start.Equal(at(monday, 10, 45)) || !ev.End.Equal(at(monday, 11, 45)) {
			t.Fatalf("expected 10:45-11:45, got %v-%v", ev.Start, *ev.End)
		}
		if len(saver.mutations) != 1 || saver.mutations[0].Kind != MutationUpdate {
			t.Fatalf("unexpected mutations %+v", saver.mutations)
		}
		if c.Pending("job-1") {
			t.Fatal("event should be settled")
		}
		if changes.Load() == 0 {
			t.Fatal("expected change notifications")
		}
	})

	t.Run("failed save reverts and notifies", func(t *testing.T) {
		t.Parallel()
		saver := &saverStub{result: SaveResult{Success: false, Error: "conflict"}}
		notifier := &notifierStub{}
		c := newTestCalendar(saver, notifier, nil, meeting())

		if _, err := c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil); err != nil {
			t.Fatal(err)
		}
		c.PointerMove(Pointer{X: 296, Y: 677})
		out, err := c.PointerUp(ctx, Pointer{X: 296, Y: 677})

		var saveErr *SaveError
		if !errors.As(err, &saveErr) || saveErr.Message != "conflict" {
			t.Fatalf("expected SaveError with conflict, got %v", err)
		}
		if !out.Reverted {
			t.Fatalf("expected a reverted outcome, got %+v", out)
		}
		ev, _ := c.Event("job-1")
		if !ev.SameSchedule(meeting()) {
			t.Fatalf("expected the pre-drag position, got %v-%v", ev.Start, *ev.End)
		}
		if len(notifier.sent) != 1 || notifier.sent[0].kind != NotifyError || notifier.sent[0].message != "conflict" {
			t.Fatalf("unexpected notifications %+v", notifier.sent)
		}
	})

	t.Run("saver errors are treated as failures", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("network down")
		c := newTestCalendar(&saverStub{err: boom}, nil, nil, meeting())
		c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)
		_, err := c.PointerUp(ctx, Pointer{X: 296, Y: 800})
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped saver error, got %v", err)
		}
		if ev, _ := c.Event("job-1"); !ev.SameSchedule(meeting()) {
			t.Fatal("expected revert")
		}
	})

	t.Run("click on an event opens the edit form", func(t *testing.T) {
		t.Parallel()
		saver := &saverStub{result: SaveResult{Success: true}}
		modals := &modalStub{}
		c := newTestCalendar(saver, nil, modals, meeting())
		c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)
		out, err := c.PointerUp(ctx, Pointer{X: 297, Y: 603})
		if err != nil || out.Modal == nil || out.Modal.EventID != "job-1" {
			t.Fatalf("unexpected outcome %+v (%v)", out, err)
		}
		if len(saver.mutations) != 0 {
			t.Fatal("a click must not save")
		}
		if len(modals.requests) != 1 || modals.requests[0].StartTime != "09:00" || modals.requests[0].EndTime != "10:00" {
			t.Fatalf("unexpected modal requests %+v", modals.requests)
		}
	})

	t.Run("read-only events do not start a gesture", func(t *testing.T) {
		t.Parallel()
		ev := meeting()
		ev.Metadata = Metadata{MetaReadOnly: true}
		c := newTestCalendar(nil, nil, nil, ev)
		c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)
		if c.Active() {
			t.Fatal("expected no active gesture")
		}
		if _, err := c.Update(ctx, ev); !errors.Is(err, ErrReadOnlyEvent) {
			t.Fatalf("expected ErrReadOnlyEvent, got %v", err)
		}
	})
}

func TestCalendarResize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	saver := &saverStub{result: SaveResult{Success: true}}
	c := newTestCalendar(saver, nil, nil, meeting())

	target, _ := c.PointerDown(ctx, Pointer{X: 296, Y: 630}, nil)
	if target.Kind != TargetEndEdge {
		t.Fatalf("expected end edge, got %s", target.Kind)
	}
	out, err := c.PointerUp(ctx, Pointer{X: 296, Y: 580})
	if err != nil || out.Kind != OutcomeResize {
		t.Fatalf("unexpected outcome %+v (%v)", out, err)
	}
	ev, _ := c.Event("job-1")
	if !ev.End.Equal(at(monday, 9, 15)) {
		t.Fatalf("expected 09:15, got %v", *ev.End)
	}
}

func TestCalendarSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	modals := &modalStub{}
	c := newTestCalendar(nil, nil, modals)

	target, _ := c.PointerDown(ctx, Pointer{X: 400, Y: 632}, nil)
	if target.Kind != TargetEmpty {
		t.Fatalf("expected empty slot, got %s", target.Kind)
	}
	c.PointerMove(Pointer{X: 400, Y: 700})
	if snap := c.Layout(); snap.Selection == nil || snap.Gesture != "select" {
		t.Fatalf("expected a live selection, got %+v", snap)
	}
	out, err := c.PointerUp(ctx, Pointer{X: 400, Y: 722})
	if err != nil || out.Kind != OutcomeSelection || !out.Selection.Dragged {
		t.Fatalf("unexpected outcome %+v (%v)", out, err)
	}
	req := modals.requests[0]
	if !req.Date.Equal(AddDays(monday, 1)) || req.StartTime != "10:00" || req.EndTime != "11:30" {
		t.Fatalf("unexpected modal request %+v", req)
	}

	t.Run("cancel discards a selection", func(t *testing.T) {
		c.PointerDown(ctx, Pointer{X: 400, Y: 632}, nil)
		out, err := c.Cancel(ctx)
		if err != nil || out.Kind != OutcomeNone || c.Active() {
			t.Fatalf("unexpected cancel outcome %+v (%v)", out, err)
		}
	})
}

func TestCalendarCancelFinalizesDrag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	saver := &saverStub{result: SaveResult{Success: true}}
	c := newTestCalendar(saver, nil, nil, meeting())
	c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)
	c.PointerMove(Pointer{X: 296, Y: 647})

	// A fresh pointer-down after a lost pointer-up commits the stale drag first.
	if _, err := c.PointerDown(ctx, Pointer{X: 10, Y: 10}, nil); err != nil {
		t.Fatal(err)
	}
	if c.Active() {
		t.Fatal("gutter press must not start a gesture")
	}
	ev, _ := c.Event("job-1")
	if !ev.Start.Equal(at(monday, 10, 15)) || len(saver.mutations) != 1 {
		t.Fatalf("expected the stale drag to be committed, got %v (%d saves)", ev.Start, len(saver.mutations))
	}
}

func TestCalendarRejectsEditsDuringDrag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	saver := &saverStub{result: SaveResult{Success: true}}
	c := newTestCalendar(saver, nil, nil, meeting())
	c.PointerDown(ctx, Pointer{X: 296, Y: 602}, nil)

	if err := c.Delete(ctx, "job-1"); !errors.Is(err, ErrGestureActive) {
		t.Fatalf("expected ErrGestureActive, got %v", err)
	}
	if _, err := c.Update(ctx, meeting()); !errors.Is(err, ErrGestureActive) {
		t.Fatalf("expected ErrGestureActive, got %v", err)
	}
	if len(saver.mutations) != 0 {
		t.Fatalf("expected no saves, got %d", len(saver.mutations))
	}
}

func TestCalendarCreateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create adopts the stored id", func(t *testing.T) {
		t.Parallel()
		stored := meeting()
		stored.ID = "job-99"
		saver := &saverStub{result: SaveResult{Success: true, Event: &stored}}
		notifier := &notifierStub{}
		c := newTestCalendar(saver, notifier, nil)

		draft := meeting()
		draft.ID = ""
		got, err := c.Create(ctx, draft)
		if err != nil || got.ID != "job-99" {
			t.Fatalf("unexpected create result %+v (%v)", got, err)
		}
		if events := c.Events(); len(events) != 1 || events[0].ID != "job-99" {
			t.Fatalf("expected only the stored event, got %+v", events)
		}
		if len(notifier.sent) != 1 || notifier.sent[0].kind != NotifySuccess {
			t.Fatalf("unexpected notifications %+v", notifier.sent)
		}
	})

	t.Run("failed create disappears", func(t *testing.T) {
		t.Parallel()
		c := newTestCalendar(&saverStub{result: SaveResult{Error: "overlap"}}, nil, nil)
		if _, err := c.Create(ctx, meeting()); err == nil {
			t.Fatal("expected an error")
		}
		if len(c.Events()) != 0 {
			t.Fatalf("expected rollback, got %+v", c.Events())
		}
	})

	t.Run("failed delete restores the event", func(t *testing.T) {
		t.Parallel()
		c := newTestCalendar(&saverStub{result: SaveResult{Error: "locked"}}, nil, nil, meeting())
		if err := c.Delete(ctx, "job-1"); err == nil {
			t.Fatal("expected an error")
		}
		if _, ok := c.Event("job-1"); !ok {
			t.Fatal("expected the event back")
		}
	})

	t.Run("delete removes the event", func(t *testing.T) {
		t.Parallel()
		c := newTestCalendar(&saverStub{result: SaveResult{Success: true}}, nil, nil, meeting())
		if err := c.Delete(ctx, "job-1"); err != nil {
			t.Fatal(err)
		}
		if _, ok := c.Event("job-1"); ok {
			t.Fatal("expected the event to be gone")
		}
		if err := c.Delete(ctx, "job-1"); !errors.Is(err, ErrUnknownEvent) {
			t.Fatalf("expected ErrUnknownEvent, got %v", err)
		}
	})
}

func TestCalendarSerializesSavesPerEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var inflight, peak atomic.Int32
	saver := SaverFunc(func(context.Context, Mutation) (SaveResult, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return SaveResult{Success: true}, nil
	})
	c := newTestCalendar(saver, nil, nil, meeting())

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := meeting()
			ev.Start = ev.Start.Add(time.Duration(i+1) * 15 * time.Minute)
			ev.End = ptr(ev.Start.Add(time.Hour))
			if _, err := c.Update(ctx, ev); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Fatalf("expected saves of one event to run one at a time, peak was %d", peak.Load())
	}
	if c.Pending("job-1") {
		t.Fatal("expected every save to settle")
	}
}

func TestCalendarRollbackKeepsNewerChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	saver := SaverFunc(func(context.Context, Mutation) (SaveResult, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return SaveResult{Error: "stale"}, nil
		}
		return SaveResult{Success: true}, nil
	})
	c := newTestCalendar(saver, nil, nil, meeting())

	first := meeting()
	first.Start, first.End = at(monday, 11, 0), ptr(at(monday, 12, 0))
	second := meeting()
	second.Start, second.End = at(monday, 14, 0), ptr(at(monday, 15, 0))

	errs := make(chan error, 2)
	go func() {
		_, err := c.Update(ctx, first)
		errs <- err
	}()
	<-started
	go func() {
		_, err := c.Update(ctx, second)
		errs <- err
	}()
	for {
		if ev, _ := c.Event("job-1"); ev.Start.Equal(second.Start) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	var failures int
	for range 2 {
		if err := <-errs; err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failed save, got %d", failures)
	}
	ev, _ := c.Event("job-1")
	if !ev.Start.Equal(second.Start) {
		t.Fatalf("expected the newer change to survive, got %v", ev.Start)
	}
}

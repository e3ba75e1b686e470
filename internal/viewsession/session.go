package viewsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// Session is one open interactive view.
type Session struct {
	id      string
	manager *Manager
	cal     *calendar.Calendar

	// op serializes client requests against the calendar.
	op sync.Mutex

	mu      sync.Mutex
	touched time.Time
	notices []Notification
	modals  []calendar.ModalRequest
}

// Notification is a message the calendar raised for the client.
type Notification struct {
	Kind    calendar.NotificationKind `json:"kind"`
	Title   string                    `json:"title"`
	Message string                    `json:"message"`
}

// Result is what a view request produced.
type Result struct {
	Snapshot      calendar.Snapshot
	Target        *calendar.Target
	Outcome       *calendar.Outcome
	Event         *calendar.CalendarEvent
	Notifications []Notification
	Modals        []calendar.ModalRequest
}

// PointerType names a pointer event sent by the client.
type PointerType string

const (
	PointerDown   PointerType = "down"
	PointerMove   PointerType = "move"
	PointerUp     PointerType = "up"
	PointerCancel PointerType = "cancel"
)

// ParsePointerType accepts down, move, up or cancel.
func ParsePointerType(s string) (PointerType, error) {
	switch t := PointerType(strings.ToLower(strings.TrimSpace(s))); t {
	case PointerDown, PointerMove, PointerUp, PointerCancel:
		return t, nil
	}
	return "", fmt.Errorf("viewsession: unknown pointer type %q", s)
}

// PointerInput is one pointer event. Target overrides hit-testing on down.
type PointerInput struct {
	Type   PointerType
	Point  calendar.Pointer
	Target *calendar.Target
}

// NavAction names a navigation request.
type NavAction string

const (
	NavPrev    NavAction = "prev"
	NavNext    NavAction = "next"
	NavToday   NavAction = "today"
	NavZoomIn  NavAction = "zoom_in"
	NavZoomOut NavAction = "zoom_out"
	NavView    NavAction = "view"
	NavDate    NavAction = "date"
)

// NavInput moves the view. View is read for NavView and Date for NavDate.
type NavInput struct {
	Action NavAction
	View   calendar.View
	Date   time.Time
}

// ID returns the view id.
func (s *Session) ID() string { return s.id }

// Calendar exposes the underlying orchestrator.
func (s *Session) Calendar() *calendar.Calendar { return s.cal }

// Snapshot returns the current layout without draining notifications.
func (s *Session) Snapshot() calendar.Snapshot {
	return s.cal.Layout()
}

// Pointer feeds one pointer event to the calendar.
func (s *Session) Pointer(ctx context.Context, in PointerInput) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	var (
		res Result
		err error
	)
	switch in.Type {
	case PointerDown:
		var t calendar.Target
		t, err = s.cal.PointerDown(ctx, in.Point, in.Target)
		res.Target = &t
	case PointerMove:
		s.cal.PointerMove(in.Point)
	case PointerUp:
		var out calendar.Outcome
		out, err = s.cal.PointerUp(ctx, in.Point)
		res.Outcome = &out
	case PointerCancel:
		var out calendar.Outcome
		out, err = s.cal.Cancel(ctx)
		res.Outcome = &out
	default:
		return Result{}, fmt.Errorf("viewsession: unknown pointer type %q", in.Type)
	}
	if err = s.settle(err); err != nil {
		return Result{}, err
	}
	return s.complete(res), nil
}

// Navigate changes the visible range, view or zoom and reloads events when the range moved.
func (s *Session) Navigate(ctx context.Context, in NavInput) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.cal.Active() {
		_, err := s.cal.Cancel(ctx)
		if err = s.settle(err); err != nil {
			return Result{}, err
		}
	}

	reload := true
	switch in.Action {
	case NavPrev:
		s.cal.Prev()
	case NavNext:
		s.cal.Next()
	case NavToday:
		s.cal.Today()
	case NavView:
		s.cal.SetView(in.View)
	case NavDate:
		if in.Date.IsZero() {
			return Result{}, fmt.Errorf("viewsession: date navigation without a date")
		}
		s.cal.SetDate(in.Date)
	case NavZoomIn:
		s.cal.ZoomIn()
		reload = false
	case NavZoomOut:
		s.cal.ZoomOut()
		reload = false
	default:
		return Result{}, fmt.Errorf("viewsession: unknown navigation %q", in.Action)
	}
	if reload {
		if err := s.reload(ctx); err != nil {
			return Result{}, err
		}
	}
	return s.complete(Result{}), nil
}

// ErrMissingStart rejects a created event without a start time.
var ErrMissingStart = errors.New("viewsession: event start is required")

// EventPatch carries the fields of the job form. Nil fields keep their
// current value on update; Metadata keys are merged.
type EventPatch struct {
	Title       *string
	Description *string
	Label       *string
	Start       *time.Time
	End         *time.Time
	ClearEnd    bool
	Confirmed   *bool
	Metadata    calendar.Metadata
}

// Apply returns ev with the patch laid over it.
func (p EventPatch) Apply(ev calendar.CalendarEvent) calendar.CalendarEvent {
	out := ev.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Label != nil {
		out.Label = strings.TrimSpace(*p.Label)
	}
	if p.Start != nil {
		out.Start = *p.Start
	}
	switch {
	case p.End != nil:
		end := *p.End
		out.End = &end
	case p.ClearEnd:
		out.End = nil
	}
	if p.Confirmed != nil {
		confirmed := *p.Confirmed
		out.Confirmed = &confirmed
	}
	if len(p.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = calendar.Metadata{}
		}
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CreateEvent adds a job through the calendar's optimistic path. A rejected
// save is not an error: the event is gone from the snapshot and a
// notification explains why.
func (s *Session) CreateEvent(ctx context.Context, patch EventPatch) (Result, error) {
	if patch.Start == nil || patch.Start.IsZero() {
		return Result{}, ErrMissingStart
	}
	s.op.Lock()
	defer s.op.Unlock()

	stored, err := s.cal.Create(ctx, patch.Apply(calendar.CalendarEvent{}))
	if err = s.settle(err); err != nil {
		return Result{}, err
	}
	var res Result
	if stored.ID != "" {
		res.Event = &stored
	}
	return s.complete(res), nil
}

// UpdateEvent applies patch to a visible event and saves it optimistically.
func (s *Session) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	current, ok := s.cal.Event(eventID)
	if !ok {
		return Result{}, calendar.ErrUnknownEvent
	}
	next := patch.Apply(current)
	next.ID = eventID

	stored, err := s.cal.Update(ctx, next)
	if err = s.settle(err); err != nil {
		return Result{}, err
	}
	res := Result{}
	if stored.ID != "" {
		res.Event = &stored
	} else if ev, ok := s.cal.Event(eventID); ok {
		res.Event = &ev
	}
	return s.complete(res), nil
}

// DeleteEvent removes an event through the calendar's optimistic path.
func (s *Session) DeleteEvent(ctx context.Context, eventID string) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.settle(s.cal.Delete(ctx, eventID)); err != nil {
		return Result{}, err
	}
	return s.complete(Result{}), nil
}

// Refresh reloads resources and events from the sources.
func (s *Session) Refresh(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	resources, err := s.manager.resources.Resources(ctx)
	if err != nil {
		return fmt.Errorf("viewsession: load resources: %w", err)
	}
	s.cal.SetResources(resources)
	return s.reload(ctx)
}

func (s *Session) reload(ctx context.Context) error {
	from, to := VisibleRange(s.cal.View(), s.cal.Date())
	events, err := s.manager.events.CalendarEvents(ctx, from, to, nil)
	if err != nil {
		return fmt.Errorf("viewsession: load events: %w", err)
	}
	s.cal.Replace(events)
	return nil
}

// settle drops save failures; the calendar already reverted and notified.
func (s *Session) settle(err error) error {
	var saveErr *calendar.SaveError
	if errors.As(err, &saveErr) {
		s.manager.logger.Warn("view save reverted", "view_id", s.id, "event_id", saveErr.EventID, "kind", saveErr.Kind, "error", saveErr)
		return nil
	}
	return err
}

// finalize commits a gesture whose pointer-up never arrived.
func (s *Session) finalize(ctx context.Context) bool {
	s.op.Lock()
	defer s.op.Unlock()
	if !s.cal.Active() {
		return false
	}
	out, err := s.cal.Cancel(ctx)
	if err = s.settle(err); err != nil {
		s.manager.logger.Error("view finalize failed", "view_id", s.id, "error", err)
	} else {
		s.manager.logger.Info("stuck gesture finalized", "view_id", s.id, "outcome", string(out.Kind))
	}
	return true
}

func (s *Session) complete(res Result) Result {
	res.Snapshot = s.cal.Layout()
	s.mu.Lock()
	res.Notifications, s.notices = s.notices, nil
	res.Modals, s.modals = s.modals, nil
	s.mu.Unlock()
	return res
}

func (s *Session) pushNotification(kind calendar.NotificationKind, title, message string) {
	s.mu.Lock()
	s.notices = append(s.notices, Notification{Kind: kind, Title: title, Message: message})
	s.mu.Unlock()
}

func (s *Session) pushModal(req calendar.ModalRequest) {
	s.mu.Lock()
	s.modals = append(s.modals, req)
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.touched) {
		s.touched = now
	}
	s.mu.Unlock()
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

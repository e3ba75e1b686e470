package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownEvent is returned when an operation names an event the calendar does not hold.
	ErrUnknownEvent = errors.New("calendar: unknown event")
	// ErrReadOnlyEvent is returned when an edit targets an event the grid may not change.
	ErrReadOnlyEvent = errors.New("calendar: event is read-only")
	// ErrGestureActive is returned when an edit targets the event currently being dragged.
	ErrGestureActive = errors.New("calendar: event is being dragged")
)

// MutationKind names the persistence operation requested by the grid.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is a proposed change handed to the Saver.
type Mutation struct {
	Kind  MutationKind
	Event CalendarEvent
}

// SaveResult is the Saver's verdict. A result with Success false carries a
// user-facing Error. Event, when set, is the stored version of the event.
type SaveResult struct {
	Success bool
	Error   string
	Event   *CalendarEvent
}

// Saver persists committed mutations.
type Saver interface {
	Save(ctx context.Context, m Mutation) (SaveResult, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, m Mutation) (SaveResult, error)

func (f SaverFunc) Save(ctx context.Context, m Mutation) (SaveResult, error) {
	return f(ctx, m)
}

// NotificationKind is the severity shown by the host's notification sink.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notifier surfaces messages to the user.
type Notifier interface {
	Notify(kind NotificationKind, title, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind NotificationKind, title, message string)

func (f NotifierFunc) Notify(kind NotificationKind, title, message string) {
	f(kind, title, message)
}

// ModalRequest pre-fills the host's create/edit form.
type ModalRequest struct {
	Date      time.Time
	EndDate   time.Time
	StartTime string
	EndTime   string
	// EventID is set when the form edits an existing event.
	EventID string
}

// ModalOpener opens the host's create/edit form.
type ModalOpener interface {
	OpenEventModal(req ModalRequest)
}

// ModalOpenerFunc adapts a function to ModalOpener.
type ModalOpenerFunc func(req ModalRequest)

func (f ModalOpenerFunc) OpenEventModal(req ModalRequest) {
	f(req)
}

// SaveError reports a rejected or failed save after the optimistic change was reverted.
type SaveError struct {
	EventID string
	Kind    MutationKind
	Message string
	Err     error
}

func (e *SaveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calendar: %s %s: %v", e.Kind, e.EventID, e.Err)
	}
	return fmt.Sprintf("calendar: %s %s: %s", e.Kind, e.EventID, e.Message)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// saveQueue runs saves for the same event one at a time in arrival order.
type saveQueue struct {
	mu    sync.Mutex
	slots map[string]*saveSlot
}

type saveSlot struct {
	lock    chan struct{}
	waiters int
}

func newSaveQueue() *saveQueue {
	return &saveQueue{slots: make(map[string]*saveSlot)}
}

// Do waits for earlier saves of key to finish, then runs fn.
func (q *saveQueue) Do(ctx context.Context, key string, fn func()) error {
	q.mu.Lock()
	slot, ok := q.slots[key]
	if !ok {
		slot = &saveSlot{lock: make(chan struct{}, 1)}
		q.slots[key] = slot
	}
	slot.waiters++
	q.mu.Unlock()

	defer q.release(key, slot)

	select {
	case slot.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-slot.lock }()
	fn()
	return nil
}

func (q *saveQueue) release(key string, slot *saveSlot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(q.slots, key)
	}
}

// Pending returns the number of saves queued or running for key.
func (q *saveQueue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slot, ok := q.slots[key]; ok {
		return slot.waiters
	}
	return 0
}

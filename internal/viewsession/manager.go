// Package viewsession keeps interactive calendar views alive on the server.
//
// Each view wraps a calendar.Calendar loaded with the jobs of its visible
// range. Clients drive it with pointer and navigation requests; the manager
// evicts views nobody has touched within the idle TTL and finalizes drags
// whose pointer-up never arrived.
package viewsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// ErrViewNotFound is returned for unknown or evicted view ids.
var ErrViewNotFound = errors.New("viewsession: view not found")

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultDragTimeout = time.Minute
)

// EventSource loads the events shown in a range.
type EventSource interface {
	CalendarEvents(ctx context.Context, from, to time.Time, employeeIDs []string) ([]calendar.CalendarEvent, error)
}

// ResourceSource lists the day view resource columns.
type ResourceSource interface {
	Resources(ctx context.Context) ([]calendar.Resource, error)
}

// Config carries the presentation settings shared by every view.
type Config struct {
	Location    *time.Location
	ZoomLevels  []float64
	DefaultZoom float64
	Office      *calendar.OfficeHours
	Styles      calendar.StyleTable
	Saver       calendar.Saver
	IdleTTL     time.Duration
	// DragTimeout finalizes gestures left open longer than this.
	DragTimeout time.Duration
}

// Params opens a view.
type Params struct {
	View calendar.View
	Date time.Time
	Zoom float64
}

// Manager is the registry of open views.
type Manager struct {
	events    EventSource
	resources ResourceSource
	cfg       Config
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger

	mu    sync.Mutex
	views map[string]*Session
}

// NewManager constructs a Manager logging through slog.Default.
func NewManager(events EventSource, resources ResourceSource, cfg Config, now func() time.Time) *Manager {
	return NewManagerWithLogger(events, resources, cfg, now, nil)
}

// NewManagerWithLogger constructs a Manager with an explicit logger.
func NewManagerWithLogger(events EventSource, resources ResourceSource, cfg Config, now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.DragTimeout <= 0 {
		cfg.DragTimeout = DefaultDragTimeout
	}
	return &Manager{
		events:    events,
		resources: resources,
		cfg:       cfg,
		now:       now,
		newID:     uuid.NewString,
		logger:    logger.With("component", "viewsession"),
		views:     make(map[string]*Session),
	}
}

// Create opens a view and loads the events of its visible range.
func (m *Manager) Create(ctx context.Context, p Params) (*Session, error) {
	resources, err := m.resources.Resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewsession: load resources: %w", err)
	}

	s := &Session{
		id:      m.newID(),
		manager: m,
		touched: m.now(),
	}
	zoom := p.Zoom
	if zoom <= 0 {
		zoom = m.cfg.DefaultZoom
	}
	s.cal = calendar.New(nil, calendar.Options{
		Date:       p.Date,
		View:       p.View,
		Location:   m.cfg.Location,
		ZoomLevels: m.cfg.ZoomLevels,
		Zoom:       zoom,
		Office:     m.cfg.Office,
		Styles:     m.cfg.Styles,
		Resources:  resources,
		Saver:      m.cfg.Saver,
		Notifier:   calendar.NotifierFunc(s.pushNotification),
		Modals:     calendar.ModalOpenerFunc(s.pushModal),
		Clock:      m.now,
		Logger:     m.logger.With("view_id", s.id),
	})
	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.views[s.id] = s
	m.mu.Unlock()

	m.logger.Info("view opened", "view_id", s.id, "view", p.View.String(), "date", s.cal.Date().Format(time.DateOnly))
	return s, nil
}

// Get returns an open view and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.views[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrViewNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close finalizes any open gesture and forgets the view.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	s.finalize(ctx)
	return nil
}

// IDs lists the open views in lexical order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.views))
	for id := range m.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of open views.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Finalized int
	Evicted   int
}

// Sweep finalizes drags idle past the drag timeout and evicts views idle past the TTL.
func (m *Manager) Sweep(ctx context.Context) SweepResult {
	now := m.now()

	m.mu.Lock()
	var stale, expired []*Session
	for id, s := range m.views {
		idle := now.Sub(s.lastTouched())
		switch {
		case idle >= m.cfg.IdleTTL:
			expired = append(expired, s)
			delete(m.views, id)
		case idle >= m.cfg.DragTimeout:
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	var res SweepResult
	for _, s := range stale {
		if s.finalize(ctx) {
			res.Finalized++
		}
	}
	for _, s := range expired {
		if s.finalize(ctx) {
			res.Finalized++
		}
		res.Evicted++
	}
	if res.Finalized > 0 || res.Evicted > 0 {
		m.logger.Info("views swept", "finalized", res.Finalized, "evicted", res.Evicted, "open", m.Len())
	}
	return res
}

// RefreshAll reloads every open view, for example after external feeds changed.
func (m *Manager) RefreshAll(ctx context.Context) error {
	m.mu.Lock()
	views := make([]*Session, 0, len(m.views))
	for _, s := range m.views {
		views = append(views, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range views {
		if err := s.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

// VisibleRange returns the half-open interval of days a view shows.
func VisibleRange(view calendar.View, date time.Time) (time.Time, time.Time) {
	switch view {
	case calendar.ViewMonth:
		first := calendar.StartOfMonth(date)
		from := calendar.StartOfWeek(first)
		to := calendar.AddDays(calendar.StartOfWeek(calendar.AddDays(calendar.AddMonths(first, 1), -1)), 7)
		return from, to
	case calendar.ViewDay:
		day := calendar.StartOfDay(date)
		return day, calendar.AddDays(day, 1)
	default:
		week := calendar.StartOfWeek(date)
		return week, calendar.AddDays(week, 7)
	}
}

package calendar

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultZoomLevels are the pixels-per-hour steps offered by ZoomIn and ZoomOut.
var DefaultZoomLevels = []float64{30, 45, 60, 90, 120}

// DefaultZoom is used when Options.Zoom is unset.
const DefaultZoom = 60.0

// Options configures a Calendar.
type Options struct {
	Date       time.Time
	View       View
	Location   *time.Location
	ZoomLevels []float64
	Zoom       float64
	Office     *OfficeHours
	Styles     StyleTable
	Resources  []Resource

	ColumnWidth  float64
	GutterWidth  float64
	HeaderHeight float64

	Saver    Saver
	Notifier Notifier
	Modals   ModalOpener
	// OnChange receives the display list after every committed or reverted change.
	OnChange func([]CalendarEvent)
	Clock    func() time.Time
	Logger   *slog.Logger
}

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureSelect
	gestureMove
	gestureResize
)

func (k gestureKind) String() string {
	switch k {
	case gestureSelect:
		return "select"
	case gestureMove:
		return "move"
	case gestureResize:
		return "resize"
	}
	return ""
}

// overlayEntry is an optimistic change awaiting its save. gen ties the entry
// to the save that created it so only that save can retire it.
type overlayEntry struct {
	event   CalendarEvent
	deleted bool
	gen     uint64
}

// Calendar owns view state, the committed event set and the optimistic
// overlay, and routes pointer input to the selection, move and resize engines.
// It is safe for concurrent use.
type Calendar struct {
	mu sync.Mutex

	date       time.Time
	view       View
	location   *time.Location
	zoomLevels []float64
	zoomIdx    int
	office     *OfficeHours
	styles     StyleTable
	resources  []Resource
	geometry   LayoutOptions

	committed map[string]CalendarEvent
	overlay   map[string]overlayEntry
	gen       uint64

	gesture   gestureKind
	selection SelectionEngine
	move      MoveEngine
	resize    ResizeEngine
	resolver  ColumnResolver

	queue    *saveQueue
	saver    Saver
	notifier Notifier
	modals   ModalOpener
	onChange func([]CalendarEvent)
	clock    func() time.Time
	logger   *slog.Logger
}

// New builds a Calendar over the initial events.
func New(events []CalendarEvent, opts Options) *Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	levels := slices.Clone(opts.ZoomLevels)
	if len(levels) == 0 {
		levels = slices.Clone(DefaultZoomLevels)
	}
	slices.Sort(levels)
	date := opts.Date
	if date.IsZero() {
		date = clock()
	}

	c := &Calendar{
		date:       StartOfDay(date.In(loc)),
		view:       opts.View,
		location:   loc,
		zoomLevels: levels,
		zoomIdx:    nearestLevel(levels, opts.Zoom),
		styles:     opts.Styles,
		resources:  slices.Clone(opts.Resources),
		geometry: LayoutOptions{
			ColumnWidth:  opts.ColumnWidth,
			GutterWidth:  opts.GutterWidth,
			HeaderHeight: opts.HeaderHeight,
		},
		committed: make(map[string]CalendarEvent, len(events)),
		overlay:   make(map[string]overlayEntry),
		queue:     newSaveQueue(),
		saver:     opts.Saver,
		notifier:  opts.Notifier,
		modals:    opts.Modals,
		onChange:  opts.OnChange,
		clock:     clock,
		logger:    logger.With(slog.String("component", "calendar")),
	}
	if opts.Office != nil && opts.Office.Valid() {
		office := *opts.Office
		c.office = &office
	}
	for _, e := range events {
		c.committed[e.ID] = e.Clone()
	}
	return c
}

func nearestLevel(levels []float64, zoom float64) int {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	best := 0
	for i, l := range levels {
		if abs(l-zoom) < abs(levels[best]-zoom) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Date returns the anchor date of the visible range.
func (c *Calendar) Date() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

// View returns the display mode.
func (c *Calendar) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Zoom returns the current pixels-per-hour.
func (c *Calendar) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoomLevels[c.zoomIdx]
}

// SetView switches the display mode. An in-flight selection is discarded.
func (c *Calendar) SetView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
	c.dropSelectionLocked()
}

// SetDate moves the visible range to contain t.
func (c *Calendar) SetDate(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = StartOfDay(t.In(c.location))
	c.dropSelectionLocked()
}

// Prev shifts the visible range back by one month, week or day.
func (c *Calendar) Prev() { c.shift(-1) }

// Next shifts the visible range forward by one month, week or day.
func (c *Calendar) Next() { c.shift(1) }

// Today jumps to the current date.
func (c *Calendar) Today() {
	c.SetDate(c.clock())
}

func (c *Calendar) shift(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.view {
	case ViewMonth:
		c.date = AddMonths(c.date, n)
	case ViewWeek:
		c.date = AddDays(c.date, 7*n)
	default:
		c.date = AddDays(c.date, n)
	}
	c.dropSelectionLocked()
}

// ZoomIn steps to the next larger zoom level and reports whether it changed.
func (c *Calendar) ZoomIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zoomIdx >= len(c.zoomLevels)-1 {
		return false
	}
	c.zoomIdx++
	return true
}

// ZoomOut steps to the next smaller zoom level and reports whether it changed.
func (c *Calendar) ZoomOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zoomIdx == 0 {
		return false
	}
	c.zoomIdx--
	return true
}

// SetResources replaces the day view resource columns.
func (c *Calendar) SetResources(resources []Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = slices.Clone(resources)
}

// Replace swaps the committed event set for a fresh copy from the host.
// Optimistic changes still awaiting their saves stay on top.
func (c *Calendar) Replace(events []CalendarEvent) {
	c.mu.Lock()
	c.committed = make(map[string]CalendarEvent, len(events))
	for _, e := range events {
		c.committed[e.ID] = e.Clone()
	}
	c.mu.Unlock()
	c.emitChange()
}

// Events returns the display list: committed events with optimistic changes
// and the live drag candidate applied.
func (c *Calendar) Events() []CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayLocked()
}

// Event looks up one event in the display list.
func (c *Calendar) Event(id string) (CalendarEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayEventLocked(id)
}

// Pending reports whether id has an unsaved optimistic change.
func (c *Calendar) Pending(id string) bool {
	c.mu.Lock()
	_, ok := c.overlay[id]
	c.mu.Unlock()
	return ok || c.queue.Pending(id) > 0
}

func (c *Calendar) displayLocked() []CalendarEvent {
	merged := maps.Clone(c.committed)
	for id, o := range c.overlay {
		if o.deleted {
			delete(merged, id)
			continue
		}
		merged[id] = o.event
	}
	if live, ok := c.liveCandidateLocked(); ok {
		merged[live.ID] = live
	}
	out := make([]CalendarEvent, 0, len(merged))
	for _, e := range merged {
		out = append(out, e.Clone())
	}
	return SortEvents(out)
}

func (c *Calendar) displayEventLocked(id string) (CalendarEvent, bool) {
	if live, ok := c.liveCandidateLocked(); ok && live.ID == id {
		return live.Clone(), true
	}
	if o, ok := c.overlay[id]; ok {
		if o.deleted {
			return CalendarEvent{}, false
		}
		return o.event.Clone(), true
	}
	e, ok := c.committed[id]
	return e.Clone(), ok
}

func (c *Calendar) liveCandidateLocked() (CalendarEvent, bool) {
	switch c.gesture {
	case gestureMove:
		return c.move.Event()
	case gestureResize:
		return c.resize.Event()
	}
	return CalendarEvent{}, false
}

func (c *Calendar) draggingLocked(id string) bool {
	ev, ok := c.liveCandidateLocked()
	return ok && ev.ID == id
}

func (c *Calendar) gridLocked() Grid {
	return NewGrid(c.zoomLevels[c.zoomIdx], c.office)
}

func (c *Calendar) layoutOptionsLocked() LayoutOptions {
	opts := c.geometry
	opts.Grid = c.gridLocked()
	opts.Styles = c.styles
	opts.Now = c.clock().In(c.location)
	return opts
}

func (c *Calendar) timeGridLocked(events []CalendarEvent) TimeGridLayout {
	opts := c.layoutOptionsLocked()
	if c.view == ViewDay {
		return LayoutDay(c.date, c.resources, events, opts)
	}
	return LayoutWeek(c.date, events, opts)
}

// Snapshot is everything a renderer needs to draw the current state.
type Snapshot struct {
	View      View
	Date      time.Time
	Zoom      float64
	Gesture   string
	TimeGrid  *TimeGridLayout
	Month     *MonthLayout
	Selection *SelectionRange
}

// Layout computes the current view.
func (c *Calendar) Layout() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.displayLocked()
	snap := Snapshot{
		View:    c.view,
		Date:    c.date,
		Zoom:    c.zoomLevels[c.zoomIdx],
		Gesture: c.gesture.String(),
	}
	if c.view == ViewMonth {
		month := LayoutMonth(c.date, events, c.clock().In(c.location))
		snap.Month = &month
		return snap
	}

	grid := c.timeGridLocked(events)
	live, dragging := c.liveCandidateLocked()
	for i := range grid.Boxes {
		id := grid.Boxes[i].Event.ID
		_, optimistic := c.overlay[id]
		grid.Boxes[i].Pending = optimistic || (dragging && live.ID == id)
	}
	snap.TimeGrid = &grid
	if r, ok := c.selection.Current(); ok {
		snap.Selection = &r
	}
	return snap
}

// OutcomeKind names the gesture an Outcome finished.
type OutcomeKind string

const (
	OutcomeNone      OutcomeKind = "none"
	OutcomeSelection OutcomeKind = "selection"
	OutcomeMove      OutcomeKind = "move"
	OutcomeResize    OutcomeKind = "resize"
)

// Outcome describes how a gesture ended.
type Outcome struct {
	Kind      OutcomeKind
	Selection *Selection
	Modal     *ModalRequest
	// Event is the event as displayed after the gesture settled.
	Event    *CalendarEvent
	Saved    bool
	Reverted bool
}

// Active reports whether a gesture is in progress.
func (c *Calendar) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesture != gestureNone
}

// PointerDown starts a gesture at p. When target is nil the current layout is
// hit-tested. A gesture left open by a lost pointer-up is finalized first.
func (c *Calendar) PointerDown(ctx context.Context, p Pointer, target *Target) (Target, error) {
	var stale error
	if c.Active() {
		_, stale = c.Cancel(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ViewMonth {
		return Target{Kind: TargetNone}, stale
	}

	layout := c.timeGridLocked(c.displayLocked())
	c.resolver = layout.Resolver()
	t := layout.HitTest(p)
	if target != nil {
		t = *target
	}
	grid := c.gridLocked()

	switch t.Kind {
	case TargetEmpty:
		if t.Column.Day.IsZero() {
			column, ok := c.resolver.ResolveColumn(p.X, p.Y)
			if !ok {
				return Target{Kind: TargetNone}, stale
			}
			t.Column = column
		}
		c.selection.Begin(grid, p, t.Column)
		c.gesture = gestureSelect
	case TargetEvent, TargetStartEdge, TargetEndEdge:
		ev, ok := c.displayEventLocked(t.EventID)
		if !ok {
			return t, errors.Join(stale, ErrUnknownEvent)
		}
		if ev.ReadOnly() {
			return t, stale
		}
		switch t.Kind {
		case TargetEvent:
			c.move.Begin(grid, ev, p)
			c.gesture = gestureMove
		case TargetStartEdge:
			c.resize.Begin(grid, ev, EdgeStart, p)
			c.gesture = gestureResize
		default:
			c.resize.Begin(grid, ev, EdgeEnd, p)
			c.gesture = gestureResize
		}
	}
	return t, stale
}

// PointerMove feeds a pointer position to the active engine.
func (c *Calendar) PointerMove(p Pointer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.gesture {
	case gestureSelect:
		c.selection.Move(p, c.resolver)
	case gestureMove:
		c.move.Move(p, c.resolver)
	case gestureResize:
		c.resize.Move(p)
	}
}

// PointerUp finishes the active gesture at p. A selection opens the create
// form; a changed move or resize is applied optimistically and saved, and is
// reverted if the save fails.
func (c *Calendar) PointerUp(ctx context.Context, p Pointer) (Outcome, error) {
	return c.finish(ctx, &p)
}

// Cancel force-finalizes the active gesture without a final pointer
// position, as on window blur. Selections are discarded; moves and resizes
// commit at their last candidate.
func (c *Calendar) Cancel(ctx context.Context) (Outcome, error) {
	return c.finish(ctx, nil)
}

func (c *Calendar) finish(ctx context.Context, p *Pointer) (Outcome, error) {
	c.mu.Lock()
	kind := c.gesture
	c.gesture = gestureNone
	resolver := c.resolver
	c.resolver = nil

	var (
		g  Gesture
		ok bool
	)
	switch kind {
	case gestureSelect:
		if p == nil {
			c.selection.Reset()
			c.mu.Unlock()
			return Outcome{Kind: OutcomeNone}, nil
		}
		sel, done := c.selection.End(*p, resolver)
		c.mu.Unlock()
		if !done {
			return Outcome{Kind: OutcomeNone}, nil
		}
		req := modalForSelection(sel)
		c.openModal(req)
		return Outcome{Kind: OutcomeSelection, Selection: &sel, Modal: &req}, nil
	case gestureMove:
		if p != nil {
			c.move.Move(*p, resolver)
		}
		g, ok = c.move.Commit()
	case gestureResize:
		if p != nil {
			c.resize.Move(*p)
		}
		g, ok = c.resize.Commit()
	default:
		c.selection.Reset()
		c.move.Reset()
		c.resize.Reset()
		c.mu.Unlock()
		return Outcome{Kind: OutcomeNone}, nil
	}

	out := Outcome{Kind: OutcomeMove}
	if kind == gestureResize {
		out.Kind = OutcomeResize
	}
	if !ok {
		c.mu.Unlock()
		return out, nil
	}
	if !g.Changed() {
		c.mu.Unlock()
		original := g.Original
		out.Event = &original
		if kind == gestureMove && !g.Dragged && p != nil {
			req := modalForEvent(original)
			c.openModal(req)
			out.Modal = &req
		}
		return out, nil
	}

	gen := c.applyLocked(g.Final, false)
	c.mu.Unlock()
	c.emitChange()

	settled, err := c.persist(ctx, Mutation{Kind: MutationUpdate, Event: g.Final}, gen)
	out.Event = settled
	out.Saved = err == nil
	out.Reverted = err != nil
	return out, err
}

// Create adds ev optimistically and saves it. An empty ID gets a temporary
// one that is replaced if the Saver returns the stored event.
func (c *Calendar) Create(ctx context.Context, ev CalendarEvent) (CalendarEvent, error) {
	if ev.ID == "" {
		ev.ID = "tmp-" + uuid.NewString()
	}
	c.mu.Lock()
	gen := c.applyLocked(ev, false)
	c.mu.Unlock()
	c.emitChange()

	settled, err := c.persist(ctx, Mutation{Kind: MutationCreate, Event: ev}, gen)
	if err != nil {
		return CalendarEvent{}, err
	}
	return *settled, nil
}

// Update replaces an existing event optimistically and saves it.
func (c *Calendar) Update(ctx context.Context, ev CalendarEvent) (CalendarEvent, error) {
	c.mu.Lock()
	current, ok := c.displayEventLocked(ev.ID)
	if !ok {
		c.mu.Unlock()
		return CalendarEvent{}, ErrUnknownEvent
	}
	if current.ReadOnly() {
		c.mu.Unlock()
		return CalendarEvent{}, ErrReadOnlyEvent
	}
	if c.draggingLocked(ev.ID) {
		c.mu.Unlock()
		return CalendarEvent{}, ErrGestureActive
	}
	gen := c.applyLocked(ev, false)
	c.mu.Unlock()
	c.emitChange()

	settled, err := c.persist(ctx, Mutation{Kind: MutationUpdate, Event: ev}, gen)
	if err != nil {
		return CalendarEvent{}, err
	}
	return *settled, nil
}

// Delete hides an event optimistically and asks the Saver to remove it.
func (c *Calendar) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	current, ok := c.displayEventLocked(id)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownEvent
	}
	if current.ReadOnly() {
		c.mu.Unlock()
		return ErrReadOnlyEvent
	}
	if c.draggingLocked(id) {
		c.mu.Unlock()
		return ErrGestureActive
	}
	gen := c.applyLocked(current, true)
	c.mu.Unlock()
	c.emitChange()

	_, err := c.persist(ctx, Mutation{Kind: MutationDelete, Event: current}, gen)
	return err
}

// OpenCreateModal opens the create form pre-filled from a selection.
func (c *Calendar) OpenCreateModal(sel Selection) ModalRequest {
	req := modalForSelection(sel)
	c.openModal(req)
	return req
}

// OpenEditModal opens the edit form pre-filled from an event's current position.
func (c *Calendar) OpenEditModal(id string) (ModalRequest, error) {
	ev, ok := c.Event(id)
	if !ok {
		return ModalRequest{}, ErrUnknownEvent
	}
	req := modalForEvent(ev)
	c.openModal(req)
	return req, nil
}

func (c *Calendar) applyLocked(ev CalendarEvent, deleted bool) uint64 {
	c.gen++
	c.overlay[ev.ID] = overlayEntry{event: ev.Clone(), deleted: deleted, gen: c.gen}
	return c.gen
}

// persist runs the save behind any earlier save of the same event, then
// settles the overlay entry created under gen. It returns the event as
// displayed afterwards, or nil when it is gone.
func (c *Calendar) persist(ctx context.Context, m Mutation, gen uint64) (*CalendarEvent, error) {
	id := m.Event.ID
	result := SaveResult{Success: true}
	var saveErr error
	if c.saver != nil {
		err := c.queue.Do(ctx, id, func() {
			result, saveErr = c.saver.Save(ctx, m)
		})
		if err != nil {
			saveErr = err
		}
	}

	var failure *SaveError
	switch {
	case saveErr != nil:
		failure = &SaveError{EventID: id, Kind: m.Kind, Message: saveErr.Error(), Err: saveErr}
	case !result.Success:
		msg := result.Error
		if msg == "" {
			msg = "save rejected"
		}
		failure = &SaveError{EventID: id, Kind: m.Kind, Message: msg}
	}

	c.mu.Lock()
	if o, ok := c.overlay[id]; ok && o.gen == gen {
		delete(c.overlay, id)
	}
	finalID := id
	if failure == nil {
		switch m.Kind {
		case MutationDelete:
			delete(c.committed, id)
		default:
			stored := m.Event.Clone()
			if result.Event != nil {
				stored = result.Event.Clone()
			}
			if stored.ID == "" {
				stored.ID = id
			}
			if stored.ID != id {
				delete(c.committed, id)
				finalID = stored.ID
			}
			c.committed[stored.ID] = stored
		}
	}
	var settled *CalendarEvent
	if ev, ok := c.displayEventLocked(finalID); ok {
		settled = &ev
	}
	c.mu.Unlock()
	c.emitChange()

	if failure != nil {
		c.logger.Warn("calendar save failed",
			slog.String("event_id", id),
			slog.String("mutation", string(m.Kind)),
			slog.String("error", failure.Message),
		)
		c.notify(NotifyError, failureTitle(m.Kind), failure.Message)
		return settled, failure
	}

	c.logger.Debug("calendar save succeeded",
		slog.String("event_id", finalID),
		slog.String("mutation", string(m.Kind)),
	)
	switch m.Kind {
	case MutationCreate:
		c.notify(NotifySuccess, "Job created", m.Event.Title)
	case MutationDelete:
		c.notify(NotifySuccess, "Job deleted", m.Event.Title)
	}
	return settled, nil
}

func failureTitle(kind MutationKind) string {
	switch kind {
	case MutationCreate:
		return "Could not create job"
	case MutationDelete:
		return "Could not delete job"
	}
	return "Could not save job"
}

func (c *Calendar) dropSelectionLocked() {
	if c.gesture == gestureSelect {
		c.selection.Reset()
		c.gesture = gestureNone
		c.resolver = nil
	}
}

func (c *Calendar) emitChange() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Events())
}

func (c *Calendar) notify(kind NotificationKind, title, message string) {
	if c.notifier != nil {
		c.notifier.Notify(kind, title, message)
	}
}

func (c *Calendar) openModal(req ModalRequest) {
	if c.modals != nil {
		c.modals.OpenEventModal(req)
	}
}

func modalForSelection(sel Selection) ModalRequest {
	start := sel.Range.Start.Time()
	req := ModalRequest{
		Date:      StartOfDay(start),
		EndDate:   StartOfDay(start),
		StartTime: start.Format("15:04"),
	}
	if sel.Dragged {
		end := sel.Range.End.Time()
		req.EndDate = StartOfDay(end)
		req.EndTime = end.Format("15:04")
	}
	return req
}

func modalForEvent(ev CalendarEvent) ModalRequest {
	end := ev.EffectiveEnd()
	return ModalRequest{
		Date:      StartOfDay(ev.Start),
		EndDate:   StartOfDay(end),
		StartTime: ev.Start.Format("15:04"),
		EndTime:   end.Format("15:04"),
		EventID:   ev.ID,
	}
}

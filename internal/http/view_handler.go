package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/render"
	"github.com/example/cleaning-scheduler/internal/viewsession"
)

type viewManager interface {
	Create(ctx context.Context, p viewsession.Params) (*viewsession.Session, error)
	Get(id string) (*viewsession.Session, error)
	Close(ctx context.Context, id string) error
}

// ViewHandler serves the interactive /views endpoints.
type ViewHandler struct {
	views     viewManager
	location  *time.Location
	now       func() time.Time
	render    render.Options
	responder responder
	logger    *slog.Logger
}

func NewViewHandler(views viewManager, location *time.Location, now func() time.Time, renderOpts render.Options, logger *slog.Logger) *ViewHandler {
	base := logging.OrDefault(logger)
	if location == nil {
		location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &ViewHandler{views: views, location: location, now: now, render: renderOpts, responder: newResponder(base), logger: base}
}

func (h *ViewHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return routeLogger(r, h.logger, "ViewHandler", "view_id", operation, attrs...)
}

func (h *ViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.views == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	params := viewsession.Params{View: calendar.ViewWeek, Zoom: req.Zoom}
	if strings.TrimSpace(req.View) != "" {
		view, err := calendar.ParseView(req.View)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		params.View = view
	}
	date, err := parseDateIn(req.Date, h.location, h.now)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	params.Date = date

	session, err := h.views.Create(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r, "Create", "view_id", session.ID()).InfoContext(r.Context(), "view created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, viewResponse{ID: session.ID(), Snapshot: toSnapshotDTO(session.Snapshot())})
}

func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, viewResponse{ID: session.ID(), Snapshot: toSnapshotDTO(session.Snapshot())})
}

func (h *ViewHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.views == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.views.Close(r.Context(), r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ViewHandler) Pointer(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	res, err := session.Pointer(r.Context(), in)
	if err != nil {
		h.log(r, "Pointer", "type", string(in.Type)).WarnContext(r.Context(), "pointer event failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toViewResponse(session.ID(), res))
}

func (h *ViewHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req navRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	in := viewsession.NavInput{Action: viewsession.NavAction(strings.ToLower(strings.TrimSpace(req.Action)))}
	switch in.Action {
	case viewsession.NavView:
		view, err := calendar.ParseView(req.View)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		in.View = view
	case viewsession.NavDate:
		date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.Date), h.location)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		in.Date = date
	case viewsession.NavPrev, viewsession.NavNext, viewsession.NavToday, viewsession.NavZoomIn, viewsession.NavZoomOut:
	default:
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("Unknown navigation action %q.", req.Action))
		return
	}

	res, err := session.Navigate(r.Context(), in)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toViewResponse(session.ID(), res))
}

// CreateEvent saves a job from the view's create form. The job shows at once
// and disappears again with a notification if the save is rejected.
func (h *ViewHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	patch, ok := h.decodeEventPatch(w, r)
	if !ok {
		return
	}
	if patch.Start == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventTime)
		return
	}

	res, err := session.CreateEvent(r.Context(), patch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if res.Event == nil {
		status = http.StatusOK
	} else {
		h.log(r, "CreateEvent", "event_id", res.Event.ID).InfoContext(r.Context(), "event created from view")
	}
	h.responder.writeJSON(r.Context(), w, status, toViewResponse(session.ID(), res))
}

// UpdateEvent saves the edit form of an event shown in the view.
func (h *ViewHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	patch, ok := h.decodeEventPatch(w, r)
	if !ok {
		return
	}
	res, err := session.UpdateEvent(r.Context(), strings.TrimSpace(r.PathValue("eventID")), patch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r, "UpdateEvent").InfoContext(r.Context(), "event updated from view", "notifications", len(res.Notifications))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toViewResponse(session.ID(), res))
}

func (h *ViewHandler) decodeEventPatch(w http.ResponseWriter, r *http.Request) (viewsession.EventPatch, bool) {
	var req viewEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return viewsession.EventPatch{}, false
	}
	patch, err := req.toPatch(h.location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventTime)
		return viewsession.EventPatch{}, false
	}
	return patch, true
}

func (h *ViewHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	eventID := strings.TrimSpace(r.PathValue("eventID"))
	res, err := session.DeleteEvent(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r, "DeleteEvent").InfoContext(r.Context(), "event deleted from view")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toViewResponse(session.ID(), res))
}

// Snapshot renders the view as a PNG image.
func (h *ViewHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.PNG(&buf, session.Snapshot(), h.render); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *ViewHandler) session(w http.ResponseWriter, r *http.Request) (*viewsession.Session, bool) {
	if h == nil || h.views == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidViewID)
		return nil, false
	}
	session, err := h.views.Get(id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, false
	}
	return session, true
}

type createViewRequest struct {
	View string  `json:"view"`
	Date string  `json:"date"`
	Zoom float64 `json:"zoom"`
}

type navRequest struct {
	Action string `json:"action"`
	View   string `json:"view"`
	Date   string `json:"date"`
}

type viewEventRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Label       *string        `json:"label"`
	Start       *string        `json:"start"`
	End         *string        `json:"end"`
	Confirmed   *bool          `json:"confirmed"`
	Metadata    map[string]any `json:"metadata"`
}

// toPatch parses RFC 3339 times into loc. An empty end clears it.
func (req viewEventRequest) toPatch(loc *time.Location) (viewsession.EventPatch, error) {
	patch := viewsession.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Label:       req.Label,
		Confirmed:   req.Confirmed,
		Metadata:    calendar.Metadata(req.Metadata),
	}
	if req.Start != nil {
		start, err := parseEventTime(*req.Start, loc)
		if err != nil {
			return patch, err
		}
		patch.Start = &start
	}
	if req.End != nil {
		if strings.TrimSpace(*req.End) == "" {
			patch.ClearEnd = true
		} else {
			end, err := parseEventTime(*req.End, loc)
			if err != nil {
				return patch, err
			}
			patch.End = &end
		}
	}
	return patch, nil
}

func parseEventTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

type pointerRequest struct {
	Type   string     `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Target *targetDTO `json:"target"`
}

func (p pointerRequest) toInput() (viewsession.PointerInput, error) {
	kind, err := viewsession.ParsePointerType(p.Type)
	if err != nil {
		return viewsession.PointerInput{}, fmt.Errorf("Unknown pointer type %q.", p.Type)
	}
	in := viewsession.PointerInput{Type: kind, Point: calendar.Pointer{X: p.X, Y: p.Y}}
	if p.Target != nil {
		targetKind, ok := parseTargetKind(p.Target.Kind)
		if !ok {
			return viewsession.PointerInput{}, fmt.Errorf("Unknown target kind %q.", p.Target.Kind)
		}
		in.Target = &calendar.Target{Kind: targetKind, EventID: strings.TrimSpace(p.Target.EventID)}
	}
	return in, nil
}

func parseTargetKind(s string) (calendar.TargetKind, bool) {
	for _, k := range []calendar.TargetKind{
		calendar.TargetNone,
		calendar.TargetEmpty,
		calendar.TargetEvent,
		calendar.TargetStartEdge,
		calendar.TargetEndEdge,
	} {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, true
		}
	}
	return calendar.TargetNone, false
}

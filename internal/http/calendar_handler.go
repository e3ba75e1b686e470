package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/ics"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/spreadsheet"
	"github.com/example/cleaning-scheduler/internal/viewsession"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 10 << 20
)

type calendarSource interface {
	CalendarEvents(ctx context.Context, from, to time.Time, employeeIDs []string) ([]calendar.CalendarEvent, error)
	ListJobs(ctx context.Context, params application.ListJobsParams) ([]application.Job, []application.ConflictWarning, error)
}

type employeeDirectory interface {
	ListEmployees(ctx context.Context) ([]application.Employee, error)
	Resources(ctx context.Context) ([]calendar.Resource, error)
}

type jobImporter interface {
	Import(ctx context.Context, r io.Reader, filename string, employees []application.Employee) (spreadsheet.Report, error)
}

// CalendarSettings carries presentation settings for the stateless calendar endpoints.
type CalendarSettings struct {
	Location    *time.Location
	DefaultZoom float64
	Office      *calendar.OfficeHours
	Styles      calendar.StyleTable
	// Name and Domain label the ICS export.
	Name   string
	Domain string
	Now    func() time.Time
}

// CalendarHandler serves /calendar, /calendar.ics, /export/week.xlsx and /import/jobs.
type CalendarHandler struct {
	source    calendarSource
	employees employeeDirectory
	importer  jobImporter
	settings  CalendarSettings
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(source calendarSource, employees employeeDirectory, importer jobImporter, settings CalendarSettings, logger *slog.Logger) *CalendarHandler {
	base := logging.OrDefault(logger)
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.DefaultZoom <= 0 {
		settings.DefaultZoom = calendar.DefaultZoom
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.Name == "" {
		settings.Name = "Cleaning jobs"
	}
	return &CalendarHandler{
		source:    source,
		employees: employees,
		importer:  importer,
		settings:  settings,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *CalendarHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return routeLogger(r, h.logger, "CalendarHandler", "", operation, attrs...)
}

// Layout computes a day, week or month layout without keeping any state.
func (h *CalendarHandler) Layout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.source == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	view := calendar.ViewWeek
	if v := strings.TrimSpace(q.Get("view")); v != "" {
		parsed, err := calendar.ParseView(v)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		view = parsed
	}
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	zoom := h.settings.DefaultZoom
	if z := strings.TrimSpace(q.Get("zoom")); z != "" {
		parsed, err := strconv.ParseFloat(z, 64)
		if err != nil || parsed <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("Invalid zoom %q.", z))
			return
		}
		zoom = parsed
	}

	from, to := viewsession.VisibleRange(view, date)
	events, err := h.source.CalendarEvents(r.Context(), from, to, parseCSV(q.Get("employees")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	now := h.settings.Now().In(h.settings.Location)
	snap := calendar.Snapshot{View: view, Date: date, Zoom: zoom}
	switch view {
	case calendar.ViewMonth:
		month := calendar.LayoutMonth(date, events, now)
		snap.Month = &month
	default:
		opts := calendar.LayoutOptions{
			Grid:   calendar.NewGrid(zoom, h.settings.Office),
			Styles: h.settings.Styles,
			Now:    now,
		}
		var grid calendar.TimeGridLayout
		if view == calendar.ViewDay {
			resources, err := h.employees.Resources(r.Context())
			if err != nil {
				h.responder.handleServiceError(r.Context(), w, err)
				return
			}
			grid = calendar.LayoutDay(date, resources, events, opts)
		} else {
			grid = calendar.LayoutWeek(date, events, opts)
		}
		snap.TimeGrid = &grid
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSnapshotDTO(snap))
}

// ICS exports internal jobs, with recurring series as RRULEs.
func (h *CalendarHandler) ICS(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.source == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobs, _, err := h.source.ListJobs(r.Context(), application.ListJobsParams{Source: application.SourceInternal})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	events := make([]calendar.CalendarEvent, 0, len(jobs))
	for _, job := range jobs {
		events = append(events, application.JobToEvent(job))
	}

	var buf bytes.Buffer
	err = ics.Export(&buf, events, ics.ExportOptions{
		Name:          h.settings.Name,
		Domain:        h.settings.Domain,
		Now:           h.settings.Now(),
		RecurrenceKey: application.MetaRecurrenceRule,
		LocationKey:   application.MetaAddress,
	})
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	h.log(r, "ICS").InfoContext(r.Context(), "calendar exported", "jobs", len(events))
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="jobs.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ExportWeek writes the Sunday-start week containing ?date= as a workbook.
func (h *CalendarHandler) ExportWeek(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.source == nil || h.employees == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date, err := h.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	weekStart := calendar.StartOfWeek(date)

	events, err := h.source.CalendarEvents(r.Context(), weekStart, calendar.AddDays(weekStart, 7), nil)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	employees, err := h.employees.ListEmployees(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}

	var buf bytes.Buffer
	if err := spreadsheet.ExportWeek(&buf, weekStart, events, names); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jobs-%s.xlsx"`, weekStart.Format(time.DateOnly)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import creates jobs from an uploaded .xlsx or .xls file.
func (h *CalendarHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.importer == nil || h.employees == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingUpload)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingUpload)
		return
	}
	defer file.Close()

	employees, err := h.employees.ListEmployees(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r, "Import", "filename", header.Filename)
	report, err := h.importer.Import(r.Context(), file, header.Filename, employees)
	if err != nil {
		logger.WarnContext(r.Context(), "import rejected", "error", err)
		if errors.Is(err, spreadsheet.ErrEmptyWorkbook) || errors.Is(err, spreadsheet.ErrMissingColumns) {
			h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error()})
			return
		}
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger.InfoContext(r.Context(), "jobs imported", "created", len(report.Created), "errors", len(report.Errors))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, importResponse{
		Created:  report.Created,
		Errors:   report.Errors,
		Warnings: toWarningDTOs(report.Warnings),
	})
}

func (h *CalendarHandler) parseDate(value string) (time.Time, error) {
	return parseDateIn(value, h.settings.Location, h.settings.Now)
}

// parseDateIn reads YYYY-MM-DD in loc; an empty value means today.
func parseDateIn(value string, loc *time.Location, now func() time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return calendar.StartOfDay(now().In(loc)), nil
	}
	return time.ParseInLocation(time.DateOnly, value, loc)
}

type importResponse struct {
	Created  []string               `json:"created"`
	Errors   []spreadsheet.RowError `json:"errors"`
	Warnings []conflictWarningDTO   `json:"warnings,omitempty"`
}

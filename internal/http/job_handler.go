package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/application"
)

type jobService interface {
	CreateJob(ctx context.Context, input application.JobInput) (application.Job, []application.ConflictWarning, error)
	UpdateJob(ctx context.Context, id string, input application.JobInput) (application.Job, []application.ConflictWarning, error)
	DeleteJob(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (application.Job, error)
	ListJobs(ctx context.Context, params application.ListJobsParams) ([]application.Job, []application.ConflictWarning, error)
}

// JobHandler serves /jobs.
type JobHandler struct {
	service   jobService
	responder responder
}

func NewJobHandler(service jobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{service: service, responder: newResponder(logger)}
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	job, warnings, err := h.service.CreateJob(r.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderJob(r.Context(), w, job, warnings, http.StatusCreated)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidJobID)
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderJob(r.Context(), w, job, nil, http.StatusOK)
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidJobID)
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	job, warnings, err := h.service.UpdateJob(r.Context(), jobID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderJob(r.Context(), w, job, warnings, http.StatusOK)
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidJobID)
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobs, warnings, err := h.service.ListJobs(r.Context(), buildListParams(r.URL.Query()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listJobsResponse{
		Jobs:     toJobDTOs(jobs),
		Warnings: toWarningDTOs(warnings),
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *JobHandler) renderJob(ctx context.Context, w http.ResponseWriter, job application.Job, warnings []application.ConflictWarning, status int) {
	payload := jobResponse{
		Job:      toJobDTO(job),
		Warnings: toWarningDTOs(warnings),
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

type jobRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ClientName     string  `json:"client_name"`
	Address        string  `json:"address"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	EmployeeID     *string `json:"employee_id"`
	EventType      string  `json:"event_type"`
	Status         string  `json:"status"`
	PriceCents     int64   `json:"price_cents"`
	Confirmed      *bool   `json:"confirmed"`
	RecurrenceRule *string `json:"recurrence_rule"`
}

func (r jobRequest) toInput() application.JobInput {
	input := application.JobInput{
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		ClientName:     strings.TrimSpace(r.ClientName),
		Address:        strings.TrimSpace(r.Address),
		Start:          parseTime(r.Start),
		EmployeeID:     r.EmployeeID,
		EventType:      strings.TrimSpace(r.EventType),
		Status:         strings.TrimSpace(r.Status),
		PriceCents:     r.PriceCents,
		Confirmed:      r.Confirmed,
		RecurrenceRule: r.RecurrenceRule,
	}
	if end := parseTime(r.End); !end.IsZero() {
		input.End = &end
	}
	return input
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type jobResponse struct {
	Job      jobDTO               `json:"job"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type listJobsResponse struct {
	Jobs     []jobDTO             `json:"jobs"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type jobDTO struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	ClientName     string  `json:"client_name,omitempty"`
	Address        string  `json:"address,omitempty"`
	Start          string  `json:"start"`
	End            *string `json:"end,omitempty"`
	EmployeeID     *string `json:"employee_id,omitempty"`
	EventType      string  `json:"event_type,omitempty"`
	Status         string  `json:"status"`
	PriceCents     int64   `json:"price_cents"`
	Confirmed      *bool   `json:"confirmed,omitempty"`
	Source         string  `json:"source"`
	Feed           string  `json:"feed,omitempty"`
	ExternalUID    *string `json:"external_uid,omitempty"`
	RecurrenceRule *string `json:"recurrence_rule,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toJobDTO(job application.Job) jobDTO {
	dto := jobDTO{
		ID:             job.ID,
		Title:          job.Title,
		Description:    job.Description,
		ClientName:     job.ClientName,
		Address:        job.Address,
		Start:          job.Start.UTC().Format(time.RFC3339Nano),
		EmployeeID:     job.EmployeeID,
		EventType:      job.EventType,
		Status:         job.Status,
		PriceCents:     job.PriceCents,
		Confirmed:      job.Confirmed,
		Source:         job.Source,
		Feed:           job.Feed,
		ExternalUID:    job.ExternalUID,
		RecurrenceRule: job.RecurrenceRule,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.End != nil {
		end := job.End.UTC().Format(time.RFC3339Nano)
		dto.End = &end
	}
	return dto
}

func toJobDTOs(jobs []application.Job) []jobDTO {
	out := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobDTO(job))
	}
	return out
}

type conflictWarningDTO struct {
	JobID      string `json:"job_id"`
	WithJobID  string `json:"with_job_id"`
	Type       string `json:"type"`
	EmployeeID string `json:"employee_id,omitempty"`
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, conflictWarningDTO{
			JobID:      warning.JobID,
			WithJobID:  warning.WithJobID,
			Type:       warning.Type,
			EmployeeID: warning.EmployeeID,
		})
	}
	return out
}

func buildListParams(values url.Values) application.ListJobsParams {
	var params application.ListJobsParams

	if employees := strings.TrimSpace(values.Get("employees")); employees != "" {
		params.EmployeeIDs = parseCSV(employees)
	}
	params.Source = strings.TrimSpace(values.Get("source"))

	if after := parseTime(values.Get("starts_after")); !after.IsZero() {
		params.StartsAfter = &after
	}
	if before := parseTime(values.Get("ends_before")); !before.IsZero() {
		params.EndsBefore = &before
	}

	if day := strings.TrimSpace(values.Get("day")); day != "" {
		if ts, err := time.Parse(time.DateOnly, day); err == nil {
			params.Period = application.ListPeriodDay
			params.PeriodReference = ts
		}
	} else if week := strings.TrimSpace(values.Get("week")); week != "" {
		if ts, err := time.Parse(time.DateOnly, week); err == nil {
			params.Period = application.ListPeriodWeek
			params.PeriodReference = ts
		}
	} else if month := strings.TrimSpace(values.Get("month")); month != "" {
		if ts, err := time.Parse("2006-01", month); err == nil {
			params.Period = application.ListPeriodMonth
			params.PeriodReference = ts
		}
	}

	return params
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

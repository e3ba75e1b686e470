package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/config"
	"github.com/example/cleaning-scheduler/internal/security"
	"github.com/example/cleaning-scheduler/internal/testfixtures"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SQLiteDSN = filepath.Join(t.TempDir(), "scheduler.db")
	cfg.Timezone = "UTC"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	clock := testfixtures.NewClock(monday.Add(8 * time.Hour))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger, clock.NowFunc())
	if err != nil {
		t.Fatalf("newApp returned error: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestAppServesJobsAndLayouts(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := call(t, a.handler, http.MethodPost, "/employees", map[string]any{"name": "Alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create employee: %d %s", rec.Code, rec.Body.String())
	}
	var employee struct {
		Employee struct {
			ID string `json:"id"`
		} `json:"employee"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &employee); err != nil {
		t.Fatalf("decode employee: %v", err)
	}

	job := map[string]any{
		"title":       "Office clean",
		"start":       "2024-03-04T09:00:00Z",
		"end":         "2024-03-04T11:00:00Z",
		"employee_id": employee.Employee.ID,
		"event_type":  "regular",
		"price_cents": 12000,
	}
	if rec := call(t, a.handler, http.MethodPost, "/jobs", job); rec.Code != http.StatusCreated {
		t.Fatalf("create job: %d %s", rec.Code, rec.Body.String())
	}

	job["title"] = "Window wash"
	job["start"] = "2024-03-04T10:00:00Z"
	rec = call(t, a.handler, http.MethodPost, "/jobs", job)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create overlapping job: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"warnings"`) {
		t.Fatalf("expected a double-booking warning, got %s", rec.Body.String())
	}

	rec = call(t, a.handler, http.MethodGet, "/calendar?view=day&date=2024-03-04", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("day layout: %d %s", rec.Code, rec.Body.String())
	}
	var layout struct {
		TimeGrid struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
			Boxes []struct {
				Conflict bool `json:"conflict"`
			} `json:"boxes"`
		} `json:"time_grid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &layout); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if len(layout.TimeGrid.Columns) != 2 || layout.TimeGrid.Columns[0].Name != "Alice" {
		t.Fatalf("expected Alice plus the unassigned column, got %+v", layout.TimeGrid.Columns)
	}
	if len(layout.TimeGrid.Boxes) != 2 || !layout.TimeGrid.Boxes[0].Conflict {
		t.Fatalf("expected two conflicting boxes, got %+v", layout.TimeGrid.Boxes)
	}

	rec = call(t, a.handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAppRequiresBasicAuthWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	hash, err := security.HashPassword("s3cret", security.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	cfg.Auth = config.AuthConfig{Username: "office", PasswordHash: hash}
	a := newTestApp(t, cfg)

	if rec := call(t, a.handler, http.MethodGet, "/jobs", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := call(t, a.handler, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected open health check, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.SetBasicAuth("office", "s3cret")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

func TestRefreshFeedsStoresExternalAppointments(t *testing.T) {
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:dentist@example.com",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240305T140000Z",
		"DTEND:20240305T150000Z",
		"SUMMARY:Dentist",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, body)
	}))
	defer feed.Close()

	cfg := testConfig(t)
	cfg.Feeds = []config.FeedConfig{{ID: "personal", Name: "Personal", URL: feed.URL}}
	a := newTestApp(t, cfg)
	ctx := context.Background()

	a.refreshFeeds(ctx)
	a.refreshFeeds(ctx)

	jobs, _, err := a.jobs.ListJobs(ctx, application.ListJobsParams{Source: application.SourceExternal})
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one external appointment, got %d", len(jobs))
	}
	if jobs[0].Title != "Dentist" || jobs[0].Feed != "personal" || !jobs[0].External() {
		t.Fatalf("unexpected appointment %+v", jobs[0])
	}

	rec := call(t, a.handler, http.MethodPut, "/jobs/"+jobs[0].ID, map[string]any{"title": "Mine", "start": "2024-03-05T14:00:00Z"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected external appointments to be read-only, got %d", rec.Code)
	}
}

func TestStartJobsRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.ViewSweep = "every now and then"
	a := newTestApp(t, cfg)

	if _, err := a.startJobs(context.Background()); err == nil {
		t.Fatal("expected an invalid cron schedule to fail")
	}
}

func TestPrintPasswordHash(t *testing.T) {
	var out bytes.Buffer
	if err := printPasswordHash(strings.NewReader("hunter2\n"), &out); err != nil {
		t.Fatalf("printPasswordHash returned error: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := security.VerifyPassword(hash, "hunter2"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if err := printPasswordHash(strings.NewReader("\n"), io.Discard); err == nil {
		t.Fatal("expected an empty password to be rejected")
	}
}

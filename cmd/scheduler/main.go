package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/config"
	httptransport "github.com/example/cleaning-scheduler/internal/http"
	"github.com/example/cleaning-scheduler/internal/ics"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/persistence"
	"github.com/example/cleaning-scheduler/internal/persistence/sqlite"
	"github.com/example/cleaning-scheduler/internal/recurrence"
	"github.com/example/cleaning-scheduler/internal/render"
	"github.com/example/cleaning-scheduler/internal/security"
	"github.com/example/cleaning-scheduler/internal/spreadsheet"
	"github.com/example/cleaning-scheduler/internal/viewsession"
)

// External feeds are synchronized for this window around today.
const (
	feedLookbackDays  = 30
	feedLookaheadDays = 180
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigPath), "path to the YAML configuration file")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this path and exit")
	hashPassword := flag.Bool("hash-password", false, "read a password from stdin, print its argon2id hash and exit")
	flag.Parse()

	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *hashPassword {
		if err := printPasswordHash(os.Stdin, os.Stdout); err != nil {
			bootstrap.Error("failed to hash password", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, cfg); err != nil {
			bootstrap.Error("failed to write configuration", "path", *writeConfig, "error", err)
			os.Exit(1)
		}
		bootstrap.Info("configuration written", "path", *writeConfig)
		return
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger, time.Now)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.startJobs(ctx)
	if err != nil {
		return err
	}
	defer func() {
		<-jobs.Stop().Done()
	}()
	go a.refreshFeeds(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "basic_auth", cfg.BasicAuthEnabled(), "feeds", len(cfg.Feeds))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app holds the wired services behind the HTTP handler.
type app struct {
	cfg      config.Config
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger

	storage   *sqlite.Storage
	jobs      *application.JobService
	employees *application.EmployeeService
	views     *viewsession.Manager
	fetcher   *ics.Fetcher
	parser    *ics.Parser
	feeds     []ics.Feed

	handler http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, now func() time.Time) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if dir := filepath.Dir(cfg.SQLiteDSN); cfg.SQLiteDSN != ":memory:" && !strings.HasPrefix(cfg.SQLiteDSN, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	employees := application.NewEmployeeServiceWithLogger(employeeStore{repo: storage}, uuid.NewString, now, logger)
	employees.SetResourceOrder(cfg.Resources)
	jobs := application.NewJobServiceWithLogger(jobStore{repo: storage}, employees, application.JobPolicy{
		EventTypes:      cfg.CalendarEventTypes(),
		StrictConflicts: cfg.StrictConflicts,
		Location:        loc,
	}, uuid.NewString, now, logger)

	views := viewsession.NewManagerWithLogger(jobs, employees, viewsession.Config{
		Location:    loc,
		ZoomLevels:  cfg.ZoomLevels,
		DefaultZoom: cfg.DefaultZoom,
		Office:      cfg.Office(),
		Styles:      cfg.StyleTable(),
		Saver:       application.NewCalendarSaver(jobs, logger),
		IdleTTL:     cfg.ViewIdleTTL,
	}, now, logger)

	engine := recurrence.NewEngineWithLogger(loc, recurrence.DefaultMaxOccurrences, logger)
	feeds := make([]ics.Feed, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		feeds = append(feeds, ics.Feed{ID: f.ID, Name: f.Name, URL: f.URL})
	}

	a := &app{
		cfg:       cfg,
		location:  loc,
		now:       now,
		logger:    logger,
		storage:   storage,
		jobs:      jobs,
		employees: employees,
		views:     views,
		fetcher:   ics.NewFetcher(nil, logger),
		parser:    ics.NewParser(engine, loc, logger),
		feeds:     feeds,
	}
	a.handler = a.buildHandler()
	return a, nil
}

func (a *app) buildHandler() http.Handler {
	settings := httptransport.CalendarSettings{
		Location:    a.location,
		DefaultZoom: a.cfg.DefaultZoom,
		Office:      a.cfg.Office(),
		Styles:      a.cfg.StyleTable(),
		Name:        "Cleaning jobs",
		Domain:      "cleaning-scheduler",
		Now:         a.now,
	}
	credentials := security.Credentials{Username: a.cfg.Auth.Username, PasswordHash: a.cfg.Auth.PasswordHash}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Jobs:      httptransport.NewJobHandler(a.jobs, a.logger),
		Employees: httptransport.NewEmployeeHandler(a.employees, a.logger),
		Calendar: httptransport.NewCalendarHandler(a.jobs, a.employees,
			spreadsheet.NewImporter(a.jobs, a.location, a.logger), settings, a.logger),
		Views:  httptransport.NewViewHandler(a.views, a.location, a.now, render.DefaultOptions(), a.logger),
		Health: a.health,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			httptransport.RequireBasicAuth(credentials, a.logger),
		},
	})
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := a.storage.Ping(r.Context()); err != nil {
		a.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	_, _ = fmt.Fprintf(w, `{"status":"ok","views":%d}`+"\n", a.views.Len())
}

// startJobs schedules the feed refresh and the view sweep.
func (a *app) startJobs(ctx context.Context) (*cron.Cron, error) {
	logger := cronLogger{logger: a.logger}
	c := cron.New(
		cron.WithLocation(a.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if len(a.feeds) > 0 {
		if _, err := c.AddFunc(a.cfg.FeedRefresh, func() { a.refreshFeeds(ctx) }); err != nil {
			return nil, fmt.Errorf("schedule feed refresh %q: %w", a.cfg.FeedRefresh, err)
		}
	}
	if _, err := c.AddFunc(a.cfg.ViewSweep, func() { a.sweepViews(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule view sweep %q: %w", a.cfg.ViewSweep, err)
	}
	c.Start()
	return c, nil
}

// refreshFeeds downloads every feed and replaces its stored appointments.
// Feeds served from the cache are skipped since the store already holds them.
func (a *app) refreshFeeds(ctx context.Context) {
	if len(a.feeds) == 0 {
		return
	}
	results, errs := a.fetcher.FetchAll(ctx, a.feeds)
	for _, err := range errs {
		a.logger.WarnContext(ctx, "feed fetch failed", "error", err)
	}

	today := calendar.StartOfDay(a.now().In(a.location))
	from, to := calendar.AddDays(today, -feedLookbackDays), calendar.AddDays(today, feedLookaheadDays)

	synced := 0
	for _, res := range results {
		if res.FromCache {
			continue
		}
		events, err := a.parser.ParseFeed(res.Feed, res.Body, from, to)
		if err != nil {
			a.logger.WarnContext(ctx, "feed parse failed", "feed", res.Feed.ID, "error", err)
			continue
		}
		count, err := a.jobs.SyncExternalJobs(ctx, res.Feed.ID, events)
		if err != nil {
			a.logger.ErrorContext(ctx, "feed sync failed", "feed", res.Feed.ID, "error", err)
			continue
		}
		a.logger.InfoContext(ctx, "feed synchronized", "feed", res.Feed.ID, "appointments", count)
		synced++
	}

	if synced > 0 {
		if err := a.views.RefreshAll(ctx); err != nil {
			a.logger.WarnContext(ctx, "view refresh failed", "error", err)
		}
	}
}

func (a *app) sweepViews(ctx context.Context) {
	res := a.views.Sweep(ctx)
	if res.Finalized > 0 || res.Evicted > 0 {
		a.logger.InfoContext(ctx, "views swept", "finalized", res.Finalized, "evicted", res.Evicted, "open", a.views.Len())
	}
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func printPasswordHash(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := security.HashPassword(password, security.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// employeeStore adapts the SQLite employee repository to the service.
type employeeStore struct {
	repo persistence.EmployeeRepository
}

func (s employeeStore) CreateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	if err := s.repo.CreateEmployee(ctx, persistence.Employee(employee)); err != nil {
		return application.Employee{}, err
	}
	return s.GetEmployee(ctx, employee.ID)
}

func (s employeeStore) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	stored, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return application.Employee(stored), nil
}

func (s employeeStore) UpdateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	if err := s.repo.UpdateEmployee(ctx, persistence.Employee(employee)); err != nil {
		return application.Employee{}, err
	}
	return s.GetEmployee(ctx, employee.ID)
}

func (s employeeStore) DeleteEmployee(ctx context.Context, id string) error {
	return s.repo.DeleteEmployee(ctx, id)
}

func (s employeeStore) ListEmployees(ctx context.Context) ([]application.Employee, error) {
	models, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	employees := make([]application.Employee, 0, len(models))
	for _, model := range models {
		employees = append(employees, application.Employee(model))
	}
	return employees, nil
}

// jobStore adapts the SQLite job repository to the service.
type jobStore struct {
	repo persistence.JobRepository
}

func (s jobStore) CreateJob(ctx context.Context, job application.Job) (application.Job, error) {
	if err := s.repo.CreateJob(ctx, persistence.Job(job)); err != nil {
		return application.Job{}, err
	}
	return s.GetJob(ctx, job.ID)
}

func (s jobStore) GetJob(ctx context.Context, id string) (application.Job, error) {
	stored, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return application.Job{}, err
	}
	return application.Job(stored), nil
}

func (s jobStore) UpdateJob(ctx context.Context, job application.Job) (application.Job, error) {
	if err := s.repo.UpdateJob(ctx, persistence.Job(job)); err != nil {
		return application.Job{}, err
	}
	return s.GetJob(ctx, job.ID)
}

func (s jobStore) DeleteJob(ctx context.Context, id string) error {
	return s.repo.DeleteJob(ctx, id)
}

func (s jobStore) ListJobs(ctx context.Context, filter application.JobRepositoryFilter) ([]application.Job, error) {
	models, err := s.repo.ListJobs(ctx, persistence.JobFilter(filter))
	if err != nil {
		return nil, err
	}
	jobs := make([]application.Job, 0, len(models))
	for _, model := range models {
		jobs = append(jobs, application.Job(model))
	}
	return jobs, nil
}

func (s jobStore) ReplaceExternalJobs(ctx context.Context, feed string, jobs []application.Job) error {
	models := make([]persistence.Job, 0, len(jobs))
	for _, job := range jobs {
		models = append(models, persistence.Job(job))
	}
	return s.repo.ReplaceExternalJobs(ctx, feed, models)
}

package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Jobs       *JobHandler
	Employees  *EmployeeHandler
	Calendar   *CalendarHandler
	Views      *ViewHandler
	Health     http.HandlerFunc
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	health := cfg.Health
	if health == nil {
		health = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
		}
	}
	mux.HandleFunc("/health", only(health, http.MethodGet))

	if cfg.Jobs != nil {
		mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Jobs.List(w, r)
			case http.MethodPost:
				cfg.Jobs.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Jobs.Get(w, r)
			case http.MethodPut:
				cfg.Jobs.Update(w, r)
			case http.MethodDelete:
				cfg.Jobs.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Employees != nil {
		mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Employees.List(w, r)
			case http.MethodPost:
				cfg.Employees.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/employees/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPut:
				cfg.Employees.Update(w, r)
			case http.MethodDelete:
				cfg.Employees.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("/calendar", only(cfg.Calendar.Layout, http.MethodGet))
		mux.HandleFunc("/calendar.ics", only(cfg.Calendar.ICS, http.MethodGet))
		mux.HandleFunc("/export/week.xlsx", only(cfg.Calendar.ExportWeek, http.MethodGet))
		mux.HandleFunc("/import/jobs", only(cfg.Calendar.Import, http.MethodPost))
	}

	if cfg.Views != nil {
		mux.HandleFunc("/views", only(cfg.Views.Create, http.MethodPost))
		mux.HandleFunc("/views/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Views.Get(w, r)
			case http.MethodDelete:
				cfg.Views.Close(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			}
		})
		mux.HandleFunc("/views/{id}/pointer", only(cfg.Views.Pointer, http.MethodPost))
		mux.HandleFunc("/views/{id}/nav", only(cfg.Views.Navigate, http.MethodPost))
		mux.HandleFunc("/views/{id}/events", only(cfg.Views.CreateEvent, http.MethodPost))
		mux.HandleFunc("/views/{id}/events/{eventID}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPut:
				cfg.Views.UpdateEvent(w, r)
			case http.MethodDelete:
				cfg.Views.DeleteEvent(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
		mux.HandleFunc("/views/{id}/snapshot.png", only(cfg.Views.Snapshot, http.MethodGet))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func only(h http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		h(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

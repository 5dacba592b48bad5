/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request counters by route pattern
  5. CORS:       Cross-origin requests for the frontend dev server

ROUTE GROUPS:
  /api/employees/*      Roster
  /api/entries, /slots  Month grid
  /api/edits, /undo     Commands
  /api/export, /import  Backup document
  /api/backups/*        Stored archives
  /api/reports/*        Monthly reports
  /metrics              Prometheus
  /*                    Static files (frontend)

STATIC FILE SERVING:
  Serves the built web UI from StaticDir.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication. The server binds to localhost by default and is meant
  for a single user on one machine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the outer surface of the router.
type RouterOptions struct {
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.Log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	}))

	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Post("/seed", h.SeedEmployees)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Get("/{id}/entries", h.GetEmployeeEntries)
		})

		// Grid routes
		r.Get("/entries", h.ListEntries)
		r.Get("/slots/{employeeID}/{date}", h.GetSlot)

		// Command routes
		r.Post("/edits", h.ApplyEdit)
		r.Post("/undo", h.Undo)
		r.Post("/copy-previous-day", h.CopyPreviousDay)

		// Data routes
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.CreateBackup)
			r.Post("/{key}/restore", h.RestoreBackup)
		})

		// Report routes
		r.Route("/reports/{year}/{month}", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/workbook", h.GetReportWorkbook)
		})
	})

	mountStatic(r, opts.StaticDir)
	return r
}

// mountStatic serves the web UI build, or a placeholder page when it has
// not been built.
func mountStatic(r chi.Router, staticDir string) {
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		// Try relative to executable
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err != nil {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(placeholderPage))
		})
		return
	}

	fileServer := http.FileServer(http.Dir(staticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "Unknown endpoint", nil)
			return
		}
		fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))

		// SPA routing: serve index.html for unknown paths
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

const placeholderPage = `<!DOCTYPE html>
<html>
<head><title>Absence Tracker</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Absence Tracker API</h1>
<p>The frontend is not built yet. Run <code>cd web && npm install && npm run build</code></p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/export">/api/export</a> - Download a backup</li>
<li><a href="/api/backups">/api/backups</a> - Stored backups</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`

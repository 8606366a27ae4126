// internal/httpserver/server.go
//
// HTTP server wiring for the number guesser.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", POST /round/new.
//   - Round endpoints (require a session): GET /round, PUT /round/pending,
//     POST /round/guess, POST /round/restart, DELETE /round.
//
// Notes:
//   - A session is an HS256 JWT naming one round ID, sent as a cookie or bearer token.
//   - The secret answer never leaves the server; a fixed answer can only be
//     requested with an admin key matching the configured bcrypt hash.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/guesser/internal/game"
	"github.com/robalobadob/guesser/internal/store"
)

// Options configures a Server.
type Options struct {
	UpperBound   int
	RestartDelay time.Duration // zero or negative selects game.DefaultRestartDelay
	JWTSecret    string
	AdminKeyHash string // bcrypt hash; empty disables fixed answers
	ClientOrigin string
	SecureCookie bool
	DailySalt    string
	GameOptions  []game.Option // extra controller options (logger, clock)
}

// Server bundles router, round store and options.
type Server struct {
	r     *chi.Mux
	store store.Store
	opts  Options
	now   func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, opts Options) *Server {
	if opts.UpperBound < 1 {
		opts.UpperBound = game.DefaultUpperBound
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = game.DefaultRestartDelay
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), store: st, opts: opts, now: time.Now}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)                       // one zerolog line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(opts.ClientOrigin))         // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":    "guesser",
			"upperBound": s.opts.UpperBound,
			"endpoints": []string{
				"/health", "POST /round/new", "GET /round", "PUT /round/pending",
				"POST /round/guess", "POST /round/restart", "DELETE /round",
			},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Route("/round", func(r chi.Router) {
		r.Post("/new", s.handleNewRound)

		// Everything else needs a session
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/", s.handleGetRound)
			r.Put("/pending", s.handlePending)
			r.Post("/guess", s.handleGuess)
			r.Post("/restart", s.handleRestart)
			r.Delete("/", s.handleEndRound)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Handler exposes the router, for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.r }

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

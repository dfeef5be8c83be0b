package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/charliek/m3tail/internal/constants"
)

// slogPrinter adapts a slog logger to chi's request log printer
type slogPrinter struct {
	logger *slog.Logger
}

func (p slogPrinter) Print(v ...interface{}) {
	p.logger.Debug(fmt.Sprint(v...), "component", "api")
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Host        string
	Port        int
	AuthEnabled bool   // Whether authentication is required
	Token       string // Authentication token (only used if AuthEnabled is true)
}

// Server is the HTTP API over one store and controller
type Server struct {
	config   ServerConfig
	router   *chi.Mux
	handlers *Handlers
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
	listener   net.Listener
}

// NewServer creates a new API server
func NewServer(config ServerConfig, handlers *Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: slogPrinter{logger}, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(localCORS)

	s := &Server{
		config:   config,
		router:   r,
		handlers: handlers,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// localCORS allows browser clients served from this machine. Preflight
// requests are answered here and never reach the routes.
func localCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); isLocalhostOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isLocalhostOrigin reports whether origin is an http(s) origin on a
// loopback host, with or without a port
func isLocalhostOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if u.Path != "" || u.User != nil {
		return false
	}
	if p := u.Port(); p != "" {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// requireToken rejects requests without the bearer token. The comparison
// is constant time.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			provided, ok := strings.CutPrefix(header, "Bearer ")
			switch {
			case header == "":
				unauthorized(w, "missing authorization header")
			case !ok:
				unauthorized(w, "invalid authorization header format")
			case subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1:
				unauthorized(w, "invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: message, Code: "UNAUTHORIZED"})
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	// Health check at root (no auth required)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.config.AuthEnabled {
			r.Use(requireToken(s.config.Token))
		}

		// Streams are long-lived and stay outside the request timeout
		r.Get("/logs/stream", s.handlers.StreamLogs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(constants.DefaultRequestTimeout))

			r.Get("/status", s.handlers.GetStatus)

			// Records
			r.Get("/logs", s.handlers.GetLogs)
			r.Post("/logs", s.handlers.IngestLogs)
			r.Post("/logs/clear", s.handlers.ClearLogs)

			// Session criteria
			r.Get("/filter", s.handlers.GetFilter)
			r.Put("/filter", s.handlers.SetFilter)
			r.Get("/levels", s.handlers.GetLevels)
			r.Get("/tags", s.handlers.GetTags)

			// Watch lifecycle
			r.Post("/watch", s.handlers.StartWatch)
			r.Post("/watch/stop", s.handlers.StopWatch)

			r.Get("/diagnostics", s.handlers.GetDiagnostics)
			r.Get("/notices", s.handlers.GetNotices)

			r.Post("/shutdown", s.handlers.Shutdown)
		})
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Shutdown.
// It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return http.ErrServerClosed
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)))
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // streams write for as long as the client stays
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return http.ErrServerClosed
	}
	s.httpServer = server
	s.listener = ln
	s.mu.Unlock()

	return server.Serve(ln)
}

// Shutdown gracefully shuts down the server. Called before Start, it
// makes any later Start return http.ErrServerClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	server := s.httpServer
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr returns the address being served once Start is listening, and the
// configured address before that
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

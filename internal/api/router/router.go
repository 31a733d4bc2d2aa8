package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mindbridge-triage/internal/conversation"
	"github.com/wolfman30/mindbridge-triage/internal/directory"
	httpmiddleware "github.com/wolfman30/mindbridge-triage/internal/http/middleware"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	DirectoryHandler    *directory.Handler
	MetricsHandler      http.Handler
	RateLimiter         httpmiddleware.Limiter
	CORSAllowedOrigins  []string

	// ActiveSessions feeds the health payload; optional.
	ActiveSessions func() int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public operational endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.ActiveSessions))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger))
		}
		if cfg.ConversationHandler != nil {
			v1.Route("/sessions", cfg.ConversationHandler.Routes)
		}
		if cfg.DirectoryHandler != nil {
			v1.Route("/providers", cfg.DirectoryHandler.Routes)
		}
	})

	return r
}

func healthHandler(activeSessions func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{"status": "ok"}
		if activeSessions != nil {
			response["active_sessions"] = activeSessions()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

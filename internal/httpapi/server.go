// Package httpapi wires the bridge's components into an HTTP server: Auth
// Gate, Model Router, Session Keyer, Request/Response/Stream Translator,
// and Upstream Client, behind a chi router matching the teacher's
// chi-server example.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meridianhq/anthropic-bridge/internal/config"
	"github.com/meridianhq/anthropic-bridge/pkg/auth"
	"github.com/meridianhq/anthropic-bridge/pkg/modelrouter"
	"github.com/meridianhq/anthropic-bridge/pkg/session"
	"github.com/meridianhq/anthropic-bridge/pkg/telemetry"
	"github.com/meridianhq/anthropic-bridge/pkg/upstream"
)

// Server holds the bridge's wired components and builds the HTTP handler.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	gate      *auth.Gate
	router    *modelrouter.Router
	sessions  *session.Keyer
	client    *upstream.Client
	telemetry *telemetry.Settings
	startedAt time.Time
}

// New builds a Server from cfg. Callers own starting sessions.RunCleanup.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	settings := telemetry.DefaultSettings().WithEnabled(cfg.TelemetryEnabled)

	return &Server{
		cfg:    cfg,
		logger: logger,
		gate:   auth.New(cfg.AnthropicAPIKey),
		router: modelrouter.New(cfg.BigModel, cfg.MiddleModel, cfg.SmallModel),
		sessions: session.New(
			time.Duration(cfg.SessionTTLMinSecs)*time.Second,
			time.Duration(cfg.SessionTTLMaxSecs)*time.Second,
		),
		client: upstream.New(upstream.Config{
			BaseURL:         cfg.OpenAIBaseURL,
			APIKey:          cfg.OpenAIAPIKey,
			AzureAPIVersion: cfg.AzureAPIVersion,
			CustomHeaders:   cfg.CustomHeaders,
			Timeout:         cfg.RequestTimeout,
			RateLimitRPS:    cfg.UpstreamRateLimitRPS,
			RateLimitBurst:  cfg.UpstreamRateLimitBurst,
		}),
		telemetry: settings,
		startedAt: time.Now(),
	}
}

// Sessions exposes the Session Keyer so callers can run its cleanup loop.
func (s *Server) Sessions() *session.Keyer { return s.sessions }

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeoutCeiling()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/test-connection", s.handleTestConnection)
	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/messages/count_tokens", s.handleCountTokens)

	return r
}

// requestTimeoutCeiling bounds chi's own middleware.Timeout generously
// above RequestTimeout so handlers can apply their own, more precise,
// timeout (which differs for streaming vs non-streaming calls) without
// chi cutting the connection first.
func (s *Server) requestTimeoutCeiling() time.Duration {
	ceiling := s.cfg.RequestTimeout + 30*time.Second
	if s.cfg.StreamRequestTimeout > 0 && s.cfg.StreamRequestTimeout+30*time.Second > ceiling {
		ceiling = s.cfg.StreamRequestTimeout + 30*time.Second
	}
	if s.cfg.StreamRequestTimeout == 0 {
		ceiling = 24 * time.Hour // streaming disabled its own timeout: don't cut long-lived SSE
	}
	return ceiling
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "anthropic-bridge",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                      "ok",
		"timestamp":                   time.Now().UTC().Format(time.RFC3339),
		"openai_api_key_configured":   s.cfg.OpenAIAPIKey != "",
		"anthropic_api_key_configured": s.cfg.AnthropicAPIKey != "",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

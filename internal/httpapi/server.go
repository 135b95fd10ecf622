package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/uplink/internal/config"
	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/observability"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/uplink"
)

// Exchanger runs one persona turn. *uplink.Service implements it.
type Exchanger interface {
	Exchange(ctx context.Context, p persona.Persona, history []dialogue.Turn, input string) (uplink.Result, error)
}

type Server struct {
	cfg            config.Config
	catalog        *persona.Catalog
	defaultPersona string
	exchanger      Exchanger
	metrics        *observability.Metrics
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	wsReadTimeout  time.Duration
	wsPingInterval time.Duration
}

func New(cfg config.Config, catalog *persona.Catalog, exchanger Exchanger, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultPersona := strings.TrimSpace(cfg.PersonaDefaultID)
	if defaultPersona == "" || !catalog.Has(defaultPersona) {
		defaultPersona = catalog.Default().ID
	}
	readTimeout, pingInterval := wsTimeouts(cfg.UplinkTimeout)
	return &Server{
		cfg:            cfg,
		catalog:        catalog,
		defaultPersona: defaultPersona,
		exchanger:      exchanger,
		metrics:        metrics,
		logger:         logger,
		wsReadTimeout:  readTimeout,
		wsPingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handlePerfLatencyReset)

	r.Get("/v1/personas", s.handleListPersonas)
	r.Get("/v1/personas/{id}", s.handleGetPersona)

	r.Post("/v1/uplink/exchange", s.handleExchange)
	r.Get("/v1/uplink/ws", s.handleUplinkWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	state := "ready"
	if s.exchanger == nil {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	respondJSON(w, status, map[string]any{
		"status":          state,
		"uplink_mode":     s.cfg.UplinkMode,
		"persona_count":   s.catalog.Len(),
		"default_persona": s.defaultPersona,
	})
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

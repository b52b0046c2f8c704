// Package gateway exposes the room registry over HTTP: dashboard CRUD, the
// device report endpoints and a server-sent event stream of registry changes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"supplywatch/internal/core"
	"supplywatch/pkg/domain"
)

// Registry is the subset of *core.Registry the gateway drives.
type Registry interface {
	ListRooms() []domain.Room
	GetRoom(id string) (domain.Room, error)
	CreateRoom(ctx context.Context, in core.CreateRoomInput) (domain.Room, error)
	UpdateRoom(ctx context.Context, id string, in core.UpdateRoomInput) (domain.Room, error)
	DeleteRoom(ctx context.Context, id string) (domain.Room, error)
	ResolveSupply(ctx context.Context, roomID, key string) (domain.Room, error)
	ReportSupply(ctx context.Context, roomID, key string, status domain.Status) (domain.Room, error)
	Health() core.Health
}

// EventSource hands out change-event subscriptions.
type EventSource interface {
	Subscribe() *core.Subscription
	SubscriberCount() int
}

// DefaultKeepAlive is the interval between SSE comment frames on an idle stream.
const DefaultKeepAlive = 25 * time.Second

// Options tunes a Handler. Zero values are usable.
type Options struct {
	Logger *slog.Logger
	// ReportRate is the sustained device reports per second; zero disables limiting.
	ReportRate  float64
	ReportBurst int
	// Metrics, when set, is served at /metrics.
	Metrics   http.Handler
	KeepAlive time.Duration
}

// Handler serves the gateway routes.
type Handler struct {
	registry  Registry
	events    EventSource
	logger    *slog.Logger
	limiter   *rate.Limiter
	metrics   http.Handler
	keepAlive time.Duration
	validate  *validator.Validate
	router    chi.Router
}

// NewHandler wires the routes.
func NewHandler(registry Registry, events EventSource, opts Options) *Handler {
	h := &Handler{
		registry:  registry,
		events:    events,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		keepAlive: opts.KeepAlive,
		validate:  newValidator(),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.keepAlive <= 0 {
		h.keepAlive = DefaultKeepAlive
	}
	if opts.ReportRate > 0 {
		burst := opts.ReportBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.ReportRate), burst)
	}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", h.handleListRooms)
		r.Post("/rooms", h.handleCreateRoom)
		r.Put("/rooms/{id}", h.handleUpdateRoom)
		r.Delete("/rooms/{id}", h.handleDeleteRoom)
		r.Post("/rooms/{id}/supply/{key}/resolve", h.handleResolveSupply)
		r.Get("/events", h.handleEvents)
	})
	r.With(h.limitReports).Post("/report", h.handleReport)
	r.Get("/room/{id}", h.handleGetRoom)
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) limitReports(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			h.logger.Warn("device report rate limited", "remote", r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many reports")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	Driver      string `json:"driver"`
	Rooms       int    `json:"rooms"`
	Subscribers int    `json:"subscribers"`
	Error       string `json:"error,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := h.registry.Health()
	resp := healthResponse{
		Status: "ok",
		Driver: string(health.Driver),
		Rooms:  health.Rooms,
		Error:  health.LastError,
	}
	if health.Degraded {
		resp.Status = "degraded"
	}
	if h.events != nil {
		resp.Subscribers = h.events.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeRegistryError maps registry errors onto HTTP responses. extra fields
// are merged into the error body.
func (h *Handler) writeRegistryError(w http.ResponseWriter, err error, extra map[string]any) {
	status, message := http.StatusInternalServerError, "Internal error"
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		status, message = http.StatusNotFound, "Room not found"
	case errors.Is(err, domain.ErrSupplyNotFound):
		status, message = http.StatusNotFound, "Supply not found"
	case errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	default:
		h.logger.Error("registry failure", "error", err)
	}
	body := map[string]any{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

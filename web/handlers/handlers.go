// Package handlers provides the HTTP API for driving debates.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/completion"
	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/export"
	"github.com/alienxp03/botdebate/internal/metrics"
	"github.com/alienxp03/botdebate/internal/storage"
)

const (
	defaultListLimit      = 50
	maxListLimit          = 500
	defaultStreamInterval = time.Second
	maxTopicBytes         = 4 << 10
)

// ErrNoStorage is returned by routes that read persisted debates when the
// server runs without a database.
var ErrNoStorage = errors.New("storage is not configured")

// HealthChecker probes a bot endpoint.
type HealthChecker interface {
	Health(ctx context.Context, profile bot.Profile) completion.HealthStatus
}

// Options holds the optional dependencies of a Handler.
type Options struct {
	Storage storage.Storage
	Health  HealthChecker

	// Metrics records HTTP metrics; Gatherer backs /metrics. Either may
	// be nil.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	HealthCachePath string
	HealthCacheTTL  time.Duration

	// StreamInterval is the polling period of the event stream.
	StreamInterval time.Duration

	Logger *zap.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager        *debate.Manager
	storage        storage.Storage
	health         HealthChecker
	healthCache    *botHealthCache
	metrics        *metrics.Collector
	gatherer       prometheus.Gatherer
	streamInterval time.Duration
	logger         *zap.Logger
}

// New creates a new Handler.
func New(manager *debate.Manager, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "http"))

	interval := opts.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}

	return &Handler{
		manager:        manager,
		storage:        opts.Storage,
		health:         opts.Health,
		healthCache:    newBotHealthCache(opts.HealthCachePath, opts.HealthCacheTTL, logger),
		metrics:        opts.Metrics,
		gatherer:       opts.Gatherer,
		streamInterval: interval,
		logger:         logger,
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/debates", func(r chi.Router) {
			r.Post("/", h.handleCreateDebate)
			r.Get("/", h.handleListDebates)
			r.Get("/current", h.handleCurrentDebate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetDebate)
				r.Post("/step", h.handleStep)
				r.Post("/stop", h.handleStop)
				r.Post("/clear", h.handleClear)
				r.Post("/select", h.handleSelect)
				r.Get("/turns", h.handleTurns)
				r.Get("/stream", h.handleDebateStream)
				r.Get("/export/{format}", h.handleExportDebate)
			})
		})
		r.Get("/history", h.handleHistory)
		r.Get("/bots", h.handleBots)
		r.Get("/bots/health", h.handleBotsHealth)
	})

	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type createDebateRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var req createDebateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTopicBytes)).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.manager.StartInfiniteDebate(req.Topic)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.manager.Snapshot(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, snap)
}

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	h.json(w, map[string]any{
		"current": h.manager.Current(),
		"debates": h.manager.List(),
	})
}

func (h *Handler) handleCurrentDebate(w http.ResponseWriter, r *http.Request) {
	if h.manager.Current() == "" {
		h.json(w, debate.Snapshot{Status: core.StatusIdle, HistoryTail: []core.Message{}, TopicKeywords: []string{}})
		return
	}
	snap, err := h.manager.GetStateSnapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, snap)
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, snap)
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Step(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, res)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Stop(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.snapshot(w, id)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Clear(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.snapshot(w, id)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Select(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.snapshot(w, id)
}

func (h *Handler) handleTurns(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.writeError(w, ErrNoStorage)
		return
	}
	id := chi.URLParam(r, "id")
	record, err := h.storage.GetDebate(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if record == nil {
		h.writeError(w, fmt.Errorf("%w: %s", debate.ErrDebateNotFound, id))
		return
	}
	turns, err := h.storage.GetTurns(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, map[string]any{"debate": record, "turns": turns})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.writeError(w, ErrNoStorage)
		return
	}
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	debates, err := h.storage.ListDebates(limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, map[string]any{"debates": debates, "limit": limit, "offset": offset})
}

func (h *Handler) handleExportDebate(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.writeError(w, ErrNoStorage)
		return
	}
	id := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")

	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.storage.GetDebate(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if record == nil {
		h.writeError(w, fmt.Errorf("%w: %s", debate.ErrDebateNotFound, id))
		return
	}
	turns, err := h.storage.GetTurns(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	filename := export.GenerateFilename(record, exporter.FileExtension())
	switch exporter.FileExtension() {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := exporter.Export(record, turns, w); err != nil {
		h.logger.Error("export failed", zap.String("debate_id", id), zap.String("format", format), zap.Error(err))
	}
}

type botInfo struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model,omitempty"`
	Persona  string `json:"persona,omitempty"`
}

func (h *Handler) handleBots(w http.ResponseWriter, r *http.Request) {
	bots := h.manager.Bots()
	out := make([]botInfo, 0, len(bots))
	for _, b := range bots {
		out = append(out, botInfo{Name: b.Name(), Endpoint: b.Endpoint(), Model: b.Model(), Persona: b.Persona()})
	}
	h.json(w, map[string]any{"bots": out})
}

// handleBotsHealth reports every bot's health. Fresh successful checks are
// served from the cache unless refresh=true is given.
func (h *Handler) handleBotsHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.jsonError(w, "health checks are not configured", http.StatusNotImplemented)
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	bots := h.manager.Bots()
	out := make([]completion.HealthStatus, len(bots))
	g, ctx := errgroup.WithContext(r.Context())
	for i, b := range bots {
		if !refresh {
			if cached, ok := h.healthCache.GetFresh(b.Name()); ok {
				out[i] = cached
				continue
			}
		}
		g.Go(func() error {
			status := h.health.Health(ctx, b)
			h.healthCache.Set(b.Name(), status)
			out[i] = status
			return nil
		})
	}
	_ = g.Wait()

	h.json(w, map[string]any{"bots": out})
}

func (h *Handler) snapshot(w http.ResponseWriter, id string) {
	snap, err := h.manager.Snapshot(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, snap)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusFor maps manager and storage errors onto HTTP statuses.
func statusFor(err error) int {
	var completionErr *debate.CompletionError
	switch {
	case errors.Is(err, debate.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, debate.ErrDebateNotFound):
		return http.StatusNotFound
	case errors.Is(err, debate.ErrStepInProgress):
		return http.StatusConflict
	case errors.As(err, &completionErr):
		return http.StatusBadGateway
	case errors.Is(err, ErrNoStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.jsonError(w, err.Error(), code)
}

func (h *Handler) json(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonStatus(w, code, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

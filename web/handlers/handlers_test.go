package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/completion"
	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/metrics"
	"github.com/alienxp03/botdebate/internal/storage"
)

type countingHealth struct {
	checks    atomic.Int32
	available bool
}

func (c *countingHealth) Health(ctx context.Context, p bot.Profile) completion.HealthStatus {
	c.checks.Add(1)
	return completion.HealthStatus{
		Bot:          p.Name(),
		Endpoint:     p.Endpoint(),
		Available:    c.available,
		ResponseTime: 20 * time.Millisecond,
		CheckedAt:    time.Now(),
	}
}

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *storage.SQLiteStorage
	health  *countingHealth

	mu      sync.Mutex
	fail    error
	replies int
}

func (s *testServer) complete(ctx context.Context, p bot.Profile, msgs []core.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	n := s.replies
	s.replies++
	return arguments[n%len(arguments)] + " (" + p.Name() + ")", nil
}

var arguments = []string{
	"Remote work widens the hiring pool beyond one city.",
	"Commuting time returns to employees as focused hours.",
	"Managers struggle to mentor juniors through video calls.",
	"Office rent savings fund better equipment at home.",
	"Spontaneous hallway talks rarely happen over chat.",
	"Time zones complicate meetings for distributed teams.",
}

// setupTestServer wires a manager, a temporary SQLite store and a
// counting health checker behind the router.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a, err := bot.NewProfile("Bot1", "http://192.168.8.87:12345/v1/chat/completions", "", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := bot.NewProfile("Bot2", "http://192.168.8.89:12345/v1/chat/completions", "", "")
	if err != nil {
		t.Fatal(err)
	}

	s := &testServer{store: store, health: &countingHealth{available: true}}
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	m, err := debate.New(debate.Config{Bots: []bot.Profile{a, b}}, debate.CompleterFunc(s.complete),
		debate.WithRecorder(storage.NewRecorder(store)),
		debate.WithMetrics(collector),
	)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	s.handler = New(m, Options{
		Storage:        store,
		Health:         s.health,
		Metrics:        collector,
		Gatherer:       reg,
		StreamInterval: 10 * time.Millisecond,
	})
	s.router = s.handler.Routes()
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

func (s *testServer) create(t *testing.T, topic string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/debates", `{"topic":"`+topic+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[debate.Snapshot](t, w).ID
}

func TestCreateDebate(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/debates", `{"topic":"  Remote work and hiring  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	snap := decode[debate.Snapshot](t, w)
	if snap.Topic != "Remote work and hiring" {
		t.Errorf("expected trimmed topic, got %q", snap.Topic)
	}
	if !snap.Active || snap.Status != core.StatusRunning {
		t.Errorf("expected a running debate, got %+v", snap)
	}

	stored, err := s.store.GetDebate(snap.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected debate to be persisted, got %v, %v", stored, err)
	}
	if stored.BotA == "" || stored.BotB == "" {
		t.Errorf("expected bots to be recorded, got %+v", stored)
	}
}

func TestCreateDebate_Errors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty topic", `{"topic":"   "}`, http.StatusBadRequest},
		{"invalid json", `{"topic":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/debates", tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, w.Code)
			}
			if decode[map[string]string](t, w)["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestStepStopClear(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
		if w.Code != http.StatusOK {
			t.Fatalf("step %d: expected status 200, got %d: %s", i, w.Code, w.Body.String())
		}
		res := decode[debate.StepResult](t, w)
		if !res.Continue || res.Turn == nil {
			t.Fatalf("step %d: expected an accepted turn, got %+v", i, res)
		}
	}

	turns, err := s.store.GetTurns(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 stored turns, got %d", len(turns))
	}

	stored, err := s.store.GetDebate(id)
	if err != nil {
		t.Fatal(err)
	}
	latest := s.do(t, http.MethodGet, "/api/debates/"+id, "")
	if live := decode[debate.Snapshot](t, latest); stored.CoherenceScore != live.CoherenceScore || stored.Status != core.StatusRunning {
		t.Errorf("stored record lags behind the running debate: stored %.4f %s, live %.4f",
			stored.CoherenceScore, stored.Status, live.CoherenceScore)
	}

	w := s.do(t, http.MethodGet, "/api/debates/"+id+"/turns", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/debates/"+id+"/stop", "")
	if snap := decode[debate.Snapshot](t, w); snap.Active || snap.Status != core.StatusStopped {
		t.Fatalf("expected stopped debate, got %+v", snap)
	}

	w = s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
	if res := decode[debate.StepResult](t, w); res.Continue {
		t.Error("expected stopped debate not to continue")
	}

	w = s.do(t, http.MethodPost, "/api/debates/"+id+"/clear", "")
	snap := decode[debate.Snapshot](t, w)
	if snap.HistoryLen != 0 || snap.Status != core.StatusStopped {
		t.Fatalf("expected cleared stopped debate, got %+v", snap)
	}
	if turns, _ := s.store.GetTurns(id); len(turns) != 0 {
		t.Errorf("expected stored turns to be deleted, got %d", len(turns))
	}
}

func TestStep_CompletionFailure(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")

	s.mu.Lock()
	s.fail = errors.New("connection refused")
	s.mu.Unlock()

	w := s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/debates/"+id, "")
	if snap := decode[debate.Snapshot](t, w); snap.HistoryLen != 0 || !snap.Active {
		t.Errorf("expected untouched running debate, got %+v", snap)
	}
}

func TestUnknownDebate(t *testing.T) {
	s := setupTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/debates/missing"},
		{http.MethodPost, "/api/debates/missing/step"},
		{http.MethodPost, "/api/debates/missing/stop"},
		{http.MethodPost, "/api/debates/missing/clear"},
		{http.MethodPost, "/api/debates/missing/select"},
		{http.MethodGet, "/api/debates/missing/turns"},
		{http.MethodGet, "/api/debates/missing/export/markdown"},
	} {
		w := s.do(t, tc.method, tc.path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected status 404, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestCurrentDebate_Idle(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/debates/current", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	snap := decode[debate.Snapshot](t, w)
	if snap.Status != core.StatusIdle || snap.Active || snap.ID != "" {
		t.Errorf("expected idle snapshot, got %+v", snap)
	}
}

func TestListAndSelect(t *testing.T) {
	s := setupTestServer(t)
	first := s.create(t, "Remote work and hiring")
	second := s.create(t, "Four day work week")

	w := s.do(t, http.MethodGet, "/api/debates", "")
	list := decode[struct {
		Current string            `json:"current"`
		Debates []debate.Snapshot `json:"debates"`
	}](t, w)
	if len(list.Debates) != 2 || list.Current != second {
		t.Fatalf("unexpected list %+v", list)
	}

	s.do(t, http.MethodPost, "/api/debates/"+first+"/select", "")
	w = s.do(t, http.MethodGet, "/api/debates/current", "")
	if snap := decode[debate.Snapshot](t, w); snap.ID != first {
		t.Errorf("expected current %s, got %s", first, snap.ID)
	}

	w = s.do(t, http.MethodGet, "/api/history?limit=1", "")
	history := decode[struct {
		Debates []core.DebateSummary `json:"debates"`
		Limit   int                  `json:"limit"`
	}](t, w)
	if len(history.Debates) != 1 || history.Limit != 1 {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestExportDebate(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")

	tests := []struct {
		format      string
		contentType string
	}{
		{"markdown", "text/markdown; charset=utf-8"},
		{"json", "application/json"},
		{"pdf", "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/debates/"+id+"/export/"+tt.format, "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if got := w.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, got)
			}
			if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
				t.Error("expected attachment disposition")
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/debates/"+id+"/export/docx", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown format, got %d", w.Code)
	}
}

func TestBotsHealth_UsesCache(t *testing.T) {
	s := setupTestServer(t)
	s.handler.healthCache = newBotHealthCache(filepath.Join(t.TempDir(), "health.json"), time.Minute, nil)

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodGet, "/api/bots/health", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		payload := decode[struct {
			Bots []completion.HealthStatus `json:"bots"`
		}](t, w)
		if len(payload.Bots) != 2 || payload.Bots[0].Bot != "Bot1" || payload.Bots[1].Bot != "Bot2" {
			t.Fatalf("unexpected payload %+v", payload)
		}
	}
	if got := s.health.checks.Load(); got != 2 {
		t.Fatalf("expected 2 health checks, got %d", got)
	}

	s.do(t, http.MethodGet, "/api/bots/health?refresh=true", "")
	if got := s.health.checks.Load(); got != 4 {
		t.Fatalf("expected refresh to bypass the cache, got %d checks", got)
	}
}

func TestBotsHealth_UnavailableNotCached(t *testing.T) {
	s := setupTestServer(t)
	s.health.available = false

	s.do(t, http.MethodGet, "/api/bots/health", "")
	s.do(t, http.MethodGet, "/api/bots/health", "")
	if got := s.health.checks.Load(); got != 4 {
		t.Fatalf("expected unavailable bots to be re-checked, got %d checks", got)
	}
}

func TestBots(t *testing.T) {
	s := setupTestServer(t)
	w := s.do(t, http.MethodGet, "/api/bots", "")
	if !strings.Contains(w.Body.String(), "192.168.8.87") {
		t.Errorf("expected bot endpoints in %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")

	w := s.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"botdebate_steps_total", "botdebate_turns_total", "botdebate_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestDebateStream(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/stop", "")

	w := s.do(t, http.MethodGet, "/api/debates/"+id+"/stream", "")
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", got)
	}
	body := w.Body.String()
	if n := strings.Count(body, "event: turn\n"); n != 2 {
		t.Errorf("expected 2 turn events, got %d in %s", n, body)
	}
	if !strings.Contains(body, "event: debate_complete") {
		t.Error("expected debate_complete event")
	}
}

func TestDebateStream_FollowsLiveDebate(t *testing.T) {
	s := setupTestServer(t)
	id := s.create(t, "Remote work and hiring")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/debates/"+id+"/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.router.ServeHTTP(w, req)
	}()

	s.do(t, http.MethodPost, "/api/debates/"+id+"/step", "")
	s.do(t, http.MethodPost, "/api/debates/"+id+"/stop", "")

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("stream did not finish after the debate stopped")
	}
	if !strings.Contains(w.Body.String(), "event: debate_complete") {
		t.Errorf("expected debate_complete event, got %s", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{debate.ErrEmptyTopic, http.StatusBadRequest},
		{debate.ErrDebateNotFound, http.StatusNotFound},
		{debate.ErrStepInProgress, http.StatusConflict},
		{&debate.CompletionError{Bot: "Bot1", Err: errors.New("timeout")}, http.StatusBadGateway},
		{ErrNoStorage, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.code {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

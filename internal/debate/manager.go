// Package debate runs open-ended debates between two chat endpoints.
//
// The Manager owns every debate State and advances one debate by one turn
// per Step call. It never schedules work on its own: a driver (the CLI or
// the HTTP API) calls Step in a loop and decides when to pause, resume or
// stop. Steps of the same debate must not overlap; a concurrent Step is
// rejected with ErrStepInProgress.
package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/heuristics"
)

// Completer produces the next assistant message for a bot given the
// conversation so far. It is the only blocking point of a step.
type Completer interface {
	Complete(ctx context.Context, profile bot.Profile, messages []core.Message) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, profile bot.Profile, messages []core.Message) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, profile bot.Profile, messages []core.Message) (string, error) {
	return f(ctx, profile, messages)
}

// Recorder persists debates as they progress. Errors are logged and never
// interrupt a debate.
type Recorder interface {
	RecordDebate(d *core.Debate) error
	RecordTurn(t *core.Turn) error
	RecordStatus(d *core.Debate) error
	RecordClear(debateID string) error
}

// Observer receives step level measurements.
type Observer interface {
	ObserveCompletion(botName string, elapsed time.Duration, err error)
	ObserveStep(outcome string)
	ObserveTurn(botName string, relevance, coherence float64)
	ObserveRegeneration(botName string)
	ObserveConvergence()
}

// Step outcomes reported to the Observer.
const (
	OutcomeAccepted  = "accepted"
	OutcomeConverged = "converged"
	OutcomeInactive  = "inactive"
	OutcomeDiscarded = "discarded"
	OutcomeError     = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveCompletion(string, time.Duration, error) {}
func (nopObserver) ObserveStep(string)                             {}
func (nopObserver) ObserveTurn(string, float64, float64)           {}
func (nopObserver) ObserveRegeneration(string)                     {}
func (nopObserver) ObserveConvergence()                            {}

// StepResult describes what a single step did.
type StepResult struct {
	// Continue is false once the debate is stopped or converged.
	Continue bool              `json:"continue"`
	Status   core.DebateStatus `json:"status"`

	// Turn is the accepted message, nil when nothing was appended.
	Turn *core.Message `json:"turn,omitempty"`

	Regenerations int     `json:"regenerations"`
	Duplicate     bool    `json:"duplicate"` // accepted although not unique
	Relevance     float64 `json:"relevance"`
	Coherence     float64 `json:"coherence"`
	OffTopic      bool    `json:"off_topic"`
	Agreement     bool    `json:"agreement"` // the turn itself agreed with the previous one
	Converged     bool    `json:"converged"`

	// Discarded is set when the debate was stopped or cleared while the
	// completion was in flight.
	Discarded bool `json:"discarded"`
}

// StepOutcome is delivered by StepAsync.
type StepOutcome struct {
	Result *StepResult
	Err    error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEvaluator replaces the lexical evaluator.
func WithEvaluator(e heuristics.Evaluator) Option {
	return func(m *Manager) {
		if e != nil {
			m.evaluator = e
		}
	}
}

// WithAgreementChecker replaces the agreement check. By default the
// evaluator's lexical agreement is used.
func WithAgreementChecker(c AgreementChecker) Option {
	return func(m *Manager) { m.agreement = c }
}

// WithRecorder persists debates through r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithObserver reports measurements to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithMetrics is WithObserver for a metrics collector.
func WithMetrics(o Observer) Option { return WithObserver(o) }

// Manager orchestrates debates.
type Manager struct {
	mu sync.RWMutex

	cfg       Config
	prompt    *template.Template
	completer Completer
	evaluator heuristics.Evaluator
	agreement AgreementChecker
	recorder  Recorder
	observer  Observer
	logger    *zap.Logger
	now       func() time.Time

	debates map[string]*State
	order   []string
	current string
}

// New creates a Manager for the two bots in cfg.
func New(cfg Config, completer Completer, opts ...Option) (*Manager, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: completer is required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := parsePrompt(cfg.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m := &Manager{
		cfg:       cfg,
		prompt:    tmpl,
		completer: completer,
		evaluator: heuristics.NewLexical(heuristics.LexicalConfig{}),
		observer:  nopObserver{},
		logger:    zap.NewNop(),
		now:       time.Now,
		debates:   make(map[string]*State),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.agreement == nil {
		m.agreement = DetectorChecker(m.evaluator)
	}
	m.logger = m.logger.With(zap.String("component", "debate_manager"))
	return m, nil
}

// StartInfiniteDebate creates a debate on topic and makes it the current
// one. A blank topic is rejected with ErrEmptyTopic.
func (m *Manager) StartInfiniteDebate(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}

	m.mu.Lock()
	st := newState(core.GenerateID(), topic, m.cfg.CacheCapacity, m.now())
	m.debates[st.ID] = st
	m.order = append(m.order, st.ID)
	m.current = st.ID
	rec := st.record()
	m.mu.Unlock()

	rec.BotA, rec.BotB = m.cfg.Bots[0].Name(), m.cfg.Bots[1].Name()
	rec.UpdatedAt = rec.CreatedAt
	m.persist("record debate", func(r Recorder) error { return r.RecordDebate(rec) })

	m.logger.Info("debate started",
		zap.String("debate_id", st.ID),
		zap.String("topic", topic),
		zap.Strings("keywords", st.TopicKeywords.Sorted()),
		zap.Int("recent_capacity", st.RecentResponses.Capacity()),
	)
	return st.ID, nil
}

// Step advances debate id by at most one accepted turn.
func (m *Manager) Step(ctx context.Context, id string) (*StepResult, error) {
	m.mu.Lock()
	st, ok := m.debates[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDebateNotFound, id)
	}
	if !st.Active {
		res := &StepResult{Continue: false, Status: st.Status}
		m.mu.Unlock()
		m.observer.ObserveStep(OutcomeInactive)
		return res, nil
	}
	if st.stepping {
		m.mu.Unlock()
		return nil, ErrStepInProgress
	}

	speaker, opponent := m.nextSpeaker(st)
	msgs, err := buildMessages(m.prompt, st.Topic, st.History, speaker, opponent, m.personaPrompt(speaker))
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	st.stepping = true
	epoch := st.epoch
	topic := st.Topic
	keywords := st.TopicKeywords
	recent := st.RecentResponses.Entries()
	var previous *core.Message
	if n := len(st.History); n > 0 {
		last := st.History[n-1]
		previous = &last
	}
	m.mu.Unlock()

	log := m.logger.With(zap.String("debate_id", id), zap.String("speaker", speaker.Name()))

	candidate, err := m.complete(ctx, speaker, msgs)
	if err != nil {
		m.finishStep(st)
		m.observer.ObserveStep(OutcomeError)
		log.Warn("completion failed", zap.Error(err))
		return nil, &CompletionError{Bot: speaker.Name(), Err: err}
	}

	regenerations := 0
	for !m.evaluator.IsUnique(candidate, recent) && regenerations < m.cfg.MaxRegenerations {
		if !m.stillCurrent(st, epoch) {
			break
		}
		regenerations++
		m.observer.ObserveRegeneration(speaker.Name())
		log.Debug("near-duplicate response, regenerating", zap.Int("attempt", regenerations))

		retry, err := m.complete(ctx, speaker, withRegenerationHint(msgs))
		if err != nil {
			log.Warn("regeneration failed, keeping previous candidate", zap.Error(err))
			break
		}
		candidate = retry
	}
	duplicate := !m.evaluator.IsUnique(candidate, recent)
	if duplicate {
		log.Info("accepting near-duplicate response", zap.Int("regenerations", regenerations))
	}

	relevance := m.evaluator.CheckTopicRelevance(candidate, keywords)
	var coherence float64
	agreement := false
	if previous != nil {
		coherence = m.evaluator.CheckConversationCoherence(candidate, previous.Content)
		if previous.Speaker != speaker.Name() && m.voicesAgreement(candidate) && m.stillCurrent(st, epoch) {
			agreement = m.agreement.Agree(ctx, topic, candidate, previous.Content)
		}
	}

	m.mu.Lock()
	st.stepping = false
	if st.epoch != epoch || !st.Active {
		res := &StepResult{Continue: st.Active, Status: st.Status, Discarded: true}
		m.mu.Unlock()
		m.observer.ObserveStep(OutcomeDiscarded)
		log.Info("debate changed while waiting for completion, discarding response")
		return res, nil
	}

	turn := core.Message{Role: core.RoleAssistant, Speaker: speaker.Name(), Content: candidate}
	st.History = append(st.History, turn)
	st.LastSpeaker = speaker.Name()
	st.RecentResponses.Add(heuristics.Normalize(candidate))
	st.LastRelevance = relevance
	if previous != nil {
		st.LastCoherence = coherence
		st.CoherenceScore = m.cfg.CoherenceAlpha*coherence + (1-m.cfg.CoherenceAlpha)*st.CoherenceScore
	}
	if relevance == 0 {
		st.ZeroRelevanceStreak++
	} else {
		st.ZeroRelevanceStreak = 0
	}
	st.OffTopic = st.ZeroRelevanceStreak >= m.cfg.OffTopicThreshold

	if agreement {
		st.AgreementStreak++
	} else {
		st.AgreementStreak = 0
	}
	converged := st.AgreementStreak >= m.cfg.ConvergenceThreshold
	if converged {
		st.AgreementReached = true
		st.Active = false
		st.Status = core.StatusConverged
	}

	res := &StepResult{
		Continue:      st.Active,
		Status:        st.Status,
		Turn:          &turn,
		Regenerations: regenerations,
		Duplicate:     duplicate,
		Relevance:     relevance,
		Coherence:     coherence,
		OffTopic:      st.OffTopic,
		Agreement:     agreement,
		Converged:     converged,
	}
	turnRec := &core.Turn{
		ID:        core.GenerateID(),
		DebateID:  st.ID,
		Number:    len(st.History),
		Speaker:   speaker.Name(),
		Content:   candidate,
		Relevance: relevance,
		Coherence: coherence,
		Duplicate: duplicate,
		CreatedAt: m.now(),
	}
	debateRec := st.record()
	m.mu.Unlock()

	m.observer.ObserveTurn(speaker.Name(), relevance, coherence)
	m.persist("record turn", func(r Recorder) error { return r.RecordTurn(turnRec) })
	// The stored record follows every turn so a running or interrupted
	// debate shows its current coherence.
	now := m.now()
	debateRec.UpdatedAt = now
	if converged {
		debateRec.CompletedAt = &now
	}
	m.persist("record status", func(r Recorder) error { return r.RecordStatus(debateRec) })
	if converged {
		m.observer.ObserveConvergence()
		m.observer.ObserveStep(OutcomeConverged)
		log.Info("debate converged", zap.Int("turns", turnRec.Number))
	} else {
		m.observer.ObserveStep(OutcomeAccepted)
	}

	log.Debug("turn accepted",
		zap.Int("turn", turnRec.Number),
		zap.Float64("relevance", relevance),
		zap.Float64("coherence", coherence),
		zap.Bool("agreement", agreement),
		zap.Bool("off_topic", res.OffTopic),
	)
	return res, nil
}

// StepAsync runs Step in its own goroutine and delivers the outcome on the
// returned channel, which receives exactly one value.
func (m *Manager) StepAsync(ctx context.Context, id string) <-chan StepOutcome {
	ch := make(chan StepOutcome, 1)
	go func() {
		defer close(ch)
		res, err := m.Step(ctx, id)
		ch <- StepOutcome{Result: res, Err: err}
	}()
	return ch
}

// Stop deactivates debate id. It is idempotent; an in-flight step notices
// the stop when its completion returns and discards the response.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	st, ok := m.debates[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDebateNotFound, id)
	}
	if !st.Active {
		m.mu.Unlock()
		return nil
	}
	st.Active = false
	st.Status = core.StatusStopped
	rec := st.record()
	m.mu.Unlock()

	now := m.now()
	rec.UpdatedAt = now
	rec.CompletedAt = &now
	m.persist("record status", func(r Recorder) error { return r.RecordStatus(rec) })
	m.logger.Info("debate stopped", zap.String("debate_id", id))
	return nil
}

// Clear empties the history, response cache and convergence flags of
// debate id. A stopped debate stays stopped; a converged one returns to
// running because its convergence has just been forgotten.
func (m *Manager) Clear(id string) error {
	m.mu.Lock()
	st, ok := m.debates[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDebateNotFound, id)
	}
	st.reset()
	if st.Status == core.StatusConverged {
		st.Status = core.StatusRunning
		st.Active = true
	}
	rec := st.record()
	m.mu.Unlock()

	rec.UpdatedAt = m.now()
	m.persist("record clear", func(r Recorder) error { return r.RecordClear(id) })
	m.persist("record status", func(r Recorder) error { return r.RecordStatus(rec) })
	m.logger.Info("debate history cleared", zap.String("debate_id", id))
	return nil
}

// Snapshot returns a copy of debate id.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.debates[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrDebateNotFound, id)
	}
	return st.snapshot(m.cfg.SnapshotTail), nil
}

// List returns snapshots of all debates in creation order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.debates[id].snapshot(m.cfg.SnapshotTail))
	}
	return out
}

// Select makes debate id the current one.
func (m *Manager) Select(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDebateNotFound, id)
	}
	m.current = id
	return nil
}

// Current returns the ID of the current debate, or "".
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Bots returns the configured participants.
func (m *Manager) Bots() []bot.Profile {
	out := make([]bot.Profile, len(m.cfg.Bots))
	copy(out, m.cfg.Bots)
	return out
}

// StepInfiniteDebate steps the current debate and reports whether the
// driver should keep stepping. With no current debate it reports false.
// On a completion error the debate is still running, so it reports true
// together with the error.
func (m *Manager) StepInfiniteDebate(ctx context.Context) (bool, error) {
	id := m.Current()
	if id == "" {
		return false, nil
	}
	res, err := m.Step(ctx, id)
	if err != nil {
		return !errors.Is(err, ErrDebateNotFound), err
	}
	return res.Continue, nil
}

// StopInfiniteDebate stops the current debate, if any.
func (m *Manager) StopInfiniteDebate() {
	if id := m.Current(); id != "" {
		_ = m.Stop(id)
	}
}

// ClearHistory clears the current debate, if any.
func (m *Manager) ClearHistory() {
	if id := m.Current(); id != "" {
		_ = m.Clear(id)
	}
}

// GetStateSnapshot returns a snapshot of the current debate.
func (m *Manager) GetStateSnapshot() (Snapshot, error) {
	id := m.Current()
	if id == "" {
		return Snapshot{}, ErrDebateNotFound
	}
	return m.Snapshot(id)
}

// voicesAgreement reports whether the newest turn itself agrees. Only such
// turns extend the agreement streak, so a single agreeing reply never
// counts for both pairs it belongs to.
func (m *Manager) voicesAgreement(text string) bool {
	s, ok := m.evaluator.(heuristics.StanceDetector)
	return !ok || s.Agrees(text)
}

// nextSpeaker picks the first speaker by ordering key on an empty history
// and strictly alternates afterwards. Callers hold m.mu.
func (m *Manager) nextSpeaker(st *State) (speaker, opponent bot.Profile) {
	a, b := m.cfg.Bots[0], m.cfg.Bots[1]
	if len(st.History) == 0 {
		return bot.FirstSpeaker(a, b)
	}
	if st.LastSpeaker == a.Name() {
		return b, a
	}
	return a, b
}

func (m *Manager) personaPrompt(p bot.Profile) string {
	if p.Persona() == "" {
		return ""
	}
	if def := m.cfg.Personas.Get(p.Persona()); def != nil {
		return def.Prompt
	}
	return ""
}

func (m *Manager) complete(ctx context.Context, speaker bot.Profile, msgs []core.Message) (string, error) {
	start := time.Now()
	text, err := m.completer.Complete(ctx, speaker, msgs)
	m.observer.ObserveCompletion(speaker.Name(), time.Since(start), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (m *Manager) stillCurrent(st *State, epoch uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return st.Active && st.epoch == epoch
}

func (m *Manager) finishStep(st *State) {
	m.mu.Lock()
	st.stepping = false
	m.mu.Unlock()
}

func (m *Manager) persist(what string, fn func(Recorder) error) {
	if m.recorder == nil {
		return
	}
	if err := fn(m.recorder); err != nil {
		m.logger.Warn("failed to "+what, zap.Error(err))
	}
}

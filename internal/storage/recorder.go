package storage

import (
	"fmt"
	"time"

	"github.com/alienxp03/botdebate/internal/core"
)

// Recorder persists debate progress reported by the debate manager.
type Recorder struct {
	store Storage
	now   func() time.Time
}

// NewRecorder wraps store.
func NewRecorder(store Storage) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// RecordDebate stores a newly started debate.
func (r *Recorder) RecordDebate(d *core.Debate) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return r.store.CreateDebate(d)
}

// RecordTurn stores an accepted turn.
func (r *Recorder) RecordTurn(t *core.Turn) error {
	return r.store.AddTurn(t)
}

// RecordStatus updates status, agreement and coherence of a debate.
func (r *Recorder) RecordStatus(d *core.Debate) error {
	stored, err := r.store.GetDebate(d.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("debate %s is not stored", d.ID)
	}
	stored.Status = d.Status
	stored.AgreementReached = d.AgreementReached
	stored.CoherenceScore = d.CoherenceScore
	stored.UpdatedAt = d.UpdatedAt
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = r.now()
	}
	stored.CompletedAt = d.CompletedAt
	return r.store.UpdateDebate(stored)
}

// RecordClear drops the stored turns of a debate.
func (r *Recorder) RecordClear(debateID string) error {
	return r.store.DeleteTurns(debateID)
}

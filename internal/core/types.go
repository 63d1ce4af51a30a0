// Package core contains the core domain types for botdebate.
package core

import (
	"time"
)

// Role is the chat role attached to a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a debate history or a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Speaker string `json:"name,omitempty"` // bot name for assistant turns
	Content string `json:"content"`
}

// DebateStatus represents the lifecycle state of a debate.
type DebateStatus string

const (
	StatusIdle      DebateStatus = "idle"
	StatusRunning   DebateStatus = "running"
	StatusStopped   DebateStatus = "stopped"
	StatusConverged DebateStatus = "converged"
)

// Terminal reports whether no further turns will be accepted in this status.
func (s DebateStatus) Terminal() bool {
	return s == StatusStopped || s == StatusConverged
}

// Debate is the persisted view of a debate.
type Debate struct {
	ID               string       `json:"id"`
	Topic            string       `json:"topic"`
	BotA             string       `json:"bot_a"`
	BotB             string       `json:"bot_b"`
	Status           DebateStatus `json:"status"`
	AgreementReached bool         `json:"agreement_reached"`
	CoherenceScore   float64      `json:"coherence_score"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// Turn is one accepted message, as persisted.
type Turn struct {
	ID        string    `json:"id"`
	DebateID  string    `json:"debate_id"`
	Number    int       `json:"number"` // 1-based, chronological
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Relevance float64   `json:"relevance"`
	Coherence float64   `json:"coherence"`
	Duplicate bool      `json:"duplicate"` // accepted only after regeneration was exhausted
	CreatedAt time.Time `json:"created_at"`
}

// DebateSummary is a lightweight representation for listing debates.
type DebateSummary struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Status    DebateStatus `json:"status"`
	TurnCount int          `json:"turn_count"`
	CreatedAt time.Time    `json:"created_at"`
}

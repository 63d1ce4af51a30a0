package debate

import (
	"time"

	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/heuristics"
)

// RecentCache is a bounded set of normalised responses. When it grows
// past its capacity the oldest entry is evicted.
type RecentCache struct {
	capacity int
	entries  []string
	index    map[string]int // entry -> number of occurrences in entries
}

// NewRecentCache returns an empty cache holding at most capacity entries.
// A capacity below one is treated as one.
func NewRecentCache(capacity int) *RecentCache {
	if capacity < 1 {
		capacity = 1
	}
	return &RecentCache{
		capacity: capacity,
		entries:  make([]string, 0, capacity),
		index:    make(map[string]int, capacity),
	}
}

// Add inserts entry, evicting the oldest entries beyond capacity.
func (c *RecentCache) Add(entry string) {
	c.entries = append(c.entries, entry)
	c.index[entry]++
	for len(c.entries) > c.capacity {
		oldest := c.entries[0]
		c.entries = c.entries[1:]
		if c.index[oldest]--; c.index[oldest] <= 0 {
			delete(c.index, oldest)
		}
	}
}

// Contains reports whether entry is cached.
func (c *RecentCache) Contains(entry string) bool {
	_, ok := c.index[entry]
	return ok
}

// Entries returns a copy of the cached entries, oldest first.
func (c *RecentCache) Entries() []string {
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached entries.
func (c *RecentCache) Len() int { return len(c.entries) }

// Capacity returns the maximum number of entries.
func (c *RecentCache) Capacity() int { return c.capacity }

// Reset empties the cache.
func (c *RecentCache) Reset() {
	c.entries = c.entries[:0]
	c.index = make(map[string]int, c.capacity)
}

// State is the mutable record of one debate. It is owned by the Manager;
// callers only see it through Snapshot.
type State struct {
	ID               string
	Topic            string
	History          []core.Message
	LastSpeaker      string
	TopicKeywords    heuristics.Keywords
	AgreementReached bool
	CoherenceScore   float64
	RecentResponses  *RecentCache
	Active           bool
	Status           core.DebateStatus
	CreatedAt        time.Time

	AgreementStreak     int
	ZeroRelevanceStreak int
	OffTopic            bool
	LastRelevance       float64
	LastCoherence       float64

	// epoch changes whenever history is reset, so a step that started
	// before the reset can tell its candidate is stale.
	epoch    uint64
	stepping bool
}

func newState(id, topic string, cacheCapacity int, now time.Time) *State {
	return &State{
		ID:              id,
		Topic:           topic,
		TopicKeywords:   heuristics.ExtractKeywords(topic),
		CoherenceScore:  1,
		LastRelevance:   1,
		RecentResponses: NewRecentCache(cacheCapacity),
		Active:          true,
		Status:          core.StatusRunning,
		CreatedAt:       now,
	}
}

// reset clears history, cache and convergence flags. Topic and keywords
// stay.
func (s *State) reset() {
	s.History = nil
	s.LastSpeaker = ""
	s.AgreementReached = false
	s.AgreementStreak = 0
	s.ZeroRelevanceStreak = 0
	s.OffTopic = false
	s.CoherenceScore = 1
	s.LastRelevance = 1
	s.LastCoherence = 0
	s.RecentResponses.Reset()
	s.epoch++
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	Status           core.DebateStatus `json:"status"`
	Active           bool              `json:"active"`
	LastSpeaker      string            `json:"last_speaker,omitempty"`
	HistoryTail      []core.Message    `json:"history_tail"`
	HistoryLen       int               `json:"history_len"`
	AgreementReached bool              `json:"agreement_reached"`
	CoherenceScore   float64           `json:"coherence_score"`
	LastRelevance    float64           `json:"last_relevance"`
	OffTopic         bool              `json:"off_topic"`
	TopicKeywords    []string          `json:"topic_keywords"`
	StepInProgress   bool              `json:"step_in_progress"`
	CreatedAt        time.Time         `json:"created_at"`
}

func (s *State) snapshot(tail int) Snapshot {
	start := 0
	if tail > 0 && len(s.History) > tail {
		start = len(s.History) - tail
	}
	hist := make([]core.Message, len(s.History)-start)
	copy(hist, s.History[start:])

	return Snapshot{
		ID:               s.ID,
		Topic:            s.Topic,
		Status:           s.Status,
		Active:           s.Active,
		LastSpeaker:      s.LastSpeaker,
		HistoryTail:      hist,
		HistoryLen:       len(s.History),
		AgreementReached: s.AgreementReached,
		CoherenceScore:   s.CoherenceScore,
		LastRelevance:    s.LastRelevance,
		OffTopic:         s.OffTopic,
		TopicKeywords:    s.TopicKeywords.Sorted(),
		StepInProgress:   s.stepping,
		CreatedAt:        s.CreatedAt,
	}
}

func (s *State) record() *core.Debate {
	return &core.Debate{
		ID:               s.ID,
		Topic:            s.Topic,
		Status:           s.Status,
		AgreementReached: s.AgreementReached,
		CoherenceScore:   s.CoherenceScore,
		CreatedAt:        s.CreatedAt,
	}
}

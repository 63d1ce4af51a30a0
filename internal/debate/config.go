package debate

import (
	"fmt"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/persona"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultMaxRegenerations     = 2
	DefaultConvergenceThreshold = 2
	DefaultOffTopicThreshold    = 3
	DefaultCoherenceAlpha       = 0.3
	DefaultCacheCapacity        = 20
	DefaultSnapshotTail         = 10
)

// Config is passed to New and fixes the participants and thresholds of
// every debate the Manager runs.
type Config struct {
	// Bots lists exactly two participants with distinct names.
	Bots []bot.Profile

	// MaxRegenerations bounds how many times a near-duplicate candidate is
	// regenerated before it is accepted anyway.
	MaxRegenerations int

	// ConvergenceThreshold is the number of consecutive agreeing turn
	// pairs that ends a debate.
	ConvergenceThreshold int

	// OffTopicThreshold is the number of consecutive zero-relevance turns
	// after which the debate is flagged as off topic.
	OffTopicThreshold int

	// CoherenceAlpha weights the latest coherence sample in the rolling
	// score.
	CoherenceAlpha float64

	// CacheCapacity bounds the recent-response cache.
	CacheCapacity int

	// SnapshotTail bounds the history returned in snapshots.
	SnapshotTail int

	// SystemPrompt is a text/template for the system message. Empty uses
	// DefaultSystemPrompt.
	SystemPrompt string

	// Personas resolves bot persona IDs. Nil uses the built-ins.
	Personas *persona.Catalog
}

func (c Config) withDefaults() Config {
	if c.MaxRegenerations < 0 {
		c.MaxRegenerations = 0
	} else if c.MaxRegenerations == 0 {
		c.MaxRegenerations = DefaultMaxRegenerations
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if c.OffTopicThreshold <= 0 {
		c.OffTopicThreshold = DefaultOffTopicThreshold
	}
	if c.CoherenceAlpha <= 0 || c.CoherenceAlpha > 1 {
		c.CoherenceAlpha = DefaultCoherenceAlpha
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.SnapshotTail <= 0 {
		c.SnapshotTail = DefaultSnapshotTail
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Personas == nil {
		c.Personas = persona.NewCatalog()
	}
	return c
}

// Validate checks the participant list.
func (c Config) Validate() error {
	if len(c.Bots) != 2 {
		return fmt.Errorf("%w: exactly two bots are required, got %d", ErrInvalidConfig, len(c.Bots))
	}
	if c.Bots[0].Name() == "" || c.Bots[1].Name() == "" {
		return fmt.Errorf("%w: bot profiles must be built with bot.NewProfile", ErrInvalidConfig)
	}
	if c.Bots[0].Name() == c.Bots[1].Name() {
		return fmt.Errorf("%w: bot names must be unique, both are %q", ErrInvalidConfig, c.Bots[0].Name())
	}
	for _, b := range c.Bots {
		if b.Persona() != "" && c.Personas != nil && c.Personas.Get(b.Persona()) == nil {
			return fmt.Errorf("%w: unknown persona %q for %s", ErrInvalidConfig, b.Persona(), b.Name())
		}
	}
	return nil
}

package completion

import (
	"context"
	"fmt"
	"sync"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/core"
)

// Scripted is an offline completer. Each bot cycles through its own lines;
// a bot without lines gets a generated argument that names the turn.
type Scripted struct {
	mu    sync.Mutex
	lines map[string][]string
	next  map[string]int
}

// NewScripted creates a Scripted completer from per-bot lines.
func NewScripted(lines map[string][]string) *Scripted {
	s := &Scripted{
		lines: make(map[string][]string, len(lines)),
		next:  make(map[string]int),
	}
	for name, l := range lines {
		s.lines[name] = append([]string(nil), l...)
	}
	return s
}

// Complete implements the debate completer.
func (s *Scripted) Complete(ctx context.Context, profile bot.Profile, messages []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next[profile.Name()]
	s.next[profile.Name()] = n + 1
	lines := s.lines[profile.Name()]
	if len(lines) == 0 {
		return fmt.Sprintf("%s makes argument number %d after %d messages.", profile.Name(), n+1, len(messages)), nil
	}
	return lines[n%len(lines)], nil
}

// DemoLines is the script used by the CLI --mock mode.
var DemoLines = map[string][]string{
	"Bot1": {
		"Social networks connect people across distance and give a voice to those who were never heard before.",
		"Small businesses reach customers through social networks for a fraction of the cost of traditional advertising.",
		"Communities organise help during disasters faster on social networks than through any official channel.",
		"I agree that moderation matters, and with sensible limits social networks do more good than harm.",
	},
	"Bot2": {
		"Social networks reward outrage, and their feeds are built to keep people scrolling rather than informed.",
		"Teenagers report more anxiety since social networks turned every moment into a comparison.",
		"Misinformation spreads on social networks six times faster than corrections do.",
		"You are right that limits help, I agree the balance can be positive with real moderation.",
	},
}

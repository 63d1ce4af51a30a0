// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/completion"
	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/heuristics"
	"github.com/alienxp03/botdebate/internal/persona"
)

// Config represents the application configuration.
type Config struct {
	Bots       []BotConfig              `yaml:"bots"`
	Debate     DebateConfig             `yaml:"debate"`
	Heuristics heuristics.LexicalConfig `yaml:"heuristics,omitempty"`
	Completion CompletionConfig         `yaml:"completion"`
	Personas   []PersonaConfig          `yaml:"personas,omitempty"`
	Server     ServerConfig             `yaml:"server"`
	Storage    StorageConfig            `yaml:"storage"`
	Log        LogConfig                `yaml:"log"`
}

// BotConfig describes one debate participant.
type BotConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Model   string `yaml:"model,omitempty"`
	Persona string `yaml:"persona,omitempty"`
}

// DebateConfig holds the debate thresholds.
type DebateConfig struct {
	MaxRegenerations     int     `yaml:"max_regenerations"`
	ConvergenceThreshold int     `yaml:"convergence_threshold"`
	OffTopicThreshold    int     `yaml:"off_topic_threshold"`
	CoherenceAlpha       float64 `yaml:"coherence_alpha"`
	CacheCapacity        int     `yaml:"cache_capacity"`
	SnapshotTail         int     `yaml:"snapshot_tail"`
	SystemPrompt         string  `yaml:"system_prompt,omitempty"`

	// StepInterval paces the driver loop between steps.
	StepInterval time.Duration `yaml:"step_interval"`

	// Judge names a bot that confirms lexical agreement. Empty disables
	// confirmation.
	Judge string `yaml:"judge,omitempty"`
}

// CompletionConfig holds HTTP client settings.
type CompletionConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
}

// PersonaConfig holds custom persona definitions.
type PersonaConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig holds the debate database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`            // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json or console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Bots: []BotConfig{
			{Name: "Bot1", URL: "http://192.168.8.87:12345/v1/chat/completions"},
			{Name: "Bot2", URL: "http://192.168.8.89:12345/v1/chat/completions"},
		},
		Debate: DebateConfig{
			MaxRegenerations:     debate.DefaultMaxRegenerations,
			ConvergenceThreshold: debate.DefaultConvergenceThreshold,
			OffTopicThreshold:    debate.DefaultOffTopicThreshold,
			CoherenceAlpha:       debate.DefaultCoherenceAlpha,
			CacheCapacity:        debate.DefaultCacheCapacity,
			SnapshotTail:         debate.DefaultSnapshotTail,
			StepInterval:         time.Second,
		},
		Heuristics: heuristics.LexicalConfig{
			SimilarityThreshold: heuristics.DefaultSimilarityThreshold,
		},
		Completion: CompletionConfig{
			Timeout:     2 * time.Minute,
			Temperature: 0.7,
		},
		Server: ServerConfig{
			Addr: ":8182",
		},
		Storage: StorageConfig{
			Path: filepath.Join(DefaultDataDir(), "botdebate.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. A missing file yields
// the defaults. Values from a .env file in the working directory override
// the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if env, err := LoadEnv(".env"); err == nil {
		ApplyEnvOverrides(cfg, env)
	}
	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the parts that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Bots) != 2 {
		errs = append(errs, fmt.Errorf("exactly two bots are required, got %d", len(c.Bots)))
	}
	seen := make(map[string]bool, len(c.Bots))
	for i, b := range c.Bots {
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, fmt.Errorf("bots[%d]: name is required", i))
		} else if seen[b.Name] {
			errs = append(errs, fmt.Errorf("bots[%d]: duplicate name %q", i, b.Name))
		}
		seen[b.Name] = true
		if strings.TrimSpace(b.URL) == "" {
			errs = append(errs, fmt.Errorf("bots[%d]: url is required", i))
		}
		if b.Persona != "" && c.PersonaCatalog().Get(b.Persona) == nil {
			errs = append(errs, fmt.Errorf("bots[%d]: unknown persona %q", i, b.Persona))
		}
	}
	if c.Debate.Judge != "" && !seen[c.Debate.Judge] {
		errs = append(errs, fmt.Errorf("debate.judge %q is not a configured bot", c.Debate.Judge))
	}
	if t := c.Heuristics.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("heuristics.similarity_threshold must be within [0,1], got %v", t))
	}
	if a := c.Debate.CoherenceAlpha; a < 0 || a > 1 {
		errs = append(errs, fmt.Errorf("debate.coherence_alpha must be within [0,1], got %v", a))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Profiles builds the bot profiles in configuration order.
func (c *Config) Profiles() ([]bot.Profile, error) {
	out := make([]bot.Profile, 0, len(c.Bots))
	for _, b := range c.Bots {
		p, err := bot.NewProfile(b.Name, b.URL, b.Model, b.Persona)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Profile returns the profile of the named bot.
func (c *Config) Profile(name string) (bot.Profile, bool) {
	for _, b := range c.Bots {
		if b.Name == name {
			p, err := bot.NewProfile(b.Name, b.URL, b.Model, b.Persona)
			return p, err == nil
		}
	}
	return bot.Profile{}, false
}

// PersonaCatalog returns the built-in personas plus the custom ones.
func (c *Config) PersonaCatalog() *persona.Catalog {
	custom := make([]persona.Persona, 0, len(c.Personas))
	for _, p := range c.Personas {
		custom = append(custom, persona.Persona{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Prompt:      p.SystemPrompt,
		})
	}
	return persona.NewCatalog(custom...)
}

// ManagerConfig converts the configuration into a debate.Config.
func (c *Config) ManagerConfig() (debate.Config, error) {
	profiles, err := c.Profiles()
	if err != nil {
		return debate.Config{}, err
	}
	return debate.Config{
		Bots:                 profiles,
		MaxRegenerations:     c.Debate.MaxRegenerations,
		ConvergenceThreshold: c.Debate.ConvergenceThreshold,
		OffTopicThreshold:    c.Debate.OffTopicThreshold,
		CoherenceAlpha:       c.Debate.CoherenceAlpha,
		CacheCapacity:        c.Debate.CacheCapacity,
		SnapshotTail:         c.Debate.SnapshotTail,
		SystemPrompt:         c.Debate.SystemPrompt,
		Personas:             c.PersonaCatalog(),
	}, nil
}

// LexicalConfig returns the heuristic phrase overrides.
func (c *Config) LexicalConfig() heuristics.LexicalConfig {
	return c.Heuristics
}

// CompletionOptions returns the HTTP client options.
func (c *Config) CompletionOptions() completion.Options {
	return completion.Options{
		Timeout:     c.Completion.Timeout,
		APIKey:      c.Completion.APIKey,
		Temperature: c.Completion.Temperature,
		MaxTokens:   c.Completion.MaxTokens,
	}
}

// DefaultDataDir returns the directory holding config and database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botdebate"
	}
	return filepath.Join(home, ".botdebate")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# botdebate configuration file
# Place this file at ~/.botdebate/config.yaml

bots:
  # The bot whose endpoint has the lower IP address opens the debate.
  - name: Bot1
    url: http://192.168.8.87:12345/v1/chat/completions
    model: ""               # empty = whatever the server has loaded
    persona: proponent      # proponent, opponent, skeptic, pragmatist or custom
  - name: Bot2
    url: http://192.168.8.89:12345/v1/chat/completions
    model: ""
    persona: opponent

debate:
  max_regenerations: 2      # retries for a near-duplicate reply, -1 disables
  convergence_threshold: 2  # consecutive agreeing turns that end a debate
  off_topic_threshold: 3    # zero-relevance turns before flagging off topic
  coherence_alpha: 0.3      # weight of the latest coherence sample
  cache_capacity: 20        # recent replies checked for repetition
  snapshot_tail: 10         # messages shown in snapshots
  step_interval: 1s         # pause between turns in "botdebate run"
  judge: ""                 # bot asked to confirm agreement (empty = off)

heuristics:
  similarity_threshold: 0.8
  # agreement_phrases: ["согласен", "i agree"]
  # disagreement_phrases: ["не согласен", "i disagree"]

completion:
  timeout: 2m
  temperature: 0.7
  max_tokens: 0             # 0 = server default

server:
  addr: ":8182"

storage:
  path: ~/.botdebate/botdebate.db

log:
  level: info               # debug, info, warn, error
  format: console           # console or json

# Custom personas (optional)
personas:
  - id: economist
    name: Economist
    description: Argues from costs, incentives and trade-offs
    system_prompt: |
      Reason like an economist. Put numbers on costs and benefits,
      point out incentives and second-order effects.
`
	return example
}

// ExpandPath resolves a leading "~/" against the home directory.
func ExpandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

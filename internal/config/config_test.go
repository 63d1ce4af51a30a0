package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alienxp03/botdebate/internal/debate"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Bots, 2)
	assert.Equal(t, time.Second, cfg.Debate.StepInterval)
	assert.Equal(t, ":8182", cfg.Server.Addr)
	assert.Equal(t, 0.8, cfg.Heuristics.SimilarityThreshold)

	profiles, err := cfg.Profiles()
	require.NoError(t, err)
	assert.Equal(t, "3232237655", profiles[0].OrderingKey().String())
	assert.Equal(t, "3232237657", profiles[1].OrderingKey().String())
}

func TestLoadFrom(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bots:
  - name: Left
    url: http://10.0.0.2:1234/v1/chat/completions
    persona: economist
  - name: Right
    url: http://10.0.0.1:1234/v1/chat/completions
    model: qwen2.5-7b
debate:
  convergence_threshold: 4
  judge: Right
personas:
  - id: economist
    name: Economist
    system_prompt: Think in trade-offs.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Bots, 2)
	assert.Equal(t, "Left", cfg.Bots[0].Name)
	assert.Equal(t, 4, cfg.Debate.ConvergenceThreshold)
	assert.Equal(t, debate.DefaultMaxRegenerations, cfg.Debate.MaxRegenerations, "unset fields keep defaults")

	mc, err := cfg.ManagerConfig()
	require.NoError(t, err)
	require.NoError(t, mc.Validate())
	assert.Equal(t, "Think in trade-offs.", mc.Personas.Get("economist").Prompt)
	assert.NotNil(t, mc.Personas.Get("skeptic"))

	judge, ok := cfg.Profile("Right")
	require.True(t, ok)
	assert.Equal(t, "qwen2.5-7b", judge.Model())
	_, ok = cfg.Profile("Nobody")
	assert.False(t, ok)
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFrom_EnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BOT2_URL=http://10.1.1.1/v1/chat/completions\n"), 0644))

	cfg, err := LoadFrom(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.1.1.1/v1/chat/completions", cfg.Bots[1].URL)
}

func TestLoadFrom_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bots: [unterminated"), 0644))
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Debate.Judge = "Bot2"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"one bot", func(c *Config) { c.Bots = c.Bots[:1] }, "exactly two bots"},
		{"missing url", func(c *Config) { c.Bots[0].URL = "" }, "url is required"},
		{"duplicate name", func(c *Config) { c.Bots[1].Name = c.Bots[0].Name }, "duplicate name"},
		{"unknown persona", func(c *Config) { c.Bots[0].Persona = "oracle" }, "unknown persona"},
		{"unknown judge", func(c *Config) { c.Debate.Judge = "Bot9" }, "debate.judge"},
		{"threshold", func(c *Config) { c.Heuristics.SimilarityThreshold = 1.5 }, "similarity_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestGenerateExample_Parses(t *testing.T) {
	cfg := Default()
	require.NoError(t, yaml.Unmarshal([]byte(GenerateExample()), cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "proponent", cfg.Bots[0].Persona)
	assert.Equal(t, "~/.botdebate/botdebate.db", cfg.Storage.Path)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), ExpandPath("~/x.db"))
	assert.Equal(t, "/tmp/x.db", ExpandPath("/tmp/x.db"))
}

func TestNewLogger(t *testing.T) {
	for _, lc := range []LogConfig{{Level: "debug"}, {Level: "warn", Format: "json"}, {}} {
		logger, err := NewLogger(lc)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `
# Comment
KEY1=value1
KEY2="value 2"
KEY3='value 3'
KEY4=value 4 # inline comment
KEY5="keep # this"
export KEY6=exported
EMPTY=
NOEQUALS
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create env file: %v", err)
	}

	env, err := LoadEnv(envFile)
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"KEY1", "value1"},
		{"KEY2", "value 2"},
		{"KEY3", "value 3"},
		{"KEY4", "value 4"},
		{"KEY5", "keep # this"},
		{"KEY6", "exported"},
		{"EMPTY", ""},
	}

	for _, tt := range tests {
		if got, ok := env[tt.key]; !ok || got != tt.expected {
			t.Errorf("expected %s=%q, got %q (exists=%v)", tt.key, tt.expected, got, ok)
		}
	}
	if _, ok := env["NOEQUALS"]; ok {
		t.Errorf("line without '=' should be skipped")
	}
}

func TestLoadEnv_Missing(t *testing.T) {
	if _, err := LoadEnv(filepath.Join(t.TempDir(), ".env")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	env := map[string]string{
		"BOT1_URL":                     "http://10.0.0.5:1234/v1/chat/completions",
		"BOT1_NAME":                    "Socrates",
		"BOT2_NAME":                    "Plato",
		"BOT2_MODEL":                   "llama-3.1-8b",
		"DEBATE_MAX_REGENERATIONS":     "4",
		"DEBATE_CONVERGENCE_THRESHOLD": "3",
		"DEBATE_STEP_INTERVAL":         "250ms",
		"COMPLETION_TIMEOUT":           "60",
		"SERVER_ADDR":                  "127.0.0.1:9090",
		"LOG_LEVEL":                    "debug",
	}

	ApplyEnvOverrides(cfg, env)

	if cfg.Bots[0].URL != "http://10.0.0.5:1234/v1/chat/completions" {
		t.Errorf("expected bot1 url override, got %s", cfg.Bots[0].URL)
	}
	if cfg.Bots[0].Name != "Socrates" || cfg.Bots[1].Name != "Plato" {
		t.Errorf("expected renamed bots, got %s and %s", cfg.Bots[0].Name, cfg.Bots[1].Name)
	}
	if cfg.Bots[1].URL != Default().Bots[1].URL {
		t.Errorf("bot2 url should keep its default, got %s", cfg.Bots[1].URL)
	}
	if cfg.Bots[1].Model != "llama-3.1-8b" {
		t.Errorf("expected bot2 model, got %q", cfg.Bots[1].Model)
	}
	if cfg.Debate.MaxRegenerations != 4 {
		t.Errorf("expected max regenerations 4, got %d", cfg.Debate.MaxRegenerations)
	}
	if cfg.Debate.ConvergenceThreshold != 3 {
		t.Errorf("expected convergence threshold 3, got %d", cfg.Debate.ConvergenceThreshold)
	}
	if cfg.Debate.StepInterval != 250*time.Millisecond {
		t.Errorf("expected step interval 250ms, got %v", cfg.Debate.StepInterval)
	}
	if cfg.Completion.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", cfg.Completion.Timeout)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("expected addr override, got %s", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Log.Level)
	}
}

func TestApplyEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	cfg := Default()
	ApplyEnvOverrides(cfg, map[string]string{
		"DEBATE_MAX_REGENERATIONS": "many",
		"COMPLETION_TIMEOUT":       "soon",
	})
	if cfg.Debate.MaxRegenerations != Default().Debate.MaxRegenerations {
		t.Errorf("invalid number should be ignored, got %d", cfg.Debate.MaxRegenerations)
	}
	if cfg.Completion.Timeout != Default().Completion.Timeout {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Completion.Timeout)
	}
}

func TestApplyEnvOverrides_FillsMissingBots(t *testing.T) {
	cfg := Default()
	cfg.Bots = nil
	ApplyEnvOverrides(cfg, map[string]string{
		"BOT1_NAME": "A", "BOT1_URL": "http://10.0.0.1/v1/chat/completions",
		"BOT2_NAME": "B", "BOT2_URL": "http://10.0.0.2/v1/chat/completions",
	})
	if len(cfg.Bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(cfg.Bots))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
// It ignores comments (starting with #) and empty lines.
func LoadEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
			// Quoted values keep their " #".
			if end := strings.LastIndexByte(value, value[0]); end > 0 {
				value = value[1:end]
			}
		} else if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		env[key] = value
	}

	return env, scanner.Err()
}

// ApplyEnvOverrides updates the configuration from env. BOT1_* and BOT2_*
// address the first and second configured bot.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	for i, prefix := range []string{"BOT1_", "BOT2_"} {
		for len(cfg.Bots) <= i {
			cfg.Bots = append(cfg.Bots, BotConfig{})
		}
		b := &cfg.Bots[i]
		if val, ok := env[prefix+"URL"]; ok && val != "" {
			b.URL = val
		}
		if val, ok := env[prefix+"NAME"]; ok && val != "" {
			b.Name = val
		}
		if val, ok := env[prefix+"MODEL"]; ok {
			b.Model = val
		}
		if val, ok := env[prefix+"PERSONA"]; ok {
			b.Persona = val
		}
	}

	if val, ok := env["DEBATE_MAX_REGENERATIONS"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Debate.MaxRegenerations = n
		}
	}
	if val, ok := env["DEBATE_CONVERGENCE_THRESHOLD"]; ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Debate.ConvergenceThreshold = n
		}
	}
	if val, ok := env["DEBATE_STEP_INTERVAL"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Debate.StepInterval = d
		}
	}
	if val, ok := env["DEBATE_JUDGE"]; ok {
		cfg.Debate.Judge = val
	}

	if val, ok := env["COMPLETION_TIMEOUT"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Completion.Timeout = d
		}
	}
	if val, ok := env["COMPLETION_API_KEY"]; ok {
		cfg.Completion.APIKey = val
	}

	if val, ok := env["SERVER_ADDR"]; ok && val != "" {
		cfg.Server.Addr = val
	}
	if val, ok := env["STORAGE_PATH"]; ok && val != "" {
		cfg.Storage.Path = val
	}
	if val, ok := env["LOG_LEVEL"]; ok && val != "" {
		cfg.Log.Level = val
	}
	if val, ok := env["LOG_FORMAT"]; ok && val != "" {
		cfg.Log.Format = val
	}
}

// parseDuration accepts plain seconds ("60") or a Go duration ("1m").
func parseDuration(val string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}

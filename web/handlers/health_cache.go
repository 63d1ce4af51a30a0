package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/completion"
)

const (
	botHealthCacheFilename = "botdebate-bot-health.json"
	botHealthCacheTTL      = 30 * time.Second
)

// botHealthCache keeps the last successful health check per bot. Failed
// checks are stored but never served as fresh. An empty path keeps the
// cache in memory only.
type botHealthCache struct {
	mu     sync.Mutex
	path   string
	ttl    time.Duration
	loaded bool
	data   map[string]completion.HealthStatus
	now    func() time.Time
	logger *zap.Logger
}

func newBotHealthCache(path string, ttl time.Duration, logger *zap.Logger) *botHealthCache {
	if ttl <= 0 {
		ttl = botHealthCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &botHealthCache{
		path:   path,
		ttl:    ttl,
		data:   make(map[string]completion.HealthStatus),
		now:    time.Now,
		logger: logger,
	}
}

// DefaultHealthCachePath returns the on-disk location used by serve.
func DefaultHealthCachePath() string {
	return filepath.Join(os.TempDir(), botHealthCacheFilename)
}

func (c *botHealthCache) GetFresh(name string) (completion.HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLoaded()
	status, ok := c.data[name]
	if !ok || !status.Available || status.CheckedAt.IsZero() {
		return completion.HealthStatus{}, false
	}
	if c.now().Sub(status.CheckedAt) > c.ttl {
		return completion.HealthStatus{}, false
	}
	return status, true
}

func (c *botHealthCache) Set(name string, status completion.HealthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureLoaded()
	c.data[name] = status
	c.persist()
}

func (c *botHealthCache) ensureLoaded() {
	if c.loaded {
		return
	}
	c.loaded = true
	if c.path == "" {
		return
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read bot health cache", zap.String("path", c.path), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, &c.data); err != nil {
		c.logger.Warn("failed to parse bot health cache", zap.String("path", c.path), zap.Error(err))
		c.data = make(map[string]completion.HealthStatus)
	}
}

func (c *botHealthCache) persist() {
	if c.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.logger.Warn("failed to create bot health cache directory", zap.String("path", c.path), zap.Error(err))
		return
	}

	payload, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		c.logger.Warn("failed to encode bot health cache", zap.String("path", c.path), zap.Error(err))
		return
	}
	if err := os.WriteFile(c.path, payload, 0o644); err != nil {
		c.logger.Warn("failed to write bot health cache", zap.String("path", c.path), zap.Error(err))
	}
}

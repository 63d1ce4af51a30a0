package handlers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alienxp03/botdebate/internal/completion"
)

func TestBotHealthCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "health.json")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	c := newBotHealthCache(path, time.Minute, nil)
	c.now = func() time.Time { return now }

	c.Set("Bot1", completion.HealthStatus{Bot: "Bot1", Available: true, CheckedAt: now})
	c.Set("Bot2", completion.HealthStatus{Bot: "Bot2", Available: false, Error: "refused", CheckedAt: now})

	if _, ok := c.GetFresh("Bot1"); !ok {
		t.Fatal("expected fresh status for Bot1")
	}
	if _, ok := c.GetFresh("Bot2"); ok {
		t.Fatal("expected unavailable status not to be served")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file to be created, got error: %v", err)
	}

	reloaded := newBotHealthCache(path, time.Minute, nil)
	reloaded.now = func() time.Time { return now.Add(30 * time.Second) }
	if status, ok := reloaded.GetFresh("Bot1"); !ok || status.Bot != "Bot1" {
		t.Fatalf("expected status to survive reload, got %+v, %v", status, ok)
	}

	reloaded.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := reloaded.GetFresh("Bot1"); ok {
		t.Fatal("expected stale status to be ignored")
	}
}

func TestBotHealthCache_MemoryOnly(t *testing.T) {
	c := newBotHealthCache("", 0, nil)
	if c.ttl != botHealthCacheTTL {
		t.Fatalf("expected default ttl, got %v", c.ttl)
	}
	c.Set("Bot1", completion.HealthStatus{Available: true, CheckedAt: time.Now()})
	if _, ok := c.GetFresh("Bot1"); !ok {
		t.Fatal("expected in-memory status")
	}
}

func TestBotHealthCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newBotHealthCache(path, time.Minute, nil)
	if _, ok := c.GetFresh("Bot1"); ok {
		t.Fatal("expected empty cache after corrupt file")
	}
}

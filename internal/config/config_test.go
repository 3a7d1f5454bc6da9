package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if cfg.Source != "newsapi" {
		t.Errorf("expected newsapi source, got %q", cfg.Source)
	}
	if cfg.Feed.PageSize != 15 {
		t.Errorf("expected page size 15, got %d", cfg.Feed.PageSize)
	}
	if cfg.Feed.MaxPages != 5 {
		t.Errorf("expected 5 max pages, got %d", cfg.Feed.MaxPages)
	}
	if cfg.RateLimit.TrustForwarded {
		t.Error("forwarded headers should not be trusted by default")
	}
	if len(cfg.Site.Categories) != 7 {
		t.Errorf("expected 7 categories, got %v", cfg.Site.Categories)
	}
	if err := validate(cfg); err != nil {
		t.Errorf("embedded defaults should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
feed:
  mode: paged
  page_size: 20
news_api:
  api_key: from-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Paged() {
		t.Error("expected paged mode from file")
	}
	if cfg.Feed.PageSize != 20 {
		t.Errorf("expected page size 20, got %d", cfg.Feed.PageSize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Feed.MaxPages != 5 {
		t.Errorf("expected default max pages 5, got %d", cfg.Feed.MaxPages)
	}
	if cfg.NewsAPI.Country != "us" {
		t.Errorf("expected default country us, got %q", cfg.NewsAPI.Country)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("NEWS_API_KEY", "secret")
	t.Setenv("NEWS_BASE_URL", "http://localhost:1234/v2")
	t.Setenv("KAFKA_BROKER", "localhost:9092")

	cfg, err := Load(writeConfig(t, "news_api:\n  api_key: from-file\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.Addr)
	}
	if cfg.NewsAPI.APIKey != "secret" {
		t.Errorf("env should win over file, got %q", cfg.NewsAPI.APIKey)
	}
	if cfg.NewsAPI.BaseURL != "http://localhost:1234/v2" {
		t.Errorf("unexpected base url %q", cfg.NewsAPI.BaseURL)
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Broker != "localhost:9092" {
		t.Errorf("KAFKA_BROKER should enable kafka, got %+v", cfg.Kafka)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown source", "source: carrier-pigeon\n"},
		{"bad base url", "news_api:\n  base_url: ftp://example.com\n"},
		{"unknown mode", "feed:\n  mode: sideways\n"},
		{"zero page size", "feed:\n  page_size: 0\n"},
		{"bad rss feed", "source: rss\nrss:\n  feeds:\n    science: not-a-url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"30m", 30 * time.Minute},
		{"300ms", 300 * time.Millisecond},
		{"", time.Minute},
		{"garbage", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		if got := duration(tt.input, time.Minute); got != tt.want {
			t.Errorf("duration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "site:\n  title: Before\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("site:\n  title: After\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	// A single write may surface as several events, some seeing a truncated file.
	deadline := time.After(3 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-got:
			reloaded = cfg.Site.Title == "After"
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type Server struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	IdleTimeout  string `yaml:"idle_timeout"`
	SessionIdle  string `yaml:"session_idle"`
	MaxSessions  int    `yaml:"max_sessions"`
}

type NewsAPI struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Country string   `yaml:"country"`
	Domains []string `yaml:"domains"`
	Timeout string   `yaml:"timeout"`
}

// RSS maps a lowercase category to a feed URL. The empty key is the home feed.
type RSS struct {
	Feeds map[string]string `yaml:"feeds"`
}

type Feed struct {
	Mode     string `yaml:"mode"` // "infinite" or "paged"
	PageSize int    `yaml:"page_size"`
	MaxPages int    `yaml:"max_pages"`
	Debounce string `yaml:"debounce"`
}

type Reader struct {
	Timeout           string `yaml:"timeout"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	UserAgent         string `yaml:"user_agent"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustForwarded keys clients by X-Forwarded-For; only safe behind a proxy.
	TrustForwarded bool `yaml:"trust_forwarded"`
}

type Kafka struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	GroupID  string `yaml:"group_id"`
	Capacity int    `yaml:"capacity"`
}

type Warmer struct {
	Interval   string   `yaml:"interval"`
	Retention  string   `yaml:"retention"`
	Categories []string `yaml:"categories"`
	SeenDB     string   `yaml:"seen_db,omitempty"`
}

type Site struct {
	Title      string   `yaml:"title"`
	Categories []string `yaml:"categories"`
	Languages  []string `yaml:"languages"`
}

type Config struct {
	Source    string    `yaml:"source"` // "newsapi" or "rss"
	Server    Server    `yaml:"server"`
	NewsAPI   NewsAPI   `yaml:"news_api"`
	RSS       RSS       `yaml:"rss"`
	Feed      Feed      `yaml:"feed"`
	Reader    Reader    `yaml:"reader"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Kafka     Kafka     `yaml:"kafka"`
	Warmer    Warmer    `yaml:"warmer"`
	Site      Site      `yaml:"site"`
}

func (c *Config) ReadTimeout() time.Duration { return duration(c.Server.ReadTimeout, 5*time.Second) }
func (c *Config) WriteTimeout() time.Duration { return duration(c.Server.WriteTimeout, 30*time.Second) }
func (c *Config) IdleTimeout() time.Duration { return duration(c.Server.IdleTimeout, 120*time.Second) }
func (c *Config) SessionIdle() time.Duration { return duration(c.Server.SessionIdle, 30*time.Minute) }
func (c *Config) NewsAPITimeout() time.Duration {
	return duration(c.NewsAPI.Timeout, 10*time.Second)
}
func (c *Config) ReaderTimeout() time.Duration { return duration(c.Reader.Timeout, 15*time.Second) }
func (c *Config) DebounceDuration() time.Duration { return duration(c.Feed.Debounce, 300*time.Millisecond) }
func (c *Config) WarmInterval() time.Duration { return duration(c.Warmer.Interval, 5*time.Minute) }
func (c *Config) RetentionDuration() time.Duration {
	return duration(c.Warmer.Retention, 7*24*time.Hour)
}

// Paged reports whether feeds use numbered page buttons instead of infinite scroll.
func (c *Config) Paged() bool {
	return c.Feed.Mode == "paged"
}

// SeenDBPath returns where the warmer records published URLs.
func (c *Config) SeenDBPath() string {
	if c.Warmer.SeenDB != "" {
		return c.Warmer.SeenDB
	}
	return filepath.Join(xdg.DataHome, "newsfeeder", "seen.db")
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newsfeeder", "config.yaml")
}

// duration parses Go durations plus an "Nd" day form, falling back to def.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load builds the configuration from the embedded defaults, the YAML file at path
// and finally the environment (a .env file in the working directory is read first).
// An empty path means DefaultConfigPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("API_PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if v := os.Getenv("NEWS_BASE_URL"); v != "" {
		cfg.NewsAPI.BaseURL = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.NewsAPI.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Broker = v
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
}

func validate(cfg *Config) error {
	switch cfg.Source {
	case "newsapi":
		if err := checkURL(cfg.NewsAPI.BaseURL); err != nil {
			return fmt.Errorf("news_api.base_url: %w", err)
		}
	case "rss":
		if len(cfg.RSS.Feeds) == 0 {
			return errors.New("rss.feeds: at least one feed is required")
		}
		for cat, u := range cfg.RSS.Feeds {
			if err := checkURL(u); err != nil {
				return fmt.Errorf("rss feed %q: %w", cat, err)
			}
		}
	default:
		return fmt.Errorf("unknown source %q (valid: newsapi, rss)", cfg.Source)
	}

	if cfg.Feed.Mode != "infinite" && cfg.Feed.Mode != "paged" {
		return fmt.Errorf("feed.mode: unknown mode %q (valid: infinite, paged)", cfg.Feed.Mode)
	}
	if cfg.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive, got %d", cfg.Feed.PageSize)
	}
	if cfg.Feed.MaxPages < 0 {
		return fmt.Errorf("feed.max_pages must not be negative, got %d", cfg.Feed.MaxPages)
	}
	if cfg.Reader.SentencesPerChunk <= 0 {
		return fmt.Errorf("reader.sentences_per_chunk must be positive, got %d", cfg.Reader.SentencesPerChunk)
	}
	if cfg.Kafka.Enabled && (cfg.Kafka.Broker == "" || cfg.Kafka.Topic == "") {
		return errors.New("kafka: broker and topic are required when enabled")
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/config"
	"github.com/ArjunKumar-Q/newsfeeder/internal/newsapi"
	"github.com/ArjunKumar-Q/newsfeeder/internal/rss"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/events"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/handlers"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/kafka"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/middleware"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/reader"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/storage"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/view"
	"github.com/spf13/cobra"
)

func newSource(cfg *config.Config) (feed.Source, error) {
	switch cfg.Source {
	case "rss":
		return rss.New(cfg.RSS.Feeds, cfg.NewsAPITimeout()), nil
	case "newsapi", "":
		c := newsapi.New(cfg.NewsAPI.BaseURL, cfg.NewsAPI.APIKey, cfg.NewsAPITimeout())
		c.Country = cfg.NewsAPI.Country
		c.Domains = cfg.NewsAPI.Domains
		return c, nil
	}
	return nil, fmt.Errorf("unknown article source %q", cfg.Source)
}

func siteOf(cfg *config.Config) view.Site {
	return view.Site{
		Title:      cfg.Site.Title,
		Categories: cfg.Site.Categories,
		Languages:  cfg.Site.Languages,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Storage and events ---
	bus := events.NewBus()
	headlines := storage.NewHeadlineStore(cfg.Kafka.Capacity)
	feedOpts := feed.Options{PageSize: cfg.Feed.PageSize, MaxPages: cfg.Feed.MaxPages}
	sessions := storage.NewSessionStore(handlers.NewSessionFeed(src, feedOpts, bus), cfg.SessionIdle(), cfg.Server.MaxSessions)
	sessions.StartSweeper(ctx, time.Minute)

	// --- Kafka headlines ---
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, headlines, bus)
		go consumer.StartConsuming(ctx)
	}

	// --- Handlers ---
	h := handlers.New(handlers.Options{
		Sessions:        sessions,
		Headlines:       headlines,
		Bus:             bus,
		Extractor:       reader.NewExtractor(cfg.ReaderTimeout(), cfg.Reader.UserAgent, cfg.Reader.MaxBodyBytes),
		Renderer:        renderer,
		Site:            siteOf(cfg),
		Paged:           cfg.Paged(),
		ChunkSize:       cfg.Reader.SentencesPerChunk,
		Debounce:        cfg.DebounceDuration(),
		PrefetchTimeout: cfg.NewsAPITimeout(),
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.TrustForwarded = cfg.RateLimit.TrustForwarded
	limiter.StartCleanup(ctx, time.Minute, 3*time.Minute)

	configPath := flagConfig
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		go func() {
			err := config.Watch(ctx, configPath, func(c *config.Config) { h.SetSite(siteOf(c)) })
			if err != nil {
				log.Printf("Config watch stopped: %v", err)
			}
		}()
	}

	// --- HTTP server ---
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middleware.Logging(h.Routes(limiter.Middleware)),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Web server listening on %s (source: %s, mode: %s)", cfg.Server.Addr, cfg.Source, cfg.Feed.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}

	log.Println("Shutting down web server...")
	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Error closing Kafka consumer: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Web server gracefully stopped.")
	return nil
}

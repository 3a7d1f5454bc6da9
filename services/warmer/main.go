package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/config"
	"github.com/ArjunKumar-Q/newsfeeder/internal/newsapi"
	"github.com/ArjunKumar-Q/newsfeeder/internal/rss"
	"github.com/ArjunKumar-Q/newsfeeder/services/warmer/kafka"
	"github.com/ArjunKumar-Q/newsfeeder/services/warmer/seen"
	"github.com/ArjunKumar-Q/newsfeeder/services/warmer/warmer"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	flagConfig   string
	flagInterval time.Duration
	flagOnce     bool
)

var rootCmd = &cobra.Command{
	Use:   "newsfeeder-warmer",
	Short: "Publish fresh headlines to Kafka",
	Long:  "newsfeeder-warmer polls top headlines for every configured category and publishes the ones it has not seen before.",
	RunE:  run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsfeeder-warmer %s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().DurationVar(&flagInterval, "interval", 0, "poll interval, overrides warmer.interval")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "poll once and exit")
	rootCmd.AddCommand(versionCmd)
}

func newSource(cfg *config.Config) warmer.Source {
	if cfg.Source == "rss" {
		return rss.New(cfg.RSS.Feeds, cfg.NewsAPITimeout())
	}
	c := newsapi.New(cfg.NewsAPI.BaseURL, cfg.NewsAPI.APIKey, cfg.NewsAPITimeout())
	c.Country = cfg.NewsAPI.Country
	c.Domains = cfg.NewsAPI.Domains
	return c
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := seen.Open(cfg.SeenDBPath())
	if err != nil {
		return fmt.Errorf("opening seen store: %w", err)
	}
	defer store.Close()

	producer := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.Topic)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Printf("Failed to close Kafka producer: %v", err)
		}
	}()

	w := warmer.New(newSource(cfg), store, producer, warmer.Options{
		Categories: cfg.Warmer.Categories,
		PageSize:   cfg.Feed.PageSize,
		Retention:  cfg.RetentionDuration(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagOnce {
		w.Cycle(ctx)
		return nil
	}
	interval := cfg.WarmInterval()
	if flagInterval > 0 {
		interval = flagInterval
	}
	w.Run(ctx, interval)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

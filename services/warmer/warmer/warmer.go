// Package warmer polls the article source for fresh headlines and publishes
// the ones it has not published before.
package warmer

import (
	"context"
	"log"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

type Source interface {
	Fetch(ctx context.Context, q models.Query, page, pageSize int) (models.Page, error)
}

type Seen interface {
	Unseen(urls []string) ([]string, error)
	Mark(urls []string) error
	Prune(olderThan time.Duration) (int64, error)
}

type Producer interface {
	ProduceArticle(ctx context.Context, article models.Article) error
}

type Options struct {
	// Categories to poll; "" is the general top-headlines feed.
	Categories []string
	PageSize   int
	// Retention is how long a published URL is remembered. Zero keeps them forever.
	Retention time.Duration
}

type Warmer struct {
	source   Source
	seen     Seen
	producer Producer
	opts     Options
}

func New(source Source, seen Seen, producer Producer, opts Options) *Warmer {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if len(opts.Categories) == 0 {
		opts.Categories = []string{""}
	}
	return &Warmer{source: source, seen: seen, producer: producer, opts: opts}
}

// Run polls once immediately and then every interval until ctx is done.
func (w *Warmer) Run(ctx context.Context, interval time.Duration) {
	log.Printf("Warmer started, fetching headlines every %v...", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.Cycle(ctx)
		select {
		case <-ctx.Done():
			log.Println("Warmer stopping...")
			return
		case <-ticker.C:
		}
	}
}

// Cycle polls every category once and returns how many headlines it published.
// A failing category is logged and skipped.
func (w *Warmer) Cycle(ctx context.Context) int {
	produced := 0
	for _, category := range w.opts.Categories {
		if ctx.Err() != nil {
			break
		}
		n, err := w.warm(ctx, category)
		if err != nil {
			log.Printf("Error warming category %q: %v", category, err)
		}
		produced += n
	}

	if w.opts.Retention > 0 {
		if n, err := w.seen.Prune(w.opts.Retention); err != nil {
			log.Printf("Error pruning seen headlines: %v", err)
		} else if n > 0 {
			log.Printf("Forgot %d headlines older than %v", n, w.opts.Retention)
		}
	}
	log.Printf("Finished warming, %d new headlines published.", produced)
	return produced
}

func (w *Warmer) warm(ctx context.Context, category string) (int, error) {
	page, err := w.source.Fetch(ctx, models.Query{Category: category}, 1, w.opts.PageSize)
	if err != nil {
		return 0, err
	}

	byURL := make(map[string]models.Article, len(page.Articles))
	urls := make([]string, 0, len(page.Articles))
	for _, a := range page.Articles {
		if a.URL == "" {
			continue
		}
		if _, dup := byURL[a.URL]; !dup {
			byURL[a.URL] = a
			urls = append(urls, a.URL)
		}
	}

	fresh, err := w.seen.Unseen(urls)
	if err != nil {
		return 0, err
	}

	var published []string
	for _, u := range fresh {
		article := byURL[u]
		if err := w.producer.ProduceArticle(ctx, article); err != nil {
			log.Printf("Error producing headline '%s': %v", article.Title, err)
			continue
		}
		published = append(published, u)
	}
	if len(published) == 0 {
		return 0, nil
	}
	if err := w.seen.Mark(published); err != nil {
		return len(published), err
	}
	return len(published), nil
}

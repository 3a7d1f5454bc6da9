// Package rss serves article pages out of RSS and Atom feeds, one feed per category.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

type Source struct {
	feeds  map[string]string
	parser *gofeed.Parser
}

// New returns a source for the given category → feed URL map. The empty category is the home feed.
func New(feeds map[string]string, timeout time.Duration) *Source {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	return &Source{feeds: feeds, parser: p}
}

// Fetch parses the category's feed and returns the requested slice of it.
// Languages are not supported by plain feeds and are ignored.
func (s *Source) Fetch(ctx context.Context, q models.Query, page, pageSize int) (models.Page, error) {
	feedURL, ok := s.feeds[strings.ToLower(q.Category)]
	if !ok {
		return models.Page{}, fmt.Errorf("no feed configured for category %q", q.Category)
	}

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return models.Page{}, fmt.Errorf("fetching feed %s: %w", feedURL, err)
	}

	var all []models.Article
	for _, item := range feed.Items {
		a := toArticle(feed, item)
		if q.Search != "" && !matches(a, q.Search) {
			continue
		}
		all = append(all, a)
	}

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return models.Page{Articles: all[start:end], TotalResults: len(all)}, nil
}

func toArticle(feed *gofeed.Feed, item *gofeed.Item) models.Article {
	a := models.Article{
		SourceName:  feed.Title,
		Title:       item.Title,
		Description: stripHTML(item.Description),
		URL:         item.Link,
		Content:     stripHTML(item.Content),
	}
	if item.Author != nil {
		a.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		a.Author = item.Authors[0].Name
	}

	switch {
	case item.Image != nil && item.Image.URL != "":
		a.ImageURL = item.Image.URL
	default:
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				a.ImageURL = enc.URL
				break
			}
		}
	}

	if item.PublishedParsed != nil {
		a.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		a.PublishedAt = *item.UpdatedParsed
	}
	return a
}

func matches(a models.Article, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(a.Title), term) ||
		strings.Contains(strings.ToLower(a.Description), term)
}

// stripHTML reduces a feed's HTML snippet to its collapsed text.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

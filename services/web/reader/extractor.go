// Package reader turns an arbitrary article URL into readable text.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var (
	ErrInvalidURL = errors.New("reader: url must be absolute http or https")
	ErrNotHTML    = errors.New("reader: response is not HTML")
	ErrNoContent  = errors.New("reader: no readable content")
)

// Extractor fetches pages and runs readability over them.
type Extractor struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

func NewExtractor(timeout time.Duration, userAgent string, maxBodyBytes int64) *Extractor {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 5 << 20
	}
	return &Extractor{
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// ParseURL accepts only absolute http(s) URLs.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// Extract downloads rawURL and returns its readable form.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*models.ExtractedArticle, error) {
	pageURL, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("status code error for content: %d %s", res.StatusCode, res.Status)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "text/html" && mt != "application/xhtml+xml") {
			return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, e.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading article body: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article HTML: %w", err)
	}

	parsed, err := readability.FromDocument(doc, pageURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}
	text := strings.TrimSpace(parsed.TextContent)
	if text == "" {
		return nil, ErrNoContent
	}

	out := &models.ExtractedArticle{
		URL:           pageURL.String(),
		Title:         strings.TrimSpace(parsed.Title),
		Byline:        strings.TrimSpace(parsed.Byline),
		SiteName:      parsed.SiteName,
		Language:      parsed.Language,
		Excerpt:       parsed.Excerpt,
		Image:         parsed.Image,
		TextContent:   text,
		ContentHTML:   parsed.Content,
		PublishedTime: parsed.PublishedTime,
	}
	if out.Image == "" {
		out.Image = FirstImage(parsed.Content, pageURL)
	}
	return out, nil
}

// FirstImage returns the absolute src of the first <img> in an HTML fragment.
func FirstImage(fragment string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, ok := doc.Find("img[src]").First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

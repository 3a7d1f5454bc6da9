// Package newsapi fetches article pages from the NewsAPI HTTP API.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

// Client talks to the /top-headlines and /everything endpoints.
type Client struct {
	BaseURL string
	APIKey  string
	Country string
	Domains []string
	HTTP    *http.Client
}

// New returns a client with the given base URL (e.g. https://newsapi.org/v2) and key.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Country: "us",
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx NewsAPI response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("newsapi: status %d", e.StatusCode)
	}
	return fmt.Sprintf("newsapi: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type respSource struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

type respArticle struct {
	Source      respSource `json:"source"`
	Author      *string    `json:"author"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	URL         string     `json:"url"`
	URLToImage  *string    `json:"urlToImage"`
	PublishedAt string     `json:"publishedAt"`
	Content     *string    `json:"content"`
}

type respPage struct {
	Status       string        `json:"status"`
	TotalResults int           `json:"totalResults"`
	Articles     []respArticle `json:"articles"`
	Code         string        `json:"code"`
	Message      string        `json:"message"`
}

// Fetch returns one page of articles for q. Pages are 1-based.
func (c *Client) Fetch(ctx context.Context, q models.Query, page, pageSize int) (models.Page, error) {
	u, err := c.pageURL(q, page, pageSize)
	if err != nil {
		return models.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return models.Page{}, fmt.Errorf("fetching page %d: %w", page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return models.Page{}, fmt.Errorf("reading page %d: %w", page, err)
	}

	var data respPage
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || data.Status == "error" {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = data.Code
			apiErr.Message = data.Message
		}
		return models.Page{}, apiErr
	}
	if decodeErr != nil {
		return models.Page{}, fmt.Errorf("decoding page %d: %w", page, decodeErr)
	}

	articles := make([]models.Article, 0, len(data.Articles))
	for _, a := range data.Articles {
		articles = append(articles, toArticle(a))
	}
	return models.Page{Articles: articles, TotalResults: data.TotalResults}, nil
}

func (c *Client) pageURL(q models.Query, page, pageSize int) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	v := url.Values{}
	if q.IsSearch() {
		base = base.JoinPath("everything")
		if len(c.Domains) > 0 {
			v.Set("domains", strings.Join(c.Domains, ","))
		}
		if q.Search != "" {
			v.Set("q", q.Search)
		}
		if q.Language != "" {
			v.Set("language", q.Language)
		}
	} else {
		base = base.JoinPath("top-headlines")
		country := c.Country
		if country == "" {
			country = "us"
		}
		v.Set("country", country)
		if q.Category != "" {
			v.Set("category", q.Category)
		}
	}
	v.Set("pageSize", strconv.Itoa(pageSize))
	v.Set("page", strconv.Itoa(page))

	base.RawQuery = v.Encode()
	return base.String(), nil
}

func toArticle(a respArticle) models.Article {
	out := models.Article{
		SourceName:  a.Source.Name,
		Title:       a.Title,
		URL:         a.URL,
		Author:      deref(a.Author),
		Description: deref(a.Description),
		ImageURL:    deref(a.URLToImage),
		Content:     deref(a.Content),
	}
	if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
		out.PublishedAt = t
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

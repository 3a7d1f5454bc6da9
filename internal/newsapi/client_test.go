package newsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

const samplePage = `{
  "status": "ok",
  "totalResults": 42,
  "articles": [
    {
      "source": {"id": null, "name": "TechCrunch"},
      "author": "Jane Doe",
      "title": "First",
      "description": "About the first thing",
      "url": "https://techcrunch.com/first",
      "urlToImage": "https://img.example.com/1.png",
      "publishedAt": "2024-03-05T14:07:00Z",
      "content": "Body text [+1234 chars]"
    },
    {
      "source": {"id": "bbc", "name": "BBC"},
      "author": null,
      "title": "Second",
      "description": null,
      "url": "https://bbc.com/second",
      "urlToImage": null,
      "publishedAt": "not a date",
      "content": null
    }
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/v2/", "test-key", 5*time.Second)
	c.Domains = []string{"techcrunch.com", "bloomberg.com"}
	return c
}

func TestFetchTopHeadlines(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header, got %q", r.Header.Get("X-Api-Key"))
		}
		w.Write([]byte(samplePage))
	})

	page, err := c.Fetch(context.Background(), models.Query{Category: "science"}, 2, 15)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotPath != "/v2/top-headlines" {
		t.Errorf("expected /v2/top-headlines, got %s", gotPath)
	}
	want := map[string]string{"country": "us", "category": "science", "pageSize": "15", "page": "2"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
	if _, ok := gotQuery["domains"]; ok {
		t.Error("top headlines must not send domains")
	}

	if page.TotalResults != 42 {
		t.Errorf("expected total 42, got %d", page.TotalResults)
	}
	if len(page.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(page.Articles))
	}
	first := page.Articles[0]
	if first.SourceName != "TechCrunch" || first.Author != "Jane Doe" || first.ImageURL != "https://img.example.com/1.png" {
		t.Errorf("unexpected first article: %+v", first)
	}
	if !first.PublishedAt.Equal(time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)) {
		t.Errorf("unexpected publishedAt %v", first.PublishedAt)
	}
	second := page.Articles[1]
	if second.Author != "" || second.ImageURL != "" || second.Content != "" || !second.PublishedAt.IsZero() {
		t.Errorf("nulls should map to zero values: %+v", second)
	}
}

func TestFetchEverythingForSearch(t *testing.T) {
	var got map[string]string
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	})

	page, err := c.Fetch(context.Background(), models.Query{Search: "go generics", Language: "fr", Category: "ignored"}, 1, 15)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v2/everything" {
		t.Errorf("expected /v2/everything, got %s", gotPath)
	}
	if got["q"] != "go generics" || got["language"] != "fr" {
		t.Errorf("unexpected search params: %v", got)
	}
	if got["domains"] != "techcrunch.com,bloomberg.com" {
		t.Errorf("unexpected domains %q", got["domains"])
	}
	if _, ok := got["category"]; ok {
		t.Error("everything must not send category")
	}
	if page.TotalResults != 0 || len(page.Articles) != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestFetchAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	})

	_, err := c.Fetch(context.Background(), models.Query{}, 1, 15)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "apiKeyInvalid" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestFetchNonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), models.Query{}, 1, 15)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}

func TestFetchRespectsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, models.Query{}, 1, 15); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestChunkTwentyThreeSentences(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 23; i++ {
		fmt.Fprintf(&b, "This is sentence number %d. ", i)
	}

	chunks := Chunk(b.String(), 5)
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	wantSizes := []int{5, 5, 5, 5, 3}
	for i, c := range chunks {
		if got := len(Sentences(c)); got != wantSizes[i] {
			t.Errorf("chunk %d has %d sentences, want %d", i, got, wantSizes[i])
		}
	}
	if !strings.HasPrefix(chunks[4], "This is sentence number 21.") {
		t.Errorf("last chunk should start at sentence 21, got %q", chunks[4])
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"Inflation hit 3.5 percent. Markets fell.", []string{"Inflation hit 3.5 percent.", "Markets fell."}},
		{"No terminator at all", []string{"No terminator at all"}},
		{"Wait... what?  Really.", []string{"Wait...", "what?", "Really."}},
		{"Split\n\nacross   lines. Next.", []string{"Split across lines.", "Next."}},
		{"Dash —– artefact. Gone.", []string{"Dash artefact.", "Gone."}},
		{`He said "Stop." Then he left. She asked (why?) Nobody knew.`,
			[]string{`He said "Stop."`, "Then he left.", "She asked (why?)", "Nobody knew."}},
		{"“Done.” [Really!] It ended.’", []string{"“Done.”", "[Really!]", "It ended.’"}},
		{`Quoted "3.5" stays whole.`, []string{`Quoted "3.5" stays whole.`}},
	}
	for _, tt := range tests {
		got := Sentences(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("Sentences(%q) = %q, want %q", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Sentences(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestChunkDefaultsAndEmpty(t *testing.T) {
	if got := Chunk("", 5); len(got) != 0 {
		t.Errorf("expected no chunks for empty text, got %q", got)
	}
	got := Chunk("A. B. C. D. E. F.", 0)
	if len(got) != 2 {
		t.Errorf("expected default chunk size 5 to give 2 chunks, got %d", len(got))
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/a", false},
		{"http://example.com", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"/relative/path", true},
		{"https://", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseURL(tt.url)
		if tt.wantErr && !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ParseURL(%q): expected ErrInvalidURL, got %v", tt.url, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ParseURL(%q): unexpected error %v", tt.url, err)
		}
	}
}

const articlePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Scientists map the deep ocean floor in record detail</title>
  <meta name="author" content="Ada Lovelace">
  <meta property="og:title" content="Scientists map the deep ocean floor in record detail">
  <meta property="article:published_time" content="2024-05-01T09:30:00Z">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/science">Science</a></nav>
  <article>
    <h1>Scientists map the deep ocean floor in record detail</h1>
    <img src="/images/seafloor.jpg" alt="Sea floor">
    <p>An international team of oceanographers has produced the most detailed map of the deep ocean floor to date, using a fleet of autonomous vessels that surveyed for more than two years.</p>
    <p>The survey covered large areas that had never been measured directly before, revealing underwater mountains, canyons and hydrothermal vents that had only been guessed at from satellite data.</p>
    <p>Researchers say the new data will help predict tsunamis, plan undersea cables and understand how ocean currents move heat around the planet, which matters for long range climate models.</p>
    <p>The team plans to publish the full dataset next year so that other scientists can build on the work and extend the survey into the polar regions where ice makes measurement harder.</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtractReadsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	e := NewExtractor(5*time.Second, "test-agent", 0)
	got, err := e.Extract(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Title, "deep ocean floor") {
		t.Errorf("unexpected title %q", got.Title)
	}
	if !strings.Contains(got.TextContent, "autonomous vessels") {
		t.Errorf("expected body text in TextContent, got %q", got.TextContent)
	}
	if strings.Contains(got.TextContent, "Copyright") {
		t.Error("expected footer boilerplate to be dropped")
	}
	if got.ContentHTML == "" {
		t.Error("expected extracted HTML content")
	}
	if got.URL != srv.URL+"/story" {
		t.Errorf("unexpected URL %q", got.URL)
	}
}

func TestExtractAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	got, err := NewExtractor(5*time.Second, "", 0).Extract(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.TextContent, "autonomous vessels") {
		t.Errorf("expected body text, got %q", got.TextContent)
	}
}

func TestExtractFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewExtractor(5*time.Second, "", 0)
	tests := []struct {
		name string
		url  string
		is   error
	}{
		{"not found", srv.URL + "/missing", nil},
		{"non html", srv.URL + "/pdf", ErrNotHTML},
		{"invalid url", "ftp://example.com/file", ErrInvalidURL},
		{"unreachable", "http://127.0.0.1:1/nothing", nil},
		{"empty page", srv.URL + "/empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), tt.url)
			if err == nil {
				t.Fatalf("expected error, got article %+v", got)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestFirstImage(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/world/story")
	tests := []struct {
		fragment string
		want     string
	}{
		{`<div><p>text</p><img src="/a.jpg"><img src="/b.jpg"></div>`, "https://news.example.com/a.jpg"},
		{`<img src="https://cdn.example.com/x.png">`, "https://cdn.example.com/x.png"},
		{`<img src="data:image/png;base64,AAAA">`, ""},
		{`<p>no images</p>`, ""},
		{`<img alt="no src">`, ""},
	}
	for _, tt := range tests {
		if got := FirstImage(tt.fragment, base); got != tt.want {
			t.Errorf("FirstImage(%q) = %q, want %q", tt.fragment, got, tt.want)
		}
	}
}

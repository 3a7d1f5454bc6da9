// Package view renders feeds and reader pages as server-side HTML.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

const FallbackImage = "/assets/fallback.svg"

// Site holds the settings shared by every page.
type Site struct {
	Title      string
	Categories []string
	Languages  []string
}

// Layout splits a feed into the hero article, three secondary tiles and the remaining list.
type Layout struct {
	Hero  *models.Article
	Tiles []models.Article
	List  []models.Article
}

func BuildLayout(articles []models.Article) Layout {
	var l Layout
	if len(articles) == 0 {
		return l
	}
	hero := articles[0]
	l.Hero = &hero
	end := 4
	if end > len(articles) {
		end = len(articles)
	}
	l.Tiles = articles[1:end]
	l.List = articles[end:]
	return l
}

type PageLink struct {
	Number  int
	URL     string
	Current bool
}

type Tab struct {
	Label  string
	URL    string
	Active bool
	Search bool
}

// FeedPage is everything the feed template needs.
type FeedPage struct {
	Site      Site
	Query     models.Query
	Today     string
	Tabs      []Tab
	Heading   string
	Subhead   string
	Layout    Layout
	Empty     bool
	Failed    bool
	ErrorNote string
	Loading   bool
	Sentinel  bool
	MoreURL   string
	Pages     []PageLink
}

// NewFeedPage derives the rendering of a feed state. paged selects numbered
// page buttons over the infinite-scroll sentinel; maxPages bounds both.
func NewFeedPage(site Site, s feed.State, paged bool, maxPages int, now time.Time) FeedPage {
	p := FeedPage{
		Site:    site,
		Query:   s.Query,
		Today:   DateString(now),
		Tabs:    tabs(site.Categories, s.Query),
		Layout:  BuildLayout(s.Articles),
		Empty:   s.Empty(),
		Loading: s.Loading,
	}

	if s.Query.Search != "" {
		p.Heading = fmt.Sprintf("Search results for %q", s.Query.Search)
		p.Subhead = "Top Reads for " + s.Query.Search
	} else {
		p.Heading = "Top Headlines"
		p.Subhead = "Hot News on the section"
	}

	if s.Err != nil {
		if len(s.Articles) == 0 {
			p.Failed = true
		} else {
			p.ErrorNote = "Could not load more articles."
		}
	}

	if paged {
		for i := 1; i <= maxPages; i++ {
			p.Pages = append(p.Pages, PageLink{Number: i, URL: FeedURL(s.Query, i), Current: i == s.Page})
		}
	} else {
		p.Sentinel = s.HasMore() && s.Err == nil && s.Page < maxPages
		if p.Sentinel {
			p.MoreURL = MoreURL(s.Query, s.Page)
		}
	}
	return p
}

func tabs(categories []string, q models.Query) []Tab {
	out := make([]Tab, 0, len(categories)+1)
	for _, c := range categories {
		t := Tab{Label: c, URL: FeedURL(models.Query{Category: strings.ToLower(c)}, 0)}
		if strings.EqualFold(c, "home") {
			t.URL = "/"
			t.Active = q == models.Query{}
		} else {
			t.Active = !q.IsSearch() && strings.EqualFold(c, q.Category)
		}
		out = append(out, t)
	}
	out = append(out, Tab{Label: "Search", Search: true, Active: q.Search != ""})
	return out
}

// FeedURL returns the landing URL for q, with page > 0 selecting a numbered page.
func FeedURL(q models.Query, page int) string {
	v := url.Values{}
	if q.Category != "" && !q.IsSearch() {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

// MoreURL is the infinite-scroll endpoint for the page after page of q. The
// query travels with the request so a reply for a superseded feed can be refused.
func MoreURL(q models.Query, page int) string {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	v.Set("page", strconv.Itoa(page))
	return "/feed/more?" + v.Encode()
}

// ArticleURL links a card to the reader view.
func ArticleURL(a models.Article) string {
	v := url.Values{}
	v.Set("q", a.URL)
	img := a.ImageURL
	if img == "" {
		img = "null"
	}
	v.Set("img", img)
	return "/article?" + v.Encode()
}

// ReaderPage is everything the article template needs.
type ReaderPage struct {
	Site      Site
	Article   *models.ExtractedArticle
	SourceURL string
	Image     string
	Published string
	Chunks    []string
}

// NewReaderPage picks the image to show and splits the text into chunks.
func NewReaderPage(site Site, a *models.ExtractedArticle, sourceURL, img string, chunks []string) ReaderPage {
	p := ReaderPage{
		Site:      site,
		Article:   a,
		SourceURL: sourceURL,
		Image:     ImageOr(img, a.Image),
		Chunks:    chunks,
	}
	if a.PublishedTime != nil {
		p.Published = DateString(*a.PublishedTime)
	}
	return p
}

type ErrorPage struct {
	Site    Site
	Message string
}

var charsSuffix = regexp.MustCompile(` \[\+\d+ chars\]`)

// StripCharCount removes the " [+123 chars]" truncation marker from article content.
func StripCharCount(s string) string {
	return charsSuffix.ReplaceAllString(s, "")
}

// Clock formats t as "03:04 PM"; the zero time renders as "".
func Clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("03:04 PM")
}

// DateString formats t as "Mon Jan 02 2006"; the zero time renders as "".
func DateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Mon Jan 02 2006")
}

// ImageOr returns the first usable image URL, or the fallback image.
// The literal "null" counts as missing.
func ImageOr(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && c != "null" {
			return c
		}
	}
	return FallbackImage
}

var funcs = template.FuncMap{
	"clock":      Clock,
	"date":       DateString,
	"image":      func(s string) string { return ImageOr(s) },
	"articleURL": ArticleURL,
	"stripChars": StripCharCount,
}

// Renderer executes the embedded templates.
type Renderer struct {
	feed    *template.Template
	items   *template.Template
	article *template.Template
	errPage *template.Template
}

func NewRenderer() (*Renderer, error) {
	parse := func(files ...string) (*template.Template, error) {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = "templates/" + f
		}
		t, err := template.New(files[0]).Funcs(funcs).ParseFS(templateFS, paths...)
		if err != nil {
			return nil, fmt.Errorf("parsing %v: %w", files, err)
		}
		return t, nil
	}

	var r Renderer
	var err error
	if r.feed, err = parse("base.html", "feed.html", "cards.html"); err != nil {
		return nil, err
	}
	if r.items, err = parse("cards.html"); err != nil {
		return nil, err
	}
	if r.article, err = parse("base.html", "article.html"); err != nil {
		return nil, err
	}
	if r.errPage, err = parse("base.html", "error.html"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Renderer) Feed(w io.Writer, p FeedPage) error {
	return r.feed.ExecuteTemplate(w, "base", p)
}

// Items renders list cards only, for appending to an existing feed.
func (r *Renderer) Items(w io.Writer, articles []models.Article) error {
	return r.items.ExecuteTemplate(w, "items", articles)
}

// Banner renders an inline error message for a failed fragment request.
func (r *Renderer) Banner(w io.Writer, msg string) error {
	return r.items.ExecuteTemplate(w, "banner", msg)
}

func (r *Renderer) Article(w io.Writer, p ReaderPage) error {
	return r.article.ExecuteTemplate(w, "base", p)
}

func (r *Renderer) Error(w io.Writer, p ErrorPage) error {
	return r.errPage.ExecuteTemplate(w, "base", p)
}

// Assets serves the embedded static files under /assets/.
func Assets() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))
}

package models

import "time"

// Article represents a news article as listed by an article source.
// URL identifies an article; the same URL may still appear on more than one page.
type Article struct {
	SourceName  string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content,omitempty"`
}

// Page is one response of an article source.
type Page struct {
	Articles     []Article
	TotalResults int
}

// Query selects which articles a feed shows. The zero Query means top headlines.
type Query struct {
	Category string
	Search   string
	Language string
}

// IsSearch reports whether the query has to go through the full-text endpoint.
func (q Query) IsSearch() bool {
	return q.Search != "" || q.Language != ""
}

// ExtractedArticle is the readable form of a web page, produced for a single reader view render.
type ExtractedArticle struct {
	URL           string
	Title         string
	Byline        string
	SiteName      string
	Language      string
	Excerpt       string
	Image         string
	TextContent   string
	ContentHTML   string
	PublishedTime *time.Time
}

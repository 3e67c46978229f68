package models

import "time"

type NewsImage struct {
	Size string `json:"size" yaml:"size"`
	URL  string `json:"url" yaml:"url"`
}

// NewsArticle is one article of GET /v1beta1/news.
type NewsArticle struct {
	ID        int64       `json:"id" yaml:"id"`
	Author    string      `json:"author" yaml:"author"`
	Content   string      `json:"content" yaml:"content"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" yaml:"updated_at"`
	Headline  string      `json:"headline" yaml:"headline"`
	Images    []NewsImage `json:"images" yaml:"images"`
	Source    string      `json:"source" yaml:"source"`
	Summary   string      `json:"summary" yaml:"summary"`
	Symbols   []string    `json:"symbols" yaml:"symbols"`
	URL       string      `json:"url" yaml:"url"`
}

type NewsPage struct {
	News          []NewsArticle `json:"news" yaml:"news"`
	NextPageToken *string       `json:"next_page_token" yaml:"next_page_token"`
}

// HasNextPage reports whether another page can be requested.
func (p NewsPage) HasNextPage() bool {
	return p.NextPageToken != nil && *p.NextPageToken != ""
}

package model

import "time"

// Document is one ingested web page, stored whole in the lexical index.
// At most one live Document exists per (OwnerID, URL).
type Document struct {
	URL       string    `json:"url"`
	OwnerID   uint      `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Favicon   string    `json:"favicon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PageSummary is the listing view of a Document, without content.
type PageSummary struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Favicon   string    `json:"favicon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchHit is one lexical search result with a highlighted snippet.
type SearchHit struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Favicon string  `json:"favicon,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

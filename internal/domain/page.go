package domain

import "time"

// Classification is the verdict of the page classifier for one URL
type Classification struct {
	InScope bool   `json:"in_scope"`
	Reason  string `json:"reason"`
}

// CatalogURL is a discovered URL together with its classification verdict
type CatalogURL struct {
	URL     string         `json:"url"`
	Slug    string         `json:"slug"` // maker/model, empty when the URL has no such shape
	Verdict Classification `json:"verdict"`
}

// RawPage is the fetched markup of one URL plus response metadata
type RawPage struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"` // after redirects
	Status      int           `json:"status"`
	ContentType string        `json:"content_type"`
	Elapsed     time.Duration `json:"elapsed"`
	Body        string        `json:"-"`
}

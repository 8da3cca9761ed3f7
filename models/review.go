package models

import (
	"strconv"
	"time"
)

// Placeholders substituted for review fields the page did not provide.
const (
	PlaceholderTitle    = "No title"
	PlaceholderBody     = "No content"
	PlaceholderReviewer = "Anonymous"
)

// Document is a fetched page. It is created by the fetcher and must be
// treated as read-only by everything downstream.
type Document struct {
	// URL is the final URL after redirects.
	URL string

	// RequestedURL is the URL the fetch was issued for.
	RequestedURL string

	HTML       string
	FetchedAt  time.Time
	StatusCode int

	// Engine records which fetch engine produced the document ("http", "rod").
	Engine string
}

// RawReview is adapter output taken straight from markup. An empty string
// means the field was not found.
type RawReview struct {
	Title      string
	Body       string
	RatingText string
	Reviewer   string
}

// Review is the canonical, normalized review returned to callers.
type Review struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Rating   *float64 `json:"rating"`
	Reviewer string   `json:"reviewer"`
}

// ToRaw converts a normalized review back into raw form so it can be fed
// through normalization again.
func (r Review) ToRaw() RawReview {
	raw := RawReview{Title: r.Title, Body: r.Body, Reviewer: r.Reviewer}
	if r.Rating != nil {
		raw.RatingText = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	return raw
}

// ProductInfo is best-effort page metadata about the reviewed product.
type ProductInfo struct {
	Title    string `json:"title,omitempty"`
	SiteName string `json:"site_name,omitempty"`
}

// ScrapeResult is the outcome of one ScrapeRequest. Reviews is never nil.
// Error may accompany reviews when a later step failed (PARTIAL, TIMEOUT).
type ScrapeResult struct {
	Reviews   []Review
	SourceURL string
	PageCount int
	Profile   string
	Product   ProductInfo
	Error     *ScrapeError
}

// Partial reports whether the result carries reviews alongside an error.
func (r *ScrapeResult) Partial() bool {
	return r.Error != nil && len(r.Reviews) > 0
}

package models

import (
	"net/url"
	"strings"
)

// ScrapeRequest asks the engine to extract reviews from a single target page.
type ScrapeRequest struct {
	// TargetURL is the product or review page to scrape. Required.
	TargetURL string `json:"target_url"`

	// MaxPages overrides the configured pagination page cap when > 0.
	MaxPages int `json:"max_pages,omitempty"`
}

// Validate checks that TargetURL is an absolute http(s) URL with a host and
// returns the parsed form. It never touches the network.
func (r *ScrapeRequest) Validate() (*url.URL, error) {
	return ParseTargetURL(r.TargetURL)
}

// ParseTargetURL parses raw as an absolute http(s) URL.
func ParseTargetURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewScrapeError(ErrKindInvalidURL, "a target URL is required", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewScrapeError(ErrKindInvalidURL, "the target URL could not be parsed", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, NewScrapeError(ErrKindInvalidURL, "the target URL must be absolute, e.g. https://example.com/product", nil)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewScrapeError(ErrKindInvalidURL, "only http and https URLs are supported", nil)
	}
	if u.Hostname() == "" {
		return nil, NewScrapeError(ErrKindInvalidURL, "the target URL has no host", nil)
	}
	return u, nil
}

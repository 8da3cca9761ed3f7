// Package classifier maps a page to the site profile used to extract it.
package classifier

import (
	"net/url"
	"strings"

	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

// Classifier picks a profile for a URL. It is deterministic and never fails:
// anything it does not recognise is GENERIC.
type Classifier struct {
	registry *profile.Registry
}

// New creates a Classifier backed by registry.
func New(registry *profile.Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify returns the profile for a page. When doc is non-nil its final
// URL (after redirects) is used instead of rawURL, so short links resolve
// to the site they land on.
func (c *Classifier) Classify(rawURL string, doc *models.Document) *profile.Profile {
	if doc != nil && doc.URL != "" {
		rawURL = doc.URL
	}
	return c.registry.Get(KindOf(rawURL))
}

// KindOf classifies a URL by host and path alone.
func KindOf(rawURL string) profile.Kind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return profile.Generic
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.EscapedPath())

	switch {
	case hasLabel(host, "amazon") &&
		(strings.Contains(path, "/dp/") || strings.Contains(path, "/product-reviews/")):
		return profile.Amazon
	case hasLabel(host, "flipkart") && strings.Contains(path, "/product-reviews/"):
		return profile.Flipkart
	default:
		return profile.Generic
	}
}

// hasLabel reports whether name is one of host's dot-separated labels, so
// "www.amazon.co.uk" has "amazon" but "notamazon.com" does not.
func hasLabel(host, name string) bool {
	for _, label := range strings.Split(host, ".") {
		if label == name {
			return true
		}
	}
	return false
}

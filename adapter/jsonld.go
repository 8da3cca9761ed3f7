package adapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/reviewlens/models"
)

// jsonLDReviews collects schema.org Review objects from the page's
// application/ld+json blocks, including reviews nested in a Product or a
// @graph. Malformed blocks are skipped.
func jsonLDReviews(gq *goquery.Document) []models.RawReview {
	var out []models.RawReview
	gq.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return
		}
		collectLDReviews(v, &out)
	})
	return out
}

func collectLDReviews(v any, out *[]models.RawReview) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectLDReviews(item, out)
		}
	case map[string]any:
		if hasLDType(t["@type"], "Review") {
			if raw := ldReview(t); raw.Title != "" || raw.Body != "" {
				*out = append(*out, raw)
			}
			return
		}
		for _, key := range []string{"@graph", "review", "reviews", "itemListElement", "item", "mainEntity"} {
			if child, ok := t[key]; ok {
				collectLDReviews(child, out)
			}
		}
	}
}

func hasLDType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if hasLDType(item, want) {
				return true
			}
		}
	}
	return false
}

func ldReview(m map[string]any) models.RawReview {
	raw := models.RawReview{
		Title:    firstLDString(m, "name", "headline"),
		Body:     firstLDString(m, "reviewBody", "description", "text"),
		Reviewer: ldName(m["author"]),
	}

	if rating, ok := m["reviewRating"].(map[string]any); ok {
		value := ldScalar(rating["ratingValue"])
		best := ldScalar(rating["bestRating"])
		switch {
		case value == "":
		case best != "":
			raw.RatingText = fmt.Sprintf("%s out of %s", value, best)
		default:
			raw.RatingText = value
		}
	}
	return raw
}

func firstLDString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = collapse(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// ldName reads an author given as a string, a Person/Organization object or
// a list of either.
func ldName(v any) string {
	switch t := v.(type) {
	case string:
		return collapse(t)
	case map[string]any:
		return firstLDString(t, "name")
	case []any:
		for _, item := range t {
			if name := ldName(item); name != "" {
				return name
			}
		}
	}
	return ""
}

func ldScalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

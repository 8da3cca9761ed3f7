// Package normalize turns raw adapter output into canonical reviews:
// cleaned text, numeric ratings on the site's scale, placeholders for
// missing fields, and no duplicates. Normalize is idempotent.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/reviewlens/models"
)

var (
	readMoreTail = regexp.MustCompile(`(?i)(?:\s*(?:…|\.\.\.)?\s*read\s*more)+\s*$`)
	outOfRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:out\s+of|of|/)\s*(\d+(?:[.,]\d+)?)`)
	percentRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// Normalize cleans raw reviews, parses their ratings against scale and
// removes duplicates by (title, body, reviewer), keeping the first
// occurrence in input order. Records with no title, body or rating are
// dropped. The result is never nil.
func Normalize(raw []models.RawReview, scale float64) []models.Review {
	if scale <= 0 {
		scale = 5
	}

	out := make([]models.Review, 0, len(raw))
	seen := make(map[[3]string]struct{}, len(raw))
	for _, r := range raw {
		title := CleanText(r.Title)
		body := CleanText(r.Body)
		rating := ParseRating(r.RatingText, scale)
		if title == "" && body == "" && rating == nil {
			continue
		}

		rev := models.Review{
			Title:    orPlaceholder(title, models.PlaceholderTitle),
			Body:     orPlaceholder(body, models.PlaceholderBody),
			Rating:   rating,
			Reviewer: orPlaceholder(CleanText(r.Reviewer), models.PlaceholderReviewer),
		}

		key := [3]string{rev.Title, rev.Body, rev.Reviewer}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rev)
	}
	return out
}

// CleanText collapses whitespace and strips trailing "Read more" control
// labels, however many are stacked.
func CleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = readMoreTail.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseRating reads a rating notation and returns it on the 0..scale range
// rounded to one decimal. Understood forms: "4.0 out of 5 stars", "8/10",
// "4 stars", "80%" (star bar width), "★★★★☆" and bare numbers. Values
// outside [1, scale] and unparseable text yield nil.
func ParseRating(text string, scale float64) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	v, ok := parseValue(text, scale)
	if !ok {
		return nil
	}
	v = math.Round(v*10) / 10
	if v < 1 || v > scale {
		return nil
	}
	return &v
}

func parseValue(text string, scale float64) (float64, bool) {
	if m := outOfRe.FindStringSubmatch(text); m != nil {
		v, err1 := parseNumber(m[1])
		best, err2 := parseNumber(m[2])
		if err1 != nil || err2 != nil || best <= 0 {
			return 0, false
		}
		return v * scale / best, true
	}

	if m := percentRe.FindStringSubmatch(text); m != nil {
		v, err := parseNumber(m[1])
		if err != nil {
			return 0, false
		}
		return v * scale / 100, true
	}

	if !numberRe.MatchString(text) {
		if full := strings.Count(text, "★"); full > 0 || strings.Contains(text, "☆") {
			return float64(full), true
		}
		return 0, false
	}

	v, err := parseNumber(numberRe.FindString(text))
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

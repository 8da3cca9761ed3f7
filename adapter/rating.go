package adapter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	hasDigit   = regexp.MustCompile(`\d`)
	widthStyle = regexp.MustCompile(`(?i)width\s*:\s*(\d+(?:\.\d+)?)\s*%`)
	// A slash or "out of" cue must stand alone and have a scale of 1..10,
	// so dates such as 12/05/2024 do not count.
	ratingCue = regexp.MustCompile(`(?i)(?:^|[^\d/.,])(\d(?:[.,]\d)?\s*(?:out of|/)\s*(?:10|[1-9]))(?:[^\d/]|$)|(\d(?:[.,]\d)?\s*stars?\b)|★`)
)

// ratingText resolves the rating notation for a set of candidate elements.
// Visible numeric text wins over aria-label/title attributes, then star
// glyphs, then a star bar width. It returns "" when nothing resolves.
func ratingText(cands *goquery.Selection) string {
	if cands.Length() == 0 {
		return ""
	}

	var out string
	cands.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("content"); ok && hasDigit.MatchString(v) {
			out = strings.TrimSpace(v)
			return false
		}
		if t := collapse(s.Text()); hasDigit.MatchString(t) {
			out = t
			return false
		}
		return true
	})
	if out != "" {
		return out
	}

	cands.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"aria-label", "title", "data-rating"} {
			if v, ok := s.Attr(attr); ok && hasDigit.MatchString(v) {
				out = collapse(v)
				return false
			}
		}
		return true
	})
	if out != "" {
		return out
	}

	cands.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := collapse(s.Text()); strings.ContainsRune(t, '★') {
			out = t
			return false
		}
		return true
	})
	if out != "" {
		return out
	}

	styled := cands.Find("[style]").AddSelection(cands.Filter("[style]"))
	styled.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if m := widthStyle.FindStringSubmatch(style); m != nil {
			out = m[1] + "%"
			return false
		}
		return true
	})
	return out
}

// cueText returns the rating notation ratingCue finds in text, or "".
func cueText(text string) string {
	m := ratingCue.FindStringSubmatch(text)
	switch {
	case m == nil:
		return ""
	case m[1] != "":
		return m[1]
	case m[2] != "":
		return m[2]
	}
	return m[0]
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

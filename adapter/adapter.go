// Package adapter turns a fetched page into raw review records. Known sites
// are read with their versioned selector sets; unknown sites go through a
// layered generic heuristic. Adapters never fail: a page without
// recognisable reviews yields an empty slice.
package adapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

// Adapter extracts raw reviews from one document.
type Adapter interface {
	Name() string
	Extract(ctx context.Context, doc *models.Document, p *profile.Profile) []models.RawReview
}

// BlockClassifier decides whether a block of page text is a customer
// review and, if it is, pulls out its fields. Implementations may call a
// remote model; errors are tolerated by the caller.
type BlockClassifier interface {
	ClassifyReviewBlock(ctx context.Context, text string) (*models.RawReview, bool, error)
}

// For returns the adapter for a profile: the selector adapter when the
// profile has a selector set, the generic adapter otherwise.
func For(p *profile.Profile, generic *GenericAdapter) Adapter {
	if p.HasSelectors() {
		return SelectorAdapter{}
	}
	return generic
}

// SelectorAdapter applies a profile's selector set. For every review
// container it takes, per field, the first selector producing non-empty text.
type SelectorAdapter struct{}

func (SelectorAdapter) Name() string { return "selector" }

func (SelectorAdapter) Extract(ctx context.Context, doc *models.Document, p *profile.Profile) []models.RawReview {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		slog.WarnContext(ctx, "adapter: parse failed", "url", doc.URL, "error", err)
		return nil
	}

	sels := p.Selectors
	var out []models.RawReview
	for _, containerSel := range sels.Container {
		gq.Find(containerSel).Each(func(_ int, block *goquery.Selection) {
			raw := models.RawReview{
				Title:      firstText(block, sels.Title),
				Body:       firstText(block, sels.Body),
				RatingText: firstRating(block, sels.Rating),
				Reviewer:   firstText(block, sels.Reviewer),
			}
			if raw.Title == "" && raw.Body == "" {
				return
			}
			out = append(out, raw)
		})
		if len(out) > 0 {
			break
		}
	}

	slog.DebugContext(ctx, "selector adapter done",
		"url", doc.URL, "profile", p.Kind, "version", p.Version, "reviews", len(out))
	return out
}

// firstText returns the text of the first match of the first selector that
// yields non-empty text inside block.
func firstText(block *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		var text string
		block.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = collapse(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// firstRating is firstText for ratings, resolving notations through
// ratingText so attribute and width encodings are understood too.
func firstRating(block *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if r := ratingText(block.Find(sel)); r != "" {
			return r
		}
	}
	return ""
}

package adapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/reviewlens/cleaner"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
	"github.com/use-agent/reviewlens/simhash"
)

const (
	// clusterThreshold is the max Hamming distance between sibling blocks
	// considered to share a template.
	clusterThreshold = 10

	minReviewText   = 20
	minFallbackText = 40
	maxTitleLen     = 200
	maxReviewerLen  = 60

	classifyConcurrency = 3
)

const (
	ratingHints = `[itemprop="ratingValue"], [itemprop="reviewRating"], [class*="rating"], [class*="Rating"], ` +
		`[class*="star"], [class*="Star"], [aria-label*="star"], [aria-label*="rating"], [aria-label*="Rating"], [title*="star"]`
	titleHints = `[itemprop="name"], [itemprop="headline"], [class*="title"], [class*="Title"], ` +
		`[class*="headline"], [class*="summary"], h1, h2, h3, h4, h5, h6, strong`
	bodyHints = `[itemprop="reviewBody"], [itemprop="description"], [class*="body"], [class*="Body"], ` +
		`[class*="text"], [class*="content"], [class*="comment"]`
	reviewerHints = `[itemprop="author"], [class*="author"], [class*="Author"], [class*="reviewer"], ` +
		`[class*="user"], [class*="byline"], [class*="name"]`
)

// GenericOptions configures the generic adapter's semantic pass.
type GenericOptions struct {
	// Classifier enables the semantic pass when non-nil.
	Classifier BlockClassifier

	// MaxCalls caps classifier calls per page. Default 12.
	MaxCalls int

	// CallTimeout bounds each classifier call. Default 8s.
	CallTimeout time.Duration

	// Cleaner renders blocks for the classifier. Created when nil.
	Cleaner *cleaner.Cleaner
}

// GenericAdapter extracts reviews from pages without a selector set. It
// tries, in order: schema.org JSON-LD, a structural pass that finds the
// repeated sibling blocks carrying rating cues, and an optional semantic
// pass that asks a BlockClassifier about ambiguous blocks.
type GenericAdapter struct {
	classifier  BlockClassifier
	maxCalls    int
	callTimeout time.Duration
	cleaner     *cleaner.Cleaner
}

// NewGeneric creates a GenericAdapter.
func NewGeneric(opts GenericOptions) *GenericAdapter {
	if opts.MaxCalls <= 0 {
		opts.MaxCalls = 12
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 8 * time.Second
	}
	if opts.Cleaner == nil {
		opts.Cleaner = cleaner.New()
	}
	return &GenericAdapter{
		classifier:  opts.Classifier,
		maxCalls:    opts.MaxCalls,
		callTimeout: opts.CallTimeout,
		cleaner:     opts.Cleaner,
	}
}

func (g *GenericAdapter) Name() string { return "generic" }

func (g *GenericAdapter) Extract(ctx context.Context, doc *models.Document, p *profile.Profile) []models.RawReview {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		slog.WarnContext(ctx, "adapter: parse failed", "url", doc.URL, "error", err)
		return nil
	}

	if reviews := jsonLDReviews(gq); len(reviews) > 0 {
		slog.DebugContext(ctx, "generic adapter: json-ld reviews", "url", doc.URL, "reviews", len(reviews))
		return reviews
	}

	best, fallback := findReviewBlocks(gq)
	if len(best) > 0 {
		raws := make([]models.RawReview, len(best))
		for i, block := range best {
			raws[i] = blockFields(block)
		}
		if g.classifier != nil {
			raws = g.refine(ctx, best, raws, true)
		}
		slog.DebugContext(ctx, "generic adapter: structural reviews", "url", doc.URL, "reviews", len(raws))
		return raws
	}

	if g.classifier != nil && len(fallback) > 0 {
		raws := make([]models.RawReview, len(fallback))
		for i, block := range fallback {
			raws[i] = blockFields(block)
		}
		raws = g.refine(ctx, fallback, raws, false)
		slog.DebugContext(ctx, "generic adapter: semantic reviews", "url", doc.URL, "reviews", len(raws))
		return raws
	}

	slog.DebugContext(ctx, "generic adapter: no review blocks", "url", doc.URL)
	return nil
}

type blockStats struct {
	sel    *goquery.Selection
	text   int
	cue    bool
	hinted bool
}

// findReviewBlocks looks at every element with at least two element
// children, groups the children by structural fingerprint and scores each
// group. best is the highest scoring group where most blocks carry a
// rating cue and real text. fallback is the text-heaviest group regardless
// of cues, used only by the semantic pass.
func findReviewBlocks(gq *goquery.Document) (best, fallback []*goquery.Selection) {
	bestScore, fallbackText := 0, 0

	gq.Find("body, body *").Each(func(_ int, parent *goquery.Selection) {
		children := parent.Children()
		if children.Length() < 2 {
			return
		}

		stats := make([]blockStats, 0, children.Length())
		fps := make([]uint64, 0, children.Length())
		children.Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "script", "style", "noscript", "template", "link", "meta":
				return
			}
			stats = append(stats, blockStats{
				sel:    child,
				text:   len(collapse(child.Text())),
				cue:    hasRatingCue(child),
				hinted: hasReviewHint(child),
			})
			fps = append(fps, simhash.FingerprintNode(child.Nodes[0]))
		})

		for _, members := range simhash.Cluster(fps, clusterThreshold) {
			if len(members) < 2 {
				continue
			}

			qualifying, hinted, total, texty := 0, 0, 0, 0
			for _, m := range members {
				st := stats[m]
				total += st.text
				if st.text >= minFallbackText {
					texty++
				}
				if st.cue && st.text >= minReviewText {
					qualifying++
				}
				if st.hinted {
					hinted++
				}
			}

			if qualifying >= 2 && qualifying*2 >= len(members) {
				if score := qualifying*4 + hinted; score > bestScore {
					bestScore = score
					best = collectQualifying(stats, members)
				}
			}
			if texty >= 2 && texty*2 >= len(members) && total > fallbackText {
				fallbackText = total
				fallback = collectTexty(stats, members)
			}
		}
	})
	return best, fallback
}

func collectQualifying(stats []blockStats, members []int) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, len(members))
	for _, m := range members {
		if st := stats[m]; st.cue && st.text >= minReviewText {
			out = append(out, st.sel)
		}
	}
	return out
}

func collectTexty(stats []blockStats, members []int) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, len(members))
	for _, m := range members {
		if st := stats[m]; st.text >= minFallbackText {
			out = append(out, st.sel)
		}
	}
	return out
}

func hasRatingCue(block *goquery.Selection) bool {
	if block.Is(ratingHints) || block.Find(ratingHints).Length() > 0 {
		return true
	}
	return cueText(block.Text()) != ""
}

func hasReviewHint(block *goquery.Selection) bool {
	for _, attr := range []string{"class", "id", "itemprop", "data-hook", "data-testid"} {
		if v, ok := block.Attr(attr); ok && strings.Contains(strings.ToLower(v), "review") {
			return true
		}
	}
	return false
}

// blockFields reads review fields from one block using class, itemprop
// and heading hints.
func blockFields(block *goquery.Selection) models.RawReview {
	raw := models.RawReview{
		RatingText: blockRating(block),
		Reviewer:   blockReviewer(block),
	}
	raw.Title = blockTitle(block, raw.Reviewer)
	raw.Body = blockBody(block, raw.Title, raw.Reviewer, raw.RatingText)
	return raw
}

func blockRating(block *goquery.Selection) string {
	cands := block.Find(ratingHints)
	if block.Is(ratingHints) {
		cands = cands.AddSelection(block)
	}
	if r := ratingText(cands); r != "" {
		return r
	}
	return cueText(collapse(block.Text()))
}

func blockReviewer(block *goquery.Selection) string {
	var name string
	block.Find(reviewerHints).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := collapse(s.Text())
		if t == "" || len(t) > maxReviewerLen {
			return true
		}
		name = trimBy(t)
		return name == ""
	})
	return name
}

func blockTitle(block *goquery.Selection, reviewer string) string {
	var title string
	block.Find(titleHints).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.ParentsFiltered(`[itemprop="author"]`).Length() > 0 {
			return true
		}
		t := collapse(s.Text())
		if t == "" || len(t) > maxTitleLen || t == reviewer {
			return true
		}
		title = t
		return false
	})
	return title
}

// blockBody picks the longest hinted element, falling back to the longest
// paragraph or leaf element that is not one of the other fields.
func blockBody(block *goquery.Selection, title, reviewer, rating string) string {
	skip := func(t string) bool {
		if t == "" || t == title || t == reviewer || t == rating {
			return true
		}
		// A wrapper around the whole card repeats the title.
		return title != "" && strings.Contains(t, title)
	}
	longest := func(sel *goquery.Selection) string {
		var best string
		sel.Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); !skip(t) && len(t) > len(best) {
				best = t
			}
		})
		return best
	}

	if body := longest(block.Find(bodyHints)); body != "" {
		return body
	}
	if body := longest(block.Find("p")); body != "" {
		return body
	}
	leaves := block.Find("div, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0
	})
	return longest(leaves)
}

func trimBy(name string) string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "by ") {
		return strings.TrimSpace(name[3:])
	}
	return name
}

// refine runs the semantic pass over blocks. With ambiguousOnly only
// blocks missing a body or both title and rating are classified; otherwise
// every block is, and blocks the classifier cannot vouch for are dropped.
func (g *GenericAdapter) refine(ctx context.Context, blocks []*goquery.Selection, raws []models.RawReview, ambiguousOnly bool) []models.RawReview {
	type verdict struct {
		asked  bool
		review *models.RawReview
		isRev  bool
		failed bool
	}
	verdicts := make([]verdict, len(blocks))

	var eg errgroup.Group
	eg.SetLimit(classifyConcurrency)
	calls := 0
	for i, block := range blocks {
		if ambiguousOnly && !ambiguous(raws[i]) {
			continue
		}
		if calls >= g.maxCalls {
			break
		}
		calls++
		markup, err := goquery.OuterHtml(block)
		if err != nil {
			continue
		}
		text := g.cleaner.BlockText(markup, 0)

		verdicts[i].asked = true
		eg.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, g.callTimeout)
			defer cancel()
			rr, ok, err := g.classifier.ClassifyReviewBlock(cctx, text)
			if err != nil {
				slog.DebugContext(ctx, "block classifier failed, keeping structural result", "error", err)
				verdicts[i].failed = true
				return nil
			}
			verdicts[i].review = rr
			verdicts[i].isRev = ok
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]models.RawReview, 0, len(raws))
	for i, raw := range raws {
		v := verdicts[i]
		switch {
		case !v.asked:
			if ambiguousOnly {
				out = append(out, raw)
			}
		case v.failed:
			if ambiguousOnly {
				out = append(out, raw)
			}
		case v.isRev:
			out = append(out, merge(raw, v.review))
		}
	}
	return out
}

func ambiguous(raw models.RawReview) bool {
	return raw.Body == "" || (raw.Title == "" && raw.RatingText == "")
}

// merge fills fields missing from raw with the classifier's reading.
func merge(raw models.RawReview, from *models.RawReview) models.RawReview {
	if from == nil {
		return raw
	}
	if raw.Title == "" {
		raw.Title = from.Title
	}
	if raw.Body == "" {
		raw.Body = from.Body
	}
	if raw.RatingText == "" {
		raw.RatingText = from.RatingText
	}
	if raw.Reviewer == "" {
		raw.Reviewer = from.Reviewer
	}
	return raw
}

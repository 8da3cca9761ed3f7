// Package review runs the extraction pipeline for one request: fetch the
// target, pick a site profile and adapter, walk its pagination, normalize
// and package the result.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/reviewlens/adapter"
	"github.com/use-agent/reviewlens/classifier"
	"github.com/use-agent/reviewlens/cleaner"
	"github.com/use-agent/reviewlens/fetcher"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/normalize"
	"github.com/use-agent/reviewlens/pagination"
	"github.com/use-agent/reviewlens/profile"
)

// Service scrapes reviews. It keeps no per-request state and is safe for
// concurrent use; the only shared resource is the fetcher's host limiter.
type Service struct {
	fetcher    pagination.Fetcher
	registry   *profile.Registry
	classifier *classifier.Classifier
	generic    *adapter.GenericAdapter
	pages      *pagination.Coordinator
	timeout    time.Duration
}

// NewService wires the pipeline. timeout is the overall per-request
// deadline; zero means 90s.
func NewService(f pagination.Fetcher, registry *profile.Registry, generic *adapter.GenericAdapter, pages *pagination.Coordinator, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if generic == nil {
		generic = adapter.NewGeneric(adapter.GenericOptions{})
	}
	return &Service{
		fetcher:    f,
		registry:   registry,
		classifier: classifier.New(registry),
		generic:    generic,
		pages:      pages,
		timeout:    timeout,
	}
}

// Scrape extracts every review reachable from req.TargetURL. It always
// returns a result: on a fatal failure Reviews is empty and Error is set;
// when pagination ended early Reviews and Error are both set.
func (s *Service) Scrape(ctx context.Context, req models.ScrapeRequest) *models.ScrapeResult {
	u, err := req.Validate()
	if err != nil {
		return Assemble(req.TargetURL, nil, 0, models.AsScrapeError(err))
	}
	target := u.String()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The URL alone decides how the first page is fetched; the document
	// decides how it is read.
	pre := s.registry.Get(classifier.KindOf(target))
	start, err := s.fetcher.Fetch(ctx, target, fetcher.ForProfile(pre))
	if err != nil {
		se := models.AsScrapeError(err)
		slog.WarnContext(ctx, "first page fetch failed", "url", target, "kind", se.Kind, "error", err)
		return Assemble(target, nil, 0, se)
	}

	p := s.classifier.Classify(target, start)
	a := adapter.For(p, s.generic)
	slog.DebugContext(ctx, "profile selected",
		"url", target, "final_url", start.URL, "profile", p.Kind, "adapter", a.Name(), "engine", start.Engine)

	col := s.pages.WithMaxPages(req.MaxPages).Collect(ctx, p, start, s.fetcher, a)
	reviews := normalize.Normalize(col.Records, p.RatingScale)

	scrapeErr := col.Warning
	if len(reviews) == 0 && scrapeErr == nil {
		scrapeErr = models.NewScrapeError(models.ErrKindNoMatch,
			"the page was reached but no reviews were found on it", nil)
	}

	res := Assemble(target, reviews, col.Pages, scrapeErr)
	res.Profile = string(p.Kind)
	res.Product = cleaner.PageMetadata(start.HTML, start.URL)

	slog.InfoContext(ctx, "scrape finished",
		"url", target, "profile", p.Kind, "pages", col.Pages, "reviews", len(reviews), "partial", res.Partial())
	return res
}

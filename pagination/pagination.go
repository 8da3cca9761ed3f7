// Package pagination follows review listings across pages. It discovers
// further pages from next links or from a page-number parameter, fetches
// them through the shared fetcher and runs the adapter on each, stopping on
// cycles, empty pages, failures and the configured caps.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/reviewlens/adapter"
	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/fetcher"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

// Fetcher is the subset of fetcher.Fetcher the coordinator needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*models.Document, error)
}

// Collection is the outcome of walking a review listing.
type Collection struct {
	// Records holds the raw reviews of every page in page order.
	Records []models.RawReview

	// Pages is the number of pages that were fetched and extracted,
	// the start page included.
	Pages int

	// Warning is set when pagination stopped on a failure after at least
	// one page had been read. Its kind is PARTIAL or TIMEOUT.
	Warning *models.ScrapeError
}

// Coordinator walks review pages. It holds no per-request state and is
// safe for concurrent use.
type Coordinator struct {
	maxPages    int
	maxElapsed  time.Duration
	concurrency int

	now func() time.Time
}

// New creates a Coordinator from cfg, applying defaults for zero values.
func New(cfg config.PaginationConfig) *Coordinator {
	c := &Coordinator{
		maxPages:    cfg.MaxPages,
		maxElapsed:  cfg.MaxElapsed,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
	if c.maxPages <= 0 {
		c.maxPages = 10
	}
	if c.maxElapsed <= 0 {
		c.maxElapsed = 60 * time.Second
	}
	if c.concurrency <= 0 {
		c.concurrency = 3
	}
	return c
}

// WithMaxPages returns a copy of c with a lower page cap. Values that are
// not positive or exceed the configured cap are ignored.
func (c *Coordinator) WithMaxPages(n int) *Coordinator {
	if n <= 0 || n >= c.maxPages {
		return c
	}
	cp := *c
	cp.maxPages = n
	return &cp
}

type page struct {
	doc     *models.Document
	records []models.RawReview
	err     error
}

// Collect extracts reviews from start and the pages that follow it. A page
// that yields no reviews ends the walk; so does a URL already visited.
// Reaching the page or time cap ends it silently, including when the time
// cap interrupts a fetch.
func (c *Coordinator) Collect(ctx context.Context, p *profile.Profile, start *models.Document, f Fetcher, a adapter.Adapter) *Collection {
	began := c.now()
	opts := fetcher.ForProfile(p)

	visited := make(map[string]struct{})
	visit(visited, start.RequestedURL)
	visit(visited, start.URL)

	col := &Collection{Pages: 1}
	col.Records = a.Extract(ctx, start, p)
	if len(col.Records) == 0 {
		return col
	}

	// Fetches in flight are cut off when the time cap passes.
	walkCtx, cancel := context.WithTimeout(ctx, c.maxElapsed)
	defer cancel()

	cur := start
	for col.Pages < c.maxPages {
		if elapsed := c.now().Sub(began); elapsed >= c.maxElapsed {
			slog.InfoContext(ctx, "pagination time cap reached",
				"url", start.URL, "pages", col.Pages, "elapsed", elapsed)
			break
		}
		if ctx.Err() != nil {
			col.Warning = stopWarning(ctx, col.Pages, ctx.Err())
			break
		}
		if walkCtx.Err() != nil {
			slog.InfoContext(ctx, "pagination time cap reached", "url", start.URL, "pages", col.Pages)
			break
		}

		batch := c.discover(p, cur, visited, c.maxPages-col.Pages)
		if len(batch) == 0 {
			break
		}

		pages := c.fetchAll(walkCtx, p, batch, f, a, opts)
		done := false
		for i, pg := range pages {
			if pg.err != nil {
				if walkCtx.Err() != nil && ctx.Err() == nil {
					slog.InfoContext(ctx, "pagination time cap reached during fetch",
						"url", batch[i], "pages", col.Pages)
				} else {
					slog.WarnContext(ctx, "pagination stopped on fetch error",
						"url", batch[i], "pages", col.Pages, "error", pg.err)
					col.Warning = stopWarning(ctx, col.Pages, pg.err)
				}
				done = true
				break
			}
			landed := canonical(pg.doc.URL)
			if _, seen := visited[landed]; seen && landed != canonical(batch[i]) {
				// Redirected back onto a page already read.
				done = true
				break
			}
			visit(visited, batch[i])
			visit(visited, pg.doc.URL)
			col.Pages++
			if len(pg.records) == 0 {
				done = true
				break
			}
			col.Records = append(col.Records, pg.records...)
			cur = pg.doc
		}
		if done {
			break
		}
	}

	if col.Pages >= c.maxPages {
		slog.InfoContext(ctx, "pagination page cap reached", "url", start.URL, "pages", col.Pages)
	}
	return col
}

// fetchAll fetches batch with bounded parallelism and returns the pages in
// batch order. A failure does not cancel the other fetches.
func (c *Coordinator) fetchAll(ctx context.Context, p *profile.Profile, batch []string, f Fetcher, a adapter.Adapter, opts fetcher.Options) []page {
	pages := make([]page, len(batch))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, u := range batch {
		g.Go(func() error {
			doc, err := f.Fetch(ctx, u, opts)
			if err != nil {
				pages[i].err = err
				return nil
			}
			pages[i] = page{doc: doc, records: a.Extract(ctx, doc, p)}
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

// discover returns the next URLs to fetch after cur, at most limit of them.
// Numbered pages are preferred when the profile names a page parameter and
// the page reveals further page numbers; otherwise a single next link is
// followed. URLs already visited are never returned.
func (c *Coordinator) discover(p *profile.Profile, cur *models.Document, visited map[string]struct{}, limit int) []string {
	if limit <= 0 {
		return nil
	}
	base, err := url.Parse(cur.URL)
	if err != nil {
		return nil
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(cur.HTML))
	if err != nil {
		return nil
	}

	if urls := numberedPages(p, gq, base, visited, limit); len(urls) > 0 {
		return urls
	}
	if next := nextLink(p, gq, base, visited); next != "" {
		return []string{next}
	}
	return nil
}

// numberedPages predicts the URLs of the pages after base. The total comes
// from the profile's total-pages pattern; without it, numbered links
// carrying the page parameter are used.
func numberedPages(p *profile.Profile, gq *goquery.Document, base *url.URL, visited map[string]struct{}, limit int) []string {
	param := p.Pagination.PageParam
	if param == "" {
		return nil
	}
	current := pageNumber(base, param)
	if current == 0 {
		current = 1
	}

	var urls []string
	add := func(u string) {
		if len(urls) >= limit {
			return
		}
		if _, seen := visited[canonical(u)]; seen {
			return
		}
		for _, have := range urls {
			if canonical(have) == canonical(u) {
				return
			}
		}
		urls = append(urls, u)
	}

	if total := p.Pagination.TotalPages(gq.Text()); total > current {
		for n := current + 1; n <= total; n++ {
			add(withPage(base, param, n))
		}
		return urls
	}

	type numbered struct {
		n   int
		url string
	}
	var found []numbered
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u := resolve(base, s.AttrOr("href", ""))
		if u == nil || u.Host != base.Host {
			return
		}
		if n := pageNumber(u, param); n > current {
			found = append(found, numbered{n, u.String()})
		}
	})
	sort.SliceStable(found, func(i, j int) bool { return found[i].n < found[j].n })
	for _, f := range found {
		add(f.url)
	}
	return urls
}

// nextLink returns the first usable next-page link: the profile's next
// selectors first, then rel="next" links.
func nextLink(p *profile.Profile, gq *goquery.Document, base *url.URL, visited map[string]struct{}) string {
	selectors := append([]string{}, p.Pagination.Next...)
	selectors = append(selectors, `a[rel="next"]`, `link[rel="next"]`)
	want := strings.ToLower(p.Pagination.NextText)

	for _, sel := range selectors {
		var found string
		gq.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label := strings.ToLower(strings.TrimSpace(s.Text() + " " + s.AttrOr("aria-label", "")))
			if strings.Contains(label, "prev") {
				return true
			}
			if want != "" && goquery.NodeName(s) == "a" && !strings.Contains(label, want) {
				return true
			}
			u := resolve(base, s.AttrOr("href", ""))
			if u == nil {
				return true
			}
			if _, seen := visited[canonical(u.String())]; seen {
				return true
			}
			found = u.String()
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u.Fragment = ""
	return u
}

func pageNumber(u *url.URL, param string) int {
	n, err := strconv.Atoi(u.Query().Get(param))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func withPage(base *url.URL, param string, n int) string {
	u := *base
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

// canonical normalises a URL for the visited set: lower-case host, no
// fragment, sorted query.
func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func visit(visited map[string]struct{}, raw string) {
	if raw != "" {
		visited[canonical(raw)] = struct{}{}
	}
}

// stopWarning describes why pagination ended early. A passed request
// deadline is reported as TIMEOUT; anything else as PARTIAL.
func stopWarning(ctx context.Context, pages int, cause error) *models.ScrapeError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrKindTimeout,
			fmt.Sprintf("request deadline reached after %d page(s)", pages), cause)
	}
	return models.NewScrapeError(models.ErrKindPartial,
		fmt.Sprintf("stopped after %d page(s): %s", pages, models.AsScrapeError(cause).Message), cause)
}

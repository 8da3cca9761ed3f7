package pagination

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/fetcher"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

// listAdapter reads every <p class="r"> as one review body.
type listAdapter struct{}

func (listAdapter) Name() string { return "list" }

func (listAdapter) Extract(_ context.Context, doc *models.Document, _ *profile.Profile) []models.RawReview {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil
	}
	var out []models.RawReview
	gq.Find("p.r").Each(func(_ int, s *goquery.Selection) {
		out = append(out, models.RawReview{Body: s.Text()})
	})
	return out
}

type siteFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	delay map[string]time.Duration
	calls []string

	// redirect maps a requested URL to the URL it lands on.
	redirect map[string]string
	// hang makes fetches of these URLs block until ctx is done.
	hang     map[string]bool

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newSite() *siteFetcher {
	return &siteFetcher{
		pages:    make(map[string]string),
		fail:     make(map[string]error),
		delay:    make(map[string]time.Duration),
		redirect: make(map[string]string),
		hang:     make(map[string]bool),
	}
}

func (s *siteFetcher) page(rawURL, html string) { s.pages[canonical(rawURL)] = html }

func (s *siteFetcher) Fetch(ctx context.Context, rawURL string, _ fetcher.Options) (*models.Document, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		m := s.maxInflight.Load()
		if n <= m || s.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	key := canonical(rawURL)
	s.mu.Lock()
	s.calls = append(s.calls, key)
	d, err, hang := s.delay[key], s.fail[key], s.hang[key]
	landed := rawURL
	if to, ok := s.redirect[key]; ok {
		landed = to
	}
	html, ok := s.pages[canonical(landed)]
	s.mu.Unlock()

	if hang {
		select {
		case <-ctx.Done():
			return nil, models.NewScrapeError(models.ErrKindTimeout, "timed out fetching "+rawURL, ctx.Err())
		case <-time.After(5 * time.Second):
		}
	}
	if d > 0 {
		time.Sleep(d)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewHTTPError(404, "not found")
	}
	return &models.Document{URL: landed, RequestedURL: rawURL, HTML: html}, nil
}

func (s *siteFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func listing(reviews []string, extra string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range reviews {
		fmt.Fprintf(&b, `<p class="r">%s</p>`, r)
	}
	b.WriteString(extra)
	b.WriteString("</body></html>")
	return b.String()
}

func mustProfile(t *testing.T, doc string) *profile.Profile {
	t.Helper()
	p, err := profile.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("profile.Parse: %v", err)
	}
	return p
}

const nextProfile = `
kind: generic
pagination:
  next: ["a.next"]
`

const numberedProfile = `
kind: generic
pagination:
  next: ["a.next"]
  page_param: page
  total_pages_pattern: 'Page \d+ of (\d+)'
`

func startDoc(rawURL, html string) *models.Document {
	return &models.Document{URL: rawURL, RequestedURL: rawURL, HTML: html}
}

func bodies(recs []models.RawReview) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Body
	}
	return out
}

func TestCollect_FollowsNextLinks(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r?p=2", listing([]string{"c", "d"}, `<a class="next" href="/r?p=3">Next</a>`))
	site.page("https://shop.test/r?p=3", listing([]string{"e"}, ""))
	start := startDoc("https://shop.test/r", listing([]string{"a", "b"}, `<a class="next" href="/r?p=2#top">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 3 {
		t.Errorf("Pages = %d, want 3", col.Pages)
	}
	if col.Warning != nil {
		t.Errorf("Warning = %v, want nil", col.Warning)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_SelfLinkTerminates(t *testing.T) {
	site := newSite()
	start := startDoc("https://shop.test/r?b=2&a=1",
		listing([]string{"a"}, `<a class="next" href="https://SHOP.test/r?a=1&b=2#reviews">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 1 || len(col.Records) != 1 {
		t.Errorf("got %d pages / %d records, want 1 / 1", col.Pages, len(col.Records))
	}
	if n := site.callCount(); n != 0 {
		t.Errorf("fetch calls = %d, want 0", n)
	}
}

func TestCollect_CycleTerminates(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r?p=2", listing([]string{"b"}, `<a class="next" href="/r">Next</a>`))
	start := startDoc("https://shop.test/r", listing([]string{"a"}, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 2 {
		t.Errorf("Pages = %d, want 2", col.Pages)
	}
	if n := site.callCount(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestCollect_SkipsPreviousAndHonorsNextText(t *testing.T) {
	const p = `
kind: generic
pagination:
  next: ["nav a"]
  next_text: next
`
	site := newSite()
	site.page("https://shop.test/r?p=3", listing([]string{"c"}, ""))
	start := startDoc("https://shop.test/r?p=2", listing([]string{"b"},
		`<nav><a href="/r?p=1">Previous</a><a href="/r?p=9">9</a><a href="/r?p=3">Next ›</a></nav>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, p), start, site, listAdapter{})

	if diff := cmp.Diff([]string{"b", "c"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if n := site.callCount(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestCollect_RelNextFallback(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r/2", listing([]string{"b"}, ""))
	start := startDoc("https://shop.test/r", `<html><head><link rel="next" href="/r/2"></head><body><p class="r">a</p></body></html>`)

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 2 || len(col.Records) != 2 {
		t.Errorf("got %d pages / %d records, want 2 / 2", col.Pages, len(col.Records))
	}
}

func TestCollect_EmptyPageStops(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r?p=2", listing(nil, `<a class="next" href="/r?p=3">Next</a>`))
	site.page("https://shop.test/r?p=3", listing([]string{"c"}, ""))
	start := startDoc("https://shop.test/r", listing([]string{"a"}, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 2 || len(col.Records) != 1 {
		t.Errorf("got %d pages / %d records, want 2 / 1", col.Pages, len(col.Records))
	}
	if n := site.callCount(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestCollect_NoReviewsOnFirstPage(t *testing.T) {
	site := newSite()
	start := startDoc("https://shop.test/r", listing(nil, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 1 || len(col.Records) != 0 || col.Warning != nil {
		t.Errorf("unexpected collection %+v", col)
	}
	if n := site.callCount(); n != 0 {
		t.Errorf("fetch calls = %d, want 0", n)
	}
}

func TestCollect_LaterFailureIsPartial(t *testing.T) {
	site := newSite()
	site.fail[canonical("https://shop.test/r?p=2")] = models.NewScrapeError(models.ErrKindTimeout, "timed out fetching page 2", nil)
	start := startDoc("https://shop.test/r", listing([]string{"a", "b"}, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Warning == nil || col.Warning.Kind != models.ErrKindPartial {
		t.Fatalf("Warning = %v, want PARTIAL", col.Warning)
	}
	if !strings.Contains(col.Warning.Message, "timed out fetching page 2") {
		t.Errorf("Warning message %q does not carry the cause", col.Warning.Message)
	}
	if diff := cmp.Diff([]string{"a", "b"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if col.Pages != 1 {
		t.Errorf("Pages = %d, want 1", col.Pages)
	}
}

func TestCollect_ExpiredDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	site := newSite()
	site.page("https://shop.test/r?p=2", listing([]string{"b"}, ""))
	start := startDoc("https://shop.test/r", listing([]string{"a"}, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(ctx, mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Warning == nil || col.Warning.Kind != models.ErrKindTimeout {
		t.Fatalf("Warning = %v, want TIMEOUT", col.Warning)
	}
	if len(col.Records) != 1 {
		t.Errorf("records = %d, want the first page's 1", len(col.Records))
	}
}

func chain(site *siteFetcher, n int) *models.Document {
	for i := 2; i <= n; i++ {
		next := ""
		if i < n {
			next = fmt.Sprintf(`<a class="next" href="/r?p=%d">Next</a>`, i+1)
		}
		site.page(fmt.Sprintf("https://shop.test/r?p=%d", i), listing([]string{fmt.Sprint(i)}, next))
	}
	return startDoc("https://shop.test/r", listing([]string{"1"}, `<a class="next" href="/r?p=2">Next</a>`))
}

func TestCollect_PageCap(t *testing.T) {
	tests := []struct {
		name     string
		override int
		want     int
	}{
		{"default", 0, 10},
		{"lower", 4, 4},
		{"higher ignored", 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newSite()
			start := chain(site, 15)

			c := New(config.PaginationConfig{}).WithMaxPages(tt.override)
			col := c.Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

			if col.Pages != tt.want || len(col.Records) != tt.want {
				t.Errorf("got %d pages / %d records, want %d", col.Pages, len(col.Records), tt.want)
			}
			if col.Warning != nil {
				t.Errorf("Warning = %v, want nil", col.Warning)
			}
		})
	}
}

func TestCollect_TimeCap(t *testing.T) {
	site := newSite()
	start := chain(site, 5)

	c := New(config.PaginationConfig{MaxElapsed: time.Minute})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks int
	c.now = func() time.Time {
		ts := base.Add(time.Duration(ticks) * 31 * time.Second)
		ticks++
		return ts
	}

	col := c.Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if col.Pages != 2 {
		t.Errorf("Pages = %d, want 2", col.Pages)
	}
	if col.Warning != nil {
		t.Errorf("Warning = %v, want nil", col.Warning)
	}
}

func TestCollect_TimeCapInterruptsFetch(t *testing.T) {
	site := newSite()
	start := chain(site, 4)
	site.hang[canonical("https://shop.test/r?p=3")] = true

	began := time.Now()
	col := New(config.PaginationConfig{MaxElapsed: 200 * time.Millisecond}).
		Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if elapsed := time.Since(began); elapsed > 2*time.Second {
		t.Errorf("Collect took %v, want it cut off near 200ms", elapsed)
	}
	if diff := cmp.Diff([]string{"1", "2"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if col.Pages != 2 {
		t.Errorf("Pages = %d, want 2", col.Pages)
	}
	if col.Warning != nil {
		t.Errorf("Warning = %v, want nil", col.Warning)
	}
}

func TestCollect_RedirectSourceIsVisited(t *testing.T) {
	site := newSite()
	site.redirect[canonical("https://shop.test/r?p=2")] = "https://shop.test/r?p=2b"
	site.page("https://shop.test/r?p=2b", listing([]string{"2"}, `<a class="next" href="/r?p=3">Next</a>`))
	site.page("https://shop.test/r?p=3", listing([]string{"3"}, `<a class="next" href="/r?p=2">Next</a>`))
	start := startDoc("https://shop.test/r", listing([]string{"1"}, `<a class="next" href="/r?p=2">Next</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, nextProfile), start, site, listAdapter{})

	if diff := cmp.Diff([]string{"1", "2", "3"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if n := site.callCount(); n != 2 {
		t.Errorf("fetches = %d, want 2 (the redirecting URL is not fetched again)", n)
	}
	if col.Warning != nil {
		t.Errorf("Warning = %v, want nil", col.Warning)
	}
}

func TestCollect_NumberedPagesInOrder(t *testing.T) {
	site := newSite()
	for i := 2; i <= 6; i++ {
		u := fmt.Sprintf("https://shop.test/r?pid=X&page=%d", i)
		site.page(u, listing([]string{fmt.Sprint(i)}, fmt.Sprintf("<span>Page %d of 6</span>", i)))
		// Earlier pages answer last.
		site.delay[canonical(u)] = time.Duration(7-i) * 10 * time.Millisecond
	}
	start := startDoc("https://shop.test/r?pid=X", listing([]string{"1"}, "<span>Page 1 of 6</span>"))

	col := New(config.PaginationConfig{Concurrency: 3}).Collect(context.Background(), mustProfile(t, numberedProfile), start, site, listAdapter{})

	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5", "6"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if col.Pages != 6 {
		t.Errorf("Pages = %d, want 6", col.Pages)
	}
	if n := site.callCount(); n != 5 {
		t.Errorf("fetch calls = %d, want 5", n)
	}
	if m := site.maxInflight.Load(); m > 3 {
		t.Errorf("max concurrent fetches = %d, want <= 3", m)
	}
}

func TestCollect_NumberedFailureKeepsEarlierPages(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r?page=2", listing([]string{"2"}, ""))
	site.fail[canonical("https://shop.test/r?page=3")] = models.NewScrapeError(models.ErrKindNetwork, "connection reset", nil)
	site.page("https://shop.test/r?page=4", listing([]string{"4"}, ""))
	start := startDoc("https://shop.test/r", listing([]string{"1"}, "<span>Page 1 of 4</span>"))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, numberedProfile), start, site, listAdapter{})

	if diff := cmp.Diff([]string{"1", "2"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if col.Warning == nil || col.Warning.Kind != models.ErrKindPartial {
		t.Errorf("Warning = %v, want PARTIAL", col.Warning)
	}
}

func TestCollect_NumberedAnchors(t *testing.T) {
	site := newSite()
	site.page("https://shop.test/r?page=2", listing([]string{"2"}, `<a href="/r?page=3">3</a>`))
	site.page("https://shop.test/r?page=3", listing([]string{"3"}, `<a href="/r?page=4">4</a>`))
	site.page("https://shop.test/r?page=4", listing([]string{"4"}, ""))
	start := startDoc("https://shop.test/r", listing([]string{"1"},
		`<a href="/r?page=1">1</a><a href="/r?page=3">3</a><a href="/r?page=2">2</a><a href="https://elsewhere.test/r?page=9">9</a>`))

	col := New(config.PaginationConfig{}).Collect(context.Background(), mustProfile(t, numberedProfile), start, site, listAdapter{})

	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, bodies(col.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"https://x.test/r?b=1&a=2", "https://X.test/r?a=2&b=1#frag", true},
		{"https://x.test", "https://x.test/", true},
		{"https://x.test/r?p=1", "https://x.test/r?p=2", false},
	}
	for _, tt := range tests {
		if got := canonical(tt.a) == canonical(tt.b); got != tt.same {
			t.Errorf("canonical(%q) == canonical(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

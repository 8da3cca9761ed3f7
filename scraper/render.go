package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/reviewlens/engine"
)

const (
	defaultRenderTimeout = 30 * time.Second
	waitSelectorTimeout  = 8 * time.Second
)

// Render loads req.URL in a pooled tab and returns the DOM snapshot. It is
// the callback behind engine.RodEngine.
//
// Lifecycle:
//
//  1. Acquire a tab; on return it is reset to about:blank and pooled.
//  2. Extra headers and resource blocking are installed before navigation.
//  3. Navigate, then wait for req.WaitSelector or for the DOM to settle.
//  4. Click the req.Expand controls.
//  5. Enforce req.MaxRedirects on the redirects the browser reports.
//  6. Snapshot HTML, title, final URL and the navigation status code.
func (b *Browser) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, fmt.Errorf("render: acquire page: %w", err)
	}
	defer func() {
		// The original page reference has no request context, so cleanup
		// works after the deadline.
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("render cleanup: about:blank failed", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	headers := map[string]string{"Accept-Language": "en-US,en;q=0.9"}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(page); err != nil {
		slog.DebugContext(ctx, "render: extra headers not applied", "url", req.URL, "error", err)
	}

	router := b.blocked.hijack(page)
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", req.URL, err)
	}

	if req.WaitSelector != "" {
		if !waitFor(ctx, page, req.WaitSelector, waitSelectorTimeout) {
			slog.DebugContext(ctx, "render: wait selector never matched",
				"url", req.URL, "selector", req.WaitSelector)
		}
	} else if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.DebugContext(ctx, "render: DOM did not settle, snapshotting anyway", "url", req.URL, "error", err)
	}

	if len(req.Expand) > 0 {
		if n := expandAll(ctx, page, req.Expand); n > 0 {
			slog.DebugContext(ctx, "render: expanded controls", "url", req.URL, "clicks", n)
		}
	}

	if err := checkRedirects(req.URL, navigationRedirects(p), req.MaxRedirects); err != nil {
		return nil, err
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("render: read HTML of %s: %w", req.URL, err)
	}

	finalURL := evalString(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}
	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalString(p, `() => document.title`),
		StatusCode: navigationStatus(p),
		FinalURL:   finalURL,
	}, nil
}

// navigationStatus reads the main document's HTTP status from the
// Navigation Timing API; 0 when the browser does not expose it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// navigationRedirects reads the redirect count of the main document from
// the Navigation Timing API. Browsers report 0 when any hop crossed origins.
func navigationRedirects(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].redirectCount || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// checkRedirects applies the request's redirect cap to a rendered page.
// limit <= 0 disables the check.
func checkRedirects(rawURL string, hops, limit int) error {
	if limit > 0 && hops > limit {
		return fmt.Errorf("render: %s stopped after %d redirects", rawURL, limit)
	}
	return nil
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts headers to the proto.NetworkHeaders map of
// gson.JSON values.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

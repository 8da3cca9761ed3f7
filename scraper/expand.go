package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	clickTimeout    = 3 * time.Second
	maxExpandClicks = 30
)

var errNotVisible = errors.New("element not visible")

// expandAll clicks every visible element matching selectors, up to
// maxExpandClicks, so truncated review bodies are in the DOM before the
// snapshot. Failures are logged and skipped. It returns the click count.
func expandAll(ctx context.Context, page *rod.Page, selectors []string) int {
	clicks := 0
	for _, sel := range selectors {
		els, err := page.Context(ctx).Elements(sel)
		if err != nil {
			slog.DebugContext(ctx, "expand: query failed", "selector", sel, "error", err)
			continue
		}
		for _, el := range els {
			if clicks >= maxExpandClicks {
				return clicks
			}
			if err := click(ctx, el); err != nil {
				slog.DebugContext(ctx, "expand: click skipped", "selector", sel, "error", err)
				continue
			}
			clicks++
		}
	}
	if clicks > 0 {
		_ = page.Context(ctx).WaitDOMStable(200*time.Millisecond, 0.1)
	}
	return clicks
}

func click(ctx context.Context, el *rod.Element) error {
	ctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()

	e := el.Context(ctx)
	visible, err := e.Visible()
	if err != nil {
		return err
	}
	if !visible {
		return errNotVisible
	}
	return e.Click(proto.InputMouseButtonLeft, 1)
}

// waitFor waits up to d for selector to match, reporting whether it did.
func waitFor(ctx context.Context, page *rod.Page, selector string, d time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return page.Context(ctx).WaitElementsMoreThan(selector, 0) == nil
}

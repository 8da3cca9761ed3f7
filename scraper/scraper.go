// Package scraper owns the headless browser used by the rod engine: launch,
// a bounded page pool, resource blocking and DOM snapshots after the review
// list has rendered and its "read more" controls have been expanded.
package scraper

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/models"
)

// Browser manages the browser process and its page pool. It is safe for
// concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	blocked     blockSet
	activePages atomic.Int32
	startTime   time.Time
}

// Launch starts a browser and creates a page pool of cfg.MaxPages tabs.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 6
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("scraper: launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("scraper: connect to browser: %w", err)
	}

	slog.Info("page pool created", "maxPages", cfg.MaxPages)
	return &Browser{
		browser:   browser,
		pagePool:  rod.NewPagePool(cfg.MaxPages),
		cfg:       cfg,
		blocked:   newBlockSet(cfg.BlockedResourceTypes),
		startTime: time.Now(),
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (b *Browser) Stats() models.PoolStats {
	return models.PoolStats{
		BrowserEnabled: true,
		MaxPages:       b.cfg.MaxPages,
		ActivePages:    int(b.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("browser shutdown complete")
}

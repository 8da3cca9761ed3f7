// Package fetcher retrieves single pages for the review pipeline. It sits on
// top of the engine dispatcher and adds the retry policy, per-host
// throttling and the mapping of low-level failures onto error kinds.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/engine"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

// Engine is the subset of engine.Engine the fetcher needs.
type Engine interface {
	Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Options tune a single fetch. Zero values fall back to the fetcher config.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int

	RenderJS     bool
	WaitSelector string
	Expand       []string
}

// Fetcher fetches pages with retries and per-host throttling. It is safe
// for concurrent use.
type Fetcher struct {
	engine  Engine
	limiter *HostLimiter
	cfg     config.FetchConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher. limiter may be nil to disable throttling.
func New(eng Engine, limiter *HostLimiter, cfg config.FetchConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	return &Fetcher{
		engine:  eng,
		limiter: limiter,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Fetch retrieves rawURL and returns the resulting document. Every error
// returned is a *models.ScrapeError of kind INVALID_URL, NETWORK, HTTP or
// TIMEOUT.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*models.Document, error) {
	u, err := models.ParseTargetURL(rawURL)
	if err != nil {
		return nil, err
	}
	target := u.String()
	host := u.Hostname()

	req := &engine.FetchRequest{
		URL:          target,
		Timeout:      opts.Timeout,
		MaxRedirects: opts.MaxRedirects,
		RenderJS:     opts.RenderJS,
		WaitSelector: opts.WaitSelector,
		Expand:       opts.Expand,
	}
	if req.Timeout <= 0 {
		req.Timeout = f.cfg.Timeout
	}
	if req.MaxRedirects <= 0 {
		req.MaxRedirects = f.cfg.MaxRedirects
	}

	var (
		transientRetries int
		statusRetried    bool
	)
	for {
		res, err := f.attempt(ctx, host, req)
		if err == nil {
			finalURL := res.FinalURL
			if finalURL == "" {
				finalURL = target
			}
			return &models.Document{
				URL:          finalURL,
				RequestedURL: target,
				HTML:         res.HTML,
				FetchedAt:    f.now(),
				StatusCode:   res.StatusCode,
				Engine:       res.EngineName,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, contextError(ctx, target, err)
		}

		var se *engine.StatusError
		if errors.As(err, &se) {
			if !statusRetried && (se.StatusCode == 429 || se.StatusCode == 503) {
				wait := se.RetryAfter
				if wait <= 0 {
					wait = f.backoff(0)
				}
				if f.fitsBudget(ctx, wait, req.Timeout) {
					statusRetried = true
					slog.WarnContext(ctx, "upstream throttled, retrying",
						"url", target, "status", se.StatusCode, "wait", wait)
					if serr := f.sleep(ctx, wait); serr != nil {
						return nil, contextError(ctx, target, serr)
					}
					continue
				}
			}
			return nil, models.NewHTTPError(se.StatusCode,
				fmt.Sprintf("upstream returned HTTP %d for %s", se.StatusCode, target))
		}

		if isTransient(err) && transientRetries < f.cfg.MaxRetries {
			wait := f.backoff(transientRetries)
			transientRetries++
			slog.WarnContext(ctx, "transient fetch error, retrying",
				"url", target, "attempt", transientRetries, "wait", wait, "error", err)
			if serr := f.sleep(ctx, wait); serr != nil {
				return nil, contextError(ctx, target, serr)
			}
			continue
		}

		slog.WarnContext(ctx, "fetch failed", "url", target, "error", err)
		if isTimeout(err) {
			return nil, models.NewScrapeError(models.ErrKindTimeout,
				fmt.Sprintf("timed out fetching %s", target), err)
		}
		return nil, models.NewScrapeError(models.ErrKindNetwork,
			fmt.Sprintf("could not fetch %s", target), err)
	}
}

func (f *Fetcher) attempt(ctx context.Context, host string, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if f.limiter != nil {
		release, err := f.limiter.Acquire(ctx, host)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return f.engine.Fetch(ctx, req)
}

func (f *Fetcher) backoff(i int) time.Duration {
	if len(f.cfg.Backoff) == 0 {
		return 500 * time.Millisecond
	}
	if i >= len(f.cfg.Backoff) {
		i = len(f.cfg.Backoff) - 1
	}
	return f.cfg.Backoff[i]
}

// fitsBudget reports whether waiting d still leaves room for another
// attempt before the caller's deadline. Without a deadline the per-fetch
// timeout is the cap.
func (f *Fetcher) fitsBudget(ctx context.Context, d, perFetch time.Duration) bool {
	if deadline, ok := ctx.Deadline(); ok {
		return d < deadline.Sub(f.now())
	}
	return d <= perFetch
}

func contextError(ctx context.Context, target string, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrKindTimeout,
			fmt.Sprintf("deadline exceeded fetching %s", target), cause)
	}
	return models.NewScrapeError(models.ErrKindNetwork,
		fmt.Sprintf("fetch of %s was canceled", target), cause)
}

// isTransient reports whether err is worth retrying: timeouts, resets and
// truncated bodies. DNS failures and refused connections are not.
func isTransient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if isTimeout(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "unexpected eof")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ForProfile returns the fetch options a site profile asks for.
func ForProfile(p *profile.Profile) Options {
	return Options{
		RenderJS:     p.RenderJS,
		WaitSelector: p.WaitSelector,
		Expand:       p.Expand,
	}
}

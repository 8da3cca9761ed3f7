package review

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/reviewlens/adapter"
	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/engine"
	"github.com/use-agent/reviewlens/fetcher"
	"github.com/use-agent/reviewlens/llm"
	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/pagination"
	"github.com/use-agent/reviewlens/profile"
	"github.com/use-agent/reviewlens/scraper"
)

// Runtime is a fully wired Service plus the resources it owns.
type Runtime struct {
	Service *Service
	browser *scraper.Browser
}

// NewRuntime builds the engines, fetcher, profiles and adapters described
// by cfg. A browser that fails to launch is logged and the runtime runs
// HTTP-only.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	registry, err := profile.NewRegistry(cfg.Extract.SelectorsDir)
	if err != nil {
		return nil, fmt.Errorf("review: load profiles: %w", err)
	}

	rt := &Runtime{}
	engines := []engine.Engine{engine.NewHTTPEngine()}
	if cfg.Browser.Enabled {
		b, err := scraper.Launch(cfg.Browser)
		if err != nil {
			slog.Warn("browser unavailable, running HTTP-only", "error", err)
		} else {
			rt.browser = b
			engines = append(engines, engine.NewRodEngine(b.Render))
		}
	}

	dispatcher := engine.NewDispatcher(engines, cfg.Engine.EscalationDelay,
		engine.NewDomainMemory(cfg.Engine.DomainMemoryTTL))
	limiter := fetcher.NewHostLimiter(cfg.HostLimit.RequestsPerSecond, cfg.HostLimit.Burst, cfg.HostLimit.MaxConcurrent)
	f := fetcher.New(dispatcher, limiter, cfg.Fetch)

	generic := adapter.NewGeneric(genericOptions(cfg))
	rt.Service = NewService(f, registry, generic, pagination.New(cfg.Pagination), cfg.Server.RequestTimeout)

	slog.Info("review pipeline ready",
		"engines", len(engines),
		"browser", rt.browser != nil,
		"semantic", cfg.Extract.SemanticEnabled && cfg.LLM.APIKey != "",
	)
	return rt, nil
}

func genericOptions(cfg *config.Config) adapter.GenericOptions {
	opts := adapter.GenericOptions{
		MaxCalls:    cfg.Extract.SemanticMaxBlocks,
		CallTimeout: cfg.Extract.SemanticTimeout,
	}
	if !cfg.Extract.SemanticEnabled {
		return opts
	}
	if cfg.LLM.APIKey == "" {
		slog.Warn("semantic extraction enabled but no LLM API key set; disabled")
		return opts
	}
	opts.Classifier = llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	}, nil)
	return opts
}

// Stats reports the browser pool, or an HTTP-only snapshot without one.
func (r *Runtime) Stats() models.PoolStats {
	if r.browser == nil {
		return models.PoolStats{}
	}
	return r.browser.Stats()
}

// Close releases the browser, if any.
func (r *Runtime) Close() {
	if r.browser != nil {
		r.browser.Close()
	}
}

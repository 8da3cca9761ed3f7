// Package profile holds the per-site extraction settings: selector sets,
// pagination hints and rendering needs. Selector data lives in versioned
// YAML files embedded in the binary and can be overridden from a directory
// without a rebuild.
package profile

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Kind identifies the site family a page belongs to.
type Kind string

const (
	Amazon   Kind = "AMAZON"
	Flipkart Kind = "FLIPKART"
	Generic  Kind = "GENERIC"
)

// Kinds lists every supported kind in lookup order.
var Kinds = []Kind{Amazon, Flipkart, Generic}

//go:embed selectors/*.yaml
var embedded embed.FS

// Selectors lists CSS selectors per review field. For each field the first
// selector that yields non-empty text wins.
type Selectors struct {
	Container []string `yaml:"container"`
	Title     []string `yaml:"title"`
	Body      []string `yaml:"body"`
	Rating    []string `yaml:"rating"`
	Reviewer  []string `yaml:"reviewer"`
}

// Pagination describes how to find further review pages.
type Pagination struct {
	// Next lists selectors for "next page" links.
	Next []string `yaml:"next"`

	// NextText, when set, must appear (case-insensitively) in a next link's text.
	NextText string `yaml:"next_text"`

	// PageParam is the query parameter carrying the page number, enabling
	// numbered pagination when the total is known.
	PageParam string `yaml:"page_param"`

	// TotalPagesPattern matches the page text and captures the total page count.
	TotalPagesPattern string `yaml:"total_pages_pattern"`

	totalRe *regexp.Regexp
}

// TotalPages extracts the total page count from text using
// TotalPagesPattern. It returns 0 when unknown.
func (p *Pagination) TotalPages(text string) int {
	if p.totalRe == nil {
		return 0
	}
	m := p.totalRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// Profile is the immutable extraction configuration for one site kind.
// Profiles are shared between requests and must not be modified.
type Profile struct {
	Kind    Kind   `yaml:"kind"`
	Version string `yaml:"version"`

	Selectors  Selectors  `yaml:"selectors"`
	Pagination Pagination `yaml:"pagination"`

	// RatingScale is the maximum rating value on this site.
	RatingScale float64 `yaml:"rating_scale"`

	// RenderJS asks the fetcher to start with the browser engine.
	RenderJS bool `yaml:"render_js"`

	// WaitSelector is the element the browser waits for before snapshotting.
	WaitSelector string `yaml:"wait_selector"`

	// Expand lists "read more" controls the browser clicks before snapshotting.
	Expand []string `yaml:"expand"`
}

// HasSelectors reports whether the profile carries a usable selector set.
func (p *Profile) HasSelectors() bool {
	return len(p.Selectors.Container) > 0
}

// Registry resolves kinds to profiles.
type Registry struct {
	profiles map[Kind]*Profile
}

// NewRegistry loads the embedded profiles and applies overrides from dir,
// where <kind>.yaml (lower case) replaces the embedded file. An empty dir
// means no overrides.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{profiles: make(map[Kind]*Profile, len(Kinds))}
	for _, k := range Kinds {
		name := strings.ToLower(string(k)) + ".yaml"

		data, err := readOverride(dir, name)
		if err != nil {
			return nil, err
		}
		if data == nil {
			data, err = embedded.ReadFile("selectors/" + name)
			if err != nil {
				return nil, fmt.Errorf("profile: read embedded %s: %w", name, err)
			}
		}

		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("profile: %s: %w", name, err)
		}
		if p.Kind != k {
			return nil, fmt.Errorf("profile: %s declares kind %q, want %q", name, p.Kind, k)
		}
		r.profiles[k] = p
	}
	return r, nil
}

func readOverride(dir, name string) ([]byte, error) {
	if dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read override %s: %w", name, err)
	}
	return data, nil
}

// Get returns the profile for kind, falling back to the generic profile.
func (r *Registry) Get(kind Kind) *Profile {
	if p, ok := r.profiles[kind]; ok {
		return p
	}
	return r.profiles[Generic]
}

// Parse decodes and validates a single profile document. Every selector
// must compile and the rating scale must be positive.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if p.RatingScale == 0 {
		p.RatingScale = 5
	}
	if p.RatingScale < 0 {
		return nil, fmt.Errorf("rating_scale must be positive, got %v", p.RatingScale)
	}

	groups := map[string][]string{
		"container": p.Selectors.Container,
		"title":     p.Selectors.Title,
		"body":      p.Selectors.Body,
		"rating":    p.Selectors.Rating,
		"reviewer":  p.Selectors.Reviewer,
		"next":      p.Pagination.Next,
		"expand":    p.Expand,
	}
	if p.WaitSelector != "" {
		groups["wait_selector"] = []string{p.WaitSelector}
	}
	for field, sels := range groups {
		for _, sel := range sels {
			if _, err := cascadia.ParseGroup(sel); err != nil {
				return nil, fmt.Errorf("invalid %s selector %q: %w", field, sel, err)
			}
		}
	}

	if p.Pagination.TotalPagesPattern != "" {
		re, err := regexp.Compile(p.Pagination.TotalPagesPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid total_pages_pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("total_pages_pattern needs a capture group")
		}
		p.Pagination.totalRe = re
	}
	return &p, nil
}

package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistry_Embedded(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	amazon := r.Get(Amazon)
	if amazon.Kind != Amazon || !amazon.HasSelectors() {
		t.Fatalf("amazon profile = %+v", amazon)
	}
	if amazon.Pagination.PageParam != "pageNumber" {
		t.Errorf("amazon page param = %q", amazon.Pagination.PageParam)
	}
	if amazon.RatingScale != 5 {
		t.Errorf("amazon rating scale = %v", amazon.RatingScale)
	}

	flipkart := r.Get(Flipkart)
	if !flipkart.RenderJS || flipkart.Pagination.NextText != "next" {
		t.Errorf("flipkart profile = %+v", flipkart)
	}

	generic := r.Get(Generic)
	if generic.HasSelectors() {
		t.Error("generic profile should not carry a selector set")
	}
	if got := r.Get(Kind("EBAY")); got != generic {
		t.Error("unknown kind should fall back to generic")
	}
}

func TestNewRegistry_Override(t *testing.T) {
	dir := t.TempDir()
	override := `kind: AMAZON
version: "test"
selectors:
  container: ['div.review']
  title: ['h3']
`
	if err := os.WriteFile(filepath.Join(dir, "amazon.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if v := r.Get(Amazon).Version; v != "test" {
		t.Errorf("amazon version = %q, want override", v)
	}
	if v := r.Get(Flipkart).Version; v == "test" {
		t.Error("flipkart should still come from the embedded set")
	}
}

func TestNewRegistry_WrongKind(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "flipkart.yaml"), []byte("kind: AMAZON\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(dir); err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad selector", "kind: GENERIC\nselectors:\n  container: ['div[']\n", "container"},
		{"negative scale", "kind: GENERIC\nrating_scale: -5\n", "rating_scale"},
		{"pattern without group", "kind: GENERIC\npagination:\n  total_pages_pattern: 'Page \\d+'\n", "capture group"},
		{"not yaml", "kind: [", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestPagination_TotalPages(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	p := r.Get(Flipkart).Pagination

	if got := p.TotalPages("Showing reviews Page 1 of 1,204 next"); got != 1204 {
		t.Errorf("TotalPages = %d, want 1204", got)
	}
	if got := p.TotalPages("no pager here"); got != 0 {
		t.Errorf("TotalPages = %d, want 0", got)
	}
	if got := r.Get(Amazon).Pagination.TotalPages("Page 1 of 9"); got != 0 {
		t.Errorf("amazon has no pattern, got %d", got)
	}
}

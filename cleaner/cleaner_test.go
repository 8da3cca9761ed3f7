package cleaner

import (
	"strings"
	"testing"
)

func TestBlockText(t *testing.T) {
	c := New()
	block := `<div class="card"><h4>Solid blender</h4><script>track()</script>` +
		`<span class="stars">4 out of 5</span><p>Crushes ice <b>easily</b>.</p>` +
		`<button>Helpful</button><span class="author">Priya</span></div>`

	got := c.BlockText(block, 0)
	for _, want := range []string{"Solid blender", "4 out of 5", "Crushes ice **easily**.", "Priya"} {
		if !strings.Contains(got, want) {
			t.Errorf("BlockText missing %q in:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"track()", "Helpful"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("BlockText kept noise %q in:\n%s", unwanted, got)
		}
	}
}

func TestBlockText_Truncates(t *testing.T) {
	c := New()
	long := "<p>" + strings.Repeat("word ", 500) + "</p>"
	got := c.BlockText(long, 10)
	if EstimateTokens(got) > 10 {
		t.Errorf("EstimateTokens = %d, want <= 10", EstimateTokens(got))
	}
}

func TestTruncateTokens(t *testing.T) {
	if got := TruncateTokens("short", 10); got != "short" {
		t.Errorf("TruncateTokens = %q", got)
	}
	// Multi-byte runes are never split.
	got := TruncateTokens(strings.Repeat("★", 30), 2)
	if got != strings.Repeat("★", 6) {
		t.Errorf("TruncateTokens = %q", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcdef", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStripElements_NoMatchUnchanged(t *testing.T) {
	in := `<p>keep me</p>`
	if got := StripElements(in, []string{"script"}); got != in {
		t.Errorf("StripElements = %q, want input unchanged", got)
	}
}

func TestPageMetadata(t *testing.T) {
	page := `<html><head><title>Acme Blender 3000 : Amazon.in</title>` +
		`<meta property="og:site_name" content="Amazon.in"></head><body>` +
		`<article><h1>Acme Blender 3000</h1><p>` + strings.Repeat("A strong blender for daily use. ", 20) + `</p></article>` +
		`</body></html>`

	info := PageMetadata(page, "https://www.amazon.in/dp/B08L5WHFT9")
	if !strings.Contains(info.Title, "Acme Blender 3000") {
		t.Errorf("Title = %q", info.Title)
	}
	if info.SiteName != "Amazon.in" {
		t.Errorf("SiteName = %q", info.SiteName)
	}

	if got := PageMetadata(page, "://bad"); got.Title != "" {
		t.Errorf("invalid URL should yield empty metadata, got %+v", got)
	}
}

package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestIsTrackerHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"WWW.Google-Analytics.com", true},
		{"aax-eu.amazon-adsystem.com", true},
		{"www.amazon.in", false},
		{"m.media-amazon.com", false},
		{"notdoubleclick.net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerHost(tt.host); got != tt.want {
			t.Errorf("isTrackerHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestBlockSet(t *testing.T) {
	s := newBlockSet([]string{"Image", "Font", "Script", "Bogus"})
	if len(s) != 2 {
		t.Fatalf("len(blockSet) = %d, want 2 (Script and unknown names ignored)", len(s))
	}

	tests := []struct {
		rt   proto.NetworkResourceType
		url  string
		want bool
	}{
		{proto.NetworkResourceTypeImage, "https://m.media-amazon.com/a.jpg", true},
		{proto.NetworkResourceTypeFont, "https://fonts.example/x.woff2", true},
		{proto.NetworkResourceTypeScript, "https://www.flipkart.com/app.js", false},
		{proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js", true},
		{proto.NetworkResourceTypeDocument, "https://www.flipkart.com/p", false},
	}
	for _, tt := range tests {
		if got := s.blocks(tt.rt, tt.url); got != tt.want {
			t.Errorf("blocks(%s, %q) = %v, want %v", tt.rt, tt.url, got, tt.want)
		}
	}
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"Accept-Language": "en-US"})
	if got := m["Accept-Language"].Str(); got != "en-US" {
		t.Errorf("header = %q, want en-US", got)
	}
}

func TestCheckRedirects(t *testing.T) {
	tests := []struct {
		hops, limit int
		wantErr     bool
	}{
		{0, 5, false},
		{5, 5, false},
		{6, 5, true},
		{9, 0, false},
	}
	for _, tt := range tests {
		err := checkRedirects("https://shop.test/p", tt.hops, tt.limit)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkRedirects(hops=%d, limit=%d) error = %v, wantErr %v", tt.hops, tt.limit, err, tt.wantErr)
		}
	}
}

package classifier

import (
	"testing"

	"github.com/use-agent/reviewlens/models"
	"github.com/use-agent/reviewlens/profile"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		url  string
		want profile.Kind
	}{
		{"https://www.amazon.in/dp/B08L5WHFT9", profile.Amazon},
		{"https://www.amazon.com/Some-Product/dp/B0000/ref=sr_1_1", profile.Amazon},
		{"https://www.amazon.co.uk/product-reviews/B0000?pageNumber=2", profile.Amazon},
		{"https://WWW.AMAZON.DE/DP/B0000", profile.Amazon},
		{"https://www.amazon.in/gp/bestsellers", profile.Generic},
		{"https://notamazon.com/dp/B0000", profile.Generic},
		{"https://www.flipkart.com/phone/product-reviews/itm123?pid=X", profile.Flipkart},
		{"https://www.flipkart.com/phone/p/itm123", profile.Generic},
		{"https://shop.example.com/reviews", profile.Generic},
		{"not a url", profile.Generic},
		{"", profile.Generic},
		{"::::", profile.Generic},
	}
	for _, tt := range tests {
		if got := KindOf(tt.url); got != tt.want {
			t.Errorf("KindOf(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestClassify_UsesFinalURL(t *testing.T) {
	reg, err := profile.NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	c := New(reg)

	doc := &models.Document{
		RequestedURL: "https://amzn.to/3xYz",
		URL:          "https://www.amazon.in/dp/B08L5WHFT9",
	}
	if got := c.Classify("https://amzn.to/3xYz", doc).Kind; got != profile.Amazon {
		t.Errorf("Classify = %s, want AMAZON", got)
	}
	if got := c.Classify("https://amzn.to/3xYz", nil).Kind; got != profile.Generic {
		t.Errorf("Classify without doc = %s, want GENERIC", got)
	}
}

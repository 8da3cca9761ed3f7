package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripElements removes every element matching one of selectors from
// markup. The input is returned unchanged when nothing needs removing or it
// cannot be parsed.
func StripElements(markup string, selectors []string) string {
	if len(selectors) == 0 {
		return markup
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	removed := 0
	for _, sel := range selectors {
		found := doc.Find(sel)
		removed += found.Length()
		found.Remove()
	}
	if removed == 0 {
		return markup
	}

	// Fragments come back wrapped in html/body by the parser; keep only the body.
	out, err := doc.Find("body").Html()
	if err != nil {
		return markup
	}
	return out
}

// PlainText returns the whitespace-collapsed text content of markup.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(markup), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

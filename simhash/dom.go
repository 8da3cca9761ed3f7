package simhash

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// FingerprintNode fingerprints the element structure below n. Each distinct
// "depth/tag" pair counts once, so text, attributes and the number of
// repeated children (images, paragraphs) do not move the hash: two review
// cards built from the same template hash alike.
func FingerprintNode(n *html.Node) uint64 {
	return FingerprintTokens(structureTokens(n))
}

// FingerprintHTML parses htmlStr and fingerprints its structure.
func FingerprintHTML(htmlStr string) uint64 {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return 0
	}
	return FingerprintNode(doc)
}

// structureTokens lists the distinct "depth/tag" pairs of n's subtree in
// first-seen document order. Depth is relative to n.
func structureTokens(n *html.Node) []string {
	var tokens []string
	seen := make(map[string]struct{})
	var walk func(*html.Node, int)
	walk = func(node *html.Node, depth int) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
			tok := strconv.Itoa(depth) + "/" + node.Data
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				tokens = append(tokens, tok)
			}
			depth++
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth)
		}
	}
	walk(n, 0)
	return tokens
}

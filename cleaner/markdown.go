// Package cleaner turns review markup into the compact forms other
// components need: markdown text of a single review block for the semantic
// classifier, and page metadata for the response.
package cleaner

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// DefaultBlockTokens bounds the text of one block sent to the classifier.
const DefaultBlockTokens = 600

// blockNoise lists elements that never carry review text.
var blockNoise = []string{"script", "style", "svg", "button", "form", "img", "video", "iframe"}

// Cleaner converts review blocks to markdown. It is safe for concurrent use.
type Cleaner struct {
	md *converter.Converter
}

// New creates a Cleaner with a shared markdown converter.
func New() *Cleaner {
	return &Cleaner{md: newMarkdownConverter()}
}

// newMarkdownConverter builds the converter: base drops non-content tags,
// commonmark renders the rest, table keeps product detail tables readable with
// minimal padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// BlockText renders one review block as markdown, trimmed to at most
// maxTokens estimated tokens (DefaultBlockTokens when <= 0). Conversion
// failures fall back to the block's plain text.
func (c *Cleaner) BlockText(blockHTML string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultBlockTokens
	}

	stripped := StripElements(blockHTML, blockNoise)
	md, err := c.md.ConvertString(stripped)
	if err != nil {
		slog.Debug("markdown conversion failed, using plain text", "error", err)
		md = PlainText(stripped)
	}
	md = strings.TrimSpace(md)
	return TruncateTokens(md, maxTokens)
}

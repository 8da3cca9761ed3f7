package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/reviewlens/models"
)

// PageMetadata extracts best-effort product metadata (page title, site
// name) with go-readability. It never fails; missing data yields empty
// fields.
func PageMetadata(rawHTML, sourceURL string) models.ProductInfo {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL", "url", sourceURL, "error", err)
		return models.ProductInfo{}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: metadata extraction failed", "url", sourceURL, "error", err)
		return models.ProductInfo{}
	}

	info := models.ProductInfo{
		Title:    strings.Join(strings.Fields(article.Title), " "),
		SiteName: strings.TrimSpace(article.SiteName),
	}
	if info.SiteName == "" {
		info.SiteName = parsedURL.Hostname()
	}
	return info
}

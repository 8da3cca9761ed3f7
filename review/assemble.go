package review

import "github.com/use-agent/reviewlens/models"

// Assemble packages a finished run. It has no side effects; reviews is
// copied into a non-nil slice so callers never see a missing list.
func Assemble(sourceURL string, reviews []models.Review, pageCount int, err *models.ScrapeError) *models.ScrapeResult {
	out := make([]models.Review, len(reviews))
	copy(out, reviews)
	return &models.ScrapeResult{
		Reviews:   out,
		SourceURL: sourceURL,
		PageCount: pageCount,
		Error:     err,
	}
}

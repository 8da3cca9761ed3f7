package cleaner

import "unicode/utf8"

// EstimateTokens gives a rough token count: rune count / 3. It slightly
// over-estimates for English and under-estimates for CJK text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 0 {
		return est
	}
	return 1
}

// TruncateTokens cuts text so EstimateTokens(result) <= maxTokens, on a
// rune boundary.
func TruncateTokens(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}
	maxRunes := maxTokens * 3
	i := 0
	for pos := range text {
		if i == maxRunes {
			return text[:pos]
		}
		i++
	}
	return text
}

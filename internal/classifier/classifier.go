// Package classifier assigns an urgency tier to analysis log text by keyword spotting.
package classifier

import (
	"strings"

	"SiteAuditor/internal/domain"
)

var (
	highKeywords   = []string{"slow", "performance", "error", "seo"}
	mediumKeywords = []string{"improve", "warning", "optimize"}
)

// Classify joins the lines, lower-cases them and returns the first tier with a matching keyword.
func Classify(logs []string) domain.Priority {
	text := strings.ToLower(strings.Join(logs, " "))

	switch {
	case containsAny(text, highKeywords):
		return domain.PriorityHigh
	case containsAny(text, mediumKeywords):
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

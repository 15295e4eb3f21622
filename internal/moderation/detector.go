// Package moderation flags posts that need a human review.
package moderation

import (
	"strings"

	"artenis/internal/models"
)

// DefaultKeywords is the denylist used when no custom list is configured.
var DefaultKeywords = []string{"sangre", "violencia", "político", "religioso"}

// Detector matches post text against a keyword denylist.
type Detector struct {
	keywords []string
}

// NewDetector builds a detector. An empty list falls back to DefaultKeywords.
func NewDetector(keywords []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Detector{keywords: lowered}
}

// NeedsReview reports whether a post is already reported or its text
// contains a denylisted keyword.
func (d *Detector) NeedsReview(title, description string, status models.PostStatus) bool {
	if status == models.PostStatusReported {
		return true
	}
	return d.Match(title+" "+description) != ""
}

// Match returns the first denylisted keyword found in text, or "".
func (d *Detector) Match(text string) string {
	lowered := strings.ToLower(text)
	for _, k := range d.keywords {
		if strings.Contains(lowered, k) {
			return k
		}
	}
	return ""
}

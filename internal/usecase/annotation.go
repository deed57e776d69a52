package usecase

import (
	"regexp"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// Markers delimiting the usage declaration block in a pull request description.
// Matching is case-insensitive and tolerates extra spaces inside the comment.
const (
	AnnotationStart = "<!-- ai-usage:start -->"
	AnnotationEnd   = "<!-- ai-usage:end -->"
)

// blockPattern captures the payload between the first start marker and the
// first end marker after it.
var blockPattern = regexp.MustCompile(`(?is)<!--\s*ai-usage:start\s*-->(.*?)<!--\s*ai-usage:end\s*-->`)

// checkboxPattern builds the pattern for one checked checklist line,
// e.g. "- [x] Code", "1. [X] AI_CODE", "[x] **code**". The list marker is optional.
func checkboxPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:(?:[-*+]|\d+[.)])[ \t]*)?\[x\][ \t]*\*{0,2}(?:ai[ _-]?)?` + keyword + `\b`)
}

// There is no review pattern: review is only set from an actual assistant review.
var (
	codePattern  = checkboxPattern(`code`)
	testPattern  = checkboxPattern(`tests?`)
	docsPattern  = checkboxPattern(`doc(?:s|umentation)?`)
	otherPattern = checkboxPattern(`other`)
)

// ParseUsage extracts the declared usage categories from a pull request body.
// Each category is either declared (1) or not (0). A body without a complete
// start/end block yields zero counts.
func ParseUsage(body string) domain.UsageCounts {
	block, ok := annotationBlock(body)
	if !ok {
		return domain.UsageCounts{}
	}

	var usage domain.UsageCounts
	if codePattern.MatchString(block) {
		usage.Code = 1
	}
	if testPattern.MatchString(block) {
		usage.Test = 1
	}
	if docsPattern.MatchString(block) {
		usage.Docs = 1
	}
	if otherPattern.MatchString(block) {
		usage.Other = 1
	}
	return usage
}

// annotationBlock returns the text between the first start marker and the
// first end marker following it.
func annotationBlock(body string) (string, bool) {
	m := blockPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

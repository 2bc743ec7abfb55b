// Package matcher picks the original article for a post.
package matcher

import (
	"strings"

	"newsmatch/internal/similarity"
	"newsmatch/pkg/types"
)

// LinkFormat renders the winning article URL for the output sheet.
type LinkFormat func(url string) string

// Hyperlink renders a spreadsheet HYPERLINK formula. Quotes in the URL are
// doubled as formula string literals require.
func Hyperlink(url string) string {
	return `=HYPERLINK("` + strings.ReplaceAll(url, `"`, `""`) + `")`
}

// RawLink leaves the URL untouched.
func RawLink(url string) string {
	return url
}

// SelectBest scores every candidate against postText and returns the best
// one. Ties keep the earliest candidate. No candidates, or a best score of
// zero, yield the no-match result.
func SelectBest(cands []types.CandidateArticle, postText string, scorer similarity.Scorer, link LinkFormat) types.MatchResult {
	if link == nil {
		link = RawLink
	}
	best := -1
	bestScore := 0.0
	for i, c := range cands {
		score := scorer.CopyRatio(c.Body, postText)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return types.MatchResult{}
	}
	return types.MatchResult{OriginalLink: link(cands[best].URL), CopyRatio: bestScore}
}

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"newsmatch/internal/similarity"
	"newsmatch/pkg/types"
)

func TestSelectBestEmpty(t *testing.T) {
	res := SelectBest(nil, "아무 내용", similarity.Scorer{}, Hyperlink)

	assert.Equal(t, types.MatchResult{}, res)
	assert.False(t, res.Matched())
}

func TestSelectBestZeroScoreIsNoMatch(t *testing.T) {
	cands := []types.CandidateArticle{{URL: "https://n.news.naver.com/article/001/1", Body: "alpha beta gamma"}}

	res := SelectBest(cands, "delta epsilon", similarity.Scorer{}, Hyperlink)

	assert.Empty(t, res.OriginalLink)
	assert.Zero(t, res.CopyRatio)
}

func TestSelectBestPicksHighestAndKeepsFirstOnTie(t *testing.T) {
	post := "the central bank raised interest rates again today"
	cands := []types.CandidateArticle{
		{URL: "https://a.example/1", Body: "sports results from the weekend league"},
		{URL: "https://a.example/2", Body: post},
		{URL: "https://a.example/3", Body: post},
	}

	res := SelectBest(cands, post, similarity.Scorer{}, RawLink)

	assert.Equal(t, "https://a.example/2", res.OriginalLink)
	assert.InDelta(t, 1.0, res.CopyRatio, 0.001)
}

func TestLinkFormats(t *testing.T) {
	assert.Equal(t, `=HYPERLINK("https://x.example/a")`, Hyperlink("https://x.example/a"))
	assert.Equal(t, `=HYPERLINK("https://x.example/a?q=""b""")`, Hyperlink(`https://x.example/a?q="b"`))
	assert.Equal(t, "https://x.example/a", RawLink("https://x.example/a"))
}

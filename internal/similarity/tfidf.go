// Package similarity scores how much of a news article is reproduced in a post.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"newsmatch/internal/query"
	"newsmatch/internal/textnorm"
)

// Scorer computes copy ratios. The zero value scores the stripped article as
// the segment source.
type Scorer struct {
	// SplitSentences segments the raw article at sentence-final punctuation
	// before stripping, so every sentence is compared with the post on its own.
	SplitSentences bool
}

// CopyRatio is Scorer{}.CopyRatio.
func CopyRatio(article, post string) float64 {
	return Scorer{}.CopyRatio(article, post)
}

// CopyRatio returns the mean TF-IDF cosine similarity between the article's
// segments and the post, rounded to three decimals and bounded to [0, 1].
func (s Scorer) CopyRatio(article, post string) float64 {
	post = textnorm.StripForScoring(post)
	if post == "" || textnorm.StripForScoring(article) == "" {
		return 0
	}

	var segments []string
	if s.SplitSentences {
		for _, sentence := range query.SplitSentences(article) {
			if seg := textnorm.StripForScoring(sentence); seg != "" {
				segments = append(segments, seg)
			}
		}
	} else {
		segments = query.SplitSentences(textnorm.StripForScoring(article))
	}

	postTokens := tokenize(post)
	var sum float64
	var n int
	for _, seg := range segments {
		score, ok := cosine(tokenize(seg), postTokens)
		if !ok {
			continue
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0
	}
	return clamp(math.Round(sum/float64(n)*1000) / 1000)
}

// tokenize lowercases text and keeps maximal runs of word runes that are at
// least two runes long.
func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) >= 2 {
			tokens = append(tokens, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range strings.ToLower(text) {
		if isWordRune(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// cosine fits a smoothed TF-IDF space over the two documents and returns the
// cosine similarity of their l2-normalised vectors. ok is false when the
// two documents share an empty vocabulary.
func cosine(a, b []string) (float64, bool) {
	tfA := termCounts(a)
	tfB := termCounts(b)
	if len(tfA) == 0 && len(tfB) == 0 {
		return 0, false
	}

	const docs = 2.0
	idf := func(term string) float64 {
		df := 0.0
		if _, ok := tfA[term]; ok {
			df++
		}
		if _, ok := tfB[term]; ok {
			df++
		}
		return math.Log((1+docs)/(1+df)) + 1
	}

	var dot, normA, normB float64
	for term, count := range tfA {
		w := count * idf(term)
		normA += w * w
		if other, ok := tfB[term]; ok {
			dot += w * other * idf(term)
		}
	}
	for term, count := range tfB {
		w := count * idf(term)
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func termCounts(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

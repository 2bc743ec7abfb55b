// Package query derives news-search strings from a forum post.
package query

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"newsmatch/internal/textnorm"
)

// DefaultMaxLength caps every generated query, in runes.
const DefaultMaxLength = 100

// DefaultKeywordCount is how many title keywords are combined with the source label.
const DefaultKeywordCount = 5

// Options tunes query generation.
type Options struct {
	MaxLength    int
	KeywordCount int
	// IncludeTrailingSentences adds the second and last sentences of the body
	// as extra queries.
	IncludeTrailingSentences bool
}

// Input carries the post fields queries are built from.
type Input struct {
	Title  string
	First  string
	Second string
	Last   string
	Source string
}

// Generate returns the deduplicated, sorted set of non-empty queries for a post.
func Generate(in Input, opts Options) []string {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.KeywordCount <= 0 {
		opts.KeywordCount = DefaultKeywordCount
	}
	clip := func(s string) string {
		return strings.TrimSpace(textnorm.Truncate(textnorm.Normalize(s), opts.MaxLength))
	}

	title := clip(in.Title)
	source := textnorm.Normalize(in.Source)
	keywords := textnorm.Truncate(Keywords(title, opts.KeywordCount), opts.MaxLength)

	candidates := []string{
		title,
		strings.TrimSpace(keywords + " " + source),
		clip(in.First),
	}
	if opts.IncludeTrailingSentences {
		candidates = append(candidates, clip(in.Second), clip(in.Last))
	}

	seen := make(map[string]struct{}, len(candidates))
	queries := make([]string, 0, len(candidates))
	for _, q := range candidates {
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	sort.Strings(queries)
	return queries
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// LeadSentences returns the first sentence of the first paragraph, the first
// sentence of the second paragraph and the last sentence of the last paragraph.
func LeadSentences(body string) (first, second, last string) {
	body = strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n"))
	if body == "" {
		return "", "", ""
	}
	paras := paragraphBreak.Split(body, -1)
	first = firstOf(SplitSentences(paras[0]))
	if len(paras) > 1 {
		second = firstOf(SplitSentences(paras[1]))
	}
	last = lastOf(SplitSentences(paras[len(paras)-1]))
	return first, second, last
}

// SplitSentences splits text after '.', '!' or '?' when the terminator is
// followed by whitespace or directly by a Hangul syllable.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end >= len(text) {
			break
		}
		next, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsSpace(next) || isHangulSyllable(next) {
			if s := strings.TrimSpace(text[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func lastOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

// Package textnorm cleans scraped post and article text before it is used for
// search queries and scoring.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var artefactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Video Player`),
	regexp.MustCompile(`Video 태그를 지원하지 않는 브라우저입니다\.`),
	regexp.MustCompile(`Your browser does not support the video tag\.?`),
	regexp.MustCompile(`\d{2}:\d{2}`),
	regexp.MustCompile(`[01]\.\d{2}x`),
	regexp.MustCompile(`출처:\s?[^\n]+`),
	regexp.MustCompile(`/\s?\d+\.?\d*`),
}

var (
	escapeReplacer = strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`)
	laughRun       = regexp.MustCompile(`[ㅋㅎㅠㅜ]+`)
	punctRun       = regexp.MustCompile(`[!?~.,\-#]{2,}`)
	htmlEntity     = regexp.MustCompile(`&[a-z]+;|&#\d+;`)
	exoticSpace    = strings.NewReplacer(
		"_x000D_", " ",
		`\`, " ",
		"\u00a0", " ",
		"\u200b", " ",
		"\u200c", " ",
		"\u200d", " ",
		"\u3000", " ",
		"\ufeff", " ",
	)
)

// Normalize strips markup artefacts, player boilerplate, punctuation runs,
// entities and exotic whitespace from s. It is idempotent.
func Normalize(s string) string {
	if isPlaceholder(s) {
		return ""
	}
	// Every pass that changes s deletes text or recomposes it, so this ends.
	for {
		next := pass(s)
		if next == s {
			return s
		}
		s = next
	}
}

// NormalizeValue coerces an arbitrary cell value to text and normalizes it.
func NormalizeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Normalize(t)
	case fmt.Stringer:
		return Normalize(t.String())
	default:
		return Normalize(fmt.Sprint(t))
	}
}

func pass(s string) string {
	if isPlaceholder(s) {
		return ""
	}
	for _, re := range artefactPatterns {
		s = re.ReplaceAllString(s, "")
	}
	s = escapeReplacer.Replace(s)
	s = laughRun.ReplaceAllString(s, "")
	s = punctRun.ReplaceAllString(s, "")
	s = htmlEntity.ReplaceAllString(s, "")
	s = exoticSpace.Replace(s)
	// Deletions can leave a base rune next to a combining mark or jamo.
	s = width.Fold.String(norm.NFC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return collapseSpaces(s)
}

func isPlaceholder(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "nan")
}

// StripForScoring is the stricter pass used only by the similarity scorer:
// everything except letters, digits, marks, underscores and whitespace is
// removed and whitespace is collapsed.
func StripForScoring(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RuneLen counts runes, which is how body-length thresholds are measured.
func RuneLen(s string) int {
	return len([]rune(s))
}

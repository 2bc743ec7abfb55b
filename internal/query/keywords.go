package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Particles are stripped from the end of Hangul tokens, longest first.
var particles = []string{
	"에서는", "으로는", "에게서", "이라는", "에서도",
	"까지", "부터", "에서", "에게", "으로", "보다", "처럼", "이라", "라는", "이나", "과의", "와의", "에는", "에도", "마저", "조차",
	"은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도", "만", "랑",
}

// Tokens ending like this are predicates rather than nouns.
var predicateEndings = []string{
	"습니다", "합니다", "됩니다", "입니다",
	"했다", "한다", "하다", "된다", "됐다", "이다", "있다", "없다", "였다", "겠다",
	"하는", "했던", "하고", "해서", "하며", "되는", "하던", "되던",
}

var stopwords = map[string]struct{}{
	"그리고": {}, "하지만": {}, "그러나": {}, "그래서": {}, "이번": {}, "지난": {}, "오늘": {}, "어제": {},
	"관련": {}, "대한": {}, "위해": {}, "통해": {}, "때문": {}, "이후": {}, "정도": {}, "우리": {},
}

// Keywords returns the first n distinct content tokens of text joined by a
// single space. Particles are trimmed from Hangul tokens; predicates,
// stopwords, numbers and single-rune tokens are skipped.
func Keywords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, tok := range fields {
		tok = contentToken(tok)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, " ")
}

func contentToken(tok string) string {
	if isNumeric(tok) {
		return ""
	}
	if hasHangul(tok) {
		for _, end := range predicateEndings {
			if strings.HasSuffix(tok, end) {
				return ""
			}
		}
		tok = trimParticle(tok)
	} else {
		tok = strings.ToLower(tok)
	}
	if utf8.RuneCountInString(tok) < 2 {
		return ""
	}
	if _, stop := stopwords[tok]; stop {
		return ""
	}
	return tok
}

func trimParticle(tok string) string {
	for _, p := range particles {
		if !strings.HasSuffix(tok, p) {
			continue
		}
		stem := strings.TrimSuffix(tok, p)
		if utf8.RuneCountInString(stem) >= 2 {
			return stem
		}
	}
	return tok
}

func hasHangul(s string) bool {
	for _, r := range s {
		if isHangulSyllable(r) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

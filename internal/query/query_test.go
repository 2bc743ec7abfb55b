package query

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	assert.Equal(t, "정부 부동산 정책 발표", Keywords("정부, 새 부동산 정책 발표", 5))
	assert.Equal(t, "서울시 정책", Keywords("서울시는 오늘 새 정책을 발표했다", 5))
	assert.Equal(t, "삼성전자 반도체", Keywords("삼성전자 반도체 2024", 5))
	assert.Equal(t, "apple iphone", Keywords("Apple iPhone 16", 5))
	assert.Equal(t, "가나 다라", Keywords("가나 다라 마바 사아", 2))
	assert.Equal(t, "", Keywords("", 5))
	assert.Equal(t, "", Keywords("정부", 0))
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("첫 문장입니다. 두번째 문장!세번째는 붙어있다.끝")
	assert.Equal(t, []string{"첫 문장입니다.", "두번째 문장!", "세번째는 붙어있다.", "끝"}, got)
	assert.Equal(t, []string{"3.14는 원주율"}, SplitSentences("3.14는 원주율"))
	assert.Nil(t, SplitSentences("   "))
}

func TestLeadSentences(t *testing.T) {
	body := "첫 문단 첫 문장. 첫 문단 둘째 문장.\n\n둘째 문단 첫 문장. 둘째 문단 끝.\n\n마지막 문단 하나. 마지막 문장."
	first, second, last := LeadSentences(body)
	assert.Equal(t, "첫 문단 첫 문장.", first)
	assert.Equal(t, "둘째 문단 첫 문장.", second)
	assert.Equal(t, "마지막 문장.", last)

	first, second, last = LeadSentences("한 문단뿐. 두 문장.")
	assert.Equal(t, "한 문단뿐.", first)
	assert.Equal(t, "", second)
	assert.Equal(t, "두 문장.", last)

	first, second, last = LeadSentences("")
	assert.Empty(t, first+second+last)
}

func TestGenerate(t *testing.T) {
	queries := Generate(Input{
		Title:  "정부, 새 부동산 정책 발표",
		First:  "정부는 오늘 새로운 부동산 대책을 내놓았다.",
		Second: "둘째 문단.",
		Last:   "마지막 문장.",
		Source: "연합뉴스",
	}, Options{})

	require.Len(t, queries, 3)
	assert.Contains(t, queries, "정부, 새 부동산 정책 발표")
	assert.Contains(t, queries, "정부 부동산 정책 발표 연합뉴스")
	assert.Contains(t, queries, "정부는 오늘 새로운 부동산 대책을 내놓았다.")
	assert.IsIncreasing(t, queries)
}

func TestGenerateTrailingSentences(t *testing.T) {
	queries := Generate(Input{Title: "제목", First: "첫 문장.", Second: "둘째.", Last: "끝."}, Options{IncludeTrailingSentences: true})
	assert.ElementsMatch(t, []string{"제목", "첫 문장.", "둘째.", "끝."}, queries)
}

func TestGenerateDropsEmptyAndDuplicates(t *testing.T) {
	queries := Generate(Input{Title: "nan", First: "", Source: ""}, Options{})
	assert.Empty(t, queries)

	queries = Generate(Input{Title: "같은 문장", First: "같은 문장"}, Options{})
	assert.Equal(t, []string{"같은 문장"}, queries)
}

func TestGenerateTruncates(t *testing.T) {
	long := strings.Repeat("가", 250)
	queries := Generate(Input{Title: long}, Options{MaxLength: 100})
	for _, q := range queries {
		assert.LessOrEqual(t, utf8.RuneCountInString(q), 100)
	}
}

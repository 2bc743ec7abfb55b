package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestSelectionTextSeparatesBlocks(t *testing.T) {
	doc := mustDoc(t, `<div id="body"><p>첫 문단입니다.</p><script>var x = 1;</script><p>둘째<br>줄</p><span>꼬리</span></div>`)

	got := SelectionText(doc.Find("#body"))

	assert.Equal(t, "첫 문단입니다.\n둘째\n줄\n꼬리", got)
}

func TestRuleApplyRespectsMinChars(t *testing.T) {
	doc := mustDoc(t, `<article id="dic_area">짧은 본문</article>`)

	_, ok := Rule{Selector: "#dic_area", MinChars: 100}.Apply(doc)
	assert.False(t, ok)

	text, ok := Rule{Selector: "#dic_area", MinChars: 2}.Apply(doc)
	assert.True(t, ok)
	assert.Equal(t, "짧은 본문", text)
}

func TestChainRenderedUsesDomainRule(t *testing.T) {
	body := strings.Repeat("정부가 새로운 부동산 정책을 발표했다. ", 20)
	doc := mustDoc(t, `<html><body><article id="dic_area">`+body+`</article><p>광고</p></body></html>`)
	chain := NewChain(ChainOptions{})

	text, err := chain.Rendered(doc, "n.news.naver.com")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(body), text)

	_, err = chain.Rendered(doc, "unknown.example.com")
	assert.ErrorIs(t, err, ErrSelectorMiss)
}

func TestChainRenderedRejectsShortBody(t *testing.T) {
	doc := mustDoc(t, `<article id="dic_area">너무 짧다</article>`)

	_, err := NewChain(ChainOptions{}).Rendered(doc, "n.news.naver.com")

	assert.ErrorIs(t, err, ErrSelectorMiss)
}

func TestChainStaticFallsBackToGenericSelector(t *testing.T) {
	markup := `<html><body><div class="article_body">일반 선택자로 찾은 본문</div></body></html>`
	doc := mustDoc(t, markup)
	u, _ := url.Parse("https://news.example.com/a/1")

	text, err := NewChain(ChainOptions{}).Static(doc, []byte(markup), u)

	require.NoError(t, err)
	assert.Equal(t, "일반 선택자로 찾은 본문", text)
}

func TestChainStaticFallsBackToParagraphs(t *testing.T) {
	markup := `<html><body><div><p>이 문단은 충분히 길어서 본문으로 채택되어야 합니다.</p><p>짧음</p><p>두 번째로 긴 문단도 본문 후보로 들어가야 합니다.</p></div></body></html>`
	doc := mustDoc(t, markup)
	u, _ := url.Parse("https://news.example.com/a/2")

	text, err := NewChain(ChainOptions{GenericSelectors: []string{"#missing"}}).Static(doc, []byte(markup), u)

	require.NoError(t, err)
	assert.Equal(t, "이 문단은 충분히 길어서 본문으로 채택되어야 합니다.\n두 번째로 긴 문단도 본문 후보로 들어가야 합니다.", text)
}

func TestChainStaticMiss(t *testing.T) {
	markup := `<html><body><nav>메뉴</nav></body></html>`
	doc := mustDoc(t, markup)

	_, err := NewChain(ChainOptions{GenericSelectors: []string{"#missing"}}).Static(doc, []byte(markup), nil)

	assert.ErrorIs(t, err, ErrSelectorMiss)
}

func TestDomainRuleMatchesSubdomain(t *testing.T) {
	chain := NewChain(ChainOptions{})

	rule, ok := chain.DomainRule("www.khan.co.kr")
	require.True(t, ok)
	assert.Equal(t, "div#articleBody", rule.Selector)

	_, ok = chain.DomainRule("example.org")
	assert.False(t, ok)
}

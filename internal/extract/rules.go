// Package extract locates article body text inside a fetched HTML document.
package extract

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsmatch/internal/textnorm"
)

// ErrSelectorMiss reports that no configured or generic rule produced usable text.
var ErrSelectorMiss = errors.New("no selector matched article content")

// Rule extracts text from the first element matching Selector. Domain is a
// host substring; an empty Domain applies to every host.
type Rule struct {
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	MinChars int    `yaml:"min_chars"`
}

// Matches reports whether the rule applies to host.
func (r Rule) Matches(host string) bool {
	return r.Domain == "" || strings.Contains(strings.ToLower(host), strings.ToLower(r.Domain))
}

// Apply returns the selected text when it is at least MinChars runes long.
func (r Rule) Apply(doc *goquery.Document) (string, bool) {
	if doc == nil || strings.TrimSpace(r.Selector) == "" {
		return "", false
	}
	sel := doc.Find(r.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	text := SelectionText(sel)
	if text == "" || textnorm.RuneLen(text) < r.MinChars {
		return "", false
	}
	return text, true
}

// DefaultDomainMinChars is the acceptance length for publisher-specific rules.
const DefaultDomainMinChars = 300

// DefaultDomainRules maps known publisher hosts to their article body element.
func DefaultDomainRules() []Rule {
	table := []struct{ domain, selector string }{
		{"n.news.naver.com", "article#dic_area"},
		{"m.sports.naver.com", "div._article_content"},
		{"m.entertain.naver.com", "article#comp_news_article div._article_content"},
		{"imbc.com", "div.news_txt[itemprop='articleBody']"},
		{"ytn.co.kr", "div#CmAdContent"},
		{"mt.co.kr", "div#textBody[itemprop='articleBody']"},
		{"heraldcorp.com", "article.article-body#articleText"},
		{"hankookilbo.com", "div.col-main[itemprop='articleBody']"},
		{"edaily.co.kr", "div.news_body[itemprop='articleBody']"},
		{"fnnews.com", "div#article_content"},
		{"seoul.co.kr", "div#articleContent .viewContent"},
		{"pressian.com", "div.article_body"},
		{"kbs.co.kr", "div#cont_newstext"},
		{"hani.co.kr", "div.article-text"},
		{"nocutnews.co.kr", "div#pnlContent"},
		{"asiae.co.kr", "div.article.fb-quotable#txt_area"},
		{"mediatoday.co.kr", "article#article-view-content-div"},
		{"khan.co.kr", "div#articleBody"},
		{"sedaily.com", "div.article_view[itemprop='articleBody']"},
		{"imaeil.com", "div#articlebody[itemprop='articleBody']"},
		{"ebn.co.kr", "article#article-view-content-div"},
		{"kyeongin.com", "div#article-body"},
		{"obsnews.co.kr", "article#article-view-content-div"},
		{"incheonilbo.com", "article#article-view-content-div"},
		{"ggilbo.com", "article#article-view-content-div"},
		{"ekn.kr", "div#news_body_area_contents"},
	}
	rules := make([]Rule, 0, len(table))
	for _, e := range table {
		rules = append(rules, Rule{Domain: e.domain, Selector: e.selector, MinChars: DefaultDomainMinChars})
	}
	return rules
}

// DefaultGenericSelectors are tried in order on statically fetched pages.
func DefaultGenericSelectors() []string {
	return []string{
		"#dic_area",
		"article#article-view-content-div",
		"[itemprop='articleBody']",
		"#articleBody",
		"#article_body",
		".article_body",
		".article-body",
		".news_body",
		"article",
	}
}

// Chain is the ordered extraction strategy: publisher rules first, then
// generic selectors, readability, and finally paragraph concatenation.
type Chain struct {
	domain            []Rule
	generic           []Rule
	readability       bool
	paragraphMinChars int
}

// ChainOptions configures a Chain.
type ChainOptions struct {
	DomainRules       []Rule
	GenericSelectors  []string
	GenericMinChars   int
	Readability       bool
	ParagraphMinChars int
}

// NewChain builds a chain, falling back to the default tables when unset.
func NewChain(opts ChainOptions) *Chain {
	domain := opts.DomainRules
	if len(domain) == 0 {
		domain = DefaultDomainRules()
	}
	selectors := opts.GenericSelectors
	if len(selectors) == 0 {
		selectors = DefaultGenericSelectors()
	}
	generic := make([]Rule, 0, len(selectors))
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			generic = append(generic, Rule{Selector: s, MinChars: opts.GenericMinChars})
		}
	}
	if opts.ParagraphMinChars <= 0 {
		opts.ParagraphMinChars = 20
	}
	return &Chain{
		domain:            domain,
		generic:           generic,
		readability:       opts.Readability,
		paragraphMinChars: opts.ParagraphMinChars,
	}
}

// DomainRule returns the first publisher rule matching host.
func (c *Chain) DomainRule(host string) (Rule, bool) {
	for _, r := range c.domain {
		if r.Domain != "" && r.Matches(host) {
			return r, true
		}
	}
	return Rule{}, false
}

// Rendered extracts text from a rendered page using only the publisher rule.
func (c *Chain) Rendered(doc *goquery.Document, host string) (string, error) {
	rule, ok := c.DomainRule(host)
	if !ok {
		return "", ErrSelectorMiss
	}
	if text, ok := rule.Apply(doc); ok {
		return text, nil
	}
	return "", ErrSelectorMiss
}

// Static runs the whole chain against a plainly fetched page.
func (c *Chain) Static(doc *goquery.Document, raw []byte, pageURL *url.URL) (string, error) {
	if pageURL != nil {
		if rule, ok := c.DomainRule(pageURL.Hostname()); ok {
			if text, ok := rule.Apply(doc); ok {
				return text, nil
			}
		}
	}
	for _, rule := range c.generic {
		if text, ok := rule.Apply(doc); ok {
			return text, nil
		}
	}
	if c.readability && len(raw) > 0 && pageURL != nil {
		if article, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil {
			if text := strings.TrimSpace(article.TextContent); text != "" {
				return text, nil
			}
		}
	}
	if text := c.paragraphs(doc); text != "" {
		return text, nil
	}
	return "", ErrSelectorMiss
}

func (c *Chain) paragraphs(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if textnorm.RuneLen(text) >= c.paragraphMinChars {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

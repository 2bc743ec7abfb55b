package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blockLevelTags = map[string]struct{}{
	"p":          {},
	"div":        {},
	"section":    {},
	"article":    {},
	"header":     {},
	"footer":     {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"li":         {},
	"table":      {},
	"tr":         {},
	"figure":     {},
	"figcaption": {},
	"blockquote": {},
}

// Nodes whose text never belongs to an article body.
var skippedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"iframe":   {},
	"button":   {},
	"svg":      {},
	"template": {},
}

// SelectionText renders the text of every node in sel with a newline between
// block-level elements and trimmed, non-empty lines.
func SelectionText(sel *goquery.Selection) string {
	acc := &textAccumulator{}
	for _, node := range sel.Nodes {
		accumulateText(node, acc)
		acc.ensureNewline()
	}
	return collapseLines(acc.String())
}

type textAccumulator struct {
	builder   strings.Builder
	lastRune  rune
	hasLast   bool
	lastWasNL bool
}

func (t *textAccumulator) String() string {
	return t.builder.String()
}

func (t *textAccumulator) append(value string) {
	if value == "" {
		return
	}
	t.builder.WriteString(value)
	for _, r := range value {
		t.lastRune = r
		t.hasLast = true
		t.lastWasNL = r == '\n'
	}
}

func (t *textAccumulator) ensureNewline() {
	if !t.hasLast || t.lastWasNL {
		return
	}
	t.append("\n")
}

func (t *textAccumulator) ensureSpaceBeforeText() {
	if !t.hasLast || t.lastRune == ' ' || t.lastRune == '\n' {
		return
	}
	t.append(" ")
}

func accumulateText(node *html.Node, acc *textAccumulator) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		text := strings.Join(strings.Fields(node.Data), " ")
		if text == "" {
			return
		}
		acc.ensureSpaceBeforeText()
		acc.append(text)
	case html.ElementNode, html.DocumentNode:
		tag := strings.ToLower(node.Data)
		if _, skip := skippedTags[tag]; skip {
			return
		}
		if tag == "br" {
			acc.ensureNewline()
			return
		}
		_, block := blockLevelTags[tag]
		if block {
			acc.ensureNewline()
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateText(child, acc)
		}
		if block {
			acc.ensureNewline()
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Package batch converts tabular post exports to PostRecords and writes the
// matched results back next to the original columns.
package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsmatch/pkg/types"
)

// ErrMissingColumn is returned when an input lacks a column the engine reads.
var ErrMissingColumn = errors.New("missing required column")

type field int

const (
	fieldKeyword field = iota
	fieldPlatform
	fieldURL
	fieldTitle
	fieldBody
	fieldPublishedAt
	fieldWriter
)

var fieldAliases = map[string]struct {
	field  field
	korean bool
}{
	"keyword":      {fieldKeyword, false},
	"platform":     {fieldPlatform, false},
	"url":          {fieldURL, false},
	"title":        {fieldTitle, false},
	"body":         {fieldBody, false},
	"published_at": {fieldPublishedAt, false},
	"writer":       {fieldWriter, false},
	"검색어":          {fieldKeyword, true},
	"플랫폼":          {fieldPlatform, true},
	"게시물 url":      {fieldURL, true},
	"게시물 제목":       {fieldTitle, true},
	"게시물 내용":       {fieldBody, true},
	"게시물 등록일자":     {fieldPublishedAt, true},
	"계정명":          {fieldWriter, true},
}

// Result column headers.
const (
	LinkColumn        = "original_article_link"
	RatioColumn       = "copy_ratio"
	KoreanLinkColumn  = "원본기사"
	KoreanRatioColumn = "복사율"
)

// Table is a header row plus data rows. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Cell returns the value at row, col or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Column returns the index of the header named name, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Korean reports whether the header uses the Korean column names.
func (t *Table) Korean() bool {
	for _, h := range t.Header {
		if a, ok := fieldAliases[headerKey(h)]; ok && a.korean {
			return true
		}
	}
	return t.Column(KoreanLinkColumn) >= 0
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// Posts maps every data row to a PostRecord. Row indices are the zero-based
// position among data rows. Title and body columns are required.
func (t *Table) Posts() ([]types.PostRecord, error) {
	cols := make(map[field]int)
	for i, h := range t.Header {
		a, ok := fieldAliases[headerKey(h)]
		if !ok {
			continue
		}
		if _, dup := cols[a.field]; !dup {
			cols[a.field] = i
		}
	}
	var missing []string
	if _, ok := cols[fieldTitle]; !ok {
		missing = append(missing, "title")
	}
	if _, ok := cols[fieldBody]; !ok {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	get := func(row int, f field) string {
		col, ok := cols[f]
		if !ok {
			return ""
		}
		return strings.TrimSpace(t.Cell(row, col))
	}
	posts := make([]types.PostRecord, len(t.Rows))
	for i := range t.Rows {
		posts[i] = types.PostRecord{
			RowIndex:    i,
			Keyword:     get(i, fieldKeyword),
			Platform:    get(i, fieldPlatform),
			URL:         get(i, fieldURL),
			Title:       get(i, fieldTitle),
			Body:        get(i, fieldBody),
			PublishedAt: get(i, fieldPublishedAt),
			Writer:      get(i, fieldWriter),
		}
	}
	return posts, nil
}

// WithResults returns a copy of t with the link and ratio columns appended.
// Rows without a result get an empty link and an empty ratio.
func (t *Table) WithResults(results []types.MatchResult) *Table {
	linkName, ratioName := LinkColumn, RatioColumn
	if t.Korean() {
		linkName, ratioName = KoreanLinkColumn, KoreanRatioColumn
	}
	byRow := make(map[int]types.MatchResult, len(results))
	for _, r := range results {
		byRow[r.RowIndex] = r
	}

	width := len(t.Header)
	out := &Table{
		Header: append(append(make([]string, 0, width+2), t.Header...), linkName, ratioName),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cells := make([]string, width, width+2)
		copy(cells, row)
		link, ratio := "", ""
		if r, ok := byRow[i]; ok {
			link, ratio = r.OriginalLink, FormatRatio(r.CopyRatio)
		}
		out.Rows[i] = append(cells, link, ratio)
	}
	return out
}

// FormatRatio renders a copy ratio with three decimals.
func FormatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

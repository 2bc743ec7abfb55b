package search

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/microcosm-cc/bluemonday"
	"github.com/xuri/excelize/v2"
)

var publisherIDPattern = regexp.MustCompile(`/article/(\d{3})/\d+`)

// PublisherID extracts the three-digit publisher id from an article path.
func PublisherID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	m := publisherIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Filter decides which search hits are worth fetching.
type Filter struct {
	excluded   *ahocorasick.Matcher
	trusted    []string
	publishers map[string]map[string]struct{}
}

// NewFilter builds a filter. Publishers maps a trusted host to its allowed
// publisher ids; hosts without an entry accept any publisher.
func NewFilter(trusted, excluded []string, publishers map[string]map[string]struct{}) *Filter {
	f := &Filter{publishers: publishers}
	for _, host := range trusted {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			f.trusted = append(f.trusted, host)
		}
	}
	var patterns []string
	for _, d := range excluded {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			patterns = append(patterns, d)
		}
	}
	if len(patterns) > 0 {
		f.excluded = ahocorasick.NewStringMatcher(patterns)
	}
	return f
}

// Accept reports whether link should be fetched, and why not when rejected.
func (f *Filter) Accept(link string) (bool, string) {
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() {
		return false, "invalid url"
	}
	if f.excluded != nil && f.excluded.Contains([]byte(strings.ToLower(link))) {
		return false, "excluded domain"
	}
	host := strings.ToLower(u.Hostname())
	if !f.trustedHost(host) {
		return false, "untrusted host"
	}
	oid, ok := PublisherID(link)
	if !ok {
		return false, "no publisher id"
	}
	if allowed, ok := f.publishers[host]; ok {
		if _, ok := allowed[oid]; !ok {
			return false, "publisher not allowed"
		}
	}
	return true, ""
}

func (f *Filter) trustedHost(host string) bool {
	for _, t := range f.trusted {
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}

var titlePolicy = bluemonday.StrictPolicy()

// CleanTitle strips the provider's highlight markup and entities.
func CleanTitle(raw string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(raw)))
}

// LoadPublisherIDs reads the "oid" column of the first sheet of a workbook.
// Numeric ids are zero-padded to three digits.
func LoadPublisherIDs(r io.Reader) (map[string]struct{}, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open publisher workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("publisher workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read publisher rows: %w", err)
	}
	if len(rows) == 0 {
		return map[string]struct{}{}, nil
	}
	col := -1
	for i, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(name), "oid") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errors.New("publisher workbook has no oid column")
	}
	ids := make(map[string]struct{}, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[col])
		if raw == "" {
			continue
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			raw = fmt.Sprintf("%03d", int(n))
		}
		ids[raw] = struct{}{}
	}
	return ids, nil
}

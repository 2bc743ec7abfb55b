package search

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var trustedHosts = []string{"n.news.naver.com", "m.sports.naver.com", "m.entertain.naver.com"}

func TestPublisherID(t *testing.T) {
	oid, ok := PublisherID("https://n.news.naver.com/mnews/article/015/0004951234?sid=101")
	require.True(t, ok)
	assert.Equal(t, "015", oid)

	_, ok = PublisherID("https://n.news.naver.com/main/ranking")
	assert.False(t, ok)
}

func TestFilterAccept(t *testing.T) {
	f := NewFilter(trustedHosts, []string{"Blog.Naver.com", "youtube"}, map[string]map[string]struct{}{
		"m.sports.naver.com": {"109": {}},
	})

	cases := []struct {
		link   string
		ok     bool
		reason string
	}{
		{link: "https://n.news.naver.com/article/001/0000000001", ok: true},
		{link: "https://press.example.com/article/001/0000000001", reason: "untrusted host"},
		{link: "https://n.news.naver.com/main/home", reason: "no publisher id"},
		{link: "https://blog.naver.com/article/001/1", reason: "excluded domain"},
		{link: "https://m.sports.naver.com/article/109/0005000000", ok: true},
		{link: "https://m.sports.naver.com/article/001/0005000000", reason: "publisher not allowed"},
		{link: "/relative/article/001/1", reason: "invalid url"},
	}
	for _, tc := range cases {
		ok, reason := f.Accept(tc.link)
		assert.Equal(t, tc.ok, ok, tc.link)
		assert.Equal(t, tc.reason, reason, tc.link)
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, `"정부" 부동산 & 정책`, CleanTitle(`&quot;정부&quot; <b>부동산</b> &amp; 정책 `))
}

func TestLoadPublisherIDs(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "oid"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "연합뉴스"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", 1))
	require.NoError(t, book.SetCellValue("Sheet1", "A3", "한국경제"))
	require.NoError(t, book.SetCellValue("Sheet1", "B3", "015"))
	require.NoError(t, book.SetCellValue("Sheet1", "A4", "빈칸"))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	ids, err := LoadPublisherIDs(bytes.NewReader(buf.Bytes()))

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"001": {}, "015": {}}, ids)
}

func TestLoadPublisherIDsRequiresColumn(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "x"))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	_, err := LoadPublisherIDs(bytes.NewReader(buf.Bytes()))

	assert.Error(t, err)
}

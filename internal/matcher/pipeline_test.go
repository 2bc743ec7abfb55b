package matcher

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmatch/internal/config"
	"newsmatch/internal/search"
	"newsmatch/pkg/types"
)

type fixedProvider struct {
	items []search.Item
}

func (f fixedProvider) Search(context.Context, config.Credential, string, int) ([]search.Item, error) {
	return f.items, nil
}

const foundArticle = `정부가 새 부동산 정책을 발표했다. 이번 정책은 무주택 실수요자의 내 집 마련을 돕기 위해 대출 규제를 완화하는 내용을 담고 있다. ` +
	`국토교통부는 수도권 공공택지에서 신규 주택 공급을 확대하고 청년층과 신혼부부를 위한 특별공급 물량을 늘리기로 했다. ` +
	`전문가들은 이번 대책이 시장 안정에 기여할 것으로 내다봤다.`

func newCollector(items []search.Item) *search.Client {
	ring := search.NewCredentialRing([]config.Credential{{ClientID: "a", ClientSecret: "b"}})
	filter := search.NewFilter([]string{"n.news.naver.com"}, nil, nil)
	return search.NewClient(fixedProvider{items: items}, ring, filter, search.ClientOptions{MinBodyChars: 200})
}

func TestProcessFindsVerbatimCopy(t *testing.T) {
	link := "https://n.news.naver.com/mnews/article/001/0014000000"
	unrelated := "https://n.news.naver.com/mnews/article/002/0000000002"
	bodies := search.BodySourceFunc(func(_ context.Context, url string) string {
		if url == link {
			return foundArticle
		}
		return strings.Repeat("프로야구 개막전에서 홈팀이 역전승을 거뒀다. ", 12)
	})
	pipeline := NewPipeline(newCollector([]search.Item{{Link: unrelated}, {Link: link}}), PipelineOptions{})

	post := types.PostRecord{
		RowIndex: 7,
		Keyword:  "연합뉴스",
		Title:    "정부, 새 부동산 정책 발표",
		Body:     "퍼온 글입니다.\n\n" + foundArticle,
	}

	res := pipeline.Process(context.Background(), post, bodies)

	assert.Equal(t, 7, res.RowIndex)
	assert.Equal(t, `=HYPERLINK("`+link+`")`, res.OriginalLink)
	assert.GreaterOrEqual(t, res.CopyRatio, 0.8)
}

func TestProcessNoCandidates(t *testing.T) {
	pipeline := NewPipeline(newCollector(nil), PipelineOptions{Link: RawLink})
	post := types.PostRecord{RowIndex: 3, Title: "ㅁㄴㅇㄹ 쀍쀍", Body: "qwpoeiru zxmcnv asldkfj"}

	res := pipeline.Process(context.Background(), post, search.BodySourceFunc(func(context.Context, string) string {
		t.Fatal("no candidate should be fetched")
		return ""
	}))

	assert.Equal(t, types.NoMatch(3), res)
}

type panickingCollector struct{}

func (panickingCollector) Collect(context.Context, []string, search.BodySource) []types.CandidateArticle {
	panic("provider exploded")
}

func TestProcessRecoversFromPanic(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	pipeline := NewPipeline(panickingCollector{}, PipelineOptions{Logger: logger})

	res := pipeline.Process(context.Background(), types.PostRecord{RowIndex: 11, Title: "제목"}, nil)

	require.Equal(t, types.NoMatch(11), res)
	assert.Contains(t, logs.String(), "stage=queries_generated")
}

func TestPostText(t *testing.T) {
	got := PostText(types.PostRecord{Title: "제목ㅋㅋㅋ", Body: " 본문  내용 "})
	assert.Equal(t, "제목 본문 내용", got)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "scored", StageScored.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

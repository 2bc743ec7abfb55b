package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmatch/internal/config"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *NaverProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Default().Search
	cfg.Endpoint = srv.URL + "/v1/search/news.json"
	return NewNaverProvider(cfg, srv.Client())
}

func TestNaverProviderSendsCredentialsAndParams(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-a", r.Header.Get("X-Naver-Client-Id"))
		assert.Equal(t, "secret-a", r.Header.Get("X-Naver-Client-Secret"))
		assert.Equal(t, "부동산 정책", r.URL.Query().Get("query"))
		assert.Equal(t, "15", r.URL.Query().Get("display"))
		assert.Equal(t, "sim", r.URL.Query().Get("sort"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{{
				"title":        "<b>부동산</b> 정책",
				"originallink": "https://press.example.com/1",
				"link":         "https://n.news.naver.com/mnews/article/001/0000000001",
			}},
		})
	})

	items, err := p.Search(context.Background(), config.Credential{ClientID: "id-a", ClientSecret: "secret-a"}, "부동산 정책", 15)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://n.news.naver.com/mnews/article/001/0000000001", items[0].Link)
}

func TestNaverProviderClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		quota  bool
	}{
		{name: "too many requests", status: http.StatusTooManyRequests, body: `{}`, quota: true},
		{name: "quota code", status: http.StatusBadRequest, body: `{"errorCode":"012","errorMessage":"limit"}`, quota: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "auth failure", status: http.StatusUnauthorized, body: `{"errorCode":"024"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := p.Search(context.Background(), config.Credential{ClientID: "a", ClientSecret: "b"}, "q", 10)

			require.Error(t, err)
			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.status, perr.StatusCode)
			if tc.quota {
				assert.ErrorIs(t, err, ErrProviderQuota)
				assert.NotErrorIs(t, err, ErrProviderHTTP)
			} else {
				assert.ErrorIs(t, err, ErrProviderHTTP)
				assert.NotErrorIs(t, err, ErrProviderQuota)
			}
		})
	}
}

func TestCredentialRingRotation(t *testing.T) {
	ring := NewCredentialRing([]config.Credential{{ClientID: "a"}, {ClientID: "b"}, {ClientID: "c"}})

	cred, turn := ring.Current()
	assert.Equal(t, "a", cred.ClientID)

	ring.Rotate(turn)
	ring.Rotate(turn)
	cred, turn = ring.Current()
	assert.Equal(t, "b", cred.ClientID, "stale rotation must be ignored")

	ring.Rotate(turn)
	ring.Rotate(turn + 1)
	cred, _ = ring.Current()
	assert.Equal(t, "a", cred.ClientID)
}

func TestCredentialRingSingle(t *testing.T) {
	ring := NewCredentialRing([]config.Credential{{ClientID: "only"}})
	_, turn := ring.Current()
	ring.Rotate(turn)
	cred, _ := ring.Current()
	assert.Equal(t, "only", cred.ClientID)
}

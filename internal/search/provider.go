// Package search queries the news search API and turns its results into
// body-populated candidate articles.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newsmatch/internal/config"
)

var (
	// ErrProviderQuota reports a rate-limit or daily quota rejection.
	ErrProviderQuota = errors.New("search provider quota exceeded")
	// ErrProviderHTTP reports any other provider failure.
	ErrProviderHTTP = errors.New("search provider request failed")
)

// Item is one news search hit.
type Item struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// Provider runs a single news search with the given credential.
type Provider interface {
	Search(ctx context.Context, cred config.Credential, query string, display int) ([]Item, error)
}

// ProviderError describes a failed provider call.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Quota      bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := "search provider"
	if e.StatusCode != 0 {
		msg += " status " + strconv.Itoa(e.StatusCode)
	}
	if e.Code != "" {
		msg += " code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Is(target error) bool {
	if e.Quota {
		return target == ErrProviderQuota
	}
	return target == ErrProviderHTTP
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Error codes the news API uses for exhausted quotas.
var quotaCodes = map[string]struct{}{
	"010": {},
	"012": {},
}

// NaverProvider calls the Naver news search endpoint.
type NaverProvider struct {
	endpoint string
	client   *http.Client
}

// NewNaverProvider builds a provider from the search configuration.
func NewNaverProvider(cfg config.SearchConfig, client *http.Client) *NaverProvider {
	if client == nil {
		timeout := cfg.Timeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &NaverProvider{endpoint: cfg.Endpoint, client: client}
}

type naverResponse struct {
	Items []Item `json:"items"`
}

type naverError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}

// Search implements Provider.
func (p *NaverProvider) Search(ctx context.Context, cred config.Credential, query string, display int) ([]Item, error) {
	endpoint, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("parse endpoint: %w", err)}
	}
	params := endpoint.Query()
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("sort", "sim")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("X-Naver-Client-Id", cred.ClientID)
	req.Header.Set("X-Naver-Client-Secret", cred.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		var apiErr naverError
		if json.Unmarshal(body, &apiErr) == nil {
			perr.Code = apiErr.ErrorCode
			perr.Message = apiErr.ErrorMessage
		}
		_, quotaCode := quotaCodes[perr.Code]
		perr.Quota = resp.StatusCode == http.StatusTooManyRequests || quotaCode
		return nil, perr
	}

	var decoded naverResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return decoded.Items, nil
}

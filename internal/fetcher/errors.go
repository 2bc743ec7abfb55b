package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrRenderTimeout reports that a page did not finish loading in time.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrRenderCrash reports that the browser failed or went away mid-render.
	ErrRenderCrash = errors.New("render failed")
	// ErrFetchHTTP reports a failed static fetch.
	ErrFetchHTTP = errors.New("static fetch failed")
)

// HTTPStatusError is returned for non-2xx static fetch responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Is lets errors.Is match the HTTP error class.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrFetchHTTP
}

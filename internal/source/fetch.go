package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/docindex/docindex/internal/errors"
)

const (
	defaultFetchTimeout = 30 * time.Second

	// maxFetchBytes caps a single document read. Manifest sources are
	// text documents; anything larger is a misconfigured entry.
	maxFetchBytes = 32 << 20
)

// Fetcher resolves a file path or http(s) URL to its byte content.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// HTTPFetcher reads local files directly and remote locators over
// HTTP(S). A non-2xx response is a fetch failure for that entry only.
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: defaultFetchTimeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return f.fetchHTTP(ctx, locator)
	}

	path := strings.TrimPrefix(locator, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Fetch("reading "+path, err)
	}
	if len(data) > maxFetchBytes {
		return nil, errors.Fetch(fmt.Sprintf("%s exceeds %d byte limit", path, maxFetchBytes), nil)
	}
	return data, nil
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Fetch("building request for "+url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Fetch("requesting "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Fetch(fmt.Sprintf("%s returned status %d", url, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, errors.Fetch("reading response from "+url, err)
	}
	if len(data) > maxFetchBytes {
		return nil, errors.Fetch(fmt.Sprintf("%s exceeds %d byte limit", url, maxFetchBytes), nil)
	}
	return data, nil
}

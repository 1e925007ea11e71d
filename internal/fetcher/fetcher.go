// Package fetcher downloads items from feeds, the repository search API and the curated listing.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"newsdigest/internal/model"
)

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 5 * 1024 * 1024

// ErrSourceDisabled is returned by sources that lack the credentials they need.
var ErrSourceDisabled = errors.New("source disabled")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source produces raw items from a single upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// do sends req and returns the body of a 2xx response.
func do(client HTTPClient, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

package bundle

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/widgetkit/internal/providers/http/client"
)

// Fetcher loads bundles published as a single JSON document
type Fetcher struct {
	client *client.Client
}

// NewFetcher creates a fetcher over c
func NewFetcher(c *client.Client) *Fetcher {
	return &Fetcher{client: c}
}

// Fetch downloads and decodes the bundle at url. The request is abandoned
// when ctx is canceled.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Bundle, error) {
	body, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bundle: %w", err)
	}

	var b Bundle
	if err := sonic.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle from %s: %w", url, err)
	}
	if b.Template == "" || b.JS == "" {
		return nil, fmt.Errorf("%w: template and js are required", ErrMissingFile)
	}
	b.Source = url
	return &b, nil
}

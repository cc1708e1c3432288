package search

import (
	"context"

	"github.com/italolelis/instrument_downloader/internal/telemetry"
)

// InstrumentedClient wraps Client with telemetry.
type InstrumentedClient struct {
	client    Client
	telemetry *telemetry.Telemetry
	provider  string
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient creates a new instrumented search client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, provider string) *InstrumentedClient {
	return &InstrumentedClient{
		client:    client,
		telemetry: tel,
		provider:  provider,
	}
}

// Search requests a page with telemetry.
func (c *InstrumentedClient) Search(ctx context.Context, params Params) (*Page, error) {
	var page *Page

	err := c.telemetry.InstrumentSearchPage(ctx, c.provider, func(ctx context.Context) (int, error) {
		var err error

		page, err = c.client.Search(ctx, params)
		if err != nil {
			return 0, err
		}

		return len(page.ImagesResults), nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

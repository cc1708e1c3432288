package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/italolelis/instrument_downloader/internal/logctx"
)

// PageSize is the number of image results the provider returns per page.
const PageSize = 100

// SearchResult is one image entry of a provider page.
type SearchResult struct {
	Position       int    `json:"position"`
	Title          string `json:"title,omitempty"`
	Source         string `json:"source,omitempty"`
	Link           string `json:"link,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
	Original       string `json:"original"`
	OriginalWidth  int    `json:"original_width,omitempty"`
	OriginalHeight int    `json:"original_height,omitempty"`
}

// Params describes a single image-search page request.
type Params struct {
	Query string
	Page  int
}

// Values renders p with the fixed Google Images filters: English UI,
// google.com, image search, and the Creative Commons license filter.
func (p Params) Values(apiKey string) url.Values {
	v := url.Values{}
	v.Set("api_key", apiKey)
	v.Set("engine", "google")
	v.Set("q", p.Query)
	v.Set("google_domain", "google.com")
	v.Set("tbs", "il:cl")
	v.Set("hl", "en")
	v.Set("tbm", "isch")
	v.Set("ijn", strconv.Itoa(p.Page))

	return v
}

// Page is one decoded provider response.
type Page struct {
	// HasImages is false when the response carried no images_results field.
	HasImages     bool
	ImagesResults []SearchResult
	// Message is the provider's error text, if any.
	Message string
}

// Client performs a single page request against a search provider.
type Client interface {
	Search(ctx context.Context, params Params) (*Page, error)
}

// PageErrorPolicy decides what a failed page request does to the fetch.
type PageErrorPolicy int

const (
	// SkipPage logs the failure and moves on to the next page.
	SkipPage PageErrorPolicy = iota
	// AbortRun returns the failure to the caller immediately.
	AbortRun
)

// Fetcher pages through search results for a query.
type Fetcher struct {
	client Client
	policy PageErrorPolicy
}

func NewFetcher(client Client, policy PageErrorPolicy) *Fetcher {
	return &Fetcher{client: client, policy: policy}
}

// PageCount returns how many pages are needed for targetCount results.
func PageCount(targetCount int) int {
	if targetCount <= 0 {
		return 0
	}

	pages := targetCount / PageSize
	if targetCount%PageSize != 0 {
		pages++
	}

	return pages
}

// Fetch requests PageCount(targetCount) pages for query and accumulates their
// image results. Callers must not assume exactly targetCount results come back.
func (f *Fetcher) Fetch(ctx context.Context, query string, targetCount int) ([]SearchResult, error) {
	logger := logctx.LoggerFromContext(ctx).With("query", query)

	pages := PageCount(targetCount)
	var results []SearchResult

	logger.InfoContext(ctx, "fetching search results", "pages", pages, "target_count", targetCount)

	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		resp, err := f.client.Search(ctx, Params{Query: query, Page: page})
		if err != nil {
			if f.policy == AbortRun {
				return results, fmt.Errorf("failed to fetch page %d for %q: %w", page, query, err)
			}

			logger.ErrorContext(ctx, "failed to fetch search page, skipping", "page", page, "err", err)

			continue
		}

		if !resp.HasImages {
			logger.WarnContext(ctx, "search page has no image results", "page", page, "provider_message", resp.Message)

			continue
		}

		results = append(results, resp.ImagesResults...)

		logger.DebugContext(ctx, "search page fetched", "page", page, "results", len(resp.ImagesResults), "total", len(results))
	}

	logger.InfoContext(ctx, "search results fetched", "results", len(results))

	return results, nil
}

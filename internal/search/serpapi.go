package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/italolelis/instrument_downloader/internal/logctx"
)

const (
	DefaultSerpAPIURL = "https://serpapi.com/search.json"

	maxErrorBody = 512
)

// SerpAPIClient talks to the SerpApi Google Images endpoint.
type SerpAPIClient struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Client = (*SerpAPIClient)(nil)

// NewSerpAPIClient builds a client. A nil httpClient gets a 60s timeout.
func NewSerpAPIClient(baseURL, apiKey string, httpClient *http.Client) *SerpAPIClient {
	if baseURL == "" {
		baseURL = DefaultSerpAPIURL
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &SerpAPIClient{
		BaseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type serpAPIResponse struct {
	ImagesResults *[]SearchResult `json:"images_results"`
	Error         string          `json:"error"`
}

// Search requests one page of image results.
func (c *SerpAPIClient) Search(ctx context.Context, params Params) (*Page, error) {
	logger := logctx.LoggerFromContext(ctx).With("page", params.Page)

	endpoint := c.BaseURL + "?" + params.Values(c.apiKey).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ProviderError{Operation: "search_page", APIMessage: "failed to create request", Err: err}
	}

	req.Header.Set("Accept", "application/json")

	logger.DebugContext(ctx, "requesting search page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Operation: "search_page", APIMessage: redact(err.Error(), c.apiKey), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, &ProviderError{
			Operation:  "search_page",
			StatusCode: resp.StatusCode,
			APIMessage: providerMessage(b),
		}
	}

	var body serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ProviderError{Operation: "search_page", APIMessage: "failed to decode response", Err: err}
	}

	page := &Page{Message: body.Error}
	if body.ImagesResults != nil {
		page.HasImages = true
		page.ImagesResults = *body.ImagesResults
	}

	return page, nil
}

// providerMessage extracts SerpApi's {"error": "..."} text, falling back to the raw body.
func providerMessage(b []byte) string {
	var body struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		return body.Error
	}

	return strings.TrimSpace(string(b))
}

// redact keeps the API key out of url.Error messages, which embed the full request URL.
func redact(msg, apiKey string) string {
	if apiKey == "" {
		return msg
	}

	return strings.ReplaceAll(msg, apiKey, "REDACTED")
}

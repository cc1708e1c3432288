package search_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/italolelis/instrument_downloader/internal/search"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpAPIClient_Search(t *testing.T) {
	var query map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"search_metadata": {"status": "Success"},
			"images_results": [
				{"position": 1, "title": "Acoustic", "original": "https://a.example/1.jpg", "original_width": 640, "original_height": 480},
				{"position": 2, "original": "https://a.example/2.png"}
			]
		}`)
	}))
	defer ts.Close()

	client := search.NewSerpAPIClient(ts.URL, "secret", ts.Client())

	page, err := client.Search(context.Background(), search.Params{Query: "guitar", Page: 2})
	require.NoError(t, err)

	assert.True(t, page.HasImages)
	require.Len(t, page.ImagesResults, 2)
	assert.Equal(t, "https://a.example/1.jpg", page.ImagesResults[0].Original)
	assert.Equal(t, 640, page.ImagesResults[0].OriginalWidth)
	assert.Equal(t, 2, page.ImagesResults[1].Position)

	assert.Equal(t, "secret", query["api_key"])
	assert.Equal(t, "guitar", query["q"])
	assert.Equal(t, "2", query["ijn"])
	assert.Equal(t, "isch", query["tbm"])
	assert.Equal(t, "il:cl", query["tbs"])
}

func TestSerpAPIClient_MissingImagesResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "Google hasn't returned any results for this query."}`)
	}))
	defer ts.Close()

	page, err := search.NewSerpAPIClient(ts.URL, "secret", ts.Client()).
		Search(context.Background(), search.Params{Query: "marxophone"})
	require.NoError(t, err)

	assert.False(t, page.HasImages)
	assert.Empty(t, page.ImagesResults)
	assert.Contains(t, page.Message, "hasn't returned any results")
}

func TestSerpAPIClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": "Invalid API key."}`, "Invalid API key."},
		{"server error", http.StatusInternalServerError, "upstream exploded", "upstream exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := search.NewSerpAPIClient(ts.URL, "secret", ts.Client()).
				Search(context.Background(), search.Params{Query: "oboe"})
			require.Error(t, err)

			var perr *search.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.message, perr.APIMessage)
		})
	}
}

func TestSerpAPIClient_TransportErrorRedactsKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := search.NewSerpAPIClient(url, "topsecret", nil).
		Search(context.Background(), search.Params{Query: "erhu"})
	require.Error(t, err)

	assert.NotContains(t, err.Error(), "topsecret")
}

func TestFetcherWithInstrumentedSerpAPI(t *testing.T) {
	var pages []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ijn := r.URL.Query().Get("ijn")
		pages = append(pages, ijn)

		if ijn == "1" {
			fmt.Fprint(w, `{"search_metadata": {"status": "Success"}}`)
			return
		}

		fmt.Fprintf(w, `{"images_results": [{"position": 1, "original": "https://a.example/%s.jpg"}]}`, ijn)
	}))
	defer ts.Close()

	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)

	client := search.NewInstrumentedClient(search.NewSerpAPIClient(ts.URL, "k", ts.Client()), tel, "serpapi")

	results, err := search.NewFetcher(client, search.SkipPage).Fetch(context.Background(), "koto", 201)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "2"}, pages)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a.example/0.jpg", results[0].Original)
	assert.Equal(t, "https://a.example/2.jpg", results[1].Original)
}

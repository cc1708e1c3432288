package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/italolelis/instrument_downloader/internal/collector"
	"github.com/italolelis/instrument_downloader/internal/downloader"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	current   string
	completed []collector.Report
}

func (s staticSource) Status() (string, []collector.Report) {
	return s.current, s.completed
}

func TestStatusHandler_Health(t *testing.T) {
	h := NewStatusHandler(staticSource{}, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(telemetry.RequestIDHeader))
}

func TestStatusHandler_Status(t *testing.T) {
	src := staticSource{
		current: "harp",
		completed: []collector.Report{
			{
				Instrument: "guitar",
				Results:    120,
				Summary:    downloader.Summary{Total: 120, Written: 100, Failed: 15, Unsupported: 5, Bytes: 2048},
				Duration:   90 * time.Second,
			},
			{Instrument: "piano", Err: errors.New("provider down")},
		},
	}

	rec := httptest.NewRecorder()
	NewStatusHandler(src, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, "harp", body.Current)
	require.Len(t, body.Completed, 2)
	assert.Equal(t, instrumentStatus{
		Instrument:  "guitar",
		Results:     120,
		Written:     100,
		Failed:      15,
		Unsupported: 5,
		Bytes:       2048,
		DurationSec: 90,
	}, body.Completed[0])
	assert.Equal(t, "provider down", body.Completed[1].Error)
}

func TestStatusHandler_MetricsDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStatusHandler(staticSource{}, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/italolelis/instrument_downloader/internal/collector"
	"github.com/italolelis/instrument_downloader/internal/downloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, gray bool) []byte {
	t.Helper()

	var img image.Image
	if gray {
		img = image.NewGray(image.Rect(0, 0, 8, 8))
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, 8, 8))
		rgba.Set(2, 2, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		img = rgba
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	return buf.Bytes()
}

// TestCollectThenValidate drives both subcommands against fake provider and
// image hosts.
func TestCollectThenValidate(t *testing.T) {
	rgb := encodeJPEG(t, false)

	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(rgb)
	}))
	defer images.Close()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprintf(w, `{"images_results": [
			{"position": 1, "original": "%[1]s/a.jpg"},
			{"position": 2, "original": "%[1]s/missing.jpg"},
			{"position": 3, "original": "%[1]s/c.webp"}
		]}`, images.URL)
	}))
	defer provider.Close()

	dataDir := t.TempDir()

	t.Setenv("SERPAPI_KEY", "test-key")
	t.Setenv("SERPAPI_BASE_URL", provider.URL)
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("INSTRUMENTS", "guitar,harp")
	t.Setenv("IMAGES_PER_INSTRUMENT", "100")
	t.Setenv("MAX_WORKERS", "4")
	t.Setenv("LOG_LEVEL", "ERROR")

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"collect"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "guitar")
	assert.Contains(t, out.String(), "harp")

	for _, instrument := range []string{"guitar", "harp"} {
		entries, err := os.ReadDir(filepath.Join(dataDir, instrument))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "0.jpg", entries[0].Name())
	}

	out.Reset()

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), filepath.Join(dataDir, "guitar"))

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "harp", "9.jpg"), encodeJPEG(t, true), 0o644))

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", filepath.Join(dataDir, "harp")})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9.jpg")
	assert.Contains(t, err.Error(), "mode L")
}

func TestCollectRequiresAPIKey(t *testing.T) {
	t.Setenv("SERPAPI_KEY", "")
	t.Setenv("DATA_DIR", t.TempDir())

	cmd := newRootCommand()
	cmd.SetArgs([]string{"collect"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERPAPI_KEY")
}

func TestRenderReports(t *testing.T) {
	out := renderReports([]collector.Report{
		{
			Instrument: "guitar",
			Results:    3,
			Summary:    downloader.Summary{Total: 3, Written: 2, Failed: 1, Bytes: 2048},
			Duration:   1500 * time.Millisecond,
		},
		{Instrument: "piano", Err: errors.New("provider down")},
	})

	assert.Contains(t, out, "guitar")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "provider down")
	assert.True(t, strings.Contains(strings.ToUpper(out), "TOTAL"))
}

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/instrument_downloader/internal/downloader/progress"
	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/search"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	DefaultMaxWorkers = 200
	DefaultTimeout    = 30 * time.Second

	maxLoggedBody = 256
)

// Options configures a Downloader.
type Options struct {
	// MaxWorkers bounds the number of image requests in flight.
	MaxWorkers int
	// Headers are sent with every image request.
	Headers http.Header
	// Timeout bounds each image request including reading the body. Zero disables it.
	Timeout time.Duration
	// ProgressEvery controls how often progress is logged, in completed jobs.
	ProgressEvery int
}

// DefaultHeaders returns the identifying header set image hosts see.
func DefaultHeaders(userAgent, from string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("From", from)

	return h
}

// Summary is the outcome of one DownloadAll call.
type Summary struct {
	Total       int
	Written     int
	Failed      int
	Unsupported int
	Bytes       int64
}

type Downloader struct {
	client    *http.Client
	opts      Options
	telemetry *telemetry.Telemetry
}

// NewDownloader builds a Downloader. A nil client gets one whose transport is
// instrumented by tel.
func NewDownloader(opts Options, client *http.Client, tel *telemetry.Telemetry) *Downloader {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = DefaultMaxWorkers
	}

	if opts.ProgressEvery < 1 {
		opts.ProgressEvery = 100
	}

	if client == nil {
		client = &http.Client{Transport: tel.Transport(nil)}
	}

	return &Downloader{
		client:    client,
		opts:      opts,
		telemetry: tel,
	}
}

type job struct {
	index int
	url   string
}

type completion struct {
	job

	data []byte
	err  error
}

// DownloadAll fetches every result's original image with at most
// Options.MaxWorkers requests in flight and writes successful downloads to
// saveDir as "{index}.{extension}", index being the result's position in
// results. Completions are handled in the order they finish. Per-image
// failures are logged and counted, never returned; the error is reserved for
// an unusable saveDir or a canceled ctx.
func (d *Downloader) DownloadAll(ctx context.Context, results []search.SearchResult, saveDir string) (Summary, error) {
	logger := logctx.LoggerFromContext(ctx).With("save_dir", saveDir)
	ctx = logctx.WithLogger(ctx, logger)

	summary := Summary{Total: len(results)}

	if err := os.MkdirAll(saveDir, dirPerm); err != nil {
		return summary, fmt.Errorf("failed to create save directory: %w", err)
	}

	logger.InfoContext(ctx, "downloading images", "results", len(results), "max_workers", d.opts.MaxWorkers)

	completions := make(chan completion)

	go d.submit(ctx, results, completions)

	tracker := progress.NewTracker(len(results), d.opts.ProgressEvery, func(done, total int64, percent float64) {
		logger.InfoContext(ctx, "download progress",
			"completed", done,
			"total", total,
			"percent", humanize.FtoaWithDigits(percent, 2))
	})

	for c := range completions {
		d.consume(ctx, c, saveDir, tracker, &summary)
	}

	logger.InfoContext(ctx, "downloads finished",
		"written", summary.Written,
		"failed", summary.Failed,
		"unsupported", summary.Unsupported,
		"size", humanize.Bytes(uint64(summary.Bytes)))

	return summary, ctx.Err()
}

// submit fans jobs out to the worker pool and closes completions once every
// submitted job has reported back. Submission blocks while the pool is full.
func (d *Downloader) submit(ctx context.Context, results []search.SearchResult, completions chan<- completion) {
	var g errgroup.Group

	g.SetLimit(d.opts.MaxWorkers)

	for i := range results {
		j := job{index: i, url: results[i].Original}

		if ctx.Err() != nil {
			// Keep the accounting complete without touching the network.
			g.Go(func() error {
				completions <- completion{job: j, err: ctx.Err()}
				return nil
			})

			continue
		}

		g.Go(func() error {
			data, err := d.fetch(ctx, j.url)
			completions <- completion{job: j, data: data, err: err}

			// Job failures are isolated; never cancel siblings.
			return nil
		})
	}

	_ = g.Wait()

	close(completions)
}

// fetch returns the image bytes, or nil data with a nil error when the host
// answered with something other than 200 OK.
func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	logger := logctx.LoggerFromContext(ctx)

	if url == "" {
		return nil, errors.New("search result has no original url")
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	var data []byte

	err := d.telemetry.InstrumentDownload(ctx, func(ctx context.Context) (int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		if d.opts.Headers != nil {
			req.Header = d.opts.Headers.Clone()
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))

			return 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return int64(len(data)), fmt.Errorf("failed to read body: %w", err)
		}

		return int64(len(data)), nil
	})

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		logger.WarnContext(ctx, "image unavailable", "url", url, "status", statusErr.StatusCode, "text", statusErr.Body)

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return data, nil
}

func (d *Downloader) consume(ctx context.Context, c completion, saveDir string, tracker *progress.Tracker, summary *Summary) {
	logger := logctx.LoggerFromContext(ctx).With("index", c.index)

	tracker.Done()

	if c.err != nil {
		logger.ErrorContext(ctx, "failed to download image", "url", c.url, "err", c.err)
		d.telemetry.RecordFile(ctx, "failed", "")

		summary.Failed++

		return
	}

	ext, err := ClassifyExtension(c.url)
	if err != nil {
		logger.WarnContext(ctx, "unsupported extension", "url", c.url, "err", err)
		d.telemetry.RecordFile(ctx, "unsupported_extension", "")

		summary.Unsupported++

		return
	}

	if c.data == nil {
		d.telemetry.RecordFile(ctx, "no_data", ext)

		summary.Failed++

		return
	}

	target := filepath.Join(saveDir, fmt.Sprintf("%d.%s", c.index, ext))

	if err := os.WriteFile(target, c.data, filePerm); err != nil {
		logger.ErrorContext(ctx, "failed to write image", "target", target, "err", err)
		d.telemetry.RecordFile(ctx, "write_error", ext)
		d.telemetry.RecordSystemError(ctx, "downloader", "write_file")

		summary.Failed++

		return
	}

	logger.DebugContext(ctx, "saved image", "target", target, "size", humanize.Bytes(uint64(len(c.data))))
	d.telemetry.RecordFile(ctx, "written", ext)

	summary.Written++
	summary.Bytes += int64(len(c.data))
}

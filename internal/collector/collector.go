package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/italolelis/instrument_downloader/internal/downloader"
	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/notifier"
	"github.com/italolelis/instrument_downloader/internal/search"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
)

const (
	dirPerm  = 0755
	lockName = ".collector.lock"
)

// ErrLocked is returned when another process holds the data root.
var ErrLocked = errors.New("data directory is locked by another collector")

type Fetcher interface {
	Fetch(ctx context.Context, query string, targetCount int) ([]search.SearchResult, error)
}

type Downloader interface {
	DownloadAll(ctx context.Context, results []search.SearchResult, saveDir string) (downloader.Summary, error)
}

// Report describes one instrument's collection.
type Report struct {
	Instrument string
	Dir        string
	Results    int
	Summary    downloader.Summary
	Duration   time.Duration
	Err        error
}

// Collector fills <dataDir>/<instrument>/ with downloaded images for each instrument.
type Collector struct {
	dataDir    string
	fetcher    Fetcher
	downloader Downloader
	notifier   notifier.Notifier
	telemetry  *telemetry.Telemetry

	// StopOnError ends CollectAll at the first failed instrument.
	StopOnError bool

	mu        sync.RWMutex
	current   string
	completed []Report
}

func New(dataDir string, f Fetcher, d Downloader, n notifier.Notifier, tel *telemetry.Telemetry) *Collector {
	if n == nil {
		n = notifier.Noop{}
	}

	return &Collector{
		dataDir:    dataDir,
		fetcher:    f,
		downloader: d,
		notifier:   n,
		telemetry:  tel,
	}
}

// InstrumentDir returns the directory images for instrument are written to.
func (c *Collector) InstrumentDir(instrument string) string {
	return filepath.Join(c.dataDir, instrument)
}

// Lock takes an exclusive, non-blocking lock on the data root.
func (c *Collector) Lock() (unlock func() error, err error) {
	if err := os.MkdirAll(c.dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fl := flock.New(filepath.Join(c.dataDir, lockName))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}

	if !locked {
		return nil, ErrLocked
	}

	return fl.Unlock, nil
}

// Collect fetches up to count results for instrument and downloads them.
func (c *Collector) Collect(ctx context.Context, instrument string, count int) (Report, error) {
	report := Report{Instrument: instrument, Dir: c.InstrumentDir(instrument)}

	if err := checkInstrumentName(instrument); err != nil {
		report.Err = err
		return report, err
	}

	ctx = logctx.With(ctx, "instrument", instrument)
	logger := logctx.LoggerFromContext(ctx)
	start := time.Now()

	err := c.telemetry.InstrumentOperation(ctx, "collect_instrument", "collector", func(ctx context.Context) error {
		if err := os.MkdirAll(report.Dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create instrument directory: %w", err)
		}

		results, err := c.fetcher.Fetch(ctx, instrument, count)
		if err != nil {
			return fmt.Errorf("failed to fetch results: %w", err)
		}

		report.Results = len(results)

		report.Summary, err = c.downloader.DownloadAll(ctx, results, report.Dir)
		if err != nil {
			return fmt.Errorf("failed to download images: %w", err)
		}

		return nil
	})

	report.Duration = time.Since(start)
	report.Err = err

	if err != nil {
		logger.ErrorContext(ctx, "instrument collection failed", "err", err)
		c.notify(ctx, fmt.Sprintf("❌ Collection failed for %s: %v", instrument, err))

		return report, err
	}

	logger.InfoContext(ctx, "instrument collected",
		"results", report.Results,
		"written", report.Summary.Written,
		"duration", report.Duration.String())

	c.notify(ctx, fmt.Sprintf("✅ %s: %d/%d images written (%d failed, %d unsupported, %s)",
		instrument,
		report.Summary.Written,
		report.Results,
		report.Summary.Failed,
		report.Summary.Unsupported,
		humanize.Bytes(uint64(report.Summary.Bytes)),
	))

	return report, nil
}

// CollectAll collects each instrument in turn while holding the data root lock.
// A failed instrument is reported and skipped unless StopOnError is set or
// ctx is done.
func (c *Collector) CollectAll(ctx context.Context, instruments []string, count int) ([]Report, error) {
	logger := logctx.LoggerFromContext(ctx)

	unlock, err := c.Lock()
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(); err != nil {
			logger.ErrorContext(ctx, "failed to release data directory lock", "err", err)
		}
	}()

	reports := make([]Report, 0, len(instruments))

	for i, instrument := range instruments {
		logger.InfoContext(ctx, "collecting instrument", "instrument", instrument, "position", i+1, "of", len(instruments))

		c.setCurrent(instrument)

		report, err := c.Collect(ctx, instrument, count)
		reports = append(reports, report)

		c.record(report)

		if ctx.Err() != nil {
			return reports, ctx.Err()
		}

		if err != nil && c.StopOnError {
			return reports, fmt.Errorf("collection of %q failed: %w", instrument, err)
		}
	}

	return reports, nil
}

// Status returns the instrument being collected ("" when idle) and a copy of
// the reports finished so far.
func (c *Collector) Status() (string, []Report) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current, append([]Report(nil), c.completed...)
}

func (c *Collector) setCurrent(instrument string) {
	c.mu.Lock()
	c.current = instrument
	c.mu.Unlock()
}

func (c *Collector) record(r Report) {
	c.mu.Lock()
	c.current = ""
	c.completed = append(c.completed, r)
	c.mu.Unlock()
}

func (c *Collector) notify(ctx context.Context, content string) {
	if err := c.notifier.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "err", err)
	}
}

func checkInstrumentName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid instrument name %q", name)
	}

	return nil
}

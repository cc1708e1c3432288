package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/italolelis/instrument_downloader/internal/collector"
	"github.com/italolelis/instrument_downloader/internal/config"
	"github.com/italolelis/instrument_downloader/internal/downloader"
	"github.com/italolelis/instrument_downloader/internal/http/rest"
	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/notifier"
	"github.com/italolelis/instrument_downloader/internal/search"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
	"github.com/spf13/cobra"
)

func newCollectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Search and download images for every configured instrument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runCollect(parent context.Context, out io.Writer) error {
	ctx, cancel, cfg, err := setup(parent)
	if err != nil {
		return err
	}
	defer cancel()

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Build Collector
	col := buildCollector(cfg, tel)

	// =========================================================================
	// Start Status Server
	if cfg.Web.Enabled {
		server := setupServer(ctx, col, tel, cfg)

		go func() {
			logger.InfoContext(ctx, "status server listening", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorContext(ctx, "status server failed", "err", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.ErrorContext(ctx, "failed to gracefully shutdown the server", "err", err)
			}
		}()
	}

	// =========================================================================
	// Collect
	instruments := cfg.InstrumentList()

	logger.InfoContext(ctx, "instrument downloader starting",
		"instruments", len(instruments),
		"images_per_instrument", cfg.ImagesPerInstrument,
		"data_dir", cfg.DataDir,
		"max_workers", cfg.MaxWorkers,
		"log_level", cfg.LogLevel,
	)

	reports, err := col.CollectAll(ctx, instruments, cfg.ImagesPerInstrument)

	if len(reports) > 0 {
		fmt.Fprintln(out, renderReports(reports))
	}

	return err
}

func buildCollector(cfg *config.Config, tel *telemetry.Telemetry) *collector.Collector {
	policy := search.SkipPage
	if cfg.AbortOnPageError {
		policy = search.AbortRun
	}

	searchHTTP := &http.Client{Timeout: cfg.SearchTimeout, Transport: tel.Transport(nil)}
	searchClient := search.NewInstrumentedClient(
		search.NewSerpAPIClient(cfg.SerpAPIBaseURL, cfg.SerpAPIKey, searchHTTP),
		tel,
		"serpapi",
	)

	dl := downloader.NewDownloader(downloader.Options{
		MaxWorkers:    cfg.MaxWorkers,
		Headers:       downloader.DefaultHeaders(cfg.UserAgent, cfg.FromHeader),
		Timeout:       cfg.RequestTimeout,
		ProgressEvery: cfg.ProgressEvery,
	}, imageHTTPClient(cfg, tel), tel)

	col := collector.New(
		cfg.DataDir,
		search.NewFetcher(searchClient, policy),
		dl,
		notifier.New(cfg.DiscordWebhookURL),
		tel,
	)
	col.StopOnError = cfg.AbortOnPageError

	return col
}

// imageHTTPClient sizes the connection pool for the worker count; image
// hosts are many and mostly distinct, so idle connections are spread thin.
func imageHTTPClient(cfg *config.Config, tel *telemetry.Telemetry) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConns = cfg.MaxWorkers
	base.MaxIdleConnsPerHost = 4

	return &http.Client{Transport: tel.Transport(base)}
}

// setupServer prepares the status/metrics http server.
func setupServer(ctx context.Context, col *collector.Collector, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	h := rest.NewStatusHandler(col, tel)

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      h.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

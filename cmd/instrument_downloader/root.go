package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/italolelis/instrument_downloader/internal/config"
	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "instrument_downloader",
		Short:         "Build a musical-instrument image dataset from Google Images results",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(newCollectCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// setup loads the configuration and returns a context carrying the process
// logger and a fresh run id. The context is canceled on SIGINT/SIGTERM.
func setup(parent context.Context) (context.Context, context.CancelFunc, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger := logctx.NewLogger(os.Stderr, cfg.SlogLevel(), isatty.IsTerminal(os.Stderr.Fd()))
	slog.SetDefault(logger)

	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	runID := uuid.New().String()
	ctx = logctx.WithRunID(logctx.WithLogger(ctx, logger), runID)

	return ctx, cancel, cfg, nil
}

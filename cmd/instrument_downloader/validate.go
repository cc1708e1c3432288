package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/validate"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir...]",
		Short: "Check that every image in the given directories is RGB",
		Long: "Check that every image in the given directories decodes to RGB.\n" +
			"Without arguments, every configured instrument directory under DATA_DIR is checked.\n" +
			"Stops at the first offending file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func runValidate(parent context.Context, out io.Writer, dirs []string) error {
	ctx, cancel, cfg, err := setup(parent)
	if err != nil {
		return err
	}
	defer cancel()

	if len(dirs) == 0 {
		for _, instrument := range cfg.InstrumentList() {
			dirs = append(dirs, filepath.Join(cfg.DataDir, instrument))
		}
	}

	v := validate.NewValidator(nil)
	counts := make(map[string]int, len(dirs))

	for _, dir := range dirs {
		n, err := v.ValidateDirectory(logctx.With(ctx, "dir", dir), dir)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		counts[dir] = n
	}

	fmt.Fprintln(out, renderValidation(dirs, counts))

	return nil
}

package main

import (
	"context"
	"fmt"

	"a11yscan/internal/engine"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runReplay normalizes a saved capture again and prints it as a scan of the
// captured URL.
func runReplay(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	capture, err := engine.LoadCapture(args[0])
	if err != nil {
		return err
	}

	opts := scanOptions(cfg)
	if !cmd.Flags().Changed("standard") {
		opts.Standard = ""
	}

	logger.Debug("replaying capture",
		zap.String("id", capture.ID),
		zap.String("url", capture.URL),
		zap.Int("messages", len(capture.Messages)))

	res := engine.Rerun(context.Background(), capture, opts)
	url := capture.URL
	if url == "" {
		url = args[0]
	}
	return report(cmd.OutOrStdout(), []pageReport{{URL: url, Result: res}}, cfg.Level)
}

package commands

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/chainsafe/fhevm-session/pkg/app/inspector"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
)

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Classify the configured network and print the resolved infrastructure addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Network.RequestTimeout)
			defer cancel()

			report, err := inspector.FromConfig(cfg, kvstore.Noop{}, logger).Inspect(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/fhevm-session/pkg/app"
	"github.com/chainsafe/fhevm-session/pkg/app/inspector"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the inspector HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var runner app.Runner = inspector.NewServer(cfg)
			return runner.Run(cmd.Context())
		},
	}
}

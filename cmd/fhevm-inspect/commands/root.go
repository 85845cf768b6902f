package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/config"
)

var (
	configPath string
	envFiles   []string
	rpcURL     string

	cfg *config.Config
)

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fhevm-inspect",
		Short:        "Inspect FHE session configuration and decryption signatures",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFiles(envFiles); err != nil {
				return err
			}
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if rpcURL != "" {
				loaded.Network.RPCURL = rpcURL
				if err := loaded.Validate(); err != nil {
					return fmt.Errorf("invalid --rpc-url: %w", err)
				}
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (defaults apply when empty)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading configuration")
	root.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "override network.rpc_url")

	root.AddCommand(resolveCmd(), serveCmd(), devnodeCmd(), migrateCmd())
	return root
}

// loadEnvFiles loads dotenv files without overriding variables already set.
// Missing files are skipped.
func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	return logger, nil
}

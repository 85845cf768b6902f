package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/migrations/sigstore"
	"github.com/chainsafe/fhevm-session/pkg/pgutil"
	mghelper "github.com/chainsafe/fhevm-session/pkg/pgutil/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate {" + strings.Join(mghelper.Commands, "|") + "}",
		Short:     "Manage the postgres signature store schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: mghelper.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.SignatureStore.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs signature_store.driver %q, got %q",
					config.DriverPostgres, cfg.SignatureStore.Driver)
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := pgutil.ConnectDB(cmd.Context(), &cfg.SignatureStore.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := migrate.NewMigrator(db, sigstore.Migrations)
			return mghelper.RunMigrations(cmd.Context(), migrator, logger, args[0])
		},
	}
}

package sigstore

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/chainsafe/fhevm-session/pkg/kvstore"
	mghelper "github.com/chainsafe/fhevm-session/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &kvstore.SignatureDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &kvstore.SignatureDao{}, "updated_at")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &kvstore.SignatureDao{})
	})
}

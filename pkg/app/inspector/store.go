package inspector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
	"github.com/chainsafe/fhevm-session/pkg/pgutil"
)

// OpenStore builds the signature store selected by cfg. When a seal key is
// configured, values are encrypted before they reach the backend. The
// returned close function is never nil.
func OpenStore(ctx context.Context, cfg config.SignatureStoreConfig, logger *zap.Logger) (kvstore.Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	closeFn := func() error { return nil }

	var store kvstore.Store
	switch cfg.Driver {
	case config.DriverNoop:
		store = kvstore.Noop{}
	case config.DriverMemory, "":
		store = kvstore.NewMemory()
	case config.DriverPostgres:
		db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, closeFn, err
		}
		store, closeFn = kvstore.NewPostgres(db), db.Close
	default:
		return nil, closeFn, fmt.Errorf("unknown signature store driver %q", cfg.Driver)
	}

	secret := cfg.SealKey()
	if len(secret) == 0 {
		logger.Info("signature store ready", zap.String("driver", cfg.Driver), zap.Bool("sealed", false))
		return store, closeFn, nil
	}
	sealed, err := kvstore.NewSealed(store, secret)
	if err != nil {
		_ = closeFn()
		return nil, func() error { return nil }, fmt.Errorf("seal signature store: %w", err)
	}
	logger.Info("signature store ready", zap.String("driver", cfg.Driver), zap.Bool("sealed", true))
	return sealed, closeFn, nil
}

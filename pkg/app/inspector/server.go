package inspector

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/app"
	"github.com/chainsafe/fhevm-session/pkg/app/httpserver"
	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/decrypt"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
)

var _ app.Runner = (*Server)(nil)

// Server runs the inspector HTTP service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	ln     net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger. Without it Run builds one from the
// logging section of the configuration.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithListener serves on ln instead of listening on the configured address.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) { s.ln = ln }
}

// NewServer initializes a new inspector server.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig builds an Inspector for the network in cfg backed by store.
func FromConfig(cfg *config.Config, store kvstore.Store, logger *zap.Logger) *Inspector {
	mgr := decrypt.NewManager(
		decrypt.WithLogger(logger),
		decrypt.WithDurationDays(cfg.FHEVM.DurationDays),
	)
	return New(chain.URL(cfg.Network.RPCURL),
		WithLogger(logger),
		WithExpectedChainID(cfg.Network.ChainID),
		WithDevChains(cfg.Network.DevChains),
		WithSessionConfig(cfg.FHEVM),
		WithSignatures(mgr, store),
	)
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg == nil {
		return fmt.Errorf("inspector config is nil")
	}
	cfg := s.cfg

	logger := s.logger
	if logger == nil {
		var err error
		if logger, err = config.NewLogger(cfg.Logging); err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	store, closeStore, err := OpenStore(ctx, cfg.SignatureStore, logger)
	if err != nil {
		return fmt.Errorf("open signature store: %w", err)
	}
	defer func() { _ = closeStore() }()

	router := NewRouter(FromConfig(cfg, store, logger), logger, cfg.Network.RequestTimeout)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Starting inspector server",
		zap.String("addr", srv.Addr),
		zap.String("rpc_url", cfg.Network.RPCURL),
		zap.String("signature_store", cfg.SignatureStore.Driver))

	return httpserver.ServeAndWait(ctx, logger, srv, s.ln, cfg.Server.ShutdownTimeout)
}

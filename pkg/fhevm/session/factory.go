// Package session builds ready FHE instances: it resolves the chain, loads
// and initializes the relayer SDK once per process, resolves infrastructure
// addresses and reuses cached key material.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/internal/metrics"
	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/keycache"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/loader"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// Status is a step of a session build.
type Status string

const (
	StatusSDKLoading      Status = "sdk-loading"
	StatusSDKLoaded       Status = "sdk-loaded"
	StatusSDKInitializing Status = "sdk-initializing"
	StatusSDKInitialized  Status = "sdk-initialized"
	StatusCreating        Status = "creating"
	StatusReady           Status = "ready"
	StatusAborted         Status = "aborted"
	StatusFailed          Status = "failed"
)

// BuildParams describes one session build.
type BuildParams struct {
	// Connection is the wallet provider or RPC URL the session binds to.
	Connection chain.Connection
	// ChainID, when non-zero, must match the chain behind Connection.
	ChainID uint64
	// DevChains extends the built-in development chain table.
	DevChains chain.DevChains
	// OnStatusChange observes every status transition, in order.
	OnStatusChange func(Status)
}

// Prober fetches relayer metadata from a development node.
type Prober interface {
	Probe(ctx context.Context, rpcURL string) (*chain.Metadata, bool)
}

// DevInstanceParams is what a development instance factory receives.
type DevInstanceParams struct {
	RPCURL   string
	ChainID  uint64
	Metadata chain.Metadata
}

// DevInstanceFactory builds an instance against a development node without
// the relayer.
type DevInstanceFactory func(ctx context.Context, p DevInstanceParams) (sdk.Instance, error)

// Factory builds FHE sessions.
type Factory struct {
	runtime      *Runtime
	logger       *zap.Logger
	loader       SDKLoader
	keys         keycache.Cache
	prober       Prober
	env          EnvLookup
	devInstances DevInstanceFactory
	now          func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the factory logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithLoader replaces the default SDK loader.
func WithLoader(l SDKLoader) Option {
	return func(f *Factory) { f.loader = l }
}

// WithKeyCache replaces the default in-memory public key cache.
func WithKeyCache(c keycache.Cache) Option {
	return func(f *Factory) { f.keys = c }
}

// WithProber replaces the default development node prober.
func WithProber(p Prober) Option {
	return func(f *Factory) { f.prober = p }
}

// WithEnv sets where address overrides are read from. Defaults to the
// process environment.
func WithEnv(env EnvLookup) Option {
	return func(f *Factory) { f.env = env }
}

// WithDevelopmentInstances enables building development chain sessions
// directly against the node when it reports relayer metadata. Disabled
// unless set.
func WithDevelopmentInstances(fn DevInstanceFactory) Option {
	return func(f *Factory) { f.devInstances = fn }
}

// NewFactory creates a Factory bound to rt.
func NewFactory(rt *Runtime, opts ...Option) *Factory {
	f := &Factory{
		runtime: rt,
		logger:  zap.NewNop(),
		env:     OSEnv,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.loader == nil {
		f.loader = loader.New(loader.WithLogger(f.logger))
	}
	if f.keys == nil {
		f.keys = keycache.NewMemory()
	}
	if f.prober == nil {
		f.prober = chain.NewProber(chain.WithProbeLogger(f.logger))
	}
	return f
}

// Runtime returns the runtime the factory is bound to.
func (f *Factory) Runtime() *Runtime { return f.runtime }

// Build creates a ready session. ctx is the cancellation signal: it is
// checked at entry, after every suspension and before returning, and a
// cancelled build fails with an abort error without writing the key cache.
func (f *Factory) Build(ctx context.Context, p BuildParams) (inst sdk.Instance, err error) {
	b := &build{
		Factory: f,
		params:  p,
		log:     f.logger.With(zap.String("build_id", uuid.NewString())),
		started: f.now(),
	}
	defer func() { b.finish(err) }()

	return b.run(ctx)
}

type build struct {
	*Factory
	params  BuildParams
	log     *zap.Logger
	started time.Time
}

func (b *build) notify(s Status) {
	b.log.Debug("session status", zap.String("status", string(s)))
	if b.params.OnStatusChange != nil {
		b.params.OnStatusChange(s)
	}
}

func (b *build) finish(err error) {
	status := StatusReady
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.CategoryAborted):
		status = StatusAborted
		b.log.Info("session build aborted")
	default:
		status = StatusFailed
		b.log.Warn("session build failed", zap.Error(err))
	}
	if status != StatusReady {
		b.notify(status)
	}
	metrics.SessionBuildsTotal.WithLabelValues(string(status)).Inc()
	metrics.SessionBuildDuration.WithLabelValues(string(status)).Observe(time.Since(b.started).Seconds())
}

func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.AbortedError(err)
	}
	return nil
}

// abortOr reports cancellation in preference to err when ctx is done.
func abortOr(ctx context.Context, err error) error {
	if cerr := checkpoint(ctx); cerr != nil {
		return cerr
	}
	return err
}

func (b *build) run(ctx context.Context) (sdk.Instance, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	if b.runtime == nil {
		return nil, apperrors.InvalidConfigError(nil, "session factory has no runtime")
	}
	if b.params.Connection.IsZero() {
		return nil, apperrors.InvalidConfigError(nil, "connection is required")
	}

	cls, err := chain.Resolve(ctx, b.params.Connection, b.params.DevChains)
	if err != nil {
		return nil, abortOr(ctx, err)
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	if b.params.ChainID != 0 && b.params.ChainID != cls.ChainID {
		return nil, apperrors.InvalidConfigError(nil,
			fmt.Sprintf("connection is on chain %d, expected %d", cls.ChainID, b.params.ChainID))
	}
	b.log = b.log.With(zap.Uint64("chain_id", cls.ChainID), zap.Bool("development", cls.IsDevelopment))

	b.notify(StatusSDKLoading)
	relayerSDK, err := b.runtime.Load(ctx, b.loader)
	if err != nil {
		return nil, abortOr(ctx, err)
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	b.notify(StatusSDKLoaded)

	if !b.runtime.Initialized() {
		b.notify(StatusSDKInitializing)
		if err := b.runtime.Init(ctx, relayerSDK); err != nil {
			return nil, abortOr(ctx, err)
		}
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
		b.notify(StatusSDKInitialized)
	}

	var meta *chain.Metadata
	if cls.IsDevelopment && cls.RPCURL != "" {
		meta, _ = b.prober.Probe(ctx, cls.RPCURL)
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
	}

	defaults := relayerSDK.DefaultConfig()
	if defaults == nil {
		return nil, apperrors.InvalidConfigError(nil, "relayer SDK has no default configuration")
	}
	cfg := defaults.Clone()

	addrs, ignored := ResolveAddresses(cfg.Addresses, meta, b.env)
	for _, key := range ignored {
		b.log.Warn("ignoring malformed address override", zap.String("env", key))
	}
	if addrs.ACL == (common.Address{}) {
		return nil, apperrors.InvalidConfigError(nil, "invalid ACL address: zero address")
	}
	cfg.Addresses = addrs
	cfg.Network = b.params.Connection
	b.log = b.log.With(zap.String("acl_address", addrs.ACL.Hex()))

	cached, hit := b.keys.Get(ctx, addrs.ACL)
	if hit {
		metrics.PublicKeyCache.WithLabelValues("hit").Inc()
		cfg.PublicKey, cfg.PublicParams = cached.PublicKey, cached.PublicParams
	} else {
		metrics.PublicKeyCache.WithLabelValues("miss").Inc()
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	b.notify(StatusCreating)
	b.log.Info("creating FHE instance",
		zap.String("kms_verifier_address", addrs.KMSVerifier.Hex()),
		zap.String("input_verifier_address", addrs.InputVerifier.Hex()),
		zap.Bool("has_public_key", len(cfg.PublicKey) > 0),
		zap.Bool("dev_metadata", meta != nil))

	if b.devInstances != nil && cls.IsDevelopment && meta != nil {
		return b.createDevInstance(ctx, cls, *meta)
	}

	inst, err := relayerSDK.CreateInstance(ctx, cfg)
	if err != nil {
		return nil, abortOr(ctx, apperrors.NetworkError(err, "failed to create FHEVM instance"))
	}
	if inst == nil {
		return nil, apperrors.NetworkError(errors.New("relayer SDK returned no instance"), "failed to create FHEVM instance")
	}
	if err := checkpoint(ctx); err != nil {
		b.discard(inst)
		return nil, err
	}

	b.keys.Set(ctx, addrs.ACL, keycache.Entry{
		PublicKey:    inst.PublicKey(),
		PublicParams: inst.PublicParams(sdk.PublicParamsBits),
	})
	if err := checkpoint(ctx); err != nil {
		b.discard(inst)
		return nil, err
	}

	b.log.Info("FHE instance ready")
	b.notify(StatusReady)
	return inst, nil
}

func (b *build) createDevInstance(ctx context.Context, cls chain.Classification, meta chain.Metadata) (sdk.Instance, error) {
	inst, err := b.devInstances(ctx, DevInstanceParams{RPCURL: cls.RPCURL, ChainID: cls.ChainID, Metadata: meta})
	if err != nil {
		return nil, abortOr(ctx, apperrors.NetworkError(err, "failed to create development instance"))
	}
	if err := checkpoint(ctx); err != nil {
		b.discard(inst)
		return nil, err
	}
	b.log.Info("development FHE instance ready", zap.String("rpc_url", cls.RPCURL))
	b.notify(StatusReady)
	return inst, nil
}

// discard releases an instance the build will not return.
func (b *build) discard(inst sdk.Instance) {
	c, ok := inst.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		b.log.Warn("failed to release discarded instance", zap.Error(err))
	}
}

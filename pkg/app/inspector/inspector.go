// Package inspector reports how FHE sessions would be configured against a
// network, and whether a decryption authorization is cached for a user.
package inspector

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/decrypt"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/loader"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/session"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
)

// Report describes the resolved session configuration for a network.
type Report struct {
	chain.Classification
	Addresses        sdk.InfrastructureAddresses `json:"addresses"`
	IgnoredOverrides []string                    `json:"ignored_overrides,omitempty"`
	DevMetadata      *chain.Metadata             `json:"dev_metadata,omitempty"`
	RelayerURL       string                      `json:"relayer_url,omitempty"`
	GatewayChainID   uint64                      `json:"gateway_chain_id,omitempty"`
	// SDKScriptURL is the script a browser session would load the SDK from.
	SDKScriptURL string `json:"sdk_script_url"`
	// DevelopmentInstance reports that a session would be built against the
	// node directly instead of through the relayer.
	DevelopmentInstance bool `json:"development_instance"`
}

// SignatureStatus describes the cached decryption authorization of a user.
// Key material is never included.
type SignatureStatus struct {
	User           common.Address   `json:"user"`
	Contracts      []common.Address `json:"contracts"`
	Cached         bool             `json:"cached"`
	StartTimestamp int64            `json:"start_timestamp,omitempty"`
	DurationDays   int              `json:"duration_days,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
}

// Inspector resolves chains and infrastructure addresses the same way a
// session build does, without loading the relayer SDK.
type Inspector struct {
	conn      chain.Connection
	chainID   uint64
	devChains chain.DevChains
	defaults  *sdk.Config
	prober    session.Prober
	env       session.EnvLookup
	logger    *zap.Logger
	session   config.FHEVMConfig

	signatures *decrypt.Manager
	store      kvstore.Store
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the inspector logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Inspector) { i.logger = l }
}

// WithExpectedChainID makes Inspect fail when the connection is on another
// chain. Zero disables the check.
func WithExpectedChainID(id uint64) Option {
	return func(i *Inspector) { i.chainID = id }
}

// WithDevChains extends the built-in development chain table.
func WithDevChains(d chain.DevChains) Option {
	return func(i *Inspector) { i.devChains = d }
}

// WithDefaults replaces the production defaults addresses are resolved from.
func WithDefaults(cfg *sdk.Config) Option {
	return func(i *Inspector) { i.defaults = cfg }
}

// WithProber replaces the development node prober.
func WithProber(p session.Prober) Option {
	return func(i *Inspector) { i.prober = p }
}

// WithEnv sets where address overrides are read from.
func WithEnv(env session.EnvLookup) Option {
	return func(i *Inspector) { i.env = env }
}

// WithSessionConfig sets the session settings the report reflects.
func WithSessionConfig(cfg config.FHEVMConfig) Option {
	return func(i *Inspector) { i.session = cfg }
}

// WithSignatures sets the signature manager and store used by
// SignatureStatus.
func WithSignatures(m *decrypt.Manager, store kvstore.Store) Option {
	return func(i *Inspector) { i.signatures, i.store = m, store }
}

// New creates an Inspector for conn.
func New(conn chain.Connection, opts ...Option) *Inspector {
	i := &Inspector{
		conn:   conn,
		env:    session.OSEnv,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	if i.defaults == nil {
		i.defaults = sdk.SepoliaDefaults()
	}
	if i.prober == nil {
		i.prober = chain.NewProber(chain.WithProbeLogger(i.logger))
	}
	if i.signatures == nil {
		i.signatures = decrypt.NewManager(decrypt.WithLogger(i.logger))
	}
	if i.store == nil {
		i.store = kvstore.Noop{}
	}
	return i
}

// Inspect classifies the chain behind the connection and resolves the
// infrastructure addresses a session would use.
func (i *Inspector) Inspect(ctx context.Context) (*Report, error) {
	if i.conn.IsZero() {
		return nil, apperrors.InvalidConfigError(nil, "connection is required")
	}
	cls, err := chain.Resolve(ctx, i.conn, i.devChains)
	if err != nil {
		return nil, err
	}
	if i.chainID != 0 && i.chainID != cls.ChainID {
		return nil, apperrors.InvalidConfigError(nil,
			fmt.Sprintf("connection is on chain %d, expected %d", cls.ChainID, i.chainID))
	}

	var meta *chain.Metadata
	if cls.IsDevelopment && cls.RPCURL != "" {
		meta, _ = i.prober.Probe(ctx, cls.RPCURL)
	}

	addrs, ignored := session.ResolveAddresses(i.defaults.Addresses, meta, i.env)
	for _, key := range ignored {
		i.logger.Warn("ignoring malformed address override", zap.String("env", key))
	}
	if addrs.ACL == (common.Address{}) {
		return nil, apperrors.InvalidConfigError(nil, "invalid ACL address: zero address")
	}

	report := &Report{
		Classification:   cls,
		Addresses:        addrs,
		IgnoredOverrides: ignored,
		DevMetadata:      meta,
		SDKScriptURL:     loader.SDKCDNURL,

		DevelopmentInstance: i.session.DevelopmentInstances && cls.IsDevelopment && meta != nil,
	}
	if i.session.SDKURL != "" {
		report.SDKScriptURL = i.session.SDKURL
	}
	if !cls.IsDevelopment {
		report.RelayerURL = i.defaults.RelayerURL
		report.GatewayChainID = i.defaults.GatewayChainID
	}
	i.logger.Debug("inspected chain",
		zap.Uint64("chain_id", cls.ChainID),
		zap.Bool("development", cls.IsDevelopment),
		zap.String("acl_address", addrs.ACL.Hex()))
	return report, nil
}

// SignatureStatus reports whether a valid decryption authorization of user
// covering contracts is cached.
func (i *Inspector) SignatureStatus(ctx context.Context, user common.Address, contracts []common.Address) (*SignatureStatus, error) {
	if user == (common.Address{}) {
		return nil, apperrors.BadRequestError(nil, "user address is required")
	}
	if len(contracts) == 0 {
		return nil, apperrors.BadRequestError(nil, "at least one contract address is required")
	}
	normalized := decrypt.NormalizeContracts(contracts)
	status := &SignatureStatus{User: user, Contracts: normalized}

	sig, ok := i.signatures.Lookup(ctx, user, normalized, i.store)
	if !ok {
		return status, nil
	}
	expires := sig.ExpiresAt().UTC()
	status.Cached = true
	status.StartTimestamp = sig.StartTimestamp
	status.DurationDays = sig.DurationDays
	status.ExpiresAt = &expires
	return status, nil
}

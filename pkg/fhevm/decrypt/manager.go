// Package decrypt issues, caches and uses user-decryption authorizations:
// a wallet signs an EIP-712 request once per (user, contract set) and the
// result is reused from a key/value store until it expires.
package decrypt

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/internal/metrics"
	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
)

// DefaultDurationDays is the validity window of newly issued signatures.
const DefaultDurationDays = 365

// Manager loads cached decryption signatures or has a signer issue new ones.
type Manager struct {
	logger       *zap.Logger
	now          func() time.Time
	durationDays int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDurationDays sets the validity of new signatures. Non-positive values
// keep the default.
func WithDurationDays(days int) Option {
	return func(m *Manager) {
		if days > 0 {
			m.durationDays = days
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:       zap.NewNop(),
		now:          time.Now,
		durationDays: DefaultDurationDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// DurationDays returns the validity window used for new signatures.
func (m *Manager) DurationDays() int { return m.durationDays }

// Lookup returns the cached signature of user for contracts when it is
// still valid and covers every contract. Entries that are expired or cannot
// be decoded are removed from store.
func (m *Manager) Lookup(ctx context.Context, user common.Address, contracts []common.Address, store kvstore.Store) (*Signature, bool) {
	if store == nil {
		return nil, false
	}
	normalized := NormalizeContracts(contracts)
	key := Key(user, normalized)
	log := m.logger.With(zap.String("user_address", user.Hex()), zap.String("key", key))

	raw, ok, err := store.GetItem(ctx, key)
	if err != nil {
		log.Warn("signature store read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	sig, err := decodeSignature(raw)
	switch {
	case err != nil:
		log.Warn("discarding undecodable decryption signature", zap.Error(err))
		m.remove(ctx, store, key, log)
		return nil, false
	case !sig.ValidAt(m.now()) || sig.UserAddress != user:
		log.Debug("discarding expired decryption signature", zap.Time("expired_at", sig.ExpiresAt()))
		m.remove(ctx, store, key, log)
		return nil, false
	case !sig.Covers(normalized...):
		return nil, false
	}
	return sig, true
}

func (m *Manager) remove(ctx context.Context, store kvstore.Store, key string, log *zap.Logger) {
	if err := store.RemoveItem(ctx, key); err != nil {
		log.Warn("failed to remove decryption signature", zap.Error(err))
	}
}

// LoadOrSign returns a valid signature of signer's account for contracts,
// issuing a new one (one signing prompt) when the store holds none.
// Store failures never fail the call: reads degrade to a miss and writes are
// logged.
func (m *Manager) LoadOrSign(ctx context.Context, inst sdk.Instance, contracts []common.Address, signer Signer, store kvstore.Store) (*Signature, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	if inst == nil || signer == nil {
		return nil, apperrors.BadRequestError(nil, "instance and signer are required")
	}
	if len(contracts) == 0 {
		return nil, apperrors.BadRequestError(nil, "at least one contract address is required")
	}
	if store == nil {
		store = kvstore.Noop{}
	}
	normalized := NormalizeContracts(contracts)

	user, err := signer.Address(ctx)
	if err != nil {
		return nil, abortOr(ctx, apperrors.SignatureError(err, "failed to resolve signer address"))
	}

	if sig, ok := m.Lookup(ctx, user, normalized, store); ok {
		metrics.DecryptionSignatures.WithLabelValues("cached").Inc()
		return sig, nil
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	sig, err := m.sign(ctx, inst, user, normalized, signer)
	if err != nil {
		metrics.DecryptionSignatures.WithLabelValues("declined").Inc()
		return nil, err
	}
	metrics.DecryptionSignatures.WithLabelValues("signed").Inc()

	key := Key(user, normalized)
	log := m.logger.With(zap.String("user_address", user.Hex()), zap.String("key", key))
	if encoded, err := sig.encode(); err != nil {
		log.Warn("failed to encode decryption signature", zap.Error(err))
	} else if err := store.SetItem(ctx, key, encoded); err != nil {
		log.Warn("failed to persist decryption signature", zap.Error(err))
	}
	log.Info("issued decryption signature",
		zap.Int("contracts", len(normalized)),
		zap.Int("duration_days", sig.DurationDays))
	return sig, nil
}

func (m *Manager) sign(ctx context.Context, inst sdk.Instance, user common.Address, contracts []common.Address, signer Signer) (*Signature, error) {
	kp, err := inst.GenerateKeypair()
	if err != nil {
		return nil, apperrors.SignatureError(err, "failed to generate decryption keypair")
	}
	start := m.now().Unix()
	td, err := inst.CreateEIP712(kp.PublicKey, contracts, start, m.durationDays)
	if err != nil {
		return nil, apperrors.SignatureError(err, "failed to build decryption authorization")
	}
	if td == nil {
		return nil, apperrors.SignatureError(errors.New("instance returned no typed data"), "failed to build decryption authorization")
	}

	raw, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return nil, abortOr(ctx, apperrors.SignatureError(err, "signer declined to sign decryption authorization"))
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	return &Signature{
		PublicKey:         kp.PublicKey,
		PrivateKey:        kp.PrivateKey,
		Signature:         hexutil.Encode(raw),
		StartTimestamp:    start,
		DurationDays:      m.durationDays,
		UserAddress:       user,
		ContractAddresses: contracts,
		EIP712:            td,
	}, nil
}

func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.AbortedError(err)
	}
	return nil
}

func abortOr(ctx context.Context, err error) error {
	if cerr := checkpoint(ctx); cerr != nil {
		return cerr
	}
	return err
}

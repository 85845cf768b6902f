package decrypt

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk/sdktest"
	"github.com/chainsafe/fhevm-session/pkg/kvstore"
	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

var (
	vault    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	governor = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	day      = 24 * time.Hour
)

type fixture struct {
	key    *ecdsa.PrivateKey
	user   common.Address
	signer *countingSigner
	inst   *sdktest.Instance
	store  *kvstore.Memory
	clock  *clock
	mgr    *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	f := &fixture{
		key:    key,
		user:   crypto.PubkeyToAddress(key.PublicKey),
		signer: &countingSigner{Signer: NewKeySigner(key)},
		inst:   sdktest.NewInstance(*sdk.SepoliaDefaults()),
		store:  kvstore.NewMemory(),
		clock:  newClock(time.Unix(1_750_000_000, 0)),
	}
	f.mgr = NewManager(append([]Option{WithClock(f.clock.Now)}, opts...)...)
	return f
}

func (f *fixture) loadOrSign(t *testing.T, contracts ...common.Address) *Signature {
	t.Helper()
	sig, err := f.mgr.LoadOrSign(context.Background(), f.inst, contracts, f.signer, f.store)
	require.NoError(t, err)
	return sig
}

func TestKey(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000Cc")

	k := Key(user, []common.Address{vault, governor})
	assert.Equal(t, k, Key(user, []common.Address{governor, vault, governor}))
	assert.Len(t, k, len(KeyPrefix)+64)
	assert.Contains(t, k, KeyPrefix)
	assert.NotEqual(t, k, Key(vault, []common.Address{vault, governor}))
	assert.NotEqual(t, k, Key(user, []common.Address{vault}))
}

func TestNormalizeContracts(t *testing.T) {
	in := []common.Address{governor, vault, governor}
	assert.Equal(t, []common.Address{vault, governor}, NormalizeContracts(in))
	assert.Equal(t, []common.Address{governor, vault, governor}, in, "input must not be modified")
}

func TestLoadOrSign_OnePromptPerWindow(t *testing.T) {
	f := newFixture(t)

	first := f.loadOrSign(t, vault)
	f.clock.Advance(364 * day)
	second := f.loadOrSign(t, vault)

	assert.Equal(t, int64(1), f.signer.prompts.Load())
	assert.Equal(t, 1, f.inst.Keypairs())
	assert.Equal(t, first, second)
	assert.Equal(t, f.user, first.UserAddress)
	assert.Equal(t, DefaultDurationDays, first.DurationDays)
	assert.Equal(t, f.clock.Now().Add(-364*day).Unix(), first.StartTimestamp)
}

func TestLoadOrSign_ContractOrderDoesNotMatter(t *testing.T) {
	f := newFixture(t)

	f.loadOrSign(t, governor, vault, vault)
	sig := f.loadOrSign(t, vault, governor)

	assert.Equal(t, int64(1), f.signer.prompts.Load())
	assert.Equal(t, []common.Address{vault, governor}, sig.ContractAddresses)
}

func TestLoadOrSign_ResignsAfterExpiry(t *testing.T) {
	f := newFixture(t)

	first := f.loadOrSign(t, vault)
	f.clock.Advance(365 * day)
	second := f.loadOrSign(t, vault)

	assert.Equal(t, int64(2), f.signer.prompts.Load())
	assert.Greater(t, second.StartTimestamp, first.StartTimestamp)
	assert.NotEqual(t, first.Signature, second.Signature)

	raw, ok, err := f.store.GetItem(context.Background(), Key(f.user, []common.Address{vault}))
	require.NoError(t, err)
	require.True(t, ok)
	stored, err := decodeSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, second.Signature, stored.Signature)
	assert.Equal(t, 1, f.store.Len())
}

func TestLoadOrSign_SignatureRecoversToUser(t *testing.T) {
	f := newFixture(t)
	sig := f.loadOrSign(t, vault)

	require.NotNil(t, sig.EIP712)
	got, err := wallet.RecoverTypedDataSigner(*sig.EIP712, hexutil.MustDecode(sig.Signature))
	require.NoError(t, err)
	assert.Equal(t, f.user, got)
}

func TestLoadOrSign_NoopStoreSignsEveryTime(t *testing.T) {
	f := newFixture(t)
	for range 2 {
		_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, f.signer, kvstore.Noop{})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), f.signer.prompts.Load())

	_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, f.signer, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.signer.prompts.Load())
}

func TestLoadOrSign_StoreFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	for range 2 {
		_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, f.signer, failingStore{})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), f.signer.prompts.Load())
}

func TestLoadOrSign_DiscardsUndecodableEntry(t *testing.T) {
	f := newFixture(t)
	key := Key(f.user, []common.Address{vault})
	require.NoError(t, f.store.SetItem(context.Background(), key, "{not json"))

	sig := f.loadOrSign(t, vault)
	assert.Equal(t, int64(1), f.signer.prompts.Load())

	raw, ok, err := f.store.GetItem(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	stored, err := decodeSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, sig.Signature, stored.Signature)
}

func TestLoadOrSign_CustomDuration(t *testing.T) {
	f := newFixture(t, WithDurationDays(7))
	assert.Equal(t, 7, f.mgr.DurationDays())

	f.loadOrSign(t, vault)
	f.clock.Advance(7 * day)
	f.loadOrSign(t, vault)
	assert.Equal(t, int64(2), f.signer.prompts.Load())
}

func TestLoadOrSign_Failures(t *testing.T) {
	t.Run("signer declines", func(t *testing.T) {
		f := newFixture(t)
		signer := &mockSigner{
			AddressFunc: func(context.Context) (common.Address, error) { return f.user, nil },
			SignTypedDataFunc: func(context.Context, *apitypes.TypedData) ([]byte, error) {
				return nil, errDeclined
			},
		}
		_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, signer, f.store)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CategorySignature))
		assert.True(t, errors.Is(err, errDeclined))
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("instance cannot build authorization", func(t *testing.T) {
		f := newFixture(t)
		f.inst.EIP712Err = errors.New("unsupported contract list")
		_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, f.signer, f.store)
		assert.True(t, apperrors.Is(err, apperrors.CategorySignature))
		assert.Equal(t, int64(0), f.signer.prompts.Load())
	})

	t.Run("cancelled before start", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.mgr.LoadOrSign(ctx, f.inst, []common.Address{vault}, f.signer, f.store)
		assert.True(t, apperrors.Is(err, apperrors.CategoryAborted))
		assert.Equal(t, int64(0), f.signer.prompts.Load())
	})

	t.Run("cancelled while prompting", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		signer := &mockSigner{
			AddressFunc: func(context.Context) (common.Address, error) { return f.user, nil },
			SignTypedDataFunc: func(ctx context.Context, _ *apitypes.TypedData) ([]byte, error) {
				cancel()
				return nil, ctx.Err()
			},
		}
		_, err := f.mgr.LoadOrSign(ctx, f.inst, []common.Address{vault}, signer, f.store)
		assert.True(t, apperrors.Is(err, apperrors.CategoryAborted))
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("no contracts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.mgr.LoadOrSign(context.Background(), f.inst, nil, f.signer, f.store)
		assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
	})
}

func TestLookup(t *testing.T) {
	f := newFixture(t)
	_, ok := f.mgr.Lookup(context.Background(), f.user, []common.Address{vault}, f.store)
	assert.False(t, ok)

	sig := f.loadOrSign(t, vault)
	got, ok := f.mgr.Lookup(context.Background(), f.user, []common.Address{vault}, f.store)
	require.True(t, ok)
	assert.Equal(t, sig, got)

	f.clock.Advance(366 * day)
	_, ok = f.mgr.Lookup(context.Background(), f.user, []common.Address{vault}, f.store)
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.Len(), "expired entry is removed")
}

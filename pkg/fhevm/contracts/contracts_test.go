package contracts

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// fakeBackend answers eth_call through CallFunc. Any other backend method
// panics through the nil embedded interface.
type fakeBackend struct {
	bind.ContractBackend
	CallFunc func(msg ethereum.CallMsg) ([]byte, error)
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return b.CallFunc(msg)
}

var vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000A1")

func parsed(t *testing.T, abiJSON string) abi.ABI {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return a
}

func TestReadHandle(t *testing.T) {
	vaultABI := parsed(t, VaultABI)
	want := handle.Handle{0xaa, 0xbb}
	user := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	backend := &fakeBackend{CallFunc: func(msg ethereum.CallMsg) ([]byte, error) {
		assert.Equal(t, vaultAddr, *msg.To)
		method, err := vaultABI.MethodById(msg.Data[:4])
		require.NoError(t, err)
		if method.Name == MethodUserMemo {
			args, err := method.Inputs.Unpack(msg.Data[4:])
			require.NoError(t, err)
			assert.Equal(t, user, args[0])
			return method.Outputs.Pack([32]byte{})
		}
		return method.Outputs.Pack([32]byte(want))
	}}

	vault, err := NewVault(vaultAddr, backend)
	require.NoError(t, err)
	assert.Equal(t, vaultAddr, vault.Address())

	got, err := vault.ReadHandle(context.Background(), MethodStandardTotal)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	memo, err := vault.ReadHandle(context.Background(), MethodUserMemo, user)
	require.NoError(t, err)
	assert.True(t, memo.IsZero())

	all, err := ReadHandles(context.Background(), vault,
		[]string{MethodStandardTotal, MethodCrisisTotal, MethodUserMemo},
		map[string][]any{MethodUserMemo: {user}})
	require.NoError(t, err)
	assert.Equal(t, want, all[MethodCrisisTotal])
	assert.True(t, all[MethodUserMemo].IsZero())
}

func TestReadHandle_Errors(t *testing.T) {
	backend := &fakeBackend{CallFunc: func(ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("execution reverted")
	}}
	vault, err := NewVault(vaultAddr, backend)
	require.NoError(t, err)

	_, err = vault.ReadHandle(context.Background(), MethodStandardTotal)
	assert.ErrorContains(t, err, "execution reverted")

	_, err = vault.ReadHandle(context.Background(), "noSuchMethod")
	assert.Error(t, err)
}

func noSendOpts(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(31337))
	require.NoError(t, err)
	opts.NoSend = true
	opts.Nonce = big.NewInt(0)
	opts.GasLimit = 500_000
	opts.GasPrice = big.NewInt(1_000_000_000)
	return opts
}

func TestSubmit(t *testing.T) {
	payload := &sdk.EncryptedPayload{Handles: []handle.Handle{{0x01}}, InputProof: []byte{0xde, 0xad}}

	t.Run("handle and proof", func(t *testing.T) {
		vault, err := NewVault(vaultAddr, &fakeBackend{})
		require.NoError(t, err)

		tx, err := vault.Submit(noSendOpts(t), MethodAccumulateStandard, payload)
		require.NoError(t, err)

		method := parsed(t, VaultABI).Methods[MethodAccumulateStandard]
		assert.Equal(t, method.ID, tx.Data()[:4])
		args, err := method.Inputs.Unpack(tx.Data()[4:])
		require.NoError(t, err)
		assert.Equal(t, [32]byte(payload.Handles[0]), args[0])
		assert.Equal(t, payload.InputProof, args[1])
	})

	t.Run("vote", func(t *testing.T) {
		gov, err := NewGovernance(vaultAddr, &fakeBackend{})
		require.NoError(t, err)

		tx, err := gov.CastVote(noSendOpts(t), big.NewInt(4), true, payload)
		require.NoError(t, err)

		method := parsed(t, GovernanceABI).Methods[MethodCastVote]
		args, err := method.Inputs.Unpack(tx.Data()[4:])
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(4), args[0])
		assert.Equal(t, true, args[1])
		assert.Equal(t, [32]byte(payload.Handles[0]), args[2])
	})

	t.Run("empty payload", func(t *testing.T) {
		vault, err := NewVault(vaultAddr, &fakeBackend{})
		require.NoError(t, err)
		_, err = vault.Submit(noSendOpts(t), MethodSaveMemo, &sdk.EncryptedPayload{})
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})
}

func TestBind_InvalidABI(t *testing.T) {
	_, err := Bind(vaultAddr, "{", &fakeBackend{})
	assert.Error(t, err)
}

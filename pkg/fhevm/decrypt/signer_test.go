package decrypt

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/devnode"
	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

func dialDevnode(t *testing.T, opts ...devnode.Option) *wallet.RPCProvider {
	t.Helper()
	srv, err := devnode.NewServer(31337, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	p, err := wallet.DialRPCProvider(context.Background(), ts.URL)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestProviderSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(key.PublicKey)
	p := dialDevnode(t, devnode.WithAccounts(key))

	f := newFixture(t)
	signer := &countingSigner{Signer: NewProviderSigner(p, common.Address{})}

	addr, err := signer.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user, addr)

	sig, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, signer, f.store)
	require.NoError(t, err)
	assert.Equal(t, user, sig.UserAddress)

	recovered, err := wallet.RecoverTypedDataSigner(*sig.EIP712, hexutil.MustDecode(sig.Signature))
	require.NoError(t, err)
	assert.Equal(t, user, recovered)

	_, err = f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, signer, f.store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), signer.prompts.Load())
}

func TestProviderSigner_UnknownAccount(t *testing.T) {
	p := dialDevnode(t)
	f := newFixture(t)
	stranger := common.HexToAddress("0x00000000000000000000000000000000deadbeef")

	_, err := f.mgr.LoadOrSign(context.Background(), f.inst, []common.Address{vault}, NewProviderSigner(p, stranger), f.store)
	assert.True(t, apperrors.Is(err, apperrors.CategorySignature))
}

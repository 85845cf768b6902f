package devnode

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

func startNode(t *testing.T, opts ...Option) (*Server, *rpc.Client) {
	t.Helper()
	srv, err := NewServer(31337, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Stop)

	client, err := rpc.DialContext(context.Background(), ts.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return srv, client
}

func TestServer_ChainAndVersion(t *testing.T) {
	_, client := startNode(t)
	ctx := context.Background()

	var id hexutil.Uint64
	require.NoError(t, client.CallContext(ctx, &id, "eth_chainId"))
	assert.Equal(t, uint64(31337), uint64(id))

	var version string
	require.NoError(t, client.CallContext(ctx, &version, "web3_clientVersion"))
	assert.Equal(t, DefaultClientVersion, version)

	var netVersion string
	require.NoError(t, client.CallContext(ctx, &netVersion, "net_version"))
	assert.Equal(t, "31337", netVersion)
}

func TestServer_OnlyDevMethods(t *testing.T) {
	_, client := startNode(t)
	ctx := context.Background()

	for _, method := range []string{"web3_sha3", "net_listening", "net_peerCount"} {
		var out json.RawMessage
		assert.Error(t, client.CallContext(ctx, &out, method), method)
	}
}

func TestServer_RelayerMetadata(t *testing.T) {
	meta := Metadata{
		ACLAddress:           common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"),
		InputVerifierAddress: common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
		KMSVerifierAddress:   common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
	}
	_, client := startNode(t, WithMetadata(meta))

	var got Metadata
	require.NoError(t, client.CallContext(context.Background(), &got, "fhevm_relayer_metadata"))
	assert.Equal(t, meta, got)
}

func TestServer_RelayerMetadataUnavailable(t *testing.T) {
	_, client := startNode(t)

	var got json.RawMessage
	err := client.CallContext(context.Background(), &got, "fhevm_relayer_metadata")
	require.Error(t, err)
}

func TestServer_SignTypedData(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	srv, client := startNode(t, WithAccounts(key))
	addr := srv.Accounts()[0]

	var accounts []common.Address
	require.NoError(t, client.CallContext(context.Background(), &accounts, "eth_accounts"))
	assert.Equal(t, []common.Address{addr}, accounts)

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {{Name: "name", Type: "string"}, {Name: "chainId", Type: "uint256"}},
			"Mail":         {{Name: "contents", Type: "string"}},
		},
		PrimaryType: "Mail",
		Domain:      apitypes.TypedDataDomain{Name: "test", ChainId: math.NewHexOrDecimal256(31337)},
		Message:     apitypes.TypedDataMessage{"contents": "hello"},
	}
	encoded, err := json.Marshal(td)
	require.NoError(t, err)

	var sig hexutil.Bytes
	require.NoError(t, client.CallContext(context.Background(), &sig, "eth_signTypedData_v4", addr, string(encoded)))

	signer, err := wallet.RecoverTypedDataSigner(td, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, signer)

	other := common.BigToAddress(big.NewInt(1))
	err = client.CallContext(context.Background(), &sig, "eth_signTypedData_v4", other, string(encoded))
	require.Error(t, err)
}

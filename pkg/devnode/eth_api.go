package devnode

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

// EthAPI implements the eth_* JSON-RPC namespace
type EthAPI struct {
	server *Server
}

// NewEthAPI creates a new EthAPI instance
func NewEthAPI(server *Server) *EthAPI {
	return &EthAPI{server: server}
}

// ChainId returns the chain ID (EIP-155)
func (api *EthAPI) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(api.server.chainID)
}

// BlockNumber returns the latest block number. The node produces no blocks.
func (api *EthAPI) BlockNumber() hexutil.Uint64 {
	return 0
}

// Accounts returns the dev accounts.
func (api *EthAPI) Accounts() []common.Address {
	return api.server.Accounts()
}

// RequestAccounts grants access to the dev accounts without prompting.
func (api *EthAPI) RequestAccounts() []common.Address {
	return api.server.Accounts()
}

// SignTypedData_v4 signs EIP-712 typed data with a dev account. The typed
// data may be passed as a JSON object or as a JSON-encoded string.
func (api *EthAPI) SignTypedData_v4(address common.Address, data json.RawMessage) (hexutil.Bytes, error) { //nolint:revive,stylecheck // wire name
	key, ok := api.server.keys[address]
	if !ok {
		return nil, fmt.Errorf("unknown account %s", address.Hex())
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = json.RawMessage(encoded)
	}
	var td apitypes.TypedData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("invalid typed data: %w", err)
	}

	sig, err := wallet.SignTypedData(key, td)
	if err != nil {
		api.server.logger.Warn("typed data signing failed", zap.String("address", address.Hex()), zap.Error(err))
		return nil, err
	}
	return sig, nil
}

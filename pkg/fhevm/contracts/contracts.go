// Package contracts talks to FHE-enabled contracts through go-ethereum
// bindings. The contracts stay opaque: view methods return ciphertext
// handles and mutating methods take a handle and its input proof.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// VaultABI covers the relief vault methods used by the dashboard.
const VaultABI = `[
  {"type":"function","name":"viewEncryptedStandardTotal","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"viewEncryptedCrisisTotal","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"viewEncryptedUserMemo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"accumulateStandard","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"accumulateCrisis","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"saveMyEncryptedMemo","stateMutability":"nonpayable","inputs":[{"name":"memo","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]}
]`

// GovernanceABI covers encrypted voting.
const GovernanceABI = `[
  {"type":"function","name":"castVote","stateMutability":"nonpayable","inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"bool"},{"name":"weight","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]}
]`

// Vault method names.
const (
	MethodStandardTotal      = "viewEncryptedStandardTotal"
	MethodCrisisTotal        = "viewEncryptedCrisisTotal"
	MethodUserMemo           = "viewEncryptedUserMemo"
	MethodAccumulateStandard = "accumulateStandard"
	MethodAccumulateCrisis   = "accumulateCrisis"
	MethodSaveMemo           = "saveMyEncryptedMemo"
	MethodCastVote           = "castVote"
)

// ErrEmptyPayload is returned when a submission carries no handle.
var ErrEmptyPayload = errors.New("encrypted payload has no handle")

// HandleReader reads ciphertext handles from view methods.
type HandleReader interface {
	ReadHandle(ctx context.Context, method string, args ...any) (handle.Handle, error)
}

// Contract is a bound FHE-enabled contract.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

// Bind parses abiJSON and binds it at address over backend.
func Bind(address common.Address, abiJSON string, backend bind.ContractBackend) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}
	return &Contract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// NewVault binds the relief vault at address.
func NewVault(address common.Address, backend bind.ContractBackend) (*Contract, error) {
	return Bind(address, VaultABI, backend)
}

// NewGovernance binds the governance contract at address.
func NewGovernance(address common.Address, backend bind.ContractBackend) (*Contract, error) {
	return Bind(address, GovernanceABI, backend)
}

// Address returns the contract address.
func (c *Contract) Address() common.Address { return c.address }

// ReadHandle calls a view method returning bytes32.
func (c *Contract) ReadHandle(ctx context.Context, method string, args ...any) (handle.Handle, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return handle.Handle{}, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) != 1 {
		return handle.Handle{}, fmt.Errorf("call %s: expected 1 output, got %d", method, len(out))
	}
	raw, ok := abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	if !ok {
		return handle.Handle{}, fmt.Errorf("call %s: output is not bytes32", method)
	}
	return handle.FromBytes32(*raw), nil
}

// Submit sends method with the payload's first handle and its proof,
// preceded by leading arguments: (handle, proof) when leading is empty,
// (proposalId, support, handle, proof) for a vote.
func (c *Contract) Submit(opts *bind.TransactOpts, method string, payload *sdk.EncryptedPayload, leading ...any) (*types.Transaction, error) {
	if payload == nil || len(payload.Handles) == 0 {
		return nil, ErrEmptyPayload
	}
	args := append(append([]any(nil), leading...), [32]byte(payload.Handles[0]), payload.InputProof)
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("transact %s: %w", method, err)
	}
	return tx, nil
}

// CastVote submits an encrypted vote weight for proposalID.
func (c *Contract) CastVote(opts *bind.TransactOpts, proposalID *big.Int, support bool, payload *sdk.EncryptedPayload) (*types.Transaction, error) {
	return c.Submit(opts, MethodCastVote, payload, proposalID, support)
}

// ReadHandles reads each method through r, in order. Methods that take
// arguments pass them through args keyed by method name.
func ReadHandles(ctx context.Context, r HandleReader, methods []string, args map[string][]any) (map[string]handle.Handle, error) {
	out := make(map[string]handle.Handle, len(methods))
	for _, m := range methods {
		h, err := r.ReadHandle(ctx, m, args[m]...)
		if err != nil {
			return nil, err
		}
		out[m] = h
	}
	return out, nil
}

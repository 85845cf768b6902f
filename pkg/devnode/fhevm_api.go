package devnode

import (
	"encoding/json"
	"errors"
)

var errNoMetadata = errors.New("the method fhevm_relayer_metadata does not exist/is not available")

// FhevmAPI implements the fhevm_* JSON-RPC namespace
type FhevmAPI struct {
	server *Server
}

// NewFhevmAPI creates a new FhevmAPI instance
func NewFhevmAPI(server *Server) *FhevmAPI {
	return &FhevmAPI{server: server}
}

// Relayer_metadata returns the infrastructure addresses of the node.
func (api *FhevmAPI) Relayer_metadata() (json.RawMessage, error) { //nolint:revive,stylecheck // wire name
	if api.server.metadata == nil {
		return nil, errNoMetadata
	}
	return api.server.metadata, nil
}

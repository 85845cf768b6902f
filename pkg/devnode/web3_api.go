package devnode

import "strconv"

// Web3API implements the web3_* JSON-RPC namespace
type Web3API struct {
	server *Server
}

// NewWeb3API creates a new Web3API instance
func NewWeb3API(server *Server) *Web3API {
	return &Web3API{server: server}
}

// ClientVersion returns the client version the probe matches on.
func (api *Web3API) ClientVersion() string {
	return api.server.clientVersion
}

// NetAPI implements the net_* JSON-RPC namespace
type NetAPI struct {
	server *Server
}

// NewNetAPI creates a new NetAPI instance
func NewNetAPI(server *Server) *NetAPI {
	return &NetAPI{server: server}
}

// Version returns the network ID, which equals the chain ID on a dev node.
func (api *NetAPI) Version() string {
	return strconv.FormatUint(api.server.chainID, 10)
}

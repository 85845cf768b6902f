package chain

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/internal/metrics"
)

const (
	clientVersionMethod = "web3_clientVersion"
	metadataMethod      = "fhevm_relayer_metadata"
	devClientMarker     = "hardhat"
)

const metadataSchemaJSON = `{
	"type": "object",
	"required": ["ACLAddress", "InputVerifierAddress", "KMSVerifierAddress"],
	"properties": {
		"ACLAddress":           {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
		"InputVerifierAddress": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
		"KMSVerifierAddress":   {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"}
	}
}`

var metadataSchema = mustCompileSchema(metadataSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("chain: invalid metadata schema: " + err.Error())
	}
	return s
}

// Metadata is the infrastructure address set a development node reports.
type Metadata struct {
	ACLAddress           common.Address `json:"ACLAddress"`
	InputVerifierAddress common.Address `json:"InputVerifierAddress"`
	KMSVerifierAddress   common.Address `json:"KMSVerifierAddress"`
}

// Prober queries development nodes for relayer metadata.
type Prober struct {
	logger *zap.Logger
}

// ProbeOption configures a Prober.
type ProbeOption func(*Prober)

// WithProbeLogger sets the prober logger.
func WithProbeLogger(l *zap.Logger) ProbeOption {
	return func(p *Prober) { p.logger = l }
}

// NewProber creates a Prober.
func NewProber(opts ...ProbeOption) *Prober {
	p := &Prober{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Probe reports the metadata of a Hardhat-style development node at rpcURL.
// It returns false for any other node and for every failure.
func Probe(ctx context.Context, rpcURL string) (*Metadata, bool) {
	return NewProber().Probe(ctx, rpcURL)
}

// Probe reports the metadata of a Hardhat-style development node at rpcURL.
// It returns false for any other node and for every failure; the cause is
// logged at debug level.
func (p *Prober) Probe(ctx context.Context, rpcURL string) (*Metadata, bool) {
	log := p.logger.With(zap.String("rpc_url", rpcURL))

	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		log.Debug("dev probe dial failed", zap.Error(err))
		metrics.DevProbeTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	defer client.Close()

	var version string
	if err := client.CallContext(ctx, &version, clientVersionMethod); err != nil {
		log.Debug("dev probe client version failed", zap.Error(err))
		metrics.DevProbeTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	if !strings.Contains(strings.ToLower(version), devClientMarker) {
		log.Debug("node is not a development node", zap.String("client_version", version))
		metrics.DevProbeTotal.WithLabelValues("not_dev_node").Inc()
		return nil, false
	}

	var raw json.RawMessage
	if err := client.CallContext(ctx, &raw, metadataMethod); err != nil {
		log.Debug("dev probe metadata call failed", zap.Error(err))
		metrics.DevProbeTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	meta, err := decodeMetadata(raw)
	if err != nil {
		log.Debug("dev probe metadata rejected", zap.Error(err))
		metrics.DevProbeTotal.WithLabelValues("invalid").Inc()
		return nil, false
	}

	log.Debug("dev probe found relayer metadata",
		zap.String("acl_address", meta.ACLAddress.Hex()),
		zap.String("input_verifier_address", meta.InputVerifierAddress.Hex()),
		zap.String("kms_verifier_address", meta.KMSVerifierAddress.Hex()))
	metrics.DevProbeTotal.WithLabelValues("found").Inc()
	return meta, true
}

func decodeMetadata(raw json.RawMessage) (*Metadata, error) {
	result, err := metadataSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return nil, &schemaError{msg: b.String()}
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type schemaError struct{ msg string }

func (e *schemaError) Error() string { return "metadata does not match schema: " + e.msg }

//go:build js && wasm

package loader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"strconv"
	"syscall/js"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/chainsafe/fhevm-session/internal/jsbridge"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// DefaultHost returns the page the program runs in.
func DefaultHost() Host { return browserHost{} }

type browserHost struct{}

func (browserHost) LookupGlobal(name string) (any, bool) {
	v := js.Global().Get(name)
	if v.IsUndefined() || v.IsNull() {
		return nil, false
	}
	if !isRelayerSDK(v) {
		return v, true
	}
	return &jsSDK{v: v}, true
}

func (browserHost) FindScript(src string) (Script, bool) {
	doc := js.Global().Get("document")
	el := doc.Call("querySelector", fmt.Sprintf("script[src=%q]", src))
	if el.IsNull() || el.IsUndefined() {
		return nil, false
	}
	return newScriptWaiter(el), true
}

func (browserHost) InjectScript(src string) (Script, error) {
	doc := js.Global().Get("document")
	el := doc.Call("createElement", "script")
	el.Set("src", src)
	el.Set("type", "text/javascript")
	el.Set("async", true)
	w := newScriptWaiter(el)
	doc.Get("head").Call("appendChild", el)
	return w, nil
}

func isRelayerSDK(v js.Value) bool {
	if v.Type() != js.TypeObject {
		return false
	}
	return v.Get("initSDK").Type() == js.TypeFunction &&
		v.Get("createInstance").Type() == js.TypeFunction &&
		v.Get("SepoliaConfig").Type() == js.TypeObject
}

// scriptWaiter attaches load and error listeners as soon as it is created
// so an outcome that happens before Wait is not lost.
type scriptWaiter struct {
	done chan error
}

func newScriptWaiter(el js.Value) *scriptWaiter {
	w := &scriptWaiter{done: make(chan error, 1)}
	var onLoad, onError js.Func
	settle := func(err error) {
		el.Call("removeEventListener", "load", onLoad)
		el.Call("removeEventListener", "error", onError)
		onLoad.Release()
		onError.Release()
		w.done <- err
	}
	onLoad = js.FuncOf(func(js.Value, []js.Value) any {
		settle(nil)
		return nil
	})
	onError = js.FuncOf(func(js.Value, []js.Value) any {
		settle(errors.New("script error"))
		return nil
	})
	el.Call("addEventListener", "load", onLoad)
	el.Call("addEventListener", "error", onError)
	return w
}

func (w *scriptWaiter) Wait(ctx context.Context) error {
	select {
	case err := <-w.done:
		w.done <- err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jsSDK adapts the relayerSDK global to sdk.SDK.
type jsSDK struct {
	v js.Value
}

func (s *jsSDK) InitSDK(ctx context.Context) error {
	res, err := jsbridge.Await(ctx, s.v.Call("initSDK"))
	if err != nil {
		return err
	}
	if res.Type() == js.TypeBoolean && !res.Bool() {
		return errors.New("initSDK returned false")
	}
	return nil
}

func (s *jsSDK) DefaultConfig() *sdk.Config {
	c := s.v.Get("SepoliaConfig")
	if c.Type() != js.TypeObject {
		return nil
	}
	cfg := &sdk.Config{
		Addresses: sdk.InfrastructureAddresses{
			ACL:           addressField(c, "aclContractAddress"),
			InputVerifier: addressField(c, "inputVerifierContractAddress"),
			KMSVerifier:   addressField(c, "kmsContractAddress"),
		},
		VerifyingContractDecryption:        addressField(c, "verifyingContractAddressDecryption"),
		VerifyingContractInputVerification: addressField(c, "verifyingContractAddressInputVerification"),
		ChainID:                            uintField(c, "chainId"),
		GatewayChainID:                     uintField(c, "gatewayChainId"),
		RelayerURL:                         stringField(c, "relayerUrl"),
	}
	return cfg
}

func (s *jsSDK) CreateInstance(ctx context.Context, cfg sdk.Config) (sdk.Instance, error) {
	c := js.Global().Get("Object").New()
	c.Set("aclContractAddress", cfg.Addresses.ACL.Hex())
	c.Set("kmsContractAddress", cfg.Addresses.KMSVerifier.Hex())
	c.Set("inputVerifierContractAddress", cfg.Addresses.InputVerifier.Hex())
	c.Set("verifyingContractAddressDecryption", cfg.VerifyingContractDecryption.Hex())
	c.Set("verifyingContractAddressInputVerification", cfg.VerifyingContractInputVerification.Hex())
	c.Set("chainId", float64(cfg.ChainID))
	c.Set("gatewayChainId", float64(cfg.GatewayChainID))
	c.Set("relayerUrl", cfg.RelayerURL)
	callbacks := &releaser{}
	c.Set("network", networkValue(cfg, callbacks))

	if len(cfg.PublicKey) > 0 {
		if pk, err := decodeKeyMaterial(cfg.PublicKey); err == nil {
			c.Set("publicKey", pk.jsObject("data"))
		}
	}
	if len(cfg.PublicParams) > 0 {
		if pp, err := decodeKeyMaterial(cfg.PublicParams); err == nil {
			params := js.Global().Get("Object").New()
			params.Set(strconv.Itoa(sdk.PublicParamsBits), pp.jsObject("publicParams"))
			c.Set("publicParams", params)
		}
	}

	v, err := jsbridge.Await(ctx, s.v.Call("createInstance", c))
	if err != nil {
		callbacks.release()
		return nil, err
	}
	inst := &jsInstance{v: v, callbacks: callbacks}
	runtime.AddCleanup(inst, (*releaser).release, callbacks)
	return inst, nil
}

// networkValue renders the connection for the SDK. Go functions handed to
// JavaScript are registered on callbacks.
func networkValue(cfg sdk.Config, callbacks *releaser) any {
	if u, ok := cfg.Network.RPCURL(); ok {
		return u
	}
	p, ok := cfg.Network.WalletProvider()
	if !ok {
		return js.Undefined()
	}
	if jv, ok := p.(interface{ JSValue() js.Value }); ok {
		return jv.JSValue()
	}

	// A Go provider is exposed to the SDK as an EIP-1193 request function.
	obj := js.Global().Get("Object").New()
	request := js.FuncOf(func(_ js.Value, args []js.Value) any {
		method := args[0].Get("method").String()
		var params []any
		if raw := args[0].Get("params"); !raw.IsUndefined() && !raw.IsNull() {
			_ = json.Unmarshal([]byte(jsbridge.Stringify(raw)), &params)
		}
		executor := js.FuncOf(func(_ js.Value, pa []js.Value) any {
			resolve, reject := pa[0], pa[1]
			go func() {
				res, err := p.Request(context.Background(), method, params...)
				if err != nil {
					reject.Invoke(js.Global().Get("Error").New(err.Error()))
					return
				}
				resolve.Invoke(jsbridge.Parse(res))
			}()
			return nil
		})
		// The Promise constructor runs the executor synchronously.
		promise := js.Global().Get("Promise").New(executor)
		executor.Release()
		return promise
	})
	callbacks.add(request.Release)
	obj.Set("request", request)
	return obj
}

// keyMaterial is the cached form of a public key or public parameter set.
type keyMaterial struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func encodeKeyMaterial(id string, data []byte) []byte {
	raw, _ := json.Marshal(keyMaterial{ID: id, Data: base64.StdEncoding.EncodeToString(data)})
	return raw
}

func decodeKeyMaterial(raw []byte) (keyMaterial, error) {
	var km keyMaterial
	if err := json.Unmarshal(raw, &km); err != nil {
		return km, err
	}
	if _, err := base64.StdEncoding.DecodeString(km.Data); err != nil {
		return km, err
	}
	return km, nil
}

func (km keyMaterial) jsObject(dataField string) js.Value {
	data, _ := base64.StdEncoding.DecodeString(km.Data)
	obj := js.Global().Get("Object").New()
	obj.Set("id", km.ID)
	if dataField == "publicParams" {
		obj.Set("publicParamsId", km.ID)
	}
	obj.Set(dataField, jsbridge.Uint8Array(data))
	return obj
}

type jsInstance struct {
	v         js.Value
	callbacks *releaser
}

// Close releases the Go callbacks the instance was created with. The
// instance must not be used afterwards.
func (i *jsInstance) Close() error {
	i.callbacks.release()
	return nil
}

func (i *jsInstance) CreateEncryptedInput(contract, user common.Address) sdk.EncryptedInput {
	return &jsInput{v: i.v.Call("createEncryptedInput", contract.Hex(), user.Hex())}
}

func (i *jsInstance) GenerateKeypair() (kp sdk.Keypair, err error) {
	defer recoverJS(&err)
	v := i.v.Call("generateKeypair")
	return sdk.Keypair{
		PublicKey:  v.Get("publicKey").String(),
		PrivateKey: v.Get("privateKey").String(),
	}, nil
}

func (i *jsInstance) CreateEIP712(publicKey string, contracts []common.Address, start int64, days int) (td *apitypes.TypedData, err error) {
	defer recoverJS(&err)
	addrs := make([]any, len(contracts))
	for idx, c := range contracts {
		addrs[idx] = c.Hex()
	}
	v := i.v.Call("createEIP712", publicKey, js.ValueOf(addrs), float64(start), days)

	td = new(apitypes.TypedData)
	if err := json.Unmarshal([]byte(jsbridge.Stringify(v)), td); err != nil {
		return nil, fmt.Errorf("decode typed data: %w", err)
	}
	return td, nil
}

func (i *jsInstance) UserDecrypt(ctx context.Context, reqs []sdk.HandleContractPair, auth sdk.DecryptAuthorization) (map[handle.Handle]*big.Int, error) {
	pairs := make([]any, len(reqs))
	for idx, r := range reqs {
		pairs[idx] = map[string]any{"handle": r.Handle.Hex(), "contractAddress": r.Contract.Hex()}
	}
	contracts := make([]any, len(auth.ContractAddresses))
	for idx, c := range auth.ContractAddresses {
		contracts[idx] = c.Hex()
	}

	res, err := jsbridge.Await(ctx, i.v.Call("userDecrypt",
		js.ValueOf(pairs),
		auth.PrivateKey,
		auth.PublicKey,
		auth.Signature,
		js.ValueOf(contracts),
		auth.UserAddress.Hex(),
		float64(auth.StartTimestamp),
		auth.DurationDays,
	))
	if err != nil {
		return nil, err
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsbridge.Stringify(res)), &decoded); err != nil {
		return nil, fmt.Errorf("decode decryption result: %w", err)
	}
	out := make(map[handle.Handle]*big.Int, len(decoded))
	for key, raw := range decoded {
		h, err := handle.Parse(key)
		if err != nil {
			return nil, err
		}
		v, err := parseClearValue(raw)
		if err != nil {
			return nil, fmt.Errorf("handle %s: %w", key, err)
		}
		out[h] = v
	}
	return out, nil
}

// parseClearValue accepts decimal strings (from BigInt), numbers and booleans.
func parseClearValue(raw json.RawMessage) (*big.Int, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid clear value %s", raw)
	}
	return v, nil
}

func (i *jsInstance) PublicKey() []byte {
	pk := i.v.Call("getPublicKey")
	if pk.IsNull() || pk.IsUndefined() {
		return nil
	}
	return encodeKeyMaterial(stringField(pk, "publicKeyId"), jsbridge.Bytes(pk.Get("publicKey")))
}

func (i *jsInstance) PublicParams(bits int) []byte {
	pp := i.v.Call("getPublicParams", bits)
	if pp.IsNull() || pp.IsUndefined() {
		return nil
	}
	return encodeKeyMaterial(stringField(pp, "publicParamsId"), jsbridge.Bytes(pp.Get("publicParams")))
}

type jsInput struct {
	v js.Value
}

func (in *jsInput) Add32(v uint32) { in.v.Call("add32", float64(v)) }

func (in *jsInput) Add64(v uint64) {
	in.v.Call("add64", js.Global().Get("BigInt").Invoke(strconv.FormatUint(v, 10)))
}

func (in *jsInput) Encrypt(ctx context.Context) (*sdk.EncryptedPayload, error) {
	res, err := jsbridge.Await(ctx, in.v.Call("encrypt"))
	if err != nil {
		return nil, err
	}
	handles := res.Get("handles")
	out := &sdk.EncryptedPayload{InputProof: jsbridge.Bytes(res.Get("inputProof"))}
	for idx := 0; idx < handles.Length(); idx++ {
		var h handle.Handle
		copy(h[:], jsbridge.Bytes(handles.Index(idx)))
		out.Handles = append(out.Handles, h)
	}
	return out, nil
}

func addressField(v js.Value, name string) common.Address {
	s := stringField(v, name)
	if !common.IsHexAddress(s) {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func stringField(v js.Value, name string) string {
	f := v.Get(name)
	if f.Type() != js.TypeString {
		return ""
	}
	return f.String()
}

func uintField(v js.Value, name string) uint64 {
	f := v.Get(name)
	switch f.Type() {
	case js.TypeNumber:
		return uint64(f.Float())
	case js.TypeString:
		n, _ := hexutil.DecodeUint64(f.String())
		if n == 0 {
			n, _ = strconv.ParseUint(f.String(), 10, 64)
		}
		return n
	default:
		return 0
	}
}

// recoverJS turns a panic raised by a throwing JavaScript call into err.
func recoverJS(err *error) {
	if r := recover(); r != nil {
		if jsErr, ok := r.(js.Error); ok {
			*err = jsbridge.Error(jsErr.Value)
			return
		}
		panic(r)
	}
}

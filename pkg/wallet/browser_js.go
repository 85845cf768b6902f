//go:build js && wasm

package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/chainsafe/fhevm-session/internal/jsbridge"
)

// BrowserProvider wraps an injected EIP-1193 object such as window.ethereum.
type BrowserProvider struct {
	v js.Value
}

// InjectedProvider returns the provider injected as window.ethereum.
func InjectedProvider() (*BrowserProvider, bool) {
	v := js.Global().Get("ethereum")
	if v.IsUndefined() || v.IsNull() {
		return nil, false
	}
	return &BrowserProvider{v: v}, true
}

// JSValue returns the wrapped JavaScript object.
func (p *BrowserProvider) JSValue() js.Value { return p.v }

// Request forwards to provider.request({method, params}).
func (p *BrowserProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	args := js.Global().Get("Object").New()
	args.Set("method", method)
	args.Set("params", jsbridge.Parse(rawParams))

	res, err := jsbridge.Await(ctx, p.v.Call("request", args))
	if err != nil {
		return nil, err
	}
	if res.IsUndefined() {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(jsbridge.Stringify(res)), nil
}

// Subscribe registers fn for connect, disconnect, chainChanged and
// accountsChanged events.
func (p *BrowserProvider) Subscribe(fn func(Event)) func() {
	handlers := map[EventKind]js.Func{
		EventConnect: js.FuncOf(func(_ js.Value, args []js.Value) any {
			ev := Event{Kind: EventConnect}
			if len(args) > 0 && args[0].Type() == js.TypeObject {
				ev.ChainID = args[0].Get("chainId").String()
			}
			fn(ev)
			return nil
		}),
		EventDisconnect: js.FuncOf(func(_ js.Value, args []js.Value) any {
			ev := Event{Kind: EventDisconnect}
			if len(args) > 0 && args[0].Type() == js.TypeObject {
				ev.Err = jsbridge.Error(args[0])
			}
			fn(ev)
			return nil
		}),
		EventChainChanged: js.FuncOf(func(_ js.Value, args []js.Value) any {
			ev := Event{Kind: EventChainChanged}
			if len(args) > 0 {
				ev.ChainID = args[0].String()
			}
			fn(ev)
			return nil
		}),
		EventAccountsChanged: js.FuncOf(func(_ js.Value, args []js.Value) any {
			ev := Event{Kind: EventAccountsChanged}
			if len(args) > 0 {
				for i := 0; i < args[0].Length(); i++ {
					ev.Accounts = append(ev.Accounts, args[0].Index(i).String())
				}
			}
			fn(ev)
			return nil
		}),
	}
	for kind, h := range handlers {
		p.v.Call("on", string(kind), h)
	}

	done := false
	return func() {
		if done {
			return
		}
		done = true
		for kind, h := range handlers {
			p.v.Call("removeListener", string(kind), h)
			h.Release()
		}
	}
}

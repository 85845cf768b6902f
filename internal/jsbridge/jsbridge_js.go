//go:build js && wasm

// Package jsbridge holds the small syscall/js helpers shared by the browser
// host implementations.
package jsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"syscall/js"
)

// Await blocks until promise settles or ctx is done. A rejection becomes an
// error carrying the rejection message.
func Await(ctx context.Context, promise js.Value) (js.Value, error) {
	if promise.Type() != js.TypeObject || promise.Get("then").Type() != js.TypeFunction {
		return promise, nil
	}

	type outcome struct {
		v   js.Value
		err error
	}
	ch := make(chan outcome, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		ch <- outcome{v: v}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var reason js.Value
		if len(args) > 0 {
			reason = args[0]
		}
		ch <- outcome{err: Error(reason)}
		return nil
	})
	release := func() {
		onResolve.Release()
		onReject.Release()
	}
	promise.Call("then", onResolve, onReject)

	select {
	case out := <-ch:
		release()
		return out.v, out.err
	case <-ctx.Done():
		// The callbacks stay alive until the promise settles.
		go func() {
			<-ch
			release()
		}()
		return js.Undefined(), ctx.Err()
	}
}

// Error converts a thrown or rejected JavaScript value into a Go error.
func Error(v js.Value) error {
	switch v.Type() {
	case js.TypeObject:
		if m := v.Get("message"); m.Type() == js.TypeString {
			return errors.New(m.String())
		}
		return errors.New(Stringify(v))
	case js.TypeString:
		return errors.New(v.String())
	case js.TypeUndefined, js.TypeNull:
		return errors.New("promise rejected")
	default:
		return errors.New(v.String())
	}
}

// Stringify returns JSON.stringify(v), converting BigInt values to decimal
// strings.
func Stringify(v js.Value) string {
	return js.Global().Get("JSON").Call("stringify", v, bigIntReplacer()).String()
}

var replacer js.Value

func bigIntReplacer() js.Value {
	if replacer.IsUndefined() {
		replacer = js.Global().Get("Function").New("key", "value",
			"return typeof value === 'bigint' ? value.toString() : value")
	}
	return replacer
}

// Parse converts raw JSON into a JavaScript value.
func Parse(raw json.RawMessage) js.Value {
	return js.Global().Get("JSON").Call("parse", string(raw))
}

// Bytes copies a Uint8Array into a Go slice.
func Bytes(v js.Value) []byte {
	if v.Type() != js.TypeObject {
		return nil
	}
	out := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(out, v)
	return out
}

// Uint8Array copies b into a new Uint8Array.
func Uint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

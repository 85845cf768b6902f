//go:build !(js && wasm)

package loader

// DefaultHost returns nil outside a browser: the remote strategy fails
// with ErrBrowserOnly.
func DefaultHost() Host { return nil }

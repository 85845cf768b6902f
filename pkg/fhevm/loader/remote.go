package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

const (
	// SDKCDNURL is the published UMD build of the relayer SDK.
	SDKCDNURL = "https://cdn.zama.ai/relayer-sdk-js/0.2.0/relayer-sdk-js.umd.cjs"
	// GlobalName is the global the UMD build installs itself under.
	GlobalName = "relayerSDK"
)

// Host is the browser environment the remote strategy runs in.
type Host interface {
	// LookupGlobal returns the global named name, if defined.
	LookupGlobal(name string) (any, bool)
	// FindScript returns an existing script element with the given src.
	FindScript(src string) (Script, bool)
	// InjectScript appends a new script element with the given src.
	InjectScript(src string) (Script, error)
}

// Script is a script element whose load outcome can be awaited.
type Script interface {
	// Wait blocks until the script loaded (nil), failed to load, or ctx
	// is done.
	Wait(ctx context.Context) error
}

// RemoteStrategy obtains the SDK from the global installed by the script at
// scriptURL. An already present valid global is reused; an existing script
// element is awaited instead of injecting a duplicate.
func RemoteStrategy(host Host, scriptURL string, logger *zap.Logger) Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Strategy{
		Name: "remote",
		Load: func(ctx context.Context) (sdk.SDK, error) {
			if host == nil {
				return nil, ErrBrowserOnly
			}
			log := logger.With(zap.String("script_url", scriptURL))

			if v, ok := host.LookupGlobal(GlobalName); ok {
				s, err := Validate(v)
				if err != nil {
					return nil, fmt.Errorf("invalid global %s: %w", GlobalName, err)
				}
				log.Debug("reusing relayer SDK global")
				return s, nil
			}

			script, ok := host.FindScript(scriptURL)
			if ok {
				log.Debug("waiting for existing relayer SDK script")
			} else {
				var err error
				if script, err = host.InjectScript(scriptURL); err != nil {
					return nil, fmt.Errorf("inject %s: %w", scriptURL, err)
				}
				log.Debug("injected relayer SDK script")
			}

			if err := script.Wait(ctx); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", scriptURL, err)
			}
			v, ok := host.LookupGlobal(GlobalName)
			if !ok {
				return nil, fmt.Errorf("%s loaded but global %s is missing: %w", scriptURL, GlobalName, ErrUnsupportedCapability)
			}
			s, err := Validate(v)
			if err != nil {
				return nil, fmt.Errorf("%s loaded but invalid: %w", scriptURL, err)
			}
			return s, nil
		},
	}
}

// Package loader resolves the relayer SDK capability object: first from
// locally registered packages, then from the remote script in a browser
// host.
package loader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/internal/metrics"
	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

var (
	// ErrUnsupportedCapability is returned when a candidate does not expose
	// the SDK contract.
	ErrUnsupportedCapability = errors.New("relayer SDK candidate does not expose the expected capability")
	// ErrBrowserOnly is returned by the remote strategy outside a browser host.
	ErrBrowserOnly = errors.New("remote relayer SDK loading is only available in a browser host")
	// ErrNoLocalPackage is returned when no registered local package is usable.
	ErrNoLocalPackage = errors.New("no local relayer SDK package available")
)

// Validate checks that v implements the SDK contract and carries a
// default network configuration.
func Validate(v any) (sdk.SDK, error) {
	s, ok := v.(sdk.SDK)
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedCapability, v)
	}
	if s.DefaultConfig() == nil {
		return nil, fmt.Errorf("%w: missing default config", ErrUnsupportedCapability)
	}
	return s, nil
}

// Strategy is one way of obtaining the SDK.
type Strategy struct {
	Name string
	Load func(ctx context.Context) (sdk.SDK, error)
}

// Loader tries its strategies in order and returns the first success.
type Loader struct {
	logger     *zap.Logger
	registry   *Registry
	host       Host
	scriptURL  string
	strategies []Strategy
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader logger. Rejected candidates are traced at
// debug level.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithRegistry replaces the default package registry.
func WithRegistry(r *Registry) Option {
	return func(ld *Loader) { ld.registry = r }
}

// WithHost replaces the browser host. A nil host disables remote loading.
func WithHost(h Host) Option {
	return func(ld *Loader) { ld.host = h }
}

// WithScriptURL overrides the remote SDK script URL.
func WithScriptURL(u string) Option {
	return func(ld *Loader) {
		if u != "" {
			ld.scriptURL = u
		}
	}
}

// WithStrategies replaces the default local-then-remote strategies.
func WithStrategies(s ...Strategy) Option {
	return func(ld *Loader) { ld.strategies = s }
}

// New creates a Loader. Without WithStrategies it tries the local
// registry (primary then fallback package) and then the remote script.
func New(opts ...Option) *Loader {
	ld := &Loader{
		logger:    zap.NewNop(),
		registry:  defaultRegistry,
		host:      DefaultHost(),
		scriptURL: SDKCDNURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ld)
		}
	}
	if ld.strategies == nil {
		ld.strategies = []Strategy{
			LocalStrategy(ld.registry, ld.logger),
			RemoteStrategy(ld.host, ld.scriptURL, ld.logger),
		}
	}
	return ld
}

// ScriptURL returns the remote SDK script URL.
func (ld *Loader) ScriptURL() string { return ld.scriptURL }

// Load returns the SDK from the first strategy that succeeds. It fails
// with a library-load error only when every strategy failed.
func (ld *Loader) Load(ctx context.Context) (sdk.SDK, error) {
	var errs []error
	for _, st := range ld.strategies {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.AbortedError(err)
		}

		s, err := st.Load(ctx)
		if err == nil {
			metrics.SDKLoads.WithLabelValues(st.Name, "success").Inc()
			ld.logger.Debug("relayer SDK loaded", zap.String("strategy", st.Name))
			return s, nil
		}

		metrics.SDKLoads.WithLabelValues(st.Name, "failure").Inc()
		ld.logger.Debug("relayer SDK strategy failed", zap.String("strategy", st.Name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.AbortedError(err)
	}
	return nil, apperrors.LibraryLoadError(errors.Join(errs...), "failed to load relayer SDK")
}

// LocalStrategy loads the first usable package of reg in the order
// PrimaryPackage, FallbackPackage. Missing, failing and mis-shaped
// packages are skipped.
func LocalStrategy(reg *Registry, logger *zap.Logger) Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Strategy{
		Name: "local",
		Load: func(ctx context.Context) (sdk.SDK, error) {
			for _, name := range []string{PrimaryPackage, FallbackPackage} {
				log := logger.With(zap.String("package", name))

				factory, ok := reg.Lookup(name)
				if !ok {
					log.Debug("local relayer SDK package not registered")
					continue
				}
				mod, err := factory(ctx)
				if err != nil {
					log.Debug("local relayer SDK package failed", zap.Error(err))
					continue
				}
				s, err := Validate(mod)
				if err != nil {
					log.Debug("local relayer SDK package rejected", zap.Error(err))
					continue
				}
				log.Debug("loaded relayer SDK from local package")
				return s, nil
			}
			return nil, ErrNoLocalPackage
		},
	}
}

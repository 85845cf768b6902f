package session

import (
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/loader"
)

// ConfigOptions maps the fhevm configuration section onto factory options.
// A non-empty SDKURL replaces the remote script of the default loader, and
// dev is only installed when development instances are enabled.
func ConfigOptions(cfg config.FHEVMConfig, logger *zap.Logger, dev DevInstanceFactory) []Option {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []Option{WithLogger(logger)}
	if cfg.SDKURL != "" {
		opts = append(opts, WithLoader(loader.New(
			loader.WithLogger(logger),
			loader.WithScriptURL(cfg.SDKURL),
		)))
	}
	if cfg.DevelopmentInstances && dev != nil {
		opts = append(opts, WithDevelopmentInstances(dev))
	}
	return opts
}

// FromConfig creates a Factory bound to rt from the fhevm configuration
// section. opts are applied after the configured ones.
func FromConfig(rt *Runtime, cfg config.FHEVMConfig, logger *zap.Logger, dev DevInstanceFactory, opts ...Option) *Factory {
	return NewFactory(rt, append(ConfigOptions(cfg, logger, dev), opts...)...)
}

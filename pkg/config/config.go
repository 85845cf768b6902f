// Package config loads the fhevm-inspect configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Signature store drivers.
const (
	DriverMemory   = "memory"
	DriverNoop     = "noop"
	DriverPostgres = "postgres"
)

// Environment variables that override file values.
const (
	EnvRPCURL           = "FHEVM_RPC_URL"
	EnvDatabasePassword = "FHEVM_DATABASE_PASSWORD"
	EnvDefaultSealKey   = "FHEVM_SIGSTORE_SEAL_KEY"
)

// Config is the root configuration.
type Config struct {
	Logging        LoggingConfig        `yaml:"logging"`
	Server         ServerConfig         `yaml:"server"`
	Network        NetworkConfig        `yaml:"network"`
	FHEVM          FHEVMConfig          `yaml:"fhevm"`
	SignatureStore SignatureStoreConfig `yaml:"signature_store"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// ServerConfig contains inspector HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8090" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// NetworkConfig describes the chain sessions bind to.
type NetworkConfig struct {
	RPCURL string `yaml:"rpc_url" default:"http://localhost:8545" validate:"required,url"`
	// ChainID, when non-zero, must match the chain behind RPCURL.
	ChainID uint64 `yaml:"chain_id"`
	// DevChains maps extra development chain IDs to their RPC URLs.
	DevChains map[uint64]string `yaml:"dev_chains" validate:"dive,url"`
	// RequestTimeout bounds one resolve or probe round.
	RequestTimeout time.Duration `yaml:"request_timeout" default:"10s"`
}

// FHEVMConfig tunes the session and decryption layers.
type FHEVMConfig struct {
	// SDKURL overrides the CDN script used by the browser loader.
	SDKURL string `yaml:"sdk_url" validate:"omitempty,url"`
	// DurationDays is the validity of new decryption signatures.
	DurationDays int `yaml:"duration_days" default:"365" validate:"min=1,max=3650"`
	// DevelopmentInstances builds dev chain sessions against the node directly.
	DevelopmentInstances bool `yaml:"development_instances"`
}

// SignatureStoreConfig selects where decryption signatures are kept.
type SignatureStoreConfig struct {
	Driver string `yaml:"driver" default:"memory" validate:"oneof=memory noop postgres"`
	// SealKeyEnv names the environment variable holding the sealing secret.
	// Values are stored in clear when the variable is unset or empty.
	SealKeyEnv string         `yaml:"seal_key_env" default:"FHEVM_SIGSTORE_SEAL_KEY"`
	Database   DatabaseConfig `yaml:"database"`
}

// SealKey returns the sealing secret from the environment, if any.
func (c SignatureStoreConfig) SealKey() []byte {
	if c.SealKeyEnv == "" {
		return nil
	}
	return []byte(strings.TrimSpace(os.Getenv(c.SealKeyEnv)))
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"fhevm_session" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envOverrides are the variables that replace file settings. Unset and
// empty variables leave the setting alone.
var envOverrides = []struct {
	key  string
	trim bool
	set  func(*Config, string)
}{
	{EnvRPCURL, true, func(c *Config, v string) { c.Network.RPCURL = v }},
	{EnvDatabasePassword, false, func(c *Config, v string) { c.SignatureStore.Database.Password = v }},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		v, ok := lookup(o.key)
		if o.trim {
			v = strings.TrimSpace(v)
		}
		if ok && v != "" {
			o.set(cfg, v)
		}
	}
}

// Validate checks cfg. Database settings are only checked for the postgres
// driver.
func (c *Config) Validate() error {
	var errs []error
	for _, section := range []any{c.Logging, c.Server, c.Network, c.FHEVM} {
		if err := validate.Struct(section); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validate.StructExcept(c.SignatureStore, "Database"); err != nil {
		errs = append(errs, err)
	}
	if c.SignatureStore.Driver == DriverPostgres {
		if err := validate.Struct(c.SignatureStore.Database); err != nil {
			errs = append(errs, fmt.Errorf("signature_store.database: %w", err))
		}
	}
	return errors.Join(errs...)
}

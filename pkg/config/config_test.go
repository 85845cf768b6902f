package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8545", cfg.Network.RPCURL)
	assert.Equal(t, 10*time.Second, cfg.Network.RequestTimeout)
	assert.Equal(t, 365, cfg.FHEVM.DurationDays)
	assert.False(t, cfg.FHEVM.DevelopmentInstances)
	assert.Equal(t, DriverMemory, cfg.SignatureStore.Driver)
	assert.Equal(t, EnvDefaultSealKey, cfg.SignatureStore.SealKeyEnv)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: console
network:
  rpc_url: https://rpc.sepolia.example
  chain_id: 11155111
  dev_chains:
    1337: http://127.0.0.1:8545
fhevm:
  duration_days: 30
  development_instances: true
signature_store:
  driver: postgres
  database:
    user: fhevm
    password: secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, uint64(11155111), cfg.Network.ChainID)
	assert.Equal(t, map[uint64]string{1337: "http://127.0.0.1:8545"}, cfg.Network.DevChains)
	assert.Equal(t, 30, cfg.FHEVM.DurationDays)
	assert.True(t, cfg.FHEVM.DevelopmentInstances)
	assert.Equal(t, "localhost", cfg.SignatureStore.Database.Host)
	assert.Equal(t, 5432, cfg.SignatureStore.Database.Port)
	assert.Equal(t, "disable", cfg.SignatureStore.Database.SSLMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, " http://10.0.0.1:8545 ")
	t.Setenv(EnvDatabasePassword, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8545", cfg.Network.RPCURL)
	assert.Equal(t, "from-env", cfg.SignatureStore.Database.Password)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantRPCURL   string
		wantPassword string
	}{
		{
			name:         "unset",
			wantRPCURL:   "http://file:8545",
			wantPassword: "file",
		},
		{
			name:         "empty and blank values are ignored",
			env:          map[string]string{EnvRPCURL: "  ", EnvDatabasePassword: ""},
			wantRPCURL:   "http://file:8545",
			wantPassword: "file",
		},
		{
			name:         "password keeps surrounding spaces",
			env:          map[string]string{EnvDatabasePassword: " p w "},
			wantRPCURL:   "http://file:8545",
			wantPassword: " p w ",
		},
		{
			name:         "both",
			env:          map[string]string{EnvRPCURL: "http://env:8545\n", EnvDatabasePassword: "env"},
			wantRPCURL:   "http://env:8545",
			wantPassword: "env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Network.RPCURL = "http://file:8545"
			cfg.SignatureStore.Database.Password = "file"

			applyEnv(cfg, func(key string) (string, bool) {
				v, ok := tt.env[key]
				return v, ok
			})
			assert.Equal(t, tt.wantRPCURL, cfg.Network.RPCURL)
			assert.Equal(t, tt.wantPassword, cfg.SignatureStore.Database.Password)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":   "signature_store:\n  driver: redis\n",
		"postgres no user": "signature_store:\n  driver: postgres\n",
		"bad level":        "logging:\n  level: loud\n",
		"bad duration":     "fhevm:\n  duration_days: -1\n",
		"bad rpc url":      "network:\n  rpc_url: not a url\n",
		"bad dev chain":    "network:\n  dev_chains:\n    5: nope\n",
		"malformed yaml":   "logging: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSealKey(t *testing.T) {
	t.Setenv("TEST_SEAL", "  s3cret  ")
	assert.Equal(t, []byte("s3cret"), SignatureStoreConfig{SealKeyEnv: "TEST_SEAL"}.SealKey())
	assert.Nil(t, SignatureStoreConfig{}.SealKey())
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = NewLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "xml")
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionBuildsTotal counts session builds by terminal status
	SessionBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_session_builds_total",
			Help: "Total number of FHE session builds",
		},
		[]string{"status"},
	)

	// SessionBuildDuration tracks how long a session build takes
	SessionBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhevm_session_build_duration_seconds",
			Help:    "FHE session build duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	// SDKInitAttempts counts shared SDK initialization attempts
	SDKInitAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_sdk_init_attempts_total",
			Help: "Total number of SDK initialization attempts",
		},
		[]string{"result"},
	)

	// SDKLoads counts SDK load attempts by strategy and result
	SDKLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_sdk_loads_total",
			Help: "Total number of SDK load attempts",
		},
		[]string{"strategy", "result"},
	)

	// PublicKeyCache counts public-key cache lookups
	PublicKeyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_public_key_cache_total",
			Help: "Public key cache lookups by result",
		},
		[]string{"result"},
	)

	// DecryptionSignatures counts decryption signature requests
	DecryptionSignatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_decryption_signatures_total",
			Help: "Decryption signature requests by result",
		},
		[]string{"result"},
	)

	// DevProbeTotal counts development node metadata probes
	DevProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_dev_probe_total",
			Help: "Development node metadata probes by result",
		},
		[]string{"result"},
	)

	// UserDecryptions counts handles sent for user decryption
	UserDecryptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhevm_user_decrypt_handles_total",
			Help: "Handles processed by user decryption",
		},
		[]string{"kind"},
	)
)

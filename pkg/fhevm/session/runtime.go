package session

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chainsafe/fhevm-session/internal/metrics"
	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// RuntimeState is the lifecycle of the process-wide SDK.
type RuntimeState int32

const (
	RuntimeUninitialized RuntimeState = iota
	RuntimeInitializing
	RuntimeReady
	RuntimeFailed
)

func (s RuntimeState) String() string {
	switch s {
	case RuntimeInitializing:
		return "initializing"
	case RuntimeReady:
		return "ready"
	case RuntimeFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// SDKLoader obtains the relayer SDK.
type SDKLoader interface {
	Load(ctx context.Context) (sdk.SDK, error)
}

// Runtime holds the process-wide SDK and its one-time initialization.
// A program creates one Runtime and hands it to every Factory.
type Runtime struct {
	logger *zap.Logger

	mu  sync.Mutex
	sdk sdk.SDK

	group singleflight.Group
	state atomic.Int32
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeLogger sets the runtime logger.
func WithRuntimeLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates an uninitialized runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// State returns the current lifecycle state.
func (r *Runtime) State() RuntimeState { return RuntimeState(r.state.Load()) }

// Initialized reports whether the SDK finished its one-time initialization.
func (r *Runtime) Initialized() bool { return r.State() == RuntimeReady }

// SDK returns the memoised SDK, or nil before the first successful load.
func (r *Runtime) SDK() sdk.SDK {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sdk
}

// Load returns the memoised SDK or obtains it from ld. Concurrent first
// loads may run in parallel; the first result stored wins.
func (r *Runtime) Load(ctx context.Context, ld SDKLoader) (sdk.SDK, error) {
	if s := r.SDK(); s != nil {
		return s, nil
	}
	s, err := ld.Load(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sdk == nil {
		r.sdk = s
	}
	return r.sdk, nil
}

// Init runs s.InitSDK at most once successfully per runtime. Concurrent
// callers share one in-flight attempt. A caller whose ctx is done stops
// waiting with an abort error while the shared attempt carries on. A
// failed attempt is forgotten so a later call can try again.
func (r *Runtime) Init(ctx context.Context, s sdk.SDK) error {
	if r.Initialized() {
		return nil
	}

	ch := r.group.DoChan("init", func() (any, error) {
		if r.Initialized() {
			return nil, nil
		}
		r.state.Store(int32(RuntimeInitializing))
		r.logger.Info("initializing relayer SDK")

		if err := s.InitSDK(context.WithoutCancel(ctx)); err != nil {
			r.state.Store(int32(RuntimeFailed))
			metrics.SDKInitAttempts.WithLabelValues("failure").Inc()
			r.logger.Error("relayer SDK initialization failed", zap.Error(err))
			return nil, err
		}

		r.state.Store(int32(RuntimeReady))
		metrics.SDKInitAttempts.WithLabelValues("success").Inc()
		r.logger.Info("relayer SDK initialized")
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return apperrors.SDKInitError(res.Err, "SDK initialization failed")
		}
		return nil
	case <-ctx.Done():
		return apperrors.AbortedError(ctx.Err())
	}
}

package wallet

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// State is the observed connection state of a wallet.
type State struct {
	Attached bool
	ChainID  uint64
	HasChain bool
	Accounts []string
}

// Connected reports whether the wallet is attached, exposes at least one
// account and a known chain.
func (s State) Connected() bool {
	return s.Attached && len(s.Accounts) > 0 && s.HasChain
}

// Reduce applies ev to s and returns the next state.
func Reduce(s State, ev Event) State {
	switch ev.Kind {
	case EventConnect, EventChainChanged:
		s.Attached = true
		s.ChainID, s.HasChain = 0, false
		if id, err := ParseChainID(ev.ChainID); err == nil {
			s.ChainID, s.HasChain = id, true
		}
	case EventAccountsChanged:
		s.Attached = true
		s.Accounts = append([]string(nil), ev.Accounts...)
	case EventDisconnect:
		return State{}
	}
	return s
}

// Tracker keeps the State of the currently attached provider up to date.
// Events from a provider that has since been replaced are ignored.
type Tracker struct {
	logger   *zap.Logger
	onChange func(State)

	mu          sync.Mutex
	provider    Provider
	unsubscribe func()
	generation  uint64
	state       State
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(l *zap.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithOnChange registers a callback invoked with every new state.
func WithOnChange(fn func(State)) TrackerOption {
	return func(t *Tracker) { t.onChange = fn }
}

// NewTracker creates a detached tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Attach replaces the tracked provider. Listeners on the previous provider
// are removed and the state is reset before the new provider is queried for
// its chain and accounts. events may be nil for providers without events.
func (t *Tracker) Attach(ctx context.Context, p Provider, events EventSource) {
	t.mu.Lock()
	if p == t.provider {
		t.mu.Unlock()
		return
	}
	t.detachLocked()
	t.provider = p
	gen := t.generation
	t.mu.Unlock()

	t.publish(State{})
	if p == nil {
		return
	}

	if events != nil {
		unsub := events.Subscribe(func(ev Event) { t.apply(gen, ev) })
		t.mu.Lock()
		if gen == t.generation {
			t.unsubscribe = unsub
			unsub = nil
		}
		t.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}

	t.refresh(ctx, gen, p)
}

// Detach stops tracking the current provider and clears the state.
func (t *Tracker) Detach() {
	t.mu.Lock()
	t.detachLocked()
	t.mu.Unlock()
	t.publish(State{})
}

func (t *Tracker) detachLocked() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.provider = nil
	t.generation++
	t.state = State{}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Provider returns the attached provider, or nil.
func (t *Tracker) Provider() Provider {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.provider
}

// Refresh re-reads chain ID and accounts from the attached provider.
func (t *Tracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	p, gen := t.provider, t.generation
	t.mu.Unlock()
	if p != nil {
		t.refresh(ctx, gen, p)
	}
}

// Connect asks the wallet for account access unless accounts are already
// exposed.
func (t *Tracker) Connect(ctx context.Context) error {
	t.mu.Lock()
	p, gen, has := t.provider, t.generation, len(t.state.Accounts) > 0
	t.mu.Unlock()
	if p == nil || has {
		return nil
	}
	accounts, err := Accounts(ctx, p, "eth_requestAccounts")
	if err != nil {
		return err
	}
	t.apply(gen, Event{Kind: EventAccountsChanged, Accounts: accounts})
	return nil
}

func (t *Tracker) refresh(ctx context.Context, gen uint64, p Provider) {
	next := State{Attached: true}
	chainID, chainErr := ChainID(ctx, p)
	accounts, accErr := Accounts(ctx, p, "eth_accounts")
	if chainErr == nil && accErr == nil {
		next.ChainID, next.HasChain = chainID, true
		next.Accounts = accounts
	} else {
		t.logger.Debug("wallet refresh failed",
			zap.NamedError("chain_error", chainErr),
			zap.NamedError("accounts_error", accErr))
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.state = next
	t.mu.Unlock()
	t.publish(next)
}

func (t *Tracker) apply(gen uint64, ev Event) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		t.logger.Debug("ignoring event from replaced provider", zap.String("event", string(ev.Kind)))
		return
	}
	t.state = Reduce(t.state, ev)
	next := t.state
	t.mu.Unlock()
	t.publish(next)
}

func (t *Tracker) publish(s State) {
	if t.onChange != nil {
		t.onChange(s)
	}
}

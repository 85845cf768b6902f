package loader

import "sync"

// releaser runs host resource releases exactly once, whichever of an
// explicit Close or garbage collection of the owner comes first.
type releaser struct {
	once sync.Once
	mu   sync.Mutex
	fns  []func()
}

func (r *releaser) add(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *releaser) release() {
	r.once.Do(func() {
		r.mu.Lock()
		fns := r.fns
		r.fns = nil
		r.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

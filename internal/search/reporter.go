package search

import (
	"sync"
	"sync/atomic"
)

// Observer receives the solver's notifications. All methods are called from a
// single goroutine at a time: Start before the search begins, Progress and
// Suggest while it runs, Finish exactly once at the end. Implementations must
// not block for long; a slow observer delays further notifications but never
// the search.
type Observer interface {
	// Start hands over a function that cancels the solve. It is safe to call
	// from any goroutine, any number of times.
	Start(cancel func())
	// Progress reports the number of nodes expanded so far.
	Progress(nodes uint64)
	// Suggest reports a rotation better than every earlier suggestion.
	Suggest(sol Solution)
	// Finish reports the final rotation, empty when none was found.
	Finish(sol Solution)
}

// Callbacks adapts optional functions to Observer. Nil fields are skipped.
type Callbacks struct {
	OnStart    func(cancel func())
	OnProgress func(nodes uint64)
	OnSuggest  func(sol Solution)
	OnFinish   func(sol Solution)
}

func (c Callbacks) Start(cancel func()) {
	if c.OnStart != nil {
		c.OnStart(cancel)
	}
}

func (c Callbacks) Progress(nodes uint64) {
	if c.OnProgress != nil {
		c.OnProgress(nodes)
	}
}

func (c Callbacks) Suggest(sol Solution) {
	if c.OnSuggest != nil {
		c.OnSuggest(sol)
	}
}

func (c Callbacks) Finish(sol Solution) {
	if c.OnFinish != nil {
		c.OnFinish(sol)
	}
}

// reporter decouples workers from the observer. Workers drop notifications into
// coalescing slots and never wait; a dispatcher goroutine delivers them.
type reporter struct {
	obs Observer

	mu           sync.Mutex
	pending      *Solution
	pendingScore int64

	nodes     atomic.Uint64
	lastNodes uint64
	delivered int64

	notify  chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newReporter(obs Observer) *reporter {
	return &reporter{
		obs:          obs,
		pendingScore: -1,
		delivered:    -1,
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (r *reporter) start() {
	go func() {
		defer close(r.stopped)
		for {
			select {
			case <-r.notify:
				r.flush()
			case <-r.done:
				r.flush()
				return
			}
		}
	}()
}

// close delivers whatever is pending and waits for the dispatcher to exit.
func (r *reporter) close() {
	close(r.done)
	<-r.stopped
}

func (r *reporter) wake() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *reporter) suggest(sol Solution) {
	score := int64(sol.Quality)
	r.mu.Lock()
	if score > r.pendingScore {
		r.pending = &sol
		r.pendingScore = score
	}
	r.mu.Unlock()
	r.wake()
}

func (r *reporter) progress(nodes uint64) {
	for {
		cur := r.nodes.Load()
		if nodes <= cur || r.nodes.CompareAndSwap(cur, nodes) {
			break
		}
	}
	r.wake()
}

func (r *reporter) flush() {
	if n := r.nodes.Load(); n > r.lastNodes {
		r.lastNodes = n
		r.obs.Progress(n)
	}
	r.mu.Lock()
	sol := r.pending
	r.pending = nil
	r.mu.Unlock()
	if sol != nil && int64(sol.Quality) > r.delivered {
		r.delivered = int64(sol.Quality)
		suggestionsTotal.Inc()
		r.obs.Suggest(*sol)
	}
}

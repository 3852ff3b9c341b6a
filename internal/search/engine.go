package search

import (
	"math"
	"slices"
	"sync/atomic"

	"craft-optimizer/internal/bound"
	"craft-optimizer/internal/config"
	"craft-optimizer/internal/sim"
)

// unlimitedSteps asks the evaluator for a bound without a step limit.
const unlimitedSteps = math.MaxInt32

// stepBits is the width of the step component of a solution score.
const stepBits = 16

// solutionScore orders solutions by objective quality, then by fewer steps.
func solutionScore(quality uint32, steps int) int64 {
	return int64(quality)<<stepBits | int64(1<<stepBits-1-steps)
}

// scoreQuality is the quality part of a score; -1 stays -1.
func scoreQuality(score int64) int64 { return score >> stepBits }

// shared is the only state workers have in common.
type shared struct {
	best      atomic.Int64
	cancelled atomic.Bool
	nodes     atomic.Uint64
	// stepLimited is set when the step limit alone pruned a promising node.
	stepLimited atomic.Bool
	rep         *reporter
}

func newShared(rep *reporter) *shared {
	sh := &shared{rep: rep}
	sh.best.Store(-1)
	return sh
}

// offer raises the global best to score, reporting whether score was an improvement.
func (sh *shared) offer(score int64) bool {
	for {
		cur := sh.best.Load()
		if score <= cur {
			return false
		}
		if sh.best.CompareAndSwap(cur, score) {
			return true
		}
	}
}

func (sh *shared) addNodes(n uint64) {
	if n == 0 {
		return
	}
	nodesExpanded.Add(float64(n))
	sh.rep.progress(sh.nodes.Add(n))
}

// ── Engine ──────────────────────────────────────────────────────────

// engine is one worker's depth-first branch-and-bound search. Nothing in it is
// shared except through sh.
type engine struct {
	s     *sim.Settings
	cfg   config.Config
	eval  *bound.Evaluator
	order []sim.Action
	sh    *shared

	path      []sim.Action
	best      Solution
	bestScore int64

	pending  uint64
	expanded uint64
	cutoff   bool
	stopped  bool
}

func newEngine(s *sim.Settings, req *Request, cfg config.Config, order []sim.Action, sh *shared) *engine {
	return &engine{
		s:   s,
		cfg: cfg,
		eval: bound.New(s, bound.Options{
			MemoLimit: cfg.MemoLimit,
			Unsound:   req.UnsoundBranchPruning,
			Backload:  req.BackloadProgress,
			Cancel:    &sh.cancelled,
		}),
		order:     order,
		sh:        sh,
		bestScore: -1,
	}
}

// run searches every branch below the root child reached by action a, deepening
// the step limit until no promising node is cut off by it.
func (e *engine) run(a sim.Action, child node) {
	e.path = append(e.path[:0], a)
	// Promising nodes are always shallower than MaxSteps, so the limit never
	// passes it.
	for limit := 1; ; limit++ {
		if !e.promising(&child, 1) {
			return
		}
		e.cutoff = false
		e.dfs(&child, 1, limit)
		if e.stopped || !e.cutoff {
			return
		}
	}
}

// promising reports whether n, reached after depth actions, may still beat the
// global best within MaxSteps, either on quality or by finishing in fewer
// steps. A node whose better quality lies only beyond the step limit marks the
// search as step limited.
func (e *engine) promising(n *node, depth int) bool {
	best := e.sh.best.Load()
	if depth < e.cfg.MaxSteps {
		if b, ok := n.bound(e.eval, e.cfg.MaxSteps-depth); ok && solutionScore(b, depth+1) > best {
			return true
		}
	}
	if !e.sh.stepLimited.Load() {
		if b, ok := n.bound(e.eval, unlimitedSteps); ok && int64(b) > scoreQuality(best) {
			e.sh.stepLimited.Store(true)
		}
	}
	return false
}

func (e *engine) dfs(n *node, depth, limit int) {
	if depth >= limit {
		e.cutoff = true
		return
	}
	if e.visit() {
		return
	}
	progressOnly := n.progressOnly(e.eval)
	qt := e.s.ActionTable()
	for _, a := range e.order {
		if progressOnly && a.IsQualityOnly(qt) {
			continue
		}
		child, ok := n.expand(a, e.s)
		if !ok {
			continue
		}
		switch child.status(e.s) {
		case complete:
			e.path = append(e.path, a)
			e.candidate(&child)
			e.path = e.path[:len(e.path)-1]
			continue
		case broken:
			continue
		}
		if !e.promising(&child, depth+1) {
			continue
		}
		e.path = append(e.path, a)
		e.dfs(&child, depth+1, limit)
		e.path = e.path[:len(e.path)-1]
		if e.stopped {
			return
		}
	}
}

// visit counts an expansion and reports whether the search must stop.
func (e *engine) visit() bool {
	e.expanded++
	e.pending++
	if e.pending >= e.cfg.ProgressInterval {
		e.sh.addNodes(e.pending)
		e.pending = 0
	}
	if e.expanded%e.cfg.CancelPollInterval == 0 && e.sh.cancelled.Load() {
		e.stopped = true
	}
	return e.stopped
}

func (e *engine) candidate(n *node) {
	q := e.s.Objective(n.quality())
	score := solutionScore(q, len(e.path))
	if !e.sh.offer(score) {
		return
	}
	e.bestScore = score
	e.best = Solution{
		Actions:  slices.Clone(e.path),
		Quality:  q,
		Progress: n.progress(),
	}
	e.sh.rep.suggest(e.best)
}

func (e *engine) flush() {
	e.sh.addNodes(e.pending)
	e.pending = 0
	if e.eval.Exhausted() {
		memoExhausted.Inc()
	}
}

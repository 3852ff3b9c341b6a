// Package bound computes upper bounds on the quality still reachable from a
// craft state. All bounds except the unsound progress-only one are admissible:
// they never fall below the quality an optimal continuation achieves.
package bound

import (
	"math"
	"sync/atomic"

	"craft-optimizer/internal/sim"
)

// Options tune an Evaluator.
type Options struct {
	// MemoLimit caps the number of memoized relaxed states. Zero means unlimited.
	MemoLimit int
	// Unsound enables the progress-only shortcut.
	Unsound bool
	// Backload marks states with any progress as progress-only when Unsound is set.
	Backload bool
	// Cancel, when set, aborts long relaxations.
	Cancel *atomic.Bool
}

// relaxedState is a craft state with durability folded into a single CP-like
// budget and everything irrelevant to future gains dropped.
type relaxedState struct {
	budget  int32
	combo   sim.Combo
	effects sim.Effects
}

// Evaluator is not safe for concurrent use; every search worker owns one.
type Evaluator struct {
	settings *sim.Settings
	relaxed  sim.Settings
	actions  []sim.Action
	opts     Options

	durabilityCost int32
	dpEnabled      bool
	exhausted      bool
	aborted        bool
	visits         uint64

	maxProgressStep uint64
	maxQualityStep  uint64
	qualityCap      uint32

	memo map[relaxedState][]point
}

const (
	relaxedCP         = 1 << 24
	relaxedDurability = 1 << 24
)

// New prepares an evaluator for one craft.
func New(s *sim.Settings, opts Options) *Evaluator {
	e := &Evaluator{
		settings:   s,
		relaxed:    *s,
		opts:       opts,
		qualityCap: math.MaxUint32,
		memo:       make(map[relaxedState][]point),
	}
	if s.MaxQuality > 0 {
		e.qualityCap = s.MaxQuality
	}
	e.relaxed.MaxCP = relaxedCP * 2
	e.relaxed.MaxDurability = relaxedDurability * 2
	e.relaxed.MaxProgress = math.MaxUint32
	e.relaxed.Adversarial = false

	for _, a := range s.Permitted() {
		if !a.IsRestore() {
			e.actions = append(e.actions, a)
		}
	}
	e.durabilityCost = DurabilityCost(s)
	e.dpEnabled = e.durabilityCost > 0 && !e.hasFreeAction()
	e.maxProgressStep, e.maxQualityStep = stepMaxima(s)
	return e
}

// DurabilityCost returns the CP price of 5 durability at the cheapest permitted
// restore rate, capped at 100. Zero means durability is effectively free.
func DurabilityCost(s *sim.Settings) int32 {
	t := s.ActionTable()
	dc := int32(100)
	if s.Permits(sim.MasterMend) {
		dc = min(dc, t[sim.MasterMend].CP/6)
	}
	if s.Permits(sim.Manipulation) {
		dc = min(dc, t[sim.Manipulation].CP/8)
	}
	if s.Permits(sim.ImmaculateMend) && s.MaxDurability > 0 {
		dc = min(dc, 5*t[sim.ImmaculateMend].CP/s.MaxDurability)
	}
	return max(dc, 0)
}

// hasFreeAction reports whether some repeatable action costs nothing in the
// relaxed model, which would make the relaxation unbounded.
func (e *Evaluator) hasFreeAction() bool {
	t := e.settings.ActionTable()
	normal := e.settings.ConditionTable()[sim.Normal]
	for _, a := range e.actions {
		if a.IsOneShot() || a == sim.TricksOfTheTrade {
			continue
		}
		d := &t[a]
		cp := d.CP
		if a == sim.StandardTouch || a == sim.AdvancedTouch {
			cp = min(cp, d.ComboCP)
		}
		cp = sim.ScaleCost(cp, normal.CP)
		dur := sim.ScaleCost(d.Durability, normal.Durability)
		if 5*cp+e.durabilityCost*dur <= 0 {
			return true
		}
	}
	return false
}

func stepMaxima(s *sim.Settings) (uint64, uint64) {
	t := s.ActionTable()
	normal := s.ConditionTable()[sim.Normal]
	var maxP, maxQ uint64
	for _, a := range s.Permitted() {
		d := &t[a]
		p := uint64(s.BaseProgress) * uint64(d.ProgressPotency(s.JobLevel)) * 250 * uint64(normal.Progress) / 1_000_000
		pot := uint64(d.Quality)
		if a == sim.ByregotsBlessing {
			pot = pot * (10 + 2*sim.MaxInnerQuiet) / 10
		}
		q := uint64(s.BaseQuality) * pot * (100 + 10*sim.MaxInnerQuiet) * 250 * uint64(normal.Quality) / 100_000_000
		if a == sim.TrainedEye {
			q = max(q, uint64(s.MaxQuality))
		}
		maxP = max(maxP, p)
		maxQ = max(maxQ, q)
	}
	return maxP, maxQ
}

// ProgressOnly reports whether, under unsound pruning, st is past the point
// where quality actions are still considered.
func (e *Evaluator) ProgressOnly(st *sim.CraftState) bool {
	if !e.opts.Unsound {
		return false
	}
	if e.opts.Backload && st.Progress > 0 {
		return true
	}
	return st.Quality > 0 && st.Effects.InnerQuiet == 0
}

// Bound returns an upper bound on the objective reachable from st within
// stepsLeft more actions, assuming every remaining step is Normal. ok is false
// when st cannot reach the progress target at all.
func (e *Evaluator) Bound(st *sim.CraftState, stepsLeft int) (uint32, bool) {
	s := e.settings
	if st.Complete(s) {
		return s.Objective(st.Quality), true
	}
	if st.Durability <= 0 || stepsLeft <= 0 {
		return 0, false
	}
	missing := s.MaxProgress - st.Progress
	steps := uint64(stepsLeft)
	if uint64(missing) > steps*e.maxProgressStep {
		return 0, false
	}
	gain := min(steps*e.maxQualityStep, uint64(e.qualityCap))

	if e.dpEnabled && !e.exhausted {
		if front := e.front(e.reduce(st)); front != nil {
			q, ok := bestQuality(front, missing)
			if !ok {
				return 0, false
			}
			gain = min(gain, uint64(q))
		}
	}
	if e.ProgressOnly(st) {
		gain = 0
	}
	total := min(uint64(st.Quality)+gain, uint64(math.MaxUint32))
	return s.Objective(uint32(total)), true
}

func (e *Evaluator) reduce(st *sim.CraftState) relaxedState {
	fx := st.Effects
	durability := st.Durability + 5*int32(fx.Manipulation)
	fx.Manipulation = 0
	return relaxedState{
		budget:  5*st.CP + e.durabilityCost*durability,
		combo:   st.Combo,
		effects: fx,
	}
}

// front returns the Pareto front of gains reachable from rs, or nil when the
// relaxation was abandoned.
func (e *Evaluator) front(rs relaxedState) []point {
	if f, ok := e.memo[rs]; ok {
		return f
	}
	if e.aborted {
		return nil
	}
	e.visits++
	if e.opts.Cancel != nil && e.visits%4096 == 0 && e.opts.Cancel.Load() {
		e.aborted = true
		return nil
	}
	if e.opts.MemoLimit > 0 && len(e.memo) >= e.opts.MemoLimit {
		e.exhausted = true
		return nil
	}

	st := sim.CraftState{
		CP:         relaxedCP,
		Durability: relaxedDurability,
		Condition:  sim.Normal,
		Combo:      rs.combo,
		Effects:    rs.effects,
	}
	maxProgress := e.settings.MaxProgress
	pts := []point{{}}
	for _, a := range e.actions {
		next, err := sim.Apply(st, a, &e.relaxed)
		if err != nil {
			continue
		}
		cost := 5*(st.CP-next.CP) + e.durabilityCost*(st.Durability-next.Durability)
		budget := rs.budget - cost
		if budget < 0 {
			continue
		}
		fx := next.Effects
		fx.Manipulation = 0
		child := e.front(relaxedState{budget: budget, combo: next.Combo, effects: fx})
		if child == nil {
			return nil
		}
		for _, p := range child {
			pts = append(pts, point{
				progress: uint32(min(uint64(p.progress)+uint64(next.Progress), uint64(maxProgress))),
				quality:  uint32(min(uint64(p.quality)+uint64(next.Quality), uint64(e.qualityCap))),
			})
		}
	}
	f := paretoFront(pts)
	e.memo[rs] = f
	return f
}

// MemoSize returns the number of memoized relaxed states.
func (e *Evaluator) MemoSize() int { return len(e.memo) }

// Exhausted reports whether the memo limit was hit and the evaluator fell back
// to the closed-form bound.
func (e *Evaluator) Exhausted() bool { return e.exhausted }

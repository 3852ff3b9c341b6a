package search

import (
	"math"

	"craft-optimizer/internal/bound"
	"craft-optimizer/internal/sim"
)

// node is a search position. It holds every state the craft can be in after
// the actions taken so far: one state normally, one per reachable condition
// history in adversarial mode. States that differ only in quality are merged
// into the worst of them, since future gains never depend on current quality.
type node struct {
	worlds []sim.CraftState
}

type status uint8

const (
	running status = iota
	complete
	broken
)

func rootNode(s *sim.Settings) node {
	return node{worlds: []sim.CraftState{s.Initial()}}
}

// expand applies a to every world still running. The action must be legal in
// all of them. Completed worlds are carried over as they are: a finished craft
// ignores the rest of the rotation.
func (n *node) expand(a sim.Action, s *sim.Settings) (node, bool) {
	out := make([]sim.CraftState, 0, len(n.worlds)*2)
	for i := range n.worlds {
		if n.worlds[i].Complete(s) {
			out = mergeWorld(out, n.worlds[i])
			continue
		}
		next, err := sim.Apply(n.worlds[i], a, s)
		if err != nil {
			return node{}, false
		}
		for _, c := range s.Outcomes(n.worlds[i].Condition) {
			w := next
			w.Condition = c
			out = mergeWorld(out, w)
		}
	}
	return node{worlds: out}, true
}

func mergeWorld(worlds []sim.CraftState, w sim.CraftState) []sim.CraftState {
	for i := range worlds {
		other := worlds[i]
		other.Quality = w.Quality
		if other == w {
			worlds[i].Quality = min(worlds[i].Quality, w.Quality)
			return worlds
		}
	}
	return append(worlds, w)
}

// status is complete only once every world has completed.
func (n *node) status(s *sim.Settings) status {
	done := 0
	for i := range n.worlds {
		switch {
		case n.worlds[i].Complete(s):
			done++
		case n.worlds[i].Durability <= 0:
			return broken
		}
	}
	if done == len(n.worlds) {
		return complete
	}
	return running
}

// quality is the quality guaranteed whatever the conditions did.
func (n *node) quality() uint32 {
	q := uint32(math.MaxUint32)
	for i := range n.worlds {
		q = min(q, n.worlds[i].Quality)
	}
	return q
}

func (n *node) progress() uint32 {
	p := uint32(math.MaxUint32)
	for i := range n.worlds {
		p = min(p, n.worlds[i].Progress)
	}
	return p
}

// bound is the smallest evaluator bound over the worlds whose next step is
// Normal. Staying Normal from such a world is always possible, so the
// guaranteed quality cannot exceed what that world can still reach.
func (n *node) bound(e *bound.Evaluator, stepsLeft int) (uint32, bool) {
	b := uint32(math.MaxUint32)
	for i := range n.worlds {
		if n.worlds[i].Condition != sim.Normal {
			continue
		}
		v, ok := e.Bound(&n.worlds[i], stepsLeft)
		if !ok {
			return 0, false
		}
		b = min(b, v)
	}
	return b, true
}

// progressOnly reports whether any world has entered the unsound progress-only phase.
func (n *node) progressOnly(e *bound.Evaluator) bool {
	for i := range n.worlds {
		if e.ProgressOnly(&n.worlds[i]) {
			return true
		}
	}
	return false
}

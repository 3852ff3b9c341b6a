package search

import (
	"cmp"
	"slices"

	"craft-optimizer/internal/bound"
	"craft-optimizer/internal/sim"
)

// actionOrder returns the permitted actions in the order children are tried:
// higher potency per cost first, then lower CP, then ordinal. With backload,
// quality actions come first and progress actions last.
func actionOrder(s *sim.Settings, backload bool) []sim.Action {
	t := s.ActionTable()
	dc := int64(max(bound.DurabilityCost(s), 1))

	type ranked struct {
		action  sim.Action
		class   int
		potency int64
		cost    int64
		cp      int32
	}
	var rs []ranked
	for _, a := range s.Permitted() {
		d := &t[a]
		r := ranked{
			action:  a,
			potency: int64(d.ProgressPotency(s.JobLevel)) + int64(d.Quality),
			cost:    5*int64(d.CP) + dc*int64(d.Durability),
			cp:      d.CP,
		}
		if backload {
			switch {
			case a.IsQualityOnly(t):
				r.class = 0
			case d.ProgressPotency(s.JobLevel) == 0:
				r.class = 1
			default:
				r.class = 2
			}
		}
		rs = append(rs, r)
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		if c := cmp.Compare(a.class, b.class); c != 0 {
			return c
		}
		if (a.potency == 0) != (b.potency == 0) {
			if a.potency == 0 {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(b.potency*a.cost, a.potency*b.cost); c != 0 {
			return c
		}
		if c := cmp.Compare(a.cp, b.cp); c != 0 {
			return c
		}
		return cmp.Compare(a.action, b.action)
	})

	out := make([]sim.Action, len(rs))
	for i, r := range rs {
		out[i] = r.action
	}
	return out
}

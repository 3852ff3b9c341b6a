// Package rotation replays and renders solved action sequences.
package rotation

import (
	"errors"
	"fmt"
	"strings"

	"craft-optimizer/internal/sim"
)

// ErrIncomplete is returned by Verify when a rotation runs out of actions
// before the craft is finished.
var ErrIncomplete = errors.New("rotation does not complete the craft")

// Step is one action together with what it cost and the state it produced.
type Step struct {
	Action     sim.Action
	CP         int32
	Durability int32
	State      sim.CraftState
}

// Replay applies actions from the initial state under Normal conditions. The
// first rejected action stops the replay; the steps before it are returned
// along with the error.
func Replay(s *sim.Settings, actions []sim.Action) ([]Step, error) {
	steps := make([]Step, 0, len(actions))
	st := s.Initial()
	for i, a := range actions {
		next, err := sim.Apply(st, a, s)
		if err != nil {
			return steps, fmt.Errorf("step %d (%s): %w", i+1, a, err)
		}
		steps = append(steps, Step{
			Action:     a,
			CP:         st.CP - next.CP,
			Durability: st.Durability - next.Durability,
			State:      next,
		})
		st = next
	}
	return steps, nil
}

// Verify replays actions and checks that they finish the craft.
func Verify(s *sim.Settings, actions []sim.Action) (sim.CraftState, error) {
	steps, err := Replay(s, actions)
	if err != nil {
		return sim.CraftState{}, err
	}
	final := s.Initial()
	if len(steps) > 0 {
		final = steps[len(steps)-1].State
	}
	if !final.Complete(s) {
		return final, ErrIncomplete
	}
	return final, nil
}

// Format renders a replayed rotation as a table followed by a summary line.
func Format(s *sim.Settings, steps []Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-20s %9s %9s %5s %5s\n", "#", "Action", "Progress", "Quality", "CP", "Dur")
	for i := range steps {
		st := &steps[i].State
		fmt.Fprintf(&b, "%-4d %-20s %9d %9d %5d %5d\n",
			i+1, steps[i].Action.DisplayName(), st.Progress, st.Quality, st.CP, st.Durability)
	}

	final := s.Initial()
	if len(steps) > 0 {
		final = steps[len(steps)-1].State
	}
	status := "incomplete"
	if final.Complete(s) {
		status = "complete"
	}
	quality := fmt.Sprintf("%d", final.Quality)
	if s.MaxQuality > 0 {
		quality = fmt.Sprintf("%d/%d", final.Quality, s.MaxQuality)
	}
	fmt.Fprintf(&b, "progress %d/%d, quality %s, %d steps, %s\n",
		final.Progress, s.MaxProgress, quality, len(steps), status)
	return b.String()
}

// ── Macros ──────────────────────────────────────────────────────────

// MacroLines is the line limit of one in-game macro.
const MacroLines = 15

// MacroOptions tune macro output.
type MacroOptions struct {
	// Notify ends every macro with an echo line, leaving one line less for
	// actions.
	Notify bool
	// ExtraWait is added to every action's wait.
	ExtraWait int
}

// Macros renders actions as in-game macros of at most MacroLines lines each.
func Macros(actions []sim.Action, table *sim.ActionTable, opts MacroOptions) []string {
	if len(actions) == 0 {
		return nil
	}
	if table == nil {
		table = sim.DefaultActionTable()
	}
	per := MacroLines
	if opts.Notify {
		per--
	}
	total := (len(actions) + per - 1) / per

	var out []string
	for n := 0; n*per < len(actions); n++ {
		chunk := actions[n*per : min((n+1)*per, len(actions))]
		var b strings.Builder
		for _, a := range chunk {
			fmt.Fprintf(&b, "/ac \"%s\" <wait.%d>\n", a.DisplayName(), table[a].Wait+opts.ExtraWait)
		}
		if opts.Notify {
			fmt.Fprintf(&b, "/echo Macro #%d/%d complete <se.1>\n", n+1, total)
		}
		out = append(out, b.String())
	}
	return out
}

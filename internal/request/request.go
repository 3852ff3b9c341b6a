// Package request turns external solve requests into search requests.
package request

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"craft-optimizer/internal/search"
	"craft-optimizer/internal/sim"
)

// ErrInvalid wraps every parsing and validation failure.
var ErrInvalid = errors.New("invalid request")

var validate = validator.New()

// Args is the external configuration record of a solve. Field ranges follow
// the fixed-width types foreign callers use.
type Args struct {
	ActionMask           sim.ActionMask
	Progress             uint32 `validate:"gt=0,lte=65535"`
	Quality              uint32 `validate:"lte=65535"`
	BaseProgress         uint32 `validate:"gt=0,lte=65535"`
	BaseQuality          uint32 `validate:"lte=65535"`
	CP                   int32  `validate:"gte=0,lte=32767"`
	Durability           int32  `validate:"gt=0,lte=127"`
	JobLevel             uint8  `validate:"gte=1,lte=100"`
	Adversarial          bool
	BackloadProgress     bool
	UnsoundBranchPruning bool

	// Overrides replace entries of the built-in action table.
	Overrides map[sim.Action]sim.ActionData
}

// Validate checks field ranges.
func (a *Args) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// numbers holds the numeric request fields before they are narrowed into Args.
type numbers struct {
	Progress     int64 `validate:"gt=0,lte=65535"`
	Quality      int64 `validate:"gte=0,lte=65535"`
	BaseProgress int64 `validate:"gt=0,lte=65535"`
	BaseQuality  int64 `validate:"gte=0,lte=65535"`
	CP           int64 `validate:"gte=0,lte=32767"`
	Durability   int64 `validate:"gt=0,lte=127"`
	JobLevel     int64 `validate:"gte=1,lte=100"`
}

// Parse reads a JSON request. Actions are given either as "action_mask" (a
// bitset over ordinals) or as "actions" (a list of names); without either,
// every action is allowed and the job level decides.
func Parse(body string) (Args, error) {
	if !gjson.Valid(body) {
		return Args{}, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	root := gjson.Parse(body)
	n := numbers{
		Progress:     root.Get("progress").Int(),
		Quality:      root.Get("quality").Int(),
		BaseProgress: root.Get("base_progress").Int(),
		BaseQuality:  root.Get("base_quality").Int(),
		CP:           root.Get("cp").Int(),
		Durability:   root.Get("durability").Int(),
		JobLevel:     root.Get("job_level").Int(),
	}
	if err := validate.Struct(&n); err != nil {
		return Args{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	a := Args{
		Progress:             uint32(n.Progress),
		Quality:              uint32(n.Quality),
		BaseProgress:         uint32(n.BaseProgress),
		BaseQuality:          uint32(n.BaseQuality),
		CP:                   int32(n.CP),
		Durability:           int32(n.Durability),
		JobLevel:             uint8(n.JobLevel),
		Adversarial:          root.Get("adversarial").Bool(),
		BackloadProgress:     root.Get("backload_progress").Bool(),
		UnsoundBranchPruning: root.Get("unsound_branch_pruning").Bool(),
	}

	switch names := root.Get("actions"); {
	case names.Exists():
		if !names.IsArray() {
			return Args{}, fmt.Errorf("%w: actions must be a list of names", ErrInvalid)
		}
		var errs []error
		names.ForEach(func(_, v gjson.Result) bool {
			act, err := ParseActionName(v.String())
			if err != nil {
				errs = append(errs, err)
				return true
			}
			a.ActionMask = a.ActionMask.Add(act)
			return true
		})
		if err := errors.Join(errs...); err != nil {
			return Args{}, err
		}
	case root.Get("action_mask").Exists():
		a.ActionMask = sim.ActionMask(root.Get("action_mask").Uint())
	default:
		a.ActionMask = sim.FullMask()
	}

	if table := root.Get("action_table"); table.Exists() {
		overrides, err := parseOverrides(table)
		if err != nil {
			return Args{}, err
		}
		a.Overrides = overrides
	}

	if err := a.Validate(); err != nil {
		return Args{}, err
	}
	return a, nil
}

func parseOverrides(table gjson.Result) (map[sim.Action]sim.ActionData, error) {
	if !table.IsObject() {
		return nil, fmt.Errorf("%w: action_table must be an object", ErrInvalid)
	}
	defaults := sim.DefaultActionTable()
	out := make(map[sim.Action]sim.ActionData)
	var errs []error
	table.ForEach(func(k, v gjson.Result) bool {
		act, err := ParseActionName(k.String())
		if err != nil {
			errs = append(errs, err)
			return true
		}
		d := defaults[act]
		fields := map[string]struct {
			max int64
			set func(int64)
		}{
			"level":          {255, func(v int64) { d.Level = uint8(v) }},
			"cp":             {math.MaxInt16, func(v int64) { d.CP = int32(v) }},
			"combo_cp":       {math.MaxInt16, func(v int64) { d.ComboCP = int32(v) }},
			"durability":     {math.MaxInt16, func(v int64) { d.Durability = int32(v) }},
			"progress":       {math.MaxUint16, func(v int64) { d.Progress = uint32(v); d.TraitLevel = 0 }},
			"quality":        {math.MaxUint16, func(v int64) { d.Quality = uint32(v) }},
			"trait_level":    {255, func(v int64) { d.TraitLevel = uint8(v) }},
			"trait_progress": {math.MaxUint16, func(v int64) { d.TraitProgress = uint32(v) }},
			"wait":           {60, func(v int64) { d.Wait = int(v) }},
		}
		v.ForEach(func(fk, fv gjson.Result) bool {
			f, ok := fields[fk.String()]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s: unknown field %q", ErrInvalid, act, fk.String()))
				return true
			}
			n := fv.Int()
			if fv.Type != gjson.Number || n < 0 || n > f.max || float64(n) != fv.Num {
				errs = append(errs, fmt.Errorf("%w: %s: %s must be an integer in [0, %d], got %s",
					ErrInvalid, act, fk.String(), f.max, fv.Raw))
				return true
			}
			f.set(n)
			return true
		})
		out[act] = d
		return true
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseActionName resolves an action name, suggesting the closest known name
// when it does not match.
func ParseActionName(name string) (sim.Action, error) {
	if a, ok := sim.ParseAction(name); ok {
		return a, nil
	}
	if hint := closestAction(name); hint != "" {
		return 0, fmt.Errorf("%w: unknown action %q (did you mean %q?)", ErrInvalid, name, hint)
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalid, name)
}

var nameSeparators = strings.NewReplacer(" ", "", "_", "", "-", "", "'", "")

func closestAction(name string) string {
	token := strings.ToLower(nameSeparators.Replace(name))
	best, bestDist := "", -1
	for _, cand := range sim.ActionNames() {
		dist := levenshtein.ComputeDistance(token, strings.ToLower(cand))
		if dist > max(2, len(cand)/3) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	return best
}

// Settings builds the craft settings the search runs on.
func (a *Args) Settings() sim.Settings {
	s := sim.Settings{
		MaxCP:         a.CP,
		MaxDurability: a.Durability,
		MaxProgress:   a.Progress,
		MaxQuality:    a.Quality,
		BaseProgress:  a.BaseProgress,
		BaseQuality:   a.BaseQuality,
		JobLevel:      a.JobLevel,
		Allowed:       a.ActionMask & sim.FullMask(),
		Adversarial:   a.Adversarial,
	}
	if len(a.Overrides) > 0 {
		table := sim.DefaultActionTable()
		for act, d := range a.Overrides {
			table[act] = d
		}
		s.Actions = table
	}
	return s
}

// SearchRequest builds the full search request.
func (a *Args) SearchRequest() search.Request {
	return search.Request{
		Settings:             a.Settings(),
		BackloadProgress:     a.BackloadProgress,
		UnsoundBranchPruning: a.UnsoundBranchPruning,
	}
}

// Fingerprint identifies the request for caching. Requests with equal
// fingerprints have the same answer under the same step limit.
func (a *Args) Fingerprint(maxSteps int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "v1|%d|%d|%d|%d|%d|%d|%d|%d|%t|%t|%t|%d",
		uint64(a.ActionMask&sim.FullMask()), a.Progress, a.Quality, a.BaseProgress, a.BaseQuality,
		a.CP, a.Durability, a.JobLevel, a.Adversarial, a.BackloadProgress, a.UnsoundBranchPruning,
		maxSteps)
	keys := make([]sim.Action, 0, len(a.Overrides))
	for act := range a.Overrides {
		keys = append(keys, act)
	}
	slices.Sort(keys)
	for _, act := range keys {
		fmt.Fprintf(&b, "|%d:%+v", act, a.Overrides[act])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

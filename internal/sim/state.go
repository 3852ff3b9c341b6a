package sim

import "fmt"

// SingleUse tracks an effect that can be used once per craft.
type SingleUse uint8

const (
	Available SingleUse = iota
	Active
	Unavailable
)

// Combo records what the previous action sets up for the next one.
type Combo uint8

const (
	ComboNone Combo = iota
	ComboSynthesisBegin
	ComboBasicTouch
	ComboStandardTouch
	ComboObserve
)

// MaxInnerQuiet is the stack cap of Inner Quiet.
const MaxInnerQuiet = 10

// Effects are the active buffs. Timers count the remaining steps they apply to.
type Effects struct {
	InnerQuiet        uint8
	WasteNot          uint8
	Innovation        uint8
	Veneration        uint8
	GreatStrides      uint8
	MuscleMemory      uint8
	Manipulation      uint8
	TrainedPerfection SingleUse
	HeartAndSoul      SingleUse
	QuickInnovation   SingleUse
}

func (e *Effects) tick() {
	dec := func(v *uint8) {
		if *v > 0 {
			*v--
		}
	}
	dec(&e.WasteNot)
	dec(&e.Innovation)
	dec(&e.Veneration)
	dec(&e.GreatStrides)
	dec(&e.MuscleMemory)
	dec(&e.Manipulation)
}

// CraftState is a point in a craft. It is a plain comparable value; Apply never
// mutates its input.
type CraftState struct {
	Progress   uint32
	Quality    uint32
	CP         int32
	Durability int32
	Condition  Condition
	Combo      Combo
	Effects    Effects
}

// Settings describe one craft: the recipe targets, the crafter's stats and the
// static tables the transition function interprets.
type Settings struct {
	MaxCP         int32
	MaxDurability int32
	MaxProgress   uint32
	// MaxQuality is the quality target. Zero means quality is uncapped.
	MaxQuality   uint32
	BaseProgress uint32
	BaseQuality  uint32
	JobLevel     uint8
	Allowed      ActionMask
	Adversarial  bool

	// Actions and Conditions default to the built-in tables when nil.
	Actions    *ActionTable
	Conditions *ConditionTable
}

// ActionTable returns the effective action table.
func (s *Settings) ActionTable() *ActionTable {
	if s.Actions != nil {
		return s.Actions
	}
	return &defaultActions
}

// ConditionTable returns the effective condition table.
func (s *Settings) ConditionTable() *ConditionTable {
	if s.Conditions != nil {
		return s.Conditions
	}
	return &defaultConditions
}

// Permits reports whether a is in the mask and unlocked at the job level.
func (s *Settings) Permits(a Action) bool {
	return s.Allowed.Has(a) && s.ActionTable()[a].Level <= s.JobLevel
}

// Permitted returns the usable actions in ordinal order.
func (s *Settings) Permitted() []Action {
	var out []Action
	for _, a := range s.Allowed.Actions() {
		if s.Permits(a) {
			out = append(out, a)
		}
	}
	return out
}

// Objective maps raw quality to the value the search maximizes.
func (s *Settings) Objective(quality uint32) uint32 {
	if s.MaxQuality > 0 && quality > s.MaxQuality {
		return s.MaxQuality
	}
	return quality
}

// Validate checks the settings for values no craft can start from.
func (s *Settings) Validate() error {
	switch {
	case s.MaxDurability <= 0:
		return fmt.Errorf("%w: durability must be positive, got %d", ErrInvalidSettings, s.MaxDurability)
	case s.MaxCP < 0:
		return fmt.Errorf("%w: cp must not be negative, got %d", ErrInvalidSettings, s.MaxCP)
	case s.MaxProgress == 0:
		return fmt.Errorf("%w: progress target must be positive", ErrInvalidSettings)
	case s.BaseProgress == 0:
		return fmt.Errorf("%w: base progress must be positive", ErrInvalidSettings)
	case s.JobLevel == 0:
		return fmt.Errorf("%w: job level must be positive", ErrInvalidSettings)
	}
	return nil
}

// Initial returns the state a craft starts in.
func (s *Settings) Initial() CraftState {
	return CraftState{
		CP:         s.MaxCP,
		Durability: s.MaxDurability,
		Condition:  Normal,
		Combo:      ComboSynthesisBegin,
	}
}

// Complete reports whether the progress target has been reached.
func (st *CraftState) Complete(s *Settings) bool { return st.Progress >= s.MaxProgress }

// Final reports whether no further action can be taken: the craft either
// completed or broke.
func (st *CraftState) Final(s *Settings) bool {
	return st.Complete(s) || st.Durability <= 0
}

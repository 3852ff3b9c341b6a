package sim

import "errors"

var (
	ErrInvalidSettings = errors.New("invalid craft settings")

	ErrCraftOver              = errors.New("craft is already over")
	ErrNotPermitted           = errors.New("action not permitted")
	ErrComboUnmet             = errors.New("combo requirement not met")
	ErrAlreadyUsed            = errors.New("single-use action already used")
	ErrConditionUnmet         = errors.New("condition requirement not met")
	ErrRequirementUnmet       = errors.New("action requirement not met")
	ErrInsufficientCP         = errors.New("insufficient cp")
	ErrInsufficientDurability = errors.New("insufficient durability")
)

// Check reports why a cannot be taken from st, or nil when it can.
func Check(st CraftState, a Action, s *Settings) error {
	_, _, err := costs(&st, a, s)
	return err
}

// costs validates the action and returns its CP and durability cost in the
// current state.
func costs(st *CraftState, a Action, s *Settings) (int32, int32, error) {
	if st.Final(s) {
		return 0, 0, ErrCraftOver
	}
	if !s.Permits(a) {
		return 0, 0, ErrNotPermitted
	}
	e := &st.Effects
	switch a {
	case MuscleMemory, Reflect, TrainedEye:
		if st.Combo != ComboSynthesisBegin {
			return 0, 0, ErrComboUnmet
		}
	case HeartAndSoul, TrainedPerfection:
		if (a == HeartAndSoul && e.HeartAndSoul != Available) ||
			(a == TrainedPerfection && e.TrainedPerfection != Available) {
			return 0, 0, ErrAlreadyUsed
		}
	case QuickInnovation:
		if e.QuickInnovation != Available {
			return 0, 0, ErrAlreadyUsed
		}
		if e.Innovation > 0 {
			return 0, 0, ErrRequirementUnmet
		}
	case TricksOfTheTrade, PreciseTouch, IntensiveSynthesis:
		if !st.Condition.Enables() && e.HeartAndSoul != Active {
			return 0, 0, ErrConditionUnmet
		}
	case ByregotsBlessing:
		if e.InnerQuiet == 0 {
			return 0, 0, ErrRequirementUnmet
		}
	case TrainedFinesse:
		if e.InnerQuiet < MaxInnerQuiet {
			return 0, 0, ErrRequirementUnmet
		}
	case PrudentTouch, PrudentSynthesis:
		if e.WasteNot > 0 {
			return 0, 0, ErrRequirementUnmet
		}
	}

	d := &s.ActionTable()[a]
	mods := &s.ConditionTable()[st.Condition]

	cp := d.CP
	if comboDiscount(st.Combo, a) {
		cp = d.ComboCP
	}
	cp = ScaleCost(cp, mods.CP)

	dur := d.Durability
	if e.WasteNot > 0 {
		dur -= dur / 2
	}
	dur = ScaleCost(dur, mods.Durability)
	if e.TrainedPerfection == Active {
		dur = 0
	}

	if cp > st.CP {
		return 0, 0, ErrInsufficientCP
	}
	if dur > st.Durability {
		return 0, 0, ErrInsufficientDurability
	}
	return cp, dur, nil
}

func comboDiscount(c Combo, a Action) bool {
	switch a {
	case StandardTouch:
		return c == ComboBasicTouch
	case AdvancedTouch:
		return c == ComboStandardTouch || c == ComboObserve
	}
	return false
}

// Apply returns the state after taking action a from st. The next step's
// condition is Normal; callers exploring other conditions overwrite it with one
// of Settings.Outcomes.
func Apply(st CraftState, a Action, s *Settings) (CraftState, error) {
	cp, dur, err := costs(&st, a, s)
	if err != nil {
		return st, err
	}
	d := &s.ActionTable()[a]
	mods := &s.ConditionTable()[st.Condition]

	next := st
	e := &next.Effects
	next.CP -= cp
	next.Durability -= dur
	if e.TrainedPerfection == Active && d.Durability > 0 {
		e.TrainedPerfection = Unavailable
	}

	// Gains use the buffs as they were before this action.
	progressPotency := d.ProgressPotency(s.JobLevel)
	if progressPotency > 0 {
		mod := uint64(100)
		if st.Effects.Veneration > 0 {
			mod += 50
		}
		if st.Effects.MuscleMemory > 0 {
			mod += 100
		}
		gain := uint64(s.BaseProgress) * uint64(progressPotency) * mod * uint64(mods.Progress) / 1_000_000
		next.Progress = uint32(min(uint64(st.Progress)+gain, uint64(s.MaxProgress)))
	}

	qualityPotency := d.Quality
	if a == ByregotsBlessing {
		qualityPotency = qualityPotency * (10 + 2*uint32(st.Effects.InnerQuiet)) / 10
	}
	if qualityPotency > 0 {
		iq := uint64(100 + 10*uint32(st.Effects.InnerQuiet))
		buff := uint64(100)
		if st.Effects.Innovation > 0 {
			buff += 50
		}
		if st.Effects.GreatStrides > 0 {
			buff += 100
		}
		gain := uint64(s.BaseQuality) * uint64(qualityPotency) * iq * buff * uint64(mods.Quality) / 100_000_000
		next.Quality += uint32(gain)
	}
	if a == TrainedEye && s.MaxQuality > next.Quality {
		next.Quality = s.MaxQuality
	}

	switch a {
	case TricksOfTheTrade, PreciseTouch, IntensiveSynthesis:
		if !st.Condition.Enables() {
			e.HeartAndSoul = Unavailable
		}
	}

	mend := e.Manipulation > 0 && a != Manipulation
	e.tick()
	if progressPotency > 0 {
		e.MuscleMemory = 0
	}
	if qualityPotency > 0 {
		e.GreatStrides = 0
		e.InnerQuiet = min(e.InnerQuiet+innerQuietGain(st.Combo, a), MaxInnerQuiet)
	}

	switch a {
	case ByregotsBlessing:
		e.InnerQuiet = 0
	case WasteNot:
		e.WasteNot = 4
	case WasteNot2:
		e.WasteNot = 8
	case Veneration:
		e.Veneration = 4
	case GreatStrides:
		e.GreatStrides = 3
	case Innovation:
		e.Innovation = 4
	case QuickInnovation:
		e.Innovation = 1
		e.QuickInnovation = Unavailable
	case MuscleMemory:
		e.MuscleMemory = 5
	case Manipulation:
		e.Manipulation = 8
	case HeartAndSoul:
		e.HeartAndSoul = Active
	case TrainedPerfection:
		e.TrainedPerfection = Active
	case MasterMend:
		next.Durability = min(next.Durability+30, s.MaxDurability)
	case ImmaculateMend:
		next.Durability = s.MaxDurability
	case TricksOfTheTrade:
		next.CP = min(next.CP+20, s.MaxCP)
	}

	if mend && !next.Final(s) {
		next.Durability = min(next.Durability+5, s.MaxDurability)
	}

	switch {
	case a == BasicTouch:
		next.Combo = ComboBasicTouch
	case a == StandardTouch && st.Combo == ComboBasicTouch:
		next.Combo = ComboStandardTouch
	case a == Observe:
		next.Combo = ComboObserve
	default:
		next.Combo = ComboNone
	}
	next.Condition = Normal
	return next, nil
}

func innerQuietGain(c Combo, a Action) uint8 {
	switch a {
	case Reflect, PreparatoryTouch, PreciseTouch:
		return 2
	case RefinedTouch:
		if c == ComboBasicTouch {
			return 2
		}
	}
	return 1
}

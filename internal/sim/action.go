package sim

import (
	"fmt"
	"strings"
)

// Action identifies a crafting action. The ordinal values are a stable external
// encoding: masks, persisted rotations and foreign callers all rely on them.
type Action uint8

const (
	BasicSynthesis Action = iota
	BasicTouch
	MasterMend
	Observe
	TricksOfTheTrade
	WasteNot
	Veneration
	StandardTouch
	GreatStrides
	Innovation
	WasteNot2
	ByregotsBlessing
	PreciseTouch
	MuscleMemory
	CarefulSynthesis
	Manipulation
	PrudentTouch
	AdvancedTouch
	Reflect
	PreparatoryTouch
	Groundwork
	DelicateSynthesis
	IntensiveSynthesis
	TrainedEye
	HeartAndSoul
	PrudentSynthesis
	TrainedFinesse
	RefinedTouch
	QuickInnovation
	ImmaculateMend
	TrainedPerfection
)

// ActionCount is the number of defined actions.
const ActionCount = int(TrainedPerfection) + 1

var actionNames = [ActionCount]string{
	"BasicSynthesis",
	"BasicTouch",
	"MasterMend",
	"Observe",
	"TricksOfTheTrade",
	"WasteNot",
	"Veneration",
	"StandardTouch",
	"GreatStrides",
	"Innovation",
	"WasteNot2",
	"ByregotsBlessing",
	"PreciseTouch",
	"MuscleMemory",
	"CarefulSynthesis",
	"Manipulation",
	"PrudentTouch",
	"AdvancedTouch",
	"Reflect",
	"PreparatoryTouch",
	"Groundwork",
	"DelicateSynthesis",
	"IntensiveSynthesis",
	"TrainedEye",
	"HeartAndSoul",
	"PrudentSynthesis",
	"TrainedFinesse",
	"RefinedTouch",
	"QuickInnovation",
	"ImmaculateMend",
	"TrainedPerfection",
}

// In-game display names, used for macro text.
var displayNames = [ActionCount]string{
	"Basic Synthesis",
	"Basic Touch",
	"Master's Mend",
	"Observe",
	"Tricks of the Trade",
	"Waste Not",
	"Veneration",
	"Standard Touch",
	"Great Strides",
	"Innovation",
	"Waste Not II",
	"Byregot's Blessing",
	"Precise Touch",
	"Muscle Memory",
	"Careful Synthesis",
	"Manipulation",
	"Prudent Touch",
	"Advanced Touch",
	"Reflect",
	"Preparatory Touch",
	"Groundwork",
	"Delicate Synthesis",
	"Intensive Synthesis",
	"Trained Eye",
	"Heart and Soul",
	"Prudent Synthesis",
	"Trained Finesse",
	"Refined Touch",
	"Quick Innovation",
	"Immaculate Mend",
	"Trained Perfection",
}

func (a Action) String() string {
	if int(a) < ActionCount {
		return actionNames[a]
	}
	return "Action(?)"
}

// DisplayName returns the name the game client uses for the action.
func (a Action) DisplayName() string {
	if int(a) < ActionCount {
		return displayNames[a]
	}
	return a.String()
}

// MarshalText encodes the canonical name, so rotations read as names in JSON
// rather than as a byte string.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action ordinal %d", uint8(a))
	}
	return []byte(actionNames[a]), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	v, ok := ParseAction(string(text))
	if !ok {
		return fmt.Errorf("unknown action %q", text)
	}
	*a = v
	return nil
}

// Valid reports whether a is one of the defined ordinals.
func (a Action) Valid() bool { return int(a) < ActionCount }

// AllActions returns every action in ordinal order.
func AllActions() []Action {
	out := make([]Action, ActionCount)
	for i := range out {
		out[i] = Action(i)
	}
	return out
}

// ActionNames returns the canonical names in ordinal order.
func ActionNames() []string {
	return append([]string(nil), actionNames[:]...)
}

// ParseAction resolves a canonical or display name, ignoring case, spaces,
// underscores and apostrophes.
func ParseAction(s string) (Action, bool) {
	key := normalizeName(s)
	for i := range actionNames {
		if normalizeName(actionNames[i]) == key || normalizeName(displayNames[i]) == key {
			return Action(i), true
		}
	}
	return 0, false
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '_', '-', '\'':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ── Action mask ─────────────────────────────────────────────────────

// ActionMask is a bitset over action ordinals.
type ActionMask uint64

// MaskOf builds a mask containing the given actions.
func MaskOf(actions ...Action) ActionMask {
	var m ActionMask
	for _, a := range actions {
		m = m.Add(a)
	}
	return m
}

// FullMask contains every defined action.
func FullMask() ActionMask { return ActionMask(1)<<ActionCount - 1 }

// Has reports whether a is in the mask.
func (m ActionMask) Has(a Action) bool { return a.Valid() && m&(1<<a) != 0 }

func (m ActionMask) Add(a Action) ActionMask { return m | 1<<a }

func (m ActionMask) Remove(a Action) ActionMask { return m &^ (1 << a) }

func (m ActionMask) Union(o ActionMask) ActionMask { return m | o }

func (m ActionMask) Intersect(o ActionMask) ActionMask { return m & o }

// Actions lists the members of the mask in ordinal order. Bits above the
// defined ordinals are ignored.
func (m ActionMask) Actions() []Action {
	var out []Action
	for i := 0; i < ActionCount; i++ {
		if m&(1<<i) != 0 {
			out = append(out, Action(i))
		}
	}
	return out
}

// ── Static action data ──────────────────────────────────────────────

// ActionData is the static, data-only description of an action. Behavior that is
// not a plain number (combos, buffs, requirements) is interpreted by Apply.
type ActionData struct {
	// Level is the job level the action unlocks at.
	Level uint8
	// CP is the base CP cost.
	CP int32
	// ComboCP is the CP cost when the action's combo requirement is met.
	// Only Standard Touch and Advanced Touch use it.
	ComboCP int32
	// Durability is the base durability cost.
	Durability int32
	// Progress and Quality are potencies in percent of base progress / quality.
	Progress uint32
	Quality  uint32
	// TraitLevel, when non-zero, upgrades the progress potency to TraitProgress
	// from that job level on.
	TraitLevel    uint8
	TraitProgress uint32
	// Wait is the macro wait in seconds.
	Wait int
}

// ActionTable is the full static data set, indexed by ordinal.
type ActionTable [ActionCount]ActionData

// DefaultActionTable returns the built-in action data.
func DefaultActionTable() *ActionTable {
	t := defaultActions
	return &t
}

var defaultActions = ActionTable{
	BasicSynthesis:     {Level: 1, Durability: 10, Progress: 100, TraitLevel: 31, TraitProgress: 120, Wait: 3},
	BasicTouch:         {Level: 5, CP: 18, Durability: 10, Quality: 100, Wait: 3},
	MasterMend:         {Level: 7, CP: 88, Wait: 3},
	Observe:            {Level: 13, CP: 7, Wait: 3},
	TricksOfTheTrade:   {Level: 13, Wait: 3},
	WasteNot:           {Level: 15, CP: 56, Wait: 2},
	Veneration:         {Level: 15, CP: 18, Wait: 2},
	StandardTouch:      {Level: 18, CP: 32, ComboCP: 18, Durability: 10, Quality: 125, Wait: 3},
	GreatStrides:       {Level: 21, CP: 32, Wait: 2},
	Innovation:         {Level: 26, CP: 18, Wait: 2},
	WasteNot2:          {Level: 47, CP: 98, Wait: 2},
	ByregotsBlessing:   {Level: 50, CP: 24, Durability: 10, Quality: 100, Wait: 3},
	PreciseTouch:       {Level: 53, CP: 18, Durability: 10, Quality: 150, Wait: 3},
	MuscleMemory:       {Level: 54, CP: 6, Durability: 10, Progress: 300, Wait: 3},
	CarefulSynthesis:   {Level: 62, CP: 7, Durability: 10, Progress: 150, TraitLevel: 82, TraitProgress: 180, Wait: 3},
	Manipulation:       {Level: 65, CP: 96, Wait: 2},
	PrudentTouch:       {Level: 66, CP: 25, Durability: 5, Quality: 100, Wait: 3},
	AdvancedTouch:      {Level: 68, CP: 46, ComboCP: 18, Durability: 10, Quality: 150, Wait: 3},
	Reflect:            {Level: 69, CP: 6, Durability: 10, Quality: 300, Wait: 3},
	PreparatoryTouch:   {Level: 71, CP: 40, Durability: 20, Quality: 200, Wait: 3},
	Groundwork:         {Level: 72, CP: 18, Durability: 20, Progress: 300, TraitLevel: 86, TraitProgress: 360, Wait: 3},
	DelicateSynthesis:  {Level: 76, CP: 32, Durability: 10, Progress: 100, Quality: 100, TraitLevel: 94, TraitProgress: 150, Wait: 3},
	IntensiveSynthesis: {Level: 78, CP: 6, Durability: 10, Progress: 400, Wait: 3},
	TrainedEye:         {Level: 80, CP: 250, Durability: 10, Wait: 3},
	HeartAndSoul:       {Level: 86, Wait: 3},
	PrudentSynthesis:   {Level: 88, CP: 18, Durability: 5, Progress: 180, Wait: 3},
	TrainedFinesse:     {Level: 90, CP: 32, Quality: 100, Wait: 3},
	RefinedTouch:       {Level: 92, CP: 24, Durability: 10, Quality: 100, Wait: 3},
	QuickInnovation:    {Level: 96, Wait: 3},
	ImmaculateMend:     {Level: 98, CP: 112, Wait: 3},
	TrainedPerfection:  {Level: 100, Wait: 3},
}

// ProgressPotency returns the progress potency at the given job level.
func (d *ActionData) ProgressPotency(level uint8) uint32 {
	if d.TraitLevel != 0 && level >= d.TraitLevel {
		return d.TraitProgress
	}
	return d.Progress
}

// LevelMask returns the actions unlocked at the given job level.
func (t *ActionTable) LevelMask(level uint8) ActionMask {
	var m ActionMask
	for i := range t {
		if t[i].Level <= level {
			m = m.Add(Action(i))
		}
	}
	return m
}

// IsRestore reports whether the action only restores durability.
func (a Action) IsRestore() bool {
	return a == MasterMend || a == Manipulation || a == ImmaculateMend
}

// IsQualityOnly reports whether the action exists only to raise quality,
// either directly or through a quality buff.
func (a Action) IsQualityOnly(t *ActionTable) bool {
	switch a {
	case Innovation, GreatStrides, QuickInnovation:
		return true
	}
	d := &t[a]
	return d.Quality > 0 && d.Progress == 0
}

// IsOneShot reports whether the action can be used at most once per craft.
func (a Action) IsOneShot() bool {
	return a == HeartAndSoul || a == QuickInnovation || a == TrainedPerfection
}

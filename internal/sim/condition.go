package sim

// Condition is the per-step crafting condition.
type Condition uint8

const (
	Normal Condition = iota
	Good
	Excellent
	Poor
	Centered
	Sturdy
	Pliant
	Malleable
)

// ConditionCount is the number of defined conditions.
const ConditionCount = int(Malleable) + 1

var conditionNames = [ConditionCount]string{
	"Normal", "Good", "Excellent", "Poor", "Centered", "Sturdy", "Pliant", "Malleable",
}

func (c Condition) String() string {
	if int(c) < ConditionCount {
		return conditionNames[c]
	}
	return "Condition(?)"
}

// ParseCondition resolves a condition name, ignoring case.
func ParseCondition(s string) (Condition, bool) {
	key := normalizeName(s)
	for i, n := range conditionNames {
		if normalizeName(n) == key {
			return Condition(i), true
		}
	}
	return Normal, false
}

// ConditionModifiers are percentage multipliers applied while a condition holds.
type ConditionModifiers struct {
	Quality    uint32
	Progress   uint32
	CP         int32
	Durability int32
}

// ConditionTable holds the modifiers for every condition.
type ConditionTable [ConditionCount]ConditionModifiers

var defaultConditions = ConditionTable{
	Normal:    {Quality: 100, Progress: 100, CP: 100, Durability: 100},
	Good:      {Quality: 150, Progress: 100, CP: 100, Durability: 100},
	Excellent: {Quality: 400, Progress: 100, CP: 100, Durability: 100},
	Poor:      {Quality: 50, Progress: 100, CP: 100, Durability: 100},
	Centered:  {Quality: 100, Progress: 100, CP: 100, Durability: 100},
	Sturdy:    {Quality: 100, Progress: 100, CP: 100, Durability: 50},
	Pliant:    {Quality: 100, Progress: 100, CP: 50, Durability: 100},
	Malleable: {Quality: 100, Progress: 150, CP: 100, Durability: 100},
}

// DefaultConditionTable returns the built-in condition modifiers.
func DefaultConditionTable() *ConditionTable {
	t := defaultConditions
	return &t
}

// ScaleCost applies a percentage to a cost, rounding up.
func ScaleCost(cost, pct int32) int32 {
	if pct == 100 || cost == 0 {
		return cost
	}
	return (cost*pct + 99) / 100
}

// Enables reports whether the condition unlocks the Good/Excellent-only actions.
func (c Condition) Enables() bool { return c == Good || c == Excellent }

var (
	normalOnly   = []Condition{Normal}
	normalOrPoor = []Condition{Normal, Poor}
)

// Outcomes lists the conditions the step after a step in condition prev may
// have. Without adversarial mode the craft is assumed to stay Normal. In
// adversarial mode the next step may turn Poor, except right after a Poor step.
// Normal is always an outcome. Callers must not modify the returned slice.
func (s *Settings) Outcomes(prev Condition) []Condition {
	if !s.Adversarial || prev == Poor {
		return normalOnly
	}
	return normalOrPoor
}

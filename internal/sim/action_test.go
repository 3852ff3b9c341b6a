package sim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, name := range []string{"ByregotsBlessing", "Byregot's Blessing", "byregots_blessing", "BYREGOTS-BLESSING"} {
		a, ok := ParseAction(name)
		require.True(t, ok, name)
		assert.Equal(t, ByregotsBlessing, a)
	}
	a, ok := ParseAction("Master's Mend")
	require.True(t, ok)
	assert.Equal(t, MasterMend, a)

	_, ok = ParseAction("Focused Touch")
	assert.False(t, ok)

	for _, a := range AllActions() {
		got, ok := ParseAction(a.String())
		require.True(t, ok, a.String())
		assert.Equal(t, a, got)
	}
}

func TestActionMask(t *testing.T) {
	m := MaskOf(Observe, Innovation)
	assert.True(t, m.Has(Observe))
	assert.False(t, m.Has(BasicTouch))
	assert.False(t, m.Has(Action(ActionCount)))
	assert.Equal(t, []Action{Observe, Innovation}, m.Actions())
	assert.Equal(t, MaskOf(Innovation), m.Remove(Observe))
	assert.Len(t, FullMask().Actions(), ActionCount)

	low := DefaultActionTable().LevelMask(15)
	assert.Equal(t, MaskOf(BasicSynthesis, BasicTouch, MasterMend, Observe, TricksOfTheTrade, WasteNot, Veneration), low)
}

func TestActionJSONUsesNames(t *testing.T) {
	data, err := json.Marshal([]Action{MuscleMemory, WasteNot2})
	require.NoError(t, err)
	assert.JSONEq(t, `["MuscleMemory", "WasteNot2"]`, string(data))

	var back []Action
	require.NoError(t, json.Unmarshal([]byte(`["Muscle Memory", "waste_not_2"]`), &back))
	assert.Equal(t, []Action{MuscleMemory, WasteNot2}, back)

	assert.Error(t, json.Unmarshal([]byte(`["Fireball"]`), &back))
}

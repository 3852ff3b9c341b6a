package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craft-optimizer/internal/sim"
)

const baseRequest = `{
	"progress": 2000,
	"quality": 8000,
	"base_progress": 230,
	"base_quality": 240,
	"cp": 500,
	"durability": 70,
	"job_level": 100`

func TestParseDefaultsToEveryAction(t *testing.T) {
	a, err := Parse(baseRequest + `}`)
	require.NoError(t, err)
	assert.Equal(t, sim.FullMask(), a.ActionMask)
	assert.EqualValues(t, 2000, a.Progress)
	assert.EqualValues(t, 500, a.CP)
	assert.EqualValues(t, 100, a.JobLevel)
	assert.False(t, a.Adversarial)

	s := a.Settings()
	assert.Nil(t, s.Actions)
	require.NoError(t, s.Validate())
	assert.Len(t, s.Permitted(), sim.ActionCount)
}

func TestParseActionNames(t *testing.T) {
	a, err := Parse(baseRequest + `,
		"actions": ["BasicSynthesis", "basic touch", "Byregot's Blessing", "waste_not_2"],
		"adversarial": true,
		"backload_progress": true
	}`)
	require.NoError(t, err)
	assert.Equal(t, sim.MaskOf(sim.BasicSynthesis, sim.BasicTouch, sim.ByregotsBlessing, sim.WasteNot2), a.ActionMask)

	req := a.SearchRequest()
	assert.True(t, req.Settings.Adversarial)
	assert.True(t, req.BackloadProgress)
	assert.False(t, req.UnsoundBranchPruning)
}

func TestParseActionMask(t *testing.T) {
	a, err := Parse(baseRequest + `, "action_mask": 5}`)
	require.NoError(t, err)
	assert.Equal(t, sim.MaskOf(sim.BasicSynthesis, sim.MasterMend), a.ActionMask)
}

func TestParseSuggestsCloseNames(t *testing.T) {
	_, err := Parse(baseRequest + `, "actions": ["BasicSynthesis", "Veneraton"]}`)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), `did you mean "Veneration"?`)

	_, err = ParseActionName("Fireball")
	require.ErrorIs(t, err, ErrInvalid)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"malformed":         `{"progress": `,
		"zero progress":     `{"progress": 0, "base_progress": 100, "cp": 10, "durability": 40, "job_level": 90}`,
		"durability 128":    `{"progress": 100, "base_progress": 100, "cp": 10, "durability": 128, "job_level": 90}`,
		"negative cp":       `{"progress": 100, "base_progress": 100, "cp": -1, "durability": 40, "job_level": 90}`,
		"level 0":           `{"progress": 100, "base_progress": 100, "cp": 10, "durability": 40}`,
		"actions object":    baseRequest + `, "actions": {"a": 1}}`,
		"table not obj":     baseRequest + `, "action_table": [1]}`,
		"unknown field":     baseRequest + `, "action_table": {"Observe": {"speed": 1}}}`,
		"negative cost":     baseRequest + `, "action_table": {"Observe": {"cp": -3}}}`,
		"unknown in table":  baseRequest + `, "action_table": {"Obsreve": {"cp": 3}}}`,
		"progress overflow": `{"progress": 4294967396, "base_progress": 100, "cp": 10, "durability": 40, "job_level": 90}`,
		"cp overflow":       `{"progress": 100, "base_progress": 100, "cp": 4294967306, "durability": 40, "job_level": 90}`,
		"negative progress": `{"progress": -100, "base_progress": 100, "cp": 10, "durability": 40, "job_level": 90}`,
		"level overflow":    `{"progress": 100, "base_progress": 100, "cp": 10, "durability": 40, "job_level": 356}`,
		"cost overflow":     baseRequest + `, "action_table": {"Observe": {"cp": 4294967303}}}`,
		"fractional cost":   baseRequest + `, "action_table": {"Observe": {"cp": 2.5}}}`,
		"string cost":       baseRequest + `, "action_table": {"Observe": {"cp": "7"}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(body)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestActionTableOverrides(t *testing.T) {
	a, err := Parse(baseRequest + `, "action_table": {"BasicSynthesis": {"progress": 150, "cp": 3}}}`)
	require.NoError(t, err)
	require.Contains(t, a.Overrides, sim.BasicSynthesis)

	s := a.Settings()
	require.NotNil(t, s.Actions)
	d := s.Actions[sim.BasicSynthesis]
	assert.EqualValues(t, 3, d.CP)
	assert.EqualValues(t, 150, d.ProgressPotency(100))
	assert.EqualValues(t, 10, d.Durability)
	// The built-in table stays untouched.
	assert.EqualValues(t, 0, sim.DefaultActionTable()[sim.BasicSynthesis].CP)
}

func TestFingerprint(t *testing.T) {
	a, err := Parse(baseRequest + `}`)
	require.NoError(t, err)
	b, err := Parse(baseRequest + `}`)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(40), b.Fingerprint(40))
	assert.Len(t, a.Fingerprint(40), 64)
	assert.NotEqual(t, a.Fingerprint(40), a.Fingerprint(30))

	b.Adversarial = true
	assert.NotEqual(t, a.Fingerprint(40), b.Fingerprint(40))

	c, err := Parse(baseRequest + `, "action_table": {"Observe": {"cp": 5}}}`)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(40), c.Fingerprint(40))
}

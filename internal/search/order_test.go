package search

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craft-optimizer/internal/sim"
)

func TestActionOrderPrefersPotencyPerCost(t *testing.T) {
	s := sim.Settings{
		JobLevel: 100,
		Allowed:  sim.MaskOf(sim.Observe, sim.BasicTouch, sim.BasicSynthesis, sim.PreparatoryTouch, sim.Innovation),
	}
	order := actionOrder(&s, false)
	require.Len(t, order, 5)
	// Basic Synthesis costs no CP, so its ratio beats every touch.
	assert.Equal(t, sim.BasicSynthesis, order[0])
	// Zero-potency actions go last, cheaper first.
	assert.Equal(t, []sim.Action{sim.Observe, sim.Innovation}, order[3:])
}

func TestActionOrderBackload(t *testing.T) {
	s := sim.Settings{
		JobLevel: 100,
		Allowed:  sim.MaskOf(sim.BasicSynthesis, sim.BasicTouch, sim.Veneration, sim.Innovation, sim.DelicateSynthesis),
	}
	order := actionOrder(&s, true)
	synth := slices.Index(order, sim.BasicSynthesis)
	delicate := slices.Index(order, sim.DelicateSynthesis)
	for _, q := range []sim.Action{sim.BasicTouch, sim.Innovation} {
		assert.Less(t, slices.Index(order, q), slices.Index(order, sim.Veneration), "%s before Veneration", q)
	}
	assert.Less(t, slices.Index(order, sim.Veneration), synth)
	assert.Less(t, slices.Index(order, sim.Veneration), delicate)
}

func TestReporterCoalescesAndOrders(t *testing.T) {
	rec := &recorder{}
	rep := newReporter(rec)
	rep.start()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				rep.progress(uint64(w*200 + i + 1))
				rep.suggest(Solution{Actions: []sim.Action{sim.BasicSynthesis}, Quality: uint32(i)})
			}
		}()
	}
	wg.Wait()
	rep.close()

	require.NotEmpty(t, rec.suggestions)
	for i := 1; i < len(rec.suggestions); i++ {
		assert.Greater(t, rec.suggestions[i].Quality, rec.suggestions[i-1].Quality)
	}
	assert.EqualValues(t, 199, rec.suggestions[len(rec.suggestions)-1].Quality)
	for i := 1; i < len(rec.progress); i++ {
		assert.Greater(t, rec.progress[i], rec.progress[i-1])
	}
	assert.EqualValues(t, 1600, rec.progress[len(rec.progress)-1])
}

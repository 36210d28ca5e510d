package cartpole

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	env "github.com/policygrad/goppo/environment"
)

func TestNewReturnsFirstStep(t *testing.T) {
	_, first := New(192382, 0.99, 500)

	assert.True(t, first.First())
	assert.Equal(t, 0, first.Number)
	assert.Equal(t, 0.0, first.Reward)

	obs := first.Observation
	require.Equal(t, 4, obs.Len())
	for i := 0; i < obs.Len(); i++ {
		assert.GreaterOrEqual(t, obs.AtVec(i), -StartBounds)
		assert.LessOrEqual(t, obs.AtVec(i), StartBounds)
	}
}

func TestStepAdvancesEnvironment(t *testing.T) {
	c, _ := New(192382, 0.99, 500)

	step, last := c.Step(mat.NewVecDense(1, []float64{1.0}))

	assert.False(t, last)
	assert.True(t, step.Mid())
	assert.Equal(t, 1, step.Number)
	assert.Equal(t, 1.0, step.Reward)
	assert.Equal(t, 4, step.Observation.Len())
}

func TestStepPanicsOnIllegalAction(t *testing.T) {
	c, _ := New(192382, 0.99, 500)

	assert.Panics(t, func() {
		c.Step(mat.NewVecDense(1, []float64{2.0}))
	})
}

func TestEpisodeEndsAtStepLimit(t *testing.T) {
	maxSteps := 5
	c, _ := New(192382, 0.99, maxSteps)

	// Alternating pushes keep the pole near upright, so only the step
	// limit can end this episode
	var step = c.Reset()
	var last bool
	for i := 0; i < maxSteps; i++ {
		action := float64(i % 2)
		step, last = c.Step(mat.NewVecDense(1, []float64{action}))
	}

	assert.True(t, last)
	assert.True(t, step.Last())
	assert.Equal(t, maxSteps, step.Number)
}

func TestResetStartsNewEpisode(t *testing.T) {
	c, _ := New(192382, 0.99, 500)
	c.Step(mat.NewVecDense(1, []float64{0.0}))

	step := c.Reset()
	assert.True(t, step.First())
	assert.Equal(t, 0, step.Number)
}

func TestSpecs(t *testing.T) {
	c, _ := New(192382, 0.99, 500)

	actionSpec := c.ActionSpec()
	assert.Equal(t, env.Discrete, actionSpec.Cardinality)
	assert.Equal(t, 0.0, actionSpec.LowerBound.AtVec(0))
	assert.Equal(t, 1.0, actionSpec.UpperBound.AtVec(0))

	obsSpec := c.ObservationSpec()
	assert.Equal(t, env.Continuous, obsSpec.Cardinality)
	assert.Equal(t, 4, obsSpec.Shape.Len())
}

package ppo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestDiscountedReturnsResetsAtTerminals(t *testing.T) {
	rewards := []float64{1.0, 1.0}
	terminals := []bool{false, true}

	returns := discountedReturns(rewards, terminals, 0.99)

	assert.InDelta(t, 1.99, returns[0], 1e-12)
	assert.InDelta(t, 1.0, returns[1], 1e-12)
}

func TestDiscountedReturnsAllTerminals(t *testing.T) {
	rewards := []float64{1.0, 1.0}
	terminals := []bool{true, true}

	returns := discountedReturns(rewards, terminals, 0.99)

	assert.Equal(t, []float64{1.0, 1.0}, returns)
}

func TestDiscountedReturnsSingleEpisode(t *testing.T) {
	rewards := []float64{1.0, 1.0, 1.0}
	terminals := []bool{false, false, false}

	returns := discountedReturns(rewards, terminals, 0.99)

	assert.InDelta(t, 1.0+0.99*(1.0+0.99), returns[0], 1e-12)
	assert.InDelta(t, 1.99, returns[1], 1e-12)
	assert.InDelta(t, 1.0, returns[2], 1e-12)
}

func TestNormalizeReturnsSingleElement(t *testing.T) {
	normalized := normalizeReturns([]float64{5.0})

	require.Len(t, normalized, 1)
	assert.False(t, math.IsNaN(normalized[0]))
	assert.Equal(t, 0.0, normalized[0])
}

func TestNormalizeReturnsZeroMeanUnitStd(t *testing.T) {
	normalized := normalizeReturns([]float64{1.0, 2.0, 3.0})

	// Sample standard deviation of {1, 2, 3} is 1
	assert.InDelta(t, -1.0, normalized[0], 1e-6)
	assert.InDelta(t, 0.0, normalized[1], 1e-6)
	assert.InDelta(t, 1.0, normalized[2], 1e-6)
}

func TestClippedObjective(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		advantage float64
		expected  float64
	}{
		{"positive advantage bounded above", 10.0, 1.0, 1.2},
		{"negative advantage keeps unclipped min", 10.0, -1.0, -10.0},
		{"negative advantage bounded below", 0.5, -1.0, -0.8},
		{"ratio inside clip range", 1.1, 1.0, 1.1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			objective := clippedObjective(test.ratio, test.advantage, 0.2)
			assert.InDelta(t, test.expected, objective, 1e-12)
		})
	}
}

func TestSurrogateCoefficients(t *testing.T) {
	// Ratio 2 with positive advantage saturates the clip, so the
	// gradient coefficient is zero; ratio 1 keeps the unclipped branch
	// and the coefficient is the unclipped objective; ratio 2 with
	// negative advantage also keeps the unclipped branch.
	logProbs := []float64{math.Log(2.0), -1.0, math.Log(2.0)}
	oldLogProbs := []float64{0.0, -1.0, 0.0}
	returns := []float64{1.0, 1.0, -1.0}
	values := []float64{0.0, 0.0, 0.0}

	coefficients := surrogateCoefficients(logProbs, oldLogProbs, returns,
		values, 0.2)

	assert.Equal(t, 0.0, coefficients[0])
	assert.InDelta(t, 1.0, coefficients[1], 1e-12)
	assert.InDelta(t, -2.0, coefficients[2], 1e-12)
}

// staticGrad is a ValueGrad with a fixed gradient tensor
type staticGrad struct {
	grad *tensor.Dense
}

func (s staticGrad) Value() G.Value {
	return s.grad
}

func (s staticGrad) Grad() (G.Value, error) {
	return s.grad, nil
}

func TestClipGradNormRescalesLargeGradients(t *testing.T) {
	first := tensor.New(tensor.WithShape(1), tensor.WithBacking(
		[]float64{3.0}))
	second := tensor.New(tensor.WithShape(1), tensor.WithBacking(
		[]float64{4.0}))
	model := []G.ValueGrad{staticGrad{first}, staticGrad{second}}

	// Global norm is 5, so the gradients shrink by a factor of 5
	err := clipGradNorm(model, 1.0)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, first.Data().([]float64)[0], 1e-12)
	assert.InDelta(t, 0.8, second.Data().([]float64)[0], 1e-12)
}

func TestClipGradNormLeavesSmallGradients(t *testing.T) {
	grad := tensor.New(tensor.WithShape(2), tensor.WithBacking(
		[]float64{0.1, 0.2}))
	model := []G.ValueGrad{staticGrad{grad}}

	err := clipGradNorm(model, 1.0)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.2}, grad.Data().([]float64))
}

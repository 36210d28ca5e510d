package ppo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"

	"github.com/policygrad/goppo/utils/floatutils"
)

// stabilizer keeps the return-normalization denominator away from zero
const stabilizer = 1e-8

// discountedReturns computes the reverse-time discounted cumulative
// reward of each transition. Walking the reward and terminal sequences
// from the most recent transition to the earliest, a running
// discounted total is maintained; whenever a terminal flag is true the
// running total is reset to zero before folding in that step's reward,
// so no return incorporates reward from a later episode. Returns are
// produced in original chronological order.
func discountedReturns(rewards []float64, terminals []bool,
	gamma float64) []float64 {
	returns := make([]float64, len(rewards))

	var discounted float64
	for i := len(rewards) - 1; i >= 0; i-- {
		if terminals[i] {
			discounted = 0.0
		}
		discounted = rewards[i] + gamma*discounted
		returns[i] = discounted
	}

	return returns
}

// normalizeReturns subtracts the batch mean from each return and
// divides by the batch standard deviation plus a small stabilizing
// constant. The sample standard deviation of a single-element batch is
// undefined; it is clamped to zero so that the stabilizer carries and
// no division by zero occurs.
func normalizeReturns(returns []float64) []float64 {
	mean := stat.Mean(returns, nil)
	std := stat.StdDev(returns, nil)
	if math.IsNaN(std) {
		std = 0.0
	}

	normalized := make([]float64, len(returns))
	for i, ret := range returns {
		normalized[i] = (ret - mean) / (std + stabilizer)
	}

	return normalized
}

// clippedObjective computes the clipped surrogate objective of a
// single transition: min(ratio * advantage, clip(ratio, 1-ε, 1+ε) *
// advantage). When the advantage is positive the objective is bounded
// above by (1+ε) * advantage; when negative, below by (1-ε) *
// advantage.
func clippedObjective(ratio, advantage, epsClip float64) float64 {
	unclipped := ratio * advantage
	clipped := floatutils.Clip(ratio, 1.0-epsClip, 1.0+epsClip) * advantage

	return math.Min(unclipped, clipped)
}

// surrogateCoefficients computes, per transition, the constant that
// multiplies the action log probability in the policy loss so that the
// loss gradient equals the gradient of the clipped surrogate
// objective.
//
// With ratio r = exp(logProb - oldLogProb), ∂r/∂θ = r·∂logProb/∂θ, so
// when the unclipped branch r·A attains the min its gradient is
// (r·A)·∂logProb/∂θ; when the clip saturates, the clipped branch is
// constant and the gradient is zero. Feeding r·A (or zero) as a fixed
// coefficient of the log-probability node therefore reproduces the
// exact clipped-surrogate gradient. Ratios and advantages are treated
// as non-differentiable here: the old log probabilities are frozen
// reference values, and the value estimates come from a forward-only
// critic pass.
func surrogateCoefficients(logProbs, oldLogProbs, returns,
	values []float64, epsClip float64) []float64 {
	coefficients := make([]float64, len(logProbs))

	for i := range coefficients {
		ratio := math.Exp(logProbs[i] - oldLogProbs[i])
		advantage := returns[i] - values[i]

		unclipped := ratio * advantage
		clipped := floatutils.Clip(ratio, 1.0-epsClip, 1.0+epsClip) *
			advantage
		if unclipped <= clipped {
			coefficients[i] = unclipped
		}
	}

	return coefficients
}

// clipGradNorm rescales the gradients of model so that their global L2
// norm does not exceed maxNorm, preventing destructively large
// optimizer steps. The gradients are modified in place, before the
// solver consumes them.
func clipGradNorm(model []G.ValueGrad, maxNorm float64) error {
	grads := make([][]float64, len(model))

	var squaredNorm float64
	for i, valueGrad := range model {
		grad, err := valueGrad.Grad()
		if err != nil {
			return fmt.Errorf("clipGradNorm: could not get gradient: %v",
				err)
		}

		data, ok := grad.Data().([]float64)
		if !ok {
			return fmt.Errorf("clipGradNorm: expected float64 gradient"+
				"\n\thave(%T)", grad.Data())
		}

		grads[i] = data
		squaredNorm += floats.Dot(data, data)
	}

	norm := math.Sqrt(squaredNorm)
	if norm <= maxNorm {
		return nil
	}

	scale := maxNorm / norm
	for _, grad := range grads {
		floats.Scale(scale, grad)
	}

	return nil
}

// Package cartpole implements the Cartpole classic control environment
package cartpole

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/policygrad/goppo/environment"
	ts "github.com/policygrad/goppo/timestep"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	TotalMass      float64 = CartMass + PoleMass
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnitude of force applied to the cart
	Dt             float64 = 0.02 // Seconds between state updates

	// Episode failure thresholds
	PositionThreshold float64 = 2.4
	AngleThreshold    float64 = 12.0 * math.Pi / 180.0

	// Bounds (+/-) on the starting value of each state feature
	StartBounds float64 = 0.05

	// Discrete actions
	MinAction int = 0 // Accelerate left
	MaxAction int = 1 // Accelerate right
)

// Cartpole implements the classic control environment Cartpole. A pole
// is attached to a cart which moves along a frictionless track. The
// agent must keep the pole balanced upright for as long as possible by
// accelerating the cart left or right.
//
// The state features are continuous and consist of the cart's x
// position and velocity, and the pole's angle from vertical and
// angular velocity. Starting states draw each feature uniformly from
// [-StartBounds, StartBounds].
//
// Actions are discrete:
//
//	Action	Meaning
//	  0		Accelerate left
//	  1		Accelerate right
//
// Every step receives a reward of 1.0. Episodes end when the cart
// leaves [-PositionThreshold, PositionThreshold], when the pole falls
// outside [-AngleThreshold, AngleThreshold], or after maxSteps steps.
type Cartpole struct {
	starter  env.Starter
	lastStep ts.TimeStep
	discount float64
	maxSteps int
}

// New constructs a new Cartpole environment and returns its first
// timestep
func New(seed uint64, discount float64, maxSteps int) (*Cartpole,
	ts.TimeStep) {
	bounds := r1.Interval{Min: -StartBounds, Max: StartBounds}
	starter := env.NewUniformStarter([]r1.Interval{
		bounds,
		bounds,
		bounds,
		bounds,
	}, seed)

	state := starter.Start()
	firstStep := ts.New(ts.First, 0.0, discount, state, 0)

	cartpole := &Cartpole{
		starter:  starter,
		lastStep: firstStep,
		discount: discount,
		maxSteps: maxSteps,
	}

	return cartpole, firstStep
}

// Reset resets the environment and returns a starting state drawn from
// the environment's Starter
func (c *Cartpole) Reset() ts.TimeStep {
	state := c.starter.Start()
	startStep := ts.New(ts.First, 0.0, c.discount, state, 0)
	c.lastStep = startStep

	return startStep
}

// Step takes one environmental step given the action and returns the
// next timestep and whether that timestep was the last in the episode
func (c *Cartpole) Step(action mat.Vector) (ts.TimeStep, bool) {
	direction := int(action.AtVec(0))
	if direction < MinAction || direction > MaxAction {
		panic(fmt.Sprintf("step: illegal action %v ∉ [%v, %v]",
			direction, MinAction, MaxAction))
	}

	force := ForceMag
	if direction == MinAction {
		force = -ForceMag
	}

	obs := c.lastStep.Observation
	x, xDot := obs.AtVec(0), obs.AtVec(1)
	theta, thetaDot := obs.AtVec(2), obs.AtVec(3)

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)

	// Euler integration of the cart and pole dynamics
	temp := (force + PoleMass*HalfPoleLength*thetaDot*thetaDot*sinTheta) /
		TotalMass
	thetaAcc := (Gravity*sinTheta - cosTheta*temp) /
		(HalfPoleLength * (4.0/3.0 - PoleMass*cosTheta*cosTheta/TotalMass))
	xAcc := temp - PoleMass*HalfPoleLength*thetaAcc*cosTheta/TotalMass

	x += Dt * xDot
	xDot += Dt * xAcc
	theta += Dt * thetaDot
	thetaDot += Dt * thetaAcc

	state := mat.NewVecDense(4, []float64{x, xDot, theta, thetaDot})

	number := c.lastStep.Number + 1
	failed := x < -PositionThreshold || x > PositionThreshold ||
		theta < -AngleThreshold || theta > AngleThreshold

	stepType := ts.Mid
	if failed || number >= c.maxSteps {
		stepType = ts.Last
	}

	step := ts.New(stepType, 1.0, c.discount, state, number)
	c.lastStep = step

	return step, step.Last()
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Cartpole) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(4, nil)
	lowerBound := mat.NewVecDense(4, []float64{
		-PositionThreshold,
		math.Inf(-1),
		-AngleThreshold,
		math.Inf(-1),
	})
	upperBound := mat.NewVecDense(4, []float64{
		PositionThreshold,
		math.Inf(1),
		AngleThreshold,
		math.Inf(1),
	})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (c *Cartpole) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(MinAction)})
	upperBound := mat.NewVecDense(1, []float64{float64(MaxAction)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

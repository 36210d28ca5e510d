// Package environment outlines environments with which agents interact
package environment

import (
	"gonum.org/v1/gonum/mat"

	ts "github.com/policygrad/goppo/timestep"
)

// Cardinality denotes whether an action or observation space is
// discrete or continuous
type Cardinality int

const (
	Discrete Cardinality = iota
	Continuous
)

// SpecType determines what kind of data a Spec describes
type SpecType int

const (
	Action SpecType = iota
	Observation
)

// Spec describes the type, shape, and bounds of an action or
// observation in an environment
type Spec struct {
	Shape       mat.Vector
	Type        SpecType
	LowerBound  mat.Vector
	UpperBound  mat.Vector
	Cardinality Cardinality
}

// NewSpec constructs a new environment specification
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, c Cardinality) Spec {
	return Spec{shape, t, lowerBound, upperBound, c}
}

// Starter generates the starting state of an episode
type Starter interface {
	Start() mat.Vector
}

// Environment is some sequential decision making task on which an
// agent acts. Step returns the timestep resulting from the action and
// whether that timestep was the last in the episode.
type Environment interface {
	Reset() ts.TimeStep
	Step(action mat.Vector) (ts.TimeStep, bool)
	ObservationSpec() Spec
	ActionSpec() Spec
}

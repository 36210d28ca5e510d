// Package agent defines the interfaces of learning agents
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/policygrad/goppo/environment"
	"github.com/policygrad/goppo/timestep"
)

// Agent determines the implementation details of an algorithm that
// both selects actions and learns from their outcomes.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated from observed transitions.
type Learner interface {
	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// Observe records that the previously selected action led to some
	// timestep
	Observe(action mat.Vector, nextStep timestep.TimeStep) error

	// Step performs a single update to the Learner, if one is due
	Step() error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy determines how an agent selects actions
type Policy interface {
	SelectAction(t timestep.TimeStep) (*mat.VecDense, error)
}

// Config represents a configuration from which an Agent can be
// constructed
type Config interface {
	// Validate returns an error describing why the Config is invalid,
	// if it is
	Validate() error

	// CreateAgent creates the Agent that the Config describes
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)
}

// Package checkpointer implements periodic saving of agents during an
// experiment
package checkpointer

import ts "github.com/policygrad/goppo/timestep"

// Serializable is an object that can save its state to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer saves Serializable objects based on the timesteps an
// experiment passes through
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}

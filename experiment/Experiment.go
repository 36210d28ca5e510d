// Package experiment implements functionality for running an
// experiment
package experiment

import (
	"github.com/policygrad/goppo/experiment/tracker"
	ts "github.com/policygrad/goppo/timestep"
)

// Experiment outlines structs that can run experiments. Experiments
// track environment TimeSteps, caching data from each TimeStep in RAM
// to be later saved to disk by the Save() method, usually after the
// experiment has been run. The Run() method runs episodes until the
// maximum timestep limit is reached. The RunEpisode() method runs a
// single episode.
//
// Experiments use Trackers to determine which of the data generated
// during the experiment is saved. Each TimeStep is sent to the
// Trackers through their Track() method. New Trackers can be
// registered through the constructor or through an Experiment's
// Register() method.
type Experiment interface {
	Run() error

	// RunEpisode runs a single episode and returns whether the
	// experiment's timestep limit has been reached
	RunEpisode() (bool, error)

	// Save saves all tracked data to disk
	Save() error

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment. Useful to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// track caches the current timestep in each Tracker
	track(ts.TimeStep)

	// checkpoint saves the current state of the agent
	checkpoint(ts.TimeStep) error
}

package experiment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	env "github.com/policygrad/goppo/environment"
	"github.com/policygrad/goppo/experiment/checkpointer"
	"github.com/policygrad/goppo/experiment/tracker"
	ts "github.com/policygrad/goppo/timestep"
)

// fakeEnv runs fixed-length episodes with a reward of 1 per step
type fakeEnv struct {
	episodeLength int
	lastStep      ts.TimeStep
}

func (f *fakeEnv) Reset() ts.TimeStep {
	obs := mat.NewVecDense(1, []float64{0.0})
	f.lastStep = ts.New(ts.First, 0.0, 1.0, obs, 0)
	return f.lastStep
}

func (f *fakeEnv) Step(_ mat.Vector) (ts.TimeStep, bool) {
	number := f.lastStep.Number + 1
	stepType := ts.Mid
	if number >= f.episodeLength {
		stepType = ts.Last
	}

	obs := mat.NewVecDense(1, []float64{float64(number)})
	f.lastStep = ts.New(stepType, 1.0, 1.0, obs, number)
	return f.lastStep, f.lastStep.Last()
}

func (f *fakeEnv) ObservationSpec() env.Spec {
	bounds := mat.NewVecDense(1, nil)
	return env.NewSpec(mat.NewVecDense(1, nil), env.Observation, bounds,
		bounds, env.Continuous)
}

func (f *fakeEnv) ActionSpec() env.Spec {
	lower := mat.NewVecDense(1, []float64{0.0})
	upper := mat.NewVecDense(1, []float64{1.0})
	return env.NewSpec(mat.NewVecDense(1, nil), env.Action, lower, upper,
		env.Discrete)
}

// countingAgent records how often each agent method is called
type countingAgent struct {
	observeFirsts int
	selectActions int
	observes      int
	steps         int
	endEpisodes   int
}

func (c *countingAgent) ObserveFirst(ts.TimeStep) error {
	c.observeFirsts++
	return nil
}

func (c *countingAgent) SelectAction(ts.TimeStep) (*mat.VecDense, error) {
	c.selectActions++
	return mat.NewVecDense(1, []float64{0.0}), nil
}

func (c *countingAgent) Observe(mat.Vector, ts.TimeStep) error {
	c.observes++
	return nil
}

func (c *countingAgent) Step() error {
	c.steps++
	return nil
}

func (c *countingAgent) EndEpisode() {
	c.endEpisodes++
}

// countingSaver counts checkpoint requests
type countingSaver struct {
	saves int
}

func (c *countingSaver) Save(string) error {
	c.saves++
	return nil
}

func TestOnlineRunsDecideActObserveCadence(t *testing.T) {
	e := &fakeEnv{episodeLength: 3}
	a := &countingAgent{}

	// 7 steps cover two full 3-step episodes plus one step of a third
	exp := NewOnline(e, a, 7, nil, nil)
	require.NoError(t, exp.Run())

	assert.Equal(t, 7, a.selectActions)
	assert.Equal(t, 7, a.observes)
	assert.Equal(t, 7, a.steps)
	assert.Equal(t, 3, a.observeFirsts)
	assert.Equal(t, 3, a.endEpisodes)
}

func TestOnlineTracksEpisodicReturns(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "data.bin")

	e := &fakeEnv{episodeLength: 3}
	a := &countingAgent{}
	returns := tracker.NewReturn(filename)

	exp := NewOnline(e, a, 6, []tracker.Tracker{returns}, nil)
	require.NoError(t, exp.Run())
	require.NoError(t, exp.Save())

	data, err := tracker.LoadData(filename)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.0, 3.0}, data)
}

func TestOnlineCheckpointsEveryNSteps(t *testing.T) {
	e := &fakeEnv{episodeLength: 3}
	a := &countingAgent{}
	saver := &countingSaver{}
	check := checkpointer.NewNStep(3, saver,
		checkpointer.FilenameEnumerator(0, "unused", ".bin"))

	// Timestep numbers restart per episode, so each 3-step episode
	// ends on a checkpointed step
	exp := NewOnline(e, a, 6, nil, []checkpointer.Checkpointer{check})
	require.NoError(t, exp.Run())

	assert.Equal(t, 2, saver.saves)
}

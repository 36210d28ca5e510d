package ppo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygrad/goppo/environment/classiccontrol/cartpole"
	ts "github.com/policygrad/goppo/timestep"
)

func newCartpoleAgent(t *testing.T, rolloutLength int) (*PPO,
	*cartpole.Cartpole, ts.TimeStep) {
	t.Helper()

	env, first := cartpole.New(192382, 0.99, 500)

	p, err := New(env, newTestConfig(t, rolloutLength), 14)
	require.NoError(t, err)

	return p, env, first
}

// collect runs n environment transitions through the agent without
// stepping the learner
func collect(t *testing.T, p *PPO, env *cartpole.Cartpole,
	step ts.TimeStep, n int) ts.TimeStep {
	t.Helper()

	require.NoError(t, p.ObserveFirst(step))
	for i := 0; i < n; i++ {
		action, err := p.SelectAction(step)
		require.NoError(t, err)

		next, _ := env.Step(action)
		require.NoError(t, p.Observe(action, next))

		step = next
		if step.Last() {
			step = env.Reset()
			require.NoError(t, p.ObserveFirst(step))
		}
	}

	return step
}

func TestUpdateEmptyBufferFails(t *testing.T) {
	p, _, _ := newCartpoleAgent(t, 4)

	assert.ErrorIs(t, p.Update(), ErrEmptyBuffer)
}

func TestUpdateUnpairedTransitionsFail(t *testing.T) {
	p, _, first := newCartpoleAgent(t, 2)

	// Select actions without ever observing their outcomes
	_, err := p.SelectAction(first)
	require.NoError(t, err)
	_, err = p.SelectAction(first)
	require.NoError(t, err)

	err = p.Update()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unpaired")
}

func TestUpdateRequiresFullRollout(t *testing.T) {
	p, env, first := newCartpoleAgent(t, 4)
	collect(t, p, env, first, 2)

	err := p.Update()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollout")
}

func TestStepIsNoOpBeforeFullRollout(t *testing.T) {
	p, env, first := newCartpoleAgent(t, 8)
	collect(t, p, env, first, 3)

	require.NoError(t, p.Step())
	assert.Equal(t, 3, p.Memory().Len())
	assert.Equal(t, 3, p.Memory().Outcomes())
}

func TestSingleTransitionUpdateEmptiesMemory(t *testing.T) {
	p, env, first := newCartpoleAgent(t, 1)
	collect(t, p, env, first, 1)

	require.NoError(t, p.Step())
	assert.Equal(t, 0, p.Memory().Len())
	assert.Equal(t, 0, p.Memory().Outcomes())
}

func TestUpdateChangesPolicyWeights(t *testing.T) {
	p, env, first := newCartpoleAgent(t, 4)
	collect(t, p, env, first, 4)

	before := make([][]float64, 0)
	for _, learnable := range p.trainActor.Learnables() {
		data := learnable.Value().Data().([]float64)
		before = append(before, append([]float64{}, data...))
	}

	require.NoError(t, p.Step())

	changed := false
	for i, learnable := range p.trainActor.Learnables() {
		data := learnable.Value().Data().([]float64)
		for j := range data {
			if data[j] != before[i][j] {
				changed = true
			}
		}
	}
	assert.True(t, changed)
}

func TestUpdateSyncsSamplingPolicy(t *testing.T) {
	p, env, first := newCartpoleAgent(t, 4)
	collect(t, p, env, first, 4)

	require.NoError(t, p.Step())
	assert.Equal(t, 0, p.Memory().Len())

	trained := p.trainActor.Learnables()
	for i, learnable := range p.behaviour.actor.Learnables() {
		assert.Equal(t, trained[i].Value().Data(),
			learnable.Value().Data())
	}

	trained = p.trainCritic.Learnables()
	for i, learnable := range p.behaviour.critic.Learnables() {
		assert.Equal(t, trained[i].Value().Data(),
			learnable.Value().Data())
	}
}

func TestSaveLoadRestoresWeights(t *testing.T) {
	p, _, _ := newCartpoleAgent(t, 4)

	env, _ := cartpole.New(192382, 0.99, 500)
	other, err := New(env, newTestConfig(t, 4), 37)
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), "agent.bin")
	require.NoError(t, p.Save(filename))
	require.NoError(t, other.Load(filename))

	saved := p.trainActor.Learnables()
	for i, learnable := range other.trainActor.Learnables() {
		assert.Equal(t, saved[i].Value().Data(), learnable.Value().Data())
	}

	saved = p.behaviour.actor.Learnables()
	for i, learnable := range other.behaviour.actor.Learnables() {
		assert.Equal(t, saved[i].Value().Data(), learnable.Value().Data())
	}
}

package ppo

import (
	"fmt"
	"math"
	"math/rand"

	G "gorgonia.org/gorgonia"

	"github.com/policygrad/goppo/network"
	"github.com/policygrad/goppo/utils/floatutils"
)

// ActorCritic maps state vectors to a categorical distribution over
// discrete actions (the actor head) and to a scalar state-value
// estimate (the critic head). The two heads are independent MLPs on
// their own computational graphs, each run by a forward-only tape
// machine: an ActorCritic never computes gradients. Gradient-bearing
// copies of the same networks live in the PPO controller.
type ActorCritic struct {
	actor  *network.MLP
	critic *network.MLP

	actorVM  G.VM
	criticVM G.VM

	batchSize  int
	features   int
	numActions int

	rng *rand.Rand // RNG for action sampling
}

// newActorCritic returns a new ActorCritic whose networks accept
// batches of batch state rows, with weights drawn from the
// configuration's initializer.
func newActorCritic(features, numActions, batch int, c Config,
	seed int64) (*ActorCritic, error) {
	actor, err := network.NewMLP(
		features,
		batch,
		numActions,
		G.NewGraph(),
		c.PolicyLayers,
		c.PolicyBiases,
		c.InitWFn.InitWFn(),
		c.PolicyActivations,
	)
	if err != nil {
		return nil, fmt.Errorf("newActorCritic: could not create actor: %v",
			err)
	}

	critic, err := network.NewMLP(
		features,
		batch,
		1,
		G.NewGraph(),
		c.CriticLayers,
		c.CriticBiases,
		c.InitWFn.InitWFn(),
		c.CriticActivations,
	)
	if err != nil {
		return nil, fmt.Errorf("newActorCritic: could not create critic: %v",
			err)
	}

	return &ActorCritic{
		actor:      actor,
		critic:     critic,
		actorVM:    G.NewTapeMachine(actor.Graph()),
		criticVM:   G.NewTapeMachine(critic.Graph()),
		batchSize:  batch,
		features:   features,
		numActions: numActions,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Act computes the action distribution for a single state, samples one
// action from it, and records the state, the sampled action, and the
// log probability of that action under the current distribution into
// m. The sampled action index is returned.
func (a *ActorCritic) Act(state []float64, m *Memory) (int, error) {
	if a.batchSize != 1 {
		return 0, fmt.Errorf("act: sampling requires a batch size of 1"+
			"\n\thave(%v)", a.batchSize)
	}

	logits, err := a.forward(a.actor, a.actorVM, state)
	if err != nil {
		return 0, fmt.Errorf("act: %v", err)
	}

	logProbs := floatutils.LogSoftmax(logits)
	action := a.sample(logProbs)

	m.AppendStep(state, action, logProbs[action])

	return action, nil
}

// sample draws one action index from the categorical distribution
// with the given log probabilities
func (a *ActorCritic) sample(logProbs []float64) int {
	u := a.rng.Float64()

	var cumulative float64
	for action, logProb := range logProbs {
		cumulative += math.Exp(logProb)
		if u < cumulative {
			return action
		}
	}

	// Guard against cumulative probabilities summing to slightly
	// below 1
	return len(logProbs) - 1
}

// Evaluate recomputes, under the current network parameters, the log
// probability of each given action in the corresponding given state,
// the value estimate of each state, and the entropy of the action
// distribution at each state. The states are given as a single
// row-major batch of batchSize rows.
//
// Evaluate never samples and never mutates any buffer: two calls with
// identical inputs and no intervening parameter change return
// identical results.
func (a *ActorCritic) Evaluate(states []float64, actions []int) (logProbs,
	values, entropies []float64, err error) {
	if len(actions) != a.batchSize {
		return nil, nil, nil, fmt.Errorf("evaluate: invalid number of "+
			"actions\n\twant(%v)\n\thave(%v)", a.batchSize, len(actions))
	}

	logits, err := a.forward(a.actor, a.actorVM, states)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("evaluate: %v", err)
	}

	values, err = a.forward(a.critic, a.criticVM, states)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("evaluate: %v", err)
	}

	logProbs = make([]float64, a.batchSize)
	entropies = make([]float64, a.batchSize)
	for i := 0; i < a.batchSize; i++ {
		row := floatutils.LogSoftmax(logits[i*a.numActions : (i+1)*
			a.numActions])

		if actions[i] < 0 || actions[i] >= a.numActions {
			return nil, nil, nil, fmt.Errorf("evaluate: illegal action "+
				"%v ∉ [0, %v)", actions[i], a.numActions)
		}
		logProbs[i] = row[actions[i]]

		var entropy float64
		for _, logProb := range row {
			entropy -= math.Exp(logProb) * logProb
		}
		entropies[i] = entropy
	}

	return logProbs, values, entropies, nil
}

// forward runs one forward pass of net on the input batch and returns
// a copy of the prediction
func (a *ActorCritic) forward(net *network.MLP, vm G.VM,
	input []float64) ([]float64, error) {
	if err := net.SetInput(input); err != nil {
		return nil, err
	}
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: could not run forward pass: %v",
			err)
	}

	output := net.Output().Data().([]float64)
	prediction := make([]float64, len(output))
	copy(prediction, output)
	vm.Reset()

	return prediction, nil
}

// Set overwrites the network parameters of the ActorCritic with an
// exact copy of the parameters of src. This is the snapshot operation
// that synchronizes the frozen sampling policy with the optimized
// policy at the end of each update.
func (a *ActorCritic) Set(src *ActorCritic) error {
	if err := a.actor.Set(src.actor); err != nil {
		return fmt.Errorf("set: could not copy actor weights: %v", err)
	}
	if err := a.critic.Set(src.critic); err != nil {
		return fmt.Errorf("set: could not copy critic weights: %v", err)
	}
	return nil
}

// Close releases the tape machines of the ActorCritic
func (a *ActorCritic) Close() error {
	if err := a.actorVM.Close(); err != nil {
		return err
	}
	return a.criticVM.Close()
}

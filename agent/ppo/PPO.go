// Package ppo implements the Proximal Policy Optimization algorithm
// with a clipped surrogate objective for discrete action spaces.
//
// Adapted from the PPO_discrete variant of
// https://github.com/geekyutao/PyTorch-PPO
//
// The agent keeps two identically-shaped policies: a frozen "old"
// policy that samples every action and supplies the reference log
// probabilities of the importance-sampling ratio, and a "current"
// policy that is optimized for several epochs over each collected
// rollout. After the optimization epochs, the old policy is
// overwritten with a snapshot of the current one and the rollout
// buffer is cleared.
package ppo

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	env "github.com/policygrad/goppo/environment"
	"github.com/policygrad/goppo/network"
	"github.com/policygrad/goppo/solver"
	ts "github.com/policygrad/goppo/timestep"
)

// Loss weights of the update: total loss = actor loss +
// criticCoef * critic loss + entropyCoef * entropy loss
const (
	criticCoef  float64 = 0.5
	entropyCoef float64 = 0.01
)

// ErrEmptyBuffer is returned when an update is requested on an empty
// rollout buffer
var ErrEmptyBuffer = errors.New("update: cannot update from an empty " +
	"rollout buffer")

// PPO implements the Proximal Policy Optimization algorithm. It owns
// the rollout Memory, the frozen sampling policy, the optimized
// policy, and the optimizer state of the latter.
type PPO struct {
	memory *Memory

	// behaviour is the frozen old policy. It samples every action and
	// is read-only between updates.
	behaviour *ActorCritic

	// policy is a forward-only copy of the current policy, used to
	// re-evaluate the rollout inside the update loop. Its weights are
	// refreshed from the training networks after every optimizer step.
	policy *ActorCritic

	// Gradient-bearing networks holding the canonical current policy
	// weights
	trainActor    *network.MLP
	trainActorVM  G.VM
	actionIndices *G.Node // One-hot rollout actions
	coefficients  *G.Node // Clipped-surrogate gradient coefficients
	actorSolver   *solver.Solver

	trainCritic   *network.MLP
	trainCriticVM G.VM
	criticTargets *G.Node // Normalized rollout returns
	criticSolver  *solver.Solver

	gamma         float64
	epsClip       float64
	epochs        int
	rolloutLength int
	maxGradNorm   float64

	features   int
	numActions int
}

// New creates and returns a new PPO agent on the given environment.
// The old policy starts as an exact copy of the current policy.
func New(e env.Environment, c Config, seed int64) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if e.ActionSpec().Cardinality != env.Discrete {
		return nil, fmt.Errorf("new: categorical policy cannot be used " +
			"with continuous actions")
	}

	features := e.ObservationSpec().Shape.Len()
	numActions := int(e.ActionSpec().UpperBound.AtVec(0)) + 1

	behaviour, err := newActorCritic(features, numActions, 1, c, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create sampling policy: %v",
			err)
	}

	policy, err := newActorCritic(features, numActions, c.RolloutLength, c,
		seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create current policy: %v",
			err)
	}

	p := &PPO{
		memory:        NewMemory(),
		behaviour:     behaviour,
		policy:        policy,
		actorSolver:   c.PolicySolver,
		criticSolver:  c.CriticSolver,
		gamma:         c.Gamma,
		epsClip:       c.EpsClip,
		epochs:        c.Epochs,
		rolloutLength: c.RolloutLength,
		maxGradNorm:   c.MaxGradNorm,
		features:      features,
		numActions:    numActions,
	}

	if err := p.buildActorGraph(c); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := p.buildCriticGraph(c); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// All four networks start from the training networks' weights so
	// that the old policy is an exact copy of the current policy
	if err := p.syncPolicies(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := p.behaviour.Set(p.policy); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return p, nil
}

// buildActorGraph constructs the gradient-bearing policy network and
// its loss: the negated mean of the clipped-surrogate coefficients
// times the log probabilities of the rollout actions, plus the
// weighted entropy bonus.
func (p *PPO) buildActorGraph(c Config) error {
	g := G.NewGraph()

	trainActor, err := network.NewMLP(p.features, p.rolloutLength,
		p.numActions, g, c.PolicyLayers, c.PolicyBiases,
		c.InitWFn.InitWFn(), c.PolicyActivations)
	if err != nil {
		return fmt.Errorf("could not create training actor: %v", err)
	}
	logits := trainActor.Prediction()

	// Log probability of the actions stored in the rollout
	actionIndices := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(logits.Shape()...),
		G.WithInit(G.Zeroes()),
		G.WithName("Action Indices"),
	)
	lse := logSumExp(logits, 1)
	logitsInputActions := G.Must(G.Sum(
		G.Must(G.HadamardProd(actionIndices, logits)), 1))
	logProb := G.Must(G.Sub(logitsInputActions, lse))

	// Clipped surrogate objective. The coefficients are constants
	// computed from a forward-only pass each epoch; multiplying them
	// into the log-probability node reproduces the exact gradient of
	// min(ratio * advantage, clip(ratio) * advantage).
	coefficients := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(p.rolloutLength),
		G.WithName("Surrogate Coefficients"),
	)
	actorLoss := G.Must(G.Mean(G.Must(G.HadamardProd(coefficients,
		logProb))))
	actorLoss = G.Must(G.Neg(actorLoss))

	// Entropy bonus encouraging exploration
	logProbs := G.Must(G.BroadcastSub(logits, lse, nil, []byte{1}))
	probs := G.Must(G.Exp(logProbs))
	entropy := G.Must(G.Neg(G.Must(G.Sum(
		G.Must(G.HadamardProd(probs, logProbs)), 1))))
	entropyLoss := G.Must(G.Neg(G.Must(G.Mean(entropy))))

	entropyWeight := G.NewScalar(g, tensor.Float64,
		G.WithName("Entropy Weight"))
	loss := G.Must(G.Add(actorLoss, G.Must(G.Mul(entropyWeight,
		entropyLoss))))

	if _, err := G.Grad(loss, trainActor.Learnables()...); err != nil {
		return fmt.Errorf("could not compute actor gradient: %v", err)
	}

	if err := G.Let(entropyWeight, entropyCoef); err != nil {
		return fmt.Errorf("could not set entropy weight: %v", err)
	}

	p.trainActor = trainActor
	p.trainActorVM = G.NewTapeMachine(g,
		G.BindDualValues(trainActor.Learnables()...))
	p.actionIndices = actionIndices
	p.coefficients = coefficients

	return nil
}

// buildCriticGraph constructs the gradient-bearing critic network and
// its loss: the weighted mean squared error between the predicted
// state values and the normalized rollout returns.
func (p *PPO) buildCriticGraph(c Config) error {
	g := G.NewGraph()

	trainCritic, err := network.NewMLP(p.features, p.rolloutLength, 1, g,
		c.CriticLayers, c.CriticBiases, c.InitWFn.InitWFn(),
		c.CriticActivations)
	if err != nil {
		return fmt.Errorf("could not create training critic: %v", err)
	}

	criticTargets := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(trainCritic.Prediction().Shape()...),
		G.WithName("Critic Targets"),
	)

	mse := G.Must(G.Mean(G.Must(G.Square(
		G.Must(G.Sub(trainCritic.Prediction(), criticTargets))))))

	criticWeight := G.NewScalar(g, tensor.Float64,
		G.WithName("Critic Weight"))
	loss := G.Must(G.Mul(criticWeight, mse))

	if _, err := G.Grad(loss, trainCritic.Learnables()...); err != nil {
		return fmt.Errorf("could not compute critic gradient: %v", err)
	}

	if err := G.Let(criticWeight, criticCoef); err != nil {
		return fmt.Errorf("could not set critic weight: %v", err)
	}

	p.trainCritic = trainCritic
	p.trainCriticVM = G.NewTapeMachine(g,
		G.BindDualValues(trainCritic.Learnables()...))
	p.criticTargets = criticTargets

	return nil
}

// logSumExp adds the log of the summed exponentials of logits along
// the given axis to the computational graph, shifted by the row
// maximum for numerical stability.
func logSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// Memory returns the rollout buffer shared between the agent and the
// driver. The driver appends each action's (reward, terminal) outcome
// directly to the buffer.
func (p *PPO) Memory() *Memory {
	return p.memory
}

// SelectAction samples an action for the given timestep from the
// frozen old policy and records the transition's state, action, and
// log probability into Memory. Action selection never uses the policy
// currently being optimized.
func (p *PPO) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	obs := t.Observation
	state := make([]float64, obs.Len())
	for i := range state {
		state[i] = obs.AtVec(i)
	}

	action, err := p.behaviour.Act(state, p.memory)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}

	return mat.NewVecDense(1, []float64{float64(action)}), nil
}

// ObserveFirst observes the first timestep in an episode
func (p *PPO) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}
	return nil
}

// Observe records the outcome of the previously selected action: the
// reward of the resulting timestep and whether it ended the episode
func (p *PPO) Observe(_ mat.Vector, nextStep ts.TimeStep) error {
	p.memory.AppendOutcome(nextStep.Reward, nextStep.Last())
	return nil
}

// Step updates the agent once a full rollout has been collected. In
// between updates, Step is a no-op.
func (p *PPO) Step() error {
	if p.memory.Len() < p.rolloutLength ||
		p.memory.Outcomes() < p.rolloutLength {
		return nil
	}
	return p.Update()
}

// EndEpisode performs cleanup at the end of an episode. Rollouts may
// span episode boundaries, so there is nothing to do.
func (p *PPO) EndEpisode() {}

// Update consumes the collected rollout to improve the current policy,
// then freezes the result as the new sampling policy and clears the
// rollout buffer.
//
// The stored rewards are turned into normalized reverse-time
// discounted returns. For each optimization epoch, the whole rollout
// is re-evaluated under the current policy to get fresh log
// probabilities and value estimates; the importance-sampling ratios
// and advantages computed from them enter the loss as constants, and
// one gradient-norm-clipped optimizer step is taken on the actor and
// critic networks.
func (p *PPO) Update() error {
	n := p.memory.Len()
	if n == 0 && p.memory.Outcomes() == 0 {
		return ErrEmptyBuffer
	}
	if p.memory.Outcomes() != n {
		return fmt.Errorf("update: unpaired transitions: %v decisions "+
			"but %v outcomes", n, p.memory.Outcomes())
	}
	if n != p.rolloutLength {
		return fmt.Errorf("update: rollout must have exactly %v "+
			"transitions\n\thave(%v)", p.rolloutLength, n)
	}

	returns := discountedReturns(p.memory.rewards, p.memory.terminals,
		p.gamma)
	returns = normalizeReturns(returns)

	states, actions, oldLogProbs := p.memory.stack()

	// Inputs that stay fixed across the optimization epochs
	if err := p.trainActor.SetInput(states); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := p.trainCritic.SetInput(states); err != nil {
		return fmt.Errorf("update: %v", err)
	}

	oneHot := make([]float64, n*p.numActions)
	for i, action := range actions {
		oneHot[i*p.numActions+action] = 1.0
	}
	actionsTensor := tensor.NewDense(
		tensor.Float64,
		p.actionIndices.Shape(),
		tensor.WithBacking(oneHot),
	)
	if err := G.Let(p.actionIndices, actionsTensor); err != nil {
		return fmt.Errorf("update: could not set rollout actions: %v", err)
	}

	targetsTensor := tensor.NewDense(
		tensor.Float64,
		p.criticTargets.Shape(),
		tensor.WithBacking(returns),
	)
	if err := G.Let(p.criticTargets, targetsTensor); err != nil {
		return fmt.Errorf("update: could not set critic targets: %v", err)
	}

	for k := 0; k < p.epochs; k++ {
		// Re-evaluate the rollout under the current policy. The
		// resulting log probabilities and value estimates are
		// constants of this epoch's loss.
		logProbs, values, _, err := p.policy.Evaluate(states, actions)
		if err != nil {
			return fmt.Errorf("update: %v", err)
		}

		coefficients := surrogateCoefficients(logProbs, oldLogProbs,
			returns, values, p.epsClip)
		coefficientsTensor := tensor.NewDense(
			tensor.Float64,
			p.coefficients.Shape(),
			tensor.WithBacking(coefficients),
		)
		if err := G.Let(p.coefficients, coefficientsTensor); err != nil {
			return fmt.Errorf("update: could not set surrogate "+
				"coefficients: %v", err)
		}

		if err := p.trainActorVM.RunAll(); err != nil {
			return fmt.Errorf("update: could not run actor update: %v", err)
		}
		if err := p.trainCriticVM.RunAll(); err != nil {
			return fmt.Errorf("update: could not run critic update: %v",
				err)
		}

		// Clip the gradient norm jointly over both networks, as if
		// the actor and critic losses were one combined loss
		model := make([]G.ValueGrad, 0,
			len(p.trainActor.Model())+len(p.trainCritic.Model()))
		model = append(model, p.trainActor.Model()...)
		model = append(model, p.trainCritic.Model()...)
		if err := clipGradNorm(model, p.maxGradNorm); err != nil {
			return fmt.Errorf("update: %v", err)
		}

		if err := p.actorSolver.Step(p.trainActor.Model()); err != nil {
			return fmt.Errorf("update: could not step actor solver: %v",
				err)
		}
		if err := p.criticSolver.Step(p.trainCritic.Model()); err != nil {
			return fmt.Errorf("update: could not step critic solver: %v",
				err)
		}

		p.trainActorVM.Reset()
		p.trainCriticVM.Reset()

		if err := p.syncPolicies(); err != nil {
			return fmt.Errorf("update: %v", err)
		}
	}

	// Freeze the optimized policy as the new sampling policy
	if err := p.behaviour.Set(p.policy); err != nil {
		return fmt.Errorf("update: could not snapshot current policy: %v",
			err)
	}

	p.memory.Clear()
	return nil
}

// syncPolicies refreshes the forward-only copy of the current policy
// from the training networks
func (p *PPO) syncPolicies() error {
	if err := network.Set(p.policy.actor, p.trainActor); err != nil {
		return fmt.Errorf("could not sync actor weights: %v", err)
	}
	if err := network.Set(p.policy.critic, p.trainCritic); err != nil {
		return fmt.Errorf("could not sync critic weights: %v", err)
	}
	return nil
}

// Save writes the current and old policy parameters to the given
// file. The two parameter sets are encoded independently.
func (p *PPO) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	for _, net := range []*network.MLP{p.trainActor, p.trainCritic,
		p.behaviour.actor, p.behaviour.critic} {
		if err := enc.Encode(net); err != nil {
			return fmt.Errorf("save: could not encode network: %v", err)
		}
	}

	return nil
}

// Load restores the current and old policy parameters from a file
// written by Save. The old policy remains whatever snapshot of the
// current policy it was when saved.
func (p *PPO) Load(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	saved := make([]*network.MLP, 4)
	for i := range saved {
		saved[i] = new(network.MLP)
		if err := dec.Decode(saved[i]); err != nil {
			return fmt.Errorf("load: could not decode network: %v", err)
		}
	}

	// Current policy: training networks and their forward-only copy
	if err := p.trainActor.Set(saved[0]); err != nil {
		return fmt.Errorf("load: could not restore actor: %v", err)
	}
	if err := p.trainCritic.Set(saved[1]); err != nil {
		return fmt.Errorf("load: could not restore critic: %v", err)
	}
	if err := p.syncPolicies(); err != nil {
		return fmt.Errorf("load: %v", err)
	}

	// Old policy
	if err := p.behaviour.actor.Set(saved[2]); err != nil {
		return fmt.Errorf("load: could not restore old actor: %v", err)
	}
	if err := p.behaviour.critic.Set(saved[3]); err != nil {
		return fmt.Errorf("load: could not restore old critic: %v", err)
	}

	return nil
}

// Close releases the tape machines owned by the agent
func (p *PPO) Close() error {
	if err := p.behaviour.Close(); err != nil {
		return err
	}
	if err := p.policy.Close(); err != nil {
		return err
	}
	if err := p.trainActorVM.Close(); err != nil {
		return err
	}
	return p.trainCriticVM.Close()
}

package ppo

import (
	"fmt"

	"github.com/policygrad/goppo/agent"
	env "github.com/policygrad/goppo/environment"
	"github.com/policygrad/goppo/initwfn"
	"github.com/policygrad/goppo/network"
	"github.com/policygrad/goppo/solver"
)

// Default hyperparameters
const (
	DefaultLearningRate float64 = 2.5e-4
	DefaultBeta1        float64 = 0.9
	DefaultBeta2        float64 = 0.999
	DefaultGamma        float64 = 0.99
	DefaultEpsClip      float64 = 0.2
	DefaultEpochs       int     = 4
	DefaultMaxGradNorm  float64 = 0.5
)

// Config implements a configuration for a PPO agent with a categorical
// policy. The policy network outputs one logit per discrete action,
// and action probabilities are computed through the softmax function.
// The critic network outputs a single unconstrained state value.
type Config struct {
	// Policy neural net
	PolicyLayers      []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation

	// State value function neural net
	CriticLayers      []int
	CriticBiases      []bool
	CriticActivations []*network.Activation

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn

	// Solvers for the policy and critic. The two solvers must be
	// separate instances because Gorgonia solvers key their moment
	// caches by the model they step.
	PolicySolver *solver.Solver
	CriticSolver *solver.Solver

	// Discount factor
	Gamma float64

	// Clip range of the importance-sampling ratio
	EpsClip float64

	// Number of optimization epochs per update
	Epochs int

	// Number of transitions collected between updates. Each update
	// consumes exactly this many transitions as a single batch.
	RolloutLength int

	// Ceiling on the global L2 norm of the gradients of one
	// optimizer step
	MaxGradNorm float64
}

// NewDefaultConfig returns a Config with the default PPO
// hyperparameters: two 64-unit tanh hidden layers per network, Glorot
// uniform initialization, and Adam with step size 2.5e-4 and moment
// decay rates (0.9, 0.999).
func NewDefaultConfig(rolloutLength int) (Config, error) {
	policySolver, err := solver.NewAdam(DefaultLearningRate, 1e-8,
		DefaultBeta1, DefaultBeta2, 1)
	if err != nil {
		return Config{}, fmt.Errorf("newDefaultConfig: could not create "+
			"policy solver: %v", err)
	}
	criticSolver, err := solver.NewAdam(DefaultLearningRate, 1e-8,
		DefaultBeta1, DefaultBeta2, 1)
	if err != nil {
		return Config{}, fmt.Errorf("newDefaultConfig: could not create "+
			"critic solver: %v", err)
	}

	initWFn, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return Config{}, fmt.Errorf("newDefaultConfig: could not create "+
			"weight initializer: %v", err)
	}

	nonlinearity := network.TanH()
	return Config{
		PolicyLayers:      []int{64, 64},
		PolicyBiases:      []bool{true, true},
		PolicyActivations: []*network.Activation{nonlinearity, nonlinearity},

		CriticLayers:      []int{64, 64},
		CriticBiases:      []bool{true, true},
		CriticActivations: []*network.Activation{nonlinearity, nonlinearity},

		InitWFn:      initWFn,
		PolicySolver: policySolver,
		CriticSolver: criticSolver,

		Gamma:         DefaultGamma,
		EpsClip:       DefaultEpsClip,
		Epochs:        DefaultEpochs,
		RolloutLength: rolloutLength,
		MaxGradNorm:   DefaultMaxGradNorm,
	}, nil
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.RolloutLength <= 0 {
		return fmt.Errorf("cannot have rollout length < 1")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("cannot have < 1 optimization epoch per update")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("discount factor must be in [0, 1]")
	}
	if c.EpsClip <= 0 || c.EpsClip >= 1 {
		return fmt.Errorf("clip range must be in (0, 1)")
	}
	if c.MaxGradNorm <= 0 {
		return fmt.Errorf("gradient norm ceiling must be positive")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer given")
	}
	if c.PolicySolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("both policy and critic solvers must be given")
	}
	if c.PolicySolver == c.CriticSolver {
		return fmt.Errorf("policy and critic solvers must be separate " +
			"instances")
	}
	return nil
}

// CreateAgent creates and returns the PPO agent that the Config
// describes
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	return New(e, c, int64(seed))
}

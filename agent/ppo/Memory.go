package ppo

// Memory is the rollout buffer consumed by a PPO update. It holds one
// ordered sequence of transitions stored as parallel sequences sharing
// a single implicit index: states, actions, and sampling-time log
// probabilities are appended together when an action is selected, and
// the resulting reward and terminal flag are appended by the driver
// after the environment step.
//
// Memory performs no cross-sequence validation itself; callers must
// pair each AppendStep with exactly one subsequent AppendOutcome. The
// PPO update validates the pairing before consuming the buffer.
type Memory struct {
	states    [][]float64
	actions   []int
	logProbs  []float64
	rewards   []float64
	terminals []bool
}

// NewMemory returns a new, empty rollout buffer
func NewMemory() *Memory {
	return &Memory{}
}

// AppendStep appends the state an action was selected in, the selected
// action, and the log probability the sampling policy assigned to that
// action. Called by ActorCritic.Act during action selection.
func (m *Memory) AppendStep(state []float64, action int, logProb float64) {
	stored := make([]float64, len(state))
	copy(stored, state)

	m.states = append(m.states, stored)
	m.actions = append(m.actions, action)
	m.logProbs = append(m.logProbs, logProb)
}

// AppendOutcome appends the reward received for the most recently
// selected action and whether that action ended the episode. Called by
// the driver after executing the environment step.
func (m *Memory) AppendOutcome(reward float64, terminal bool) {
	m.rewards = append(m.rewards, reward)
	m.terminals = append(m.terminals, terminal)
}

// Clear empties all sequences. Clear is idempotent and is called once
// per update cycle.
func (m *Memory) Clear() {
	m.states = m.states[:0]
	m.actions = m.actions[:0]
	m.logProbs = m.logProbs[:0]
	m.rewards = m.rewards[:0]
	m.terminals = m.terminals[:0]
}

// Len returns the number of stored decisions (state/action/logProb
// triples)
func (m *Memory) Len() int {
	return len(m.states)
}

// Outcomes returns the number of stored (reward, terminal) pairs
func (m *Memory) Outcomes() int {
	return len(m.rewards)
}

// stack flattens the stored states into a single row-major batch and
// returns it along with the stored actions and sampling-time log
// probabilities.
func (m *Memory) stack() ([]float64, []int, []float64) {
	var states []float64
	if m.Len() > 0 {
		states = make([]float64, 0, m.Len()*len(m.states[0]))
	}
	for _, state := range m.states {
		states = append(states, state...)
	}

	return states, m.actions, m.logProbs
}

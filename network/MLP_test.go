package network

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestNewMLPValidatesArguments(t *testing.T) {
	g := G.NewGraph()

	// One activation per hidden layer
	_, err := NewMLP(3, 1, 2, g, []int{5, 5}, []bool{true, true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	assert.Error(t, err)

	// One bias flag per hidden layer
	_, err = NewMLP(3, 1, 2, g, []int{5}, []bool{},
		G.GlorotU(1.0), []*Activation{ReLU()})
	assert.Error(t, err)

	_, err = NewMLP(0, 1, 2, g, []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	assert.Error(t, err)
}

func TestMLPForwardShape(t *testing.T) {
	g := G.NewGraph()
	m, err := NewMLP(3, 2, 4, g, []int{5}, []bool{true}, G.GlorotU(1.0),
		[]*Activation{TanH()})
	require.NoError(t, err)

	assert.Equal(t, 3, m.Features())
	assert.Equal(t, 2, m.BatchSize())
	assert.Equal(t, 4, m.Outputs())

	require.NoError(t, m.SetInput(make([]float64, 6)))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	out := m.Output()
	assert.Equal(t, []int{2, 4}, []int(out.Shape()))
	assert.Len(t, out.Data().([]float64), 8)
}

func TestMLPSetInputValidatesLength(t *testing.T) {
	m, err := NewMLP(3, 2, 4, G.NewGraph(), []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	require.NoError(t, err)

	assert.Error(t, m.SetInput(make([]float64, 5)))
}

func TestMLPSetCopiesWeights(t *testing.T) {
	src, err := NewMLP(3, 1, 2, G.NewGraph(), []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	require.NoError(t, err)

	dst, err := NewMLP(3, 1, 2, G.NewGraph(), []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	require.NoError(t, err)

	require.NoError(t, dst.Set(src))

	srcLearnables := src.Learnables()
	for i, learnable := range dst.Learnables() {
		assert.Equal(t, srcLearnables[i].Value().Data(),
			learnable.Value().Data())
	}
}

func TestMLPGobRoundTrip(t *testing.T) {
	m, err := NewMLP(3, 2, 4, G.NewGraph(), []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(m))

	decoded := new(MLP)
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))

	assert.Equal(t, m.Features(), decoded.Features())
	assert.Equal(t, m.BatchSize(), decoded.BatchSize())
	assert.Equal(t, m.Outputs(), decoded.Outputs())

	learnables := m.Learnables()
	require.Len(t, decoded.Learnables(), len(learnables))
	for i, learnable := range decoded.Learnables() {
		assert.Equal(t, learnables[i].Value().Data(),
			learnable.Value().Data())
	}
}

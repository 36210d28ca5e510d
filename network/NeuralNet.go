// Package network implements neural network function approximators
// using Gorgonia computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a neural network whose forward pass has been added to
// a Gorgonia computational graph. A NeuralNet does not own a virtual
// machine; callers decide whether the graph is run forward-only or
// with gradients bound.
type NeuralNet interface {
	// Graph returns the computational graph holding the network
	Graph() *G.ExprGraph

	// BatchSize returns the number of rows in the network's input
	BatchSize() int

	// Features returns the number of features in a single input row
	Features() int

	// Outputs returns the number of values predicted per input row
	Outputs() int

	// SetInput sets the value of the input node before running the
	// graph. The input is given in row-major order and must have
	// length BatchSize() * Features().
	SetInput([]float64) error

	// Set copies the learnable weights of another NeuralNet into
	// this one. Both networks must have identically-shaped learnables.
	Set(NeuralNet) error

	// Learnables returns the nodes holding the network weights
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Prediction returns the node holding the network output
	Prediction() *G.Node

	// Output returns the value of the Prediction node after the
	// graph has been run
	Output() G.Value
}

// Set copies the learnable weights of src into dest
func Set(dest, src NeuralNet) error {
	return dest.Set(src)
}

// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max.
// If min exceeds the floating point, then the function returns the min.
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// Max calculates and returns the maximum float64 in a list
func Max(floats ...float64) float64 {
	max := floats[0]
	for _, val := range floats {
		if val > max {
			max = val
		}
	}
	return max
}

// Min calculates and returns the minimum float64 in a list
func Min(floats ...float64) float64 {
	min := floats[0]
	for _, val := range floats {
		if val < min {
			min = val
		}
	}
	return min
}

// LogSumExp computes log(Σ exp(x)) of a list of values in a
// numerically stable way by shifting by the maximum value.
func LogSumExp(values []float64) float64 {
	max := Max(values...)

	var sum float64
	for _, val := range values {
		sum += math.Exp(val - max)
	}
	return max + math.Log(sum)
}

// LogSoftmax computes the log of the softmax of values, interpreted
// as the logits of a categorical distribution.
func LogSoftmax(logits []float64) []float64 {
	lse := LogSumExp(logits)

	logProbs := make([]float64, len(logits))
	for i, logit := range logits {
		logProbs[i] = logit - lse
	}
	return logProbs
}

// Softmax computes the softmax of values, interpreted as the logits
// of a categorical distribution.
func Softmax(logits []float64) []float64 {
	probs := LogSoftmax(logits)
	for i, logProb := range probs {
		probs[i] = math.Exp(logProb)
	}
	return probs
}

package funcs

import (
	"fmt"
	"math"
)

// Coster is an elementwise cost between a label and an output.
//
// Derivative returns the descent direction: the value that, multiplied by the
// learning rate and the upstream activation, is added to a weight. For squared
// error that is label - output.
type Coster interface {
	Cost(label, output float64) float64
	Derivative(label, output float64) float64
	fmt.Stringer
}

// SoftmaxPaired is implemented by costs whose Derivative already includes the
// softmax Jacobian, so the backward pass may skip the activation derivative.
type SoftmaxPaired interface {
	PairsWithSoftmax() bool
}

// FoldsSoftmax reports whether c may be used with a softmax output layer.
func FoldsSoftmax(c Coster) bool {
	p, ok := c.(SoftmaxPaired)
	return ok && p.PairsWithSoftmax()
}

// keeps log and division away from 0 and 1
const epsilon = 1e-12

func clamp(p float64) float64 {
	return math.Min(math.Max(p, epsilon), 1-epsilon)
}

type SquaredError struct{}

func (SquaredError) Cost(label, output float64) float64 {
	diff := label - output
	return 0.5 * diff * diff
}

func (SquaredError) Derivative(label, output float64) float64 {
	return label - output
}

func (SquaredError) String() string { return "squared_error" }

// CrossEntropy is the binary cross entropy for outputs in (0, 1).
type CrossEntropy struct{}

func (CrossEntropy) Cost(label, output float64) float64 {
	p := clamp(output)
	return -label*math.Log(p) - (1-label)*math.Log(1-p)
}

func (CrossEntropy) Derivative(label, output float64) float64 {
	p := clamp(output)
	return label/p - (1-label)/(1-p)
}

func (CrossEntropy) String() string { return "cross_entropy" }

// CategoricalCrossEntropy expects a softmax output layer and one-hot labels.
// Its derivative is taken with respect to the pre-softmax sums.
type CategoricalCrossEntropy struct{}

func (CategoricalCrossEntropy) Cost(label, output float64) float64 {
	return -label * math.Log(clamp(output))
}

func (CategoricalCrossEntropy) Derivative(label, output float64) float64 {
	return label - output
}

func (CategoricalCrossEntropy) PairsWithSoftmax() bool { return true }

func (CategoricalCrossEntropy) String() string { return "categorical_cross_entropy" }

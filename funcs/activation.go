package funcs

import (
	"fmt"
	"math"
)

// Activator squashes a neuron's aggregated input. Deactivate takes the
// activated output, not the raw sum, and returns the derivative at that point.
type Activator interface {
	Activate(sum float64) float64
	Deactivate(out float64) float64
	fmt.Stringer
}

// SoftmaxName is the key under which the softmax activator is registered.
// Layers using it are renormalized jointly by the forward pass.
const SoftmaxName = "softmax"

// IsSoftmax reports whether a is the softmax activator.
func IsSoftmax(a Activator) bool {
	return a != nil && a.String() == SoftmaxName
}

type Identity struct{}

func (Identity) Activate(sum float64) float64   { return sum }
func (Identity) Deactivate(out float64) float64 { return 1 }
func (Identity) String() string                 { return "identity" }

type Sigmoid struct{}

func (s Sigmoid) Activate(sum float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sum))
}

func (s Sigmoid) Deactivate(out float64) float64 {
	return out * (1 - out)
}

func (s Sigmoid) String() string {
	return "sigmoid"
}

type Tanh struct{}

func (t Tanh) Activate(sum float64) float64 {
	return math.Tanh(sum)
}

func (t Tanh) Deactivate(out float64) float64 {
	return 1.0 - out*out
}

func (t Tanh) String() string {
	return "tanh"
}

// ReLU leaks with slope 0.0001 below zero.
type ReLU struct{}

func (r ReLU) Activate(sum float64) float64 {
	if sum < 0 {
		return 0.0001 * sum
	}
	return sum
}

func (r ReLU) Deactivate(out float64) float64 {
	if out < 0 {
		return 0.0001
	}
	return 1
}

func (r ReLU) String() string {
	return "relu"
}

type Softplus struct{}

func (Softplus) Activate(sum float64) float64 {
	return math.Log1p(math.Exp(sum))
}

// Deactivate recovers the logistic of the input from the output:
// sigma(x) = 1 - exp(-softplus(x)).
func (Softplus) Deactivate(out float64) float64 {
	return -math.Expm1(-out)
}

func (Softplus) String() string {
	return "softplus"
}

// Softmax passes the weighted sum through unchanged; normalization happens
// across the whole layer after every neuron has fired. Its derivative is
// folded into the paired cost function.
type Softmax struct{}

func (Softmax) Activate(sum float64) float64 { return sum }

func (Softmax) Deactivate(out float64) float64 {
	return out * (1 - out)
}

func (Softmax) String() string { return SoftmaxName }

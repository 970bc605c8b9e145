package funcs

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Transformer maps raw features into the space the network is trained on.
// It must not modify its argument.
type Transformer interface {
	Transform(features []float64) []float64
	fmt.Stringer
}

type IdentityTransformer struct{}

func (IdentityTransformer) Transform(features []float64) []float64 {
	return append([]float64(nil), features...)
}

func (IdentityTransformer) String() string { return "identity" }

// UnitNorm scales the feature vector to unit Euclidean length. The zero vector
// is returned unchanged.
type UnitNorm struct{}

func (UnitNorm) Transform(features []float64) []float64 {
	out := append([]float64(nil), features...)
	if n := floats.Norm(out, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out
}

func (UnitNorm) String() string { return "unit_norm" }

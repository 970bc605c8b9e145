package nn

import (
	"fmt"

	"layernet/m"
	"layernet/utils"

	"gonum.org/v1/gonum/mat"
)

const weightsVersion = "1"

func boundaryName(i int) string { return fmt.Sprintf("layer%d", i) }

// ExportWeights returns a JSON-friendly copy of every boundary.
func (n *LayeredNetwork) ExportWeights() *utils.ModelWeights {
	mw := &utils.ModelWeights{
		Version: weightsVersion,
		Layers:  make(map[string]utils.LayerWeight, len(n.weights)),
	}
	for i, w := range n.weights {
		name := boundaryName(i)
		mw.Layers[name] = utils.LayerWeight{
			Activation:  n.activations[i].String(),
			NeuronClass: n.neuronClasses[i],
			Weight:      utils.MatrixToWeightData(name, w),
		}
	}
	return mw
}

// ImportWeights copies the weights in mw into the network. Every boundary must
// be present with the network's shape and activation; nothing is changed
// unless all of them are.
func (n *LayeredNetwork) ImportWeights(mw *utils.ModelWeights) error {
	const op = "ImportWeights"
	if mw == nil || len(mw.Layers) != len(n.weights) {
		return invalid(op, ErrDimensionMismatch, "want %d boundaries", len(n.weights))
	}

	ms := make([]*mat.Dense, len(n.weights))
	for i := range n.weights {
		name := boundaryName(i)
		lw, ok := mw.Layers[name]
		if !ok || lw.Weight == nil {
			return invalid(op, nil, "missing %s", name)
		}
		if lw.Activation != n.activations[i].String() {
			return invalid(op, nil, "%s: activation %q, network has %q", name, lw.Activation, n.activations[i])
		}
		x, err := utils.WeightDataToMatrix(lw.Weight)
		if err != nil {
			return invalid(op, err, "%s", name)
		}
		if !m.SameShape(x, n.weights[i]) {
			return invalid(op, ErrDimensionMismatch, "%s has the wrong shape", name)
		}
		ms[i] = x
	}
	return n.SetWeightMatrices(ms)
}

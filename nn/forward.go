package nn

import (
	"layernet/funcs"
	"layernet/m"

	"gonum.org/v1/gonum/stat/distuv"
)

// outputInternal runs the forward pass on an input that already carries its
// bias value and returns the final layer's outputs.
func (n *LayeredNetwork) outputInternal(iteration int64, input []float64) []float64 {
	n.setInputs(input)
	for i := 0; i < len(n.layerSizes)-1; i++ {
		n.forward(iteration, i)
	}

	final := n.neurons[n.finalLayerIdx]
	out := make([]float64, len(final))
	for i, nr := range final {
		out[i] = nr.Base().Output
	}
	return out
}

// setInputs loads the input layer. While training, each unit is dropped with
// probability dropRate; a dropped unit outputs 0.
func (n *LayeredNetwork) setInputs(input []float64) {
	mask := distuv.Bernoulli{P: 1 - n.dropRate, Src: n.src}
	for i, nr := range n.neurons[0] {
		u := nr.Base()
		u.Dropped = u.Training && n.dropRate > 0 && mask.Rand() == 0
		if u.Dropped {
			u.Output = 0
			continue
		}
		u.Output = input[i]
	}
}

// forward computes the layer after fromLayer.
func (n *LayeredNetwork) forward(iteration int64, fromLayer int) {
	curLayerIdx := fromLayer + 1
	w := n.weights[fromLayer]
	rows, _ := w.Dims()
	prev := n.neurons[fromLayer]
	layer := n.neurons[curLayerIdx]

	// position 0 of a non-final layer is its bias unit
	offset := 1
	if curLayerIdx == n.finalLayerIdx {
		offset = 0
	}

	for row := 0; row < rows; row++ {
		layer[row+offset].Forward(iteration, inputMessages(w, row, prev))
	}

	if funcs.IsSoftmax(n.activations[fromLayer]) {
		vec := make([]float64, rows)
		for row := range vec {
			vec[row] = layer[row+offset].Base().Output
		}
		for row, v := range m.ApplySoftmaxToVector(vec) {
			layer[row+offset].Base().Output = v
		}
	}

	if offset == 1 {
		layer[0].Base().Output = 1
	}
}

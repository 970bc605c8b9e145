package nn

import (
	"iter"

	"layernet/funcs"
	"layernet/m"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TrainOnline trains on one instance and applies the resulting updates
// immediately.
func (n *LayeredNetwork) TrainOnline(iteration int64, inst Instance) error {
	updates, err := n.TrainByInstance(iteration, inst)
	if err != nil {
		return err
	}
	return n.UpdateWeightMatrices(updates)
}

// TrainByInstance runs one forward and one backward pass and returns an update
// matrix per layer boundary. The weights are left unchanged; the updates are
// remembered as the previous updates used for momentum.
//
// All validation happens before any state is touched.
func (n *LayeredNetwork) TrainByInstance(iteration int64, inst Instance) ([]*mat.Dense, error) {
	labels, input, err := n.trainingInput(inst)
	if err != nil {
		return nil, err
	}
	if err := n.prepare(); err != nil {
		return nil, err
	}

	output := n.outputInternal(iteration, input)
	n.calculateTrainingError(labels, output)

	return n.trainByInstanceGradientDescent(iteration, labels)
}

// trainingInput validates inst and returns the labels and the bias-prefixed
// input vector.
func (n *LayeredNetwork) trainingInput(inst Instance) (labels, input []float64, err error) {
	const op = "TrainByInstance"
	if err := n.checkComplete(op); err != nil {
		return nil, nil, err
	}
	if n.trainingMethod != GradientDescent {
		return nil, nil, errors.WithStack(&UnsupportedConfigError{
			Setting: "training method", Value: n.trainingMethod.String(), Err: ErrUnsupportedMethod,
		})
	}
	if funcs.IsSoftmax(n.activations[len(n.activations)-1]) && !funcs.FoldsSoftmax(n.cost) {
		return nil, nil, errors.WithStack(&UnsupportedConfigError{
			Setting: "cost function", Value: n.cost.String(), Err: ErrUnpairedSoftmax,
		})
	}

	inputDim := n.layerSizes[0] - 1
	outputDim := n.layerSizes[n.finalLayerIdx]

	switch n.learningStyle {
	case Supervised:
		if len(inst.Features) != inputDim || len(inst.Label) != outputDim {
			return nil, nil, invalid(op, ErrDimensionMismatch,
				"the dimension of training instance is %d+%d, but requires %d+%d",
				len(inst.Features), len(inst.Label), inputDim, outputDim)
		}
	case Unsupervised:
		if inputDim != outputDim {
			return nil, nil, invalid(op, ErrDimensionMismatch,
				"unsupervised model needs equal input and output sizes, has %d and %d", inputDim, outputDim)
		}
		if len(inst.Features) != inputDim {
			return nil, nil, invalid(op, ErrDimensionMismatch,
				"the dimension of training instance is %d, but requires %d", len(inst.Features), inputDim)
		}
	default:
		return nil, nil, errors.WithStack(&UnsupportedConfigError{
			Setting: "learning style", Value: n.learningStyle.String(), Err: ErrUnsupportedMethod,
		})
	}

	transformed, err := n.transform(op, inst.Features)
	if err != nil {
		return nil, nil, err
	}
	if n.learningStyle == Unsupervised {
		labels = append([]float64(nil), transformed...)
	} else {
		labels = append([]float64(nil), inst.Label...)
	}
	return labels, m.PrependBias(transformed, TrainingBias), nil
}

func (n *LayeredNetwork) calculateTrainingError(labels, output []float64) {
	sum := 0.0
	for i := range labels {
		sum += n.cost.Cost(labels[i], output[i])
	}
	n.trainingError = sum
}

func (n *LayeredNetwork) trainByInstanceGradientDescent(iteration int64, labels []float64) ([]*mat.Dense, error) {
	updates := m.ZerosLikeAll(n.weights)

	act := n.activations[len(n.activations)-1]
	lastWeights := n.weights[len(n.weights)-1]
	for i, nr := range n.neurons[n.finalLayerIdx] {
		u := nr.Base()
		d := n.cost.Derivative(labels[i], u.Output)
		// Derivative is the descent direction, so the penalty is subtracted
		d -= n.regularizationWeight * m.RowSum(lastWeights, i)
		// softmax's derivative is part of the paired cost derivative
		if !funcs.IsSoftmax(act) {
			d *= act.Deactivate(u.Output)
		}
		u.Backpropagate(d)
	}

	for layer := len(n.layerSizes) - 2; layer >= 0; layer-- {
		if err := n.backpropagate(iteration, layer, updates[layer]); err != nil {
			return nil, err
		}
	}

	n.prevUpdates = m.CloneAll(updates)
	return updates, nil
}

// backpropagate pushes the deltas of layer curLayerIdx+1 back through weight
// matrix curLayerIdx and writes each source neuron's updates into its column
// of update.
func (n *LayeredNetwork) backpropagate(iteration int64, curLayerIdx int, update *mat.Dense) error {
	w := n.weights[curLayerIdx]
	prevUpdate := n.prevUpdates[curLayerIdx]
	rows, cols := w.Dims()

	offset := 1
	if curLayerIdx+1 == n.finalLayerIdx {
		offset = 0
	}
	next := n.neurons[curLayerIdx+1]
	nextLayerDelta := make([]float64, rows)
	for i := range nextLayerDelta {
		nextLayerDelta[i] = next[i+offset].Base().Delta
	}

	layer := n.neurons[curLayerIdx]
	for row := 0; row < cols; row++ {
		nr := layer[row]
		u := nr.Base()
		u.SetWeightVector(rows)
		if err := runBackward(nr, iteration, errorMessages(w, prevUpdate, row, nextLayerDelta)); err != nil {
			return err
		}
		ws, err := u.Weights()
		if err != nil {
			return err
		}
		update.SetCol(row, ws)
	}
	return nil
}

// runBackward turns a weight-buffer overrun inside a neuron into an error.
func runBackward(nr Neuron, iteration int64, msgs iter.Seq[Synapse]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrWeightCursor) {
				err = e
				return
			}
			panic(r)
		}
	}()
	nr.Backward(iteration, msgs)
	return nil
}

package nn

import (
	"iter"

	"layernet/funcs"

	"github.com/pkg/errors"
)

// Neuron is the atomic computation unit of a layered network.
//
// Forward must set the unit's Output before it returns. Backward must set
// Delta and push exactly the count given to SetWeightVector, one value per
// message, in message order.
type Neuron interface {
	Forward(iteration int64, inputs iter.Seq[Synapse])
	Backward(iteration int64, errs iter.Seq[Synapse])
	Base() *Unit
}

// Unit is the state every neuron carries. Variants embed it.
type Unit struct {
	ID         int
	LayerIndex int
	Output     float64
	Delta      float64

	LearningRate   float64
	MomentumWeight float64
	Training       bool
	Dropped        bool

	Activation funcs.Activator

	weights []float64
	cursor  int
}

// Base returns the unit itself; embedding Unit satisfies that part of Neuron.
func (u *Unit) Base() *Unit { return u }

// Feedforward records the neuron's output.
func (u *Unit) Feedforward(out float64) { u.Output = out }

// Backpropagate records the neuron's delta.
func (u *Unit) Backpropagate(delta float64) { u.Delta = delta }

// SetWeightVector resets the write cursor and sizes the update buffer for the
// next backward call. The buffer is reused when it is large enough.
func (u *Unit) SetWeightVector(count int) {
	u.cursor = 0
	if cap(u.weights) >= count {
		u.weights = u.weights[:count]
		return
	}
	u.weights = make([]float64, count)
}

// Push appends one weight update. Pushing past the announced count panics.
func (u *Unit) Push(update float64) {
	if u.cursor >= len(u.weights) {
		panic(errors.Wrapf(ErrWeightCursor, "neuron %d/%d: push %d of %d",
			u.LayerIndex, u.ID, u.cursor+1, len(u.weights)))
	}
	u.weights[u.cursor] = update
	u.cursor++
}

// Weights returns the filled update buffer. It fails when fewer values were
// pushed than announced. The slice is reused by the next SetWeightVector.
func (u *Unit) Weights() ([]float64, error) {
	if u.cursor != len(u.weights) {
		return nil, errors.Wrapf(ErrWeightCursor, "neuron %d/%d: pushed %d of %d",
			u.LayerIndex, u.ID, u.cursor, len(u.weights))
	}
	return u.weights, nil
}

// StandardNeuron sums weighted inputs, squashes them and learns by gradient
// descent with momentum.
type StandardNeuron struct {
	Unit
}

func (n *StandardNeuron) Forward(_ int64, inputs iter.Seq[Synapse]) {
	sum := 0.0
	for m := range inputs {
		sum += m.Value * m.Weight
	}
	n.Feedforward(n.Activation.Activate(sum))
}

func (n *StandardNeuron) Backward(_ int64, errs iter.Seq[Synapse]) {
	n.backward(n.LearningRate, errs)
}

func (n *StandardNeuron) backward(learningRate float64, errs iter.Seq[Synapse]) {
	if n.Dropped {
		for range errs {
			n.Push(0)
		}
		n.Backpropagate(0)
		return
	}

	delta := 0.0
	for m := range errs {
		delta += m.Value * m.Weight
		n.Push(learningRate*m.Value*n.Output + n.MomentumWeight*m.PrevUpdate)
	}
	n.Backpropagate(delta * n.Activation.Deactivate(n.Output))
}

// MaxNeuron fires on its strongest weighted input instead of the sum.
type MaxNeuron struct {
	StandardNeuron
}

func (n *MaxNeuron) Forward(_ int64, inputs iter.Seq[Synapse]) {
	first := true
	max := 0.0
	for m := range inputs {
		if v := m.Value * m.Weight; first || v > max {
			max, first = v, false
		}
	}
	n.Feedforward(n.Activation.Activate(max))
}

// AnnealingRate controls how fast AnnealedNeuron decays its learning rate.
const AnnealingRate = 0.001

// AnnealedNeuron lowers its learning rate as the iteration count grows:
// lr / (1 + iteration*AnnealingRate).
type AnnealedNeuron struct {
	StandardNeuron
}

func (n *AnnealedNeuron) Backward(iteration int64, errs iter.Seq[Synapse]) {
	n.backward(n.LearningRate/(1+float64(iteration)*AnnealingRate), errs)
}

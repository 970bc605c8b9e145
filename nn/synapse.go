package nn

import (
	"iter"

	"gonum.org/v1/gonum/mat"
)

// Synapse carries one edge's data between two neurons during a pass.
//
// Forward: ID is the source neuron, Value its output, Weight the edge weight.
// Backward: ID is the destination neuron, Value its delta, Weight the edge
// weight and PrevUpdate the last update applied to the edge.
type Synapse struct {
	ID         int
	Value      float64
	Weight     float64
	PrevUpdate float64
}

// inputMessages yields, for destination row of w, one synapse per source
// neuron in prev. Every range over the result starts from the first edge.
func inputMessages(w *mat.Dense, row int, prev []Neuron) iter.Seq[Synapse] {
	return func(yield func(Synapse) bool) {
		_, cols := w.Dims()
		for id := 0; id < cols; id++ {
			s := Synapse{ID: id, Value: prev[id].Base().Output, Weight: w.At(row, id)}
			if !yield(s) {
				return
			}
		}
	}
}

// errorMessages yields, for source column row of w, one synapse per
// destination neuron. deltas is indexed by weight row, so the destination bias
// unit is already excluded.
func errorMessages(w, prevUpdate *mat.Dense, row int, deltas []float64) iter.Seq[Synapse] {
	return func(yield func(Synapse) bool) {
		for id, d := range deltas {
			s := Synapse{ID: id, Value: d, Weight: w.At(id, row), PrevUpdate: prevUpdate.At(id, row)}
			if !yield(s) {
				return
			}
		}
	}
}

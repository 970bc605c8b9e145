package utils

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// WeightData represents serializable weight data for a layer boundary
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version string                 `json:"version"`
	Layers  map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains the weights of one boundary plus the names needed to
// interpret them.
type LayerWeight struct {
	Activation  string      `json:"activation"`
	NeuronClass string      `json:"neuron_class"`
	Weight      *WeightData `json:"weight,omitempty"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	return &weights, nil
}

// MatrixToWeightData converts a matrix to serializable weight data
func MatrixToWeightData(name string, m mat.Matrix) *WeightData {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return &WeightData{
		Name:  name,
		Shape: []int{r, c},
		Data:  data,
	}
}

// WeightDataToMatrix converts weight data back to a matrix
func WeightDataToMatrix(wd *WeightData) (*mat.Dense, error) {
	if len(wd.Shape) != 2 {
		return nil, errors.Errorf("%s: expected 2-D shape, got %v", wd.Name, wd.Shape)
	}
	r, c := wd.Shape[0], wd.Shape[1]
	if r <= 0 || c <= 0 || len(wd.Data) != r*c {
		return nil, errors.Errorf("%s: shape %v does not match %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	return mat.NewDense(r, c, append([]float64(nil), wd.Data...)), nil
}

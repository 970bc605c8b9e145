package utils

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMatrixToWeightData(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{0, 0.5, 1, 1.5, 2, 2.5})

	wd := MatrixToWeightData("test_weight", x)

	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	if len(wd.Data) != 6 {
		t.Fatalf("Data length = %d, want 6", len(wd.Data))
	}
	for i, v := range wd.Data {
		expected := float64(i) * 0.5
		if v != expected {
			t.Errorf("Data[%d] = %f, want %f", i, v, expected)
		}
	}
}

func TestWeightDataToMatrix(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	x, err := WeightDataToMatrix(wd)
	if err != nil {
		t.Fatalf("WeightDataToMatrix failed: %v", err)
	}

	r, c := x.Dims()
	if r != 3 || c != 4 {
		t.Errorf("Dims = %dx%d, want 3x4", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := x.At(i, j); v != float64(i*c+j) {
				t.Errorf("At(%d, %d) = %f, want %f", i, j, v, float64(i*c+j))
			}
		}
	}

	// the matrix must not alias the serialized data
	wd.Data[0] = 100
	if x.At(0, 0) != 0 {
		t.Error("matrix shares its backing array with WeightData")
	}
}

func TestWeightDataToMatrixBadShape(t *testing.T) {
	cases := []*WeightData{
		{Name: "1d", Shape: []int{4}, Data: make([]float64, 4)},
		{Name: "short", Shape: []int{2, 2}, Data: make([]float64, 3)},
		{Name: "empty", Shape: []int{0, 2}, Data: nil},
	}
	for _, wd := range cases {
		if _, err := WeightDataToMatrix(wd); err == nil {
			t.Errorf("%s: expected error", wd.Name)
		}
	}
}

func TestSaveLoadWeights(t *testing.T) {
	weightsFile := filepath.Join(t.TempDir(), "test_weights.json")

	weights := &ModelWeights{
		Version: "1",
		Layers: map[string]LayerWeight{
			"layer0": {
				Activation:  "sigmoid",
				NeuronClass: "standard",
				Weight: &WeightData{
					Name:  "layer0",
					Shape: []int{128, 785},
					Data:  make([]float64, 128*785),
				},
			},
			"layer1": {
				Activation:  "softmax",
				NeuronClass: "standard",
				Weight: &WeightData{
					Name:  "layer1",
					Shape: []int{10, 129},
					Data:  make([]float64, 10*129),
				},
			},
		},
	}
	for i := range weights.Layers["layer0"].Weight.Data {
		weights.Layers["layer0"].Weight.Data[i] = float64(i) * 0.001
	}

	if err := SaveWeights(weightsFile, weights); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	if loaded.Version != "1" {
		t.Errorf("Version = %s, want 1", loaded.Version)
	}
	if len(loaded.Layers) != 2 {
		t.Errorf("Layers count = %d, want 2", len(loaded.Layers))
	}

	layer0 := loaded.Layers["layer0"]
	if layer0.Weight == nil {
		t.Fatal("layer0 weight is nil")
	}
	if layer0.Activation != "sigmoid" || layer0.NeuronClass != "standard" {
		t.Errorf("layer0 names = %s/%s, want sigmoid/standard", layer0.Activation, layer0.NeuronClass)
	}
	if len(layer0.Weight.Shape) != 2 || layer0.Weight.Shape[0] != 128 || layer0.Weight.Shape[1] != 785 {
		t.Errorf("layer0 weight shape = %v, want [128, 785]", layer0.Weight.Shape)
	}
	if layer0.Weight.Data[1] != 0.001 {
		t.Errorf("layer0.Weight.Data[1] = %f, want 0.001", layer0.Weight.Data[1])
	}
	if loaded.Layers["layer1"].Activation != "softmax" {
		t.Errorf("layer1 activation = %s, want softmax", loaded.Layers["layer1"].Activation)
	}
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badFile, []byte("not valid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadWeights(badFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

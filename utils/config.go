package utils

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config holds training configuration
type Config struct {
	Architecture []int    // layer sizes without bias units, input first
	Activations  []string // one per layer boundary
	NeuronClass  string
	CostFunction string
	Transformer  string

	LearningRate         float64
	MomentumWeight       float64
	RegularizationWeight float64
	DropRate             float64
	Unsupervised         bool

	Epochs    int
	BatchSize int
	Workers   int
	Seed      uint64
}

// DefaultConfig returns a config for a plain sigmoid MLP with the given architecture.
func DefaultConfig(arch []int) Config {
	acts := make([]string, 0, len(arch))
	for i := 1; i < len(arch); i++ {
		acts = append(acts, "sigmoid")
	}
	return Config{
		Architecture: arch,
		Activations:  acts,
		NeuronClass:  "standard",
		CostFunction: "squared_error",
		Transformer:  "identity",
		LearningRate: 0.1,
		Epochs:       1,
		BatchSize:    1,
		Workers:      1,
	}
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(archStr)
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return errors.New("architecture must have at least 2 layers (input and output)")
	}
	for i, n := range config.Architecture {
		if n <= 0 {
			return errors.Errorf("layer %d has size %d, must be positive", i, n)
		}
	}

	if len(config.Activations) != len(config.Architecture)-1 {
		return errors.Errorf("expected %d activations, got %d",
			len(config.Architecture)-1, len(config.Activations))
	}

	if config.Unsupervised && config.Architecture[0] != config.Architecture[len(config.Architecture)-1] {
		return errors.New("unsupervised training needs equal input and output sizes")
	}

	if config.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if config.Epochs <= 0 {
		return errors.New("epochs must be positive")
	}

	if config.Workers <= 0 {
		return errors.New("workers must be positive")
	}

	if config.DropRate < 0 || config.DropRate > 1 {
		return errors.Errorf("drop rate %v outside [0, 1]", config.DropRate)
	}

	return nil
}

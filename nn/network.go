// Package nn implements layered feed-forward networks whose neurons exchange
// per-edge messages during the forward and backward passes.
package nn

import (
	"fmt"
	"time"

	"layernet/funcs"
	"layernet/m"
	"layernet/utils"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// LearningStyle selects where training labels come from.
type LearningStyle int32

const (
	// Supervised instances carry their own labels.
	Supervised LearningStyle = iota
	// Unsupervised instances are their own labels (autoencoders).
	Unsupervised
)

func (s LearningStyle) String() string {
	switch s {
	case Supervised:
		return "supervised"
	case Unsupervised:
		return "unsupervised"
	}
	return fmt.Sprintf("LearningStyle(%d)", int32(s))
}

// TrainingMethod selects how update matrices are computed.
type TrainingMethod int32

const (
	GradientDescent TrainingMethod = iota
)

func (t TrainingMethod) String() string {
	if t == GradientDescent {
		return "gradient_descent"
	}
	return fmt.Sprintf("TrainingMethod(%d)", int32(t))
}

const (
	// InputBias is the bias value prepended by GetOutput. It is slightly below
	// 1 on purpose.
	InputBias = 0.99999
	// TrainingBias is the bias value prepended by TrainByInstance.
	TrainingBias = 1.0

	initMin = -0.5
	initMax = 0.5
)

// Config holds the model hyper-parameters.
type Config struct {
	LearningRate         float64
	MomentumWeight       float64
	RegularizationWeight float64
	CostFunction         string // defaults to "squared_error"
	Transformer          string // defaults to "identity"
	LearningStyle        LearningStyle
	TrainingMethod       TrainingMethod
	DropRate             float64
	Seed                 uint64 // 0 seeds from the clock
}

// DefaultConfig returns a supervised gradient-descent config.
func DefaultConfig() Config {
	return Config{
		LearningRate:   0.1,
		CostFunction:   "squared_error",
		Transformer:    "identity",
		LearningStyle:  Supervised,
		TrainingMethod: GradientDescent,
	}
}

// Instance is one training example. Label is ignored for unsupervised models.
type Instance struct {
	Features []float64
	Label    []float64
}

// LayeredNetwork is a stack of fully connected layers. Weight matrix i maps
// layer i to layer i+1; its columns are the neurons of layer i (bias first)
// and its rows the non-bias neurons of layer i+1.
//
// A LayeredNetwork is not safe for concurrent use.
type LayeredNetwork struct {
	learningRate         float64
	momentumWeight       float64
	regularizationWeight float64
	cost                 funcs.Coster
	transformer          funcs.Transformer
	learningStyle        LearningStyle
	trainingMethod       TrainingMethod
	dropRate             float64

	layerSizes    []int
	weights       []*mat.Dense
	prevUpdates   []*mat.Dense
	activations   []funcs.Activator
	neuronClasses []string
	finalLayerIdx int

	// neurons[layer][position], built by the first pass
	neurons       [][]Neuron
	training      bool
	frozen        bool
	trainingError float64

	src rand.Source
}

// NewLayeredNetwork creates an empty network. Layers are added with AddLayer.
func NewLayeredNetwork(cfg Config) (*LayeredNetwork, error) {
	if cfg.CostFunction == "" {
		cfg.CostFunction = "squared_error"
	}
	if cfg.Transformer == "" {
		cfg.Transformer = "identity"
	}
	cost, err := funcs.LookupCoster(cfg.CostFunction)
	if err != nil {
		return nil, invalid("NewLayeredNetwork", err, "cost function")
	}
	tr, err := funcs.LookupTransformer(cfg.Transformer)
	if err != nil {
		return nil, invalid("NewLayeredNetwork", err, "feature transformer")
	}
	if cfg.DropRate < 0 || cfg.DropRate > 1 {
		return nil, invalid("NewLayeredNetwork", nil, "drop rate %v outside [0, 1]", cfg.DropRate)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &LayeredNetwork{
		learningRate:         cfg.LearningRate,
		momentumWeight:       cfg.MomentumWeight,
		regularizationWeight: cfg.RegularizationWeight,
		cost:                 cost,
		transformer:          tr,
		learningStyle:        cfg.LearningStyle,
		trainingMethod:       cfg.TrainingMethod,
		dropRate:             float64(float32(cfg.DropRate)),
		finalLayerIdx:        -1,
		src:                  rand.NewSource(seed),
	}, nil
}

// AddLayer appends a layer of size neurons and returns its index. Every layer
// but the final one gets an extra bias unit. For all layers after the first,
// activation and neuronClass name the function and neuron variant used by
// the new layer; they are ignored for the input layer.
func (n *LayeredNetwork) AddLayer(size int, isFinalLayer bool, activation, neuronClass string) (int, error) {
	const op = "AddLayer"
	if n.frozen {
		return -1, invalid(op, ErrFrozenTopology, "layer %d", len(n.layerSizes))
	}
	if size <= 0 {
		return -1, invalid(op, ErrInvalidLayerSize, "got %d", size)
	}
	if n.finalLayerIdx >= 0 {
		return -1, invalid(op, ErrFinalLayerExists, "final layer is %d", n.finalLayerIdx)
	}
	if isFinalLayer && len(n.layerSizes) == 0 {
		return -1, invalid(op, nil, "the input layer cannot be the final layer")
	}

	var act funcs.Activator
	if len(n.layerSizes) > 0 {
		var err error
		if act, err = funcs.LookupActivator(activation); err != nil {
			return -1, invalid(op, err, "layer %d", len(n.layerSizes))
		}
		if _, err := NewNeuron(neuronClass); err != nil {
			return -1, invalid(op, err, "layer %d", len(n.layerSizes))
		}
	}

	switch {
	case isFinalLayer:
		utils.Logf("add output layer: %d neurons", size)
	case len(n.layerSizes) == 0:
		utils.Logf("add input layer: %d neurons", size)
	default:
		utils.Logf("add hidden layer: %d neurons", size)
	}

	if !isFinalLayer {
		size++
	}
	n.layerSizes = append(n.layerSizes, size)
	layerIdx := len(n.layerSizes) - 1
	if isFinalLayer {
		n.finalLayerIdx = layerIdx
	}

	if layerIdx > 0 {
		rows := size
		if !isFinalLayer {
			rows--
		}
		cols := n.layerSizes[layerIdx-1]
		n.weights = append(n.weights, m.RandomUniform(rows, cols, initMin, initMax, n.src))
		n.prevUpdates = append(n.prevUpdates, mat.NewDense(rows, cols, nil))
		n.activations = append(n.activations, act)
		n.neuronClasses = append(n.neuronClasses, neuronClass)
	}
	return layerIdx, nil
}

// UpdateWeightMatrices adds deltas[i] to weight matrix i. Weights are kept at
// float32 precision so that a saved model loads back unchanged.
func (n *LayeredNetwork) UpdateWeightMatrices(deltas []*mat.Dense) error {
	if err := n.checkMatrices("UpdateWeightMatrices", deltas); err != nil {
		return err
	}
	for i, d := range deltas {
		n.weights[i].Add(n.weights[i], d)
		m.RoundToFloat32(n.weights[i])
	}
	return nil
}

// checkMatrices verifies that ms lines up with the weight matrices.
func (n *LayeredNetwork) checkMatrices(op string, ms []*mat.Dense) error {
	if len(ms) != len(n.weights) {
		return invalid(op, ErrDimensionMismatch, "got %d matrices, want %d", len(ms), len(n.weights))
	}
	for i, x := range ms {
		if x == nil || !m.SameShape(x, n.weights[i]) {
			return invalid(op, ErrDimensionMismatch, "matrix %d has the wrong shape", i)
		}
	}
	return nil
}

// GetOutput runs the forward pass on one feature vector and returns the final
// layer's outputs.
func (n *LayeredNetwork) GetOutput(features []float64) ([]float64, error) {
	const op = "GetOutput"
	if err := n.checkComplete(op); err != nil {
		return nil, err
	}
	if want := n.layerSizes[0] - 1; len(features) != want {
		return nil, invalid(op, ErrDimensionMismatch,
			"the dimension of input instance should be %d, got %d", want, len(features))
	}
	transformed, err := n.transform(op, features)
	if err != nil {
		return nil, err
	}
	if err := n.prepare(); err != nil {
		return nil, err
	}
	return n.outputInternal(0, m.PrependBias(transformed, InputBias)), nil
}

func (n *LayeredNetwork) transform(op string, features []float64) ([]float64, error) {
	out := n.transformer.Transform(features)
	if len(out) != len(features) {
		return nil, invalid(op, ErrDimensionMismatch,
			"transformer %s changed the dimension from %d to %d", n.transformer, len(features), len(out))
	}
	return out, nil
}

func (n *LayeredNetwork) checkComplete(op string) error {
	if n.finalLayerIdx < 1 {
		return invalid(op, ErrNoFinalLayer, "%d layers", len(n.layerSizes))
	}
	return nil
}

// prepare freezes the topology and builds the neuron arena on first use.
func (n *LayeredNetwork) prepare() error {
	n.frozen = true
	if n.neurons != nil {
		return nil
	}
	neurons := make([][]Neuron, len(n.layerSizes))
	for i, size := range n.layerSizes {
		class := StandardClass
		var act funcs.Activator = funcs.Identity{}
		if i > 0 {
			class, act = n.neuronClasses[i-1], n.activations[i-1]
		}
		layer := make([]Neuron, size)
		for j := range layer {
			nr, err := NewNeuron(class)
			if err != nil {
				return err
			}
			u := nr.Base()
			u.ID = j
			u.LayerIndex = i
			u.Activation = act
			u.LearningRate = n.learningRate
			u.MomentumWeight = n.momentumWeight
			u.Training = n.training
			layer[j] = nr
		}
		neurons[i] = layer
	}
	n.neurons = neurons
	return nil
}

// SetTraining switches drop-out on or off for every neuron.
func (n *LayeredNetwork) SetTraining(training bool) {
	n.training = training
	for _, layer := range n.neurons {
		for _, nr := range layer {
			nr.Base().Training = training
		}
	}
}

// Training reports whether the network is in training mode.
func (n *LayeredNetwork) Training() bool { return n.training }

// SetDropRate sets the drop-out probability of the input layer.
func (n *LayeredNetwork) SetDropRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return invalid("SetDropRate", nil, "drop rate %v outside [0, 1]", rate)
	}
	n.dropRate = float64(float32(rate))
	return nil
}

// DropRate returns the drop-out probability of the input layer.
func (n *LayeredNetwork) DropRate() float64 { return n.dropRate }

// TrainingError is the summed cost of the last trained instance.
func (n *LayeredNetwork) TrainingError() float64 { return n.trainingError }

func (n *LayeredNetwork) LearningRate() float64          { return n.learningRate }
func (n *LayeredNetwork) MomentumWeight() float64        { return n.momentumWeight }
func (n *LayeredNetwork) RegularizationWeight() float64  { return n.regularizationWeight }
func (n *LayeredNetwork) CostFunction() funcs.Coster     { return n.cost }
func (n *LayeredNetwork) Transformer() funcs.Transformer { return n.transformer }
func (n *LayeredNetwork) LearningStyle() LearningStyle   { return n.learningStyle }
func (n *LayeredNetwork) TrainingMethod() TrainingMethod { return n.trainingMethod }
func (n *LayeredNetwork) FinalLayerIndex() int           { return n.finalLayerIdx }

// LayerSizes returns a copy of the layer sizes, bias units included.
func (n *LayeredNetwork) LayerSizes() []int {
	return append([]int(nil), n.layerSizes...)
}

// ActivationNames returns the activation of every boundary.
func (n *LayeredNetwork) ActivationNames() []string {
	out := make([]string, len(n.activations))
	for i, a := range n.activations {
		out[i] = a.String()
	}
	return out
}

// NeuronClasses returns the neuron class of every non-input layer.
func (n *LayeredNetwork) NeuronClasses() []string {
	return append([]string(nil), n.neuronClasses...)
}

// WeightMatrices returns the weight matrices. They are shared, not copied.
func (n *LayeredNetwork) WeightMatrices() []*mat.Dense {
	return append([]*mat.Dense(nil), n.weights...)
}

// SetWeightMatrices replaces all weight matrices with copies of ms.
func (n *LayeredNetwork) SetWeightMatrices(ms []*mat.Dense) error {
	if err := n.checkMatrices("SetWeightMatrices", ms); err != nil {
		return err
	}
	for i, x := range ms {
		n.weights[i].Copy(x)
		m.RoundToFloat32(n.weights[i])
	}
	return nil
}

// WeightsByLayer returns weight matrix idx.
func (n *LayeredNetwork) WeightsByLayer(idx int) (*mat.Dense, error) {
	if idx < 0 || idx >= len(n.weights) {
		return nil, invalid("WeightsByLayer", ErrIndexOutOfRange,
			"index [%d] should be in range [0, %d)", idx, len(n.weights))
	}
	return n.weights[idx], nil
}

// SetWeightMatrix replaces weight matrix idx with a copy of x, which must keep
// its shape.
func (n *LayeredNetwork) SetWeightMatrix(idx int, x *mat.Dense) error {
	const op = "SetWeightMatrix"
	if idx < 0 || idx >= len(n.weights) {
		return invalid(op, ErrIndexOutOfRange, "index [%d] should be in range [0, %d)", idx, len(n.weights))
	}
	if x == nil || !m.SameShape(x, n.weights[idx]) {
		return invalid(op, ErrDimensionMismatch, "matrix %d has the wrong shape", idx)
	}
	n.weights[idx].Copy(x)
	m.RoundToFloat32(n.weights[idx])
	return nil
}

// PrevUpdateMatrices returns copies of the last applied updates.
func (n *LayeredNetwork) PrevUpdateMatrices() []*mat.Dense {
	return m.CloneAll(n.prevUpdates)
}

// SetPrevUpdateMatrices replaces the momentum memory with copies of ms.
func (n *LayeredNetwork) SetPrevUpdateMatrices(ms []*mat.Dense) error {
	if err := n.checkMatrices("SetPrevUpdateMatrices", ms); err != nil {
		return err
	}
	n.prevUpdates = m.CloneAll(ms)
	return nil
}

// Clone returns a deep copy with its own random source and neuron arena, for
// use as a private worker replica.
func (n *LayeredNetwork) Clone() *LayeredNetwork {
	c := *n
	c.layerSizes = n.LayerSizes()
	c.weights = m.CloneAll(n.weights)
	c.prevUpdates = m.CloneAll(n.prevUpdates)
	c.activations = append([]funcs.Activator(nil), n.activations...)
	c.neuronClasses = n.NeuronClasses()
	c.neurons = nil
	c.src = rand.NewSource(n.src.Uint64())
	return &c
}

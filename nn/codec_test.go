package nn

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func codecNet(t *testing.T) *LayeredNetwork {
	t.Helper()
	cfg := Config{
		LearningRate:         0.05,
		MomentumWeight:       0.9,
		RegularizationWeight: 0.001,
		CostFunction:         "categorical_cross_entropy",
		Transformer:          "unit_norm",
		LearningStyle:        Supervised,
		DropRate:             0.2,
		Seed:                 7,
	}
	n, err := NewLayeredNetwork(cfg)
	require.NoError(t, err)
	_, err = n.AddLayer(3, false, "", "")
	require.NoError(t, err)
	_, err = n.AddLayer(4, false, "tanh", AnnealedClass)
	require.NoError(t, err)
	_, err = n.AddLayer(2, true, "softmax", StandardClass)
	require.NoError(t, err)
	return n
}

func TestCodecRoundTrip(t *testing.T) {
	src := codecNet(t)
	// make the momentum memory non-zero; it is not serialized
	_, err := src.TrainByInstance(0, Instance{Features: []float64{1, 2, 3}, Label: []float64{0, 1}})
	require.NoError(t, err)

	var buf bytes.Buffer
	written, err := src.MarshalBinaryTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), written)

	dst, err := NewLayeredNetwork(Config{Seed: 1})
	require.NoError(t, err)
	read, err := dst.UnmarshalBinaryFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, written, read)

	assert.Equal(t, src.LayerSizes(), dst.LayerSizes())
	assert.Equal(t, src.FinalLayerIndex(), dst.FinalLayerIndex())
	assert.Equal(t, src.ActivationNames(), dst.ActivationNames())
	assert.Equal(t, src.NeuronClasses(), dst.NeuronClasses())
	assert.Equal(t, src.LearningRate(), dst.LearningRate())
	assert.Equal(t, src.MomentumWeight(), dst.MomentumWeight())
	assert.Equal(t, src.RegularizationWeight(), dst.RegularizationWeight())
	assert.Equal(t, src.CostFunction().String(), dst.CostFunction().String())
	assert.Equal(t, src.Transformer().String(), dst.Transformer().String())
	assert.Equal(t, src.LearningStyle(), dst.LearningStyle())
	assert.Equal(t, src.TrainingMethod(), dst.TrainingMethod())
	assert.Equal(t, src.DropRate(), dst.DropRate())

	for i, w := range src.WeightMatrices() {
		assert.True(t, mat.Equal(w, dst.WeightMatrices()[i]), "boundary %d", i)
	}
	for _, p := range dst.PrevUpdateMatrices() {
		assert.Zero(t, mat.Norm(p, 1), "previous updates start at zero")
	}

	var again bytes.Buffer
	_, err = dst.MarshalBinaryTo(&again)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), again.Bytes())

	in := []float64{0.3, -0.6, 0.9}
	a, err := src.GetOutput(in)
	require.NoError(t, err)
	b, err := dst.GetOutput(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// Weights moved by training still load back unchanged.
func TestCodecRoundTripAfterTraining(t *testing.T) {
	src := codecNet(t)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, src.TrainOnline(i, Instance{Features: []float64{0.1, -0.7, 2}, Label: []float64{1, 0}}))
	}

	var buf bytes.Buffer
	_, err := src.MarshalBinaryTo(&buf)
	require.NoError(t, err)
	dst := new(LayeredNetwork)
	_, err = dst.UnmarshalBinaryFrom(&buf)
	require.NoError(t, err)

	for i, w := range src.WeightMatrices() {
		assert.True(t, mat.Equal(w, dst.WeightMatrices()[i]), "boundary %d", i)
	}
}

func TestCodecHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	_, err := codecNet(t).MarshalBinaryTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(data[4:]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(data[8:]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(data[12:]))
	var lr float64
	require.NoError(t, binary.Read(bytes.NewReader(data[16:24]), binary.BigEndian, &lr))
	assert.Equal(t, 0.05, lr)
}

// corrupt replaces the first occurrence of old in the encoded model.
func corrupt(t *testing.T, data []byte, old, repl string) []byte {
	t.Helper()
	require.Equal(t, len(old), len(repl))
	require.True(t, bytes.Contains(data, []byte(old)), "%q not in stream", old)
	return bytes.Replace(data, []byte(old), []byte(repl), 1)
}

func TestCodecUnknownNamesFailWholeLoad(t *testing.T) {
	var buf bytes.Buffer
	_, err := codecNet(t).MarshalBinaryTo(&buf)
	require.NoError(t, err)

	cases := []struct {
		name, old, repl, field string
	}{
		{"activation", "tanh", "tanx", "activation"},
		{"neuron class", "annealed", "annealex", "neuron class"},
		{"cost", "categorical_cross_entropy", "categorical_cross_entropx", "cost function"},
		{"transformer", "unit_norm", "unit_nors", "feature transformer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dst := buildNet(t, DefaultConfig(), []int{2, 1}, []string{"sigmoid"}, StandardClass)
			w := mat.DenseCopyOf(dst.WeightMatrices()[0])

			_, err := dst.UnmarshalBinaryFrom(bytes.NewReader(corrupt(t, buf.Bytes(), tc.old, tc.repl)))
			var de *DeserializationError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tc.field, de.Field)

			assert.Equal(t, []int{3, 1}, dst.LayerSizes(), "receiver must be unchanged")
			assert.Equal(t, []string{"sigmoid"}, dst.ActivationNames())
			assert.True(t, mat.Equal(w, dst.WeightMatrices()[0]))
			assert.Equal(t, "squared_error", dst.CostFunction().String())
		})
	}
}

func TestCodecTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	_, err := codecNet(t).MarshalBinaryTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	for cut := 0; cut < len(data); cut++ {
		dst, err := NewLayeredNetwork(Config{Seed: 1})
		require.NoError(t, err)
		_, err = dst.UnmarshalBinaryFrom(bytes.NewReader(data[:cut]))
		var de *DeserializationError
		require.True(t, errors.As(err, &de), "cut at %d: got %v", cut, err)
		assert.Nil(t, dst.LayerSizes())
	}
}

func TestCodecRejectsInconsistentCounts(t *testing.T) {
	var buf bytes.Buffer
	_, err := codecNet(t).MarshalBinaryTo(&buf)
	require.NoError(t, err)
	data := append([]byte(nil), buf.Bytes()...)

	// a zero-sized layer
	binary.BigEndian.PutUint32(data[8:], 0)
	_, err = new(LayeredNetwork).UnmarshalBinaryFrom(bytes.NewReader(data))
	var de *DeserializationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "layer size", de.Field)
	assert.Equal(t, 1, de.Index)

	// a huge layer count
	data = append([]byte(nil), buf.Bytes()...)
	binary.BigEndian.PutUint32(data[0:], 0x7fffffff)
	_, err = new(LayeredNetwork).UnmarshalBinaryFrom(bytes.NewReader(data))
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "layer count", de.Field)
}

func TestMarshalIncompleteNetwork(t *testing.T) {
	n, err := NewLayeredNetwork(DefaultConfig())
	require.NoError(t, err)
	_, err = n.MarshalBinaryTo(&bytes.Buffer{})
	requireValidation(t, err, ErrNoFinalLayer)
}

func TestSaveLoadFile(t *testing.T) {
	src := codecNet(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, src.SaveFile(path))

	dst, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src.LayerSizes(), dst.LayerSizes())

	in := []float64{1, 0, -1}
	a, err := src.GetOutput(in)
	require.NoError(t, err)
	b, err := dst.GetOutput(in)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a, b, 1e-6)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

package nn

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"layernet/funcs"
	"layernet/utils"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Limits applied while decoding, so a corrupt stream cannot ask for
// unbounded allocations.
const (
	maxLayers         = 1 << 16
	maxStringLen      = 1 << 12
	maxMatrixElements = 1 << 26
)

var byteOrder = binary.BigEndian

// MarshalBinaryTo writes the model to w. Previous updates are not written.
//
// Layout: layer sizes, learning rate, momentum weight, regularization
// weight, cost function, learning style, training method, feature
// transformer, final layer index (int32), drop rate (float32), neuron
// classes, activation functions, weight matrices (rows, cols, row-major
// float32). Counts and sizes are int32, strings are an int32 length followed
// by UTF-8 bytes, everything is big-endian.
func (n *LayeredNetwork) MarshalBinaryTo(w io.Writer) (int, error) {
	if err := n.checkComplete("MarshalBinaryTo"); err != nil {
		return 0, err
	}
	e := &encoder{w: w}

	e.writeInt(len(n.layerSizes))
	for _, s := range n.layerSizes {
		e.writeInt(s)
	}
	e.write(n.learningRate)
	e.write(n.momentumWeight)
	e.write(n.regularizationWeight)
	e.writeString(n.cost.String())
	e.write(int32(n.learningStyle))
	e.write(int32(n.trainingMethod))
	e.writeString(n.transformer.String())

	e.writeInt(n.finalLayerIdx)
	e.write(float32(n.dropRate))

	e.writeInt(len(n.neuronClasses))
	for _, c := range n.neuronClasses {
		e.writeString(c)
	}

	e.writeInt(len(n.activations))
	for _, a := range n.activations {
		e.writeString(a.String())
	}

	e.writeInt(len(n.weights))
	for _, x := range n.weights {
		e.writeMatrix(x)
	}

	return e.n, e.err
}

// UnmarshalBinaryFrom replaces the model with one read from r. On error the
// receiver is left unchanged: an unknown name or an inconsistent count fails
// the whole load.
func (n *LayeredNetwork) UnmarshalBinaryFrom(r io.Reader) (int, error) {
	d := &decoder{r: r}
	out, err := d.decode()
	if err != nil {
		return d.n, err
	}

	out.src = n.src
	out.training = n.training
	if out.src == nil {
		out.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	*n = *out
	return d.n, nil
}

// SaveFile writes the model to path.
func (n *LayeredNetwork) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating model file")
	}
	bw := bufio.NewWriter(f)
	size, err := n.MarshalBinaryTo(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "writing model to %s", path)
	}
	utils.Logf("saved model to %s (%d bytes)", path, size)
	return nil
}

// LoadFile reads a model written by SaveFile.
func LoadFile(path string) (*LayeredNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening model file")
	}
	defer f.Close()

	net, err := NewLayeredNetwork(Config{})
	if err != nil {
		return nil, err
	}
	size, err := net.UnmarshalBinaryFrom(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "reading model from %s", path)
	}
	utils.Logf("loaded model from %s (%d bytes, layers %v)", path, size, net.layerSizes)
	return net, nil
}

type encoder struct {
	w   io.Writer
	n   int
	err error
}

func (e *encoder) write(v interface{}) {
	if e.err != nil {
		return
	}
	if e.err = binary.Write(e.w, byteOrder, v); e.err == nil {
		e.n += binary.Size(v)
	}
}

func (e *encoder) writeInt(v int) { e.write(int32(v)) }

func (e *encoder) writeString(s string) {
	e.writeInt(len(s))
	if e.err != nil {
		return
	}
	var k int
	k, e.err = io.WriteString(e.w, s)
	e.n += k
}

func (e *encoder) writeMatrix(x *mat.Dense) {
	r, c := x.Dims()
	e.writeInt(r)
	e.writeInt(c)
	payload := make([]float32, 0, r*c)
	for i := 0; i < r; i++ {
		for _, v := range x.RawRowView(i) {
			payload = append(payload, float32(v))
		}
	}
	e.write(payload)
}

type decoder struct {
	r io.Reader
	n int
}

func (d *decoder) read(field string, index int, v interface{}) error {
	if err := binary.Read(d.r, byteOrder, v); err != nil {
		return &DeserializationError{Field: field, Index: index, Err: err}
	}
	d.n += binary.Size(v)
	return nil
}

// readCount reads a non-negative int32 no larger than max.
func (d *decoder) readCount(field string, index, max int) (int, error) {
	var v int32
	if err := d.read(field, index, &v); err != nil {
		return 0, err
	}
	if v < 0 || int(v) > max {
		return 0, &DeserializationError{Field: field, Index: index,
			Err: errors.Errorf("value %d outside [0, %d]", v, max)}
	}
	return int(v), nil
}

func (d *decoder) readString(field string, index int) (string, error) {
	size, err := d.readCount(field, index, maxStringLen)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	k, err := io.ReadFull(d.r, buf)
	d.n += k
	if err != nil {
		return "", &DeserializationError{Field: field, Index: index, Err: err}
	}
	return string(buf), nil
}

func (d *decoder) decode() (*LayeredNetwork, error) {
	out := &LayeredNetwork{}

	numLayers, err := d.readCount("layer count", -1, maxLayers)
	if err != nil {
		return nil, err
	}
	if numLayers < 2 {
		return nil, &DeserializationError{Field: "layer count", Index: -1,
			Err: errors.Errorf("need at least 2 layers, got %d", numLayers)}
	}
	out.layerSizes = make([]int, numLayers)
	for i := range out.layerSizes {
		size, err := d.readCount("layer size", i, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return nil, &DeserializationError{Field: "layer size", Index: i, Err: ErrInvalidLayerSize}
		}
		out.layerSizes[i] = size
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"learning rate", &out.learningRate},
		{"momentum weight", &out.momentumWeight},
		{"regularization weight", &out.regularizationWeight},
	} {
		if err := d.read(f.name, -1, f.dst); err != nil {
			return nil, err
		}
	}

	name, err := d.readString("cost function", -1)
	if err != nil {
		return nil, err
	}
	if out.cost, err = funcs.LookupCoster(name); err != nil {
		return nil, &DeserializationError{Field: "cost function", Index: -1, Err: err}
	}

	var style, method int32
	if err := d.read("learning style", -1, &style); err != nil {
		return nil, err
	}
	if err := d.read("training method", -1, &method); err != nil {
		return nil, err
	}
	out.learningStyle, out.trainingMethod = LearningStyle(style), TrainingMethod(method)

	if name, err = d.readString("feature transformer", -1); err != nil {
		return nil, err
	}
	if out.transformer, err = funcs.LookupTransformer(name); err != nil {
		return nil, &DeserializationError{Field: "feature transformer", Index: -1, Err: err}
	}

	final, err := d.readCount("final layer index", -1, maxLayers)
	if err != nil {
		return nil, err
	}
	if final != numLayers-1 {
		return nil, &DeserializationError{Field: "final layer index", Index: -1,
			Err: errors.Errorf("got %d, want %d", final, numLayers-1)}
	}
	out.finalLayerIdx = final

	var dropRate float32
	if err := d.read("drop rate", -1, &dropRate); err != nil {
		return nil, err
	}
	if !(dropRate >= 0 && dropRate <= 1) {
		return nil, &DeserializationError{Field: "drop rate", Index: -1,
			Err: errors.Errorf("%v outside [0, 1]", dropRate)}
	}
	out.dropRate = float64(dropRate)

	boundaries := numLayers - 1

	if err := d.expectCount("neuron class count", boundaries); err != nil {
		return nil, err
	}
	out.neuronClasses = make([]string, boundaries)
	for i := range out.neuronClasses {
		class, err := d.readString("neuron class", i)
		if err != nil {
			return nil, err
		}
		if _, err := NewNeuron(class); err != nil {
			return nil, &DeserializationError{Field: "neuron class", Index: i, Err: err}
		}
		out.neuronClasses[i] = class
	}

	if err := d.expectCount("activation count", boundaries); err != nil {
		return nil, err
	}
	out.activations = make([]funcs.Activator, boundaries)
	for i := range out.activations {
		name, err := d.readString("activation", i)
		if err != nil {
			return nil, err
		}
		if out.activations[i], err = funcs.LookupActivator(name); err != nil {
			return nil, &DeserializationError{Field: "activation", Index: i, Err: err}
		}
	}

	if err := d.expectCount("weight matrix count", boundaries); err != nil {
		return nil, err
	}
	out.weights = make([]*mat.Dense, boundaries)
	out.prevUpdates = make([]*mat.Dense, boundaries)
	for i := range out.weights {
		wantRows := out.layerSizes[i+1]
		if i+1 != final {
			wantRows--
		}
		x, err := d.readMatrix(i, wantRows, out.layerSizes[i])
		if err != nil {
			return nil, err
		}
		out.weights[i] = x
		out.prevUpdates[i] = mat.NewDense(wantRows, out.layerSizes[i], nil)
	}

	return out, nil
}

func (d *decoder) expectCount(field string, want int) error {
	got, err := d.readCount(field, -1, maxLayers)
	if err != nil {
		return err
	}
	if got != want {
		return &DeserializationError{Field: field, Index: -1,
			Err: errors.Errorf("got %d, want %d", got, want)}
	}
	return nil
}

func (d *decoder) readMatrix(index, wantRows, wantCols int) (*mat.Dense, error) {
	rows, err := d.readCount("weight matrix rows", index, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	cols, err := d.readCount("weight matrix cols", index, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	if rows != wantRows || cols != wantCols || rows == 0 {
		return nil, &DeserializationError{Field: "weight matrix", Index: index,
			Err: errors.Errorf("shape %dx%d, want %dx%d", rows, cols, wantRows, wantCols)}
	}
	if rows*cols > maxMatrixElements {
		return nil, &DeserializationError{Field: "weight matrix", Index: index,
			Err: errors.Errorf("%d elements exceed the limit of %d", rows*cols, maxMatrixElements)}
	}

	payload := make([]float32, rows*cols)
	if err := d.read("weight matrix", index, payload); err != nil {
		return nil, err
	}
	data := make([]float64, len(payload))
	for i, v := range payload {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data), nil
}

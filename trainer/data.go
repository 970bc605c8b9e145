package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"layernet/nn"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

type errInvalidLine struct {
	lineNum  int
	fields   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("line %d: got %d fields, expected %d", e.lineNum, e.fields, e.expected)
}

// ReadInstances parses comma separated rows of inputNum features followed by
// outputNum labels. With outputNum 0 the rows are unlabelled.
func ReadInstances(r io.Reader, inputNum, outputNum int) ([]nn.Instance, error) {
	if inputNum <= 0 || outputNum < 0 {
		return nil, errors.Errorf("invalid row layout %d+%d", inputNum, outputNum)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []nn.Instance
	for lineNum := 1; ; lineNum++ {
		record, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, errors.Wrap(err, "reading instances")
		}
		if len(record) != inputNum+outputNum {
			return out, errInvalidLine{lineNum: lineNum, fields: len(record), expected: inputNum + outputNum}
		}

		inst := nn.Instance{Features: make([]float64, inputNum)}
		if outputNum > 0 {
			inst.Label = make([]float64, outputNum)
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return out, errors.Wrapf(err, "line %d field %d", lineNum, i)
			}
			if i < inputNum {
				inst.Features[i] = v
			} else {
				inst.Label[i-inputNum] = v
			}
		}
		out = append(out, inst)
	}
}

// Standardize rescales every feature column to zero mean and unit standard
// deviation in place and returns the statistics it used. Constant columns are
// only centred. Every instance must have the same number of features; data is
// left untouched otherwise.
func Standardize(data []nn.Instance) (mean, std []float64, err error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	dim := len(data[0].Features)
	for i, inst := range data {
		if len(inst.Features) != dim {
			return nil, nil, errors.Errorf("instance %d has %d features, want %d", i, len(inst.Features), dim)
		}
	}
	mean = make([]float64, dim)
	std = make([]float64, dim)
	col := make([]float64, len(data))
	for j := 0; j < dim; j++ {
		for i, inst := range data {
			col[i] = inst.Features[j]
		}
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
	}

	for _, inst := range data {
		for j, x := range inst.Features {
			x -= mean[j]
			if std[j] > 0 {
				x /= std[j]
			}
			inst.Features[j] = x
		}
	}
	return mean, std, nil
}

func createBatches(data []nn.Instance, batchSize int) [][]nn.Instance {
	numBatches := (len(data) + batchSize - 1) / batchSize
	batches := make([][]nn.Instance, numBatches)
	for i := range batches {
		start := i * batchSize
		end := min(start+batchSize, len(data))
		batches[i] = data[start:end]
	}
	return batches
}

// split divides batch into at most n contiguous shards of near-equal size.
func split(batch []nn.Instance, n int) [][]nn.Instance {
	n = min(n, len(batch))
	shards := make([][]nn.Instance, n)
	for i := range shards {
		start := i * len(batch) / n
		end := (i + 1) * len(batch) / n
		shards[i] = batch[start:end]
	}
	return shards
}

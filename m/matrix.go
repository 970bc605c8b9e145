package m

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomUniform returns an r x c matrix with entries drawn from [min, max),
// each rounded to float32 precision.
func RandomUniform(r, c int, min, max float64, src rand.Source) *mat.Dense {
	dist := distuv.Uniform{
		Min: min,
		Max: max,
		Src: src,
	}

	data := make([]float64, r*c)
	for i := range data {
		data[i] = float64(float32(dist.Rand()))
	}
	return mat.NewDense(r, c, data)
}

// RoundToFloat32 rounds every element of x to the nearest float32 in place.
func RoundToFloat32(x *mat.Dense) {
	r, _ := x.Dims()
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		for j, v := range row {
			row[j] = float64(float32(v))
		}
	}
}

// ZerosLike returns a zero matrix with the dimensions of m.
func ZerosLike(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	return mat.NewDense(r, c, nil)
}

// CloneAll deep-copies every matrix in ms.
func CloneAll(ms []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ms))
	for i, x := range ms {
		out[i] = mat.DenseCopyOf(x)
	}
	return out
}

// ZerosLikeAll returns zero matrices shaped like ms.
func ZerosLikeAll(ms []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ms))
	for i, x := range ms {
		out[i] = ZerosLike(x)
	}
	return out
}

// AddAll adds src[i] into dst[i] in place. Both slices must have the same length
// and pairwise equal shapes.
func AddAll(dst, src []*mat.Dense) {
	for i := range dst {
		dst[i].Add(dst[i], src[i])
	}
}

// RowSum sums row i of m.
func RowSum(m *mat.Dense, i int) float64 {
	return floats.Sum(m.RawRowView(i))
}

// PrependBias returns a new vector with b in front of v.
func PrependBias(v []float64, b float64) []float64 {
	out := make([]float64, len(v)+1)
	out[0] = b
	copy(out[1:], v)
	return out
}

// ApplySoftmaxToVector returns exp(v_i) / sum_j exp(v_j). The maximum is shifted
// out first so large inputs do not overflow.
func ApplySoftmaxToVector(inputVector []float64) []float64 {
	softmaxed := make([]float64, len(inputVector))
	if len(inputVector) == 0 {
		return softmaxed
	}
	max := floats.Max(inputVector)
	sum := 0.0
	for i, v := range inputVector {
		softmaxed[i] = math.Exp(v - max)
		sum += softmaxed[i]
	}

	floats.Scale(1/sum, softmaxed)
	return softmaxed
}

// SameShape reports whether a and b have equal dimensions.
func SameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}

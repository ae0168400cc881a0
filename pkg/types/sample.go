package types

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a 4×4 transform stored row-major, in the host's convention where
// the translation occupies the last row (elements 12, 13, 14).
type Matrix [16]float64

// Identity returns the 4×4 identity transform.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns an identity transform translated by (x, y, z).
func Translation(x, y, z float64) Matrix {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// MatrixFromSlice copies 16 row-major values into a Matrix.
func MatrixFromSlice(v []float64) (Matrix, error) {
	var m Matrix
	if len(v) != len(m) {
		return m, fmt.Errorf("matrix needs %d values, got %d", len(m), len(v))
	}
	copy(m[:], v)
	return m, nil
}

// MatrixFromDense copies a 4×4 gonum matrix into a Matrix.
func MatrixFromDense(d mat.Matrix) (Matrix, error) {
	var m Matrix
	if r, c := d.Dims(); r != 4 || c != 4 {
		return m, fmt.Errorf("matrix must be 4x4, got %dx%d", r, c)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i*4+j] = d.At(i, j)
		}
	}
	return m, nil
}

// Dense returns a gonum copy of m.
func (m Matrix) Dense() *mat.Dense {
	data := make([]float64, len(m))
	copy(data, m[:])
	return mat.NewDense(4, 4, data)
}

// Translate returns the translation component (row 3, columns 0–2).
func (m Matrix) Translate() *mat.VecDense {
	return mat.NewVecDense(3, []float64{m[12], m[13], m[14]})
}

// SampleKind discriminates the Sample variant.
type SampleKind int

const (
	KindMatrix SampleKind = iota
	KindScalar
)

func (k SampleKind) String() string {
	switch k {
	case KindMatrix:
		return "matrix"
	case KindScalar:
		return "scalar"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SampleKind returns the variant a source must produce for mode m.
func (m Mode) SampleKind() SampleKind {
	if m == ModeDistance {
		return KindScalar
	}
	return KindMatrix
}

// Sample is a value read from a source at one frame: either a transform
// matrix or a scalar. The zero value is an all-zero matrix sample.
type Sample struct {
	kind   SampleKind
	matrix Matrix
	scalar float64
}

// MatrixSample wraps a transform.
func MatrixSample(m Matrix) Sample {
	return Sample{kind: KindMatrix, matrix: m}
}

// ScalarSample wraps a scalar distance value.
func ScalarSample(v float64) Sample {
	return Sample{kind: KindScalar, scalar: v}
}

// Kind returns which variant s holds.
func (s Sample) Kind() SampleKind { return s.kind }

// Matrix returns the transform and true when s is a matrix sample.
func (s Sample) Matrix() (Matrix, bool) {
	return s.matrix, s.kind == KindMatrix
}

// Scalar returns the value and true when s is a scalar sample.
func (s Sample) Scalar() (float64, bool) {
	return s.scalar, s.kind == KindScalar
}

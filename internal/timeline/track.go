package timeline

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/speedometer/speedometer/pkg/types"
)

// MatrixKey is one keyframe of a Track.
type MatrixKey struct {
	Frame  float64
	Matrix types.Matrix
}

// Track is a keyframed 4×4 transform channel. Between keys every element is
// blended linearly, which interpolates the translation row exactly.
// Track is immutable after construction and safe for concurrent use.
type Track struct {
	frames []float64
	mats   []*mat.Dense
	interp Interpolation
	inf    Infinity
}

// NewTrack builds a Track from keys in any order.
func NewTrack(keys []MatrixKey, interp Interpolation, inf Infinity) (*Track, error) {
	sorted := make([]MatrixKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	t := &Track{
		frames: make([]float64, len(sorted)),
		mats:   make([]*mat.Dense, len(sorted)),
		interp: interp,
		inf:    inf,
	}
	for i, k := range sorted {
		t.frames[i] = k.Frame
		t.mats[i] = k.Matrix.Dense()
	}
	if err := checkFrames(t.frames); err != nil {
		return nil, err
	}
	return t, nil
}

// Transform returns the interpolated transform at frame.
func (t *Track) Transform(frame float64) (types.Matrix, error) {
	i, u, err := locate(t.frames, frame, t.interp, t.inf)
	if err != nil {
		return types.Matrix{}, err
	}
	if u == 0 {
		return types.MatrixFromDense(t.mats[i])
	}

	var a, b mat.Dense
	a.Scale(1-u, t.mats[i])
	b.Scale(u, t.mats[i+1])
	a.Add(&a, &b)
	return types.MatrixFromDense(&a)
}

// Sample implements Source.
func (t *Track) Sample(frame float64) (types.Sample, error) {
	m, err := t.Transform(frame)
	if err != nil {
		return types.Sample{}, err
	}
	return types.MatrixSample(m), nil
}

// Range implements Source.
func (t *Track) Range() (float64, float64) {
	return t.frames[0], t.frames[len(t.frames)-1]
}

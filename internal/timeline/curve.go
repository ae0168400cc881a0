package timeline

import (
	"sort"

	"github.com/speedometer/speedometer/pkg/types"
)

// ScalarKey is one keyframe of a Curve.
type ScalarKey struct {
	Frame float64
	Value float64
}

// Curve is a keyframed scalar channel. It is immutable after construction
// and safe for concurrent use.
type Curve struct {
	frames []float64
	values []float64
	interp Interpolation
	inf    Infinity
}

// NewCurve builds a Curve from keys in any order.
func NewCurve(keys []ScalarKey, interp Interpolation, inf Infinity) (*Curve, error) {
	sorted := make([]ScalarKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	c := &Curve{
		frames: make([]float64, len(sorted)),
		values: make([]float64, len(sorted)),
		interp: interp,
		inf:    inf,
	}
	for i, k := range sorted {
		c.frames[i] = k.Frame
		c.values[i] = k.Value
	}
	if err := checkFrames(c.frames); err != nil {
		return nil, err
	}
	return c, nil
}

// Value returns the curve value at frame.
func (c *Curve) Value(frame float64) (float64, error) {
	i, u, err := locate(c.frames, frame, c.interp, c.inf)
	if err != nil {
		return 0, err
	}
	if u == 0 {
		return c.values[i], nil
	}
	return c.values[i] + u*(c.values[i+1]-c.values[i]), nil
}

// Sample implements Source.
func (c *Curve) Sample(frame float64) (types.Sample, error) {
	v, err := c.Value(frame)
	if err != nil {
		return types.Sample{}, err
	}
	return types.ScalarSample(v), nil
}

// Range implements Source.
func (c *Curve) Range() (float64, float64) {
	return c.frames[0], c.frames[len(c.frames)-1]
}

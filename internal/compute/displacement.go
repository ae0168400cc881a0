package compute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/speedometer/speedometer/pkg/types"
)

// Displacement returns the non-negative distance travelled between prev and
// cur in host linear units. Both samples must hold the variant mode expects.
func Displacement(mode types.Mode, cur, prev types.Sample) (float64, error) {
	switch mode {
	case types.ModeDistance:
		return scalarDisplacement(cur, prev)
	case types.ModeMatrix:
		return vectorDisplacement(cur, prev)
	default:
		return 0, fmt.Errorf("%w: unknown mode %d", ErrConfiguration, int(mode))
	}
}

func scalarDisplacement(cur, prev types.Sample) (float64, error) {
	c, ok := cur.Scalar()
	if !ok {
		return 0, kindErr("current", types.KindScalar, cur.Kind())
	}
	p, ok := prev.Scalar()
	if !ok {
		return 0, kindErr("previous", types.KindScalar, prev.Kind())
	}
	return math.Abs(c - p), nil
}

func vectorDisplacement(cur, prev types.Sample) (float64, error) {
	c, ok := cur.Matrix()
	if !ok {
		return 0, kindErr("current", types.KindMatrix, cur.Kind())
	}
	p, ok := prev.Matrix()
	if !ok {
		return 0, kindErr("previous", types.KindMatrix, prev.Kind())
	}

	var delta mat.VecDense
	delta.SubVec(p.Translate(), c.Translate())
	return mat.Norm(&delta, 2), nil
}

func kindErr(which string, want, got types.SampleKind) error {
	return fmt.Errorf("%w: %s sample is %s, want %s", ErrSampling, which, got, want)
}

package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/speedometer/speedometer/internal/config"
	"github.com/speedometer/speedometer/pkg/types"
)

// ErrOutOfRange is returned by strict sources sampled outside their keys.
var ErrOutOfRange = errors.New("timeline: frame outside key range")

// ErrNoKeys is returned when a source is built without keyframes.
var ErrNoKeys = errors.New("timeline: channel has no keys")

// Source is implemented by every animated input.
type Source interface {
	// Sample returns the value at frame.
	Sample(frame float64) (types.Sample, error)

	// Range returns the first and last keyed frames.
	Range() (first, last float64)
}

// Interpolation selects how values between two keys are derived.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
)

// Infinity selects how frames outside the key range are sampled.
type Infinity int

const (
	InfinityConstant Infinity = iota
	InfinityStrict
)

// New returns the Source for ch. mode decides whether the channel is read as
// scalar values or transforms; id is used in error messages.
func New(id string, ch *config.Channel, mode types.Mode) (Source, error) {
	if ch == nil {
		return nil, fmt.Errorf("timeline %q: nil channel", id)
	}
	interp, inf, err := parseBehaviour(ch)
	if err != nil {
		return nil, fmt.Errorf("timeline %q: %w", id, err)
	}

	switch mode {
	case types.ModeDistance:
		keys := make([]ScalarKey, 0, len(ch.Keys))
		for i, k := range ch.Keys {
			if k.Value == nil {
				return nil, fmt.Errorf("timeline %q: keys[%d]: missing value", id, i)
			}
			keys = append(keys, ScalarKey{Frame: k.Frame, Value: *k.Value})
		}
		c, err := NewCurve(keys, interp, inf)
		if err != nil {
			return nil, fmt.Errorf("timeline %q: %w", id, err)
		}
		return c, nil

	case types.ModeMatrix:
		keys := make([]MatrixKey, 0, len(ch.Keys))
		for i, k := range ch.Keys {
			m, err := keyMatrix(k)
			if err != nil {
				return nil, fmt.Errorf("timeline %q: keys[%d]: %w", id, i, err)
			}
			keys = append(keys, MatrixKey{Frame: k.Frame, Matrix: m})
		}
		tr, err := NewTrack(keys, interp, inf)
		if err != nil {
			return nil, fmt.Errorf("timeline %q: %w", id, err)
		}
		return tr, nil

	default:
		return nil, fmt.Errorf("timeline %q: unsupported mode %v", id, mode)
	}
}

func parseBehaviour(ch *config.Channel) (Interpolation, Infinity, error) {
	var interp Interpolation
	switch ch.Interpolation {
	case "linear", "":
		interp = InterpolationLinear
	case "step":
		interp = InterpolationStep
	default:
		return 0, 0, fmt.Errorf("unknown interpolation %q", ch.Interpolation)
	}

	var inf Infinity
	switch ch.Infinity {
	case "constant", "":
		inf = InfinityConstant
	case "strict":
		inf = InfinityStrict
	default:
		return 0, 0, fmt.Errorf("unknown infinity %q", ch.Infinity)
	}
	return interp, inf, nil
}

func keyMatrix(k config.Key) (types.Matrix, error) {
	switch {
	case len(k.Matrix) > 0:
		return types.MatrixFromSlice(k.Matrix)
	case len(k.Translate) == 3:
		return types.Translation(k.Translate[0], k.Translate[1], k.Translate[2]), nil
	default:
		return types.Matrix{}, fmt.Errorf("need translate (3 values) or matrix (16 values)")
	}
}

// locate finds the key segment containing frame. It returns the index of the
// left key and the blend weight towards the next key, in [0, 1).
func locate(frames []float64, frame float64, interp Interpolation, inf Infinity) (int, float64, error) {
	n := len(frames)
	if n == 0 {
		return 0, 0, ErrNoKeys
	}
	if math.IsNaN(frame) {
		return 0, 0, fmt.Errorf("%w: frame is NaN", ErrOutOfRange)
	}

	first, last := frames[0], frames[n-1]
	if frame < first || frame > last {
		if inf == InfinityStrict {
			return 0, 0, fmt.Errorf("%w: frame %g not in [%g, %g]", ErrOutOfRange, frame, first, last)
		}
		if frame < first {
			return 0, 0, nil
		}
		return n - 1, 0, nil
	}

	// frames[i] <= frame < frames[i+1]
	i := sort.Search(n, func(k int) bool { return frames[k] > frame }) - 1
	if i == n-1 || interp == InterpolationStep {
		return i, 0, nil
	}
	return i, (frame - frames[i]) / (frames[i+1] - frames[i]), nil
}

// checkFrames rejects empty or duplicate key frames. frames must be sorted.
func checkFrames(frames []float64) error {
	if len(frames) == 0 {
		return ErrNoKeys
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] == frames[i-1] {
			return fmt.Errorf("duplicate key at frame %g", frames[i])
		}
	}
	return nil
}

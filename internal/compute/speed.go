package compute

import (
	"fmt"
	"math"

	"github.com/speedometer/speedometer/pkg/types"
)

// State constants describing how a Result was produced.
const (
	StateOK       = "ok"
	StateDisabled = "disabled"
	StateNoSource = "no_source"
	StateError    = "error"
)

// lookback is the fixed distance in frames between the two samples.
const lookback = 1.0

// SampleFunc returns the value of the driving input as it was at frame.
// It may be called for frames outside the playback range.
type SampleFunc func(frame float64) (types.Sample, error)

// Params holds everything one evaluation reads. FrameDuration and
// DistancePerUnit are resolved once by the caller from the host environment.
type Params struct {
	Enabled bool
	Mode    types.Mode
	Unit    types.Unit

	// FrameDuration is the number of seconds represented by one frame.
	FrameDuration float64

	// DistancePerUnit is how many host linear units make one metre
	// (100 for a centimetre scene).
	DistancePerUnit float64

	// Frame is the frame being evaluated; the previous sample is Frame-1.
	Frame float64

	// Connected reports whether the input selected by Mode has a driver.
	Connected bool
}

// Output is the detailed result of one evaluation.
type Output struct {
	// Speed is expressed in Params.Unit and is never negative.
	Speed float64

	// SpeedMPS is the same speed in metres per second.
	SpeedMPS float64

	// Displacement is the raw one-frame delta in host linear units.
	Displacement float64

	// State is one of StateOK, StateDisabled or StateNoSource.
	State string
}

// Evaluate returns the speed for p, sampling at most twice.
func Evaluate(p Params, sample SampleFunc) (float64, error) {
	out, err := Compute(p, sample)
	if err != nil {
		return 0, err
	}
	return out.Speed, nil
}

// Compute is Evaluate with the intermediate values kept.
//
// The checks run in a fixed order: a disabled node yields zero, then an
// unconnected source yields zero, then configuration is validated, and only
// then is the sampler called.
func Compute(p Params, sample SampleFunc) (Output, error) {
	if !p.Enabled {
		return Output{State: StateDisabled}, nil
	}
	if !p.Connected {
		return Output{State: StateNoSource}, nil
	}

	factor, err := validate(p)
	if err != nil {
		return Output{}, err
	}

	if sample == nil {
		return Output{}, fmt.Errorf("%w: no sampler for connected %s input", ErrSampling, p.Mode)
	}

	cur, err := sample(p.Frame)
	if err != nil {
		return Output{}, fmt.Errorf("%w: frame %g: %w", ErrSampling, p.Frame, err)
	}
	prev, err := sample(p.Frame - lookback)
	if err != nil {
		return Output{}, fmt.Errorf("%w: frame %g: %w", ErrSampling, p.Frame-lookback, err)
	}

	disp, err := Displacement(p.Mode, cur, prev)
	if err != nil {
		return Output{}, err
	}

	mps := disp / p.DistancePerUnit / p.FrameDuration
	return Output{
		Speed:        mps * factor,
		SpeedMPS:     mps,
		Displacement: disp,
		State:        StateOK,
	}, nil
}

// Validate checks the configuration part of p without sampling.
func Validate(p Params) error {
	_, err := validate(p)
	return err
}

// validate is Validate returning the unit factor it resolved.
func validate(p Params) (float64, error) {
	if !p.Mode.Valid() {
		return 0, fmt.Errorf("%w: unknown mode %d", ErrConfiguration, int(p.Mode))
	}
	factor, err := p.Unit.Factor()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !positiveFinite(p.FrameDuration) {
		return 0, fmt.Errorf("%w: frame duration must be positive, got %g", ErrConfiguration, p.FrameDuration)
	}
	if !positiveFinite(p.DistancePerUnit) {
		return 0, fmt.Errorf("%w: distance per unit must be positive, got %g", ErrConfiguration, p.DistancePerUnit)
	}
	return factor, nil
}

// positiveFinite rejects zero, negatives, NaN and ±Inf.
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

package compute

import "errors"

// ErrConfiguration marks an evaluation rejected because of an invalid unit,
// mode, frame duration or distance-per-unit.
var ErrConfiguration = errors.New("compute: invalid configuration")

// ErrSampling marks an evaluation whose sampler could not produce a value of
// the expected kind for a requested frame.
var ErrSampling = errors.New("compute: sampling failed")

// Package compute derives an instantaneous speed from two samples of an
// object's motion taken one frame apart.
//
// speed.go provides the pure Evaluate(Params, SampleFunc) function:
//
//	speed = |Δ| / distance_per_unit / frame_duration * unit_factor
//
// where Δ is the scalar difference (distance mode) or the Euclidean distance
// between the translation rows of two 4×4 transforms (matrix mode). The
// previous sample is always taken at frame-1.
//
// Disabled nodes and unconnected sources produce a defined zero with no
// sampling. Invalid configuration (unknown unit or mode, non-positive frame
// duration or distance-per-unit) returns ErrConfiguration; a failing sampler
// returns ErrSampling. Neither is ever turned into a numeric result.
//
// Nothing in this package holds state; Evaluate is safe for concurrent use.
package compute

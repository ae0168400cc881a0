package compute

import (
	"time"

	"github.com/speedometer/speedometer/pkg/types"
)

// Result is the evaluation of one node at one frame, ready for the API,
// exporter and alert engine.
type Result struct {
	NodeID       string
	Frame        float64
	Mode         types.Mode
	Unit         types.Unit
	Speed        float64
	SpeedMPS     float64
	Displacement float64
	State        string
	ErrorMessage string // non-empty when State is StateError
	Err          error
	EvaluatedAt  time.Time
}

// NewResult folds the outcome of Compute into a Result. A non-nil err turns
// the result into StateError with all numeric fields left at zero.
func NewResult(nodeID string, p Params, out Output, err error, now time.Time) Result {
	r := Result{
		NodeID:      nodeID,
		Frame:       p.Frame,
		Mode:        p.Mode,
		Unit:        p.Unit,
		EvaluatedAt: now,
	}
	if err != nil {
		r.State = StateError
		r.Err = err
		r.ErrorMessage = err.Error()
		return r
	}
	r.Speed = out.Speed
	r.SpeedMPS = out.SpeedMPS
	r.Displacement = out.Displacement
	r.State = out.State
	return r
}

package api

import (
	"errors"
	"fmt"

	"github.com/speedometer/speedometer/internal/compute"
	"github.com/speedometer/speedometer/internal/node"
	"github.com/speedometer/speedometer/internal/timeline"
)

// speedOfSound is used to flag implausible speeds, in metres per second.
const speedOfSound = 343.0

// DiagnosticHint is one human-readable insight about a node's evaluation.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a node summary and one result.
// At most one state hint is returned, followed by value hints for ok results.
func computeDiagnostics(info node.Info, r compute.Result) []DiagnosticHint {
	hints := []DiagnosticHint{}

	switch r.State {
	case compute.StateDisabled:
		return append(hints, DiagnosticHint{
			Key:    "disabled",
			Level:  "info",
			Title:  "Node disabled",
			Detail: "The node is switched off and reports 0. Set enabled: true to evaluate it.",
		})

	case compute.StateNoSource:
		detail := fmt.Sprintf("Mode %s has no %s input, so the node reports 0.", info.Mode, info.Mode)
		if info.Mode == "distance" && info.MatrixConnected {
			detail += " A matrix input is connected; switch the mode to matrix to use it."
		}
		if info.Mode == "matrix" && info.DistanceConnected {
			detail += " A distance input is connected; switch the mode to distance to use it."
		}
		return append(hints, DiagnosticHint{
			Key:    "no_source",
			Level:  "warning",
			Title:  "Input not connected",
			Detail: detail,
		})

	case compute.StateError:
		h := DiagnosticHint{Key: "evaluation_failed", Level: "critical", Title: "Evaluation failed", Detail: r.ErrorMessage}
		switch {
		case errors.Is(r.Err, timeline.ErrOutOfRange):
			f := r.Frame
			h.Key = "out_of_range"
			h.Title = "Frame outside keys"
			h.Value = &f
			h.Detail = fmt.Sprintf(
				"Frame %g needs samples at %g and %g, but the input is strict and its keys span %g to %g.",
				r.Frame, r.Frame, r.Frame-1, info.FirstKey, info.LastKey)
		case errors.Is(r.Err, compute.ErrConfiguration):
			h.Key = "bad_configuration"
			h.Title = "Invalid scene settings"
		}
		return append(hints, h)
	}

	if r.Displacement == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "stationary",
			Level:  "ok",
			Title:  "Not moving",
			Detail: "The input did not move between the previous frame and this one.",
		})
	}
	if r.SpeedMPS > speedOfSound {
		v := r.SpeedMPS
		hints = append(hints, DiagnosticHint{
			Key:   "supersonic",
			Level: "info",
			Title: "Faster than sound",
			Detail: "The speed exceeds 343 m/s. If that is unexpected, check the scene linear unit " +
				"and frame rate.",
			Value: &v,
		})
	}
	return hints
}

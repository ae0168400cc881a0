package alerts

import (
	"strconv"
	"strings"

	"github.com/speedometer/speedometer/internal/compute"
)

// evalCondition evaluates a rule condition string against a Result.
//
// Supported expressions (field operator value):
//
//	speed > 120
//	speed_mps >= 40
//	displacement > 50
//	frame >= 100
//	state == error
//	state != ok
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, r compute.Result) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "state" {
		switch op {
		case "==":
			return r.State == rhs, 0
		case "!=":
			return r.State != rhs, 0
		}
		return false, 0
	}

	// Numeric rules only apply to successful evaluations; a zero from an
	// error is not a measured speed.
	if r.State == compute.StateError {
		return false, 0
	}
	v, ok := numericField(field, r)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the result.
func numericField(field string, r compute.Result) (float64, bool) {
	switch field {
	case "speed":
		return r.Speed, true
	case "speed_mps":
		return r.SpeedMPS, true
	case "displacement":
		return r.Displacement, true
	case "frame":
		return r.Frame, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}

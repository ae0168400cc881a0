package types

import (
	"fmt"
	"strings"
)

// Mode selects which input channel drives the speed computation.
type Mode int

const (
	// ModeMatrix derives displacement from the translation of a 4×4 transform.
	ModeMatrix Mode = iota
	// ModeDistance derives displacement from a scalar distance channel.
	ModeDistance
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMatrix:
		return "matrix"
	case ModeDistance:
		return "distance"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeMatrix || m == ModeDistance
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matrix":
		return ModeMatrix, nil
	case "distance":
		return ModeDistance, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Unit is the output speed unit. The numeric values match the enum indices
// exposed by the host node (0 = km/h … 3 = f/s).
type Unit int

const (
	UnitKMH Unit = iota
	UnitMPH
	UnitMS
	UnitFPS
)

// unitTable maps each Unit to its display label and its factor relative to
// metres per second.
var unitTable = [...]struct {
	label  string
	factor float64
}{
	UnitKMH: {"km/h", 3.6},
	UnitMPH: {"mph", 2.23694},
	UnitMS:  {"m/s", 1.0},
	UnitFPS: {"f/s", 3.28084},
}

// Units returns every supported unit in index order.
func Units() []Unit {
	return []Unit{UnitKMH, UnitMPH, UnitMS, UnitFPS}
}

// Valid reports whether u indexes the conversion table.
func (u Unit) Valid() bool {
	return u >= 0 && int(u) < len(unitTable)
}

// Factor returns the multiplier that converts metres per second into u.
// An index outside the table is an error, never clamped.
func (u Unit) Factor() (float64, error) {
	if !u.Valid() {
		return 0, fmt.Errorf("unit index %d out of range [0, %d)", int(u), len(unitTable))
	}
	return unitTable[u].factor, nil
}

// Label returns the display label (e.g. "km/h").
func (u Unit) Label() string {
	if !u.Valid() {
		return fmt.Sprintf("unit(%d)", int(u))
	}
	return unitTable[u].label
}

// String implements fmt.Stringer.
func (u Unit) String() string { return u.Label() }

// ParseUnit accepts either the display label ("km/h", "mph", "m/s", "f/s")
// or the short name ("kmh", "mph", "ms", "fps").
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km/h", "kmh", "kph":
		return UnitKMH, nil
	case "mph":
		return UnitMPH, nil
	case "m/s", "ms", "mps":
		return UnitMS, nil
	case "f/s", "fps", "ft/s":
		return UnitFPS, nil
	default:
		return 0, fmt.Errorf("unknown speed unit %q", s)
	}
}

// Package p1547 implements the pass/fail evaluation engine for IEEE 1547.1
// grid-support function compliance tests, plus the disturbance-sequence
// generator for voltage, frequency and phase-angle ride-through tests.
//
// The package computes target/min/max windows for every test step of the
// normal-performance procedures (Volt-Var, Volt-Watt, Watt-Var, Constant
// Power Factor, Constant Reactive Power, Frequency-Watt, Limit Active Power
// and Prioritization), applies the open-loop time-response model and renders
// step verdicts. It does not acquire measurements itself: callers supply a
// MeasurementProvider and a simulator driver consumes the sequences it
// produces.
package p1547

import (
	"errors"
	"fmt"
)

// Version of the evaluation tables implemented by this package. Test runners
// pin the table revision they were written against; see ValidateVersion.
const Version = "1.4.3"

// Function identifies a grid-support function under test.
type Function string

const (
	FW  Function = "FW"  // Frequency-Watt
	CPF Function = "CPF" // Constant Power Factor
	VW  Function = "VW"  // Volt-Watt
	VV  Function = "VV"  // Volt-Var
	WV  Function = "WV"  // Watt-Var
	CRP Function = "CRP" // Constant Reactive Power
	LAP Function = "LAP" // Limit Active Power
	PRI Function = "PRI" // Voltage/frequency regulation priority
)

// Quantity identifies a measured or calculated electrical quantity.
type Quantity string

const (
	Voltage       Quantity = "V"
	Frequency     Quantity = "F"
	ActivePower   Quantity = "P"
	ReactivePower Quantity = "Q"
	PowerFactor   Quantity = "PF"
	Duration      Quantity = "T"
)

// FullName returns the human readable name of q for reports.
func (q Quantity) FullName() string {
	switch q {
	case Voltage:
		return "Voltage"
	case Frequency:
		return "Frequency"
	case ActivePower:
		return "Active Power"
	case ReactivePower:
		return "Reactive Power"
	case PowerFactor:
		return "Power Factor"
	case Duration:
		return "Time"
	default:
		return string(q)
	}
}

// Phases describes the AC connection of the EUT.
type Phases int

const (
	SinglePhase Phases = 1
	SplitPhase  Phases = 2
	ThreePhase  Phases = 3
)

func (p Phases) String() string {
	switch p {
	case SinglePhase:
		return "single phase"
	case SplitPhase:
		return "split phase"
	case ThreePhase:
		return "three phase"
	default:
		return fmt.Sprintf("phases(%d)", int(p))
	}
}

// ErrConfiguration marks fatal setup problems: unknown function names,
// missing EUT parameters, non-monotonic curve break-points. A run must not
// continue past one of these.
var ErrConfiguration = errors.New("p1547: configuration error")

// ErrUnsupported marks features the standard defines but this engine
// deliberately does not implement (e.g. per-phase imbalance response).
var ErrUnsupported = errors.New("p1547: not supported")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// MeasurementError wraps a provider failure for a single quantity. The
// evaluator logs it and leaves the quantity's record unset; the run
// continues.
type MeasurementError struct {
	Quantity Quantity
	Err      error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("p1547: measurement of %s failed: %v", e.Quantity, e.Err)
}

func (e *MeasurementError) Unwrap() error { return e.Err }

// ValidateVersion checks that a test script written against the given table
// revision matches this library.
func ValidateVersion(scriptVersion string) error {
	if scriptVersion != Version {
		return configErrorf("library version is %s while script version is %s", Version, scriptVersion)
	}
	return nil
}

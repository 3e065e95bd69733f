package p1547

import "fmt"

// Imbalanced-voltage test configuration, Table 24. Two three-phase cases:
// case A raises phase A above the others, case B lowers it. The fix mode
// trades off which of magnitude or angle stays at its 120-degree symmetric
// nominal so the zero-sequence component stays at zero.

// FixMode selects the Table 24 variant.
type FixMode string

const (
	// FixStd holds both magnitudes and angles at the table's primary values.
	FixStd FixMode = "std"
	// FixMag holds the magnitudes and compensates with the angles.
	FixMag FixMode = "fix_mag"
	// FixAng holds the 120-degree angles and compensates with the magnitudes.
	FixAng FixMode = "fix_ang"
	// FixNone compensates both magnitudes and angles.
	FixNone FixMode = "not_fix"
)

// ImbalanceResponse is the manufacturer-declared EUT response to imbalanced
// three-phase voltage.
type ImbalanceResponse string

const (
	AvgThreePhaseRMS ImbalanceResponse = "AVG_3PH_RMS"
	IndividualPhases ImbalanceResponse = "INDIVIDUAL_PHASES_VOLTAGES"
	PositiveSequence ImbalanceResponse = "POSITIVE_SEQUENCE_VOLTAGES"
)

// PhaseSet is one per-phase magnitude/angle assignment for a grid
// simulator. Magnitudes are in volts, angles in degrees.
type PhaseSet struct {
	Magnitudes [3]float64
	Angles     [3]float64
}

// ImbalanceCase holds the two Table 24 assignments of one fix mode.
type ImbalanceCase struct {
	CaseA PhaseSet
	CaseB PhaseSet
}

// ComputeImbalanceCase builds the Table 24 per-phase assignments for the
// given fix mode, scaled to the EUT nominal voltage.
func ComputeImbalanceCase(eut *EutParameters, mode FixMode) (ImbalanceCase, error) {
	vn := eut.VNom
	symmetric := [3]float64{0.0, -120.0, 120.0}

	switch mode {
	case FixStd:
		return ImbalanceCase{
			CaseA: PhaseSet{Magnitudes: [3]float64{1.07 * vn, 0.91 * vn, 0.91 * vn}, Angles: symmetric},
			CaseB: PhaseSet{Magnitudes: [3]float64{0.91 * vn, 1.07 * vn, 1.07 * vn}, Angles: symmetric},
		}, nil
	case FixMag:
		return ImbalanceCase{
			CaseA: PhaseSet{
				Magnitudes: [3]float64{1.07 * vn, 0.91 * vn, 0.91 * vn},
				Angles:     [3]float64{0.0, -126.59, 126.59},
			},
			CaseB: PhaseSet{
				Magnitudes: [3]float64{0.91 * vn, 1.07 * vn, 1.07 * vn},
				Angles:     [3]float64{0.0, -114.5, 114.5},
			},
		}, nil
	case FixAng:
		return ImbalanceCase{
			CaseA: PhaseSet{Magnitudes: [3]float64{1.08 * vn, 0.91 * vn, 0.91 * vn}, Angles: symmetric},
			CaseB: PhaseSet{Magnitudes: [3]float64{0.9 * vn, 1.08 * vn, 1.08 * vn}, Angles: symmetric},
		}, nil
	case FixNone:
		return ImbalanceCase{
			CaseA: PhaseSet{
				Magnitudes: [3]float64{1.08 * vn, 0.91 * vn, 0.91 * vn},
				Angles:     [3]float64{0.0, -126.59, 126.59},
			},
			CaseB: PhaseSet{
				Magnitudes: [3]float64{0.9 * vn, 1.08 * vn, 1.08 * vn},
				Angles:     [3]float64{0.0, -114.5, 114.5},
			},
		}, nil
	default:
		return ImbalanceCase{}, configErrorf("unknown imbalance fix mode %q", mode)
	}
}

// ResponseVoltage is the single voltage figure the evaluation uses for an
// EUT with the given imbalance response. Only the three-phase average RMS
// response is implemented; per-phase and positive-sequence responses are
// declared by some manufacturers but not evaluated by this engine.
func (p PhaseSet) ResponseVoltage(resp ImbalanceResponse) (float64, error) {
	switch resp {
	case AvgThreePhaseRMS:
		return round2((p.Magnitudes[0] + p.Magnitudes[1] + p.Magnitudes[2]) / 3.0), nil
	case IndividualPhases, PositiveSequence:
		return 0, fmt.Errorf("%w: imbalance response %q", ErrUnsupported, resp)
	default:
		return 0, configErrorf("unknown imbalance response %q", resp)
	}
}

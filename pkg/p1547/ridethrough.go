package p1547

import (
	"math/rand"
	"time"
)

// Ride-through disturbance sequences. Each test is an ordered list of
// letter-coded conditions from the standard's tables; the generator derives
// absolute timestamps from the EUT startup offset and hands the simulator
// driver fixed-size arrays.

// RangeStepPolicy picks the disturbance magnitude inside each condition's
// permitted sub-range.
type RangeStepPolicy int

const (
	// Figure uses the fixed values of the standard's test-signal figures.
	Figure RangeStepPolicy = iota
	// Random draws uniformly from the permitted sub-range.
	Random
)

// Category is the abnormal-operating-performance category of the EUT.
type Category int

const (
	Category2 Category = 2
	Category3 Category = 3
)

// VRTMode selects one voltage ride-through test.
type VRTMode struct {
	HighVoltage bool
	Category    Category
}

// FRTMode selects one frequency ride-through test.
type FRTMode struct {
	HighFrequency bool
}

// Condition is one named row of a ride-through table: a numeric condition
// id (letter position, plus 10 for primed variants), a minimum duration in
// seconds and a disturbance magnitude (voltage p.u., frequency in Hz, or
// phase angle in degrees).
type Condition struct {
	Name     string
	ID       float64
	Duration float64
	Value    float64
}

// SequenceEntry is one scheduled condition with absolute timestamps.
type SequenceEntry struct {
	ID       float64
	Duration float64
	Value    float64
	Start    float64
	End      float64
}

// Sequence is a complete timestamped disturbance profile. Entries are
// contiguous: each condition starts when the previous one ends.
type Sequence []SequenceEntry

// StopTime is the end of the last condition.
func (s Sequence) StopTime() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].End
}

// Slot counts of the simulator model's parameter arrays.
const (
	VRTSlots             = 20
	FRTSlots             = 4
	PCRTSlots            = 11
	VRTClearingStepCount = 18
)

// Arrays flattens the sequence into the condition, timing and value arrays
// the simulator driver consumes, zero-padded to slots entries.
func (s Sequence) Arrays(slots int) (conditions, starts, ends, values []float64) {
	conditions = make([]float64, slots)
	starts = make([]float64, slots)
	ends = make([]float64, slots)
	values = make([]float64, slots)
	for i, e := range s {
		if i >= slots {
			break
		}
		conditions[i] = e.ID
		starts[i] = e.Start
		ends[i] = e.End
		values[i] = e.Value
	}
	return conditions, starts, ends, values
}

// VRTClearingSteps is the fixed clearing-step enable array of the voltage
// ride-through model: ones for the usable slots, zero-padded to the full
// slot count.
func VRTClearingSteps() []float64 {
	out := make([]float64, VRTSlots)
	for i := 0; i < VRTClearingStepCount; i++ {
		out[i] = 1.0
	}
	return out
}

// ROCOF is the rate-of-change-of-frequency programming for frequency
// ride-through runs.
type ROCOF struct {
	Enable bool
	Value  float64 // Hz/s
	Init   float64 // Hz
}

// DefaultROCOF is the standard frequency ride-through ramp setting.
func DefaultROCOF() ROCOF {
	return ROCOF{Enable: true, Value: 3.0, Init: 60.0}
}

// Waveform capture headers per mode: time, per-phase measurements, the
// commanded per-phase quantity of the disturbance and the trigger line.
// DAQ loggers label their capture files with these.

func VRTWaveformChannels() []string {
	return []string{"TIME",
		"AC_V_1", "AC_V_2", "AC_V_3",
		"AC_I_1", "AC_I_2", "AC_I_3",
		"AC_P_1", "AC_P_2", "AC_P_3",
		"AC_Q_1", "AC_Q_2", "AC_Q_3",
		"AC_V_CMD_1", "AC_V_CMD_2", "AC_V_CMD_3",
		"TRIGGER"}
}

func FRTWaveformChannels() []string {
	return []string{"TIME",
		"AC_V_1", "AC_V_2", "AC_V_3",
		"AC_I_1", "AC_I_2", "AC_I_3",
		"AC_FREQ_CMD_1", "AC_FREQ_CMD_2", "AC_FREQ_CMD_3",
		"TRIGGER"}
}

func PCRTWaveformChannels() []string {
	return []string{"TIME",
		"AC_V_1", "AC_V_2", "AC_V_3",
		"AC_I_1", "AC_I_2", "AC_I_3",
		"AC_PH_CMD_1", "AC_PH_CMD_2", "AC_PH_CMD_3",
		"TRIGGER"}
}

// RMSChannels is the steady log header shared by all ride-through modes.
func RMSChannels() []string {
	return []string{"TIME",
		"AC_V_1", "AC_V_2", "AC_V_3",
		"AC_I_1", "AC_I_2", "AC_I_3",
		"AC_P_1", "AC_P_2", "AC_P_3",
		"AC_Q_1", "AC_Q_2", "AC_Q_3",
		"AC_PH_CMD_1", "AC_PH_CMD_2", "AC_PH_CMD_3",
		"TRIGGER"}
}

// RideThrough builds disturbance sequences for one EUT.
type RideThrough struct {
	eut    *EutParameters
	policy RangeStepPolicy
	// Consecutive selects the standard's longer multi-scenario
	// concatenation instead of a single pass.
	Consecutive bool
	rng         *rand.Rand
}

// NewRideThrough builds a generator with the given range-step policy. The
// Random policy draws from a non-deterministically seeded source; tests can
// swap it with SetRand.
func NewRideThrough(eut *EutParameters, policy RangeStepPolicy) *RideThrough {
	return &RideThrough{
		eut:    eut,
		policy: policy,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the random source used by the Random policy.
func (r *RideThrough) SetRand(rng *rand.Rand) { r.rng = rng }

func (r *RideThrough) uniform(lo, hi float64) float64 {
	return lo + r.rng.Float64()*(hi-lo)
}

// pick returns v under the Figure policy, or a uniform draw from [lo, hi]
// under Random.
func (r *RideThrough) pick(v, lo, hi float64) float64 {
	if r.policy == Random {
		return r.uniform(lo, hi)
	}
	return v
}

// vrtConditions builds the condition table for one voltage ride-through
// mode. The residual-voltage bounds are tightened by twice the per-unit
// voltage accuracy so a drawn value cannot sit on a requirement boundary.
func (r *RideThrough) vrtConditions(mode VRTMode) (map[string]Condition, error) {
	m := r.eut.MRA.Voltage / r.eut.VNom
	c := map[string]Condition{}
	add := func(name string, id, dur, val float64) {
		c[name] = Condition{Name: name, ID: id, Duration: dur, Value: val}
	}

	switch {
	case !mode.HighVoltage && mode.Category == Category2:
		// Table 4, low voltage category II. Conditions A B C D D' E F.
		add("A", 1, 10, r.pick(0.94, 0.88+2*m, 1.0))
		add("B", 2, 0.160, r.pick(0.3-2*m, 0.0, 0.3-2*m))
		add("C", 3, 0.160, r.pick(0.45-2*m, 0.0, 0.45-2*m))
		// t1 to t4 is 3 s less the 0.32 s already spent in B and C.
		add("D", 4, 2.68, r.pick(0.65, 0.45+2*m, 0.65-2*m))
		add("D'", 14, 7.68, r.pick(0.67+2*m, 0.67, 0.88-2*m))
		add("E", 5, 2.0, r.pick(0.88, 0.65+2*m, 0.88-2*m))
		add("F", 6, 120.0, r.pick(0.94, 0.88+2*m, 1.0))
	case !mode.HighVoltage && mode.Category == Category3:
		// Table 5, low voltage category III. Conditions A B C C' D E.
		add("A", 1, 5, r.pick(0.94, 0.88+2*m, 1.0))
		add("B", 2, 1, r.pick(0.05-2*m, 0.0, 0.05-2*m))
		add("C", 3, 9, r.pick(0.5-2*m, 0.0, 0.5-2*m))
		add("C'", 13, 9, r.pick(0.52+2*m, 0.52, 0.7-2*m))
		add("D", 4, 10.0, r.pick(0.7, 0.5+2*m, 0.7-2*m))
		add("E", 5, 120.0, r.pick(0.94, 0.88+2*m, 1.0))
	case mode.HighVoltage && mode.Category == Category2:
		// Table 7, high voltage category II. Conditions A B C D E.
		add("A", 1, 10, r.pick(1.0, 1.0, 1.1-2*m))
		add("B", 2, 0.2, r.pick(1.2-2*m, 1.18, 1.2))
		add("C", 3, 0.3, r.pick(1.175, 1.155, 1.175))
		add("D", 4, 0.5, r.pick(1.15, 1.13, 1.15))
		add("E", 5, 120.0, r.pick(1.0, 1.0, 1.1-2*m))
	case mode.HighVoltage && mode.Category == Category3:
		// Table 8, high voltage category III. Conditions A B B' C.
		add("A", 1, 5, r.pick(1.05, 1.0, 1.1-2*m))
		add("B", 2, 12, r.pick(1.2-2*m, 1.18, 1.2))
		add("B'", 12, 12, r.pick(1.12, 1.12, 1.2))
		add("C", 3, 120, r.pick(1.05, 1.0, 1.1-2*m))
	default:
		return nil, configErrorf("unknown voltage ride-through category %d", mode.Category)
	}
	return c, nil
}

// VRTSequence builds the timestamped voltage ride-through profile for one
// mode. The consecutive variant chains the standard's sub-scenarios,
// repeating the baseline pass before the primed condition run.
func (r *RideThrough) VRTSequence(mode VRTMode) (Sequence, error) {
	cond, err := r.vrtConditions(mode)
	if err != nil {
		return nil, err
	}

	var order []string
	switch {
	case !mode.HighVoltage && mode.Category == Category2:
		if r.Consecutive {
			order = concat(
				[]string{"A", "B", "C", "D", "E"},
				[]string{"A", "B", "C", "D", "E", "F"},
				[]string{"A", "B", "C", "D'", "F"},
			)
		} else {
			order = []string{"A", "B", "C", "D", "E", "F"}
		}
	case !mode.HighVoltage && mode.Category == Category3:
		if r.Consecutive {
			order = concat(
				[]string{"A", "B", "C", "D"},
				[]string{"A", "B", "C", "D"},
				[]string{"A", "B", "C", "D", "E"},
				[]string{"A", "B", "C'", "D", "E"},
			)
		} else {
			order = []string{"A", "B", "C", "D", "E"}
		}
	case mode.HighVoltage && mode.Category == Category2:
		if r.Consecutive {
			order = concat(
				[]string{"A", "B", "C", "D"},
				[]string{"A", "B", "C", "D", "E"},
			)
		} else {
			order = []string{"A", "B", "C", "D", "E"}
		}
	default: // high voltage category III
		if r.Consecutive {
			order = concat(
				[]string{"A", "B"},
				[]string{"A", "B"},
				[]string{"A", "B", "C"},
				[]string{"A", "B'", "C"},
			)
		} else {
			order = []string{"A", "B", "C"}
		}
	}
	return r.schedule(cond, order), nil
}

// FRTSequence builds the 5.5.3.4 (low) or 5.5.4.4 (high) frequency
// ride-through profile: one second at nominal, the disturbance frequency
// for the given hold period, then a return to nominal.
func (r *RideThrough) FRTSequence(mode FRTMode, period, frequency float64) (Sequence, error) {
	if period <= 0 {
		return nil, configErrorf("frequency ride-through hold period must be positive, got %v", period)
	}
	if mode.HighFrequency && frequency < r.eut.FNom {
		return nil, configErrorf("high-frequency test frequency %v is below nominal %v", frequency, r.eut.FNom)
	}
	if !mode.HighFrequency && frequency > r.eut.FNom {
		return nil, configErrorf("low-frequency test frequency %v is above nominal %v", frequency, r.eut.FNom)
	}
	cond := map[string]Condition{
		"E": {Name: "E", ID: 1, Duration: 1, Value: r.eut.FNom},
		"G": {Name: "G", ID: 2, Duration: period, Value: frequency},
		"H": {Name: "H", ID: 1, Duration: 11, Value: r.eut.FNom},
	}
	return r.schedule(cond, []string{"E", "G", "H"}), nil
}

// PCRTSequence builds the Table 9 phase-change ride-through profile for
// test number 1-5: the balanced baseline, one phase-shift condition, then
// the baseline again.
func (r *RideThrough) PCRTSequence(testNum int) (Sequence, error) {
	cond := map[string]Condition{
		"A": {Name: "A", ID: 1.0, Duration: 30, Value: 0.0},
		"G": {Name: "G", ID: 1.0, Duration: 30, Value: 0.0},
		"B": {Name: "B", ID: 2.0, Duration: 0.5, Value: 60.0},
		"C": {Name: "C", ID: 3.0, Duration: 0.5, Value: 60.0},
		"D": {Name: "D", ID: 4.0, Duration: 0.5, Value: 60.0},
		"E": {Name: "E", ID: 5.0, Duration: 60.0, Value: 20.0},
		"F": {Name: "F", ID: 6.0, Duration: 60.0, Value: 20.0},
	}
	var mid string
	switch testNum {
	case 1:
		mid = "B"
	case 2:
		mid = "C"
	case 3:
		mid = "D"
	case 4:
		mid = "E"
	case 5:
		mid = "F"
	default:
		return nil, configErrorf("phase-change ride-through test number %d is out of range", testNum)
	}
	return r.schedule(cond, []string{"A", mid, "G"}), nil
}

// schedule resolves condition names to entries and assigns the running-sum
// timestamps starting at the EUT startup offset.
func (r *RideThrough) schedule(cond map[string]Condition, order []string) Sequence {
	seq := make(Sequence, 0, len(order))
	t := r.eut.StartupTime
	for _, name := range order {
		c := cond[name]
		e := SequenceEntry{ID: c.ID, Duration: c.Duration, Value: c.Value, Start: t, End: t + c.Duration}
		t = e.End
		seq = append(seq, e)
	}
	return seq
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

package p1547

import "math"

// Step builders for the normal-operation test procedures. Each builder
// returns the ordered, labeled independent-variable targets the procedure
// commands at the grid simulator, straddling every curve break-point by
// 1.5 MRA and visiting the midpoints and range extremes.

// VoltageStep is one commanded grid-voltage target.
type VoltageStep struct {
	Label   string
	Voltage float64
}

// FrequencyStep is one commanded grid-frequency target.
type FrequencyStep struct {
	Label     string
	Frequency float64
}

// PowerStep is one commanded EUT active-power target.
type PowerStep struct {
	Label string
	Power float64
}

// PriorityStep is one row of the Table 39 prioritization procedure: a
// combined voltage, frequency and available-power operating point, with the
// reactive-power figure (or power factor) of the enabled reactive function.
type PriorityStep struct {
	Voltage     float64
	Frequency   float64
	Power       float64
	Reactive    float64
	PowerFactor float64
}

// FreqWattRegion selects which half of the frequency-droop characteristic a
// Frequency-Watt procedure exercises.
type FreqWattRegion int

const (
	AboveNominal FreqWattRegion = iota
	BelowNominal
)

// StepBuilder derives procedure step sequences from one EUT parameter set
// and its characteristic curves.
type StepBuilder struct {
	eut    *EutParameters
	curves *Curves

	// CurveIndex selects the active characteristic (1-3).
	CurveIndex int
	// VRef is the Volt-Var reference voltage in per-unit of VNom.
	VRef float64
	// ReturnToNominal makes the Volt-Var return steps settle at VNom
	// instead of VRef, as the UL 1547 variant of the procedure requires.
	ReturnToNominal bool
}

func NewStepBuilder(eut *EutParameters, curves *Curves) *StepBuilder {
	return &StepBuilder{eut: eut, curves: curves, CurveIndex: 1, VRef: 1.0}
}

// VoltVarSteps builds the section 5.14.4 voltage sequence: the capacitive
// half around V3/V4, a return to the reference voltage, then the inductive
// half around V1/V2. Steps straddling a break-point that lies outside the
// EUT voltage range are dropped entirely; every remaining step is rounded
// to 2 decimals and clamped to [VLow, VHigh].
func (b *StepBuilder) VoltVarSteps() ([]VoltageStep, error) {
	c, err := b.curves.VV(b.CurveIndex)
	if err != nil {
		return nil, err
	}
	a := 1.5 * b.eut.MRA.Of(Voltage)
	settle := b.VRef * b.eut.VNom
	ret := settle
	if b.ReturnToNominal {
		ret = b.eut.VNom
	}

	labels := NewLabelSequence('G')
	var steps []VoltageStep
	add := func(v float64) {
		steps = append(steps, VoltageStep{Label: labels.Next(), Voltage: v})
	}

	// Capacitive half.
	add(c.V3 - a)
	add(c.V3 + a)
	add((c.V3 + c.V4) / 2)
	add(c.V4 - a) // dropped when V4 > VHigh
	add(c.V4 + a) // dropped when V4 > VHigh
	add(b.eut.VHigh - a)
	add(c.V4 + a) // dropped when V4 > VHigh
	add(c.V4 - a) // dropped when V4 > VHigh
	add((c.V3 + c.V4) / 2)
	add(c.V3 + a)
	add(c.V3 - a)
	add(settle)
	add(ret)

	// Inductive half.
	add(c.V2 + a)
	add(c.V2 - a)
	add((c.V1 + c.V2) / 2)
	add(c.V1 + a) // dropped when V1 < VLow
	add(c.V1 - a) // dropped when V1 < VLow
	add(b.eut.VLow + a)
	add(c.V1 - a) // dropped when V1 < VLow
	add(c.V1 + a) // dropped when V1 < VLow
	add((c.V1 + c.V2) / 2)
	add(c.V2 - a)
	add(c.V2 + a)
	add(settle)
	add(ret)

	drop := map[string]bool{}
	if c.V4 > b.eut.VHigh {
		drop["Step J"], drop["Step K"], drop["Step M"], drop["Step N"] = true, true, true, true
	}
	if c.V1 < b.eut.VLow {
		drop["Step V"], drop["Step W"], drop["Step Y"], drop["Step Z"] = true, true, true, true
	}

	out := steps[:0]
	for _, s := range steps {
		if drop[s.Label] {
			continue
		}
		s.Voltage = b.clampVoltage(round2(s.Voltage))
		out = append(out, s)
	}
	return out, nil
}

// VoltWattSteps builds the section 5.14.9 voltage sequence: climb from the
// EUT lower limit across V1 and V2 to the upper limit, then descend back.
// The V2-straddle steps are dropped when V2 exceeds the EUT range.
func (b *StepBuilder) VoltWattSteps() ([]VoltageStep, error) {
	c, err := b.curves.VW(b.CurveIndex)
	if err != nil {
		return nil, err
	}
	a := 1.5 * b.eut.MRA.Of(Voltage)

	labels := NewLabelSequence('G')
	var steps []VoltageStep
	add := func(v float64) {
		steps = append(steps, VoltageStep{Label: labels.Next(), Voltage: v})
	}

	add(b.eut.VLow + a)
	add(c.V1 - a)
	add(c.V1 + a)
	add((c.V2 + c.V1) / 2)
	add(c.V2 - a) // dropped when V2 > VHigh
	add(c.V2 + a) // dropped when V2 > VHigh
	add(b.eut.VHigh - a) // dropped when V2 > VHigh
	add(c.V2 + a) // dropped when V2 > VHigh
	add(c.V2 - a) // dropped when V2 > VHigh
	add((c.V1 + c.V2) / 2)
	add(c.V1 + a)
	add(c.V1 - a)
	add(b.eut.VLow + a)

	drop := map[string]bool{}
	if c.V2 > b.eut.VHigh {
		drop["Step K"], drop["Step L"], drop["Step M"], drop["Step N"], drop["Step O"] = true, true, true, true, true
	}

	out := steps[:0]
	for _, s := range steps {
		if drop[s.Label] {
			continue
		}
		s.Voltage = b.clampVoltage(round2(s.Voltage))
		out = append(out, s)
	}
	return out, nil
}

// WattVarSteps builds the section 5.14.10 power sequence: climb from Pmin
// across each break-point to Prated, then mirror back down. The straddle
// values nearest P1 and P3 are held inside the EUT operating range.
func (b *StepBuilder) WattVarSteps() ([]PowerStep, error) {
	c, err := b.curves.WV(b.CurveIndex)
	if err != nil {
		return nil, err
	}
	a := 1.5 * b.eut.MRA.Of(ActivePower)

	lowest := c.P1 - a
	if lowest < b.eut.PMin {
		lowest = b.eut.PMin
	}
	highest := c.P3 + a
	if highest > b.eut.PRated {
		highest = b.eut.PRated
	}

	labels := NewLabelSequence('G')
	var steps []PowerStep
	add := func(p float64) {
		steps = append(steps, PowerStep{Label: labels.Next(), Power: p})
	}

	add(b.eut.PMin)
	add(lowest)
	add(c.P1 + a)
	add((c.P1 + c.P2) / 2)
	add(c.P2 - a)
	add(c.P2 + a)
	add((c.P2 + c.P3) / 2)
	add(c.P3 - a)
	add(highest)
	add(b.eut.PRated)

	// Return to Pmin.
	add(highest)
	add(c.P3 - a)
	add((c.P2 + c.P3) / 2)
	add(c.P2 + a)
	add(c.P2 - a)
	add((c.P1 + c.P2) / 2)
	add(c.P1 + a)
	add(lowest)
	add(b.eut.PMin)

	return steps, nil
}

// FreqWattSteps builds the section 5.15.2.2 (above nominal) or 5.15.3.2
// (below nominal) frequency sequence around the droop deadband edge and
// the matching EUT frequency limit. Values are rounded to 3 decimals and
// clamped to the EUT frequency range.
func (b *StepBuilder) FreqWattSteps(region FreqWattRegion) ([]FrequencyStep, error) {
	c, err := b.curves.FW(b.CurveIndex)
	if err != nil {
		return nil, err
	}
	a := 1.5 * b.eut.MRA.Of(Frequency)
	fNom := b.eut.FNom

	labels := NewLabelSequence('G')
	var steps []FrequencyStep
	add := func(f float64) {
		steps = append(steps, FrequencyStep{Label: labels.Next(), Frequency: f})
	}

	switch region {
	case AboveNominal:
		add(fNom)
		add((fNom + c.DBF) - a)
		add((fNom + c.DBF) + a)
		add(c.FSmall + fNom + c.DBF)
		add(b.eut.FMax - a)
		add(b.eut.FMax - c.FSmall)
		add((fNom + c.DBF) + a)
		add((fNom + c.DBF) - a)
		add(fNom)
		for i := range steps {
			f := round3(steps[i].Frequency)
			if f > b.eut.FMax {
				f = b.eut.FMax
			}
			steps[i].Frequency = f
		}
	case BelowNominal:
		add((fNom - c.DBF) + a)
		add((fNom - c.DBF) - a)
		add(fNom - c.FSmall - c.DBF)
		add(b.eut.FMin + a)
		add(b.eut.FMin + c.FSmall)
		add((fNom - c.DBF) - a)
		add((fNom - c.DBF) + a)
		add(fNom)
		for i := range steps {
			f := round3(steps[i].Frequency)
			if f < b.eut.FMin {
				f = b.eut.FMin
			}
			steps[i].Frequency = f
		}
	default:
		return nil, configErrorf("unknown frequency-watt region %d", region)
	}
	return steps, nil
}

// PrioritySteps builds the Table 39 voltage and frequency regulation
// priority rows for the enabled reactive-power function. The Reactive and
// PowerFactor fields carry the table's expected figure for that function:
// absorption is negative under the sign convention used here.
func (b *StepBuilder) PrioritySteps(fn Function) ([]PriorityStep, error) {
	vNom := b.eut.VNom
	pRated := b.eut.PRated
	qRated := b.eut.VarRated

	steps := []PriorityStep{
		{Voltage: 1.00 * vNom, Frequency: 60.00, Power: 0.5 * pRated},
		{Voltage: 1.09 * vNom, Frequency: 60.00, Power: 0.4 * pRated},
		{Voltage: 1.09 * vNom, Frequency: 60.33, Power: 0.3 * pRated},
		{Voltage: 1.09 * vNom, Frequency: 60.00, Power: 0.4 * pRated},
		{Voltage: 1.09 * vNom, Frequency: 59.36, Power: 0.4 * pRated},
		{Voltage: 1.00 * vNom, Frequency: 59.36, Power: 0.6 * pRated},
		{Voltage: 1.00 * vNom, Frequency: 60.00, Power: 0.5 * pRated},
		{Voltage: 1.00 * vNom, Frequency: 59.36, Power: 0.7 * pRated},
	}

	switch fn {
	case VV:
		// Volt-Var absorbs at the raised-voltage rows 2-5.
		for i := range steps {
			if i >= 1 && i <= 4 {
				steps[i].Reactive = -0.44 * qRated
			}
		}
	case CPF:
		for i := range steps {
			steps[i].PowerFactor = 0.9
		}
	case CRP:
		for i := range steps {
			steps[i].Reactive = qRated
		}
	case WV:
		// Watt-Var absorbs once power exceeds half rating, rows 6 and 8.
		steps[5].Reactive = -0.09 * qRated
		steps[7].Reactive = -0.18 * qRated
	default:
		return nil, configErrorf("prioritization has no expected values for function %q", fn)
	}
	return steps, nil
}

func (b *StepBuilder) clampVoltage(v float64) float64 {
	return math.Min(math.Max(v, b.eut.VLow), b.eut.VHigh)
}

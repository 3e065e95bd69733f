package p1547

import "math"

// TargetCalc evaluates the expected steady-state response of each control
// function and the pass/fail window around it. The window re-evaluates the
// characteristic at the measured x perturbed by 1.5 times its minimum
// required accuracy, then widens the result by 1.5 times the y accuracy.
type TargetCalc struct {
	eut    *EutParameters
	curves *Curves

	// CurveIndex selects the active characteristic (1-3).
	CurveIndex int
	// Power is the commanded active-power fraction of Prated (0-1].
	Power float64
	// MaxPowerPct is the active-power limit in percent of Prated.
	MaxPowerPct float64
}

// Window is a target value with its acceptance band.
type Window struct {
	Target float64
	Min    float64
	Max    float64
}

func (w Window) Contains(y float64) bool { return y >= w.Min && y <= w.Max }

func NewTargetCalc(eut *EutParameters, curves *Curves) *TargetCalc {
	return &TargetCalc{eut: eut, curves: curves, CurveIndex: 1, Power: 1.0, MaxPowerPct: 100.0}
}

// VVTarget is the Volt-Var reactive-power target at grid voltage v,
// scaled by the commanded power fraction.
func (t *TargetCalc) VVTarget(v float64) (float64, error) {
	c, err := t.curves.VV(t.CurveIndex)
	if err != nil {
		return 0, err
	}
	xs := []float64{c.V1, c.V2, c.V3, c.V4}
	ys := []float64{c.Q1, c.Q2, c.Q3, c.Q4}
	return interp(v, xs, ys) * t.Power, nil
}

// VWTarget is the Volt-Watt active-power target at grid voltage v, never
// below the EUT minimum power.
func (t *TargetCalc) VWTarget(v float64) (float64, error) {
	c, err := t.curves.VW(t.CurveIndex)
	if err != nil {
		return 0, err
	}
	p := interp(v, []float64{c.V1, c.V2}, []float64{c.P1, c.P2}) * t.Power
	if p < t.eut.PMin {
		p = t.eut.PMin
	}
	return p, nil
}

// WVTarget is the Watt-Var reactive-power target at measured active power p.
// The input power is clamped to the EUT operating range first.
func (t *TargetCalc) WVTarget(p float64) (float64, error) {
	c, err := t.curves.WV(t.CurveIndex)
	if err != nil {
		return 0, err
	}
	if p < t.eut.PMin {
		p = t.eut.PMin
	} else if p > t.eut.PRated {
		p = t.eut.PRated
	}
	xs := []float64{c.P1, c.P2, c.P3}
	ys := []float64{c.Q1, c.Q2, c.Q3}
	return interp(p, xs, ys) * t.Power, nil
}

// FWTarget is the frequency-droop active-power target at grid frequency f.
// Inside the deadband the target is the pre-disturbance power, capped by the
// active-power limit; outside, power folds back along the kof slope, bounded
// by Pmin under-frequency generation limits and the commanded power above.
func (t *TargetCalc) FWTarget(f float64) (float64, error) {
	c, err := t.curves.FW(t.CurveIndex)
	if err != nil {
		return 0, err
	}
	pDB := t.Power
	if t.Power*100 >= t.MaxPowerPct {
		pDB = t.MaxPowerPct / 100
	}
	fDOB := t.eut.FNom + c.DBF
	fDUB := t.eut.FNom - c.DBF
	switch {
	case f >= fDUB && f <= fDOB:
		return pDB * t.eut.PRated, nil
	case f > fDOB:
		p := (pDB - (f-fDOB)/(t.eut.FNom*c.KOF)) * t.eut.PRated
		if p < t.eut.PMin {
			p = t.eut.PMin
		}
		return p, nil
	default:
		p := (pDB + (fDUB-f)/(t.eut.FNom*c.KOF)) * t.eut.PRated
		if max := t.Power * t.eut.PRated; p > max {
			p = max
		}
		return p, nil
	}
}

// CPFTarget is the reactive power needed to hold power factor pf at active
// power p. Positive (over-excited) power factors absorb vars under the
// generator sign convention used here.
func (t *TargetCalc) CPFTarget(p, pf float64) float64 {
	sign := 1.0
	if pf > 0 {
		sign = -1.0
	}
	return math.Sqrt(p*p*(1/(pf*pf)-1)) * sign
}

// LAPTarget is the active-power target under a limit of limitPct percent of
// rated power.
func (t *TargetCalc) LAPTarget(limitPct float64) float64 {
	return limitPct / 100 * t.eut.PRated
}

// PRITarget is the prioritization active-power target: the stricter of the
// Volt-Watt and Frequency-Watt responses at the measured operating point.
func (t *TargetCalc) PRITarget(v, f float64) (float64, error) {
	pVW, err := t.VWTarget(v)
	if err != nil {
		return 0, err
	}
	pFW, err := t.FWTarget(f)
	if err != nil {
		return 0, err
	}
	return math.Min(pVW, pFW), nil
}

// curveWindow perturbs one x quantity by 1.5 MRA in both directions, takes
// the extreme targets, and widens them by 1.5 MRA of the y quantity.
func (t *TargetCalc) curveWindow(x float64, xq, yq Quantity, law func(float64) (float64, error)) (Window, error) {
	target, err := law(x)
	if err != nil {
		return Window{}, err
	}
	a := 1.5 * t.eut.MRA.Of(xq)
	lo, err := law(x + a)
	if err != nil {
		return Window{}, err
	}
	hi, err := law(x - a)
	if err != nil {
		return Window{}, err
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	b := 1.5 * t.eut.MRA.Of(yq)
	return Window{Target: target, Min: lo - b, Max: hi + b}, nil
}

// VVWindow is the Volt-Var acceptance band at grid voltage v.
func (t *TargetCalc) VVWindow(v float64) (Window, error) {
	return t.curveWindow(v, Voltage, ReactivePower, t.VVTarget)
}

// VWWindow is the Volt-Watt acceptance band at grid voltage v.
func (t *TargetCalc) VWWindow(v float64) (Window, error) {
	return t.curveWindow(v, Voltage, ActivePower, t.VWTarget)
}

// WVWindow is the Watt-Var acceptance band at measured active power p.
func (t *TargetCalc) WVWindow(p float64) (Window, error) {
	return t.curveWindow(p, ActivePower, ReactivePower, t.WVTarget)
}

// FWWindow is the Frequency-Watt acceptance band at grid frequency f.
func (t *TargetCalc) FWWindow(f float64) (Window, error) {
	return t.curveWindow(f, Frequency, ActivePower, t.FWTarget)
}

// CPFWindow is the constant power factor acceptance band at measured power p.
func (t *TargetCalc) CPFWindow(p, pf float64) Window {
	target := t.CPFTarget(p, pf)
	a := 1.5 * t.eut.MRA.Of(ActivePower)
	lo := t.CPFTarget(p-a, pf)
	hi := t.CPFTarget(p+a, pf)
	if lo > hi {
		lo, hi = hi, lo
	}
	b := 1.5 * t.eut.MRA.Of(ReactivePower)
	return Window{Target: target, Min: lo - b, Max: hi + b}
}

// CRPWindow is the constant reactive power acceptance band: the setpoint
// plus or minus 1.5 MRA, with no x-axis perturbation.
func (t *TargetCalc) CRPWindow(q float64) Window {
	b := 1.5 * t.eut.MRA.Of(ReactivePower)
	return Window{Target: q, Min: q - b, Max: q + b}
}

// LAPWindow is the limit-active-power acceptance band at limitPct percent.
func (t *TargetCalc) LAPWindow(limitPct float64) Window {
	target := t.LAPTarget(limitPct)
	b := 1.5 * t.eut.MRA.Of(ActivePower)
	return Window{Target: target, Min: target - b, Max: target + b}
}

// PRIWindow is the prioritization acceptance band: the elementwise stricter
// of the Volt-Watt and Frequency-Watt windows.
func (t *TargetCalc) PRIWindow(v, f float64) (Window, error) {
	wVW, err := t.VWWindow(v)
	if err != nil {
		return Window{}, err
	}
	wFW, err := t.FWWindow(f)
	if err != nil {
		return Window{}, err
	}
	return Window{
		Target: math.Min(wVW.Target, wFW.Target),
		Min:    math.Min(wVW.Min, wFW.Min),
		Max:    math.Min(wVW.Max, wFW.Max),
	}, nil
}

package p1547

import "math"

// Control function parameter curves. Each characteristic is a named,
// numbered parameter set from IEEE 1547.1-2020; exactly one is active at a
// time, selected by index (1-3).

// VVCurve holds a four-point voltage/reactive-power characteristic
// (Tables 25-27) plus its open-loop response time.
type VVCurve struct {
	V1, V2, V3, V4 float64
	Q1, Q2, Q3, Q4 float64
	TR             float64
}

func (c VVCurve) validate() error {
	if !(c.V1 <= c.V2 && c.V2 <= c.V3 && c.V3 <= c.V4) {
		return configErrorf("VV curve voltage break-points are not ascending: %v %v %v %v", c.V1, c.V2, c.V3, c.V4)
	}
	return nil
}

// VWCurve holds a two-point voltage/active-power characteristic
// (Tables 31-33).
type VWCurve struct {
	V1, V2 float64
	P1, P2 float64
	TR     float64
}

func (c VWCurve) validate() error {
	if c.V1 > c.V2 {
		return configErrorf("VW curve voltage break-points are not ascending: %v %v", c.V1, c.V2)
	}
	return nil
}

// WVCurve holds a three-point active-power/reactive-power characteristic
// (Tables 28-30). Absorption characteristics run the power break-points in
// descending order; the interpolator accepts either direction.
type WVCurve struct {
	P1, P2, P3 float64
	Q1, Q2, Q3 float64
	TR         float64
}

func (c WVCurve) validate() error {
	ascending := c.P1 <= c.P2 && c.P2 <= c.P3
	descending := c.P1 >= c.P2 && c.P2 >= c.P3
	if !ascending && !descending {
		return configErrorf("WV curve power break-points are not monotonic: %v %v %v", c.P1, c.P2, c.P3)
	}
	return nil
}

// FWCurve holds the frequency-droop settings (Tables 34-35): deadband dbf,
// slope constant kof, the small-signal response time, and the small
// frequency offset used by the step procedures.
type FWCurve struct {
	DBF    float64
	KOF    float64
	TR     float64
	FSmall float64
}

func (c FWCurve) validate() error {
	if c.DBF < 0 {
		return configErrorf("FW curve deadband must not be negative: %v", c.DBF)
	}
	if c.KOF <= 0 {
		return configErrorf("FW curve kof must be positive: %v", c.KOF)
	}
	return nil
}

// CurveOptions adjusts the parts of the default characteristics the test
// runner may override.
type CurveOptions struct {
	// PSmall is the small-signal power fraction used to derive FSmall.
	// Zero means the default 0.05.
	PSmall float64
	// FWResponseTimes overrides the per-characteristic FW open-loop
	// response times; zero entries keep the defaults (5, 0.2, 10 s).
	FWResponseTimes [3]float64
}

// Curves is the set of standard characteristics for one EUT, derived from
// its ratings. Curves are validated at construction and read-only after.
type Curves struct {
	vv [3]VVCurve
	vw [3]VWCurve
	wv [3]WVCurve
	fw [3]FWCurve
}

// DefaultCurves builds characteristics 1-3 of every function from the
// Category B columns of IEEE 1547.1-2020 Tables 25-35.
func DefaultCurves(eut *EutParameters, opts CurveOptions) (*Curves, error) {
	pSmall := opts.PSmall
	if pSmall == 0 {
		pSmall = 0.05
	}

	c := &Curves{}

	// Volt-Var, Tables 25-27.
	c.vv[0] = VVCurve{
		V1: round2(0.92 * eut.VNom), V2: round2(0.98 * eut.VNom),
		V3: round2(1.02 * eut.VNom), V4: round2(1.08 * eut.VNom),
		Q1: round2(eut.SRated * 0.44), Q2: 0, Q3: 0, Q4: round2(eut.SRated * -0.44),
		TR: 5.0,
	}
	c.vv[1] = VVCurve{
		V1: round2(0.88 * eut.VNom), V2: round2(1.04 * eut.VNom),
		V3: round2(1.07 * eut.VNom), V4: round2(1.10 * eut.VNom),
		Q1: round2(eut.VarRated), Q2: round2(eut.VarRated * 0.5),
		Q3: round2(eut.VarRated * 0.5), Q4: round2(eut.VarRated * -1.0),
		TR: 1.0,
	}
	c.vv[2] = VVCurve{
		V1: round2(0.90 * eut.VNom), V2: round2(0.93 * eut.VNom),
		V3: round2(0.96 * eut.VNom), V4: round2(1.10 * eut.VNom),
		Q1: round2(eut.VarRated), Q2: round2(eut.VarRated * -0.5),
		Q3: round2(eut.VarRated * -0.5), Q4: round2(eut.VarRated * -1.0),
		TR: 90.0,
	}

	// Volt-Watt, Tables 31-33. P2 is the lesser of 0.2 Prated and Pmin,
	// replaced by the absorption limits when the EUT can absorb.
	p2 := math.Trunc(math.Min(0.2*eut.PRated, eut.PMin))
	v2 := round2(1.10 * eut.VNom)
	c.vw[0] = VWCurve{V1: round2(1.06 * eut.VNom), V2: v2, P1: round2(eut.PRated), P2: p2, TR: 10.0}
	c.vw[1] = VWCurve{V1: round2(1.05 * eut.VNom), V2: v2, P1: round2(eut.PRated), P2: p2, TR: 90.0}
	c.vw[2] = VWCurve{V1: round2(1.09 * eut.VNom), V2: v2, P1: round2(eut.PRated), P2: p2, TR: 0.5}
	if eut.Absorb {
		c.vw[0].P2 = 0
		c.vw[1].P2 = eut.PRatedPrime
		c.vw[2].P2 = eut.PRatedPrime
	}

	// Watt-Var, Tables 28-30. P1 is the greater of 0.2 Prated and Pmin.
	p1 := math.Max(0.2*eut.PRated, eut.PMin)
	if eut.Absorb {
		c.wv[0] = WVCurve{
			P1: round2(p1), P2: round2(0.5 * eut.PRatedPrime), P3: round2(eut.PRatedPrime),
			Q1: 0, Q2: 0, Q3: round2(eut.SRated * 0.44),
			TR: 10.0,
		}
		c.wv[1] = WVCurve{
			P1: round2(-p1), P2: round2(0.5 * eut.PRatedPrime), P3: round2(eut.PRatedPrime),
			Q1: round2(eut.SRated * 0.22), Q2: round2(eut.SRated * 0.22), Q3: round2(eut.SRated * 0.44),
			TR: 10.0,
		}
		c.wv[2] = WVCurve{
			P1: round2(-p1), P2: round2(0.5 * eut.PRatedPrime), P3: round2(eut.PRatedPrime),
			Q1: 0, Q2: round2(eut.SRated * 0.44), Q3: round2(eut.SRated * 0.44),
			TR: 10.0,
		}
	} else {
		c.wv[0] = WVCurve{
			P1: round2(p1), P2: round2(0.5 * eut.PRated), P3: round2(eut.PRated),
			Q1: 0, Q2: 0, Q3: round2(eut.SRated * -0.44),
			TR: 10.0,
		}
		c.wv[1] = WVCurve{
			P1: round2(p1), P2: round2(0.5 * eut.PRated), P3: round2(eut.PRated),
			Q1: round2(eut.SRated * -0.22), Q2: round2(eut.SRated * -0.22), Q3: round2(eut.SRated * -0.44),
			TR: 10.0,
		}
		c.wv[2] = WVCurve{
			P1: round2(p1), P2: round2(0.5 * eut.PRated), P3: round2(eut.PRated),
			Q1: 0, Q2: round2(eut.SRated * -0.44), Q3: round2(eut.SRated * -0.44),
			TR: 10.0,
		}
	}

	// Frequency-Watt, Tables 34-35. The small frequency offset follows the
	// category III kOF of the matching characteristic.
	tr := [3]float64{5.0, 0.2, 10.0}
	for i, override := range opts.FWResponseTimes {
		if override != 0 {
			tr[i] = override
		}
	}
	c.fw[0] = FWCurve{DBF: 0.036, KOF: 0.05, TR: tr[0], FSmall: pSmall * eut.FNom * 0.05}
	c.fw[1] = FWCurve{DBF: 0.017, KOF: 0.03, TR: tr[1], FSmall: pSmall * eut.FNom * 0.02}
	c.fw[2] = FWCurve{DBF: 1.0, KOF: 0.05, TR: tr[2], FSmall: pSmall * eut.FNom * 0.02}

	for i := range c.vv {
		if err := c.vv[i].validate(); err != nil {
			return nil, err
		}
		if err := c.vw[i].validate(); err != nil {
			return nil, err
		}
		if err := c.wv[i].validate(); err != nil {
			return nil, err
		}
		if err := c.fw[i].validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// VV returns Volt-Var characteristic index (1-3).
func (c *Curves) VV(index int) (VVCurve, error) {
	if index < 1 || index > len(c.vv) {
		return VVCurve{}, configErrorf("VV curve %d does not exist", index)
	}
	return c.vv[index-1], nil
}

// VW returns Volt-Watt characteristic index (1-3).
func (c *Curves) VW(index int) (VWCurve, error) {
	if index < 1 || index > len(c.vw) {
		return VWCurve{}, configErrorf("VW curve %d does not exist", index)
	}
	return c.vw[index-1], nil
}

// WV returns Watt-Var characteristic index (1-3).
func (c *Curves) WV(index int) (WVCurve, error) {
	if index < 1 || index > len(c.wv) {
		return WVCurve{}, configErrorf("WV curve %d does not exist", index)
	}
	return c.wv[index-1], nil
}

// FW returns Frequency-Watt characteristic index (1-3).
func (c *Curves) FW(index int) (FWCurve, error) {
	if index < 1 || index > len(c.fw) {
		return FWCurve{}, configErrorf("FW curve %d does not exist", index)
	}
	return c.fw[index-1], nil
}

// interp is piecewise-linear interpolation with end clamping, accepting
// ascending or descending break-points.
func interp(x float64, xs, ys []float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0
	}
	if len(xs) > 1 && xs[0] > xs[len(xs)-1] {
		rx := make([]float64, len(xs))
		ry := make([]float64, len(ys))
		for i := range xs {
			rx[len(xs)-1-i] = xs[i]
			ry[len(ys)-1-i] = ys[i]
		}
		xs, ys = rx, ry
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			if xs[i] == xs[i-1] {
				return ys[i]
			}
			frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

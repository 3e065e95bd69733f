package p1547

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCalc(t *testing.T) (*EutParameters, *TargetCalc) {
	t.Helper()
	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(t, err)
	curves, err := DefaultCurves(eut, CurveOptions{})
	assert.NoError(t, err)
	return eut, NewTargetCalc(eut, curves)
}

func TestDefaultVVCurveOne(t *testing.T) {

	assert := assert.New(t)

	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(err)
	curves, err := DefaultCurves(eut, CurveOptions{})
	assert.NoError(err)

	c, err := curves.VV(1)
	assert.NoError(err)
	assert.Equal(110.4, c.V1)
	assert.Equal(117.6, c.V2)
	assert.Equal(122.4, c.V3)
	assert.Equal(129.6, c.V4)
	assert.Equal(4400.0, c.Q1)
	assert.Equal(0.0, c.Q2)
	assert.Equal(0.0, c.Q3)
	assert.Equal(-4400.0, c.Q4)
	assert.Equal(5.0, c.TR)
}

func TestCurvesRejectBadIndex(t *testing.T) {

	assert := assert.New(t)

	eut, _ := NewEutParameters(testEutConfig())
	curves, _ := DefaultCurves(eut, CurveOptions{})

	_, err := curves.VV(0)
	assert.ErrorIs(err, ErrConfiguration)
	_, err = curves.FW(4)
	assert.ErrorIs(err, ErrConfiguration)
}

func TestVVTargetAtBreakpoints(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)

	q, err := calc.VVTarget(117.6)
	assert.NoError(err)
	assert.InDelta(0.0, q, 1e-9)

	q, err = calc.VVTarget(110.4)
	assert.NoError(err)
	assert.InDelta(4400.0, q, 1e-9)

	// Clamped beyond the outer break-points.
	q, err = calc.VVTarget(100.0)
	assert.NoError(err)
	assert.InDelta(4400.0, q, 1e-9)
	q, err = calc.VVTarget(140.0)
	assert.NoError(err)
	assert.InDelta(-4400.0, q, 1e-9)
}

func TestVVTargetContinuityAtBreakpoints(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)
	c, _ := calc.curves.VV(1)

	eps := 1e-6
	for _, v := range []float64{c.V1, c.V2, c.V3, c.V4} {
		below, err := calc.VVTarget(v - eps)
		assert.NoError(err)
		above, err := calc.VVTarget(v + eps)
		assert.NoError(err)
		assert.InDelta(below, above, 1.0, "discontinuity at %v", v)
	}
}

func TestVVTargetScaledByPowerLevel(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)
	calc.Power = 0.5

	q, err := calc.VVTarget(110.4)
	assert.NoError(err)
	assert.InDelta(2200.0, q, 1e-9)
}

func TestVWTargetClampsToPMin(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)

	// Far above V2 the interpolation floor is P2, still at or above PMin.
	p, err := calc.VWTarget(200.0)
	assert.NoError(err)
	assert.GreaterOrEqual(p, eut.PMin)
	assert.LessOrEqual(p, eut.PRated)

	p, err = calc.VWTarget(100.0)
	assert.NoError(err)
	assert.InDelta(eut.PRated, p, 1e-9)
}

func TestFWTargetDroop(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)

	// Inside the deadband the target holds the commanded power.
	p, err := calc.FWTarget(60.0)
	assert.NoError(err)
	assert.InDelta(eut.PRated, p, 1e-9)

	// Above the deadband the droop folds power back along kof.
	p, err = calc.FWTarget(60.5)
	assert.NoError(err)
	want := eut.PRated * (1 - (0.5-0.036)/(60.0*0.05))
	assert.InDelta(want, p, 1e-6)

	// Severe over-frequency clamps at PMin.
	p, err = calc.FWTarget(64.0)
	assert.NoError(err)
	assert.InDelta(eut.PMin, p, 1e-9)

	// Under-frequency headroom is capped by the available power.
	p, err = calc.FWTarget(56.0)
	assert.NoError(err)
	assert.InDelta(calc.Power*eut.PRated, p, 1e-9)
}

func TestFWTargetRespectsPowerLimit(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)
	calc.MaxPowerPct = 50.0

	p, err := calc.FWTarget(60.0)
	assert.NoError(err)
	assert.InDelta(0.5*eut.PRated, p, 1e-9)
}

func TestFWTargetAlwaysInOperatingRange(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)
	for f := 56.0; f <= 64.0; f += 0.05 {
		p, err := calc.FWTarget(f)
		assert.NoError(err)
		assert.GreaterOrEqual(p, eut.PMin)
		assert.LessOrEqual(p, eut.PRated)
	}
}

func TestCPFTargetSignConvention(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)

	q := calc.CPFTarget(9000.0, 0.9)
	want := math.Sqrt(9000.0 * 9000.0 * (1/(0.9*0.9) - 1))
	assert.InDelta(-want, q, 1e-6, "positive PF absorbs")

	q = calc.CPFTarget(9000.0, -0.9)
	assert.InDelta(want, q, 1e-6, "negative PF injects")
}

func TestVVWindowWidensByMRA(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)

	w, err := calc.VVWindow(117.6)
	assert.NoError(err)
	assert.InDelta(0.0, w.Target, 1e-9)

	// The envelope shifts the voltage by 1.5 MRA(V) and widens by
	// 1.5 MRA(Q) on both sides.
	aV := 1.5 * eut.MRA.Voltage
	bQ := 1.5 * eut.MRA.ReactivePower
	lo, _ := calc.VVTarget(117.6 + aV)
	hi, _ := calc.VVTarget(117.6 - aV)
	assert.InDelta(lo-bQ, w.Min, 1e-6)
	assert.InDelta(hi+bQ, w.Max, 1e-6)
	assert.True(w.Contains(w.Target))
	assert.True(w.Min < w.Max)
}

func TestCRPWindowIsSetpointPlusMinusMRA(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)

	w := calc.CRPWindow(4400.0)
	assert.Equal(4400.0, w.Target)
	assert.InDelta(4400.0-750.0, w.Min, 1e-9)
	assert.InDelta(4400.0+750.0, w.Max, 1e-9)
}

func TestLAPWindow(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)

	w := calc.LAPWindow(50.0)
	assert.InDelta(0.5*eut.PRated, w.Target, 1e-9)
	assert.InDelta(w.Target-1.5*eut.MRA.ActivePower, w.Min, 1e-9)
	assert.InDelta(w.Target+1.5*eut.MRA.ActivePower, w.Max, 1e-9)
}

func TestPRITargetTakesLowerOfVWAndFW(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)

	// Nominal voltage, depressed frequency: VW allows rated power, the
	// under-frequency droop allows more, so VW binds at rated.
	pVW, err := calc.VWTarget(120.0)
	assert.NoError(err)
	pFW, err := calc.FWTarget(60.0)
	assert.NoError(err)
	p, err := calc.PRITarget(120.0, 60.0)
	assert.NoError(err)
	assert.InDelta(math.Min(pVW, pFW), p, 1e-9)

	// Raised voltage pulls the VW target below the droop target.
	pVW, _ = calc.VWTarget(130.8)
	pFW, _ = calc.FWTarget(60.0)
	assert.Less(pVW, pFW)
	p, err = calc.PRITarget(130.8, 60.0)
	assert.NoError(err)
	assert.InDelta(pVW, p, 1e-9)
}

func TestPRIWindowIsElementwiseLower(t *testing.T) {

	assert := assert.New(t)

	_, calc := testCalc(t)

	wVW, err := calc.VWWindow(130.8)
	assert.NoError(err)
	wFW, err := calc.FWWindow(60.0)
	assert.NoError(err)
	w, err := calc.PRIWindow(130.8, 60.0)
	assert.NoError(err)
	assert.InDelta(math.Min(wVW.Target, wFW.Target), w.Target, 1e-9)
	assert.InDelta(math.Min(wVW.Min, wFW.Min), w.Min, 1e-9)
	assert.InDelta(math.Min(wVW.Max, wFW.Max), w.Max, 1e-9)
}

func TestWVTargetClampsInputPower(t *testing.T) {

	assert := assert.New(t)

	eut, calc := testCalc(t)
	c, _ := calc.curves.WV(1)

	qLow, err := calc.WVTarget(eut.PMin - 1000)
	assert.NoError(err)
	qAtMin, err := calc.WVTarget(eut.PMin)
	assert.NoError(err)
	assert.InDelta(qAtMin, qLow, 1e-9)

	qHigh, err := calc.WVTarget(eut.PRated + 1000)
	assert.NoError(err)
	assert.InDelta(c.Q3, qHigh, 1e-9)
}

package p1547

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testStepBuilder(t *testing.T) (*EutParameters, *StepBuilder) {
	t.Helper()
	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(t, err)
	curves, err := DefaultCurves(eut, CurveOptions{})
	assert.NoError(t, err)
	return eut, NewStepBuilder(eut, curves)
}

func TestVoltVarStepsFullSequence(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.VoltVarSteps()
	assert.NoError(err)
	assert.Len(steps, 26, "curve 1 lies inside the EUT range, nothing dropped")

	assert.Equal("Step G", steps[0].Label)
	assert.Equal("Step Z", steps[19].Label)
	assert.Equal("Step AA", steps[20].Label)
	assert.Equal("Step FF", steps[25].Label)

	// Capacitive straddles around V3 and V4 with a = 1.5 MRA(V) = 1.8 V.
	assert.InDelta(120.6, steps[0].Voltage, 1e-9)
	assert.InDelta(124.2, steps[1].Voltage, 1e-9)
	assert.InDelta(126.0, steps[2].Voltage, 1e-9)
	assert.InDelta(127.8, steps[3].Voltage, 1e-9)
	assert.InDelta(131.4, steps[4].Voltage, 1e-9)
	assert.InDelta(130.2, steps[5].Voltage, 1e-9)

	// Settle and return steps sit at the reference voltage.
	assert.InDelta(eut.VNom, steps[11].Voltage, 1e-9)
	assert.InDelta(eut.VNom, steps[12].Voltage, 1e-9)

	for _, s := range steps {
		assert.GreaterOrEqual(s.Voltage, eut.VLow, "%s below range", s.Label)
		assert.LessOrEqual(s.Voltage, eut.VHigh, "%s above range", s.Label)
	}
}

func TestVoltVarStepsDropOutOfRangeStraddles(t *testing.T) {

	assert := assert.New(t)

	cfg := testEutConfig()
	cfg.VHigh = 128.0 // below curve 1 V4 = 129.6
	cfg.VLow = 111.0  // above curve 1 V1 = 110.4
	eut, err := NewEutParameters(cfg)
	assert.NoError(err)
	curves, err := DefaultCurves(eut, CurveOptions{})
	assert.NoError(err)
	b := NewStepBuilder(eut, curves)

	steps, err := b.VoltVarSteps()
	assert.NoError(err)
	assert.Len(steps, 18, "four V4 straddles and four V1 straddles dropped")

	for _, s := range steps {
		assert.NotContains([]string{"Step J", "Step K", "Step M", "Step N"}, s.Label)
		assert.NotContains([]string{"Step V", "Step W", "Step Y", "Step Z"}, s.Label)
	}
}

func TestVoltVarStepsReturnToNominal(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)
	b.VRef = 1.05
	b.ReturnToNominal = true

	steps, err := b.VoltVarSteps()
	assert.NoError(err)
	assert.InDelta(1.05*eut.VNom, steps[11].Voltage, 1e-9)
	assert.InDelta(eut.VNom, steps[12].Voltage, 1e-9)
}

func TestVoltWattStepsFullSequence(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.VoltWattSteps()
	assert.NoError(err)
	assert.Len(steps, 13)
	assert.Equal("Step G", steps[0].Label)
	assert.Equal("Step S", steps[12].Label)

	// Climb: VLow+a, V1-a, V1+a, midpoint, V2-a.
	assert.InDelta(107.4, steps[0].Voltage, 1e-9)
	assert.InDelta(125.4, steps[1].Voltage, 1e-9)
	assert.InDelta(129.0, steps[2].Voltage, 1e-9)
	assert.InDelta(129.6, steps[3].Voltage, 1e-9)
	assert.InDelta(130.2, steps[4].Voltage, 1e-9)

	// Mirror descent ends back at VLow+a.
	assert.InDelta(steps[0].Voltage, steps[12].Voltage, 1e-9)

	for _, s := range steps {
		assert.GreaterOrEqual(s.Voltage, eut.VLow)
		assert.LessOrEqual(s.Voltage, eut.VHigh)
	}
}

func TestVoltWattStepsDropAboveRange(t *testing.T) {

	assert := assert.New(t)

	cfg := testEutConfig()
	cfg.VHigh = 130.0 // below curve 1 V2 = 132
	eut, err := NewEutParameters(cfg)
	assert.NoError(err)
	curves, err := DefaultCurves(eut, CurveOptions{})
	assert.NoError(err)
	b := NewStepBuilder(eut, curves)

	steps, err := b.VoltWattSteps()
	assert.NoError(err)
	assert.Len(steps, 8)
	for _, s := range steps {
		assert.NotContains([]string{"Step K", "Step L", "Step M", "Step N", "Step O"}, s.Label)
	}
}

func TestWattVarStepsMirrorSequence(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.WattVarSteps()
	assert.NoError(err)
	assert.Len(steps, 19)

	assert.InDelta(eut.PMin, steps[0].Power, 1e-9)
	assert.InDelta(eut.PRated, steps[9].Power, 1e-9)
	assert.InDelta(eut.PMin, steps[18].Power, 1e-9)

	// Mirror symmetry around the Prated midpoint.
	for i := 0; i < 9; i++ {
		assert.InDelta(steps[i].Power, steps[18-i].Power, 1e-9, "step %d not mirrored", i)
	}

	// Straddles near the range ends are held inside the operating range.
	for _, s := range steps {
		assert.GreaterOrEqual(s.Power, eut.PMin, "%s", s.Label)
		assert.LessOrEqual(s.Power, eut.PRated, "%s", s.Label)
	}

	// a = 1.5 MRA(P) = 750 W around P1 = 2000 and P2 = 5000.
	assert.InDelta(2000.0-750.0, steps[1].Power, 1e-9)
	assert.InDelta(2000.0+750.0, steps[2].Power, 1e-9)
	assert.InDelta(3500.0, steps[3].Power, 1e-9)
	assert.InDelta(5000.0-750.0, steps[4].Power, 1e-9)
}

func TestFreqWattStepsAboveNominal(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.FreqWattSteps(AboveNominal)
	assert.NoError(err)
	assert.Len(steps, 9)

	// a = 1.5 MRA(F) = 0.015 Hz around the deadband edge 60.036.
	assert.InDelta(60.0, steps[0].Frequency, 1e-9)
	assert.InDelta(60.021, steps[1].Frequency, 1e-9)
	assert.InDelta(60.051, steps[2].Frequency, 1e-9)
	assert.InDelta(60.186, steps[3].Frequency, 1e-9)
	assert.InDelta(63.985, steps[4].Frequency, 1e-9)
	assert.InDelta(63.85, steps[5].Frequency, 1e-9)
	assert.InDelta(60.0, steps[8].Frequency, 1e-9)

	for _, s := range steps {
		assert.LessOrEqual(s.Frequency, eut.FMax)
	}
}

func TestFreqWattStepsBelowNominal(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.FreqWattSteps(BelowNominal)
	assert.NoError(err)
	assert.Len(steps, 8)

	assert.InDelta(59.979, steps[0].Frequency, 1e-9)
	assert.InDelta(59.949, steps[1].Frequency, 1e-9)
	assert.InDelta(59.814, steps[2].Frequency, 1e-9)
	assert.InDelta(56.015, steps[3].Frequency, 1e-9)
	assert.InDelta(56.15, steps[4].Frequency, 1e-9)
	assert.InDelta(60.0, steps[7].Frequency, 1e-9)

	for _, s := range steps {
		assert.GreaterOrEqual(s.Frequency, eut.FMin)
	}
}

func TestFreqWattStepsRejectUnknownRegion(t *testing.T) {

	assert := assert.New(t)

	_, b := testStepBuilder(t)
	_, err := b.FreqWattSteps(FreqWattRegion(7))
	assert.ErrorIs(err, ErrConfiguration)
}

func TestPrioritySteps(t *testing.T) {

	assert := assert.New(t)

	eut, b := testStepBuilder(t)

	steps, err := b.PrioritySteps(VV)
	assert.NoError(err)
	assert.Len(steps, 8)
	assert.Equal(0.0, steps[0].Reactive)
	for i := 1; i <= 4; i++ {
		assert.InDelta(-0.44*eut.VarRated, steps[i].Reactive, 1e-9, "row %d", i+1)
	}
	assert.Equal(0.0, steps[5].Reactive)
	assert.InDelta(1.09*eut.VNom, steps[1].Voltage, 1e-9)
	assert.InDelta(60.33, steps[2].Frequency, 1e-9)
	assert.InDelta(0.7*eut.PRated, steps[7].Power, 1e-9)

	steps, err = b.PrioritySteps(CPF)
	assert.NoError(err)
	for _, s := range steps {
		assert.Equal(0.9, s.PowerFactor)
		assert.Equal(0.0, s.Reactive)
	}

	steps, err = b.PrioritySteps(CRP)
	assert.NoError(err)
	for _, s := range steps {
		assert.InDelta(eut.VarRated, s.Reactive, 1e-9)
	}

	steps, err = b.PrioritySteps(WV)
	assert.NoError(err)
	assert.InDelta(-0.09*eut.VarRated, steps[5].Reactive, 1e-9)
	assert.InDelta(-0.18*eut.VarRated, steps[7].Reactive, 1e-9)
	assert.Equal(0.0, steps[0].Reactive)

	_, err = b.PrioritySteps(FW)
	assert.ErrorIs(err, ErrConfiguration)
}

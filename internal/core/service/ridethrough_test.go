package service

import (
	"context"
	"testing"

	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProgramVRT(t *testing.T) {

	assert := assert.New(t)

	eut, _ := testEut(t)
	driver := &FakeDriver{}
	gen := p1547.NewRideThrough(eut, p1547.Figure)
	s := NewRideThroughService(eut, gen, driver, zap.NewNop())

	seq, err := s.ProgramVRT(context.Background(), p1547.VRTMode{HighVoltage: false, Category: p1547.Category2})
	assert.NoError(err)
	assert.Len(seq, 6)
	assert.Len(driver.Programmed, 1)

	params := driver.LastProgram()
	assert.Equal(3.0, params["MODE"])
	assert.Equal(120.0, params["V_NOM"])
	assert.Equal(60.0, params["F_NOM"])
	assert.Equal(5.0, params["T0"])

	// Slot 1 holds condition A, slot 7 is padding.
	assert.Equal(1.0, params["CONDITION_1"])
	assert.InDelta(0.94, params["VALUE_1"], 1e-9)
	assert.InDelta(0.28, params["VALUE_2"], 1e-9)
	assert.Equal(5.0, params["START_1"])
	assert.Equal(15.0, params["END_1"])
	assert.Zero(params["CONDITION_7"])
	assert.Contains(params, "CONDITION_20")

	// Clearing steps: 18 enabled slots, 2 padded.
	assert.Equal(1.0, params["VRT_CLEARING_STEP_1"])
	assert.Equal(1.0, params["VRT_CLEARING_STEP_18"])
	assert.Zero(params["VRT_CLEARING_STEP_19"])

	assert.InDelta(seq.StopTime(), params["VRT_STOP_TIME"], 1e-9)
}

func TestProgramFRT(t *testing.T) {

	assert := assert.New(t)

	eut, _ := testEut(t)
	driver := &FakeDriver{}
	gen := p1547.NewRideThrough(eut, p1547.Figure)
	s := NewRideThroughService(eut, gen, driver, zap.NewNop())

	seq, err := s.ProgramFRT(context.Background(), p1547.FRTMode{HighFrequency: true}, 299, 61.8)
	assert.NoError(err)
	assert.Len(seq, 3)

	params := driver.LastProgram()
	assert.Equal(4.0, params["MODE"])
	assert.Equal(1.0, params["ROCOF_ENABLE"])
	assert.Equal(3.0, params["ROCOF_VALUE"])
	assert.Equal(60.0, params["ROCOF_INIT"])
	assert.Equal(61.8, params["VALUE_2"])
	assert.Zero(params["CONDITION_4"], "fourth slot padded")

	_, err = s.ProgramFRT(context.Background(), p1547.FRTMode{HighFrequency: true}, 299, 58.0)
	assert.ErrorIs(err, p1547.ErrConfiguration)
}

func TestProgramPCRT(t *testing.T) {

	assert := assert.New(t)

	eut, _ := testEut(t)
	driver := &FakeDriver{}
	gen := p1547.NewRideThrough(eut, p1547.Figure)
	s := NewRideThroughService(eut, gen, driver, zap.NewNop())

	seq, err := s.ProgramPCRT(context.Background(), 2)
	assert.NoError(err)
	assert.Len(seq, 3)

	params := driver.LastProgram()
	assert.Equal(2.0, params["MODE"])
	assert.Equal(3.0, params["CONDITION_2"])
	assert.Equal(60.0, params["VALUE_2"])
	assert.Contains(params, "CONDITION_11")

	_, err = s.ProgramPCRT(context.Background(), 9)
	assert.ErrorIs(err, p1547.ErrConfiguration)
}

func TestApplyImbalance(t *testing.T) {

	assert := assert.New(t)

	eut, _ := testEut(t)
	driver := &FakeDriver{}
	gen := p1547.NewRideThrough(eut, p1547.Figure)
	s := NewRideThroughService(eut, gen, driver, zap.NewNop())

	phases, err := s.ApplyImbalance(context.Background(), p1547.FixStd, false)
	assert.NoError(err)
	assert.InDelta(1.07*120, phases.Magnitudes[0], 1e-9)
	assert.Len(driver.PhaseSets, 1)

	phases, err = s.ApplyImbalance(context.Background(), p1547.FixStd, true)
	assert.NoError(err)
	assert.InDelta(0.91*120, phases.Magnitudes[0], 1e-9)

	_, err = s.ApplyImbalance(context.Background(), p1547.FixMode("bad"), false)
	assert.ErrorIs(err, p1547.ErrConfiguration)
}

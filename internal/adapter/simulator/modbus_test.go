package simulator

import (
	"context"
	"errors"
	"testing"

	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/stretchr/testify/assert"
)

func TestStepCommandsEncodeCentiUnits(t *testing.T) {
	assert := assert.New(t)

	bank := NewTestRegisterBank()
	sim := CreateTestSimulator(bank)
	ctx := context.Background()

	assert.NoError(sim.StepVoltage(ctx, 120.6))
	assert.NoError(sim.StepFrequency(ctx, 60.036))
	assert.NoError(sim.StepActivePower(ctx, 9500))

	assert.Equal(uint16(12060), bank.Registers[regVoltageCmd])
	assert.Equal(uint16(6004), bank.Registers[regFrequencyCmd])
	assert.Equal(uint16(950), bank.Registers[regPowerCmd])
}

func TestSetPhaseVoltagesWritesBlock(t *testing.T) {
	assert := assert.New(t)

	bank := NewTestRegisterBank()
	sim := CreateTestSimulator(bank)

	err := sim.SetPhaseVoltages(context.Background(), p1547.PhaseSet{
		Magnitudes: [3]float64{128.4, 109.2, 109.2},
		Angles:     [3]float64{0, -126.59, 126.59},
	})
	assert.NoError(err)

	assert.Equal(uint16(12840), bank.Registers[regPhaseBase])
	assert.Equal(uint16(10920), bank.Registers[regPhaseBase+1])
	assert.Equal(int16(-1266), int16(bank.Registers[regPhaseBase+4]))
	assert.Equal(int16(1266), int16(bank.Registers[regPhaseBase+5]))
}

func TestProgramAssignsStableAddresses(t *testing.T) {
	assert := assert.New(t)

	bank := NewTestRegisterBank()
	sim := CreateTestSimulator(bank)
	ctx := context.Background()

	err := sim.Program(ctx, []port.Parameter{
		{Name: "V_NOM", Value: 120},
		{Name: "P_RATED", Value: 10000},
	})
	assert.NoError(err)
	assert.Equal(float32(120), bank.Floats[regParamBase])
	assert.Equal(float32(10000), bank.Floats[regParamBase+2])

	// same name lands on the same address on a later write
	err = sim.Program(ctx, []port.Parameter{{Name: "P_RATED", Value: 8000}})
	assert.NoError(err)
	assert.Equal(float32(8000), bank.Floats[regParamBase+2])
}

func TestProgramWrapsWriteFailure(t *testing.T) {
	assert := assert.New(t)

	bank := NewTestRegisterBank()
	bank.Err = errors.New("connection reset")
	sim := CreateTestSimulator(bank)

	err := sim.Program(context.Background(), []port.Parameter{{Name: "MODE", Value: 3}})
	assert.ErrorContains(err, "program MODE")
}

func TestDriverHonorsContext(t *testing.T) {
	assert := assert.New(t)

	sim := CreateTestSimulator(NewTestRegisterBank())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(sim.StepVoltage(ctx, 120), context.Canceled)
	assert.ErrorIs(sim.Program(ctx, nil), context.Canceled)
}

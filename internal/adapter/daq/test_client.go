package daq

import (
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// CreateTestProvider builds a provider backed by an in-memory register bank
// instead of a TCP connection.
func CreateTestProvider(bank *TestRegisterBank, base uint16, phases p1547.Phases) *ModbusProvider {
	return &ModbusProvider{
		client: bank,
		base:   base,
		phases: phases,
		logger: zap.NewNop(),
	}
}

// TestRegisterBank is an in-memory holding-register map.
type TestRegisterBank struct {
	Registers map[uint16]uint16
	Err       error
}

func NewTestRegisterBank() *TestRegisterBank {
	return &TestRegisterBank{Registers: map[uint16]uint16{}}
}

func (b *TestRegisterBank) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]uint16, quantity)
	for i := uint16(0); i < quantity; i++ {
		out[i] = b.Registers[addr+i]
	}
	return out, nil
}

// LoadBlock fills the measurement block at base with scale factors and
// balanced three-phase readings.
func (b *TestRegisterBank) LoadBlock(base uint16, voltages [3]uint16, frequency uint16,
	powers, reactives, pfs [3]int16, sfs [5]int16) {
	for i, sf := range sfs {
		b.Registers[base+uint16(i)] = uint16(sf)
	}
	for i := 0; i < 3; i++ {
		b.Registers[base+regVoltageBase+uint16(i)] = voltages[i]
		b.Registers[base+regPowerBase+uint16(i)] = uint16(powers[i])
		b.Registers[base+regReactiveBase+uint16(i)] = uint16(reactives[i])
		b.Registers[base+regPFBase+uint16(i)] = uint16(pfs[i])
	}
	b.Registers[base+regFrequency] = frequency
}

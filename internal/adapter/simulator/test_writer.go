package simulator

import (
	"go.uber.org/zap"
)

// CreateTestSimulator returns a driver backed by an in-memory register
// bank, for tests that exercise the command encoding without a device.
func CreateTestSimulator(bank *TestRegisterBank) *ModbusSimulator {
	return &ModbusSimulator{
		client: bank,
		params: map[string]uint16{},
		logger: zap.NewNop(),
	}
}

type TestRegisterBank struct {
	Registers map[uint16]uint16
	Floats    map[uint16]float32
	Err       error
}

func NewTestRegisterBank() *TestRegisterBank {
	return &TestRegisterBank{
		Registers: map[uint16]uint16{},
		Floats:    map[uint16]float32{},
	}
}

func (b *TestRegisterBank) WriteRegister(addr uint16, value uint16) error {
	if b.Err != nil {
		return b.Err
	}
	b.Registers[addr] = value
	return nil
}

func (b *TestRegisterBank) WriteRegisters(addr uint16, values []uint16) error {
	if b.Err != nil {
		return b.Err
	}
	for i, v := range values {
		b.Registers[addr+uint16(i)] = v
	}
	return nil
}

func (b *TestRegisterBank) WriteFloat32(addr uint16, value float32) error {
	if b.Err != nil {
		return b.Err
	}
	b.Floats[addr] = value
	return nil
}

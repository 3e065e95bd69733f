package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Modbus TCP grid-simulator adapter. The simulator model exposes command
// registers for the balanced operating point, a per-phase block for
// imbalance assignments, and a bank of general model parameters addressed
// by a name table.

// Command register addresses. Values are written as centi-units so the
// model keeps two decimals of the commanded magnitude.
const (
	regVoltageCmd   = 0
	regFrequencyCmd = 1
	regPowerCmd     = 2 // watts / 10
	regPhaseBase    = 10 // 3 magnitude + 3 angle registers
	regParamBase    = 100
)

const cmdScale = 100.0

type regWriter interface {
	WriteRegister(addr uint16, value uint16) error
	WriteRegisters(addr uint16, values []uint16) error
	WriteFloat32(addr uint16, value float32) error
}

// ModbusSimulator drives a grid-simulator model over Modbus TCP.
type ModbusSimulator struct {
	client regWriter
	conn   *modbus.ModbusClient
	params map[string]uint16
	logger *zap.Logger
}

// CreateModbusSimulator connects the driver to a simulator at host:port.
// paramTable maps model parameter names to their register addresses; nil
// assigns addresses in the order parameters first appear.
func CreateModbusSimulator(host string, port uint, unitId uint8, timeout time.Duration,
	paramTable map[string]uint16, logger *zap.Logger) (*ModbusSimulator, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(unitId); err != nil {
		return nil, err
	}
	if paramTable == nil {
		paramTable = map[string]uint16{}
	}
	return &ModbusSimulator{client: client, conn: client, params: paramTable, logger: logger}, nil
}

func (s *ModbusSimulator) Open() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Open()
}

func (s *ModbusSimulator) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *ModbusSimulator) StepVoltage(ctx context.Context, volts float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("voltage step", zap.Float64("volts", volts))
	return s.client.WriteRegister(regVoltageCmd, scaled(volts))
}

func (s *ModbusSimulator) StepFrequency(ctx context.Context, hz float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("frequency step", zap.Float64("hz", hz))
	return s.client.WriteRegister(regFrequencyCmd, scaled(hz))
}

func (s *ModbusSimulator) StepActivePower(ctx context.Context, watts float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("power step", zap.Float64("watts", watts))
	return s.client.WriteRegister(regPowerCmd, uint16(math.Round(watts/10)))
}

func (s *ModbusSimulator) SetPhaseVoltages(ctx context.Context, phases p1547.PhaseSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := make([]uint16, 6)
	for i := 0; i < 3; i++ {
		values[i] = scaled(phases.Magnitudes[i])
		// angles are signed degrees
		values[3+i] = uint16(int16(math.Round(phases.Angles[i] * 10)))
	}
	s.logger.Debug("phase assignment", zap.Float64s("magnitudes", phases.Magnitudes[:]))
	return s.client.WriteRegisters(regPhaseBase, values)
}

// Program writes each parameter as a float32 pair from the name table,
// assigning the next free address to names seen for the first time.
func (s *ModbusSimulator) Program(ctx context.Context, params []port.Parameter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range params {
		addr, ok := s.params[p.Name]
		if !ok {
			addr = regParamBase + uint16(2*len(s.params))
			s.params[p.Name] = addr
		}
		if err := s.client.WriteFloat32(addr, float32(p.Value)); err != nil {
			return fmt.Errorf("program %s: %w", p.Name, err)
		}
	}
	s.logger.Debug("model programmed", zap.Int("params", len(params)))
	return nil
}

var _ port.SimulatorDriver = (*ModbusSimulator)(nil)

func scaled(v float64) uint16 {
	return uint16(math.Round(v * cmdScale))
}

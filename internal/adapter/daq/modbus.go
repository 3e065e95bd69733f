package daq

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Modbus TCP data-acquisition adapter. The DAQ exposes one holding-register
// block of scale factors and per-phase measurements; Sample reads the block
// in a single request and freezes it into an engine snapshot.

// Register offsets inside the measurement block.
const (
	regVoltageSF     = 0
	regPowerSF       = 1
	regReactiveSF    = 2
	regPowerFactorSF = 3
	regFrequencySF   = 4
	regVoltageBase   = 5 // 3 registers, one per phase
	regFrequency     = 8
	regPowerBase     = 9  // 3 registers, int16
	regReactiveBase  = 12 // 3 registers, int16
	regPFBase        = 15 // 3 registers, int16
	blockSize        = 18
)

type regReader interface {
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
}

// Instrument receives the duration of every block read.
type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// ModbusProvider samples an IEEE 1547.1 test DAQ over Modbus TCP and
// implements the engine's MeasurementProvider.
type ModbusProvider struct {
	client     regReader
	conn       *modbus.ModbusClient
	base       uint16
	phases     p1547.Phases
	instrument []Instrument
	logger     *zap.Logger
}

// CreateModbusProvider connects the provider to a DAQ at host:port with the
// measurement block starting at base.
func CreateModbusProvider(host string, port uint, unitId uint8, base uint16, phases p1547.Phases,
	timeout time.Duration, logger *zap.Logger, instrumentation *Instrument) (*ModbusProvider, error) {
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

	var inst []Instrument
	logInst := traceLoggerInstrument(logger.With(zap.String("target", "daq"), zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &ModbusProvider{
		client:     client,
		conn:       client,
		base:       base,
		phases:     phases,
		instrument: inst,
		logger:     logger,
	}, nil
}

func (p *ModbusProvider) Open() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Open()
}

func (p *ModbusProvider) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Sample reads the full measurement block and returns it as one coherent
// snapshot.
func (p *ModbusProvider) Sample(ctx context.Context) (p1547.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer recordTimer("Sample", p.instrument)()

	regs, err := p.client.ReadRegisters(p.base, blockSize, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, fmt.Errorf("daq block read: %w", err)
	}
	if len(regs) < blockSize {
		return nil, fmt.Errorf("daq block read returned %d registers, want %d", len(regs), blockSize)
	}
	return &blockSnapshot{regs: regs, phases: p.phases}, nil
}

var _ p1547.MeasurementProvider = (*ModbusProvider)(nil)

// blockSnapshot decodes the raw register block on demand.
type blockSnapshot struct {
	regs   []uint16
	phases p1547.Phases
}

func (s *blockSnapshot) Read(q p1547.Quantity, phase int) (float64, error) {
	if phase < 1 || phase > int(s.phases) {
		return 0, fmt.Errorf("phase %d out of range for %d-phase daq", phase, s.phases)
	}
	switch q {
	case p1547.Voltage:
		return applySF(s.regs[regVoltageBase+phase-1], s.regs[regVoltageSF]), nil
	case p1547.Frequency:
		return applySF(s.regs[regFrequency], s.regs[regFrequencySF]), nil
	case p1547.ActivePower:
		return applySFint16(int16(s.regs[regPowerBase+phase-1]), s.regs[regPowerSF]), nil
	case p1547.ReactivePower:
		return applySFint16(int16(s.regs[regReactiveBase+phase-1]), s.regs[regReactiveSF]), nil
	case p1547.PowerFactor:
		return applySFint16(int16(s.regs[regPFBase+phase-1]), s.regs[regPowerFactorSF]), nil
	default:
		return 0, fmt.Errorf("daq has no register for quantity %q", q)
	}
}

func applySF(number uint16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func applySFint16(number int16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func recordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrument(logger *zap.Logger) *Instrument {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("daq read", zap.String("fn", fnName), zap.Duration("time", readTime))
		},
	}
}

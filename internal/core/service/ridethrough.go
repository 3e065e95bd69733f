package service

import (
	"context"
	"fmt"

	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/pkg/p1547"

	"go.uber.org/zap"
)

// Simulator model selector values written to the MODE parameter.
const (
	modePCRT = 2.0
	modeVRT  = 3.0
	modeFRT  = 4.0
)

// RideThroughService programs disturbance sequences into the grid
// simulator: it generates the timestamped profile, flattens it into the
// model's fixed-size parameter arrays and writes the batch through the
// driver.
type RideThroughService struct {
	eut    *p1547.EutParameters
	gen    *p1547.RideThrough
	driver port.SimulatorDriver
	logger *zap.Logger
}

func NewRideThroughService(eut *p1547.EutParameters, gen *p1547.RideThrough,
	driver port.SimulatorDriver, logger *zap.Logger) *RideThroughService {
	return &RideThroughService{eut: eut, gen: gen, driver: driver, logger: logger}
}

// ProgramVRT writes a voltage ride-through profile and returns the
// scheduled sequence.
func (s *RideThroughService) ProgramVRT(ctx context.Context, mode p1547.VRTMode) (p1547.Sequence, error) {
	seq, err := s.gen.VRTSequence(mode)
	if err != nil {
		return nil, err
	}

	params := []port.Parameter{{Name: "MODE", Value: modeVRT}}
	params = append(params, s.nominalValues()...)
	params = append(params, sequenceParams(seq, p1547.VRTSlots)...)
	for i, v := range p1547.VRTClearingSteps() {
		params = append(params, port.Parameter{Name: indexed("VRT_CLEARING_STEP", i), Value: v})
	}
	params = append(params, port.Parameter{Name: "VRT_STOP_TIME", Value: seq.StopTime()})

	if err := s.driver.Program(ctx, params); err != nil {
		return nil, err
	}
	s.logger.Info("voltage ride-through programmed",
		zap.Bool("high_voltage", mode.HighVoltage), zap.Int("category", int(mode.Category)),
		zap.Int("conditions", len(seq)), zap.Float64("stop_time", seq.StopTime()),
		zap.Strings("capture", p1547.VRTWaveformChannels()))
	return seq, nil
}

// ProgramFRT writes a frequency ride-through profile with the standard
// rate-of-change-of-frequency ramp settings.
func (s *RideThroughService) ProgramFRT(ctx context.Context, mode p1547.FRTMode, period, frequency float64) (p1547.Sequence, error) {
	seq, err := s.gen.FRTSequence(mode, period, frequency)
	if err != nil {
		return nil, err
	}

	rocof := p1547.DefaultROCOF()
	params := []port.Parameter{{Name: "MODE", Value: modeFRT}}
	params = append(params, s.nominalValues()...)
	params = append(params, sequenceParams(seq, p1547.FRTSlots)...)
	params = append(params,
		port.Parameter{Name: "ROCOF_ENABLE", Value: boolValue(rocof.Enable)},
		port.Parameter{Name: "ROCOF_VALUE", Value: rocof.Value},
		port.Parameter{Name: "ROCOF_INIT", Value: rocof.Init},
		port.Parameter{Name: "FRT_STOP_TIME", Value: seq.StopTime()},
	)

	if err := s.driver.Program(ctx, params); err != nil {
		return nil, err
	}
	s.logger.Info("frequency ride-through programmed",
		zap.Bool("high_frequency", mode.HighFrequency), zap.Float64("frequency", frequency),
		zap.Float64("period", period), zap.Float64("stop_time", seq.StopTime()),
		zap.Strings("capture", p1547.FRTWaveformChannels()))
	return seq, nil
}

// ProgramPCRT writes a phase-change ride-through profile for test number
// 1-5.
func (s *RideThroughService) ProgramPCRT(ctx context.Context, testNum int) (p1547.Sequence, error) {
	seq, err := s.gen.PCRTSequence(testNum)
	if err != nil {
		return nil, err
	}

	params := []port.Parameter{{Name: "MODE", Value: modePCRT}}
	params = append(params, s.nominalValues()...)
	params = append(params, sequenceParams(seq, p1547.PCRTSlots)...)
	params = append(params, port.Parameter{Name: "PCRT_STOP_TIME", Value: seq.StopTime()})

	if err := s.driver.Program(ctx, params); err != nil {
		return nil, err
	}
	s.logger.Info("phase-change ride-through programmed",
		zap.Int("test", testNum), zap.Float64("stop_time", seq.StopTime()),
		zap.Strings("capture", p1547.PCRTWaveformChannels()))
	return seq, nil
}

// ApplyImbalance programs one imbalanced phase assignment onto the
// simulator.
func (s *RideThroughService) ApplyImbalance(ctx context.Context, mode p1547.FixMode, caseB bool) (p1547.PhaseSet, error) {
	cases, err := p1547.ComputeImbalanceCase(s.eut, mode)
	if err != nil {
		return p1547.PhaseSet{}, err
	}
	phases := cases.CaseA
	if caseB {
		phases = cases.CaseB
	}
	if err := s.driver.SetPhaseVoltages(ctx, phases); err != nil {
		return p1547.PhaseSet{}, err
	}
	s.logger.Info("imbalance case applied", zap.String("fix_mode", string(mode)), zap.Bool("case_b", caseB))
	return phases, nil
}

// nominalValues is the model preamble every mode shares.
func (s *RideThroughService) nominalValues() []port.Parameter {
	return []port.Parameter{
		{Name: "V_NOM", Value: s.eut.VNom},
		{Name: "F_NOM", Value: s.eut.FNom},
		{Name: "P_RATED", Value: s.eut.PRated},
		{Name: "PHASES", Value: float64(s.eut.Phases)},
		{Name: "T0", Value: s.eut.StartupTime},
	}
}

// sequenceParams flattens a sequence into the indexed condition, timing and
// value arrays, zero-padded to the model's slot count.
func sequenceParams(seq p1547.Sequence, slots int) []port.Parameter {
	conditions, starts, ends, values := seq.Arrays(slots)
	out := make([]port.Parameter, 0, 4*slots)
	for i := 0; i < slots; i++ {
		out = append(out,
			port.Parameter{Name: indexed("CONDITION", i), Value: conditions[i]},
			port.Parameter{Name: indexed("START", i), Value: starts[i]},
			port.Parameter{Name: indexed("END", i), Value: ends[i]},
			port.Parameter{Name: indexed("VALUE", i), Value: values[i]},
		)
	}
	return out
}

func indexed(name string, i int) string {
	return fmt.Sprintf("%s_%d", name, i+1)
}

func boolValue(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

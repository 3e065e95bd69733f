package service

import (
	"context"
	"sync"

	"github.com/enerflux/der1547eval/internal/core/domain"
	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/pkg/p1547"
)

// FakeDriver records every simulator command for assertions.
type FakeDriver struct {
	mu         sync.Mutex
	Voltages   []float64
	Frequencies []float64
	Powers     []float64
	PhaseSets  []p1547.PhaseSet
	Programmed [][]port.Parameter
	Err        error
}

func (d *FakeDriver) StepVoltage(ctx context.Context, volts float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Voltages = append(d.Voltages, volts)
	return d.Err
}

func (d *FakeDriver) StepFrequency(ctx context.Context, hz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Frequencies = append(d.Frequencies, hz)
	return d.Err
}

func (d *FakeDriver) StepActivePower(ctx context.Context, watts float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Powers = append(d.Powers, watts)
	return d.Err
}

func (d *FakeDriver) SetPhaseVoltages(ctx context.Context, phases p1547.PhaseSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PhaseSets = append(d.PhaseSets, phases)
	return d.Err
}

func (d *FakeDriver) Program(ctx context.Context, params []port.Parameter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Programmed = append(d.Programmed, params)
	return d.Err
}

// LastProgram returns the most recent parameter batch as a name-value map.
func (d *FakeDriver) LastProgram() map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Programmed) == 0 {
		return nil
	}
	out := map[string]float64{}
	for _, p := range d.Programmed[len(d.Programmed)-1] {
		out[p.Name] = p.Value
	}
	return out
}

// FakeSink records published run states and step results.
type FakeSink struct {
	mu     sync.Mutex
	States []domain.RunState
	Steps  []domain.StepResult
}

func (s *FakeSink) PublishRunState(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.States = append(s.States, run.State)
	return nil
}

func (s *FakeSink) PublishStepResult(ctx context.Context, run *domain.Run, step domain.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps = append(s.Steps, step)
	return nil
}

var (
	_ port.SimulatorDriver = (*FakeDriver)(nil)
	_ port.ResultSink      = (*FakeSink)(nil)
)

package port

import (
	"context"

	"github.com/enerflux/der1547eval/pkg/p1547"
)

// Parameter is one named setting written to the grid-simulator model.
type Parameter struct {
	Name  string
	Value float64
}

// SimulatorDriver commands the grid simulator the EUT is connected to.
type SimulatorDriver interface {
	// StepVoltage commands a new grid voltage in volts and returns once
	// the simulator acknowledges the step.
	StepVoltage(ctx context.Context, volts float64) error
	// StepFrequency commands a new grid frequency in Hz.
	StepFrequency(ctx context.Context, hz float64) error
	// StepActivePower commands a new EUT available active power in watts.
	StepActivePower(ctx context.Context, watts float64) error
	// SetPhaseVoltages programs an imbalanced per-phase assignment.
	SetPhaseVoltages(ctx context.Context, phases p1547.PhaseSet) error
	// Program writes a batch of model parameters.
	Program(ctx context.Context, params []Parameter) error
}

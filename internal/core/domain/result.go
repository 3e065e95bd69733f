package domain

import (
	"time"

	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of one evaluation run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// ResultRow is one line of the run's result summary: the verdicts and the
// target window of one tracked quantity at one scored point of one step.
type ResultRow struct {
	Step      string            `json:"step"`
	Function  p1547.Function    `json:"function"`
	Quantity  p1547.Quantity    `json:"quantity"`
	Iteration int               `json:"iteration,omitempty"`
	Check     string            `json:"check"`
	Verdict   p1547.Verdict     `json:"verdict"`
	Target    float64           `json:"target"`
	Min       float64           `json:"min"`
	Max       float64           `json:"max"`
	Measured  float64           `json:"measured"`
	XTargets  map[string]float64 `json:"x_targets,omitempty"`
}

// Checks reported in ResultRow.Check.
const (
	CheckOpenLoop = "open_loop"
	CheckAccuracy = "accuracy"
)

// StepResult is the evaluation of one test step.
type StepResult struct {
	Label    string          `json:"label"`
	Start    time.Time       `json:"start"`
	OpenLoop p1547.Verdict   `json:"open_loop,omitempty"`
	Rows     []ResultRow     `json:"rows"`
	Initial  map[string]float64 `json:"initial,omitempty"`
}

// Passed reports whether every scored row of the step passed. Inconclusive
// rows count as not passed.
func (s StepResult) Passed() bool {
	if s.OpenLoop != "" && s.OpenLoop != p1547.Pass {
		return false
	}
	for _, r := range s.Rows {
		if r.Verdict != p1547.Pass {
			return false
		}
	}
	return true
}

// Run is one complete evaluation of a grid-support function.
type Run struct {
	ID        uuid.UUID      `json:"id"`
	Function  p1547.Function `json:"function"`
	State     RunState       `json:"state"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	Error     string         `json:"error,omitempty"`
	Steps     []StepResult   `json:"steps"`
	Report    ReportInfo     `json:"report"`
}

// Passed reports whether the run completed with every step passing.
func (r Run) Passed() bool {
	if r.State != RunCompleted {
		return false
	}
	for _, s := range r.Steps {
		if !s.Passed() {
			return false
		}
	}
	return true
}

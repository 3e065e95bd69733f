package service

import (
	"context"
	"sync"
	"time"

	"github.com/enerflux/der1547eval/internal/config"
	"github.com/enerflux/der1547eval/internal/core/domain"
	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner drives complete evaluation runs: it commands the grid simulator
// through each procedure step, lets the criteria evaluator score the EUT
// response, and keeps every run's record available for the status API.
type Runner struct {
	cfg      config.EvaluationConfig
	eut      *p1547.EutParameters
	curves   *p1547.Curves
	driver   port.SimulatorDriver
	provider p1547.MeasurementProvider
	sink     port.ResultSink
	logger   *zap.Logger
	clock    p1547.Clock

	mu   sync.RWMutex
	runs map[uuid.UUID]*domain.Run
}

func NewRunner(cfg config.EvaluationConfig, eut *p1547.EutParameters, curves *p1547.Curves,
	driver port.SimulatorDriver, provider p1547.MeasurementProvider, sink port.ResultSink,
	logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		eut:      eut,
		curves:   curves,
		driver:   driver,
		provider: provider,
		sink:     sink,
		logger:   logger,
		runs:     map[uuid.UUID]*domain.Run{},
	}
}

// SetClock replaces the evaluator wall clock, for tests.
func (r *Runner) SetClock(c p1547.Clock) { r.clock = c }

// Get returns a copy of the run record with the given id.
func (r *Runner) Get(id uuid.UUID) (domain.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.Run{}, false
	}
	return *run, true
}

// List returns a copy of every known run record.
func (r *Runner) List() []domain.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out
}

// commandedStep couples one simulator action with the step context the
// evaluator scores it under.
type commandedStep struct {
	step  p1547.StepContext
	apply func(context.Context) error
}

// Run executes the full procedure of one grid-support function and returns
// the finished run record. It blocks until the procedure completes.
func (r *Runner) Run(ctx context.Context, fn p1547.Function) (domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.New(),
		Function:  fn,
		State:     domain.RunRunning,
		StartedAt: time.Now(),
		Report:    domain.NewReportInfo(),
	}
	r.store(run)
	r.publishState(ctx, run)

	log := r.logger.With(zap.String("run", run.ID.String()), zap.String("function", string(fn)))
	log.Info("run started")

	err := r.execute(ctx, run, fn)

	r.mu.Lock()
	run.EndedAt = time.Now()
	if err != nil {
		run.State = domain.RunFailed
		run.Error = err.Error()
	} else {
		run.State = domain.RunCompleted
	}
	snapshot := *run
	r.mu.Unlock()

	r.publishState(ctx, &snapshot)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return snapshot, err
	}
	log.Info("run completed", zap.Bool("passed", snapshot.Passed()))
	return snapshot, nil
}

func (r *Runner) execute(ctx context.Context, run *domain.Run, fn p1547.Function) error {
	calc := p1547.NewTargetCalc(r.eut, r.curves)
	if r.cfg.CurveIndex > 0 {
		calc.CurveIndex = r.cfg.CurveIndex
	}
	if r.cfg.PowerLevel > 0 {
		calc.Power = r.cfg.PowerLevel
	}

	ev, err := p1547.NewEvaluator(fn, calc, r.provider, r.logger)
	if err != nil {
		return err
	}
	if r.clock != nil {
		ev.SetClock(r.clock)
	}
	tr, nTr, err := r.timeSettings(fn, calc.CurveIndex)
	if err != nil {
		return err
	}
	if err := ev.SetTimeSettings(tr, nTr); err != nil {
		return err
	}

	steps, err := r.buildSteps(fn, calc.CurveIndex)
	if err != nil {
		return err
	}

	for _, cs := range steps {
		stepCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.StepTimeoutSeconds > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.StepTimeoutSeconds)*time.Second)
		}
		rec, err := r.runStep(stepCtx, ev, cs)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return err
		}

		result := stepRecordToResult(fn, rec)
		r.mu.Lock()
		run.Steps = append(run.Steps, result)
		snapshot := *run
		r.mu.Unlock()
		if r.sink != nil {
			if err := r.sink.PublishStepResult(ctx, &snapshot, result); err != nil {
				r.logger.Warn("step result not published", zap.String("step", result.Label), zap.Error(err))
			}
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, ev *p1547.Evaluator, cs commandedStep) (*p1547.StepRecord, error) {
	if err := cs.apply(ctx); err != nil {
		return nil, err
	}
	return ev.EvaluateStep(ctx, cs.step)
}

// timeSettings resolves the open-loop response time: a configured override
// wins, otherwise the active characteristic's own response time is used.
func (r *Runner) timeSettings(fn p1547.Function, curveIndex int) (float64, int, error) {
	nTr := r.cfg.Periods
	if nTr < 1 {
		nTr = 2
	}
	if r.cfg.ResponseTime > 0 {
		return r.cfg.ResponseTime, nTr, nil
	}

	var tr float64
	switch fn {
	case p1547.VV:
		c, err := r.curves.VV(curveIndex)
		if err != nil {
			return 0, 0, err
		}
		tr = c.TR
	case p1547.VW:
		c, err := r.curves.VW(curveIndex)
		if err != nil {
			return 0, 0, err
		}
		tr = c.TR
	case p1547.WV:
		c, err := r.curves.WV(curveIndex)
		if err != nil {
			return 0, 0, err
		}
		tr = c.TR
	case p1547.FW, p1547.LAP, p1547.PRI:
		c, err := r.curves.FW(curveIndex)
		if err != nil {
			return 0, 0, err
		}
		tr = c.TR
	default:
		// CPF and CRP have no characteristic curve; 10 s covers the
		// largest permitted open-loop response.
		tr = 10.0
	}
	return tr, nTr, nil
}

func (r *Runner) buildSteps(fn p1547.Function, curveIndex int) ([]commandedStep, error) {
	b := p1547.NewStepBuilder(r.eut, r.curves)
	b.CurveIndex = curveIndex

	switch fn {
	case p1547.VV:
		steps, err := b.VoltVarSteps()
		if err != nil {
			return nil, err
		}
		return r.voltageSteps(steps), nil
	case p1547.VW:
		steps, err := b.VoltWattSteps()
		if err != nil {
			return nil, err
		}
		return r.voltageSteps(steps), nil
	case p1547.WV:
		steps, err := b.WattVarSteps()
		if err != nil {
			return nil, err
		}
		return r.powerSteps(steps), nil
	case p1547.FW:
		above, err := b.FreqWattSteps(p1547.AboveNominal)
		if err != nil {
			return nil, err
		}
		below, err := b.FreqWattSteps(p1547.BelowNominal)
		if err != nil {
			return nil, err
		}
		return append(r.frequencySteps(above), r.frequencySteps(below)...), nil
	case p1547.CRP:
		return r.reactiveSetpointSteps(), nil
	case p1547.CPF:
		return r.powerFactorSteps(), nil
	case p1547.LAP:
		return r.limitActivePowerSteps(curveIndex)
	case p1547.PRI:
		steps, err := b.PrioritySteps(p1547.VV)
		if err != nil {
			return nil, err
		}
		return r.prioritySteps(steps), nil
	default:
		return nil, p1547.ErrUnsupported
	}
}

func (r *Runner) voltageSteps(steps []p1547.VoltageStep) []commandedStep {
	out := make([]commandedStep, 0, len(steps))
	for _, s := range steps {
		v := s.Voltage
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: s.Label, Targets: map[p1547.Quantity]float64{p1547.Voltage: v}},
			apply: func(ctx context.Context) error {
				return r.driver.StepVoltage(ctx, v)
			},
		})
	}
	return out
}

func (r *Runner) frequencySteps(steps []p1547.FrequencyStep) []commandedStep {
	out := make([]commandedStep, 0, len(steps))
	for _, s := range steps {
		f := s.Frequency
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: s.Label, Targets: map[p1547.Quantity]float64{p1547.Frequency: f}},
			apply: func(ctx context.Context) error {
				return r.driver.StepFrequency(ctx, f)
			},
		})
	}
	return out
}

func (r *Runner) powerSteps(steps []p1547.PowerStep) []commandedStep {
	out := make([]commandedStep, 0, len(steps))
	for _, s := range steps {
		p := s.Power
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: s.Label, Targets: map[p1547.Quantity]float64{p1547.ActivePower: p}},
			apply: func(ctx context.Context) error {
				return r.driver.StepActivePower(ctx, p)
			},
		})
	}
	return out
}

// reactiveSetpointSteps sweeps the constant reactive power setpoint over
// full injection, half scale and full absorption.
func (r *Runner) reactiveSetpointSteps() []commandedStep {
	fractions := []float64{1.0, 0.5, -0.5, -1.0}
	labels := p1547.NewLabelSequence('G')
	out := make([]commandedStep, 0, len(fractions))
	for _, frac := range fractions {
		q := frac * r.eut.VarRated
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: labels.Next(), Targets: map[p1547.Quantity]float64{p1547.ReactivePower: q}},
			apply: func(ctx context.Context) error {
				return r.driver.Program(ctx, []port.Parameter{{Name: "VAR_SETPOINT", Value: q}})
			},
		})
	}
	return out
}

// powerFactorSteps sweeps the constant power factor setpoint over both
// signs at the limit and mid-range displacement.
func (r *Runner) powerFactorSteps() []commandedStep {
	setpoints := []float64{0.9, 0.95, -0.95, -0.9}
	labels := p1547.NewLabelSequence('G')
	out := make([]commandedStep, 0, len(setpoints))
	for _, pf := range setpoints {
		pf := pf
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: labels.Next(), Targets: map[p1547.Quantity]float64{p1547.PowerFactor: pf}},
			apply: func(ctx context.Context) error {
				return r.driver.Program(ctx, []port.Parameter{{Name: "PF_SETPOINT", Value: pf}})
			},
		})
	}
	return out
}

// limitActivePowerSteps builds the combined limit-power procedure: apply
// the limit, disturb frequency into the droop region twice, then step the
// available power into the watt-var region.
func (r *Runner) limitActivePowerSteps(curveIndex int) ([]commandedStep, error) {
	fw, err := r.curves.FW(curveIndex)
	if err != nil {
		return nil, err
	}
	limit := 0.5

	fDisturb := r.eut.FNom + fw.DBF + fw.FSmall
	fHigh := r.eut.FMax - fw.FSmall

	return []commandedStep{
		{
			step: p1547.StepContext{Label: "Step C", Targets: map[p1547.Quantity]float64{p1547.ActivePower: limit}},
			apply: func(ctx context.Context) error {
				return r.driver.Program(ctx, []port.Parameter{{Name: "P_LIMIT_PCT", Value: limit * 100}})
			},
		},
		{
			step: p1547.StepContext{Label: "Step D", Targets: map[p1547.Quantity]float64{p1547.Frequency: fDisturb}},
			apply: func(ctx context.Context) error {
				return r.driver.StepFrequency(ctx, fDisturb)
			},
		},
		{
			step: p1547.StepContext{Label: "Step E", Targets: map[p1547.Quantity]float64{p1547.Frequency: fHigh}},
			apply: func(ctx context.Context) error {
				return r.driver.StepFrequency(ctx, fHigh)
			},
		},
		{
			step: p1547.StepContext{Label: "Step F", Targets: map[p1547.Quantity]float64{p1547.ActivePower: r.eut.PRated}},
			apply: func(ctx context.Context) error {
				return r.driver.StepActivePower(ctx, r.eut.PRated)
			},
		},
	}, nil
}

func (r *Runner) prioritySteps(steps []p1547.PriorityStep) []commandedStep {
	labels := p1547.NewLabelSequence('A')
	out := make([]commandedStep, 0, len(steps))
	for _, s := range steps {
		s := s
		out = append(out, commandedStep{
			step: p1547.StepContext{Label: labels.Next(), Targets: map[p1547.Quantity]float64{
				p1547.Voltage:     s.Voltage,
				p1547.Frequency:   s.Frequency,
				p1547.ActivePower: s.Power,
			}},
			apply: func(ctx context.Context) error {
				if err := r.driver.StepVoltage(ctx, s.Voltage); err != nil {
					return err
				}
				if err := r.driver.StepFrequency(ctx, s.Frequency); err != nil {
					return err
				}
				return r.driver.StepActivePower(ctx, s.Power)
			},
		})
	}
	return out
}

// stepRecordToResult flattens an evaluator step record into the result
// summary rows the sinks and the status API expose.
func stepRecordToResult(fn p1547.Function, rec *p1547.StepRecord) domain.StepResult {
	result := domain.StepResult{
		Label:    rec.Label,
		Start:    rec.Start,
		OpenLoop: rec.OpenLoop,
		Initial:  quantityMap(rec.Initial),
	}

	for _, iter := range rec.Iters {
		for yq, verdict := range iter.Accuracy {
			row := domain.ResultRow{
				Step:      rec.Label,
				Function:  fn,
				Quantity:  yq,
				Iteration: iter.Index,
				Check:     domain.CheckAccuracy,
				Verdict:   verdict,
				Measured:  iter.Measured[yq],
				XTargets:  quantityMap(iter.XTargets),
			}
			if w, ok := iter.Windows[yq]; ok {
				row.Target = w.Target
				row.Min = w.Min
				row.Max = w.Max
			}
			result.Rows = append(result.Rows, row)
		}
	}
	if rec.OpenLoop != "" && len(rec.Iters) > 0 {
		first := rec.Iters[0]
		for yq, w := range first.Windows {
			result.Rows = append(result.Rows, domain.ResultRow{
				Step:      rec.Label,
				Function:  fn,
				Quantity:  yq,
				Iteration: first.Index,
				Check:     domain.CheckOpenLoop,
				Verdict:   rec.OpenLoop,
				Target:    w.Target,
				Min:       w.Min,
				Max:       w.Max,
				Measured:  first.Measured[yq],
				XTargets:  quantityMap(first.XTargets),
			})
		}
	}
	return result
}

func quantityMap(in map[p1547.Quantity]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for q, v := range in {
		out[string(q)] = v
	}
	return out
}

func (r *Runner) store(run *domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
}

func (r *Runner) publishState(ctx context.Context, run *domain.Run) {
	if r.sink == nil {
		return
	}
	if err := r.sink.PublishRunState(ctx, run); err != nil {
		r.logger.Warn("run state not published", zap.String("run", run.ID.String()), zap.Error(err))
	}
}

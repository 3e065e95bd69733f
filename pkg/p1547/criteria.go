package p1547

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Verdict is the outcome of one pass/fail check.
type Verdict string

const (
	Pass Verdict = "Pass"
	Fail Verdict = "Fail"
	// Inconclusive marks a check that could not be scored because a
	// measurement is missing. It must never be reported as a pass.
	Inconclusive Verdict = "Inconclusive"
)

// CriteriaMode selects which checks a procedure scores.
type CriteriaMode struct {
	// OpenLoop scores the transient open-loop response at the first
	// response-time tick.
	OpenLoop bool
	// FirstIterAccuracy scores the steady-state window at the first tick.
	FirstIterAccuracy bool
	// LastIterAccuracy scores the steady-state window at the last tick.
	LastIterAccuracy bool
}

// AllCriteria scores every check.
var AllCriteria = CriteriaMode{OpenLoop: true, FirstIterAccuracy: true, LastIterAccuracy: true}

// Clock abstracts wall-clock scheduling so tests can run without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StepContext carries the commanded values of one test step into the
// evaluator: the grid-simulator targets for the independent quantities and
// any function setpoints (PF for CPF, Q for CRP, P for LAP as a fraction
// of rated power).
type StepContext struct {
	Label   string
	Targets map[Quantity]float64
}

// Iteration is the record of one response-time tick.
type Iteration struct {
	Index     int
	Timestamp time.Time

	// Measured holds the aggregated readings that could be taken.
	Measured map[Quantity]float64
	// XTargets echoes the commanded independent values for the report.
	XTargets map[Quantity]float64
	// Windows holds the target and pass/fail band per tracked y quantity.
	Windows map[Quantity]Window
	// Accuracy holds the steady-state verdict per tracked y quantity,
	// set only on the ticks the criteria mode scores.
	Accuracy map[Quantity]Verdict
}

// StepRecord is the complete evaluation of one test step.
type StepRecord struct {
	Label     string
	Start     time.Time
	Initial   map[Quantity]float64
	Iters     []Iteration
	FirstIter int
	LastIter  int
	// OpenLoop is the transient verdict, empty when the mode is off.
	OpenLoop Verdict
}

// Evaluator runs the per-step state machine: record initial values, sample
// at each scheduled response-time tick, compute windows, score verdicts.
// One evaluator serves one function's procedure; it is not safe for
// concurrent use.
type Evaluator struct {
	eut      *EutParameters
	calc     *TargetCalc
	provider MeasurementProvider
	clock    Clock
	log      *zap.Logger

	fn   Function
	meas []Quantity
	xs   []Quantity
	ys   map[Quantity]Function

	mode CriteriaMode
	tr   float64
	nTr  int
}

// NewEvaluator builds an evaluator for fn with the standard measured and
// tracked quantities of that function's procedure.
func NewEvaluator(fn Function, calc *TargetCalc, provider MeasurementProvider, logger *zap.Logger) (*Evaluator, error) {
	e := &Evaluator{
		eut:      calc.eut,
		calc:     calc,
		provider: provider,
		clock:    realClock{},
		log:      logger,
		fn:       fn,
		mode:     AllCriteria,
		tr:       1.0,
		nTr:      2,
	}
	switch fn {
	case VV:
		e.meas = []Quantity{Voltage, ReactivePower, ActivePower}
		e.xs = []Quantity{Voltage}
		e.ys = map[Quantity]Function{ReactivePower: VV}
	case VW:
		e.meas = []Quantity{Voltage, ActivePower}
		e.xs = []Quantity{Voltage}
		e.ys = map[Quantity]Function{ActivePower: VW}
	case CPF:
		e.meas = []Quantity{Voltage, ActivePower, ReactivePower, PowerFactor}
		e.xs = []Quantity{Voltage, ActivePower}
		e.ys = map[Quantity]Function{ReactivePower: CPF}
	case CRP:
		e.meas = []Quantity{Voltage, ActivePower, ReactivePower}
		e.xs = []Quantity{Voltage, ActivePower}
		e.ys = map[Quantity]Function{ReactivePower: CRP}
	case WV:
		e.meas = []Quantity{ActivePower, ReactivePower}
		e.xs = []Quantity{ActivePower}
		e.ys = map[Quantity]Function{ReactivePower: WV}
	case FW:
		e.meas = []Quantity{Frequency, ActivePower}
		e.xs = []Quantity{Frequency}
		e.ys = map[Quantity]Function{ActivePower: FW}
	case LAP:
		e.meas = []Quantity{Frequency, Voltage, ActivePower, ReactivePower}
		e.xs = []Quantity{Voltage, Frequency}
		e.ys = map[Quantity]Function{ActivePower: LAP}
	case PRI:
		e.meas = []Quantity{Frequency, Voltage, ActivePower, ReactivePower}
		e.xs = []Quantity{Voltage, Frequency}
		e.ys = map[Quantity]Function{ActivePower: PRI}
	default:
		return nil, configErrorf("no evaluation procedure for function %q", fn)
	}
	return e, nil
}

// SetClock replaces the wall clock, for tests.
func (e *Evaluator) SetClock(c Clock) { e.clock = c }

// SetCriteriaMode selects which checks are scored.
func (e *Evaluator) SetCriteriaMode(m CriteriaMode) { e.mode = m }

// SetTimeSettings sets the open-loop response time in seconds and the
// number of scored response-time periods. One extra settling tick is
// sampled past nTr so the last scored tick has a successor.
func (e *Evaluator) SetTimeSettings(tr float64, nTr int) error {
	if tr <= 0 || nTr < 1 {
		return configErrorf("invalid time settings tr=%v n_tr=%d", tr, nTr)
	}
	e.tr = tr
	e.nTr = nTr
	return nil
}

// MeasuredQuantities reports what the evaluator samples each tick.
func (e *Evaluator) MeasuredQuantities() []Quantity { return e.meas }

// TrackedQuantities reports the y quantities the verdicts apply to.
func (e *Evaluator) TrackedQuantities() []Quantity {
	out := make([]Quantity, 0, len(e.ys))
	for q := range e.ys {
		out = append(out, q)
	}
	return out
}

// EvaluateStep runs the full ARMED -> SAMPLING -> SCORED cycle for one
// step: record initial values, wait out each response-time tick, then score
// the transient and steady-state criteria. Measurement failures leave the
// affected quantity unset and the affected verdicts inconclusive; only
// context cancellation and configuration errors abort.
func (e *Evaluator) EvaluateStep(ctx context.Context, step StepContext) (*StepRecord, error) {
	rec := &StepRecord{
		Label:     step.Label,
		Start:     e.clock.Now(),
		Initial:   map[Quantity]float64{},
		FirstIter: 1,
		LastIter:  e.nTr,
	}

	snap, err := e.provider.Sample(ctx)
	if err != nil {
		return nil, err
	}
	for _, q := range e.meas {
		v, err := Aggregate(snap, q, e.eut.Phases)
		if err != nil {
			e.log.Warn("initial measurement not recorded",
				zap.String("step", step.Label), zap.String("quantity", string(q)), zap.Error(err))
			continue
		}
		rec.Initial[q] = v
	}
	e.log.Info("step started", zap.String("step", step.Label),
		zap.String("function", string(e.fn)), zap.Float64("tr", e.tr))

	// Sample n_tr scored ticks plus one settling tick.
	for i := 1; i <= e.nTr+1; i++ {
		deadline := rec.Start.Add(time.Duration(float64(i) * e.tr * float64(time.Second)))
		if wait := deadline.Sub(e.clock.Now()); wait > 0 {
			e.log.Debug("waiting for next response-time tick",
				zap.String("step", step.Label), zap.Int("iter", i), zap.Duration("wait", wait))
			if err := e.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		iter := Iteration{
			Index:     i,
			Timestamp: e.clock.Now(),
			Measured:  map[Quantity]float64{},
			XTargets:  map[Quantity]float64{},
			Windows:   map[Quantity]Window{},
			Accuracy:  map[Quantity]Verdict{},
		}
		snap, err := e.provider.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.log.Warn("sampling failed, leaving iteration unset",
				zap.String("step", step.Label), zap.Int("iter", i), zap.Error(err))
			rec.Iters = append(rec.Iters, iter)
			continue
		}
		for _, q := range e.meas {
			v, err := Aggregate(snap, q, e.eut.Phases)
			if err != nil {
				e.log.Warn("measurement not recorded",
					zap.String("step", step.Label), zap.String("quantity", string(q)), zap.Error(err))
				continue
			}
			iter.Measured[q] = v
		}
		for _, q := range e.xs {
			if t, ok := step.Targets[q]; ok {
				iter.XTargets[q] = t
			}
		}
		for yq, fn := range e.ys {
			w, err := e.window(fn, step, iter.Measured)
			if err != nil {
				if errors.Is(err, ErrConfiguration) {
					return nil, err
				}
				e.log.Warn("target window not computed",
					zap.String("step", step.Label), zap.String("quantity", string(yq)), zap.Error(err))
				continue
			}
			iter.Windows[yq] = w
			e.log.Debug("target window",
				zap.String("step", step.Label), zap.Int("iter", i), zap.String("quantity", string(yq)),
				zap.Float64("target", w.Target), zap.Float64("min", w.Min), zap.Float64("max", w.Max))
		}
		rec.Iters = append(rec.Iters, iter)
	}

	if e.mode.OpenLoop {
		rec.OpenLoop = e.openLoopVerdict(rec)
	}
	if e.mode.FirstIterAccuracy || e.mode.LastIterAccuracy {
		e.accuracyVerdicts(rec)
	}
	return rec, nil
}

// window dispatches the target/min/max computation for one tracked y
// quantity. The LAP combined procedure scores a different law per step:
// the power limit itself at step C, the frequency droop at D and E, and
// the Watt-Var characteristic at F.
func (e *Evaluator) window(fn Function, step StepContext, meas map[Quantity]float64) (Window, error) {
	need := func(q Quantity) (float64, error) {
		v, ok := meas[q]
		if !ok {
			return 0, &MeasurementError{Quantity: q, Err: errors.New("no aggregated reading")}
		}
		return v, nil
	}

	switch fn {
	case VV:
		v, err := need(Voltage)
		if err != nil {
			return Window{}, err
		}
		return e.calc.VVWindow(v)
	case VW:
		v, err := need(Voltage)
		if err != nil {
			return Window{}, err
		}
		return e.calc.VWWindow(v)
	case WV:
		p, err := need(ActivePower)
		if err != nil {
			return Window{}, err
		}
		return e.calc.WVWindow(p)
	case FW:
		f, err := need(Frequency)
		if err != nil {
			return Window{}, err
		}
		return e.calc.FWWindow(f)
	case CPF:
		pf, ok := step.Targets[PowerFactor]
		if !ok || pf == 0 {
			return Window{}, configErrorf("step %s has no power-factor setpoint", step.Label)
		}
		p, err := need(ActivePower)
		if err != nil {
			return Window{}, err
		}
		return e.calc.CPFWindow(p, pf), nil
	case CRP:
		q, ok := step.Targets[ReactivePower]
		if !ok {
			return Window{}, configErrorf("step %s has no reactive-power setpoint", step.Label)
		}
		return e.calc.CRPWindow(q), nil
	case PRI:
		v, err := need(Voltage)
		if err != nil {
			return Window{}, err
		}
		f, err := need(Frequency)
		if err != nil {
			return Window{}, err
		}
		return e.calc.PRIWindow(v, f)
	case LAP:
		switch step.Label {
		case "Step C":
			frac, ok := step.Targets[ActivePower]
			if !ok {
				return Window{}, configErrorf("step %s has no power-limit setpoint", step.Label)
			}
			return e.calc.LAPWindow(frac * 100), nil
		case "Step D", "Step E":
			f, err := need(Frequency)
			if err != nil {
				return Window{}, err
			}
			return e.calc.FWWindow(f)
		case "Step F":
			p, err := need(ActivePower)
			if err != nil {
				return Window{}, err
			}
			return e.calc.WVWindow(p)
		default:
			return Window{}, configErrorf("limit-active-power procedure does not score %q", step.Label)
		}
	default:
		return Window{}, configErrorf("no target law for function %q", fn)
	}
}

// openLoopResponse is the first-order response y(d) for a change from y0
// to ySS with open-loop response time tr: the time constant is chosen so
// the response covers 90% of the change at d = tr.
func openLoopResponse(y0, ySS, d, tr float64) float64 {
	tau := tr / -math.Log(0.1)
	frac := 1 - math.Exp(-d/tau)
	return y0 + (ySS-y0)*frac
}

// openLoopVerdict scores the transient response at the first tick. The
// expected value follows the first-order model; the band perturbs the
// elapsed duration by the time accuracy and widens by the y accuracy.
// Constant reactive power is scored one-sided from a zero start.
func (e *Evaluator) openLoopVerdict(rec *StepRecord) Verdict {
	if len(rec.Iters) == 0 {
		return Inconclusive
	}
	first := rec.Iters[0]

	var yq Quantity
	for q := range e.ys {
		yq = q
	}
	w, okW := first.Windows[yq]
	yMeas, okM := first.Measured[yq]
	if !okW || !okM {
		return Inconclusive
	}

	duration := first.Timestamp.Sub(rec.Start).Seconds()

	var yStart, mraT float64
	if e.fn == CRP {
		yStart = 0
		mraT = 0
	} else {
		var ok bool
		yStart, ok = rec.Initial[yq]
		if !ok {
			return Inconclusive
		}
		mraT = e.eut.MRA.Of(Duration) * duration
	}

	ySS := w.Target
	yTarget := openLoopResponse(yStart, ySS, duration, e.tr)
	mraY := e.eut.MRA.Of(yq)

	increasing := yStart <= yTarget
	var yMin, yMax float64
	if increasing {
		yMin = openLoopResponse(yStart, ySS, duration-1.5*mraT, e.tr) - 1.5*mraY
		yMax = openLoopResponse(yStart, ySS, duration+1.5*mraT, e.tr) + 1.5*mraY
	} else {
		yMin = openLoopResponse(yStart, ySS, duration+1.5*mraT, e.tr) - 1.5*mraY
		yMax = openLoopResponse(yStart, ySS, duration-1.5*mraT, e.tr) + 1.5*mraY
	}

	verdict := Fail
	if e.fn == CRP {
		if increasing {
			if yMin <= yMeas {
				verdict = Pass
			}
		} else if yMeas <= yMax {
			verdict = Pass
		}
	} else if yMin <= yMeas && yMeas <= yMax {
		verdict = Pass
	}

	e.log.Info("open-loop response scored",
		zap.String("step", rec.Label), zap.Float64("duration", duration),
		zap.Float64("y_target", yTarget), zap.Float64("y_min", yMin),
		zap.Float64("y_max", yMax), zap.Float64("y_meas", yMeas),
		zap.String("verdict", string(verdict)))
	return verdict
}

// accuracyVerdicts scores the steady-state window at the first and last
// ticks the criteria mode enables.
func (e *Evaluator) accuracyVerdicts(rec *StepRecord) {
	for idx := range rec.Iters {
		iter := &rec.Iters[idx]
		score := (iter.Index == rec.FirstIter && e.mode.FirstIterAccuracy) ||
			(iter.Index == rec.LastIter && e.mode.LastIterAccuracy)
		if !score {
			continue
		}
		for yq := range e.ys {
			w, okW := iter.Windows[yq]
			yMeas, okM := iter.Measured[yq]
			switch {
			case !okW || !okM:
				iter.Accuracy[yq] = Inconclusive
			case w.Contains(yMeas):
				iter.Accuracy[yq] = Pass
			default:
				iter.Accuracy[yq] = Fail
			}
			e.log.Info("steady-state accuracy scored",
				zap.String("step", rec.Label), zap.Int("iter", iter.Index),
				zap.String("quantity", string(yq)),
				zap.Float64("min", w.Min), zap.Float64("meas", yMeas), zap.Float64("max", w.Max),
				zap.String("verdict", string(iter.Accuracy[yq])))
		}
	}
}

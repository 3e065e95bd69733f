package p1547

import (
	"context"
	"fmt"
)

// Snapshot is one frozen set of readings taken by a data-acquisition
// system. Phase indexes are 1-based.
type Snapshot interface {
	Read(q Quantity, phase int) (float64, error)
}

// MeasurementProvider produces measurement snapshots on demand. Sample
// blocks until a coherent snapshot is available or ctx is done.
type MeasurementProvider interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// Aggregate reduces the per-phase readings of q in snap to the single
// figure the pass/fail criteria use: powers are summed across phases,
// voltages averaged, frequency and power factor taken from the first
// phase. Provider failures come back wrapped as a MeasurementError.
func Aggregate(snap Snapshot, q Quantity, phases Phases) (float64, error) {
	n := int(phases)
	if n < 1 || n > 3 {
		return 0, &MeasurementError{Quantity: q, Err: fmt.Errorf("unsupported phase configuration %d", phases)}
	}

	switch q {
	case Frequency, PowerFactor:
		v, err := snap.Read(q, 1)
		if err != nil {
			return 0, &MeasurementError{Quantity: q, Err: err}
		}
		return round4(v), nil
	case Voltage:
		var sum float64
		for ph := 1; ph <= n; ph++ {
			v, err := snap.Read(q, ph)
			if err != nil {
				return 0, &MeasurementError{Quantity: q, Err: err}
			}
			sum += v
		}
		return round4(sum / float64(n)), nil
	case ActivePower, ReactivePower:
		var sum float64
		for ph := 1; ph <= n; ph++ {
			v, err := snap.Read(q, ph)
			if err != nil {
				return 0, &MeasurementError{Quantity: q, Err: err}
			}
			sum += v
		}
		return round4(sum), nil
	default:
		return 0, &MeasurementError{Quantity: q, Err: fmt.Errorf("quantity %q cannot be aggregated", q)}
	}
}

// StaticSnapshot is an in-memory Snapshot for tests and dry runs. Keys are
// built from quantity and 1-based phase.
type StaticSnapshot map[string]float64

func snapshotKey(q Quantity, phase int) string {
	return fmt.Sprintf("%s_%d", q, phase)
}

// Set stores a reading for one quantity on one phase.
func (s StaticSnapshot) Set(q Quantity, phase int, value float64) {
	s[snapshotKey(q, phase)] = value
}

// SetAll stores the same reading on phases 1..n.
func (s StaticSnapshot) SetAll(q Quantity, n int, value float64) {
	for ph := 1; ph <= n; ph++ {
		s.Set(q, ph, value)
	}
}

func (s StaticSnapshot) Read(q Quantity, phase int) (float64, error) {
	v, ok := s[snapshotKey(q, phase)]
	if !ok {
		return 0, fmt.Errorf("no reading for %s phase %d", q, phase)
	}
	return v, nil
}

// StaticProvider returns a fixed sequence of snapshots, then keeps
// repeating the last one. It implements MeasurementProvider for tests.
type StaticProvider struct {
	Snapshots []StaticSnapshot
	next      int
}

func (p *StaticProvider) Sample(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.Snapshots) == 0 {
		return nil, fmt.Errorf("static provider has no snapshots")
	}
	snap := p.Snapshots[p.next]
	if p.next < len(p.Snapshots)-1 {
		p.next++
	}
	return snap, nil
}

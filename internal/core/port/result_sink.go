package port

import (
	"context"

	"github.com/enerflux/der1547eval/internal/core/domain"
)

// ResultSink receives run lifecycle updates and per-step results as they
// are produced.
type ResultSink interface {
	PublishRunState(ctx context.Context, run *domain.Run) error
	PublishStepResult(ctx context.Context, run *domain.Run, step domain.StepResult) error
}

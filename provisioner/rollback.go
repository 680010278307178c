package provisioner

import (
	"context"

	"serverboi-provisioner/metrics"

	"github.com/rs/zerolog"
)

type undo struct {
	step string
	fn   func(context.Context) error
}

// rollback collects undo actions for resources created so far.
type rollback struct {
	steps []undo
}

func (r *rollback) push(step string, fn func(context.Context) error) {
	r.steps = append(r.steps, undo{step: step, fn: fn})
}

// run executes the undo actions newest first. It keeps going past failures;
// whatever cannot be undone is logged for the operator.
func (r *rollback) run(ctx context.Context, logger zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(r.steps) - 1; i >= 0; i-- {
		s := r.steps[i]
		if err := s.fn(ctx); err != nil {
			metrics.RollbacksTotal.WithLabelValues(s.step, "error").Inc()
			logger.Error().Err(err).Str("step", s.step).Msg("provisioner: rollback step failed; resource may be orphaned")
			continue
		}
		metrics.RollbacksTotal.WithLabelValues(s.step, "ok").Inc()
		logger.Info().Str("step", s.step).Msg("provisioner: rolled back")
	}
	r.steps = nil
}

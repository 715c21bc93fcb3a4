package hmsAuth

import (
	"context"

	"go.uber.org/zap"
)

// saga accumulates undo steps as the forward steps of a multi-write
// operation succeed. rollback runs them newest first. Every undo step must
// be idempotent so a retried rollback is safe.
type saga struct {
	engine *Engine
	op     string
	fields []zap.Field
	steps  []sagaStep
}

type sagaStep struct {
	name string
	undo func(ctx context.Context) error
}

func (e *Engine) newSaga(op string, fields ...zap.Field) *saga {
	return &saga{engine: e, op: op, fields: fields}
}

func (s *saga) add(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, undo: undo})
}

// rollback undoes every recorded step. A failing step is logged at DPanic
// with enough context for manual repair and does not stop the remaining
// steps. It reports whether every step succeeded.
func (s *saga) rollback(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)
	ok := true
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			ok = false
			s.engine.metricInc(MetricCompensationFailure)
			fields := append([]zap.Field{
				zap.String("op", s.op),
				zap.String("step", step.name),
				zap.Error(err),
			}, s.fields...)
			s.engine.logger.DPanic("compensation failed; manual remediation required", fields...)
			s.engine.emitAudit(ctx, auditEventCompensationFailure, false, auditSubject{}, err, func() map[string]string {
				return map[string]string{"op": s.op, "step": step.name}
			})
		}
	}
	s.steps = nil
	return ok
}

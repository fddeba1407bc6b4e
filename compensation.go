package assemble

import (
	"context"

	"go.uber.org/zap"
)

// runCompensation invokes one operation's compensation.  The error, if any,
// is wrapped in a CompensationError and returned for aggregation; it is
// never propagated standalone and never retried.
func (s *Saga) runCompensation(ctx context.Context, op *Operation) (any, error) {
	s.journal.record(op.index, op.name, 0, EventUndoStarted)
	output, err := op.compensation.invoke(ctx, s.results)
	if err != nil {
		s.journal.record(op.index, op.name, 0, EventUndoFailed)
		s.log.Warn("compensation failed",
			zap.Int("operation", op.index),
			zap.String("name", op.name),
			zap.Error(err),
		)
		return nil, CompensationFailed(err)
	}

	s.journal.record(op.index, op.name, 0, EventUndoSucceeded)
	s.log.Debug("compensation succeeded",
		zap.Int("operation", op.index),
		zap.String("name", op.name),
	)
	return output, nil
}

// aggregateCompensation folds the collected compensation outputs and errors
// into the shape SagaError carries: an empty collection becomes nil, so
// "no compensation ran" and "every compensation succeeded" stay
// distinguishable.
func aggregateCompensation(results []any, errs []error) ([]any, []error) {
	if len(results) == 0 {
		results = nil
	}
	if len(errs) == 0 {
		errs = nil
	}
	return results, errs
}

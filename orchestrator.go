package assemble

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Orchestrate executes the declared actions strictly in declaration order
// on the calling goroutine.  Each action runs through the retry budget; on
// ultimate failure the completed operations are compensated synchronously
// in reverse declaration order, each at most once, and a single *SagaError
// is returned.  A successful run returns every action's output in
// declaration order.
//
// There is no suspension and no cancellation once started: a hung action
// blocks the saga indefinitely.
func (s *Saga) Orchestrate(ctx context.Context) ([]any, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.log.Info("saga started", zap.String("mode", "orchestrator"), zap.Int("operations", len(s.operations)))

	order, err := s.plan.order()
	if err != nil {
		return nil, fmt.Errorf("failed to derive execution order: %w", err)
	}

	outputs := make([]any, 0, len(order))
	for _, id := range order {
		op := s.operations[id]
		output, err := s.runAction(ctx, op)
		if err != nil {
			compResults, compErrs := s.compensateReverse(ctx, op.index)
			s.log.Info("saga failed and unwound",
				zap.Int("operation", op.index),
				zap.String("name", op.name),
			)
			return nil, &SagaError{
				RunID:               s.id,
				OperationIndex:      op.index,
				OperationName:       op.name,
				Err:                 err,
				CompensationResults: compResults,
				CompensationErrors:  compErrs,
			}
		}
		outputs = append(outputs, output)
	}

	s.log.Info("saga succeeded", zap.Int("operations", len(outputs)))
	return outputs, nil
}

// compensateReverse runs the compensations for operations declared before
// failedIndex, in strict reverse declaration order.  Operations without a
// compensation are skipped.  Every compensation error is caught
// individually so the sweep always completes.
func (s *Saga) compensateReverse(ctx context.Context, failedIndex int) ([]any, []error) {
	var (
		results []any
		errs    []error
	)
	for i := failedIndex - 1; i >= 0; i-- {
		op := s.operations[i]
		if op.compensation == nil {
			continue
		}
		output, err := s.runCompensation(ctx, op)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, output)
	}
	return aggregateCompensation(results, errs)
}

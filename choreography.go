package assemble

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// stepOutcome is the tagged result of one concurrently executed task: a
// success carrying the action's value, or a failure carrying its error.
type stepOutcome struct {
	index int
	name  string
	value any
	err   error
}

// Choreograph executes all declared actions as independent concurrent
// tasks on a worker pool sized to the operation count.  Every task runs
// through the retry budget and is awaited at a single barrier; there is no
// cancellation of in-flight siblings on first failure.
//
// With no failures the outputs are returned ordered by declaration index,
// not completion order.  On any failure the compensations of the succeeded
// operations run concurrently on a pool sized to the eligible count, each
// error caught individually, and a single *SagaError is returned reporting
// the failed operation with the lowest declaration index.
//
// No ordering is guaranteed between actions, so cross-step reads of the
// accumulator in this mode observe completion order; see Results.
func (s *Saga) Choreograph(ctx context.Context) ([]any, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.log.Info("saga started", zap.String("mode", "choreography"), zap.Int("operations", len(s.operations)))

	ids := s.plan.operationIDs()
	outcomes := xsync.NewMapOf[int, stepOutcome]()

	// The pool lives for this call only and is torn down once the barrier
	// releases.  Tasks record tagged outcomes instead of returning errors,
	// so one failure never short-circuits the join.
	pool := &errgroup.Group{}
	pool.SetLimit(len(ids))
	for _, id := range ids {
		op := s.operations[id]
		pool.Go(func() error {
			value, err := s.runAction(ctx, op)
			outcomes.Store(op.index, stepOutcome{
				index: op.index,
				name:  op.name,
				value: value,
				err:   err,
			})
			return nil
		})
	}
	_ = pool.Wait()

	var (
		succeeded []stepOutcome
		failed    []stepOutcome
	)
	for _, id := range ids {
		outcome, _ := outcomes.Load(int(id))
		if outcome.err != nil {
			failed = append(failed, outcome)
			continue
		}
		succeeded = append(succeeded, outcome)
	}

	if len(failed) == 0 {
		outputs := make([]any, 0, len(succeeded))
		for _, outcome := range succeeded {
			outputs = append(outputs, outcome.value)
		}
		s.log.Info("saga succeeded", zap.Int("operations", len(outputs)))
		return outputs, nil
	}

	compResults, compErrs := s.compensateConcurrent(ctx, succeeded)

	// Multiple simultaneous failures are reported by the one with the
	// lowest declaration index; ids were walked in ascending order above.
	first := failed[0]
	s.log.Info("saga failed and unwound",
		zap.Int("operation", first.index),
		zap.String("name", first.name),
		zap.Int("failed", len(failed)),
	)
	return nil, &SagaError{
		RunID:               s.id,
		OperationIndex:      first.index,
		OperationName:       first.name,
		Err:                 first.err,
		CompensationResults: compResults,
		CompensationErrors:  compErrs,
	}
}

// compensateConcurrent runs the compensations of the succeeded operations
// as independent concurrent tasks.  Operations without a compensation are
// skipped; the pool is sized to the eligible count and every task is
// awaited before aggregation.  Outputs and errors are aggregated in
// ascending declaration-index order.
func (s *Saga) compensateConcurrent(ctx context.Context, succeeded []stepOutcome) ([]any, []error) {
	var eligible []*Operation
	for _, outcome := range succeeded {
		op := s.operations[outcome.index]
		if op.compensation != nil {
			eligible = append(eligible, op)
		}
	}
	if len(eligible) == 0 {
		return aggregateCompensation(nil, nil)
	}

	outcomes := xsync.NewMapOf[int, stepOutcome]()
	pool := &errgroup.Group{}
	pool.SetLimit(len(eligible))
	for _, op := range eligible {
		op := op
		pool.Go(func() error {
			value, err := s.runCompensation(ctx, op)
			outcomes.Store(op.index, stepOutcome{
				index: op.index,
				name:  op.name,
				value: value,
				err:   err,
			})
			return nil
		})
	}
	_ = pool.Wait()

	var (
		results []any
		errs    []error
	)
	for _, op := range eligible {
		outcome, _ := outcomes.Load(op.index)
		if outcome.err != nil {
			errs = append(errs, outcome.err)
			continue
		}
		results = append(results, outcome.value)
	}
	return aggregateCompensation(results, errs)
}

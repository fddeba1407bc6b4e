package assemble

import (
	"context"

	"go.uber.org/zap"
)

// runAction invokes one operation's action through the saga's retry budget.
// Every attempt sees the current accumulator.  On success the output is
// appended to the accumulator and returned immediately; after the budget is
// exhausted the latest error is returned wrapped in an ActionError.  There
// is no delay between attempts.
func (s *Saga) runAction(ctx context.Context, op *Operation) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if attempt == 1 {
			s.journal.record(op.index, op.name, attempt, EventStarted)
		} else {
			s.journal.record(op.index, op.name, attempt, EventRetried)
		}

		output, err := op.action.invoke(ctx, s.results)
		if err != nil {
			lastErr = err
			s.log.Warn("action attempt failed",
				zap.Int("operation", op.index),
				zap.String("name", op.name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		s.results.append(op.name, output)
		s.journal.record(op.index, op.name, attempt, EventSucceeded)
		return output, nil
	}

	s.journal.record(op.index, op.name, s.retryAttempts, EventFailed)
	s.log.Error("action failed after retry exhaustion",
		zap.Int("operation", op.index),
		zap.String("name", op.name),
		zap.Int("attempts", s.retryAttempts),
		zap.Error(lastErr),
	)
	return nil, ActionFailed(lastErr)
}

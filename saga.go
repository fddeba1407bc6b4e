package assemble

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Saga coordinates a sequence of reversible operations.  Operations are
// declared with Append before the saga runs, then executed once with either
// Orchestrate (sequential) or Choreograph (concurrent).  A saga is
// single-use: the accumulated results persist across the run, so a second
// run is refused.
type Saga struct {
	id            uuid.UUID
	name          string
	retryAttempts int
	log           *zap.Logger

	mu         sync.Mutex
	started    bool
	operations []*Operation
	plan       *plan
	results    *Results
	journal    *Journal
}

type config struct {
	retryAttempts int
	name          string
	log           *zap.Logger
}

// Option configures a saga at construction time.
type Option func(*config)

// WithRetryAttempts sets the maximum number of invocations of each action
// before its failure is final.  Must be at least 1; the default is 1 (no
// retries).  Retries are scoped to a single action, never to the whole
// saga, and carry no inter-attempt delay.
func WithRetryAttempts(attempts int) Option {
	return func(c *config) {
		c.retryAttempts = attempts
	}
}

// WithName sets a human-readable name for the saga, used in log fields.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger for step lifecycle events.  The default is a
// no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// New constructs an empty saga.  It fails with a ConfigurationError when
// the retry attempt count is below one.
func New(opts ...Option) (*Saga, error) {
	cfg := config{
		retryAttempts: 1,
		name:          "saga",
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.retryAttempts < 1 {
		return nil, configurationFailed("retry attempts must be at least 1, got %d", cfg.retryAttempts)
	}

	id := uuid.New()
	return &Saga{
		id:            id,
		name:          cfg.name,
		retryAttempts: cfg.retryAttempts,
		log:           cfg.log.With(zap.String("saga", cfg.name), zap.String("run_id", id.String())),
		plan:          newPlan(),
		results:       newResults(),
		journal:       newJournal(id),
	}, nil
}

// ID returns the run identifier assigned at construction.
func (s *Saga) ID() uuid.UUID {
	return s.id
}

// Append declares one operation.  It takes an action alone or an action
// followed by its compensation.  Each value is a bare function, a Call
// built by Bind with pre-bound positional arguments, or a slice whose first
// element is the function and whose remainder are the arguments.
//
// Functions may optionally declare a leading context.Context and a
// *Results parameter; both are injected at invocation, ahead of any bound
// arguments.  Supported return shapes are none, (T), (error), and
// (T, error).
//
// Append fails with a DeclarationError, leaving the registry untouched,
// when no values are given, more than two are given, or a value does not
// normalize to a bound function.
func (s *Saga) Append(values ...any) error {
	if len(values) == 0 {
		return declarationFailed("operation cannot be empty")
	}
	if len(values) > 2 {
		return declarationFailed("only an action and a compensation are allowed, got %d values", len(values))
	}

	action, err := normalizeValue(values[0])
	if err != nil {
		return err
	}
	var compensation *boundCall
	if len(values) == 2 {
		if compensation, err = normalizeValue(values[1]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return configurationFailed("cannot declare operations after the saga has executed")
	}

	op := &Operation{
		index:        len(s.operations),
		name:         action.name,
		action:       action,
		compensation: compensation,
	}
	s.operations = append(s.operations, op)
	s.plan.add(op)
	return nil
}

// Operations returns the declared operations in declaration order.
func (s *Saga) Operations() []*Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]*Operation, len(s.operations))
	copy(ops, s.operations)
	return ops
}

// Results returns the shared accumulator for this run.
func (s *Saga) Results() *Results {
	return s.results
}

// Journal returns the event log for this run.
func (s *Saga) Journal() *Journal {
	return s.journal
}

// ExportPlanToDot renders the execution plan in Graphviz .dot format.
func (s *Saga) ExportPlanToDot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.plan.exportToDot()
}

// begin transitions the saga into its single run.  It fails with a
// ConfigurationError when no operations were declared or the saga has
// already executed.
func (s *Saga) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.operations) == 0 {
		return configurationFailed("declare operations first to execute the saga")
	}
	if s.started {
		return configurationFailed("saga has already executed; construct a new one per run")
	}
	s.started = true
	return nil
}

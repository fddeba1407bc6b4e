package assemble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestrateReturnsOutputsInDeclarationOrder(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, saga.Append(Call{
			Fn:   func() (int, error) { return i, nil },
			Name: fmt.Sprintf("step_%d", i),
		}))
	}

	outputs, err := saga.Orchestrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2, 3, 4}, outputs)
}

func TestOrchestrateCompensatesInReverse(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	var trace []string
	step := func(name string, fail bool) Call {
		return Call{
			Fn: func() (string, error) {
				if fail {
					return "", fmt.Errorf("%s exploded", name)
				}
				trace = append(trace, name)
				return name, nil
			},
			Name: name,
		}
	}
	undo := func(name string) Call {
		return Call{
			Fn:   func() (string, error) { trace = append(trace, "undo_"+name); return "undo_" + name, nil },
			Name: "undo_" + name,
		}
	}

	require.NoError(t, saga.Append(step("a", false), undo("a")))
	require.NoError(t, saga.Append(step("b", false), undo("b")))
	require.NoError(t, saga.Append(step("c", true), undo("c")))
	require.NoError(t, saga.Append(step("d", false), undo("d")))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, 2, sagaErr.OperationIndex)
	assert.Equal(t, "c", sagaErr.OperationName)

	// b and a compensated in that exact reverse order; d never executed,
	// c's own compensation never ran.
	assert.Equal(t, []string{"a", "b", "undo_b", "undo_a"}, trace)
	assert.Equal(t, []any{"undo_b", "undo_a"}, sagaErr.CompensationResults)
	assert.Nil(t, sagaErr.CompensationErrors)
}

func TestOrchestrateSkipsAbsentCompensations(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	var undone []string
	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "solo", nil }, Name: "solo"},
	))
	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "paired", nil }, Name: "paired"},
		Call{Fn: func() (string, error) { undone = append(undone, "paired"); return "undo_paired", nil }, Name: "undo_paired"},
	))
	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "", errors.New("boom") }, Name: "boom"},
	))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, []string{"paired"}, undone, "operations without a compensation are skipped")
	assert.Equal(t, []any{"undo_paired"}, sagaErr.CompensationResults)
}

func TestOrchestrateCompensationFieldsAbsentWhenNoneEligible(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	require.NoError(t, saga.Append(Call{
		Fn:   func() error { return errors.New("first step fails") },
		Name: "first",
	}))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Nil(t, sagaErr.CompensationResults, "absent, not an empty collection")
	assert.Nil(t, sagaErr.CompensationErrors, "absent, not an empty collection")
}

func TestOrchestrateCompensationErrorsAreCaughtIndividually(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	var swept []string
	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "a", nil }, Name: "a"},
		Call{Fn: func() (string, error) { swept = append(swept, "undo_a"); return "undo_a", nil }, Name: "undo_a"},
	))
	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "b", nil }, Name: "b"},
		Call{Fn: func() (string, error) { return "", errors.New("undo b failed") }, Name: "undo_b"},
	))
	require.NoError(t, saga.Append(
		Call{Fn: func() error { return errors.New("c failed") }, Name: "c"},
	))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)

	// The failing undo_b did not abort the sweep: undo_a still ran.
	assert.Equal(t, []string{"undo_a"}, swept)
	assert.Equal(t, []any{"undo_a"}, sagaErr.CompensationResults)
	require.Len(t, sagaErr.CompensationErrors, 1)

	var compErr *CompensationError
	assert.ErrorAs(t, sagaErr.CompensationErrors[0], &compErr)
	assert.Contains(t, sagaErr.CompensationErrors[0].Error(), "undo b failed")

	// The compensation error never masks the action error.
	var actionErr *ActionError
	require.ErrorAs(t, sagaErr.Err, &actionErr)
	assert.Contains(t, sagaErr.Err.Error(), "c failed")
}

func TestOrchestrateCrossStepDataPassing(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	require.NoError(t, saga.Append(Call{
		Fn:   func() (string, error) { return "txn-42", nil },
		Name: "debit",
	}))
	require.NoError(t, saga.Append(Call{
		Fn: func(res *Results) (string, error) {
			txn, ok := LookupAs[string](res, "debit")
			if !ok {
				return "", errors.New("debit output not visible")
			}
			return "reserve-after-" + txn, nil
		},
		Name: "reserve",
	}))

	outputs, err := saga.Orchestrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"txn-42", "reserve-after-txn-42"}, outputs)
}

// The worked example from the package documentation: debit/credit,
// reserve/release, and a ship step with no compensation that fails.
func TestOrchestrateFundsTransferExample(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	debit := Call{Fn: func() (string, error) { return "debited", nil }, Name: "debit"}
	credit := Call{Fn: func() (string, error) { return "credited", nil }, Name: "credit"}
	reserve := Call{Fn: func() (string, error) { return "reserved", nil }, Name: "reserve"}
	release := Call{Fn: func() (string, error) { return "released", nil }, Name: "release"}
	ship := Call{Fn: func() (string, error) { return "", errors.New("carrier rejected") }, Name: "ship"}

	require.NoError(t, saga.Append(debit, credit))
	require.NoError(t, saga.Append(reserve, release))
	require.NoError(t, saga.Append(ship))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, 2, sagaErr.OperationIndex)
	assert.Equal(t, "ship", sagaErr.OperationName)
	assert.Equal(t, []any{"released", "credited"}, sagaErr.CompensationResults,
		"release's result then credit's result, in that order")
	assert.Nil(t, sagaErr.CompensationErrors)
}

func TestOrchestrateAccumulatorSurvivesCompensation(t *testing.T) {
	saga, err := New()
	require.NoError(t, err)

	require.NoError(t, saga.Append(
		Call{Fn: func() (string, error) { return "kept", nil }, Name: "keep"},
		Call{Fn: func() (string, error) { return "undo", nil }, Name: "undo_keep"},
	))
	require.NoError(t, saga.Append(Call{
		Fn:   func() error { return errors.New("fail") },
		Name: "fail",
	}))

	_, err = saga.Orchestrate(context.Background())
	require.Error(t, err)

	// Compensation never rolls the accumulator back.
	assert.Equal(t, []any{"kept"}, saga.Results().All())
}

package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, guard Guard, handler Handler) *Machine {
	t.Helper()
	m := New()
	if handler == nil {
		handler = func(ctx context.Context, tc *Context) (*Result, error) {
			return &Result{DocumentNumber: "WO-000001"}, nil
		}
	}
	m.Register(KindWorkOrder, "draft", "issued", "issue", guard, handler)
	return m
}

func TestTransitionUndefinedEdge(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	_, err := m.Transition(context.Background(), KindWorkOrder, "issued", "draft", &Context{})

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, KindWorkOrder, invalid.Kind)
	assert.Equal(t, "issued", invalid.From)
	assert.Equal(t, "draft", invalid.To)
}

func TestTransitionGuardRejection(t *testing.T) {
	handlerRan := false
	m := newTestMachine(t,
		func(ctx context.Context, tc *Context) error {
			return errors.New("entity is not ready")
		},
		func(ctx context.Context, tc *Context) (*Result, error) {
			handlerRan = true
			return &Result{}, nil
		},
	)

	_, err := m.Transition(context.Background(), KindWorkOrder, "draft", "issued", &Context{})

	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, "entity is not ready", guardErr.Reason)
	assert.False(t, handlerRan, "handler must not run after a guard rejection")
}

func TestTransitionHandlerErrorPreservesCause(t *testing.T) {
	cause := errors.New("sequence store unavailable")
	m := newTestMachine(t, nil,
		func(ctx context.Context, tc *Context) (*Result, error) {
			return nil, cause
		},
	)

	_, err := m.Transition(context.Background(), KindWorkOrder, "draft", "issued", &Context{})

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.ErrorIs(t, err, cause)

	// Handler failure must not look like a guard rejection.
	var guardErr *GuardError
	assert.False(t, errors.As(err, &guardErr))
}

func TestTransitionSuccessReturnsHandlerPayload(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	result, err := m.Transition(context.Background(), KindWorkOrder, "draft", "issued", &Context{})

	require.NoError(t, err)
	assert.Equal(t, "WO-000001", result.DocumentNumber)
	assert.Equal(t, "issued", result.Status)
}

func TestTransitionSelfEdge(t *testing.T) {
	m := New()
	m.Register(KindPaymentCertificate, "partially_paid", "partially_paid", "record_partial_payment", nil,
		func(ctx context.Context, tc *Context) (*Result, error) {
			return &Result{}, nil
		},
	)

	result, err := m.Transition(context.Background(), KindPaymentCertificate, "partially_paid", "partially_paid", &Context{})

	require.NoError(t, err)
	assert.Equal(t, "partially_paid", result.Status)
}

func TestRegisterDuplicateEdgePanics(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	assert.Panics(t, func() {
		m.Register(KindWorkOrder, "draft", "issued", "issue", nil,
			func(ctx context.Context, tc *Context) (*Result, error) { return nil, nil })
	})
}

func TestCan(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	assert.True(t, m.Can(KindWorkOrder, "draft", "issued"))
	assert.False(t, m.Can(KindWorkOrder, "issued", "revised"))
	assert.False(t, m.Can(KindPaymentCertificate, "draft", "issued"))
}

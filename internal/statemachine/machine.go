package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"gorm.io/gorm"
)

// EntityKind identifies which ledger entity a transition belongs to
type EntityKind string

const (
	KindWorkOrder          EntityKind = "work_order"
	KindPaymentCertificate EntityKind = "payment_certificate"
)

// Key addresses one registered transition edge
type Key struct {
	Kind EntityKind
	From string
	To   string
}

// Context carries the transactional session and actor through a transition.
// Guards and handlers run inside the caller's transaction; any error aborts
// the whole span.
type Context struct {
	Tx     *gorm.DB
	Actor  string
	Entity interface{}
}

// Result is the handler's payload returned to the caller for audit logging
// and response construction.
type Result struct {
	DocumentNumber string
	Status         string
	Fields         map[string]string
}

// Guard is a predicate over entity and context. A non-nil error rejects the
// transition before any side effect is applied; the reason is surfaced
// distinctly from handler failures.
type Guard func(ctx context.Context, tc *Context) error

// Handler performs the entity-specific side effects of a transition:
// sequence assignment, derived-value computation, status payload.
type Handler func(ctx context.Context, tc *Context) (*Result, error)

type transition struct {
	event   string
	guard   Guard
	handler Handler
}

// Machine is the finite transition table keyed by (kind, from, to), resolved
// once at startup. Undefined edges and guard failures are rejected without
// side effects.
type Machine struct {
	table  map[Key]transition
	events map[EntityKind]fsm.Events
}

// New creates an empty machine; Register is called during service wiring.
func New() *Machine {
	return &Machine{
		table:  make(map[Key]transition),
		events: make(map[EntityKind]fsm.Events),
	}
}

// Register binds a guard and handler to the (kind, from → to) edge. The
// guard may be nil; the handler must not be.
func (m *Machine) Register(kind EntityKind, from, to, event string, guard Guard, handler Handler) {
	key := Key{Kind: kind, From: from, To: to}
	if _, exists := m.table[key]; exists {
		panic(fmt.Sprintf("statemachine: duplicate transition %s %s -> %s", kind, from, to))
	}
	if handler == nil {
		panic(fmt.Sprintf("statemachine: nil handler for %s %s -> %s", kind, from, to))
	}
	m.table[key] = transition{event: event, guard: guard, handler: handler}
	m.events[kind] = append(m.events[kind], fsm.EventDesc{
		Name: event,
		Src:  []string{from},
		Dst:  to,
	})
}

// Transition resolves the edge (current → target) for the entity kind,
// evaluates the guard, and runs the handler inside the caller's transaction.
// The caller persists the new status on success.
func (m *Machine) Transition(ctx context.Context, kind EntityKind, current, target string, tc *Context) (*Result, error) {
	t, ok := m.table[Key{Kind: kind, From: current, To: target}]
	if !ok {
		return nil, &InvalidTransitionError{Kind: kind, From: current, To: target}
	}

	machine := fsm.NewFSM(current, m.events[kind], fsm.Callbacks{})
	if !machine.Can(t.event) {
		return nil, &InvalidTransitionError{Kind: kind, From: current, To: target}
	}

	if t.guard != nil {
		if err := t.guard(ctx, tc); err != nil {
			return nil, &GuardError{Kind: kind, From: current, To: target, Reason: err.Error()}
		}
	}

	result, err := t.handler(ctx, tc)
	if err != nil {
		return nil, &HandlerError{Kind: kind, From: current, To: target, Err: err}
	}

	// Self-edges (e.g. another partial payment) leave the state unchanged;
	// looplab reports that as NoTransitionError, which is not a failure here.
	var noTransition fsm.NoTransitionError
	if err := machine.Event(ctx, t.event); err != nil && !errors.As(err, &noTransition) {
		return nil, &HandlerError{Kind: kind, From: current, To: target, Err: err}
	}

	if result == nil {
		result = &Result{}
	}
	result.Status = machine.Current()
	return result, nil
}

// Can reports whether the edge (current → target) is registered for the kind.
func (m *Machine) Can(kind EntityKind, current, target string) bool {
	_, ok := m.table[Key{Kind: kind, From: current, To: target}]
	return ok
}

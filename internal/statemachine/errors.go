package statemachine

import (
	"fmt"
)

// InvalidTransitionError names an attempted edge that has no registered
// transition.
type InvalidTransitionError struct {
	Kind EntityKind
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Kind, e.From, e.To)
}

// GuardError is a guard rejection. The caller must change its input; no side
// effects were applied.
type GuardError struct {
	Kind   EntityKind
	From   string
	To     string
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s transition %s -> %s rejected: %s", e.Kind, e.From, e.To, e.Reason)
}

// HandlerError wraps a handler-internal failure so the original cause stays
// reachable and is surfaced distinctly from guard rejections.
type HandlerError struct {
	Kind EntityKind
	From string
	To   string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s transition %s -> %s failed: %v", e.Kind, e.From, e.To, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

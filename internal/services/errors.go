package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Common service errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrOperationInFlight  = errors.New("operation id already claimed by an in-flight mutation")
	ErrUnlockReasonNeeded = errors.New("unlock requires a non-empty reason")
)

// ViolationCode tags one failed ledger invariant
type ViolationCode string

const (
	ViolationOverCertificationVsCommitted ViolationCode = "OVER_CERTIFICATION_VS_COMMITTED"
	ViolationOverCertification            ViolationCode = "OVER_CERTIFICATION"
	ViolationOverPayment                  ViolationCode = "OVER_PAYMENT"
	ViolationNegativeRetention            ViolationCode = "NEGATIVE_RETENTION"
	ViolationMissingBudget                ViolationCode = "MISSING_BUDGET"
)

// Violation is one failed invariant check
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// InvariantViolationError carries every failing invariant check for a
// (project, cost code) pair, never just the first. It aborts the transaction
// it was raised in; nothing partial is committed.
type InvariantViolationError struct {
	ProjectID  string      `json:"project_id"`
	CostCode   string      `json:"cost_code"`
	Violations []Violation `json:"violations"`
}

func (e *InvariantViolationError) Error() string {
	codes := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		codes[i] = string(v.Code)
	}
	return fmt.Sprintf("ledger invariants violated for %s/%s: %s",
		e.ProjectID, e.CostCode, strings.Join(codes, ", "))
}

// SequenceCollisionError signals document numbering exhausted its retries.
// The whole request may be retried by the caller.
type SequenceCollisionError struct {
	TenantID string
	Prefix   string
	Attempts int
}

func (e *SequenceCollisionError) Error() string {
	return fmt.Sprintf("document number collision for tenant %s prefix %s after %d attempts",
		e.TenantID, e.Prefix, e.Attempts)
}

// DuplicateInvoiceError blocks certification when another non-draft
// certificate already carries the same (vendor, project, invoice number).
type DuplicateInvoiceError struct {
	InvoiceNumber string
	VendorID      string
	ProjectID     string
	ConflictingID string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice %s already certified for vendor %s on project %s (certificate %s)",
		e.InvoiceNumber, e.VendorID, e.ProjectID, e.ConflictingID)
}

// DocumentLockedError blocks any mutation of a locked entity until it is
// unlocked with a reason.
type DocumentLockedError struct {
	EntityType string
	EntityID   string
}

func (e *DocumentLockedError) Error() string {
	return fmt.Sprintf("%s %s is locked against mutation", e.EntityType, e.EntityID)
}

// HardDeleteBlockedError is raised on every delete attempt against a ledger
// entity, in every status. The only removal path is a status-based soft
// disable.
type HardDeleteBlockedError struct {
	EntityType string
	EntityID   string
}

func (e *HardDeleteBlockedError) Error() string {
	return fmt.Sprintf("hard deletion of %s %s is not permitted", e.EntityType, e.EntityID)
}

// BudgetReductionBlockedError rejects a budget update below the already
// certified value.
type BudgetReductionBlockedError struct {
	ProjectID string
	CostCode  string
	Requested decimal.Decimal
	Certified decimal.Decimal
}

func (e *BudgetReductionBlockedError) Error() string {
	return fmt.Sprintf("cannot reduce budget for %s/%s to %s: certified value is already %s",
		e.ProjectID, e.CostCode, e.Requested.StringFixed(2), e.Certified.StringFixed(2))
}

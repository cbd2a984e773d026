package handlers

import (
	"errors"
	"net/http"

	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/costledger/costledger-api/internal/statemachine"
	"github.com/gin-gonic/gin"
)

// respondError maps the service error taxonomy to transport status codes.
// Invariant violations are unprocessable input (422); conflicts over shared
// state (duplicates, locks, in-flight operations, sequence exhaustion) are
// 409; malformed or rejected input is 400; hard deletes are method-level
// rejections.
func respondError(c *gin.Context, err error) {
	var violation *services.InvariantViolationError
	if errors.As(err, &violation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "ledger invariants violated",
			"project_id": violation.ProjectID,
			"cost_code":  violation.CostCode,
			"violations": violation.Violations,
		})
		return
	}

	var dup *services.DuplicateInvoiceError
	if errors.As(err, &dup) {
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"invoice_number": dup.InvoiceNumber,
			"conflicting_id": dup.ConflictingID,
		})
		return
	}

	var locked *services.DocumentLockedError
	if errors.As(err, &locked) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       err.Error(),
			"entity_type": locked.EntityType,
			"entity_id":   locked.EntityID,
		})
		return
	}

	var collision *services.SequenceCollisionError
	if errors.As(err, &collision) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var budgetBlocked *services.BudgetReductionBlockedError
	if errors.As(err, &budgetBlocked) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           err.Error(),
			"requested":       budgetBlocked.Requested.StringFixed(2),
			"certified_value": budgetBlocked.Certified.StringFixed(2),
		})
		return
	}

	if errors.Is(err, services.ErrOperationInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var deleteBlocked *services.HardDeleteBlockedError
	if errors.As(err, &deleteBlocked) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
		return
	}

	var invalidTransition *statemachine.InvalidTransitionError
	var guard *statemachine.GuardError
	var validation *money.ValidationError
	if errors.As(err, &invalidTransition) || errors.As(err, &guard) ||
		errors.As(err, &validation) || errors.Is(err, services.ErrUnlockReasonNeeded) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

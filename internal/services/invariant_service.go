package services

import (
	"context"
	"fmt"

	"github.com/costledger/costledger-api/internal/repository"
)

// InvariantService is the single authority for the ledger invariants. It
// runs inside the same transaction as the mutation it validates; a violation
// rolls back every write made earlier in that transaction.
type InvariantService struct{}

func NewInvariantService() *InvariantService {
	return &InvariantService{}
}

// Validate loads the current aggregate and approved budget for the pair and
// evaluates all four invariants, returning a single error enumerating every
// failing check:
//
//  1. certified_value ≤ committed_value whenever committed_value > 0
//  2. certified_value ≤ approved_budget
//  3. paid_value ≤ certified_value
//  4. retention_held ≥ 0
//
// A missing budget is itself a violation.
func (s *InvariantService) Validate(ctx context.Context, repos *repository.Repositories, projectID, costCode string) error {
	agg, err := repos.Aggregate.FindByProjectCode(ctx, projectID, costCode)
	if err != nil {
		if repository.IsNotFound(err) {
			return &InvariantViolationError{
				ProjectID: projectID,
				CostCode:  costCode,
				Violations: []Violation{{
					Code:    ViolationMissingBudget,
					Message: fmt.Sprintf("no aggregate exists for %s/%s; write a budget first", projectID, costCode),
				}},
			}
		}
		return fmt.Errorf("failed to load aggregate for %s/%s: %w", projectID, costCode, err)
	}

	budget, err := repos.Budget.FindByProjectCode(ctx, projectID, costCode)
	if err != nil {
		return fmt.Errorf("failed to load budget for %s/%s: %w", projectID, costCode, err)
	}

	var violations []Violation

	if budget == nil {
		violations = append(violations, Violation{
			Code:    ViolationMissingBudget,
			Message: fmt.Sprintf("no approved budget exists for %s/%s", projectID, costCode),
		})
	} else if agg.CertifiedValue.GreaterThan(budget.Amount) {
		violations = append(violations, Violation{
			Code: ViolationOverCertification,
			Message: fmt.Sprintf("certified value %s exceeds approved budget %s",
				agg.CertifiedValue.StringFixed(2), budget.Amount.StringFixed(2)),
		})
	}

	if agg.CommittedValue.IsPositive() && agg.CertifiedValue.GreaterThan(agg.CommittedValue) {
		violations = append(violations, Violation{
			Code: ViolationOverCertificationVsCommitted,
			Message: fmt.Sprintf("certified value %s exceeds committed value %s",
				agg.CertifiedValue.StringFixed(2), agg.CommittedValue.StringFixed(2)),
		})
	}

	if agg.PaidValue.GreaterThan(agg.CertifiedValue) {
		violations = append(violations, Violation{
			Code: ViolationOverPayment,
			Message: fmt.Sprintf("paid value %s exceeds certified value %s",
				agg.PaidValue.StringFixed(2), agg.CertifiedValue.StringFixed(2)),
		})
	}

	if agg.RetentionHeld.IsNegative() {
		violations = append(violations, Violation{
			Code: ViolationNegativeRetention,
			Message: fmt.Sprintf("retention held is negative: %s",
				agg.RetentionHeld.StringFixed(2)),
		})
	}

	if len(violations) > 0 {
		return &InvariantViolationError{
			ProjectID:  projectID,
			CostCode:   costCode,
			Violations: violations,
		}
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/shopspring/decimal"
)

// RecalcService rebuilds the derived totals of a (project, cost code) pair
// from the base ledger collections. It is the sole writer of
// FinancialAggregate figures. Totals are always re-derived from scratch, not
// patched with deltas: a bug in any mutation path cannot desynchronize the
// aggregate, because the aggregate is always rebuilt from ledger facts.
type RecalcService struct{}

func NewRecalcService() *RecalcService {
	return &RecalcService{}
}

// Recalculate re-derives every aggregate figure inside the caller's
// transaction and saves the row. The aggregate is created on the first
// budget write; when none exists yet this creates it.
func (s *RecalcService) Recalculate(ctx context.Context, repos *repository.Repositories, projectID, costCode string) (*models.FinancialAggregate, error) {
	agg, err := repos.Aggregate.FindForUpdate(ctx, projectID, costCode)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("failed to lock aggregate for %s/%s: %w", projectID, costCode, err)
		}
		agg = &models.FinancialAggregate{ProjectID: projectID, CostCode: costCode}
		if err := repos.Aggregate.Create(ctx, agg); err != nil {
			return nil, fmt.Errorf("failed to create aggregate for %s/%s: %w", projectID, costCode, err)
		}
	}

	committed, err := repos.WorkOrder.SumBaseAmount(ctx, projectID, costCode, models.CommittedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to sum committed value: %w", err)
	}

	certified, err := repos.Certificate.SumCurrentBill(ctx, projectID, costCode, models.CertifiedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to sum certified value: %w", err)
	}

	retentionCumulative, err := repos.Certificate.SumRetentionCurrent(ctx, projectID, costCode, models.CertifiedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to sum retention: %w", err)
	}

	paid, err := repos.Payment.SumByProjectCode(ctx, projectID, costCode)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	released, err := repos.Retention.SumByProjectCode(ctx, projectID, costCode)
	if err != nil {
		return nil, fmt.Errorf("failed to sum retention releases: %w", err)
	}

	budgetAmount := decimal.Zero
	budget, err := repos.Budget.FindByProjectCode(ctx, projectID, costCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	if budget != nil {
		budgetAmount = budget.Amount
	}

	agg.ApprovedBudget = money.Round(budgetAmount)
	agg.CommittedValue = money.Round(committed)
	agg.CertifiedValue = money.Round(certified)
	agg.PaidValue = money.Round(paid)
	agg.RetentionCumulative = money.Round(retentionCumulative)
	agg.RetentionHeld = money.Round(retentionCumulative.Sub(released))
	agg.BalanceBudgetRemaining = money.Round(budgetAmount.Sub(certified))
	agg.BalanceToPay = money.Round(certified.Sub(paid))
	agg.OverCommitted = committed.GreaterThan(budgetAmount)
	agg.OverCertified = certified.GreaterThan(budgetAmount) ||
		(committed.IsPositive() && certified.GreaterThan(committed))
	agg.OverPaid = paid.GreaterThan(certified)
	agg.Version++
	agg.LastReconciledAt = time.Now()

	if err := repos.Aggregate.Save(ctx, agg); err != nil {
		return nil, fmt.Errorf("failed to save aggregate for %s/%s: %w", projectID, costCode, err)
	}
	return agg, nil
}

package services

import (
	"context"
	"testing"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvariantHarness() (*InvariantService, *memStore, *repository.Repositories) {
	store := newMemStore()
	repos := &repository.Repositories{
		Aggregate: &fakeAggregateRepo{s: store},
		Budget:    &fakeBudgetRepo{s: store},
	}
	return NewInvariantService(), store, repos
}

func violationCodes(t *testing.T, err error) []ViolationCode {
	t.Helper()
	var violation *InvariantViolationError
	require.ErrorAs(t, err, &violation)
	codes := make([]ViolationCode, len(violation.Violations))
	for i, v := range violation.Violations {
		codes[i] = v.Code
	}
	return codes
}

func TestValidatePassesOnHealthyLedger(t *testing.T) {
	svc, store, repos := newInvariantHarness()

	store.aggregates[pairKey("P1", "CC1")] = models.FinancialAggregate{
		ProjectID:      "P1",
		CostCode:       "CC1",
		CommittedValue: decimal.NewFromInt(1000),
		CertifiedValue: decimal.NewFromInt(800),
		PaidValue:      decimal.NewFromInt(500),
		RetentionHeld:  decimal.NewFromInt(40),
	}
	store.budgets[pairKey("P1", "CC1")] = models.ApprovedBudget{
		ProjectID: "P1", CostCode: "CC1", Amount: decimal.NewFromInt(2000),
	}

	require.NoError(t, svc.Validate(context.Background(), repos, "P1", "CC1"))
}

func TestValidateMissingAggregateIsMissingBudget(t *testing.T) {
	svc, _, repos := newInvariantHarness()

	err := svc.Validate(context.Background(), repos, "P1", "CC1")
	codes := violationCodes(t, err)
	assert.Equal(t, []ViolationCode{ViolationMissingBudget}, codes)
}

func TestValidateMissingBudgetRow(t *testing.T) {
	svc, store, repos := newInvariantHarness()

	store.aggregates[pairKey("P1", "CC1")] = models.FinancialAggregate{
		ProjectID: "P1", CostCode: "CC1",
	}

	err := svc.Validate(context.Background(), repos, "P1", "CC1")
	codes := violationCodes(t, err)
	assert.Contains(t, codes, ViolationMissingBudget)
}

func TestValidateReportsEveryViolationAtOnce(t *testing.T) {
	svc, store, repos := newInvariantHarness()

	// Certified over both budget and committed, paid over certified,
	// retention negative: all four must be reported together.
	store.aggregates[pairKey("P1", "CC1")] = models.FinancialAggregate{
		ProjectID:      "P1",
		CostCode:       "CC1",
		CommittedValue: decimal.NewFromInt(500),
		CertifiedValue: decimal.NewFromInt(900),
		PaidValue:      decimal.NewFromInt(950),
		RetentionHeld:  decimal.NewFromInt(-10),
	}
	store.budgets[pairKey("P1", "CC1")] = models.ApprovedBudget{
		ProjectID: "P1", CostCode: "CC1", Amount: decimal.NewFromInt(800),
	}

	err := svc.Validate(context.Background(), repos, "P1", "CC1")
	codes := violationCodes(t, err)
	assert.Len(t, codes, 4)
	assert.Contains(t, codes, ViolationOverCertification)
	assert.Contains(t, codes, ViolationOverCertificationVsCommitted)
	assert.Contains(t, codes, ViolationOverPayment)
	assert.Contains(t, codes, ViolationNegativeRetention)
}

func TestValidateCommittedCheckOnlyWhenCommittedPositive(t *testing.T) {
	svc, store, repos := newInvariantHarness()

	// With zero committed value, certifying against budget alone is fine.
	store.aggregates[pairKey("P1", "CC1")] = models.FinancialAggregate{
		ProjectID:      "P1",
		CostCode:       "CC1",
		CommittedValue: decimal.Zero,
		CertifiedValue: decimal.NewFromInt(300),
	}
	store.budgets[pairKey("P1", "CC1")] = models.ApprovedBudget{
		ProjectID: "P1", CostCode: "CC1", Amount: decimal.NewFromInt(1000),
	}

	require.NoError(t, svc.Validate(context.Background(), repos, "P1", "CC1"))
}

func TestValidateErrorNamesPairAndCodes(t *testing.T) {
	svc, store, repos := newInvariantHarness()

	store.aggregates[pairKey("P9", "CC9")] = models.FinancialAggregate{
		ProjectID:     "P9",
		CostCode:      "CC9",
		RetentionHeld: decimal.NewFromInt(-5),
	}
	store.budgets[pairKey("P9", "CC9")] = models.ApprovedBudget{
		ProjectID: "P9", CostCode: "CC9", Amount: decimal.NewFromInt(100),
	}

	err := svc.Validate(context.Background(), repos, "P9", "CC9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P9/CC9")
	assert.Contains(t, err.Error(), "NEGATIVE_RETENTION")
}

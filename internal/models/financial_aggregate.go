package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinancialAggregate holds the derived running totals for one
// (project, cost code) pair. It is written exclusively by the recalculation
// engine, which always rebuilds it from the base collections rather than
// applying deltas. Created on the first budget write, never deleted.
type FinancialAggregate struct {
	ID                     string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID              string          `gorm:"size:64;not null;uniqueIndex:idx_agg_project_code" json:"project_id"`
	CostCode               string          `gorm:"size:64;not null;uniqueIndex:idx_agg_project_code" json:"cost_code"`
	ApprovedBudget         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"approved_budget"`
	CommittedValue         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"committed_value"`
	CertifiedValue         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"certified_value"`
	PaidValue              decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"paid_value"`
	RetentionCumulative    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"retention_cumulative"`
	RetentionHeld          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"retention_held"`
	BalanceBudgetRemaining decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_budget_remaining"`
	BalanceToPay           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_to_pay"`
	OverCommitted          bool            `gorm:"default:false;not null" json:"over_committed"`
	OverCertified          bool            `gorm:"default:false;not null" json:"over_certified"`
	OverPaid               bool            `gorm:"default:false;not null" json:"over_paid"`
	Version                int64           `gorm:"default:0;not null" json:"version"`
	LastReconciledAt       time.Time       `json:"last_reconciled_at"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TableName specifies the table name for FinancialAggregate
func (FinancialAggregate) TableName() string {
	return "financial_aggregates"
}

// BeforeCreate assigns the entity id
func (a *FinancialAggregate) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// FinancialAggregateResponse is the JSON response format for aggregates
type FinancialAggregateResponse struct {
	ProjectID              string    `json:"project_id"`
	CostCode               string    `json:"cost_code"`
	ApprovedBudget         string    `json:"approved_budget"`
	CommittedValue         string    `json:"committed_value"`
	CertifiedValue         string    `json:"certified_value"`
	PaidValue              string    `json:"paid_value"`
	RetentionCumulative    string    `json:"retention_cumulative"`
	RetentionHeld          string    `json:"retention_held"`
	BalanceBudgetRemaining string    `json:"balance_budget_remaining"`
	BalanceToPay           string    `json:"balance_to_pay"`
	OverCommitted          bool      `json:"over_committed"`
	OverCertified          bool      `json:"over_certified"`
	OverPaid               bool      `json:"over_paid"`
	Version                int64     `json:"version"`
	LastReconciledAt       time.Time `json:"last_reconciled_at"`
}

// ToResponse converts FinancialAggregate to FinancialAggregateResponse
func (a *FinancialAggregate) ToResponse() FinancialAggregateResponse {
	return FinancialAggregateResponse{
		ProjectID:              a.ProjectID,
		CostCode:               a.CostCode,
		ApprovedBudget:         a.ApprovedBudget.StringFixed(2),
		CommittedValue:         a.CommittedValue.StringFixed(2),
		CertifiedValue:         a.CertifiedValue.StringFixed(2),
		PaidValue:              a.PaidValue.StringFixed(2),
		RetentionCumulative:    a.RetentionCumulative.StringFixed(2),
		RetentionHeld:          a.RetentionHeld.StringFixed(2),
		BalanceBudgetRemaining: a.BalanceBudgetRemaining.StringFixed(2),
		BalanceToPay:           a.BalanceToPay.StringFixed(2),
		OverCommitted:          a.OverCommitted,
		OverCertified:          a.OverCertified,
		OverPaid:               a.OverPaid,
		Version:                a.Version,
		LastReconciledAt:       a.LastReconciledAt,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovedBudget is the sanctioned spend for one (project, cost code) pair.
// A missing budget row is itself an invariant violation for any mutation
// touching that pair.
type ApprovedBudget struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID string          `gorm:"size:64;not null;uniqueIndex:idx_budget_project_code" json:"project_id"`
	CostCode  string          `gorm:"size:64;not null;uniqueIndex:idx_budget_project_code" json:"cost_code"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	UpdatedBy string          `gorm:"size:64;not null" json:"updated_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for ApprovedBudget
func (ApprovedBudget) TableName() string {
	return "approved_budgets"
}

// BeforeCreate assigns the entity id
func (b *ApprovedBudget) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	"github.com/costledger/costledger-api/internal/models"
	"gorm.io/gorm"
)

// BudgetRepository defines the interface for approved budget data access
type BudgetRepository interface {
	FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.ApprovedBudget, error)
	Create(ctx context.Context, budget *models.ApprovedBudget) error
	Save(ctx context.Context, budget *models.ApprovedBudget) error
	WithTx(tx *gorm.DB) BudgetRepository
}

type budgetRepository struct {
	db *gorm.DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) WithTx(tx *gorm.DB) BudgetRepository {
	return &budgetRepository{db: tx}
}

// FindByProjectCode returns nil (without error) when no budget exists; the
// invariant validator turns that into a MISSING_BUDGET violation.
func (r *budgetRepository) FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.ApprovedBudget, error) {
	var budget models.ApprovedBudget
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		First(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *budgetRepository) Create(ctx context.Context, budget *models.ApprovedBudget) error {
	return r.db.WithContext(ctx).Create(budget).Error
}

func (r *budgetRepository) Save(ctx context.Context, budget *models.ApprovedBudget) error {
	return r.db.WithContext(ctx).Save(budget).Error
}

package repository

import (
	"context"
	"errors"

	"github.com/costledger/costledger-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AggregateRepository defines the interface for financial aggregate data
// access. The aggregate row is the one piece of shared mutable state
// contended over per (project, cost code); mutating transactions take a row
// lock so concurrent writers serialize at the store.
type AggregateRepository interface {
	FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error)
	FindForUpdate(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error)
	ListPairs(ctx context.Context) ([]models.FinancialAggregate, error)
	Create(ctx context.Context, agg *models.FinancialAggregate) error
	Save(ctx context.Context, agg *models.FinancialAggregate) error
	WithTx(tx *gorm.DB) AggregateRepository
}

type aggregateRepository struct {
	db *gorm.DB
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(db *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: db}
}

func (r *aggregateRepository) WithTx(tx *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: tx}
}

func (r *aggregateRepository) FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error) {
	var agg models.FinancialAggregate
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		First(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// FindForUpdate loads the aggregate under a row lock. Returns
// gorm.ErrRecordNotFound when no aggregate exists yet.
func (r *aggregateRepository) FindForUpdate(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error) {
	var agg models.FinancialAggregate
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		First(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// ListPairs returns every known (project, cost code) pair. Only the key
// columns are selected; callers re-derive the figures they need.
func (r *aggregateRepository) ListPairs(ctx context.Context) ([]models.FinancialAggregate, error) {
	var aggs []models.FinancialAggregate
	err := r.db.WithContext(ctx).
		Select("project_id", "cost_code").
		Order("project_id, cost_code").
		Find(&aggs).Error
	if err != nil {
		return nil, err
	}
	return aggs, nil
}

func (r *aggregateRepository) Create(ctx context.Context, agg *models.FinancialAggregate) error {
	return r.db.WithContext(ctx).Create(agg).Error
}

func (r *aggregateRepository) Save(ctx context.Context, agg *models.FinancialAggregate) error {
	return r.db.WithContext(ctx).Save(agg).Error
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

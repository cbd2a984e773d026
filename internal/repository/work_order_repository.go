package repository

import (
	"context"
	"errors"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrderRepository defines the interface for work order data access
type WorkOrderRepository interface {
	Create(ctx context.Context, wo *models.WorkOrder) error
	FindByID(ctx context.Context, id string) (*models.WorkOrder, error)
	Update(ctx context.Context, wo *models.WorkOrder) error
	List(ctx context.Context, query *ListQuery) ([]models.WorkOrder, int64, error)
	SumBaseAmount(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error)
	ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error)
	WithTx(tx *gorm.DB) WorkOrderRepository
}

type workOrderRepository struct {
	db *gorm.DB
}

// NewWorkOrderRepository creates a new work order repository
func NewWorkOrderRepository(db *gorm.DB) WorkOrderRepository {
	return &workOrderRepository{db: db}
}

func (r *workOrderRepository) WithTx(tx *gorm.DB) WorkOrderRepository {
	return &workOrderRepository{db: tx}
}

func (r *workOrderRepository) Create(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *workOrderRepository) FindByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wo).Error
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *workOrderRepository) Update(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Save(wo).Error
}

func (r *workOrderRepository) List(ctx context.Context, query *ListQuery) ([]models.WorkOrder, int64, error) {
	var orders []models.WorkOrder
	var total int64

	q := r.db.WithContext(ctx).Model(&models.WorkOrder{})
	if query.Status != "" {
		q = q.Where("status = ?", query.Status)
	}
	if query.Project != "" {
		q = q.Where("project_id = ?", query.Project)
	}
	if query.Code != "" {
		q = q.Where("cost_code = ?", query.Code)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at desc").Limit(query.PerPage).Offset(query.Offset()).Find(&orders).Error
	return orders, total, err
}

// SumBaseAmount totals base amounts over work orders in the given statuses
// for one (project, cost code) pair.
func (r *workOrderRepository) SumBaseAmount(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.WorkOrder{}).
		Select("COALESCE(SUM(base_amount), 0) as total").
		Where("project_id = ? AND cost_code = ? AND status IN ?", projectID, costCode, statuses).
		Scan(&result).Error
	return result.Total, err
}

func (r *workOrderRepository) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	var wo models.WorkOrder
	err := r.db.WithContext(ctx).
		Select("id").
		Where("document_number = ?", documentNumber).
		First(&wo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

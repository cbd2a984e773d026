package repository

import (
	"context"
	"errors"
	"time"

	"github.com/costledger/costledger-api/internal/models"
	"gorm.io/gorm"
)

// OperationRepository defines the interface for the idempotency ledger.
// Rows are append-only and move once from unapplied to applied.
type OperationRepository interface {
	FindByOperationID(ctx context.Context, operationID string) (*models.MutationOperationLog, error)
	Create(ctx context.Context, op *models.MutationOperationLog) error
	MarkApplied(ctx context.Context, operationID, responseSummary string) error
}

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) FindByOperationID(ctx context.Context, operationID string) (*models.MutationOperationLog, error) {
	var op models.MutationOperationLog
	err := r.db.WithContext(ctx).Where("operation_id = ?", operationID).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operationRepository) Create(ctx context.Context, op *models.MutationOperationLog) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// MarkApplied flips the row to applied. This runs only after the mutation's
// transaction has committed, never before; a crash between commit and
// marking is the documented at-least-once window.
func (r *operationRepository) MarkApplied(ctx context.Context, operationID, responseSummary string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.MutationOperationLog{}).
		Where("operation_id = ? AND applied = false", operationID).
		Updates(map[string]interface{}{
			"applied":          true,
			"response_summary": responseSummary,
			"applied_at":       now,
		}).Error
}

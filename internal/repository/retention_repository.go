package repository

import (
	"context"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RetentionReleaseRepository defines the interface for retention release
// data access. Releases are append-only.
type RetentionReleaseRepository interface {
	Create(ctx context.Context, release *models.RetentionRelease) error
	FindByProjectCode(ctx context.Context, projectID, costCode string) ([]models.RetentionRelease, error)
	SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error)
	WithTx(tx *gorm.DB) RetentionReleaseRepository
}

type retentionReleaseRepository struct {
	db *gorm.DB
}

// NewRetentionReleaseRepository creates a new retention release repository
func NewRetentionReleaseRepository(db *gorm.DB) RetentionReleaseRepository {
	return &retentionReleaseRepository{db: db}
}

func (r *retentionReleaseRepository) WithTx(tx *gorm.DB) RetentionReleaseRepository {
	return &retentionReleaseRepository{db: tx}
}

func (r *retentionReleaseRepository) Create(ctx context.Context, release *models.RetentionRelease) error {
	return r.db.WithContext(ctx).Create(release).Error
}

func (r *retentionReleaseRepository) FindByProjectCode(ctx context.Context, projectID, costCode string) ([]models.RetentionRelease, error) {
	var releases []models.RetentionRelease
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		Order("release_date ASC, created_at ASC").
		Find(&releases).Error
	return releases, err
}

func (r *retentionReleaseRepository) SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.RetentionRelease{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		Scan(&result).Error
	return result.Total, err
}

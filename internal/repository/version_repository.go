package repository

import (
	"context"

	"github.com/costledger/costledger-api/internal/models"
	"gorm.io/gorm"
)

// VersionRepository defines the interface for append-only version snapshots
type VersionRepository interface {
	CreateWorkOrderVersion(ctx context.Context, v *models.WorkOrderVersion) error
	CreateCertificateVersion(ctx context.Context, v *models.PaymentCertificateVersion) error
	ListWorkOrderVersions(ctx context.Context, workOrderID string) ([]models.WorkOrderVersion, error)
	ListCertificateVersions(ctx context.Context, certificateID string) ([]models.PaymentCertificateVersion, error)
	WithTx(tx *gorm.DB) VersionRepository
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) WithTx(tx *gorm.DB) VersionRepository {
	return &versionRepository{db: tx}
}

func (r *versionRepository) CreateWorkOrderVersion(ctx context.Context, v *models.WorkOrderVersion) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *versionRepository) CreateCertificateVersion(ctx context.Context, v *models.PaymentCertificateVersion) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *versionRepository) ListWorkOrderVersions(ctx context.Context, workOrderID string) ([]models.WorkOrderVersion, error) {
	var versions []models.WorkOrderVersion
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

func (r *versionRepository) ListCertificateVersions(ctx context.Context, certificateID string) ([]models.PaymentCertificateVersion, error) {
	var versions []models.PaymentCertificateVersion
	err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

package repository

import (
	"context"
	"errors"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CertificateRepository defines the interface for payment certificate data access
type CertificateRepository interface {
	Create(ctx context.Context, pc *models.PaymentCertificate) error
	FindByID(ctx context.Context, id string) (*models.PaymentCertificate, error)
	Update(ctx context.Context, pc *models.PaymentCertificate) error
	List(ctx context.Context, query *ListQuery) ([]models.PaymentCertificate, int64, error)
	SumCurrentBill(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error)
	SumRetentionCurrent(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error)
	FindDuplicateInvoice(ctx context.Context, vendorID, projectID, invoiceNumber, excludeID string) (*models.PaymentCertificate, error)
	ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error)
	WithTx(tx *gorm.DB) CertificateRepository
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) WithTx(tx *gorm.DB) CertificateRepository {
	return &certificateRepository{db: tx}
}

func (r *certificateRepository) Create(ctx context.Context, pc *models.PaymentCertificate) error {
	return r.db.WithContext(ctx).Create(pc).Error
}

func (r *certificateRepository) FindByID(ctx context.Context, id string) (*models.PaymentCertificate, error) {
	var pc models.PaymentCertificate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *certificateRepository) Update(ctx context.Context, pc *models.PaymentCertificate) error {
	return r.db.WithContext(ctx).Save(pc).Error
}

func (r *certificateRepository) List(ctx context.Context, query *ListQuery) ([]models.PaymentCertificate, int64, error) {
	var certs []models.PaymentCertificate
	var total int64

	q := r.db.WithContext(ctx).Model(&models.PaymentCertificate{})
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

	err := q.Order("created_at desc").Limit(query.PerPage).Offset(query.Offset()).Find(&certs).Error
	return certs, total, err
}

// SumCurrentBill totals bill amounts over certificates in the given statuses
// for one (project, cost code) pair.
func (r *certificateRepository) SumCurrentBill(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.PaymentCertificate{}).
		Select("COALESCE(SUM(current_bill_amount), 0) as total").
		Where("project_id = ? AND cost_code = ? AND status IN ?", projectID, costCode, statuses).
		Scan(&result).Error
	return result.Total, err
}

// SumRetentionCurrent totals retention over certificates in the given
// statuses for one (project, cost code) pair.
func (r *certificateRepository) SumRetentionCurrent(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.PaymentCertificate{}).
		Select("COALESCE(SUM(retention_current), 0) as total").
		Where("project_id = ? AND cost_code = ? AND status IN ?", projectID, costCode, statuses).
		Scan(&result).Error
	return result.Total, err
}

// FindDuplicateInvoice looks for another non-draft certificate carrying the
// same (vendor, project, invoice number). The certificate being certified is
// excluded so re-certification flows do not collide with themselves.
func (r *certificateRepository) FindDuplicateInvoice(ctx context.Context, vendorID, projectID, invoiceNumber, excludeID string) (*models.PaymentCertificate, error) {
	var pc models.PaymentCertificate
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND project_id = ? AND invoice_number = ? AND status IN ? AND id <> ?",
			vendorID, projectID, invoiceNumber, models.CertifiedStatuses, excludeID).
		First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *certificateRepository) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	var pc models.PaymentCertificate
	err := r.db.WithContext(ctx).
		Select("id").
		Where("document_number = ?", documentNumber).
		First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

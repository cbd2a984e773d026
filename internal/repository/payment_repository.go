package repository

import (
	"context"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRepository defines the interface for payment data access.
// Payments are append-only: there is deliberately no Update or Delete.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByCertificate(ctx context.Context, certificateID string) ([]models.Payment, error)
	SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error)
	SumByCertificate(ctx context.Context, certificateID string) (decimal.Decimal, error)
	WithTx(tx *gorm.DB) PaymentRepository
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByCertificate(ctx context.Context, certificateID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		Scan(&result).Error
	return result.Total, err
}

func (r *paymentRepository) SumByCertificate(ctx context.Context, certificateID string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("certificate_id = ?", certificateID).
		Scan(&result).Error
	return result.Total, err
}

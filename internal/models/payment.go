package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is an immutable append-only record of money paid against a
// certificate. Payments are never updated or deleted.
type Payment struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	CertificateID string          `gorm:"type:uuid;not null;index" json:"certificate_id"`
	ProjectID     string          `gorm:"size:64;not null;index:idx_pay_project_code" json:"project_id"`
	CostCode      string          `gorm:"size:64;not null;index:idx_pay_project_code" json:"cost_code"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	PaymentDate   time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	Reference     string          `gorm:"size:128" json:"reference"`
	RecordedBy    string          `gorm:"size:64;not null" json:"recorded_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns the entity id
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PaymentResponse is the JSON response format for payments
type PaymentResponse struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	Amount        string    `json:"amount"`
	PaymentDate   time.Time `json:"payment_date"`
	Reference     string    `json:"reference"`
	RecordedBy    string    `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToResponse converts Payment to PaymentResponse
func (p *Payment) ToResponse() PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		CertificateID: p.CertificateID,
		Amount:        p.Amount.StringFixed(2),
		PaymentDate:   p.PaymentDate,
		Reference:     p.Reference,
		RecordedBy:    p.RecordedBy,
		CreatedAt:     p.CreatedAt,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentCertificate represents a certified bill against a work order.
// Certified and later statuses contribute to certified value and cumulative
// retention; drafts have no ledger effect.
type PaymentCertificate struct {
	ID                          string          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID                    string          `gorm:"size:64;not null;default:default;index" json:"tenant_id"`
	ProjectID                   string          `gorm:"size:64;not null;index:idx_pc_project_code" json:"project_id"`
	CostCode                    string          `gorm:"size:64;not null;index:idx_pc_project_code" json:"cost_code"`
	VendorID                    string          `gorm:"size:64;not null;index" json:"vendor_id"`
	WorkOrderID                 *string         `gorm:"type:uuid;index" json:"work_order_id,omitempty"`
	InvoiceNumber               string          `gorm:"size:64;index" json:"invoice_number"`
	Status                      string          `gorm:"size:32;default:draft;not null;index" json:"status"`
	DocumentNumber              string          `gorm:"size:32;default:DRAFT;not null" json:"document_number"`
	SequenceNumber              int64           `gorm:"default:0;not null" json:"sequence_number"`
	CurrentBillAmount           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"current_bill_amount"`
	CumulativePreviousCertified decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"cumulative_previous_certified"`
	RetentionPercentage         decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"retention_percentage"`
	RetentionCurrent            decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"retention_current"`
	RetentionCumulative         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"retention_cumulative"`
	GSTRate                     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"gst_rate"`
	TaxableAmount               decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"taxable_amount"`
	CGSTAmount                  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"cgst_amount"`
	SGSTAmount                  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sgst_amount"`
	NetPayable                  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"net_payable"`
	TotalPaidCumulative         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_paid_cumulative"`
	VersionNumber               int64           `gorm:"default:1;not null" json:"version_number"`
	Locked                      bool            `gorm:"default:false;not null" json:"locked"`
	CreatedAt                   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt                   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for PaymentCertificate
func (PaymentCertificate) TableName() string {
	return "payment_certificates"
}

// Payment certificate status constants
const (
	CertificateStatusDraft         = "draft"
	CertificateStatusCertified     = "certified"
	CertificateStatusPartiallyPaid = "partially_paid"
	CertificateStatusFullyPaid     = "fully_paid"
	CertificateStatusCancelled     = "cancelled"
)

// CertifiedStatuses are the statuses that count toward certified value and
// cumulative retention. The duplicate invoice guard checks the same set.
var CertifiedStatuses = []string{
	CertificateStatusCertified,
	CertificateStatusPartiallyPaid,
	CertificateStatusFullyPaid,
}

// BeforeCreate assigns the entity id
func (p *PaymentCertificate) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// MayCertify returns true if the certificate can be certified
func (p *PaymentCertificate) MayCertify() bool {
	return p.Status == CertificateStatusDraft
}

// MayReceivePayment returns true if a payment can be recorded against the certificate
func (p *PaymentCertificate) MayReceivePayment() bool {
	return p.Status == CertificateStatusCertified || p.Status == CertificateStatusPartiallyPaid
}

// IsCertified returns true if the certificate contributes to certified value
func (p *PaymentCertificate) IsCertified() bool {
	switch p.Status {
	case CertificateStatusCertified, CertificateStatusPartiallyPaid, CertificateStatusFullyPaid:
		return true
	}
	return false
}

// OutstandingPayable returns net payable minus cumulative payments.
func (p *PaymentCertificate) OutstandingPayable() decimal.Decimal {
	return p.NetPayable.Sub(p.TotalPaidCumulative)
}

// PaymentCertificateResponse is the JSON response format for certificates
type PaymentCertificateResponse struct {
	ID                          string    `json:"id"`
	ProjectID                   string    `json:"project_id"`
	CostCode                    string    `json:"cost_code"`
	VendorID                    string    `json:"vendor_id"`
	WorkOrderID                 *string   `json:"work_order_id,omitempty"`
	InvoiceNumber               string    `json:"invoice_number"`
	Status                      string    `json:"status"`
	DocumentNumber              string    `json:"document_number"`
	CurrentBillAmount           string    `json:"current_bill_amount"`
	CumulativePreviousCertified string    `json:"cumulative_previous_certified"`
	RetentionCurrent            string    `json:"retention_current"`
	RetentionCumulative         string    `json:"retention_cumulative"`
	TaxableAmount               string    `json:"taxable_amount"`
	CGSTAmount                  string    `json:"cgst_amount"`
	SGSTAmount                  string    `json:"sgst_amount"`
	NetPayable                  string    `json:"net_payable"`
	TotalPaidCumulative         string    `json:"total_paid_cumulative"`
	VersionNumber               int64     `json:"version_number"`
	Locked                      bool      `json:"locked"`
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

// ToResponse converts PaymentCertificate to PaymentCertificateResponse
func (p *PaymentCertificate) ToResponse() PaymentCertificateResponse {
	return PaymentCertificateResponse{
		ID:                          p.ID,
		ProjectID:                   p.ProjectID,
		CostCode:                    p.CostCode,
		VendorID:                    p.VendorID,
		WorkOrderID:                 p.WorkOrderID,
		InvoiceNumber:               p.InvoiceNumber,
		Status:                      p.Status,
		DocumentNumber:              p.DocumentNumber,
		CurrentBillAmount:           p.CurrentBillAmount.StringFixed(2),
		CumulativePreviousCertified: p.CumulativePreviousCertified.StringFixed(2),
		RetentionCurrent:            p.RetentionCurrent.StringFixed(2),
		RetentionCumulative:         p.RetentionCumulative.StringFixed(2),
		TaxableAmount:               p.TaxableAmount.StringFixed(2),
		CGSTAmount:                  p.CGSTAmount.StringFixed(2),
		SGSTAmount:                  p.SGSTAmount.StringFixed(2),
		NetPayable:                  p.NetPayable.StringFixed(2),
		TotalPaidCumulative:         p.TotalPaidCumulative.StringFixed(2),
		VersionNumber:               p.VersionNumber,
		Locked:                      p.Locked,
		CreatedAt:                   p.CreatedAt,
		UpdatedAt:                   p.UpdatedAt,
	}
}

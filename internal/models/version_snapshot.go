package models

import (
	"time"
)

// WorkOrderVersion is an immutable full-state snapshot of a work order,
// written before every mutating transition. Keyed by (work order id, version
// number), append-only, never overwritten.
type WorkOrderVersion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	WorkOrderID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_wov_parent_version" json:"work_order_id"`
	VersionNumber  int64     `gorm:"not null;uniqueIndex:idx_wov_parent_version" json:"version_number"`
	Status         string    `gorm:"size:32;not null" json:"status"`
	DocumentNumber string    `gorm:"size:32;not null" json:"document_number"`
	Snapshot       string    `gorm:"type:jsonb;not null" json:"snapshot"`
	ChangedBy      string    `gorm:"size:64;not null" json:"changed_by"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for WorkOrderVersion
func (WorkOrderVersion) TableName() string {
	return "work_order_versions"
}

// PaymentCertificateVersion is the certificate counterpart of
// WorkOrderVersion with identical append-only semantics.
type PaymentCertificateVersion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CertificateID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_pcv_parent_version" json:"certificate_id"`
	VersionNumber  int64     `gorm:"not null;uniqueIndex:idx_pcv_parent_version" json:"version_number"`
	Status         string    `gorm:"size:32;not null" json:"status"`
	DocumentNumber string    `gorm:"size:32;not null" json:"document_number"`
	Snapshot       string    `gorm:"type:jsonb;not null" json:"snapshot"`
	ChangedBy      string    `gorm:"size:64;not null" json:"changed_by"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for PaymentCertificateVersion
func (PaymentCertificateVersion) TableName() string {
	return "payment_certificate_versions"
}

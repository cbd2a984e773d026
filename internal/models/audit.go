package models

import (
	"time"
)

// AuditLog represents a system audit entry. Audit writes are best-effort:
// a failed write is logged and swallowed, never propagated into the
// financial mutation it describes.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   string    `gorm:"size:64;not null;index" json:"actor_id"`
	Action    string    `gorm:"size:50;not null" json:"action"` // ISSUE, REVISE, CERTIFY, PAY, RELEASE, LOCK, UNLOCK, BUDGET
	Entity    string    `gorm:"size:50;not null" json:"entity"` // WorkOrder, PaymentCertificate, etc.
	EntityID  string    `gorm:"size:64;index" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"` // JSON or text description
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

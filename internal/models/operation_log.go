package models

import (
	"time"
)

// MutationOperationLog records one row per operation identifier. A row moves
// once from unapplied to applied and never reverts; the stored response
// summary is what a duplicate submission gets back.
type MutationOperationLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OperationID     string     `gorm:"size:64;not null;uniqueIndex" json:"operation_id"`
	EntityType      string     `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID        string     `gorm:"size:64;not null;index" json:"entity_id"`
	Applied         bool       `gorm:"default:false;not null" json:"applied"`
	ResponseSummary string     `gorm:"type:text" json:"response_summary"`
	AppliedAt       *time.Time `json:"applied_at"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for MutationOperationLog
func (MutationOperationLog) TableName() string {
	return "mutation_operation_logs"
}

package models

import (
	"time"
)

// DomainEvent is an outbox row describing a committed ledger change. Events
// are written strictly after the mutation commits, so consumers can never
// observe an uncommitted or rolled-back state.
type DomainEvent struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EventType  string     `gorm:"size:64;not null;index" json:"event_type"`
	EntityType string     `gorm:"size:50;not null" json:"entity_type"`
	EntityID   string     `gorm:"size:64;not null;index" json:"entity_id"`
	ProjectID  string     `gorm:"size:64;not null;index:idx_evt_project_code" json:"project_id"`
	CostCode   string     `gorm:"size:64;not null;index:idx_evt_project_code" json:"cost_code"`
	ActorID    string     `gorm:"size:64;not null" json:"actor_id"`
	Payload    string     `gorm:"type:jsonb" json:"payload"`
	OccurredAt time.Time  `gorm:"index" json:"occurred_at"`
	HandledAt  *time.Time `json:"handled_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName specifies the table name for DomainEvent
func (DomainEvent) TableName() string {
	return "domain_events"
}

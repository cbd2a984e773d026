package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/costledger/costledger-api/internal/jobs"
	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/pkg/logger"
	"gorm.io/gorm"
)

// Event types emitted by the ledger
const (
	TypeWorkOrderIssued      = "work_order.issued"
	TypeWorkOrderRevised     = "work_order.revised"
	TypeWorkOrderCancelled   = "work_order.cancelled"
	TypeCertificateCertified = "certificate.certified"
	TypeCertificateCancelled = "certificate.cancelled"
	TypePaymentRecorded      = "payment.recorded"
	TypeRetentionReleased    = "retention.released"
	TypeBudgetUpdated        = "budget.updated"
	TypeEntityLocked         = "entity.locked"
	TypeEntityUnlocked       = "entity.unlocked"
)

// Event describes one committed ledger change
type Event struct {
	Type       string
	EntityType string
	EntityID   string
	ProjectID  string
	CostCode   string
	ActorID    string
	Payload    map[string]string
}

// Publisher writes domain events to the outbox table off the request path.
// Publish is called strictly after the mutation's transaction commits, so no
// consumer can observe an uncommitted or rolled-back state. Failures are
// logged and never propagated to the caller.
type Publisher struct {
	db     *gorm.DB
	worker *jobs.Worker
}

func NewPublisher(db *gorm.DB, worker *jobs.Worker) *Publisher {
	return &Publisher{db: db, worker: worker}
}

// Publish enqueues the outbox write; it never blocks the caller and never
// returns an error to it.
func (p *Publisher) Publish(evt Event) {
	occurredAt := time.Now()
	p.worker.EnqueueAsync(func(ctx context.Context) error {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			logger.Warn("dropping domain event with unencodable payload", "type", evt.Type, "error", err)
			return nil
		}

		row := &models.DomainEvent{
			EventType:  evt.Type,
			EntityType: evt.EntityType,
			EntityID:   evt.EntityID,
			ProjectID:  evt.ProjectID,
			CostCode:   evt.CostCode,
			ActorID:    evt.ActorID,
			Payload:    string(payload),
			OccurredAt: occurredAt,
		}
		if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
			logger.Warn("domain event write failed", "type", evt.Type, "entity_id", evt.EntityID, "error", err)
			return nil
		}

		logger.Debug("domain event recorded", "type", evt.Type, "entity_id", evt.EntityID)
		return nil
	})
}

// List returns recorded events for a (project, cost code) pair, oldest first.
func (p *Publisher) List(ctx context.Context, projectID, costCode string, limit int) ([]models.DomainEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var rows []models.DomainEvent
	err := p.db.WithContext(ctx).
		Where("project_id = ? AND cost_code = ?", projectID, costCode).
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

package services

import (
	"context"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/pkg/logger"
	"gorm.io/gorm"
)

// AuditService records the who/what/when of ledger mutations. Writes are
// best-effort: a failed audit write is logged and swallowed so it can never
// affect the outcome of the financial mutation it describes.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Log records an audit entry
func (s *AuditService) Log(ctx context.Context, actorID, action, entity, entityID, details string) {
	entry := &models.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Warn("audit write failed", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs, newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset).Find(&logs)
	return logs, total, result.Error
}

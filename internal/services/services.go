package services

import (
	"github.com/costledger/costledger-api/internal/config"
	"github.com/costledger/costledger-api/internal/events"
	"github.com/costledger/costledger-api/internal/jobs"
	"github.com/costledger/costledger-api/internal/repository"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Ledger      *LedgerService
	Numbering   *NumberingService
	Invariants  *InvariantService
	Recalc      *RecalcService
	Idempotency *IdempotencyService
	Audit       *AuditService
	Events      *events.Publisher
}

// NewServices creates all service instances
func NewServices(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, worker *jobs.Worker) *Services {
	numbering := NewNumberingService(
		repos.Sequence, repos.WorkOrder, repos.Certificate,
		cfg.SequenceMaxRetries, cfg.SequenceRetryBackoff)
	invariants := NewInvariantService()
	recalc := NewRecalcService()
	idempotency := NewIdempotencyService(repos.Operation)
	audit := NewAuditService(db)
	publisher := events.NewPublisher(db, worker)

	return &Services{
		Ledger:      NewLedgerService(db, repos, numbering, invariants, recalc, idempotency, audit, publisher),
		Numbering:   numbering,
		Invariants:  invariants,
		Recalc:      recalc,
		Idempotency: idempotency,
		Audit:       audit,
		Events:      publisher,
	}
}

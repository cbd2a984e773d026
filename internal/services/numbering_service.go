package services

import (
	"context"
	"fmt"
	"time"

	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/pkg/logger"
)

// Document number prefixes
const (
	PrefixWorkOrder   = "WO"
	PrefixCertificate = "PC"
)

// NumberingService produces human-readable document numbers from the
// per-(tenant, prefix) atomic counter. Numbers are assigned only on issue
// and certify transitions, never on draft creation.
//
// The counter increment already guarantees uniqueness; the re-check against
// both ledger collections is belt and suspenders, with a linear backoff
// retry when a collision is somehow observed.
type NumberingService struct {
	sequences    repository.SequenceRepository
	workOrders   repository.WorkOrderRepository
	certificates repository.CertificateRepository
	maxRetries   int
	backoff      time.Duration
}

func NewNumberingService(
	sequences repository.SequenceRepository,
	workOrders repository.WorkOrderRepository,
	certificates repository.CertificateRepository,
	maxRetries int,
	backoff time.Duration,
) *NumberingService {
	if maxRetries < 1 {
		maxRetries = 5
	}
	return &NumberingService{
		sequences:    sequences,
		workOrders:   workOrders,
		certificates: certificates,
		maxRetries:   maxRetries,
		backoff:      backoff,
	}
}

// NextDocumentNumber allocates the next sequence value for (tenant, prefix)
// and formats it as "PREFIX-000001". The increment runs against the base
// connection, outside any surrounding transaction, so aborted mutations may
// leave gaps in the sequence but never duplicates.
func (s *NumberingService) NextDocumentNumber(ctx context.Context, tenantID, prefix string) (string, int64, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		seq, err := s.sequences.Next(ctx, tenantID, prefix)
		if err != nil {
			return "", 0, fmt.Errorf("failed to advance sequence %s/%s: %w", tenantID, prefix, err)
		}

		number := FormatDocumentNumber(prefix, seq)

		taken, err := s.numberTaken(ctx, number)
		if err != nil {
			return "", 0, err
		}
		if !taken {
			return number, seq, nil
		}

		logger.Warn("document number collision observed",
			"tenant", tenantID, "prefix", prefix, "number", number, "attempt", attempt)
		time.Sleep(s.backoff * time.Duration(attempt))
	}

	return "", 0, &SequenceCollisionError{TenantID: tenantID, Prefix: prefix, Attempts: s.maxRetries}
}

// FormatDocumentNumber renders a sequence value as "PREFIX-000001".
func FormatDocumentNumber(prefix string, sequence int64) string {
	return fmt.Sprintf("%s-%06d", prefix, sequence)
}

func (s *NumberingService) numberTaken(ctx context.Context, number string) (bool, error) {
	taken, err := s.workOrders.ExistsByDocumentNumber(ctx, number)
	if err != nil {
		return false, fmt.Errorf("failed to check work orders for %s: %w", number, err)
	}
	if taken {
		return true, nil
	}

	taken, err = s.certificates.ExistsByDocumentNumber(ctx, number)
	if err != nil {
		return false, fmt.Errorf("failed to check certificates for %s: %w", number, err)
	}
	return taken, nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IdempotencyService guards mutations with an operation identifier: a
// mutation executes at most once per id, and a duplicate submission gets the
// previously recorded outcome back without re-executing business logic.
type IdempotencyService struct {
	operations repository.OperationRepository
}

func NewIdempotencyService(operations repository.OperationRepository) *IdempotencyService {
	return &IdempotencyService{operations: operations}
}

// Check is the result of an idempotency lookup
type Check struct {
	OperationID string
	Duplicate   bool
	Response    json.RawMessage
}

// Ensure resolves the operation id (generating one when absent), records the
// intent, and reports whether this submission is a duplicate of an applied
// operation. Callers must short-circuit when Duplicate is true.
func (s *IdempotencyService) Ensure(ctx context.Context, operationID, entityType, entityID string) (*Check, error) {
	if operationID == "" {
		operationID = uuid.NewString()
	}

	existing, err := s.operations.FindByOperationID(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up operation %s: %w", operationID, err)
	}
	if existing != nil {
		if existing.Applied {
			return &Check{
				OperationID: operationID,
				Duplicate:   true,
				Response:    json.RawMessage(existing.ResponseSummary),
			}, nil
		}
		// Claimed but never applied: an earlier attempt failed or is still
		// running. Let the caller re-execute under the same id.
		return &Check{OperationID: operationID}, nil
	}

	err = s.operations.Create(ctx, &models.MutationOperationLog{
		OperationID: operationID,
		EntityType:  entityType,
		EntityID:    entityID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent submission claimed the id between lookup and
			// insert; surface that rather than racing it.
			return nil, ErrOperationInFlight
		}
		return nil, fmt.Errorf("failed to record operation %s: %w", operationID, err)
	}

	return &Check{OperationID: operationID}, nil
}

// MarkApplied records the outcome for future duplicates. This runs strictly
// after the mutation's transaction commits; a crash between commit and
// marking is the one window where a retry re-executes.
func (s *IdempotencyService) MarkApplied(ctx context.Context, operationID string, summary interface{}) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode response summary: %w", err)
	}
	return s.operations.MarkApplied(ctx, operationID, string(payload))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

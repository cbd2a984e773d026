package repository

import (
	"context"

	"gorm.io/gorm"
)

// SequenceRepository advances the per-(tenant, prefix) document counter.
// Next is a single atomic fetch-and-increment against the base connection,
// independent of any surrounding transaction: numbering only needs "no two
// callers get the same number", and an aborted mutation may leave a gap.
type SequenceRepository interface {
	Next(ctx context.Context, tenantID, prefix string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, tenantID, prefix string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO document_sequences (tenant_id, prefix, current_sequence)
		VALUES (?, ?, 1)
		ON CONFLICT (tenant_id, prefix)
		DO UPDATE SET current_sequence = document_sequences.current_sequence + 1
		RETURNING current_sequence`,
		tenantID, prefix,
	).Scan(&seq).Error
	return seq, err
}

package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
)

// SequenceRepository implements port.SequenceRepository on the document_sequences table
type SequenceRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sqldb.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{db: db, logger: logger}
}

// Next atomically increments and returns the tenant counter for prefix
func (r *SequenceRepository) Next(ctx context.Context, tenantID, prefix string) (int64, error) {
	query := `
		INSERT INTO document_sequences (tenant_id, prefix, last_value) VALUES (?, ?, 1)
		ON CONFLICT (tenant_id, prefix) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`

	var value int64
	if err := r.db.QueryRowContext(ctx, query, tenantID, prefix).Scan(&value); err != nil {
		r.logger.Error("Failed to allocate sequence",
			zap.String("tenant_id", tenantID), zap.String("prefix", prefix), zap.Error(err))
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return value, nil
}

var _ port.SequenceRepository = (*SequenceRepository)(nil)

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqldb.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	query := `
		INSERT INTO approval_history (
			id, tenant_id, instance_id, requisition_id, actor_user_id, stage_index, round,
			previous_status, new_status, action_type, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		history.ID, history.TenantID, history.InstanceID, history.RequisitionID, history.ActorUserID,
		history.StageIndex, history.Round, history.PreviousStatus, history.NewStatus,
		history.ActionType, history.Comments, history.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("instance_id", history.InstanceID), zap.String("action", history.ActionType), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// ListByInstance returns the audit trail of an instance in order
func (r *HistoryRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, tenant_id, instance_id, requisition_id, actor_user_id, stage_index, round,
			previous_status, new_status, action_type, comments, created_at
		FROM approval_history
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID, instanceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []*entity.ApprovalHistory
	for rows.Next() {
		var h entity.ApprovalHistory
		if err := rows.Scan(
			&h.ID, &h.TenantID, &h.InstanceID, &h.RequisitionID, &h.ActorUserID, &h.StageIndex, &h.Round,
			&h.PreviousStatus, &h.NewStatus, &h.ActionType, &h.Comments, &h.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)

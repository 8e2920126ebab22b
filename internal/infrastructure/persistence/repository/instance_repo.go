package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/procurement-approvals/pkg/database"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new approval instance repository
func NewInstanceRepository(db *sqldb.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

const instanceColumns = `
	id, tenant_id, requisition_id, workflow_id, status, current_stage_index,
	round, version, started_at, completed_at, created_at, updated_at`

// Create inserts the instance with its stages and approvers
func (r *InstanceRepository) Create(ctx context.Context, inst *entity.ApprovalInstance) error {
	if inst.Version == 0 {
		inst.Version = 1
	}
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `INSERT INTO approval_instances (` + instanceColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := r.db.ExecContext(txCtx, query,
			inst.ID, inst.TenantID, inst.RequisitionID, inst.WorkflowID, inst.Status.String(), inst.CurrentStageIndex,
			inst.Round, inst.Version, nullTime(inst.StartedAt), nullTime(inst.CompletedAt), inst.CreatedAt, inst.UpdatedAt,
		)
		if database.IsUniqueViolation(err) {
			return domainwf.ErrConcurrentModification
		}
		if err != nil {
			r.logger.Error("Failed to create approval instance",
				zap.String("instance_id", inst.ID), zap.String("requisition_id", inst.RequisitionID), zap.Error(err))
			return fmt.Errorf("failed to create instance: %w", err)
		}
		return r.insertStages(txCtx, inst)
	})
}

// GetByID retrieves an instance with its stages
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM approval_instances WHERE tenant_id = ? AND id = ?`
	return r.getOne(ctx, query, tenantID, id)
}

// GetByRequisitionID retrieves the instance attached to a requisition
func (r *InstanceRepository) GetByRequisitionID(ctx context.Context, tenantID, requisitionID string) (*entity.ApprovalInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM approval_instances WHERE tenant_id = ? AND requisition_id = ?`
	return r.getOne(ctx, query, tenantID, requisitionID)
}

// Update writes the instance if nobody else changed it since it was read
func (r *InstanceRepository) Update(ctx context.Context, inst *entity.ApprovalInstance) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `UPDATE approval_instances SET
				workflow_id = ?, status = ?, current_stage_index = ?, round = ?, version = version + 1,
				started_at = ?, completed_at = ?, updated_at = ?
			WHERE tenant_id = ? AND id = ? AND version = ?`

		result, err := r.db.ExecContext(txCtx, query,
			inst.WorkflowID, inst.Status.String(), inst.CurrentStageIndex, inst.Round,
			nullTime(inst.StartedAt), nullTime(inst.CompletedAt), inst.UpdatedAt,
			inst.TenantID, inst.ID, inst.Version,
		)
		if err != nil {
			r.logger.Error("Failed to update approval instance", zap.String("instance_id", inst.ID), zap.Error(err))
			return fmt.Errorf("failed to update instance: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			r.logger.Info("Approval instance version conflict",
				zap.String("instance_id", inst.ID), zap.Int64("expected_version", inst.Version))
			return domainwf.ErrConcurrentModification
		}

		// stages are rewritten wholesale; resubmission may change their shape
		if _, err := r.db.ExecContext(txCtx, `DELETE FROM approval_stage_approvers WHERE instance_id = ?`, inst.ID); err != nil {
			return fmt.Errorf("failed to clear stage approvers: %w", err)
		}
		if _, err := r.db.ExecContext(txCtx, `DELETE FROM approval_stages WHERE instance_id = ?`, inst.ID); err != nil {
			return fmt.Errorf("failed to clear stages: %w", err)
		}
		if err := r.insertStages(txCtx, inst); err != nil {
			return err
		}

		inst.Version++
		return nil
	})
}

// ListPendingForApprover lists instances awaiting userID in their current stage
func (r *InstanceRepository) ListPendingForApprover(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalInstance, error) {
	query := `
		SELECT i.id FROM approval_instances i
		JOIN approval_stage_approvers a
			ON a.instance_id = i.id AND a.stage_index = i.current_stage_index
		WHERE i.tenant_id = ? AND i.status = ? AND a.user_id = ? AND a.status = ?
		ORDER BY i.started_at ASC`

	rows, err := r.db.QueryContext(ctx, query,
		tenantID, domainwf.StatePendingApproval.String(), userID, string(entity.ApproverStatusPending))
	if err != nil {
		r.logger.Error("Failed to list pending instances", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending instances: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan instance id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	instances := make([]*entity.ApprovalInstance, 0, len(ids))
	for _, id := range ids {
		inst, err := r.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

func (r *InstanceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.ApprovalInstance, error) {
	var (
		inst        entity.ApprovalInstance
		status      string
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&inst.ID, &inst.TenantID, &inst.RequisitionID, &inst.WorkflowID, &status, &inst.CurrentStageIndex,
		&inst.Round, &inst.Version, &startedAt, &completedAt, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval instance", zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	inst.Status = domainwf.State(status)
	inst.StartedAt = timePtr(startedAt)
	inst.CompletedAt = timePtr(completedAt)

	if err := r.loadStages(ctx, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *InstanceRepository) insertStages(ctx context.Context, inst *entity.ApprovalInstance) error {
	for _, stage := range inst.Stages {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO approval_stages (instance_id, stage_index, name, level) VALUES (?, ?, ?, ?)`,
			inst.ID, stage.Index, stage.Name, stage.Level)
		if err != nil {
			return fmt.Errorf("failed to insert stage %d: %w", stage.Index, err)
		}
		for _, ap := range stage.Approvers {
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO approval_stage_approvers
					(instance_id, stage_index, position, user_id, role, status, comments, acted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				inst.ID, stage.Index, ap.Order, ap.UserID, ap.Role, string(ap.Status), ap.Comments, nullTime(ap.ActedAt))
			if err != nil {
				return fmt.Errorf("failed to insert stage approver %s: %w", ap.UserID, err)
			}
		}
	}
	return nil
}

func (r *InstanceRepository) loadStages(ctx context.Context, inst *entity.ApprovalInstance) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stage_index, name, level FROM approval_stages WHERE instance_id = ? ORDER BY stage_index ASC`,
		inst.ID)
	if err != nil {
		return fmt.Errorf("failed to load stages: %w", err)
	}
	var stages []entity.ApprovalStage
	for rows.Next() {
		var st entity.ApprovalStage
		if err := rows.Scan(&st.Index, &st.Name, &st.Level); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT stage_index, position, user_id, role, status, comments, acted_at
		FROM approval_stage_approvers WHERE instance_id = ?
		ORDER BY stage_index ASC, position ASC`, inst.ID)
	if err != nil {
		return fmt.Errorf("failed to load stage approvers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stageIndex int
			ap         entity.StageApprover
			status     string
			actedAt    sql.NullTime
		)
		if err := rows.Scan(&stageIndex, &ap.Order, &ap.UserID, &ap.Role, &status, &ap.Comments, &actedAt); err != nil {
			return fmt.Errorf("failed to scan stage approver: %w", err)
		}
		if stageIndex < 0 || stageIndex >= len(stages) {
			return fmt.Errorf("stage approver references unknown stage %d", stageIndex)
		}
		ap.Status = entity.ApproverStatus(status)
		ap.ActedAt = timePtr(actedAt)
		stages[stageIndex].Approvers = append(stages[stageIndex].Approvers, ap)
	}
	inst.Stages = stages
	return rows.Err()
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)

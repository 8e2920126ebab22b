package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new approval workflow template repository
func NewWorkflowRepository(db *sqldb.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `tenant_id, id, name, min_amount, max_amount, stage_names, role_labels, is_active, created_at`

// Upsert inserts or replaces a template
func (r *WorkflowRepository) Upsert(ctx context.Context, wf *entity.ApprovalWorkflow) error {
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = time.Now().UTC()
	}
	stageNames, err := json.Marshal(wf.StageNames)
	if err != nil {
		return fmt.Errorf("failed to encode stage names: %w", err)
	}
	roleLabels, err := json.Marshal(wf.RoleLabels)
	if err != nil {
		return fmt.Errorf("failed to encode role labels: %w", err)
	}

	var maxAmount interface{}
	if wf.MaxAmount != nil {
		maxAmount = *wf.MaxAmount
	}

	query := `INSERT INTO approval_workflows (` + workflowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name, min_amount = excluded.min_amount, max_amount = excluded.max_amount,
			stage_names = excluded.stage_names, role_labels = excluded.role_labels, is_active = excluded.is_active`

	_, err = r.db.ExecContext(ctx, query,
		wf.TenantID, wf.ID, wf.Name, wf.MinAmount, maxAmount, string(stageNames), string(roleLabels), wf.IsActive, wf.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert approval workflow", zap.String("workflow_id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}
	return nil
}

// GetByID retrieves a template
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM approval_workflows WHERE tenant_id = ? AND id = ?`
	wf, err := scanWorkflow(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// ListActive lists the active templates of a tenant
func (r *WorkflowRepository) ListActive(ctx context.Context, tenantID string) ([]*entity.ApprovalWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM approval_workflows
		WHERE tenant_id = ? AND is_active = ?
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tenantID, true)
	if err != nil {
		r.logger.Error("Failed to list approval workflows", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*entity.ApprovalWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func scanWorkflow(row rowScanner) (*entity.ApprovalWorkflow, error) {
	var (
		wf         entity.ApprovalWorkflow
		maxAmount  decimal.NullDecimal
		stageNames string
		roleLabels string
	)
	if err := row.Scan(&wf.TenantID, &wf.ID, &wf.Name, &wf.MinAmount, &maxAmount,
		&stageNames, &roleLabels, &wf.IsActive, &wf.CreatedAt); err != nil {
		return nil, err
	}
	if maxAmount.Valid {
		v := maxAmount.Decimal
		wf.MaxAmount = &v
	}
	if err := json.Unmarshal([]byte(stageNames), &wf.StageNames); err != nil {
		return nil, fmt.Errorf("failed to decode stage names: %w", err)
	}
	if err := json.Unmarshal([]byte(roleLabels), &wf.RoleLabels); err != nil {
		return nil, fmt.Errorf("failed to decode role labels: %w", err)
	}
	return &wf, nil
}

var _ port.WorkflowRepository = (*WorkflowRepository)(nil)

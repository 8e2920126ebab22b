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

// RequisitionRepository implements port.RequisitionRepository
type RequisitionRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *sqldb.DB, logger *zap.Logger) port.RequisitionRepository {
	return &RequisitionRepository{db: db, logger: logger}
}

const requisitionColumns = `
	id, tenant_id, number, title, description, created_by, cost_center_id,
	total_amount, currency, requisition_type, status, approval_instance_id,
	current_stage_name, current_approver_ids, document_type, document_id,
	generation_status, generation_attempts, generation_error,
	submitted_at, approved_at, created_at, updated_at`

// Create inserts a new requisition
func (r *RequisitionRepository) Create(ctx context.Context, req *entity.Requisition) error {
	approvers, err := encodeJSON(emptyIfNil(req.CurrentApproverIDs))
	if err != nil {
		return fmt.Errorf("failed to encode approver ids: %w", err)
	}

	query := `INSERT INTO requisitions (` + requisitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.TenantID, req.Number, req.Title, req.Description, req.CreatedBy, req.CostCenterID,
		req.TotalAmount, req.Currency, string(req.Type), string(req.Status), req.ApprovalInstanceID,
		req.CurrentStageName, approvers, string(req.DocumentType), nullString(req.DocumentID),
		string(req.GenerationStatus), req.GenerationAttempts, req.GenerationError,
		nullTime(req.SubmittedAt), nullTime(req.ApprovedAt), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create requisition",
			zap.String("tenant_id", req.TenantID), zap.String("number", req.Number), zap.Error(err))
		return fmt.Errorf("failed to create requisition: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant-scoped requisition
func (r *RequisitionRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE tenant_id = ? AND id = ?`

	req, err := scanRequisition(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get requisition",
			zap.String("tenant_id", tenantID), zap.String("requisition_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// GetByIDs retrieves several requisitions of a tenant, newest first
func (r *RequisitionRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Requisition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + requisitionColumns + ` FROM requisitions
		WHERE tenant_id = ? AND id IN (` + placeholders(len(ids)) + `)
		ORDER BY submitted_at DESC, created_at DESC`

	args := append([]interface{}{tenantID}, stringArgs(ids)...)
	return r.queryList(ctx, "failed to list requisitions", query, args...)
}

// UpdateTotals writes the derived total and requisition type
func (r *RequisitionRepository) UpdateTotals(ctx context.Context, tenantID, id string, total decimal.Decimal, reqType entity.RequisitionType) error {
	query := `UPDATE requisitions SET total_amount = ?, requisition_type = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`

	if _, err := r.db.ExecContext(ctx, query, total, string(reqType), time.Now().UTC(), tenantID, id); err != nil {
		r.logger.Error("Failed to update requisition totals", zap.String("requisition_id", id), zap.Error(err))
		return fmt.Errorf("failed to update requisition totals: %w", err)
	}
	return nil
}

// UpdateApprovalSnapshot writes the denormalized approval state
func (r *RequisitionRepository) UpdateApprovalSnapshot(ctx context.Context, req *entity.Requisition) error {
	approvers, err := encodeJSON(emptyIfNil(req.CurrentApproverIDs))
	if err != nil {
		return fmt.Errorf("failed to encode approver ids: %w", err)
	}

	query := `UPDATE requisitions SET
			status = ?, approval_instance_id = ?, current_stage_name = ?, current_approver_ids = ?,
			generation_status = ?, submitted_at = ?, approved_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`

	req.UpdatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, query,
		string(req.Status), req.ApprovalInstanceID, req.CurrentStageName, approvers,
		string(req.GenerationStatus), nullTime(req.SubmittedAt), nullTime(req.ApprovedAt), req.UpdatedAt,
		req.TenantID, req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update requisition approval snapshot",
			zap.String("requisition_id", req.ID), zap.String("status", string(req.Status)), zap.Error(err))
		return fmt.Errorf("failed to update requisition snapshot: %w", err)
	}
	return nil
}

// LinkDocument sets the back-reference only when no document is linked yet
func (r *RequisitionRepository) LinkDocument(ctx context.Context, tenantID, id string, docType entity.DocumentType, documentID string) (bool, error) {
	query := `UPDATE requisitions SET
			document_type = ?, document_id = ?, generation_status = ?, generation_error = '', updated_at = ?
		WHERE tenant_id = ? AND id = ? AND document_id IS NULL`

	result, err := r.db.ExecContext(ctx, query,
		string(docType), documentID, string(entity.GenerationStatusGenerated), time.Now().UTC(), tenantID, id)
	if err != nil {
		r.logger.Error("Failed to link document", zap.String("requisition_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to link document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateGeneration records the outcome of a generation attempt
func (r *RequisitionRepository) UpdateGeneration(ctx context.Context, tenantID, id string, status entity.GenerationStatus, errMsg string, countAttempt bool) error {
	increment := 0
	if countAttempt {
		increment = 1
	}
	query := `UPDATE requisitions SET
			generation_status = ?, generation_error = ?, generation_attempts = generation_attempts + ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND document_id IS NULL`

	if _, err := r.db.ExecContext(ctx, query, string(status), errMsg, increment, time.Now().UTC(), tenantID, id); err != nil {
		r.logger.Error("Failed to update generation status",
			zap.String("requisition_id", id), zap.String("generation_status", string(status)), zap.Error(err))
		return fmt.Errorf("failed to update generation status: %w", err)
	}
	return nil
}

// ListGenerationBacklog lists approved requisitions still awaiting their document
func (r *RequisitionRepository) ListGenerationBacklog(ctx context.Context, approvedBefore time.Time, maxAttempts, limit int) ([]*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions
		WHERE status = ? AND document_id IS NULL
			AND generation_status IN (?, ?)
			AND approved_at <= ?
			AND generation_attempts < ?
		ORDER BY approved_at ASC
		LIMIT ?`

	return r.queryList(ctx, "failed to list generation backlog", query,
		string(entity.RequisitionStatusApproved),
		string(entity.GenerationStatusPending), string(entity.GenerationStatusFailed),
		approvedBefore.UTC(), maxAttempts, limit,
	)
}

func (r *RequisitionRepository) queryList(ctx context.Context, msg, query string, args ...interface{}) ([]*entity.Requisition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query requisitions", zap.Error(err))
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	defer rows.Close()

	var out []*entity.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequisition(row rowScanner) (*entity.Requisition, error) {
	var (
		req         entity.Requisition
		reqType     string
		status      string
		approvers   string
		docType     string
		documentID  sql.NullString
		genStatus   string
		submittedAt sql.NullTime
		approvedAt  sql.NullTime
	)
	err := row.Scan(
		&req.ID, &req.TenantID, &req.Number, &req.Title, &req.Description, &req.CreatedBy, &req.CostCenterID,
		&req.TotalAmount, &req.Currency, &reqType, &status, &req.ApprovalInstanceID,
		&req.CurrentStageName, &approvers, &docType, &documentID,
		&genStatus, &req.GenerationAttempts, &req.GenerationError,
		&submittedAt, &approvedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Type = entity.RequisitionType(reqType)
	req.Status = entity.RequisitionStatus(status)
	req.DocumentType = entity.DocumentType(docType)
	req.DocumentID = documentID.String
	req.GenerationStatus = entity.GenerationStatus(genStatus)
	req.SubmittedAt = timePtr(submittedAt)
	req.ApprovedAt = timePtr(approvedAt)
	if approvers != "" {
		if err := json.Unmarshal([]byte(approvers), &req.CurrentApproverIDs); err != nil {
			return nil, fmt.Errorf("failed to decode approver ids: %w", err)
		}
	}
	return &req, nil
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ port.RequisitionRepository = (*RequisitionRepository)(nil)

package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/procurement-approvals/migrations"
	"github.com/garyjia/procurement-approvals/pkg/database"
)

const testTenant = "tenant-1"

func setupTestDB(t *testing.T) (*sqldb.DB, *zap.Logger) {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "repo.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background(), migrations.FS, db.Dialect.MigrationsDir()))

	sdb := sqldb.New(db, logger)
	require.NoError(t, NewTenantRepository(sdb, logger).Upsert(context.Background(),
		&entity.Tenant{ID: testTenant, Code: "ACME", Name: "Acme"}))
	return sdb, logger
}

func newRequisition(id string) *entity.Requisition {
	now := time.Now().UTC()
	return &entity.Requisition{
		ID:           id,
		TenantID:     testTenant,
		Number:       "REQ-" + id,
		Title:        "Laptops",
		CreatedBy:    "requester",
		CostCenterID: "cc-1",
		TotalAmount:  decimal.RequireFromString("1250.50"),
		Currency:     "USD",
		Type:         entity.RequisitionTypeCatalogItem,
		Status:       entity.RequisitionStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRequisitionRepository_CRUD(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	repo := NewRequisitionRepository(db, logger)

	req := newRequisition("r-1")
	require.NoError(t, repo.Create(ctx, req))

	got, err := repo.GetByID(ctx, testTenant, "r-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, req.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, entity.RequisitionStatusDraft, got.Status)
	assert.Empty(t, got.CurrentApproverIDs)

	missing, err := repo.GetByID(ctx, "other-tenant", "r-1")
	require.NoError(t, err)
	assert.Nil(t, missing, "requisitions are tenant scoped")

	require.NoError(t, repo.UpdateTotals(ctx, testTenant, "r-1", decimal.NewFromInt(99), entity.RequisitionTypeCustomItem))

	now := time.Now().UTC()
	got.Status = entity.RequisitionStatusPendingApproval
	got.CurrentApproverIDs = []string{"a", "b"}
	got.CurrentStageName = "Cost Center Head"
	got.SubmittedAt = &now
	require.NoError(t, repo.UpdateApprovalSnapshot(ctx, got))

	got, err = repo.GetByID(ctx, testTenant, "r-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.CurrentApproverIDs)
	assert.Equal(t, entity.RequisitionTypeCustomItem, got.Type)
	assert.True(t, decimal.NewFromInt(99).Equal(got.TotalAmount))
	require.NotNil(t, got.SubmittedAt)
}

func TestRequisitionRepository_LinkDocumentOnce(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	repo := NewRequisitionRepository(db, logger)
	require.NoError(t, repo.Create(ctx, newRequisition("r-1")))

	linked, err := repo.LinkDocument(ctx, testTenant, "r-1", entity.DocumentTypePurchaseOrder, "po-1")
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = repo.LinkDocument(ctx, testTenant, "r-1", entity.DocumentTypeRFQ, "rfq-1")
	require.NoError(t, err)
	assert.False(t, linked, "second link must not overwrite the back-reference")

	got, err := repo.GetByID(ctx, testTenant, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "po-1", got.DocumentID)
	assert.Equal(t, entity.GenerationStatusGenerated, got.GenerationStatus)
}

func TestRequisitionRepository_GenerationBacklog(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	repo := NewRequisitionRepository(db, logger)

	past := time.Now().UTC().Add(-time.Hour)
	for _, tc := range []struct {
		id       string
		status   entity.GenerationStatus
		attempts int
	}{
		{"pending", entity.GenerationStatusPending, 0},
		{"failed", entity.GenerationStatusFailed, 1},
		{"exhausted", entity.GenerationStatusFailed, 5},
		{"skipped", entity.GenerationStatusSkipped, 0},
	} {
		req := newRequisition(tc.id)
		req.Status = entity.RequisitionStatusApproved
		req.GenerationStatus = tc.status
		req.GenerationAttempts = tc.attempts
		req.ApprovedAt = &past
		require.NoError(t, repo.Create(ctx, req))
	}

	backlog, err := repo.ListGenerationBacklog(ctx, time.Now().UTC(), 3, 10)
	require.NoError(t, err)
	var ids []string
	for _, r := range backlog {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"pending", "failed"}, ids)

	require.NoError(t, repo.UpdateGeneration(ctx, testTenant, "failed", entity.GenerationStatusFailed, "boom", true))
	got, err := repo.GetByID(ctx, testTenant, "failed")
	require.NoError(t, err)
	assert.Equal(t, 2, got.GenerationAttempts)
	assert.Equal(t, "boom", got.GenerationError)
}

func TestItemRepository(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRequisitionRepository(db, logger).Create(ctx, newRequisition("r-1")))
	repo := NewItemRepository(db, logger)

	now := time.Now().UTC()
	for i, name := range []string{"Monitor", "Keyboard"} {
		item := &entity.RequisitionItem{
			ID: uuid.NewString(), TenantID: testTenant, RequisitionID: "r-1", LineNo: i + 1,
			Name: name, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.25"),
			Currency: "USD", CreatedAt: now, UpdatedAt: now,
		}
		item.Recompute()
		require.NoError(t, repo.Create(ctx, item))
	}

	items, err := repo.ListByRequisition(ctx, testTenant, "r-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Monitor", items[0].Name)
	assert.True(t, decimal.RequireFromString("20.5").Equal(items[0].TotalPrice))

	items[0].Quantity = decimal.NewFromInt(3)
	items[0].Recompute()
	require.NoError(t, repo.Update(ctx, items[0]))
	got, err := repo.GetByID(ctx, testTenant, items[0].ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.75").Equal(got.TotalPrice))

	require.NoError(t, repo.Delete(ctx, testTenant, items[1].ID))
	items, err = repo.ListByRequisition(ctx, testTenant, "r-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func newInstance(requisitionID string) *entity.ApprovalInstance {
	now := time.Now().UTC()
	return &entity.ApprovalInstance{
		ID:            entity.ApprovalInstanceID(requisitionID),
		TenantID:      testTenant,
		RequisitionID: requisitionID,
		WorkflowID:    "wf-1",
		Status:        domainwf.StatePendingApproval,
		Round:         1,
		StartedAt:     &now,
		CreatedAt:     now,
		UpdatedAt:     now,
		Stages: []entity.ApprovalStage{
			{Index: 0, Name: "Head", Level: 1, Approvers: []entity.StageApprover{
				{UserID: "A", Role: entity.RoleCostCenterHead, Order: 1, Status: entity.ApproverStatusPending},
				{UserID: "B", Role: entity.RoleApprover, Order: 2, Status: entity.ApproverStatusPending},
			}},
			{Index: 1, Name: "Finance", Level: 2, Approvers: []entity.StageApprover{
				{UserID: "C", Role: entity.RoleApprover, Order: 1, Status: entity.ApproverStatusPending},
			}},
		},
	}
}

func TestInstanceRepository_RoundTripAndVersioning(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRequisitionRepository(db, logger).Create(ctx, newRequisition("r-1")))
	repo := NewInstanceRepository(db, logger)

	inst := newInstance("r-1")
	require.NoError(t, repo.Create(ctx, inst))
	assert.Equal(t, int64(1), inst.Version)

	dup := newInstance("r-1")
	assert.ErrorIs(t, repo.Create(ctx, dup), domainwf.ErrConcurrentModification)

	loaded, err := repo.GetByRequisitionID(ctx, testTenant, "r-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, []string{"A", "B"}, loaded.Stages[0].PendingUserIDs())

	stale, err := repo.GetByID(ctx, testTenant, inst.ID)
	require.NoError(t, err)

	acted := time.Now().UTC()
	loaded.Stages[0].Approvers[0].Status = entity.ApproverStatusApproved
	loaded.Stages[0].Approvers[0].ActedAt = &acted
	require.NoError(t, repo.Update(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	stale.Stages[0].Approvers[1].Status = entity.ApproverStatusApproved
	assert.ErrorIs(t, repo.Update(ctx, stale), domainwf.ErrConcurrentModification)

	reloaded, err := repo.GetByID(ctx, testTenant, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApproverStatusApproved, reloaded.Stages[0].Approvers[0].Status)
	assert.Equal(t, entity.ApproverStatusPending, reloaded.Stages[0].Approvers[1].Status)
	require.NotNil(t, reloaded.Stages[0].Approvers[0].ActedAt)
}

func TestInstanceRepository_ConcurrentUpdateSingleWinner(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRequisitionRepository(db, logger).Create(ctx, newRequisition("r-1")))
	repo := NewInstanceRepository(db, logger)
	require.NoError(t, repo.Create(ctx, newInstance("r-1")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	copies := make([]*entity.ApprovalInstance, 4)
	for i := range copies {
		inst, err := repo.GetByRequisitionID(ctx, testTenant, "r-1")
		require.NoError(t, err)
		copies[i] = inst
	}
	for _, inst := range copies {
		wg.Add(1)
		go func(inst *entity.ApprovalInstance) {
			defer wg.Done()
			inst.CurrentStageIndex = 1
			if err := repo.Update(ctx, inst); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(inst)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestInstanceRepository_ListPendingForApprover(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	reqRepo := NewRequisitionRepository(db, logger)
	repo := NewInstanceRepository(db, logger)

	for _, id := range []string{"r-1", "r-2"} {
		require.NoError(t, reqRepo.Create(ctx, newRequisition(id)))
		require.NoError(t, repo.Create(ctx, newInstance(id)))
	}

	pending, err := repo.ListPendingForApprover(ctx, testTenant, "A")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = repo.ListPendingForApprover(ctx, testTenant, "C")
	require.NoError(t, err)
	assert.Empty(t, pending, "later stages are not actionable")

	first, err := repo.GetByRequisitionID(ctx, testTenant, "r-1")
	require.NoError(t, err)
	first.Stages[0].Approvers[0].Status = entity.ApproverStatusApproved
	first.Stages[0].Approvers[1].Status = entity.ApproverStatusApproved
	first.CurrentStageIndex = 1
	require.NoError(t, repo.Update(ctx, first))

	pending, err = repo.ListPendingForApprover(ctx, testTenant, "C")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r-1", pending[0].RequisitionID)
}

func TestSequenceRepository_Next(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	repo := NewSequenceRepository(db, logger)

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next(ctx, testTenant, "PO")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.Next(ctx, testTenant, "RFQ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counters are per prefix")

	got, err = repo.Next(ctx, "tenant-2", "PO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counters are per tenant")
}

func TestCostCenterAndWorkflowRepositories(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()

	ccRepo := NewCostCenterRepository(db, logger)
	cc := &entity.CostCenter{
		ID: "cc-1", TenantID: testTenant, Name: "Engineering", HeadUserID: "H",
		Approvers: []entity.CostCenterApprover{{UserID: "B", Level: 3}, {UserID: "A"}},
	}
	require.NoError(t, ccRepo.Upsert(ctx, cc))
	cc.Approvers = cc.Approvers[:1]
	require.NoError(t, ccRepo.Upsert(ctx, cc))

	got, err := ccRepo.GetByID(ctx, testTenant, "cc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "H", got.HeadUserID)
	assert.Equal(t, []entity.CostCenterApprover{{UserID: "B", Level: 3}}, got.Approvers)

	wfRepo := NewWorkflowRepository(db, logger)
	maxAmount := decimal.NewFromInt(5000)
	require.NoError(t, wfRepo.Upsert(ctx, &entity.ApprovalWorkflow{
		ID: "small", TenantID: testTenant, Name: "Small", MinAmount: decimal.Zero, MaxAmount: &maxAmount,
		StageNames: map[int]string{1: "Head"}, IsActive: true,
	}))
	require.NoError(t, wfRepo.Upsert(ctx, &entity.ApprovalWorkflow{
		ID: "retired", TenantID: testTenant, Name: "Retired", MinAmount: decimal.Zero, IsActive: false,
	}))

	active, err := wfRepo.ListActive(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].MaxAmount)
	assert.True(t, maxAmount.Equal(*active[0].MaxAmount))
	assert.Equal(t, "Head", active[0].StageNames[1])
}

func TestDocumentRepository_OnePerRequisition(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRequisitionRepository(db, logger).Create(ctx, newRequisition("r-1")))
	repo := NewDocumentRepository(db, logger)

	now := time.Now().UTC()
	po := &entity.PurchaseOrder{
		ID: "po-1", TenantID: testTenant, Number: "PO-ACME-2026-000001", RequisitionID: "r-1",
		VendorID: "v-1", Status: entity.DocumentStatusDraft, TotalAmount: decimal.NewFromInt(100),
		Currency: "USD", CreatedBy: "requester", CreatedAt: now,
		Items: []*entity.DocumentItem{{RequisitionItemID: "i-1", LineNo: 1, Name: "Monitor",
			Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TotalPrice: decimal.NewFromInt(100)}},
	}
	require.NoError(t, repo.CreatePurchaseOrder(ctx, po))

	rfq := &entity.RFQ{
		ID: "rfq-1", TenantID: testTenant, Number: "RFQ-ACME-2026-000001", RequisitionID: "r-1",
		Title: "dup", Status: entity.DocumentStatusDraft, EstimatedTotal: decimal.NewFromInt(100),
		Currency: "USD", SubmissionDeadline: now.Add(7 * 24 * time.Hour), CreatedBy: "requester", CreatedAt: now,
	}
	require.NoError(t, repo.CreateRFQ(ctx, rfq), "RFQ and PO tables are guarded separately")

	second := *po
	second.ID = "po-2"
	second.Number = "PO-ACME-2026-000002"
	second.Items = nil
	assert.ErrorIs(t, repo.CreatePurchaseOrder(ctx, &second), domainwf.ErrDocumentExists)

	got, err := repo.GetPurchaseOrder(ctx, testTenant, "po-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Monitor", got.Items[0].Name)
}

func TestDocumentRepository_NumberCollisionIsNotDocumentExists(t *testing.T) {
	db, logger := setupTestDB(t)
	ctx := context.Background()
	reqRepo := NewRequisitionRepository(db, logger)
	require.NoError(t, reqRepo.Create(ctx, newRequisition("r-1")))
	require.NoError(t, reqRepo.Create(ctx, newRequisition("r-2")))
	repo := NewDocumentRepository(db, logger)

	now := time.Now().UTC()
	po := &entity.PurchaseOrder{
		ID: "po-1", TenantID: testTenant, Number: "PO-ACME-2026-000001", RequisitionID: "r-1",
		VendorID: "v-1", Status: entity.DocumentStatusDraft, TotalAmount: decimal.NewFromInt(100),
		Currency: "USD", CreatedBy: "requester", CreatedAt: now,
	}
	require.NoError(t, repo.CreatePurchaseOrder(ctx, po))

	clash := *po
	clash.ID = "po-2"
	clash.RequisitionID = "r-2"
	err := repo.CreatePurchaseOrder(ctx, &clash)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainwf.ErrDocumentExists)

	rfq := &entity.RFQ{
		ID: "rfq-1", TenantID: testTenant, Number: "RFQ-ACME-2026-000001", RequisitionID: "r-2",
		Title: "first", Status: entity.DocumentStatusDraft, EstimatedTotal: decimal.NewFromInt(10),
		Currency: "USD", SubmissionDeadline: now.Add(7 * 24 * time.Hour), CreatedBy: "requester", CreatedAt: now,
	}
	require.NoError(t, repo.CreateRFQ(ctx, rfq))
	rfqClash := *rfq
	rfqClash.ID = "rfq-2"
	rfqClash.RequisitionID = "r-1"
	err = repo.CreateRFQ(ctx, &rfqClash)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainwf.ErrDocumentExists)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/application/dispatcher"
	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/application/workflow"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// --- requisitions ---

type mockRequisitionRepo struct {
	mu                 sync.Mutex
	reqs               map[string]*entity.Requisition
	updateSnapshotFunc func(ctx context.Context, req *entity.Requisition) error
}

func newMockRequisitionRepo() *mockRequisitionRepo {
	return &mockRequisitionRepo{reqs: map[string]*entity.Requisition{}}
}

func cloneRequisition(r *entity.Requisition) *entity.Requisition {
	cp := *r
	cp.CurrentApproverIDs = append([]string(nil), r.CurrentApproverIDs...)
	return &cp
}

func (m *mockRequisitionRepo) put(r *entity.Requisition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[r.ID] = cloneRequisition(r)
}

func (m *mockRequisitionRepo) get(id string) *entity.Requisition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reqs[id]; ok {
		return cloneRequisition(r)
	}
	return nil
}

func (m *mockRequisitionRepo) Create(ctx context.Context, req *entity.Requisition) error {
	m.put(req)
	return nil
}

func (m *mockRequisitionRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Requisition, error) {
	r := m.get(id)
	if r == nil || r.TenantID != tenantID {
		return nil, nil
	}
	return r, nil
}

func (m *mockRequisitionRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Requisition, error) {
	var out []*entity.Requisition
	for _, id := range ids {
		if r, _ := m.GetByID(ctx, tenantID, id); r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRequisitionRepo) UpdateTotals(ctx context.Context, tenantID, id string, total decimal.Decimal, reqType entity.RequisitionType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reqs[id]; ok {
		r.TotalAmount, r.Type = total, reqType
	}
	return nil
}

func (m *mockRequisitionRepo) UpdateApprovalSnapshot(ctx context.Context, req *entity.Requisition) error {
	if m.updateSnapshotFunc != nil {
		if err := m.updateSnapshotFunc(ctx, req); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[req.ID]
	if !ok {
		return fmt.Errorf("requisition %s not found", req.ID)
	}
	r.Status = req.Status
	r.ApprovalInstanceID = req.ApprovalInstanceID
	r.CurrentStageName = req.CurrentStageName
	r.CurrentApproverIDs = append([]string(nil), req.CurrentApproverIDs...)
	r.GenerationStatus = req.GenerationStatus
	r.SubmittedAt = req.SubmittedAt
	r.ApprovedAt = req.ApprovedAt
	return nil
}

func (m *mockRequisitionRepo) LinkDocument(ctx context.Context, tenantID, id string, docType entity.DocumentType, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.DocumentID != "" {
		return false, nil
	}
	r.DocumentType, r.DocumentID = docType, documentID
	r.GenerationStatus, r.GenerationError = entity.GenerationStatusGenerated, ""
	return true, nil
}

func (m *mockRequisitionRepo) UpdateGeneration(ctx context.Context, tenantID, id string, status entity.GenerationStatus, errMsg string, countAttempt bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.DocumentID != "" {
		return nil
	}
	r.GenerationStatus, r.GenerationError = status, errMsg
	if countAttempt {
		r.GenerationAttempts++
	}
	return nil
}

func (m *mockRequisitionRepo) ListGenerationBacklog(ctx context.Context, approvedBefore time.Time, maxAttempts, limit int) ([]*entity.Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Requisition
	for _, r := range m.reqs {
		if r.GenerationPending() && r.ApprovedAt != nil && !r.ApprovedAt.After(approvedBefore) && r.GenerationAttempts < maxAttempts {
			out = append(out, cloneRequisition(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- items ---

type mockItemRepo struct {
	mu    sync.Mutex
	items map[string]*entity.RequisitionItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: map[string]*entity.RequisitionItem{}}
}

func (m *mockItemRepo) Create(ctx context.Context, item *entity.RequisitionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockItemRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.RequisitionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.TenantID != tenantID {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *mockItemRepo) ListByRequisition(ctx context.Context, tenantID, requisitionID string) ([]*entity.RequisitionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RequisitionItem
	for _, item := range m.items {
		if item.TenantID == tenantID && item.RequisitionID == requisitionID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
	return out, nil
}

func (m *mockItemRepo) Update(ctx context.Context, item *entity.RequisitionItem) error {
	return m.Create(ctx, item)
}

func (m *mockItemRepo) UpdateTotalPrice(ctx context.Context, tenantID, id string, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.TotalPrice = total
	}
	return nil
}

func (m *mockItemRepo) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// --- approval instances ---

type mockInstanceRepo struct {
	mu         sync.Mutex
	instances  map[string]*entity.ApprovalInstance
	updateFunc func(ctx context.Context, inst *entity.ApprovalInstance) error
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{instances: map[string]*entity.ApprovalInstance{}}
}

func cloneInstance(inst *entity.ApprovalInstance) *entity.ApprovalInstance {
	cp := *inst
	cp.Stages = make([]entity.ApprovalStage, len(inst.Stages))
	for i, stage := range inst.Stages {
		stage.Approvers = append([]entity.StageApprover(nil), stage.Approvers...)
		cp.Stages[i] = stage
	}
	return &cp
}

func (m *mockInstanceRepo) Create(ctx context.Context, inst *entity.ApprovalInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.ID]; ok {
		return domainwf.ErrConcurrentModification
	}
	m.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok || inst.TenantID != tenantID {
		return nil, nil
	}
	return cloneInstance(inst), nil
}

func (m *mockInstanceRepo) GetByRequisitionID(ctx context.Context, tenantID, requisitionID string) (*entity.ApprovalInstance, error) {
	return m.GetByID(ctx, tenantID, entity.ApprovalInstanceID(requisitionID))
}

func (m *mockInstanceRepo) Update(ctx context.Context, inst *entity.ApprovalInstance) error {
	if m.updateFunc != nil {
		if err := m.updateFunc(ctx, inst); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.instances[inst.ID]
	if !ok || stored.Version != inst.Version {
		return domainwf.ErrConcurrentModification
	}
	inst.Version++
	m.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (m *mockInstanceRepo) ListPendingForApprover(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalInstance
	for _, inst := range m.instances {
		if inst.TenantID != tenantID {
			continue
		}
		for _, id := range inst.CurrentApproverIDs() {
			if id == userID {
				out = append(out, cloneInstance(inst))
				break
			}
		}
	}
	return out, nil
}

// --- history ---

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.ApprovalHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.NewString()
	cp := *h
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockHistoryRepo) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalHistory
	for _, h := range m.entries {
		if h.TenantID == tenantID && h.InstanceID == instanceID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- organization ---

type mockCostCenterRepo struct {
	centers map[string]*entity.CostCenter
}

func (m *mockCostCenterRepo) Upsert(ctx context.Context, cc *entity.CostCenter) error {
	if m.centers == nil {
		m.centers = map[string]*entity.CostCenter{}
	}
	cp := *cc
	m.centers[cc.ID] = &cp
	return nil
}

func (m *mockCostCenterRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.CostCenter, error) {
	cc, ok := m.centers[id]
	if !ok || cc.TenantID != tenantID {
		return nil, nil
	}
	return cc, nil
}

type mockWorkflowRepo struct {
	workflows []*entity.ApprovalWorkflow
	listErr   error
}

func (m *mockWorkflowRepo) Upsert(ctx context.Context, wf *entity.ApprovalWorkflow) error {
	m.workflows = append(m.workflows, wf)
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalWorkflow, error) {
	for _, wf := range m.workflows {
		if wf.TenantID == tenantID && wf.ID == id {
			return wf, nil
		}
	}
	return nil, nil
}

func (m *mockWorkflowRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.ApprovalWorkflow, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.ApprovalWorkflow
	for _, wf := range m.workflows {
		if wf.TenantID == tenantID && wf.IsActive {
			out = append(out, wf)
		}
	}
	return out, nil
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *entity.User) error {
	if m.users == nil {
		m.users = map[string]*entity.User{}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.User, error) {
	var out []*entity.User
	for _, id := range ids {
		if u, _ := m.GetByID(ctx, tenantID, id); u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

type mockTenantRepo struct {
	tenants map[string]*entity.Tenant
}

func (m *mockTenantRepo) Upsert(ctx context.Context, tenant *entity.Tenant) error {
	if m.tenants == nil {
		m.tenants = map[string]*entity.Tenant{}
	}
	cp := *tenant
	m.tenants[tenant.ID] = &cp
	return nil
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return m.tenants[id], nil
}

type mockCatalogRepo struct {
	products map[string]*entity.CatalogProduct
}

func (m *mockCatalogRepo) Upsert(ctx context.Context, p *entity.CatalogProduct) error {
	if m.products == nil {
		m.products = map[string]*entity.CatalogProduct{}
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockCatalogRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.CatalogProduct, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	return p, nil
}

type mockSequenceRepo struct {
	mu   sync.Mutex
	next map[string]int64
}

func (m *mockSequenceRepo) Next(ctx context.Context, tenantID, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next == nil {
		m.next = map[string]int64{}
	}
	m.next[tenantID+"/"+prefix]++
	return m.next[tenantID+"/"+prefix], nil
}

// --- documents ---

type mockDocumentRepo struct {
	mu           sync.Mutex
	pos          map[string]*entity.PurchaseOrder
	rfqs         map[string]*entity.RFQ
	byReq        map[string]string
	createPOErr  error
	createPOFunc func(po *entity.PurchaseOrder) error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{
		pos:   map[string]*entity.PurchaseOrder{},
		rfqs:  map[string]*entity.RFQ{},
		byReq: map[string]string{},
	}
}

func (m *mockDocumentRepo) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	if m.createPOFunc != nil {
		return m.createPOFunc(po)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPOErr != nil {
		return m.createPOErr
	}
	if _, ok := m.byReq[po.RequisitionID]; ok {
		return domainwf.ErrDocumentExists
	}
	m.byReq[po.RequisitionID] = po.ID
	m.pos[po.ID] = po
	return nil
}

func (m *mockDocumentRepo) CreateRFQ(ctx context.Context, rfq *entity.RFQ) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byReq[rfq.RequisitionID]; ok {
		return domainwf.ErrDocumentExists
	}
	m.byReq[rfq.RequisitionID] = rfq.ID
	m.rfqs[rfq.ID] = rfq
	return nil
}

func (m *mockDocumentRepo) GetPurchaseOrder(ctx context.Context, tenantID, id string) (*entity.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos[id], nil
}

func (m *mockDocumentRepo) GetRFQ(ctx context.Context, tenantID, id string) (*entity.RFQ, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rfqs[id], nil
}

func (m *mockDocumentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byReq)
}

// --- dispatcher ---

// mockDispatcher records events and delivers them synchronously
type mockDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]dispatcher.HandlerInfo
}

func (m *mockDispatcher) Subscribe(t event.Type, h dispatcher.Handler) {
	m.SubscribeNamed(t, "", h)
}

func (m *mockDispatcher) SubscribeNamed(t event.Type, name string, h dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = map[event.Type][]dispatcher.HandlerInfo{}
	}
	m.handlers[t] = append(m.handlers[t], dispatcher.HandlerInfo{Name: name, EventType: t, Handler: h})
}

func (m *mockDispatcher) Unsubscribe(t event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	handlers := append([]dispatcher.HandlerInfo(nil), m.handlers[evt.Type]...)
	m.mu.Unlock()
	for _, h := range handlers {
		if err := h.Handler(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = m.Dispatch(ctx, evt)
}

func (m *mockDispatcher) ListHandlers(t event.Type) []dispatcher.HandlerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[t]
}

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func (m *mockDispatcher) last(t event.Type) *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Type == t {
			return m.events[i]
		}
	}
	return nil
}

// --- fixture ---

const (
	testTenant     = "tenant-1"
	testRequester  = "requester"
	testCostCenter = "cc-ops"
)

type fixture struct {
	requisitions *mockRequisitionRepo
	items        *mockItemRepo
	instances    *mockInstanceRepo
	history      *mockHistoryRepo
	costCenters  *mockCostCenterRepo
	workflows    *mockWorkflowRepo
	users        *mockUserRepo
	tenants      *mockTenantRepo
	catalog      *mockCatalogRepo
	sequences    *mockSequenceRepo
	documentRepo *mockDocumentRepo
	dispatcher   *mockDispatcher
	tx           *mockTxManager

	coordinator RequisitionService
	documents   DocumentService
	itemService ItemService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		requisitions: newMockRequisitionRepo(),
		items:        newMockItemRepo(),
		instances:    newMockInstanceRepo(),
		history:      &mockHistoryRepo{},
		costCenters:  &mockCostCenterRepo{},
		workflows:    &mockWorkflowRepo{},
		users:        &mockUserRepo{},
		tenants:      &mockTenantRepo{},
		catalog:      &mockCatalogRepo{},
		sequences:    &mockSequenceRepo{},
		documentRepo: newMockDocumentRepo(),
		dispatcher:   &mockDispatcher{},
		tx:           &mockTxManager{},
	}
	ctx := context.Background()
	_ = f.tenants.Upsert(ctx, &entity.Tenant{ID: testTenant, Code: "ACME", Name: "Acme"})
	_ = f.workflows.Upsert(ctx, &entity.ApprovalWorkflow{ID: "wf-default", TenantID: testTenant, Name: "Default", IsActive: true})

	tx := f.tx
	logger := &mockLogger{}

	f.documents = NewDocumentService(DocumentDeps{
		Requisitions: f.requisitions,
		Items:        f.items,
		Documents:    f.documentRepo,
		Tenants:      f.tenants,
		Sequences:    f.sequences,
		Dispatcher:   f.dispatcher,
		TxManager:    tx,
		Logger:       logger,
		Config:       DocumentConfig{Numbering: DefaultNumberingConfig()},
		Now:          clock,
	})
	f.coordinator = NewRequisitionService(CoordinatorDeps{
		Requisitions: f.requisitions,
		Instances:    f.instances,
		History:      f.history,
		CostCenters:  f.costCenters,
		Workflows:    f.workflows,
		Engine:       workflow.NewEngine(workflow.WithClock(clock)),
		Documents:    f.documents,
		Dispatcher:   f.dispatcher,
		TxManager:    tx,
		Logger:       logger,
		Now:          clock,
	})
	f.itemService = NewItemService(ItemDeps{
		Requisitions: f.requisitions,
		Items:        f.items,
		Catalog:      f.catalog,
		CostCenters:  f.costCenters,
		Tenants:      f.tenants,
		Sequences:    f.sequences,
		TxManager:    tx,
		Logger:       logger,
		Numbering:    DefaultNumberingConfig(),
		Now:          clock,
	})
	return f
}

func (f *fixture) costCenter(head string, approvers ...entity.CostCenterApprover) {
	_ = f.costCenters.Upsert(context.Background(), &entity.CostCenter{
		ID:         testCostCenter,
		TenantID:   testTenant,
		Name:       "Operations",
		HeadUserID: head,
		Approvers:  approvers,
	})
}

// requisition stores a Draft requisition with one line per (vendor, amount) pair
func (f *fixture) requisition(t *testing.T, id string, reqType entity.RequisitionType, lines ...entity.RequisitionItem) *entity.Requisition {
	t.Helper()
	req := &entity.Requisition{
		ID:           id,
		TenantID:     testTenant,
		Number:       "REQ-ACME-2026-" + id,
		Title:        "Office supplies",
		CreatedBy:    testRequester,
		CostCenterID: testCostCenter,
		Currency:     "USD",
		Type:         reqType,
		Status:       entity.RequisitionStatusDraft,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	for i := range lines {
		item := lines[i]
		item.ID = fmt.Sprintf("%s-item-%d", id, i+1)
		item.TenantID = testTenant
		item.RequisitionID = id
		item.LineNo = i + 1
		item.Recompute()
		req.TotalAmount = req.TotalAmount.Add(item.TotalPrice)
		_ = f.items.Create(context.Background(), &item)
	}
	f.requisitions.put(req)
	return req
}

func catalogLine(vendor string, qty, price int64) entity.RequisitionItem {
	return entity.RequisitionItem{
		IsCatalogItem:    true,
		CatalogProductID: "prod-" + vendor,
		Name:             "Paper",
		Quantity:         decimal.NewFromInt(qty),
		UnitPrice:        decimal.NewFromInt(price),
		VendorID:         vendor,
	}
}

func customLine(name string, qty, price int64) entity.RequisitionItem {
	return entity.RequisitionItem{
		Name:      name,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
	}
}

func actor(userID string) Actor {
	return Actor{TenantID: testTenant, UserID: userID}
}

var _ port.TransactionManager = (*mockTxManager)(nil)
var _ dispatcher.Dispatcher = (*mockDispatcher)(nil)

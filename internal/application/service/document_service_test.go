package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// approved stores an Approved requisition awaiting its document
func (f *fixture) approved(t *testing.T, id string, reqType entity.RequisitionType, lines ...entity.RequisitionItem) *entity.Requisition {
	t.Helper()
	req := f.requisition(t, id, reqType, lines...)
	approvedAt := fixedNow.Add(-time.Hour)
	req.Status = entity.RequisitionStatusApproved
	req.ApprovedAt = &approvedAt
	req.GenerationStatus = entity.GenerationStatusPending
	f.requisitions.put(req)
	return req
}

type mockExporter struct {
	exported []string
}

func (m *mockExporter) ContentType() string { return "application/test" }
func (m *mockExporter) Extension() string   { return ".test" }

func (m *mockExporter) ExportPurchaseOrder(po *entity.PurchaseOrder, req *entity.Requisition) ([]byte, error) {
	m.exported = append(m.exported, po.Number)
	return []byte("po:" + po.Number), nil
}

func (m *mockExporter) ExportRFQ(rfq *entity.RFQ, req *entity.Requisition) ([]byte, error) {
	m.exported = append(m.exported, rfq.Number)
	return []byte("rfq:" + rfq.Number), nil
}

type mockStorage struct {
	files   map[string][]byte
	saveErr error
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.files[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string { return "/archive/" + relativePath }

func TestDocumentService_Generate(t *testing.T) {
	tests := []struct {
		name       string
		reqType    entity.RequisitionType
		lines      []entity.RequisitionItem
		wantStatus entity.GenerationStatus
		wantType   entity.DocumentType
		wantNumber string
		wantReason string
	}{
		{
			name:       "catalog requisition becomes a purchase order",
			reqType:    entity.RequisitionTypeCatalogItem,
			lines:      []entity.RequisitionItem{catalogLine("vendor-a", 2, 25)},
			wantStatus: entity.GenerationStatusGenerated,
			wantType:   entity.DocumentTypePurchaseOrder,
			wantNumber: "PO-ACME-2026-000001",
		},
		{
			name:       "custom requisition becomes an rfq",
			reqType:    entity.RequisitionTypeCustomItem,
			lines:      []entity.RequisitionItem{customLine("Standing desk", 1, 700)},
			wantStatus: entity.GenerationStatusGenerated,
			wantType:   entity.DocumentTypeRFQ,
			wantNumber: "RFQ-ACME-2026-000001",
		},
		{
			name:       "no items is skipped",
			reqType:    entity.RequisitionTypeCatalogItem,
			wantStatus: entity.GenerationStatusSkipped,
			wantReason: "requisition has no items",
		},
		{
			name:       "catalog requisition without vendor is skipped",
			reqType:    entity.RequisitionTypeCatalogItem,
			lines:      []entity.RequisitionItem{catalogLine("", 1, 10)},
			wantStatus: entity.GenerationStatusSkipped,
			wantReason: "no item carries a vendor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.approved(t, "req-1", tt.reqType, tt.lines...)

			result, err := f.documents.Generate(context.Background(), testTenant, "req-1")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", result.Status, tt.wantStatus)
			}

			stored := f.requisitions.get("req-1")
			if tt.wantStatus == entity.GenerationStatusSkipped {
				if result.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", result.Reason, tt.wantReason)
				}
				if stored.GenerationStatus != entity.GenerationStatusSkipped || stored.HasDocument() {
					t.Errorf("stored generation = %s, document %q", stored.GenerationStatus, stored.DocumentID)
				}
				if f.documentRepo.count() != 0 {
					t.Errorf("document created for skipped requisition")
				}
				return
			}

			if result.Document.Type != tt.wantType || result.Document.Number != tt.wantNumber {
				t.Errorf("document = %s %s, want %s %s", result.Document.Type, result.Document.Number, tt.wantType, tt.wantNumber)
			}
			if stored.DocumentID != result.Document.ID {
				t.Errorf("back-reference = %q, want %q", stored.DocumentID, result.Document.ID)
			}
			evt := f.dispatcher.last(event.TypeDocumentGenerated)
			if evt == nil || evt.GetPayloadString(event.KeyDocumentNo) != tt.wantNumber {
				t.Errorf("document generated event = %+v", evt)
			}
		})
	}
}

func TestDocumentService_GenerateUsesStoredTotal(t *testing.T) {
	f := newFixture(t)
	req := f.approved(t, "req-1", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10), catalogLine("vendor-b", 1, 5))
	req.TotalAmount = decimal.RequireFromString("14.50")
	f.requisitions.put(req)

	result, err := f.documents.Generate(context.Background(), testTenant, "req-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	po := f.documentRepo.pos[result.Document.ID]
	if !po.TotalAmount.Equal(decimal.RequireFromString("14.50")) {
		t.Errorf("po total = %s, want stored 14.50", po.TotalAmount)
	}
	if po.VendorID != "vendor-a" {
		t.Errorf("po vendor = %s, want first vendor", po.VendorID)
	}
	if len(po.Items) != 2 || po.Items[1].RequisitionItemID != "req-1-item-2" || po.Items[1].LineNo != 2 {
		t.Errorf("po lines = %+v", po.Items)
	}
}

func TestDocumentService_GenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.approved(t, "req-1", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	ctx := context.Background()

	first, err := f.documents.Generate(ctx, testTenant, "req-1")
	if err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	second, err := f.documents.Generate(ctx, testTenant, "req-1")
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if second.Created {
		t.Errorf("second Generate() created a document")
	}
	if second.Document.ID != first.Document.ID {
		t.Errorf("second Generate() document = %s, want %s", second.Document.ID, first.Document.ID)
	}
	if f.documentRepo.count() != 1 {
		t.Errorf("documents = %d, want 1", f.documentRepo.count())
	}
}

func TestDocumentService_GenerateLosesRace(t *testing.T) {
	f := newFixture(t)
	f.approved(t, "req-1", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	ctx := context.Background()

	// Another writer inserts and links its PO between our read and our insert.
	f.documentRepo.createPOFunc = func(po *entity.PurchaseOrder) error {
		if _, err := f.requisitions.LinkDocument(ctx, testTenant, "req-1", entity.DocumentTypePurchaseOrder, "po-other"); err != nil {
			return err
		}
		return domainwf.ErrDocumentExists
	}

	result, err := f.documents.Generate(ctx, testTenant, "req-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Created || result.Document.ID != "po-other" {
		t.Errorf("result = %+v, want existing po-other", result)
	}
	if f.dispatcher.last(event.TypeDocumentGenerationFailed) != nil {
		t.Errorf("lost race reported as failure")
	}
}

func TestDocumentService_GeneratePreconditions(t *testing.T) {
	f := newFixture(t)
	f.requisition(t, "req-draft", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	ctx := context.Background()

	if _, err := f.documents.Generate(ctx, testTenant, "req-draft"); !errors.Is(err, domainwf.ErrRequisitionNotApproved) {
		t.Errorf("Generate(draft) error = %v, want ErrRequisitionNotApproved", err)
	}
	if _, err := f.documents.Generate(ctx, testTenant, "missing"); !errors.Is(err, domainwf.ErrNotFound) {
		t.Errorf("Generate(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDocumentService_ListGenerationBacklog(t *testing.T) {
	f := newFixture(t)
	f.approved(t, "req-1", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	f.approved(t, "req-2", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	exhausted := f.approved(t, "req-3", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	exhausted.GenerationAttempts = 5
	exhausted.GenerationStatus = entity.GenerationStatusFailed
	f.requisitions.put(exhausted)

	backlog, err := f.documents.ListGenerationBacklog(context.Background(), 30*time.Minute, 5, 10)
	if err != nil {
		t.Fatalf("ListGenerationBacklog() error = %v", err)
	}
	if len(backlog) != 2 {
		t.Fatalf("backlog = %d, want 2", len(backlog))
	}

	// Approvals inside the grace period are left alone.
	backlog, err = f.documents.ListGenerationBacklog(context.Background(), 2*time.Hour, 5, 10)
	if err != nil {
		t.Fatalf("ListGenerationBacklog() error = %v", err)
	}
	if len(backlog) != 0 {
		t.Errorf("backlog within grace = %d, want 0", len(backlog))
	}
}

func TestDocumentService_ExportAndArchive(t *testing.T) {
	f := newFixture(t)
	exporter := &mockExporter{}
	storage := &mockStorage{}
	f.documents = NewDocumentService(DocumentDeps{
		Requisitions: f.requisitions,
		Items:        f.items,
		Documents:    f.documentRepo,
		Tenants:      f.tenants,
		Sequences:    f.sequences,
		Exporter:     exporter,
		Storage:      storage,
		Dispatcher:   f.dispatcher,
		TxManager:    f.tx,
		Logger:       &mockLogger{},
		Now:          clock,
	})
	f.dispatcher.Subscribe(event.TypeDocumentGenerated, f.documents.ArchiveGenerated)
	f.approved(t, "req-1", entity.RequisitionTypeCatalogItem, catalogLine("vendor-a", 1, 10))
	ctx := context.Background()

	result, err := f.documents.Generate(ctx, testTenant, "req-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	path := ArchivePath(testTenant, entity.DocumentTypePurchaseOrder, "PO-ACME-2026-000001.test")
	if string(storage.files[path]) != "po:PO-ACME-2026-000001" {
		t.Errorf("archive %s = %q", path, storage.files[path])
	}

	exported, err := f.documents.Export(ctx, testTenant, entity.DocumentTypePurchaseOrder, result.Document.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exported.FileName != "PO-ACME-2026-000001.test" || exported.ContentType != "application/test" {
		t.Errorf("export = %s %s", exported.FileName, exported.ContentType)
	}

	if _, err := f.documents.Export(ctx, testTenant, entity.DocumentTypeRFQ, result.Document.ID); Classify(err) != KindNotFound {
		t.Errorf("Export(wrong type) error = %v, want not found", err)
	}
	if _, err := f.documents.Export(ctx, testTenant, "INVOICE", result.Document.ID); Classify(err) != KindValidation {
		t.Errorf("Export(unknown type) error = %v, want validation", err)
	}
}

func TestArchivePath(t *testing.T) {
	got := ArchivePath("tenant-1", entity.DocumentTypeRFQ, "RFQ-ACME-2026-000007.xlsx")
	if got != "tenant-1/rfq/RFQ-ACME-2026-000007.xlsx" {
		t.Errorf("ArchivePath() = %s", got)
	}
}

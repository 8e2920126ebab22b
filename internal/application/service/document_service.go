package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/procurement-approvals/internal/application/dispatcher"
	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// DefaultRFQDeadline is the submission window given to vendors on a new RFQ
const DefaultRFQDeadline = 7 * 24 * time.Hour

// GenerationResult describes the outcome of one generation attempt
type GenerationResult struct {
	Status   entity.GenerationStatus   `json:"status"`
	Document *entity.GeneratedDocument `json:"document,omitempty"`
	// Created is false when the document already existed
	Created bool   `json:"created"`
	Reason  string `json:"reason,omitempty"`
}

// ExportedDocument is a rendered document ready for download
type ExportedDocument struct {
	FileName    string
	ContentType string
	Content     []byte
}

// DocumentService generates purchase orders and RFQs for approved requisitions
type DocumentService interface {
	// Generate creates the downstream document at most once per requisition.
	// Failures mark the requisition FAILED and leave it retryable.
	Generate(ctx context.Context, tenantID, requisitionID string) (*GenerationResult, error)

	// RetryGeneration is the operator entry point for a failed or pending generation
	RetryGeneration(ctx context.Context, tenantID, requisitionID string) (*GenerationResult, error)

	// ListGenerationBacklog lists approved requisitions, across tenants, still missing a document
	ListGenerationBacklog(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*entity.Requisition, error)

	Export(ctx context.Context, tenantID string, docType entity.DocumentType, documentID string) (*ExportedDocument, error)

	// ArchiveGenerated stores the export of a freshly generated document
	ArchiveGenerated(ctx context.Context, evt *event.Event) error
}

// DocumentConfig tunes document generation
type DocumentConfig struct {
	Numbering   NumberingConfig
	RFQDeadline time.Duration
}

// DocumentDeps groups the collaborators of the document service
type DocumentDeps struct {
	Requisitions port.RequisitionRepository
	Items        port.ItemRepository
	Documents    port.DocumentRepository
	Tenants      port.TenantRepository
	Sequences    port.SequenceRepository
	Exporter     port.DocumentExporter
	Storage      port.FileStorage
	Dispatcher   dispatcher.Dispatcher
	TxManager    port.TransactionManager
	Logger       Logger
	Config       DocumentConfig
	Now          func() time.Time
}

type documentServiceImpl struct {
	requisitionRepo port.RequisitionRepository
	itemRepo        port.ItemRepository
	documentRepo    port.DocumentRepository
	numbers         *numberAllocator
	exporter        port.DocumentExporter
	storage         port.FileStorage
	dispatcher      dispatcher.Dispatcher
	txManager       port.TransactionManager
	logger          Logger
	config          DocumentConfig
	now             func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(deps DocumentDeps) DocumentService {
	cfg := deps.Config
	if cfg.RFQDeadline <= 0 {
		cfg.RFQDeadline = DefaultRFQDeadline
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &documentServiceImpl{
		requisitionRepo: deps.Requisitions,
		itemRepo:        deps.Items,
		documentRepo:    deps.Documents,
		numbers:         newNumberAllocator(deps.Tenants, deps.Sequences, cfg.Numbering.Padding),
		exporter:        deps.Exporter,
		storage:         deps.Storage,
		dispatcher:      deps.Dispatcher,
		txManager:       deps.TxManager,
		logger:          deps.Logger,
		config:          cfg,
		now:             now,
	}
}

// Generate builds a PO for catalog requisitions with a known vendor and an RFQ
// for custom requisitions. The document total is the requisition's stored total.
func (s *documentServiceImpl) Generate(ctx context.Context, tenantID, requisitionID string) (*GenerationResult, error) {
	var (
		result *GenerationResult
		req    *entity.Requisition
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requisitionRepo.GetByID(txCtx, tenantID, requisitionID)
		if err != nil {
			return fmt.Errorf("get requisition: %w", err)
		}
		if req == nil {
			return notFound("requisition", requisitionID)
		}
		if req.Status != entity.RequisitionStatusApproved {
			return domainwf.ErrRequisitionNotApproved
		}
		if req.HasDocument() {
			result = existingResult(req)
			return nil
		}

		items, err := s.itemRepo.ListByRequisition(txCtx, tenantID, requisitionID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}

		if reason := skipReason(req, items); reason != "" {
			if err := s.requisitionRepo.UpdateGeneration(txCtx, tenantID, requisitionID, entity.GenerationStatusSkipped, reason, true); err != nil {
				return err
			}
			result = &GenerationResult{Status: entity.GenerationStatusSkipped, Reason: reason}
			return nil
		}

		var doc *entity.GeneratedDocument
		if req.Type == entity.RequisitionTypeCatalogItem {
			doc, err = s.createPurchaseOrder(txCtx, req, items)
		} else {
			doc, err = s.createRFQ(txCtx, req, items)
		}
		if err != nil {
			return err
		}

		linked, err := s.requisitionRepo.LinkDocument(txCtx, tenantID, requisitionID, doc.Type, doc.ID)
		if err != nil {
			return err
		}
		if !linked {
			return domainwf.ErrDocumentExists
		}
		result = &GenerationResult{Status: entity.GenerationStatusGenerated, Document: doc, Created: true}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, domainwf.ErrDocumentExists):
		// Another writer generated the document first.
		return s.currentResult(ctx, tenantID, requisitionID)
	case errors.Is(err, domainwf.ErrNotFound), errors.Is(err, domainwf.ErrRequisitionNotApproved):
		return nil, err
	default:
		return nil, s.recordFailure(ctx, tenantID, requisitionID, err)
	}

	switch result.Status {
	case entity.GenerationStatusSkipped:
		s.logger.Info("Document generation skipped",
			"tenant_id", tenantID, "requisition_id", requisitionID, "reason", result.Reason)
	case entity.GenerationStatusGenerated:
		if result.Created {
			s.logger.Info("Document generated",
				"tenant_id", tenantID,
				"requisition_id", requisitionID,
				"document_type", result.Document.Type,
				"document_id", result.Document.ID,
				"document_number", result.Document.Number,
			)
			s.publish(ctx, event.NewEvent(event.TypeDocumentGenerated, tenantID, requisitionID, req.ApprovalInstanceID,
				map[string]interface{}{
					event.KeyRequesterID:  req.CreatedBy,
					event.KeyDocumentType: string(result.Document.Type),
					event.KeyDocumentID:   result.Document.ID,
					event.KeyDocumentNo:   result.Document.Number,
				}))
		}
	}
	return result, nil
}

// RetryGeneration regenerates a document for a requisition left PENDING or FAILED
func (s *documentServiceImpl) RetryGeneration(ctx context.Context, tenantID, requisitionID string) (*GenerationResult, error) {
	req, err := s.requisitionRepo.GetByID(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("get requisition: %w", err)
	}
	if req == nil {
		return nil, notFound("requisition", requisitionID)
	}
	if req.Status != entity.RequisitionStatusApproved {
		return nil, domainwf.ErrRequisitionNotApproved
	}
	if req.HasDocument() {
		return existingResult(req), nil
	}

	s.logger.Info("Retrying document generation",
		"tenant_id", tenantID, "requisition_id", requisitionID,
		"generation_status", req.GenerationStatus, "attempts", req.GenerationAttempts)
	return s.Generate(ctx, tenantID, requisitionID)
}

// ListGenerationBacklog lists requisitions approved before now-olderThan
func (s *documentServiceImpl) ListGenerationBacklog(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*entity.Requisition, error) {
	if limit <= 0 {
		limit = 50
	}
	reqs, err := s.requisitionRepo.ListGenerationBacklog(ctx, s.now().Add(-olderThan), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list generation backlog: %w", err)
	}
	return reqs, nil
}

// Export renders a document through the configured exporter
func (s *documentServiceImpl) Export(ctx context.Context, tenantID string, docType entity.DocumentType, documentID string) (*ExportedDocument, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("%w: no document exporter configured", domainwf.ErrConfiguration)
	}

	var (
		content []byte
		number  string
	)
	switch docType {
	case entity.DocumentTypePurchaseOrder:
		po, err := s.documentRepo.GetPurchaseOrder(ctx, tenantID, documentID)
		if err != nil {
			return nil, fmt.Errorf("get purchase order: %w", err)
		}
		if po == nil {
			return nil, notFound("purchase order", documentID)
		}
		req, err := s.sourceRequisition(ctx, tenantID, po.RequisitionID)
		if err != nil {
			return nil, err
		}
		if content, err = s.exporter.ExportPurchaseOrder(po, req); err != nil {
			return nil, fmt.Errorf("export purchase order: %w", err)
		}
		number = po.Number
	case entity.DocumentTypeRFQ:
		rfq, err := s.documentRepo.GetRFQ(ctx, tenantID, documentID)
		if err != nil {
			return nil, fmt.Errorf("get rfq: %w", err)
		}
		if rfq == nil {
			return nil, notFound("rfq", documentID)
		}
		req, err := s.sourceRequisition(ctx, tenantID, rfq.RequisitionID)
		if err != nil {
			return nil, err
		}
		if content, err = s.exporter.ExportRFQ(rfq, req); err != nil {
			return nil, fmt.Errorf("export rfq: %w", err)
		}
		number = rfq.Number
	default:
		return nil, invalid("unknown document type %q", docType)
	}

	return &ExportedDocument{
		FileName:    number + s.exporter.Extension(),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}, nil
}

// ArchiveGenerated handles document.generated by saving the export to storage
// under {tenant}/{type}/{number}{ext}.
func (s *documentServiceImpl) ArchiveGenerated(ctx context.Context, evt *event.Event) error {
	if s.storage == nil || s.exporter == nil {
		return nil
	}
	docType := entity.DocumentType(evt.GetPayloadString(event.KeyDocumentType))
	docID := evt.GetPayloadString(event.KeyDocumentID)

	exported, err := s.Export(ctx, evt.TenantID, docType, docID)
	if err != nil {
		s.logger.Error("Failed to export document for archive", "error", err,
			"tenant_id", evt.TenantID, "document_id", docID)
		return err
	}

	path := ArchivePath(evt.TenantID, docType, exported.FileName)
	if err := s.storage.Save(ctx, path, exported.Content); err != nil {
		s.logger.Error("Failed to archive document", "error", err, "tenant_id", evt.TenantID, "path", path)
		return fmt.Errorf("save document archive: %w", err)
	}
	s.logger.Info("Document archived", "tenant_id", evt.TenantID, "document_id", docID, "path", path)
	return nil
}

// ArchivePath is the storage key of an archived document export
func ArchivePath(tenantID string, docType entity.DocumentType, fileName string) string {
	return strings.Join([]string{tenantID, strings.ToLower(string(docType)), fileName}, "/")
}

func (s *documentServiceImpl) createPurchaseOrder(ctx context.Context, req *entity.Requisition, items []*entity.RequisitionItem) (*entity.GeneratedDocument, error) {
	now := s.now()
	number, err := s.numbers.next(ctx, req.TenantID, s.config.Numbering.prefixFor(entity.DocumentTypePurchaseOrder), now)
	if err != nil {
		return nil, err
	}

	po := &entity.PurchaseOrder{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		Number:        number,
		RequisitionID: req.ID,
		VendorID:      firstVendor(items),
		Status:        entity.DocumentStatusDraft,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		CreatedBy:     req.CreatedBy,
		Items:         documentLines(items),
		CreatedAt:     now,
	}
	if err := s.documentRepo.CreatePurchaseOrder(ctx, po); err != nil {
		return nil, err
	}
	return &entity.GeneratedDocument{Type: entity.DocumentTypePurchaseOrder, ID: po.ID, Number: po.Number}, nil
}

func (s *documentServiceImpl) createRFQ(ctx context.Context, req *entity.Requisition, items []*entity.RequisitionItem) (*entity.GeneratedDocument, error) {
	now := s.now()
	number, err := s.numbers.next(ctx, req.TenantID, s.config.Numbering.prefixFor(entity.DocumentTypeRFQ), now)
	if err != nil {
		return nil, err
	}

	rfq := &entity.RFQ{
		ID:                 uuid.NewString(),
		TenantID:           req.TenantID,
		Number:             number,
		RequisitionID:      req.ID,
		Title:              req.Title,
		Status:             entity.DocumentStatusDraft,
		EstimatedTotal:     req.TotalAmount,
		Currency:           req.Currency,
		SubmissionDeadline: now.Add(s.config.RFQDeadline),
		CreatedBy:          req.CreatedBy,
		Items:              documentLines(items),
		CreatedAt:          now,
	}
	if err := s.documentRepo.CreateRFQ(ctx, rfq); err != nil {
		return nil, err
	}
	return &entity.GeneratedDocument{Type: entity.DocumentTypeRFQ, ID: rfq.ID, Number: rfq.Number}, nil
}

func (s *documentServiceImpl) recordFailure(ctx context.Context, tenantID, requisitionID string, cause error) error {
	s.logger.Error("Document generation failed", "error", cause,
		"tenant_id", tenantID, "requisition_id", requisitionID, "retryable", true)

	if err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.requisitionRepo.UpdateGeneration(txCtx, tenantID, requisitionID, entity.GenerationStatusFailed, cause.Error(), true)
	}); err != nil {
		s.logger.Error("Failed to record generation failure", "error", err, "requisition_id", requisitionID)
	}

	s.publish(ctx, event.NewEvent(event.TypeDocumentGenerationFailed, tenantID, requisitionID, "",
		map[string]interface{}{event.KeyError: cause.Error()}))
	return fmt.Errorf("%w: %v", domainwf.ErrGeneration, cause)
}

func (s *documentServiceImpl) currentResult(ctx context.Context, tenantID, requisitionID string) (*GenerationResult, error) {
	req, err := s.requisitionRepo.GetByID(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("get requisition: %w", err)
	}
	if req == nil || !req.HasDocument() {
		return nil, domainwf.ErrDocumentExists
	}
	return existingResult(req), nil
}

func (s *documentServiceImpl) sourceRequisition(ctx context.Context, tenantID, requisitionID string) (*entity.Requisition, error) {
	req, err := s.requisitionRepo.GetByID(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("get requisition: %w", err)
	}
	if req == nil {
		return nil, notFound("requisition", requisitionID)
	}
	return req, nil
}

func (s *documentServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

func existingResult(req *entity.Requisition) *GenerationResult {
	return &GenerationResult{
		Status:   entity.GenerationStatusGenerated,
		Document: &entity.GeneratedDocument{Type: req.DocumentType, ID: req.DocumentID},
	}
}

// skipReason explains why no document can be produced, or returns ""
func skipReason(req *entity.Requisition, items []*entity.RequisitionItem) string {
	if len(items) == 0 {
		return "requisition has no items"
	}
	if req.Type == entity.RequisitionTypeCatalogItem && firstVendor(items) == "" {
		return "no item carries a vendor"
	}
	return ""
}

// firstVendor returns the vendor of the first item that has one.
// Multi-vendor requisitions are not split.
func firstVendor(items []*entity.RequisitionItem) string {
	for _, item := range items {
		if item.VendorID != "" {
			return item.VendorID
		}
	}
	return ""
}

func documentLines(items []*entity.RequisitionItem) []*entity.DocumentItem {
	lines := make([]*entity.DocumentItem, 0, len(items))
	for i, item := range items {
		lines = append(lines, &entity.DocumentItem{
			RequisitionItemID: item.ID,
			LineNo:            i + 1,
			Name:              item.Name,
			Description:       item.Description,
			Quantity:          item.Quantity,
			UnitOfMeasure:     item.UnitOfMeasure,
			UnitPrice:         item.UnitPrice,
			TotalPrice:        item.Quantity.Mul(item.UnitPrice),
		})
	}
	return lines
}

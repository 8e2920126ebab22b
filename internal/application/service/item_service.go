package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// DefaultCurrency applies when a requisition is created without one
const DefaultCurrency = "USD"

// CreateRequisitionInput carries the fields of a new requisition
type CreateRequisitionInput struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	CostCenterID string      `json:"cost_center_id"`
	Currency     string      `json:"currency"`
	Items        []ItemInput `json:"items"`
}

// ItemInput describes a line item to add
type ItemInput struct {
	IsCatalogItem    bool            `json:"is_catalog_item"`
	CatalogProductID string          `json:"catalog_product_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitOfMeasure    string          `json:"unit_of_measure"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	VendorID         string          `json:"vendor_id"`
}

// ItemUpdate is a partial update of a line item; nil fields are left as is
type ItemUpdate struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Quantity      *decimal.Decimal `json:"quantity"`
	UnitOfMeasure *string          `json:"unit_of_measure"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	VendorID      *string          `json:"vendor_id"`
}

// RequisitionDetail is a requisition with its line items
type RequisitionDetail struct {
	Requisition *entity.Requisition       `json:"requisition"`
	Items       []*entity.RequisitionItem `json:"items"`
}

// ItemService owns requisition creation and line item mutation. Every
// mutation recomputes the requisition totals in the same transaction.
type ItemService interface {
	CreateRequisition(ctx context.Context, actor Actor, input CreateRequisitionInput) (*RequisitionDetail, error)
	GetRequisition(ctx context.Context, tenantID, requisitionID string) (*RequisitionDetail, error)
	AddItem(ctx context.Context, actor Actor, requisitionID string, input ItemInput) (*entity.RequisitionItem, error)
	UpdateItem(ctx context.Context, actor Actor, requisitionID, itemID string, update ItemUpdate) (*entity.RequisitionItem, error)
	RemoveItem(ctx context.Context, actor Actor, requisitionID, itemID string) error
	RecomputeTotals(ctx context.Context, tenantID, requisitionID string) (entity.Totals, error)
}

// ItemDeps groups the collaborators of the item service
type ItemDeps struct {
	Requisitions port.RequisitionRepository
	Items        port.ItemRepository
	Catalog      port.CatalogRepository
	CostCenters  port.CostCenterRepository
	Tenants      port.TenantRepository
	Sequences    port.SequenceRepository
	TxManager    port.TransactionManager
	Logger       Logger
	Numbering    NumberingConfig
	Now          func() time.Time
}

type itemServiceImpl struct {
	requisitionRepo port.RequisitionRepository
	itemRepo        port.ItemRepository
	catalogRepo     port.CatalogRepository
	costCenterRepo  port.CostCenterRepository
	numbers         *numberAllocator
	prefix          string
	txManager       port.TransactionManager
	logger          Logger
	now             func() time.Time
}

// NewItemService creates a new ItemService
func NewItemService(deps ItemDeps) ItemService {
	prefix := deps.Numbering.RequisitionPrefix
	if prefix == "" {
		prefix = DefaultNumberingConfig().RequisitionPrefix
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &itemServiceImpl{
		requisitionRepo: deps.Requisitions,
		itemRepo:        deps.Items,
		catalogRepo:     deps.Catalog,
		costCenterRepo:  deps.CostCenters,
		numbers:         newNumberAllocator(deps.Tenants, deps.Sequences, deps.Numbering.Padding),
		prefix:          prefix,
		txManager:       deps.TxManager,
		logger:          deps.Logger,
		now:             now,
	}
}

// CreateRequisition creates a Draft requisition with its initial items
func (s *itemServiceImpl) CreateRequisition(ctx context.Context, actor Actor, input CreateRequisitionInput) (*RequisitionDetail, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalid("title is required")
	}
	if strings.TrimSpace(input.CostCenterID) == "" {
		return nil, invalid("cost center is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	var detail *RequisitionDetail
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		cc, err := s.costCenterRepo.GetByID(txCtx, actor.TenantID, input.CostCenterID)
		if err != nil {
			return fmt.Errorf("get cost center: %w", err)
		}
		if cc == nil {
			return invalid("unknown cost center %s", input.CostCenterID)
		}

		now := s.now()
		number, err := s.numbers.next(txCtx, actor.TenantID, s.prefix, now)
		if err != nil {
			return err
		}
		req := &entity.Requisition{
			ID:           uuid.NewString(),
			TenantID:     actor.TenantID,
			Number:       number,
			Title:        strings.TrimSpace(input.Title),
			Description:  input.Description,
			CreatedBy:    actor.UserID,
			CostCenterID: cc.ID,
			TotalAmount:  decimal.Zero,
			Currency:     currency,
			Type:         entity.RequisitionTypeCatalogItem,
			Status:       entity.RequisitionStatusDraft,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.requisitionRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}

		items := make([]*entity.RequisitionItem, 0, len(input.Items))
		for i, in := range input.Items {
			item, err := s.buildItem(txCtx, req, in, i+1)
			if err != nil {
				return err
			}
			if err := s.itemRepo.Create(txCtx, item); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			items = append(items, item)
		}

		totals, err := s.recompute(txCtx, req.TenantID, req.ID)
		if err != nil {
			return err
		}
		req.TotalAmount, req.Type = totals.TotalAmount, totals.Type
		detail = &RequisitionDetail{Requisition: req, Items: items}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create requisition", "error", err, "tenant_id", actor.TenantID, "actor", actor.UserID)
		return nil, err
	}

	s.logger.Info("Requisition created",
		"tenant_id", actor.TenantID,
		"requisition_id", detail.Requisition.ID,
		"number", detail.Requisition.Number,
		"items", len(detail.Items),
		"total", detail.Requisition.TotalAmount.String(),
	)
	return detail, nil
}

// GetRequisition returns a requisition with its items
func (s *itemServiceImpl) GetRequisition(ctx context.Context, tenantID, requisitionID string) (*RequisitionDetail, error) {
	req, err := s.requisitionRepo.GetByID(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("get requisition: %w", err)
	}
	if req == nil {
		return nil, notFound("requisition", requisitionID)
	}
	items, err := s.itemRepo.ListByRequisition(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return &RequisitionDetail{Requisition: req, Items: items}, nil
}

// AddItem appends a line item to an editable requisition
func (s *itemServiceImpl) AddItem(ctx context.Context, actor Actor, requisitionID string, input ItemInput) (*entity.RequisitionItem, error) {
	var item *entity.RequisitionItem
	err := s.mutate(ctx, actor, requisitionID, func(txCtx context.Context, req *entity.Requisition) error {
		existing, err := s.itemRepo.ListByRequisition(txCtx, req.TenantID, req.ID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		lineNo := 1
		for _, it := range existing {
			if it.LineNo >= lineNo {
				lineNo = it.LineNo + 1
			}
		}

		if item, err = s.buildItem(txCtx, req, input, lineNo); err != nil {
			return err
		}
		if err := s.itemRepo.Create(txCtx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add item", "error", err, "requisition_id", requisitionID)
		return nil, err
	}
	s.logger.Info("Item added", "requisition_id", requisitionID, "item_id", item.ID, "line_no", item.LineNo)
	return item, nil
}

// UpdateItem applies a partial update to a line item
func (s *itemServiceImpl) UpdateItem(ctx context.Context, actor Actor, requisitionID, itemID string, update ItemUpdate) (*entity.RequisitionItem, error) {
	var item *entity.RequisitionItem
	err := s.mutate(ctx, actor, requisitionID, func(txCtx context.Context, req *entity.Requisition) error {
		var err error
		if item, err = s.loadItem(txCtx, req, itemID); err != nil {
			return err
		}

		if update.Name != nil {
			item.Name = strings.TrimSpace(*update.Name)
		}
		if update.Description != nil {
			item.Description = *update.Description
		}
		if update.Quantity != nil {
			item.Quantity = *update.Quantity
		}
		if update.UnitOfMeasure != nil {
			item.UnitOfMeasure = *update.UnitOfMeasure
		}
		if update.UnitPrice != nil {
			item.UnitPrice = *update.UnitPrice
		}
		if update.VendorID != nil {
			item.VendorID = strings.TrimSpace(*update.VendorID)
		}
		if err := item.Validate(); err != nil {
			return invalid("%v", err)
		}
		item.Recompute()
		item.UpdatedAt = s.now()
		if err := s.itemRepo.Update(txCtx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update item", "error", err, "requisition_id", requisitionID, "item_id", itemID)
		return nil, err
	}
	return item, nil
}

// RemoveItem deletes a line item
func (s *itemServiceImpl) RemoveItem(ctx context.Context, actor Actor, requisitionID, itemID string) error {
	err := s.mutate(ctx, actor, requisitionID, func(txCtx context.Context, req *entity.Requisition) error {
		if _, err := s.loadItem(txCtx, req, itemID); err != nil {
			return err
		}
		if err := s.itemRepo.Delete(txCtx, req.TenantID, itemID); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to remove item", "error", err, "requisition_id", requisitionID, "item_id", itemID)
		return err
	}
	s.logger.Info("Item removed", "requisition_id", requisitionID, "item_id", itemID)
	return nil
}

// RecomputeTotals re-derives item totals, the requisition total and its type
func (s *itemServiceImpl) RecomputeTotals(ctx context.Context, tenantID, requisitionID string) (entity.Totals, error) {
	var totals entity.Totals
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		totals, err = s.recompute(txCtx, tenantID, requisitionID)
		return err
	})
	return totals, err
}

// mutate runs fn for an editable requisition owned by the actor, then recomputes totals
func (s *itemServiceImpl) mutate(ctx context.Context, actor Actor, requisitionID string, fn func(txCtx context.Context, req *entity.Requisition) error) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.requisitionRepo.GetByID(txCtx, actor.TenantID, requisitionID)
		if err != nil {
			return fmt.Errorf("get requisition: %w", err)
		}
		if req == nil {
			return notFound("requisition", requisitionID)
		}
		if req.CreatedBy != actor.UserID {
			return domainwf.ErrNotRequester
		}
		if !req.Status.IsEditable() {
			return domainwf.ErrRequisitionLocked
		}
		if err := fn(txCtx, req); err != nil {
			return err
		}
		_, err = s.recompute(txCtx, req.TenantID, req.ID)
		return err
	})
}

func (s *itemServiceImpl) recompute(ctx context.Context, tenantID, requisitionID string) (entity.Totals, error) {
	items, err := s.itemRepo.ListByRequisition(ctx, tenantID, requisitionID)
	if err != nil {
		return entity.Totals{}, fmt.Errorf("list items: %w", err)
	}

	previous := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		previous[item.ID] = item.TotalPrice
	}
	totals := entity.ComputeTotals(items)
	for _, item := range items {
		if previous[item.ID].Equal(item.TotalPrice) {
			continue
		}
		if err := s.itemRepo.UpdateTotalPrice(ctx, tenantID, item.ID, item.TotalPrice); err != nil {
			return entity.Totals{}, fmt.Errorf("update item total: %w", err)
		}
	}

	if err := s.requisitionRepo.UpdateTotals(ctx, tenantID, requisitionID, totals.TotalAmount, totals.Type); err != nil {
		return entity.Totals{}, fmt.Errorf("update requisition totals: %w", err)
	}
	return totals, nil
}

func (s *itemServiceImpl) loadItem(ctx context.Context, req *entity.Requisition, itemID string) (*entity.RequisitionItem, error) {
	item, err := s.itemRepo.GetByID(ctx, req.TenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil || item.RequisitionID != req.ID {
		return nil, notFound("item", itemID)
	}
	return item, nil
}

// buildItem validates an input and enriches catalog items from the product
func (s *itemServiceImpl) buildItem(ctx context.Context, req *entity.Requisition, in ItemInput, lineNo int) (*entity.RequisitionItem, error) {
	now := s.now()
	item := &entity.RequisitionItem{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		RequisitionID:    req.ID,
		LineNo:           lineNo,
		IsCatalogItem:    in.IsCatalogItem,
		CatalogProductID: strings.TrimSpace(in.CatalogProductID),
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		Quantity:         in.Quantity,
		UnitOfMeasure:    in.UnitOfMeasure,
		UnitPrice:        in.UnitPrice,
		Currency:         req.Currency,
		VendorID:         strings.TrimSpace(in.VendorID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if item.IsCatalogItem && item.CatalogProductID != "" {
		product, err := s.catalogRepo.GetByID(ctx, req.TenantID, item.CatalogProductID)
		if err != nil {
			return nil, fmt.Errorf("get catalog product: %w", err)
		}
		if product == nil || !product.IsActive {
			return nil, invalid("catalog product %s is not available", item.CatalogProductID)
		}
		if item.Name == "" {
			item.Name = product.Name
		}
		if item.Description == "" {
			item.Description = product.Description
		}
		if item.UnitPrice.IsZero() {
			item.UnitPrice = product.UnitPrice
		}
		if item.UnitOfMeasure == "" {
			item.UnitOfMeasure = product.UOM
		}
		if item.VendorID == "" {
			item.VendorID = product.VendorID
		}
	}

	if err := item.Validate(); err != nil {
		return nil, invalid("line %d: %v", lineNo, err)
	}
	item.Recompute()
	return item, nil
}

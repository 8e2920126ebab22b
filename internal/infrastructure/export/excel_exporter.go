package export

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// Sheet layout shared by purchase orders and RFQs
const (
	SheetName    = "Document"
	itemsHeadRow = 8
)

var itemColumns = []string{"Line", "Item", "Description", "Quantity", "UOM", "Unit Price", "Total"}

// ExcelExporter renders purchase orders and RFQs as .xlsx workbooks
type ExcelExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewExcelExporter creates a new ExcelExporter
func NewExcelExporter(companyName string, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{companyName: companyName, logger: logger}
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) Extension() string { return ".xlsx" }

// ExportPurchaseOrder renders a purchase order
func (e *ExcelExporter) ExportPurchaseOrder(po *entity.PurchaseOrder, req *entity.Requisition) ([]byte, error) {
	header := [][2]string{
		{"Purchase Order", po.Number},
		{"Requisition", requisitionRef(req)},
		{"Vendor", po.VendorID},
		{"Issued", po.CreatedAt.Format("2006-01-02")},
		{"Currency", po.Currency},
	}
	return e.render(po.Number, header, po.Items, po.TotalAmount)
}

// ExportRFQ renders a request for quotation
func (e *ExcelExporter) ExportRFQ(rfq *entity.RFQ, req *entity.Requisition) ([]byte, error) {
	header := [][2]string{
		{"Request for Quotation", rfq.Number},
		{"Requisition", requisitionRef(req)},
		{"Title", rfq.Title},
		{"Quotes due", rfq.SubmissionDeadline.Format("2006-01-02")},
		{"Currency", rfq.Currency},
	}
	return e.render(rfq.Number, header, rfq.Items, rfq.EstimatedTotal)
}

func (e *ExcelExporter) render(number string, header [][2]string, items []*entity.DocumentItem, total decimal.Decimal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	e.setCell(f, "A1", e.companyName)
	for i, kv := range header {
		row := i + 2
		e.setCell(f, cell("A", row), kv[0])
		e.setCell(f, cell("B", row), kv[1])
	}

	if err := f.SetSheetRow(SheetName, cell("A", itemsHeadRow), &itemColumns); err != nil {
		return nil, fmt.Errorf("failed to write item header: %w", err)
	}
	for i, item := range items {
		row := []interface{}{
			item.LineNo,
			item.Name,
			item.Description,
			item.Quantity.String(),
			item.UnitOfMeasure,
			item.UnitPrice.StringFixed(2),
			item.TotalPrice.StringFixed(2),
		}
		if err := f.SetSheetRow(SheetName, cell("A", itemsHeadRow+1+i), &row); err != nil {
			return nil, fmt.Errorf("failed to write item %d: %w", item.LineNo, err)
		}
	}

	totalRow := itemsHeadRow + len(items) + 1
	e.setCell(f, cell("F", totalRow), "Total")
	e.setCell(f, cell("G", totalRow), total.StringFixed(2))

	if err := f.SetColWidth(SheetName, "B", "C", 32); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.Debug("Document rendered", zap.String("number", number), zap.Int("items", len(items)))
	return bytes.Clone(buf.Bytes()), nil
}

func (e *ExcelExporter) setCell(f *excelize.File, axis, value string) {
	if err := f.SetCellValue(SheetName, axis, value); err != nil {
		e.logger.Warn("Failed to set cell value", zap.String("cell", axis), zap.Error(err))
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func requisitionRef(req *entity.Requisition) string {
	if req == nil {
		return ""
	}
	if req.Title == "" {
		return req.Number
	}
	return req.Number + " " + req.Title
}

var _ port.DocumentExporter = (*ExcelExporter)(nil)

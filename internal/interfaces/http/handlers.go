package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/procurement-approvals/internal/application/service"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DecisionRequest is the body of POST /requisitions/:id/decision
type DecisionRequest struct {
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateRequisition handles POST /api/v1/requisitions
func (h *Handlers) CreateRequisition(c *gin.Context) {
	var input service.CreateRequisitionInput
	if !h.bind(c, &input) {
		return
	}
	detail, err := h.services.Items.CreateRequisition(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// GetRequisition handles GET /api/v1/requisitions/:id
func (h *Handlers) GetRequisition(c *gin.Context) {
	detail, err := h.services.Items.GetRequisition(c.Request.Context(), actorFrom(c).TenantID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// AddItem handles POST /api/v1/requisitions/:id/items
func (h *Handlers) AddItem(c *gin.Context) {
	var input service.ItemInput
	if !h.bind(c, &input) {
		return
	}
	item, err := h.services.Items.AddItem(c.Request.Context(), actorFrom(c), c.Param("id"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: item})
}

// UpdateItem handles PUT /api/v1/requisitions/:id/items/:itemId
func (h *Handlers) UpdateItem(c *gin.Context) {
	var update service.ItemUpdate
	if !h.bind(c, &update) {
		return
	}
	item, err := h.services.Items.UpdateItem(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("itemId"), update)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// RemoveItem handles DELETE /api/v1/requisitions/:id/items/:itemId
func (h *Handlers) RemoveItem(c *gin.Context) {
	if err := h.services.Items.RemoveItem(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("itemId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Submit handles POST /api/v1/requisitions/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	status, err := h.services.Requisitions.Submit(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// Decide handles POST /api/v1/requisitions/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if !h.bind(c, &req) {
		return
	}
	outcome, err := h.services.Requisitions.Decide(c.Request.Context(), actorFrom(c), c.Param("id"), req.Action, req.Comments)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// Cancel handles POST /api/v1/requisitions/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	status, err := h.services.Requisitions.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// ApprovalStatus handles GET /api/v1/requisitions/:id/approval
func (h *Handlers) ApprovalStatus(c *gin.Context) {
	status, err := h.services.Requisitions.Status(c.Request.Context(), actorFrom(c).TenantID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// RetryDocument handles POST /api/v1/requisitions/:id/document/retry
func (h *Handlers) RetryDocument(c *gin.Context) {
	actor := actorFrom(c)
	result, err := h.services.Documents.RetryGeneration(c.Request.Context(), actor.TenantID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("Document generation retried by operator",
		"tenant_id", actor.TenantID, "requisition_id", c.Param("id"), "actor", actor.UserID, "status", result.Status)
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListPendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	pending, err := h.services.Requisitions.ListPendingForApprover(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if pending == nil {
		pending = []*service.PendingApproval{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

// ExportDocument handles GET /api/v1/documents/:type/:id/export
func (h *Handlers) ExportDocument(c *gin.Context) {
	docType, ok := parseDocumentType(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: fmt.Sprintf("unknown document type %q", c.Param("type"))})
		return
	}
	doc, err := h.services.Documents.Export(c.Request.Context(), actorFrom(c).TenantID, docType, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is required")
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps a service error to its status code. Authorization failures
// get a fixed message so approver assignments are not disclosed.
func (h *Handlers) writeError(c *gin.Context, err error) {
	kind := service.Classify(err)
	status := kind.HTTPStatus()

	msg := err.Error()
	switch kind {
	case service.KindAuthorization:
		msg = "not permitted to perform this action"
	case service.KindInternal:
		msg = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "tenant_id", c.GetString(ctxTenantID), "error", err)
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func parseDocumentType(s string) (entity.DocumentType, bool) {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "PO", "PURCHASE_ORDER", "PURCHASE_ORDERS":
		return entity.DocumentTypePurchaseOrder, true
	case "RFQ", "RFQS":
		return entity.DocumentTypeRFQ, true
	default:
		return "", false
	}
}

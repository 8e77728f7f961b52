package handler

import (
	"context"
	"errors"
	"io"

	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/erp/allocation/internal/interfaces/http/dto"
	"github.com/erp/allocation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Allocator is the part of the allocation service the HTTP layer drives
type Allocator interface {
	Allocate(ctx context.Context, req appfinance.AllocateRequest) (*appfinance.AllocateResult, error)
	GetAllocation(ctx context.Context, id uuid.UUID) (*appfinance.AllocationView, error)
}

// OrderReconciler is the part of the order reconcile service the HTTP layer drives
type OrderReconciler interface {
	ReconcileOrder(ctx context.Context, req appfinance.ReconcileOrderRequest) (*appfinance.ReconcileOrderResult, error)
}

// AllocationHandler handles allocation and order reconciliation endpoints
type AllocationHandler struct {
	BaseHandler
	allocator  Allocator
	reconciler OrderReconciler
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocator Allocator, reconciler OrderReconciler) *AllocationHandler {
	return &AllocationHandler{
		allocator:  allocator,
		reconciler: reconciler,
	}
}

// reconcileOrderBody is the optional body of POST /orders/:id/reconcile
type reconcileOrderBody struct {
	PointOfSaleID   uuid.UUID `json:"pos_id"`
	ConversionType  string    `json:"conversion_type"`
	AllowOpenRefund bool      `json:"allow_open_refund"`
}

// Allocate runs one allocation session from the selected payments and invoices.
// POST /allocations
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req appfinance.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, dto.ErrCodeInvalidJSON, "Request body is not a valid allocation: "+err.Error())
		return
	}

	result, err := h.allocator.Allocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetAllocation returns a completed allocation with its lines.
// GET /allocations/:id
func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	view, err := h.allocator.GetAllocation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ReconcileOrder settles a point-of-sale order against its payments.
// POST /orders/:id/reconcile
func (h *AllocationHandler) ReconcileOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var body reconcileOrderBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error())
		return
	}

	result, err := h.reconciler.ReconcileOrder(c.Request.Context(), appfinance.ReconcileOrderRequest{
		OrderID:         id,
		PointOfSaleID:   body.PointOfSaleID,
		ConversionType:  body.ConversionType,
		AllowOpenRefund: body.AllowOpenRefund,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *AllocationHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, dto.ErrCodeBadRequest, "Path id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Routes returns the route groups served by this handler
func (h *AllocationHandler) Routes() []router.RouteRegistrar {
	allocations := router.NewDomainGroup("allocations", "/allocations").
		POST("", h.Allocate).
		GET("/:id", h.GetAllocation)
	orders := router.NewDomainGroup("orders", "/orders").
		POST("/:id/reconcile", h.ReconcileOrder)
	return []router.RouteRegistrar{allocations, orders}
}

package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/billing"
	"lms/internal/infrastructure/http/v1/dto"
)

// NewCouponHandler creates the coupon CRUD handler.
func NewCouponHandler(base *BaseHandler, svc *billing.CouponService) *EntityHandler[*billing.Coupon, dto.CreateCouponRequest, dto.UpdateCouponRequest] {
	return NewEntityHandler(base, EntityHandlerConfig[*billing.Coupon, dto.CreateCouponRequest, dto.UpdateCouponRequest]{
		Service:      svc,
		DefaultOrder: "code",
		MapCreate:    dto.CreateCouponRequest.ToEntity,
		MapUpdate: func(req dto.UpdateCouponRequest, c *billing.Coupon) {
			req.ApplyTo(c)
		},
	})
}

// BillingHandler serves coupon validation and the order lifecycle.
type BillingHandler struct {
	*BaseHandler
	coupons *billing.CouponService
	orders  *billing.OrderService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(base *BaseHandler, coupons *billing.CouponService, orders *billing.OrderService) *BillingHandler {
	return &BillingHandler{BaseHandler: base, coupons: coupons, orders: orders}
}

// ValidateCoupon handles POST /coupons/validate
func (h *BillingHandler) ValidateCoupon(c *gin.Context) {
	var req dto.ValidateCouponRequest
	if !h.BindJSON(c, &req) {
		return
	}
	q, err := h.coupons.Validate(c.Request.Context(), req.Code, req.CourseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, q)
}

// ListOrders handles GET /orders
func (h *BillingHandler) ListOrders(c *gin.Context) {
	f, ok := h.ListFilter(c, "-created_at")
	if !ok {
		return
	}
	res, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// GetOrder handles GET /orders/:id
func (h *BillingHandler) GetOrder(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetByID(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// Checkout handles POST /orders
func (h *BillingHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if req.UserID != nil {
		caller, ok := h.CallerID(c)
		if !ok {
			return
		}
		if *req.UserID != caller {
			if err := security.RequirePermission(ctx, security.Perm("orders", security.ActionCreate)); err != nil {
				h.Error(c, err)
				return
			}
		}
	}
	o, err := h.orders.Checkout(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, o)
}

// Pay handles POST /orders/:id/pay. Payment capture is external; this
// records it and enrolls the buyer.
func (h *BillingHandler) Pay(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	o, e, err := h.orders.Pay(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	resp := dto.PayResponse{Order: o}
	if e != nil {
		resp.Enrollment = e
	}
	h.OK(c, resp)
}

// CancelOrder handles POST /orders/:id/cancel
func (h *BillingHandler) CancelOrder(c *gin.Context) {
	h.closeOrder(c, h.orders.Cancel)
}

// RefundOrder handles POST /orders/:id/refund
func (h *BillingHandler) RefundOrder(c *gin.Context) {
	h.closeOrder(c, h.orders.Refund)
}

func (h *BillingHandler) closeOrder(c *gin.Context, op func(ctx context.Context, orderID id.ID, reason string) (*billing.Order, error)) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	o, err := op(c.Request.Context(), key, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/domain/courses"
)

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// Order is the commercial record of buying one course.
// The enrollment is created once the order is paid.
type Order struct {
	entity.BaseEntity
	entity.BranchOwned
	entity.CurrencyAware

	OrderNo            string          `db:"order_no" json:"orderNo"`
	UserID             id.ID           `db:"user_id" json:"userId"`
	CourseID           id.ID           `db:"course_id" json:"courseId"`
	Status             OrderStatus     `db:"status" json:"status"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountTotal      decimal.Decimal `db:"discount_total" json:"discountTotal"`
	TaxTotal           decimal.Decimal `db:"tax_total" json:"taxTotal"`
	Total              decimal.Decimal `db:"total" json:"total"`
	CouponID           *id.ID          `db:"coupon_id" json:"couponId,omitempty"`
	CouponCodeSnapshot string          `db:"coupon_code_snapshot" json:"couponCode,omitempty"`
	InvoiceNo          string          `db:"invoice_no" json:"invoiceNo,omitempty"`
	RefundReceiptNo    string          `db:"refund_receipt_no" json:"refundReceiptNo,omitempty"`
	EnrollmentID       *id.ID          `db:"enrollment_id" json:"enrollmentId,omitempty"`
	PaidAt             *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	CancelledAt        *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason       string          `db:"cancel_reason" json:"cancelReason,omitempty"`
	CustomerName       string          `db:"customer_name" json:"customerName,omitempty"`
	CustomerEmail      string          `db:"customer_email" json:"customerEmail,omitempty"`
	Meta               entity.Meta     `db:"meta" json:"meta,omitempty"`
}

// NewOrder creates a pending order.
func NewOrder(userID, courseID id.ID) *Order {
	return &Order{
		BaseEntity:    entity.NewBaseEntity(),
		CurrencyAware: entity.CurrencyAware{CurrencyCode: courses.DefaultCurrency},
		UserID:        userID,
		CourseID:      courseID,
		Status:        OrderPending,
	}
}

func (o *Order) EntityName() string { return "order" }

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if id.IsNil(o.UserID) {
		return apperror.NewFieldValidation("userId", "user is required")
	}
	if id.IsNil(o.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	for field, v := range map[string]decimal.Decimal{
		"subtotal": o.Subtotal, "discountTotal": o.DiscountTotal, "taxTotal": o.TaxTotal, "total": o.Total,
	} {
		if v.IsNegative() {
			return apperror.NewFieldValidation(field, "amount cannot be negative")
		}
	}
	return o.ValidateCurrency(ctx)
}

// ApplyPricing computes the totals from the course price at now and an
// optional coupon. The coupon discounts the effective price; tax is taken
// on what remains.
func (o *Order) ApplyPricing(p *courses.Pricing, coupon *Coupon, now time.Time) {
	o.CurrencyCode = p.CurrencyCode
	o.Subtotal = p.EffectivePrice(now)
	o.DiscountTotal = decimal.Zero
	o.CouponID, o.CouponCodeSnapshot = nil, ""
	if coupon != nil {
		o.DiscountTotal = coupon.Discount(o.Subtotal)
		o.CouponID = id.Ptr(coupon.ID)
		o.CouponCodeSnapshot = coupon.Code
	}
	o.TaxTotal, o.Total = p.Tax(o.Subtotal.Sub(o.DiscountTotal))
}

// MarkPaid settles a pending order.
func (o *Order) MarkPaid(invoiceNo string, enrollmentID id.ID, now time.Time) error {
	if o.Status != OrderPending {
		return apperror.NewInvalidTransition("order", string(o.Status), string(OrderPaid))
	}
	o.Status = OrderPaid
	o.InvoiceNo = invoiceNo
	o.EnrollmentID = &enrollmentID
	o.PaidAt = &now
	return nil
}

// Cancel abandons an unpaid order.
func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status != OrderPending && o.Status != OrderDraft {
		return apperror.NewInvalidTransition("order", string(o.Status), string(OrderCancelled))
	}
	o.Status = OrderCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	return nil
}

// Refund reverses a paid order under a refund receipt number.
func (o *Order) Refund(receiptNo, reason string, now time.Time) error {
	if o.Status != OrderPaid {
		return apperror.NewInvalidTransition("order", string(o.Status), string(OrderRefunded))
	}
	o.Status = OrderRefunded
	o.RefundReceiptNo = receiptNo
	o.CancelledAt = &now
	o.CancelReason = reason
	return nil
}

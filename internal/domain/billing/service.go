package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/internal/domain/courses"
	"lms/internal/domain/enrollments"
	"lms/pkg/logger"
)

// CouponService manages coupons.
type CouponService struct {
	*domain.Service[*Coupon]
	repo    CouponRepository
	pricing PriceLookup
}

// NewCouponService creates the coupon service.
func NewCouponService(repo CouponRepository, pricing PriceLookup, txm tx.Manager, clock func() time.Time) *CouponService {
	base := domain.NewService(domain.ServiceConfig[*Coupon]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "coupon",
		Clock:      clock,
	})
	normalize := func(ctx context.Context, c *Coupon) error {
		c.Code = NormalizeCode(c.Code)
		return nil
	}
	base.Hooks().OnBeforeCreate(normalize)
	base.Hooks().OnBeforeUpdate(normalize)
	return &CouponService{Service: base, repo: repo, pricing: pricing}
}

// CouponQuote previews what a coupon does to a course price.
type CouponQuote struct {
	Code           string          `json:"code"`
	CourseID       id.ID           `json:"courseId"`
	CurrencyCode   string          `json:"currencyCode"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	TaxTotal       decimal.Decimal `json:"taxTotal"`
	Total          decimal.Decimal `json:"total"`
	Valid          bool            `json:"valid"`
}

// Validate checks a code against a course for the caller. It returns the
// COUPON_INVALID error a checkout would produce.
func (s *CouponService) Validate(ctx context.Context, code string, courseID id.ID) (*CouponQuote, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	course, pricing, err := s.pricing.PriceOf(ctx, courseID)
	if err != nil {
		return nil, err
	}
	buyer, _ := id.Parse(scope.UserID)
	coupon, err := s.resolve(ctx, course, pricing, code, buyer, s.Now())
	if err != nil {
		return nil, err
	}

	o := NewOrder(buyer, courseID)
	o.ApplyPricing(pricing, coupon, s.Now())
	return &CouponQuote{
		Code:           coupon.Code,
		CourseID:       courseID,
		CurrencyCode:   o.CurrencyCode,
		Subtotal:       o.Subtotal,
		Discount:       o.DiscountTotal,
		TaxTotal:       o.TaxTotal,
		Total:          o.Total,
		Valid:          true,
	}, nil
}

// resolve finds a code in the course branch and checks it for buyer.
func (s *CouponService) resolve(ctx context.Context, course *courses.Course, pricing *courses.Pricing, code string, buyer id.ID, now time.Time) (*Coupon, error) {
	code = NormalizeCode(code)
	coupon, err := s.repo.FindByCode(ctx, course.BranchID, code)
	if apperror.IsNotFound(err) {
		return nil, InvalidCoupon(code, CouponUnknown)
	}
	if err != nil {
		return nil, err
	}

	used := 0
	if coupon.MaxUsesPerUser != nil {
		if used, err = s.repo.CountRedemptions(ctx, coupon.ID, buyer); err != nil {
			return nil, err
		}
	}
	err = coupon.Check(CouponUse{
		CourseID:        course.ID,
		Subtotal:        pricing.EffectivePrice(now),
		CurrencyCode:    pricing.CurrencyCode,
		UserRedemptions: used,
	}, now)
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// CheckoutInput starts the purchase of a course.
type CheckoutInput struct {
	CourseID id.ID
	// UserID defaults to the caller.
	UserID        *id.ID
	CouponCode    string
	CustomerName  string
	CustomerEmail string
}

// OrderService runs checkout and payment.
type OrderService struct {
	*domain.Service[*Order]
	repo     OrderRepository
	coupons  *CouponService
	pricing  PriceLookup
	enroller Enroller
	numbers  numerator.Generator
}

// NewOrderService creates the order service.
func NewOrderService(repo OrderRepository, coupons *CouponService, pricing PriceLookup, enroller Enroller, numbers numerator.Generator, txm tx.Manager, clock func() time.Time) *OrderService {
	return &OrderService{
		Service: domain.NewService(domain.ServiceConfig[*Order]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "order",
			Clock:      clock,
		}),
		repo:     repo,
		coupons:  coupons,
		pricing:  pricing,
		enroller: enroller,
		numbers:  numbers,
	}
}

// Checkout prices a course for the buyer and creates a pending order with
// a number from the order sequence.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	buyer := in.UserID
	if buyer == nil {
		buyer = domain.ActorID(ctx)
	}
	if buyer == nil {
		return nil, apperror.NewFieldValidation("userId", "buyer is required")
	}

	course, pricing, err := s.pricing.PriceOf(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "course is not for sale").
			WithDetail("courseId", course.ID)
	}

	now := s.Now()
	var coupon *Coupon
	if in.CouponCode != "" {
		if coupon, err = s.coupons.resolve(ctx, course, pricing, in.CouponCode, *buyer, now); err != nil {
			return nil, err
		}
	}

	o := NewOrder(*buyer, course.ID)
	o.ApplyPricing(pricing, coupon, now)
	o.CustomerName, o.CustomerEmail = in.CustomerName, in.CustomerEmail
	entity.InheritBranch(o, course)

	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		o.OrderNo, err = numerator.Next(ctx, s.numbers, numerator.TypeOrder, scope.OrganizationID, o.BranchID)
		if err != nil {
			return err
		}
		return s.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order created", "order_id", o.ID, "order_no", o.OrderNo, "total", o.Total.String())
	return o, nil
}

// Pay settles a pending order: the coupon use is counted, an invoice number
// issued and the buyer enrolled, all in one transaction.
func (s *OrderService) Pay(ctx context.Context, orderID id.ID) (*Order, *enrollments.Enrollment, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		order      *Order
		enrollment *enrollments.Enrollment
	)
	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetByID(ctx, orderID); err != nil {
			return err
		}
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return s.NormalizeGetErr(err, orderID.String())
		}
		if o.Status != OrderPending {
			return apperror.NewInvalidTransition("order", string(o.Status), string(OrderPaid))
		}
		now := s.Now()

		if o.CouponID != nil {
			if err := s.redeem(ctx, o, now); err != nil {
				return err
			}
		}

		invoiceNo, err := numerator.Next(ctx, s.numbers, numerator.TypeInvoice, scope.OrganizationID, o.BranchID)
		if err != nil {
			return err
		}

		enrollment, err = s.enroller.Enroll(ctx, enrollments.EnrollInput{
			UserID:          o.UserID,
			CourseID:        o.CourseID,
			Source:          enrollments.SourcePurchase,
			PricePaid:       o.Total,
			CurrencyCode:    o.CurrencyCode,
			BillingOrderRef: o.OrderNo,
		})
		if err != nil {
			return err
		}

		if err := o.MarkPaid(invoiceNo, enrollment.ID, now); err != nil {
			return err
		}
		if err := s.Update(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "order paid", "order_id", order.ID, "invoice_no", order.InvoiceNo, "enrollment_id", enrollment.ID)
	return order, enrollment, nil
}

func (s *OrderService) redeem(ctx context.Context, o *Order, now time.Time) error {
	coupon, err := s.coupons.repo.GetForUpdate(ctx, *o.CouponID)
	if err != nil {
		return err
	}
	if !coupon.IsValid(now) {
		return InvalidCoupon(coupon.Code, coupon.invalidReason(now))
	}
	coupon.Redeem()
	coupon.Stamp(nil, now)
	if err := s.coupons.repo.Update(ctx, coupon); err != nil {
		return err
	}
	return s.coupons.repo.AddRedemption(ctx, &Redemption{
		ID:        id.New(),
		CouponID:  coupon.ID,
		UserID:    o.UserID,
		OrderID:   o.ID,
		CreatedAt: now,
	})
}

// Cancel abandons an unpaid order.
func (s *OrderService) Cancel(ctx context.Context, orderID id.ID, reason string) (*Order, error) {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.Cancel(reason, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Refund reverses a paid order and the enrollment it bought. The refund
// takes a number from the receipt sequence.
func (s *OrderService) Refund(ctx context.Context, orderID id.ID, reason string) (*Order, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	var out *Order
	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != OrderPaid {
			return apperror.NewInvalidTransition("order", string(o.Status), string(OrderRefunded))
		}
		receiptNo, err := numerator.Next(ctx, s.numbers, numerator.TypeReceipt, scope.OrganizationID, o.BranchID)
		if err != nil {
			return err
		}
		if err := o.Refund(receiptNo, reason, s.Now()); err != nil {
			return err
		}
		if o.EnrollmentID != nil {
			if _, err := s.enroller.Refund(ctx, *o.EnrollmentID); err != nil {
				return err
			}
		}
		if err := s.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

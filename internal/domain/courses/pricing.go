package courses

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/types"
)

// PricingType distinguishes free courses from paid ones.
type PricingType string

const (
	PricingFree    PricingType = "free"
	PricingOneTime PricingType = "one_time"
)

// Pricing is the price list entry of one course.
// It carries no branch of its own; access follows the course.
type Pricing struct {
	entity.BaseEntity
	entity.CurrencyAware

	CourseID    id.ID            `db:"course_id" json:"courseId"`
	PricingType PricingType      `db:"pricing_type" json:"pricingType"`
	Price       decimal.Decimal  `db:"price" json:"price"`
	SalePrice   *decimal.Decimal `db:"sale_price" json:"salePrice,omitempty"`
	SaleStartAt *time.Time       `db:"sale_start_at" json:"saleStartAt,omitempty"`
	SaleEndAt   *time.Time       `db:"sale_end_at" json:"saleEndAt,omitempty"`
	TaxIncluded bool             `db:"tax_included" json:"taxIncluded"`
	TaxRate     decimal.Decimal  `db:"tax_rate" json:"taxRate"`
}

// NewPricing creates a free price list entry for a course.
func NewPricing(courseID id.ID, currency string) *Pricing {
	return &Pricing{
		BaseEntity:    entity.NewBaseEntity(),
		CurrencyAware: entity.CurrencyAware{CurrencyCode: currency},
		CourseID:      courseID,
		PricingType:   PricingFree,
		TaxIncluded:   true,
	}
}

// EntityName is used in errors.
func (p *Pricing) EntityName() string { return "course_pricing" }

// Validate implements entity.Validatable.
func (p *Pricing) Validate(ctx context.Context) error {
	if id.IsNil(p.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if p.PricingType != PricingFree && p.PricingType != PricingOneTime {
		return apperror.NewFieldValidation("pricingType", "unknown pricing type")
	}
	if err := p.ValidateCurrency(ctx); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return apperror.NewFieldValidation("price", "price cannot be negative")
	}
	if p.SalePrice != nil && p.SalePrice.IsNegative() {
		return apperror.NewFieldValidation("salePrice", "sale price cannot be negative")
	}
	if p.SaleStartAt != nil && p.SaleEndAt != nil && p.SaleEndAt.Before(*p.SaleStartAt) {
		return apperror.NewFieldValidation("saleEndAt", "sale window ends before it starts")
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return apperror.NewFieldValidation("taxRate", "tax rate must be between 0 and 100")
	}
	return nil
}

// OnSale reports whether the sale price applies at now.
// Both window bounds are inclusive; a missing bound is open.
func (p *Pricing) OnSale(now time.Time) bool {
	if p.SalePrice == nil {
		return false
	}
	if p.SaleStartAt != nil && now.Before(*p.SaleStartAt) {
		return false
	}
	if p.SaleEndAt != nil && now.After(*p.SaleEndAt) {
		return false
	}
	return true
}

// EffectivePrice is what a student pays at now, before coupons and tax.
func (p *Pricing) EffectivePrice(now time.Time) decimal.Decimal {
	if p.PricingType == PricingFree {
		return decimal.Zero
	}
	if p.OnSale(now) {
		return *p.SalePrice
	}
	return p.Price
}

// Tax splits the tax out of (or adds it on top of) a net amount.
// It returns the tax portion and the amount the customer pays.
func (p *Pricing) Tax(amount decimal.Decimal) (tax, total decimal.Decimal) {
	if p.TaxRate.IsZero() || amount.IsZero() {
		return decimal.Zero, amount
	}
	if p.TaxIncluded {
		divisor := decimal.NewFromInt(1).Add(p.TaxRate.Div(decimal.NewFromInt(100)))
		net := amount.Div(divisor)
		return types.Round(amount.Sub(net)), amount
	}
	tax = types.Percent(amount, p.TaxRate)
	return tax, amount.Add(tax)
}

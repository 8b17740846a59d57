package courses

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/tx"
	"lms/internal/domain"
)

// DefaultCurrency is used for courses without a price list entry.
const DefaultCurrency = "USD"

// Service provides business logic for courses, pricing and modules.
type Service struct {
	*domain.Service[*Course]
	repo    Repository
	pricing PricingRepository
	modules *domain.Service[*Module]
	txm     tx.Manager
}

// NewService creates the course service.
func NewService(repo Repository, pricing PricingRepository, modules ModuleRepository, txm tx.Manager, clock func() time.Time) *Service {
	base := domain.NewService(domain.ServiceConfig[*Course]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "course",
		Clock:      clock,
	})
	svc := &Service{
		Service: base,
		repo:    repo,
		pricing: pricing,
		modules: domain.NewService(domain.ServiceConfig[*Module]{
			Repo:       modules,
			TxManager:  txm,
			EntityName: "course_module",
			Clock:      clock,
		}),
		txm: txm,
	}

	base.Hooks().OnBeforeCreate(svc.fillSlug)
	base.Hooks().OnBeforeUpdate(svc.fillSlug)
	return svc
}

func (s *Service) fillSlug(ctx context.Context, c *Course) error {
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	return nil
}

// Publish makes a draft course available for enrollment.
func (s *Service) Publish(ctx context.Context, courseID id.ID) (*Course, error) {
	return s.transition(ctx, courseID, (*Course).Publish)
}

// Archive removes a course from the catalog.
func (s *Service) Archive(ctx context.Context, courseID id.ID) (*Course, error) {
	return s.transition(ctx, courseID, (*Course).Archive)
}

func (s *Service) transition(ctx context.Context, courseID id.ID, apply func(*Course, time.Time) error) (*Course, error) {
	c, err := s.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := apply(c, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetPricing returns the stored price list entry of a course.
func (s *Service) GetPricing(ctx context.Context, courseID id.ID) (*Pricing, error) {
	if _, err := s.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	p, err := s.pricing.GetByCourse(ctx, courseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("course_pricing", courseID.String())
		}
		return nil, err
	}
	return p, nil
}

// PriceOf returns the course with its pricing. A course without a price
// list entry is free.
func (s *Service) PriceOf(ctx context.Context, courseID id.ID) (*Course, *Pricing, error) {
	c, err := s.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.pricing.GetByCourse(ctx, courseID)
	switch {
	case apperror.IsNotFound(err):
		return c, NewPricing(courseID, DefaultCurrency), nil
	case err != nil:
		return nil, nil, err
	}
	return c, p, nil
}

// SetPricing creates or replaces the price list entry of a course.
func (s *Service) SetPricing(ctx context.Context, courseID id.ID, in *Pricing) (*Pricing, error) {
	if _, err := s.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	in.CourseID = courseID

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.pricing.GetByCourse(ctx, courseID)
		switch {
		case apperror.IsNotFound(err):
			in.Stamp(domain.ActorID(ctx), s.Now())
			if err := in.Validate(ctx); err != nil {
				return err
			}
			return s.pricing.Create(ctx, in)
		case err != nil:
			return err
		}

		in.BaseEntity = existing.BaseEntity
		in.Stamp(domain.ActorID(ctx), s.Now())
		if err := in.Validate(ctx); err != nil {
			return err
		}
		return s.pricing.Update(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// PriceQuote is the price of a course at one instant.
type PriceQuote struct {
	CourseID       id.ID           `json:"courseId"`
	CurrencyCode   string          `json:"currencyCode"`
	ListPrice      decimal.Decimal `json:"listPrice"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	OnSale         bool            `json:"onSale"`
	At             time.Time       `json:"at"`
}

// Quote computes the effective price at at (zero means now).
func (s *Service) Quote(ctx context.Context, courseID id.ID, at time.Time) (*PriceQuote, error) {
	if at.IsZero() {
		at = s.Now()
	}
	_, p, err := s.PriceOf(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{
		CourseID:       courseID,
		CurrencyCode:   p.CurrencyCode,
		ListPrice:      p.Price,
		EffectivePrice: p.EffectivePrice(at),
		OnSale:         p.PricingType != PricingFree && p.OnSale(at),
		At:             at,
	}, nil
}

// AddModule appends a module to a course. The module inherits the course branch.
func (s *Service) AddModule(ctx context.Context, courseID id.ID, title string, position int) (*Module, error) {
	c, err := s.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	m := NewModule(c, title, position)
	if err := s.modules.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListModules returns the modules of a course ordered by position.
func (s *Service) ListModules(ctx context.Context, courseID id.ID) ([]*Module, error) {
	if _, err := s.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	f := domain.DefaultListFilter()
	f.Where("course_id", courseID)
	f.OrderBy = "position"
	f.Limit = 0
	res, err := s.modules.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

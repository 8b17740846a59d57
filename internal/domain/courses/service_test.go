package courses

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/domaintest"
)

type memCourses struct {
	*domaintest.MemRepo[*Course]
}

func (m memCourses) FindBySlug(ctx context.Context, branchID *id.ID, slug string) (*Course, error) {
	return m.FindOne(func(c *Course) bool { return c.Slug == slug && id.Equal(c.BranchID, branchID) })
}

type memPricing struct {
	*domaintest.MemRepo[*Pricing]
}

func (m memPricing) GetByCourse(ctx context.Context, courseID id.ID) (*Pricing, error) {
	return m.FindOne(func(p *Pricing) bool { return p.CourseID == courseID })
}

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService() *Service {
	courses := memCourses{domaintest.NewMemRepo("courses", func(c *Course) *Course { v := *c; return &v })}
	pricing := memPricing{domaintest.NewMemRepo("course_pricing", func(p *Pricing) *Pricing { v := *p; return &v })}
	modules := domaintest.NewMemRepo("course_modules", func(m *Module) *Module { v := *m; return &v })
	return NewService(courses, pricing, modules, domaintest.InlineTx{}, func() time.Time { return testNow })
}

func scoped(branch id.ID, main bool) context.Context {
	return security.WithScope(context.Background(),
		security.NewBranchScope(id.New().String(), id.Ptr(id.New()), id.Ptr(branch), main))
}

func TestService_PublishAndPricing(t *testing.T) {
	svc := newTestService()
	downtown := id.New()
	ctx := scoped(downtown, false)

	c := NewCourse("Intro to Go", "")
	require.NoError(t, svc.Create(ctx, c))
	assert.Equal(t, downtown, *c.BranchID)

	published, err := svc.Publish(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, published.Status)

	// no price list entry: free
	q, err := svc.Quote(ctx, c.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, q.EffectivePrice.IsZero())
	assert.Equal(t, testNow, q.At)

	_, err = svc.GetPricing(ctx, c.ID)
	assert.True(t, apperror.IsNotFound(err))

	p := NewPricing(c.ID, "USD")
	p.PricingType = PricingOneTime
	p.Price = decimal.NewFromInt(100)
	sale := decimal.NewFromInt(60)
	end := testNow
	p.SalePrice, p.SaleEndAt = &sale, &end
	_, err = svc.SetPricing(ctx, c.ID, p)
	require.NoError(t, err)

	q, err = svc.Quote(ctx, c.ID, testNow)
	require.NoError(t, err)
	assert.True(t, q.OnSale)
	assert.Equal(t, "60", q.EffectivePrice.String())

	q, err = svc.Quote(ctx, c.ID, testNow.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, q.OnSale)
	assert.Equal(t, "100", q.EffectivePrice.String())

	// replacing keeps the row identity
	again := NewPricing(c.ID, "EUR")
	_, err = svc.SetPricing(ctx, c.ID, again)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}

func TestService_OtherBranchCannotTouchCourse(t *testing.T) {
	svc := newTestService()
	downtown, uptown := id.New(), id.New()

	c := NewCourse("SQL", "")
	require.NoError(t, svc.Create(scoped(downtown, false), c))

	_, err := svc.Publish(scoped(uptown, false), c.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))

	_, err = svc.Quote(scoped(uptown, false), c.ID, testNow)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))

	_, err = svc.Publish(scoped(uptown, true), c.ID)
	assert.NoError(t, err, "main branch may act on every course")
}

func TestService_Modules(t *testing.T) {
	svc := newTestService()
	main := id.New()
	ctx := scoped(main, true)

	c := NewCourse("Go", "")
	c.BranchID = id.Ptr(id.New())
	require.NoError(t, svc.Create(ctx, c))

	m2, err := svc.AddModule(ctx, c.ID, "Concurrency", 2)
	require.NoError(t, err)
	_, err = svc.AddModule(ctx, c.ID, "Basics", 1)
	require.NoError(t, err)
	assert.Equal(t, *c.BranchID, *m2.BranchID, "module follows the course branch")

	mods, err := svc.ListModules(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, mods, 2)
}

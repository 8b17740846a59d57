package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/core/id"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
)

// CreateCourseRequest is the request body for creating a course.
type CreateCourseRequest struct {
	Title        string `json:"title" binding:"required"`
	Slug         string `json:"slug"`
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	Visibility   string `json:"visibility"`
	Level        string `json:"level"`
	LanguageCode string `json:"languageCode"`
	BranchID     *id.ID `json:"branchId"`
}

// ToEntity converts DTO to domain entity.
func (r CreateCourseRequest) ToEntity() *courses.Course {
	c := courses.NewCourse(r.Title, r.Slug)
	c.Summary = r.Summary
	c.Description = r.Description
	if r.Visibility != "" {
		c.Visibility = courses.Visibility(r.Visibility)
	}
	if r.Level != "" {
		c.Level = courses.Level(r.Level)
	}
	if r.LanguageCode != "" {
		c.LanguageCode = r.LanguageCode
	}
	c.BranchID = r.BranchID
	return c
}

// UpdateCourseRequest is the request body for updating a course.
type UpdateCourseRequest struct {
	Title        *string `json:"title"`
	Slug         *string `json:"slug"`
	Summary      *string `json:"summary"`
	Description  *string `json:"description"`
	Visibility   *string `json:"visibility"`
	Level        *string `json:"level"`
	LanguageCode *string `json:"languageCode"`
	BranchID     *id.ID  `json:"branchId"`
	Version      int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields.
func (r UpdateCourseRequest) ApplyTo(c *courses.Course) {
	setString(&c.Title, r.Title)
	setString(&c.Slug, r.Slug)
	setString(&c.Summary, r.Summary)
	setString(&c.Description, r.Description)
	setString(&c.LanguageCode, r.LanguageCode)
	if r.Visibility != nil {
		c.Visibility = courses.Visibility(*r.Visibility)
	}
	if r.Level != nil {
		c.Level = courses.Level(*r.Level)
	}
	if r.BranchID != nil {
		c.BranchID = r.BranchID
	}
	c.Version = r.Version
}

// PricingRequest replaces the price list entry of a course.
type PricingRequest struct {
	PricingType  string           `json:"pricingType" binding:"required,oneof=free one_time"`
	CurrencyCode string           `json:"currencyCode"`
	Price        decimal.Decimal  `json:"price"`
	SalePrice    *decimal.Decimal `json:"salePrice"`
	SaleStartAt  *time.Time       `json:"saleStartAt"`
	SaleEndAt    *time.Time       `json:"saleEndAt"`
	TaxIncluded  bool             `json:"taxIncluded"`
	TaxRate      decimal.Decimal  `json:"taxRate"`
}

// ToEntity converts DTO to domain entity.
func (r PricingRequest) ToEntity(courseID id.ID) *courses.Pricing {
	currency := r.CurrencyCode
	if currency == "" {
		currency = courses.DefaultCurrency
	}
	p := courses.NewPricing(courseID, currency)
	p.PricingType = courses.PricingType(r.PricingType)
	p.Price = r.Price
	p.SalePrice = r.SalePrice
	p.SaleStartAt = r.SaleStartAt
	p.SaleEndAt = r.SaleEndAt
	p.TaxIncluded = r.TaxIncluded
	p.TaxRate = r.TaxRate
	return p
}

// ModuleRequest adds a module to a course.
type ModuleRequest struct {
	Title    string `json:"title" binding:"required"`
	Position int    `json:"position" binding:"min=0"`
}

// CreateLessonRequest is the request body for creating a lesson.
type CreateLessonRequest struct {
	CourseID             id.ID      `json:"courseId" binding:"required"`
	ModuleID             *id.ID     `json:"moduleId"`
	Title                string     `json:"title" binding:"required"`
	Slug                 string     `json:"slug"`
	LessonType           string     `json:"lessonType"`
	Position             int        `json:"position" binding:"min=0"`
	ReleaseType          string     `json:"releaseType"`
	ReleaseAt            *time.Time `json:"releaseAt"`
	ReleaseAfterDays     *int       `json:"releaseAfterDays"`
	PrerequisiteLessonID *id.ID     `json:"prerequisiteLessonId"`
	IsPreview            bool       `json:"isPreview"`
	DurationMinutes      int        `json:"durationMinutes" binding:"min=0"`
	ContentURL           string     `json:"contentUrl"`
}

// ToEntity converts DTO to domain entity.
func (r CreateLessonRequest) ToEntity() *content.Lesson {
	l := content.NewLesson(r.CourseID, r.Title)
	if r.Slug != "" {
		l.Slug = r.Slug
	}
	if r.LessonType != "" {
		l.LessonType = content.LessonType(r.LessonType)
	}
	if r.ReleaseType != "" {
		l.ReleaseType = content.ReleaseType(r.ReleaseType)
	}
	l.ModuleID = r.ModuleID
	l.Position = r.Position
	l.ReleaseAt = r.ReleaseAt
	l.ReleaseAfterDays = r.ReleaseAfterDays
	l.PrerequisiteLessonID = r.PrerequisiteLessonID
	l.IsPreview = r.IsPreview
	l.DurationMinutes = r.DurationMinutes
	l.ContentURL = r.ContentURL
	return l
}

// UpdateLessonRequest is the request body for updating a lesson.
type UpdateLessonRequest struct {
	Title                *string    `json:"title"`
	LessonType           *string    `json:"lessonType"`
	Position             *int       `json:"position"`
	ReleaseType          *string    `json:"releaseType"`
	ReleaseAt            *time.Time `json:"releaseAt"`
	ReleaseAfterDays     *int       `json:"releaseAfterDays"`
	PrerequisiteLessonID *id.ID     `json:"prerequisiteLessonId"`
	IsPreview            *bool      `json:"isPreview"`
	DurationMinutes      *int       `json:"durationMinutes"`
	ContentURL           *string    `json:"contentUrl"`
	Version              int        `json:"version" binding:"required,min=1"`
}

// ApplyTo applies the non-nil fields. Release fields are replaced together
// when releaseType is sent.
func (r UpdateLessonRequest) ApplyTo(l *content.Lesson) {
	setString(&l.Title, r.Title)
	setString(&l.ContentURL, r.ContentURL)
	if r.LessonType != nil {
		l.LessonType = content.LessonType(*r.LessonType)
	}
	if r.Position != nil {
		l.Position = *r.Position
	}
	if r.ReleaseType != nil {
		l.ReleaseType = content.ReleaseType(*r.ReleaseType)
		l.ReleaseAt = r.ReleaseAt
		l.ReleaseAfterDays = r.ReleaseAfterDays
		l.PrerequisiteLessonID = r.PrerequisiteLessonID
	}
	if r.IsPreview != nil {
		l.IsPreview = *r.IsPreview
	}
	if r.DurationMinutes != nil {
		l.DurationMinutes = *r.DurationMinutes
	}
	l.Version = r.Version
}

// Package course_repo provides PostgreSQL repositories for the course
// catalog: courses, price lists, modules, lessons and lesson completions.
package course_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lms/internal/core/id"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
	"lms/internal/infrastructure/storage/postgres"
)

// CourseRepo implements courses.Repository.
type CourseRepo struct {
	*postgres.BaseRepo[*courses.Course]
}

func NewCourseRepo(txm *postgres.TxManager) *CourseRepo {
	return &CourseRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "courses", func() *courses.Course { return &courses.Course{} },
			postgres.WithSearch("title", "slug", "summary")),
	}
}

// FindBySlug matches the branch with IS NOT DISTINCT FROM so a nil branch
// finds the organization-wide course.
func (r *CourseRepo) FindBySlug(ctx context.Context, branchID *id.ID, slug string) (*courses.Course, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"slug": slug}).
		Where("branch_id IS NOT DISTINCT FROM ?", branchID).
		Limit(1))
}

// PricingRepo implements courses.PricingRepository.
type PricingRepo struct {
	*postgres.BaseRepo[*courses.Pricing]
}

func NewPricingRepo(txm *postgres.TxManager) *PricingRepo {
	return &PricingRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "course_pricing", func() *courses.Pricing { return &courses.Pricing{} }),
	}
}

func (r *PricingRepo) GetByCourse(ctx context.Context, courseID id.ID) (*courses.Pricing, error) {
	return r.FindOne(ctx, r.Select().Where(sq.Eq{"course_id": courseID, "active": true}).Limit(1))
}

// ModuleRepo implements courses.ModuleRepository.
type ModuleRepo struct {
	*postgres.BaseRepo[*courses.Module]
}

func NewModuleRepo(txm *postgres.TxManager) *ModuleRepo {
	return &ModuleRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "course_modules", func() *courses.Module { return &courses.Module{} },
			postgres.WithSearch("title"), postgres.WithDefaultOrder("position ASC")),
	}
}

// LessonRepo implements content.Repository.
type LessonRepo struct {
	*postgres.BaseRepo[*content.Lesson]
}

func NewLessonRepo(txm *postgres.TxManager) *LessonRepo {
	return &LessonRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "lessons", func() *content.Lesson { return &content.Lesson{} },
			postgres.WithSearch("title", "slug"), postgres.WithDefaultOrder("position ASC")),
	}
}

// CompletionRepo implements content.CompletionRepository.
type CompletionRepo struct {
	txm *postgres.TxManager
}

func NewCompletionRepo(txm *postgres.TxManager) *CompletionRepo {
	return &CompletionRepo{txm: txm}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Record inserts the completion; a repeat for the same lesson is a no-op.
func (r *CompletionRepo) Record(ctx context.Context, c *content.Completion) error {
	query, args, err := psql.Insert("lesson_completions").
		Columns("id", "enrollment_id", "lesson_id", "user_id", "completed_at").
		Values(c.ID, c.EnrollmentID, c.LessonID, c.UserID, c.CompletedAt).
		Suffix("ON CONFLICT (enrollment_id, lesson_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "lesson_completions")
	}
	return nil
}

func (r *CompletionRepo) CompletedLessonIDs(ctx context.Context, enrollmentID id.ID) (map[id.ID]bool, error) {
	query, args, err := psql.Select("lesson_id").
		From("lesson_completions").
		Where(sq.Eq{"enrollment_id": enrollmentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, query, args...); err != nil {
		return nil, postgres.MapError(err, "lesson_completions")
	}
	out := make(map[id.ID]bool, len(ids))
	for _, l := range ids {
		out[l] = true
	}
	return out, nil
}

var (
	_ courses.Repository           = (*CourseRepo)(nil)
	_ courses.PricingRepository    = (*PricingRepo)(nil)
	_ courses.ModuleRepository     = (*ModuleRepo)(nil)
	_ content.Repository           = (*LessonRepo)(nil)
	_ content.CompletionRepository = (*CompletionRepo)(nil)
)

package reviews

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// Service accepts, edits and moderates course reviews.
type Service struct {
	*domain.Service[*Review]
	repo        Repository
	courses     CourseLookup
	enrollments EnrollmentLookup
}

// NewService creates the review service.
func NewService(repo Repository, courses CourseLookup, enrollments EnrollmentLookup, txm tx.Manager, clock func() time.Time) *Service {
	return &Service{
		Service: domain.NewService(domain.ServiceConfig[*Review]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "review",
			Clock:      clock,
		}),
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
	}
}

// SubmitInput is the author's review.
type SubmitInput struct {
	CourseID  id.ID
	Rating    int
	Title     string
	Body      string
	Anonymous bool
}

// Submit stores the caller's review of a course they are enrolled in. Each
// student keeps at most one pending, approved or hidden review per course.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Review, error) {
	author := domain.ActorID(ctx)
	if author == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	course, err := s.courses.GetByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	enr, err := s.enrollments.CurrentEnrollment(ctx, *author, course.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "only enrolled students can review a course").
				WithDetail("courseId", course.ID)
		}
		return nil, err
	}

	r := NewReview(course.ID, *author, in.Rating, in.Title, in.Body)
	r.Anonymous = in.Anonymous
	r.EnrollmentID = &enr.ID
	entity.InheritBranch(r, course)

	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindCounted(ctx, course.ID, *author)
		switch {
		case err == nil:
			return apperror.NewDuplicate("review", "courseId", course.ID.String()).
				WithDetail("reviewId", existing.ID)
		case !apperror.IsNotFound(err):
			return err
		}
		return s.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "review submitted", "review_id", r.ID, "course_id", course.ID, "rating", r.Rating)
	return r, nil
}

// EditInput replaces the author's text.
type EditInput struct {
	Rating int
	Title  string
	Body   string
}

// Edit lets the author change their review.
func (s *Service) Edit(ctx context.Context, reviewID id.ID, in EditInput) (*Review, error) {
	r, err := s.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	author := domain.ActorID(ctx)
	if author == nil || *author != r.UserID {
		return nil, apperror.NewForbidden("only the author can edit a review")
	}
	if err := r.Edit(in.Rating, in.Title, in.Body, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Moderate approves, rejects or hides a review.
func (s *Service) Moderate(ctx context.Context, reviewID id.ID, to Status, note string) (*Review, error) {
	r, err := s.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := r.Moderate(to, domain.ActorID(ctx), note, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, r); err != nil {
		return nil, err
	}
	logger.Info(ctx, "review moderated", "review_id", r.ID, "status", r.Status)
	return r, nil
}

// Published returns the approved reviews of a course in the public form.
func (s *Service) Published(ctx context.Context, courseID id.ID, f domain.ListFilter) (domain.ListResult[*PublicReview], error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return domain.ListResult[*PublicReview]{}, err
	}
	f.Where("course_id", courseID)
	f.Where("status", StatusApproved)
	page, err := s.List(ctx, f)
	if err != nil {
		return domain.ListResult[*PublicReview]{}, err
	}
	out := domain.ListResult[*PublicReview]{
		Items:      make([]*PublicReview, 0, len(page.Items)),
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	for _, r := range page.Items {
		out.Items = append(out.Items, r.Public())
	}
	return out, nil
}

// Summary returns the rating breakdown of a course.
func (s *Service) Summary(ctx context.Context, courseID id.ID) (*Summary, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	counts, err := s.repo.RatingCounts(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return NewSummary(courseID, counts), nil
}

package assessments

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

// QuizService manages quizzes on behalf of instructors.
type QuizService struct {
	*domain.Service[*Quiz]
	courses CourseLookup
}

// NewQuizService creates the quiz service.
func NewQuizService(repo QuizRepository, courses CourseLookup, txm tx.Manager, clock func() time.Time) *QuizService {
	return &QuizService{
		Service: domain.NewService(domain.ServiceConfig[*Quiz]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "quiz",
			Clock:      clock,
		}),
		courses: courses,
	}
}

// Create adds a quiz to a course the caller can see. The quiz takes the
// course branch.
func (s *QuizService) Create(ctx context.Context, q *Quiz) error {
	course, err := s.courses.GetByID(ctx, q.CourseID)
	if err != nil {
		return err
	}
	entity.InheritBranch(q, course)
	return s.Service.Create(ctx, q)
}

// Publish opens a quiz to enrolled students.
func (s *QuizService) Publish(ctx context.Context, quizID id.ID) (*Quiz, error) {
	q, err := s.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := q.Publish(s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByCourse returns the quizzes of a course.
func (s *QuizService) ListByCourse(ctx context.Context, courseID id.ID, f domain.ListFilter) (domain.ListResult[*Quiz], error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return domain.ListResult[*Quiz]{}, err
	}
	f.Where("course_id", courseID)
	return s.List(ctx, f)
}

// AttemptService runs quiz sittings for students.
type AttemptService struct {
	*domain.Service[*Attempt]
	repo        AttemptRepository
	quizzes     *QuizService
	enrollments EnrollmentLookup
}

// NewAttemptService creates the attempt service.
func NewAttemptService(repo AttemptRepository, quizzes *QuizService, enrollments EnrollmentLookup, txm tx.Manager, clock func() time.Time) *AttemptService {
	return &AttemptService{
		Service: domain.NewService(domain.ServiceConfig[*Attempt]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "quiz attempt",
			Clock:      clock,
		}),
		repo:        repo,
		quizzes:     quizzes,
		enrollments: enrollments,
	}
}

// Paper returns the quiz without its answer key to a student who may sit it.
func (s *AttemptService) Paper(ctx context.Context, quizID id.ID) (*Quiz, error) {
	q, _, err := s.admit(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return q.Paper(), nil
}

// admit loads a quiz and checks the window and the caller's enrollment.
func (s *AttemptService) admit(ctx context.Context, quizID id.ID) (*Quiz, id.ID, error) {
	student := domain.ActorID(ctx)
	if student == nil {
		return nil, id.ID{}, apperror.NewUnauthorized("authentication required")
	}
	q, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, id.ID{}, err
	}
	if reason := q.Availability(s.Now()); reason != ReasonOpen {
		return nil, id.ID{}, apperror.NewBusinessRule(apperror.CodeBusinessRule, "quiz is not open").
			WithDetail("reason", reason).
			WithDetail("availableFrom", q.AvailableFrom).
			WithDetail("availableUntil", q.AvailableUntil)
	}
	enr, err := s.enrollments.CurrentEnrollment(ctx, *student, q.CourseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, id.ID{}, apperror.NewBusinessRule(apperror.CodeBusinessRule, "only enrolled students can take this quiz")
		}
		return nil, id.ID{}, err
	}
	if !enr.AccessActive {
		return nil, id.ID{}, apperror.NewBusinessRule(apperror.CodeBusinessRule, "course access is not active")
	}
	return q, enr.ID, nil
}

// Start begins an attempt, or resumes the caller's unfinished one.
func (s *AttemptService) Start(ctx context.Context, quizID id.ID) (*Attempt, error) {
	q, enrollmentID, err := s.admit(ctx, quizID)
	if err != nil {
		return nil, err
	}
	student := *domain.ActorID(ctx)

	var a *Attempt
	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.Now()
		started, err := s.repo.FindStarted(ctx, q.ID, student)
		switch {
		case err == nil:
			if !started.ExpireIfNeeded(now) {
				a = started
				return nil
			}
			if err := s.Update(ctx, started); err != nil {
				return err
			}
		case !apperror.IsNotFound(err):
			return err
		}

		used, err := s.repo.CountByStudent(ctx, q.ID, student)
		if err != nil {
			return err
		}
		if used >= q.AttemptsAllowed {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "no attempts left").
				WithDetail("attemptsAllowed", q.AttemptsAllowed)
		}
		a = NewAttempt(q, student, enrollmentID, used+1, now)
		return s.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Submit grades the caller's attempt. A late submission expires the attempt
// instead and is rejected.
func (s *AttemptService) Submit(ctx context.Context, attemptID id.ID, answers Answers) (*Attempt, error) {
	a, err := s.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	student := domain.ActorID(ctx)
	if student == nil || *student != a.UserID {
		return nil, apperror.NewNotFound("quiz attempt", attemptID.String())
	}
	q, err := s.quizzes.GetByID(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if a.ExpireIfNeeded(now) {
		if err := s.Update(ctx, a); err != nil {
			return nil, err
		}
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "time limit exceeded").
			WithDetail("deadlineAt", a.DeadlineAt)
	}
	if err := a.Submit(q, answers, now); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, a); err != nil {
		return nil, err
	}
	logger.Info(ctx, "quiz attempt graded", "attempt_id", a.ID, "quiz_id", q.ID, "percent", a.Percent.String(), "passed", a.Passed)
	return a, nil
}

// Mine lists the caller's attempts of a quiz.
func (s *AttemptService) Mine(ctx context.Context, quizID id.ID, f domain.ListFilter) (domain.ListResult[*Attempt], error) {
	student := domain.ActorID(ctx)
	if student == nil {
		return domain.ListResult[*Attempt]{}, apperror.NewUnauthorized("authentication required")
	}
	f.Where("quiz_id", quizID)
	f.Where("user_id", *student)
	return s.List(ctx, f)
}

package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
	"lms/internal/domain/domaintest"
)

var reviewedAt = time.Date(2026, 7, 2, 18, 0, 0, 0, time.UTC)

type memReviews struct {
	*domaintest.MemRepo[*Review]
}

func (m memReviews) FindCounted(ctx context.Context, courseID, userID id.ID) (*Review, error) {
	return m.FindOne(func(r *Review) bool {
		return r.CourseID == courseID && r.UserID == userID && r.Active && r.Status.Counted()
	})
}

func (m memReviews) RatingCounts(ctx context.Context, courseID id.ID) (map[int]int64, error) {
	out := map[int]int64{}
	for _, r := range m.Find(func(r *Review) bool { return r.CourseID == courseID && r.Active && r.Status == StatusApproved }) {
		out[r.Rating]++
	}
	return out, nil
}

type fakeCourses map[id.ID]*courses.Course

func (f fakeCourses) GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error) {
	c, ok := f[courseID]
	if !ok {
		return nil, apperror.NewNotFound("course", courseID.String())
	}
	return c, security.AuthorizeObject(security.GetScope(ctx), c)
}

type fakeEnrollments map[id.ID]*content.EnrollmentRef

func (f fakeEnrollments) CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*content.EnrollmentRef, error) {
	e, ok := f[userID]
	if !ok {
		return nil, apperror.NewNotFound("enrollment", userID.String())
	}
	return e, nil
}

type fixture struct {
	svc         *Service
	course      *courses.Course
	branch      id.ID
	enrollments fakeEnrollments
}

func newFixture() *fixture {
	f := &fixture{branch: id.New(), enrollments: fakeEnrollments{}}
	f.course = courses.NewCourse("Go in practice", "")
	f.course.BranchID = id.Ptr(f.branch)
	repo := memReviews{domaintest.NewMemRepo("reviews", func(r *Review) *Review { v := *r; return &v })}
	f.svc = NewService(repo, fakeCourses{f.course.ID: f.course}, f.enrollments, domaintest.InlineTx{},
		func() time.Time { return reviewedAt })
	return f
}

func (f *fixture) as(user id.ID) context.Context {
	return security.WithScope(context.Background(),
		security.NewBranchScope(user.String(), id.Ptr(id.New()), id.Ptr(f.branch), false))
}

func (f *fixture) student() id.ID {
	u := id.New()
	f.enrollments[u] = &content.EnrollmentRef{ID: id.New(), EnrolledAt: reviewedAt.Add(-48 * time.Hour), AccessActive: true}
	return u
}

func TestService_SubmitOncePerCourse(t *testing.T) {
	f := newFixture()
	student := f.student()

	r, err := f.svc.Submit(f.as(student), SubmitInput{CourseID: f.course.ID, Rating: 5, Title: "Great", Anonymous: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, f.branch, *r.BranchID)
	assert.Equal(t, f.enrollments[student].ID, *r.EnrollmentID)

	_, err = f.svc.Submit(f.as(student), SubmitInput{CourseID: f.course.ID, Rating: 4})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = f.svc.Submit(f.as(id.New()), SubmitInput{CourseID: f.course.ID, Rating: 4})
	assert.Equal(t, 422, apperror.GetHTTPStatus(err), "strangers cannot review")

	_, err = f.svc.Submit(f.as(f.student()), SubmitInput{CourseID: f.course.ID, Rating: 6})
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))
}

func TestService_RejectedReviewFreesTheSlot(t *testing.T) {
	f := newFixture()
	student, moderator := f.student(), id.New()

	r, err := f.svc.Submit(f.as(student), SubmitInput{CourseID: f.course.ID, Rating: 1, Body: "spam link"})
	require.NoError(t, err)

	_, err = f.svc.Moderate(f.as(moderator), r.ID, StatusRejected, "")
	assert.Equal(t, 400, apperror.GetHTTPStatus(err), "a reason is required")

	rejected, err := f.svc.Moderate(f.as(moderator), r.ID, StatusRejected, "contains a link")
	require.NoError(t, err)
	assert.Equal(t, moderator, *rejected.ModeratedBy)

	_, err = f.svc.Edit(f.as(student), r.ID, EditInput{Rating: 2})
	assert.Equal(t, 422, apperror.GetHTTPStatus(err))

	_, err = f.svc.Submit(f.as(student), SubmitInput{CourseID: f.course.ID, Rating: 3})
	assert.NoError(t, err)
}

func TestService_ModerationAndSummary(t *testing.T) {
	f := newFixture()
	moderator := f.as(id.New())

	var ids []id.ID
	for _, rating := range []int{5, 4, 4} {
		r, err := f.svc.Submit(f.as(f.student()), SubmitInput{CourseID: f.course.ID, Rating: rating})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	anon, err := f.svc.Submit(f.as(f.student()), SubmitInput{CourseID: f.course.ID, Rating: 1, Anonymous: true})
	require.NoError(t, err)

	s, err := f.svc.Summary(moderator, f.course.ID)
	require.NoError(t, err)
	assert.Zero(t, s.Count, "pending reviews do not count")

	for _, reviewID := range append(ids, anon.ID) {
		_, err := f.svc.Moderate(moderator, reviewID, StatusApproved, "")
		require.NoError(t, err)
	}
	s, err = f.svc.Summary(moderator, f.course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, s.Count)
	assert.Equal(t, "3.5", s.Average.String())
	assert.EqualValues(t, 2, s.Ratings[4])
	assert.EqualValues(t, 0, s.Ratings[2])

	_, err = f.svc.Moderate(moderator, ids[0], StatusHidden, "off topic")
	require.NoError(t, err)
	_, err = f.svc.Moderate(moderator, ids[0], StatusRejected, "too late")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	page, err := f.svc.Published(moderator, f.course.ID, domain.DefaultListFilter())
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalCount)
	for _, p := range page.Items {
		if p.ID == anon.ID {
			assert.Nil(t, p.UserID, "anonymous authors stay hidden")
		} else {
			assert.NotNil(t, p.UserID)
		}
	}
}

func TestService_EditSendsBackToModeration(t *testing.T) {
	f := newFixture()
	student := f.student()
	r, err := f.svc.Submit(f.as(student), SubmitInput{CourseID: f.course.ID, Rating: 3})
	require.NoError(t, err)
	_, err = f.svc.Moderate(f.as(id.New()), r.ID, StatusApproved, "")
	require.NoError(t, err)

	_, err = f.svc.Edit(f.as(id.New()), r.ID, EditInput{Rating: 1})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	edited, err := f.svc.Edit(f.as(student), r.ID, EditInput{Rating: 4, Body: "grew on me"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, edited.Status)
	assert.Equal(t, reviewedAt, *edited.EditedAt)
	assert.Equal(t, 4, edited.Rating)
}

func TestNewSummary(t *testing.T) {
	s := NewSummary(id.New(), nil)
	assert.Zero(t, s.Count)
	assert.True(t, s.Average.IsZero())
	assert.Len(t, s.Ratings, 5)

	s = NewSummary(id.New(), map[int]int64{5: 2, 4: 1})
	assert.Equal(t, "4.67", s.Average.String())
}

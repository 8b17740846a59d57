package content

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/courses"
	"lms/internal/domain/domaintest"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeCourses map[id.ID]*courses.Course

func (f fakeCourses) GetByID(ctx context.Context, courseID id.ID) (*courses.Course, error) {
	c, ok := f[courseID]
	if !ok {
		return nil, apperror.NewNotFound("course", courseID.String())
	}
	if err := security.AuthorizeObject(security.GetScope(ctx), c); err != nil {
		return nil, err
	}
	return c, nil
}

type fakeEnrollments map[id.ID]*EnrollmentRef // by user

func (f fakeEnrollments) CurrentEnrollment(ctx context.Context, userID, courseID id.ID) (*EnrollmentRef, error) {
	e, ok := f[userID]
	if !ok {
		return nil, apperror.NewNotFound("enrollment", userID.String())
	}
	return e, nil
}

type memCompletions struct {
	mu   sync.Mutex
	rows map[id.ID]map[id.ID]bool
}

func (m *memCompletions) Record(ctx context.Context, c *Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[c.EnrollmentID] == nil {
		m.rows[c.EnrollmentID] = map[id.ID]bool{}
	}
	m.rows[c.EnrollmentID][c.LessonID] = true
	return nil
}

func (m *memCompletions) CompletedLessonIDs(ctx context.Context, enrollmentID id.ID) (map[id.ID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[id.ID]bool{}
	for k, v := range m.rows[enrollmentID] {
		out[k] = v
	}
	return out, nil
}

type fixture struct {
	svc         *Service
	course      *courses.Course
	enrollments fakeEnrollments
	ctx         context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	branch := id.New()
	course := courses.NewCourse("Go", "")
	course.BranchID = &branch
	enr := fakeEnrollments{}
	repo := domaintest.NewMemRepo("lessons", func(l *Lesson) *Lesson { v := *l; return &v })
	svc := NewService(repo, &memCompletions{rows: map[id.ID]map[id.ID]bool{}}, fakeCourses{course.ID: course}, enr,
		domaintest.InlineTx{}, func() time.Time { return testNow })
	ctx := security.WithScope(context.Background(),
		security.NewBranchScope(id.New().String(), id.Ptr(id.New()), id.Ptr(branch), false))
	return &fixture{svc: svc, course: course, enrollments: enr, ctx: ctx}
}

func (f *fixture) lesson(t *testing.T, title string, mutate func(*Lesson)) *Lesson {
	t.Helper()
	l := NewLesson(f.course.ID, title)
	l.Status = StatusPublished
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, f.svc.Create(f.ctx, l))
	return l
}

func TestService_CreateInheritsCourseBranch(t *testing.T) {
	f := newFixture(t)
	l := f.lesson(t, "Basics", nil)
	assert.Equal(t, *f.course.BranchID, *l.BranchID)

	other := NewLesson(id.New(), "Nope")
	err := f.svc.Create(f.ctx, other)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_PrerequisiteGating(t *testing.T) {
	f := newFixture(t)
	student := id.New()
	f.enrollments[student] = &EnrollmentRef{ID: id.New(), EnrolledAt: testNow.Add(-24 * time.Hour), AccessActive: true}

	first := f.lesson(t, "Basics", nil)
	second := f.lesson(t, "Channels", func(l *Lesson) {
		l.ReleaseType = ReleaseAfterLessonComplete
		l.PrerequisiteLessonID = &first.ID
	})

	info, err := f.svc.ReleaseStatus(f.ctx, second.ID, student)
	require.NoError(t, err)
	assert.False(t, info.Released)
	assert.Equal(t, ReasonPrerequisite, info.Reason)

	_, err = f.svc.Complete(f.ctx, second.ID, student)
	assert.True(t, apperror.HasCode(err, apperror.CodeLessonLocked))

	_, err = f.svc.Complete(f.ctx, first.ID, student)
	require.NoError(t, err)

	info, err = f.svc.ReleaseStatus(f.ctx, second.ID, student)
	require.NoError(t, err)
	assert.True(t, info.Released)
	assert.Equal(t, ReasonReleased, info.Reason)
}

func TestService_ReleaseStatusReasons(t *testing.T) {
	f := newFixture(t)
	student, stranger, lapsed := id.New(), id.New(), id.New()
	f.enrollments[student] = &EnrollmentRef{ID: id.New(), EnrolledAt: testNow.Add(-24 * time.Hour), AccessActive: true}
	f.enrollments[lapsed] = &EnrollmentRef{ID: id.New(), EnrolledAt: testNow.Add(-24 * time.Hour), AccessActive: false}

	drip := f.lesson(t, "Week two", func(l *Lesson) {
		l.ReleaseType = ReleaseAfterEnrollDays
		l.ReleaseAfterDays = intPtr(7)
	})
	preview := f.lesson(t, "Welcome", func(l *Lesson) { l.IsPreview = true })
	draft := f.lesson(t, "Unfinished", func(l *Lesson) { l.Status = StatusDraft })

	info, err := f.svc.ReleaseStatus(f.ctx, drip.ID, student)
	require.NoError(t, err)
	assert.Equal(t, ReasonScheduled, info.Reason)
	assert.Equal(t, testNow.Add(6*24*time.Hour), *info.AvailableAt)

	info, _ = f.svc.ReleaseStatus(f.ctx, drip.ID, stranger)
	assert.Equal(t, ReasonNotEnrolled, info.Reason)

	info, _ = f.svc.ReleaseStatus(f.ctx, preview.ID, stranger)
	assert.True(t, info.Released)
	assert.Equal(t, ReasonPreview, info.Reason)

	info, _ = f.svc.ReleaseStatus(f.ctx, preview.ID, lapsed)
	assert.Equal(t, ReasonAccessInactive, info.Reason)

	info, _ = f.svc.ReleaseStatus(f.ctx, draft.ID, student)
	assert.Equal(t, ReasonNotPublished, info.Reason)
}

func TestService_PrerequisiteMustShareCourse(t *testing.T) {
	f := newFixture(t)
	foreign := id.New()
	l := NewLesson(f.course.ID, "Bad")
	l.ReleaseType = ReleaseAfterLessonComplete
	l.PrerequisiteLessonID = &foreign
	err := f.svc.Create(f.ctx, l)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Progress(t *testing.T) {
	f := newFixture(t)
	student := id.New()
	enrollmentID := id.New()
	f.enrollments[student] = &EnrollmentRef{ID: enrollmentID, EnrolledAt: testNow.Add(-24 * time.Hour), AccessActive: true}

	first := f.lesson(t, "Basics", nil)
	second := f.lesson(t, "Channels", nil)
	third := f.lesson(t, "Generics", nil)
	f.lesson(t, "Unfinished", func(l *Lesson) { l.Status = StatusDraft })

	p, err := f.svc.Progress(f.ctx, f.course.ID, student)
	require.NoError(t, err)
	assert.Equal(t, ProgressNotStarted, p.Status)
	assert.Equal(t, 3, p.TotalLessons, "drafts do not count")
	assert.True(t, p.Percent.IsZero())

	_, err = f.svc.Complete(f.ctx, first.ID, student)
	require.NoError(t, err)
	p, err = f.svc.Progress(f.ctx, f.course.ID, student)
	require.NoError(t, err)
	assert.Equal(t, ProgressInProgress, p.Status)
	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, "33.33", p.Percent.StringFixed(2))
	assert.Equal(t, enrollmentID, p.EnrollmentID)

	for _, l := range []*Lesson{second, third} {
		_, err = f.svc.Complete(f.ctx, l.ID, student)
		require.NoError(t, err)
	}
	p, err = f.svc.Progress(f.ctx, f.course.ID, student)
	require.NoError(t, err)
	assert.Equal(t, ProgressCompleted, p.Status)
	assert.Equal(t, "100", p.Percent.String())

	_, err = f.svc.Progress(f.ctx, f.course.ID, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestNewProgress_IgnoresUnpublishedCompletions(t *testing.T) {
	a, b := id.New(), id.New()
	status, done, percent := NewProgress([]id.ID{a, b}, map[id.ID]bool{b: true, id.New(): true})
	assert.Equal(t, ProgressInProgress, status)
	assert.Equal(t, 1, done)
	assert.Equal(t, "50", percent.String())

	status, _, _ = NewProgress(nil, map[id.ID]bool{a: true})
	assert.Equal(t, ProgressNotStarted, status)
}

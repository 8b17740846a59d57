package enrollments

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/core/tenant"
	"lms/internal/domain/courses"
	"lms/internal/domain/domaintest"
)

var testNow = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

type memEnrollments struct {
	*domaintest.MemRepo[*Enrollment]
}

func (m memEnrollments) FindCurrent(ctx context.Context, userID, courseID id.ID) (*Enrollment, error) {
	rows := m.Find(func(e *Enrollment) bool {
		return e.UserID == userID && e.CourseID == courseID && !e.Status.Final()
	})
	if len(rows) == 0 {
		return nil, apperror.NewNotFound("enrollment", courseID.String())
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EnrolledAt.After(rows[j].EnrolledAt) })
	return rows[0], nil
}

func (m memEnrollments) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*Enrollment, error) {
	rows := m.Find(func(e *Enrollment) bool {
		return !e.Status.Final() && e.Status != StatusExpired && e.AccessEndsAt != nil && now.After(*e.AccessEndsAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memInvites struct {
	*domaintest.MemRepo[*AccessInvite]
}

func (m memInvites) FindByToken(ctx context.Context, token string) (*AccessInvite, error) {
	return m.FindOne(func(i *AccessInvite) bool { return i.Token == token })
}

func (m memInvites) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, inv := range m.Find(func(i *AccessInvite) bool { return i.Status == InvitePending && i.IsExpired(now) }) {
		inv.ExpireIfNeeded(now)
		if err := m.Update(ctx, inv); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

type memEvents struct {
	mu   sync.Mutex
	rows []*Event
}

func (m *memEvents) Append(ctx context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ev)
	return nil
}

func (m *memEvents) ListByEnrollment(ctx context.Context, enrollmentID id.ID) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, ev := range m.rows {
		if ev.EnrollmentID == enrollmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

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

type fakeBranches map[id.ID]id.ID // branch -> organization

func (f fakeBranches) Branch(ctx context.Context, branchID string) (*tenant.BranchInfo, error) {
	b := id.MustParse(branchID)
	org, ok := f[b]
	if !ok {
		return nil, tenant.ErrBranchNotFound
	}
	return &tenant.BranchInfo{ID: b, OrganizationID: org, Active: true, OrganizationActive: true}, nil
}

type fixture struct {
	svc     *Service
	invites *InviteService
	repo    memEnrollments
	events  *memEvents
	gen     *numerator.MemoryGenerator
	course  *courses.Course
	draft   *courses.Course
	org     id.ID
	branch  id.ID
	admin   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{org: id.New(), branch: id.New(), events: &memEvents{}}

	f.course = courses.NewCourse("Go in practice", "")
	f.course.BranchID = id.Ptr(f.branch)
	f.course.Status = courses.StatusPublished
	f.draft = courses.NewCourse("Unfinished", "")
	f.draft.BranchID = id.Ptr(f.branch)
	lookup := fakeCourses{f.course.ID: f.course, f.draft.ID: f.draft}

	f.gen = numerator.NewMemoryGenerator()
	_, err := f.gen.Provision(context.Background(),
		numerator.Scope{Type: numerator.TypeEnrollment, OrganizationID: &f.org},
		numerator.DefaultConfig("ENR-"))
	require.NoError(t, err)

	f.repo = memEnrollments{domaintest.NewMemRepo("enrollments", func(e *Enrollment) *Enrollment { v := *e; return &v })}
	clock := func() time.Time { return testNow }
	f.svc = NewService(f.repo, f.events, lookup, f.gen, domaintest.InlineTx{}, clock)

	invites := memInvites{domaintest.NewMemRepo("course_access_invites", func(i *AccessInvite) *AccessInvite { v := *i; return &v })}
	f.invites = NewInviteService(invites, lookup, fakeBranches{f.branch: f.org}, f.svc, domaintest.InlineTx{}, clock)

	f.admin = f.as(id.New(), &f.branch)
	return f
}

func (f *fixture) as(user id.ID, branch *id.ID) context.Context {
	var org *id.ID
	if branch != nil {
		org = &f.org
	}
	return security.WithScope(context.Background(), security.NewBranchScope(user.String(), org, branch, false))
}

func TestService_EnrollNumbersAndScopes(t *testing.T) {
	f := newFixture(t)
	alice, bob := id.New(), id.New()

	e, err := f.svc.Enroll(f.admin, EnrollInput{UserID: alice, CourseID: f.course.ID, Source: SourceAdmin})
	require.NoError(t, err)
	assert.Equal(t, "ENR-000001", e.EnrollmentNo)
	assert.Equal(t, f.branch, *e.BranchID)
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, testNow, e.EnrolledAt)

	_, err = f.svc.Enroll(f.admin, EnrollInput{UserID: alice, CourseID: f.course.ID, Source: SourceAdmin})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	e2, err := f.svc.Enroll(f.admin, EnrollInput{UserID: bob, CourseID: f.course.ID, Source: SourceAdmin})
	require.NoError(t, err)
	assert.Equal(t, "ENR-000002", e2.EnrollmentNo)

	events, err := f.svc.Events(f.admin, e.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].EventType)

	// another branch cannot see the course
	other := f.as(id.New(), id.Ptr(id.New()))
	_, err = f.svc.Enroll(other, EnrollInput{UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin})
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
}

func TestService_EnrollRules(t *testing.T) {
	f := newFixture(t)

	t.Run("draft course", func(t *testing.T) {
		_, err := f.svc.Enroll(f.admin, EnrollInput{UserID: id.New(), CourseID: f.draft.ID, Source: SourcePurchase})
		assert.Equal(t, 422, apperror.GetHTTPStatus(err))

		_, err = f.svc.Enroll(f.admin, EnrollInput{UserID: id.New(), CourseID: f.draft.ID, Source: SourceAdmin})
		assert.NoError(t, err, "admins may enroll into drafts")
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := f.svc.Enroll(f.admin, EnrollInput{UserID: id.New(), CourseID: f.draft.ID, Source: "gift"})
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})

	t.Run("relative window", func(t *testing.T) {
		e, err := f.svc.Enroll(f.admin, EnrollInput{
			UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin,
			AccessType: AccessRelative, AccessDays: 30,
		})
		require.NoError(t, err)
		require.NotNil(t, e.AccessEndsAt)
		assert.Equal(t, testNow.Add(30*24*time.Hour), *e.AccessEndsAt)

		_, err = f.svc.Enroll(f.admin, EnrollInput{
			UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin, AccessType: AccessRelative,
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})

	t.Run("self enrollment", func(t *testing.T) {
		student := id.New()
		ctx := f.as(student, &f.branch)

		_, err := f.svc.Enroll(ctx, EnrollInput{UserID: id.New(), CourseID: f.course.ID, Source: SourceSelf})
		assert.True(t, apperror.HasCode(err, apperror.CodeForbidden), "only for the caller")

		flags := security.NewInMemoryFlags()
		f.svc.SetFlags(flags)
		_, err = f.svc.Enroll(ctx, EnrollInput{UserID: student, CourseID: f.course.ID, Source: SourceSelf})
		assert.True(t, apperror.HasCode(err, apperror.CodeForbidden), "flag off")

		flags.Set(security.FlagSelfEnrollment, security.FlagScopeBranch, f.branch.String(), true)
		e, err := f.svc.Enroll(ctx, EnrollInput{UserID: student, CourseID: f.course.ID, Source: SourceSelf})
		require.NoError(t, err)
		assert.Equal(t, SourceSelf, e.Source)
		f.svc.SetFlags(nil)
	})

	t.Run("missing sequence", func(t *testing.T) {
		other := newFixture(t)
		other.gen = numerator.NewMemoryGenerator()
		other.svc.numbers = other.gen
		_, err := other.svc.Enroll(other.admin, EnrollInput{UserID: id.New(), CourseID: other.course.ID, Source: SourceAdmin})
		assert.True(t, apperror.HasCode(err, apperror.CodeSequenceNotFound))
		assert.Zero(t, other.repo.Len())
	})
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	e, err := f.svc.Enroll(f.admin, EnrollInput{UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin})
	require.NoError(t, err)

	e, err = f.svc.Suspend(f.admin, e.ID, "payment overdue")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, e.Status)

	_, err = f.svc.Suspend(f.admin, e.ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	e, err = f.svc.Resume(f.admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, e.Status)

	e, err = f.svc.Cancel(f.admin, e.ID, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, e.Status)
	require.NotNil(t, e.CancelledBy)

	events, err := f.svc.Events(f.admin, e.ID)
	require.NoError(t, err)
	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []EventType{EventCreated, EventSuspended, EventResumed, EventCancelled}, types)
	assert.Equal(t, StatusSuspended, events[2].Data["from"])

	// a cancelled enrollment does not block a new one
	_, err = f.svc.Enroll(f.admin, EnrollInput{UserID: e.UserID, CourseID: f.course.ID, Source: SourceAdmin})
	assert.NoError(t, err)
}

func TestService_ExpiryAndAccess(t *testing.T) {
	f := newFixture(t)
	past := testNow.Add(-48 * time.Hour)
	yesterday := testNow.Add(-24 * time.Hour)

	e, err := f.svc.Enroll(f.admin, EnrollInput{
		UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin,
		AccessType: AccessFixed, AccessStartsAt: &past, AccessEndsAt: &yesterday,
	})
	require.NoError(t, err)

	ref, err := f.svc.CurrentEnrollment(context.Background(), e.UserID, f.course.ID)
	require.NoError(t, err)
	assert.False(t, ref.AccessActive)

	info, err := f.svc.Access(f.admin, e.ID)
	require.NoError(t, err)
	assert.False(t, info.Active)
	assert.Equal(t, StatusExpired, info.Status)

	stored, err := f.repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status, "access check persists the expiry")

	_, changed, err := f.svc.Expire(f.admin, e.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestService_ExpireDue(t *testing.T) {
	f := newFixture(t)
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)

	for _, end := range []*time.Time{&yesterday, &yesterday, &tomorrow, nil} {
		typ := AccessFixed
		if end == nil {
			typ = AccessLifetime
		}
		_, err := f.svc.Enroll(f.admin, EnrollInput{
			UserID: id.New(), CourseID: f.course.ID, Source: SourceAdmin, AccessType: typ, AccessEndsAt: end,
		})
		require.NoError(t, err)
	}

	ctx := security.WithScope(context.Background(), security.SystemScope())
	n, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "expiry is idempotent")
}

func TestInviteService_Accept(t *testing.T) {
	f := newFixture(t)

	inv, err := f.invites.Invite(f.admin, f.course.ID, "student@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, f.branch, *inv.BranchID)

	// the student has no branch yet; the token carries it
	student := id.New()
	ctx := f.as(student, nil)
	e, err := f.invites.Accept(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, SourceInvite, e.Source)
	assert.Equal(t, student, e.UserID)
	assert.Equal(t, f.branch, *e.BranchID)
	assert.Equal(t, "ENR-000001", e.EnrollmentNo)

	_, err = f.invites.Accept(ctx, inv.Token)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	_, err = f.invites.Accept(ctx, "no-such-token")
	assert.True(t, apperror.IsNotFound(err))
}

func TestInviteService_AcceptExpired(t *testing.T) {
	f := newFixture(t)
	inv, err := f.invites.Invite(f.admin, f.course.ID, "late@example.com", time.Hour)
	require.NoError(t, err)

	later := NewInviteService(f.invites.repo, nil, nil, f.svc, domaintest.InlineTx{},
		func() time.Time { return inv.ExpiresAt })

	_, err = later.Accept(f.as(id.New(), nil), inv.Token)
	assert.True(t, apperror.HasCode(err, apperror.CodeInviteExpired))

	stored, err := f.invites.repo.FindByToken(context.Background(), inv.Token)
	require.NoError(t, err)
	assert.Equal(t, InviteExpired, stored.Status)
	assert.Zero(t, f.repo.Len())
}

func TestInviteService_ExpireDue(t *testing.T) {
	f := newFixture(t)
	_, err := f.invites.Invite(f.admin, f.course.ID, "a@example.com", time.Hour)
	require.NoError(t, err)
	_, err = f.invites.Invite(f.admin, f.course.ID, "b@example.com", 30*24*time.Hour)
	require.NoError(t, err)

	later := NewInviteService(f.invites.repo, nil, nil, f.svc, domaintest.InlineTx{},
		func() time.Time { return testNow.Add(2 * time.Hour) })
	n, err := later.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

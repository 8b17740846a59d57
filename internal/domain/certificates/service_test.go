package certificates

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/domain/courses"
	"lms/internal/domain/domaintest"
	"lms/internal/domain/enrollments"
)

var issuedAt = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

type memCertificates struct {
	*domaintest.MemRepo[*Certificate]
}

func (m memCertificates) FindByVerificationCode(ctx context.Context, code string) (*Certificate, error) {
	return m.FindOne(func(c *Certificate) bool { return c.VerificationCode == code })
}

func (m memCertificates) FindValid(ctx context.Context, enrollmentID id.ID) (*Certificate, error) {
	return m.FindOne(func(c *Certificate) bool { return c.EnrollmentID == enrollmentID && c.IsValid() })
}

func (m memCertificates) HasRevoked(ctx context.Context, enrollmentID id.ID) (bool, error) {
	rows := m.Find(func(c *Certificate) bool { return c.EnrollmentID == enrollmentID && c.Status == StatusRevoked })
	return len(rows) > 0, nil
}

type fakeEnrollments map[id.ID]*enrollments.Enrollment

func (f fakeEnrollments) GetByID(ctx context.Context, key id.ID) (*enrollments.Enrollment, error) {
	e, ok := f[key]
	if !ok {
		return nil, apperror.NewNotFound("enrollment", key.String())
	}
	if err := security.AuthorizeObject(security.GetScope(ctx), e); err != nil {
		return nil, err
	}
	return e, nil
}

type fakeCourses map[id.ID]*courses.Course

func (f fakeCourses) GetByID(ctx context.Context, key id.ID) (*courses.Course, error) {
	c, ok := f[key]
	if !ok {
		return nil, apperror.NewNotFound("course", key.String())
	}
	return c, nil
}

type fakeStudents map[id.ID]string

func (f fakeStudents) DisplayName(ctx context.Context, userID id.ID) (string, error) {
	return f[userID], nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://files.test/%s?ttl=%s", key, ttl), nil
}

type fixture struct {
	svc       *Service
	repo      memCertificates
	store     *memStore
	flags     *security.InMemoryFlags
	completed *enrollments.Enrollment
	active    *enrollments.Enrollment
	branch    id.ID
	org       id.ID
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{org: id.New(), branch: id.New(), store: &memStore{objects: map[string][]byte{}}, flags: security.NewInMemoryFlags()}

	course := courses.NewCourse("Go in practice", "")
	course.BranchID = id.Ptr(f.branch)

	student := id.New()
	f.completed = enrollments.NewEnrollment(student, course.ID, enrollments.SourceAdmin, issuedAt.Add(-72*time.Hour))
	f.completed.BranchID = id.Ptr(f.branch)
	require.NoError(t, f.completed.Complete(issuedAt))
	f.active = enrollments.NewEnrollment(id.New(), course.ID, enrollments.SourceAdmin, issuedAt)
	f.active.BranchID = id.Ptr(f.branch)

	gen := numerator.NewMemoryGenerator()
	_, err := gen.Provision(context.Background(),
		numerator.Scope{Type: numerator.TypeCertificate, OrganizationID: &f.org},
		numerator.DefaultConfig("CRT-"))
	require.NoError(t, err)

	f.repo = memCertificates{domaintest.NewMemRepo("certificates", func(c *Certificate) *Certificate { v := *c; return &v })}
	f.svc = NewService(f.repo,
		fakeEnrollments{f.completed.ID: f.completed, f.active.ID: f.active},
		fakeCourses{course.ID: course},
		fakeStudents{student: "Ada Lovelace"},
		gen, domaintest.InlineTx{},
		Config{Store: f.store, Flags: f.flags, Clock: func() time.Time { return issuedAt }},
	)
	f.ctx = security.WithScope(context.Background(),
		security.NewBranchScope(id.New().String(), &f.org, &f.branch, false))
	return f
}

func TestService_IssueAndVerify(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Issue(f.ctx, f.completed.ID)
	require.NoError(t, err)
	assert.Equal(t, "CRT-000001", c.CertificateNo)
	assert.Equal(t, StatusIssued, c.Status)
	assert.Equal(t, "Ada Lovelace", c.StudentName)
	assert.Equal(t, "Go in practice", c.CourseTitle)
	assert.Equal(t, f.branch, *c.BranchID)
	assert.Equal(t, issuedAt, c.IssuedAt)
	assert.Empty(t, c.StorageKey, "pdf flag is off")

	_, err = f.svc.Issue(f.ctx, f.completed.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	v, err := f.svc.Verify(context.Background(), c.VerificationCode)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "CRT-000001", v.CertificateNo)

	_, err = f.svc.Verify(context.Background(), "unknown")
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_IssueRequiresCompletion(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(f.ctx, f.active.ID)
	assert.Equal(t, 422, apperror.GetHTTPStatus(err))
	assert.Zero(t, f.repo.Len())

	other := security.WithScope(context.Background(),
		security.NewBranchScope(id.New().String(), &f.org, id.Ptr(id.New()), false))
	_, err = f.svc.Issue(other, f.completed.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
}

func TestService_RevokeThenReissue(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Issue(f.ctx, f.completed.ID)
	require.NoError(t, err)

	revoked, err := f.svc.Revoke(f.ctx, first.ID, "issued by mistake")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)

	v, err := f.svc.Verify(context.Background(), first.VerificationCode)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	second, err := f.svc.Issue(f.ctx, f.completed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReissued, second.Status)
	assert.Equal(t, "CRT-000002", second.CertificateNo)
	assert.NotEqual(t, first.VerificationCode, second.VerificationCode)
}

func TestService_PDFUpload(t *testing.T) {
	f := newFixture(t)
	f.flags.Set(security.FlagCertificatesPDF, security.FlagScopeBranch, f.branch.String(), true)

	c, err := f.svc.Issue(f.ctx, f.completed.ID)
	require.NoError(t, err)
	require.NotEmpty(t, c.StorageKey)
	assert.Equal(t, fmt.Sprintf("certificates/%s/%s.pdf", f.branch, c.VerificationCode), c.StorageKey)
	assert.Contains(t, f.store.objects, c.StorageKey)

	link, err := f.svc.DownloadURL(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, link, c.StorageKey)
	assert.Contains(t, link, "ttl=15m0s")
}

func TestService_DownloadWithoutDocument(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Issue(f.ctx, f.completed.ID)
	require.NoError(t, err)

	_, err = f.svc.DownloadURL(f.ctx, c.ID)
	assert.True(t, apperror.IsNotFound(err))

	doc, contentType, err := f.svc.Document(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, doc)
}

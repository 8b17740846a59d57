package certificates

import (
	"context"
	"fmt"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/internal/domain"
	"lms/internal/domain/enrollments"
	"lms/pkg/logger"
)

// DownloadTTL bounds how long a presigned download link works.
const DownloadTTL = 15 * time.Minute

// Service issues and verifies certificates.
type Service struct {
	*domain.Service[*Certificate]
	repo        Repository
	enrollments EnrollmentLookup
	courses     CourseLookup
	students    StudentDirectory
	numbers     numerator.Generator
	store       ObjectStore
	renderer    Renderer
	flags       security.FeatureFlagProvider
}

// Config wires the optional document pipeline.
type Config struct {
	Store    ObjectStore
	Renderer Renderer
	Flags    security.FeatureFlagProvider
	Clock    func() time.Time
}

// NewService creates the certificate service.
func NewService(repo Repository, enrollmentLookup EnrollmentLookup, courses CourseLookup, students StudentDirectory, numbers numerator.Generator, txm tx.Manager, cfg Config) *Service {
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewPDFRenderer()
	}
	return &Service{
		Service: domain.NewService(domain.ServiceConfig[*Certificate]{
			Repo:       repo,
			TxManager:  txm,
			EntityName: "certificate",
			Clock:      cfg.Clock,
		}),
		repo:        repo,
		enrollments: enrollmentLookup,
		courses:     courses,
		students:    students,
		numbers:     numbers,
		store:       cfg.Store,
		renderer:    renderer,
		flags:       cfg.Flags,
	}
}

// Issue creates the certificate of a completed enrollment. The number comes
// from the certificate sequence; a revoked predecessor makes it a reissue.
func (s *Service) Issue(ctx context.Context, enrollmentID id.ID) (*Certificate, error) {
	scope, err := domain.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Status != enrollments.StatusCompleted {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "only completed enrollments earn a certificate").
			WithDetail("enrollmentId", e.ID).
			WithDetail("status", e.Status)
	}
	course, err := s.courses.GetByID(ctx, e.CourseID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	c := NewCertificate(e.UserID, e.CourseID, e.ID, now)
	c.CourseTitle = course.Title
	c.IssuedBy = domain.ActorID(ctx)
	entity.InheritBranch(c, e)
	if s.students != nil {
		if c.StudentName, err = s.students.DisplayName(ctx, e.UserID); err != nil {
			return nil, err
		}
	}

	err = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindValid(ctx, e.ID)
		switch {
		case err == nil:
			return apperror.NewDuplicate("certificate", "enrollmentId", e.ID.String()).
				WithDetail("certificateId", existing.ID)
		case !apperror.IsNotFound(err):
			return err
		}
		revoked, err := s.repo.HasRevoked(ctx, e.ID)
		if err != nil {
			return err
		}
		if revoked {
			c.Status = StatusReissued
		}

		c.CertificateNo, err = numerator.Next(ctx, s.numbers, numerator.TypeCertificate, scope.OrganizationID, c.BranchID)
		if err != nil {
			return err
		}
		if err := s.attachDocument(ctx, c); err != nil {
			return err
		}
		return s.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "certificate issued", "certificate_no", c.CertificateNo, "enrollment_id", e.ID)
	return c, nil
}

// attachDocument renders and uploads the PDF when the branch has the
// feature enabled and a store is configured.
func (s *Service) attachDocument(ctx context.Context, c *Certificate) error {
	if s.store == nil || s.flags == nil || !s.flags.IsEnabled(ctx, security.FlagCertificatesPDF) {
		return nil
	}
	doc, err := s.renderer.Render(c)
	if err != nil {
		return apperror.NewInternal(err)
	}
	key := storageKey(c)
	if err := s.store.Put(ctx, key, s.renderer.ContentType(), doc); err != nil {
		return apperror.NewInternal(fmt.Errorf("upload certificate: %w", err))
	}
	c.StorageKey = key
	return nil
}

func storageKey(c *Certificate) string {
	branch := "shared"
	if c.BranchID != nil {
		branch = c.BranchID.String()
	}
	return fmt.Sprintf("certificates/%s/%s.pdf", branch, c.VerificationCode)
}

// Revoke withdraws a certificate.
func (s *Service) Revoke(ctx context.Context, certificateID id.ID, reason string) (*Certificate, error) {
	c, err := s.GetByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if err := c.Revoke(domain.ActorID(ctx), reason, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Verify looks a certificate up by its public code. No authentication is
// required; only the public view is returned.
func (s *Service) Verify(ctx context.Context, code string) (*Verification, error) {
	c, err := s.repo.FindByVerificationCode(ctx, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("certificate", "verification code")
		}
		return nil, err
	}
	return c.Verification(), nil
}

// DownloadURL returns a short lived link to the certificate document.
func (s *Service) DownloadURL(ctx context.Context, certificateID id.ID) (string, error) {
	c, err := s.GetByID(ctx, certificateID)
	if err != nil {
		return "", err
	}
	if c.StorageKey == "" || s.store == nil {
		return "", apperror.NewNotFound("certificate document", certificateID.String())
	}
	return s.store.PresignedURL(ctx, c.StorageKey, DownloadTTL)
}

// Document renders the certificate on demand, for branches without storage.
func (s *Service) Document(ctx context.Context, certificateID id.ID) ([]byte, string, error) {
	c, err := s.GetByID(ctx, certificateID)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.renderer.Render(c)
	if err != nil {
		return nil, "", apperror.NewInternal(err)
	}
	return doc, s.renderer.ContentType(), nil
}

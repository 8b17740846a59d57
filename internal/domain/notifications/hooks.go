package notifications

import (
	"context"
	"fmt"

	"lms/internal/core/entity"
	"lms/internal/domain"
	"lms/internal/domain/certificates"
	"lms/internal/domain/enrollments"
)

// OnEnrollmentCreated tells the student they were enrolled.
func (s *Service) OnEnrollmentCreated() domain.Hook[*enrollments.Enrollment] {
	return func(ctx context.Context, e *enrollments.Enrollment) error {
		_, err := s.Notify(ctx, Input{
			UserID:    e.UserID,
			BranchID:  e.BranchID,
			Title:     "You are enrolled",
			Body:      fmt.Sprintf("Enrollment %s is active.", e.EnrollmentNo),
			ActionURL: "/courses/" + e.CourseID.String(),
			Target:    &entity.Ref{Kind: entity.RefEnrollment, ID: e.ID},
		})
		return err
	}
}

// OnCertificateIssued tells the student a certificate is ready.
func (s *Service) OnCertificateIssued() domain.Hook[*certificates.Certificate] {
	return func(ctx context.Context, c *certificates.Certificate) error {
		_, err := s.Notify(ctx, Input{
			UserID:   c.UserID,
			BranchID: c.BranchID,
			Title:    "Certificate issued",
			Body:     fmt.Sprintf("%s for %s.", c.CertificateNo, c.CourseTitle),
			Priority: PriorityHigh,
			Target:   &entity.Ref{Kind: entity.RefCertificate, ID: c.ID},
			Data:     entity.Meta{"verificationCode": c.VerificationCode},
		})
		return err
	}
}

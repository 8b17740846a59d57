// Package certificates issues, revokes and verifies course completion certificates.
package certificates

import (
	"context"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// Status of an issued certificate.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusReissued Status = "reissued"
	StatusRevoked  Status = "revoked"
)

// Certificate is the record of a completed course. Student and course
// names are snapshots taken at issue time.
type Certificate struct {
	entity.BaseEntity
	entity.BranchOwned

	UserID           id.ID      `db:"user_id" json:"userId"`
	CourseID         id.ID      `db:"course_id" json:"courseId"`
	EnrollmentID     id.ID      `db:"enrollment_id" json:"enrollmentId"`
	Status           Status     `db:"status" json:"status"`
	IssuedAt         time.Time  `db:"issued_at" json:"issuedAt"`
	CertificateNo    string     `db:"certificate_no" json:"certificateNo"`
	VerificationCode string     `db:"verification_code" json:"verificationCode"`
	StorageKey       string     `db:"storage_key" json:"-"`
	StudentName      string     `db:"student_name" json:"studentName"`
	CourseTitle      string     `db:"course_title" json:"courseTitle"`
	IssuedBy         *id.ID     `db:"issued_by" json:"issuedBy,omitempty"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	RevokedBy        *id.ID     `db:"revoked_by" json:"revokedBy,omitempty"`
	RevokeReason     string     `db:"revoke_reason" json:"revokeReason,omitempty"`
}

// NewCertificate creates an issued certificate with a fresh verification code.
func NewCertificate(userID, courseID, enrollmentID id.ID, now time.Time) *Certificate {
	return &Certificate{
		BaseEntity:       entity.NewBaseEntity(),
		UserID:           userID,
		CourseID:         courseID,
		EnrollmentID:     enrollmentID,
		Status:           StatusIssued,
		IssuedAt:         now,
		VerificationCode: id.NewVerificationCode(),
	}
}

func (c *Certificate) EntityName() string { return "certificate" }

// Validate implements entity.Validatable.
func (c *Certificate) Validate(ctx context.Context) error {
	if id.IsNil(c.UserID) || id.IsNil(c.CourseID) || id.IsNil(c.EnrollmentID) {
		return apperror.NewValidation("certificate needs a user, a course and an enrollment")
	}
	if c.CertificateNo == "" {
		return apperror.NewFieldValidation("certificateNo", "certificate number is required")
	}
	if c.VerificationCode == "" {
		return apperror.NewFieldValidation("verificationCode", "verification code is required")
	}
	return nil
}

// IsValid reports whether the certificate still attests completion.
func (c *Certificate) IsValid() bool {
	return c.Active && c.Status != StatusRevoked
}

// Revoke withdraws the certificate.
func (c *Certificate) Revoke(by *id.ID, reason string, now time.Time) error {
	if c.Status == StatusRevoked {
		return apperror.NewInvalidTransition("certificate", string(c.Status), string(StatusRevoked))
	}
	if reason == "" {
		return apperror.NewFieldValidation("reason", "a revocation reason is required")
	}
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevokedBy = by
	c.RevokeReason = reason
	return nil
}

// Verification is the public view served to anyone holding the code.
type Verification struct {
	CertificateNo string     `json:"certificateNo"`
	StudentName   string     `json:"studentName"`
	CourseTitle   string     `json:"courseTitle"`
	IssuedAt      time.Time  `json:"issuedAt"`
	Status        Status     `json:"status"`
	Valid         bool       `json:"valid"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`
}

// Verification returns the public view of c.
func (c *Certificate) Verification() *Verification {
	return &Verification{
		CertificateNo: c.CertificateNo,
		StudentName:   c.StudentName,
		CourseTitle:   c.CourseTitle,
		IssuedAt:      c.IssuedAt,
		Status:        c.Status,
		Valid:         c.IsValid(),
		RevokedAt:     c.RevokedAt,
	}
}

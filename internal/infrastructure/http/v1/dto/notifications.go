package dto

import (
	"lms/internal/core/id"
	"lms/internal/domain/notifications"
)

// NotifyRequest sends a notification to one or many users.
type NotifyRequest struct {
	UserIDs   []id.ID `json:"userIds" binding:"required,min=1,max=1000"`
	Title     string  `json:"title" binding:"required"`
	Body      string  `json:"body"`
	Priority  string  `json:"priority" binding:"omitempty,oneof=low normal high"`
	ActionURL string  `json:"actionUrl"`
}

// ToInput converts to the service input.
func (r NotifyRequest) ToInput() notifications.Input {
	in := notifications.Input{
		Title:     r.Title,
		Body:      r.Body,
		Priority:  notifications.Priority(r.Priority),
		ActionURL: r.ActionURL,
	}
	if len(r.UserIDs) == 1 {
		in.UserID = r.UserIDs[0]
	}
	return in
}

// UnreadResponse reports the unread counter.
type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

// CertificateURLResponse carries a short-lived download link.
type CertificateURLResponse struct {
	URL string `json:"url"`
}

// IssueCertificateRequest issues a certificate for an enrollment.
type IssueCertificateRequest struct {
	EnrollmentID id.ID `json:"enrollmentId" binding:"required"`
}

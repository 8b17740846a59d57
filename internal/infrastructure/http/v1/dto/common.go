// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
)

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ItemsResponse wraps an unpaged list.
type ItemsResponse struct {
	Items any `json:"items"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ReasonRequest carries a free-text reason (cancel, revoke, suspend).
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// ParseOptionalID parses an optional id field.
func ParseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	v, err := id.Parse(*raw)
	if err != nil {
		return nil, apperror.NewFieldValidation(field, "invalid id format")
	}
	return &v, nil
}

// ParseTimeQuery parses an RFC 3339 query value; empty means zero time.
func ParseTimeQuery(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.NewFieldValidation(field, "expected RFC 3339 timestamp")
	}
	return t, nil
}

// Package id provides UUIDv7 generation for all platform entities and
// the opaque codes handed out to end users (invite links, verification codes).
package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParsePtr parses an optional ID; empty input yields nil.
func ParsePtr(s string) (*ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Equal compares two optional IDs. Two nil pointers are equal.
func Equal(a, b *ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Ptr returns a pointer to a copy of v.
func Ptr(v ID) *ID {
	return &v
}

// NewVerificationCode returns a random 32-char hex code for certificates.
func NewVerificationCode() string {
	v := uuid.New()
	return hex.EncodeToString(v[:])
}

// NewToken returns a URL-safe base58 token built from 32 random bytes.
// Used for invite links and one-time user tokens.
func NewToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base58.Encode(buf)
}

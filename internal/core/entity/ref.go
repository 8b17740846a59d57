package entity

import (
	"fmt"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
)

// RefKind enumerates the entity kinds a polymorphic reference may point at.
type RefKind string

const (
	RefCourse      RefKind = "course"
	RefLesson      RefKind = "lesson"
	RefEnrollment  RefKind = "enrollment"
	RefOrder       RefKind = "order"
	RefCertificate RefKind = "certificate"
	RefInvite      RefKind = "invite"
	RefCoupon      RefKind = "coupon"
	RefTicket      RefKind = "ticket"
	RefReview      RefKind = "review"
	RefQuiz        RefKind = "quiz"
)

var refKinds = map[RefKind]struct{}{
	RefCourse:      {},
	RefLesson:      {},
	RefEnrollment:  {},
	RefOrder:       {},
	RefCertificate: {},
	RefInvite:      {},
	RefCoupon:      {},
	RefTicket:      {},
	RefReview:      {},
	RefQuiz:        {},
}

// Valid reports whether k is one of the known linkable kinds.
func (k RefKind) Valid() bool {
	_, ok := refKinds[k]
	return ok
}

// Ref is a typed link to another row: a known kind plus its id.
type Ref struct {
	Kind RefKind `json:"kind"`
	ID   id.ID   `json:"id"`
}

// NewRef validates kind and builds a reference.
func NewRef(kind RefKind, target id.ID) (Ref, error) {
	r := Ref{Kind: kind, ID: target}
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

// Validate checks kind membership and a non-nil id.
func (r Ref) Validate() error {
	if !r.Kind.Valid() {
		return apperror.NewFieldValidation("target.kind", fmt.Sprintf("unknown reference kind %q", r.Kind))
	}
	if id.IsNil(r.ID) {
		return apperror.NewFieldValidation("target.id", "reference id is required")
	}
	return nil
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// RefColumns stores an optional Ref as two nullable columns.
// Embed it in rows that link to "any" entity.
type RefColumns struct {
	TargetKind *RefKind `db:"target_kind" json:"-"`
	TargetID   *id.ID   `db:"target_id" json:"-"`
}

// Target returns the reference if both columns are set.
func (c RefColumns) Target() (Ref, bool) {
	if c.TargetKind == nil || c.TargetID == nil {
		return Ref{}, false
	}
	return Ref{Kind: *c.TargetKind, ID: *c.TargetID}, true
}

// SetTarget stores r; a nil r clears both columns.
func (c *RefColumns) SetTarget(r *Ref) {
	if r == nil {
		c.TargetKind, c.TargetID = nil, nil
		return
	}
	kind, target := r.Kind, r.ID
	c.TargetKind, c.TargetID = &kind, &target
}

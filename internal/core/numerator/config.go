// Package numerator provides domain contracts for human-readable document numbers.
package numerator

import (
	"context"
	"fmt"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	counter "lms/pkg/numerator"
)

// SequenceType names a numbering series.
type SequenceType string

const (
	TypeEnrollment  SequenceType = "enrollment"
	TypeOrder       SequenceType = "order"
	TypeInvoice     SequenceType = "invoice"
	TypeReceipt     SequenceType = "receipt"
	TypeCertificate SequenceType = "certificate"
	TypeTicket      SequenceType = "ticket"
)

// SequenceTypes lists every known series.
var SequenceTypes = []SequenceType{
	TypeEnrollment, TypeOrder, TypeInvoice, TypeReceipt, TypeCertificate, TypeTicket,
}

// IsValid reports whether t is a known series.
func (t SequenceType) IsValid() bool {
	for _, known := range SequenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Scope identifies one counter series: (type, organization, branch).
// A nil branch is the organization-wide series.
type Scope struct {
	Type           SequenceType
	OrganizationID *id.ID
	BranchID       *id.ID
}

// Validate checks the scope.
func (s Scope) Validate() error {
	if !s.Type.IsValid() {
		return apperror.NewFieldValidation("seqType", fmt.Sprintf("unknown sequence type %q", s.Type))
	}
	return nil
}

// Key is a stable string form of the scope, used for locks and caches.
func (s Scope) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.Type, optional(s.OrganizationID), optional(s.BranchID))
}

func optional(v *id.ID) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

// Config is the provisioning input for a new sequence.
type Config struct {
	Prefix      string
	Padding     int
	NextNumber  int64
	ResetYearly bool
}

// DefaultConfig returns a config starting at 1 with six-digit padding.
func DefaultConfig(prefix string) Config {
	return Config{Prefix: prefix, Padding: counter.DefaultPadding, NextNumber: 1}
}

// Sequence is the persisted NumberSequence row.
type Sequence struct {
	entity.BaseEntity
	entity.BranchOwned
	OrganizationID *id.ID       `db:"organization_id" json:"organizationId,omitempty"`
	SeqType        SequenceType `db:"seq_type" json:"seqType"`
	counter.Sequence
}

// NewSequence builds a row for scope from cfg.
func NewSequence(scope Scope, cfg Config) *Sequence {
	seq := &Sequence{
		BaseEntity:     entity.NewBaseEntity(),
		OrganizationID: scope.OrganizationID,
		SeqType:        scope.Type,
		Sequence: counter.Sequence{
			Prefix:      cfg.Prefix,
			Padding:     cfg.Padding,
			NextNumber:  cfg.NextNumber,
			ResetYearly: cfg.ResetYearly,
		},
	}
	seq.BranchID = scope.BranchID
	return seq
}

// Scope returns the series this row belongs to.
func (s *Sequence) Scope() Scope {
	return Scope{Type: s.SeqType, OrganizationID: s.OrganizationID, BranchID: s.BranchID}
}

// EntityName is used in authorization errors.
func (s *Sequence) EntityName() string { return "number_sequence" }

// Validate checks the row.
func (s *Sequence) Validate(ctx context.Context) error {
	if err := s.Scope().Validate(); err != nil {
		return err
	}
	if err := s.Sequence.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}
	return nil
}

package entity

import (
	"context"
	"time"

	"lms/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// Identifiable exposes the primary key of a persisted row.
type Identifiable interface {
	GetID() id.ID
}

// Entity is the constraint used by generic services and repositories.
type Entity interface {
	Validatable
	Identifiable
	Stamp(userID *id.ID, now time.Time)
}

// BaseEntity contains the fields every persisted row carries:
// identity, ownership stamps, the soft "active" flag and the optimistic lock version.
// Rows are never hard-deleted; Deactivate flips Active instead.
type BaseEntity struct {
	ID                id.ID     `db:"id" json:"id"`
	Active            bool      `db:"active" json:"active"`
	IsSystemGenerated bool      `db:"is_system_generated" json:"isSystemGenerated"`
	UserAddID         *id.ID    `db:"user_add_id" json:"userAddId,omitempty"`
	Version           int       `db:"version" json:"version"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates an active BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID implements Identifiable.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}

// Stamp records who created the row (first write only) and bumps UpdatedAt.
func (b *BaseEntity) Stamp(userID *id.ID, now time.Time) {
	if b.UserAddID == nil && userID != nil {
		b.UserAddID = userID
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// GetVersion returns the optimistic lock version.
func (b *BaseEntity) GetVersion() int {
	return b.Version
}

// BumpVersion is called by repositories after a successful update.
func (b *BaseEntity) BumpVersion() {
	b.Version++
}

// Deactivate marks the row as inactive (tombstone).
func (b *BaseEntity) Deactivate() {
	b.Active = false
}

// Restore re-activates a tombstoned row.
func (b *BaseEntity) Restore() {
	b.Active = true
}

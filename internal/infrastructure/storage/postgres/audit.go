// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain"
	"lms/pkg/logger"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            AuditAction     `db:"action"`
	UserID            string          `db:"user_id"`
	BranchID          *id.ID          `db:"branch_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService writes the sys_audit trail.
type AuditService struct {
	txManager *TxManager
	codec     *Codec
	now       func() time.Time
}

// NewAuditService creates a new audit service. Snapshots over 10KB are zstd compressed.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	codec, err := NewCodec(10 * 1024)
	if err != nil {
		return nil, err
	}
	return &AuditService{txManager: txManager, codec: codec, now: time.Now}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if scope := security.GetScope(ctx); scope != nil && entry.UserID == "" {
		entry.UserID = scope.UserID
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	packed, algo := s.codec.Pack(entry.Changes)
	entry.CompressionAlgo = algo
	if algo != CompressionNone {
		entry.ChangesCompressed = packed
		entry.Changes = nil
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, branch_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, entry.BranchID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	return err
}

// LogChange is a convenience method for logging entity changes.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, branchID *id.ID, action AuditAction, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		BranchID:   branchID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// GetEntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id, branch_id,
			   changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.BranchID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			raw, err := s.codec.Unpack(e.ChangesCompressed, e.CompressionAlgo)
			if err != nil {
				return nil, err
			}
			e.Changes = raw
			e.ChangesCompressed = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RegisterAuditHooks records a snapshot of T after every committed write.
// Audit failures are logged by the hook runner and never undo the write.
func RegisterAuditHooks[T entity.Entity](s *AuditService, hooks *domain.HookRegistry[T], entityType string) {
	record := func(action AuditAction) domain.Hook[T] {
		return func(ctx context.Context, e T) error {
			var branchID *id.ID
			if scoped, ok := any(e).(entity.BranchScoped); ok {
				branchID = scoped.GetBranchID()
			}
			var changes map[string]any
			if action != AuditActionDelete {
				changes = StructToMap(e)
			}
			if err := s.LogChange(ctx, entityType, e.GetID(), branchID, action, changes); err != nil {
				logger.Warn(ctx, "audit write failed", "entity", entityType, "id", e.GetID(), "error", err)
				return err
			}
			return nil
		}
	}
	hooks.OnAfterCreate(record(AuditActionCreate))
	hooks.OnAfterUpdate(record(AuditActionUpdate))
	hooks.On(domain.AfterDelete, record(AuditActionDelete))
}

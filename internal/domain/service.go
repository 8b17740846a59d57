// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"fmt"
	"time"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/core/tx"
	"lms/pkg/logger"
)

// Service provides branch-scoped CRUD for one entity type.
// Domain services embed it and add their own operations.
type Service[T entity.Entity] struct {
	repo      Repository[T]
	txManager tx.Manager
	hooks     *HookRegistry[T]
	now       func() time.Time

	// entityName for error messages and logs
	entityName string
	// branchScoped is true when T carries a branch
	branchScoped bool
}

// ServiceConfig configures the service.
type ServiceConfig[T entity.Entity] struct {
	Repo       Repository[T]
	TxManager  tx.Manager
	EntityName string
	// Clock defaults to time.Now
	Clock func() time.Time
}

// NewService creates a new service.
func NewService[T entity.Entity](cfg ServiceConfig[T]) *Service[T] {
	var zero T
	_, scoped := any(zero).(entity.BranchScoped)

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service[T]{
		repo:         cfg.Repo,
		txManager:    cfg.TxManager,
		hooks:        NewHookRegistry[T](),
		now:          clock,
		entityName:   cfg.EntityName,
		branchScoped: scoped,
	}
}

// Hooks returns the hook registry for external registration.
func (s *Service[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// Repo exposes the repository to embedding services.
func (s *Service[T]) Repo() Repository[T] {
	return s.repo
}

// TxManager exposes the transaction manager to embedding services.
func (s *Service[T]) TxManager() tx.Manager {
	return s.txManager
}

// Now returns the service clock in UTC.
func (s *Service[T]) Now() time.Time {
	return s.now().UTC()
}

// EntityName returns the name used in errors.
func (s *Service[T]) EntityName() string {
	return s.entityName
}

func (s *Service[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

// NormalizeGetErr maps repository lookup failures onto this entity.
func (s *Service[T]) NormalizeGetErr(err error, key any) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, key)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", key)
}

// RequireScope returns the caller's scope or a 401.
func RequireScope(ctx context.Context) (*security.BranchScope, error) {
	scope := security.GetScope(ctx)
	if !scope.Authenticated {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return scope, nil
}

// ActorID returns the caller as an optional id for ownership stamps.
func ActorID(ctx context.Context) *id.ID {
	scope := security.GetScope(ctx)
	if scope.System || scope.UserID == "" {
		return nil
	}
	v, err := id.Parse(scope.UserID)
	if err != nil {
		return nil
	}
	return &v
}

// Create stamps, scopes, validates and inserts a new entity.
func (s *Service[T]) Create(ctx context.Context, e T) error {
	scope, err := RequireScope(ctx)
	if err != nil {
		return err
	}

	// 1. Branch injection happens before validation so defaults are checked too
	security.InjectBranchOnWrite(scope, e, true)
	e.Stamp(ActorID(ctx), s.Now())

	// 2. Validate entity invariants
	if err := e.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	// 3. Before hooks and insert share the transaction
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 4. After hooks run outside the transaction; the row is already committed
	if err := s.hooks.Run(ctx, AfterCreate, e); err != nil {
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "id", e.GetID(), "error", err)
	}
	return nil
}

// GetByID retrieves an entity the caller may see.
func (s *Service[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	var zero T
	scope, err := RequireScope(ctx)
	if err != nil {
		return zero, err
	}
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return zero, s.NormalizeGetErr(err, entityID.String())
	}
	if err := security.AuthorizeObject(scope, e); err != nil {
		return zero, err
	}
	return e, nil
}

// Authorize checks single-object access for an already loaded row.
func (s *Service[T]) Authorize(ctx context.Context, e T) error {
	scope, err := RequireScope(ctx)
	if err != nil {
		return err
	}
	return security.AuthorizeObject(scope, e)
}

// Update writes an entity the caller may see.
// The stored row is re-checked so a caller cannot update rows outside the scope.
func (s *Service[T]) Update(ctx context.Context, e T) error {
	scope, err := RequireScope(ctx)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, e.GetID())
	if err != nil {
		return s.NormalizeGetErr(err, e.GetID().String())
	}
	if err := security.AuthorizeObject(scope, existing); err != nil {
		return err
	}

	security.InjectBranchOnWrite(scope, e, false)
	e.Stamp(ActorID(ctx), s.Now())

	if err := e.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterUpdate, e); err != nil {
		logger.Warn(ctx, "after-update hook failed", "entity", s.entityName, "id", e.GetID(), "error", err)
	}
	return nil
}

// Delete tombstones an entity the caller may see.
func (s *Service[T]) Delete(ctx context.Context, entityID id.ID) error {
	e, err := s.GetByID(ctx, entityID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, BeforeDelete, e); err != nil {
			return err
		}
		if err := s.repo.Deactivate(ctx, entityID); err != nil {
			return fmt.Errorf("delete %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterDelete, e); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "entity", s.entityName, "id", entityID, "error", err)
	}
	return nil
}

// List retrieves the entities visible to the caller.
// A caller without a branch gets an empty page, not an error.
func (s *Service[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	scope, err := RequireScope(ctx)
	if err != nil {
		return ListResult[T]{}, err
	}
	filter.Visibility = security.Visibility{All: true}
	if s.branchScoped {
		filter.Visibility = scope.Visibility()
		if filter.Visibility.None() {
			return EmptyResult[T](filter), nil
		}
	}
	return s.repo.List(ctx, filter)
}

// Exists checks if entity exists.
func (s *Service[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return s.repo.Exists(ctx, entityID)
}

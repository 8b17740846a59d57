package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/pkg/logger"
)

// BranchCache is an optional shared cache in front of the registry
// (Redis in production). Misses return (nil, nil).
type BranchCache interface {
	GetBranch(ctx context.Context, branchID string) (*BranchInfo, error)
	SetBranch(ctx context.Context, b *BranchInfo, ttl time.Duration) error
	InvalidateBranch(ctx context.Context, branchID string) error
}

// ResolverConfig configures the Resolver.
type ResolverConfig struct {
	// LocalTTL bounds how long a branch stays in process memory.
	LocalTTL time.Duration
	// MembershipTTL bounds how long a positive membership check is reused.
	// A revoked member keeps the branch for at most this long on other nodes.
	MembershipTTL time.Duration
	// SharedTTL is passed to BranchCache on writes.
	SharedTTL time.Duration
}

// DefaultResolverConfig returns production defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		LocalTTL:      30 * time.Second,
		MembershipTTL: 30 * time.Second,
		SharedTTL:     5 * time.Minute,
	}
}

type cachedBranch struct {
	info      *BranchInfo
	expiresAt time.Time
}

// Resolver turns an authenticated user into a BranchScope.
// Safe for concurrent use.
type Resolver struct {
	config   ResolverConfig
	registry Registry
	shared   BranchCache
	local    sync.Map // branchID -> cachedBranch
	members  sync.Map // userID/branchID -> expiry time.Time
	now      func() time.Time
	log      *logger.Logger
}

// NewResolver creates a resolver. shared may be nil.
func NewResolver(cfg ResolverConfig, registry Registry, shared BranchCache, log *logger.Logger) *Resolver {
	return &Resolver{
		config:   cfg,
		registry: registry,
		shared:   shared,
		now:      time.Now,
		log:      log.WithComponent("branch-resolver"),
	}
}

// Resolve builds the scope for user. A nil user yields the anonymous scope.
// Failing to find a usable branch is not an error: the scope simply has no
// branch and sees nothing of branch-scoped types.
func (r *Resolver) Resolve(ctx context.Context, user *appctx.UserContext) (*security.BranchScope, *BranchInfo, error) {
	if user == nil {
		return security.Anonymous(), nil, nil
	}

	branchID := user.BranchID
	if branchID == "" {
		current, err := r.registry.CurrentBranchID(ctx, user.UserID)
		switch {
		case errors.Is(err, ErrNoCurrentBranch):
			return r.noBranch(user), nil, nil
		case err != nil:
			return nil, nil, err
		}
		branchID = current
	}

	info, err := r.Branch(ctx, branchID)
	if errors.Is(err, ErrBranchNotFound) {
		r.log.Warnw("user points at a missing branch", "user_id", user.UserID, "branch_id", branchID)
		return r.noBranch(user), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !info.Usable() {
		return r.noBranch(user), nil, nil
	}
	if !user.IsSuperuser {
		member, err := r.isMember(ctx, user.UserID, branchID)
		if err != nil {
			return nil, nil, err
		}
		if !member {
			r.log.Warnw("user is not a member of the requested branch", "user_id", user.UserID, "branch_id", branchID)
			return r.noBranch(user), nil, nil
		}
	}

	scope := security.NewBranchScope(user.UserID, id.Ptr(info.OrganizationID), id.Ptr(info.ID), info.IsMainBranch)
	scope.Permissions = user.Permissions
	return scope, info, nil
}

func (r *Resolver) noBranch(user *appctx.UserContext) *security.BranchScope {
	scope := security.NewBranchScope(user.UserID, nil, nil, false)
	scope.Permissions = user.Permissions
	return scope
}

// Branch returns branch metadata through the local and shared caches.
func (r *Resolver) Branch(ctx context.Context, branchID string) (*BranchInfo, error) {
	if v, ok := r.local.Load(branchID); ok {
		entry := v.(cachedBranch)
		if r.now().Before(entry.expiresAt) {
			return entry.info, nil
		}
		r.local.Delete(branchID)
	}

	if r.shared != nil {
		info, err := r.shared.GetBranch(ctx, branchID)
		if err != nil {
			r.log.Warnw("shared branch cache read failed", "branch_id", branchID, "error", err)
		} else if info != nil {
			r.storeLocal(info)
			return info, nil
		}
	}

	info, err := r.registry.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	r.storeLocal(info)
	if r.shared != nil {
		if err := r.shared.SetBranch(ctx, info, r.config.SharedTTL); err != nil {
			r.log.Warnw("shared branch cache write failed", "branch_id", branchID, "error", err)
		}
	}
	return info, nil
}

// Invalidate drops a branch from both caches after it was modified.
func (r *Resolver) Invalidate(ctx context.Context, branchID string) {
	r.local.Delete(branchID)
	if r.shared != nil {
		if err := r.shared.InvalidateBranch(ctx, branchID); err != nil {
			r.log.Warnw("shared branch cache invalidation failed", "branch_id", branchID, "error", err)
		}
	}
}

// InvalidateMember forgets a cached membership after it was revoked.
func (r *Resolver) InvalidateMember(userID, branchID string) {
	r.members.Delete(memberKey(userID, branchID))
}

// isMember checks active membership. Only positive answers are cached so a
// newly granted membership applies on the next request.
func (r *Resolver) isMember(ctx context.Context, userID, branchID string) (bool, error) {
	key := memberKey(userID, branchID)
	if v, ok := r.members.Load(key); ok {
		if r.now().Before(v.(time.Time)) {
			return true, nil
		}
		r.members.Delete(key)
	}
	ok, err := r.registry.IsMember(ctx, userID, branchID)
	if err != nil {
		return false, err
	}
	if ok && r.config.MembershipTTL > 0 {
		r.members.Store(key, r.now().Add(r.config.MembershipTTL))
	}
	return ok, nil
}

func memberKey(userID, branchID string) string {
	return userID + "/" + branchID
}

func (r *Resolver) storeLocal(info *BranchInfo) {
	if r.config.LocalTTL <= 0 {
		return
	}
	r.local.Store(info.ID.String(), cachedBranch{info: info, expiresAt: r.now().Add(r.config.LocalTTL)})
}

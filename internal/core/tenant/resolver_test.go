package tenant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/pkg/logger"
)

type fakeRegistry struct {
	branches map[string]*BranchInfo
	current  map[string]string
	members  map[string]bool
	lookups  atomic.Int32
	checks   atomic.Int32
}

func (f *fakeRegistry) GetBranch(ctx context.Context, branchID string) (*BranchInfo, error) {
	f.lookups.Add(1)
	b, ok := f.branches[branchID]
	if !ok {
		return nil, ErrBranchNotFound
	}
	return b, nil
}

func (f *fakeRegistry) CurrentBranchID(ctx context.Context, userID string) (string, error) {
	b, ok := f.current[userID]
	if !ok {
		return "", ErrNoCurrentBranch
	}
	return b, nil
}

func (f *fakeRegistry) IsMember(ctx context.Context, userID, branchID string) (bool, error) {
	f.checks.Add(1)
	return f.members[memberKey(userID, branchID)], nil
}

func (f *fakeRegistry) join(userID string, b *BranchInfo) {
	f.members[memberKey(userID, b.ID.String())] = true
}

func newFixture() (*fakeRegistry, *BranchInfo, *BranchInfo) {
	org := id.New()
	main := &BranchInfo{ID: id.New(), OrganizationID: org, Code: "main", IsMainBranch: true, Active: true, OrganizationActive: true}
	downtown := &BranchInfo{ID: id.New(), OrganizationID: org, Code: "downtown", Active: true, OrganizationActive: true}
	reg := &fakeRegistry{
		branches: map[string]*BranchInfo{main.ID.String(): main, downtown.ID.String(): downtown},
		current:  map[string]string{},
		members:  map[string]bool{},
	}
	return reg, main, downtown
}

func TestResolver_Resolve(t *testing.T) {
	reg, main, downtown := newFixture()
	r := NewResolver(DefaultResolverConfig(), reg, nil, logger.Nop())
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		scope, _, err := r.Resolve(ctx, nil)
		require.NoError(t, err)
		assert.False(t, scope.Authenticated)
	})

	t.Run("main branch from token claim", func(t *testing.T) {
		reg.join("u1", main)
		scope, info, err := r.Resolve(ctx, &appctx.UserContext{UserID: "u1", BranchID: main.ID.String()})
		require.NoError(t, err)
		assert.True(t, scope.IsMainBranch)
		assert.Equal(t, main.ID, *scope.BranchID)
		assert.Equal(t, main.OrganizationID, *scope.OrganizationID)
		assert.Equal(t, "main", info.Code)
	})

	t.Run("falls back to current branch pointer", func(t *testing.T) {
		reg.current["u2"] = downtown.ID.String()
		reg.join("u2", downtown)
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "u2"})
		require.NoError(t, err)
		assert.False(t, scope.IsMainBranch)
		assert.Equal(t, downtown.ID, *scope.BranchID)
	})

	t.Run("no branch is not an error", func(t *testing.T) {
		scope, info, err := r.Resolve(ctx, &appctx.UserContext{UserID: "u3"})
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.True(t, scope.Authenticated)
		assert.False(t, scope.HasBranch())
		assert.True(t, scope.Visibility().None())
	})

	t.Run("missing branch degrades to no branch", func(t *testing.T) {
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "u4", BranchID: id.New().String()})
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
	})

	t.Run("inactive organization degrades to no branch", func(t *testing.T) {
		suspended := &BranchInfo{ID: id.New(), OrganizationID: id.New(), Active: true, OrganizationActive: false}
		reg.branches[suspended.ID.String()] = suspended
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "u5", BranchID: suspended.ID.String()})
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
	})
}

func TestResolver_Membership(t *testing.T) {
	reg, main, downtown := newFixture()
	r := NewResolver(ResolverConfig{MembershipTTL: time.Minute}, reg, nil, logger.Nop())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()
	reg.join("staff", downtown)

	t.Run("token branch without membership", func(t *testing.T) {
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "staff", BranchID: main.ID.String()})
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
		assert.True(t, scope.Visibility().None())
	})

	t.Run("stale current branch pointer", func(t *testing.T) {
		reg.current["staff"] = main.ID.String()
		defer delete(reg.current, "staff")
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "staff"})
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
	})

	t.Run("superuser skips the check", func(t *testing.T) {
		checks := reg.checks.Load()
		scope, _, err := r.Resolve(ctx, &appctx.UserContext{UserID: "root", BranchID: main.ID.String(), IsSuperuser: true})
		require.NoError(t, err)
		assert.Equal(t, main.ID, *scope.BranchID)
		assert.Equal(t, checks, reg.checks.Load())
	})

	t.Run("positive answers are cached until revoked", func(t *testing.T) {
		user := &appctx.UserContext{UserID: "staff", BranchID: downtown.ID.String()}
		checks := reg.checks.Load()
		for i := 0; i < 3; i++ {
			scope, _, err := r.Resolve(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, downtown.ID, *scope.BranchID)
		}
		assert.Equal(t, checks+1, reg.checks.Load())

		delete(reg.members, memberKey("staff", downtown.ID.String()))
		r.InvalidateMember("staff", downtown.ID.String())
		scope, _, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
	})

	t.Run("cached answer expires", func(t *testing.T) {
		reg.join("teacher", downtown)
		user := &appctx.UserContext{UserID: "teacher", BranchID: downtown.ID.String()}
		_, _, err := r.Resolve(ctx, user)
		require.NoError(t, err)

		delete(reg.members, memberKey("teacher", downtown.ID.String()))
		scope, _, err := r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.True(t, scope.HasBranch())

		now = now.Add(2 * time.Minute)
		scope, _, err = r.Resolve(ctx, user)
		require.NoError(t, err)
		assert.False(t, scope.HasBranch())
	})
}

func TestResolver_LocalCache(t *testing.T) {
	reg, main, _ := newFixture()
	r := NewResolver(ResolverConfig{LocalTTL: time.Minute}, reg, nil, logger.Nop())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Branch(ctx, main.ID.String())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), reg.lookups.Load())

	now = now.Add(2 * time.Minute)
	_, err := r.Branch(ctx, main.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int32(2), reg.lookups.Load())

	r.Invalidate(ctx, main.ID.String())
	_, err = r.Branch(ctx, main.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int32(3), reg.lookups.Load())
}

type failingRegistry struct{ fakeRegistry }

func (f *failingRegistry) GetBranch(ctx context.Context, branchID string) (*BranchInfo, error) {
	return nil, errors.New("connection refused")
}

func TestResolver_PropagatesStorageErrors(t *testing.T) {
	r := NewResolver(DefaultResolverConfig(), &failingRegistry{}, nil, logger.Nop())
	_, _, err := r.Resolve(context.Background(), &appctx.UserContext{UserID: "u", BranchID: id.New().String()})
	assert.Error(t, err)
}

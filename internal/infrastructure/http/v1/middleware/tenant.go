package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
	"lms/internal/core/security"
	"lms/internal/core/tenant"
)

// ScopeResolver turns the authenticated user into a branch scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, user *appctx.UserContext) (*security.BranchScope, *tenant.BranchInfo, error)
}

// BranchScope resolves the caller's organization and branch and stores the
// scope every domain service filters by. It must run after Auth.
//
// A user without a usable branch still passes: the scope has no branch and
// sees nothing of branch-scoped data.
func BranchScope(resolver ScopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user := appctx.GetUser(ctx)

		scope, info, err := resolver.Resolve(ctx, user)
		if err != nil {
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "branch-scope"))
			c.Abort()
			return
		}

		if user != nil && user.IsSuperuser {
			scope.System = true
		}
		ctx = security.WithScope(ctx, scope)
		if info != nil {
			ctx = tenant.WithBranch(ctx, info)
			if user != nil && user.BranchID != info.ID.String() {
				resolved := *user
				resolved.BranchID = info.ID.String()
				resolved.OrganizationID = info.OrganizationID.String()
				ctx = appctx.WithUser(ctx, &resolved)
			}
			c.Set("branch_id", info.ID.String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireBranch rejects callers that have no branch.
func RequireBranch() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !security.GetScope(c.Request.Context()).HasBranch() {
			_ = c.Error(apperror.NewForbidden("no active branch").WithDetail("hint", "join a branch or switch to one"))
			c.Abort()
			return
		}
		c.Next()
	}
}

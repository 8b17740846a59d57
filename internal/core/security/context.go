package security

import "context"

type scopeKey struct{}

// WithScope stores the caller's branch scope in ctx.
func WithScope(ctx context.Context, scope *BranchScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns the branch scope from ctx, or an anonymous scope.
func GetScope(ctx context.Context) *BranchScope {
	if v, ok := ctx.Value(scopeKey{}).(*BranchScope); ok && v != nil {
		return v
	}
	return Anonymous()
}

// SystemScope is used by background jobs that act on every branch.
func SystemScope() *BranchScope {
	return &BranchScope{UserID: "system", Authenticated: true, System: true}
}

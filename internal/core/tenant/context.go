package tenant

import "context"

type branchKey struct{}

// WithBranch stores the resolved branch in context.
func WithBranch(ctx context.Context, b *BranchInfo) context.Context {
	return context.WithValue(ctx, branchKey{}, b)
}

// GetBranch returns the resolved branch, or nil.
func GetBranch(ctx context.Context) *BranchInfo {
	b, _ := ctx.Value(branchKey{}).(*BranchInfo)
	return b
}

package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"lms/internal/core/id"
)

func TestInMemoryFlags_MostSpecificScopeWins(t *testing.T) {
	org := id.New()
	branch := id.New()
	flags := NewInMemoryFlags()

	flags.Set(FlagSelfEnrollment, FlagScopeGlobal, "", true)
	flags.Set(FlagSelfEnrollment, FlagScopeOrganization, org.String(), false)
	flags.Set(FlagSelfEnrollment, FlagScopeBranch, branch.String(), true)

	branchCtx := WithScope(context.Background(), NewBranchScope("u", &org, &branch, false))
	assert.True(t, flags.IsEnabled(branchCtx, FlagSelfEnrollment))

	other := id.New()
	orgCtx := WithScope(context.Background(), NewBranchScope("u", &org, &other, false))
	assert.False(t, flags.IsEnabled(orgCtx, FlagSelfEnrollment))

	assert.True(t, flags.IsEnabled(context.Background(), FlagSelfEnrollment))
	assert.False(t, flags.IsEnabled(context.Background(), FlagCouponStacking))
}

package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
	"lms/internal/core/id"
	"lms/internal/core/security"
	"lms/internal/domain/settings"
)

type staticFlags struct{ rows []*settings.FeatureFlag }

func (s *staticFlags) ListAll(ctx context.Context) ([]*settings.FeatureFlag, error) {
	return s.rows, nil
}

func newEngine(t *testing.T) *RuleEngine {
	t.Helper()
	e, err := NewRuleEngine()
	require.NoError(t, err)
	return e
}

func callerCtx(org, branch id.ID, main bool, roles ...string) context.Context {
	user := &appctx.UserContext{UserID: id.New().String(), Roles: roles}
	ctx := appctx.WithUser(context.Background(), user)
	return security.WithScope(ctx, security.NewBranchScope(user.UserID, &org, &branch, main))
}

func TestRuleEngine_Check(t *testing.T) {
	e := newEngine(t)

	assert.NoError(t, e.Check(`"instructor" in roles && main`))
	assert.NoError(t, e.Check(`org == "x" || branch.startsWith("a")`))

	err := e.Check(`roles.size()`)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "non-boolean rule")

	err = e.Check(`tenant == "x"`)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "unknown variable")
}

func TestFlagCache_MostSpecificScopeWins(t *testing.T) {
	org, downtown, uptown := id.New(), id.New(), id.New()

	global := settings.NewFeatureFlag(security.FlagSelfEnrollment, true)
	orgOff := settings.NewFeatureFlag(security.FlagSelfEnrollment, false)
	orgOff.Scope, orgOff.OrganizationID = security.FlagScopeOrganization, &org
	branchOn := settings.NewFeatureFlag(security.FlagSelfEnrollment, true)
	branchOn.Scope, branchOn.BranchID = security.FlagScopeBranch, &downtown

	src := &staticFlags{rows: []*settings.FeatureFlag{global, orgOff, branchOn}}
	c := NewFlagCache(src, newEngine(t), nil)
	require.NoError(t, c.Reload(context.Background()))
	assert.Equal(t, 3, c.Len())

	assert.True(t, c.IsEnabled(callerCtx(org, downtown, false), security.FlagSelfEnrollment))
	assert.False(t, c.IsEnabled(callerCtx(org, uptown, false), security.FlagSelfEnrollment))
	assert.True(t, c.IsEnabled(callerCtx(id.New(), id.New(), false), security.FlagSelfEnrollment))
	assert.False(t, c.IsEnabled(context.Background(), security.FlagCertificatesPDF))
}

func TestFlagCache_RuleMustHold(t *testing.T) {
	org, branch := id.New(), id.New()
	f := settings.NewFeatureFlag(security.FlagCertificatesPDF, true)
	f.Rule = `"instructor" in roles && main`
	broken := settings.NewFeatureFlag(security.FlagCouponStacking, true)
	broken.Rule = `roles +`

	c := NewFlagCache(&staticFlags{rows: []*settings.FeatureFlag{f, broken}}, newEngine(t), nil)
	require.NoError(t, c.Reload(context.Background()))

	assert.True(t, c.IsEnabled(callerCtx(org, branch, true, "instructor"), security.FlagCertificatesPDF))
	assert.False(t, c.IsEnabled(callerCtx(org, branch, false, "instructor"), security.FlagCertificatesPDF))
	assert.False(t, c.IsEnabled(callerCtx(org, branch, true, "student"), security.FlagCertificatesPDF))
	assert.False(t, c.IsEnabled(callerCtx(org, branch, true), security.FlagCouponStacking), "rule that does not compile disables the flag")
}

func TestFlagCache_ReloadPicksUpChanges(t *testing.T) {
	src := &staticFlags{}
	c := NewFlagCache(src, newEngine(t), nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	ctx := callerCtx(id.New(), id.New(), false)
	assert.False(t, c.IsEnabled(ctx, security.FlagSelfEnrollment))

	src.rows = []*settings.FeatureFlag{settings.NewFeatureFlag(security.FlagSelfEnrollment, true)}
	require.NoError(t, c.Reload(context.Background()))
	assert.True(t, c.IsEnabled(ctx, security.FlagSelfEnrollment))
}

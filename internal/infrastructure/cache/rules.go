package cache

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"lms/internal/core/apperror"
	appctx "lms/internal/core/context"
	"lms/internal/core/security"
)

// RuleEngine compiles feature flag rules. A rule is a boolean CEL
// expression over the caller:
//
//	org    string        organization id, "" when none
//	branch string        branch id, "" when none
//	user   string        user id
//	main   bool          caller sits in the main branch
//	roles  list(string)  role codes
//
// Example: `"instructor" in roles && main`.
type RuleEngine struct {
	env *cel.Env
}

func NewRuleEngine() (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("org", cel.StringType),
		cel.Variable("branch", cel.StringType),
		cel.Variable("user", cel.StringType),
		cel.Variable("main", cel.BoolType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &RuleEngine{env: env}, nil
}

// Compile type-checks rule and returns a reusable program.
func (e *RuleEngine) Compile(rule string) (cel.Program, error) {
	ast, iss := e.env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewFieldValidation("rule", iss.Err().Error())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperror.NewFieldValidation("rule", "rule must evaluate to a boolean")
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, apperror.NewFieldValidation("rule", err.Error())
	}
	return prg, nil
}

// Check implements settings.RuleChecker.
func (e *RuleEngine) Check(rule string) error {
	_, err := e.Compile(rule)
	return err
}

// Eval runs prg against the caller in ctx. Evaluation errors count as false.
func (e *RuleEngine) Eval(ctx context.Context, prg cel.Program) bool {
	out, _, err := prg.ContextEval(ctx, ruleInput(ctx))
	if err != nil {
		return false
	}
	v, ok := out.Value().(bool)
	return ok && v
}

func ruleInput(ctx context.Context) map[string]any {
	in := map[string]any{"org": "", "branch": "", "user": "", "main": false, "roles": []string{}}
	if scope := security.GetScope(ctx); scope != nil {
		in["user"] = scope.UserID
		in["main"] = scope.IsMainBranch
		if scope.OrganizationID != nil {
			in["org"] = scope.OrganizationID.String()
		}
		if scope.BranchID != nil {
			in["branch"] = scope.BranchID.String()
		}
	}
	if u := appctx.GetUser(ctx); u != nil && u.Roles != nil {
		in["roles"] = u.Roles
	}
	return in
}

package tenant

import "errors"

var (
	// ErrBranchNotFound is returned when a branch id does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrNoCurrentBranch is returned when a user has neither a current branch
	// pointer nor a default membership.
	ErrNoCurrentBranch = errors.New("user has no current branch")
)

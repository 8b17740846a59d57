package security

import (
	sq "github.com/Masterminds/squirrel"
)

// Predicate renders the visibility as a WHERE clause on column.
// It returns nil when every row is visible.
func Predicate(v Visibility, column string) sq.Sqlizer {
	switch {
	case v.All:
		return nil
	case v.BranchID != nil:
		return sq.Eq{column: *v.BranchID}
	default:
		return sq.Expr("FALSE")
	}
}

// ApplyVisibility adds the branch predicate to a select builder.
func ApplyVisibility(b sq.SelectBuilder, v Visibility, column string) sq.SelectBuilder {
	if p := Predicate(v, column); p != nil {
		return b.Where(p)
	}
	return b
}

package courses

import (
	"context"
	"strings"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
)

// Module groups lessons inside a course.
type Module struct {
	entity.BaseEntity
	entity.BranchOwned

	CourseID id.ID  `db:"course_id" json:"courseId"`
	Title    string `db:"title" json:"title"`
	Position int    `db:"position" json:"position"`
}

// NewModule creates a module of course.
func NewModule(course *Course, title string, position int) *Module {
	m := &Module{
		BaseEntity: entity.NewBaseEntity(),
		CourseID:   course.ID,
		Title:      strings.TrimSpace(title),
		Position:   position,
	}
	entity.InheritBranch(m, course)
	return m
}

func (m *Module) EntityName() string { return "course_module" }

func (m *Module) Validate(ctx context.Context) error {
	if id.IsNil(m.CourseID) {
		return apperror.NewFieldValidation("courseId", "course is required")
	}
	if m.Title == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	if m.Position < 0 {
		return apperror.NewFieldValidation("position", "position cannot be negative")
	}
	return nil
}

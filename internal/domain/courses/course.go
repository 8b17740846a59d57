// Package courses provides the course catalog: courses, their pricing and modules.
package courses

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
)

// Status is the publication state of a course.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Visibility controls catalog listing.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// Level is the advertised difficulty.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Course is a branch-owned unit of learning content.
type Course struct {
	entity.BaseEntity
	entity.BranchOwned

	Title        string     `db:"title" json:"title"`
	Slug         string     `db:"slug" json:"slug"`
	Summary      string     `db:"summary" json:"summary"`
	Description  string     `db:"description" json:"description"`
	Status       Status     `db:"status" json:"status"`
	Visibility   Visibility `db:"visibility" json:"visibility"`
	Level        Level      `db:"level" json:"level"`
	LanguageCode string     `db:"language_code" json:"languageCode"`
	PublishedAt  *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	ArchivedAt   *time.Time `db:"archived_at" json:"archivedAt,omitempty"`
}

// NewCourse creates a draft course. An empty slug is derived from the title.
func NewCourse(title, slug string) *Course {
	c := &Course{
		BaseEntity:   entity.NewBaseEntity(),
		Title:        strings.TrimSpace(title),
		Slug:         strings.TrimSpace(slug),
		Status:       StatusDraft,
		Visibility:   VisibilityPublic,
		Level:        LevelBeginner,
		LanguageCode: "en",
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	return c
}

// EntityName is used in authorization errors.
func (c *Course) EntityName() string { return "course" }

// Validate implements entity.Validatable.
func (c *Course) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Title) == "" {
		return apperror.NewFieldValidation("title", "title is required")
	}
	if !slugPattern.MatchString(c.Slug) {
		return apperror.NewFieldValidation("slug", "slug must be lower-case words separated by dashes").
			WithDetail("value", c.Slug)
	}
	switch c.Status {
	case StatusDraft, StatusPublished, StatusArchived:
	default:
		return apperror.NewFieldValidation("status", "unknown course status")
	}
	switch c.Visibility {
	case VisibilityPublic, VisibilityPrivate, VisibilityUnlisted:
	default:
		return apperror.NewFieldValidation("visibility", "unknown visibility")
	}
	switch c.Level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
	default:
		return apperror.NewFieldValidation("level", "unknown level")
	}
	return nil
}

// IsPublished reports whether students can enroll.
func (c *Course) IsPublished() bool {
	return c.Active && c.Status == StatusPublished
}

// Publish moves a draft course to published.
func (c *Course) Publish(now time.Time) error {
	switch c.Status {
	case StatusPublished:
		return nil
	case StatusArchived:
		return apperror.NewInvalidTransition("course", string(c.Status), string(StatusPublished))
	}
	c.Status = StatusPublished
	c.PublishedAt = &now
	return nil
}

// Archive hides the course from the catalog. Existing enrollments keep access.
func (c *Course) Archive(now time.Time) error {
	if c.Status == StatusArchived {
		return nil
	}
	c.Status = StatusArchived
	c.ArchivedAt = &now
	return nil
}

// Slugify turns a title into a slug: "Intro to Go!" -> "intro-to-go".
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

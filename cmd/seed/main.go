// Package main seeds a database from a YAML fixture: organizations with
// their branches, number sequences and courses, and users with their roles
// and memberships. Rows that already exist are left untouched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"lms/internal/app"
	"lms/internal/core/apperror"
	"lms/internal/core/id"
	corenumerator "lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/domain/auth"
	"lms/internal/domain/courses"
	"lms/internal/domain/settings"
	"lms/internal/infrastructure/storage/postgres"
	"lms/pkg/logger"
)

// Fixture is the root of the seed file.
type Fixture struct {
	Organizations []OrganizationSeed `yaml:"organizations"`
	Users         []UserSeed         `yaml:"users"`
}

type OrganizationSeed struct {
	Code     string       `yaml:"code"`
	Name     string       `yaml:"name"`
	Type     string       `yaml:"type"`
	Currency string       `yaml:"currency"`
	Branches []BranchSeed `yaml:"branches"`
}

type BranchSeed struct {
	Code      string         `yaml:"code"`
	Name      string         `yaml:"name"`
	Main      bool           `yaml:"main"`
	Timezone  string         `yaml:"timezone"`
	Sequences []SequenceSeed `yaml:"sequences"`
	Courses   []CourseSeed   `yaml:"courses"`
}

type SequenceSeed struct {
	Type        string `yaml:"type"`
	Prefix      string `yaml:"prefix"`
	Padding     int    `yaml:"padding"`
	Start       int64  `yaml:"start"`
	ResetYearly bool   `yaml:"resetYearly"`
}

type CourseSeed struct {
	Title   string `yaml:"title"`
	Slug    string `yaml:"slug"`
	Price   string `yaml:"price"`
	Publish bool   `yaml:"publish"`
}

type UserSeed struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FullName  string   `yaml:"fullName"`
	Superuser bool     `yaml:"superuser"`
	Roles     []string `yaml:"roles"`
	// Branches are "org/branch" code pairs; the first one becomes the default.
	Branches []string `yaml:"branches"`
}

func main() {
	path := flag.String("file", "seed.yaml", "path to the seed fixture")
	flag.Parse()

	log, err := app.NewLogger("lms-seed")
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalw("failed to read fixture", "file", *path, "error", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		log.Fatalw("failed to parse fixture", "file", *path, "error", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer a.Close()

	if err := postgres.Migrate(ctx, a.Pool); err != nil {
		log.Fatalw("migrations failed", "error", err)
	}

	s := &seeder{app: a, log: log, branches: make(map[string]*settings.Branch)}
	if err := s.run(security.WithScope(ctx, security.SystemScope()), fx); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed successfully")
}

type seeder struct {
	app      *app.App
	log      *logger.Logger
	branches map[string]*settings.Branch // "org/branch" -> row
}

func (s *seeder) run(ctx context.Context, fx Fixture) error {
	for _, o := range fx.Organizations {
		if err := s.seedOrganization(ctx, o); err != nil {
			return fmt.Errorf("organization %s: %w", o.Code, err)
		}
	}
	for _, u := range fx.Users {
		if err := s.seedUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
	}
	return nil
}

func (s *seeder) seedOrganization(ctx context.Context, in OrganizationSeed) error {
	orgID, err := s.lookup(ctx, `SELECT id FROM organizations WHERE code = lower($1)`, in.Code)
	if err != nil {
		return err
	}
	if orgID == nil {
		org := settings.NewOrganization(in.Code, in.Name)
		if in.Type != "" {
			org.OrgType = settings.OrgType(in.Type)
		}
		if in.Currency != "" {
			org.DefaultCurrency = in.Currency
		}
		if err := s.app.Services.Organizations.Create(ctx, org); err != nil {
			return err
		}
		orgID = &org.ID
	} else {
		s.log.Infow("organization exists", "code", in.Code)
	}

	for _, b := range in.Branches {
		branch, err := s.seedBranch(ctx, *orgID, b)
		if err != nil {
			return fmt.Errorf("branch %s: %w", b.Code, err)
		}
		s.branches[in.Code+"/"+b.Code] = branch

		// Courses are created as the branch itself so ownership is injected.
		scoped := security.WithScope(ctx, security.NewBranchScope("", orgID, &branch.ID, branch.IsMainBranch))
		for _, seq := range b.Sequences {
			if err := s.seedSequence(ctx, *orgID, branch.ID, seq); err != nil {
				return fmt.Errorf("sequence %s: %w", seq.Type, err)
			}
		}
		currency := in.Currency
		if currency == "" {
			currency = "USD"
		}
		for _, c := range b.Courses {
			if err := s.seedCourse(scoped, branch.ID, currency, c); err != nil {
				return fmt.Errorf("course %s: %w", c.Title, err)
			}
		}
	}
	return nil
}

func (s *seeder) seedBranch(ctx context.Context, orgID id.ID, in BranchSeed) (*settings.Branch, error) {
	existing, err := s.lookup(ctx, `SELECT id FROM branches WHERE organization_id = $1 AND code = lower($2)`, orgID, in.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.app.Services.Branches.Get(ctx, *existing)
	}

	b := settings.NewBranch(orgID, in.Code, in.Name)
	b.IsMainBranch = in.Main
	if in.Timezone != "" {
		b.Timezone = in.Timezone
	}
	if err := s.app.Services.Branches.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Infow("branch created", "code", b.Code, "branch_id", b.ID, "main", b.IsMainBranch)
	return b, nil
}

func (s *seeder) seedSequence(ctx context.Context, orgID, branchID id.ID, in SequenceSeed) error {
	cfg := corenumerator.DefaultConfig(in.Prefix)
	if in.Padding > 0 {
		cfg.Padding = in.Padding
	}
	if in.Start > 0 {
		cfg.NextNumber = in.Start
	}
	cfg.ResetYearly = in.ResetYearly

	target := settings.SequenceTarget{
		Type:           corenumerator.SequenceType(in.Type),
		OrganizationID: &orgID,
		BranchID:       &branchID,
	}
	_, err := s.app.Services.Sequences.Provision(ctx, target, cfg)
	if isDuplicate(err) {
		return nil
	}
	return err
}

func (s *seeder) seedCourse(ctx context.Context, branchID id.ID, currency string, in CourseSeed) error {
	c := courses.NewCourse(in.Title, in.Slug)
	existing, err := s.lookup(ctx, `SELECT id FROM courses WHERE branch_id = $1 AND slug = $2`, branchID, c.Slug)
	if err != nil || existing != nil {
		return err
	}

	svc := s.app.Services.Courses
	if err := svc.Create(ctx, c); err != nil {
		return err
	}
	if in.Price != "" {
		price, err := decimal.NewFromString(in.Price)
		if err != nil {
			return fmt.Errorf("price %q: %w", in.Price, err)
		}
		p := courses.NewPricing(c.ID, currency)
		if price.IsPositive() {
			p.PricingType = courses.PricingOneTime
			p.Price = price
		}
		if _, err := svc.SetPricing(ctx, c.ID, p); err != nil {
			return err
		}
	}
	if in.Publish {
		if _, err := svc.Publish(ctx, c.ID); err != nil {
			return err
		}
	}
	s.log.Infow("course created", "slug", c.Slug, "course_id", c.ID)
	return nil
}

func (s *seeder) seedUser(ctx context.Context, in UserSeed) error {
	userID, err := s.lookup(ctx, `SELECT id FROM users WHERE email = lower($1)`, in.Email)
	if err != nil {
		return err
	}
	if userID == nil {
		u, err := s.app.Services.Auth.Register(ctx, auth.RegisterRequest{
			Email:    in.Email,
			Password: in.Password,
			FullName: in.FullName,
		})
		if err != nil {
			return err
		}
		userID = &u.ID
		s.log.Infow("user created", "email", u.Email, "user_id", u.ID)
	}

	if in.Superuser {
		_, err := s.app.Pool.Exec(ctx,
			`UPDATE users SET is_superuser = TRUE, email_verified_at = COALESCE(email_verified_at, now()) WHERE id = $1`, *userID)
		if err != nil {
			return fmt.Errorf("promote superuser: %w", err)
		}
	}

	for _, role := range in.Roles {
		if err := s.app.Services.Auth.AssignRole(ctx, *userID, role); err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
	}

	for i, key := range in.Branches {
		branch, ok := s.branches[key]
		if !ok {
			return fmt.Errorf("unknown branch %q", key)
		}
		_, err := s.app.Services.Memberships.Add(ctx, *userID, branch.ID, firstOr(in.Roles, security.RoleStudent), i == 0)
		if err != nil && !isDuplicate(err) {
			return fmt.Errorf("membership %s: %w", key, err)
		}
	}
	return nil
}

// lookup returns the id selected by query, or nil when there is no row.
func (s *seeder) lookup(ctx context.Context, query string, args ...any) (*id.ID, error) {
	var out id.ID
	err := s.app.Pool.QueryRow(ctx, query, args...).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func isDuplicate(err error) bool {
	return err != nil && (apperror.HasCode(err, apperror.CodeDuplicate) || apperror.HasCode(err, apperror.CodeConflict))
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}

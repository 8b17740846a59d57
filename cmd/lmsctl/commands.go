package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"lms/internal/app"
	"lms/internal/core/id"
	corenumerator "lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/domain"
	"lms/internal/domain/settings"
	"lms/internal/infrastructure/storage/postgres"
	"lms/pkg/logger"
)

// Globals connects lazily so --help never touches the database.
type Globals struct {
	app *app.App
}

func (g *Globals) connect(ctx context.Context) (context.Context, *app.App, error) {
	if g.app == nil {
		log, err := app.NewLogger("lmsctl")
		if err != nil {
			return ctx, nil, err
		}
		cfg, err := app.LoadConfig()
		if err != nil {
			return ctx, nil, err
		}
		cfg.MaxConns = 2
		ctx = logger.WithLogger(ctx, log)
		if g.app, err = app.New(ctx, cfg, log); err != nil {
			return ctx, nil, err
		}
	}
	// The CLI acts as the installation operator.
	ctx = logger.WithLogger(ctx, g.app.Log)
	return security.WithScope(ctx, security.SystemScope()), g.app, nil
}

func (g *Globals) Close() {
	if g.app != nil {
		g.app.Close()
	}
}

type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" default:"1" help:"Apply pending migrations"`
	Status MigrateStatusCmd `cmd:"" help:"List migrations and whether they are applied"`
	DownTo MigrateDownToCmd `cmd:"" name:"down-to" help:"Roll back to a version"`
}

func (g *Globals) migrator(ctx context.Context) (context.Context, *postgres.Migrator, error) {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return ctx, nil, err
	}
	m, err := postgres.NewMigrator(a.Pool)
	return ctx, m, err
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(ctx context.Context, g *Globals) error {
	ctx, m, err := g.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}

type MigrateStatusCmd struct{}

func (c *MigrateStatusCmd) Run(ctx context.Context, g *Globals) error {
	ctx, m, err := g.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFILE\tSTATE\tAPPLIED AT")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.Source.Path, s.State, applied)
	}
	return w.Flush()
}

type MigrateDownToCmd struct {
	Version int64 `arg:"" help:"Version to keep; 0 rolls back everything"`
}

func (c *MigrateDownToCmd) Run(ctx context.Context, g *Globals) error {
	ctx, m, err := g.migrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.DownTo(ctx, c.Version)
}

// --- organizations ---

type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization"`
	List   OrgListCmd   `cmd:"" help:"List organizations"`
}

type OrgCreateCmd struct {
	Code       string `required:"" help:"Unique organization code"`
	Name       string `required:""`
	Type       string `default:"school" enum:"school,university,company,creator"`
	Currency   string `default:"USD"`
	MainBranch string `name:"main-branch" default:"hq" help:"Code of the main branch to create; empty skips it"`
}

func (c *OrgCreateCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	org := settings.NewOrganization(c.Code, c.Name)
	org.OrgType = settings.OrgType(c.Type)
	org.DefaultCurrency = strings.ToUpper(c.Currency)
	if err := a.Services.Organizations.Create(ctx, org); err != nil {
		return err
	}
	fmt.Printf("organization %s created: %s\n", org.Code, org.ID)

	if c.MainBranch == "" {
		return nil
	}
	b := settings.NewBranch(org.ID, c.MainBranch, c.Name)
	b.IsMainBranch = true
	b.IsDefault = true
	if err := a.Services.Branches.Create(ctx, b); err != nil {
		return err
	}
	fmt.Printf("main branch %s created: %s\n", b.Code, b.ID)
	return nil
}

type OrgListCmd struct {
	Limit int `default:"50"`
}

func (c *OrgListCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	f := domain.DefaultListFilter()
	f.Limit = c.Limit
	f.OrderBy = "name"
	res, err := a.Services.Organizations.List(ctx, f)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tTYPE")
	for _, o := range res.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.Code, o.Name, o.OrgType)
	}
	return w.Flush()
}

// --- branches ---

type BranchCmd struct {
	Create     BranchCreateCmd     `cmd:"" help:"Create a branch"`
	Invalidate BranchInvalidateCmd `cmd:"" help:"Drop a branch from the resolver caches"`
}

type BranchCreateCmd struct {
	Org      string `required:"" help:"Organization id"`
	Code     string `required:""`
	Name     string `required:""`
	Main     bool   `help:"Mark as the organization's main branch"`
	Timezone string `default:"UTC"`
}

func (c *BranchCreateCmd) Run(ctx context.Context, g *Globals) error {
	orgID, err := id.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("--org: %w", err)
	}
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	b := settings.NewBranch(orgID, c.Code, c.Name)
	b.IsMainBranch = c.Main
	b.Timezone = c.Timezone
	if err := a.Services.Branches.Create(ctx, b); err != nil {
		return err
	}
	fmt.Printf("branch %s created: %s\n", b.Code, b.ID)
	return nil
}

type BranchInvalidateCmd struct {
	ID string `arg:"" help:"Branch id"`
}

func (c *BranchInvalidateCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	a.Resolver.Invalidate(ctx, c.ID)
	fmt.Printf("branch %s invalidated\n", c.ID)
	return nil
}

// --- sequences ---

type SequenceCmd struct {
	Provision SequenceProvisionCmd `cmd:"" help:"Create a number sequence"`
	Peek      SequencePeekCmd      `cmd:"" help:"Show the next number without consuming it"`
	List      SequenceListCmd      `cmd:"" help:"List sequences"`
}

// TargetFlags are shared by the sequence commands.
type TargetFlags struct {
	Type   string `required:"" help:"enrollment, order, invoice, receipt, certificate or ticket"`
	Org    string `required:"" help:"Organization id"`
	Branch string `help:"Branch id; empty addresses the organization-wide series"`
}

func (t TargetFlags) resolve() (settings.SequenceTarget, error) {
	orgID, err := id.Parse(t.Org)
	if err != nil {
		return settings.SequenceTarget{}, fmt.Errorf("--org: %w", err)
	}
	out := settings.SequenceTarget{Type: corenumerator.SequenceType(t.Type), OrganizationID: &orgID}
	if t.Branch == "" {
		out.OrganizationWide = true
		return out, nil
	}
	branchID, err := id.Parse(t.Branch)
	if err != nil {
		return out, fmt.Errorf("--branch: %w", err)
	}
	out.BranchID = &branchID
	return out, nil
}

type SequenceProvisionCmd struct {
	TargetFlags `embed:""`

	Prefix      string `default:""`
	Padding     int    `default:"6"`
	Start       int64  `default:"1"`
	ResetYearly bool   `name:"reset-yearly"`
}

func (c *SequenceProvisionCmd) Run(ctx context.Context, g *Globals) error {
	target, err := c.resolve()
	if err != nil {
		return err
	}
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	seq, err := a.Services.Sequences.Provision(ctx, target, corenumerator.Config{
		Prefix:      c.Prefix,
		Padding:     c.Padding,
		NextNumber:  c.Start,
		ResetYearly: c.ResetYearly,
	})
	if err != nil {
		return err
	}
	fmt.Printf("sequence %s provisioned, next number %s\n", seq.ID, seq.Current())
	return nil
}

type SequencePeekCmd struct {
	TargetFlags `embed:""`
}

func (c *SequencePeekCmd) Run(ctx context.Context, g *Globals) error {
	target, err := c.resolve()
	if err != nil {
		return err
	}
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	next, err := a.Services.Sequences.Peek(ctx, target)
	if err != nil {
		return err
	}
	fmt.Println(next)
	return nil
}

type SequenceListCmd struct{}

func (c *SequenceListCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	seqs, err := a.Services.Sequences.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tORGANIZATION\tBRANCH\tNEXT\tYEARLY")
	for _, s := range seqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", s.SeqType, idOrDash(s.OrganizationID), idOrDash(s.BranchID), s.Current(), s.ResetYearly)
	}
	return w.Flush()
}

func idOrDash(v *id.ID) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

// --- jobs ---

type JobCmd struct {
	Run  JobRunCmd  `cmd:"" help:"Run one job now"`
	List JobListCmd `cmd:"" help:"List job names"`
}

type JobRunCmd struct {
	Name string `arg:"" help:"Job name"`
}

func (c *JobRunCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	if err := a.Flags.Reload(ctx); err != nil {
		return err
	}
	s, err := a.Jobs(app.DefaultJobsConfig())
	if err != nil {
		return err
	}
	n, err := s.RunNow(ctx, c.Name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d rows\n", c.Name, n)
	return nil
}

type JobListCmd struct{}

func (c *JobListCmd) Run(ctx context.Context, g *Globals) error {
	ctx, a, err := g.connect(ctx)
	if err != nil {
		return err
	}
	s, err := a.Jobs(app.DefaultJobsConfig())
	if err != nil {
		return err
	}
	names := s.Names()
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

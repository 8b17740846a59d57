// Package main is the administrative CLI: migrations, tenant bootstrap,
// number sequences and one-off job runs.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Migrate  MigrateCmd  `cmd:"" help:"Manage database migrations"`
		Org      OrgCmd      `cmd:"" help:"Manage organizations"`
		Branch   BranchCmd   `cmd:"" help:"Manage branches"`
		Sequence SequenceCmd `cmd:"" help:"Manage number sequences"`
		Job      JobCmd      `cmd:"" help:"Run maintenance jobs"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("lmsctl"),
		kong.Description("LMS administration tool. Reads DATABASE_URL and JWT_SECRET from the environment."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)))

	g := &Globals{}
	defer g.Close()
	cmd.FatalIfErrorf(cmd.Run(g))
}

package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/studentportal/cmd/cli/internal/commands"
	"github.com/wolfeidau/studentportal/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Register commands.RegisterCmd `cmd:"" help:"Create an account and sign in"`
		Login    commands.LoginCmd    `cmd:"" help:"Sign in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out"`
		Me       commands.MeCmd       `cmd:"" help:"Show the signed-in user"`
		Courses  commands.CoursesCmd  `cmd:"" help:"List or search courses"`
		Course   commands.CourseCmd   `cmd:"" help:"Show one course"`
		Enroll   commands.EnrollCmd   `cmd:"" help:"Enroll in a course"`

		Server   string `help:"Portal server URL" default:"http://localhost:3000" env:"PORTALCTL_SERVER"`
		StateDir string `help:"Directory for saved sessions (default ~/.portalctl)" default:"" env:"PORTALCTL_STATE_DIR"`
		CacheDir string `help:"Directory for the HTTP response cache (default in memory)" default:"" env:"PORTALCTL_CACHE_DIR"`
		Debug    bool   `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("portalctl"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	zlog.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{
		Debug:    cli.Debug,
		Version:  version,
		Server:   cli.Server,
		StateDir: cli.StateDir,
		CacheDir: cli.CacheDir,
	})
	cmd.FatalIfErrorf(err)
}

package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/internal/commands"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	v, c := version, commit
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", v, c)
}

func main() {
	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "farmbot",
		Usage:     "Farm resources in a running game client",
		UsageText: "farmbot [global options] command [command options]",
		Description: `Farmbot drives the game through screen capture, OCR and synthetic input,
visiting resource stations in priority order and recovering from crashes,
disconnects and stray menus on its own.

Run 'farmbot' with no arguments to open the control panel.
Run 'farmbot run' to farm headless until interrupted.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); overrides log.level",
				Sources:     cli.EnvVars("FARMBOT_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file; overrides log.file",
				Sources:     cli.EnvVars("FARMBOT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("FARMBOT_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			closer, err := flags.Setup()
			if err != nil {
				return ctx, err
			}
			logCloser = closer
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	guiCmd := commands.NewGuiCmd(flags)

	app = guiCmd.Register(app)
	app = commands.NewRunCmd(flags).Register(app)
	app = commands.NewProbeCmd(flags).Register(app)
	app = commands.NewStateCmd(flags).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)

	// The control panel is the default when no subcommand is given.
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'farmbot --help' for usage", c.Args().First())
		}
		return guiCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

// Command probe matches templates against a saved screenshot without
// starting the rest of farmbot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/internal/commands"
)

func main() {
	var logCloser func()
	flags := &commands.Flags{}

	app := commands.NewProbeCmd(flags).Command()
	app.Flags = append(app.Flags,
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to config file",
			Value:       commands.DefaultConfigPath(),
			Destination: &flags.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &flags.LogLevel,
		},
	)
	app.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		closer, err := flags.Setup()
		if err != nil {
			return ctx, err
		}
		logCloser = closer
		return ctx, nil
	}
	app.After = func(ctx context.Context, c *cli.Command) error {
		if logCloser != nil {
			logCloser()
		}
		return nil
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

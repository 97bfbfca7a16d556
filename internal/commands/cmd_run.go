package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/internal/farm"
)

type RunCmd struct {
	flags *Flags

	// flags
	display int
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the farm loop without the control panel",
		UsageText: "farmbot run [--display N]",
		Description: `Runs the enabled stations until interrupted. SIGINT or SIGTERM stops the
run at the next input or wait; an unrecoverable failure ends it with an error.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "display",
				Aliases:     []string{"d"},
				Usage:       "display index to capture (overrides screen.display)",
				Destination: &cmd.display,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot := farm.New(cmd.flags.Config, cmd.flags.Log)
	if c.IsSet("display") {
		bot.SetDisplayID(cmd.display)
	}

	if err := bot.Start(ctx); err != nil {
		return err
	}
	return bot.Wait()
}

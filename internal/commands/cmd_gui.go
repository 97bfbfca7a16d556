package commands

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/app/control"
	"github.com/ConserveLee/farmbot/internal/farm"
	"github.com/ConserveLee/farmbot/internal/logger"
)

type GuiCmd struct {
	flags *Flags
}

// NewGuiCmd creates a new gui command
func NewGuiCmd(flags *Flags) *GuiCmd {
	return &GuiCmd{flags: flags}
}

// Register adds the gui command to the application
func (cmd *GuiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "gui",
		Usage:  "Open the control panel (default)",
		Action: cmd.Run,
	})

	return app
}

// Run opens the control panel and blocks until its window is closed. A run
// still in progress is stopped first.
func (cmd *GuiCmd) Run(ctx context.Context, _ *cli.Command) error {
	lines := binding.NewStringList()
	log, closeLog, err := logger.New(cmd.flags.Level(), cmd.flags.File(), logger.NewUISink(lines))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bot := farm.New(cmd.flags.Config, log)
	bot.SetDisplayID(cmd.flags.Config.Screen.Display)

	a := app.New()
	win := a.NewWindow("Farmbot")
	win.Resize(fyne.NewSize(560, 680))

	tabs := container.NewAppTabs(
		container.NewTabItem("Control", control.NewControlPanel(ctx, bot, lines, log)),
		container.NewTabItem("Templates", control.NewTemplatesPanel(win, cmd.flags.Config, log)),
	)
	tabs.SetTabLocation(container.TabLocationTop)

	// Stop the run while the event loop is still alive to deliver its
	// final status.
	win.SetCloseIntercept(func() {
		go func() {
			bot.Stop()
			fyne.Do(win.Close)
		}()
	})

	win.SetContent(tabs)
	win.ShowAndRun()
	return nil
}

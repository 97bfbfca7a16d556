package commands

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/engine/screen"
)

type ProbeCmd struct {
	flags *Flags

	// flags
	screenshot string
	assets     string
	templates  []string
	confidence float64
}

// NewProbeCmd creates a new probe command
func NewProbeCmd(flags *Flags) *ProbeCmd {
	return &ProbeCmd{flags: flags}
}

// Command returns the probe command on its own, for the standalone binary.
func (cmd *ProbeCmd) Command() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Match templates against a saved screenshot",
		UsageText: "farmbot probe --screenshot FILE [--template ID]...",
		Description: `Loads the template assets and reports where each one matches on the
screenshot, scaled to the virtual screen first. Use it to check new templates
and tune screen.tolerance and screen.confidence without touching the game.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "screenshot",
				Aliases:     []string{"s"},
				Usage:       "PNG screenshot to search",
				Required:    true,
				Destination: &cmd.screenshot,
			},
			&cli.StringFlag{
				Name:        "assets",
				Usage:       "template directory (defaults to screen.assets)",
				Destination: &cmd.assets,
			},
			&cli.StringSliceFlag{
				Name:        "template",
				Aliases:     []string{"t"},
				Usage:       "template id to probe, e.g. bed/spawn_button (repeatable; default all)",
				Destination: &cmd.templates,
			},
			&cli.FloatFlag{
				Name:        "confidence",
				Usage:       "match confidence (defaults to screen.confidence)",
				Destination: &cmd.confidence,
			},
		},
		Action: cmd.run,
	}
}

// Register adds the probe command to the application
func (cmd *ProbeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, cmd.Command())
	return app
}

func (cmd *ProbeCmd) run(_ context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	f, err := os.Open(cmd.screenshot)
	if err != nil {
		return err
	}
	defer f.Close()
	shot, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", cmd.screenshot, err)
	}

	assets := cmd.assets
	if assets == "" {
		assets = cfg.Screen.Assets
	}
	confidence := cmd.confidence
	if confidence == 0 {
		confidence = cfg.Screen.Confidence
	}

	opts := screen.Options{
		AssetsDir:     assets,
		Tolerance:     cfg.Screen.Tolerance,
		MinDistance:   cfg.Screen.MinDistance,
		VirtualWidth:  cfg.Screen.Width,
		VirtualHeight: cfg.Screen.Height,
	}
	searcher := screen.NewSearcher(opts, nil, cmd.flags.Log)
	if _, err := searcher.LoadTemplates(); err != nil {
		return err
	}

	frame := screen.Normalise(shot, opts.VirtualWidth, opts.VirtualHeight)
	searcher.SetCapture(func() (image.Image, error) { return frame, nil })

	ids := make([]engine.TemplateID, 0, len(cmd.templates))
	for _, t := range cmd.templates {
		ids = append(ids, engine.TemplateID(t))
	}
	if len(ids) == 0 {
		ids = searcher.Templates()
	}

	fmt.Fprintf(os.Stdout, "Screenshot %dx%d, virtual %dx%d, tolerance %.0f, confidence %.2f\n",
		shot.Bounds().Dx(), shot.Bounds().Dy(), opts.VirtualWidth, opts.VirtualHeight, opts.Tolerance, confidence)
	probe(os.Stdout, searcher, ids, confidence)
	return nil
}

// probe prints one line per template: its matches, or that it was not found.
func probe(w io.Writer, see engine.Perception, ids []engine.TemplateID, confidence float64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		matches := see.LocateAll(id, engine.Region{}, confidence)
		if len(matches) == 0 {
			fmt.Fprintf(w, "  %-32s not found\n", id)
			continue
		}
		fmt.Fprintf(w, "  %-32s %d match(es):", id, len(matches))
		for _, m := range matches {
			c := engine.Center(m)
			fmt.Fprintf(w, " (%d,%d)", c.X, c.Y)
		}
		fmt.Fprintln(w)
	}
}

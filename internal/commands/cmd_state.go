package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/ConserveLee/farmbot/internal/station"
	"github.com/ConserveLee/farmbot/internal/store"
)

type StateCmd struct {
	flags *Flags

	// flags
	laps int
}

// NewStateCmd creates a new state command
func NewStateCmd(flags *Flags) *StateCmd {
	return &StateCmd{flags: flags}
}

// Register adds the state command to the application
func (cmd *StateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "state",
		Usage: "Inspect or reset persisted station state",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List persisted station state and recent laps",
				UsageText: "farmbot state ls [--laps N]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "laps",
						Aliases:     []string{"n"},
						Usage:       "number of recent laps to show",
						Value:       5,
						Destination: &cmd.laps,
					},
				},
				Action: cmd.list,
			},
			{
				Name:      "reset",
				Usage:     "Forget the persisted state of a station",
				UsageText: "farmbot state reset <station>",
				Description: `The station starts from its first bed and phase on the next run, and
interval stations are ready at once.`,
				Action: cmd.reset,
			},
		},
	})

	return app
}

func (cmd *StateCmd) open() (*store.SQLite, error) {
	path := cmd.flags.Config.State.DB
	if path == "" {
		return nil, fmt.Errorf("state.db is not configured")
	}
	return store.OpenSQLite(path, cmd.flags.Log)
}

func (cmd *StateCmd) list(ctx context.Context, _ *cli.Command) error {
	st, err := cmd.open()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("list state: %w", err)
	}
	laps, err := st.Laps(ctx, cmd.laps)
	if err != nil {
		return fmt.Errorf("list laps: %w", err)
	}

	printState(os.Stdout, records, laps, time.Now())
	return nil
}

func (cmd *StateCmd) reset(ctx context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("station name required")
	}

	st, err := cmd.open()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Reset(ctx, name); err != nil {
		return fmt.Errorf("reset %s: %w", name, err)
	}
	fmt.Fprintf(os.Stderr, "Reset %s\n", name)
	return nil
}

func printState(w io.Writer, records []store.Record, laps []store.Lap, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No station state stored")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STATION\tPHASE\tCURSOR\tLAST COMPLETED\tREADY AT\tSIGNALLED")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%t\n",
				r.Station, phaseName(r), r.Cursor, ago(r.LastCompleted, now), ago(r.ReadyAt, now), r.Signalled)
		}
		_ = tw.Flush()
	}

	if len(laps) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAP\tFINISHED\tTOOK\tPRODUCED\tRUN")
	for _, l := range laps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			l.Number, ago(l.FinishedAt, now), l.Took.Round(time.Second), humanize.Comma(int64(l.Produced)), shortID(l.RunID))
	}
	_ = tw.Flush()
}

func phaseName(r store.Record) string {
	if r.Station == "grinding" {
		return station.GrindPhase(r.Phase).String()
	}
	return strconv.Itoa(r.Phase)
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

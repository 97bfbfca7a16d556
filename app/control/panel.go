// Package control is the desktop control panel: run control, live log and
// statistics, and a template cropper for authoring assets.
package control

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"
	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/farm"
	"github.com/ConserveLee/farmbot/internal/station"
)

const statsRefresh = 2 * time.Second

// NewControlPanel creates the run control tab. lines is the list the
// logger's UI sink writes to; ctx bounds every run started from the panel.
func NewControlPanel(ctx context.Context, bot *farm.Bot, lines binding.StringList, log zerolog.Logger) fyne.CanvasObject {
	// --- Data Binding ---
	statusData := binding.NewString()
	_ = statusData.Set("Status: Ready")
	statsData := binding.NewString()
	_ = statsData.Set("No run yet")

	bot.OnStatus = func(msg string) {
		fyne.Do(func() { _ = statusData.Set("Status: " + msg) })
	}

	// 1. Screen Selector
	displayOptions := displayOptions()
	displaySelect := widget.NewSelect(displayOptions, func(selected string) {
		id := parseDisplay(selected)
		bot.SetDisplayID(id)
		log.Info().Int("display", id).Msg("display selected")
	})
	displaySelect.SetSelected(displayOptions[0])

	// 2. Status, stats & logs
	statusLabel := widget.NewLabelWithData(statusData)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	statsLabel := widget.NewLabelWithData(statsData)

	logList := widget.NewListWithData(
		lines,
		func() fyne.CanvasObject { return widget.NewLabel("Log entry template") },
		func(i binding.DataItem, o fyne.CanvasObject) { o.(*widget.Label).Bind(i.(binding.String)) },
	)
	lines.AddListener(binding.NewDataListener(func() {
		list, _ := lines.Get()
		if len(list) > 0 {
			logList.ScrollToBottom()
		}
	}))

	// 3. Buttons
	startBtn := widget.NewButton("Start", nil)
	pauseBtn := widget.NewButton("Pause", nil)
	resumeBtn := widget.NewButton("Resume", nil)
	stopBtn := widget.NewButton("Stop", nil)
	startBtn.Importance = widget.HighImportance

	idle := func() {
		startBtn.Enable()
		pauseBtn.Disable()
		resumeBtn.Disable()
		stopBtn.Disable()
		displaySelect.Enable()
	}
	idle()

	var stopTicker chan struct{}
	bot.OnStopped = func(err error) {
		fyne.Do(func() {
			idle()
			if stopTicker != nil {
				close(stopTicker)
				stopTicker = nil
			}
		})
	}

	startBtn.OnTapped = func() {
		if err := bot.Start(ctx); err != nil {
			log.Error().Err(err).Msg("start failed")
			_ = statusData.Set("Status: " + err.Error())
			return
		}
		startBtn.Disable()
		pauseBtn.Enable()
		stopBtn.Enable()
		displaySelect.Disable()

		stopTicker = make(chan struct{})
		go refreshStats(bot, statsData, stopTicker)
	}

	pauseBtn.OnTapped = func() {
		bot.Pause()
		pauseBtn.Disable()
		resumeBtn.Enable()
	}

	resumeBtn.OnTapped = func() {
		bot.Resume()
		resumeBtn.Disable()
		pauseBtn.Enable()
	}

	stopBtn.OnTapped = func() {
		stopBtn.Disable()
		pauseBtn.Disable()
		resumeBtn.Disable()
		_ = statusData.Set("Status: Stopping...")
		// Stop waits for the station in progress to unwind.
		go bot.Stop()
	}

	// --- Layout ---
	controls := container.NewVBox(
		container.NewHBox(widget.NewLabel("Screen:"), displaySelect),
		statusLabel,
		container.NewHBox(startBtn, pauseBtn, resumeBtn, stopBtn),
		widget.NewSeparator(),
		statsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Log:"),
	)

	return container.NewBorder(controls, nil, nil, nil, logList)
}

func refreshStats(bot *farm.Bot, out binding.String, stop <-chan struct{}) {
	ticker := time.NewTicker(statsRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			totals, current, ok := bot.Stats()
			if !ok {
				continue
			}
			text := formatStats(totals, current, time.Now())
			fyne.Do(func() { _ = out.Set(text) })
		}
	}
}

// displayOptions lists the active displays for the selector.
func displayOptions() []string {
	n := screenshot.NumActiveDisplays()
	var options []string
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		options = append(options, fmt.Sprintf("Display %d (%dx%d)", i, bounds.Dx(), bounds.Dy()))
	}
	if len(options) == 0 {
		options = []string{"Display 0 (Default)"}
	}
	return options
}

func parseDisplay(selected string) int {
	var id int
	if _, err := fmt.Sscanf(selected, "Display %d", &id); err != nil {
		return 0
	}
	return id
}

// formatStats renders the totals as a few short lines.
func formatStats(t station.Totals, current string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Running since %s, %s laps, %d recoveries",
		humanize.RelTime(t.Started, now, "ago", "from now"), humanize.Comma(int64(t.Laps)), t.Recoveries)
	if current != "" {
		fmt.Fprintf(&b, ", now at %s", current)
	}

	if len(t.Completions) > 0 {
		b.WriteString("\nCompleted: ")
		b.WriteString(joinCounts(t.Completions, t.Failures))
	}
	if len(t.Produced) > 0 {
		b.WriteString("\nProduced: ")
		b.WriteString(joinCounts(t.Produced, nil))
	}
	return b.String()
}

// joinCounts renders "name n" pairs sorted by name, with "(k failed)"
// appended where failed has an entry.
func joinCounts(counts, failed map[string]int) string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	for k := range failed {
		if _, ok := counts[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		s := fmt.Sprintf("%s %s", k, humanize.Comma(int64(counts[k])))
		if n := failed[k]; n > 0 {
			s += fmt.Sprintf(" (%d failed)", n)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

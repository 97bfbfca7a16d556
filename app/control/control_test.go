package control

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/station"
)

func TestParseDisplay(t *testing.T) {
	assert.Equal(t, 2, parseDisplay("Display 2 (2560x1440)"))
	assert.Equal(t, 0, parseDisplay("Display 0 (Default)"))
	assert.Equal(t, 0, parseDisplay("garbage"))
}

func TestFormatStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	totals := station.NewTotals(now.Add(-2 * time.Hour))
	totals.Laps = 1204
	totals.Recoveries = 3
	totals.Completions["crystal"] = 40
	totals.Completions["crop"] = 12
	totals.Failures["crop"] = 2
	totals.Failures["healing"] = 1
	totals.Produced["crystal"] = 1500

	got := formatStats(*totals, "crop", now)

	assert.Equal(t,
		"Running since 2 hours ago, 1,204 laps, 3 recoveries, now at crop\n"+
			"Completed: crop 12 (2 failed), crystal 40, healing 0 (1 failed)\n"+
			"Produced: crystal 1,500",
		got)
}

func TestFormatStats_Empty(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	got := formatStats(*station.NewTotals(now), "", now)
	assert.Equal(t, "Running since now, 0 laps, 0 recoveries", got)
}

func TestFitContain(t *testing.T) {
	frame := image.Rect(0, 0, 1280, 640)

	// wider view: bars left and right
	off, size := fitContain(fyne.NewSize(1000, 400), frame)
	assert.Equal(t, fyne.NewPos(100, 0), off)
	assert.Equal(t, fyne.NewSize(800, 400), size)

	// taller view: bars top and bottom
	off, size = fitContain(fyne.NewSize(640, 520), frame)
	assert.Equal(t, fyne.NewPos(0, 100), off)
	assert.Equal(t, fyne.NewSize(640, 320), size)

	off, size = fitContain(fyne.Size{}, frame)
	assert.Zero(t, off)
	assert.Zero(t, size)
}

func TestSelectionToFrame(t *testing.T) {
	frame := image.Rect(0, 0, 1280, 640)
	view := fyne.NewSize(640, 520) // frame drawn at 640x320, offset 100 down

	got := selectionToFrame(view, frame, fyne.NewPos(10, 110), fyne.NewPos(20, 130))
	assert.Equal(t, image.Rect(20, 20, 40, 60), got)

	// drag direction does not matter
	got = selectionToFrame(view, frame, fyne.NewPos(20, 130), fyne.NewPos(10, 110))
	assert.Equal(t, image.Rect(20, 20, 40, 60), got)

	// clipped to the drawn frame
	got = selectionToFrame(view, frame, fyne.NewPos(600, 0), fyne.NewPos(700, 120))
	assert.Equal(t, image.Rect(1200, 0, 1280, 40), got)

	// entirely in the letterbox
	assert.True(t, selectionToFrame(view, frame, fyne.NewPos(0, 0), fyne.NewPos(50, 90)).Empty())
}

func TestTemplatePath(t *testing.T) {
	p, err := templatePath("assets", "bed/map_open")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("assets", "bed", "map_open.png"), p)

	for _, bad := range []string{"", "..", "../secrets", "bed/../../x"} {
		_, err := templatePath("assets", bad)
		assert.Error(t, err, bad)
	}
}

func TestCropImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.Set(4, 5, color.RGBA{R: 255, A: 255})

	out := cropImage(src, image.Rect(3, 4, 6, 8))

	assert.Equal(t, image.Rect(0, 0, 3, 4), out.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.At(1, 1))
}

func TestSavePNGAndMissing(t *testing.T) {
	dir := t.TempDir()
	assert.Contains(t, missingSummary(filepath.Join(dir, "none")), "templates missing")

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	path, err := templatePath(dir, "bed/map_open")
	require.NoError(t, err)
	require.NoError(t, savePNG(path, img))

	_, err = os.Stat(path)
	require.NoError(t, err)

	have, err := existingTemplates(dir)
	require.NoError(t, err)
	assert.Contains(t, have, engine.TemplateID("bed/map_open"))
	assert.NotContains(t, strings.Split(missingSummary(dir), "\n"), "  bed/map_open")
}

func TestDragBox(t *testing.T) {
	frame := image.Rect(0, 0, 1280, 640)
	view := fyne.NewSize(640, 520)

	var d dragBox
	d.extend(fyne.NewPos(15, 115), fyne.NewDelta(5, 5)) // drag began at 10,110
	d.extend(fyne.NewPos(20, 130), fyne.NewDelta(5, 15))
	assert.True(t, d.active)

	assert.Equal(t, image.Rect(20, 20, 40, 60), d.finish(view, frame))
	assert.False(t, d.active)

	// a click-sized drag is not a template
	d.clear(fyne.NewPos(100, 200))
	d.extend(fyne.NewPos(101, 201), fyne.NewDelta(1, 1))
	assert.True(t, d.finish(view, frame).Empty())
}

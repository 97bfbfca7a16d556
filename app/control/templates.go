package control

import (
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/config"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/engine/screen"
	"github.com/ConserveLee/farmbot/internal/farm"
)

// NewTemplatesPanel creates the tab for capturing template images. Frames
// are scaled to the virtual screen before cropping so saved templates
// match what the searcher sees.
func NewTemplatesPanel(win fyne.Window, cfg *config.Config, log zerolog.Logger) fyne.CanvasObject {
	selectedDisplay := cfg.Screen.Display
	assets := cfg.Screen.Assets

	displayOptions := displayOptions()
	displaySelect := widget.NewSelect(displayOptions, func(selected string) {
		selectedDisplay = parseDisplay(selected)
	})
	if selectedDisplay < len(displayOptions) {
		displaySelect.SetSelected(displayOptions[selectedDisplay])
	}

	missingLabel := widget.NewLabel("")
	missingLabel.Wrapping = fyne.TextWrapWord
	refreshMissing := func() {
		missingLabel.SetText(missingSummary(assets))
	}
	refreshMissing()

	infoLabel := widget.NewLabel("1. Select the screen the game is on\n2. Capture, then drag a box around the target\n3. Save it under its template id")
	infoLabel.Alignment = fyne.TextAlignCenter

	cropBtn := widget.NewButton("Capture & Crop", func() {
		bounds := screenshot.GetDisplayBounds(selectedDisplay)
		img, err := screenshot.CaptureRect(bounds)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		frame := screen.Normalise(img, cfg.Screen.Width, cfg.Screen.Height)
		showCropperWindow(frame, assets, log, refreshMissing)
	})
	cropBtn.Importance = widget.HighImportance

	openDirBtn := widget.NewButton("Open Assets", func() {
		abs, err := filepath.Abs(assets)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		if err := fyne.CurrentApp().OpenURL(&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}); err != nil {
			dialog.ShowError(err, win)
		}
	})

	return container.NewVBox(
		widget.NewLabel("Screen:"),
		displaySelect,
		widget.NewSeparator(),
		infoLabel,
		cropBtn,
		openDirBtn,
		widget.NewSeparator(),
		missingLabel,
	)
}

func missingSummary(assets string) string {
	have, err := existingTemplates(assets)
	if err != nil {
		return fmt.Sprintf("Cannot read %s: %v", assets, err)
	}
	missing := farm.MissingTemplates(have, farm.Templates())
	if len(missing) == 0 {
		return "All templates present."
	}
	s := fmt.Sprintf("%d templates missing:", len(missing))
	for _, id := range missing {
		s += "\n  " + string(id)
	}
	return s
}

// existingTemplates lists the template ids present under assets. A missing
// directory has none.
func existingTemplates(assets string) ([]engine.TemplateID, error) {
	s := screen.NewSearcher(screen.Options{AssetsDir: assets}, nil, zerolog.Nop())
	if _, err := os.Stat(assets); os.IsNotExist(err) {
		return nil, nil
	}
	// An empty directory is not an error here.
	_, _ = s.LoadTemplates()
	return s.Templates(), nil
}

func showCropperWindow(frame image.Image, assets string, log zerolog.Logger, onSaved func()) {
	w := fyne.CurrentApp().NewWindow("Crop Template")
	w.Resize(fyne.NewSize(1280, 760))

	lbl := widget.NewLabel("Drag a box around the target...")
	lbl.Alignment = fyne.TextAlignCenter

	saveBtn := widget.NewButton("Save Selection", nil)
	saveBtn.Disable()

	var current image.Rectangle
	cropper := NewCropper(frame, func(r image.Rectangle) {
		current = r
		lbl.SetText(fmt.Sprintf("Selected %v (%dx%d)", r, r.Dx(), r.Dy()))
		saveBtn.Enable()
	})

	saveBtn.OnTapped = func() {
		if current.Empty() {
			return
		}
		showSaveForm(w, cropImage(frame, current), assets, log, onSaved)
	}

	w.SetContent(container.NewBorder(nil, container.NewVBox(lbl, saveBtn), nil, nil, cropper))
	w.Show()
}

func showSaveForm(win fyne.Window, img image.Image, assets string, log zerolog.Logger, onSaved func()) {
	preview := canvas.NewImageFromImage(img)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(100, 100))

	var ids []string
	for _, id := range farm.Templates() {
		ids = append(ids, string(id))
	}
	idEntry := widget.NewSelectEntry(ids)
	idEntry.PlaceHolder = "e.g. bed/map_open"

	content := container.NewVBox(
		widget.NewLabel("Save this template?"),
		container.NewCenter(preview),
		widget.NewLabel("Template id:"),
		idEntry,
	)

	dialog.ShowCustomConfirm("Save Template", "Save", "Cancel", content, func(confirm bool) {
		if !confirm {
			return
		}
		path, err := templatePath(assets, idEntry.Text)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		if err := savePNG(path, img); err != nil {
			dialog.ShowError(err, win)
			return
		}
		log.Info().Str("template", idEntry.Text).Str("path", path).Msg("template saved")
		if onSaved != nil {
			onSaved()
		}
		dialog.ShowInformation("Saved", path, win)
	}, win)
}

// templatePath maps a template id onto its file under assets. Ids are
// slash separated and may not escape the directory.
func templatePath(assets, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("template id is empty")
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || len(clean) > 2 && clean[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("template id %q leaves the assets directory", id)
	}
	return filepath.Join(assets, clean+".png"), nil
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// cropImage copies r out of img so the saved template does not share the
// frame's pixel buffer.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

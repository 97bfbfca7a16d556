package control

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// minCrop is the smallest template edge, in frame pixels, worth saving.
const minCrop = 4

// dragBox tracks one mouse drag in widget coordinates.
type dragBox struct {
	anchor, tip fyne.Position
	active      bool
}

// extend grows the box to p; the first call anchors it where the drag began.
func (d *dragBox) extend(p fyne.Position, moved fyne.Delta) {
	if !d.active {
		d.active = true
		d.anchor = p.Subtract(moved)
	}
	d.tip = p
}

// finish ends the drag and returns the box in frame pixels, or an empty
// rectangle when it is too small to be a template.
func (d *dragBox) finish(view fyne.Size, frame image.Rectangle) image.Rectangle {
	d.active = false
	r := selectionToFrame(view, frame, d.anchor, d.tip)
	if r.Dx() < minCrop || r.Dy() < minCrop {
		return image.Rectangle{}
	}
	return r
}

func (d *dragBox) clear(p fyne.Position) {
	*d = dragBox{anchor: p, tip: p}
}

// Cropper shows a captured frame and reports the box the user drags on it.
type Cropper struct {
	widget.BaseWidget

	frame image.Image
	box   dragBox

	raster  *canvas.Image
	outline *canvas.Rectangle

	// OnSelected receives each finished box in frame pixels.
	OnSelected func(rect image.Rectangle)
}

func NewCropper(frame image.Image, onSelected func(image.Rectangle)) *Cropper {
	raster := canvas.NewImageFromImage(frame)
	// Pixel scaling keeps template edges exact on screen.
	raster.ScaleMode = canvas.ImageScalePixels
	raster.FillMode = canvas.ImageFillContain

	outline := canvas.NewRectangle(color.NRGBA{R: 0x20, G: 0xc0, B: 0xff, A: 0x40})
	outline.StrokeColor = color.NRGBA{R: 0x20, G: 0xc0, B: 0xff, A: 0xff}
	outline.StrokeWidth = 1
	outline.Hide()

	c := &Cropper{frame: frame, raster: raster, outline: outline, OnSelected: onSelected}
	c.ExtendBaseWidget(c)
	return c
}

func (c *Cropper) CreateRenderer() fyne.WidgetRenderer {
	return &cropperRenderer{cropper: c, objects: []fyne.CanvasObject{c.raster, c.outline}}
}

func (c *Cropper) Dragged(e *fyne.DragEvent) {
	c.box.extend(e.Position, e.Dragged)
	c.outline.Show()
	c.Refresh()
}

func (c *Cropper) DragEnd() {
	r := c.box.finish(c.Size(), c.frame.Bounds())
	if r.Empty() {
		c.outline.Hide()
	}
	c.Refresh()
	if !r.Empty() && c.OnSelected != nil {
		c.OnSelected(r)
	}
}

// Tapped drops the current box.
func (c *Cropper) Tapped(e *fyne.PointEvent) {
	c.box.clear(e.Position)
	c.outline.Hide()
	c.Refresh()
}

func (c *Cropper) Cursor() desktop.Cursor {
	return desktop.CrosshairCursor
}

type cropperRenderer struct {
	cropper *Cropper
	objects []fyne.CanvasObject
}

func (r *cropperRenderer) Layout(s fyne.Size) {
	r.cropper.raster.Resize(s)
	r.cropper.raster.Move(fyne.NewPos(0, 0))
	r.placeOutline()
}

func (r *cropperRenderer) placeOutline() {
	pos, size := span(r.cropper.box.anchor, r.cropper.box.tip)
	r.cropper.outline.Move(pos)
	r.cropper.outline.Resize(size)
}

func (r *cropperRenderer) MinSize() fyne.Size { return fyne.NewSize(320, 180) }

func (r *cropperRenderer) Refresh() {
	r.placeOutline()
	canvas.Refresh(r.cropper)
}

func (r *cropperRenderer) Objects() []fyne.CanvasObject { return r.objects }

func (r *cropperRenderer) Destroy() {}

// span returns the top-left corner and size of the box between a and b.
func span(a, b fyne.Position) (fyne.Position, fyne.Size) {
	x0, x1 := min(a.X, b.X), max(a.X, b.X)
	y0, y1 := min(a.Y, b.Y), max(a.Y, b.Y)
	return fyne.NewPos(x0, y0), fyne.NewSize(x1-x0, y1-y0)
}

// fitContain returns where a frame of the given bounds is drawn inside view
// when scaled to fit while keeping its aspect ratio.
func fitContain(view fyne.Size, frame image.Rectangle) (fyne.Position, fyne.Size) {
	if view.Width == 0 || view.Height == 0 || frame.Empty() {
		return fyne.Position{}, fyne.Size{}
	}
	aspect := float32(frame.Dx()) / float32(frame.Dy())
	if view.Width/view.Height > aspect {
		w := view.Height * aspect
		return fyne.NewPos((view.Width-w)/2, 0), fyne.NewSize(w, view.Height)
	}
	h := view.Width / aspect
	return fyne.NewPos(0, (view.Height-h)/2), fyne.NewSize(view.Width, h)
}

// selectionToFrame maps a drag from a to b in view coordinates onto frame
// pixels. Parts of the drag outside the drawn frame are clipped.
func selectionToFrame(view fyne.Size, frame image.Rectangle, a, b fyne.Position) image.Rectangle {
	off, drawn := fitContain(view, frame)
	if drawn.Width == 0 {
		return image.Rectangle{}
	}
	pos, size := span(a, b)

	x0 := max(off.X, pos.X)
	y0 := max(off.Y, pos.Y)
	x1 := min(off.X+drawn.Width, pos.X+size.Width)
	y1 := min(off.Y+drawn.Height, pos.Y+size.Height)
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}

	sx := float32(frame.Dx()) / drawn.Width
	sy := float32(frame.Dy()) / drawn.Height
	r := image.Rect(
		int((x0-off.X)*sx), int((y0-off.Y)*sy),
		int((x1-off.X)*sx), int((y1-off.Y)*sy),
	).Add(frame.Min)
	return r.Intersect(frame)
}

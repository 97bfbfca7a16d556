// Package engine declares the perception and actuation ports the farming core
// drives, plus the small geometry shared by both.
package engine

import "image"

// TemplateID names a template image under the assets directory, without the
// .png extension (e.g. "inventory/open", "bed/spawn_button").
type TemplateID string

// Region is a rectangle on the virtual screen. The zero Region means the
// whole screen.
type Region = image.Rectangle

// Point is a position on the virtual screen.
type Point = image.Point

// Rect is a located match on the virtual screen.
type Rect = image.Rectangle

// Center returns the click target of a match.
func Center(r Rect) Point {
	return Point{X: r.Min.X + r.Dx()/2, Y: r.Min.Y + r.Dy()/2}
}

// Charset restricts what OCR may return.
type Charset string

const (
	CharsetDigits  Charset = "0123456789"
	CharsetCounter Charset = "0123456789/"
	CharsetAlpha   Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz "
	CharsetAny     Charset = ""
)

// TextMode selects the OCR segmentation strategy.
type TextMode int

const (
	TextLine TextMode = iota
	TextWord
	TextBlock
)

// Perception exposes screen queries over the virtual screen.
type Perception interface {
	// Locate returns the first match of the template inside region.
	Locate(id TemplateID, region Region, confidence float64) (Rect, bool)
	// LocateAll returns every match, de-duplicated by a minimum distance.
	LocateAll(id TemplateID, region Region, confidence float64) []Rect
	// ReadText runs OCR over region. Known misreads are already corrected.
	ReadText(region Region, charset Charset, mode TextMode) (string, error)
}

// Button is a mouse button name.
type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
)

// Actuator is the synthetic input device. Every call checks the run state
// first and returns runstate.ErrStopped once a stop was requested.
type Actuator interface {
	Press(key string) error
	KeyDown(key string) error
	KeyUp(key string) error
	MoveTo(p Point) error
	// MoveBy moves relative to the current position (camera turns in game).
	MoveBy(dx, dy int) error
	Click(p Point, button Button) error
	TypeText(text string) error
}

// Screenshotter captures the current screen as PNG bytes for error reports.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

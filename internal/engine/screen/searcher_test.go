package screen

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/engine"
)

var (
	black = color.RGBA{A: 255}
	red   = color.RGBA{R: 250, G: 10, B: 10, A: 255}
	blue  = color.RGBA{R: 10, G: 20, B: 240, A: 255}
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// paint copies a w*h square of c at (x, y) into img.
func paint(img *image.RGBA, x, y, w, h int, c color.Color) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}

func marker() *image.RGBA {
	tpl := fill(6, 6, red)
	paint(tpl, 2, 2, 2, 2, blue)
	return tpl
}

func TestFindAll_ExactMatch(t *testing.T) {
	scr := fill(100, 60, black)
	tpl := marker()
	paint(scr, 40, 20, 6, 6, red)
	paint(scr, 42, 22, 2, 2, blue)

	got := FindAll(scr, tpl, image.Rectangle{}, 45, 0)
	require.Len(t, got, 1)
	assert.Equal(t, image.Point{X: 40, Y: 20}, got[0])
}

func TestFindAll_RespectsROI(t *testing.T) {
	scr := fill(100, 60, black)
	tpl := marker()
	paint(scr, 40, 20, 6, 6, red)
	paint(scr, 42, 22, 2, 2, blue)

	assert.Empty(t, FindAll(scr, tpl, image.Rect(0, 0, 30, 30), 45, 0))
	assert.Len(t, FindAll(scr, tpl, image.Rect(35, 15, 60, 40), 45, 0), 1)
	assert.Empty(t, FindAll(scr, tpl, image.Rect(200, 200, 300, 300), 45, 0))
}

func TestFindAll_FailRateToleratesNoise(t *testing.T) {
	scr := fill(40, 40, black)
	tpl := fill(12, 12, red)
	paint(scr, 10, 10, 12, 12, red)
	scr.Set(15, 15, black) // 1 of 144 pixels differs

	assert.Empty(t, FindAll(scr, tpl, image.Rectangle{}, 45, 0))
	assert.Len(t, FindAll(scr, tpl, image.Rectangle{}, 45, 0.03), 1)
}

func TestFindAll_TransparentPixelsAreWildcards(t *testing.T) {
	scr := fill(30, 30, black)
	paint(scr, 5, 5, 4, 4, red)
	scr.Set(6, 6, blue)

	tpl := fill(4, 4, red)
	tpl.Set(1, 1, color.RGBA{})

	assert.Len(t, FindAll(scr, tpl, image.Rectangle{}, 45, 0), 1)
}

func TestDedupe(t *testing.T) {
	points := []image.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 20, Y: 0}, {X: 21, Y: 1}, {X: 100, Y: 100}}
	got := Dedupe(points, 10)
	assert.Equal(t, []image.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 100, Y: 100}}, got)
}

func TestCorrections_LongestFirst(t *testing.T) {
	c := NewCorrections(map[string]string{
		"O":   "0",
		"l":   "1",
		"1O0": "100",
		"":    "ignored",
	})
	assert.Equal(t, "100/200", c.Apply("1O0/2OO"))
	assert.Equal(t, "11", c.Apply("l1"))

	var nilTable *Corrections
	assert.Equal(t, "abc", nilTable.Apply("abc"))
}

func newTestSearcher(t *testing.T, frame image.Image) *Searcher {
	t.Helper()
	s := NewSearcher(Options{}, nil, zerolog.Nop())
	s.SetCapture(func() (image.Image, error) { return frame, nil })
	return s
}

func TestSearcher_LocateAndLocateAll(t *testing.T) {
	scr := fill(200, 100, black)
	for _, x := range []int{10, 60, 120} {
		paint(scr, x, 30, 6, 6, red)
		paint(scr, x+2, 32, 2, 2, blue)
	}

	s := newTestSearcher(t, scr)
	s.AddTemplate("marker", marker())

	r, ok := s.Locate("marker", engine.Region{}, 1)
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 30, 16, 36), r)
	assert.Equal(t, image.Point{X: 13, Y: 33}, engine.Center(r))

	all := s.LocateAll("marker", image.Rect(50, 0, 200, 100), 1)
	assert.Len(t, all, 2)

	_, ok = s.Locate("missing", engine.Region{}, 1)
	assert.False(t, ok)
}

func TestSearcher_ReadTextWithoutReader(t *testing.T) {
	s := newTestSearcher(t, fill(10, 10, black))
	_, err := s.ReadText(image.Rect(0, 0, 5, 5), engine.CharsetDigits, engine.TextLine)
	assert.Error(t, err)
}

type stubReader struct {
	bounds image.Rectangle
}

func (r *stubReader) Read(img image.Image, _ engine.Charset, _ engine.TextMode) (string, error) {
	r.bounds = img.Bounds()
	return "42", nil
}

func TestSearcher_ReadTextCropsRegion(t *testing.T) {
	reader := &stubReader{}
	s := NewSearcher(Options{}, reader, zerolog.Nop())
	s.SetCapture(func() (image.Image, error) { return fill(50, 50, black), nil })

	text, err := s.ReadText(image.Rect(10, 10, 20, 15), engine.CharsetDigits, engine.TextLine)
	require.NoError(t, err)
	assert.Equal(t, "42", text)
	assert.Equal(t, image.Rect(10, 10, 20, 15), reader.bounds)
}

func TestSearcher_LoadTemplatesFS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, marker()))

	fsys := fstest.MapFS{
		"inventory/open.png": {Data: buf.Bytes()},
		"bed/spawn.png":      {Data: buf.Bytes()},
		"broken.png":         {Data: []byte("not a png")},
		"notes.txt":          {Data: []byte("ignored")},
	}

	s := NewSearcher(Options{}, nil, zerolog.Nop())
	n, err := s.LoadTemplatesFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, s.templates, engine.TemplateID("inventory/open"))
	assert.Contains(t, s.templates, engine.TemplateID("bed/spawn"))
}

func TestSearcher_LoadTemplatesFSEmpty(t *testing.T) {
	s := NewSearcher(Options{}, nil, zerolog.Nop())
	_, err := s.LoadTemplatesFS(fstest.MapFS{})
	assert.Error(t, err)
}

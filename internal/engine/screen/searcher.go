package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kbinani/screenshot"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
)

// CaptureFunc grabs the current frame. Tests and the offline probe replace
// it with a static image.
type CaptureFunc func() (image.Image, error)

// Options configures a Searcher.
type Options struct {
	DisplayIndex  int
	AssetsDir     string
	Tolerance     float64
	MinDistance   int
	VirtualWidth  int
	VirtualHeight int
}

// Searcher implements engine.Perception on top of screen capture and
// template matching. Coordinates are normalised to the virtual screen.
type Searcher struct {
	opts      Options
	log       zerolog.Logger
	templates map[engine.TemplateID]image.Image
	reader    TextReader
	capture   CaptureFunc

	mu           sync.Mutex
	displayIndex int
}

// NewSearcher creates a Searcher capturing the configured display.
func NewSearcher(opts Options, reader TextReader, log zerolog.Logger) *Searcher {
	if opts.Tolerance == 0 {
		opts.Tolerance = constants.DefaultTolerance
	}
	if opts.MinDistance == 0 {
		opts.MinDistance = constants.MinMatchDistance
	}
	if opts.VirtualWidth == 0 || opts.VirtualHeight == 0 {
		opts.VirtualWidth, opts.VirtualHeight = constants.VirtualWidth, constants.VirtualHeight
	}

	s := &Searcher{
		opts:         opts,
		log:          log.With().Str("component", "screen").Logger(),
		templates:    make(map[engine.TemplateID]image.Image),
		reader:       reader,
		displayIndex: opts.DisplayIndex,
	}
	s.capture = s.captureDisplay
	return s
}

// SetCapture replaces the frame source.
func (s *Searcher) SetCapture(fn CaptureFunc) {
	s.capture = fn
}

// SetDisplayID sets the target display index for capturing.
func (s *Searcher) SetDisplayID(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayIndex = index
}

// LoadTemplates walks the assets directory and registers every PNG under
// its slash-separated path without extension.
func (s *Searcher) LoadTemplates() (int, error) {
	return s.LoadTemplatesFS(os.DirFS(s.opts.AssetsDir))
}

// LoadTemplatesFS is LoadTemplates over an arbitrary filesystem.
func (s *Searcher) LoadTemplatesFS(fsys fs.FS) (int, error) {
	files, err := doublestar.Glob(fsys, "**/*.png")
	if err != nil {
		return 0, fmt.Errorf("glob templates: %w", err)
	}

	loaded := 0
	for _, file := range files {
		img, err := loadImage(fsys, file)
		if err != nil {
			s.log.Warn().Err(err).Str("file", file).Msg("failed to load template")
			continue
		}
		id := engine.TemplateID(strings.TrimSuffix(file, path.Ext(file)))
		s.templates[id] = img
		loaded++
	}

	if loaded == 0 {
		return 0, fmt.Errorf("no valid PNG templates found in %s", s.opts.AssetsDir)
	}
	s.log.Debug().Int("count", loaded).Msg("templates loaded")
	return loaded, nil
}

// AddTemplate registers an in-memory template.
func (s *Searcher) AddTemplate(id engine.TemplateID, img image.Image) {
	s.templates[id] = img
}

// Templates lists the registered template ids in sorted order.
func (s *Searcher) Templates() []engine.TemplateID {
	ids := make([]engine.TemplateID, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func loadImage(fsys fs.FS, name string) (image.Image, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// captureDisplay grabs the selected display and scales it to the virtual
// screen so templates authored at one resolution match on any monitor.
func (s *Searcher) captureDisplay() (image.Image, error) {
	s.mu.Lock()
	index := s.displayIndex
	s.mu.Unlock()

	bounds := screenshot.GetDisplayBounds(index)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", index, err)
	}

	return Normalise(img, s.opts.VirtualWidth, s.opts.VirtualHeight), nil
}

// Normalise scales img to the w x h virtual screen.
func Normalise(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

// CaptureScreen returns the current normalised frame.
func (s *Searcher) CaptureScreen() (image.Image, error) {
	return s.capture()
}

// Screenshot implements engine.Screenshotter.
func (s *Searcher) Screenshot() ([]byte, error) {
	img, err := s.capture()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Searcher) find(id engine.TemplateID, region engine.Region, confidence float64) []image.Point {
	tpl, ok := s.templates[id]
	if !ok {
		s.log.Error().Str("template", string(id)).Msg("unknown template")
		return nil
	}

	img, err := s.capture()
	if err != nil {
		s.log.Debug().Err(err).Msg("capture failed")
		return nil
	}

	failRate := 1 - confidence
	if failRate < 0 {
		failRate = 0
	}
	return FindAll(img, tpl, region, s.opts.Tolerance, failRate)
}

func (s *Searcher) rect(id engine.TemplateID, p image.Point) engine.Rect {
	b := s.templates[id].Bounds()
	return image.Rect(p.X, p.Y, p.X+b.Dx(), p.Y+b.Dy())
}

// Locate implements engine.Perception.
func (s *Searcher) Locate(id engine.TemplateID, region engine.Region, confidence float64) (engine.Rect, bool) {
	points := s.find(id, region, confidence)
	if len(points) == 0 {
		return engine.Rect{}, false
	}
	return s.rect(id, points[0]), true
}

// LocateAll implements engine.Perception.
func (s *Searcher) LocateAll(id engine.TemplateID, region engine.Region, confidence float64) []engine.Rect {
	points := Dedupe(s.find(id, region, confidence), s.opts.MinDistance)
	rects := make([]engine.Rect, 0, len(points))
	for _, p := range points {
		rects = append(rects, s.rect(id, p))
	}
	return rects
}

// ReadText implements engine.Perception.
func (s *Searcher) ReadText(region engine.Region, charset engine.Charset, mode engine.TextMode) (string, error) {
	if s.reader == nil {
		return "", fmt.Errorf("no text reader configured")
	}

	img, err := s.capture()
	if err != nil {
		return "", err
	}
	if !region.Empty() {
		img = crop(img, region)
	}
	return s.reader.Read(img, charset, mode)
}

func crop(img image.Image, r image.Rectangle) image.Image {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r.Intersect(img.Bounds()))
	}

	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

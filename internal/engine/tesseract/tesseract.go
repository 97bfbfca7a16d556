// Package tesseract implements screen.TextReader with gosseract.
package tesseract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/engine/screen"
)

// Reader reads text with a single reused gosseract client.
type Reader struct {
	mu          sync.Mutex
	client      *gosseract.Client
	corrections *screen.Corrections
}

// New creates a reader for the given language (e.g. "eng").
func New(language string, corrections *screen.Corrections) (*Reader, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set ocr language: %w", err)
		}
	}
	return &Reader{client: client, corrections: corrections}, nil
}

func (t *Reader) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

func pageSegMode(mode engine.TextMode) gosseract.PageSegMode {
	switch mode {
	case engine.TextWord:
		return gosseract.PSM_SINGLE_WORD
	case engine.TextBlock:
		return gosseract.PSM_SINGLE_BLOCK
	default:
		return gosseract.PSM_SINGLE_LINE
	}
}

// Read implements screen.TextReader.
func (t *Reader) Read(img image.Image, charset engine.Charset, mode engine.TextMode) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode ocr region: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetWhitelist(string(charset)); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}
	if err := t.client.SetPageSegMode(pageSegMode(mode)); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return t.corrections.Apply(strings.TrimSpace(text)), nil
}

package screen

import (
	"image"
	"sort"
	"strings"

	"github.com/ConserveLee/farmbot/internal/engine"
)

// TextReader turns a cropped frame into text.
type TextReader interface {
	Read(img image.Image, charset engine.Charset, mode engine.TextMode) (string, error)
}

// Corrections maps known OCR misreads to the intended token. Longer keys are
// applied first so "0/1" style entries win over single glyph fixes.
type Corrections struct {
	keys  []string
	table map[string]string
}

// NewCorrections builds a correction table from configuration.
func NewCorrections(table map[string]string) *Corrections {
	c := &Corrections{table: make(map[string]string, len(table))}
	for k, v := range table {
		if k == "" {
			continue
		}
		c.table[k] = v
		c.keys = append(c.keys, k)
	}
	sort.Slice(c.keys, func(i, j int) bool {
		if len(c.keys[i]) != len(c.keys[j]) {
			return len(c.keys[i]) > len(c.keys[j])
		}
		return c.keys[i] < c.keys[j]
	})
	return c
}

// Apply rewrites every known misread in s.
func (c *Corrections) Apply(s string) string {
	if c == nil {
		return s
	}
	for _, k := range c.keys {
		s = strings.ReplaceAll(s, k, c.table[k])
	}
	return s
}

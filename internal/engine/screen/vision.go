package screen

import (
	"image"
	"math"
)

// rgba reads a pixel as 8-bit components.
func rgba(img image.Image, x, y int) (r, g, b, a uint32) {
	r, g, b, a = img.At(x, y).RGBA()
	return r >> 8, g >> 8, b >> 8, a >> 8
}

func colorSimilar(r1, g1, b1, r2, g2, b2 uint32, tolerance float64) bool {
	// Simple Euclidean distance in RGB space
	dr := float64(r1) - float64(r2)
	dg := float64(g1) - float64(g2)
	db := float64(b1) - float64(b2)
	return math.Sqrt(dr*dr+dg*dg+db*db) <= tolerance
}

// FindAll searches for every occurrence of tpl inside roi of img and
// returns the top-left corners. An empty roi searches the whole image.
// maxFailRate is the share of opaque template pixels allowed to differ by
// more than tolerance; transparent template pixels act as wildcards.
func FindAll(img, tpl image.Image, roi image.Rectangle, tolerance, maxFailRate float64) []image.Point {
	sBounds := img.Bounds()
	tBounds := tpl.Bounds()
	tWidth, tHeight := tBounds.Dx(), tBounds.Dy()

	area := sBounds
	if !roi.Empty() {
		area = roi.Intersect(sBounds)
	}
	if area.Empty() || area.Dx() < tWidth || area.Dy() < tHeight {
		return nil
	}

	// Key pixels for quick rejection: top-left, center, bottom-right
	tr0, tg0, tb0, ta0 := rgba(tpl, tBounds.Min.X, tBounds.Min.Y)
	tr1, tg1, tb1, ta1 := rgba(tpl, tBounds.Min.X+tWidth/2, tBounds.Min.Y+tHeight/2)
	tr2, tg2, tb2, ta2 := rgba(tpl, tBounds.Max.X-1, tBounds.Max.Y-1)

	var matches []image.Point
	for y := area.Min.Y; y <= area.Max.Y-tHeight; y++ {
		for x := area.Min.X; x <= area.Max.X-tWidth; x++ {
			if maxFailRate == 0 {
				if ta0 > 0 {
					sr, sg, sb, _ := rgba(img, x, y)
					if !colorSimilar(sr, sg, sb, tr0, tg0, tb0, tolerance) {
						continue
					}
				}
				if ta1 > 0 {
					sr, sg, sb, _ := rgba(img, x+tWidth/2, y+tHeight/2)
					if !colorSimilar(sr, sg, sb, tr1, tg1, tb1, tolerance) {
						continue
					}
				}
				if ta2 > 0 {
					sr, sg, sb, _ := rgba(img, x+tWidth-1, y+tHeight-1)
					if !colorSimilar(sr, sg, sb, tr2, tg2, tb2, tolerance) {
						continue
					}
				}
			}

			if match(img, tpl, x, y, tolerance, maxFailRate) {
				matches = append(matches, image.Point{X: x, Y: y})
				x += tWidth / 2
			}
		}
	}
	return matches
}

func match(img, tpl image.Image, sx, sy int, tolerance, maxFailRate float64) bool {
	tBounds := tpl.Bounds()
	totalPixels := 0
	failedPixels := 0

	for ty := 0; ty < tBounds.Dy(); ty++ {
		for tx := 0; tx < tBounds.Dx(); tx++ {
			tr, tg, tb, ta := rgba(tpl, tBounds.Min.X+tx, tBounds.Min.Y+ty)
			if ta == 0 {
				continue
			}

			totalPixels++
			sr, sg, sb, _ := rgba(img, sx+tx, sy+ty)
			if colorSimilar(sr, sg, sb, tr, tg, tb, tolerance) {
				continue
			}

			failedPixels++
			if maxFailRate == 0 {
				return false
			}
			if totalPixels > 100 && float64(failedPixels)/float64(totalPixels) > maxFailRate {
				return false
			}
		}
	}

	if totalPixels == 0 {
		return false
	}
	return float64(failedPixels)/float64(totalPixels) <= maxFailRate
}

// Dedupe drops matches closer than minDistance to an earlier kept match.
// The same feature tends to match on neighbouring pixels.
func Dedupe(points []image.Point, minDistance int) []image.Point {
	kept := make([]image.Point, 0, len(points))
	limit := float64(minDistance)

outer:
	for _, p := range points {
		for _, k := range kept {
			dx := float64(p.X - k.X)
			dy := float64(p.Y - k.Y)
			if math.Sqrt(dx*dx+dy*dy) < limit {
				continue outer
			}
		}
		kept = append(kept, p)
	}
	return kept
}

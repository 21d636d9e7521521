package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// DefaultLineTolerance is the vertical slack, in origin units, under which two character
// boxes are considered to sit on the same line.
const DefaultLineTolerance = 10

// MultiLineBoxes merges consecutive character boxes into one box per visual line.
// A box joins the current line when its top edge is within tolerance of the line's first
// box; otherwise it starts a new line. Invalid boxes are skipped.
func MultiLineBoxes(positions []Polygon, tolerance float64) []Polygon {
	var (
		out     []Polygon
		current r2.Rect
		lineTop float64
		open    bool
	)
	for _, pos := range positions {
		if !pos.Valid() {
			continue
		}
		b := pos.Bounds()
		if open && math.Abs(b.Y.Lo-lineTop) <= tolerance {
			current = current.Union(b)
			continue
		}
		if open {
			out = append(out, RectPolygon(current))
		}
		current = b
		lineTop = b.Y.Lo
		open = true
	}
	if open {
		out = append(out, RectPolygon(current))
	}
	return out
}

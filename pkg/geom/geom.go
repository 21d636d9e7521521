// Package geom implements the coordinate spaces used by the mark engines.
//
// Three spaces are involved:
//
// - Origin space: coordinates stored in OCR output, relative to the unrotated page image
// (OriginWidth x OriginHeight).
// - Display space: origin space rotated by the page's display angle (0/90/180/270, clockwise).
// Selection rectangles and line matching work here.
// - Canvas space: display space scaled and offset to where the page sits on the canvas.
//
// Positions are flat polygons: 8 numbers (four corners, clockwise from top-left) or 4 numbers
// (x1, y1, x2, y2).
package geom

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// Point is a 2D point
type Point struct {
	X, Y float64
}

// Add returns p translated by q
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Polygon is a flat list of coordinates, either 4 (rectangle) or 8 (quadrilateral) numbers
type Polygon []float64

// Valid reports whether the polygon has a usable shape and only finite values
func (p Polygon) Valid() bool {
	if len(p) != 4 && len(p) != 8 {
		return false
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Points expands the polygon to its corners. A 4-number rectangle yields four corners.
func (p Polygon) Points() []Point {
	switch len(p) {
	case 4:
		return []Point{{p[0], p[1]}, {p[2], p[1]}, {p[2], p[3]}, {p[0], p[3]}}
	case 8:
		return []Point{{p[0], p[1]}, {p[2], p[3]}, {p[4], p[5]}, {p[6], p[7]}}
	}
	return nil
}

// Bounds returns the axis-aligned bounding rectangle of the polygon
func (p Polygon) Bounds() r2.Rect {
	pts := p.Points()
	if len(pts) == 0 {
		return r2.EmptyRect()
	}
	rp := make([]r2.Point, len(pts))
	for i, pt := range pts {
		rp[i] = r2.Point{X: pt.X, Y: pt.Y}
	}
	return r2.RectFromPoints(rp...)
}

// Key serializes the polygon for use as a cache or diff key
func (p Polygon) Key() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strings.Join(parts, ",")
}

// RectPolygon converts a rectangle to an 8-number polygon, clockwise from top-left
func RectPolygon(r r2.Rect) Polygon {
	return Polygon{r.X.Lo, r.Y.Lo, r.X.Hi, r.Y.Lo, r.X.Hi, r.Y.Hi, r.X.Lo, r.Y.Hi}
}

// Rect is a selection rectangle in display space
type Rect struct {
	Left, Top, Width, Height float64
}

// RectFromPoints derives a rectangle from two drag points. Negative coordinates are
// clamped to zero first.
func RectFromPoints(a, b Point) Rect {
	a = clampPoint(a)
	b = clampPoint(b)
	return Rect{
		Left:   math.Min(a.X, b.X),
		Top:    math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// Right returns the right edge
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the bottom edge
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// R2 converts the rectangle to an r2.Rect
func (r Rect) R2() r2.Rect {
	return r2.Rect{X: r1.Interval{Lo: r.Left, Hi: r.Right()}, Y: r1.Interval{Lo: r.Top, Hi: r.Bottom()}}
}

func clampPoint(p Point) Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	return p
}

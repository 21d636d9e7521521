package match

import (
	"math"

	"github.com/gardar/ocrmark/pkg/geom"
)

// axes projects display points into the reading frame of one angle. Both coordinates grow
// in reading order: line grows from the first line to the last, read from the first
// character of a line to the last.
type axes struct {
	angle geom.Angle
}

func axesFor(a geom.Angle) axes {
	return axes{angle: a}
}

func (a axes) project(p geom.Point) readPoint {
	switch a.angle {
	case geom.Angle90:
		return readPoint{line: -p.X, read: p.Y}
	case geom.Angle180:
		return readPoint{line: -p.Y, read: -p.X}
	case geom.Angle270:
		return readPoint{line: p.X, read: -p.Y}
	}
	return readPoint{line: p.Y, read: p.X}
}

// span returns the extent of a display-space polygon in the reading frame
func (a axes) span(pos geom.Polygon) LineSpan {
	s := LineSpan{
		Line: Span{math.Inf(1), math.Inf(-1)},
		Read: Span{math.Inf(1), math.Inf(-1)},
	}
	for _, pt := range pos.Points() {
		rp := a.project(pt)
		s.Line.Min = math.Min(s.Line.Min, rp.line)
		s.Line.Max = math.Max(s.Line.Max, rp.line)
		s.Read.Min = math.Min(s.Read.Min, rp.read)
		s.Read.Max = math.Max(s.Read.Max, rp.read)
	}
	return s
}

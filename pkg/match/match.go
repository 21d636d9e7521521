// Package match decides which characters of a page a drag selection covers.
//
// Work happens in display space, after the page's rotation. Each angle has a reading frame:
// a line axis along which lines stack and a read axis along which characters of a line
// follow each other. At 0° lines stack downwards and read left to right; at 90° the
// first line is the rightmost column and reads top to bottom; 180° and 270° mirror those.
// The horizontal family (90/270) therefore compares X to find lines, the vertical family
// (0/180) compares Y.
//
// A line crossed by the drag is selected like in a text editor:
//
//   - a line holding both ends keeps the characters between them (first-line rule)
//   - the line holding the upper end keeps everything after it
//   - the line holding the lower end keeps everything before it
//   - lines strictly in between are kept whole
//
// A character is kept when the centre of its box on the read axis lies within bounds.
// Any hit on a table line yields the whole table once.
package match

import (
	"math"
	"strings"

	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

// TextCollection is what a drag collected from one line or one table
type TextCollection struct {
	Index     int            `json:"index"` // 1-based page
	Text      string         `json:"text"`
	Pos       []geom.Polygon `json:"pos"` // origin-space boxes of the collected characters
	AreaIndex int            `json:"area_index"`
	HTML      string         `json:"html,omitempty"` // set for substituted tables
	Table     bool           `json:"table,omitempty"`
}

// Matcher matches selections against pages. It is safe for concurrent use when its cache is.
type Matcher struct {
	cache *geom.RotationCache
}

// New returns a matcher rotating positions through cache. A nil cache disables memoization.
func New(cache *geom.RotationCache) *Matcher {
	return &Matcher{cache: cache}
}

// Match collects what a selection from start to end covers on p, both in p's display space.
// A nil start runs from the beginning of the page and a nil end to its end, which is how a
// drag spanning several pages treats the pages it only passes through. Negative coordinates
// are clamped to zero.
func (m *Matcher) Match(p *layout.Page, f geom.Frame, start, end *geom.Point) []TextCollection {
	ax := axesFor(f.Angle)
	top, bottom := m.bounds(ax, start, end)

	var (
		out      []TextCollection
		doneArea = make(map[int]bool)
	)
	for _, li := range p.LineOrder() {
		line := p.Lines[li]
		span, ok := m.lineSpan(p, f, ax, line)
		if !ok || !InScope(span, top.line, bottom.line) {
			continue
		}

		area := p.AreaOfLine(li)
		if area >= 0 && p.AreaTypeMap[area] == layout.Table {
			if doneArea[area] {
				continue
			}
			if tc, ok := m.table(p, area); ok {
				doneArea[area] = true
				out = append(out, tc)
			}
			continue
		}

		lo, hi := readBounds(span, top, bottom)
		tc := TextCollection{Index: p.Index, AreaIndex: area}
		var sb strings.Builder
		for _, u := range line.Units() {
			c, ok := m.readCenter(p, f, ax, u.Position)
			if !ok || c < lo || c > hi {
				continue
			}
			sb.WriteString(u.Text)
			tc.Pos = append(tc.Pos, u.Position)
		}
		if sb.Len() == 0 {
			continue
		}
		tc.Text = sb.String()
		out = append(out, tc)
	}
	return out
}

// MatchRect is Match for a rectangle dragged from its top-left to its bottom-right corner
func (m *Matcher) MatchRect(p *layout.Page, f geom.Frame, r geom.Rect) []TextCollection {
	a := geom.Point{X: r.Left, Y: r.Top}
	b := geom.Point{X: r.Right(), Y: r.Bottom()}
	return m.Match(p, f, &a, &b)
}

// Join concatenates collected text in order
func Join(cs []TextCollection) string {
	var sb strings.Builder
	for _, c := range cs {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// Span is an interval on one axis
type Span struct {
	Min, Max float64
}

// Contains reports whether v lies in the span, bounds included
func (s Span) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// LineSpan is a line's extent in its reading frame
type LineSpan struct {
	Line Span // along the line axis
	Read Span // along the read axis
}

// InScope is the coarse check run before any character scan: the line's extent on the
// line axis must meet [lo, hi].
func InScope(s LineSpan, lo, hi float64) bool {
	return s.Line.Max >= lo && s.Line.Min <= hi
}

type readPoint struct {
	line, read float64
}

// bounds orders the two ends of the drag in reading order
func (m *Matcher) bounds(ax axes, start, end *geom.Point) (top, bottom readPoint) {
	top = readPoint{math.Inf(-1), math.Inf(-1)}
	bottom = readPoint{math.Inf(1), math.Inf(1)}
	if start != nil {
		top = ax.project(clamp(*start))
	}
	if end != nil {
		bottom = ax.project(clamp(*end))
	}
	if start != nil && end != nil {
		if bottom.line < top.line || (bottom.line == top.line && bottom.read < top.read) {
			top, bottom = bottom, top
		}
	}
	return top, bottom
}

// readBounds picks the read-axis interval a line keeps, given which ends of the drag it holds
func readBounds(s LineSpan, top, bottom readPoint) (lo, hi float64) {
	holdsTop := s.Line.Contains(top.line)
	holdsBottom := s.Line.Contains(bottom.line)
	switch {
	case holdsTop && holdsBottom:
		return math.Min(top.read, bottom.read), math.Max(top.read, bottom.read)
	case holdsTop:
		return top.read, math.Inf(1)
	case holdsBottom:
		return math.Inf(-1), bottom.read
	}
	return math.Inf(-1), math.Inf(1)
}

func (m *Matcher) rotate(p *layout.Page, f geom.Frame, pos geom.Polygon) geom.Polygon {
	if m.cache == nil {
		return f.PositionByAngle(pos, f.Angle)
	}
	return m.cache.Position(p.Index, f, pos, f.Angle)
}

func (m *Matcher) lineSpan(p *layout.Page, f geom.Frame, ax axes, l layout.Line) (LineSpan, bool) {
	if l.Position.Valid() {
		return ax.span(m.rotate(p, f, l.Position)), true
	}
	var (
		s  LineSpan
		ok bool
	)
	for _, cp := range l.CharPositions {
		if !cp.Valid() {
			continue
		}
		cs := ax.span(m.rotate(p, f, cp))
		if !ok {
			s, ok = cs, true
			continue
		}
		s.Line = Span{math.Min(s.Line.Min, cs.Line.Min), math.Max(s.Line.Max, cs.Line.Max)}
		s.Read = Span{math.Min(s.Read.Min, cs.Read.Min), math.Max(s.Read.Max, cs.Read.Max)}
	}
	return s, ok
}

func (m *Matcher) readCenter(p *layout.Page, f geom.Frame, ax axes, pos geom.Polygon) (float64, bool) {
	if !pos.Valid() {
		return 0, false
	}
	s := ax.span(m.rotate(p, f, pos))
	return (s.Read.Min + s.Read.Max) / 2, true
}

func (m *Matcher) table(p *layout.Page, area int) (TextCollection, bool) {
	b, ok := p.Area(area)
	if !ok {
		return TextCollection{}, false
	}
	tc := TextCollection{
		Index:     p.Index,
		Text:      p.BlockText(b),
		AreaIndex: area,
		HTML:      b.HTML,
		Table:     true,
	}
	if b.Position.Valid() {
		tc.Pos = []geom.Polygon{b.Position}
	}
	return tc, true
}

func clamp(p geom.Point) geom.Point {
	return geom.Point{X: math.Max(p.X, 0), Y: math.Max(p.Y, 0)}
}

// Package pdfmark provides a Canvas that records the shapes the mark engines draw and
// exports them into a PDF as highlight layers.
//
// The exported marks sit on optional-content layers, one per page, so a PDF reader can
// toggle them. Layers are drawn either over the pages of the original PDF or over page
// images:
//
// - Apply imports every page of an existing PDF and adds the marks on top
// - Assemble builds a new PDF from page images and adds the marks on top
//
// Pages are stacked top to bottom on the canvas, like a continuous-scroll viewer. Shape
// polygons are in canvas space and are mapped back to page coordinates on export.
package pdfmark

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/logger"
)

// Options places pages on the canvas
type Options struct {
	Scale float64 // canvas units per page unit; 0 means 1
	Gap   float64 // vertical space between pages
	// Viewport is the visible screen area. Zero shows the whole document.
	Viewport geom.Rect
	Log      *logger.Logger
}

// Canvas is a headless canvas.Canvas backed by recorded shapes
type Canvas struct {
	canvas.Registry

	log   *logger.Logger
	pages []canvas.PageInfo
	sizes map[int]*layout.Page

	mu        sync.Mutex
	translate geom.Point
	viewport  geom.Rect
	seq       int
	shapes    map[string]*Shape
}

// New lays pages out top to bottom
func New(pages []*layout.Page, opts Options) *Canvas {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	sorted := append([]*layout.Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	c := &Canvas{
		log:    log.WithOperation("pdfmark"),
		sizes:  make(map[int]*layout.Page, len(pages)),
		shapes: make(map[string]*Shape),
	}
	y, width := 0.0, 0.0
	for _, p := range sorted {
		f := p.Frame(scale, geom.Point{X: 0, Y: y})
		w, h := f.DisplaySize()
		c.pages = append(c.pages, canvas.PageInfo{Index: p.Index, Frame: f})
		c.sizes[p.Index] = p
		y += h*scale + opts.Gap
		width = max(width, w*scale)
	}

	c.viewport = opts.Viewport
	if c.viewport.Width == 0 || c.viewport.Height == 0 {
		c.viewport = geom.Rect{Width: width, Height: max(0, y-opts.Gap)}
	}
	return c
}

func (c *Canvas) draw(kind string, opts canvas.ShapeOptions) canvas.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	s := &Shape{c: c, id: uuid.NewString(), kind: kind, seq: c.seq, opts: opts, states: map[string]bool{}}
	c.shapes[s.id] = s
	return s
}

func (c *Canvas) DrawRect(opts canvas.ShapeOptions) canvas.Shape    { return c.draw(kindRect, opts) }
func (c *Canvas) DrawPolygon(opts canvas.ShapeOptions) canvas.Shape { return c.draw(kindPolygon, opts) }
func (c *Canvas) DrawBadge(opts canvas.ShapeOptions) canvas.Shape   { return c.draw(kindBadge, opts) }

// PageByPoint finds the page under a canvas point
func (c *Canvas) PageByPoint(p geom.Point) (int, bool) {
	for _, pi := range c.pages {
		w, h := pi.Frame.DisplaySize()
		s, o := pi.Frame.Scale, pi.Frame.Offset
		if p.X >= o.X && p.X <= o.X+w*s && p.Y >= o.Y && p.Y <= o.Y+h*s {
			return pi.Index, true
		}
	}
	return 0, false
}

func (c *Canvas) InternalPage(page int) (canvas.PageInfo, bool) {
	for _, pi := range c.pages {
		if pi.Index == page {
			return pi, true
		}
	}
	return canvas.PageInfo{}, false
}

func (c *Canvas) TransformPositionByPageRect(pos geom.Polygon, page int) geom.Polygon {
	pi, ok := c.InternalPage(page)
	if !ok {
		return pos
	}
	return pi.Frame.PolygonToCanvas(pos)
}

func (c *Canvas) TransformActualPoint(pos geom.Polygon) geom.Polygon {
	t := c.Translate()
	out := make(geom.Polygon, len(pos))
	for i, v := range pos {
		if i%2 == 0 {
			out[i] = v + t.X
		} else {
			out[i] = v + t.Y
		}
	}
	return out
}

func (c *Canvas) Translate() geom.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.translate
}

func (c *Canvas) UpdateTranslate(p geom.Point) {
	c.mu.Lock()
	c.translate = p
	c.mu.Unlock()
}

func (c *Canvas) Viewport() geom.Rect { return c.viewport }

func (c *Canvas) QueryState(group, state string) canvas.Shape {
	all := c.QueryAllState(group, state)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func (c *Canvas) QueryAllState(group, state string) []canvas.Shape {
	var out []canvas.Shape
	for _, s := range c.Shapes(0) {
		if s.Options().Group == group && s.State(state) {
			out = append(out, s)
		}
	}
	return out
}

// Render is a no-op; shapes are only drawn on export
func (c *Canvas) Render() {}

// Shapes returns the live shapes of page (every page when 0) in drawing order
func (c *Canvas) Shapes(page int) []*Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Shape, 0, len(c.shapes))
	for _, s := range c.shapes {
		if page == 0 || s.opts.Page == page {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

const (
	kindRect    = "rect"
	kindPolygon = "polygon"
	kindBadge   = "badge"
)

// Shape is a recorded shape
type Shape struct {
	c      *Canvas
	id     string
	kind   string
	seq    int
	opts   canvas.ShapeOptions
	states map[string]bool
}

func (s *Shape) ID() string { return s.id }

// Kind is "rect", "polygon" or "badge"
func (s *Shape) Kind() string { return s.kind }

func (s *Shape) Options() canvas.ShapeOptions {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.opts
}

func (s *Shape) UpdateOptions(opts canvas.ShapeOptions) {
	s.c.mu.Lock()
	s.opts = opts
	s.c.mu.Unlock()
}

func (s *Shape) SetState(state string, on bool) {
	s.c.mu.Lock()
	s.states[state] = on
	s.c.mu.Unlock()
}

func (s *Shape) State(state string) bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.states[state]
}

func (s *Shape) Destroy() {
	s.c.mu.Lock()
	delete(s.c.shapes, s.id)
	s.c.mu.Unlock()
}

// visible reports whether the shape is exported
func (s *Shape) visible() bool {
	return !s.Options().Hidden && !s.State(canvas.StateHidden)
}

// Package canvastest provides in-memory canvas ports for tests.
package canvastest

import (
	"context"
	"image"
	"image/draw"
	"sort"
	"strconv"
	"sync"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

// Canvas records shapes and places pages top to bottom
type Canvas struct {
	canvas.Registry

	mu        sync.Mutex
	pages     []canvas.PageInfo
	translate geom.Point
	viewport  geom.Rect
	seq       int
	live      map[string]*Shape

	Created   int
	Destroyed int
	Renders   int
}

// Stack lays pages out vertically at scale 1 with gap units between them
func Stack(pages []*layout.Page, gap float64) []canvas.PageInfo {
	out := make([]canvas.PageInfo, 0, len(pages))
	y := 0.0
	for _, p := range pages {
		f := p.Frame(1, geom.Point{X: 0, Y: y})
		_, h := f.DisplaySize()
		out = append(out, canvas.PageInfo{Index: p.Index, Frame: f})
		y += h + gap
	}
	return out
}

// New returns a canvas showing pages through a viewport of the given screen size
func New(pages []canvas.PageInfo, viewportW, viewportH float64) *Canvas {
	return &Canvas{
		pages:    pages,
		viewport: geom.Rect{Width: viewportW, Height: viewportH},
		live:     make(map[string]*Shape),
	}
}

func (c *Canvas) draw(kind string, opts canvas.ShapeOptions) canvas.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	s := &Shape{c: c, id: kind + "-" + strconv.Itoa(c.seq), Kind: kind, opts: opts, states: map[string]bool{}}
	c.live[s.id] = s
	c.Created++
	return s
}

func (c *Canvas) DrawRect(opts canvas.ShapeOptions) canvas.Shape    { return c.draw("rect", opts) }
func (c *Canvas) DrawPolygon(opts canvas.ShapeOptions) canvas.Shape { return c.draw("polygon", opts) }
func (c *Canvas) DrawBadge(opts canvas.ShapeOptions) canvas.Shape   { return c.draw("badge", opts) }

func (c *Canvas) PageByPoint(p geom.Point) (int, bool) {
	for _, pi := range c.pages {
		w, h := pi.Frame.DisplaySize()
		s := pi.Frame.Scale
		if s == 0 {
			s = 1
		}
		o := pi.Frame.Offset
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
	for _, s := range c.Live(group) {
		if s.State(state) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Canvas) Render() {
	c.mu.Lock()
	c.Renders++
	c.mu.Unlock()
}

// Live returns undestroyed shapes of group (all groups when empty), oldest first
func (c *Canvas) Live(group string) []*Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Shape, 0, len(c.live))
	for _, s := range c.live {
		if group == "" || s.opts.Group == group {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq() < out[j].seq() })
	return out
}

// Shape is a recorded shape
type Shape struct {
	c         *Canvas
	id        string
	Kind      string
	opts      canvas.ShapeOptions
	states    map[string]bool
	destroyed bool
}

func (s *Shape) seq() int {
	n, _ := strconv.Atoi(s.id[len(s.Kind)+1:])
	return n
}

func (s *Shape) ID() string { return s.id }

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
	defer s.c.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	delete(s.c.live, s.id)
	s.c.Destroyed++
}

// Destroyed reports whether Destroy was called
func (s *Shape) Destroyed() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.destroyed
}

// Clipboard records writes
type Clipboard struct {
	mu    sync.Mutex
	Err   error
	Texts []string
	Items [][]canvas.ClipboardItem
}

func (c *Clipboard) WriteText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Texts = append(c.Texts, text)
	return nil
}

func (c *Clipboard) Write(_ context.Context, items []canvas.ClipboardItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Items = append(c.Items, items)
	return nil
}

// Overlay records Show/Hide calls
type Overlay struct {
	mu      sync.Mutex
	Visible bool
	Last    geom.Rect
	Shows   int
	Hides   int
}

func (o *Overlay) Show(r geom.Rect) {
	o.mu.Lock()
	o.Visible, o.Last = true, r
	o.Shows++
	o.mu.Unlock()
}

func (o *Overlay) Hide() {
	o.mu.Lock()
	o.Visible = false
	o.Hides++
	o.mu.Unlock()
}

// Surface shows a window of a larger document bitmap, like a scrolled canvas element
type Surface struct {
	Document  *image.RGBA
	w, h      int
	translate geom.Point
	Resizes   int
}

// NewSurface returns a w×h surface over doc
func NewSurface(doc *image.RGBA, w, h int) *Surface {
	return &Surface{Document: doc, w: w, h: h}
}

func (s *Surface) Size() (int, int) { return s.w, s.h }

func (s *Surface) Resize(w, h int) {
	s.w, s.h = w, h
	s.Resizes++
}

func (s *Surface) Translate() geom.Point { return s.translate }

func (s *Surface) SetTranslate(p geom.Point) { s.translate = p }

func (s *Surface) Snapshot(context.Context) (image.Image, error) {
	out := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	origin := image.Pt(int(-s.translate.X), int(-s.translate.Y))
	draw.Draw(out, out.Bounds(), s.Document, origin, draw.Src)
	return out, nil
}

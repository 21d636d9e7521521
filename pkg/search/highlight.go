package search

import (
	"strconv"
	"sync"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
)

// Highlighter draws search hits on a canvas. Only pages within lookaround of the current
// page get shapes; the rest are drawn as the reader scrolls towards them.
type Highlighter struct {
	canvas     canvas.Canvas
	fill       string
	activeFill string
	lookaround int

	mu       sync.Mutex
	results  []Result
	byPage   map[int][]int
	shapes   map[int][]canvas.Shape // result index → shapes
	rendered map[int]bool
	active   int
}

// NewHighlighter returns a highlighter drawing on c
func NewHighlighter(c canvas.Canvas, cfg config.SearchConfig, lookaround int) *Highlighter {
	return &Highlighter{
		canvas:     c,
		fill:       cfg.Fill,
		activeFill: cfg.ActiveFill,
		lookaround: lookaround,
		active:     -1,
	}
}

// SetResults replaces the drawn hits and renders the pages around current
func (h *Highlighter) SetResults(rs []Result, current int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
	h.results = rs
	h.byPage = make(map[int][]int)
	for i, r := range rs {
		h.byPage[r.Page] = append(h.byPage[r.Page], i)
	}
	h.renderWindowLocked(current)
	h.canvas.Render()
}

// ChangePage draws hits on pages that came into the window around current
func (h *Highlighter) ChangePage(current int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.renderWindowLocked(current) {
		h.canvas.Render()
	}
}

// Activate marks result i as the current hit, drawing its page if needed
func (h *Highlighter) Activate(i int) (Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.results) {
		return Result{}, false
	}
	if h.active >= 0 {
		h.styleLocked(h.active, false)
	}
	r := h.results[i]
	h.renderPageLocked(r.Page)
	h.active = i
	h.styleLocked(i, true)
	h.canvas.Render()
	return r, true
}

// Active returns the index of the current hit, or -1
func (h *Highlighter) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Rendered reports whether page has its hits drawn
func (h *Highlighter) Rendered(page int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rendered[page]
}

// Clear destroys every search shape
func (h *Highlighter) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
	h.results = nil
	h.byPage = nil
	h.canvas.Render()
}

func (h *Highlighter) clearLocked() {
	for _, shapes := range h.shapes {
		for _, s := range shapes {
			s.Destroy()
		}
	}
	h.shapes = make(map[int][]canvas.Shape)
	h.rendered = make(map[int]bool)
	h.active = -1
}

func (h *Highlighter) renderWindowLocked(current int) bool {
	drew := false
	for page := current - h.lookaround; page <= current+h.lookaround; page++ {
		if page < 1 || h.rendered[page] {
			continue
		}
		if _, ok := h.byPage[page]; !ok {
			continue
		}
		h.renderPageLocked(page)
		drew = true
	}
	return drew
}

func (h *Highlighter) renderPageLocked(page int) {
	if h.rendered[page] {
		return
	}
	h.rendered[page] = true
	for _, i := range h.byPage[page] {
		for _, box := range h.results[i].Boxes {
			s := h.canvas.DrawRect(canvas.ShapeOptions{
				Page:    page,
				Polygon: h.canvas.TransformPositionByPageRect(box, page),
				Fill:    h.fill,
				Group:   canvas.GroupSearch,
				Data:    map[string]string{"result": strconv.Itoa(i)},
			})
			h.shapes[i] = append(h.shapes[i], s)
		}
	}
}

func (h *Highlighter) styleLocked(i int, active bool) {
	fill := h.fill
	if active {
		fill = h.activeFill
	}
	for _, s := range h.shapes[i] {
		opts := s.Options()
		opts.Fill = fill
		s.UpdateOptions(opts)
		s.SetState(canvas.StateActive, active)
	}
}

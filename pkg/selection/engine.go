// Package selection implements drag-to-copy over a multi-page canvas.
//
// A left-button press on a page starts a drag. Moves are throttled; each processed move
// rebuilds the selection of every page the drag spans and redraws its highlight, reusing
// shapes whose canvas key did not change. Near the top or bottom of the viewport a
// repeating timer scrolls the canvas and replays the last move. Release ends the drag and
// hands the selection to OnCopy; Ctrl/Cmd+C replays the last selection; a click elsewhere
// clears it.
package selection

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/golang/geo/r2"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/logger"
	"github.com/gardar/ocrmark/pkg/match"
)

// State of the drag state machine
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Modifiers held during a pointer or key event
type Modifiers struct {
	Ctrl, Meta, Shift, Alt bool
}

// Any reports whether any modifier is held
func (m Modifiers) Any() bool {
	return m.Ctrl || m.Meta || m.Shift || m.Alt
}

// PointerEvent is a pointer event in screen space
type PointerEvent struct {
	Point  geom.Point
	Button int // 0 is the primary button
	Mods   Modifiers
}

// KeyEvent is a key press
type KeyEvent struct {
	Key  string
	Mods Modifiers
}

// PageSource looks normalized pages up by 1-based index
type PageSource interface {
	Page(index int) (*layout.Page, bool)
}

// CopyFunc receives a finished selection
type CopyFunc func(ctx context.Context, sel Selection) error

// Options configures an Engine
type Options struct {
	Config    config.SelectionConfig
	Tolerance float64 // line merge tolerance for highlight boxes
	Canvas    canvas.Canvas
	Pages     PageSource
	Matcher   *match.Matcher
	Scheduler canvas.Scheduler
	Overlay   canvas.Overlay
	OnCopy    CopyFunc
	Log       *logger.Logger
}

// Engine is the drag-to-copy state machine. Its methods are safe to call from the event
// loop and from scheduler callbacks.
type Engine struct {
	cfg       config.SelectionConfig
	tolerance float64
	canvas    canvas.Canvas
	pages     PageSource
	matcher   *match.Matcher
	sched     canvas.Scheduler
	overlay   canvas.Overlay
	onCopy    CopyFunc
	log       *logger.Logger
	throttle  *throttle

	mu          sync.Mutex
	state       State
	startCanvas geom.Point
	startPage   int
	lastScreen  geom.Point
	collection  Selection
	last        Selection
	shapes      map[int]map[string]canvas.Shape

	scroll autoScroll
}

type autoScroll struct {
	timer canvas.Stopper
	dir   int // +1 down, -1 up
	speed float64
	gen   int
}

// New returns an idle engine
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg.ScrollInterval <= 0 {
		cfg = config.Default().Selection
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = canvas.SystemScheduler{}
	}
	overlay := opts.Overlay
	if overlay == nil {
		overlay = canvas.NopOverlay{}
	}
	m := opts.Matcher
	if m == nil {
		m = match.New(geom.NewRotationCache())
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = geom.DefaultLineTolerance
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		cfg:        cfg,
		tolerance:  tol,
		canvas:     opts.Canvas,
		pages:      opts.Pages,
		matcher:    m,
		sched:      sched,
		overlay:    overlay,
		onCopy:     opts.OnCopy,
		log:        log.WithOperation("selection"),
		throttle:   newThrottle(sched, cfg.Throttle),
		collection: make(Selection),
		shapes:     make(map[int]map[string]canvas.Shape),
	}
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dragging reports whether a drag is in progress. Block hover and copy stay quiet while it is.
func (e *Engine) Dragging() bool {
	return e.State() == Dragging
}

// PointerDown starts a drag on a primary-button press without modifiers over a page. It
// reports whether a drag started.
func (e *Engine) PointerDown(ev PointerEvent) bool {
	if ev.Button != 0 || ev.Mods.Any() {
		return false
	}
	cp := canvas.ScreenToCanvas(e.canvas, ev.Point)
	page, ok := e.canvas.PageByPoint(cp)
	if !ok {
		return false
	}
	e.throttle.Cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopScrollLocked()
	e.clearLocked()
	e.state = Dragging
	e.startCanvas = cp
	e.startPage = page
	e.lastScreen = ev.Point
	e.log.Debugw("drag started", "page", page, "x", cp.X, "y", cp.Y)
	return true
}

// PointerMove updates the drag. Processing is throttled; auto-scroll reacts immediately.
func (e *Engine) PointerMove(ev PointerEvent) {
	e.mu.Lock()
	if e.state != Dragging {
		e.mu.Unlock()
		return
	}
	e.lastScreen = ev.Point
	e.autoScrollLocked(ev.Point)
	e.mu.Unlock()

	e.throttle.Do(e.throttledMove)
}

func (e *Engine) throttledMove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Dragging {
		e.moveLocked(e.lastScreen)
	}
}

// PointerUp ends the drag and hands the selection to OnCopy
func (e *Engine) PointerUp(ctx context.Context, ev PointerEvent) error {
	e.mu.Lock()
	if e.state != Dragging {
		e.mu.Unlock()
		return nil
	}
	e.lastScreen = ev.Point
	e.mu.Unlock()

	flushed := e.throttle.Flush()

	e.mu.Lock()
	if !flushed && e.state == Dragging {
		e.moveLocked(e.lastScreen)
	}
	e.stopScrollLocked()
	e.state = Idle
	sel := e.collection.clone()
	e.last = sel
	if !sel.Empty() {
		if r, ok := e.screenBoundsLocked(); ok {
			e.overlay.Show(r)
		}
	}
	e.log.Debugw("drag ended", "pages", sel.Pages(), "chars", len([]rune(sel.Text())))
	e.mu.Unlock()

	if sel.Empty() || e.onCopy == nil {
		return nil
	}
	return e.onCopy(ctx, sel)
}

// ClickOutside clears the highlight without copying. It is ignored during a drag.
func (e *Engine) ClickOutside() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Dragging {
		return
	}
	e.clearLocked()
	e.last = nil
	e.canvas.Render()
}

// KeyDown replays the last selection on Ctrl/Cmd+C. It reports whether it copied.
func (e *Engine) KeyDown(ctx context.Context, ev KeyEvent) (bool, error) {
	if !(ev.Mods.Ctrl || ev.Mods.Meta) || !strings.EqualFold(ev.Key, "c") {
		return false, nil
	}
	e.mu.Lock()
	sel := e.last
	busy := e.state == Dragging
	e.mu.Unlock()
	if busy || sel.Empty() || e.onCopy == nil {
		return false, nil
	}
	return true, e.onCopy(ctx, sel)
}

// Selection returns a copy of what the current or last drag collected
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Dragging {
		return e.collection.clone()
	}
	return e.last.clone()
}

// Clear drops highlights and collections, for document reloads
func (e *Engine) Clear() {
	e.throttle.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopScrollLocked()
	e.state = Idle
	e.clearLocked()
	e.last = nil
}

// Destroy stops every timer and removes every shape
func (e *Engine) Destroy() {
	e.Clear()
}

// moveLocked rebuilds the selection for the drag ending at screen point sp
func (e *Engine) moveLocked(sp geom.Point) {
	cur := canvas.ScreenToCanvas(e.canvas, sp)
	endPage, ok := e.canvas.PageByPoint(cur)
	if !ok {
		return
	}

	firstPage, firstPt, lastPage, lastPt := e.startPage, e.startCanvas, endPage, cur
	if firstPage > lastPage {
		firstPage, firstPt, lastPage, lastPt = lastPage, lastPt, firstPage, firstPt
	}

	// endPage comes from the scrolled canvas point, so a page crossed by auto-scroll is
	// already inside the span; pages left behind are cleared through the collection.
	touched := map[int]bool{}
	for p := firstPage; p <= lastPage; p++ {
		touched[p] = true
	}
	for p := range e.collection {
		touched[p] = true
	}

	pages := make([]int, 0, len(touched))
	for p := range touched {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, pi := range pages {
		delete(e.collection, pi)
		if pi >= firstPage && pi <= lastPage {
			e.collectLocked(pi, firstPage, lastPage, firstPt, lastPt)
		}
		e.renderLocked(pi)
	}
	e.canvas.Render()
}

func (e *Engine) collectLocked(pi, firstPage, lastPage int, firstPt, lastPt geom.Point) {
	page, ok := e.pages.Page(pi)
	if !ok {
		return
	}
	info, ok := e.canvas.InternalPage(pi)
	if !ok {
		return
	}
	f := info.Frame

	var from, to *geom.Point
	if pi == firstPage {
		p := f.CanvasToDisplay(firstPt)
		from = &p
	}
	if pi == lastPage {
		p := f.CanvasToDisplay(lastPt)
		to = &p
	}
	if cs := e.matcher.Match(page, f, from, to); len(cs) > 0 {
		e.collection[pi] = cs
	}
}

// renderLocked diffs the highlight shapes of page against its collection
func (e *Engine) renderLocked(pi int) {
	var positions []geom.Polygon
	for _, c := range e.collection[pi] {
		positions = append(positions, c.Pos...)
	}

	want := make(map[string]geom.Polygon)
	for _, box := range geom.MultiLineBoxes(positions, e.tolerance) {
		poly := e.canvas.TransformPositionByPageRect(box, pi)
		want[poly.Key()] = poly
	}

	have := e.shapes[pi]
	if have == nil {
		have = make(map[string]canvas.Shape)
		e.shapes[pi] = have
	}
	for key, s := range have {
		if _, ok := want[key]; !ok {
			s.Destroy()
			delete(have, key)
		}
	}
	for key, poly := range want {
		if _, ok := have[key]; ok {
			continue
		}
		have[key] = e.canvas.DrawRect(canvas.ShapeOptions{
			Page:    pi,
			Polygon: poly,
			Fill:    e.cfg.Fill,
			Group:   canvas.GroupSelection,
		})
	}
	if len(have) == 0 {
		delete(e.shapes, pi)
	}
}

func (e *Engine) clearLocked() {
	for pi, shapes := range e.shapes {
		for _, s := range shapes {
			s.Destroy()
		}
		delete(e.shapes, pi)
	}
	e.collection = make(Selection)
	e.overlay.Hide()
}

// screenBoundsLocked returns the screen rectangle around every highlight shape
func (e *Engine) screenBoundsLocked() (geom.Rect, bool) {
	r := r2.EmptyRect()
	for _, shapes := range e.shapes {
		for _, s := range shapes {
			r = r.Union(e.canvas.TransformActualPoint(s.Options().Polygon).Bounds())
		}
	}
	if r.IsEmpty() {
		return geom.Rect{}, false
	}
	return geom.Rect{Left: r.X.Lo, Top: r.Y.Lo, Width: r.X.Length(), Height: r.Y.Length()}, true
}

// autoScrollLocked starts, retunes or stops the auto-scroll timer for pointer sp
func (e *Engine) autoScrollLocked(sp geom.Point) {
	vp := e.canvas.Viewport()
	margin := e.cfg.EdgeMargin
	dir, dist := 0, 0.0
	switch {
	case sp.Y > vp.Bottom()-margin:
		dir, dist = 1, sp.Y-(vp.Bottom()-margin)
	case sp.Y < vp.Top+margin:
		dir, dist = -1, vp.Top+margin-sp.Y
	}
	if dir == 0 {
		e.stopScrollLocked()
		return
	}
	e.scroll.speed = math.Max(e.cfg.MinScrollSpeed, dist*e.cfg.ScrollFactor)
	if e.scroll.timer != nil && e.scroll.dir == dir {
		return
	}
	e.stopScrollLocked()
	e.scroll.dir = dir
	e.scroll.gen++
	gen := e.scroll.gen
	e.scroll.timer = e.sched.Every(e.cfg.ScrollInterval, func() { e.scrollTick(gen) })
	e.log.Debugw("auto-scroll started", "direction", dir)
}

func (e *Engine) scrollTick(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scroll.gen != gen || e.scroll.timer == nil {
		return
	}
	if e.state != Dragging {
		e.stopScrollLocked()
		return
	}
	t := e.canvas.Translate()
	e.canvas.UpdateTranslate(geom.Point{X: t.X, Y: t.Y - float64(e.scroll.dir)*e.scroll.speed})
	e.moveLocked(e.lastScreen)
}

func (e *Engine) stopScrollLocked() {
	if e.scroll.timer == nil {
		return
	}
	e.scroll.timer.Stop()
	e.scroll.timer = nil
	e.scroll.dir = 0
	e.scroll.gen++
	e.log.Debugw("auto-scroll stopped")
}

package blocks

import (
	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/layout"
)

// DataOriID is the ShapeOptions.Data key holding a structured shape's ori_id
const DataOriID = "ori_id"

// Prepare creates the hidden structured shapes of page once. It reports whether shapes
// were created by this call.
func (x *Index) Prepare(page int) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.prepareLocked(page)
}

func (x *Index) prepareLocked(page int) bool {
	if x.prepared[page] {
		return false
	}
	p, ok := x.pages.Page(page)
	if !ok {
		return false
	}
	x.prepared[page] = true
	n := 0
	for i, b := range p.Areas {
		if b.Empty() || !b.Position.Valid() {
			continue
		}
		id := layout.OriID(page, i)
		x.shapes[id] = x.canvas.DrawPolygon(canvas.ShapeOptions{
			Page:    page,
			Polygon: x.canvas.TransformPositionByPageRect(b.Position, page),
			Fill:    x.cfg.HoverFill,
			Group:   canvas.GroupStructured,
			Hidden:  true,
			Data:    map[string]string{DataOriID: id},
		})
		n++
	}
	x.log.Debugw("structured shapes created", "page", page, "count", n)
	return true
}

// ChangePage prepares the pages within the lookaround window of current
func (x *Index) ChangePage(current int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for p := current - x.cfg.Lookaround; p <= current+x.cfg.Lookaround; p++ {
		if p >= 1 {
			x.prepareLocked(p)
		}
	}
}

// Prepared reports whether page has its structured shapes
func (x *Index) Prepared(page int) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.prepared[page]
}

// Shape returns the structured shape of oriID, if its page was prepared
func (x *Index) Shape(oriID string) (canvas.Shape, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s, ok := x.shapes[oriID]
	return s, ok
}

// Hover lights oriID and every block of its merge group. Siblings on pages not yet
// prepared are prepared first. It reports whether anything was lit; a running drag
// selection suppresses hover.
func (x *Index) Hover(oriID string) bool {
	if x.busy() {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.active[oriID]; ok {
		return false
	}
	group := x.merge.Group(oriID)
	x.active[oriID] = group
	for _, id := range group {
		x.hovers[id]++
		if x.hovers[id] == 1 {
			x.showLocked(id, true)
		}
	}
	x.canvas.Render()
	return true
}

// Leave undoes Hover for oriID. A sibling stays lit while another hover still covers it.
func (x *Index) Leave(oriID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	group, ok := x.active[oriID]
	if !ok {
		return
	}
	delete(x.active, oriID)
	for _, id := range group {
		x.hovers[id]--
		if x.hovers[id] <= 0 {
			delete(x.hovers, id)
			x.showLocked(id, false)
		}
	}
	x.canvas.Render()
}

// Lit reports whether oriID is currently highlighted
func (x *Index) Lit(oriID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.hovers[oriID] > 0
}

func (x *Index) showLocked(id string, on bool) {
	s, ok := x.shapes[id]
	if !ok {
		page, _, err := layout.ParseOriID(id)
		if err != nil {
			x.log.Warnw("bad ori_id in merge group", "ori_id", id)
			return
		}
		x.prepareLocked(page)
		if s, ok = x.shapes[id]; !ok {
			return
		}
	}
	opts := s.Options()
	opts.Hidden = !on
	s.UpdateOptions(opts)
	s.SetState(canvas.StateHover, on)
}

// Package blocks resolves structured layout blocks (paragraphs, tables, images) by their
// ori_id, highlights them on hover together with their cross-page merge group, and builds
// the clipboard payload for a clicked block.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tidwall/rtree"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/logger"
)

var (
	// ErrUnknownBlock is returned when an ori_id names no block of the loaded document
	ErrUnknownBlock = errors.New("blocks: unknown block")
	// ErrBadOriID is returned for identifiers not shaped "<pageIndex-1>,<areaIndex>"
	ErrBadOriID = layout.ErrBadOriID
	// ErrBusy is returned while a drag selection owns the pointer
	ErrBusy = errors.New("blocks: drag selection in progress")
)

// PageSource looks normalized pages up by 1-based index
type PageSource interface {
	Page(index int) (*layout.Page, bool)
}

// Content is a resolved block
type Content struct {
	OriID  string
	Page   int
	Area   int
	Type   layout.BlockType
	Text   string
	HTML   string // tables only
	Image  string // PNG data URL, image blocks only
	PNG    []byte
	Merged bool     // content came from the merge map
	Group  []string // ori_ids sharing the merge group, OriID included
}

// Options configures an Index
type Options struct {
	Config    config.BlocksConfig
	Canvas    canvas.Canvas
	Surface   canvas.Surface // backing bitmap for image crops, optional
	Clipboard canvas.Clipboard
	Pages     PageSource
	Merge     layout.MergeMap
	// Busy reports whether a drag selection is running; hover and copy stay quiet while it does
	Busy func() bool
	Log  *logger.Logger
}

// Index is the structured block index of one document
type Index struct {
	cfg       config.BlocksConfig
	canvas    canvas.Canvas
	surface   canvas.Surface
	clipboard canvas.Clipboard
	pages     PageSource
	merge     layout.MergeMap
	busy      func() bool
	log       *logger.Logger

	mu       sync.Mutex
	trees    map[int]*rtree.RTreeG[int]
	shapes   map[string]canvas.Shape // ori_id → structured shape
	prepared map[int]bool
	hovers   map[string]int      // ori_id → number of active hovers lighting it
	active   map[string][]string // hovered ori_id → group it lit
}

// New returns an index over pages
func New(opts Options) *Index {
	cfg := opts.Config
	if cfg.HoverFill == "" {
		cfg = config.Default().Blocks
	}
	busy := opts.Busy
	if busy == nil {
		busy = func() bool { return false }
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Index{
		cfg:       cfg,
		canvas:    opts.Canvas,
		surface:   opts.Surface,
		clipboard: opts.Clipboard,
		pages:     opts.Pages,
		merge:     opts.Merge,
		busy:      busy,
		log:       log.WithOperation("blocks"),
		trees:     make(map[int]*rtree.RTreeG[int]),
		shapes:    make(map[string]canvas.Shape),
		prepared:  make(map[int]bool),
		hovers:    make(map[string]int),
		active:    make(map[string][]string),
	}
}

// Block returns the structured block an ori_id names
func (x *Index) Block(oriID string) (*layout.Page, int, layout.Block, error) {
	pi, ai, err := layout.ParseOriID(oriID)
	if err != nil {
		return nil, 0, layout.Block{}, err
	}
	pages, _ := x.source()
	p, ok := pages.Page(pi)
	if !ok {
		return nil, 0, layout.Block{}, fmt.Errorf("%w: %s (no page %d)", ErrUnknownBlock, oriID, pi)
	}
	b, ok := p.Area(ai)
	if !ok || b.Empty() {
		return nil, 0, layout.Block{}, fmt.Errorf("%w: %s", ErrUnknownBlock, oriID)
	}
	return p, ai, b, nil
}

// Resolve returns the content of the block named by oriID. A merge map entry wins
// outright; otherwise the text is rebuilt from the block's lines, and image blocks are
// cropped from the rendered surface.
func (x *Index) Resolve(ctx context.Context, oriID string) (Content, error) {
	pi, ai, err := layout.ParseOriID(oriID)
	if err != nil {
		return Content{}, err
	}
	_, merge := x.source()
	c := Content{OriID: oriID, Page: pi, Area: ai, Group: merge.Group(oriID)}

	if e, ok := merge.Lookup(oriID); ok {
		c.Merged = true
		c.Type = e.Type
		if c.Type == "" {
			c.Type = layout.Paragraph
		}
		c.Text = e.Content
		if c.Type == layout.Table {
			c.HTML, err = tableHTML(e.HTML, nil, e.Content)
			if err != nil {
				return Content{}, fmt.Errorf("failed to render merged table %s: %w", oriID, err)
			}
		}
		return c, nil
	}

	p, _, b, err := x.Block(oriID)
	if err != nil {
		return Content{}, err
	}
	c.Type = b.Type
	c.Text = p.BlockText(b)

	switch b.Type {
	case layout.Table:
		c.HTML, err = tableHTML(b.HTML, x.cellGrid(p, b), b.Text)
		if err != nil {
			return Content{}, fmt.Errorf("failed to render table %s: %w", oriID, err)
		}
	case layout.Image:
		if x.surface == nil {
			break
		}
		png, err := x.crop(ctx, pi, b.Position)
		if err != nil {
			return Content{}, fmt.Errorf("failed to crop image %s: %w", oriID, err)
		}
		c.PNG = png
		c.Image = dataURL(png)
	}
	return c, nil
}

func (x *Index) cellGrid(p *layout.Page, b layout.Block) [][]string {
	if len(b.Cells) == 0 {
		return nil
	}
	rows := 0
	for _, c := range b.Cells {
		rows = max(rows, c.Row+1)
	}
	grid := make([][]string, rows)
	for _, c := range b.Cells {
		cols := c.Col + 1
		for len(grid[c.Row]) < cols {
			grid[c.Row] = append(grid[c.Row], "")
		}
		text := c.Text
		if text == "" {
			for _, l := range p.ResolveLines(c.Content) {
				text += l.Text
			}
		}
		grid[c.Row][c.Col] = text
	}
	return grid
}

// tree returns the spatial index of a page's blocks, building it on first use
func (x *Index) tree(p *layout.Page) *rtree.RTreeG[int] {
	x.mu.Lock()
	defer x.mu.Unlock()
	if t, ok := x.trees[p.Index]; ok {
		return t
	}
	t := new(rtree.RTreeG[int])
	for i, b := range p.Areas {
		if b.Empty() || !b.Position.Valid() {
			continue
		}
		r := b.Position.Bounds()
		t.Insert([2]float64{r.X.Lo, r.Y.Lo}, [2]float64{r.X.Hi, r.Y.Hi}, i)
	}
	x.trees[p.Index] = t
	return t
}

// BlockAt returns the ori_id of the smallest block containing pt, an origin-space point
// of page. Nested blocks win over the blocks around them.
func (x *Index) BlockAt(page int, pt geom.Point) (string, bool) {
	pages, _ := x.source()
	p, ok := pages.Page(page)
	if !ok {
		return "", false
	}
	best, bestArea := -1, math.Inf(1)
	x.tree(p).Search([2]float64{pt.X, pt.Y}, [2]float64{pt.X, pt.Y},
		func(lo, hi [2]float64, area int) bool {
			if a := (hi[0] - lo[0]) * (hi[1] - lo[1]); a < bestArea {
				best, bestArea = area, a
			}
			return true
		})
	if best < 0 {
		return "", false
	}
	return layout.OriID(page, best), true
}

// BlockAtCanvas is BlockAt for a canvas-space point
func (x *Index) BlockAtCanvas(pt geom.Point) (string, bool) {
	page, ok := x.canvas.PageByPoint(pt)
	if !ok {
		return "", false
	}
	info, ok := x.canvas.InternalPage(page)
	if !ok {
		return "", false
	}
	return x.BlockAt(page, info.Frame.FromCanvas(pt))
}

// Reset swaps in a reloaded document, dropping every shape, hover count and spatial index
func (x *Index) Reset(pages PageSource, merge layout.MergeMap) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.resetLocked()
	x.pages = pages
	x.merge = merge
}

// Destroy removes every structured shape
func (x *Index) Destroy() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.resetLocked()
}

func (x *Index) resetLocked() {
	for id, s := range x.shapes {
		s.Destroy()
		delete(x.shapes, id)
	}
	x.trees = make(map[int]*rtree.RTreeG[int])
	x.prepared = make(map[int]bool)
	x.hovers = make(map[string]int)
	x.active = make(map[string][]string)
}

func (x *Index) source() (PageSource, layout.MergeMap) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.pages, x.merge
}

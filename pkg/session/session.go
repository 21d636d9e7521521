// Package session ties the mark engines to one loaded document. A Session owns the pages,
// the merge map and every page-scoped cache, subscribes the engines to canvas events, and
// tears all of it down on Reset or Destroy.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gardar/ocrmark/pkg/blocks"
	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/logger"
	"github.com/gardar/ocrmark/pkg/match"
	"github.com/gardar/ocrmark/pkg/search"
	"github.com/gardar/ocrmark/pkg/selection"
)

// Options configures a Session
type Options struct {
	Config    config.Config
	Canvas    canvas.Canvas
	Surface   canvas.Surface
	Clipboard canvas.Clipboard
	Scheduler canvas.Scheduler
	Overlay   canvas.Overlay
	Merge     layout.MergeMap
	// OnError receives failures of event-driven work, such as a block copy started by a
	// click. Nil drops them after logging.
	OnError func(error)
	Log     *logger.Logger
}

// Session is the per-document context of the mark engines
type Session struct {
	canvas    canvas.Canvas
	clipboard canvas.Clipboard
	onError   func(error)
	log       *logger.Logger
	cache     *geom.RotationCache

	Selection *selection.Engine
	Blocks    *blocks.Index
	Searcher  *search.Searcher
	Marks     *search.Highlighter

	mu      sync.RWMutex
	pages   map[int]*layout.Page
	order   []*layout.Page
	merge   layout.MergeMap
	current int
	unsubs  []canvas.Unsubscribe
}

// New opens a session over pages and subscribes it to the canvas events
func New(pages []*layout.Page, opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		canvas:    opts.Canvas,
		clipboard: opts.Clipboard,
		onError:   opts.OnError,
		log:       log.WithOperation("session"),
		cache:     geom.NewRotationCache(),
		current:   1,
	}
	s.setPages(pages, opts.Merge)

	s.Selection = selection.New(selection.Options{
		Config:    opts.Config.Selection,
		Tolerance: opts.Config.Search.LineTolerance,
		Canvas:    opts.Canvas,
		Pages:     s,
		Matcher:   match.New(s.cache),
		Scheduler: opts.Scheduler,
		Overlay:   opts.Overlay,
		OnCopy:    s.copySelection,
		Log:       log,
	})
	s.Blocks = blocks.New(blocks.Options{
		Config:    opts.Config.Blocks,
		Canvas:    opts.Canvas,
		Surface:   opts.Surface,
		Clipboard: opts.Clipboard,
		Pages:     s,
		Merge:     opts.Merge,
		Busy:      s.Selection.Dragging,
		Log:       log,
	})
	s.Searcher = search.NewSearcher(search.Options{Config: opts.Config.Search, Log: log})
	s.Marks = search.NewHighlighter(opts.Canvas, opts.Config.Search, opts.Config.Blocks.Lookaround)

	s.unsubs = []canvas.Unsubscribe{
		opts.Canvas.On(canvas.EventMarkHover, s.onHover),
		opts.Canvas.On(canvas.EventMarkLeave, s.onLeave),
		opts.Canvas.On(canvas.EventMarkClick, s.onClick),
		opts.Canvas.On(canvas.EventChangePage, s.onChangePage),
		opts.Canvas.On(canvas.EventUpdate, s.onUpdate),
	}
	s.Blocks.ChangePage(1)
	s.log.Infow("session opened", "pages", len(pages), "merged", len(opts.Merge))
	return s
}

func (s *Session) setPages(pages []*layout.Page, merge layout.MergeMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[int]*layout.Page, len(pages))
	s.order = append([]*layout.Page(nil), pages...)
	sort.SliceStable(s.order, func(i, j int) bool { return s.order[i].Index < s.order[j].Index })
	for _, p := range pages {
		s.pages[p.Index] = p
	}
	s.merge = merge
	s.current = 1
}

// Page returns the page with 1-based index i
func (s *Session) Page(i int) (*layout.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[i]
	return p, ok
}

// Pages returns the pages in index order
func (s *Session) Pages() []*layout.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*layout.Page(nil), s.order...)
}

// Merge returns the merge map of the loaded document
func (s *Session) Merge() layout.MergeMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merge
}

// Current returns the page the reader is on
func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Search runs keyword over every page and draws the hits around the current page.
// A search overtaken by a newer one returns search.ErrSuperseded and draws nothing.
func (s *Session) Search(ctx context.Context, keyword string) ([]search.Result, error) {
	res, err := s.Searcher.SearchAll(ctx, s.Pages(), keyword)
	if err != nil {
		return nil, err
	}
	s.Marks.SetResults(res, s.Current())
	return res, nil
}

// FindNext moves the find-next cursor of keyword on the current page
func (s *Session) FindNext(keyword string) (search.Result, bool) {
	p, ok := s.Page(s.Current())
	if !ok {
		return search.Result{}, false
	}
	return s.Searcher.Next(p, keyword)
}

// Reset swaps in a reloaded document. Every highlight, hover, cursor and cache of the
// previous document is dropped; subscriptions stay.
func (s *Session) Reset(pages []*layout.Page, merge layout.MergeMap) {
	s.Selection.Clear()
	s.Marks.Clear()
	s.Searcher.Reset()
	s.cache.Clear()
	s.setPages(pages, merge)
	s.Blocks.Reset(s, merge)
	s.Blocks.ChangePage(1)
	s.canvas.Render()
	s.log.Infow("session reset", "pages", len(pages))
}

// Destroy unsubscribes every handler and removes every shape the session drew
func (s *Session) Destroy() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	s.Selection.Destroy()
	s.Blocks.Destroy()
	s.Marks.Clear()
	s.cache.Clear()
	s.canvas.Render()
}

func (s *Session) copySelection(ctx context.Context, sel selection.Selection) error {
	if s.clipboard == nil {
		return nil
	}
	items := sel.Payload()
	var err error
	if len(items) > 1 {
		err = s.clipboard.Write(ctx, items)
	} else {
		err = s.clipboard.WriteText(ctx, sel.Text())
	}
	if err != nil {
		s.log.Errorw("clipboard write failed", "pages", sel.Pages(), "error", err)
		return fmt.Errorf("failed to copy selection: %w", err)
	}
	return nil
}

func structuredID(data canvas.EventData) (string, bool) {
	if data.Shape == nil {
		return "", false
	}
	opts := data.Shape.Options()
	if opts.Group != canvas.GroupStructured {
		return "", false
	}
	id := opts.Data[blocks.DataOriID]
	return id, id != ""
}

func (s *Session) onHover(data canvas.EventData) {
	if id, ok := structuredID(data); ok {
		s.Blocks.Hover(id)
	}
}

func (s *Session) onLeave(data canvas.EventData) {
	if id, ok := structuredID(data); ok {
		s.Blocks.Leave(id)
	}
}

func (s *Session) onClick(data canvas.EventData) {
	id, ok := structuredID(data)
	if !ok {
		return
	}
	_, err := s.Blocks.Copy(context.Background(), id)
	if errors.Is(err, blocks.ErrBusy) {
		return
	}
	if err != nil {
		s.log.Warnw("block copy failed", "ori_id", id, "error", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (s *Session) onChangePage(data canvas.EventData) {
	s.mu.Lock()
	s.current = data.Page
	s.mu.Unlock()
	s.Blocks.ChangePage(data.Page)
	s.Marks.ChangePage(data.Page)
}

// onUpdate handles page placement changes. Rotated positions are recomputed lazily and
// structured shapes are redrawn around the current page.
func (s *Session) onUpdate(data canvas.EventData) {
	if data.Page > 0 {
		s.cache.Invalidate(data.Page)
	} else {
		s.cache.Clear()
	}
	s.Blocks.Destroy()
	s.Blocks.ChangePage(s.Current())
}

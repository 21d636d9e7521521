package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/logger"
)

// ErrSuperseded is returned by SearchAll when a newer search started before it finished
var ErrSuperseded = errors.New("search: superseded by a newer search")

// Result is one hit, located on its page
type Result struct {
	MatchResult
	Page       int            `json:"page"`
	Line       int            `json:"line"`        // index into Page.Lines, -1 if unknown
	LineOffset int            `json:"line_offset"` // rune offset of the hit inside its line
	AreaIndex  int            `json:"area_index"`
	Boxes      []geom.Polygon `json:"boxes"` // origin space, one per visual line
	Snippet    string         `json:"snippet"`
}

// Searcher runs keyword searches over a document. Only the latest SearchAll may publish.
type Searcher struct {
	cfg     config.SearchConfig
	log     *logger.Logger
	fuzzy   bool
	cursors Cursors

	gen atomic.Uint64

	mu     sync.Mutex
	latest []Result
}

// Options configures a Searcher
type Options struct {
	Config config.SearchConfig
	Log    *logger.Logger
}

// NewSearcher returns a Searcher. Zero snippet sizes fall back to the defaults.
func NewSearcher(opts Options) *Searcher {
	cfg := opts.Config
	def := config.Default().Search
	if cfg.SnippetTotal == 0 {
		cfg.SnippetBefore, cfg.SnippetTotal = def.SnippetBefore, def.SnippetTotal
	}
	if cfg.LineTolerance == 0 {
		cfg.LineTolerance = def.LineTolerance
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Searcher{
		cfg:   cfg,
		log:   log.WithOperation("search"),
		fuzzy: cfg.Fuzzy,
	}
}

// SearchPage returns every hit of keyword on p
func (s *Searcher) SearchPage(p *layout.Page, keyword string) []Result {
	text := []rune(p.Text())
	m := Matcher{Fuzzy: s.fuzzy}
	hits := m.FindAll(text, keyword)
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.locate(p, text, h))
	}
	return out
}

// SearchAll searches every page concurrently. A page that fails is logged and left out.
// When a newer SearchAll starts before this one finishes, ErrSuperseded is returned and
// the results are dropped. The call takes at least MinLatency.
func (s *Searcher) SearchAll(ctx context.Context, pages []*layout.Page, keyword string) ([]Result, error) {
	gen := s.gen.Add(1)
	began := time.Now()

	perPage := make([][]Result, len(pages))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.safeSearchPage(p, keyword)
			if err != nil {
				s.log.Warnw("page search failed", "page", p.Index, "error", err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}
			perPage[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if wait := s.cfg.MinLatency - time.Since(began); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	if s.gen.Load() != gen {
		return nil, ErrSuperseded
	}

	var results []Result
	for _, r := range perPage {
		results = append(results, r...)
	}
	SortResults(results)

	s.mu.Lock()
	s.latest = results
	s.mu.Unlock()
	s.log.Debugw("search finished", "keyword", keyword, "pages", len(pages),
		"results", len(results), "failed", len(multierr.Errors(errs)))
	return results, nil
}

// Latest returns the results of the last search that was not superseded
func (s *Searcher) Latest() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Next moves the find-next cursor of keyword on p and returns the hit it lands on
func (s *Searcher) Next(p *layout.Page, keyword string) (Result, bool) {
	text := []rune(p.Text())
	m := Matcher{Fuzzy: s.fuzzy}
	h, ok := s.cursors.Next(&m, p.Index, text, keyword)
	if !ok {
		return Result{}, false
	}
	return s.locate(p, text, h), true
}

// Cursor returns the find-next cursor of keyword on page
func (s *Searcher) Cursor(page int, keyword string) (Cursor, bool) {
	return s.cursors.Get(page, keyword)
}

// Reset drops cursors and published results
func (s *Searcher) Reset() {
	s.cursors.Reset(0)
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

// SortResults orders hits by their rune offset inside the line, breaking ties by edit
// distance. The sort is stable, so equal hits keep page order.
func SortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].LineOffset != rs[j].LineOffset {
			return rs[i].LineOffset < rs[j].LineOffset
		}
		return rs[i].MinEditDistance < rs[j].MinEditDistance
	})
}

func (s *Searcher) safeSearchPage(p *layout.Page, keyword string) (res []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", p.Index, r)
		}
	}()
	if len(p.TextList) != len(p.PositionList) {
		return nil, fmt.Errorf("page %d: text and position lists differ (%d != %d)",
			p.Index, len(p.TextList), len(p.PositionList))
	}
	return s.SearchPage(p, keyword), nil
}

func (s *Searcher) locate(p *layout.Page, text []rune, h MatchResult) Result {
	r := Result{
		MatchResult: h,
		Page:        p.Index,
		Line:        -1,
		AreaIndex:   -1,
		Boxes:       Boxes(p, h, s.cfg.LineTolerance),
		Snippet:     Snippet(text, h, s.cfg.SnippetBefore, s.cfg.SnippetTotal),
	}
	if h.Index < len(p.LineIndexMap) {
		r.Line = p.LineIndexMap[h.Index]
		r.LineOffset = p.LineOffsets[h.Index]
		r.AreaIndex = p.AreaIndexMap[h.Index]
	}
	return r
}

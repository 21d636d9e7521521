package session

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmark/pkg/blocks"
	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/canvas/canvastest"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/selection"
)

func textLine(id int, text string, x, y float64) layout.Line {
	n := utf8.RuneCountInString(text)
	l := layout.Line{ID: id, Text: text,
		Position: geom.Polygon{x, y, x + 10*float64(n), y, x + 10*float64(n), y + 20, x, y + 20}}
	for i := 0; i < n; i++ {
		x0 := x + 10*float64(i)
		l.CharPositions = append(l.CharPositions, geom.Polygon{x0, y, x0 + 10, y, x0 + 10, y + 20, x0, y + 20})
	}
	return l
}

func docPages() []*layout.Page {
	p1 := &layout.Page{
		Index: 1, Width: 400, Height: 600,
		Lines: []layout.Line{
			textLine(0, "合同编号：2023-001", 0, 0),
			textLine(1, "金额：100万元", 0, 40),
		},
		Areas: []layout.Block{{
			Type:     layout.Paragraph,
			Position: geom.Polygon{0, 0, 130, 0, 130, 60, 0, 60},
			Content:  layout.List(0, 1),
		}},
	}
	p2 := &layout.Page{
		Index: 2, Width: 400, Height: 600,
		Lines: []layout.Line{textLine(0, "（续）2023-001", 0, 0)},
		Areas: []layout.Block{{
			Type:     layout.Paragraph,
			Position: geom.Polygon{0, 0, 110, 0, 110, 20, 0, 20},
			Content:  layout.Single(0),
		}},
	}
	layout.BuildIndex(p1)
	layout.BuildIndex(p2)
	return []*layout.Page{p1, p2}
}

func mergeMap() layout.MergeMap {
	e := layout.MergeEntry{OriID: []string{"0,0", "1,0"}, Type: layout.Paragraph, Content: "merged paragraph"}
	return layout.MergeMap{"0,0": e, "1,0": e}
}

var events = []canvas.Event{
	canvas.EventMarkHover, canvas.EventMarkLeave, canvas.EventMarkClick,
	canvas.EventChangePage, canvas.EventUpdate,
}

type fixture struct {
	session   *Session
	canvas    *canvastest.Canvas
	clipboard *canvastest.Clipboard
	sched     *canvas.ManualScheduler
	errs      []error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pages := docPages()
	f := &fixture{
		canvas:    canvastest.New(canvastest.Stack(pages, 10), 400, 2000),
		clipboard: &canvastest.Clipboard{},
		sched:     canvas.NewManualScheduler(time.Unix(0, 0)),
	}
	f.session = New(pages, Options{
		Config:    config.Default(),
		Canvas:    f.canvas,
		Clipboard: f.clipboard,
		Scheduler: f.sched,
		Merge:     mergeMap(),
		OnError:   func(err error) { f.errs = append(f.errs, err) },
	})
	t.Cleanup(f.session.Destroy)
	return f
}

func (f *fixture) structured(t *testing.T, oriID string) canvas.Shape {
	t.Helper()
	s, ok := f.session.Blocks.Shape(oriID)
	require.True(t, ok, "no structured shape for %s", oriID)
	return s
}

func TestSession_SubscriptionsArePaired(t *testing.T) {
	f := newFixture(t)
	for _, e := range events {
		assert.Equal(t, 1, f.canvas.Count(e), string(e))
	}

	f.session.Destroy()
	for _, e := range events {
		assert.Zero(t, f.canvas.Count(e), string(e))
	}
	assert.Empty(t, f.canvas.Live(""))

	f.session.Destroy() // second call is harmless
}

func TestSession_PreparesFirstPagesOnOpen(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.session.Blocks.Prepared(1))
	assert.True(t, f.session.Blocks.Prepared(2))
	assert.Len(t, f.canvas.Live(canvas.GroupStructured), 2)
}

func TestSession_HoverEventsLightMergeGroup(t *testing.T) {
	f := newFixture(t)
	shape := f.structured(t, "0,0")

	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkHover, Shape: shape})
	assert.True(t, f.session.Blocks.Lit("0,0"))
	assert.True(t, f.session.Blocks.Lit("1,0"))

	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkLeave, Shape: shape})
	assert.False(t, f.session.Blocks.Lit("0,0"))
	assert.False(t, f.session.Blocks.Lit("1,0"), "leaving clears every sibling")
}

func TestSession_IgnoresNonStructuredShapes(t *testing.T) {
	f := newFixture(t)
	other := f.canvas.DrawRect(canvas.ShapeOptions{Page: 1, Group: canvas.GroupSearch,
		Data: map[string]string{blocks.DataOriID: "0,0"}})

	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkHover, Shape: other})
	assert.False(t, f.session.Blocks.Lit("0,0"))
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick, Shape: other})
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick})
	assert.Empty(t, f.clipboard.Texts)
}

func TestSession_ClickCopiesBlock(t *testing.T) {
	f := newFixture(t)
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick, Shape: f.structured(t, "1,0")})
	assert.Equal(t, []string{"merged paragraph"}, f.clipboard.Texts)
	assert.Empty(t, f.errs)
}

func TestSession_ClickFailureReachesOnError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("denied")
	f.clipboard.Err = boom

	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick, Shape: f.structured(t, "0,0")})
	require.Len(t, f.errs, 1)
	assert.ErrorIs(t, f.errs[0], boom)
}

func TestSession_DragCopiesSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.session.Selection

	require.True(t, sel.PointerDown(selection.PointerEvent{Point: geom.Point{X: 50, Y: 10}}))

	// a drag owns the pointer: block hover and click stay quiet
	shape := f.structured(t, "0,0")
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkHover, Shape: shape})
	assert.False(t, f.session.Blocks.Lit("0,0"))
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick, Shape: shape})
	assert.Empty(t, f.errs, "a suppressed click is not an error")

	sel.PointerMove(selection.PointerEvent{Point: geom.Point{X: 30, Y: 50}})
	require.NoError(t, sel.PointerUp(ctx, selection.PointerEvent{Point: geom.Point{X: 30, Y: 50}}))

	assert.Equal(t, []string{"2023-001金额："}, f.clipboard.Texts)
	assert.Zero(t, f.sched.Pending())
}

func TestSession_SearchAndChangePage(t *testing.T) {
	f := newFixture(t)
	res, err := f.session.Search(context.Background(), "2023-001")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 2, res[0].Page, "page 2 has its hit at line offset 3, page 1 at line offset 5")
	assert.Equal(t, 1, res[1].Page)
	assert.True(t, f.session.Marks.Rendered(1))
	assert.True(t, f.session.Marks.Rendered(2))

	f.canvas.Emit(canvas.EventData{Event: canvas.EventChangePage, Page: 2})
	assert.Equal(t, 2, f.session.Current())

	r, ok := f.session.FindNext("2023-001")
	require.True(t, ok)
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, 3, r.Index)
}

func TestSession_UpdateRedrawsStructuredShapes(t *testing.T) {
	f := newFixture(t)
	before := f.structured(t, "0,0")

	f.canvas.Emit(canvas.EventData{Event: canvas.EventUpdate})
	after := f.structured(t, "0,0")
	assert.NotEqual(t, before.ID(), after.ID())
	assert.Len(t, f.canvas.Live(canvas.GroupStructured), 2)
}

func TestSession_ResetSwapsDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Search(context.Background(), "2023-001")
	require.NoError(t, err)
	f.canvas.Emit(canvas.EventData{Event: canvas.EventChangePage, Page: 2})

	next := docPages()[:1]
	f.session.Reset(next, nil)

	assert.Equal(t, 1, f.session.Current())
	assert.Len(t, f.session.Pages(), 1)
	_, ok := f.session.Page(2)
	assert.False(t, ok)
	assert.Nil(t, f.session.Merge())
	assert.Empty(t, f.canvas.Live(canvas.GroupSearch))
	assert.Len(t, f.canvas.Live(canvas.GroupStructured), 1)

	// subscriptions survive a reset
	f.canvas.Emit(canvas.EventData{Event: canvas.EventMarkClick, Shape: f.structured(t, "0,0")})
	assert.Equal(t, []string{"合同编号：2023-001金额：100万元"}, f.clipboard.Texts)
}

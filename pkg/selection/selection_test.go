package selection

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/canvas/canvastest"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/match"
)

type pageMap map[int]*layout.Page

func (m pageMap) Page(i int) (*layout.Page, bool) {
	p, ok := m[i]
	return p, ok
}

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

func contractPage(index int) *layout.Page {
	p := &layout.Page{
		Index:  index,
		Width:  400,
		Height: 600,
		Lines: []layout.Line{
			textLine(0, "合同编号：2023-001", 0, 0),
			textLine(1, "金额：100万元", 0, 40),
		},
		Areas: []layout.Block{{Type: layout.Paragraph, Content: layout.List(0, 1)}},
	}
	layout.BuildIndex(p)
	return p
}

type fixture struct {
	engine  *Engine
	canvas  *canvastest.Canvas
	sched   *canvas.ManualScheduler
	overlay *canvastest.Overlay
	copied  []Selection
}

func newFixture(t *testing.T, pages ...*layout.Page) *fixture {
	t.Helper()
	return newFixtureViewport(t, 600, pages...)
}

func newFixtureViewport(t *testing.T, viewportH float64, pages ...*layout.Page) *fixture {
	t.Helper()
	f := &fixture{
		canvas:  canvastest.New(canvastest.Stack(pages, 10), 400, viewportH),
		sched:   canvas.NewManualScheduler(time.Unix(1000, 0)),
		overlay: &canvastest.Overlay{},
	}
	src := pageMap{}
	for _, p := range pages {
		src[p.Index] = p
	}
	f.engine = New(Options{
		Config:    config.Default().Selection,
		Canvas:    f.canvas,
		Pages:     src,
		Matcher:   match.New(geom.NewRotationCache()),
		Scheduler: f.sched,
		Overlay:   f.overlay,
		OnCopy: func(_ context.Context, sel Selection) error {
			f.copied = append(f.copied, sel)
			return nil
		},
	})
	return f
}

func at(x, y float64) PointerEvent {
	return PointerEvent{Point: geom.Point{X: x, Y: y}}
}

func TestEngine_DragAcrossTwoLines(t *testing.T) {
	f := newFixture(t, contractPage(1))
	ctx := context.Background()

	require.True(t, f.engine.PointerDown(at(50, 10)))
	assert.True(t, f.engine.Dragging())
	f.engine.PointerMove(at(30, 50))
	require.NoError(t, f.engine.PointerUp(ctx, at(30, 50)))

	assert.Equal(t, Idle, f.engine.State())
	require.Len(t, f.copied, 1)
	sel := f.copied[0]
	assert.Equal(t, []int{1}, sel.Pages())
	require.Len(t, sel[1], 2)
	assert.Equal(t, "2023-001", sel[1][0].Text)
	assert.Equal(t, "金额：", sel[1][1].Text)
	assert.Equal(t, "2023-001金额：", sel.Text())
	assert.Empty(t, sel.HTML())

	shapes := f.canvas.Live(canvas.GroupSelection)
	assert.Len(t, shapes, 2, "one highlight box per line")
	assert.True(t, f.overlay.Visible)
	assert.Equal(t, geom.Rect{Left: 0, Top: 0, Width: 130, Height: 60}, f.overlay.Last)
}

func TestEngine_ThrottlesMoves(t *testing.T) {
	f := newFixture(t, contractPage(1))
	require.True(t, f.engine.PointerDown(at(0, 10)))

	f.engine.PointerMove(at(20, 10)) // leading call runs at once
	assert.Equal(t, "合同", f.engine.Selection().Text())

	f.engine.PointerMove(at(30, 10))
	f.engine.PointerMove(at(40, 10))
	assert.Equal(t, "合同", f.engine.Selection().Text(), "calls inside the window wait")

	f.sched.Advance(30 * time.Millisecond)
	assert.Equal(t, "合同编号", f.engine.Selection().Text(), "the trailing call uses the latest point")
}

func TestEngine_ReleaseCollectsFinalPoint(t *testing.T) {
	f := newFixtureViewport(t, 2000, contractPage(1))
	f.canvas.UpdateTranslate(geom.Point{Y: 100})
	require.True(t, f.engine.PointerDown(at(0, 110)))
	f.engine.PointerMove(at(20, 110))
	assert.Equal(t, "合同", f.engine.Selection().Text())

	// released further along with no move pending
	assert.Zero(t, f.sched.Pending())
	require.NoError(t, f.engine.PointerUp(context.Background(), at(40, 110)))
	require.Len(t, f.copied, 1)
	assert.Equal(t, "合同编号", f.copied[0].Text())
	assert.Len(t, f.canvas.Live(canvas.GroupSelection), 1)
}

func TestEngine_ReusesUnchangedShapes(t *testing.T) {
	f := newFixture(t, contractPage(1))
	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 50))
	created := f.canvas.Created

	f.sched.Advance(time.Second)
	f.engine.PointerMove(at(31, 50))
	assert.Equal(t, created, f.canvas.Created, "same boxes, same shapes")

	f.sched.Advance(time.Second)
	f.engine.PointerMove(at(90, 10))
	assert.Equal(t, "2023", f.engine.Selection().Text())
	assert.Len(t, f.canvas.Live(canvas.GroupSelection), 1)
	assert.Equal(t, created+1, f.canvas.Created)
	assert.Equal(t, 2, f.canvas.Destroyed)
}

func TestEngine_IgnoresOtherButtonsAndModifiers(t *testing.T) {
	f := newFixture(t, contractPage(1))
	assert.False(t, f.engine.PointerDown(PointerEvent{Point: geom.Point{X: 5, Y: 5}, Button: 2}))
	assert.False(t, f.engine.PointerDown(PointerEvent{Point: geom.Point{X: 5, Y: 5}, Mods: Modifiers{Shift: true}}))
	assert.False(t, f.engine.PointerDown(at(5, 700)), "no page under the pointer")
	assert.Equal(t, Idle, f.engine.State())

	// moves and releases without a drag do nothing
	f.engine.PointerMove(at(30, 50))
	require.NoError(t, f.engine.PointerUp(context.Background(), at(30, 50)))
	assert.Empty(t, f.copied)
}

func TestEngine_MoveOffPageIsNoop(t *testing.T) {
	f := newFixture(t, contractPage(1), contractPage(2))
	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 50))
	before := f.engine.Selection().Text()

	f.sched.Advance(time.Second)
	f.engine.PointerMove(at(30, 605)) // gap between the pages
	assert.Equal(t, before, f.engine.Selection().Text())
}

func TestEngine_DragAcrossPages(t *testing.T) {
	// a tall viewport keeps the pointer clear of the auto-scroll margins
	f := newFixtureViewport(t, 2000, contractPage(1), contractPage(2))
	f.canvas.UpdateTranslate(geom.Point{Y: 100})

	require.True(t, f.engine.PointerDown(at(50, 110)))
	f.engine.PointerMove(at(30, 760))
	require.NoError(t, f.engine.PointerUp(context.Background(), at(30, 760)))

	require.Len(t, f.copied, 1)
	sel := f.copied[0]
	assert.Equal(t, []int{1, 2}, sel.Pages())
	assert.Equal(t, "2023-001金额：100万元\n合同编号：2023-001金额：", sel.Text())

	// dragging up from page 2 onto page 1, then back, drops page 1 again
	require.True(t, f.engine.PointerDown(at(30, 760)))
	f.engine.PointerMove(at(50, 110))
	assert.Equal(t, []int{1, 2}, f.engine.Selection().Pages())
	f.sched.Advance(time.Second)
	f.engine.PointerMove(at(50, 755))
	assert.Equal(t, []int{2}, f.engine.Selection().Pages())
	assert.Equal(t, "10", f.engine.Selection().Text())
	for _, s := range f.canvas.Live(canvas.GroupSelection) {
		assert.Equal(t, 2, s.Options().Page)
	}
	assert.Zero(t, f.sched.Pending())
}

func TestEngine_ClickOutsideClears(t *testing.T) {
	f := newFixture(t, contractPage(1))
	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 50))
	require.NoError(t, f.engine.PointerUp(context.Background(), at(30, 50)))
	require.NotEmpty(t, f.canvas.Live(canvas.GroupSelection))

	f.engine.ClickOutside()
	assert.Empty(t, f.canvas.Live(canvas.GroupSelection))
	assert.False(t, f.overlay.Visible)
	assert.Len(t, f.copied, 1, "clearing never copies")

	copied, err := f.engine.KeyDown(context.Background(), KeyEvent{Key: "c", Mods: Modifiers{Ctrl: true}})
	require.NoError(t, err)
	assert.False(t, copied, "nothing left to replay")
}

func TestEngine_CtrlCReplaysLastSelection(t *testing.T) {
	f := newFixture(t, contractPage(1))
	ctx := context.Background()
	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 50))
	require.NoError(t, f.engine.PointerUp(ctx, at(30, 50)))

	copied, err := f.engine.KeyDown(ctx, KeyEvent{Key: "C", Mods: Modifiers{Meta: true}})
	require.NoError(t, err)
	assert.True(t, copied)
	require.Len(t, f.copied, 2)
	assert.Equal(t, f.copied[0].Text(), f.copied[1].Text())

	copied, _ = f.engine.KeyDown(ctx, KeyEvent{Key: "c"})
	assert.False(t, copied, "plain c is not a copy")
}

func TestEngine_CopyErrorPropagates(t *testing.T) {
	f := newFixture(t, contractPage(1))
	boom := errors.New("clipboard denied")
	f.engine.onCopy = func(context.Context, Selection) error { return boom }

	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 50))
	assert.ErrorIs(t, f.engine.PointerUp(context.Background(), at(30, 50)), boom)
}

func TestEngine_AutoScrollStartsAndStopsOncePerCycle(t *testing.T) {
	f := newFixture(t, contractPage(1), contractPage(2))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		f.canvas.UpdateTranslate(geom.Point{})
		require.True(t, f.engine.PointerDown(at(50, 10)))
		f.engine.PointerMove(at(100, 300))
		f.engine.PointerMove(at(100, 590)) // enters the bottom margin
		f.engine.PointerMove(at(100, 595))
		f.engine.PointerMove(at(100, 599))

		f.sched.Advance(48 * time.Millisecond)
		assert.Less(t, f.canvas.Translate().Y, 0.0, "ticks scroll the canvas")

		require.NoError(t, f.engine.PointerUp(ctx, at(100, 599)))
		started, stopped := f.sched.Repeating()
		assert.Equal(t, i+1, started)
		assert.Equal(t, i+1, stopped)
	}

	assert.Zero(t, f.sched.Pending(), "no timer outlives its drag")
	translate := f.canvas.Translate()
	f.sched.Advance(time.Second)
	assert.Equal(t, translate, f.canvas.Translate())
}

func TestEngine_ScrollKeepsSpanToPointer(t *testing.T) {
	f := newFixture(t, contractPage(1), contractPage(2))
	require.True(t, f.engine.PointerDown(at(50, 10)))
	f.engine.PointerMove(at(30, 590)) // bottom margin, still over page 1

	assert.Equal(t, []int{1}, f.engine.Selection().Pages())
	for _, s := range f.canvas.Live(canvas.GroupSelection) {
		assert.Equal(t, 1, s.Options().Page, "the page below is not selected before the pointer reaches it")
	}
	f.engine.Destroy()
}

func TestEngine_AutoScrollSpeedAndExit(t *testing.T) {
	f := newFixture(t, contractPage(1), contractPage(2))
	require.True(t, f.engine.PointerDown(at(50, 10)))

	f.engine.PointerMove(at(100, 581)) // 1px past the margin: floor speed
	f.sched.Advance(16 * time.Millisecond)
	assert.Equal(t, -4.0, f.canvas.Translate().Y)

	f.engine.PointerMove(at(100, 600)) // 20px past: 10px per tick
	f.sched.Advance(16 * time.Millisecond)
	assert.Equal(t, -14.0, f.canvas.Translate().Y)

	// the ticks replayed the move, reaching page 2 as it scrolled into view
	assert.Contains(t, f.engine.Selection().Pages(), 1)

	f.engine.PointerMove(at(100, 300)) // leaving the margin stops the timer
	_, stopped := f.sched.Repeating()
	assert.Equal(t, 1, stopped)
	f.sched.Advance(time.Second)
	assert.Equal(t, -14.0, f.canvas.Translate().Y)

	f.engine.PointerMove(at(100, 5)) // top margin scrolls back up
	f.sched.Advance(16 * time.Millisecond)
	assert.Greater(t, f.canvas.Translate().Y, -14.0)
	f.engine.Destroy()
	assert.Zero(t, f.sched.Pending())
	assert.Empty(t, f.canvas.Live(""))
}

func TestSelection_PayloadWithTable(t *testing.T) {
	sel := Selection{
		1: {{Index: 1, Text: "before", AreaIndex: 0}},
		2: {{Index: 2, Text: "a\tb", AreaIndex: 3, Table: true, HTML: "<table><tr><td>a</td><td>b</td></tr></table>"}},
	}
	assert.Equal(t, "before\na\tb", sel.Text())
	items := sel.Payload()
	require.Len(t, items, 2)
	assert.Equal(t, canvas.MIMEText, items[0].MIME)
	assert.Equal(t, canvas.MIMEHTML, items[1].MIME)
	assert.Equal(t, "<p>before</p><table><tr><td>a</td><td>b</td></tr></table>", string(items[1].Data))

	assert.Len(t, Selection{1: {{Text: "x"}}}.Payload(), 1)
	assert.True(t, Selection{3: nil}.Empty())
}

package blocks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/canvas/canvastest"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

type pageMap map[int]*layout.Page

func (m pageMap) Page(i int) (*layout.Page, bool) {
	p, ok := m[i]
	return p, ok
}

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{x0, y0, x1, y0, x1, y1, x0, y1}
}

func docPages() pageMap {
	p1 := &layout.Page{
		Index: 1, Width: 200, Height: 200,
		Lines: []layout.Line{
			{ID: 0, Text: "第一段", Position: rect(0, 0, 200, 20)},
			{ID: 1, Text: "A", Position: rect(0, 40, 100, 60)},
			{ID: 2, Text: "B", Position: rect(100, 40, 200, 60)},
		},
		Areas: []layout.Block{
			{Type: layout.Paragraph, Position: rect(0, 0, 200, 20), Content: layout.Single(0)},
			{Type: layout.Table, Position: rect(0, 40, 200, 80), Cells: []layout.Cell{
				{Row: 0, Col: 0, Content: layout.Single(1)},
				{Row: 0, Col: 1, Content: layout.Single(2)},
			}},
			{Type: layout.Image, Position: rect(10, 100, 50, 140)},
		},
	}
	p2 := &layout.Page{
		Index: 2, Width: 200, Height: 200,
		Lines: []layout.Line{{ID: 0, Text: "续段", Position: rect(0, 0, 200, 20)}},
		Areas: []layout.Block{{Type: layout.Paragraph, Position: rect(0, 0, 200, 20), Content: layout.Single(0)}},
	}
	layout.BuildIndex(p1)
	layout.BuildIndex(p2)
	return pageMap{1: p1, 2: p2}
}

func mergeMap() layout.MergeMap {
	e := layout.MergeEntry{OriID: []string{"0,0", "1,0"}, Type: layout.Paragraph, Content: "第一段续段"}
	return layout.MergeMap{"0,0": e, "1,0": e}
}

type fixture struct {
	index     *Index
	canvas    *canvastest.Canvas
	clipboard *canvastest.Clipboard
	busy      bool
}

func newFixture(t *testing.T, merge layout.MergeMap) *fixture {
	t.Helper()
	pages := docPages()
	f := &fixture{
		canvas:    canvastest.New(canvastest.Stack([]*layout.Page{pages[1], pages[2]}, 10), 400, 600),
		clipboard: &canvastest.Clipboard{},
	}
	f.index = New(Options{
		Config:    config.Default().Blocks,
		Canvas:    f.canvas,
		Clipboard: f.clipboard,
		Pages:     pages,
		Merge:     merge,
		Busy:      func() bool { return f.busy },
	})
	return f
}

func TestResolve_ReconstructsFromLines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.index.Resolve(ctx, "0,0")
	require.NoError(t, err)
	assert.Equal(t, layout.Paragraph, c.Type)
	assert.Equal(t, "第一段", c.Text)
	assert.False(t, c.Merged)
	assert.Equal(t, []string{"0,0"}, c.Group)

	c, err = f.index.Resolve(ctx, "0,1")
	require.NoError(t, err)
	assert.Equal(t, layout.Table, c.Type)
	assert.Equal(t, "A\tB", c.Text)
	assert.Equal(t, "<table><tr><td>A</td><td>B</td></tr></table>", c.HTML)
}

func TestResolve_MergeMapWins(t *testing.T) {
	f := newFixture(t, mergeMap())
	c, err := f.index.Resolve(context.Background(), "1,0")
	require.NoError(t, err)
	assert.True(t, c.Merged)
	assert.Equal(t, "第一段续段", c.Text)
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, []string{"0,0", "1,0"}, c.Group)
}

func TestResolve_MergedTableFallsBackToMarkdown(t *testing.T) {
	merge := layout.MergeMap{"0,1": {
		OriID:   []string{"0,1"},
		Type:    layout.Table,
		Content: "| a | b |\n|---|---|\n| 1 | 2 |",
	}}
	f := newFixture(t, merge)
	c, err := f.index.Resolve(context.Background(), "0,1")
	require.NoError(t, err)
	assert.Contains(t, c.HTML, "<table>")
	assert.Contains(t, c.HTML, "<th>a</th>")
	assert.Contains(t, c.HTML, "<td>2</td>")
}

func TestResolve_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.index.Resolve(ctx, "0,9")
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, err = f.index.Resolve(ctx, "5,0")
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, err = f.index.Resolve(ctx, "page one")
	assert.ErrorIs(t, err, ErrBadOriID)
}

func TestTableHTML(t *testing.T) {
	h, err := tableHTML("<table><tr><td>x</td></tr></table>", [][]string{{"ignored"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "<table><tr><td>x</td></tr></table>", h)

	h, err = tableHTML("", [][]string{{"a<b", ""}, {"c"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "<table><tr><td>a&lt;b</td><td></td></tr><tr><td>c</td></tr></table>", h)

	h, err = tableHTML("", nil, "  ")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestBlockAt(t *testing.T) {
	f := newFixture(t, nil)

	id, ok := f.index.BlockAt(1, geom.Point{X: 20, Y: 50})
	require.True(t, ok)
	assert.Equal(t, "0,1", id)

	id, ok = f.index.BlockAt(1, geom.Point{X: 20, Y: 120})
	require.True(t, ok)
	assert.Equal(t, "0,2", id)

	_, ok = f.index.BlockAt(1, geom.Point{X: 20, Y: 190})
	assert.False(t, ok)
	_, ok = f.index.BlockAt(7, geom.Point{})
	assert.False(t, ok)

	// page 2 sits below page 1 and a 10 unit gap
	id, ok = f.index.BlockAtCanvas(geom.Point{X: 5, Y: 215})
	require.True(t, ok)
	assert.Equal(t, "1,0", id)
}

func TestBlockAt_PrefersInnerBlock(t *testing.T) {
	p := &layout.Page{Index: 1, Width: 100, Height: 100, Areas: []layout.Block{
		{Type: layout.Paragraph, Position: rect(0, 0, 100, 100)},
		{Type: layout.Image, Position: rect(40, 40, 60, 60)},
	}}
	layout.BuildIndex(p)
	x := New(Options{Pages: pageMap{1: p}})

	id, _ := x.BlockAt(1, geom.Point{X: 50, Y: 50})
	assert.Equal(t, "0,1", id)
	id, _ = x.BlockAt(1, geom.Point{X: 10, Y: 10})
	assert.Equal(t, "0,0", id)
}

func TestChangePage_PreparesWindowOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.index.ChangePage(1)
	assert.True(t, f.index.Prepared(1))
	assert.True(t, f.index.Prepared(2))
	assert.False(t, f.index.Prepared(3), "no such page")

	shapes := f.canvas.Live(canvas.GroupStructured)
	require.Len(t, shapes, 4)
	for _, s := range shapes {
		assert.True(t, s.Options().Hidden)
		assert.NotEmpty(t, s.Options().Data[DataOriID])
	}

	f.index.ChangePage(2)
	assert.Equal(t, 4, f.canvas.Created)
	assert.False(t, f.index.Prepare(1))

	s, ok := f.index.Shape("1,0")
	require.True(t, ok)
	assert.Equal(t, geom.Polygon{0, 210, 200, 210, 200, 230, 0, 230}, s.Options().Polygon)
}

func TestHover_LightsAndClearsMergeGroup(t *testing.T) {
	f := newFixture(t, mergeMap())
	f.index.Prepare(1)

	require.True(t, f.index.Hover("0,0"))
	assert.True(t, f.index.Lit("0,0"))
	assert.True(t, f.index.Lit("1,0"), "siblings on other pages light up too")
	assert.True(t, f.index.Prepared(2))
	sib, ok := f.index.Shape("1,0")
	require.True(t, ok)
	assert.False(t, sib.Options().Hidden)
	assert.True(t, sib.State(canvas.StateHover))
	assert.False(t, f.index.Lit("0,1"))

	f.index.Leave("0,0")
	assert.False(t, f.index.Lit("0,0"))
	assert.False(t, f.index.Lit("1,0"))
	assert.True(t, sib.Options().Hidden)
	assert.False(t, sib.State(canvas.StateHover))
}

func TestHover_SiblingStaysLitWhileStillHovered(t *testing.T) {
	f := newFixture(t, mergeMap())

	require.True(t, f.index.Hover("0,0"))
	require.True(t, f.index.Hover("1,0"))
	assert.False(t, f.index.Hover("1,0"), "hovering twice counts once")

	f.index.Leave("0,0")
	assert.True(t, f.index.Lit("0,0"))
	assert.True(t, f.index.Lit("1,0"))

	f.index.Leave("1,0")
	f.index.Leave("1,0")
	assert.False(t, f.index.Lit("0,0"))
	assert.False(t, f.index.Lit("1,0"))
}

func TestHoverAndCopy_SuppressedWhileDragging(t *testing.T) {
	f := newFixture(t, nil)
	f.busy = true

	assert.False(t, f.index.Hover("0,0"))
	_, err := f.index.Copy(context.Background(), "0,0")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, f.clipboard.Texts)
}

func TestCopy_Payloads(t *testing.T) {
	f := newFixture(t, mergeMap())
	ctx := context.Background()

	_, err := f.index.Copy(ctx, "1,0")
	require.NoError(t, err)
	assert.Equal(t, []string{"第一段续段"}, f.clipboard.Texts)

	_, err = f.index.Copy(ctx, "0,1")
	require.NoError(t, err)
	require.Len(t, f.clipboard.Items, 1)
	items := f.clipboard.Items[0]
	require.Len(t, items, 2)
	assert.Equal(t, canvas.MIMEText, items[0].MIME)
	assert.Equal(t, "A\tB", string(items[0].Data))
	assert.Equal(t, canvas.MIMEHTML, items[1].MIME)
}

func TestCopy_PropagatesClipboardFailure(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("permission denied")
	f.clipboard.Err = boom

	_, err := f.index.Copy(context.Background(), "0,0")
	assert.ErrorIs(t, err, boom)
}

var red = color.RGBA{R: 255, A: 255}

// document draws page 1's image block red on a white 200×420 bitmap
func document() *image.RGBA {
	doc := image.NewRGBA(image.Rect(0, 0, 200, 420))
	for y := 0; y < 420; y++ {
		for x := 0; x < 200; x++ {
			doc.Set(x, y, color.White)
		}
	}
	for y := 100; y < 140; y++ {
		for x := 10; x < 50; x++ {
			doc.Set(x, y, red)
		}
	}
	return doc
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestCopy_ImageCropsSurface(t *testing.T) {
	f := newFixture(t, nil)
	surface := canvastest.NewSurface(document(), 200, 600)
	f.index.surface = surface

	c, err := f.index.Copy(context.Background(), "0,2")
	require.NoError(t, err)
	assert.Contains(t, c.Image, "data:image/png;base64,")

	img := decode(t, c.PNG)
	assert.Equal(t, image.Rect(0, 0, 40, 40), img.Bounds())
	assert.Equal(t, red, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, red, color.RGBAModel.Convert(img.At(39, 39)))

	require.Len(t, f.clipboard.Items, 1)
	items := f.clipboard.Items[0]
	require.Len(t, items, 2)
	assert.Equal(t, "[图片]", string(items[0].Data))
	assert.Equal(t, canvas.MIMEPNG, items[1].MIME)
	assert.Zero(t, surface.Resizes)
}

func TestCrop_GrowsAndRestoresSurface(t *testing.T) {
	f := newFixture(t, nil)
	surface := canvastest.NewSurface(document(), 200, 30)
	surface.SetTranslate(geom.Point{Y: -5})
	f.index.surface = surface

	c, err := f.index.Resolve(context.Background(), "0,2")
	require.NoError(t, err)
	img := decode(t, c.PNG)
	assert.Equal(t, image.Rect(0, 0, 40, 40), img.Bounds())
	assert.Equal(t, red, color.RGBAModel.Convert(img.At(20, 39)))

	assert.Equal(t, 2, surface.Resizes, "grown for the crop, then shrunk back")
	w, h := surface.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 30, h)
	assert.Equal(t, geom.Point{Y: -5}, surface.Translate())
}

type failingSurface struct {
	*canvastest.Surface
}

func (failingSurface) Snapshot(context.Context) (image.Image, error) {
	return nil, errors.New("gpu lost")
}

func TestCrop_RestoresSurfaceOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	inner := canvastest.NewSurface(document(), 200, 30)
	f.index.surface = failingSurface{inner}

	_, err := f.index.Resolve(context.Background(), "0,2")
	require.Error(t, err)
	w, h := inner.Size()
	assert.Equal(t, [2]int{200, 30}, [2]int{w, h})
	assert.Equal(t, geom.Point{}, inner.Translate())
}

func TestReset_DropsShapesAndHovers(t *testing.T) {
	f := newFixture(t, mergeMap())
	f.index.ChangePage(1)
	f.index.Hover("0,0")

	f.index.Reset(docPages(), nil)
	assert.Empty(t, f.canvas.Live(canvas.GroupStructured))
	assert.False(t, f.index.Lit("1,0"))
	assert.False(t, f.index.Prepared(1))

	c, err := f.index.Resolve(context.Background(), "1,0")
	require.NoError(t, err)
	assert.False(t, c.Merged)
	assert.Equal(t, "续段", c.Text)
}

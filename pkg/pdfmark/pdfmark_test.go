package pdfmark

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
	"github.com/gardar/ocrmark/pkg/session"
)

func textLine(id int, text string, x, y float64) layout.Line {
	n := len([]rune(text))
	l := layout.Line{ID: id, Text: text,
		Position: geom.Polygon{x, y, x + 10*float64(n), y, x + 10*float64(n), y + 20, x, y + 20}}
	for i := 0; i < n; i++ {
		x0 := x + 10*float64(i)
		l.CharPositions = append(l.CharPositions, geom.Polygon{x0, y, x0 + 10, y, x0 + 10, y + 20, x0, y + 20})
	}
	return l
}

func docPages() []*layout.Page {
	var pages []*layout.Page
	for i, text := range []string{"invoice 42", "total 42"} {
		p := &layout.Page{Index: i + 1, Width: 400, Height: 600, Lines: []layout.Line{textLine(0, text, 20, 20)}}
		layout.BuildIndex(p)
		pages = append(pages, p)
	}
	return pages
}

func templatePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "", "")
	for i := 0; i < pages; i++ {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: 400, Ht: 600})
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(20, 40, "page")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCanvas_Layout(t *testing.T) {
	c := New(docPages(), Options{Scale: 0.5, Gap: 10})

	assert.Equal(t, geom.Rect{Width: 200, Height: 610}, c.Viewport())

	page, ok := c.PageByPoint(geom.Point{X: 100, Y: 320})
	require.True(t, ok)
	assert.Equal(t, 2, page)
	_, ok = c.PageByPoint(geom.Point{X: 100, Y: 305})
	assert.False(t, ok, "gap between pages")

	pos := c.TransformPositionByPageRect(geom.Polygon{0, 0, 100, 0, 100, 20, 0, 20}, 2)
	assert.Equal(t, geom.Polygon{0, 310, 50, 310, 50, 320, 0, 320}, pos)

	c.UpdateTranslate(geom.Point{X: 5, Y: -10})
	assert.Equal(t, geom.Polygon{5, 300}, c.TransformActualPoint(geom.Polygon{0, 310}))
}

func TestCanvas_Shapes(t *testing.T) {
	c := New(docPages(), Options{})
	a := c.DrawRect(canvas.ShapeOptions{Page: 1, Group: canvas.GroupSearch})
	b := c.DrawBadge(canvas.ShapeOptions{Page: 2, Group: canvas.GroupSearch, Label: "1"})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 36, "uuid")

	b.SetState(canvas.StateActive, true)
	assert.Equal(t, b, c.QueryState(canvas.GroupSearch, canvas.StateActive))
	assert.Len(t, c.Shapes(0), 2)
	assert.Len(t, c.Shapes(1), 1)

	b.Destroy()
	assert.Nil(t, c.QueryState(canvas.GroupSearch, canvas.StateActive))
	assert.Len(t, c.Shapes(0), 1)
}

func TestApply_MarksLayer(t *testing.T) {
	pages := docPages()
	c := New(pages, Options{})
	c.DrawRect(canvas.ShapeOptions{
		Page:    1,
		Polygon: c.TransformPositionByPageRect(pages[0].Lines[0].Position, 1),
		Fill:    "#ffd33d66",
		Group:   canvas.GroupSearch,
	})
	c.DrawBadge(canvas.ShapeOptions{Page: 2, Polygon: geom.Polygon{0, 610, 20, 610, 20, 630, 0, 630},
		Label: "ü→1", Stroke: "#000000"})
	c.DrawRect(canvas.ShapeOptions{Page: 2, Polygon: geom.Polygon{0, 610, 10, 610, 10, 620, 0, 620}, Hidden: true})

	out, err := c.Apply(templatePDF(t, 2), config.MarksConfig{LayerName: "Marks"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	layers, err := Layers(out)
	require.NoError(t, err)
	assert.Contains(t, layers, "Marks (Page 1)")
	assert.Contains(t, layers, "Marks (Page 2)")

	_, err = c.Apply(out, config.MarksConfig{LayerName: "Marks"})
	assert.ErrorIs(t, err, ErrMarksLayerExists)

	_, err = c.Apply(out, config.MarksConfig{LayerName: "Marks", Force: true})
	assert.NoError(t, err)
}

func TestApply_Errors(t *testing.T) {
	c := New(docPages(), Options{})
	_, err := c.Apply(nil, config.MarksConfig{})
	assert.Error(t, err)

	_, err = c.Apply([]byte("%PDF-1.4 garbage"), config.MarksConfig{})
	assert.Error(t, err)

	_, err = New(nil, Options{}).Apply(templatePDF(t, 1), config.MarksConfig{})
	assert.Error(t, err)
}

func TestAssemble(t *testing.T) {
	pages := docPages()
	c := New(pages, Options{})
	c.DrawRect(canvas.ShapeOptions{Page: 2, Polygon: geom.Polygon{0, 620, 50, 620, 50, 640, 0, 640}, Fill: "#1890ff33"})

	_, err := c.Assemble([][]byte{pngImage(t, 40, 60)}, config.MarksConfig{})
	assert.Error(t, err, "one image per page")

	out, err := c.Assemble([][]byte{pngImage(t, 40, 60), pngImage(t, 40, 60)}, config.MarksConfig{Debug: true})
	require.NoError(t, err)
	layers, err := Layers(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marks (Page 1)", "Marks (Page 2)"}, layers)

	_, err = c.Assemble([][]byte{[]byte("nope"), []byte("nope")}, config.MarksConfig{})
	assert.Error(t, err)
}

func TestCheckLayers(t *testing.T) {
	raw := []byte(`1 0 obj <</Type /OCG /Name (Marks \(Page 3\))>> endobj
2 0 obj <</Type /OCG /Name (Old highlights)>> endobj
3 0 obj <</Type /OCG /Name (Text)>> endobj`)

	res, err := CheckLayers(raw, "Marks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Marks (Page 3)", "Old highlights", "Text"}, res.Layers)
	assert.True(t, res.Exists)
	assert.Equal(t, "Marks (Page 3)", res.Name)

	res, err = CheckLayers(raw, "Annotations")
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.Len(t, res.Warnings, 2)

	_, err = CheckLayers(nil, "Marks")
	assert.Error(t, err)
}

func TestSessionSearchExport(t *testing.T) {
	pages := docPages()
	c := New(pages, Options{Gap: 10})
	cfg := config.Default()
	cfg.Blocks.Lookaround = len(pages)
	s := session.New(pages, session.Options{Config: cfg, Canvas: c})
	defer s.Destroy()

	res, err := s.Search(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Len(t, c.Shapes(1), 1)
	assert.Len(t, c.Shapes(2), 1)

	out, err := c.Apply(templatePDF(t, 2), cfg.Marks)
	require.NoError(t, err)
	layers, err := Layers(out)
	require.NoError(t, err)
	assert.Contains(t, layers, "Marks (Page 2)")
}

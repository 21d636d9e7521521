package docai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

// ToPages converts every page of doc into a layout page. Page indexes follow the Document
// AI page numbers, or the position in doc when those are missing.
func ToPages(doc *documentaipb.Document) []*layout.Page {
	text := []rune(doc.GetText())
	pages := make([]*layout.Page, 0, len(doc.GetPages()))
	for i, dp := range doc.GetPages() {
		index := int(dp.GetPageNumber())
		if index <= 0 {
			index = i + 1
		}
		pages = append(pages, convertPage(index, dp, text))
	}
	return pages
}

type span struct{ start, end int }

func anchorSpan(l *documentaipb.Document_Page_Layout) (span, bool) {
	segs := l.GetTextAnchor().GetTextSegments()
	if len(segs) == 0 {
		return span{}, false
	}
	s := span{start: int(segs[0].GetStartIndex()), end: int(segs[len(segs)-1].GetEndIndex())}
	return s, s.end > s.start
}

func (s span) contains(o span) bool {
	return o.start >= s.start && o.end <= s.end
}

// anchorText reads every text segment of l out of the document text
func anchorText(l *documentaipb.Document_Page_Layout, text []rune) string {
	var sb strings.Builder
	for _, seg := range l.GetTextAnchor().GetTextSegments() {
		start := max(0, int(seg.GetStartIndex()))
		end := min(len(text), int(seg.GetEndIndex()))
		if start < end {
			sb.WriteString(string(text[start:end]))
		}
	}
	return sb.String()
}

type converter struct {
	page   *documentaipb.Document_Page
	text   []rune
	width  float64
	height float64
}

// polygon reads the bounding polygon of l in page pixels. Normalized vertices are scaled by
// the page dimension.
func (c *converter) polygon(l *documentaipb.Document_Page_Layout) geom.Polygon {
	poly := l.GetBoundingPoly()
	if nv := poly.GetNormalizedVertices(); len(nv) >= 4 {
		out := make(geom.Polygon, 0, 8)
		for _, v := range nv[:4] {
			out = append(out, float64(v.GetX())*c.width, float64(v.GetY())*c.height)
		}
		return out
	}
	if vs := poly.GetVertices(); len(vs) >= 4 {
		out := make(geom.Polygon, 0, 8)
		for _, v := range vs[:4] {
			out = append(out, float64(v.GetX()), float64(v.GetY()))
		}
		return out
	}
	return nil
}

func convertPage(index int, dp *documentaipb.Document_Page, text []rune) *layout.Page {
	c := &converter{
		page:   dp,
		text:   text,
		width:  float64(dp.GetDimension().GetWidth()),
		height: float64(dp.GetDimension().GetHeight()),
	}
	p := &layout.Page{Index: index, Width: c.width, Height: c.height}

	symbols := c.symbols()
	spans := make([]span, 0, len(dp.GetLines()))
	for _, dl := range dp.GetLines() {
		s, ok := anchorSpan(dl.GetLayout())
		if !ok {
			continue
		}
		line, ok := c.line(len(p.Lines), dl, s, symbols)
		if !ok {
			continue
		}
		p.Lines = append(p.Lines, line)
		spans = append(spans, s)
	}

	used := make([]bool, len(p.Lines))
	linesIn := func(parent span) []int {
		var ids []int
		for i, s := range spans {
			if !used[i] && parent.contains(s) {
				used[i] = true
				ids = append(ids, p.Lines[i].ID)
			}
		}
		return ids
	}

	for _, t := range dp.GetTables() {
		p.Areas = append(p.Areas, c.table(t, linesIn))
	}
	for _, b := range dp.GetBlocks() {
		s, ok := anchorSpan(b.GetLayout())
		if !ok {
			continue
		}
		ids := linesIn(s)
		if len(ids) == 0 {
			continue
		}
		p.Areas = append(p.Areas, layout.Block{
			Type:     layout.Paragraph,
			Position: c.polygon(b.GetLayout()),
			Content:  layout.List(ids...),
		})
	}
	layout.BuildIndex(p)
	return p
}

// symbols maps the text index of every symbol to its polygon
func (c *converter) symbols() map[int]geom.Polygon {
	out := make(map[int]geom.Polygon, len(c.page.GetSymbols()))
	for _, s := range c.page.GetSymbols() {
		sp, ok := anchorSpan(s.GetLayout())
		if !ok {
			continue
		}
		if poly := c.polygon(s.GetLayout()); poly.Valid() {
			out[sp.start] = poly
		}
	}
	return out
}

// line converts one Document AI line. The trailing line break of its anchor is dropped.
func (c *converter) line(id int, dl *documentaipb.Document_Page_Line, s span, symbols map[int]geom.Polygon) (layout.Line, bool) {
	raw := []rune(anchorText(dl.GetLayout(), c.text))
	trimmed := []rune(strings.TrimRight(string(raw), "\r\n"))
	if strings.TrimSpace(string(trimmed)) == "" {
		return layout.Line{}, false
	}
	line := layout.Line{ID: id, Text: string(trimmed), Position: c.polygon(dl.GetLayout())}
	if len(symbols) > 0 {
		line.CharPositions = charPositions(trimmed, s.start, line.Position, symbols)
	}
	return line, true
}

// charPositions looks up a symbol for every rune starting at text index start. Spaces
// without a symbol span the gap between their neighbours. Any other missing symbol drops
// the line to line-level positioning.
func charPositions(runes []rune, start int, linePos geom.Polygon, symbols map[int]geom.Polygon) []geom.Polygon {
	out := make([]geom.Polygon, len(runes))
	for i := range runes {
		out[i] = symbols[start+i]
	}
	lineBox := linePos.Bounds()
	for i, r := range runes {
		if out[i] != nil {
			continue
		}
		if r != ' ' || i == 0 || i == len(runes)-1 || out[i-1] == nil || symbols[start+i+1] == nil {
			return nil
		}
		left := out[i-1].Bounds().X.Hi
		right := max(left, symbols[start+i+1].Bounds().X.Lo)
		out[i] = geom.RectPolygon(r2.Rect{X: r1.Interval{Lo: left, Hi: right}, Y: lineBox.Y})
	}
	return out
}

// table converts a Document AI table. Cell columns account for spans of earlier rows.
func (c *converter) table(t *documentaipb.Document_Page_Table, linesIn func(span) []int) layout.Block {
	block := layout.Block{Type: layout.Table, Position: c.polygon(t.GetLayout())}
	rows := append(append([]*documentaipb.Document_Page_Table_TableRow{}, t.GetHeaderRows()...), t.GetBodyRows()...)

	taken := map[[2]int]bool{}
	for r, row := range rows {
		col := 0
		for _, tc := range row.GetCells() {
			for taken[[2]int{r, col}] {
				col++
			}
			rs, cs := max(1, int(tc.GetRowSpan())), max(1, int(tc.GetColSpan()))
			for dr := 0; dr < rs; dr++ {
				for dc := 0; dc < cs; dc++ {
					taken[[2]int{r + dr, col + dc}] = true
				}
			}

			cell := layout.Cell{
				Row:      r,
				Col:      col,
				RowSpan:  rs,
				ColSpan:  cs,
				Position: c.polygon(tc.GetLayout()),
				Text:     strings.TrimSpace(anchorText(tc.GetLayout(), c.text)),
			}
			if s, ok := anchorSpan(tc.GetLayout()); ok {
				cell.Content = layout.List(linesIn(s)...)
			}
			block.Cells = append(block.Cells, cell)
			col += cs
		}
	}
	// lines the cells did not claim but the table covers
	if s, ok := anchorSpan(t.GetLayout()); ok {
		block.Lines = linesIn(s)
	}
	block.Cells = nonEmptyCells(block.Cells)
	return block
}

func nonEmptyCells(cells []layout.Cell) []layout.Cell {
	for _, c := range cells {
		if c.Text != "" || len(c.Content.LineIDs()) > 0 {
			return cells
		}
	}
	return nil
}

package hocr

import (
	"strings"

	"github.com/gardar/ocrmark/pkg/layout"
)

// Normalize parses hOCR data and converts it to layout pages
func Normalize(data []byte) ([]*layout.Page, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return ToPages(doc), nil
}

// ToPages converts every hOCR page into a layout page. Pages are numbered from 1 in
// document order. Each area becomes a block over its lines; lines outside any area are
// left unreferenced so they index after the areas.
func ToPages(doc *Document) []*layout.Page {
	pages := make([]*layout.Page, 0, len(doc.Pages))
	for i, hp := range doc.Pages {
		p := &layout.Page{
			Index:  i + 1,
			Width:  hp.BBox.X2,
			Height: hp.BBox.Y2,
			URL:    hp.ImageName,
		}
		id := 0
		addLine := func(l Line) (int, bool) {
			line, ok := convertLine(id, l)
			if !ok {
				return 0, false
			}
			p.Lines = append(p.Lines, line)
			id++
			return line.ID, true
		}

		for _, a := range hp.Areas {
			var ids []int
			for _, l := range a.Lines {
				if lid, ok := addLine(l); ok {
					ids = append(ids, lid)
				}
			}
			bbox := a.BBox
			if bbox.Empty() {
				bbox = unionLines(a.Lines)
			}
			p.Areas = append(p.Areas, layout.Block{
				Type:     a.Type(),
				SubType:  a.Class,
				Position: bbox.Polygon(),
				Content:  layout.List(ids...),
			})
		}
		for _, l := range hp.Lines {
			addLine(l)
		}
		layout.BuildIndex(p)
		pages = append(pages, p)
	}
	return pages
}

// convertLine joins the words of l with single spaces. Character polygons are kept only
// when every word has them; the space between two words spans the gap between their boxes.
func convertLine(id int, l Line) (layout.Line, bool) {
	if len(l.Words) == 0 {
		return layout.Line{}, false
	}
	bbox := l.BBox
	if bbox.Empty() {
		bbox = unionWords(l.Words)
	}

	texts := make([]string, len(l.Words))
	perChar := true
	for i, w := range l.Words {
		texts[i] = w.Text
		if w.Chars == nil {
			perChar = false
		}
	}
	line := layout.Line{ID: id, Text: strings.Join(texts, " "), Position: bbox.Polygon()}
	if !perChar {
		return line, true
	}

	for i, w := range l.Words {
		if i > 0 {
			prev := l.Words[i-1].BBox
			gap := BoundingBox{X1: prev.X2, Y1: bbox.Y1, X2: max(prev.X2, w.BBox.X1), Y2: bbox.Y2}
			line.CharPositions = append(line.CharPositions, gap.Polygon())
		}
		for _, c := range w.Chars {
			line.CharPositions = append(line.CharPositions, c.Polygon())
		}
	}
	return line, true
}

func unionWords(words []Word) BoundingBox {
	var out BoundingBox
	for i, w := range words {
		out = union(out, w.BBox, i == 0)
	}
	return out
}

func unionLines(lines []Line) BoundingBox {
	var out BoundingBox
	for i, l := range lines {
		b := l.BBox
		if b.Empty() {
			b = unionWords(l.Words)
		}
		out = union(out, b, i == 0)
	}
	return out
}

func union(a, b BoundingBox, first bool) BoundingBox {
	if first {
		return b
	}
	return BoundingBox{X1: min(a.X1, b.X1), Y1: min(a.Y1, b.Y1), X2: max(a.X2, b.X2), Y2: max(a.Y2, b.Y2)}
}

// Text returns the recognized text of doc: one line per hOCR line, a blank line between
// areas and pages
func (d *Document) Text() string {
	var sb strings.Builder
	writeLines := func(lines []Line) {
		for _, l := range lines {
			for i, w := range l.Words {
				if i > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(w.Text)
			}
			if len(l.Words) > 0 {
				sb.WriteByte('\n')
			}
		}
	}
	for pi, p := range d.Pages {
		if pi > 0 {
			sb.WriteByte('\n')
		}
		for _, a := range p.Areas {
			writeLines(a.Lines)
			sb.WriteByte('\n')
		}
		writeLines(p.Lines)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/gardar/ocrmark/pkg/geom"
)

// BlockType classifies a structured block
type BlockType string

const (
	Paragraph BlockType = "paragraph"
	Table     BlockType = "table"
	Image     BlockType = "image"
	Header    BlockType = "header"
	Footer    BlockType = "footer"
)

// ParseBlockType maps the type names used by the OCR engines onto BlockType.
// Unknown names fall back to Paragraph.
func ParseBlockType(s string) BlockType {
	switch strings.ToLower(s) {
	case "table":
		return Table
	case "image", "figure", "picture":
		return Image
	case "header", "page_header":
		return Header
	case "footer", "page_footer":
		return Footer
	default:
		return Paragraph
	}
}

// Line is one recognized text line
type Line struct {
	ID            int            `json:"id"`
	Text          string         `json:"text"`
	Position      geom.Polygon   `json:"pos"`
	CharPositions []geom.Polygon `json:"char_pos,omitempty"`
}

// HasCharPositions reports whether every rune of the line has a usable polygon
func (l Line) HasCharPositions() bool {
	if len(l.CharPositions) == 0 || len(l.CharPositions) != utf8.RuneCountInString(l.Text) {
		return false
	}
	for _, p := range l.CharPositions {
		if !p.Valid() {
			return false
		}
	}
	return true
}

// Units splits the line into selectable units. With char positions each rune is a unit;
// otherwise the whole line is a single unit spanning the line polygon.
func (l Line) Units() []Unit {
	if !l.HasCharPositions() {
		if l.Text == "" {
			return nil
		}
		return []Unit{{Text: l.Text, Position: l.Position, Start: 0, End: utf8.RuneCountInString(l.Text)}}
	}
	units := make([]Unit, 0, len(l.CharPositions))
	i := 0
	for _, r := range l.Text {
		units = append(units, Unit{Text: string(r), Position: l.CharPositions[i], Start: i, End: i + 1})
		i++
	}
	return units
}

// Unit is a selectable piece of a line: one character, or the whole line when char
// positions are missing. Start/End are rune offsets within the line.
type Unit struct {
	Text       string
	Position   geom.Polygon
	Start, End int
}

// Cell is one table cell
type Cell struct {
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	RowSpan  int          `json:"row_span,omitempty"`
	ColSpan  int          `json:"col_span,omitempty"`
	Position geom.Polygon `json:"pos,omitempty"`
	Content  ContentRef   `json:"content"`
	Text     string       `json:"text,omitempty"`
}

// Block is a structured layout region (paragraph, table, image, header, footer)
type Block struct {
	Type     BlockType    `json:"type"`
	SubType  string       `json:"sub_type,omitempty"`
	Position geom.Polygon `json:"pos"`
	Content  ContentRef   `json:"content"`
	Cells    []Cell       `json:"cells,omitempty"`
	HTML     string       `json:"html,omitempty"`
	Text     string       `json:"text,omitempty"` // engine-provided text, markdown for pdf2md tables
	Lines    []int        `json:"lines,omitempty"`
	ImageURL string       `json:"image_url,omitempty"`
}

// Empty reports whether the slot is a hole in a sparse structured array
func (b Block) Empty() bool {
	return b.Type == ""
}

// LineIDs returns every line id the block covers, in reading order
func (b Block) LineIDs() []int {
	ids := b.Content.LineIDs()
	for _, c := range b.Cells {
		ids = append(ids, c.Content.LineIDs()...)
	}
	ids = append(ids, b.Lines...)
	return ids
}

// Page is the normalized per-page shape every engine consumes
type Page struct {
	Index      int        `json:"index"` // 1-based
	Width      float64    `json:"width"` // origin (unrotated) size
	Height     float64    `json:"height"`
	ImageAngle geom.Angle `json:"image_angle"`
	URL        string     `json:"url,omitempty"`
	Areas      []Block    `json:"areas"`
	Lines      []Line     `json:"lines"`

	// Flattened text, one entry per rune, with parallel lookup slices
	TextList     []string       `json:"text_list"`
	PositionList []geom.Polygon `json:"position_list"`
	AreaIndexMap []int          `json:"area_index_map"` // rune → area index, -1 if none
	LineIndexMap []int          `json:"line_index_map"` // rune → line index
	LineOffsets  []int          `json:"line_offsets"`   // rune → offset inside its line

	LineIDMap   map[int]int       `json:"line_id_map"`   // line id → index in Lines
	AreaTypeMap map[int]BlockType `json:"area_type_map"` // area index → type
	LineAreaMap map[int]int       `json:"line_area_map"` // line index → area index
}

// Text returns the flattened page text
func (p *Page) Text() string {
	return strings.Join(p.TextList, "")
}

// Frame places the page on a canvas with the given scale and offset
func (p *Page) Frame(scale float64, offset geom.Point) geom.Frame {
	return geom.Frame{
		Angle:        p.ImageAngle,
		OriginWidth:  p.Width,
		OriginHeight: p.Height,
		Scale:        scale,
		Offset:       offset,
	}
}

// LineByID looks a line up by its OCR id
func (p *Page) LineByID(id int) (Line, bool) {
	idx, ok := p.LineIDMap[id]
	if !ok || idx < 0 || idx >= len(p.Lines) {
		return Line{}, false
	}
	return p.Lines[idx], true
}

// AreaOfLine returns the area index a line belongs to, or -1
func (p *Page) AreaOfLine(lineIdx int) int {
	if a, ok := p.LineAreaMap[lineIdx]; ok {
		return a
	}
	return -1
}

// Area returns the block at index i, if present
func (p *Page) Area(i int) (Block, bool) {
	if i < 0 || i >= len(p.Areas) || p.Areas[i].Empty() {
		return Block{}, false
	}
	return p.Areas[i], true
}

// ResolveLines returns the lines ref points at, in order. Ids without a line are skipped.
func (p *Page) ResolveLines(ref ContentRef) []Line {
	return p.linesByID(ref.LineIDs())
}

func (p *Page) linesByID(ids []int) []Line {
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		if l, ok := p.LineByID(id); ok {
			lines = append(lines, l)
		}
	}
	return lines
}

// BlockText reconstructs the text of a block from its lines. Table cells are laid out
// row by row, tab separated. The engine-provided text is used when no line resolves.
func (p *Page) BlockText(b Block) string {
	if len(b.Cells) > 0 {
		var sb strings.Builder
		row := b.Cells[0].Row
		for i, c := range b.Cells {
			if i > 0 {
				if c.Row != row {
					sb.WriteByte('\n')
					row = c.Row
				} else {
					sb.WriteByte('\t')
				}
			}
			sb.WriteString(p.cellText(c))
		}
		if sb.Len() > 0 {
			return sb.String()
		}
		return b.Text
	}

	lines := p.ResolveLines(b.Content)
	lines = append(lines, p.linesByID(b.Lines)...)
	if len(lines) == 0 {
		return b.Text
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Text)
	}
	return sb.String()
}

func (p *Page) cellText(c Cell) string {
	if c.Text != "" {
		return c.Text
	}
	var sb strings.Builder
	for _, l := range p.ResolveLines(c.Content) {
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// LineOrder returns line indexes in flattened page order, each once
func (p *Page) LineOrder() []int {
	order := make([]int, 0, len(p.Lines))
	seen := make(map[int]bool, len(p.Lines))
	for _, li := range p.LineIndexMap {
		if !seen[li] {
			seen[li] = true
			order = append(order, li)
		}
	}
	return order
}

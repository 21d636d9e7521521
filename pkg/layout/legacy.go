package layout

import (
	"encoding/json"
	"fmt"

	"github.com/gardar/ocrmark/pkg/geom"
)

type rawLine struct {
	ID      int            `json:"id"`
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Pos     geom.Polygon   `json:"pos"`
	CharPos []geom.Polygon `json:"char_pos"`
	URL     string         `json:"url"`
}

type rawCell struct {
	Row     int          `json:"row"`
	Col     int          `json:"col"`
	RowSpan int          `json:"row_span"`
	ColSpan int          `json:"col_span"`
	Pos     geom.Polygon `json:"pos"`
	Content ContentRef   `json:"content"`
	Text    string       `json:"text"`
}

type rawBlock struct {
	Type     string       `json:"type"`
	SubType  string       `json:"sub_type"`
	Pos      geom.Polygon `json:"pos"`
	Content  ContentRef   `json:"content"`
	Cells    []rawCell    `json:"cells"`
	HTML     string       `json:"html"`
	Text     string       `json:"text"`
	Lines    []int        `json:"lines"`
	ImageURL string       `json:"image_url"`
}

type rawLegacyPage struct {
	PageID     int        `json:"page_id"`
	Angle      int        `json:"angle"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	ImageURL   string     `json:"image_url"`
	Content    []rawLine  `json:"content"`
	Structured []rawBlock `json:"structured"`
}

type rawLegacyDoc struct {
	Pages []rawLegacyPage `json:"pages"`
}

func (n *Normalizer) parseLegacy(data []byte) ([]*Page, error) {
	var doc rawLegacyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode legacy result: %w", err)
	}

	pages := make([]*Page, 0, len(doc.Pages))
	for i, rp := range doc.Pages {
		index := i + 1
		if rp.PageID > 0 {
			index = rp.PageID
		}
		page := &Page{
			Index:      index,
			Width:      rp.Width,
			Height:     rp.Height,
			ImageAngle: geom.NormalizeAngle(rp.Angle),
			URL:        rp.ImageURL,
			Lines:      n.convertLines(index, rp.Content),
			Areas:      convertBlocks(rp.Structured),
		}
		BuildIndex(page)
		pages = append(pages, page)
	}
	return pages, nil
}

// convertLines keeps text lines and drops image items, which only carry a picture
func (n *Normalizer) convertLines(page int, raw []rawLine) []Line {
	lines := make([]Line, 0, len(raw))
	for _, rl := range raw {
		if rl.Type == "image" {
			continue
		}
		line := Line{ID: rl.ID, Text: rl.Text, Position: rl.Pos, CharPositions: rl.CharPos}
		if len(rl.CharPos) > 0 && !line.HasCharPositions() {
			n.log.Warnw("char positions do not match text, using line position",
				"page", page, "line", rl.ID, "chars", runeLen(rl.Text), "positions", len(rl.CharPos))
			line.CharPositions = nil
		}
		lines = append(lines, line)
	}
	return lines
}

func convertBlocks(raw []rawBlock) []Block {
	blocks := make([]Block, len(raw))
	for i, rb := range raw {
		blocks[i] = convertBlock(rb)
	}
	return blocks
}

func convertBlock(rb rawBlock) Block {
	if rb.Type == "" {
		return Block{}
	}
	b := Block{
		Type:     ParseBlockType(rb.Type),
		SubType:  rb.SubType,
		Position: rb.Pos,
		Content:  rb.Content,
		HTML:     rb.HTML,
		Text:     rb.Text,
		Lines:    rb.Lines,
		ImageURL: rb.ImageURL,
	}
	if rb.Type == "textblock" && rb.SubType != "" {
		b.Type = ParseBlockType(rb.SubType)
	}
	for _, rc := range rb.Cells {
		b.Cells = append(b.Cells, Cell{
			Row:      rc.Row,
			Col:      rc.Col,
			RowSpan:  rc.RowSpan,
			ColSpan:  rc.ColSpan,
			Position: rc.Pos,
			Content:  rc.Content,
			Text:     rc.Text,
		})
	}
	return b
}

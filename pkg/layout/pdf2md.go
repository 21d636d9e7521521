package layout

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gardar/ocrmark/pkg/geom"
)

type rawDetail struct {
	PageID      int          `json:"page_id"`
	ParagraphID int          `json:"paragraph_id"`
	Type        string       `json:"type"`
	SubType     string       `json:"sub_type"`
	Text        string       `json:"text"`
	Position    geom.Polygon `json:"position"`
	Content     ContentRef   `json:"content"`
	Cells       []rawCell    `json:"cells"`
	HTML        string       `json:"html"`
	Lines       []int        `json:"lines"`
	ImageURL    string       `json:"image_url"`
}

type rawMetric struct {
	PageID   int     `json:"page_id"`
	Angle    int     `json:"angle"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ImageURL string  `json:"image_url"`
}

type rawPdf2mdPage struct {
	PageID   int       `json:"page_id"`
	ImageURL string    `json:"image_url"`
	Content  []rawLine `json:"content"`
}

type rawPdf2mdDoc struct {
	Detail  []rawDetail     `json:"detail"`
	Metrics []rawMetric     `json:"metrics"`
	Pages   []rawPdf2mdPage `json:"pages"`
}

// parsePdf2md groups detail records by page, places each at its paragraph_id in a sparse
// structured array, then joins lines from pages[] and geometry from metrics[].
func (n *Normalizer) parsePdf2md(data []byte) ([]*Page, error) {
	var doc rawPdf2mdDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode pdf2md result: %w", err)
	}

	byPage := make(map[int]*Page)
	get := func(id int) *Page {
		p, ok := byPage[id]
		if !ok {
			p = &Page{Index: id}
			byPage[id] = p
		}
		return p
	}

	for _, d := range doc.Detail {
		if d.PageID < 1 || d.ParagraphID < 0 {
			n.log.Warnw("dropping detail record with bad key", "page_id", d.PageID, "paragraph_id", d.ParagraphID)
			continue
		}
		p := get(d.PageID)
		if d.ParagraphID >= len(p.Areas) {
			grown := make([]Block, d.ParagraphID+1)
			copy(grown, p.Areas)
			p.Areas = grown
		}
		p.Areas[d.ParagraphID] = convertBlock(rawBlock{
			Type:     d.Type,
			SubType:  d.SubType,
			Pos:      d.Position,
			Content:  d.Content,
			Cells:    d.Cells,
			HTML:     d.HTML,
			Text:     d.Text,
			Lines:    d.Lines,
			ImageURL: d.ImageURL,
		})
	}

	for _, m := range doc.Metrics {
		if m.PageID < 1 {
			continue
		}
		p := get(m.PageID)
		p.Width = m.Width
		p.Height = m.Height
		p.ImageAngle = geom.NormalizeAngle(m.Angle)
		if m.ImageURL != "" {
			p.URL = m.ImageURL
		}
	}

	for i, rp := range doc.Pages {
		id := rp.PageID
		if id < 1 {
			id = i + 1
		}
		p := get(id)
		p.Lines = n.convertLines(id, rp.Content)
		if rp.ImageURL != "" {
			p.URL = rp.ImageURL
		}
	}

	ids := make([]int, 0, len(byPage))
	for id := range byPage {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	pages := make([]*Page, 0, len(ids))
	for _, id := range ids {
		p := byPage[id]
		BuildIndex(p)
		pages = append(pages, p)
	}
	return pages, nil
}

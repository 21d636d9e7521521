// Package layout normalizes OCR/layout results into the per-page shape used by the mark,
// search and block engines.
//
// Two JSON schemas are accepted:
//
// - Legacy: {"pages": [{"content": [lines], "structured": [blocks], ...}]}
// - pdf2md: {"detail": [records], "metrics": [per-page dims], "pages": [per-page lines/images]}
//
// Either may be wrapped in {"result": {...}}. Both converge on Page, whose TextList,
// PositionList and AreaIndexMap give O(1) character offset → position/area lookups.
package layout

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/gardar/ocrmark/pkg/logger"
)

var (
	// ErrUnknownSchema is returned when the input matches neither supported schema
	ErrUnknownSchema = errors.New("layout: unknown OCR result schema")
	// ErrNoPages is returned when the input parses but yields no page
	ErrNoPages = errors.New("layout: document has no pages")
)

// Schema identifies an input format
type Schema string

const (
	SchemaLegacy Schema = "legacy"
	SchemaPdf2md Schema = "pdf2md"
)

// Normalizer converts raw OCR JSON into pages
type Normalizer struct {
	log *logger.Logger
}

// NewNormalizer returns a normalizer logging through log (nil for silence)
func NewNormalizer(log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{log: log.WithOperation("normalize")}
}

// Parse normalizes data with a silent normalizer
func Parse(data []byte) ([]*Page, error) {
	return NewNormalizer(nil).Parse(data)
}

// Detect reports which schema data uses
func Detect(data []byte) (Schema, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("failed to decode OCR result: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if r := root.Get("result"); r.IsObject() {
		root = r
	}
	switch {
	case root.Get("detail").Exists():
		return SchemaPdf2md, nil
	case root.Get("pages").Exists():
		return SchemaLegacy, nil
	}
	return "", ErrUnknownSchema
}

// Parse detects the schema of data and normalizes it
func (n *Normalizer) Parse(data []byte) ([]*Page, error) {
	if r := gjson.GetBytes(data, "result"); r.IsObject() {
		data = []byte(r.Raw)
	}

	schema, err := Detect(data)
	if err != nil {
		return nil, err
	}
	n.log.Debugw("detected schema", "schema", schema)

	var pages []*Page
	switch schema {
	case SchemaLegacy:
		pages, err = n.parseLegacy(data)
	case SchemaPdf2md:
		pages, err = n.parsePdf2md(data)
	}
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

// BuildIndex fills the flattened text and lookup maps of p from its Lines and Areas.
// Areas are walked in order; lines no area references are appended last with area -1.
func BuildIndex(p *Page) {
	p.LineIDMap = make(map[int]int, len(p.Lines))
	for i, l := range p.Lines {
		p.LineIDMap[l.ID] = i
	}
	p.AreaTypeMap = make(map[int]BlockType, len(p.Areas))
	p.LineAreaMap = make(map[int]int)
	p.TextList = p.TextList[:0]
	p.PositionList = p.PositionList[:0]
	p.AreaIndexMap = p.AreaIndexMap[:0]
	p.LineIndexMap = p.LineIndexMap[:0]
	p.LineOffsets = p.LineOffsets[:0]

	seen := make(map[int]bool, len(p.Lines))
	appendLine := func(lineIdx, area int) {
		if seen[lineIdx] {
			return
		}
		seen[lineIdx] = true
		line := p.Lines[lineIdx]
		if area >= 0 {
			p.LineAreaMap[lineIdx] = area
		}
		perChar := line.HasCharPositions()
		i := 0
		for _, r := range line.Text {
			pos := line.Position
			if perChar {
				pos = line.CharPositions[i]
			}
			p.TextList = append(p.TextList, string(r))
			p.PositionList = append(p.PositionList, pos)
			p.AreaIndexMap = append(p.AreaIndexMap, area)
			p.LineIndexMap = append(p.LineIndexMap, lineIdx)
			p.LineOffsets = append(p.LineOffsets, i)
			i++
		}
	}

	for ai, block := range p.Areas {
		if block.Empty() {
			continue
		}
		p.AreaTypeMap[ai] = block.Type
		for _, id := range block.LineIDs() {
			if idx, ok := p.LineIDMap[id]; ok {
				appendLine(idx, ai)
			}
		}
	}
	for i := range p.Lines {
		appendLine(i, -1)
	}
}

// runeLen is a small helper shared by the schema readers
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

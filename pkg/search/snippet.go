package search

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/gardar/ocrmark/pkg/geom"
	"github.com/gardar/ocrmark/pkg/layout"
)

// Snippet renders the context around a hit as HTML: up to before runes ahead of it and
// about total runes overall, with the hit wrapped in <mark>. A hit longer than the window
// is never cut.
func Snippet(text []rune, r MatchResult, before, total int) string {
	start := max(r.Index-before, 0)
	end := min(start+total, len(text))
	end = max(end, min(r.End(), len(text)))

	var sb strings.Builder
	sb.WriteString(escape(text[start:r.Index]))
	sb.WriteString("<mark>")
	sb.WriteString(escape(text[r.Index:min(r.End(), len(text))]))
	sb.WriteString("</mark>")
	if r.End() < end {
		sb.WriteString(escape(text[r.End():end]))
	}
	return sb.String()
}

func escape(rs []rune) string {
	var sb strings.Builder
	for _, r := range rs {
		if unicode.IsSpace(r) {
			sb.WriteString("&nbsp;")
			continue
		}
		sb.WriteString(html.EscapeString(string(r)))
	}
	return sb.String()
}

// Boxes maps a hit to origin-space highlight boxes, one per visual line. Repeated
// polygons from line-level positions collapse into one.
func Boxes(p *layout.Page, r MatchResult, tolerance float64) []geom.Polygon {
	end := min(r.End(), len(p.PositionList))
	if r.Index < 0 || r.Index >= end {
		return nil
	}
	var (
		positions []geom.Polygon
		last      string
	)
	for _, pos := range p.PositionList[r.Index:end] {
		k := pos.Key()
		if k == last {
			continue
		}
		last = k
		positions = append(positions, pos)
	}
	return geom.MultiLineBoxes(positions, tolerance)
}

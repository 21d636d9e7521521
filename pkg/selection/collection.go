package selection

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/match"
)

// Selection is what one drag collected, per page
type Selection map[int][]match.TextCollection

// Pages returns the pages holding collected text, ascending
func (s Selection) Pages() []int {
	pages := make([]int, 0, len(s))
	for p, cs := range s {
		if len(cs) > 0 {
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	return pages
}

// Empty reports whether nothing was collected
func (s Selection) Empty() bool {
	return len(s.Pages()) == 0
}

// Text joins the collected text in page order. Lines of one area run together; a new area
// or page starts a new line.
func (s Selection) Text() string {
	var (
		sb       strings.Builder
		prevArea = -2
		prevPage = -1
	)
	for _, p := range s.Pages() {
		for _, c := range s[p] {
			if sb.Len() > 0 && (p != prevPage || c.AreaIndex != prevArea || c.AreaIndex < 0 || c.Table) {
				sb.WriteByte('\n')
			}
			sb.WriteString(c.Text)
			prevPage, prevArea = p, c.AreaIndex
		}
	}
	return sb.String()
}

// HTML renders the selection with tables kept as tables. It is empty when no table
// carrying HTML was collected.
func (s Selection) HTML() string {
	hasTable := false
	for _, p := range s.Pages() {
		for _, c := range s[p] {
			hasTable = hasTable || (c.Table && c.HTML != "")
		}
	}
	if !hasTable {
		return ""
	}
	var sb strings.Builder
	for _, p := range s.Pages() {
		for _, c := range s[p] {
			if c.Table && c.HTML != "" {
				sb.WriteString(c.HTML)
				continue
			}
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(c.Text))
			sb.WriteString("</p>")
		}
	}
	return sb.String()
}

// Payload is the clipboard write for the selection
func (s Selection) Payload() []canvas.ClipboardItem {
	items := []canvas.ClipboardItem{{MIME: canvas.MIMEText, Data: []byte(s.Text())}}
	if h := s.HTML(); h != "" {
		items = append(items, canvas.ClipboardItem{MIME: canvas.MIMEHTML, Data: []byte(h)})
	}
	return items
}

func (s Selection) clone() Selection {
	out := make(Selection, len(s))
	for p, cs := range s {
		out[p] = append([]match.TextCollection(nil), cs...)
	}
	return out
}

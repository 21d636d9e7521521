package hocr

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoPages is returned when the input has no ocr_page element
var ErrNoPages = errors.New("hocr: no ocr_page elements found")

var charsetRe = regexp.MustCompile(`(?i)charset=["']?([a-z0-9_-]+)`)

// Sniff reports whether data looks like hOCR
func Sniff(data []byte) bool {
	head := data[:min(len(data), 4096)]
	return bytes.Contains(head, []byte("ocr_page")) || bytes.Contains(head, []byte("ocr-system"))
}

// Parse reads an hOCR document. Latin-1 or Windows-1252 input declared through a charset
// meta is decoded first.
func Parse(data []byte) (*Document, error) {
	if m := charsetRe.FindSubmatch(data); m != nil {
		var cm *charmap.Charmap
		switch strings.ToLower(string(m[1])) {
		case "iso-8859-1", "latin1", "latin-1":
			cm = charmap.ISO8859_1
		case "windows-1252", "cp1252":
			cm = charmap.Windows1252
		}
		if cm != nil {
			decoded, err := cm.NewDecoder().Bytes(data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", m[1], err)
			}
			data = decoded
		}
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR: %w", err)
	}

	doc := &Document{}
	readHead(doc, root)
	walk(root, func(n *html.Node) bool {
		if !hasClass(n, "ocr_page") {
			return true
		}
		doc.Pages = append(doc.Pages, parsePage(n))
		return false
	})
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}
	return doc, nil
}

// ParseTitle splits an hOCR title attribute into its properties.
// "bbox 100 200 300 400; x_wconf 95" yields {"bbox": [100 200 300 400], "x_wconf": [95]}.
func ParseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		props[fields[0]] = fields[1:]
	}
	return props
}

// ParseBoundingBox reads the bbox property of a title attribute
func ParseBoundingBox(title string) (BoundingBox, bool) {
	boxes := parseBoxes(ParseTitle(title)["bbox"])
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	return boxes[0], true
}

// parseBoxes reads groups of four numbers
func parseBoxes(vals []string) []BoundingBox {
	var out []BoundingBox
	for i := 0; i+3 < len(vals); i += 4 {
		var v [4]float64
		for j := range v {
			f, err := strconv.ParseFloat(vals[i+j], 64)
			if err != nil {
				return nil
			}
			v[j] = f
		}
		out = append(out, BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]})
	}
	return out
}

func readHead(doc *Document, root *html.Node) {
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "html":
			if lang := attr(n, "lang"); lang != "" {
				doc.Language = lang
			}
		case "title":
			if n.FirstChild != nil {
				doc.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			switch attr(n, "name") {
			case "ocr-system":
				doc.System = attr(n, "content")
			case "ocr-langs", "dc.language":
				if doc.Language == "" {
					doc.Language = attr(n, "content")
				}
			}
		case "body":
			return false
		}
		return true
	})
}

func parsePage(n *html.Node) Page {
	title := attr(n, "title")
	props := ParseTitle(title)
	page := Page{ID: attr(n, "id")}
	page.BBox, _ = ParseBoundingBox(title)
	if img := props["image"]; len(img) > 0 {
		page.ImageName = strings.Trim(strings.Join(img, " "), `"`)
	}
	if no := props["ppageno"]; len(no) > 0 {
		page.Number, _ = strconv.Atoi(no[0])
	}

	walk(n, func(c *html.Node) bool {
		if c == n {
			return true
		}
		switch {
		case areaClass(c) != "":
			page.Areas = append(page.Areas, parseArea(c))
			return false
		case isLine(c):
			page.Lines = append(page.Lines, parseLine(c))
			return false
		}
		return true
	})
	return page
}

func parseArea(n *html.Node) Area {
	area := Area{ID: attr(n, "id"), Class: areaClass(n)}
	area.BBox, _ = ParseBoundingBox(attr(n, "title"))
	walk(n, func(c *html.Node) bool {
		if c != n && isLine(c) {
			area.Lines = append(area.Lines, parseLine(c))
			return false
		}
		return true
	})
	return area
}

func parseLine(n *html.Node) Line {
	line := Line{ID: attr(n, "id")}
	line.BBox, _ = ParseBoundingBox(attr(n, "title"))
	walk(n, func(c *html.Node) bool {
		if hasClass(c, "ocrx_word") {
			if w, ok := parseWord(c); ok {
				line.Words = append(line.Words, w)
			}
			return false
		}
		return true
	})
	return line
}

func parseWord(n *html.Node) (Word, bool) {
	title := attr(n, "title")
	props := ParseTitle(title)
	w := Word{ID: attr(n, "id")}
	w.BBox, _ = ParseBoundingBox(title)
	if conf := props["x_wconf"]; len(conf) > 0 {
		w.Confidence, _ = strconv.ParseFloat(conf[0], 64)
	}

	var (
		cinfo    []BoundingBox
		badCinfo bool
		sb       strings.Builder
	)
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				sb.WriteString(c.Data)
			}
		case c != n && hasClass(c, "ocrx_cinfo"):
			text := strings.TrimSpace(textContent(c))
			boxes := parseBoxes(ParseTitle(attr(c, "title"))["x_bboxes"])
			if len(boxes) == 1 && utf8.RuneCountInString(text) == 1 {
				cinfo = append(cinfo, boxes[0])
			} else {
				badCinfo = true
			}
			sb.WriteString(text)
			return false
		}
		return true
	})
	w.Text = strings.TrimSpace(sb.String())
	if w.Text == "" {
		return Word{}, false
	}

	runes := utf8.RuneCountInString(w.Text)
	switch boxes := parseBoxes(props["x_bboxes"]); {
	case len(boxes) == runes:
		w.Chars = boxes
	case !badCinfo && len(cinfo) == runes:
		w.Chars = cinfo
	}
	return w, true
}

var areaClasses = []string{
	"ocr_carea", "ocr_table", "ocr_tab", "ocr_photo", "ocr_image", "ocr_float",
	"ocr_header", "ocr_footer", "ocr_pageno",
}

func areaClass(n *html.Node) string {
	for _, c := range areaClasses {
		if hasClass(n, c) {
			return c
		}
	}
	return ""
}

func isLine(n *html.Node) bool {
	return hasClass(n, "ocr_line") || hasClass(n, "ocr_textfloat") ||
		hasClass(n, "ocr_header_line") || hasClass(n, "ocr_caption")
}

// walk visits n and its descendants depth-first; returning false skips the children
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

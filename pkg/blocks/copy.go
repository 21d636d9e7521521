package blocks

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/image/draw"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/geom"
)

// Copy resolves oriID and writes it to the clipboard: paragraphs as plain text, tables as
// text plus an HTML table, images as the placeholder text plus a PNG. Clipboard failures
// are returned as is.
func (x *Index) Copy(ctx context.Context, oriID string) (Content, error) {
	if x.busy() {
		return Content{}, ErrBusy
	}
	c, err := x.Resolve(ctx, oriID)
	if err != nil {
		return Content{}, err
	}
	if x.clipboard == nil {
		return c, nil
	}
	if items := x.Payload(c); len(items) > 1 {
		err = x.clipboard.Write(ctx, items)
	} else {
		err = x.clipboard.WriteText(ctx, c.Text)
	}
	if err != nil {
		x.log.Errorw("clipboard write failed", "ori_id", oriID, "error", err)
		return c, fmt.Errorf("failed to copy block %s: %w", oriID, err)
	}
	x.log.Debugw("block copied", "ori_id", oriID, "type", c.Type, "merged", c.Merged)
	return c, nil
}

// Payload is the clipboard write for c
func (x *Index) Payload(c Content) []canvas.ClipboardItem {
	text := c.Text
	if c.PNG != nil && text == "" {
		text = x.cfg.ImagePlaceholder
	}
	items := []canvas.ClipboardItem{{MIME: canvas.MIMEText, Data: []byte(text)}}
	if c.HTML != "" {
		items = append(items, canvas.ClipboardItem{MIME: canvas.MIMEHTML, Data: []byte(c.HTML)})
	}
	if c.PNG != nil {
		items = append(items, canvas.ClipboardItem{MIME: canvas.MIMEPNG, Data: c.PNG})
	}
	return items
}

// tableHTML picks the HTML of a table: the engine's own markup, else a table built from
// the cell grid, else the markdown rendered through goldmark.
func tableHTML(native string, grid [][]string, markdown string) (string, error) {
	if strings.TrimSpace(native) != "" {
		return native, nil
	}
	if len(grid) > 0 {
		return gridHTML(grid)
	}
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	return markdownHTML(markdown)
}

func gridHTML(grid [][]string) (string, error) {
	table := &html.Node{Type: html.ElementNode, Data: "table", DataAtom: atom.Table}
	for _, row := range grid {
		tr := &html.Node{Type: html.ElementNode, Data: "tr", DataAtom: atom.Tr}
		for _, cell := range row {
			td := &html.Node{Type: html.ElementNode, Data: "td", DataAtom: atom.Td}
			td.AppendChild(&html.Node{Type: html.TextNode, Data: cell})
			tr.AppendChild(td)
		}
		table.AppendChild(tr)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, table); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

func markdownHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// crop cuts the canvas bitmap under an origin-space polygon of page and encodes it as PNG.
// When the region is not fully on the surface, the surface is moved and grown to hold it
// and put back afterwards, whatever happens.
func (x *Index) crop(ctx context.Context, page int, pos geom.Polygon) ([]byte, error) {
	if !pos.Valid() {
		return nil, fmt.Errorf("image block on page %d has no position", page)
	}
	region := x.canvas.TransformPositionByPageRect(pos, page).Bounds()
	w, h := x.surface.Size()
	t := x.surface.Translate()

	// canvas → surface pixels
	r := image.Rect(
		int(math.Floor(region.X.Lo+t.X)), int(math.Floor(region.Y.Lo+t.Y)),
		int(math.Ceil(region.X.Hi+t.X)), int(math.Ceil(region.Y.Hi+t.Y)),
	)
	if !r.In(image.Rect(0, 0, w, h)) {
		nw, nh := max(w, r.Dx()), max(h, r.Dy())
		defer func() {
			if nw != w || nh != h {
				x.surface.Resize(w, h)
			}
			x.surface.SetTranslate(t)
		}()
		if nw != w || nh != h {
			x.surface.Resize(nw, nh)
		}
		x.surface.SetTranslate(geom.Point{X: -math.Floor(region.X.Lo), Y: -math.Floor(region.Y.Lo)})
		r = r.Sub(r.Min)
	}

	img, err := x.surface.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("image block on page %d is outside the rendered surface", page)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dataURL(data []byte) string {
	return "data:" + canvas.MIMEPNG + ";base64," + base64.StdEncoding.EncodeToString(data)
}

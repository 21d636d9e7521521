package pdfmark

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/ocrmark/pkg/canvas"
	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/geom"
)

const (
	badgeFont   = "Helvetica"
	badgeSize   = 8
	badgeAscent = 0.718
)

// latin1 encodes badge text for the core fonts; unsupported runes become '?'
var latin1 = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())

// Apply imports every page of pdfData that has a layout page and draws the marks of that
// page on its own layer. Page N of the PDF pairs with layout page index N.
func (c *Canvas) Apply(pdfData []byte, cfg config.MarksConfig) ([]byte, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("input PDF data is empty")
	}
	if len(c.pages) == 0 {
		return nil, fmt.Errorf("no pages to mark")
	}
	cfg = withDefaults(cfg)

	check, err := CheckLayers(pdfData, cfg.LayerName)
	if err != nil {
		return nil, fmt.Errorf("layer detection failed: %w", err)
	}
	if len(check.Layers) > 0 {
		c.log.Debugw("existing layers", "layers", check.Layers)
	}
	for _, w := range check.Warnings {
		c.log.Warn(w)
	}
	if check.Exists {
		if !cfg.Force {
			return nil, fmt.Errorf("%w: %q", ErrMarksLayerExists, check.Name)
		}
		c.log.Warnw("marks layer exists, drawing another one", "layer", check.Name)
	}

	pdf := fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(pdfData))

	for _, pi := range c.pages {
		tpl, err := importPage(importer, pdf, &rs, pi.Index)
		if err != nil {
			return nil, fmt.Errorf("failed to import page %d: %w", pi.Index, err)
		}
		box := importer.GetPageSizes()[pi.Index]["/MediaBox"]
		w, h := box["w"], box["h"]
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("page %d has no media box", pi.Index)
		}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		importer.UseImportedTemplate(pdf, tpl, 0, 0, w, h)
		c.drawLayer(pdf, pi, w, h, cfg)
	}
	return output(pdf)
}

// Assemble builds a PDF with one page per image and draws the marks over it. images[i]
// pairs with the i-th page in index order; every page needs an image.
func (c *Canvas) Assemble(images [][]byte, cfg config.MarksConfig) ([]byte, error) {
	if len(images) < len(c.pages) {
		return nil, fmt.Errorf("not enough images (%d) for pages (%d)", len(images), len(c.pages))
	}
	cfg = withDefaults(cfg)

	pdf := fpdf.New("P", "pt", "A4", "")
	for i, pi := range c.pages {
		page := c.sizes[pi.Index]
		w, h := page.Width, page.Height
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("page %d has no size", pi.Index)
		}
		imageType, err := detectImageType(images[i])
		if err != nil {
			return nil, fmt.Errorf("image %d has invalid format: %w", i+1, err)
		}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		name := fmt.Sprintf("page%d", pi.Index)
		opts := fpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(images[i]))
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		c.drawLayer(pdf, pi, w, h, cfg)
	}
	return output(pdf)
}

// importPage imports one page as a template. The importer panics on malformed input.
func importPage(importer *gofpdi.Importer, pdf *fpdf.Fpdf, rs *io.ReadSeeker, page int) (tpl int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	tpl = importer.ImportPageFromStream(pdf, rs, page, "/MediaBox")
	if pdf.Err() {
		return 0, pdf.Error()
	}
	return tpl, nil
}

func withDefaults(cfg config.MarksConfig) config.MarksConfig {
	if cfg.LayerName == "" {
		cfg.LayerName = config.Default().Marks.LayerName
	}
	return cfg
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLayer draws the visible shapes of one page onto a new layer. Canvas polygons are
// mapped back to page space and scaled to a w×h PDF page.
func (c *Canvas) drawLayer(pdf *fpdf.Fpdf, pi canvas.PageInfo, w, h float64, cfg config.MarksConfig) {
	page := c.sizes[pi.Index]
	sx, sy := 1.0, 1.0
	if page.Width > 0 && page.Height > 0 {
		sx, sy = w/page.Width, h/page.Height
	}
	toPDF := func(pos geom.Polygon) []fpdf.PointType {
		pts := pos.Points()
		out := make([]fpdf.PointType, len(pts))
		for i, p := range pts {
			o := pi.Frame.FromCanvas(p)
			out[i] = fpdf.PointType{X: o.X * sx, Y: o.Y * sy}
		}
		return out
	}

	layer := pdf.AddLayer(layerName(cfg.LayerName, pi.Index), true)
	pdf.BeginLayer(layer)
	defer pdf.EndLayer()

	drawn := 0
	for _, s := range c.Shapes(pi.Index) {
		if !s.visible() {
			continue
		}
		opts := s.Options()
		if !opts.Polygon.Valid() {
			continue
		}
		pts := toPDF(opts.Polygon)

		if opts.Fill != "" {
			fill, err := canvas.ParseFill(opts.Fill)
			if err != nil {
				c.log.Warnw("skipping fill", "shape", s.ID(), "error", err)
			} else {
				pdf.SetFillColor(fill.RGB())
				pdf.SetAlpha(fill.Alpha, "Multiply")
				pdf.Polygon(pts, "F")
				pdf.SetAlpha(1, "Normal")
			}
		}
		if opts.Stroke != "" {
			if stroke, err := canvas.ParseFill(opts.Stroke); err == nil {
				pdf.SetDrawColor(stroke.RGB())
				pdf.Polygon(pts, "D")
			}
		}
		if s.Kind() == kindBadge && opts.Label != "" {
			c.drawBadge(pdf, pts, opts)
		}
		if cfg.Debug {
			pdf.SetDrawColor(255, 0, 0)
			pdf.SetLineWidth(0.5)
			pdf.Polygon(pts, "D")
		}
		drawn++
	}
	c.log.Debugw("marks layer drawn", "page", pi.Index, "shapes", drawn)
}

func (c *Canvas) drawBadge(pdf *fpdf.Fpdf, pts []fpdf.PointType, opts canvas.ShapeOptions) {
	text, err := latin1.String(opts.Label)
	if err != nil {
		c.log.Warnw("badge label not encodable", "label", opts.Label, "error", err)
		return
	}
	left, top := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		left, top = min(left, p.X), min(top, p.Y)
	}
	pdf.SetFont(badgeFont, "", badgeSize)
	pdf.SetTextColor(0, 0, 0)
	if opts.Stroke != "" {
		if f, err := canvas.ParseFill(opts.Stroke); err == nil {
			pdf.SetTextColor(f.RGB())
		}
	}
	pdf.Text(left+1, top+badgeSize*badgeAscent+1, text)
}

// detectImageType names the image format the way fpdf expects it
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}

// Package canvas defines the ports the mark engines drive: a drawing surface that owns
// shapes and page placement, the clipboard, the overlay that shows copy hints, and a
// scheduler for throttling and repeating timers.
//
// Nothing here renders. Hosts implement Canvas for their backend; pkg/pdfmark provides one
// that records shapes and exports them into a PDF.
package canvas

import (
	"context"
	"image"

	"github.com/gardar/ocrmark/pkg/geom"
)

// Shape states toggled through Shape.SetState
const (
	StateActive = "active"
	StateHover  = "hover"
	StateHidden = "hidden"
)

// Shape groups, used with Canvas.QueryState
const (
	GroupSelection  = "selection"
	GroupStructured = "structured"
	GroupSearch     = "search"
)

// ShapeOptions describes a shape to draw. Polygons are in canvas space.
type ShapeOptions struct {
	Page    int
	Polygon geom.Polygon
	Fill    string // #rrggbb or #rrggbbaa
	Stroke  string
	Label   string // badge text
	Group   string
	Hidden  bool
	Data    map[string]string // e.g. "ori_id"
}

// Shape is a handle to something drawn on the canvas
type Shape interface {
	ID() string
	Options() ShapeOptions
	UpdateOptions(opts ShapeOptions)
	SetState(state string, on bool)
	State(state string) bool
	Destroy()
}

// PageInfo places one page on the canvas
type PageInfo struct {
	Index int
	Frame geom.Frame
}

// Canvas is the drawing collaborator. Points passed to PageByPoint are in canvas space;
// screen points become canvas points by subtracting Translate.
type Canvas interface {
	DrawRect(opts ShapeOptions) Shape
	DrawPolygon(opts ShapeOptions) Shape
	DrawBadge(opts ShapeOptions) Shape

	PageByPoint(p geom.Point) (page int, ok bool)
	InternalPage(page int) (PageInfo, bool)
	// TransformPositionByPageRect maps an origin-space polygon of page into canvas space
	TransformPositionByPageRect(pos geom.Polygon, page int) geom.Polygon
	// TransformActualPoint maps a canvas-space polygon to screen space
	TransformActualPoint(pos geom.Polygon) geom.Polygon

	Translate() geom.Point
	UpdateTranslate(p geom.Point)
	// Viewport is the visible screen area
	Viewport() geom.Rect

	QueryState(group, state string) Shape
	QueryAllState(group, state string) []Shape

	Render()
	On(event Event, h Handler) Unsubscribe
}

// Surface is the bitmap behind a canvas, used to crop image blocks
type Surface interface {
	Size() (w, h int)
	Resize(w, h int)
	Translate() geom.Point
	SetTranslate(p geom.Point)
	Snapshot(ctx context.Context) (image.Image, error)
}

// Clipboard MIME types
const (
	MIMEText = "text/plain"
	MIMEHTML = "text/html"
	MIMEPNG  = "image/png"
)

// ClipboardItem is one representation of a multi-MIME clipboard write
type ClipboardItem struct {
	MIME string
	Data []byte
}

// Clipboard writes copy payloads. Failures are returned to the caller unchanged.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
	Write(ctx context.Context, items []ClipboardItem) error
}

// Overlay is the floating hint shown next to a finished selection
type Overlay interface {
	Show(rect geom.Rect)
	Hide()
}

// NopOverlay ignores every call
type NopOverlay struct{}

func (NopOverlay) Show(geom.Rect) {}
func (NopOverlay) Hide()          {}

// ScreenToCanvas converts a screen point using the canvas translate
func ScreenToCanvas(c Canvas, p geom.Point) geom.Point {
	return p.Sub(c.Translate())
}

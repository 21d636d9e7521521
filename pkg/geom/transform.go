package geom

// Angle is a page display rotation, clockwise, in degrees
type Angle int

// Supported display angles
const (
	Angle0   Angle = 0
	Angle90  Angle = 90
	Angle180 Angle = 180
	Angle270 Angle = 270
)

// NormalizeAngle folds any multiple of 90 into [0, 360). Other values snap to the
// nearest quarter turn.
func NormalizeAngle(deg int) Angle {
	q := ((deg%360)+360)%360 + 45
	return Angle((q / 90 % 4) * 90)
}

// Horizontal reports whether the angle belongs to the horizontal family (90/270), where
// text lines stack along the X axis.
func (a Angle) Horizontal() bool {
	return a == Angle90 || a == Angle270
}

// Frame places one page on the canvas
type Frame struct {
	Angle        Angle
	OriginWidth  float64
	OriginHeight float64
	Scale        float64 // canvas units per display unit; 0 means 1
	Offset       Point   // top-left of the displayed page in canvas space
}

func (f Frame) scale() float64 {
	if f.Scale == 0 {
		return 1
	}
	return f.Scale
}

// DisplaySize returns the page size after rotation, before scaling
func (f Frame) DisplaySize() (w, h float64) {
	if f.Angle.Horizontal() {
		return f.OriginHeight, f.OriginWidth
	}
	return f.OriginWidth, f.OriginHeight
}

// Rotate maps an origin-space point into display space at angle a
func (f Frame) Rotate(p Point, a Angle) Point {
	switch a {
	case Angle90:
		return Point{f.OriginHeight - p.Y, p.X}
	case Angle180:
		return Point{f.OriginWidth - p.X, f.OriginHeight - p.Y}
	case Angle270:
		return Point{p.Y, f.OriginWidth - p.X}
	}
	return p
}

// Unrotate maps a display-space point at angle a back to origin space
func (f Frame) Unrotate(p Point, a Angle) Point {
	switch a {
	case Angle90:
		return Point{p.Y, f.OriginHeight - p.X}
	case Angle180:
		return Point{f.OriginWidth - p.X, f.OriginHeight - p.Y}
	case Angle270:
		return Point{f.OriginWidth - p.Y, p.X}
	}
	return p
}

// DisplayToCanvas applies scale and offset to a display-space point
func (f Frame) DisplayToCanvas(p Point) Point {
	s := f.scale()
	return Point{p.X*s + f.Offset.X, p.Y*s + f.Offset.Y}
}

// CanvasToDisplay removes offset and scale from a canvas-space point
func (f Frame) CanvasToDisplay(p Point) Point {
	s := f.scale()
	return Point{(p.X - f.Offset.X) / s, (p.Y - f.Offset.Y) / s}
}

// ToCanvas maps an origin-space point to canvas space using the page's own angle
func (f Frame) ToCanvas(p Point) Point {
	return f.DisplayToCanvas(f.Rotate(p, f.Angle))
}

// FromCanvas maps a canvas-space point back to origin space
func (f Frame) FromCanvas(p Point) Point {
	return f.Unrotate(f.CanvasToDisplay(p), f.Angle)
}

// PositionByAngle rotates a stored origin-space polygon into the display frame of angle a.
// Malformed polygons are returned unchanged.
func (f Frame) PositionByAngle(pos Polygon, a Angle) Polygon {
	if !pos.Valid() {
		return pos
	}
	if a == Angle0 {
		return pos
	}
	if len(pos) == 4 {
		p1 := f.Rotate(Point{pos[0], pos[1]}, a)
		p2 := f.Rotate(Point{pos[2], pos[3]}, a)
		return Polygon{min(p1.X, p2.X), min(p1.Y, p2.Y), max(p1.X, p2.X), max(p1.Y, p2.Y)}
	}
	out := make(Polygon, 8)
	for i := 0; i < 8; i += 2 {
		q := f.Rotate(Point{pos[i], pos[i+1]}, a)
		out[i], out[i+1] = q.X, q.Y
	}
	return out
}

// PolygonToCanvas maps an origin-space polygon to canvas space
func (f Frame) PolygonToCanvas(pos Polygon) Polygon {
	if !pos.Valid() {
		return pos
	}
	out := make(Polygon, 0, 8)
	for _, p := range pos.Points() {
		q := f.ToCanvas(p)
		out = append(out, q.X, q.Y)
	}
	return out
}

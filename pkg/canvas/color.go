package canvas

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// Fill is a parsed fill colour with opacity in [0, 1]
type Fill struct {
	Color colorful.Color
	Alpha float64
}

// RGB returns the colour as 0-255 components
func (f Fill) RGB() (r, g, b int) {
	r8, g8, b8 := f.Color.Clamped().RGB255()
	return int(r8), int(g8), int(b8)
}

// ParseFill reads #rgb, #rrggbb or #rrggbbaa. Missing alpha means opaque.
func ParseFill(s string) (Fill, error) {
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Fill{}, fmt.Errorf("invalid alpha in colour %q: %w", s, err)
		}
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return Fill{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		return Fill{Color: c, Alpha: float64(a) / 255}, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Fill{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Fill{Color: c, Alpha: 1}, nil
}

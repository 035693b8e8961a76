package quant

import "github.com/lucasb-eyer/go-colorful"

// RGB is one palette color and the key under which distinct colors are
// counted. Alpha never participates.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Palette is an ordered list of representative colors. For a cluster
// quantizer result the order follows cluster label numbering, so
// Assignment indices point into it directly.
type Palette []RGB

// Colorful converts c to a go-colorful color with channels in [0,1].
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// Hex returns the "#rrggbb" form of c.
func (c RGB) Hex() string {
	return c.Colorful().Hex()
}

// FromColorful clamps col and converts it to 8-bit channels.
func FromColorful(col colorful.Color) RGB {
	r, g, b := col.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// Colors converts the palette for the colorful-based helpers.
func (p Palette) Colors() []colorful.Color {
	out := make([]colorful.Color, len(p))
	for i, c := range p {
		out[i] = c.Colorful()
	}
	return out
}

// Hexes returns the palette as "#rrggbb" strings in palette order.
func (p Palette) Hexes() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}

package imgio

import (
	"errors"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// SaveSwatch renders the palette as a horizontal strip of solid tiles
// and encodes it to path. tileSize is the square tile edge in pixels;
// values below 1 fall back to 64.
func SaveSwatch(palette []colorful.Color, tileSize int, path string) error {
	if len(palette) == 0 {
		return errors.New("imgio: empty palette")
	}
	if tileSize < 1 {
		tileSize = 64
	}

	img := image.NewRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, c := range palette {
		r, g, b := c.Clamped().RGB255()
		tile := color.RGBA{R: r, G: g, B: b, A: 255}
		x0 := i * tileSize
		for y := range tileSize {
			for x := x0; x < x0+tileSize; x++ {
				img.SetRGBA(x, y, tile)
			}
		}
	}
	return saveImage(img, path)
}

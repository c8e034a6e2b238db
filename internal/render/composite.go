package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Composite blends a window frame over a backdrop at the given window
// opacity, the way a compositing window manager shows a translucent window.
// It is used for snapshots of the headless backend.
func Composite(frame *image.RGBA, opacity uint8, backdrop color.Color) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(backdrop), image.Point{}, draw.Src)

	if opacity == 0 {
		return out
	}
	mask := image.NewUniform(color.Alpha{A: opacity})
	draw.DrawMask(out, bounds, frame, bounds.Min, mask, image.Point{}, draw.Over)
	return out
}

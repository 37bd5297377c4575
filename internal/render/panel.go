package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
)

// drawRoundedPanel fills rect with clr, rounding the corners by radius.
// Straight edges are drawn as rectangles and each corner as a blended disc.
func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	radius = min(max(radius, 0), rect.Dx()/2, rect.Dy()/2)
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	for _, r := range []image.Rectangle{
		image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius),
		image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius),
	} {
		if !r.Empty() {
			imagedraw.Draw(img, r, fill, image.Point{}, imagedraw.Over)
		}
	}

	corners := [4]image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for i, c := range corners {
		drawQuarterDisc(img, c, radius, i, clr)
	}
}

// drawQuarterDisc blends the corner quadrant q (0 top-left, 1 top-right,
// 2 bottom-left, 3 bottom-right) of a disc so no pixel is painted twice.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius, q int, clr color.Color) {
	sx, sy := -1, -1
	if q == 1 || q == 3 {
		sx = 1
	}
	if q >= 2 {
		sy = 1
	}
	r2 := radius * radius
	for dy := 0; dy <= radius; dy++ {
		for dx := 0; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			// the axis-aligned strips already cover dx==0 / dy==0 lines
			if dx == 0 || dy == 0 {
				continue
			}
			blendPixel(img, center.X+sx*dx, center.Y+sy*dy, clr)
		}
	}
}

// blendPixel composites clr over the pixel at (x, y) with source-over.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	d := img.RGBAAt(x, y)
	inv := 0xffff - sa
	mix := func(s uint32, dc uint8) uint8 {
		return uint8((s + uint32(dc)*0x101*inv/0xffff) >> 8)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, d.R),
		G: mix(sg, d.G),
		B: mix(sb, d.B),
		A: mix(sa, d.A),
	})
}

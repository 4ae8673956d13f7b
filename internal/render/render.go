// Package render draws a framed scene into a raster surface.
//
// Render is the only drawing routine: the live preview and the export both
// call it, differing only in surface size and in the transform they pass. The
// export transform is derived from the preview one by [MapExport].
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"framer/internal/crop"
	"framer/internal/transform"
)

// Scene is everything Render needs to draw one frame.
type Scene struct {
	// Background fills the surface first. Nil means transparent.
	Background color.Color
	Transform  transform.State
	// Crop clips the image to a normalized rectangle when set.
	Crop *crop.State
	// Image is the source raster. Without it only the background is drawn.
	Image image.Image
	// Graded is Image graded at full intensity, drawn when Intensity > 0.
	Graded    image.Image
	Intensity float64
}

// NewSurface allocates a surface for Render. Dimensions below 1 are raised
// to 1.
func NewSurface(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
}

// Render draws sc into dst.
func Render(dst draw.Image, sc Scene) {
	bounds := dst.Bounds()
	bg := sc.Background
	if bg == nil {
		bg = color.Transparent
	}
	draw.Draw(dst, bounds, image.NewUniform(bg), image.Point{}, draw.Src)

	if sc.Image == nil {
		return
	}

	src := sc.Image.Bounds()
	scale := sc.Transform.Scale
	if !(scale > 0) {
		scale = transform.ScaleMin
	}
	w, h := float64(src.Dx())*scale, float64(src.Dy())*scale

	// top-left of the scaled image in surface pixels
	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2 + sc.Transform.X
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2 + sc.Transform.Y
	left, top := cx-w/2, cy-h/2

	target := dst
	if sc.Crop != nil {
		c := *sc.Crop
		clip := image.Rect(
			int(math.Round(left+c.X*w)),
			int(math.Round(top+c.Y*h)),
			int(math.Round(left+(c.X+c.Width)*w)),
			int(math.Round(top+(c.Y+c.Height)*h)),
		).Intersect(bounds)
		if clip.Empty() {
			return
		}
		target = clipTo(dst, clip)
	}

	// maps source pixels of an image with bounds b onto the surface
	s2d := func(b image.Rectangle) f64.Aff3 {
		return f64.Aff3{
			scale, 0, left - float64(b.Min.X)*scale,
			0, scale, top - float64(b.Min.Y)*scale,
		}
	}
	interp := xdraw.BiLinear

	switch {
	case sc.Graded == nil || !(sc.Intensity > 0):
		interp.Transform(target, s2d(src), sc.Image, src, xdraw.Over, nil)
	case sc.Intensity >= 1:
		gb := sc.Graded.Bounds()
		interp.Transform(target, s2d(gb), sc.Graded, gb, xdraw.Over, nil)
	default:
		interp.Transform(target, s2d(src), sc.Image, src, xdraw.Over, nil)
		gb := sc.Graded.Bounds()
		alpha := image.NewUniform(color.Alpha16{A: uint16(math.Round(sc.Intensity * 0xffff))})
		interp.Transform(target, s2d(gb), sc.Graded, gb, xdraw.Over, &xdraw.Options{
			SrcMask: alpha,
		})
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// clipTo restricts drawing on dst to r. Concrete image types keep their fast
// paths through SubImage.
func clipTo(dst draw.Image, r image.Rectangle) draw.Image {
	if si, ok := dst.(subImager); ok {
		if sub, ok := si.SubImage(r).(draw.Image); ok {
			return sub
		}
	}
	return clipped{Image: dst, r: r}
}

type clipped struct {
	draw.Image
	r image.Rectangle
}

func (c clipped) Bounds() image.Rectangle { return c.r }

func (c clipped) Set(x, y int, col color.Color) {
	if image.Pt(x, y).In(c.r) {
		c.Image.Set(x, y, col)
	}
}

package lut

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Grade applies the table at full intensity to every pixel of src. Alpha is
// copied unchanged. The result has its origin at (0, 0).
func (l *LUT) Grade(src image.Image) *image.NRGBA {
	dst := imaging.Clone(src)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()

	// identical inputs are common in photos with flat areas
	var (
		lastIn  [3]uint8
		lastOut [3]uint8
		primed  bool
	)
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			in := [3]uint8{row[i], row[i+1], row[i+2]}
			if !primed || in != lastIn {
				r, g, b := l.Lookup(float64(in[0])/255, float64(in[1])/255, float64(in[2])/255)
				lastIn = in
				lastOut = [3]uint8{toByte(r), toByte(g), toByte(b)}
				primed = true
			}
			row[i], row[i+1], row[i+2] = lastOut[0], lastOut[1], lastOut[2]
		}
	}
	return dst
}

// Blend mixes src and graded as src·(1-intensity) + graded·intensity per
// color channel. Alpha is taken from src. Both images must have the same
// size; intensity is clamped to [0, 1].
func Blend(src, graded *image.NRGBA, intensity float64) *image.NRGBA {
	if !(intensity > 0) {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	inv := 1 - intensity
	for y := 0; y < h; y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+w*4]
		g := graded.Pix[y*graded.Stride : y*graded.Stride+w*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for i := 0; i < len(d); i += 4 {
			d[i] = mix(s[i], g[i], inv, intensity)
			d[i+1] = mix(s[i+1], g[i+1], inv, intensity)
			d[i+2] = mix(s[i+2], g[i+2], inv, intensity)
			d[i+3] = s[i+3]
		}
	}
	return dst
}

func mix(a, b uint8, wa, wb float64) uint8 {
	return toByte((float64(a)*wa + float64(b)*wb) / 255)
}

// toByte converts a [0, 1] value to 0..255, clamping out-of-range input.
func toByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

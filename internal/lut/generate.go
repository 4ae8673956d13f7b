package lut

import (
	"fmt"
	"math"
)

// ColorFunc maps an RGB triple in [0, 1] to another.
type ColorFunc func(r, g, b float64) (float64, float64, float64)

// Generate samples fn on a size³ grid.
func Generate(size int, title string, fn ColorFunc) (*LUT, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
	}
	n := size
	table := make([]float32, 0, n*n*n*3)
	step := 1 / float64(n-1)
	for b := 0; b < n; b++ {
		for g := 0; g < n; g++ {
			for r := 0; r < n; r++ {
				ro, gr, bo := fn(float64(r)*step, float64(g)*step, float64(b)*step)
				table = append(table, float32(clamp01(ro)), float32(clamp01(gr)), float32(clamp01(bo)))
			}
		}
	}
	return New(size, table, Metadata{Title: title})
}

// Identity returns a table that maps every color to itself. size is clamped
// to the supported range.
func Identity(size int) *LUT {
	size = max(MinSize, min(size, MaxSize))
	l, _ := Generate(size, "Identity", func(r, g, b float64) (float64, float64, float64) {
		return r, g, b
	})
	return l
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func luma(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// builtin describes a filter that ships with the binary.
type builtin struct {
	id, name string
	fn       ColorFunc
}

const builtinSize = 17

var builtins = []builtin{
	{"identity", "Original", func(r, g, b float64) (float64, float64, float64) {
		return r, g, b
	}},
	{"mono", "Mono", func(r, g, b float64) (float64, float64, float64) {
		y := luma(r, g, b)
		return y, y, y
	}},
	{"noir", "Noir", func(r, g, b float64) (float64, float64, float64) {
		y := luma(r, g, b)
		// S-curve on luma
		y = y * y * (3 - 2*y)
		y = y * y * (3 - 2*y)
		return y, y, y
	}},
	{"warm", "Warm", func(r, g, b float64) (float64, float64, float64) {
		return r*1.08 + 0.02, g*1.02 + 0.01, b * 0.88
	}},
	{"cool", "Cool", func(r, g, b float64) (float64, float64, float64) {
		return r * 0.9, g*1.0 + 0.01, b*1.1 + 0.03
	}},
	{"fade", "Fade", func(r, g, b float64) (float64, float64, float64) {
		const lift, gain = 0.12, 0.82
		return lift + r*gain, lift + g*gain, lift + b*gain
	}},
	{"vivid", "Vivid", func(r, g, b float64) (float64, float64, float64) {
		const sat = 1.35
		y := luma(r, g, b)
		return y + (r-y)*sat, y + (g-y)*sat, y + (b-y)*sat
	}},
}

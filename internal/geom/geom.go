// Package geom holds the small value types shared by the framing packages.
package geom

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Size is a width/height pair. Depending on the caller it is measured in
// image pixels, surface pixels or normalized units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sz is shorthand for Size{w, h}.
func Sz(w, h float64) Size {
	return Size{Width: w, Height: h}
}

// Valid reports whether both dimensions are finite and positive.
func (s Size) Valid() bool {
	return Positive(s.Width) && Positive(s.Height)
}

// Aspect returns Width/Height, or 1 when the size is not valid.
func (s Size) Aspect() float64 {
	if !s.Valid() {
		return 1
	}
	return s.Width / s.Height
}

// Scale multiplies both dimensions by f.
func (s Size) Scale(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

// Vec is a 2D offset.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp limits v to [lo, hi]. When lo > hi, lo wins.
func Clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Positive reports whether v is a finite number above zero.
func Positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

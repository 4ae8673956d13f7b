// Package transform places an image on a render surface.
//
// A State holds the offset of the image center from the surface center and a
// uniform scale. Offsets are always expressed in pixels of the surface being
// drawn; moving a State to a surface of a different size goes through Rescale.
package transform

import (
	"math"

	"framer/internal/crop"
	"framer/internal/geom"
)

const (
	// ScaleMin and ScaleMax bound State.Scale.
	ScaleMin = 0.05
	ScaleMax = 8.0

	// DefaultInset shrinks the fit scale on import to leave a visible margin.
	DefaultInset = 0.95

	// SnapThreshold is the distance in surface pixels under which an offset
	// snaps to the center.
	SnapThreshold = 2.0

	// RefitTolerance is the relative aspect change of the surface above which
	// the image is fitted again.
	RefitTolerance = 0.01
)

// State positions an image on a surface.
type State struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// ClampScale limits s to [ScaleMin, ScaleMax]. Non-finite values become
// ScaleMin.
func ClampScale(s float64) float64 {
	if !geom.Finite(s) {
		return ScaleMin
	}
	return geom.Clamp(s, ScaleMin, ScaleMax)
}

// FitScale is the largest scale at which an image of size effective fits
// entirely in surface. Degenerate sizes give ScaleMin.
func FitScale(surface, effective geom.Size) float64 {
	if !surface.Valid() || !effective.Valid() {
		return ScaleMin
	}
	return math.Min(surface.Width/effective.Width, surface.Height/effective.Height)
}

// DefaultScale is the fit scale with the import inset applied.
func DefaultScale(surface, effective geom.Size) float64 {
	return math.Max(FitScale(surface, effective)*DefaultInset, ScaleMin)
}

// centered returns a State at scale with the crop center on the surface
// center.
func centered(native geom.Size, c *crop.State, scale float64) State {
	off := crop.CenterOffset(native, c)
	return State{X: -off.X * scale, Y: -off.Y * scale, Scale: scale}
}

// Initial is the transform given to a freshly imported image: centered on the
// crop and scaled to DefaultScale.
func Initial(surface, native geom.Size, c *crop.State) State {
	return centered(native, c, DefaultScale(surface, crop.EffectiveDimensions(native, c)))
}

// Fitted centers the crop at exactly the fit scale. Reset and auto-fit use it.
func Fitted(surface, native geom.Size, c *crop.State) State {
	scale := FitScale(surface, crop.EffectiveDimensions(native, c))
	return centered(native, c, ClampScale(scale))
}

// Recenter keeps the scale of t and moves the crop center back to the surface
// center.
func Recenter(t State, native geom.Size, c *crop.State) State {
	return centered(native, c, t.Scale)
}

// ApplyDelta moves t by a pan delta in surface pixels.
func ApplyDelta(t State, dx, dy float64) State {
	t.X += dx
	t.Y += dy
	return t
}

// ApplyZoom multiplies the scale by factor, within bounds.
func ApplyZoom(t State, factor float64) State {
	t.Scale = ClampScale(t.Scale * factor)
	return t
}

// ZoomAboutCenter zooms like ApplyZoom but scales the offsets too, so the
// image point under the surface center stays there.
func ZoomAboutCenter(t State, factor float64) State {
	z := ApplyZoom(t, factor)
	if t.Scale > 0 {
		k := z.Scale / t.Scale
		z.X, z.Y = t.X*k, t.Y*k
	}
	return z
}

// WithScale sets the scale, within bounds.
func WithScale(t State, scale float64) State {
	t.Scale = ClampScale(scale)
	return t
}

// Snap zeroes an axis offset that is within SnapThreshold of the center. It
// is a dead zone, not a spring: offsets further out are untouched.
func Snap(t State, enabled bool) State {
	if !enabled {
		return t
	}
	if math.Abs(t.X) < SnapThreshold {
		t.X = 0
	}
	if math.Abs(t.Y) < SnapThreshold {
		t.Y = 0
	}
	return t
}

// Rescale maps t onto a surface factor times as large.
func Rescale(t State, factor float64) State {
	if !geom.Positive(factor) {
		return t
	}
	return State{X: t.X * factor, Y: t.Y * factor, Scale: t.Scale * factor}
}

// RescaleClamped is Rescale for a transform that is still being edited: the
// scale stays within bounds and the offsets follow the factor actually
// applied. Export mapping uses plain Rescale.
func RescaleClamped(t State, factor float64) State {
	if !geom.Positive(factor) {
		return t
	}
	return ZoomAboutCenter(t, factor)
}

// ScalePercent expresses scale relative to the fit scale, for slider display:
// 0 at fit, clamped to ±100.
func ScalePercent(scale, fit float64) float64 {
	if !geom.Positive(fit) {
		return 0
	}
	return geom.Clamp((scale/fit-1)*100, -100, 100)
}

// ScaleFromPercent is the inverse of ScalePercent.
func ScaleFromPercent(pct, fit float64) float64 {
	if !geom.Positive(fit) {
		return ScaleMin
	}
	pct = geom.Clamp(pct, -100, 100)
	return ClampScale(fit * (1 + pct/100))
}

// NeedsRefit reports whether a surface change from prev to next alters its
// aspect ratio enough to fit the image again. Ratio-preserving resizes do
// not.
func NeedsRefit(prev, next geom.Size) bool {
	if !prev.Valid() || !next.Valid() {
		return next.Valid()
	}
	a, b := prev.Aspect(), next.Aspect()
	return math.Abs(b-a)/a > RefitTolerance
}

package render

import (
	"math"

	"framer/internal/geom"
	"framer/internal/transform"
)

// DefaultExportWidth is the export width used when there is no image.
const DefaultExportWidth = 1920

// Target is the export surface and the transform to draw on it.
type Target struct {
	Width       int
	Height      int
	ScaleFactor float64
	Transform   transform.State
}

// MapExport derives the export target from the preview state.
//
// The export is as wide as the visible part of the image (effective, zero
// when there is no image) and shaped by ratio. The preview and the export
// share that ratio, so one factor maps both axes.
func MapExport(preview geom.Size, t transform.State, effective geom.Size, ratio float64) Target {
	width := DefaultExportWidth
	if effective.Valid() {
		width = max(int(math.Round(effective.Width)), 1)
	}
	if !geom.Positive(ratio) {
		ratio = 1
	}
	height := max(int(math.Round(float64(width)/ratio)), 1)

	factor := 1.0
	if geom.Positive(preview.Width) {
		factor = float64(width) / preview.Width
	}
	return Target{
		Width:       width,
		Height:      height,
		ScaleFactor: factor,
		Transform:   transform.Rescale(t, factor),
	}
}

// Package editor owns the editing session of the framing tool: the queue of
// imported images, their per-image framing state and the canvas settings
// shared between them.
//
// A Session is single-threaded. Every intent is a synchronous
// read-modify-write of that state; embedders that serve several goroutines
// serialize calls themselves.
package editor

import (
	"image"
	"image/color"

	"github.com/google/uuid"

	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/lut"
	"framer/internal/ratio"
	"framer/internal/render"
	"framer/internal/transform"
)

// Asset is an imported image. It is never modified after import.
type Asset struct {
	ID    string
	Name  string
	Image image.Image
}

// NewAsset wraps a decoded image under a fresh id.
func NewAsset(name string, img image.Image) *Asset {
	return &Asset{ID: uuid.NewString(), Name: name, Image: img}
}

// Size returns the native pixel size.
func (a *Asset) Size() geom.Size {
	b := a.Image.Bounds()
	return geom.Sz(float64(b.Dx()), float64(b.Dy()))
}

// FilterState is the color grade of one image. The graded raster is computed
// at full intensity when the filter is chosen and reused for every intensity.
type FilterState struct {
	ID        string
	LUT       *lut.LUT
	Intensity float64

	graded    *image.NRGBA
	gradedFor string
}

// Graded returns the cached fully graded raster.
func (f *FilterState) Graded() *image.NRGBA {
	return f.graded
}

// ensureGraded computes the graded raster if it is missing or was made for
// another asset.
func (f *FilterState) ensureGraded(a *Asset) bool {
	if f.graded != nil && f.gradedFor == a.ID {
		return false
	}
	f.graded = f.LUT.Grade(a.Image)
	f.gradedFor = a.ID
	return true
}

// ImageState is the framing of one queued image.
type ImageState struct {
	Asset     *Asset
	Transform transform.State
	Crop      *crop.State
	Filter    *FilterState
	// Edited is set once the user changes the framing by hand. Unedited images
	// are fitted again when they are selected.
	Edited bool

	cropEditor crop.Editor
	// surface the transform is expressed against
	surface geom.Size
}

// Settings are shared by every image of the session.
type Settings struct {
	Ratio       ratio.ID      `json:"ratio"`
	CustomRatio geom.Size     `json:"custom_ratio"`
	Background  color.NRGBA   `json:"-"`
	Snap        bool          `json:"snap"`
	CropMode    bool          `json:"crop_mode"`
	Format      render.Format `json:"format"`
	Quality     float64       `json:"quality"`
	// Preview is the last reported size of the preview container.
	Preview geom.Size `json:"preview"`
}

// DefaultSettings returns the settings of a new session.
func DefaultSettings() Settings {
	return Settings{
		Ratio:       ratio.Original,
		CustomRatio: geom.Sz(1, 1),
		Background:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Snap:        true,
		Format:      render.PNG,
		Quality:     render.DefaultQuality,
	}
}

// Snapshot is a read-only copy of the active image and the settings, enough
// to render a frame. Image is nil when nothing is selected.
type Snapshot struct {
	Image    *ImageState
	Settings Settings
	// Surface is the preview surface in pixels.
	Surface geom.Size
	// Ratio is the resolved canvas ratio.
	Ratio float64
}

package editor

import (
	"context"
	"image/color"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/ratio"
	"framer/internal/render"
	"framer/internal/transform"
)

// Session holds the image queue and the canvas settings. Intents that need an
// active image do nothing when there is none.
type Session struct {
	settings Settings
	images   []*ImageState
	active   int
	revision uint64
	logger   *zerolog.Logger
}

// New creates a session. The context logger is kept for later intents.
func New(ctx context.Context, settings Settings) *Session {
	if settings.Format == "" {
		settings.Format = render.PNG
	}
	settings.Quality = render.ClampQuality(settings.Quality)
	if settings.Ratio == "" {
		settings.Ratio = ratio.Original
	}
	return &Session{
		settings: settings,
		active:   -1,
		logger:   log.Ctx(ctx),
	}
}

// Revision increases whenever something visible changes. A preview is stale
// when it was drawn at an older revision.
func (s *Session) Revision() uint64 {
	return s.revision
}

func (s *Session) touch() {
	s.revision++
}

// Settings returns a copy of the canvas settings.
func (s *Session) Settings() Settings {
	return s.settings
}

// Images returns the queue in import order.
func (s *Session) Images() []*ImageState {
	out := make([]*ImageState, len(s.images))
	copy(out, s.images)
	return out
}

// Active returns the selected image, or nil.
func (s *Session) Active() *ImageState {
	if s.active < 0 || s.active >= len(s.images) {
		return nil
	}
	return s.images[s.active]
}

// Ratio resolves the canvas ratio for the active image.
func (s *Session) Ratio() float64 {
	return s.ratioFor(s.Active())
}

func (s *Session) ratioFor(img *ImageState) float64 {
	opts := ratio.Options{Custom: s.settings.CustomRatio}
	if img != nil {
		opts.Image = img.Asset.Size()
		opts.Crop = img.Crop
	}
	return ratio.Resolve(s.settings.Ratio, opts)
}

// Surface returns the preview surface: the largest box of the canvas ratio
// inside the preview container, in whole pixels. It is zero until a preview
// size is reported.
func (s *Session) Surface() geom.Size {
	return s.surfaceFor(s.Active())
}

func (s *Session) surfaceFor(img *ImageState) geom.Size {
	box := ratio.FitBox(s.settings.Preview, s.ratioFor(img))
	w, h := roundPx(box.Width), roundPx(box.Height)
	if w < 1 || h < 1 {
		return geom.Size{}
	}
	return geom.Sz(w, h)
}

// sync brings the transform of img onto the current surface: a surface of
// another aspect fits the image again, one of the same aspect only rescales
// the transform so the framing is kept.
func (s *Session) sync(img *ImageState) {
	cur := s.surfaceFor(img)
	if !cur.Valid() {
		return
	}
	switch {
	case transform.NeedsRefit(img.surface, cur):
		img.Transform = transform.Initial(cur, img.Asset.Size(), img.Crop)
	case img.surface != cur:
		img.Transform = transform.RescaleClamped(img.Transform, cur.Width/img.surface.Width)
	}
	img.surface = cur
}

// fit replaces the transform of img, at the default inset or exactly.
func (s *Session) fit(img *ImageState, exact bool) {
	cur := s.surfaceFor(img)
	if exact {
		img.Transform = transform.Fitted(cur, img.Asset.Size(), img.Crop)
	} else {
		img.Transform = transform.Initial(cur, img.Asset.Size(), img.Crop)
	}
	img.surface = cur
}

// Import appends an asset to the queue and selects it.
func (s *Session) Import(a *Asset) *ImageState {
	img := &ImageState{Asset: a}
	s.images = append(s.images, img)
	s.leaveCropMode()
	s.active = len(s.images) - 1
	s.fit(img, false)
	s.touch()
	s.logger.Debug().Str("image", a.ID).Str("name", a.Name).Msg("imported image")
	return img
}

// Select makes the image with the given id active. Unedited images are
// fitted again.
func (s *Session) Select(id string) bool {
	for i, img := range s.images {
		if img.Asset.ID != id {
			continue
		}
		if i != s.active {
			s.leaveCropMode()
		}
		s.active = i
		if img.Edited {
			s.sync(img)
		} else {
			s.fit(img, false)
		}
		s.touch()
		return true
	}
	return false
}

// Remove drops an image from the queue. The next image, if any, becomes
// active.
func (s *Session) Remove(id string) bool {
	for i, img := range s.images {
		if img.Asset.ID != id {
			continue
		}
		if i == s.active {
			s.leaveCropMode()
		}
		s.images = append(s.images[:i], s.images[i+1:]...)
		switch {
		case len(s.images) == 0:
			s.active = -1
		case i < s.active || s.active >= len(s.images):
			s.active--
		}
		if next := s.Active(); next != nil && !next.Edited {
			s.fit(next, false)
		}
		s.touch()
		return true
	}
	return false
}

// ResizePreview records the size of the preview container.
func (s *Session) ResizePreview(container geom.Size) {
	if container == s.settings.Preview {
		return
	}
	s.settings.Preview = container
	if img := s.Active(); img != nil {
		s.sync(img)
	}
	s.touch()
}

// SetRatio changes the canvas ratio.
func (s *Session) SetRatio(id ratio.ID) {
	if id == s.settings.Ratio {
		return
	}
	s.settings.Ratio = id
	if img := s.Active(); img != nil {
		s.sync(img)
	}
	s.touch()
}

// SetCustomRatio sets the dimensions used by the custom ratio and selects it.
func (s *Session) SetCustomRatio(size geom.Size) {
	s.settings.CustomRatio = size
	s.settings.Ratio = ratio.Custom
	if img := s.Active(); img != nil {
		s.sync(img)
	}
	s.touch()
}

// SetBackground sets the color behind the image.
func (s *Session) SetBackground(c color.NRGBA) {
	s.settings.Background = c
	s.touch()
}

// SetSnap toggles center snapping while panning.
func (s *Session) SetSnap(enabled bool) {
	s.settings.Snap = enabled
}

// SetExportFormat chooses the export encoding and JPEG quality.
func (s *Session) SetExportFormat(f render.Format, quality float64) {
	s.settings.Format = f
	s.settings.Quality = render.ClampQuality(quality)
}

// edit applies fn to the transform of the active image and marks it edited.
func (s *Session) edit(fn func(transform.State) transform.State) {
	img := s.Active()
	if img == nil {
		return
	}
	img.Transform = fn(img.Transform)
	img.Edited = true
	s.touch()
}

// Pan moves the image by a drag delta in preview pixels, snapping to the
// center when enabled.
func (s *Session) Pan(dx, dy float64) {
	s.edit(func(t transform.State) transform.State {
		return transform.Snap(transform.ApplyDelta(t, dx, dy), s.settings.Snap)
	})
}

// Zoom multiplies the scale, keeping the surface center in place.
func (s *Session) Zoom(factor float64) {
	s.edit(func(t transform.State) transform.State {
		return transform.ZoomAboutCenter(t, factor)
	})
}

// FitScale returns the fit scale of the active image on the preview surface.
func (s *Session) FitScale() float64 {
	img := s.Active()
	if img == nil {
		return transform.ScaleMin
	}
	return transform.FitScale(s.surfaceFor(img), crop.EffectiveDimensions(img.Asset.Size(), img.Crop))
}

// ScalePercent is the slider value for the active image.
func (s *Session) ScalePercent() float64 {
	img := s.Active()
	if img == nil {
		return 0
	}
	return transform.ScalePercent(img.Transform.Scale, s.FitScale())
}

// SetScalePercent sets the scale from a slider value.
func (s *Session) SetScalePercent(pct float64) {
	fit := s.FitScale()
	s.edit(func(t transform.State) transform.State {
		if !(t.Scale > 0) {
			return transform.WithScale(t, transform.ScaleFromPercent(pct, fit))
		}
		return transform.ZoomAboutCenter(t, transform.ScaleFromPercent(pct, fit)/t.Scale)
	})
}

// Recenter moves the crop center back to the surface center.
func (s *Session) Recenter() {
	img := s.Active()
	if img == nil {
		return
	}
	s.edit(func(t transform.State) transform.State {
		return transform.Recenter(t, img.Asset.Size(), img.Crop)
	})
}

// AutoFit fits the visible part of the image exactly into the surface.
func (s *Session) AutoFit() {
	img := s.Active()
	if img == nil {
		return
	}
	s.fit(img, true)
	img.Edited = true
	s.touch()
}

// Reset drops the crop and fits the image exactly. The filter is kept.
func (s *Session) Reset() {
	img := s.Active()
	if img == nil {
		return
	}
	s.leaveCropMode()
	img.Crop = nil
	s.fit(img, true)
	img.Edited = false
	s.touch()
}

func roundPx(v float64) float64 {
	if !geom.Positive(v) {
		return 0
	}
	return float64(int(v + 0.5))
}

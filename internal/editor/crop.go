package editor

import (
	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/transform"
)

// EnterCrop starts crop mode on the active image, from its current crop.
func (s *Session) EnterCrop() {
	img := s.Active()
	if img == nil || img.cropEditor.Active() {
		return
	}
	img.cropEditor.Enter(img.Crop)
	s.settings.CropMode = true
	s.touch()
}

// CancelCrop leaves crop mode without changing the crop.
func (s *Session) CancelCrop() {
	if s.leaveCropMode() {
		s.touch()
	}
}

func (s *Session) leaveCropMode() bool {
	s.settings.CropMode = false
	img := s.Active()
	if img == nil || !img.cropEditor.Active() {
		return false
	}
	img.cropEditor.Cancel()
	return true
}

// ApplyCrop leaves crop mode keeping the draft. The transform is fitted to
// the new crop so that it lands centered on the surface. A draft covering
// the whole unlocked image clears the crop.
func (s *Session) ApplyCrop() {
	img := s.Active()
	if img == nil {
		return
	}
	c, ok := img.cropEditor.Apply()
	if !ok {
		return
	}
	s.settings.CropMode = false
	if c.IsFull() && !c.AspectLock {
		img.Crop = nil
	} else {
		img.Crop = &c
	}
	s.fit(img, false)
	img.Edited = true
	s.touch()
	s.logger.Debug().Str("image", img.Asset.ID).Stringer("crop", c).Msg("applied crop")
}

// CropDraft returns the crop being edited.
func (s *Session) CropDraft() (crop.State, bool) {
	img := s.Active()
	if img == nil {
		return crop.State{}, false
	}
	return img.cropEditor.Draft()
}

func (s *Session) updateDraft(fn func(c crop.State, imageAspect float64) crop.State) {
	img := s.Active()
	if img == nil {
		return
	}
	aspect := img.Asset.Size().Aspect()
	if img.cropEditor.Update(func(c crop.State) crop.State { return fn(c, aspect) }) {
		s.touch()
	}
}

// viewTransform is where img is drawn on the preview. While the crop editor
// is open the whole image is fitted to the surface, so that the area outside
// an applied crop can be brought back. The image transform itself is left
// alone and is used again once the editor closes.
func (s *Session) viewTransform(img *ImageState) transform.State {
	if img.cropEditor.Active() {
		return transform.Initial(s.surfaceFor(img), img.Asset.Size(), nil)
	}
	return img.Transform
}

// displayed returns the on-screen size of the whole active image in preview
// pixels, used to turn drag deltas into normalized ones.
func (s *Session) displayed(img *ImageState) geom.Size {
	return img.Asset.Size().Scale(s.viewTransform(img).Scale)
}

func (s *Session) normalize(img *ImageState, dx, dy float64) (float64, float64) {
	d := s.displayed(img)
	if !d.Valid() {
		return 0, 0
	}
	return dx / d.Width, dy / d.Height
}

// MoveCrop drags the crop box by a delta in preview pixels.
func (s *Session) MoveCrop(dx, dy float64) {
	img := s.Active()
	if img == nil {
		return
	}
	nx, ny := s.normalize(img, dx, dy)
	s.updateDraft(func(c crop.State, _ float64) crop.State {
		return crop.Move(c, nx, ny)
	})
}

// ResizeCrop drags handle h by a delta in preview pixels.
func (s *Session) ResizeCrop(h crop.Handle, dx, dy float64) {
	img := s.Active()
	if img == nil {
		return
	}
	nx, ny := s.normalize(img, dx, dy)
	s.updateDraft(func(c crop.State, aspect float64) crop.State {
		return crop.Resize(c, h, nx, ny, aspect)
	})
}

// SetCropAspect applies an aspect preset to the draft.
func (s *Session) SetCropAspect(a crop.Aspect) {
	s.updateDraft(func(c crop.State, aspect float64) crop.State {
		return crop.ApplyAspect(c, a, aspect)
	})
}

// SetCropLock turns the aspect lock of the draft on or off.
func (s *Session) SetCropLock(locked bool) {
	s.updateDraft(func(c crop.State, aspect float64) crop.State {
		if locked {
			return crop.Lock(c, aspect)
		}
		return crop.Unlock(c)
	})
}

// Overlay is the crop box in preview pixels, for drawing handles.
type Overlay struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropOverlay maps the draft onto the preview surface.
func (s *Session) CropOverlay() (Overlay, bool) {
	img := s.Active()
	if img == nil {
		return Overlay{}, false
	}
	c, ok := img.cropEditor.Draft()
	if !ok {
		return Overlay{}, false
	}
	surface := s.surfaceFor(img)
	t := s.viewTransform(img)
	d := img.Asset.Size().Scale(t.Scale)
	left := surface.Width/2 + t.X - d.Width/2
	top := surface.Height/2 + t.Y - d.Height/2
	return Overlay{
		X:      left + c.X*d.Width,
		Y:      top + c.Y*d.Height,
		Width:  c.Width * d.Width,
		Height: c.Height * d.Height,
	}, true
}

package editor

import (
	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/render"
	"framer/internal/transform"
)

// ImageView is the JSON form of a queued image.
type ImageView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Edited bool   `json:"edited"`
	Active bool   `json:"active"`
}

// FilterView is the JSON form of a filter state.
type FilterView struct {
	ID        string  `json:"id"`
	Intensity float64 `json:"intensity"`
}

// View is the JSON form of the whole session, for UIs.
type View struct {
	Revision     uint64           `json:"revision"`
	Images       []ImageView      `json:"images"`
	Settings     Settings         `json:"settings"`
	Background   string           `json:"background"`
	Ratio        float64          `json:"ratio"`
	Surface      geom.Size        `json:"surface"`
	Transform    *transform.State `json:"transform,omitempty"`
	ScalePercent float64          `json:"scale_percent"`
	Crop         *crop.State      `json:"crop,omitempty"`
	CropDraft    *crop.State      `json:"crop_draft,omitempty"`
	CropOverlay  *Overlay         `json:"crop_overlay,omitempty"`
	Filter       *FilterView      `json:"filter,omitempty"`
}

// View describes the session.
func (s *Session) View() View {
	v := View{
		Revision:   s.revision,
		Images:     make([]ImageView, 0, len(s.images)),
		Settings:   s.settings,
		Background: render.FormatColor(s.settings.Background),
		Ratio:      s.Ratio(),
		Surface:    s.Surface(),
	}
	for i, img := range s.images {
		b := img.Asset.Image.Bounds()
		v.Images = append(v.Images, ImageView{
			ID:     img.Asset.ID,
			Name:   img.Asset.Name,
			Width:  b.Dx(),
			Height: b.Dy(),
			Edited: img.Edited,
			Active: i == s.active,
		})
	}

	img := s.Active()
	if img == nil {
		return v
	}
	t := img.Transform
	v.Transform = &t
	v.ScalePercent = s.ScalePercent()
	if img.Crop != nil {
		c := *img.Crop
		v.Crop = &c
	}
	if d, ok := img.cropEditor.Draft(); ok {
		v.CropDraft = &d
	}
	if o, ok := s.CropOverlay(); ok {
		v.CropOverlay = &o
	}
	if f := img.Filter; f != nil {
		v.Filter = &FilterView{ID: f.ID, Intensity: f.Intensity}
	}
	return v
}

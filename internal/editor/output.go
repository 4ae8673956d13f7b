package editor

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/render"
	"framer/internal/transform"
)

// Snapshot copies the active image and the settings.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Settings: s.settings,
		Surface:  s.Surface(),
		Ratio:    s.Ratio(),
	}
	if img := s.Active(); img != nil {
		cp := *img
		if img.Crop != nil {
			c := *img.Crop
			cp.Crop = &c
		}
		if img.Filter != nil {
			f := *img.Filter
			cp.Filter = &f
		}
		snap.Image = &cp
	}
	return snap
}

// scene builds what Render draws for snap with transform t. In crop mode the
// whole image is shown so the crop box can be edited over it.
func (snap Snapshot) scene(t transform.State) render.Scene {
	sc := render.Scene{
		Background: snap.Settings.Background,
		Transform:  t,
	}
	img := snap.Image
	if img == nil {
		return sc
	}
	sc.Image = img.Asset.Image
	if !img.cropEditor.Active() {
		sc.Crop = img.Crop
	}
	if f := img.Filter; f != nil && f.Graded() != nil {
		sc.Graded = f.Graded()
		sc.Intensity = f.Intensity
	}
	return sc
}

// RenderPreview draws the current frame into dst, which should have the size
// of Surface.
func (s *Session) RenderPreview(dst draw.Image) {
	var t transform.State
	if img := s.Active(); img != nil {
		t = s.viewTransform(img)
	}
	render.Render(dst, s.Snapshot().scene(t))
}

// Preview allocates a surface of the preview size and draws into it.
func (s *Session) Preview() *image.RGBA {
	surface := s.Surface()
	dst := render.NewSurface(int(surface.Width), int(surface.Height))
	s.RenderPreview(dst)
	return dst
}

// ExportResult describes an encoded export.
type ExportResult struct {
	Filename    string        `json:"filename"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Format      render.Format `json:"format"`
	ContentType string        `json:"content_type"`
}

// Export renders the active image at export resolution and encodes it to w.
// Without an image the background alone is exported at the default width.
func (s *Session) Export(ctx context.Context, w io.Writer) (ExportResult, error) {
	return s.Snapshot().Export(s.logger.WithContext(ctx), w)
}

// Export encodes snap at export resolution. A snapshot does not share mutable
// state with its session, so it can be exported without holding the session.
func (snap Snapshot) Export(ctx context.Context, w io.Writer) (ExportResult, error) {
	start := time.Now()
	img, target := snap.ExportImage()

	name := ""
	if snap.Image != nil {
		name = snap.Image.Asset.Name
	}
	res := ExportResult{
		Filename:    render.SuggestedFilename(name, snap.Settings.Format),
		Width:       target.Width,
		Height:      target.Height,
		Format:      snap.Settings.Format,
		ContentType: snap.Settings.Format.ContentType(),
	}
	if err := render.Encode(w, img, snap.Settings.Format, snap.Settings.Quality); err != nil {
		return ExportResult{}, fmt.Errorf("failed to export %s: %w", res.Filename, err)
	}

	log.Ctx(ctx).Info().
		Str("filename", res.Filename).
		Int("width", res.Width).
		Int("height", res.Height).
		Float64("scale_factor", target.ScaleFactor).
		Dur("took", time.Since(start)).
		Msg("exported image")
	return res, nil
}

// ExportImage renders snap at export resolution.
func (snap Snapshot) ExportImage() (*image.RGBA, render.Target) {
	var (
		t         transform.State
		effective geom.Size
	)
	surface := snap.Surface
	if img := snap.Image; img != nil {
		t = img.Transform
		effective = crop.EffectiveDimensions(img.Asset.Size(), img.Crop)
		if !surface.Valid() {
			// never previewed: frame it as a fresh import on the export surface
			w := float64(max(int(effective.Width+0.5), 1))
			surface = geom.Sz(w, w/geom.Clamp(snap.Ratio, 1e-6, 1e6))
			t = transform.Initial(surface, img.Asset.Size(), img.Crop)
		}
	}
	target := render.MapExport(surface, t, effective, snap.Ratio)
	dst := render.NewSurface(target.Width, target.Height)

	sc := snap.scene(target.Transform)
	if snap.Image != nil {
		sc.Crop = snap.Image.Crop
	}
	render.Render(dst, sc)
	return dst, target
}

package editor

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"framer/internal/geom"
	"framer/internal/lut"
)

// LUTSource resolves filter ids to tables.
type LUTSource interface {
	Fetch(ctx context.Context, id string) (*lut.LUT, error)
}

// SelectFilter grades the active image with l under the given filter id.
// Grading happens here, once; later intensity changes reuse the result.
// Selecting the filter already in place does nothing.
func (s *Session) SelectFilter(ctx context.Context, id string, l *lut.LUT) {
	img := s.Active()
	if img == nil || l == nil {
		return
	}
	intensity := 1.0
	if f := img.Filter; f != nil {
		if f.ID == id && f.LUT == l {
			return
		}
		intensity = f.Intensity
	}

	start := time.Now()
	f := &FilterState{ID: id, LUT: l, Intensity: intensity}
	f.ensureGraded(img.Asset)
	img.Filter = f
	s.touch()
	log.Ctx(ctx).Debug().
		Str("image", img.Asset.ID).
		Str("filter", id).
		Dur("took", time.Since(start)).
		Msg("graded image")
}

// ClearFilter removes the color grade of the active image.
func (s *Session) ClearFilter() {
	img := s.Active()
	if img == nil || img.Filter == nil {
		return
	}
	img.Filter = nil
	s.touch()
}

// SetIntensity sets the blend between the source and the graded raster,
// clamped to [0, 1]. It never grades again.
func (s *Session) SetIntensity(v float64) {
	img := s.Active()
	if img == nil || img.Filter == nil {
		return
	}
	if !geom.Finite(v) {
		v = 0
	}
	img.Filter.Intensity = geom.Clamp(v, 0, 1)
	s.touch()
}

// FilteredSource returns the active image at its current grade, without any
// framing. It is nil when there is no active image.
func (s *Session) FilteredSource() image.Image {
	img := s.Active()
	if img == nil {
		return nil
	}
	f := img.Filter
	if f == nil || f.Graded() == nil {
		return img.Asset.Image
	}
	switch {
	case f.Intensity >= 1:
		return f.Graded()
	case f.Intensity <= 0:
		return img.Asset.Image
	}
	return lut.Blend(imaging.Clone(img.Asset.Image), f.Graded(), f.Intensity)
}

// ThumbnailSize is the edge of filter preview thumbnails.
const ThumbnailSize = 80

type thumbKey struct {
	image, filter string
}

// Thumbnails renders filter previews: a square center crop of an image,
// graded at full intensity. Results are cached per image and filter. It is
// safe for concurrent use.
type Thumbnails struct {
	Source LUTSource
	Size   int

	mu    sync.Mutex
	cache map[thumbKey]*image.NRGBA
}

// NewThumbnails creates a thumbnail cache over src.
func NewThumbnails(src LUTSource) *Thumbnails {
	return &Thumbnails{Source: src, Size: ThumbnailSize, cache: make(map[thumbKey]*image.NRGBA)}
}

// Thumbnail renders one preview of a with the given filter.
func Thumbnail(a *Asset, l *lut.LUT, size int) *image.NRGBA {
	b := a.Image.Bounds()
	side := min(b.Dx(), b.Dy())
	square := imaging.CropCenter(a.Image, side, side)
	small := resize.Resize(uint(size), uint(size), square, resize.Lanczos3)
	if l == nil {
		return imaging.Clone(small)
	}
	return l.Grade(small)
}

// Get returns the thumbnails of a for each filter id, rendering the missing
// ones in parallel. A filter that fails to load fails the whole call.
func (t *Thumbnails) Get(ctx context.Context, a *Asset, ids []string) (map[string]*image.NRGBA, error) {
	out := make(map[string]*image.NRGBA, len(ids))
	var missing []string

	t.mu.Lock()
	for _, id := range ids {
		if img, ok := t.cache[thumbKey{a.ID, id}]; ok {
			out[id] = img
		} else {
			missing = append(missing, id)
		}
	}
	t.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}

	type result struct {
		id  string
		img *image.NRGBA
	}
	p := pool.NewWithResults[result]().WithErrors().WithContext(ctx)
	for _, id := range missing {
		id := id
		p.Go(func(ctx context.Context) (result, error) {
			l, err := t.Source.Fetch(ctx, id)
			if err != nil {
				return result{}, fmt.Errorf("failed to fetch filter %q: %w", id, err)
			}
			return result{id: id, img: Thumbnail(a, l, t.Size)}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range results {
		t.cache[thumbKey{a.ID, r.id}] = r.img
		out[r.id] = r.img
	}
	return out, nil
}

// Forget drops the cached thumbnails of an image.
func (t *Thumbnails) Forget(imageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.cache {
		if k.image == imageID {
			delete(t.cache, k)
		}
	}
}

// ForgetFilter drops the cached thumbnails of a filter, for when its table is
// replaced.
func (t *Thumbnails) ForgetFilter(filterID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.cache {
		if k.filter == filterID {
			delete(t.cache, k)
		}
	}
}

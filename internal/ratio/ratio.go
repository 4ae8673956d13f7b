// Package ratio resolves the output aspect ratio of the canvas.
package ratio

import (
	"fmt"

	"framer/internal/crop"
	"framer/internal/geom"
)

// ID names a canvas ratio: a preset, Original or Custom.
type ID string

const (
	Original ID = "original"
	Custom   ID = "custom"

	Square    ID = "1:1"
	Portrait  ID = "4:5"
	Landscape ID = "5:4"
	Classic   ID = "4:3"
	Classic34 ID = "3:4"
	Photo     ID = "3:2"
	Photo23   ID = "2:3"
	Wide      ID = "16:9"
	Story     ID = "9:16"
	Cinema    ID = "21:9"
)

// IDs lists every ratio in menu order.
var IDs = []ID{Original, Square, Portrait, Landscape, Classic, Classic34, Photo, Photo23, Wide, Story, Cinema, Custom}

// Parse validates a ratio identifier.
func Parse(s string) (ID, error) {
	for _, id := range IDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown ratio %q", s)
}

// preset returns the width/height value of a preset ratio.
func preset(id ID) (float64, bool) {
	switch id {
	case Square:
		return 1, true
	case Portrait:
		return 4.0 / 5.0, true
	case Landscape:
		return 5.0 / 4.0, true
	case Classic:
		return 4.0 / 3.0, true
	case Classic34:
		return 3.0 / 4.0, true
	case Photo:
		return 3.0 / 2.0, true
	case Photo23:
		return 2.0 / 3.0, true
	case Wide:
		return 16.0 / 9.0, true
	case Story:
		return 9.0 / 16.0, true
	case Cinema:
		return 21.0 / 9.0, true
	default:
		return 0, false
	}
}

// Options carries the inputs a ratio may depend on.
type Options struct {
	// Custom is used by the Custom ratio.
	Custom geom.Size
	// Image is the native size of the image, zero when there is none.
	Image geom.Size
	// Crop is the applied crop, if any.
	Crop *crop.State
}

// Resolve returns the width/height ratio for id. It never returns zero or NaN:
// any degenerate input falls back to 1.
func Resolve(id ID, opts Options) float64 {
	switch id {
	case Original:
		if !opts.Image.Valid() {
			return 1
		}
		return crop.EffectiveDimensions(opts.Image, opts.Crop).Aspect()
	case Custom:
		return opts.Custom.Aspect()
	}
	if v, ok := preset(id); ok {
		return v
	}
	return 1
}

// FitBox returns the largest size of the given ratio that fits in container.
func FitBox(container geom.Size, r float64) geom.Size {
	if !container.Valid() {
		return geom.Size{}
	}
	if !geom.Positive(r) {
		r = 1
	}
	if container.Width/container.Height > r {
		return geom.Size{Width: container.Height * r, Height: container.Height}
	}
	return geom.Size{Width: container.Width, Height: container.Width / r}
}

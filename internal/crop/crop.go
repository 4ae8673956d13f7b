// Package crop implements the non-destructive crop rectangle: moving,
// resizing from handles with or without an aspect lock, clamping, and the
// pixel-space queries derived from it.
//
// A crop is stored in normalized coordinates: X and Width are fractions of the
// image width, Y and Height fractions of the image height. Because the two axes
// are normalized independently, a pixel aspect has to be divided by the image
// aspect before it can be applied to the rectangle.
package crop

import (
	"fmt"
	"image"
	"math"

	"framer/internal/geom"
)

// MinSize is the smallest normalized width or height a crop may have.
const MinSize = 0.05

// State is a crop rectangle with a top-left origin.
type State struct {
	// X is the left edge, relative to the image width (0.0 to 1.0).
	X float64 `json:"x"`
	// Y is the top edge, relative to the image height (0.0 to 1.0).
	Y float64 `json:"y"`
	// Width is relative to the image width.
	Width float64 `json:"width"`
	// Height is relative to the image height.
	Height float64 `json:"height"`
	// AspectLock keeps the pixel aspect at LockedAspect while resizing.
	AspectLock bool `json:"aspect_lock"`
	// LockedAspect is the target pixel aspect (width/height). Zero means none.
	LockedAspect float64 `json:"locked_aspect,omitempty"`
}

// Full returns a crop covering the whole image.
func Full() State {
	return State{Width: 1, Height: 1}
}

func (s State) String() string {
	return fmt.Sprintf("crop(x=%.3f,y=%.3f,w=%.3f,h=%.3f,lock=%t)", s.X, s.Y, s.Width, s.Height, s.AspectLock)
}

// IsFull reports whether the crop covers the whole image.
func (s State) IsFull() bool {
	return s.X == 0 && s.Y == 0 && s.Width == 1 && s.Height == 1
}

// NormalizedAspect converts a pixel aspect into the width/height ratio of the
// normalized rectangle for an image of the given aspect.
func NormalizedAspect(pixelAspect, imageAspect float64) float64 {
	if !geom.Positive(pixelAspect) || !geom.Positive(imageAspect) {
		return 1
	}
	return pixelAspect / imageAspect
}

// PixelAspect returns the aspect of the crop in image pixels.
func (s State) PixelAspect(imageAspect float64) float64 {
	if !geom.Positive(s.Width) || !geom.Positive(s.Height) {
		return 1
	}
	return s.Width / s.Height * imageAspect
}

// Lock turns on the aspect lock, capturing the current pixel aspect.
func Lock(s State, imageAspect float64) State {
	s.AspectLock = true
	s.LockedAspect = s.PixelAspect(imageAspect)
	return s
}

// Unlock turns off the aspect lock.
func Unlock(s State) State {
	s.AspectLock = false
	s.LockedAspect = 0
	return s
}

// Clamp restores the crop invariants. It is always the last step of an edit.
//
// With an aspect lock both dimensions are scaled by one factor so that they
// land in [MinSize, 1]; when both bounds cannot hold the upper one wins.
// Without a lock each axis is clamped on its own. The position is clamped
// after the size.
func Clamp(s State) State {
	if !geom.Positive(s.Width) || !geom.Positive(s.Height) {
		s.Width, s.Height = MinSize, MinSize
	}

	if s.AspectLock {
		lo := math.Max(MinSize/s.Width, MinSize/s.Height)
		hi := math.Min(1/s.Width, 1/s.Height)
		f := 1.0
		if f < lo {
			f = lo
		}
		if f > hi {
			f = hi
		}
		if f != 1 {
			s.Width *= f
			s.Height *= f
		}
		// rounding can leave the larger side a hair above 1
		s.Width = math.Min(s.Width, 1)
		s.Height = math.Min(s.Height, 1)
	} else {
		s.Width = geom.Clamp(s.Width, MinSize, 1)
		s.Height = geom.Clamp(s.Height, MinSize, 1)
	}

	if !geom.Finite(s.X) {
		s.X = 0
	}
	if !geom.Finite(s.Y) {
		s.Y = 0
	}
	s.X = geom.Clamp(s.X, 0, 1-s.Width)
	s.Y = geom.Clamp(s.Y, 0, 1-s.Height)
	return s
}

// Move translates the crop by a normalized delta.
func Move(s State, dx, dy float64) State {
	s.X += dx
	s.Y += dy
	return Clamp(s)
}

// FromAspect returns a centered crop of the given pixel aspect covering as much
// of the image as possible, locked to that aspect.
func FromAspect(imageAspect, target float64) State {
	if !geom.Positive(imageAspect) || !geom.Positive(target) {
		return Full()
	}
	s := State{AspectLock: true, LockedAspect: target}
	if target > imageAspect {
		s.Width = 1
		s.Height = imageAspect / target
	} else {
		s.Height = 1
		s.Width = target / imageAspect
	}
	s.X = (1 - s.Width) / 2
	s.Y = (1 - s.Height) / 2
	return Clamp(s)
}

// EffectiveDimensions returns the size in pixels of the visible part of an
// image: the native size, or the cropped area when a crop is present.
func EffectiveDimensions(native geom.Size, c *State) geom.Size {
	if c == nil {
		return native
	}
	return geom.Size{Width: native.Width * c.Width, Height: native.Height * c.Height}
}

// CenterOffset returns the offset in image pixels from the image center to the
// center of the crop. It is zero without a crop.
func CenterOffset(native geom.Size, c *State) geom.Vec {
	if c == nil {
		return geom.Vec{}
	}
	return geom.Vec{
		X: (c.X + c.Width/2 - 0.5) * native.Width,
		Y: (c.Y + c.Height/2 - 0.5) * native.Height,
	}
}

// PixelRect maps the crop onto an image of the given pixel bounds.
func PixelRect(bounds image.Rectangle, c State) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		int(math.Round(c.X*w)),
		int(math.Round(c.Y*h)),
		int(math.Round((c.X+c.Width)*w)),
		int(math.Round((c.Y+c.Height)*h)),
	)
	return r.Add(bounds.Min).Intersect(bounds)
}

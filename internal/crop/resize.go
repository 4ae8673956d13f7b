package crop

import (
	"fmt"
	"math"
)

// Handle identifies one of the eight resize handles of the crop box.
type Handle int

const (
	HandleN Handle = iota
	HandleS
	HandleE
	HandleW
	HandleNE
	HandleNW
	HandleSE
	HandleSW
)

var handleNames = [...]string{"n", "s", "e", "w", "ne", "nw", "se", "sw"}

func (h Handle) String() string {
	if h < 0 || int(h) >= len(handleNames) {
		return fmt.Sprintf("Handle(%d)", int(h))
	}
	return handleNames[h]
}

// ParseHandle parses a compass handle name such as "se".
func ParseHandle(s string) (Handle, error) {
	for i, name := range handleNames {
		if name == s {
			return Handle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown crop handle %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(b []byte) error {
	v, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h Handle) isCorner() bool {
	return h >= HandleNE
}

// movesLeft and friends report which edges a handle drags.
func (h Handle) movesLeft() bool   { return h == HandleW || h == HandleNW || h == HandleSW }
func (h Handle) movesRight() bool  { return h == HandleE || h == HandleNE || h == HandleSE }
func (h Handle) movesTop() bool    { return h == HandleN || h == HandleNE || h == HandleNW }
func (h Handle) movesBottom() bool { return h == HandleS || h == HandleSE || h == HandleSW }

// Resize drags handle h by the normalized delta (dx, dy). imageAspect is the
// native width/height of the image and is only used by locked crops.
func Resize(s State, h Handle, dx, dy, imageAspect float64) State {
	if s.AspectLock && s.LockedAspect > 0 {
		return Clamp(resizeLocked(s, h, dx, dy, NormalizedAspect(s.LockedAspect, imageAspect)))
	}
	return Clamp(resizeFree(s, h, dx, dy))
}

func resizeFree(s State, h Handle, dx, dy float64) State {
	left, top := s.X, s.Y
	right, bottom := s.X+s.Width, s.Y+s.Height

	if h.movesLeft() {
		left = math.Max(0, math.Min(left+dx, right-MinSize))
	}
	if h.movesRight() {
		right = math.Min(1, math.Max(right+dx, left+MinSize))
	}
	if h.movesTop() {
		top = math.Max(0, math.Min(top+dy, bottom-MinSize))
	}
	if h.movesBottom() {
		bottom = math.Min(1, math.Max(bottom+dy, top+MinSize))
	}

	s.X, s.Y = left, top
	s.Width, s.Height = right-left, bottom-top
	return s
}

// resizeLocked keeps Width/Height == aspect.
func resizeLocked(s State, h Handle, dx, dy, aspect float64) State {
	if h.isCorner() {
		return resizeLockedCorner(s, h, dx, dy, aspect)
	}

	cx := s.X + s.Width/2
	cy := s.Y + s.Height/2
	right := s.X + s.Width
	bottom := s.Y + s.Height

	switch h {
	case HandleE, HandleW:
		w := s.Width + dx
		if h == HandleW {
			w = s.Width - dx
		}
		s.Width, s.Height = positive(w, w/aspect, aspect)
		if h == HandleW {
			s.X = right - s.Width
		}
		s.Y = cy - s.Height/2
	case HandleN, HandleS:
		ht := s.Height + dy
		if h == HandleN {
			ht = s.Height - dy
		}
		s.Width, s.Height = positive(ht*aspect, ht, aspect)
		if h == HandleN {
			s.Y = bottom - s.Height
		}
		s.X = cx - s.Width/2
	}
	return s
}

// resizeLockedCorner computes one candidate size per axis and keeps the
// smaller one, so the box never overshoots the cursor. The opposite corner
// stays put.
func resizeLockedCorner(s State, h Handle, dx, dy, aspect float64) State {
	w := s.Width + dx
	if h.movesLeft() {
		w = s.Width - dx
	}
	ht := s.Height + dy
	if h.movesTop() {
		ht = s.Height - dy
	}

	// candidate driven by the horizontal delta vs the vertical one
	wByX, hByX := w, w/aspect
	wByY, hByY := ht*aspect, ht
	if wByX <= wByY {
		w, ht = wByX, hByX
	} else {
		w, ht = wByY, hByY
	}
	w, ht = positive(w, ht, aspect)

	anchorX := s.X
	if h.movesLeft() {
		anchorX = s.X + s.Width
	}
	anchorY := s.Y
	if h.movesTop() {
		anchorY = s.Y + s.Height
	}

	// room available from the anchor
	roomW := 1 - anchorX
	if h.movesLeft() {
		roomW = anchorX
	}
	roomH := 1 - anchorY
	if h.movesTop() {
		roomH = anchorY
	}
	if w > roomW && roomW > 0 {
		f := roomW / w
		w, ht = w*f, ht*f
	}
	if ht > roomH && roomH > 0 {
		f := roomH / ht
		w, ht = w*f, ht*f
	}

	s.Width, s.Height = w, ht
	s.X, s.Y = anchorX, anchorY
	if h.movesLeft() {
		s.X = anchorX - w
	}
	if h.movesTop() {
		s.Y = anchorY - ht
	}
	return s
}

// positive replaces a collapsed or inverted size with the smallest box of the
// given aspect; Clamp grows it back to MinSize.
func positive(w, h, aspect float64) (float64, float64) {
	if w > 0 && h > 0 {
		return w, h
	}
	return MinSize * aspect, MinSize
}

// Package lut loads 3D color lookup tables and grades images with them.
//
// Tables are read from Adobe/Resolve .cube files or generated from a color
// function. Lookups use trilinear interpolation. Grading an image produces the
// fully graded raster once; intensity changes afterwards are a linear blend
// between the source and that raster, see [Blend].
package lut

import (
	"errors"
	"fmt"
	"math"
)

const (
	MinSize = 2
	MaxSize = 256
)

var (
	// ErrMissingSize is returned when a .cube file has no LUT_3D_SIZE line.
	ErrMissingSize = errors.New("missing LUT_3D_SIZE")
	// ErrUnsupportedSize is returned for sizes outside [MinSize, MaxSize].
	ErrUnsupportedSize = errors.New("unsupported LUT size")
	// ErrTableLength is returned when the number of entries is not size³.
	ErrTableLength = errors.New("LUT table length mismatch")
)

// Metadata holds the optional header fields of a LUT.
type Metadata struct {
	Title     string     `json:"title,omitempty"`
	DomainMin [3]float64 `json:"domain_min"`
	DomainMax [3]float64 `json:"domain_max"`
}

// LUT is a 3D lookup table. Table holds Size³ RGB triples normalized to
// [0, 1], red varying fastest:
//
//	Table[(b*Size*Size + g*Size + r)*3 + channel]
type LUT struct {
	Size     int
	Table    []float32
	Metadata Metadata
}

// New validates a table and wraps it in a LUT. A zero DomainMax in meta is
// replaced with the default domain [0, 1].
func New(size int, table []float32, meta Metadata) (*LUT, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
	}
	if want := size * size * size * 3; len(table) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrTableLength, len(table), want)
	}
	if meta.DomainMax == [3]float64{} {
		meta.DomainMax = [3]float64{1, 1, 1}
	}
	return &LUT{Size: size, Table: table, Metadata: meta}, nil
}

func (l *LUT) String() string {
	if l.Metadata.Title != "" {
		return fmt.Sprintf("lut(%q, %d³)", l.Metadata.Title, l.Size)
	}
	return fmt.Sprintf("lut(%d³)", l.Size)
}

func (l *LUT) at(r, g, b, ch int) float64 {
	return float64(l.Table[(b*l.Size*l.Size+g*l.Size+r)*3+ch])
}

// gridPos maps v from the domain of channel ch onto [0, Size-1].
func (l *LUT) gridPos(v float64, ch int) float64 {
	lo, hi := l.Metadata.DomainMin[ch], l.Metadata.DomainMax[ch]
	if hi > lo {
		v = (v - lo) / (hi - lo)
	}
	if !(v > 0) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v * float64(l.Size-1)
}

// Lookup maps an RGB triple in [0, 1] through the table using trilinear
// interpolation between the eight surrounding grid points. Interpolation runs
// along blue, then green, then red.
func (l *LUT) Lookup(r, g, b float64) (float64, float64, float64) {
	rp, gp, bp := l.gridPos(r, 0), l.gridPos(g, 1), l.gridPos(b, 2)

	r0, g0, b0 := int(math.Floor(rp)), int(math.Floor(gp)), int(math.Floor(bp))
	r1, g1, b1 := int(math.Ceil(rp)), int(math.Ceil(gp)), int(math.Ceil(bp))
	fr, fg, fb := rp-float64(r0), gp-float64(g0), bp-float64(b0)

	var out [3]float64
	for ch := range out {
		// along blue
		c00 := lerp(l.at(r0, g0, b0, ch), l.at(r0, g0, b1, ch), fb)
		c01 := lerp(l.at(r0, g1, b0, ch), l.at(r0, g1, b1, ch), fb)
		c10 := lerp(l.at(r1, g0, b0, ch), l.at(r1, g0, b1, ch), fb)
		c11 := lerp(l.at(r1, g1, b0, ch), l.at(r1, g1, b1, ch), fb)
		// along green
		c0 := lerp(c00, c01, fg)
		c1 := lerp(c10, c11, fg)
		// along red
		out[ch] = lerp(c0, c1, fr)
	}
	return out[0], out[1], out[2]
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

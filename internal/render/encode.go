package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"framer/internal/geom"
)

// Format is an export encoding.
type Format string

const (
	// PNG is lossless and keeps transparency.
	PNG Format = "png"
	// JPEG is lossy; transparent areas come out black.
	JPEG Format = "jpeg"
)

const (
	MinQuality     = 0.5
	MaxQuality     = 1.0
	DefaultQuality = 0.92

	// FilenameSuffix is appended to the original base name of exports.
	FilenameSuffix = "-framed"
)

// ParseFormat accepts png, jpeg or jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// ClampQuality limits q to [MinQuality, MaxQuality].
func ClampQuality(q float64) float64 {
	if !geom.Finite(q) {
		return DefaultQuality
	}
	return math.Max(MinQuality, math.Min(q, MaxQuality))
}

// Encode writes img in format f. quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, f Format, quality float64) error {
	var err error
	switch f {
	case JPEG:
		q := int(math.Round(ClampQuality(quality) * 100))
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
	default:
		err = imaging.Encode(w, img, imaging.PNG)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return nil
}

// SuggestedFilename returns the export name for an image imported as name.
func SuggestedFilename(name string, f Format) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return base + FilenameSuffix + f.Ext()
}

// ParseColor parses "transparent", "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "transparent" || s == "none" {
		return color.NRGBA{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.NRGBA) string {
	if c.A == 0 {
		return "transparent"
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

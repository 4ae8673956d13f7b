package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"framer/internal/editor"
)

// Decoder turns an encoded image into an editor asset.
type Decoder interface {
	Decode(ctx context.Context, name string, r io.Reader) (*editor.Asset, error)
}

// ImagingDecoder is an implementation of the Decoder interface
// using the disintegration/imaging library. EXIF orientation is applied.
type ImagingDecoder struct{}

// Decode reads an image from r and wraps it under a fresh id.
func (d *ImagingDecoder) Decode(ctx context.Context, name string, r io.Reader) (*editor.Asset, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", name, err)
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image %s has no pixels", name)
	}

	log.Ctx(ctx).Debug().
		Str("name", name).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Msg("decoded image")
	return editor.NewAsset(name, src), nil
}

// NewImagingDecoder creates a new instance of ImagingDecoder
func NewImagingDecoder() *ImagingDecoder {
	return &ImagingDecoder{}
}

func decodeFile(ctx context.Context, d Decoder, path string) (*editor.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()
	return d.Decode(ctx, filepath.Base(path), f)
}

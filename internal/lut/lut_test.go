package lut

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

// invertCube is a 2³ table mapping every color to its complement.
func invertCube(title string, scale float64) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "TITLE %q\n", title)
	}
	b.WriteString("# generated\nLUT_3D_SIZE 2\n\n")
	for bi := 0; bi < 2; bi++ {
		for gi := 0; gi < 2; gi++ {
			for ri := 0; ri < 2; ri++ {
				fmt.Fprintf(&b, "%g %g %g\n", float64(1-ri)*scale, float64(1-gi)*scale, float64(1-bi)*scale)
			}
		}
	}
	return b.String()
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 7 % 256),
				A: uint8(128 + x%128),
			})
		}
	}
	return img
}

func TestParseCube(t *testing.T) {
	l, err := ParseCubeBytes(context.Background(), []byte(invertCube("Invert", 1)))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if l.Size != 2 || len(l.Table) != 24 {
		t.Fatalf("size = %d, len = %d", l.Size, len(l.Table))
	}
	if l.Metadata.Title != "Invert" {
		t.Errorf("title = %q", l.Metadata.Title)
	}
	r, g, b := l.Lookup(0.25, 0.5, 1)
	if diff := cmp.Diff([]float64{0.75, 0.5, 0}, []float64{r, g, b}); diff != "" {
		t.Errorf("lookup (-want +got):\n%s", diff)
	}
}

func TestParseCube255(t *testing.T) {
	l, err := ParseCubeBytes(context.Background(), []byte(invertCube("", 255)))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for i, v := range l.Table {
		if v < 0 || v > 1 {
			t.Fatalf("table[%d] = %v not normalized", i, v)
		}
	}
	if r, _, _ := l.Lookup(0, 0, 0); r != 1 {
		t.Errorf("lookup black: r = %v, want 1", r)
	}
}

func TestParseCubeDomain(t *testing.T) {
	src := "LUT_3D_SIZE 2\nDOMAIN_MIN 0 0 0\nDOMAIN_MAX 2 2 2\n" + strings.SplitN(invertCube("", 1), "LUT_3D_SIZE 2\n", 2)[1]
	l, err := ParseCubeBytes(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if r, _, _ := l.Lookup(1, 0, 0); math.Abs(r-0.5) > 1e-6 {
		t.Errorf("domain not applied: r = %v, want 0.5", r)
	}
}

func TestParseCubeErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		src  string
		want error
	}{
		{"no size", "0 0 0\n1 1 1\n", ErrMissingSize},
		{"size too small", "LUT_3D_SIZE 1\n0 0 0\n", ErrUnsupportedSize},
		{"size too large", "LUT_3D_SIZE 512\n", ErrUnsupportedSize},
		{"short table", "LUT_3D_SIZE 2\n0 0 0\n1 1 1\n", ErrTableLength},
		{"malformed line", strings.Replace(invertCube("", 1), "1 1 0\n", "1 x 0\n", 1), ErrTableLength},
		{"two values", strings.Replace(invertCube("", 1), "1 1 0\n", "1 1\n", 1), ErrTableLength},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCubeBytes(context.Background(), []byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCubeHeaderOnlyAllocation(t *testing.T) {
	src := []byte("LUT_3D_SIZE 256\n0 0 0\n")

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := ParseCubeBytes(context.Background(), src)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrTableLength) {
		t.Fatalf("err = %v, want %v", err, ErrTableLength)
	}
	// A full 256³ table would be 192 MiB.
	if got := after.TotalAlloc - before.TotalAlloc; got > 8<<20 {
		t.Errorf("allocated %d bytes for a header-only table", got)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	src := testImage(64, 48)
	for _, size := range []int{2, 17, 33} {
		got := Identity(size).Grade(src)
		for i := range src.Pix {
			if d := int(got.Pix[i]) - int(src.Pix[i]); d < -1 || d > 1 {
				t.Fatalf("size %d: pix[%d] = %d, want %d", size, i, got.Pix[i], src.Pix[i])
			}
		}
	}
}

func TestGradeKeepsAlpha(t *testing.T) {
	src := testImage(16, 16)
	l, err := ParseCubeBytes(context.Background(), []byte(invertCube("", 1)))
	if err != nil {
		t.Fatal(err)
	}
	got := l.Grade(src)
	for i := 0; i < len(src.Pix); i += 4 {
		if got.Pix[i+3] != src.Pix[i+3] {
			t.Fatalf("alpha changed at %d", i/4)
		}
		if got.Pix[i] != 255-src.Pix[i] {
			t.Fatalf("red at %d = %d, want %d", i/4, got.Pix[i], 255-src.Pix[i])
		}
	}
}

func TestBlendBounds(t *testing.T) {
	src := testImage(32, 32)
	l, err := ParseCubeBytes(context.Background(), []byte(invertCube("", 1)))
	if err != nil {
		t.Fatal(err)
	}
	graded := l.Grade(src)

	for _, intensity := range []float64{-1, 0, 0.1, 0.5, 0.9, 1, 3, math.NaN()} {
		out := Blend(src, graded, intensity)
		for i := 0; i < len(out.Pix); i += 4 {
			for c := 0; c < 3; c++ {
				lo, hi := src.Pix[i+c], graded.Pix[i+c]
				if lo > hi {
					lo, hi = hi, lo
				}
				if v := out.Pix[i+c]; v < lo || v > hi {
					t.Fatalf("intensity %v: channel %d = %d outside [%d, %d]", intensity, c, v, lo, hi)
				}
			}
			if out.Pix[i+3] != src.Pix[i+3] {
				t.Fatalf("intensity %v: alpha changed", intensity)
			}
		}
	}

	if diff := cmp.Diff(src.Pix, Blend(src, graded, 0).Pix); diff != "" {
		t.Error("intensity 0 should reproduce the source")
	}
	if diff := cmp.Diff(graded.Pix, Blend(src, graded, 1).Pix); diff != "" {
		t.Error("intensity 1 should reproduce the graded raster")
	}
}

func TestGenerateRejectsSize(t *testing.T) {
	if _, err := Generate(1, "x", nil); !errors.Is(err, ErrUnsupportedSize) {
		t.Errorf("err = %v", err)
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"filters.yaml":     {Data: []byte("filters:\n  - id: negative\n    name: Negative\n    file: luts/invert.cube\n  - id: broken\n    file: luts/broken.cube\n  - id: missing\n    file: luts/missing.cube\n")},
		"luts/invert.cube": {Data: []byte(invertCube("Invert", 1))},
		"luts/broken.cube": {Data: []byte("LUT_3D_SIZE 2\n0 0 0\n")},
	}
	c, err := NewCatalog(ctx, fsys)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	var ids []string
	for _, f := range c.Filters() {
		ids = append(ids, f.ID)
	}
	want := []string{"identity", "mono", "noir", "warm", "cool", "fade", "vivid", "negative", "broken", "missing"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}

	l, err := c.Fetch(ctx, "negative")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if again, _ := c.Fetch(ctx, "negative"); again != l {
		t.Error("expected cached table")
	}
	if _, err := c.Fetch(ctx, "warm"); err != nil {
		t.Errorf("builtin fetch: %v", err)
	}
	if _, err := c.Fetch(ctx, "broken"); !errors.Is(err, ErrTableLength) {
		t.Errorf("broken: err = %v", err)
	}
	if _, err := c.Fetch(ctx, "missing"); err == nil {
		t.Error("missing: expected error")
	}
	if _, err := c.Fetch(ctx, "nope"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("unknown: err = %v", err)
	}

	c.Add("mine", "Mine", Identity(2))
	if _, err := c.Fetch(ctx, "mine"); err != nil {
		t.Errorf("added: %v", err)
	}
}

func TestCatalogScansDirectory(t *testing.T) {
	fsys := fstest.MapFS{
		"b.cube":   {Data: []byte(invertCube("", 1))},
		"a.cube":   {Data: []byte(invertCube("", 1))},
		"note.txt": {Data: []byte("hello")},
	}
	c, err := NewCatalog(context.Background(), fsys)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	fs := c.Filters()
	got := []string{fs[len(fs)-2].ID, fs[len(fs)-1].ID}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
}

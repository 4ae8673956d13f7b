package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"

	"framer/internal/crop"
	"framer/internal/geom"
	"framer/internal/transform"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / (w - 1)),
				G: uint8(y * 255 / (h - 1)),
				B: uint8(255 - (x+y)*255/(w+h-2)),
				A: 255,
			})
		}
	}
	return img
}

func at(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func near(a, b color.NRGBA, tol int) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) <= float64(tol) }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestRenderBackgroundOnly(t *testing.T) {
	dst := NewSurface(8, 4)
	Render(dst, Scene{Background: white})
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if got := at(dst, x, y); got != white {
				t.Fatalf("(%d,%d) = %v", x, y, got)
			}
		}
	}

	Render(dst, Scene{})
	if got := at(dst, 3, 3); got.A != 0 {
		t.Errorf("transparent background: %v", got)
	}
}

func TestRenderFitCentered(t *testing.T) {
	dst := NewSurface(200, 100)
	scale := transform.FitScale(geom.Sz(200, 100), geom.Sz(400, 400))
	Render(dst, Scene{
		Background: white,
		Image:      solid(400, 400, red),
		Transform:  transform.State{Scale: scale},
	})

	for _, tt := range []struct {
		x, y int
		want color.NRGBA
	}{
		{10, 50, white},
		{49, 50, white},
		{51, 1, red},
		{100, 50, red},
		{148, 98, red},
		{151, 50, white},
	} {
		if got := at(dst, tt.x, tt.y); !near(got, tt.want, 1) {
			t.Errorf("(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRenderCropClips(t *testing.T) {
	dst := NewSurface(100, 100)
	c := crop.State{X: 0.5, Width: 0.5, Height: 1}
	Render(dst, Scene{
		Background: white,
		Image:      solid(100, 100, red),
		Transform:  transform.State{Scale: 1},
		Crop:       &c,
	})
	if got := at(dst, 25, 50); got != white {
		t.Errorf("outside crop = %v, want background", got)
	}
	if got := at(dst, 75, 50); !near(got, red, 1) {
		t.Errorf("inside crop = %v, want red", got)
	}
}

func TestRenderIntensity(t *testing.T) {
	img, graded := solid(10, 10, red), solid(10, 10, blue)
	for _, tt := range []struct {
		intensity float64
		want      color.NRGBA
	}{
		{0, red},
		{1, blue},
		{0.5, color.NRGBA{128, 0, 128, 255}},
		{0.25, color.NRGBA{191, 0, 64, 255}},
	} {
		dst := NewSurface(10, 10)
		Render(dst, Scene{
			Image:     img,
			Graded:    graded,
			Intensity: tt.intensity,
			Transform: transform.State{Scale: 1},
		})
		if got := at(dst, 5, 5); !near(got, tt.want, 2) {
			t.Errorf("intensity %v: got %v, want %v", tt.intensity, got, tt.want)
		}
	}
}

func TestMapExport(t *testing.T) {
	got := MapExport(geom.Sz(500, 500), transform.State{X: 10, Y: -5, Scale: 0.25}, geom.Sz(3000, 2000), 1)
	want := Target{Width: 3000, Height: 3000, ScaleFactor: 6, Transform: transform.State{X: 60, Y: -30, Scale: 1.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	noImage := MapExport(geom.Size{}, transform.State{Scale: 1}, geom.Size{}, 16.0/9.0)
	if noImage.Width != DefaultExportWidth || noImage.Height != 1080 || noImage.ScaleFactor != 1 {
		t.Errorf("no image target = %+v", noImage)
	}
}

// The export is the preview at a higher resolution: scaled back down it must
// match what the preview drew.
func TestExportParity(t *testing.T) {
	img := gradient(800, 600)
	previewSize := geom.Sz(400, 300)
	previewT := transform.ApplyDelta(transform.Fitted(previewSize, geom.Sz(800, 600), nil), 10, -6)

	preview := NewSurface(400, 300)
	Render(preview, Scene{Background: white, Image: img, Transform: previewT})

	target := MapExport(previewSize, previewT, geom.Sz(800, 600), 800.0/600.0)
	if target.Width != 800 || target.Height != 600 {
		t.Fatalf("target = %dx%d", target.Width, target.Height)
	}
	export := NewSurface(target.Width, target.Height)
	Render(export, Scene{Background: white, Image: img, Transform: target.Transform})

	down := imaging.Resize(export, 400, 300, imaging.Box)
	var sum, worst float64
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			a, b := at(preview, x, y), at(down, x, y)
			for _, d := range []float64{
				math.Abs(float64(a.R) - float64(b.R)),
				math.Abs(float64(a.G) - float64(b.G)),
				math.Abs(float64(a.B) - float64(b.B)),
			} {
				sum += d
				worst = math.Max(worst, d)
			}
		}
	}
	if mean := sum / (400 * 300 * 3); mean > 1.5 {
		t.Errorf("mean difference %.3f too large", mean)
	}
	if worst > 16 {
		t.Errorf("worst difference %v too large", worst)
	}
}

func TestEncode(t *testing.T) {
	img := solid(4, 4, red)
	var buf bytes.Buffer
	if err := Encode(&buf, img, PNG, 0); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("decode png: %v", err)
	}

	buf.Reset()
	if err := Encode(&buf, img, JPEG, 0.1); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if cfg, format, err := image.DecodeConfig(&buf); err != nil || format != "jpeg" || cfg.Width != 4 {
		t.Fatalf("decode jpeg: %v %q %+v", err, format, cfg)
	}
}

func TestQualityAndNames(t *testing.T) {
	for _, tt := range []struct{ in, want float64 }{{0.1, 0.5}, {0.8, 0.8}, {2, 1}, {math.NaN(), DefaultQuality}} {
		if got := ClampQuality(tt.in); got != tt.want {
			t.Errorf("ClampQuality(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := SuggestedFilename("/tmp/holiday.photo.JPG", JPEG); got != "holiday.photo-framed.jpg" {
		t.Errorf("filename = %q", got)
	}
	if got := SuggestedFilename("", PNG); got != "image-framed.png" {
		t.Errorf("filename = %q", got)
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Error("expected error for gif")
	}
}

func TestParseColor(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want color.NRGBA
	}{
		{"transparent", color.NRGBA{}},
		{"#fff", white},
		{"#FF0000", red},
		{"#0000ff80", color.NRGBA{0, 0, 255, 128}},
	} {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if again, _ := ParseColor(FormatColor(got)); again != got {
			t.Errorf("round trip of %q = %v", tt.in, again)
		}
	}
	if _, err := ParseColor("#12"); err == nil {
		t.Error("expected error")
	}
}

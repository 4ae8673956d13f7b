package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"framer/internal/editor"
	"framer/internal/lut"
	"framer/internal/render"
)

type testServer struct {
	t   *testing.T
	app *fiber.App
}

func newTestServer(t *testing.T, rootDir string) *testServer {
	t.Helper()
	ctx := context.Background()
	catalog, err := lut.NewCatalog(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := NewWebApp(ctx, Config{
		RootDir:  rootDir,
		Settings: editor.DefaultSettings(),
		Filters:  catalog,
	})
	return &testServer{t: t, app: a.routes(ctx)}
}

func (s *testServer) do(req *http.Request) *http.Response {
	s.t.Helper()
	res, err := s.app.Test(req, -1)
	if err != nil {
		s.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	return res
}

func (s *testServer) json(method, target string, body any) *http.Response {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) upload(target, name string, data []byte, fields map[string]string) *http.Response {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			s.t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		s.t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		s.t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		s.t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func decodeState(t *testing.T, res *http.Response) stateResponse {
	t.Helper()
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("status %d: %s", res.StatusCode, b)
	}
	var st stateResponse
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	return st
}

func decodeImageConfig(t *testing.T, res *http.Response) image.Config {
	t.Helper()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	path := t.TempDir() + "/img.png"
	writeImage(t, path, w, h)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestWebEditingFlow(t *testing.T) {
	s := newTestServer(t, "")

	st := decodeState(t, s.json(http.MethodGet, "/api/state", nil))
	if len(st.Images) != 0 || st.FilterLoading {
		t.Fatalf("initial state = %+v", st)
	}

	res := s.json(http.MethodGet, "/api/preview.png", nil)
	if res.StatusCode != http.StatusConflict {
		t.Errorf("preview without size: status %d", res.StatusCode)
	}

	decodeState(t, s.json(http.MethodPut, "/api/preview-size", map[string]float64{"width": 400, "height": 300}))
	if res := s.json(http.MethodGet, "/api/source.png", nil); res.StatusCode != http.StatusConflict {
		t.Errorf("source without image: status %d", res.StatusCode)
	}

	st = decodeState(t, s.upload("/api/images", "pic.png", pngBytes(t, 200, 100), nil))
	if len(st.Images) != 1 || st.Images[0].Width != 200 || st.Transform == nil {
		t.Fatalf("after upload = %+v", st)
	}
	id := st.Images[0].ID

	st = decodeState(t, s.json(http.MethodPost, "/api/operations", map[string]any{
		"operations": []map[string]any{
			{"type": "ratio", "ratio": "1:1"},
			{"type": "filter", "id": "mono"},
			{"type": "intensity", "value": 0.4},
		},
	}))
	if st.Settings.Ratio != "1:1" || st.Filter == nil || st.Filter.ID != "mono" || st.Filter.Intensity != 0.4 {
		t.Errorf("after operations = %+v", st)
	}
	if st.Surface.Width != 300 || st.Surface.Height != 300 {
		t.Errorf("surface = %+v", st.Surface)
	}

	if cfg := decodeImageConfig(t, s.json(http.MethodGet, "/api/preview.png", nil)); cfg.Width != 300 || cfg.Height != 300 {
		t.Errorf("preview = %dx%d", cfg.Width, cfg.Height)
	}
	// graded at 0.4 but not framed
	if cfg := decodeImageConfig(t, s.json(http.MethodGet, "/api/source.png", nil)); cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("source = %dx%d", cfg.Width, cfg.Height)
	}
	if cfg := decodeImageConfig(t, s.json(http.MethodGet, "/api/filters/mono/thumbnail.png", nil)); cfg.Width != editor.ThumbnailSize {
		t.Errorf("thumbnail width = %d", cfg.Width)
	}
	if res := s.json(http.MethodGet, "/api/filters/nope/thumbnail.png", nil); res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown thumbnail: status %d", res.StatusCode)
	}

	res = s.json(http.MethodPost, "/api/export", nil)
	if got := res.Header.Get("Content-Disposition"); !strings.Contains(got, "pic-framed.png") {
		t.Errorf("content disposition = %q", got)
	}
	if cfg := decodeImageConfig(t, res); cfg.Width != 200 || cfg.Height != 200 {
		t.Errorf("export = %dx%d", cfg.Width, cfg.Height)
	}

	st = decodeState(t, s.json(http.MethodPost, "/api/operations", map[string]any{
		"operations": []map[string]any{{"type": "format", "format": "jpeg", "quality": 0.7}},
	}))
	if st.Settings.Format != render.JPEG || st.Settings.Quality != 0.7 {
		t.Errorf("export settings = %+v", st.Settings)
	}
	res = s.json(http.MethodPost, "/api/export", nil)
	if got := res.Header.Get("Content-Disposition"); !strings.Contains(got, "pic-framed.jpg") {
		t.Errorf("content disposition = %q", got)
	}
	if got := res.Header.Get(fiber.HeaderContentType); got != "image/jpeg" {
		t.Errorf("content type = %q", got)
	}
	res.Body.Close()

	res = s.json(http.MethodPost, "/api/operations", map[string]any{
		"operations": []map[string]any{{"type": "explode"}},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("bad operation: status %d", res.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Errorf("error body = %v, %v", body, err)
	}

	decodeState(t, s.json(http.MethodDelete, "/api/images/"+id, nil))
	if res := s.json(http.MethodDelete, "/api/images/"+id, nil); res.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status %d", res.StatusCode)
	}
}

func TestWebOpenFromRoot(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root+"/shots/one.png", 30, 20)
	s := newTestServer(t, root)

	res := s.json(http.MethodGet, "/api/ls", nil)
	var dir Directory
	if err := json.NewDecoder(res.Body).Decode(&dir); err != nil {
		t.Fatal(err)
	}
	if len(dir.Files) != 1 || dir.Files[0].Name != "shots/one.png" || dir.Files[0].URL == "" {
		t.Fatalf("ls = %+v", dir)
	}

	st := decodeState(t, s.json(http.MethodPost, "/api/images?file=shots/one.png", nil))
	if len(st.Images) != 1 || st.Images[0].Name != "one.png" {
		t.Errorf("images = %+v", st.Images)
	}

	for _, tt := range []struct {
		target string
		want   int
	}{
		{"/api/images?file=../escape.png", http.StatusBadRequest},
		{"/api/images?file=shots/nope.png", http.StatusNotFound},
		{"/api/images/unknown-id/select", http.StatusNotFound},
	} {
		if res := s.json(http.MethodPost, tt.target, nil); res.StatusCode != tt.want {
			t.Errorf("%s: status %d, want %d", tt.target, res.StatusCode, tt.want)
		}
	}
}

func TestWebUploadFilter(t *testing.T) {
	s := newTestServer(t, "")
	cube := "TITLE \"Swap\"\nLUT_3D_SIZE 2\n" +
		"0 0 0\n0 0 1\n0 1 0\n0 1 1\n1 0 0\n1 0 1\n1 1 0\n1 1 1\n"

	res := s.upload("/api/filters", "swap.cube", []byte(cube), nil)
	if res.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("upload: status %d: %s", res.StatusCode, b)
	}

	res = s.json(http.MethodGet, "/api/filters", nil)
	var list struct {
		Filters []lut.Filter `json:"filters"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	last := list.Filters[len(list.Filters)-1]
	if last.ID != "swap" || last.Name != "Swap" {
		t.Errorf("last filter = %+v", last)
	}

	res = s.upload("/api/filters", "bad.cube", []byte("0 0 0\n"), nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("bad cube: status %d", res.StatusCode)
	}
}

func decodePNG(t *testing.T, res *http.Response) image.Image {
	t.Helper()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	img, err := png.Decode(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestWebReplaceFilterRefreshesThumbnail(t *testing.T) {
	s := newTestServer(t, "")
	decodeState(t, s.json(http.MethodPut, "/api/preview-size", map[string]float64{"width": 300, "height": 300}))
	decodeState(t, s.upload("/api/images", "pic.png", pngBytes(t, 200, 100), nil))

	// red and blue swapped, then the identity under the same id
	swap := "LUT_3D_SIZE 2\n0 0 0\n0 0 1\n0 1 0\n0 1 1\n1 0 0\n1 0 1\n1 1 0\n1 1 1\n"
	identity := "LUT_3D_SIZE 2\n0 0 0\n1 0 0\n0 1 0\n1 1 0\n0 0 1\n1 0 1\n0 1 1\n1 1 1\n"
	fields := map[string]string{"id": "custom"}

	// the source pixel under the thumbnail center is about (100, 50, 128)
	if res := s.upload("/api/filters", "a.cube", []byte(swap), fields); res.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d", res.StatusCode)
	}
	thumb := decodePNG(t, s.json(http.MethodGet, "/api/filters/custom/thumbnail.png", nil))
	if _, _, b, _ := thumb.At(40, 40).RGBA(); b>>8 > 115 {
		t.Errorf("swapped thumbnail blue = %d", b>>8)
	}

	if res := s.upload("/api/filters", "b.cube", []byte(identity), fields); res.StatusCode != http.StatusCreated {
		t.Fatalf("replace: status %d", res.StatusCode)
	}
	thumb = decodePNG(t, s.json(http.MethodGet, "/api/filters/custom/thumbnail.png", nil))
	if _, _, b, _ := thumb.At(40, 40).RGBA(); b>>8 < 120 {
		t.Errorf("replaced thumbnail blue = %d, still the old table", b>>8)
	}
}

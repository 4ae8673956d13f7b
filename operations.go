package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"framer/internal/crop"
	"framer/internal/editor"
	"framer/internal/geom"
	"framer/internal/ratio"
	"framer/internal/render"
)

type Operations = []Operation

// Operation is one editing intent, tagged by its type on the wire:
//
//	{"type": "pan", "dx": 12, "dy": -4}
//	{"type": "crop_resize", "handle": "se", "dx": -40, "dy": 0}
//	{"type": "format", "format": "jpeg", "quality": 0.8}
//	{"type": "reset"}
type Operation struct {
	Type string
	body operationBody
}

type operationBody interface {
	apply(ctx context.Context, s *editor.Session, filters editor.LUTSource) error
}

type (
	PanOperation struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	ZoomOperation struct {
		Factor float64 `json:"factor"`
	}
	ScaleOperation struct {
		// Percent is relative to the fit scale, in [-100, 100].
		Percent float64 `json:"percent"`
	}
	RatioOperation struct {
		Ratio  string  `json:"ratio"`
		Width  float64 `json:"width,omitempty"`
		Height float64 `json:"height,omitempty"`
	}
	BackgroundOperation struct {
		Color string `json:"color"`
	}
	SnapOperation struct {
		Enabled bool `json:"enabled"`
	}
	CropMoveOperation struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	CropResizeOperation struct {
		Handle crop.Handle `json:"handle"`
		DX     float64     `json:"dx"`
		DY     float64     `json:"dy"`
	}
	CropAspectOperation struct {
		Aspect string `json:"aspect"`
	}
	CropLockOperation struct {
		Locked bool `json:"locked"`
	}
	FilterOperation struct {
		ID string `json:"id"`
	}
	IntensityOperation struct {
		Value float64 `json:"value"`
	}
	FormatOperation struct {
		Format string `json:"format"`
		// Quality is for JPEG. Zero keeps the current quality.
		Quality float64 `json:"quality,omitempty"`
	}
	// triggerOperation carries no arguments.
	triggerOperation struct {
		fn func(*editor.Session)
	}
)

var triggers = map[string]func(*editor.Session){
	"crop_enter":   (*editor.Session).EnterCrop,
	"crop_apply":   (*editor.Session).ApplyCrop,
	"crop_cancel":  (*editor.Session).CancelCrop,
	"filter_clear": (*editor.Session).ClearFilter,
	"reset":        (*editor.Session).Reset,
	"recenter":     (*editor.Session).Recenter,
	"fit":          (*editor.Session).AutoFit,
}

func newOperationBody(typ string) (operationBody, bool) {
	switch typ {
	case "pan":
		return &PanOperation{}, true
	case "zoom":
		return &ZoomOperation{}, true
	case "scale":
		return &ScaleOperation{}, true
	case "ratio":
		return &RatioOperation{}, true
	case "background":
		return &BackgroundOperation{}, true
	case "snap":
		return &SnapOperation{}, true
	case "crop_move":
		return &CropMoveOperation{}, true
	case "crop_resize":
		return &CropResizeOperation{}, true
	case "crop_aspect":
		return &CropAspectOperation{}, true
	case "crop_lock":
		return &CropLockOperation{}, true
	case "filter":
		return &FilterOperation{}, true
	case "intensity":
		return &IntensityOperation{}, true
	case "format":
		return &FormatOperation{}, true
	}
	if fn, ok := triggers[typ]; ok {
		return triggerOperation{fn: fn}, true
	}
	return nil, false
}

// NewOperation builds an operation of the given type from its arguments,
// which may be nil for triggers.
func NewOperation(typ string, args any) (Operation, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return Operation{}, fmt.Errorf("failed to marshal %s arguments: %w", typ, err)
	}
	var op Operation
	if err := op.decode(typ, data); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// unmarshal
func (o *Operation) UnmarshalJSON(data []byte) error {
	var op struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &op); err != nil {
		return fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return o.decode(op.Type, data)
}

func (o *Operation) decode(typ string, data []byte) error {
	body, ok := newOperationBody(typ)
	if !ok {
		return fmt.Errorf("unknown operation %q", typ)
	}
	if _, trigger := body.(triggerOperation); !trigger && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if err := json.Unmarshal(data, body); err != nil {
			return fmt.Errorf("failed to unmarshal %s operation: %w", typ, err)
		}
	}
	o.Type = typ
	o.body = body
	return nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if _, trigger := o.body.(triggerOperation); !trigger && o.body != nil {
		data, err := json.Marshal(o.body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = o.Type
	return json.Marshal(fields)
}

func (o Operation) String() string {
	return o.Type
}

// Apply runs the operation against s. Filter operations fetch their table
// from filters.
func (o Operation) Apply(ctx context.Context, s *editor.Session, filters editor.LUTSource) error {
	if o.body == nil {
		return fmt.Errorf("empty operation")
	}
	return o.body.apply(ctx, s, filters)
}

func (op *PanOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.Pan(op.DX, op.DY)
	return nil
}

func (op *ZoomOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	if !geom.Positive(op.Factor) {
		return fmt.Errorf("zoom factor must be positive, got %v", op.Factor)
	}
	s.Zoom(op.Factor)
	return nil
}

func (op *ScaleOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.SetScalePercent(op.Percent)
	return nil
}

func (op *RatioOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	id, err := ratio.Parse(op.Ratio)
	if err != nil {
		return err
	}
	if id == ratio.Custom && (op.Width != 0 || op.Height != 0) {
		size := geom.Sz(op.Width, op.Height)
		if !size.Valid() {
			return fmt.Errorf("custom ratio needs positive dimensions, got %vx%v", op.Width, op.Height)
		}
		s.SetCustomRatio(size)
		return nil
	}
	s.SetRatio(id)
	return nil
}

func (op *BackgroundOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	c, err := render.ParseColor(op.Color)
	if err != nil {
		return err
	}
	s.SetBackground(c)
	return nil
}

func (op *SnapOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.SetSnap(op.Enabled)
	return nil
}

func (op *CropMoveOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.MoveCrop(op.DX, op.DY)
	return nil
}

// A resize names its handle; there is no default edge to drag.
func (op *CropResizeOperation) UnmarshalJSON(data []byte) error {
	type plain CropResizeOperation
	var v struct {
		plain
		Handle *crop.Handle `json:"handle"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Handle == nil {
		return errors.New("missing handle")
	}
	*op = CropResizeOperation(v.plain)
	op.Handle = *v.Handle
	return nil
}

func (op *CropResizeOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.ResizeCrop(op.Handle, op.DX, op.DY)
	return nil
}

func (op *CropAspectOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	a, err := crop.ParseAspect(op.Aspect)
	if err != nil {
		return err
	}
	s.SetCropAspect(a)
	return nil
}

func (op *CropLockOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.SetCropLock(op.Locked)
	return nil
}

func (op *FilterOperation) apply(ctx context.Context, s *editor.Session, filters editor.LUTSource) error {
	if s.Active() == nil {
		return nil
	}
	if filters == nil {
		return fmt.Errorf("no filter catalog for %q", op.ID)
	}
	l, err := filters.Fetch(ctx, op.ID)
	if err != nil {
		return err
	}
	s.SelectFilter(ctx, op.ID, l)
	return nil
}

func (op *IntensityOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	s.SetIntensity(op.Value)
	return nil
}

func (op *FormatOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	f, err := render.ParseFormat(op.Format)
	if err != nil {
		return err
	}
	q := op.Quality
	if q == 0 {
		q = s.Settings().Quality
	}
	s.SetExportFormat(f, q)
	return nil
}

func (op triggerOperation) apply(_ context.Context, s *editor.Session, _ editor.LUTSource) error {
	op.fn(s)
	return nil
}

// ApplyOperations runs ops in order and stops at the first failure.
func ApplyOperations(ctx context.Context, s *editor.Session, filters editor.LUTSource, ops Operations) error {
	for i, op := range ops {
		if err := op.Apply(ctx, s, filters); err != nil {
			return fmt.Errorf("failed to apply operation %d (%s): %w", i, op.Type, err)
		}
	}
	return nil
}

// readOperations reads a JSONL script. Blank lines and lines starting with #
// are skipped.
func readOperations(r io.Reader) (Operations, error) {
	var ops Operations
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var op Operation
		if err := json.Unmarshal([]byte(text), &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}
	return ops, nil
}

func readOperationsFile(path string) (Operations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open operations file %s: %w", path, err)
	}
	defer f.Close()
	return readOperations(f)
}

// BatchExporter frames every input the same way: one session per image, the
// same operations, written to OutputDir.
type BatchExporter struct {
	OutputDir  string
	Settings   editor.Settings
	Filters    editor.LUTSource
	Decoder    Decoder
	Operations Operations
}

func (r BatchExporter) Exec(ctx context.Context, files []string) error {
	if len(files) == 0 {
		log.Ctx(ctx).Warn().Msg("no images to export")
		return nil
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", r.OutputDir, err)
	}
	for _, file := range files {
		file := file
		pooler.Go(func(ctx context.Context) error {
			if err := r.exportFile(ctx, file); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("filename", file).
					Msg("failed to export image")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("finished with errors")
		return err
	}

	return nil
}

func (r BatchExporter) exportFile(ctx context.Context, path string) error {
	log.Ctx(ctx).Info().Str("filename", path).Msg("framing")
	asset, err := decodeFile(ctx, r.Decoder, path)
	if err != nil {
		return err
	}

	s := editor.New(ctx, r.Settings)
	s.Import(asset)
	if err := ApplyOperations(ctx, s, r.Filters, r.Operations); err != nil {
		return fmt.Errorf("failed to edit %s: %w", path, err)
	}

	var b bytes.Buffer
	res, err := s.Export(ctx, &b)
	if err != nil {
		return err
	}

	outPath := filepath.Join(r.OutputDir, res.Filename)
	wf, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}
	defer wf.Close()
	if _, err := b.WriteTo(wf); err != nil {
		return fmt.Errorf("failed to write export to file %s: %w", outPath, err)
	}
	return nil
}

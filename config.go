package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"framer/internal/editor"
	"framer/internal/geom"
	"framer/internal/ratio"
	"framer/internal/render"
)

// ConfigFile is the default name of the optional configuration file.
const ConfigFile = "framer.yaml"

// FileConfig represents the optional framer.yaml configuration.
type FileConfig struct {
	Canvas  CanvasConfig  `yaml:"canvas"`
	Export  ExportConfig  `yaml:"export"`
	Filters FiltersConfig `yaml:"filters"`
	Server  ServerConfig  `yaml:"server"`
}

// CanvasConfig holds the canvas defaults of new sessions.
type CanvasConfig struct {
	Ratio       string `yaml:"ratio,omitempty"`
	CustomRatio string `yaml:"custom_ratio,omitempty"`
	Background  string `yaml:"background,omitempty"`
	Snap        *bool  `yaml:"snap,omitempty"`
	Preview     string `yaml:"preview,omitempty"`
}

// ExportConfig holds the export encoding.
type ExportConfig struct {
	Format  string  `yaml:"format,omitempty"`
	Quality float64 `yaml:"quality,omitempty"`
}

// FiltersConfig points at a directory of .cube files.
type FiltersConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// ServerConfig contains web editor settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoadOptionalConfig reads the configuration file at path if present.
func LoadOptionalConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// CanvasFlags are the command line overrides shared by serve and export.
type CanvasFlags struct {
	Ratio      string  `help:"Canvas ratio (original, custom, 1:1, 4:5, 5:4, 4:3, 3:4, 3:2, 2:3, 16:9, 9:16, 21:9)"`
	Custom     string  `help:"Custom ratio as WxH, selects the custom ratio"`
	Background string  `help:"Background color: #rgb, #rrggbb, #rrggbbaa or transparent"`
	NoSnap     bool    `help:"Disable center snapping while panning"`
	Format     string  `help:"Export format (png, jpeg)"`
	Quality    float64 `help:"JPEG quality between 0.5 and 1"`
}

// merge overlays the flags that were set onto the file configuration.
func (f CanvasFlags) merge(cfg *FileConfig) {
	if f.Ratio != "" {
		cfg.Canvas.Ratio = f.Ratio
	}
	if f.Custom != "" {
		cfg.Canvas.CustomRatio = f.Custom
		cfg.Canvas.Ratio = string(ratio.Custom)
	}
	if f.Background != "" {
		cfg.Canvas.Background = f.Background
	}
	if f.NoSnap {
		off := false
		cfg.Canvas.Snap = &off
	}
	if f.Format != "" {
		cfg.Export.Format = f.Format
	}
	if f.Quality != 0 {
		cfg.Export.Quality = f.Quality
	}
}

// Settings resolves the configuration onto the session defaults.
func (c *FileConfig) Settings() (editor.Settings, error) {
	s := editor.DefaultSettings()

	if v := strings.TrimSpace(c.Canvas.Ratio); v != "" {
		id, err := ratio.Parse(v)
		if err != nil {
			return s, err
		}
		s.Ratio = id
	}
	if v := strings.TrimSpace(c.Canvas.CustomRatio); v != "" {
		size, err := parseDimensions(v)
		if err != nil {
			return s, fmt.Errorf("invalid custom ratio: %w", err)
		}
		s.CustomRatio = size
	}
	if v := strings.TrimSpace(c.Canvas.Background); v != "" {
		bg, err := render.ParseColor(v)
		if err != nil {
			return s, err
		}
		s.Background = bg
	}
	if c.Canvas.Snap != nil {
		s.Snap = *c.Canvas.Snap
	}
	if v := strings.TrimSpace(c.Canvas.Preview); v != "" {
		size, err := parseDimensions(v)
		if err != nil {
			return s, fmt.Errorf("invalid preview size: %w", err)
		}
		s.Preview = size
	}
	if v := strings.TrimSpace(c.Export.Format); v != "" {
		f, err := render.ParseFormat(v)
		if err != nil {
			return s, err
		}
		s.Format = f
	}
	if c.Export.Quality != 0 {
		s.Quality = render.ClampQuality(c.Export.Quality)
	}
	return s, nil
}

// parseDimensions parses "WxH" or "W:H".
func parseDimensions(s string) (geom.Size, error) {
	sep := strings.IndexAny(strings.ToLower(s), "x:")
	if sep < 0 {
		return geom.Size{}, fmt.Errorf("%q is not WxH", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	if err != nil {
		return geom.Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if err != nil {
		return geom.Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	size := geom.Sz(w, h)
	if !size.Valid() {
		return geom.Size{}, fmt.Errorf("%q must be positive", s)
	}
	return size, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"framer/internal/editor"
	"framer/internal/lut"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("framer"),
		kong.Description("Frame photos on a canvas of a fixed ratio, with crop and color filters."),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(&args.Globals); err != nil {
		return err
	}

	return nil
}

type Globals struct {
	Config     string `help:"Path to the configuration file" default:"framer.yaml" type:"path"`
	FiltersDir string `help:"Directory of .cube filters" type:"path"`
	Verbose    bool   `help:"Enable verbose logging" default:"false"`
}

// setup configures logging and returns a context cancelled on interrupt.
func (g *Globals) setup() (context.Context, context.CancelFunc) {
	level := zerolog.InfoLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return log.Logger.WithContext(ctx), cancel
}

// load reads the configuration file and applies the command line overrides.
func (g *Globals) load(ctx context.Context, flags CanvasFlags) (*FileConfig, editor.Settings, *lut.Catalog, error) {
	cfg, err := LoadOptionalConfig(g.Config)
	if err != nil {
		return nil, editor.Settings{}, nil, err
	}
	flags.merge(cfg)
	if g.FiltersDir != "" {
		cfg.Filters.Dir = g.FiltersDir
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, editor.Settings{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var filtersFS fs.FS
	if cfg.Filters.Dir != "" {
		filtersFS = os.DirFS(cfg.Filters.Dir)
	}
	catalog, err := lut.NewCatalog(ctx, filtersFS)
	if err != nil {
		return nil, editor.Settings{}, nil, fmt.Errorf("failed to load filters: %w", err)
	}
	return cfg, settings, catalog, nil
}

type serveCmd struct {
	RootDir string `arg:"" optional:"" help:"Directory to open images from" type:"existingdir"`
	Open    bool   `help:"Open the browser automatically when the server starts" default:"true" negatable:""`
	Addr    string `help:"Listen address, a random port by default"`
	Once    bool   `help:"Exit after the first export" default:"false"`

	CanvasFlags `embed:""`
}

func (cmd *serveCmd) Run(g *Globals) error {
	ctx, cancel := g.setup()
	defer cancel()

	cfg, settings, catalog, err := g.load(ctx, cmd.CanvasFlags)
	if err != nil {
		return err
	}
	addr := cmd.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	app := NewWebApp(ctx, Config{
		RootDir:  cmd.RootDir,
		Addr:     addr,
		Settings: settings,
		Filters:  catalog,
		Decoder:  NewImagingDecoder(),
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnExport: func(res editor.ExportResult) {
			if cmd.Once {
				cancel()
			}
		},
	})

	if err := app.Run(ctx); err != nil {
		return err
	}

	return nil
}

type exportCmd struct {
	Inputs    []string `arg:"" help:"Images or directories of images to frame" type:"path"`
	OutDir    string   `help:"Output directory" default:"framed" type:"path"`
	Ops       string   `help:"JSONL file of operations applied to every image" type:"existingfile"`
	Filter    string   `help:"Filter applied to every image"`
	Intensity float64  `help:"Filter intensity between 0 and 1" default:"1"`
	Preview   string   `help:"Preview size that pan and crop deltas in --ops refer to" default:"1000x1000"`
	JSON      bool     `help:"Print the operations in JSON format without executing"`

	CanvasFlags `embed:""`
}

// operations returns the script run on every image: the --ops file followed
// by the filter flags.
func (cmd *exportCmd) operations() (Operations, error) {
	var ops Operations
	if cmd.Ops != "" {
		fileOps, err := readOperationsFile(cmd.Ops)
		if err != nil {
			return nil, err
		}
		ops = append(ops, fileOps...)
	}
	if cmd.Filter != "" {
		filter, err := NewOperation("filter", FilterOperation{ID: cmd.Filter})
		if err != nil {
			return nil, err
		}
		intensity, err := NewOperation("intensity", IntensityOperation{Value: cmd.Intensity})
		if err != nil {
			return nil, err
		}
		ops = append(ops, filter, intensity)
	}
	return ops, nil
}

func (cmd *exportCmd) Run(g *Globals) error {
	ctx, cancel := g.setup()
	defer cancel()

	ops, err := cmd.operations()
	if err != nil {
		return err
	}
	if cmd.JSON {
		printJSONL(ops)
		return nil
	}

	_, settings, catalog, err := g.load(ctx, cmd.CanvasFlags)
	if err != nil {
		return err
	}
	preview, err := parseDimensions(cmd.Preview)
	if err != nil {
		return fmt.Errorf("invalid preview size: %w", err)
	}
	settings.Preview = preview

	files, err := expandInputs(ctx, cmd.Inputs)
	if err != nil {
		return err
	}

	executor := BatchExporter{
		OutputDir:  cmd.OutDir,
		Settings:   settings,
		Filters:    catalog,
		Decoder:    NewImagingDecoder(),
		Operations: ops,
	}
	return executor.Exec(ctx, files)
}

type cliArgs struct {
	Globals

	Serve  serveCmd  `cmd:"" default:"withargs" help:"Start the web editor"`
	Export exportCmd `cmd:"" help:"Frame images in batch"`
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}

package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"

	"framer/internal/editor"
	"framer/internal/geom"
	"framer/internal/lut"
	"framer/internal/render"
)

//go:embed static
var staticFS embed.FS
var isDebug = os.Getenv("DEBUG") == "1"

type Config struct {
	// RootDir is the directory images can be opened from by name. Empty
	// allows uploads only.
	RootDir          string
	Addr             string
	Settings         editor.Settings
	Filters          *lut.Catalog
	Decoder          Decoder
	OnBeforeShutdown func()
	OnReady          func(addr string)
	OnExport         func(res editor.ExportResult)
}

// WebApp serves one editing session over HTTP. Requests are serialized on the
// session; filter tables are fetched before the session is locked.
type WebApp struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu            sync.Mutex
	session       *editor.Session
	thumbnails    *editor.Thumbnails
	filterLoading atomic.Bool
}

func NewWebApp(ctx context.Context, config Config) *WebApp {
	if config.Decoder == nil {
		config.Decoder = NewImagingDecoder()
	}
	if config.Addr == "" {
		config.Addr = "localhost:0"
	}
	return &WebApp{
		config:     config,
		shutdownCh: make(chan struct{}),
		session:    editor.New(ctx, config.Settings),
		thumbnails: editor.NewThumbnails(config.Filters),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// stateResponse is the session view plus the loading flag.
type stateResponse struct {
	editor.View
	FilterLoading bool `json:"filter_loading"`
}

// state describes the session. The caller holds a.mu.
func (a *WebApp) state() stateResponse {
	return stateResponse{View: a.session.View(), FilterLoading: a.filterLoading.Load()}
}

func badRequest(err error) error {
	return fiber.NewError(http.StatusBadRequest, err.Error())
}

func (a *WebApp) routes(ctx context.Context) *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             64 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.UserContext()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				if fiberErr.Code == http.StatusNotFound && c.Path() == "/favicon.ico" {
					return nil
				}
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	logger := log.Ctx(ctx)
	webapp.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(logger.WithContext(c.UserContext()))
		return c.Next()
	})

	if root := a.config.RootDir; root != "" {
		filesRoot := http.Dir(root)
		webapp.Get("/api/view", func(c *fiber.Ctx) error {
			filePath := c.Query("file")
			return filesystem.SendFile(c, filesRoot, filePath)
		})

		webapp.Get("/api/ls", func(c *fiber.Ctx) error {
			dir, err := walkImages(c.UserContext(), root)
			if err != nil {
				return fmt.Errorf("failed to walk dir: %w", err)
			}

			for i := range dir.Files {
				dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
			}
			return c.JSON(dir)
		})
	}

	webapp.Post("/api/images", func(c *fiber.Ctx) error {
		asset, err := a.openImage(c)
		if err != nil {
			return err
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.session.Import(asset)
		return c.Status(http.StatusCreated).JSON(a.state())
	})

	webapp.Get("/api/images", func(c *fiber.Ctx) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		return c.JSON(a.session.View().Images)
	})

	webapp.Post("/api/images/:id/select", func(c *fiber.Ctx) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.session.Select(c.Params("id")) {
			return fiber.NewError(http.StatusNotFound, "image not found")
		}
		return c.JSON(a.state())
	})

	webapp.Delete("/api/images/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.session.Remove(id) {
			return fiber.NewError(http.StatusNotFound, "image not found")
		}
		a.thumbnails.Forget(id)
		return c.JSON(a.state())
	})

	webapp.Get("/api/state", func(c *fiber.Ctx) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		return c.JSON(a.state())
	})

	webapp.Post("/api/operations", func(c *fiber.Ctx) error {
		var request struct {
			Operations []Operation `json:"operations"`
		}
		if err := c.BodyParser(&request); err != nil {
			return badRequest(err)
		}
		return a.applyOperations(c, request.Operations)
	})

	webapp.Put("/api/preview-size", func(c *fiber.Ctx) error {
		var size geom.Size
		if err := c.BodyParser(&size); err != nil {
			return badRequest(err)
		}
		if !geom.Finite(size.Width) || !geom.Finite(size.Height) || size.Width < 0 || size.Height < 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid preview size")
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.session.ResizePreview(size)
		return c.JSON(a.state())
	})

	webapp.Get("/api/preview.png", func(c *fiber.Ctx) error {
		a.mu.Lock()
		if !a.session.Surface().Valid() {
			a.mu.Unlock()
			return fiber.NewError(http.StatusConflict, "preview size not set")
		}
		img := a.session.Preview()
		revision := a.session.Revision()
		a.mu.Unlock()

		var b bytes.Buffer
		if err := render.Encode(&b, img, render.PNG, 1); err != nil {
			return err
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set("X-Revision", strconv.FormatUint(revision, 10))
		c.Type("png")
		return c.Send(b.Bytes())
	})

	webapp.Get("/api/source.png", func(c *fiber.Ctx) error {
		a.mu.Lock()
		img := a.session.FilteredSource()
		a.mu.Unlock()
		if img == nil {
			return fiber.NewError(http.StatusConflict, "no image selected")
		}

		var b bytes.Buffer
		if err := render.Encode(&b, img, render.PNG, 1); err != nil {
			return err
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Type("png")
		return c.Send(b.Bytes())
	})

	webapp.Get("/api/filters", func(c *fiber.Ctx) error {
		var filters []lut.Filter
		if a.config.Filters != nil {
			filters = a.config.Filters.Filters()
		}
		return c.JSON(fiber.Map{
			"filters":        filters,
			"filter_loading": a.filterLoading.Load(),
		})
	})

	webapp.Post("/api/filters", func(c *fiber.Ctx) error {
		if a.config.Filters == nil {
			return fiber.NewError(http.StatusConflict, "no filter catalog")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "missing .cube file")
		}
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()

		l, err := lut.ParseCube(c.UserContext(), f)
		if err != nil {
			return badRequest(err)
		}
		id := c.FormValue("id", strings.TrimSuffix(path.Base(fh.Filename), path.Ext(fh.Filename)))
		name := c.FormValue("name", l.Metadata.Title)
		if name == "" {
			name = id
		}
		a.config.Filters.Add(id, name, l)
		a.thumbnails.ForgetFilter(id)
		log.Ctx(c.UserContext()).Info().Str("filter", id).Stringer("lut", l).Msg("added filter")
		return c.Status(http.StatusCreated).JSON(lut.Filter{ID: id, Name: name})
	})

	webapp.Get("/api/filters/:id/thumbnail.png", func(c *fiber.Ctx) error {
		if a.config.Filters == nil {
			return fiber.ErrNotFound
		}
		a.mu.Lock()
		img := a.session.Active()
		a.mu.Unlock()
		if img == nil {
			return fiber.NewError(http.StatusConflict, "no image selected")
		}

		id := c.Params("id")
		thumbs, err := a.thumbnails.Get(c.UserContext(), img.Asset, []string{id})
		if errors.Is(err, lut.ErrUnknownFilter) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		if err != nil {
			return err
		}

		var b bytes.Buffer
		if err := render.Encode(&b, thumbs[id], render.PNG, 1); err != nil {
			return err
		}
		c.Type("png")
		return c.Send(b.Bytes())
	})

	webapp.Post("/api/export", func(c *fiber.Ctx) error {
		a.mu.Lock()
		snap := a.session.Snapshot()
		a.mu.Unlock()

		var b bytes.Buffer
		res, err := snap.Export(c.UserContext(), &b)
		if err != nil {
			return err
		}
		if fn := a.config.OnExport; fn != nil {
			defer fn(res)
		}
		c.Attachment(res.Filename)
		c.Set(fiber.HeaderContentType, res.ContentType)
		c.Set("X-Export-Size", fmt.Sprintf("%dx%d", res.Width, res.Height))
		return c.Send(b.Bytes())
	})

	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return c.SendStatus(http.StatusNoContent)
	})

	if isDebug {
		log.Debug().Msg("Debug mode enabled, serving static files from './static' directory")
		webapp.Static("/", "static")
	} else {
		log.Debug().Msg("Serving static files from embedded filesystem")
		webapp.Use("/", filesystem.New(filesystem.Config{
			Root:       http.FS(staticFS),
			PathPrefix: "/static",
		}))
	}
	return webapp
}

// openImage decodes the image of a request: an uploaded "file" form field,
// or a "file" query naming an image under the root directory.
func (a *WebApp) openImage(c *fiber.Ctx) (*editor.Asset, error) {
	ctx := c.UserContext()
	if name := c.Query("file"); name != "" {
		if a.config.RootDir == "" || !fs.ValidPath(name) {
			return nil, fiber.NewError(http.StatusBadRequest, "invalid file")
		}
		f, err := os.DirFS(a.config.RootDir).Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fiber.NewError(http.StatusNotFound, "file not found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer f.Close()
		asset, err := a.config.Decoder.Decode(ctx, path.Base(name), f)
		if err != nil {
			return nil, badRequest(err)
		}
		return asset, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	asset, err := a.config.Decoder.Decode(ctx, fh.Filename, f)
	if err != nil {
		return nil, badRequest(err)
	}
	return asset, nil
}

// applyOperations fetches the filters named in ops, then applies ops to the
// session.
func (a *WebApp) applyOperations(c *fiber.Ctx, ops Operations) error {
	ctx := c.UserContext()
	var filters editor.LUTSource
	if a.config.Filters != nil {
		filters = a.config.Filters
	}

	for _, op := range ops {
		f, ok := op.body.(*FilterOperation)
		if !ok || filters == nil {
			continue
		}
		a.filterLoading.Store(true)
		defer a.filterLoading.Store(false)
		if _, err := filters.Fetch(ctx, f.ID); err != nil {
			if errors.Is(err, lut.ErrUnknownFilter) {
				return fiber.NewError(http.StatusNotFound, err.Error())
			}
			return badRequest(err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ApplyOperations(ctx, a.session, filters, ops); err != nil {
		return badRequest(err)
	}
	return c.JSON(a.state())
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := a.routes(ctx)

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	listener, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

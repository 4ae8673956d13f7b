package lut

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// IndexFile is the optional catalog index inside a filters directory.
const IndexFile = "filters.yaml"

// ErrUnknownFilter is returned by Fetch for ids not in the catalog.
var ErrUnknownFilter = errors.New("unknown filter")

// Filter describes one entry of a Catalog.
type Filter struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	File    string `yaml:"file" json:"-"`
	Builtin bool   `yaml:"-" json:"builtin"`
}

type index struct {
	Filters []Filter `yaml:"filters"`
}

// Catalog lists the filters available to the editor: the generated built-ins,
// the .cube files of a directory and LUTs added at runtime. Parsed tables are
// kept after the first Fetch. A Catalog is safe for concurrent use.
type Catalog struct {
	fsys fs.FS

	mu      sync.RWMutex
	filters []Filter
	tables  map[string]*LUT
}

// NewCatalog builds a catalog over fsys, which may be nil for built-ins only.
// When fsys holds a filters.yaml it lists the entries; otherwise every .cube
// file becomes a filter named after the file.
func NewCatalog(ctx context.Context, fsys fs.FS) (*Catalog, error) {
	c := &Catalog{fsys: fsys, tables: make(map[string]*LUT)}
	for _, b := range builtins {
		c.filters = append(c.filters, Filter{ID: b.id, Name: b.name, Builtin: true})
	}
	if fsys == nil {
		return c, nil
	}

	entries, err := readIndex(fsys)
	if err != nil {
		return nil, err
	}
	for _, f := range entries {
		if c.find(f.ID) >= 0 {
			log.Ctx(ctx).Warn().Str("filter", f.ID).Msg("duplicate filter id, skipping")
			continue
		}
		c.filters = append(c.filters, f)
	}
	log.Ctx(ctx).Debug().Int("count", len(entries)).Msg("loaded filter catalog")
	return c, nil
}

func readIndex(fsys fs.FS) ([]Filter, error) {
	data, err := fs.ReadFile(fsys, IndexFile)
	switch {
	case err == nil:
		var idx index
		if err := yaml.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", IndexFile, err)
		}
		for i, f := range idx.Filters {
			if f.ID == "" || f.File == "" {
				return nil, fmt.Errorf("%s: entry %d needs an id and a file", IndexFile, i)
			}
			if f.Name == "" {
				idx.Filters[i].Name = f.ID
			}
		}
		return idx.Filters, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", IndexFile, err)
	}

	names, err := fs.Glob(fsys, "*.cube")
	if err != nil {
		return nil, fmt.Errorf("failed to list cube files: %w", err)
	}
	sort.Strings(names)
	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(path.Base(name), path.Ext(name))
		filters = append(filters, Filter{ID: id, Name: id, File: name})
	}
	return filters, nil
}

func (c *Catalog) find(id string) int {
	for i, f := range c.filters {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Filters returns the catalog entries in order.
func (c *Catalog) Filters() []Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Filter, len(c.filters))
	copy(out, c.filters)
	return out
}

// Add registers a parsed LUT under id, replacing an entry with the same id.
func (c *Catalog) Add(id, name string, l *LUT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := Filter{ID: id, Name: name}
	if i := c.find(id); i >= 0 {
		c.filters[i] = f
	} else {
		c.filters = append(c.filters, f)
	}
	c.tables[id] = l
}

// Fetch returns the LUT for id, generating or parsing it on first use.
// Failures are returned as is; nothing is retried or cached.
func (c *Catalog) Fetch(ctx context.Context, id string) (*LUT, error) {
	c.mu.RLock()
	l, ok := c.tables[id]
	i := c.find(id)
	var f Filter
	if i >= 0 {
		f = c.filters[i]
	}
	c.mu.RUnlock()
	if ok {
		return l, nil
	}
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, id)
	}

	l, err := c.load(ctx, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tables[id] = l
	c.mu.Unlock()
	return l, nil
}

func (c *Catalog) load(ctx context.Context, f Filter) (*LUT, error) {
	if f.Builtin {
		for _, b := range builtins {
			if b.id == f.ID {
				return Generate(builtinSize, b.name, b.fn)
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f.ID)
	}
	if c.fsys == nil || f.File == "" {
		return nil, fmt.Errorf("%w: %q has no source", ErrUnknownFilter, f.ID)
	}

	file, err := c.fsys.Open(f.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open filter %q: %w", f.ID, err)
	}
	defer file.Close()

	l, err := ParseCube(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter %q: %w", f.ID, err)
	}
	return l, nil
}

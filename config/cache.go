package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/starbind/errors"
)

// Entry records where the bindings of one foreign module live.
type Entry struct {
	Module     string `yaml:"module"`
	Package    string `yaml:"package"`
	ImportPath string `yaml:"import_path"`
	Manual     bool   `yaml:"manual,omitempty"`
}

// Cache persists an Entry per bound module so that later generations can
// refer to types of modules bound by other projects.
type Cache struct {
	dir     string
	mu      sync.Mutex
	entries map[string]Entry
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{
		dir:     dir,
		entries: make(map[string]Entry),
	}
}

// DefaultCache returns the cache under the user cache directory.
func DefaultCache() (*Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache dir: %w", err)
	}
	return NewCache(filepath.Join(base, "starbind", "modules")), nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Persist records every module of cfg.
func (c *Cache) Persist(cfg *Config) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range cfg.Modules {
		e := Entry{
			Module:     t.Name,
			Package:    cfg.Package,
			ImportPath: cfg.ImportPath,
			Manual:     t.Manual,
		}
		data, err := yaml.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal cache entry %s: %w", t.Name, err)
		}
		if err := os.WriteFile(c.file(t.Name), data, 0o644); err != nil {
			return fmt.Errorf("write cache entry %s: %w", t.Name, err)
		}
		c.entries[t.Name] = e
	}
	return nil
}

// Lookup returns the entry recorded for module.
func (c *Cache) Lookup(module string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[module]; ok {
		return e, nil
	}

	data, err := os.ReadFile(c.file(module))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Entry{}, errors.NotFound(errors.PhaseParse, "cached module", module)
		}
		return Entry{}, fmt.Errorf("read cache entry %s: %w", module, err)
	}

	var e Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return Entry{}, errors.ParseFailed("cache entry "+module, err)
	}
	c.entries[module] = e
	return e, nil
}

// ImportPath returns the import path of the bindings for module, or
// fallback when the module was never bound.
func (c *Cache) ImportPath(module, fallback string) string {
	e, err := c.Lookup(module)
	if err != nil {
		return fallback
	}
	return e.ImportPath
}

func (c *Cache) file(module string) string {
	return filepath.Join(c.dir, module+".yaml")
}

func marshalYAML(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

package bindgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/starbind/config"
	"github.com/wippyai/starbind/errors"
)

// Generator produces Go bindings for the modules of a configuration.
type Generator struct {
	intro Introspector
	cache *config.Cache
	log   *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache resolves classes of modules bound by other configurations and
// records the generated modules after Run.
func WithCache(c *config.Cache) Option {
	return func(g *Generator) {
		g.cache = c
	}
}

// WithLogger sets the generator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// New creates a generator reading modules through intro.
func New(intro Introspector, opts ...Option) *Generator {
	g := &Generator{
		intro: intro,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) logger() *zap.Logger {
	if g.log != nil {
		return g.log
	}
	return Logger()
}

// Generate renders one file per module of cfg. Manual modules are
// skipped. Nothing is written.
func (g *Generator) Generate(ctx context.Context, cfg *config.Config) ([]File, error) {
	var targets []config.Target
	for _, t := range cfg.Modules {
		if t.Manual {
			g.logger().Debug("skipping manual module", zap.String("module", t.Name))
			continue
		}
		targets = append(targets, t)
	}

	inspections := make([]*Inspection, len(targets))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, t := range targets {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			ins, err := Inspect(g.intro, t.Name)
			if err != nil {
				return err
			}
			inspections[i] = ins
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	local, err := index(targets, inspections)
	if err != nil {
		return nil, err
	}

	files := make([]File, len(targets))
	eg, egCtx = errgroup.WithContext(ctx)
	for i, t := range targets {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			b, err := newBuilder(cfg, t, inspections[i], local, g.cache)
			if err != nil {
				return err
			}
			m, err := b.build()
			if err != nil {
				return err
			}
			src, err := Render(m)
			if err != nil {
				return err
			}
			files[i] = File{
				Module: t.Name,
				Path:   filepath.Join(cfg.OutputDir, fileName(t.Name)),
				Source: src,
			}
			g.logger().Debug("rendered module",
				zap.String("module", t.Name),
				zap.Int("classes", len(m.Classes)),
				zap.Int("functions", len(m.Functions)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Write writes files, creating their directories.
func (g *Generator) Write(files []File) error {
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(f.Path), err)
		}
		if err := os.WriteFile(f.Path, f.Source, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		g.logger().Info("wrote bindings", zap.String("module", f.Module), zap.String("path", f.Path))
	}
	return nil
}

// Run generates and writes the bindings of cfg and records its modules in
// the cache.
func (g *Generator) Run(ctx context.Context, cfg *config.Config) ([]File, error) {
	files, err := g.Generate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := g.Write(files); err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Persist(cfg); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// index names every bound class of every module and checks that no two
// declarations of the shared package collide.
func index(targets []config.Target, inspections []*Inspection) (map[string]string, error) {
	local := make(map[string]string)
	owners := make(map[string]string)
	claim := func(name, owner string) error {
		if prev, ok := owners[name]; ok {
			return errors.Configuration(errors.PhaseGenerate, name,
				fmt.Sprintf("%s and %s both generate %s", prev, owner, name))
		}
		owners[name] = owner
		return nil
	}

	for i, t := range targets {
		ins := inspections[i]
		for _, c := range ins.Classes {
			if t.IsPublicOnly() && isPrivate(c.Name) {
				continue
			}
			q := qualified(c)
			goName := exportedName(c.Name, t.IsConventional())
			names := []string{goName, "New" + goName}
			if hasPublicStatics(c.Statics, t.IsPublicOnly()) {
				names = append(names, goName+"Class", goName+"Statics")
			}
			for _, n := range names {
				if err := claim(n, q); err != nil {
					return nil, err
				}
			}
			local[q] = goName
		}

		names := []string{registerName(ins.Module)}
		if t.HasGlobals() {
			names = append(names, moduleGoName(ins.Module), "Open"+moduleGoName(ins.Module))
		}
		for _, n := range names {
			if err := claim(n, "module "+ins.Module); err != nil {
				return nil, err
			}
		}
	}
	return local, nil
}

// Package config loads the binding-generation configuration and keeps a
// per-user cache of the modules already bound.
package config

import (
	stderrors "errors"
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wippyai/starbind/errors"
)

// Config describes one binding project: which foreign modules to bind and
// where the generated Go package goes.
type Config struct {
	Package    string   `mapstructure:"package" json:"package" yaml:"package" validate:"required,goident" jsonschema:"description=Go package name of the generated bindings"`
	ImportPath string   `mapstructure:"import_path" json:"import_path" yaml:"import_path" validate:"required" jsonschema:"description=Import path of the generated package"`
	OutputDir  string   `mapstructure:"output_dir" json:"output_dir,omitempty" yaml:"output_dir,omitempty" jsonschema:"description=Directory the bindings are written to,default=bindings"`
	SearchPath []string `mapstructure:"search_path" json:"search_path,omitempty" yaml:"search_path,omitempty" jsonschema:"description=Directories searched for script modules"`
	Modules    []Target `mapstructure:"modules" json:"modules" yaml:"modules" validate:"required,min=1,unique=Name,dive"`

	path string
}

// Target is one foreign module to bind.
type Target struct {
	Name           string `mapstructure:"name" json:"name" yaml:"name" validate:"required" jsonschema:"description=Dotted module name"`
	PublicOnly     *bool  `mapstructure:"public_only" json:"public_only,omitempty" yaml:"public_only,omitempty" jsonschema:"description=Skip names starting with an underscore,default=true"`
	UseConventions *bool  `mapstructure:"use_conventions" json:"use_conventions,omitempty" yaml:"use_conventions,omitempty" jsonschema:"description=Map snake_case names to Go CamelCase,default=true"`
	Globals        *bool  `mapstructure:"globals" json:"globals,omitempty" yaml:"globals,omitempty" jsonschema:"description=Emit a module facade for module-level functions,default=true"`
	Manual         bool   `mapstructure:"manual" json:"manual,omitempty" yaml:"manual,omitempty" jsonschema:"description=Bindings are hand-written; only record the module in the cache"`
	Signatures     string `mapstructure:"signatures" json:"signatures,omitempty" yaml:"signatures,omitempty" jsonschema:"description=WIT-style function signatures supplying scalar types"`
}

// IsPublicOnly reports whether private names are skipped. Defaults to true.
func (t Target) IsPublicOnly() bool { return boolOr(t.PublicOnly, true) }

// IsConventional reports whether names are converted to Go conventions.
// Defaults to true.
func (t Target) IsConventional() bool { return boolOr(t.UseConventions, true) }

// HasGlobals reports whether a module façade is generated. Defaults to true.
func (t Target) HasGlobals() bool { return boolOr(t.Globals, true) }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Target returns the target named name.
func (c *Config) Target(name string) (Target, bool) {
	for _, t := range c.Modules {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

const envPrefix = "STARBIND"

// Load reads the config file at path. The format follows the extension
// (yaml, toml or json). Top-level keys can be overridden with STARBIND_
// environment variables, e.g. STARBIND_OUTPUT_DIR. Relative directories are
// resolved against the config file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("output_dir", "bindings")
	v.SetDefault("search_path", []string{})

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"package", "import_path"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if stderrors.As(err, &pathErr) || stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseParse, "config file", path)
		}
		return nil, errors.ParseFailed("config "+path, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.ParseFailed("config "+path, err)
	}
	c.path = path

	dir := filepath.Dir(path)
	c.OutputDir = resolve(dir, c.OutputDir)
	for i, p := range c.SearchPath {
		c.SearchPath[i] = resolve(dir, p)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return token.IsIdentifier(s) && !token.IsKeyword(s)
		})
	})
	return validate
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on %s", fe.Namespace(), fe.Tag()))
	}
	return errors.InvalidInput(errors.PhaseParse, strings.Join(msgs, "; "))
}

// Write stores c as YAML at path.
func Write(c *Config, path string) error {
	data, err := marshalYAML(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

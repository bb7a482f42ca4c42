package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.uber.org/zap"

	"github.com/wippyai/starbind/errors"
)

func builtinModules() map[string]Loader {
	static := func(v starlark.Value) Loader {
		return func(*starlark.Thread) (starlark.Value, error) { return v, nil }
	}
	return map[string]Loader{
		"math":    static(math.Module),
		"time":    static(time.Module),
		"json":    static(json.Module),
		"pathlib": static(pathlibModule()),
	}
}

// BuiltinModules returns the names of the modules every interpreter provides.
func BuiltinModules() []string {
	return []string{"json", "math", "pathlib", "time"}
}

// importModule returns the cached module or loads it. Caller holds gil.
func (in *Interpreter) importModule(name string) (starlark.Value, error) {
	if v, ok := in.modules[name]; ok {
		return v, nil
	}
	if in.loading[name] {
		return nil, errors.ForeignInvocation(errors.PhaseImport, []string{name},
			fmt.Errorf("import cycle through %s", name))
	}
	in.loading[name] = true
	defer delete(in.loading, name)

	var (
		v   starlark.Value
		err error
	)
	if load, ok := in.loaders[name]; ok {
		v, err = load(in.thread)
	} else {
		v, err = in.loadScript(name)
	}
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.ForeignInvocation(errors.PhaseImport, []string{name}, err)
	}

	in.modules[name] = v
	in.log.Debug("module loaded", zap.String("module", name), zap.String("type", v.Type()))
	return v, nil
}

// FindScript returns the file a script module would be loaded from.
// Dotted names map to directories: a.b is a/b.star.
func (in *Interpreter) FindScript(name string) (string, bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ".star"
	for _, dir := range in.searchPath {
		p := filepath.Join(dir, rel)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

func (in *Interpreter) loadScript(name string) (starlark.Value, error) {
	path, ok := in.FindScript(name)
	if !ok {
		return nil, errors.New(errors.PhaseImport, errors.KindNotFound).
			Path(name).
			Detail("no module named %q (search path %s)", name, strings.Join(in.searchPath, string(os.PathListSeparator))).
			Build()
	}
	return execModule(in.thread, name, path, nil)
}

// execModule runs a script and wraps its globals as a module. src follows
// starlark.ExecFile: nil reads filename.
func execModule(thread *starlark.Thread, name, filename string, src any) (starlark.Value, error) {
	prev := thread.Local(localModule)
	thread.SetLocal(localModule, name)
	defer thread.SetLocal(localModule, prev)

	predeclared, _ := thread.Local(localPredeclared).(starlark.StringDict)
	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, err
	}
	return &starlarkstruct.Module{Name: name, Members: globals}, nil
}

// load implements the load statement: load("name.star", "sym") imports
// module name through the same cache as Import.
func (in *Interpreter) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	name := strings.TrimSuffix(module, ".star")
	v, err := in.importModule(name)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*starlarkstruct.Module)
	if !ok {
		return nil, fmt.Errorf("load: %s is a %s, not a module", name, v.Type())
	}
	return m.Members, nil
}

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// pathlib classes. Path and PurePath construct their POSIX flavour, as
// CPython does on POSIX systems:
//
//	PurePath ── PurePosixPath
//	    └── Path ── PosixPath
var (
	purePathClass     = NewClass("pathlib", "PurePath", nil)
	purePosixClass    = NewClass("pathlib", "PurePosixPath", purePathClass)
	pathClass         = NewClass("pathlib", "Path", purePathClass)
	posixPathClass    = NewClass("pathlib", "PosixPath", pathClass)
	pathlibModuleOnce sync.Once
	pathlibModuleVal  *starlarkstruct.Module
)

func pathlibModule() *starlarkstruct.Module {
	pathlibModuleOnce.Do(func() {
		definePurePath(purePathClass)
		definePath(pathClass)

		pathlibModuleVal = &starlarkstruct.Module{
			Name: "pathlib",
			Members: starlark.StringDict{
				"PurePath":      purePathClass,
				"PurePosixPath": purePosixClass,
				"Path":          pathClass,
				"PosixPath":     posixPathClass,
			},
		}
		pathlibModuleVal.Freeze()
	})
	return pathlibModuleVal
}

func definePurePath(c *Class) {
	c.SetDoc("A path without filesystem access.")
	c.SetConstructor(Signature{Name: "PurePath", Variadic: true, Known: true}, newPath)

	c.DefineMethod("__str__", pathMethod("__str__", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.String(p), nil
	}))
	c.DefineMethod("__eq__", pathMethod("__eq__", []string{"other"}, func(self *Instance, p string, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("__eq__: want 1 argument, got %d", len(args))
		}
		o, ok := pathOf(args[0])
		return starlark.Bool(ok && o == p), nil
	}))
	c.DefineMethod("__hash__", pathMethod("__hash__", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		h, _ := starlark.String(p).Hash()
		return starlark.MakeUint64(uint64(h)), nil
	}))
	c.DefineMethod("as_posix", pathMethod("as_posix", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.String(p), nil
	}))
	c.DefineMethod("is_absolute", pathMethod("is_absolute", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return starlark.Bool(strings.HasPrefix(p, "/")), nil
	}))
	c.DefineMethod("joinpath", pathMethod("joinpath", []string{"*other"}, func(self *Instance, p string, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		for _, a := range args {
			seg, ok := pathOf(a)
			if !ok {
				return nil, fmt.Errorf("joinpath: argument must be str or path, not %s", a.Type())
			}
			p = joinPath(p, seg)
		}
		return derive(self, p), nil
	}))
	c.DefineMethod("with_name", pathMethod("with_name", []string{"name"}, func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs("with_name", args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		if baseName(p) == "" {
			return nil, fmt.Errorf("%s has an empty name", p)
		}
		if name == "" || strings.Contains(name, "/") || name == "." {
			return nil, fmt.Errorf("invalid name %q", name)
		}
		return derive(self, joinPath(parentOf(p), name)), nil
	}))
	c.DefineMethod("with_suffix", pathMethod("with_suffix", []string{"suffix"}, func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var suffix string
		if err := starlark.UnpackArgs("with_suffix", args, kwargs, "suffix", &suffix); err != nil {
			return nil, err
		}
		name := baseName(p)
		if name == "" {
			return nil, fmt.Errorf("%s has an empty name", p)
		}
		if suffix != "" && (!strings.HasPrefix(suffix, ".") || suffix == "." || strings.Contains(suffix, "/")) {
			return nil, fmt.Errorf("invalid suffix %q", suffix)
		}
		stem := strings.TrimSuffix(name, suffixOf(name))
		return derive(self, joinPath(parentOf(p), stem+suffix)), nil
	}))
	c.DefineMethod("relative_to", pathMethod("relative_to", []string{"other"}, func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var other starlark.Value
		if err := starlark.UnpackArgs("relative_to", args, kwargs, "other", &other); err != nil {
			return nil, err
		}
		o, ok := pathOf(other)
		if !ok {
			return nil, fmt.Errorf("relative_to: argument must be str or path, not %s", other.Type())
		}
		o = normalizePath(o)
		switch {
		case o == p:
			return derive(self, "."), nil
		case o == "/" && strings.HasPrefix(p, "/"):
			return derive(self, p[1:]), nil
		case o == "." && !strings.HasPrefix(p, "/"):
			return derive(self, p), nil
		case strings.HasPrefix(p, o+"/"):
			return derive(self, p[len(o)+1:]), nil
		}
		return nil, fmt.Errorf("%q is not in the subpath of %q", p, o)
	}))

	c.DefineProperty("name", func(self *Instance) (starlark.Value, error) {
		return starlark.String(baseName(self.Native.(string))), nil
	})
	c.DefineProperty("suffix", func(self *Instance) (starlark.Value, error) {
		return starlark.String(suffixOf(baseName(self.Native.(string)))), nil
	})
	c.DefineProperty("stem", func(self *Instance) (starlark.Value, error) {
		name := baseName(self.Native.(string))
		return starlark.String(strings.TrimSuffix(name, suffixOf(name))), nil
	})
	c.DefineProperty("parent", func(self *Instance) (starlark.Value, error) {
		return derive(self, parentOf(self.Native.(string))), nil
	})
	c.DefineProperty("parts", func(self *Instance) (starlark.Value, error) {
		var parts starlark.Tuple
		for _, s := range splitPath(self.Native.(string)) {
			parts = append(parts, starlark.String(s))
		}
		return parts, nil
	})
}

func definePath(c *Class) {
	c.SetDoc("A path with filesystem access.")

	c.DefineStatic("cwd", NewFunc("cwd", nil, func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs("cwd", args, kwargs, 0); err != nil {
			return nil, err
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return NewInstance(posixPathClass, normalizePath(wd)), nil
	}))
	c.DefineStatic("home", NewFunc("home", nil, func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs("home", args, kwargs, 0); err != nil {
			return nil, err
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		return NewInstance(posixPathClass, normalizePath(home)), nil
	}))

	c.DefineMethod("absolute", pathMethod("absolute", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if strings.HasPrefix(p, "/") {
			return derive(self, p), nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return derive(self, joinPath(normalizePath(wd), p)), nil
	}))
	c.DefineMethod("resolve", pathMethod("resolve", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		return derive(self, filepath.ToSlash(abs)), nil
	}))
	c.DefineMethod("exists", pathMethod("exists", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		_, err := os.Stat(p)
		return starlark.Bool(err == nil), nil
	}))
	c.DefineMethod("is_file", pathMethod("is_file", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		st, err := os.Stat(p)
		return starlark.Bool(err == nil && st.Mode().IsRegular()), nil
	}))
	c.DefineMethod("is_dir", pathMethod("is_dir", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		st, err := os.Stat(p)
		return starlark.Bool(err == nil && st.IsDir()), nil
	}))
	c.DefineMethod("read_text", pathMethod("read_text", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		return starlark.String(data), nil
	}))
	c.DefineMethod("write_text", pathMethod("write_text", []string{"data"}, func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var data string
		if err := starlark.UnpackArgs("write_text", args, kwargs, "data", &data); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			return nil, err
		}
		return starlark.MakeInt(len(data)), nil
	}))
	c.DefineMethod("mkdir", pathMethod("mkdir", []string{"parents?", "exist_ok?"}, func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var parents, existOK bool
		if err := starlark.UnpackArgs("mkdir", args, kwargs, "parents?", &parents, "exist_ok?", &existOK); err != nil {
			return nil, err
		}
		var err error
		if parents {
			err = os.MkdirAll(p, 0o755)
		} else {
			err = os.Mkdir(p, 0o755)
		}
		if err != nil && !(existOK && os.IsExist(err)) {
			return nil, err
		}
		return starlark.None, nil
	}))
	c.DefineMethod("iterdir", pathMethod("iterdir", nil, func(self *Instance, p string, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		out := make([]starlark.Value, len(names))
		for i, n := range names {
			out[i] = derive(self, joinPath(p, n))
		}
		return starlark.NewList(out), nil
	}))
}

// newPath constructs a path from zero or more segments.
func newPath(_ *starlark.Thread, cls *Class, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s() takes no keyword arguments", cls.Name())
	}
	p := "."
	for _, a := range args {
		seg, ok := pathOf(a)
		if !ok {
			return nil, fmt.Errorf("%s(): argument must be str or path, not %s", cls.Name(), a.Type())
		}
		p = joinPath(p, seg)
	}

	switch cls {
	case purePathClass:
		cls = purePosixClass
	case pathClass:
		cls = posixPathClass
	}
	return NewInstance(cls, normalizePath(p)), nil
}

type pathMethodFunc func(self *Instance, p string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// pathMethod adapts fn to a method whose receiver is a path instance.
func pathMethod(name string, params []string, fn pathMethodFunc) *Func {
	return NewFunc(name, append([]string{"self"}, params...), func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: missing self", name)
		}
		self, ok := args[0].(*Instance)
		if !ok || !self.class.IsSubclass(purePathClass) {
			return nil, fmt.Errorf("%s: self must be a path, not %s", name, args[0].Type())
		}
		return fn(self, self.Native.(string), args[1:], kwargs)
	})
}

func derive(self *Instance, p string) *Instance {
	return NewInstance(self.class, normalizePath(p))
}

func pathOf(v starlark.Value) (string, bool) {
	switch v := v.(type) {
	case starlark.String:
		return string(v), true
	case *Instance:
		if v.class.IsSubclass(purePathClass) {
			return v.Native.(string), true
		}
	}
	return "", false
}

// normalizePath collapses empty and "." segments. ".." is kept, since it
// cannot be resolved without consulting the filesystem.
func normalizePath(p string) string {
	abs := strings.HasPrefix(p, "/")
	var keep []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			keep = append(keep, s)
		}
	}
	out := strings.Join(keep, "/")
	if abs {
		return "/" + out
	}
	if out == "" {
		return "."
	}
	return out
}

func joinPath(base, seg string) string {
	if strings.HasPrefix(seg, "/") || base == "." {
		return normalizePath(seg)
	}
	return normalizePath(base + "/" + seg)
}

func splitPath(p string) []string {
	if p == "." {
		return nil
	}
	var parts []string
	if strings.HasPrefix(p, "/") {
		parts = append(parts, "/")
		p = p[1:]
	}
	if p != "" {
		parts = append(parts, strings.Split(p, "/")...)
	}
	return parts
}

func baseName(p string) string {
	if p == "." || p == "/" {
		return ""
	}
	return p[strings.LastIndex(p, "/")+1:]
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	switch {
	case i < 0:
		return "."
	case i == 0:
		return "/"
	}
	return p[:i]
}

func suffixOf(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

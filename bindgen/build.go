package bindgen

import (
	"sort"
	"strings"

	"github.com/wippyai/starbind/config"
	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

// builder turns one Inspection into a Module.
type builder struct {
	cfg     *config.Config
	target  config.Target
	ins     *Inspection
	sigs    map[string]signature
	local   map[string]string
	cache   *config.Cache
	imports map[string]Import
	aliases map[string]bool
	classes map[string]*Class
}

func newBuilder(cfg *config.Config, target config.Target, ins *Inspection, local map[string]string, cache *config.Cache) (*builder, error) {
	sigs, err := parseSignatures(target.Signatures)
	if err != nil {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Path(target.Name).
			Cause(err).
			Detail("invalid signatures").
			Build()
	}
	return &builder{
		cfg:     cfg,
		target:  target,
		ins:     ins,
		sigs:    sigs,
		local:   local,
		cache:   cache,
		imports: make(map[string]Import),
		aliases: map[string]bool{"bind": true, cfg.Package: true},
		classes: make(map[string]*Class),
	}, nil
}

func (b *builder) build() (*Module, error) {
	m := &Module{
		Name:     b.ins.Module,
		Package:  b.cfg.Package,
		GoName:   moduleGoName(b.ins.Module),
		Register: registerName(b.ins.Module),
		Globals:  b.target.HasGlobals(),
	}

	for _, info := range b.ins.Classes {
		if !b.bound(info) {
			continue
		}
		c, err := b.class(info)
		if err != nil {
			return nil, err
		}
		m.Classes = append(m.Classes, *c)
	}

	if m.Globals {
		used := make(map[string]bool)
		for _, sig := range b.ins.Functions {
			if b.skip(sig.Name) {
				continue
			}
			fn, err := b.method(sig, "", used)
			if err != nil {
				return nil, err
			}
			m.Functions = append(m.Functions, fn)
		}
	}

	for _, imp := range b.imports {
		m.Imports = append(m.Imports, imp)
	}
	sort.Slice(m.Imports, func(i, j int) bool { return m.Imports[i].Path < m.Imports[j].Path })
	return m, nil
}

func (b *builder) skip(name string) bool {
	return b.target.IsPublicOnly() && isPrivate(name)
}

// bound reports whether a class of this module gets an interface.
func (b *builder) bound(info engine.ClassInfo) bool {
	return info.Module == b.ins.Module && !b.skip(info.Name)
}

// class builds a class after its base, so that a base bound in the same
// module is embedded instead of flattened.
func (b *builder) class(info engine.ClassInfo) (*Class, error) {
	q := qualified(info)
	if c, ok := b.classes[q]; ok {
		return c, nil
	}

	c := &Class{
		Name:   info.Name,
		GoName: b.local[q],
		Doc:    info.Doc,
	}
	used := make(map[string]bool)
	ops := make(map[string]bool)
	own := func(ci engine.ClassInfo) error {
		for _, sig := range ci.Methods {
			if ops[sig.Name] || b.skip(sig.Name) {
				continue
			}
			ops[sig.Name] = true
			meth, err := b.method(sig, ci.Name, used)
			if err != nil {
				return err
			}
			c.Methods = append(c.Methods, meth)
			c.Declared = append(c.Declared, meth)
		}
		return nil
	}

	if base, ok := b.ins.Class(info.Base); ok && b.bound(base) {
		bc, err := b.class(base)
		if err != nil {
			return nil, err
		}
		c.Embed = bc.GoName
		for _, meth := range bc.Methods {
			ops[meth.Op] = true
			used[meth.GoName] = true
			c.Methods = append(c.Methods, meth)
		}
		if err := own(info); err != nil {
			return nil, err
		}
	} else {
		for _, ci := range b.ins.Chain(info) {
			if err := own(ci); err != nil {
				return nil, err
			}
		}
	}

	initSig := info.Init
	initSig.Name = "__init__"
	init, err := b.method(initSig, info.Name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	init.GoName = "New" + c.GoName
	init.Op = "__init__"
	init.Void = false
	init.Result = Type{Expr: c.GoName, Iface: true}
	c.Init = init

	usedStatics := make(map[string]bool)
	for _, sig := range info.Statics {
		if b.skip(sig.Name) {
			continue
		}
		meth, err := b.method(sig, info.Name, usedStatics)
		if err != nil {
			return nil, err
		}
		c.Statics = append(c.Statics, meth)
	}

	b.classes[q] = c
	return c, nil
}

// method builds a generated method from a foreign signature. Declared
// signature text, looked up as "Class.name" then "name", supplies types.
func (b *builder) method(sig engine.Signature, scope string, used map[string]bool) (Method, error) {
	conv := b.target.IsConventional()
	m := Method{
		GoName: uniqueName(methodName(sig.Name, conv), used),
		Op:     sig.Name,
		Doc:    strings.TrimSpace(sig.Doc),
		Result: anyType,
	}

	text, typed := b.signature(scope, sig.Name)
	names := sig.Params
	required := sig.Required
	switch {
	case !sig.Known && typed:
		names = text.names
		required = len(text.names)
	case !sig.Known:
		m.Rest = true
	default:
		// declared types promote optional parameters to required ones
		if typed {
			required = max(required, min(len(text.params), len(sig.Params)))
		}
		m.Rest = sig.Variadic || len(sig.Params) > required
	}

	usedParams := make(map[string]bool)
	ignored := 0
	for i := 0; i < required && i < len(names); i++ {
		p := Param{Name: paramName(names[i], conv, usedParams, &ignored), Type: anyType}
		if typed && i < len(text.params) {
			t, err := b.resolveType(text.params[i])
			if err != nil {
				return Method{}, err
			}
			p.Type = t
		}
		m.Params = append(m.Params, p)
	}

	if typed {
		if !text.hasResult {
			m.Void = true
		} else {
			t, err := b.resolveType(text.result)
			if err != nil {
				return Method{}, err
			}
			m.Result = t
		}
	}
	return m, nil
}

func (b *builder) signature(scope, name string) (signature, bool) {
	if scope != "" {
		if s, ok := b.sigs[scope+"."+name]; ok {
			return s, true
		}
	}
	s, ok := b.sigs[name]
	return s, ok
}

// resolveType maps a declared type to Go. Class names take precedence
// over scalars only when they match exactly. Compound types are any.
func (b *builder) resolveType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "any" || strings.HasPrefix(s, "(") || strings.Contains(s, "<") {
		return anyType, nil
	}
	if t, ok := b.classRef(s, false); ok {
		return t, nil
	}
	t, err := scalarType(s)
	if err == nil {
		return t, nil
	}
	if t, ok := b.classRef(s, true); ok {
		return t, nil
	}
	return Type{}, err
}

func (b *builder) classRef(s string, loose bool) (Type, bool) {
	if module, name, ok := splitQualified(s); ok {
		if goName, ok := b.local[s]; ok {
			return Type{Expr: goName, Iface: true}, true
		}
		if b.cache == nil {
			return Type{}, false
		}
		e, err := b.cache.Lookup(module)
		if err != nil {
			return Type{}, false
		}
		goName := exportedName(name, true)
		if e.ImportPath == b.cfg.ImportPath {
			return Type{Expr: goName, Iface: true}, true
		}
		return Type{Expr: b.importAlias(e) + "." + goName, Iface: true}, true
	}

	for q, goName := range b.local {
		module, name, _ := splitQualified(q)
		if module != b.ins.Module {
			continue
		}
		if name == s || (loose && normalize(name) == normalize(s)) {
			return Type{Expr: goName, Iface: true}, true
		}
	}
	return Type{}, false
}

func (b *builder) importAlias(e config.Entry) string {
	if imp, ok := b.imports[e.ImportPath]; ok {
		return imp.Alias
	}
	pkg := e.Package
	if pkg == "" {
		pkg = "bindings"
	}
	alias := uniqueName(pkg, b.aliases)
	b.imports[e.ImportPath] = Import{Alias: alias, Path: e.ImportPath}
	return alias
}

func normalize(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s))
}

func qualified(info engine.ClassInfo) string {
	if info.Module == "" {
		return info.Name
	}
	return info.Module + "." + info.Name
}

// moduleGoName names the module façade: "geometry.solids" is SolidsModule.
func moduleGoName(module string) string {
	last := module
	if i := strings.LastIndex(module, "."); i >= 0 {
		last = module[i+1:]
	}
	return exportedName(last, true) + "Module"
}

// registerName names the registration function: "geometry.solids" is
// RegisterGeometrySolids.
func registerName(module string) string {
	return "Register" + exportedName(strings.ReplaceAll(module, ".", "_"), true)
}

func hasPublicStatics(statics []engine.Signature, publicOnly bool) bool {
	for _, s := range statics {
		if !publicOnly || !isPrivate(s.Name) {
			return true
		}
	}
	return false
}

package engine

import (
	"fmt"
	"sort"
	"sync/atomic"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	mainModule       = "__main__"
	localModule      = "starbind.module"
	localPredeclared = "starbind.predeclared"
)

// Constructor builds an instance of cls. It replaces the default
// construction (new instance, then __init__) for Go-implemented classes.
type Constructor func(thread *starlark.Thread, cls *Class, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// Property computes a read-only attribute of an instance.
type Property func(self *Instance) (starlark.Value, error)

// Class is a foreign class. Calling it constructs an instance; attribute
// lookup on the class yields static functions and unbound methods.
type Class struct {
	base    *Class
	methods starlark.StringDict
	statics starlark.StringDict
	props   map[string]Property
	ctor    Constructor
	ctorSig *Signature
	module  string
	name    string
	doc     string
	frozen  bool
}

var (
	_ starlark.Callable = (*Class)(nil)
	_ starlark.HasAttrs = (*Class)(nil)
)

// NewClass creates an empty class. base may be nil.
func NewClass(module, name string, base *Class) *Class {
	return &Class{
		module:  module,
		name:    name,
		base:    base,
		methods: make(starlark.StringDict),
		statics: make(starlark.StringDict),
		props:   make(map[string]Property),
	}
}

// DefineMethod adds an instance method. fn receives the instance as its
// first argument.
func (c *Class) DefineMethod(name string, fn starlark.Callable) *Class {
	c.methods[name] = fn
	return c
}

// DefineStatic adds a function reachable as an attribute of the class.
func (c *Class) DefineStatic(name string, fn starlark.Callable) *Class {
	c.statics[name] = fn
	return c
}

// DefineProperty adds a computed read-only instance attribute.
func (c *Class) DefineProperty(name string, p Property) *Class {
	c.props[name] = p
	return c
}

// SetConstructor replaces default construction. sig describes the
// accepted arguments for introspection.
func (c *Class) SetConstructor(sig Signature, fn Constructor) *Class {
	c.ctor = fn
	c.ctorSig = &sig
	return c
}

// SetDoc sets the class docstring.
func (c *Class) SetDoc(doc string) *Class {
	c.doc = doc
	return c
}

func (c *Class) Name() string   { return c.name }
func (c *Class) Module() string { return c.module }
func (c *Class) Base() *Class   { return c.base }
func (c *Class) Doc() string    { return c.doc }

// QualifiedName returns module.Name, the type identity of instances.
func (c *Class) QualifiedName() string {
	return qualify(c.module, c.name)
}

// IsSubclass reports whether c is other or derives from it.
func (c *Class) IsSubclass(other *Class) bool {
	for k := c; k != nil; k = k.base {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) lookupMethod(name string) starlark.Value {
	for k := c; k != nil; k = k.base {
		if m, ok := k.methods[name]; ok {
			return m
		}
	}
	return nil
}

func (c *Class) lookupStatic(name string) starlark.Value {
	for k := c; k != nil; k = k.base {
		if s, ok := k.statics[name]; ok {
			return s
		}
	}
	return nil
}

func (c *Class) lookupProperty(name string) Property {
	for k := c; k != nil; k = k.base {
		if p, ok := k.props[name]; ok {
			return p
		}
	}
	return nil
}

func (c *Class) constructor() (Constructor, *Signature) {
	for k := c; k != nil; k = k.base {
		if k.ctor != nil {
			return k.ctor, k.ctorSig
		}
	}
	return nil, nil
}

// MethodNames returns the names of methods defined on c itself.
func (c *Class) MethodNames() []string { return c.methods.Keys() }

// StaticNames returns the names of static functions defined on c itself.
func (c *Class) StaticNames() []string { return c.statics.Keys() }

// PropertyNames returns the names of properties defined on c itself.
func (c *Class) PropertyNames() []string {
	names := make([]string, 0, len(c.props))
	for n := range c.props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Class) String() string      { return fmt.Sprintf("<class '%s'>", c.QualifiedName()) }
func (c *Class) Type() string        { return string(TypeClass) }
func (c *Class) Truth() starlark.Bool { return starlark.True }

func (c *Class) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	c.methods.Freeze()
	c.statics.Freeze()
	if c.base != nil {
		c.base.Freeze()
	}
}

func (c *Class) Hash() (uint32, error) {
	return starlark.String(c.QualifiedName()).Hash()
}

func (c *Class) Attr(name string) (starlark.Value, error) {
	switch name {
	case "__name__":
		return starlark.String(c.name), nil
	case "__module__":
		return starlark.String(c.module), nil
	case "__doc__":
		return starlark.String(c.doc), nil
	}
	if s := c.lookupStatic(name); s != nil {
		return s, nil
	}
	if m := c.lookupMethod(name); m != nil {
		return m, nil
	}
	return nil, nil
}

func (c *Class) AttrNames() []string {
	seen := map[string]bool{"__name__": true, "__module__": true, "__doc__": true}
	for k := c; k != nil; k = k.base {
		for n := range k.statics {
			seen[n] = true
		}
		for n := range k.methods {
			seen[n] = true
		}
	}
	return sortedKeys(seen)
}

// CallInternal constructs an instance.
func (c *Class) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if ctor, _ := c.constructor(); ctor != nil {
		return ctor(thread, c, args, kwargs)
	}

	inst := NewInstance(c, nil)
	init := c.lookupMethod("__init__")
	if init == nil {
		if len(args) > 0 || len(kwargs) > 0 {
			return nil, fmt.Errorf("%s() takes no arguments", c.name)
		}
		return inst, nil
	}
	res, err := starlark.Call(thread, init, prepend(inst, args), kwargs)
	if err != nil {
		return nil, err
	}
	if res != starlark.None {
		return nil, fmt.Errorf("__init__() should return None, not %s", res.Type())
	}
	return inst, nil
}

var instanceSeq atomic.Uint32

// Instance is an object of a Class.
type Instance struct {
	class  *Class
	fields starlark.StringDict
	// Native holds Go-side state for instances of Go-implemented classes.
	Native any
	id     uint32
	frozen bool
}

var (
	_ starlark.HasSetField = (*Instance)(nil)
	_ starlark.Comparable  = (*Instance)(nil)
)

// NewInstance creates an instance of c without running any constructor.
func NewInstance(c *Class, native any) *Instance {
	return &Instance{
		class:  c,
		fields: make(starlark.StringDict),
		Native: native,
		id:     instanceSeq.Add(1),
	}
}

// Class returns the class the instance was created from.
func (i *Instance) Class() *Class { return i.class }

func (i *Instance) Type() string        { return i.class.QualifiedName() }
func (i *Instance) Truth() starlark.Bool { return starlark.True }

func (i *Instance) Freeze() {
	if i.frozen {
		return
	}
	i.frozen = true
	i.fields.Freeze()
}

// String calls __str__ if the class defines it.
func (i *Instance) String() string {
	res, ok, err := i.callHook("__str__")
	if ok && err == nil {
		if s, ok := starlark.AsString(res); ok {
			return s
		}
	}
	return fmt.Sprintf("<%s object>", i.Type())
}

// Hash calls __hash__ if the class defines it; otherwise instances hash by
// identity.
func (i *Instance) Hash() (uint32, error) {
	res, ok, err := i.callHook("__hash__")
	if !ok {
		return i.id, nil
	}
	if err != nil {
		return 0, err
	}
	n, ok := res.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("__hash__ returned %s, want int", res.Type())
	}
	if v, ok := n.Int64(); ok {
		return uint32(v), nil
	}
	return n.Hash()
}

// CompareSameType supports == and != through __eq__, falling back to
// identity.
func (i *Instance) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	other, isInstance := y.(*Instance)
	var eq bool
	switch op {
	case syntax.EQL, syntax.NEQ:
		if !isInstance {
			break
		}
		res, ok, err := i.callHook("__eq__", other)
		if err != nil {
			return false, err
		}
		if ok {
			eq = bool(res.Truth())
		} else {
			eq = i == other
		}
	default:
		return false, fmt.Errorf("%s %s %s not implemented", i.Type(), op, y.Type())
	}
	if op == syntax.NEQ {
		return !eq, nil
	}
	return eq, nil
}

func (i *Instance) Attr(name string) (starlark.Value, error) {
	if name == "__class__" {
		return i.class, nil
	}
	if v, ok := i.fields[name]; ok {
		return v, nil
	}
	if p := i.class.lookupProperty(name); p != nil {
		return p(i)
	}
	if m := i.class.lookupMethod(name); m != nil {
		return &boundMethod{recv: i, fn: m.(starlark.Callable)}, nil
	}
	return nil, nil
}

func (i *Instance) AttrNames() []string {
	seen := make(map[string]bool)
	for n := range i.fields {
		seen[n] = true
	}
	for k := i.class; k != nil; k = k.base {
		for n := range k.props {
			seen[n] = true
		}
		for n := range k.methods {
			seen[n] = true
		}
	}
	return sortedKeys(seen)
}

func (i *Instance) SetField(name string, v starlark.Value) error {
	if i.frozen {
		return fmt.Errorf("cannot set .%s on frozen %s", name, i.Type())
	}
	if i.class.lookupProperty(name) != nil {
		return fmt.Errorf("cannot set read-only property .%s of %s", name, i.Type())
	}
	i.fields[name] = v
	return nil
}

// callHook calls a special method with a private thread. Hooks run while
// the caller already holds the interpreter lock.
func (i *Instance) callHook(name string, args ...starlark.Value) (starlark.Value, bool, error) {
	m := i.class.lookupMethod(name)
	if m == nil {
		return nil, false, nil
	}
	thread := &starlark.Thread{Name: name}
	res, err := starlark.Call(thread, m, prepend(i, args), nil)
	return res, true, err
}

// boundMethod is a method with its receiver fixed.
type boundMethod struct {
	recv *Instance
	fn   starlark.Callable
}

func (m *boundMethod) Name() string         { return m.fn.Name() }
func (m *boundMethod) Type() string         { return "method" }
func (m *boundMethod) Freeze()              {}
func (m *boundMethod) Truth() starlark.Bool { return starlark.True }
func (m *boundMethod) Hash() (uint32, error) {
	h, err := m.fn.Hash()
	return h ^ m.recv.id, err
}

func (m *boundMethod) String() string {
	return fmt.Sprintf("<bound method %s of %s>", m.fn.Name(), m.recv.Type())
}

func (m *boundMethod) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return starlark.Call(thread, m.fn, prepend(m.recv, args), kwargs)
}

// Func is a Go-implemented function with named parameters. Unlike
// starlark.Builtin its parameters are visible to introspection.
type Func struct {
	fn     func(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)
	name   string
	doc    string
	params []string
}

// NewFunc creates a Func. Methods list their receiver as the first
// parameter. A "?" suffix marks an optional parameter and a "*" prefix a
// variadic one.
func NewFunc(name string, params []string, fn func(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)) *Func {
	return &Func{name: name, params: params, fn: fn}
}

// WithDoc sets the docstring and returns f.
func (f *Func) WithDoc(doc string) *Func {
	f.doc = doc
	return f
}

func (f *Func) Name() string          { return f.name }
func (f *Func) Doc() string           { return f.doc }
func (f *Func) Params() []string      { return f.params }
func (f *Func) Type() string          { return string(TypeBuiltin) }
func (f *Func) Freeze()               {}
func (f *Func) Truth() starlark.Bool  { return starlark.True }
func (f *Func) Hash() (uint32, error) { return starlark.String(f.name).Hash() }
func (f *Func) String() string        { return fmt.Sprintf("<built-in function %s>", f.name) }

func (f *Func) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return f.fn(thread, args, kwargs)
}

// makeClass implements the klass builtin:
//
//	klass(name, base=None, statics=None, doc="", **methods)
func makeClass(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name    string
		base    starlark.Value = starlark.None
		statics *starlark.Dict
		doc     string
		methods []starlark.Tuple
	)

	// Every keyword other than the fixed parameters is a method.
	var fixed []starlark.Tuple
	for _, kv := range kwargs {
		switch k, _ := starlark.AsString(kv[0]); k {
		case "name", "base", "statics", "doc":
			fixed = append(fixed, kv)
		default:
			methods = append(methods, kv)
		}
	}
	if err := starlark.UnpackArgs(b.Name(), args, fixed,
		"name", &name, "base?", &base, "statics?", &statics, "doc?", &doc); err != nil {
		return nil, err
	}

	var baseClass *Class
	if base != starlark.None {
		bc, ok := base.(*Class)
		if !ok {
			return nil, fmt.Errorf("%s: base must be a class, got %s", b.Name(), base.Type())
		}
		baseClass = bc
	}

	module, _ := thread.Local(localModule).(string)
	if module == "" {
		module = mainModule
	}
	cls := NewClass(module, name, baseClass).SetDoc(doc)

	for _, kv := range methods {
		k, _ := starlark.AsString(kv[0])
		fn, ok := kv[1].(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s: method %s must be callable, got %s", b.Name(), k, kv[1].Type())
		}
		cls.DefineMethod(k, fn)
	}
	if statics != nil {
		for _, kv := range statics.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("%s: static names must be strings", b.Name())
			}
			fn, ok := kv[1].(starlark.Callable)
			if !ok {
				return nil, fmt.Errorf("%s: static %s must be callable, got %s", b.Name(), k, kv[1].Type())
			}
			cls.DefineStatic(k, fn)
		}
	}
	return cls, nil
}

func prepend(v starlark.Value, args starlark.Tuple) starlark.Tuple {
	out := make(starlark.Tuple, 0, len(args)+1)
	out = append(out, v)
	return append(out, args...)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

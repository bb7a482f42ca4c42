package engine

import (
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/wippyai/starbind/errors"
)

// MemberKind classifies a module or class member.
type MemberKind string

const (
	MemberFunction MemberKind = "function"
	MemberClass    MemberKind = "class"
	MemberModule   MemberKind = "module"
	MemberValue    MemberKind = "value"
)

// Member describes one attribute of a module.
type Member struct {
	Name string
	Kind MemberKind
	Type TypeID
}

// Signature describes the parameters of a callable. Known is false for
// builtins whose parameters cannot be introspected.
type Signature struct {
	Name     string
	Doc      string
	Params   []string
	Required int
	Variadic bool
	Keywords bool
	Known    bool
}

// ClassInfo describes a class for binding generation.
type ClassInfo struct {
	Name       string
	Module     string
	Base       string
	Doc        string
	Init       Signature
	Methods    []Signature
	Statics    []Signature
	Properties []string
}

// Members lists the attributes of the referenced object, sorted by name.
func (in *Interpreter) Members(ref Ref) ([]Member, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseAttribute)
	if err != nil {
		return nil, err
	}
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, nil
	}

	names := ha.AttrNames()
	sort.Strings(names)
	members := make([]Member, 0, len(names))
	for _, name := range names {
		attr, err := ha.Attr(name)
		if err != nil || attr == nil {
			continue
		}
		members = append(members, Member{Name: name, Kind: kindOf(attr), Type: TypeID(attr.Type())})
	}
	return members, nil
}

// Signature describes the referenced callable. For a class it describes the
// constructor.
func (in *Interpreter) Signature(ref Ref) (Signature, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseAttribute)
	if err != nil {
		return Signature{}, err
	}
	if c, ok := v.(*Class); ok {
		return initSignature(c), nil
	}
	if m, ok := v.(*boundMethod); ok {
		return signatureOf(m.fn, true), nil
	}
	if _, ok := v.(starlark.Callable); !ok {
		return Signature{}, errors.TypeMismatch(errors.PhaseAttribute, nil, "callable", v.Type())
	}
	return signatureOf(v, false), nil
}

// ClassInfo describes the referenced class.
func (in *Interpreter) ClassInfo(ref Ref) (ClassInfo, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseAttribute)
	if err != nil {
		return ClassInfo{}, err
	}
	c, ok := v.(*Class)
	if !ok {
		return ClassInfo{}, errors.TypeMismatch(errors.PhaseAttribute, nil, "class", v.Type())
	}

	info := ClassInfo{
		Name:       c.name,
		Module:     c.module,
		Doc:        c.doc,
		Init:       initSignature(c),
		Properties: c.PropertyNames(),
	}
	if c.base != nil {
		info.Base = c.base.QualifiedName()
	}
	for _, name := range c.MethodNames() {
		if isSpecial(name) {
			continue
		}
		sig := signatureOf(c.methods[name], true)
		sig.Name = name
		info.Methods = append(info.Methods, sig)
	}
	for _, name := range c.StaticNames() {
		sig := signatureOf(c.statics[name], false)
		sig.Name = name
		info.Statics = append(info.Statics, sig)
	}
	return info, nil
}

func kindOf(v starlark.Value) MemberKind {
	switch v.(type) {
	case *Class:
		return MemberClass
	case *starlarkstruct.Module:
		return MemberModule
	case starlark.Callable:
		return MemberFunction
	}
	return MemberValue
}

func initSignature(c *Class) Signature {
	if _, sig := c.constructor(); sig != nil {
		s := *sig
		s.Name = c.name
		return s
	}
	if init := c.lookupMethod("__init__"); init != nil {
		s := signatureOf(init, true)
		s.Name = c.name
		return s
	}
	return Signature{Name: c.name, Known: true}
}

// signatureOf describes fn. For methods the receiver parameter is dropped.
func signatureOf(fn starlark.Value, method bool) Signature {
	sig := Signature{}
	if c, ok := fn.(starlark.Callable); ok {
		sig.Name = c.Name()
	}

	switch fn := fn.(type) {
	case *starlark.Function:
		sig.Known = true
		sig.Doc = fn.Doc()
		sig.Variadic = fn.HasVarargs()
		sig.Keywords = fn.HasKwargs()
		n := fn.NumParams() - fn.NumKwonlyParams()
		if sig.Variadic {
			n--
		}
		if sig.Keywords {
			n--
		}
		for i := 0; i < n; i++ {
			name, _ := fn.Param(i)
			sig.Params = append(sig.Params, name)
			if fn.ParamDefault(i) == nil {
				sig.Required++
			}
		}
	case *Func:
		sig.Known = true
		sig.Doc = fn.Doc()
		for _, p := range fn.Params() {
			switch {
			case strings.HasPrefix(p, "*"):
				sig.Variadic = true
			case strings.HasSuffix(p, "?"):
				sig.Params = append(sig.Params, strings.TrimSuffix(p, "?"))
			default:
				sig.Params = append(sig.Params, p)
				sig.Required++
			}
		}
	default:
		sig.Variadic = true
	}

	if method && sig.Known && len(sig.Params) > 0 {
		sig.Params = sig.Params[1:]
		if sig.Required > 0 {
			sig.Required--
		}
		if len(sig.Params) == 0 {
			sig.Params = nil
		}
	}
	return sig
}

func isSpecial(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

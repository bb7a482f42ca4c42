package bindgen

import (
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

// Introspector is the part of the engine the generator needs.
type Introspector interface {
	Import(name string) (engine.Ref, error)
	GetAttr(ref engine.Ref, name string) (engine.Ref, error)
	Members(ref engine.Ref) ([]engine.Member, error)
	Signature(ref engine.Ref) (engine.Signature, error)
	ClassInfo(ref engine.Ref) (engine.ClassInfo, error)
	Release(ref engine.Ref) error
}

var _ Introspector = (*engine.Interpreter)(nil)

// Inspection is what a module exposes: its own classes and its functions,
// in member order, plus every base class those classes inherit from.
type Inspection struct {
	Module    string
	Classes   []engine.ClassInfo
	Functions []engine.Signature
	Bases     map[string]engine.ClassInfo
}

// Class returns the class with the given qualified name.
func (ins *Inspection) Class(qualified string) (engine.ClassInfo, bool) {
	if mod, name, ok := splitQualified(qualified); ok && mod == ins.Module {
		for _, c := range ins.Classes {
			if c.Name == name {
				return c, true
			}
		}
	}
	c, ok := ins.Bases[qualified]
	return c, ok
}

// Inspect walks a foreign module. Classes imported from other modules are
// skipped; their definitions are only loaded when a local class extends
// them.
func Inspect(intro Introspector, module string) (ins *Inspection, err error) {
	mod, err := intro.Import(module)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, intro.Release(mod)) }()

	members, err := intro.Members(mod)
	if err != nil {
		return nil, err
	}

	ins = &Inspection{Module: module, Bases: make(map[string]engine.ClassInfo)}
	for _, m := range members {
		switch m.Kind {
		case engine.MemberClass:
			info, err := classInfo(intro, mod, m.Name)
			if err != nil {
				return nil, err
			}
			if info.Module != module {
				Logger().Debug("skipping imported class",
					zap.String("module", module),
					zap.String("class", m.Name),
					zap.String("defined_in", info.Module))
				continue
			}
			ins.Classes = append(ins.Classes, info)
		case engine.MemberFunction:
			sig, err := loadSignature(intro, mod, m.Name)
			if err != nil {
				return nil, err
			}
			sig.Name = m.Name
			ins.Functions = append(ins.Functions, sig)
		}
	}

	for _, c := range ins.Classes {
		for base := c.Base; base != ""; {
			if _, ok := ins.Class(base); ok {
				break
			}
			info, err := lookupClass(intro, base)
			if err != nil {
				return nil, err
			}
			ins.Bases[base] = info
			base = info.Base
		}
	}
	return ins, nil
}

// Chain returns the class followed by its bases, nearest first. Bases
// that cannot be found end the chain.
func (ins *Inspection) Chain(c engine.ClassInfo) []engine.ClassInfo {
	chain := []engine.ClassInfo{c}
	for base := c.Base; base != ""; {
		info, ok := ins.Class(base)
		if !ok {
			break
		}
		chain = append(chain, info)
		base = info.Base
	}
	return chain
}

func classInfo(intro Introspector, mod engine.Ref, name string) (engine.ClassInfo, error) {
	ref, err := intro.GetAttr(mod, name)
	if err != nil {
		return engine.ClassInfo{}, err
	}
	info, err := intro.ClassInfo(ref)
	return info, multierr.Append(err, intro.Release(ref))
}

func loadSignature(intro Introspector, mod engine.Ref, name string) (engine.Signature, error) {
	ref, err := intro.GetAttr(mod, name)
	if err != nil {
		return engine.Signature{}, err
	}
	sig, err := intro.Signature(ref)
	return sig, multierr.Append(err, intro.Release(ref))
}

// lookupClass loads a class by its qualified name.
func lookupClass(intro Introspector, qualified string) (info engine.ClassInfo, err error) {
	module, name, ok := splitQualified(qualified)
	if !ok {
		return engine.ClassInfo{}, errors.InvalidInput(errors.PhaseGenerate, "class name "+qualified+" is not qualified")
	}
	mod, err := intro.Import(module)
	if err != nil {
		return engine.ClassInfo{}, err
	}
	defer func() { err = multierr.Append(err, intro.Release(mod)) }()
	return classInfo(intro, mod, name)
}

// splitQualified splits "a.b.C" into "a.b" and "C".
func splitQualified(qualified string) (module, name string, ok bool) {
	i := strings.LastIndex(qualified, ".")
	if i <= 0 || i == len(qualified)-1 {
		return "", "", false
	}
	return qualified[:i], qualified[i+1:], true
}

// Package starbind binds Go interfaces to objects living in an embedded
// Starlark interpreter.
//
// A Go program declares an interface per foreign class or module, registers
// it with a binder together with the foreign operation each method maps to,
// and then works with proxies: values implementing the interface whose
// method calls cross into the interpreter. Results are converted back
// according to the declared return types: string, bool, int and float64
// are copied, other foreign objects come back as proxies of the interface
// bound to their runtime type.
//
// # Architecture Overview
//
//	starbind/
//	├── engine/          Starlark interpreter, class system, boundary primitives
//	├── resource/        Reference table backing foreign object handles
//	├── bind/            Type registry, proxies, construction and façades
//	├── bindgen/         Generates interfaces and proxies from foreign modules
//	├── config/          Binding configuration and module cache
//	├── errors/          Structured error types
//	└── cmd/starbind/    gen, inspect, call and schema commands
//
// # Quick Start
//
//	type Path interface {
//	    bind.Binding
//	    Absolute() (Path, error)
//	    IsAbsolute() (bool, error)
//	}
//
//	type pathProxy struct{ *bind.Proxy }
//
//	func (p pathProxy) Absolute() (Path, error)   { return bind.Call[Path](p.Proxy, "Absolute") }
//	func (p pathProxy) IsAbsolute() (bool, error) { return bind.Call[bool](p.Proxy, "IsAbsolute") }
//
//	b, _ := bind.NewBinder(engine.New())
//	_ = bind.Register[Path](b, bind.Interface{
//	    Class:   &bind.ClassBinding{Module: "pathlib", Name: "Path"},
//	    Methods: bind.Ops("Absolute", "absolute", "IsAbsolute", "is_absolute"),
//	    New:     func(p *bind.Proxy) bind.Binding { return pathProxy{p} },
//	})
//
//	p, _ := bind.New[Path](b, "./myfile.txt")
//	defer p.Close()
//	abs, _ := p.Absolute()
//	defer abs.Close()
//	fmt.Println(abs) // /current/dir/myfile.txt
//
// Writing interfaces by hand is optional: starbind gen reads a
// configuration listing modules and emits them, see package bindgen.
//
// # Lifecycle
//
// Every proxy holds one foreign reference. Close releases it; closing twice
// or calling through a closed proxy is a lifecycle error. bind.Scope
// collects proxies and closes them together.
package starbind

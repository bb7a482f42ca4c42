// Package bind exposes objects of the embedded Starlark runtime through
// statically typed Go interfaces.
//
// A host interface embeds Binding and is registered with binding metadata
// naming the foreign class or module it fronts and the operation behind
// each method:
//
//	type Path interface {
//		bind.Binding
//		Absolute() (Path, error)
//	}
//
//	type pathProxy struct{ *bind.Proxy }
//
//	func (p pathProxy) Absolute() (Path, error) { return bind.Call[Path](p.Proxy, "Absolute") }
//
//	err := bind.Register[Path](b, bind.Interface{
//		Class:   &bind.ClassBinding{Module: "pathlib", Name: "Path"},
//		Methods: bind.Ops("Absolute", "absolute"),
//		New:     func(p *bind.Proxy) bind.Binding { return pathProxy{p} },
//	})
//
// New constructs a foreign instance and Static returns a module or class
// façade. Results are marshalled by the Registry: the four native scalars
// (int, float64, bool, string) are copied out, anything else is wrapped in
// the host interface registered for its runtime type.
//
// Every binding owns one Handle and must be closed exactly once. Scope
// closes a group of bindings together.
package bind

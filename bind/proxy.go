package bind

import (
	"fmt"
	"reflect"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

// Binding is the lifecycle surface every host interface embeds.
// These methods are answered by the proxy and never dispatched through
// binding metadata.
type Binding interface {
	// Unwrap returns the handle owning the foreign object.
	Unwrap() *Handle
	// String returns the runtime's string form of the object.
	String() string
	// Equal compares with another binding or a plain value using the
	// runtime's equality.
	Equal(other any) (bool, error)
	// Hash returns the runtime's hash of the object.
	Hash() (uint32, error)
	// Close releases the foreign object.
	Close() error
}

// Proxy dispatches host method calls to the foreign object it owns.
// Host implementations embed *Proxy and forward each method through Call.
type Proxy struct {
	binder *Binder
	handle *Handle
	table  *dispatchTable
}

var _ Binding = (*Proxy)(nil)

// Unwrap returns the handle owning the foreign object.
func (p *Proxy) Unwrap() *Handle {
	if p == nil {
		return nil
	}
	return p.handle
}

// String returns the runtime's string form, or a placeholder when the
// object is released.
func (p *Proxy) String() string {
	if p == nil || p.handle == nil {
		return "<nil>"
	}
	s, err := p.handle.Str()
	if err != nil {
		return fmt.Sprintf("<released %s>", p.handle.TypeID())
	}
	return s
}

func (p *Proxy) Equal(other any) (bool, error) {
	return p.Unwrap().Equal(other)
}

func (p *Proxy) Hash() (uint32, error) {
	return p.Unwrap().Hash()
}

// Close releases the foreign object. A second Close is a lifecycle error.
func (p *Proxy) Close() error {
	return p.Unwrap().Release()
}

// TypeID returns the runtime type identity of the wrapped object.
func (p *Proxy) TypeID() engine.TypeID {
	return p.Unwrap().TypeID()
}

// Interface returns the host interface the proxy dispatches for, or nil
// for a proxy without binding metadata.
func (p *Proxy) Interface() reflect.Type {
	if p.table == nil {
		return nil
	}
	return p.table.iface
}

var lifecycleDispatch = map[string]func(p *Proxy, args []any) (any, error){
	"Unwrap": func(p *Proxy, _ []any) (any, error) { return p.Unwrap(), nil },
	"String": func(p *Proxy, _ []any) (any, error) { return p.String(), nil },
	"Equal": func(p *Proxy, args []any) (any, error) {
		if len(args) != 1 {
			return nil, errors.InvalidInput(errors.PhaseCall, "Equal takes exactly one argument")
		}
		return p.Equal(args[0])
	},
	"Hash":  func(p *Proxy, _ []any) (any, error) { return p.Hash() },
	"Close": func(p *Proxy, _ []any) (any, error) { return nil, p.Close() },
}

// Call dispatches the host method name to its bound foreign operation and
// marshals the result against the method's declared result type.
// Lifecycle methods are answered directly.
func (p *Proxy) Call(method string, args ...any) (any, error) {
	if fn, ok := lifecycleDispatch[method]; ok {
		return fn(p, args)
	}
	if p.Unwrap() == nil {
		return nil, errors.UseAfterRelease(errors.PhaseCall, "")
	}

	if p.table == nil {
		return nil, errors.Configuration(errors.PhaseCall, "",
			fmt.Sprintf("method %s has no operation binding", method))
	}
	e, ok := p.table.entries[method]
	if !ok {
		return nil, errors.Configuration(errors.PhaseCall, p.table.name(),
			fmt.Sprintf("method %s has no operation binding", method))
	}

	out, err := p.invoke(e.op, args)
	if err != nil {
		return nil, err
	}
	if e.void {
		p.binder.release(out)
		return nil, nil
	}
	return p.binder.registry.Marshal(p.binder, e.ret, out)
}

// CallForeign invokes the foreign operation op directly. Results of a
// registered type come back as their host binding, native scalars as Go
// values, anything else as a bare *Proxy.
func (p *Proxy) CallForeign(op string, args ...any) (any, error) {
	if p.Unwrap() == nil {
		return nil, errors.UseAfterRelease(errors.PhaseCall, "")
	}
	out, err := p.invoke(op, args)
	if err != nil {
		return nil, err
	}
	return p.binder.marshalAny(out)
}

// Attr reads the attribute name of the wrapped object.
func (p *Proxy) Attr(name string) (any, error) {
	if p.Unwrap() == nil {
		return nil, errors.UseAfterRelease(errors.PhaseAttribute, "")
	}
	var out engine.Ref
	err := p.handle.use(errors.PhaseAttribute, func(ref engine.Ref) error {
		var err error
		out, err = p.binder.bridge.GetAttr(ref, name)
		return err
	})
	if err != nil {
		return nil, foreignError(errors.PhaseAttribute, []string{string(p.handle.TypeID()), name}, err)
	}
	return p.binder.marshalAny(out)
}

// invoke calls op holding the receiver and every argument handle until
// the runtime returns.
func (p *Proxy) invoke(op string, args []any) (engine.Ref, error) {
	var out engine.Ref
	err := withArgs(errors.PhaseCall, p.binder.bridge, p.handle, args, func(ref engine.Ref, raw []any) error {
		var err error
		out, err = p.binder.bridge.Call(ref, op, raw)
		return err
	})
	if err != nil {
		return 0, foreignError(errors.PhaseCall, []string{string(p.handle.TypeID()), op}, err)
	}
	return out, nil
}

// foreignError keeps structured errors as they are and wraps anything else
// as a foreign invocation failure.
func foreignError(phase errors.Phase, path []string, err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.ForeignInvocation(phase, path, err)
}

// Call dispatches method on p and returns the result as R.
func Call[R any](p *Proxy, method string, args ...any) (R, error) {
	var zero R
	res, err := p.Call(method, args...)
	if err != nil || res == nil {
		return zero, err
	}
	r, ok := res.(R)
	if !ok {
		if b, isBinding := res.(Binding); isBinding {
			_ = b.Close()
		}
		return zero, errors.TypeMismatch(errors.PhaseMarshal, []string{method},
			reflect.TypeFor[R]().String(), fmt.Sprintf("%T", res))
	}
	return r, nil
}

// CallVoid dispatches method on p and discards the result.
func CallVoid(p *Proxy, method string, args ...any) error {
	_, err := p.Call(method, args...)
	return err
}

package bind

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

type registration struct {
	typ   reflect.Type
	iface Interface
	table *dispatchTable
}

func (r *registration) build(b *Binder, h *Handle) Binding {
	p := &Proxy{binder: b, handle: h, table: r.table}
	if r.iface.New == nil {
		return p
	}
	return r.iface.New(p)
}

// Binder registers host interfaces and builds proxies for foreign objects.
type Binder struct {
	bridge     Bridge
	registry   *Registry
	log        *zap.Logger
	interfaces map[reflect.Type]*registration
	mu         sync.RWMutex
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the binder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binder) {
		b.log = l
	}
}

// WithRegistry shares an existing type registry.
func WithRegistry(r *Registry) Option {
	return func(b *Binder) {
		b.registry = r
	}
}

// NewBinder creates a binder over bridge.
func NewBinder(bridge Bridge, opts ...Option) (*Binder, error) {
	b := &Binder{
		bridge:     bridge,
		interfaces: make(map[reflect.Type]*registration),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.registry == nil {
		r, err := NewRegistry(bridge)
		if err != nil {
			return nil, err
		}
		b.registry = r
	}
	return b, nil
}

// logger returns the binder's own logger, or the package logger as it is
// at the time of the call.
func (b *Binder) logger() *zap.Logger {
	if b.log != nil {
		return b.log
	}
	return Logger()
}

// Registry returns the binder's type registry.
func (b *Binder) Registry() *Registry {
	return b.registry
}

// Bridge returns the runtime the binder talks to.
func (b *Binder) Bridge() Bridge {
	return b.bridge
}

// Interfaces lists the registered host interfaces by name.
func (b *Binder) Interfaces() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.interfaces))
	for t := range b.interfaces {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

// Register validates the binding metadata of T and caches its dispatch
// table. Registering T again replaces the previous metadata.
func Register[T Binding](b *Binder, iface Interface) error {
	t := reflect.TypeFor[T]()
	table, err := compile(t, iface)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.interfaces[t] = &registration{typ: t, iface: iface, table: table}
	b.mu.Unlock()

	b.logger().Debug("interface registered",
		zap.Stringer("interface", t),
		zap.Int("methods", len(table.entries)))
	return nil
}

func (b *Binder) lookup(t reflect.Type, phase errors.Phase) (*registration, error) {
	b.mu.RLock()
	reg, ok := b.interfaces[t]
	b.mu.RUnlock()

	if !ok {
		return nil, errors.Configuration(phase, t.String(), "interface is not registered")
	}
	return reg, nil
}

// BuildProxy wraps h in the registered implementation of host.
func (b *Binder) BuildProxy(host reflect.Type, h *Handle) (Binding, error) {
	reg, err := b.lookup(host, errors.PhaseMarshal)
	if err != nil {
		return nil, err
	}
	b.logger().Debug("proxy built",
		zap.Stringer("interface", host),
		zap.String("foreign", string(h.TypeID())))
	return reg.build(b, h), nil
}

// Proxy wraps h in a proxy without binding metadata. Only lifecycle
// methods, CallForeign and Attr are usable on it.
func (b *Binder) Proxy(h *Handle) *Proxy {
	return &Proxy{binder: b, handle: h}
}

// Wrap takes ownership of ref and wraps it the way a call result declared
// as any would be.
func (b *Binder) Wrap(ref engine.Ref) (any, error) {
	return b.marshalAny(ref)
}

// marshalAny marshals ref with no declared type. Values of unregistered
// types come back as a bare proxy rather than an error.
func (b *Binder) marshalAny(ref engine.Ref) (any, error) {
	id, err := b.bridge.TypeOf(ref)
	if err != nil {
		b.release(ref)
		return nil, err
	}
	if id == engine.TypeNone {
		b.release(ref)
		return nil, nil
	}
	if _, err := b.registry.resolve(anyType, id); err != nil {
		return b.Proxy(NewHandle(b.bridge, ref, id)), nil
	}
	return b.registry.Marshal(b, anyType, ref)
}

func (b *Binder) release(ref engine.Ref) {
	if err := b.bridge.Release(ref); err != nil {
		b.logger().Debug("release failed", zap.Error(err))
	}
}

// New constructs an instance of the foreign class bound to T.
//
// The runtime type of the new object is registered against T unless it
// is already mapped to a type usable as T, so a constructor returning a
// subclass instance still satisfies T.
func New[T Binding](b *Binder, args ...any) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	reg, err := b.lookup(t, errors.PhaseConstruct)
	if err != nil {
		return zero, err
	}
	cls := reg.iface.Class
	if cls == nil {
		return zero, errors.Configuration(errors.PhaseConstruct, t.String(), "interface has no class binding")
	}
	path := []string{cls.Module, cls.Name}

	classRef, err := b.classObject(cls)
	if err != nil {
		return zero, err
	}
	defer b.release(classRef)

	var obj engine.Ref
	err = withArgs(errors.PhaseConstruct, b.bridge, nil, args, func(_ engine.Ref, raw []any) error {
		var err error
		obj, err = b.bridge.Invoke(classRef, raw)
		return err
	})
	if err != nil {
		return zero, foreignError(errors.PhaseConstruct, path, err)
	}
	id, err := b.bridge.TypeOf(obj)
	if err != nil {
		b.release(obj)
		return zero, err
	}

	added, err := b.registry.EnsureMapping(t, id)
	if err != nil {
		b.release(obj)
		return zero, err
	}
	if added {
		b.logger().Debug("runtime type bound on construction",
			zap.Stringer("interface", t),
			zap.String("foreign", string(id)))
	}

	bnd := reg.build(b, NewHandle(b.bridge, obj, id))
	return bnd.(T), nil
}

// Static returns the façade bound to T without constructing anything: the
// module object for a module binding, the class object for a class
// binding. It returns the zero value and no error when T has neither.
func Static[T Binding](b *Binder) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	reg, err := b.lookup(t, errors.PhaseImport)
	if err != nil {
		return zero, err
	}

	var ref engine.Ref
	switch {
	case reg.iface.Module != nil:
		name := reg.iface.Module.Name
		ref, err = b.bridge.Import(name)
		if err != nil {
			return zero, foreignError(errors.PhaseImport, []string{name}, err)
		}
	case reg.iface.Class != nil:
		ref, err = b.classObject(reg.iface.Class)
		if err != nil {
			return zero, err
		}
	default:
		return zero, nil
	}

	id, err := b.bridge.TypeOf(ref)
	if err != nil {
		b.release(ref)
		return zero, err
	}
	return reg.build(b, NewHandle(b.bridge, ref, id)).(T), nil
}

// CheckFacade reports a configuration error when T carries neither a
// module nor a class binding, the case Static answers with a zero value.
func CheckFacade[T Binding](b *Binder) error {
	t := reflect.TypeFor[T]()
	reg, err := b.lookup(t, errors.PhaseValidate)
	if err != nil {
		return err
	}
	if reg.iface.Module == nil && reg.iface.Class == nil {
		return errors.Configuration(errors.PhaseValidate, t.String(),
			"facade has neither a module nor a class binding")
	}
	return nil
}

func (b *Binder) classObject(cls *ClassBinding) (engine.Ref, error) {
	mod, err := b.bridge.Import(cls.Module)
	if err != nil {
		return 0, foreignError(errors.PhaseImport, []string{cls.Module}, err)
	}
	defer b.release(mod)

	ref, err := b.bridge.GetAttr(mod, cls.Name)
	if err != nil {
		return 0, foreignError(errors.PhaseAttribute, []string{cls.Module, cls.Name}, err)
	}
	return ref, nil
}

// String describes the binder for logs.
func (b *Binder) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("Binder(%d interfaces, %d mappings)", len(b.interfaces), len(b.registry.Mappings()))
}

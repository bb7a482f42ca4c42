package bind

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

var (
	anyType     = reflect.TypeFor[any]()
	stringType  = reflect.TypeFor[string]()
	intType     = reflect.TypeFor[int]()
	boolType    = reflect.TypeFor[bool]()
	float64Type = reflect.TypeFor[float64]()
)

// nativeProbes seed the native scalar set. Each literal is evaluated once
// and its runtime identity bound to the host type.
var nativeProbes = []struct {
	expr string
	host reflect.Type
}{
	{"1", intType},
	{"1.0", float64Type},
	{"True", boolType},
	{"''", stringType},
}

// Dispatcher builds the host wrapper for a non-native foreign value.
// Bridge is the runtime that owns the references handed to Marshal.
type Dispatcher interface {
	BuildProxy(host reflect.Type, h *Handle) (Binding, error)
	Bridge() Bridge
}

// Registry maps runtime type identities to host types.
// Native scalar identities are fixed at construction and never change.
// A registry holds no references, so binders over different runtimes of
// the same kind may share one.
type Registry struct {
	natives   map[reflect.Type]engine.TypeID
	nativeIDs map[engine.TypeID]reflect.Type
	mappings  map[engine.TypeID]reflect.Type
	mu        sync.RWMutex
}

// NewRegistry probes the runtime for its native scalar identities.
func NewRegistry(bridge Bridge) (*Registry, error) {
	r := &Registry{
		natives:   make(map[reflect.Type]engine.TypeID, len(nativeProbes)),
		nativeIDs: make(map[engine.TypeID]reflect.Type, len(nativeProbes)),
		mappings:  make(map[engine.TypeID]reflect.Type),
	}

	for _, p := range nativeProbes {
		ref, err := bridge.Eval(p.expr)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseStartup, errors.KindForeignInvocation, err,
				fmt.Sprintf("probe native type %s", p.host))
		}
		id, err := bridge.TypeOf(ref)
		_ = bridge.Release(ref)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseStartup, errors.KindForeignInvocation, err,
				fmt.Sprintf("probe native type %s", p.host))
		}
		r.natives[p.host] = id
		r.nativeIDs[id] = p.host
	}

	return r, nil
}

// IsNative reports whether t is one of the native scalar host types.
func (r *Registry) IsNative(t reflect.Type) bool {
	_, ok := r.natives[t]
	return ok
}

// NativeIdentity returns the runtime identity seeded for a native host type.
func (r *Registry) NativeIdentity(t reflect.Type) (engine.TypeID, bool) {
	id, ok := r.natives[t]
	return id, ok
}

// HasMapping reports whether id is bound to a host type usable as host.
func (r *Registry) HasMapping(host reflect.Type, id engine.TypeID) bool {
	if t, ok := r.nativeIDs[id]; ok {
		return t.AssignableTo(host)
	}

	r.mu.RLock()
	t, ok := r.mappings[id]
	r.mu.RUnlock()

	return ok && t.AssignableTo(host)
}

// Lookup returns the host type registered for id.
func (r *Registry) Lookup(id engine.TypeID) (reflect.Type, bool) {
	if t, ok := r.nativeIDs[id]; ok {
		return t, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.mappings[id]
	return t, ok
}

// AddMapping binds id to host, replacing any previous binding of id.
func (r *Registry) AddMapping(host reflect.Type, id engine.TypeID) error {
	if err := r.checkConflict(host, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(host, id)
	return nil
}

// EnsureMapping binds id to host unless id is already bound to a type
// usable as host. The check and the write happen under one lock, so
// concurrent callers observe a single consistent mapping.
func (r *Registry) EnsureMapping(host reflect.Type, id engine.TypeID) (bool, error) {
	if err := r.checkConflict(host, id); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.mappings[id]; ok && t.AssignableTo(host) {
		return false, nil
	}
	r.add(host, id)
	return true, nil
}

// add requires r.mu held for writing.
func (r *Registry) add(host reflect.Type, id engine.TypeID) {
	if prev, ok := r.mappings[id]; ok && prev != host {
		Logger().Warn("overwriting type mapping",
			zap.String("foreign", string(id)),
			zap.Stringer("previous", prev),
			zap.Stringer("host", host))
	}
	r.mappings[id] = host
	Logger().Debug("type mapping registered",
		zap.String("foreign", string(id)),
		zap.Stringer("host", host))
}

func (r *Registry) checkConflict(host reflect.Type, id engine.TypeID) error {
	if host == nil {
		return errors.InvalidInput(errors.PhaseRegister, "nil host type")
	}
	if owner, ok := r.nativeIDs[id]; ok {
		return errors.MappingConflict(host.String(), string(id), owner.String())
	}
	if nid, ok := r.natives[host]; ok {
		return errors.New(errors.PhaseRegister, errors.KindMappingConflict).
			HostType(host.String()).
			ForeignType(string(id)).
			Detail("native host type is bound to %s", nid).
			Build()
	}
	return nil
}

// Mappings returns a snapshot of the custom mappings.
func (r *Registry) Mappings() map[engine.TypeID]reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[engine.TypeID]reflect.Type, len(r.mappings))
	for id, t := range r.mappings {
		out[id] = t
	}
	return out
}

// ResolveHostType picks the host type that wraps ref, a reference owned
// by bridge, when a value of the declared type is expected.
func (r *Registry) ResolveHostType(bridge Bridge, declared reflect.Type, ref engine.Ref) (reflect.Type, error) {
	if declared == nil {
		declared = anyType
	}
	if r.IsNative(declared) {
		return declared, nil
	}
	id, err := bridge.TypeOf(ref)
	if err != nil {
		return nil, err
	}
	return r.resolve(declared, id)
}

func (r *Registry) resolve(declared reflect.Type, id engine.TypeID) (reflect.Type, error) {
	t, ok := r.Lookup(id)
	if !ok {
		return nil, errors.UnresolvedMapping(declared.String(), string(id), "no host type registered")
	}
	if !t.AssignableTo(declared) {
		return nil, errors.UnresolvedMapping(declared.String(), string(id),
			fmt.Sprintf("registered host type %s does not satisfy the declared type", t))
	}
	return t, nil
}

// Marshal converts ref into a host value of the declared type. ref is
// owned by d's bridge and Marshal takes ownership of it: native values are
// extracted and the reference released, anything else ends up owned by the
// proxy d builds. On error the reference is released.
func (r *Registry) Marshal(d Dispatcher, declared reflect.Type, ref engine.Ref) (any, error) {
	bridge := d.Bridge()
	if declared == nil {
		declared = anyType
	}
	if r.IsNative(declared) {
		return extract(bridge, declared, ref)
	}

	id, err := bridge.TypeOf(ref)
	if err != nil {
		release(bridge, ref)
		return nil, err
	}
	if id == engine.TypeNone && declared.Kind() == reflect.Interface {
		release(bridge, ref)
		return nil, nil
	}

	host, err := r.resolve(declared, id)
	if err != nil {
		release(bridge, ref)
		return nil, err
	}
	if r.IsNative(host) {
		return extract(bridge, host, ref)
	}

	h := NewHandle(bridge, ref, id)
	b, err := d.BuildProxy(host, h)
	if err != nil {
		_ = h.Release()
		return nil, err
	}
	return b, nil
}

func extract(bridge Bridge, host reflect.Type, ref engine.Ref) (any, error) {
	defer release(bridge, ref)

	switch host {
	case stringType:
		return bridge.AsString(ref)
	case intType:
		n, err := bridge.AsInt(ref)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case boolType:
		return bridge.AsBool(ref)
	case float64Type:
		return bridge.AsFloat(ref)
	}
	return nil, errors.TypeMismatch(errors.PhaseMarshal, nil, host.String(), "")
}

func release(bridge Bridge, ref engine.Ref) {
	if err := bridge.Release(ref); err != nil {
		Logger().Debug("release failed", zap.Error(err))
	}
}

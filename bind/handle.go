package bind

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

// Handle owns one foreign reference. It is released exactly once; every
// operation after that fails with a lifecycle error. A nil *Handle behaves
// as a released one.
type Handle struct {
	bridge Bridge
	typeID engine.TypeID
	ref    engine.Ref
	seq    uint64
	mu     sync.Mutex
	closed bool
}

var handleSeq atomic.Uint64

// NewHandle takes ownership of ref.
func NewHandle(bridge Bridge, ref engine.Ref, typeID engine.TypeID) *Handle {
	return &Handle{
		bridge: bridge,
		ref:    ref,
		typeID: typeID,
		seq:    handleSeq.Add(1),
	}
}

// TypeID returns the runtime type identity observed when the handle was
// created.
func (h *Handle) TypeID() engine.TypeID {
	if h == nil {
		return ""
	}
	return h.typeID
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	if h == nil {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Ref returns the raw reference. The reference is only guaranteed to name
// this object while the handle is live; calls on the handle hold it for
// their whole duration instead.
func (h *Handle) Ref() (engine.Ref, error) {
	if h == nil {
		return 0, errors.UseAfterRelease(errors.PhaseCall, "")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errors.UseAfterRelease(errors.PhaseCall, string(h.typeID))
	}
	return h.ref, nil
}

// use runs fn with the live reference. The handle stays locked for the
// duration, so a concurrent Release waits until fn returns.
func (h *Handle) use(phase errors.Phase, fn func(engine.Ref) error) error {
	if h == nil {
		return errors.UseAfterRelease(phase, "")
	}
	return withArgs(phase, h.bridge, h, nil, func(ref engine.Ref, _ []any) error {
		return fn(ref)
	})
}

// Release drops the reference. A second call returns a lifecycle error.
func (h *Handle) Release() error {
	if h == nil {
		return errors.UseAfterRelease(errors.PhaseRelease, "")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.DoubleRelease(string(h.typeID))
	}
	h.closed = true

	Logger().Debug("handle released",
		zap.String("type", string(h.typeID)),
		zap.Uint32("ref", uint32(h.ref)))
	return h.bridge.Release(h.ref)
}

// Str returns the runtime's string form of the object.
func (h *Handle) Str() (string, error) {
	var s string
	err := h.use(errors.PhaseCall, func(ref engine.Ref) error {
		var err error
		s, err = h.bridge.Str(ref)
		return err
	})
	return s, err
}

// Equal compares the object with other using the runtime's equality.
// other may be a Binding, a *Handle or a plain Go value.
func (h *Handle) Equal(other any) (bool, error) {
	if h == nil {
		return false, errors.UseAfterRelease(errors.PhaseCall, "")
	}
	var eq bool
	err := withArgs(errors.PhaseCall, h.bridge, h, []any{other}, func(ref engine.Ref, raw []any) error {
		var err error
		eq, err = h.bridge.Equal(ref, raw[0])
		return err
	})
	return eq, err
}

// Hash returns the runtime's hash of the object.
func (h *Handle) Hash() (uint32, error) {
	var sum uint32
	err := h.use(errors.PhaseCall, func(ref engine.Ref) error {
		var err error
		sum, err = h.bridge.Hash(ref)
		return err
	})
	return sum, err
}

// withArgs runs fn with the reference of recv, which may be nil, and with
// args lowered to raw references. recv and every handle among the
// arguments stay locked until fn returns, so none of them can be released
// and its reference reused while the runtime is using it. Handles are
// locked in creation order, which keeps concurrent calls on overlapping
// handles from deadlocking.
func withArgs(phase errors.Phase, bridge Bridge, recv *Handle, args []any, fn func(engine.Ref, []any) error) error {
	var hs []*Handle
	if recv != nil {
		hs = append(hs, recv)
	}
	hs = argHandles(args, hs)
	for _, h := range hs {
		if h.bridge != bridge {
			return errors.New(phase, errors.KindInvalidInput).
				ForeignType(string(h.typeID)).
				Detail("argument belongs to another runtime").
				Build()
		}
	}

	unlock, err := lockHandles(phase, hs)
	if err != nil {
		return err
	}
	defer unlock()

	var ref engine.Ref
	if recv != nil {
		ref = recv.ref
	}
	var raw []any
	if len(args) > 0 {
		raw = make([]any, len(args))
		for i, a := range args {
			raw[i] = lowerArg(a)
		}
	}
	return fn(ref, raw)
}

// lockHandles locks each distinct handle once, in creation order. It
// fails with a lifecycle error, holding nothing, if any is released.
func lockHandles(phase errors.Phase, hs []*Handle) (func(), error) {
	slices.SortFunc(hs, func(a, b *Handle) int { return cmp.Compare(a.seq, b.seq) })
	hs = slices.Compact(hs)

	unlock := func(held []*Handle) {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
	}
	for i, h := range hs {
		h.mu.Lock()
		if h.closed {
			unlock(hs[:i+1])
			return nil, errors.UseAfterRelease(phase, string(h.typeID))
		}
	}
	return func() { unlock(hs) }, nil
}

// argHandles appends the handles referenced by args to out. Bindings
// without a handle pass as None and are skipped.
func argHandles(args []any, out []*Handle) []*Handle {
	for _, a := range args {
		switch v := a.(type) {
		case Binding:
			if h := v.Unwrap(); h != nil {
				out = append(out, h)
			}
		case *Handle:
			if v != nil {
				out = append(out, v)
			}
		case []any:
			out = argHandles(v, out)
		case map[string]any:
			for _, e := range v {
				out = argHandles([]any{e}, out)
			}
		}
	}
	return out
}

// lowerArg replaces bindings and handles with their raw references so
// that host wrappers never cross into the runtime. The handles must be
// held by the caller.
func lowerArg(a any) any {
	switch v := a.(type) {
	case Binding:
		if h := v.Unwrap(); h != nil {
			return h.ref
		}
		return nil
	case *Handle:
		if v != nil {
			return v.ref
		}
		return nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = lowerArg(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = lowerArg(e)
		}
		return out
	}
	return a
}

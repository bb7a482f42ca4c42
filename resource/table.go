package resource

import (
	"sync"
)

// UnifiedTable implements the Table interface using a LocalBackend for storage.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []subscription
	nextSub   uint64
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

type subscription struct {
	o  Observer
	id uint64
}

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *UnifiedTable) Insert(tag string, value any) (Handle, error) {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0, ErrClosed
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(tag, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventAcquired,
		Handle: handle,
		Tag:    tag,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTagged retrieves a value only if it was stored with the expected tag.
func (t *UnifiedTable) GetTagged(handle Handle, tag string) (any, bool) {
	actual, ok := t.backend.Tag(handle)
	if !ok || actual != tag {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Tag returns the tag of a live handle.
func (t *UnifiedTable) Tag(handle Handle) (string, bool) {
	return t.backend.Tag(handle)
}

// Remove drops a reference and returns (value, true) if found.
// A second Remove of the same handle returns (nil, false).
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	tag, _ := t.backend.Tag(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventReleased,
		Handle: handle,
		Tag:    tag,
		Value:  value,
	})

	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) func() {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.observers = append(t.observers, subscription{o: o, id: id})

	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of live references.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Counts returns the number of live references per tag.
func (t *UnifiedTable) Counts() map[string]int {
	counts := make(map[string]int)
	t.backend.Each(func(_ Handle, tag string, _ any) bool {
		counts[tag]++
		return true
	})
	return counts
}

// Clear drops all references.
func (t *UnifiedTable) Clear() {
	// Collect handles first to avoid holding the backend lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, _ string, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close releases all references and stops accepting inserts.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, s := range t.observers {
		s.o.OnResourceEvent(e)
	}
}

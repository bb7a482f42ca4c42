package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a reference lifecycle notification.
type EventType uint8

const (
	EventAcquired EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventAcquired:
		return "acquired"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a reference lifecycle event.
type Event struct {
	Value  any
	Tag    string
	Handle Handle
	Type   EventType
}

// Observer receives notifications about reference lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Backend provides the underlying storage mechanism for references.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(tag string, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Tag returns the tag a value was stored with.
	Tag(handle Handle) (string, bool)

	// Drop removes a value and returns (value, true) if it was live.
	Drop(handle Handle) (any, bool)

	// Close releases all values held by the backend.
	Close() error
}

// Table manages references with tags and observer support.
type Table interface {
	// Insert adds a value and returns its handle.
	Insert(tag string, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTagged retrieves a value only if it was stored with the expected tag.
	GetTagged(handle Handle, tag string) (any, bool)

	// Remove drops a reference and returns (value, true) if found.
	Remove(handle Handle) (any, bool)

	// Subscribe adds an observer for lifecycle events and returns a
	// function that removes it again.
	Subscribe(Observer) (cancel func())

	// Len returns the number of live references.
	Len() int

	// Counts returns the number of live references per tag.
	Counts() map[string]int

	// Clear drops all references.
	Clear()

	// Close releases all references and stops accepting inserts.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup on release.
type Dropper interface {
	Drop()
}

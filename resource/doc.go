// Package resource tracks references handed out across the foreign boundary.
//
// Every foreign object the engine exposes to Go is stored in a table and
// addressed by an integer Handle. The table is the single owner of the
// underlying value: a Handle stays valid until it is removed, and removal
// happens exactly once.
//
// # Handle Table
//
// The UnifiedTable maps integer handles to values, tagged with the foreign
// type identity of the value:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	h, err := table.Insert("pathlib.PosixPath", value)
//
//	// Retrieve value by handle
//	value, ok := table.Get(h)
//
//	// Remove and get value
//	value, ok := table.Remove(h)
//
// Handle 0 is never issued. Released handles go to a free list and may be
// reissued later, so callers must not keep a Handle after removing it.
//
// # Observers
//
// Register observers to track reference lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventAcquired:
//	        log.Printf("ref %d acquired (%s)", e.Handle, e.Tag)
//	    case resource.EventReleased:
//	        log.Printf("ref %d released (%s)", e.Handle, e.Tag)
//	    }
//	}))
//
// # Leak Accounting
//
// Len reports live references and Counts breaks them down by tag. Tests use
// both to assert that every acquired reference was released.
//
// Values implementing Dropper are notified when removed or when the table is
// closed.
package resource

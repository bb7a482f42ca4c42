package bind

import (
	"sync"

	"github.com/wippyai/starbind/engine"
)

var defaultBinder = sync.OnceValues(func() (*Binder, error) {
	return NewBinder(engine.Default())
})

// Default returns the process-wide binder over engine.Default().
func Default() (*Binder, error) {
	return defaultBinder()
}

// RegisterDefault registers T with the default binder.
func RegisterDefault[T Binding](iface Interface) error {
	b, err := Default()
	if err != nil {
		return err
	}
	return Register[T](b, iface)
}

// NewInstance constructs T through the default binder.
func NewInstance[T Binding](args ...any) (T, error) {
	b, err := Default()
	if err != nil {
		var zero T
		return zero, err
	}
	return New[T](b, args...)
}

// StaticOf returns the façade of T through the default binder.
func StaticOf[T Binding]() (T, error) {
	b, err := Default()
	if err != nil {
		var zero T
		return zero, err
	}
	return Static[T](b)
}

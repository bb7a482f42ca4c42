package bind

import (
	"sync"

	"go.uber.org/multierr"
)

// Scope releases the bindings added to it when closed, in reverse order of
// addition. Bindings already closed by their owner are skipped.
//
//	s := bind.NewScope()
//	defer s.Close()
//	p, err := bind.Keep[Path](s)(bind.New[Path](b, "./x"))
type Scope struct {
	items []Binding
	mu    sync.Mutex
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add registers b for release when the scope closes.
func (s *Scope) Add(b Binding) {
	if b == nil || b.Unwrap() == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, b)
}

// Len returns the number of bindings held by the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close releases every binding still live and combines their errors.
func (s *Scope) Close() error {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.mu.Unlock()

	var err error
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Unwrap().Released() {
			continue
		}
		err = multierr.Append(err, items[i].Close())
	}
	return err
}

// Keep returns a function that adds a successfully produced binding to s
// and passes the result through.
func Keep[T Binding](s *Scope) func(T, error) (T, error) {
	return func(v T, err error) (T, error) {
		if err == nil && any(v) != nil {
			s.Add(v)
		}
		return v, err
	}
}

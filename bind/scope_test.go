package bind

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/starbind/errors"
)

func TestScope_Close(t *testing.T) {
	b, in := newTestBinder(t)
	base := in.Live()

	s := NewScope()
	keep := Keep[Path](s)

	a, err := keep(New[Path](b, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := keep(a.JoinPath("b")); err != nil {
		t.Fatal(err)
	}
	c, err := keep(New[Path](b, "c"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	// closed early by its owner, skipped by the scope
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.Unwrap().Released() {
		t.Error("scope did not release its bindings")
	}
	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestScope_SkipsFailures(t *testing.T) {
	b, _ := newTestBinder(t)
	s := NewScope()

	// Square needs a side
	if _, err := Keep[Square](s)(New[Square](b)); !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Fatalf("error = %v, want foreign invocation", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	s.Add(nil)
	if s.Len() != 0 {
		t.Errorf("Len after Add(nil) = %d", s.Len())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close of an empty scope = %v", err)
	}
}

package bind

import (
	stderrors "errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

var (
	shapeType  = reflect.TypeFor[Shape]()
	squareType = reflect.TypeFor[Square]()
	pathType   = reflect.TypeFor[Path]()
)

func TestRegistry_NativeIdentities(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	want := map[reflect.Type]engine.TypeID{
		intType:     "int",
		float64Type: "float",
		boolType:    "bool",
		stringType:  "string",
	}
	for host, id := range want {
		got, ok := r.NativeIdentity(host)
		if !ok || got != id {
			t.Errorf("NativeIdentity(%s) = %q, %v; want %q", host, got, ok, id)
		}
		if !r.IsNative(host) {
			t.Errorf("IsNative(%s) = false", host)
		}
		if !r.HasMapping(host, id) {
			t.Errorf("HasMapping(%s, %s) = false", host, id)
		}
		if !r.HasMapping(anyType, id) {
			t.Errorf("HasMapping(any, %s) = false", id)
		}
		if r.HasMapping(shapeType, id) {
			t.Errorf("HasMapping(Shape, %s) = true", id)
		}
	}
	if r.IsNative(reflect.TypeFor[int64]()) {
		t.Error("int64 should not be a native host type")
	}
}

func TestRegistry_AddMapping(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	if r.HasMapping(squareType, "shapes.Square") {
		t.Fatal("mapping present before registration")
	}
	if err := r.AddMapping(squareType, "shapes.Square"); err != nil {
		t.Fatalf("AddMapping failed: %v", err)
	}
	if !r.HasMapping(squareType, "shapes.Square") {
		t.Error("HasMapping = false after AddMapping")
	}
	// a Square satisfies Shape
	if !r.HasMapping(shapeType, "shapes.Square") {
		t.Error("HasMapping(Shape) should accept a Square mapping")
	}

	// last registration wins
	if err := r.AddMapping(pathType, "shapes.Square"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if r.HasMapping(squareType, "shapes.Square") {
		t.Error("HasMapping should be false after the mapping was overwritten")
	}
	if diff := cmp.Diff(map[engine.TypeID]string{"shapes.Square": "bind.Path"}, mappingNames(r)); diff != "" {
		t.Errorf("Mappings mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_NativeConflict(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	for _, id := range []engine.TypeID{"int", "float", "bool", "string"} {
		for _, host := range []reflect.Type{shapeType, intType, reflect.TypeFor[int64]()} {
			err := r.AddMapping(host, id)
			if !stderrors.Is(err, errors.ErrMappingConflict) {
				t.Errorf("AddMapping(%s, %s) error = %v, want mapping conflict", host, id, err)
			}
		}
	}
	if err := r.AddMapping(stringType, "shapes.Square"); !stderrors.Is(err, errors.ErrMappingConflict) {
		t.Errorf("native host over custom identity error = %v, want mapping conflict", err)
	}
	if got, _ := r.NativeIdentity(intType); got != "int" {
		t.Errorf("native identity changed to %q", got)
	}
	if len(r.Mappings()) != 0 {
		t.Errorf("Mappings = %v, want none", r.Mappings())
	}
}

func TestRegistry_EnsureMapping(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	added, err := r.EnsureMapping(squareType, "shapes.Square")
	if err != nil || !added {
		t.Fatalf("EnsureMapping = %v, %v; want added", added, err)
	}
	// an existing Square mapping already satisfies Shape
	added, err = r.EnsureMapping(shapeType, "shapes.Square")
	if err != nil || added {
		t.Errorf("EnsureMapping(Shape) = %v, %v; want kept", added, err)
	}
	if got, _ := r.Lookup("shapes.Square"); got != squareType {
		t.Errorf("Lookup = %v, want Square", got)
	}
	// an unrelated mapping is replaced
	added, err = r.EnsureMapping(pathType, "shapes.Square")
	if err != nil || !added {
		t.Errorf("EnsureMapping(Path) = %v, %v; want replaced", added, err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.EnsureMapping(squareType, "shapes.Square")
		}()
		go func() {
			defer wg.Done()
			r.HasMapping(shapeType, "shapes.Square")
			r.Mappings()
		}()
	}
	wg.Wait()

	if got, _ := r.Lookup("shapes.Square"); got != squareType {
		t.Errorf("Lookup = %v, want Square", got)
	}
}

func TestRegistry_Marshal_Natives(t *testing.T) {
	b, in := newTestBinder(t)
	r := b.Registry()
	base := in.Live()

	tests := []struct {
		expr     string
		declared reflect.Type
		want     any
	}{
		{"'hello'", stringType, "hello"},
		{"42", intType, 42},
		{"False", boolType, false},
		{"2.5", float64Type, 2.5},
		{"7", anyType, 7},
		{"'x'", nil, "x"},
	}
	for _, tt := range tests {
		ref, err := in.Eval(tt.expr)
		if err != nil {
			t.Fatalf("Eval(%q) failed: %v", tt.expr, err)
		}
		got, err := r.Marshal(b, tt.declared, ref)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("Marshal(%s) = %#v, want %#v", tt.expr, got, tt.want)
		}
	}

	ref, _ := in.Eval("'not a number'")
	if _, err := r.Marshal(b, intType, ref); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("Marshal(string as int) error = %v, want type mismatch", err)
	}

	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

func TestRegistry_Marshal_Unresolved(t *testing.T) {
	b, in := newTestBinder(t)
	r := b.Registry()
	base := in.Live()

	ref, err := in.Eval("[1, 2]")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Marshal(b, shapeType, ref); !stderrors.Is(err, errors.ErrUnresolvedMapping) {
		t.Errorf("Marshal(list) error = %v, want unresolved mapping", err)
	}

	none, _ := in.Eval("None")
	got, err := r.Marshal(b, shapeType, none)
	if err != nil || got != nil {
		t.Errorf("Marshal(None) = %v, %v; want nil", got, err)
	}

	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

func TestRegistry_ResolveHostType(t *testing.T) {
	b, _ := newTestBinder(t)
	r := b.Registry()

	sq, err := New[Square](b, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer sq.Close()
	ref, _ := sq.Unwrap().Ref()

	got, err := r.ResolveHostType(b.Bridge(), shapeType, ref)
	if err != nil || got != squareType {
		t.Errorf("ResolveHostType(Shape) = %v, %v; want Square", got, err)
	}
	if _, err := r.ResolveHostType(b.Bridge(), pathType, ref); !stderrors.Is(err, errors.ErrUnresolvedMapping) {
		t.Errorf("ResolveHostType(Path) error = %v, want unresolved mapping", err)
	}
	if got, err := r.ResolveHostType(b.Bridge(), intType, ref); err != nil || got != intType {
		t.Errorf("ResolveHostType(int) = %v, %v; want int", got, err)
	}
}

func TestRegistry_ConcurrentConstruction(t *testing.T) {
	b, in := newTestBinder(t)
	base := in.Live()

	var g errgroup.Group
	for i := 1; i <= 16; i++ {
		g.Go(func() error {
			sq, err := New[Square](b, i)
			if err != nil {
				return err
			}
			return sq.Close()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(map[engine.TypeID]string{"shapes.Square": "bind.Square"}, mappingNames(b.Registry())); diff != "" {
		t.Errorf("Mappings mismatch (-want +got):\n%s", diff)
	}
	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

func mappingNames(r *Registry) map[engine.TypeID]string {
	out := make(map[engine.TypeID]string)
	for id, t := range r.Mappings() {
		out[id] = t.String()
	}
	return out
}

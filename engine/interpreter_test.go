package engine

import (
	stderrors "errors"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/starbind/errors"
)

func newTestInterpreter(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	in := New(append([]Option{WithSearchPath("testdata")}, opts...)...)
	t.Cleanup(func() { in.Close() })
	return in
}

func mustImport(t *testing.T, in *Interpreter, name string) Ref {
	t.Helper()
	ref, err := in.Import(name)
	if err != nil {
		t.Fatalf("Import(%q) failed: %v", name, err)
	}
	return ref
}

func TestStartup_Idempotent(t *testing.T) {
	Startup()
	Startup()
	if !Started() {
		t.Fatal("Started() = false after Startup")
	}
}

func TestEval_NativeTypeIdentities(t *testing.T) {
	in := newTestInterpreter(t)

	tests := []struct {
		expr string
		want TypeID
	}{
		{"1", "int"},
		{"1.0", "float"},
		{"True", "bool"},
		{"''", "string"},
		{"None", TypeNone},
		{"[1, 2]", "list"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ref, err := in.Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval failed: %v", err)
			}
			defer in.Release(ref)

			got, err := in.TypeOf(ref)
			if err != nil {
				t.Fatalf("TypeOf failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("TypeOf(%s) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	in := newTestInterpreter(t)

	eval := func(expr string) Ref {
		ref, err := in.Eval(expr)
		if err != nil {
			t.Fatalf("Eval(%q) failed: %v", expr, err)
		}
		t.Cleanup(func() { in.Release(ref) })
		return ref
	}

	if s, err := in.AsString(eval("'hello'")); err != nil || s != "hello" {
		t.Errorf("AsString = %q, %v", s, err)
	}
	if n, err := in.AsInt(eval("-42")); err != nil || n != -42 {
		t.Errorf("AsInt = %d, %v", n, err)
	}
	if b, err := in.AsBool(eval("True")); err != nil || !b {
		t.Errorf("AsBool = %v, %v", b, err)
	}
	if f, err := in.AsFloat(eval("2.5")); err != nil || f != 2.5 {
		t.Errorf("AsFloat = %v, %v", f, err)
	}
	if f, err := in.AsFloat(eval("3")); err != nil || f != 3 {
		t.Errorf("AsFloat(int) = %v, %v", f, err)
	}

	if _, err := in.AsInt(eval("1.5")); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("AsInt(float) error = %v, want type mismatch", err)
	}
	if _, err := in.AsBool(eval("1")); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("AsBool(int) error = %v, want type mismatch", err)
	}
	if _, err := in.AsInt(eval("1 << 80")); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("AsInt(big) error = %v, want type mismatch", err)
	}
}

func TestStr(t *testing.T) {
	in := newTestInterpreter(t)

	tests := []struct {
		expr string
		want string
	}{
		{"'plain'", "plain"},
		{"12", "12"},
		{"[1, 'a']", `[1, "a"]`},
		{"None", "None"},
	}
	for _, tt := range tests {
		ref, err := in.Eval(tt.expr)
		if err != nil {
			t.Fatalf("Eval(%q) failed: %v", tt.expr, err)
		}
		got, err := in.Str(ref)
		if err != nil {
			t.Fatalf("Str failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("Str(%s) = %q, want %q", tt.expr, got, tt.want)
		}
		in.Release(ref)
	}
}

func TestCall_Math(t *testing.T) {
	in := newTestInterpreter(t)
	math := mustImport(t, in, "math")

	ref, err := in.Call(math, "sqrt", []any{4.0})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	f, err := in.AsFloat(ref)
	if err != nil {
		t.Fatalf("AsFloat failed: %v", err)
	}
	if f != 2.0 {
		t.Fatalf("sqrt(4.0) = %v, want 2.0", f)
	}
}

func TestImport_Cached(t *testing.T) {
	in := newTestInterpreter(t)

	a := mustImport(t, in, "shapes")
	b := mustImport(t, in, "shapes")
	if a == b {
		t.Fatal("each Import should return a new reference")
	}
	eq, err := in.Equal(a, b)
	if err != nil {
		t.Fatalf("Equal failed: %v", err)
	}
	if !eq {
		t.Fatal("imports of the same module should be the same object")
	}
}

func TestImport_Errors(t *testing.T) {
	in := newTestInterpreter(t,
		WithSource("cycle_a", `load("cycle_b.star", "b")
a = 1`),
		WithSource("cycle_b", `load("cycle_a.star", "a")
b = 1`),
		WithSource("broken", "def f(:\n"),
	)

	if _, err := in.Import("no_such_module"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing module error = %v, want not found", err)
	}
	if _, err := in.Import("cycle_a"); !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Errorf("cycle error = %v, want foreign invocation", err)
	}
	_, err := in.Import("broken")
	if !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Fatalf("syntax error = %v, want foreign invocation", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Phase != errors.PhaseImport {
		t.Errorf("syntax error phase = %v, want import", err)
	}
}

func TestGetAttr_Suggestion(t *testing.T) {
	in := newTestInterpreter(t)
	math := mustImport(t, in, "math")

	_, err := in.GetAttr(math, "sqr")
	if !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Fatalf("error = %v, want foreign invocation", err)
	}
	if !strings.Contains(err.Error(), "did you mean .sqrt") {
		t.Errorf("error %q should suggest sqrt", err)
	}

	if got := suggest("zzzzzz", []string{"sqrt", "pow"}); got != "" {
		t.Errorf("suggest for unrelated name = %q, want none", got)
	}
}

func TestRelease_Lifecycle(t *testing.T) {
	in := newTestInterpreter(t)
	base := in.Live()

	ref, err := in.Eval("'x'")
	if err != nil {
		t.Fatal(err)
	}
	if in.Live() != base+1 {
		t.Fatalf("Live() = %d, want %d", in.Live(), base+1)
	}

	if err := in.Release(ref); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := in.Release(ref); !stderrors.Is(err, errors.ErrLifecycle) {
		t.Errorf("second Release error = %v, want lifecycle", err)
	}
	if _, err := in.Str(ref); !stderrors.Is(err, errors.ErrLifecycle) {
		t.Errorf("use after release error = %v, want lifecycle", err)
	}
	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

func TestArguments(t *testing.T) {
	in := newTestInterpreter(t)
	shapes := mustImport(t, in, "shapes")

	args := []any{
		nil, "s", true, 7, int8(1), int64(2), uint16(3), float32(0.5), 1.25,
		[]any{1, "two"}, map[string]any{"k": []any{1.0}},
	}
	for _, a := range args {
		ref, err := in.Call(shapes, "identity", []any{a})
		if err != nil {
			t.Fatalf("identity(%v) failed: %v", a, err)
		}
		eq, err := in.Equal(ref, a)
		if err != nil {
			t.Fatalf("Equal failed: %v", err)
		}
		if !eq {
			t.Errorf("identity(%#v) did not round trip", a)
		}
		in.Release(ref)
	}

	ints := []any{
		int(7), int8(7), int16(7), int32(7), int64(7),
		uint(7), uint8(7), uint16(7), uint32(7), uint64(7), uintptr(7),
	}
	for _, a := range ints {
		ref, err := in.Call(shapes, "identity", []any{a})
		if err != nil {
			t.Fatalf("identity(%T) failed: %v", a, err)
		}
		if n, err := in.AsInt(ref); err != nil || n != 7 {
			t.Errorf("identity(%T(7)) = %d, %v", a, n, err)
		}
		in.Release(ref)
	}

	if _, err := in.Call(shapes, "identity", []any{struct{}{}}); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("unsupported argument error = %v, want type mismatch", err)
	}
}

func TestValue(t *testing.T) {
	in := newTestInterpreter(t)

	ref, err := in.Eval(`{"a": [1, 2.5, "x", None], "b": True}`)
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Value(ref)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Value = %T, want map", v)
	}
	list, ok := m["a"].([]any)
	if !ok || len(list) != 4 || list[0] != int64(1) || list[1] != 2.5 || list[2] != "x" || list[3] != nil {
		t.Errorf("a = %#v", m["a"])
	}
	if m["b"] != true {
		t.Errorf("b = %#v", m["b"])
	}
}

func TestCall_ForeignFailure(t *testing.T) {
	in := newTestInterpreter(t)
	shapes := mustImport(t, in, "shapes")

	_, err := in.Call(shapes, "fail_with", []any{"boom"})
	if !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Fatalf("error = %v, want foreign invocation", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should carry the cause", err)
	}
	if stderrors.Unwrap(err) == nil {
		t.Error("foreign invocation error should wrap its cause")
	}
}

func TestScriptModule_Load(t *testing.T) {
	in := newTestInterpreter(t)
	solids := mustImport(t, in, "geometry.solids")

	cube, err := in.GetAttr(solids, "Cube")
	if err != nil {
		t.Fatal(err)
	}
	c, err := in.Invoke(cube, []any{3})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if id, _ := in.TypeOf(c); id != "geometry.solids.Cube" {
		t.Errorf("TypeOf = %q, want geometry.solids.Cube", id)
	}
	vol, err := in.Call(c, "volume", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := in.AsInt(vol); n != 27 {
		t.Errorf("volume = %d, want 27", n)
	}
}

func TestConcurrentCalls(t *testing.T) {
	in := newTestInterpreter(t)
	math := mustImport(t, in, "math")
	base := in.Live()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 20; j++ {
				ref, err := in.Call(math, "sqrt", []any{float64(j * j)})
				if err != nil {
					return err
				}
				f, err := in.AsFloat(ref)
				if err != nil {
					return err
				}
				if f != float64(j) {
					return stderrors.New("wrong result")
				}
				if err := in.Release(ref); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

func TestLiveByType(t *testing.T) {
	in := newTestInterpreter(t)
	mustImport(t, in, "math")
	mustImport(t, in, "time")

	if got := in.LiveByType()["module"]; got != 2 {
		t.Errorf("live modules = %d, want 2", got)
	}
	in.Close()
	if in.Live() != 0 {
		t.Errorf("Live() after Close = %d", in.Live())
	}
}

package bind

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/starbind/engine"
	"github.com/wippyai/starbind/errors"
)

func TestStatic_ModuleFacade(t *testing.T) {
	b, in := newTestBinder(t)
	base := in.Live()

	m, err := Static[Math](b)
	if err != nil {
		t.Fatalf("Static failed: %v", err)
	}
	if m.Unwrap().TypeID() != "module" {
		t.Errorf("facade type = %q, want module", m.Unwrap().TypeID())
	}

	got, err := m.Sqrt(4.0)
	if err != nil {
		t.Fatalf("Sqrt failed: %v", err)
	}
	if got != 2.0 {
		t.Errorf("Sqrt(4.0) = %v, want exactly 2.0", got)
	}
	if n, err := m.Floor(2.7); err != nil || n != 2 {
		t.Errorf("Floor(2.7) = %d, %v", n, err)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if in.Live() != base {
		t.Errorf("Live() = %d, want %d", in.Live(), base)
	}
}

type PathClass interface {
	Binding
	Cwd() (Path, error)
}

type pathClassProxy struct{ *Proxy }

func (c pathClassProxy) Cwd() (Path, error) { return Call[Path](c.Proxy, "Cwd") }

func TestStatic_ClassFacade(t *testing.T) {
	b, _ := newTestBinder(t)
	err := Register[PathClass](b, Interface{
		Class:   &ClassBinding{Module: "pathlib", Name: "Path"},
		Methods: Ops("Cwd", "cwd"),
		New:     func(p *Proxy) Binding { return pathClassProxy{p} },
	})
	if err != nil {
		t.Fatal(err)
	}

	cls, err := Static[PathClass](b)
	if err != nil {
		t.Fatalf("Static failed: %v", err)
	}
	defer cls.Close()
	if cls.Unwrap().TypeID() != "type" {
		t.Errorf("class facade type = %q, want type", cls.Unwrap().TypeID())
	}

	// nothing has bound pathlib.PosixPath yet
	if _, err := cls.Cwd(); !stderrors.Is(err, errors.ErrUnresolvedMapping) {
		t.Errorf("Cwd error = %v, want unresolved mapping", err)
	}

	p, err := New[Path](b, "x")
	if err != nil {
		t.Fatal(err)
	}
	p.Close()

	cwd, err := cls.Cwd()
	if err != nil {
		t.Fatalf("Cwd failed: %v", err)
	}
	defer cwd.Close()
	if ok, _ := cwd.IsAbsolute(); !ok {
		t.Errorf("Cwd = %s, want an absolute path", cwd)
	}
}

func TestStatic_NoFacade(t *testing.T) {
	b, _ := newTestBinder(t)

	p, err := Static[Plain](b)
	if err != nil || p != nil {
		t.Errorf("Static[Plain] = %v, %v; want zero value and no error", p, err)
	}
	if err := CheckFacade[Plain](b); !stderrors.Is(err, errors.ErrConfiguration) {
		t.Errorf("CheckFacade[Plain] error = %v, want configuration", err)
	}
	if err := CheckFacade[Math](b); err != nil {
		t.Errorf("CheckFacade[Math] = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	b, _ := newTestBinder(t)

	if _, err := New[Math](b); !stderrors.Is(err, errors.ErrConfiguration) {
		t.Errorf("New on a module binding error = %v, want configuration", err)
	}

	type Unregistered interface{ Binding }
	if _, err := New[Unregistered](b); !stderrors.Is(err, errors.ErrConfiguration) {
		t.Errorf("New on an unregistered interface error = %v, want configuration", err)
	}

	// Square takes one argument
	if _, err := New[Square](b); !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Errorf("bad construction error = %v, want foreign invocation", err)
	}

	type Missing interface{ Binding }
	if err := Register[Missing](b, Interface{Class: &ClassBinding{Module: "shapes", Name: "Circle"}}); err != nil {
		t.Fatal(err)
	}
	_, err := New[Missing](b)
	if !stderrors.Is(err, errors.ErrForeignInvocation) {
		t.Fatalf("missing class error = %v, want foreign invocation", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Phase != errors.PhaseAttribute {
		t.Errorf("missing class phase = %v, want attribute", err)
	}
}

func TestNew_SubclassVariance(t *testing.T) {
	b, _ := newTestBinder(t)

	sq, err := New[Square](b, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer sq.Close()

	// constructing the base class binds its own runtime type
	shape, err := New[Shape](b, "blob")
	if err != nil {
		t.Fatal(err)
	}
	defer shape.Close()
	if _, ok := shape.(Square); ok {
		t.Error("a Shape instance should not be a Square")
	}
	if area, _ := shape.Area(); area != 0 {
		t.Errorf("Area = %d", area)
	}

	want := map[string]string{"shapes.Shape": "bind.Shape", "shapes.Square": "bind.Square"}
	got := make(map[string]string)
	for id, name := range mappingNames(b.Registry()) {
		got[string(id)] = name
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Mappings mismatch (-want +got):\n%s", diff)
	}
}

type proxyOnly interface {
	Binding
}

type badResult interface {
	Binding
	Items() ([]string, error)
}

type noError interface {
	Binding
	Count() int
}

type twoMethods interface {
	Binding
	First() (string, error)
	Second() error
}

type twoProxy struct{ *Proxy }

func (p twoProxy) First() (string, error) { return Call[string](p.Proxy, "First") }
func (p twoProxy) Second() error          { return CallVoid(p.Proxy, "Second") }

func TestRegister_Validation(t *testing.T) {
	b, _ := newTestBinder(t)
	factory := func(p *Proxy) Binding { return twoProxy{p} }

	tests := []struct {
		name     string
		register func() error
	}{
		{"not an interface", func() error { return Register[*Proxy](b, Interface{}) }},
		{"class and module", func() error {
			return Register[proxyOnly](b, Interface{
				Class:  &ClassBinding{Module: "m", Name: "C"},
				Module: &ModuleBinding{Name: "m"},
			})
		}},
		{"empty class name", func() error {
			return Register[proxyOnly](b, Interface{Class: &ClassBinding{Module: "m"}})
		}},
		{"empty op", func() error {
			return Register[twoMethods](b, Interface{
				Methods: map[string]MethodBinding{"First": {Op: "first"}, "Second": {}},
				New:     factory,
			})
		}},
		{"unbound method", func() error {
			return Register[twoMethods](b, Interface{Methods: Ops("First", "first"), New: factory})
		}},
		{"unknown method", func() error {
			return Register[twoMethods](b, Interface{
				Methods: Ops("First", "first", "Second", "second", "Third", "third"),
				New:     factory,
			})
		}},
		{"unsupported result", func() error {
			return Register[badResult](b, Interface{Methods: Ops("Items", "items")})
		}},
		{"no error result", func() error {
			return Register[noError](b, Interface{Methods: Ops("Count", "count")})
		}},
		{"no factory", func() error {
			return Register[twoMethods](b, Interface{Methods: Ops("First", "first", "Second", "second")})
		}},
		{"wrong factory", func() error {
			return Register[twoMethods](b, Interface{
				Methods: Ops("First", "first", "Second", "second"),
				New:     func(p *Proxy) Binding { return p },
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.register()
			if !stderrors.Is(err, errors.ErrConfiguration) {
				t.Errorf("error = %v, want configuration", err)
			}
		})
	}

	err := Register[twoMethods](b, Interface{Methods: Ops("First", "first"), New: factory})
	var unbound *errors.UnboundMethodsError
	if !stderrors.As(err, &unbound) {
		t.Fatalf("error = %T, want *UnboundMethodsError", err)
	}
	if diff := cmp.Diff([]string{"Second"}, unbound.Methods); diff != "" {
		t.Errorf("unbound methods mismatch (-want +got):\n%s", diff)
	}

	if err := Register[twoMethods](b, Interface{Methods: Ops("First", "first", "Second", "second"), New: factory}); err != nil {
		t.Errorf("valid registration failed: %v", err)
	}
	if diff := cmp.Diff([]string{
		"bind.Math", "bind.Path", "bind.Plain", "bind.Shape", "bind.Shapes", "bind.Square", "bind.twoMethods",
	}, b.Interfaces()); diff != "" {
		t.Errorf("Interfaces mismatch (-want +got):\n%s", diff)
	}
}

func TestDefault(t *testing.T) {
	b1, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	b2, _ := Default()
	if b1 != b2 {
		t.Error("Default should return one binder")
	}

	if err := RegisterDefault[Math](Interface{
		Module:  &ModuleBinding{Name: "math"},
		Methods: Ops("Sqrt", "sqrt", "Floor", "floor"),
		New:     func(p *Proxy) Binding { return mathProxy{p} },
	}); err != nil {
		t.Fatal(err)
	}
	m, err := StaticOf[Math]()
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if got, _ := m.Sqrt(16); got != 4 {
		t.Errorf("Sqrt(16) = %v", got)
	}

	if _, err := NewInstance[Path](); !stderrors.Is(err, errors.ErrConfiguration) {
		t.Errorf("NewInstance of an unregistered interface error = %v, want configuration", err)
	}
}

func TestBinder_SharedRegistry(t *testing.T) {
	a, aIn := newTestBinder(t)

	in := engine.New(engine.WithSource("shapes", shapesSrc))
	t.Cleanup(func() { in.Close() })
	b, err := NewBinder(in, WithRegistry(a.Registry()))
	if err != nil {
		t.Fatal(err)
	}
	registerFixtures(t, b)

	aBase, base := aIn.Live(), in.Live()

	shapes, err := Static[Shapes](b)
	if err != nil {
		t.Fatal(err)
	}
	if s, err := shapes.EchoString("hello"); err != nil || s != "hello" {
		t.Errorf("EchoString = %q, %v", s, err)
	}

	sq, err := New[Square](b, 2)
	if err != nil {
		t.Fatal(err)
	}
	if area, err := sq.Area(); err != nil || area != 4 {
		t.Errorf("Area = %d, %v", area, err)
	}
	sq.Close()

	// the mapping recorded through b is visible to a
	if got, _ := a.Registry().Lookup("shapes.Square"); got != squareType {
		t.Errorf("Lookup = %v, want Square", got)
	}
	made, err := shapes.MakeSquare(3)
	if err != nil {
		t.Fatalf("MakeSquare failed: %v", err)
	}
	if area, _ := made.Area(); area != 9 {
		t.Errorf("Area = %d, want 9", area)
	}
	made.Close()

	// a binding of one runtime cannot be an argument in another
	foreign, err := New[Path](a, "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	_, err = shapes.Identity(foreign)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidInput {
		t.Errorf("cross-runtime argument error = %v, want invalid input", err)
	}
	foreign.Close()
	shapes.Close()

	if in.Live() != base || aIn.Live() != aBase {
		t.Errorf("Live() = %d and %d, want %d and %d", in.Live(), aIn.Live(), base, aBase)
	}
}

func TestBinder_LoggerResolvedAtUse(t *testing.T) {
	b, _ := newTestBinder(t)

	prev := Logger()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	if err := Register[proxyOnly](b, Interface{}); err != nil {
		t.Fatal(err)
	}
	sq, err := New[Square](b, 2)
	if err != nil {
		t.Fatal(err)
	}
	sq.Close()

	if logs.FilterMessage("interface registered").Len() != 1 {
		t.Errorf("binder did not log through the current package logger: %v", logs.All())
	}
	if logs.FilterMessage("type mapping registered").Len() != 1 {
		t.Errorf("registry did not log through the current package logger: %v", logs.All())
	}
}

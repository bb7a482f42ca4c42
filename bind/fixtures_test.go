package bind

import (
	"testing"

	"github.com/wippyai/starbind/engine"
)

const shapesSrc = `
def _shape_init(self, name):
    self.name = name

def _shape_area(self):
    return 0

Shape = klass("Shape", __init__ = _shape_init, area = _shape_area)

def _square_init(self, side):
    self.side = side
    self.name = "square"

def _square_area(self):
    return self.side * self.side

def _square_describe(self):
    return "square %d" % self.side

Square = klass("Square", base = Shape, __init__ = _square_init, area = _square_area, describe = _square_describe)

def make_square(side):
    return Square(side)

def identity(x):
    return x

def nothing():
    return None

def explode(msg):
    fail(msg)
`

type Path interface {
	Binding
	Absolute() (Path, error)
	IsAbsolute() (bool, error)
	JoinPath(part string) (Path, error)
	Exists() (bool, error)
}

type pathProxy struct{ *Proxy }

func (p pathProxy) Absolute() (Path, error)   { return Call[Path](p.Proxy, "Absolute") }
func (p pathProxy) IsAbsolute() (bool, error) { return Call[bool](p.Proxy, "IsAbsolute") }
func (p pathProxy) JoinPath(part string) (Path, error) {
	return Call[Path](p.Proxy, "JoinPath", part)
}
func (p pathProxy) Exists() (bool, error) { return Call[bool](p.Proxy, "Exists") }

type Math interface {
	Binding
	Sqrt(x float64) (float64, error)
	Floor(x float64) (int, error)
}

type mathProxy struct{ *Proxy }

func (m mathProxy) Sqrt(x float64) (float64, error) { return Call[float64](m.Proxy, "Sqrt", x) }
func (m mathProxy) Floor(x float64) (int, error)    { return Call[int](m.Proxy, "Floor", x) }

type Shape interface {
	Binding
	Area() (int, error)
}

type shapeProxy struct{ *Proxy }

func (s shapeProxy) Area() (int, error) { return Call[int](s.Proxy, "Area") }

type Square interface {
	Shape
	Describe() (string, error)
}

type squareProxy struct{ shapeProxy }

func (s squareProxy) Describe() (string, error) { return Call[string](s.Proxy, "Describe") }

type Shapes interface {
	Binding
	MakeSquare(side int) (Shape, error)
	Identity(x any) (any, error)
	EchoString(s string) (string, error)
	EchoInt(n int) (int, error)
	EchoBool(v bool) (bool, error)
	EchoFloat(f float64) (float64, error)
	Nothing() (Shape, error)
	Explode(msg string) error
}

type shapesProxy struct{ *Proxy }

func (s shapesProxy) MakeSquare(side int) (Shape, error) {
	return Call[Shape](s.Proxy, "MakeSquare", side)
}
func (s shapesProxy) Identity(x any) (any, error)        { return Call[any](s.Proxy, "Identity", x) }
func (s shapesProxy) EchoString(v string) (string, error) { return Call[string](s.Proxy, "EchoString", v) }
func (s shapesProxy) EchoInt(n int) (int, error)          { return Call[int](s.Proxy, "EchoInt", n) }
func (s shapesProxy) EchoBool(v bool) (bool, error)       { return Call[bool](s.Proxy, "EchoBool", v) }
func (s shapesProxy) EchoFloat(f float64) (float64, error) {
	return Call[float64](s.Proxy, "EchoFloat", f)
}
func (s shapesProxy) Nothing() (Shape, error)  { return Call[Shape](s.Proxy, "Nothing") }
func (s shapesProxy) Explode(msg string) error { return CallVoid(s.Proxy, "Explode", msg) }

// Plain has no façade binding at all.
type Plain interface {
	Binding
}

func newTestBinder(t *testing.T) (*Binder, *engine.Interpreter) {
	t.Helper()

	in := engine.New(engine.WithSource("shapes", shapesSrc))
	t.Cleanup(func() { in.Close() })

	b, err := NewBinder(in)
	if err != nil {
		t.Fatalf("NewBinder failed: %v", err)
	}
	registerFixtures(t, b)
	return b, in
}

func registerFixtures(t *testing.T, b *Binder) {
	t.Helper()

	register := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	register(Register[Path](b, Interface{
		Class:   &ClassBinding{Module: "pathlib", Name: "Path"},
		Methods: Ops("Absolute", "absolute", "IsAbsolute", "is_absolute", "JoinPath", "joinpath", "Exists", "exists"),
		New:     func(p *Proxy) Binding { return pathProxy{p} },
	}))
	register(Register[Math](b, Interface{
		Module:  &ModuleBinding{Name: "math"},
		Methods: Ops("Sqrt", "sqrt", "Floor", "floor"),
		New:     func(p *Proxy) Binding { return mathProxy{p} },
	}))
	register(Register[Shape](b, Interface{
		Class:   &ClassBinding{Module: "shapes", Name: "Shape"},
		Methods: Ops("Area", "area"),
		New:     func(p *Proxy) Binding { return shapeProxy{p} },
	}))
	register(Register[Square](b, Interface{
		Class:   &ClassBinding{Module: "shapes", Name: "Square"},
		Methods: Ops("Area", "area", "Describe", "describe"),
		New:     func(p *Proxy) Binding { return squareProxy{shapeProxy{p}} },
	}))
	register(Register[Shapes](b, Interface{
		Module: &ModuleBinding{Name: "shapes"},
		Methods: Ops(
			"MakeSquare", "make_square",
			"Identity", "identity",
			"EchoString", "identity",
			"EchoInt", "identity",
			"EchoBool", "identity",
			"EchoFloat", "identity",
			"Nothing", "nothing",
			"Explode", "explode",
		),
		New: func(p *Proxy) Binding { return shapesProxy{p} },
	}))
	register(Register[Plain](b, Interface{}))
}

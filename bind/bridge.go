package bind

import (
	"github.com/wippyai/starbind/engine"
)

// Bridge is the set of boundary primitives the core needs from the
// embedded runtime. *engine.Interpreter implements it.
type Bridge interface {
	Import(module string) (engine.Ref, error)
	GetAttr(ref engine.Ref, name string) (engine.Ref, error)
	Call(ref engine.Ref, op string, args []any) (engine.Ref, error)
	Invoke(ref engine.Ref, args []any) (engine.Ref, error)
	TypeOf(ref engine.Ref) (engine.TypeID, error)
	Str(ref engine.Ref) (string, error)
	Equal(ref engine.Ref, other any) (bool, error)
	Hash(ref engine.Ref) (uint32, error)
	AsString(ref engine.Ref) (string, error)
	AsInt(ref engine.Ref) (int64, error)
	AsBool(ref engine.Ref) (bool, error)
	AsFloat(ref engine.Ref) (float64, error)
	Eval(expr string) (engine.Ref, error)
	Release(ref engine.Ref) error
}

var _ Bridge = (*engine.Interpreter)(nil)

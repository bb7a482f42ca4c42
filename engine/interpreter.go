package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.uber.org/zap"

	"github.com/wippyai/starbind/errors"
	"github.com/wippyai/starbind/resource"
)

// gil guards every crossing into the runtime, across all interpreters.
var gil sync.Mutex

// Ref addresses one foreign object held by an interpreter.
type Ref = resource.Handle

// TypeID is the runtime type identity of a foreign object.
type TypeID string

const (
	TypeNone     TypeID = "NoneType"
	TypeModule   TypeID = "module"
	TypeClass    TypeID = "type"
	TypeFunction TypeID = "function"
	TypeBuiltin  TypeID = "builtin_function_or_method"
)

// Loader produces the value of a module the first time it is imported.
type Loader func(thread *starlark.Thread) (starlark.Value, error)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithSearchPath adds directories searched for <name>.star script modules.
func WithSearchPath(dirs ...string) Option {
	return func(in *Interpreter) {
		in.searchPath = append(in.searchPath, dirs...)
	}
}

// WithModule registers a module loader under name, replacing any builtin
// module of the same name.
func WithModule(name string, load Loader) Option {
	return func(in *Interpreter) {
		in.loaders[name] = load
	}
}

// WithSource registers a script module compiled from src.
func WithSource(name, src string) Option {
	return WithModule(name, func(thread *starlark.Thread) (starlark.Value, error) {
		return execModule(thread, name, name+".star", src)
	})
}

// WithLogger sets the interpreter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Interpreter) {
		in.log = l
	}
}

// Interpreter is one Starlark thread with its module cache and the table of
// references it has handed out.
type Interpreter struct {
	log         *zap.Logger
	refs        *resource.UnifiedTable
	thread      *starlark.Thread
	loaders     map[string]Loader
	modules     map[string]starlark.Value
	loading     map[string]bool
	predeclared starlark.StringDict
	id          string
	searchPath  []string
}

// New creates an interpreter. Startup is called if it has not run yet.
func New(opts ...Option) *Interpreter {
	Startup()

	in := &Interpreter{
		id:      uuid.NewString(),
		log:     Logger(),
		refs:    resource.NewTable(),
		loaders: builtinModules(),
		modules: make(map[string]starlark.Value),
		loading: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(in)
	}

	in.log = in.log.With(zap.String("interpreter", in.id))
	in.predeclared = starlark.StringDict{
		"klass":  starlark.NewBuiltin("klass", makeClass),
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	in.thread = &starlark.Thread{
		Name:  "starbind",
		Load:  in.load,
		Print: in.print,
	}
	in.thread.SetLocal(localPredeclared, in.predeclared)

	in.log.Debug("interpreter created", zap.Strings("search_path", in.searchPath))
	return in
}

var defaultInterpreter = sync.OnceValue(func() *Interpreter {
	var dirs []string
	if p := os.Getenv("STARBIND_PATH"); p != "" {
		dirs = filepath.SplitList(p)
	}
	return New(WithSearchPath(dirs...))
})

// Default returns the process-wide interpreter. Its search path is taken
// from STARBIND_PATH.
func Default() *Interpreter {
	return defaultInterpreter()
}

// ID returns the interpreter's unique identifier.
func (in *Interpreter) ID() string {
	return in.id
}

// SearchPath returns the directories searched for script modules.
func (in *Interpreter) SearchPath() []string {
	return append([]string(nil), in.searchPath...)
}

// Import loads a module and returns a reference to it. Modules are loaded
// once per interpreter; later imports return new references to the same
// module object.
func (in *Interpreter) Import(name string) (Ref, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.importModule(name)
	if err != nil {
		return 0, err
	}
	return in.newRef(v)
}

// GetAttr resolves an attribute of the referenced object.
func (in *Interpreter) GetAttr(ref Ref, name string) (Ref, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseAttribute)
	if err != nil {
		return 0, err
	}
	attr, err := getAttr(v, name, errors.PhaseAttribute)
	if err != nil {
		return 0, err
	}
	return in.newRef(attr)
}

// Call invokes the operation op of the referenced object with positional
// arguments. See Invoke for the accepted argument types.
func (in *Interpreter) Call(ref Ref, op string, args []any) (Ref, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseCall)
	if err != nil {
		return 0, err
	}
	fn, err := getAttr(v, op, errors.PhaseCall)
	if err != nil {
		return 0, err
	}
	return in.call(fn, args, errors.PhaseCall, []string{v.Type(), op})
}

// Invoke calls the referenced object itself. Invoking a class constructs an
// instance.
//
// Arguments may be Refs held by this interpreter, Go scalars, nil, []any or
// map[string]any; anything else is a type mismatch.
func (in *Interpreter) Invoke(ref Ref, args []any) (Ref, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseCall)
	if err != nil {
		return 0, err
	}
	phase := errors.PhaseCall
	if _, ok := v.(*Class); ok {
		phase = errors.PhaseConstruct
	}
	return in.call(v, args, phase, []string{callableName(v)})
}

// TypeOf returns the runtime type identity of the referenced object.
func (in *Interpreter) TypeOf(ref Ref) (TypeID, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return "", err
	}
	return TypeID(v.Type()), nil
}

// Str returns the native string form of the referenced object. Strings are
// returned unquoted.
func (in *Interpreter) Str(ref Ref) (string, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseCall)
	if err != nil {
		return "", err
	}
	if s, ok := starlark.AsString(v); ok {
		return s, nil
	}
	return v.String(), nil
}

// Equal reports whether the referenced object equals other using the
// runtime's equality. other is converted like an Invoke argument.
func (in *Interpreter) Equal(ref Ref, other any) (bool, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseCall)
	if err != nil {
		return false, err
	}
	o, err := in.toValue(other)
	if err != nil {
		return false, err
	}
	eq, err := starlark.Equal(v, o)
	if err != nil {
		return false, errors.ForeignInvocation(errors.PhaseCall, []string{v.Type(), "__eq__"}, err)
	}
	return eq, nil
}

// Hash returns the runtime hash of the referenced object.
func (in *Interpreter) Hash(ref Ref) (uint32, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseCall)
	if err != nil {
		return 0, err
	}
	h, err := v.Hash()
	if err != nil {
		return 0, errors.ForeignInvocation(errors.PhaseCall, []string{v.Type(), "__hash__"}, err)
	}
	return h, nil
}

// AsString extracts a string.
func (in *Interpreter) AsString(ref Ref) (string, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return "", err
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", errors.TypeMismatch(errors.PhaseMarshal, nil, "string", v.Type())
	}
	return s, nil
}

// AsInt extracts an integer that fits in int64.
func (in *Interpreter) AsInt(ref Ref) (int64, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return 0, err
	}
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, "int", v.Type())
	}
	n, ok := i.Int64()
	if !ok {
		return 0, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			HostType("int").
			ForeignType(v.Type()).
			Value(i.String()).
			Detail("integer out of range").
			Build()
	}
	return n, nil
}

// AsBool extracts a boolean.
func (in *Interpreter) AsBool(ref Ref) (bool, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return false, err
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		return false, errors.TypeMismatch(errors.PhaseMarshal, nil, "bool", v.Type())
	}
	return bool(b), nil
}

// AsFloat extracts a float. Integers are widened.
func (in *Interpreter) AsFloat(ref Ref) (float64, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return 0, err
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, "float64", v.Type())
	}
	return f, nil
}

// Value converts the referenced object to a plain Go value: scalars, nil,
// []any for lists and tuples, map[string]any for dicts with string keys.
// Other objects are returned as their string form.
func (in *Interpreter) Value(ref Ref) (any, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := in.value(ref, errors.PhaseMarshal)
	if err != nil {
		return nil, err
	}
	return fromValue(v), nil
}

// Eval evaluates an expression and returns a reference to its result.
func (in *Interpreter) Eval(expr string) (Ref, error) {
	gil.Lock()
	defer gil.Unlock()

	v, err := starlark.Eval(in.thread, "<eval>", expr, in.predeclared)
	if err != nil {
		return 0, errors.ForeignInvocation(errors.PhaseCall, []string{"<eval>"}, err)
	}
	return in.newRef(v)
}

// Release drops a reference. Releasing a reference that is not live is a
// lifecycle error.
func (in *Interpreter) Release(ref Ref) error {
	gil.Lock()
	defer gil.Unlock()

	tag, _ := in.refs.Tag(ref)
	if _, ok := in.refs.Remove(ref); !ok {
		return errors.DoubleRelease(tag)
	}
	return nil
}

// Live returns the number of live references.
func (in *Interpreter) Live() int {
	return in.refs.Len()
}

// LiveByType returns the number of live references per type identity.
func (in *Interpreter) LiveByType() map[string]int {
	return in.refs.Counts()
}

// Subscribe registers an observer for reference lifecycle events.
func (in *Interpreter) Subscribe(o resource.Observer) (cancel func()) {
	return in.refs.Subscribe(o)
}

// Close releases every live reference.
func (in *Interpreter) Close() error {
	gil.Lock()
	defer gil.Unlock()

	if n := in.refs.Len(); n > 0 {
		in.log.Debug("releasing live references", zap.Int("count", n))
	}
	in.refs.Clear()
	return nil
}

// value returns the object behind a live reference. Caller holds gil.
func (in *Interpreter) value(ref Ref, phase errors.Phase) (starlark.Value, error) {
	v, ok := in.refs.Get(ref)
	if !ok {
		return nil, errors.UseAfterRelease(phase, "")
	}
	return v.(starlark.Value), nil
}

func (in *Interpreter) newRef(v starlark.Value) (Ref, error) {
	ref, err := in.refs.Insert(v.Type(), v)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseCall, errors.KindLifecycle, err, "store reference")
	}
	return ref, nil
}

func (in *Interpreter) call(fn starlark.Value, args []any, phase errors.Phase, path []string) (Ref, error) {
	vals, err := in.toValues(args)
	if err != nil {
		return 0, err
	}
	res, err := starlark.Call(in.thread, fn, vals, nil)
	if err != nil {
		return 0, errors.ForeignInvocation(phase, path, err)
	}
	return in.newRef(res)
}

func (in *Interpreter) print(_ *starlark.Thread, msg string) {
	in.log.Info(msg, zap.String("source", "print"))
}

func getAttr(v starlark.Value, name string, phase errors.Phase) (starlark.Value, error) {
	path := []string{v.Type(), name}
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, errors.ForeignInvocation(phase, path, starlark.NoSuchAttrError(
			v.Type()+" has no attributes"))
	}
	attr, err := ha.Attr(name)
	if err != nil {
		return nil, errors.ForeignInvocation(phase, path, err)
	}
	if attr == nil {
		msg := v.Type() + " has no ." + name + " field or method"
		if s := suggest(name, ha.AttrNames()); s != "" {
			msg += " (did you mean ." + s + "?)"
		}
		return nil, errors.ForeignInvocation(phase, path, starlark.NoSuchAttrError(msg))
	}
	return attr, nil
}

func callableName(v starlark.Value) string {
	switch v := v.(type) {
	case *Class:
		return v.QualifiedName()
	case starlark.Callable:
		return v.Name()
	}
	return v.Type()
}

// qualify joins a module and a member name, leaving a bare name for the
// __main__ module.
func qualify(module, name string) string {
	if module == "" || module == mainModule {
		return name
	}
	return strings.Join([]string{module, name}, ".")
}

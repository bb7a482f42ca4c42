package bind

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wippyai/starbind/errors"
)

// ClassBinding names the foreign class a host interface wraps.
type ClassBinding struct {
	Module string `validate:"required"`
	Name   string `validate:"required"`
}

// ModuleBinding names the foreign module a host interface fronts.
type ModuleBinding struct {
	Name string `validate:"required"`
}

// MethodBinding names the foreign operation a host method dispatches to.
type MethodBinding struct {
	Op string `validate:"required"`
}

// Interface is the binding metadata declared for a host interface.
//
// Class and Module are mutually exclusive. Methods covers every method of
// the interface except the lifecycle methods of Binding. New wraps the
// generic proxy in the concrete host implementation; it may be nil when
// *Proxy itself implements the interface.
type Interface struct {
	Class   *ClassBinding
	Module  *ModuleBinding
	Methods map[string]MethodBinding `validate:"dive"`
	New     func(*Proxy) Binding
}

// Ops builds method bindings from alternating method and op names:
//
//	bind.Ops("Absolute", "absolute", "ReadText", "read_text")
func Ops(pairs ...string) map[string]MethodBinding {
	m := make(map[string]MethodBinding, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = MethodBinding{Op: pairs[i+1]}
	}
	return m
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

var (
	bindingType = reflect.TypeFor[Binding]()
	errorType   = reflect.TypeFor[error]()
	proxyType   = reflect.TypeFor[*Proxy]()
)

// lifecycleMethods are answered by the proxy itself.
var lifecycleMethods = func() map[string]bool {
	m := make(map[string]bool, bindingType.NumMethod())
	for i := 0; i < bindingType.NumMethod(); i++ {
		m[bindingType.Method(i).Name] = true
	}
	return m
}()

// IsLifecycleMethod reports whether name is one of the Binding methods.
func IsLifecycleMethod(name string) bool {
	return lifecycleMethods[name]
}

type dispatchEntry struct {
	op   string
	ret  reflect.Type
	void bool
}

type dispatchTable struct {
	iface   reflect.Type
	entries map[string]dispatchEntry
}

func (t *dispatchTable) name() string {
	if t == nil || t.iface == nil {
		return ""
	}
	return t.iface.String()
}

// compile validates iface against the host interface t and resolves the
// dispatch table.
func compile(t reflect.Type, iface Interface) (*dispatchTable, error) {
	name := t.String()

	if t.Kind() != reflect.Interface {
		return nil, errors.Configuration(errors.PhaseValidate, name, "host type must be an interface")
	}
	if !t.Implements(bindingType) {
		return nil, errors.Configuration(errors.PhaseValidate, name, "interface must embed bind.Binding")
	}
	if iface.Class != nil && iface.Module != nil {
		return nil, errors.Configuration(errors.PhaseValidate, name, "class and module bindings are mutually exclusive")
	}

	if err := validatorInstance().Struct(iface); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, errors.Configuration(errors.PhaseValidate, name,
				fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
		}
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindConfiguration, err, name)
	}

	table := &dispatchTable{
		iface:   t,
		entries: make(map[string]dispatchEntry, t.NumMethod()),
	}

	var unbound []string
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if lifecycleMethods[m.Name] {
			continue
		}
		mb, ok := iface.Methods[m.Name]
		if !ok {
			unbound = append(unbound, m.Name)
			continue
		}
		entry, err := resultShape(m.Type)
		if err != nil {
			return nil, errors.Configuration(errors.PhaseValidate, name,
				fmt.Sprintf("method %s: %v", m.Name, err))
		}
		entry.op = mb.Op
		table.entries[m.Name] = entry
	}
	if len(unbound) > 0 {
		return nil, errors.NewUnboundMethodsError(name, unbound)
	}

	var unknown []string
	for m := range iface.Methods {
		if _, ok := t.MethodByName(m); !ok {
			unknown = append(unknown, m)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Configuration(errors.PhaseValidate, name,
			fmt.Sprintf("binding for unknown method %s", unknown[0]))
	}

	if iface.New == nil {
		if !proxyType.Implements(t) {
			return nil, errors.Configuration(errors.PhaseValidate, name,
				"no proxy factory and *bind.Proxy does not implement the interface")
		}
	} else if b := iface.New(&Proxy{}); b == nil || !reflect.TypeOf(b).Implements(t) {
		return nil, errors.Configuration(errors.PhaseValidate, name,
			"proxy factory result does not implement the interface")
	}

	return table, nil
}

// resultShape checks that fn returns error or (R, error) and reports the
// declared result type.
func resultShape(fn reflect.Type) (dispatchEntry, error) {
	switch fn.NumOut() {
	case 1:
		if fn.Out(0) != errorType {
			return dispatchEntry{}, fmt.Errorf("single result must be error")
		}
		return dispatchEntry{void: true}, nil
	case 2:
		if fn.Out(1) != errorType {
			return dispatchEntry{}, fmt.Errorf("second result must be error")
		}
		ret := fn.Out(0)
		switch ret.Kind() {
		case reflect.Interface, reflect.String, reflect.Int, reflect.Bool, reflect.Float64:
		default:
			return dispatchEntry{}, fmt.Errorf("unsupported result type %s", ret)
		}
		if ret.Kind() != reflect.Interface && ret.PkgPath() != "" {
			return dispatchEntry{}, fmt.Errorf("unsupported result type %s", ret)
		}
		return dispatchEntry{ret: ret}, nil
	}
	return dispatchEntry{}, fmt.Errorf("results must be error or (T, error)")
}

package engine

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/wippyai/starbind/errors"
)

func (in *Interpreter) toValues(args []any) (starlark.Tuple, error) {
	if len(args) == 0 {
		return nil, nil
	}
	vals := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := in.toValue(a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// toValue converts a Go argument to a runtime value. Caller holds gil.
func (in *Interpreter) toValue(x any) (starlark.Value, error) {
	switch x := x.(type) {
	case nil:
		return starlark.None, nil
	case Ref:
		return in.value(x, errors.PhaseCall)
	case starlark.Value:
		return x, nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int8:
		return starlark.MakeInt64(int64(x)), nil
	case int16:
		return starlark.MakeInt64(int64(x)), nil
	case int32:
		return starlark.MakeInt64(int64(x)), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case uint:
		return starlark.MakeUint(x), nil
	case uint8:
		return starlark.MakeUint64(uint64(x)), nil
	case uint16:
		return starlark.MakeUint64(uint64(x)), nil
	case uint32:
		return starlark.MakeUint64(uint64(x)), nil
	case uintptr:
		return starlark.MakeUint64(uint64(x)), nil
	case uint64:
		return starlark.MakeUint64(x), nil
	case float32:
		return starlark.Float(x), nil
	case float64:
		return starlark.Float(x), nil
	case []any:
		elems, err := in.toValues(x)
		if err != nil {
			return nil, err
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		d := starlark.NewDict(len(x))
		for _, k := range keys {
			v, err := in.toValue(x[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), v); err != nil {
				return nil, errors.ForeignInvocation(errors.PhaseCall, []string{"dict"}, err)
			}
		}
		return d, nil
	}
	return nil, errors.New(errors.PhaseCall, errors.KindTypeMismatch).
		HostType(fmt.Sprintf("%T", x)).
		Value(x).
		Detail("unsupported argument type").
		Build()
}

func fromValue(v starlark.Value) any {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.String:
		return string(v)
	case starlark.Bool:
		return bool(v)
	case starlark.Int:
		if n, ok := v.Int64(); ok {
			return n
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case *starlark.List:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = fromValue(v.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromValue(e)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, kv := range v.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				k = kv[0].String()
			}
			out[k] = fromValue(kv[1])
		}
		return out
	}
	return v.String()
}

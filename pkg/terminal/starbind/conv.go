package starbind

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/jdsd/practice-tool/pkg/proc"
)

var errWrongArgs = errors.New("wrong number of arguments")

func stringArg(args starlark.Tuple, n int) (string, error) {
	if len(args) != n {
		return "", errWrongArgs
	}
	s, ok := args[0].(starlark.String)
	if !ok {
		return "", fmt.Errorf("argument %s is not a string", args[0])
	}
	return string(s), nil
}

func kindArg(v starlark.Value) (proc.Kind, error) {
	s, ok := v.(starlark.String)
	if !ok {
		return proc.KindInvalid, fmt.Errorf("type %s is not a string", v)
	}
	return proc.ParseKind(string(s))
}

// chainArgs converts a base address followed by offsets. Both can be
// given as integers or as strings such as "0x3d7a140".
func chainArgs(args starlark.Tuple) (uintptr, []int64, error) {
	var base uintptr
	switch x := args[0].(type) {
	case starlark.Int:
		u, ok := x.Uint64()
		if !ok {
			return 0, nil, fmt.Errorf("base address %s out of range", x)
		}
		base = uintptr(u)
	case starlark.String:
		var err error
		base, err = proc.ParseAddress(string(x))
		if err != nil {
			return 0, nil, err
		}
	default:
		return 0, nil, fmt.Errorf("base address %s is not an integer", args[0])
	}
	offsets := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		switch x := a.(type) {
		case starlark.Int:
			n, ok := x.Int64()
			if !ok {
				return 0, nil, fmt.Errorf("offset %s out of range", x)
			}
			offsets = append(offsets, n)
		case starlark.String:
			offs, err := proc.ParseOffsets([]string{string(x)})
			if err != nil {
				return 0, nil, err
			}
			offsets = append(offsets, offs[0])
		default:
			return 0, nil, fmt.Errorf("offset %s is not an integer", a)
		}
	}
	return base, offsets, nil
}

func vecValue(v []float32) starlark.Value {
	r := make([]starlark.Value, len(v))
	for i := range v {
		r[i] = starlark.Float(v[i])
	}
	return starlark.NewList(r)
}

// toStarlarkValue converts the values produced by proc.ReadValue and the
// arguments of main functions.
func toStarlarkValue(v interface{}) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case uint64:
		return starlark.MakeUint64(v)
	case float64:
		return starlark.Float(v)
	case string:
		return starlark.String(v)
	case []float64:
		r := make([]starlark.Value, len(v))
		for i := range v {
			r[i] = starlark.Float(v[i])
		}
		return starlark.NewList(r)
	case []string:
		r := make([]starlark.Value, len(v))
		for i := range v {
			r[i] = starlark.String(v[i])
		}
		return starlark.NewList(r)
	case starlark.Value:
		return v
	}
	return starlark.String(fmt.Sprintf("%v", v))
}

// fromStarlarkValue converts a value to write into the form accepted by
// proc.WriteValue.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if n, ok := x.Int64(); ok {
			return n, nil
		}
		if u, ok := x.Uint64(); ok {
			return u, nil
		}
		return nil, fmt.Errorf("%s out of range", x)
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Indexable:
		r := make([]interface{}, x.Len())
		for i := range r {
			e, err := fromStarlarkValue(x.Index(i))
			if err != nil {
				return nil, err
			}
			r[i] = e
		}
		return r, nil
	}
	return nil, fmt.Errorf("can not convert %s to a value", v.Type())
}

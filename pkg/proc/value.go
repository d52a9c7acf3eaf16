package proc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseKind parses a kind name as printed by Kind.String. "f32", "f64",
// "u8" style abbreviations and "byte" are also accepted.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "byte", "u8":
		return KindUint8, nil
	case "i8":
		return KindInt8, nil
	case "u16":
		return KindUint16, nil
	case "i16":
		return KindInt16, nil
	case "u32":
		return KindUint32, nil
	case "i32", "int":
		return KindInt32, nil
	case "u64", "ptr":
		return KindUint64, nil
	case "i64":
		return KindInt64, nil
	case "f32", "float":
		return KindFloat32, nil
	case "f64", "double":
		return KindFloat64, nil
	}
	for k, name := range kindNames {
		if Kind(k) != KindInvalid && name == s {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown type %q", s)
}

// ReadValue resolves a chain of kind k and reads its value. Integers are
// returned as int64 or uint64, floats as float64 and vectors as
// []float64.
func ReadValue(mem MemoryReader, k Kind, base uintptr, offsets ...int64) (interface{}, Location, bool) {
	switch k {
	case KindUint8:
		return readAs(mem, NewPointerChain[uint8](base, offsets...), func(v uint8) interface{} { return uint64(v) })
	case KindInt8:
		return readAs(mem, NewPointerChain[int8](base, offsets...), func(v int8) interface{} { return int64(v) })
	case KindUint16:
		return readAs(mem, NewPointerChain[uint16](base, offsets...), func(v uint16) interface{} { return uint64(v) })
	case KindInt16:
		return readAs(mem, NewPointerChain[int16](base, offsets...), func(v int16) interface{} { return int64(v) })
	case KindUint32:
		return readAs(mem, NewPointerChain[uint32](base, offsets...), func(v uint32) interface{} { return uint64(v) })
	case KindInt32:
		return readAs(mem, NewPointerChain[int32](base, offsets...), func(v int32) interface{} { return int64(v) })
	case KindUint64:
		return readAs(mem, NewPointerChain[uint64](base, offsets...), func(v uint64) interface{} { return v })
	case KindInt64:
		return readAs(mem, NewPointerChain[int64](base, offsets...), func(v int64) interface{} { return v })
	case KindFloat32:
		return readAs(mem, NewPointerChain[float32](base, offsets...), func(v float32) interface{} { return float64(v) })
	case KindFloat64:
		return readAs(mem, NewPointerChain[float64](base, offsets...), func(v float64) interface{} { return v })
	case KindVec3:
		return readAs(mem, NewPointerChain[[3]float32](base, offsets...), func(v [3]float32) interface{} {
			return []float64{float64(v[0]), float64(v[1]), float64(v[2])}
		})
	case KindVec4:
		return readAs(mem, NewPointerChain[[4]float32](base, offsets...), func(v [4]float32) interface{} {
			return []float64{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])}
		})
	}
	return nil, Location{}, false
}

// readAs resolves c once and reads the value at the location found, so
// the location returned is the one that was read.
func readAs[T Scalar](mem MemoryReader, c PointerChain[T], conv func(T) interface{}) (interface{}, Location, bool) {
	loc := c.Eval(mem)
	if !loc.Valid() {
		return nil, loc, false
	}
	v, ok := NewPointerChain[T](loc.Addr).Read(mem)
	if !ok {
		return nil, loc, false
	}
	return conv(v), loc, true
}

// WriteValue resolves a chain of kind k and stores v, which must be a
// number for scalar kinds or a slice of numbers for vectors. It reports
// whether the value was written; the error describes values that do not
// fit k.
func WriteValue(mem MemoryReadWriter, k Kind, v interface{}, base uintptr, offsets ...int64) (bool, error) {
	switch k {
	case KindVec3, KindVec4:
		fs, err := toFloats(v)
		if err != nil {
			return false, err
		}
		if k == KindVec3 {
			if len(fs) != 3 {
				return false, fmt.Errorf("vec3 needs 3 components, got %d", len(fs))
			}
			return NewPointerChain[[3]float32](base, offsets...).Write(mem, [3]float32{float32(fs[0]), float32(fs[1]), float32(fs[2])}), nil
		}
		if len(fs) != 4 {
			return false, fmt.Errorf("vec4 needs 4 components, got %d", len(fs))
		}
		return NewPointerChain[[4]float32](base, offsets...).Write(mem, [4]float32{float32(fs[0]), float32(fs[1]), float32(fs[2]), float32(fs[3])}), nil
	case KindFloat32:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return NewPointerChain[float32](base, offsets...).Write(mem, float32(f)), nil
	case KindFloat64:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return NewPointerChain[float64](base, offsets...).Write(mem, f), nil
	case KindInvalid:
		return false, fmt.Errorf("invalid kind")
	case KindUint8, KindUint16, KindUint32, KindUint64:
		n, err := toUint(v)
		if err != nil {
			return false, err
		}
		if !fitsUnsigned(k, n) {
			return false, fmt.Errorf("%d does not fit in %s", n, k)
		}
		switch k {
		case KindUint8:
			return NewPointerChain[uint8](base, offsets...).Write(mem, uint8(n)), nil
		case KindUint16:
			return NewPointerChain[uint16](base, offsets...).Write(mem, uint16(n)), nil
		case KindUint32:
			return NewPointerChain[uint32](base, offsets...).Write(mem, uint32(n)), nil
		}
		return NewPointerChain[uint64](base, offsets...).Write(mem, n), nil
	}
	n, err := toInt(v)
	if err != nil {
		return false, err
	}
	if !fits(k, n) {
		return false, fmt.Errorf("%d does not fit in %s", n, k)
	}
	switch k {
	case KindInt8:
		return NewPointerChain[int8](base, offsets...).Write(mem, int8(n)), nil
	case KindInt16:
		return NewPointerChain[int16](base, offsets...).Write(mem, int16(n)), nil
	case KindInt32:
		return NewPointerChain[int32](base, offsets...).Write(mem, int32(n)), nil
	case KindInt64:
		return NewPointerChain[int64](base, offsets...).Write(mem, n), nil
	}
	return false, fmt.Errorf("unsupported kind %s", k)
}

func fits(k Kind, n int64) bool {
	switch k {
	case KindInt8:
		return n >= math.MinInt8 && n <= math.MaxInt8
	case KindInt16:
		return n >= math.MinInt16 && n <= math.MaxInt16
	case KindInt32:
		return n >= math.MinInt32 && n <= math.MaxInt32
	}
	return true
}

func fitsUnsigned(k Kind, n uint64) bool {
	switch k {
	case KindUint8:
		return n <= math.MaxUint8
	case KindUint16:
		return n <= math.MaxUint16
	case KindUint32:
		return n <= math.MaxUint32
	}
	return true
}

// toUint converts v for an unsigned kind. Negative numbers are rejected.
func toUint(v interface{}) (uint64, error) {
	switch v := v.(type) {
	case uint64:
		return v, nil
	case int, int64:
		n, _ := toInt(v)
		if n < 0 {
			return 0, fmt.Errorf("%d is negative", n)
		}
		return uint64(n), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "-") {
			return 0, fmt.Errorf("%s is negative", s)
		}
		return strconv.ParseUint(s, 0, 64)
	}
	return 0, fmt.Errorf("%v is not an integer", v)
}

func toInt(v interface{}) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d out of range", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(v, 0, 64)
	}
	return 0, fmt.Errorf("%v is not an integer", v)
}

func toFloat(v interface{}) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func toFloats(v interface{}) ([]float64, error) {
	switch v := v.(type) {
	case []float64:
		return v, nil
	case []float32:
		r := make([]float64, len(v))
		for i := range v {
			r[i] = float64(v[i])
		}
		return r, nil
	case []interface{}:
		r := make([]float64, len(v))
		for i := range v {
			f, err := toFloat(v[i])
			if err != nil {
				return nil, err
			}
			r[i] = f
		}
		return r, nil
	case string:
		fields := strings.FieldsFunc(v, func(c rune) bool { return c == ',' || c == ' ' })
		r := make([]float64, len(fields))
		for i := range fields {
			f, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, err
			}
			r[i] = f
		}
		return r, nil
	}
	return nil, fmt.Errorf("%v is not a list of numbers", v)
}

// ParseAddress parses an address or offset written in Go integer syntax,
// usually hexadecimal.
func ParseAddress(s string) (uintptr, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed address %q", s)
	}
	return uintptr(n), nil
}

// ParseOffsets parses signed offsets such as "0x48" or "-0x3".
func ParseOffsets(args []string) ([]int64, error) {
	r := make([]int64, len(args))
	for i, s := range args {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed offset %q", s)
		}
		r[i] = n
	}
	return r, nil
}

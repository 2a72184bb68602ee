package script

import "reflect"

// Value is anything a dynamic method can receive or return. Scalars are held
// directly (bool, int64, float64, string); *Instance refers to a dynamic
// object; native values are carried by reference in a *Foreign.
type Value = any

// Foreign carries a native value into dynamic code by reference.
type Foreign struct {
	Value any
}

// TypeName returns the Go type name of the carried value.
func (f *Foreign) TypeName() string {
	if f.Value == nil {
		return "nil"
	}
	return reflect.TypeOf(f.Value).String()
}

// ToValue converts a native value into a Value. Integer and float kinds are
// widened to int64 and float64, []byte becomes a string, and everything that
// is not a scalar is wrapped in a Foreign.
func (d *Domain) ToValue(v any) Value {
	switch v := v.(type) {
	case nil:
		return nil
	case *Instance, *Foreign:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
	}
	return &Foreign{Value: v}
}

// As extracts a T from a Value, looking through Foreign wrappers.
func As[T any](v Value) (T, bool) {
	if f, ok := v.(*Foreign); ok {
		v = f.Value
	}
	t, ok := v.(T)
	return t, ok
}

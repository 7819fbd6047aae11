package serial

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"time"
)

// ---------------------------------------------------------------------------
// Built-in descriptors
// ---------------------------------------------------------------------------
//
// Common Go values serialize without explicit registration: times,
// durations, byte buffers, slices, string-keyed maps, and Set. Maps and Set
// are two-phase capable and may appear in cycles. Slices are not: a Go
// slice cannot be patched in place after allocation, so a cycle routed
// exclusively through a plain slice is rejected; route cycles through a
// map, a Set, or any registered two-phase type instead.

func registerBuiltins(r *Registry) {
	builtins := []struct {
		prototype any
		desc      *Descriptor
	}{
		{time.Time{}, dateDescriptor},
		{time.Duration(0), durationDescriptor},
		{[]byte(nil), bufferDescriptor},
		{[]any(nil), arrayDescriptor},
		{map[string]any(nil), objectDescriptor},
		{(*Set)(nil), setDescriptor},
	}
	for _, b := range builtins {
		if err := r.Register(b.prototype, b.desc); err != nil {
			panic(fmt.Sprintf("serial: built-in registration failed: %v", err))
		}
	}
}

var dateDescriptor = &Descriptor{
	Name: wireDate,
	ToPlain: func(v any) (any, error) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("Date: not a time.Time: %T", v)
		}
		return t.Format(time.RFC3339Nano), nil
	},
	FromPlain: func(plain any) (any, error) {
		s, ok := plain.(string)
		if !ok {
			return nil, fmt.Errorf("Date: not a string: %T", plain)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("Date: %w", err)
		}
		return t, nil
	},
}

var durationDescriptor = &Descriptor{
	Name: wireDuration,
	ToPlain: func(v any) (any, error) {
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("Duration: not a time.Duration: %T", v)
		}
		return d.String(), nil
	},
	FromPlain: func(plain any) (any, error) {
		s, ok := plain.(string)
		if !ok {
			return nil, fmt.Errorf("Duration: not a string: %T", plain)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("Duration: %w", err)
		}
		return d, nil
	},
}

var bufferDescriptor = &Descriptor{
	Name: wireBuffer,
	ToPlain: func(v any) (any, error) {
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("Buffer: not a []byte: %T", v)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	},
	FromPlain: func(plain any) (any, error) {
		s, ok := plain.(string)
		if !ok {
			return nil, fmt.Errorf("Buffer: not a string: %T", plain)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("Buffer: %w", err)
		}
		return b, nil
	},
}

// arrayDescriptor covers []any and, via the registry's kind fallback, every
// other slice and array type. One-shot: see the package note on slice
// cycles.
var arrayDescriptor = &Descriptor{
	Name: wireArray,
	ToPlain: func(v any) (any, error) {
		if items, ok := v.([]any); ok {
			return items, nil
		}
		rv := reflect.ValueOf(v)
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	},
	FromPlain: func(plain any) (any, error) {
		if plain == nil {
			return []any{}, nil
		}
		items, ok := plain.([]any)
		if !ok {
			return nil, fmt.Errorf("Array: not a list: %T", plain)
		}
		return items, nil
	},
}

// objectDescriptor covers map[string]any and every other string-keyed map
// type. Maps can be filled in place, so objects are two-phase capable.
var objectDescriptor = &Descriptor{
	Name: wireObject,
	ToPlain: func(v any) (any, error) {
		if fields, ok := v.(map[string]any); ok {
			return fields, nil
		}
		rv := reflect.ValueOf(v)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	},
	FromPlain: func(plain any) (any, error) {
		fields, err := asFields(plain)
		if err != nil {
			return nil, err
		}
		return fields, nil
	},
	CreateEmpty: func() any {
		return map[string]any{}
	},
	UpdateInstance: func(instance, plain any) error {
		dst, ok := instance.(map[string]any)
		if !ok {
			return fmt.Errorf("Object: shell is %T", instance)
		}
		src, err := asFields(plain)
		if err != nil {
			return err
		}
		for k, v := range src {
			dst[k] = v
		}
		return nil
	},
}

var setDescriptor = &Descriptor{
	Name: wireSet,
	ToPlain: func(v any) (any, error) {
		s, ok := v.(*Set)
		if !ok {
			return nil, fmt.Errorf("Set: not a *Set: %T", v)
		}
		return s.Items(), nil
	},
	FromPlain: func(plain any) (any, error) {
		items, err := asItems(plain)
		if err != nil {
			return nil, err
		}
		return NewSet(items...), nil
	},
	CreateEmpty: func() any {
		return NewSet()
	},
	UpdateInstance: func(instance, plain any) error {
		s, ok := instance.(*Set)
		if !ok {
			return fmt.Errorf("Set: shell is %T", instance)
		}
		items, err := asItems(plain)
		if err != nil {
			return err
		}
		for _, item := range items {
			s.Add(item)
		}
		return nil
	},
}

func asFields(plain any) (map[string]any, error) {
	if plain == nil {
		return map[string]any{}, nil
	}
	fields, ok := plain.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Object: not a map: %T", plain)
	}
	return fields, nil
}

func asItems(plain any) ([]any, error) {
	if plain == nil {
		return nil, nil
	}
	items, ok := plain.([]any)
	if !ok {
		return nil, fmt.Errorf("Set: not a list: %T", plain)
	}
	return items, nil
}

package serial

import (
	"fmt"
	"reflect"
	"strconv"
)

// ---------------------------------------------------------------------------
// Reference Table: per-call identity bookkeeping
// ---------------------------------------------------------------------------

// identity keys an instance by its runtime type and address. Two interface
// values share an identity only when they are views of the same underlying
// allocation; the type component keeps a struct and its first field apart.
type identity struct {
	t reflect.Type
	p uintptr
	n int // slice length; views of the same array with different extents differ
}

// identityKey returns the identity of v, or ok=false for values with no
// shareable identity (plain structs, scalars). Values without identity are
// written as a fresh definition node on every visit; only pointer-like
// values can be the target of a back-reference.
func identityKey(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return identity{t: rv.Type(), p: rv.Pointer()}, true
	case reflect.Slice:
		return identity{t: rv.Type(), p: rv.Pointer(), n: rv.Len()}, true
	}
	return identity{}, false
}

// refTable assigns stable identifiers to instances during one serialize
// call, and resolves identifiers back to instances during one deserialize
// call. It lives exactly as long as that call; nothing about it is shared
// or persisted.
type refTable struct {
	ids  map[identity]string // serialize: identity -> refId
	objs map[string]any      // deserialize: refId -> instance
	next int
}

func newRefTable() *refTable {
	return &refTable{
		ids:  make(map[identity]string),
		objs: make(map[string]any),
		next: 1,
	}
}

// alloc returns the next refId in visitation order.
func (t *refTable) alloc() string {
	id := strconv.Itoa(t.next)
	t.next++
	return id
}

// idFor returns the refId for v, allocating one on first sight. first is
// true when this call allocated the id. Values without identity always
// allocate fresh ids.
func (t *refTable) idFor(v any) (id string, first bool) {
	key, ok := identityKey(v)
	if !ok {
		return t.alloc(), true
	}
	if id, seen := t.ids[key]; seen {
		return id, false
	}
	id = t.alloc()
	t.ids[key] = id
	return id, true
}

// bind records the instance for refId during the allocate pass, before the
// instance is populated.
func (t *refTable) bind(refID string, v any) {
	t.objs[refID] = v
}

// instanceFor resolves a refId to its bound instance.
func (t *refTable) instanceFor(refID string) (any, error) {
	v, ok := t.objs[refID]
	if !ok {
		return nil, fmt.Errorf("%w: refId %q", ErrDanglingReference, refID)
	}
	return v, nil
}

package serial

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// ---------------------------------------------------------------------------
// Value Walker: serialize direction
// ---------------------------------------------------------------------------

// walker traverses a value graph depth-first in pre-order, producing the
// tagged-node tree. Its reference table is exclusively owned by one
// Serialize call.
type walker struct {
	reg  *Registry
	refs *refTable
}

func newWalker(reg *Registry) *walker {
	return &walker{reg: reg, refs: newRefTable()}
}

// walk emits the wire node for v: an inline literal for scalars, a
// reference node for already-visited instances, a definition node on first
// visit.
func (w *walker) walk(v any) (any, error) {
	if isNilValue(v) {
		return nil, nil
	}

	// Exact type registrations win over scalar inlining so that named
	// scalar-kinded types like time.Duration reach their descriptor.
	desc, ok := w.reg.lookupType(reflect.TypeOf(v))
	if !ok {
		if scalar, isScalar := asScalar(v); isScalar {
			return scalar, nil
		}
		var err error
		desc, err = w.reg.ResolveInstance(v)
		if err != nil {
			return nil, err
		}
	}

	refID, first := w.refs.idFor(v)
	if !first {
		return refNode(refID), nil
	}

	plain, err := desc.ToPlain(v)
	if err != nil {
		return nil, fmt.Errorf("type %q: ToPlain: %w", desc.Name, err)
	}

	body, err := w.walkBody(plain)
	if err != nil {
		return nil, err
	}
	return defNode(refID, desc.Name, body), nil
}

// walkBody walks the plain structural value produced by a descriptor. The
// immediate container is the definition node's body and is written raw; its
// elements go back through the full dispatch, so nested containers and
// typed instances get their own wrapped nodes.
func (w *walker) walkBody(plain any) (any, error) {
	switch p := plain.(type) {
	case map[string]any:
		out := make(map[string]any, len(p))
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		// refId allocation order follows traversal order; sorting keeps it
		// independent of Go's map iteration.
		sort.Strings(keys)
		for _, k := range keys {
			node, err := w.walk(p[k])
			if err != nil {
				return nil, err
			}
			out[k] = node
		}
		return out, nil
	case []any:
		out := make([]any, len(p))
		for i, elem := range p {
			node, err := w.walk(elem)
			if err != nil {
				return nil, err
			}
			out[i] = node
		}
		return out, nil
	default:
		// Scalar leaf or another typed instance; full dispatch handles both.
		return w.walk(plain)
	}
}

// isNilValue reports whether v is nil, including a typed nil inside a
// non-nil interface (a nil *T field stored in an any).
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// asScalar reports whether v is written as an inline literal, returning the
// value to embed. Named scalar types (string/bool/number kinds without a
// registered descriptor) inline as their underlying representation.
func asScalar(v any) (any, bool) {
	switch s := v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return s, true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Value Walker: deserialize direction (two passes)
// ---------------------------------------------------------------------------

// decoder reconstructs a value graph from a tagged-node tree. Its state is
// exclusively owned by one Deserialize call.
type decoder struct {
	reg    *Registry
	extras map[string]*Descriptor

	refs  *refTable
	descs map[string]*Descriptor // refId -> descriptor, filled by allocate

	// open tracks the definition refIds on the current allocate DFS path,
	// in order, so a reference that closes a cycle can name every
	// participant.
	open    []string
	openSet map[string]bool

	// inflight tracks one-shot definitions under construction during
	// populate. A reference landing on one means a cycle the allocate pass
	// should have rejected; it is reported rather than left to dangle.
	inflight map[string]bool
}

func newDecoder(reg *Registry, extras []*Descriptor) (*decoder, error) {
	byName := make(map[string]*Descriptor, len(extras))
	for _, desc := range extras {
		if err := desc.validate(); err != nil {
			return nil, fmt.Errorf("extra descriptor: %w", err)
		}
		byName[desc.Name] = desc
	}
	return &decoder{
		reg:      reg,
		extras:   byName,
		refs:     newRefTable(),
		descs:    make(map[string]*Descriptor),
		openSet:  make(map[string]bool),
		inflight: make(map[string]bool),
	}, nil
}

// resolve looks a wire type name up in the ambient registry first; the
// call-scoped extras only cover names the registry lacks.
func (d *decoder) resolve(name string) (*Descriptor, error) {
	desc, err := d.reg.ResolveName(name)
	if err == nil {
		return desc, nil
	}
	if extra, ok := d.extras[name]; ok {
		return extra, nil
	}
	return nil, err
}

// allocate is the first pass: bind an empty shell for every two-phase
// definition node before anything is populated, so that references in
// either direction always resolve to a real object. Cycles that run through
// a one-shot participant are rejected here, eagerly.
func (d *decoder) allocate(node any) error {
	switch n := node.(type) {
	case []any:
		for _, elem := range n {
			if err := d.allocate(elem); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if !isWireNode(n) {
			for _, v := range n {
				if err := d.allocate(v); err != nil {
					return err
				}
			}
			return nil
		}

		refID, ok := n[keyRef].(string)
		if !ok {
			return fmt.Errorf("%w: wire node without %s", ErrCorruptPayload, keyRef)
		}

		name, isDef := n[keyClass].(string)
		if !isDef {
			// Reference node. If it points back into the open path, the
			// graph has a cycle; every definition from the target down to
			// here must be two-phase capable.
			if d.openSet[refID] {
				return d.checkCycle(refID)
			}
			return nil
		}

		desc, err := d.resolve(name)
		if err != nil {
			return err
		}
		d.descs[refID] = desc
		if desc.TwoPhase() {
			d.refs.bind(refID, desc.CreateEmpty())
		}

		d.open = append(d.open, refID)
		d.openSet[refID] = true
		err = d.allocate(n[keyValue])
		d.open = d.open[:len(d.open)-1]
		delete(d.openSet, refID)
		return err
	default:
		return nil
	}
}

// checkCycle verifies that every definition on the open path from target to
// the current position supports two-phase construction.
func (d *decoder) checkCycle(target string) error {
	start := 0
	for i, refID := range d.open {
		if refID == target {
			start = i
			break
		}
	}
	for _, refID := range d.open[start:] {
		desc := d.descs[refID]
		if desc != nil && !desc.TwoPhase() {
			return fmt.Errorf("%w: %q (refId %s)", ErrCircularDependency, desc.Name, refID)
		}
	}
	return nil
}

// populate is the second pass: resolve every node to its live value. All
// two-phase shells already exist, so reference nodes always land on a real
// instance even when it is not yet filled in.
func (d *decoder) populate(node any) (any, error) {
	switch n := node.(type) {
	case json.Number:
		return normalizeNumber(n)
	case []any:
		out := make([]any, len(n))
		for i, elem := range n {
			v, err := d.populate(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]any:
		if !isWireNode(n) {
			out := make(map[string]any, len(n))
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			// Serialization assigned refIds in sorted-key order, so populate
			// must follow the same order: a one-shot definition is only bound
			// once its body resolves, and its back-references sit under
			// lexically later keys.
			sort.Strings(keys)
			for _, k := range keys {
				resolved, err := d.populate(n[k])
				if err != nil {
					return nil, err
				}
				out[k] = resolved
			}
			return out, nil
		}
		return d.populateNode(n)
	default:
		return n, nil
	}
}

// populateNode resolves one wrapped wire node.
func (d *decoder) populateNode(n map[string]any) (any, error) {
	refID, ok := n[keyRef].(string)
	if !ok {
		return nil, fmt.Errorf("%w: wire node without %s", ErrCorruptPayload, keyRef)
	}

	name, isDef := n[keyClass].(string)
	if !isDef {
		if d.inflight[refID] {
			return nil, fmt.Errorf("%w: refId %s", ErrCircularDependency, refID)
		}
		return d.refs.instanceFor(refID)
	}

	desc := d.descs[refID]
	if desc == nil {
		// Allocate ran over the same tree, so this is unreachable for any
		// payload that passed the first pass.
		return nil, fmt.Errorf("%w: no descriptor recorded for %q (refId %s)", ErrDanglingReference, name, refID)
	}

	if desc.TwoPhase() {
		shell, err := d.refs.instanceFor(refID)
		if err != nil {
			return nil, err
		}
		body, err := d.populate(n[keyValue])
		if err != nil {
			return nil, err
		}
		if err := desc.UpdateInstance(shell, body); err != nil {
			return nil, fmt.Errorf("type %q: UpdateInstance: %w", desc.Name, err)
		}
		return shell, nil
	}

	// One-shot construction: the instance exists only once the body is
	// fully resolved, so it is bound after the fact for later
	// back-references.
	d.inflight[refID] = true
	body, err := d.populate(n[keyValue])
	delete(d.inflight, refID)
	if err != nil {
		return nil, err
	}
	inst, err := desc.FromPlain(body)
	if err != nil {
		return nil, fmt.Errorf("type %q: FromPlain: %w", desc.Name, err)
	}
	d.refs.bind(refID, inst)
	return inst, nil
}

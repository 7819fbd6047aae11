package serial

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Snapshot Protocol
// ---------------------------------------------------------------------------

// Serializable is the contract domain objects implement to participate in
// serialization. CreateSnapshot returns a plain structural value that is a
// pure function of current state; LoadSnapshot mutates the receiver in
// place to match a snapshot. Composed with an empty constructor, the pair
// satisfies the two-phase reconstruction contract automatically, so
// Serializable types may participate in reference cycles.
type Serializable interface {
	CreateSnapshot() (any, error)
	LoadSnapshot(snapshot any) error
}

// SnapshotDescriptor builds a fully two-phase descriptor for a Serializable
// type from its empty constructor.
func SnapshotDescriptor(name string, newEmpty func() Serializable) *Descriptor {
	return &Descriptor{
		Name: name,
		ToPlain: func(instance any) (any, error) {
			s, ok := instance.(Serializable)
			if !ok {
				return nil, fmt.Errorf("%q: %T does not implement Serializable", name, instance)
			}
			return s.CreateSnapshot()
		},
		FromPlain: func(plain any) (any, error) {
			inst := newEmpty()
			if err := inst.LoadSnapshot(plain); err != nil {
				return nil, err
			}
			return inst, nil
		},
		CreateEmpty: func() any {
			return newEmpty()
		},
		UpdateInstance: func(instance, plain any) error {
			s, ok := instance.(Serializable)
			if !ok {
				return fmt.Errorf("%q: %T does not implement Serializable", name, instance)
			}
			return s.LoadSnapshot(plain)
		},
	}
}

// RegisterSerializable registers a Serializable type under name in r,
// deriving the instance-dispatch type from the constructor.
func RegisterSerializable(r *Registry, name string, newEmpty func() Serializable) error {
	desc := SnapshotDescriptor(name, newEmpty)
	prototype := newEmpty()
	if prototype == nil || reflect.TypeOf(prototype) == nil {
		return fmt.Errorf("register %q: constructor returned nil", name)
	}
	return r.Register(prototype, desc)
}

// FromSnapshot builds a new instance of the type registered under name from
// a plain snapshot value.
func (r *Registry) FromSnapshot(name string, snapshot any) (any, error) {
	desc, err := r.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return desc.FromPlain(snapshot)
}

// FromSerialized reconstructs a serialized payload whose root is the type
// registered under name, failing before reconstruction when the root
// carries a different type tag.
func (r *Registry) FromSerialized(name, text string, extra ...*Descriptor) (any, error) {
	root, err := decodeEnvelope(text)
	if err != nil {
		return nil, err
	}
	node, ok := root.(map[string]any)
	if !ok || !isWireNode(node) {
		return nil, fmt.Errorf("%w: root is not a typed node, want %q", ErrCorruptPayload, name)
	}
	if class, _ := node[keyClass].(string); class != name {
		return nil, fmt.Errorf("%w: root is %q, want %q", ErrCorruptPayload, node[keyClass], name)
	}
	return r.Deserialize(text, extra...)
}

// FromSnapshot is FromSnapshot on the default registry.
func FromSnapshot(name string, snapshot any) (any, error) {
	return Default().FromSnapshot(name, snapshot)
}

// FromSerialized is FromSerialized on the default registry.
func FromSerialized(name, text string, extra ...*Descriptor) (any, error) {
	return Default().FromSerialized(name, text, extra...)
}

package serial

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Descriptor: serialization behavior for one registered type
// ---------------------------------------------------------------------------

// Descriptor describes how instances of one type move between their live
// form and a plain structural value (maps, slices, scalars, and other typed
// instances).
//
// ToPlain and FromPlain are required. CreateEmpty and UpdateInstance are
// optional but must be provided together; a type carrying both can be
// reconstructed in two phases (allocate an empty shell, bind its identity,
// populate later) and may therefore participate in reference cycles. A type
// without them is constructed in one shot during the populate pass and is
// rejected with ErrCircularDependency if a cycle runs through it.
type Descriptor struct {
	// Name is the stable wire tag for the type. It must be unique within a
	// registry and must resolve to the same shape in every consumer
	// process, so it is never derived from Go reflection.
	Name string

	// ToPlain converts a live instance to a plain structural value. The
	// result may contain other typed instances; the walker recurses into
	// them.
	ToPlain func(instance any) (any, error)

	// FromPlain builds a new instance from a resolved plain value.
	FromPlain func(plain any) (any, error)

	// CreateEmpty allocates an unpopulated shell whose identity can be
	// handed out before its fields exist.
	CreateEmpty func() any

	// UpdateInstance populates a shell produced by CreateEmpty from a
	// resolved plain value, mutating it in place.
	UpdateInstance func(instance any, plain any) error
}

// TwoPhase reports whether the type supports allocate-then-populate
// reconstruction and may appear inside a reference cycle.
func (d *Descriptor) TwoPhase() bool {
	return d.CreateEmpty != nil && d.UpdateInstance != nil
}

// validate checks structural requirements before registration or use as an
// extra-descriptor hint.
func (d *Descriptor) validate() error {
	if d == nil {
		return fmt.Errorf("nil descriptor")
	}
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if d.ToPlain == nil || d.FromPlain == nil {
		return fmt.Errorf("descriptor %q: ToPlain and FromPlain are required", d.Name)
	}
	if (d.CreateEmpty == nil) != (d.UpdateInstance == nil) {
		return fmt.Errorf("descriptor %q: CreateEmpty and UpdateInstance must be provided together", d.Name)
	}
	return nil
}

// equivalent reports whether two descriptors are the same registration:
// same name and the same function identities. Used to keep Register
// idempotent when module init code runs twice.
func (d *Descriptor) equivalent(other *Descriptor) bool {
	if d == other {
		return true
	}
	if other == nil || d.Name != other.Name {
		return false
	}
	return sameFunc(d.ToPlain, other.ToPlain) &&
		sameFunc(d.FromPlain, other.FromPlain) &&
		sameFunc(d.CreateEmpty, other.CreateEmpty) &&
		sameFunc(d.UpdateInstance, other.UpdateInstance)
}

func sameFunc(a, b any) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.IsNil() || bv.IsNil() {
		return av.IsNil() == bv.IsNil()
	}
	return av.Pointer() == bv.Pointer()
}

package serial

import (
	"fmt"
	"reflect"
	"sync"
)

// ---------------------------------------------------------------------------
// Registry: process-wide name -> descriptor mapping
// ---------------------------------------------------------------------------

// Registry maps stable type names to descriptors, and Go runtime types to
// descriptors for instance dispatch during serialization.
//
// A registry is append-only: registration normally happens once, at module
// init time, and the registry is read-only afterwards. It is safe for
// concurrent use; concurrent Register calls for the same name with differing
// descriptors are reported as ErrDuplicateType rather than silently resolved.
// Call-scoped additions go through the extra-descriptors hint on Deserialize,
// never through the registry.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	byType map[reflect.Type]*Descriptor
}

// NewRegistry creates a registry pre-populated with the built-in descriptors
// (Date, Duration, Buffer, Array, Object, Set).
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*Descriptor),
		byType: make(map[reflect.Type]*Descriptor),
	}
	registerBuiltins(r)
	return r
}

// Register binds desc.Name to desc, and the dynamic type of prototype to
// desc for instance dispatch. prototype should be a zero value of the live
// type, e.g. (*Memory)(nil); it may be nil for a name-only binding that can
// deserialize payloads but never serialize instances.
//
// Registering the identical descriptor again is a no-op. Binding the same
// name (or the same prototype type) to a different descriptor fails with
// ErrDuplicateType.
func (r *Registry) Register(prototype any, desc *Descriptor) error {
	if err := desc.validate(); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[desc.Name]; ok {
		if existing.equivalent(desc) {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrDuplicateType, desc.Name)
	}

	var rt reflect.Type
	if prototype != nil {
		rt = reflect.TypeOf(prototype)
		if existing, ok := r.byType[rt]; ok && !existing.equivalent(desc) {
			return fmt.Errorf("%w: type %s already bound to %q", ErrDuplicateType, rt, existing.Name)
		}
	}

	r.byName[desc.Name] = desc
	if rt != nil {
		r.byType[rt] = desc
	}
	return nil
}

// ResolveName returns the descriptor registered under name.
func (r *Registry) ResolveName(name string) (*Descriptor, error) {
	r.mu.RLock()
	desc, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return desc, nil
}

// lookupType returns the descriptor bound to exactly rt, with no kind
// fallback.
func (r *Registry) lookupType(rt reflect.Type) (*Descriptor, bool) {
	if rt == nil {
		return nil, false
	}
	r.mu.RLock()
	desc, ok := r.byType[rt]
	r.mu.RUnlock()
	return desc, ok
}

// ResolveInstance returns the descriptor for the dynamic type of v. Exact
// type matches win; unregistered slice and string-keyed map types fall back
// to the built-in Array and Object descriptors so common containers
// serialize without explicit registration.
func (r *Registry) ResolveInstance(v any) (*Descriptor, error) {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return nil, fmt.Errorf("%w: nil has no type", ErrUnknownType)
	}

	r.mu.RLock()
	desc, ok := r.byType[rt]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	switch rt.Kind() {
	case reflect.Slice, reflect.Array:
		return r.mustName(wireArray)
	case reflect.Map:
		if rt.Key().Kind() == reflect.String {
			return r.mustName(wireObject)
		}
		return nil, fmt.Errorf("%w: map type %s has non-string keys", ErrUnknownType, rt)
	}

	return nil, fmt.Errorf("%w: no descriptor for Go type %s", ErrUnknownType, rt)
}

// Names returns all registered type names. Order is unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// mustName resolves a built-in by name; built-ins are installed by
// NewRegistry, so a miss is a programming error.
func (r *Registry) mustName(name string) (*Descriptor, error) {
	desc, err := r.ResolveName(name)
	if err != nil {
		return nil, fmt.Errorf("built-in descriptor missing: %w", err)
	}
	return desc, nil
}

// ---------------------------------------------------------------------------
// Default registry
// ---------------------------------------------------------------------------

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry used by the package-level
// Serialize, Deserialize and Register functions.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register registers desc in the default registry. See Registry.Register.
func Register(prototype any, desc *Descriptor) error {
	return Default().Register(prototype, desc)
}

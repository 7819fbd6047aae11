package serial

import "errors"

// ---------------------------------------------------------------------------
// Error Taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrUnknownType is returned when a wire type name is absent from the
	// registry and not supplied via the extra-descriptors hint, or when a
	// value's Go type has no registered descriptor. Recoverable: retry the
	// deserialize call with the missing descriptor in the hint.
	ErrUnknownType = errors.New("unknown type")

	// ErrDuplicateType is returned when a name is registered twice with
	// differing descriptors. Registering the identical descriptor again is
	// a no-op, so module init code can run more than once safely.
	ErrDuplicateType = errors.New("duplicate type registration")

	// ErrDanglingReference indicates a reference node whose target was
	// never bound. It means the allocate/populate discipline was broken;
	// payloads produced by Serialize never trigger it.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrCircularDependency is returned when a reference cycle passes
	// through a type that has no CreateEmpty/UpdateInstance pair and
	// therefore cannot be reconstructed in two phases.
	ErrCircularDependency = errors.New("circular dependency through one-shot type")

	// ErrUnsupportedVersion is returned when the envelope's format major
	// version differs from the one this implementation writes.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrCorruptPayload is returned for structurally invalid envelopes:
	// not JSON, missing version, or malformed wire nodes.
	ErrCorruptPayload = errors.New("corrupt payload")
)

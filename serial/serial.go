// Package serial converts arbitrary, possibly cyclic graphs of typed Go
// values into a portable JSON text form and reconstructs an equivalent graph
// later, potentially in a process that has not registered every type the
// payload mentions.
//
// Every serializable type is registered once, under a stable name, with a
// Descriptor saying how to flatten and rebuild it. Shared references and
// cycles survive the round trip: an instance is written once and referenced
// by id afterwards, and reconstruction runs in two phases (allocate empty
// shells for all two-phase definitions, then populate) so a reference always
// lands on the one shared object.
//
// Types the reading process has not registered can be supplied per call via
// the extra-descriptors hint on Deserialize; the ambient registry is never
// mutated by a deserialize call.
package serial

// Serialize renders the value graph rooted at v to the textual wire format
// using the default registry. It has no side effects beyond reading the
// registry.
func Serialize(v any) (string, error) {
	return Default().Serialize(v)
}

// Deserialize reconstructs the value graph serialized in text, using the
// default registry. extra supplies call-scoped descriptors for type names
// the registry lacks; it takes effect for this call only.
func Deserialize(text string, extra ...*Descriptor) (any, error) {
	return Default().Deserialize(text, extra...)
}

// Serialize renders the value graph rooted at v to the textual wire format.
func (r *Registry) Serialize(v any) (string, error) {
	root, err := newWalker(r).walk(v)
	if err != nil {
		return "", err
	}
	return encodeEnvelope(root)
}

// Deserialize reconstructs the value graph serialized in text.
//
// The two passes run strictly in order: every two-phase definition node is
// allocated and bound before any node is populated. All errors abort the
// whole call; no partial graph is ever returned.
func (r *Registry) Deserialize(text string, extra ...*Descriptor) (any, error) {
	root, err := decodeEnvelope(text)
	if err != nil {
		return nil, err
	}

	dec, err := newDecoder(r, extra)
	if err != nil {
		return nil, err
	}
	if err := dec.allocate(root); err != nil {
		return nil, err
	}
	return dec.populate(root)
}

package serial

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Envelope Codec: wire text <-> tagged-node tree
// ---------------------------------------------------------------------------

// FormatVersion is the envelope format version this implementation writes.
// Readers reject a payload whose major version differs and accept any minor
// extension of their own major.
const FormatVersion = "2.0"

// Wire document keys. Every typed or container node is wrapped in an object
// carrying these keys; scalar leaves are written inline.
const (
	keyMarker  = "__serializer"
	keyClass   = "__class"
	keyRef     = "__ref"
	keyValue   = "__value"
	keyVersion = "__version"
	keyRoot    = "__root"
)

// Built-in wire type names.
const (
	wireDate     = "Date"
	wireDuration = "Duration"
	wireBuffer   = "Buffer"
	wireArray    = "Array"
	wireObject   = "Object"
	wireSet      = "Set"
)

// envelope is the root wrapper of every serialized document.
type envelope struct {
	Version string `json:"__version"`
	Root    any    `json:"__root"`
}

// defNode builds a definition node: the full body of an instance, written
// the first time it is visited.
func defNode(refID, typeName string, value any) map[string]any {
	return map[string]any{
		keyMarker: true,
		keyClass:  typeName,
		keyRef:    refID,
		keyValue:  value,
	}
}

// refNode builds a reference node: a bare pointer at a previously defined
// instance. This is how shared references and cycles appear on the wire.
func refNode(refID string) map[string]any {
	return map[string]any{
		keyMarker: true,
		keyRef:    refID,
	}
}

// isWireNode reports whether a decoded JSON object is a wrapped node rather
// than a plain structural map.
func isWireNode(m map[string]any) bool {
	marker, ok := m[keyMarker].(bool)
	return ok && marker
}

// encodeEnvelope wraps the walked node tree with the format version and
// renders it to text.
func encodeEnvelope(root any) (string, error) {
	data, err := json.Marshal(envelope{Version: FormatVersion, Root: root})
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return string(data), nil
}

// decodeEnvelope parses text, validates the format version, and returns the
// root node tree. Numbers are kept as json.Number so integer values survive
// undamaged; the populate pass normalizes them.
func decodeEnvelope(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}

	version, ok := doc[keyVersion].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptPayload, keyVersion)
	}
	if majorOf(version) != majorOf(FormatVersion) {
		return nil, fmt.Errorf("%w: payload %q, supported %q", ErrUnsupportedVersion, version, FormatVersion)
	}

	root, ok := doc[keyRoot]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptPayload, keyRoot)
	}
	return root, nil
}

// majorOf extracts the major component of a dotted version string.
func majorOf(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

// normalizeNumber converts a decoded json.Number to int64 when the value is
// integral, else float64.
func normalizeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: bad number %q", ErrCorruptPayload, s)
	}
	return f, nil
}

// Package wire frames serialized envelopes for storage as compact CBOR
// records, optionally zstd-compressed. It is storage framing only; moving
// records between processes is the caller's concern.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/chazu/keepsake/serial"
)

// Record is the stored form of one serialized payload.
type Record struct {
	Format     string `cbor:"1,keyasint"`           // envelope format version of the payload
	Compressed bool   `cbor:"2,keyasint,omitempty"` // payload is zstd-compressed
	Payload    []byte `cbor:"3,keyasint"`
}

// DefaultCompressMin is the payload size below which compression is skipped.
const DefaultCompressMin = 1024

var (
	cborEncMode cbor.EncMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create zstd encoder: %v", err))
	}
	zstdEncoder = enc

	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create zstd decoder: %v", err))
	}
	zstdDecoder = dec
}

// PackOptions controls record framing.
type PackOptions struct {
	// Compress enables zstd compression of the payload.
	Compress bool

	// CompressMin is the minimum payload size, in bytes, worth
	// compressing. Zero means DefaultCompressMin.
	CompressMin int
}

// Pack frames a serialized envelope into CBOR record bytes.
func Pack(envelope []byte, opts PackOptions) ([]byte, error) {
	rec := &Record{
		Format:  serial.FormatVersion,
		Payload: envelope,
	}

	minSize := opts.CompressMin
	if minSize <= 0 {
		minSize = DefaultCompressMin
	}
	if opts.Compress && len(envelope) >= minSize {
		rec.Payload = zstdEncoder.EncodeAll(envelope, nil)
		rec.Compressed = true
	}

	return MarshalRecord(rec)
}

// Unpack parses record bytes and returns the serialized envelope, expanded
// if it was stored compressed.
func Unpack(data []byte) ([]byte, error) {
	rec, err := UnmarshalRecord(data)
	if err != nil {
		return nil, err
	}
	return rec.Body()
}

// MarshalRecord serializes a Record to canonical CBOR bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a Record from CBOR bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal record: %w", err)
	}
	return &r, nil
}

// Body returns the record's envelope bytes, decompressing when needed.
func (r *Record) Body() ([]byte, error) {
	if !r.Compressed {
		return r.Payload, nil
	}
	body, err := zstdDecoder.DecodeAll(r.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: decompress record: %w", err)
	}
	return body, nil
}

// Package codec converts values to and from the bytes a session store persists.
//
// The store itself uses a Codec[sessioncas.Record] for the record envelope; the session
// manager uses a Codec[V] for the opaque session content inside that envelope.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

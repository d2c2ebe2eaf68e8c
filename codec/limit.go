package codec

import "fmt"

// TooLargeError is returned by Limit when a payload exceeds its bound.
type TooLargeError struct {
	Size, Max int
	Encoding bool
}

func (e *TooLargeError) Error() string {
	op := "decode"
	if e.Encoding {
		op = "encode"
	}
	return fmt.Sprintf("codec: %s payload too large: %d > %d", op, e.Size, e.Max)
}

// Limit wraps another codec and bounds payload size in both directions.
// A session that grows past MaxEncode fails at write time instead of being
// silently dropped by the cache (memcached rejects items over its slab size).
// MaxDecode guards against oversized values planted in a shared cache.
// Non-positive limits disable the corresponding check.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

var _ Codec[[]byte] = Limit[[]byte]{}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, &TooLargeError{Size: len(b), Max: c.MaxEncode, Encoding: true}
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, &TooLargeError{Size: len(b), Max: c.MaxDecode}
	}
	return c.Inner.Decode(b)
}

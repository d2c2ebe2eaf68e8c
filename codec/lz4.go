package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"
)

const (
	lz4Raw   byte = 0
	lz4Frame byte = 1

	defaultLZ4Threshold = 1024
)

var errLZ4Header = errors.New("codec: lz4 payload missing header")

// LZ4 wraps another codec and compresses its output with an LZ4 frame once the
// encoded size reaches Threshold (0 => 1KiB). Small payloads are stored raw.
// Every payload carries a one-byte header, so Threshold can change between
// releases without breaking stored sessions.
type LZ4[V any] struct {
	Inner     Codec[V]
	Threshold int
}

var _ Codec[[]byte] = LZ4[[]byte]{}

func (c LZ4[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	th := c.Threshold
	if th <= 0 {
		th = defaultLZ4Threshold
	}
	if len(b) < th {
		out := make([]byte, 0, 1+len(b))
		out = append(out, lz4Raw)
		return append(out, b...), nil
	}

	var buf bytes.Buffer
	buf.Grow(len(b)/2 + 16)
	buf.WriteByte(lz4Frame)
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c LZ4[V]) Decode(b []byte) (V, error) {
	var zero V
	if len(b) == 0 {
		return zero, errLZ4Header
	}
	switch b[0] {
	case lz4Raw:
		return c.Inner.Decode(b[1:])
	case lz4Frame:
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b[1:])))
		if err != nil {
			return zero, err
		}
		return c.Inner.Decode(raw)
	default:
		return zero, errLZ4Header
	}
}

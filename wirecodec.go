package sessioncas

import (
	"fmt"
	"math"
	"time"

	"github.com/unkn0wn-root/sessioncas/codec"
	"github.com/unkn0wn-root/sessioncas/internal/wire"
)

// WireCodec is the default record codec: a fixed, versioned binary frame that keeps
// Content byte-for-byte (nil and empty are distinct). Decoded Content aliases the
// input buffer.
type WireCodec struct{}

var _ codec.Codec[Record] = WireCodec{}

func (WireCodec) Encode(r Record) ([]byte, error) {
	if r.TimeoutMinutes < 0 || int64(r.TimeoutMinutes) > math.MaxUint32 {
		return nil, fmt.Errorf("sessioncas: timeout %d minutes out of range", r.TimeoutMinutes)
	}
	var lockTime int64
	if !r.LockTime.IsZero() {
		lockTime = r.LockTime.UnixNano()
	}
	return wire.EncodeRecord(wire.Record{
		Locked:         r.Locked,
		LockTimeNano:   lockTime,
		LockID:         uint64(r.LockID),
		Actions:        uint8(r.Actions),
		TimeoutMinutes: uint32(r.TimeoutMinutes),
		Content:        r.Content,
	}), nil
}

func (WireCodec) Decode(b []byte) (Record, error) {
	w, err := wire.DecodeRecord(b)
	if err != nil {
		return Record{}, err
	}
	r := Record{
		Locked:         w.Locked,
		LockID:         LockID(w.LockID),
		Actions:        Action(w.Actions),
		TimeoutMinutes: int(w.TimeoutMinutes),
		Content:        w.Content,
	}
	if w.LockTimeNano != 0 {
		r.LockTime = time.Unix(0, w.LockTimeNano)
	}
	return r, nil
}

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1

	flagLocked  byte = 1 << 0
	flagContent byte = 1 << 1 // content present (distinguishes nil from empty)
)

var (
	ErrCorrupt = errors.New("sessioncas: corrupt record")
	// ErrVersion is a well-formed frame header carrying a version this build cannot read.
	ErrVersion = errors.New("sessioncas: unsupported record version")
	magic4     = [...]byte{'S', 'E', 'S', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record is the flat, codec-facing shape of a stored session record.
type Record struct {
	Locked         bool
	LockTimeNano   int64 // unix nanoseconds; 0 when never locked
	LockID         uint64
	Actions        uint8
	TimeoutMinutes uint32
	Content        []byte
}

const hdrLen = 4 + 1 + 1 + 1 + 8 + 8 + 4 + 4

// Record:
//
//	magic(4) | ver(1) | flags(1) | actions(1) | lockTime(i64 be) | lockID(u64 be) |
//	timeout(u32 be) | clen(u32 be) | content(clen)
func EncodeRecord(r Record) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(r.Content))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if r.Locked {
		flags |= flagLocked
	}
	if r.Content != nil {
		flags |= flagContent
	}
	buf.WriteByte(flags)
	buf.WriteByte(r.Actions)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(r.LockTimeNano))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], r.LockID)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], r.TimeoutMinutes)
	buf.Write(u4[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Content)))
	buf.Write(u4[:])

	buf.Write(r.Content)
	return buf.Bytes()
}

// DecodeRecord parses b strictly: unknown flags, short input and trailing bytes are corrupt.
// A frame with the magic but another version byte is ErrVersion. Content aliases b.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < 5 || !hasMagic(b) {
		return Record{}, ErrCorrupt
	}
	if b[4] != version {
		return Record{}, ErrVersion
	}
	if len(b) < hdrLen {
		return Record{}, ErrCorrupt
	}
	flags := b[5]
	if flags&^(flagLocked|flagContent) != 0 {
		return Record{}, ErrCorrupt
	}

	r := Record{
		Locked:  flags&flagLocked != 0,
		Actions: b[6],
	}
	off := 7

	r.LockTimeNano = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	r.LockID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	r.TimeoutMinutes = binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	clen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if clen < 0 || clen != len(b)-off { // exact framing
		return Record{}, ErrCorrupt
	}
	if flags&flagContent == 0 {
		if clen != 0 {
			return Record{}, ErrCorrupt
		}
		return r, nil
	}
	r.Content = b[off : off+clen]
	return r, nil
}

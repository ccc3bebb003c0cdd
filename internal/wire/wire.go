// Package wire frames stored record payloads.
//
// Record entries carry their expiration instant alongside the value so a read
// can reconstruct the full record without a second lookup. Namespace mapping
// entries are stored raw (plain string bytes) and never pass through this
// framing.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindRecord byte = 1
)

var (
	ErrCorrupt = errors.New("nsstore: corrupt entry")
	magic4     = [...]byte{'N', 'S', 'T', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record: magic(4) | ver(1) | kind(1=record) | exp ms (u64 be) | vlen(u32 be) | value(vlen)
func EncodeRecord(expiration int64, value []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(value))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRecord)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expiration))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(value)))
	buf.Write(u4[:])

	buf.Write(value)
	return buf.Bytes()
}

func DecodeRecord(b []byte) (expiration int64, value []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindRecord {
		return 0, nil, ErrCorrupt
	}

	off := 6

	expiration = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return 0, nil, ErrCorrupt
	}

	return expiration, b[off : off+vlen], nil
}

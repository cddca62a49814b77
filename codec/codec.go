// Package codec defines the pluggable byte-codec contract used for user keys
// and values, plus two concrete codecs good enough to run the tree end to
// end without a caller supplying their own.
package codec

import "encoding/binary"

// Codec encodes and decodes the opaque key or value bytes a caller hands to
// the tree. It is never applied to internal index blobs (YoloIndex bytes),
// only to the literal key/value fields of a Node block. Both directions are
// total: a codec used by this module never rejects bytes it itself produced.
type Codec interface {
	Encode(v []byte) []byte
	Decode(b []byte) []byte
}

// Raw is the identity codec: bytes in, bytes out. Used whenever the caller
// already supplies canonical, comparable key bytes.
var Raw Codec = rawCodec{}

type rawCodec struct{}

func (rawCodec) Encode(v []byte) []byte { return v }
func (rawCodec) Decode(b []byte) []byte { return b }

// Binary stores uint64 keys as fixed-width big-endian bytes so their byte
// order matches their numeric order (a bare varint would not). Encode takes
// the caller's compact binary.PutUvarint encoding of the key and normalizes
// it to the 8-byte big-endian form actually written to the block; Decode
// reverses that back into the caller's compact varint form.
var Binary Codec = binaryCodec{}

type binaryCodec struct{}

func (binaryCodec) Encode(v []byte) []byte {
	u, _ := binary.Uvarint(v)
	return EncodeUint64(u)
}

func (binaryCodec) Decode(b []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, DecodeUint64(b))
	return buf[:n]
}

// EncodeUint64 renders v as the fixed-width big-endian bytes Binary stores.
func EncodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// DecodeUint64 reverses EncodeUint64.
func DecodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

package beetree

import (
	"beetree/internal/encoding"
)

// Wire format. Every log block is one of two kinds, discriminated by its
// first byte. All integers are packed varints (SQLite-style, see
// internal/encoding), matching spec's "packed varint throughout".
const (
	blockTagHeader byte = 0
	blockTagNode   byte = 1
)

// protocolName is the literal string written into the seq-0 header block.
const protocolName = "hyperbee"

// Metadata is the optional payload of the header block.
type Metadata struct {
	ContentFeed []byte
}

// Header is the seq-0 block every tree log begins with.
type Header struct {
	Protocol string
	Metadata *Metadata
}

// Node is the payload of every tree block (seq >= 1): the literal key and
// (optional) value this block publishes, plus the encoded YoloIndex
// snapshot of the changed spine as of this block.
type Node struct {
	Index    []byte // encoded YoloIndex
	Key      []byte
	Value    []byte
	HasValue bool // false => tombstone (delete marker)
}

// Level is one level of a YoloIndex: the packed keys and children arrays
// for every node resolved at that offset.
type Level struct {
	Keys     []uint64 // one seq per key-reference
	Children []uint64 // packed (seq, offset) pairs, always even length
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [9]byte
	n := encoding.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(buf []byte) (uint64, []byte, error) {
	if len(buf) == 0 {
		return 0, nil, ErrBadWire
	}
	v, n := encoding.GetVarint(buf)
	if n == 0 || n > len(buf) {
		return 0, nil, ErrBadWire
	}
	return v, buf[n:], nil
}

func appendBytesField(buf, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytesField(buf []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, ErrBadWire
	}
	return rest[:n], rest[n:], nil
}

// EncodeYoloIndex canonically serializes a slice of levels.
func EncodeYoloIndex(levels []Level) []byte {
	buf := appendUvarint(nil, uint64(len(levels)))
	for _, lvl := range levels {
		buf = appendUvarint(buf, uint64(len(lvl.Keys)))
		for _, k := range lvl.Keys {
			buf = appendUvarint(buf, k)
		}
		buf = appendUvarint(buf, uint64(len(lvl.Children)))
		for _, c := range lvl.Children {
			buf = appendUvarint(buf, c)
		}
	}
	return buf
}

// DecodeYoloIndex is the inverse of EncodeYoloIndex; lossless round-trip.
func DecodeYoloIndex(b []byte) ([]Level, error) {
	numLevels, rest, err := readUvarint(b)
	if err != nil {
		return nil, err
	}
	levels := make([]Level, 0, numLevels)
	for i := uint64(0); i < numLevels; i++ {
		var lvl Level
		numKeys, r, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		rest = r
		lvl.Keys = make([]uint64, numKeys)
		for k := uint64(0); k < numKeys; k++ {
			v, r, err := readUvarint(rest)
			if err != nil {
				return nil, err
			}
			lvl.Keys[k] = v
			rest = r
		}
		numChildren, r, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		rest = r
		lvl.Children = make([]uint64, numChildren)
		for c := uint64(0); c < numChildren; c++ {
			v, r, err := readUvarint(rest)
			if err != nil {
				return nil, err
			}
			lvl.Children[c] = v
			rest = r
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// EncodeHeader serializes the seq-0 header block.
func EncodeHeader(h Header) []byte {
	buf := []byte{blockTagHeader}
	buf = appendBytesField(buf, []byte(h.Protocol))
	if h.Metadata == nil {
		buf = append(buf, 0)
		return buf
	}
	buf = append(buf, 1)
	if h.Metadata.ContentFeed == nil {
		buf = append(buf, 0)
		return buf
	}
	buf = append(buf, 1)
	buf = appendBytesField(buf, h.Metadata.ContentFeed)
	return buf
}

// DecodeHeader is the inverse of EncodeHeader.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) == 0 || b[0] != blockTagHeader {
		return Header{}, ErrBadWire
	}
	protocol, rest, err := readBytesField(b[1:])
	if err != nil {
		return Header{}, err
	}
	if len(rest) == 0 {
		return Header{}, ErrBadWire
	}
	hasMeta := rest[0] == 1
	rest = rest[1:]
	h := Header{Protocol: string(protocol)}
	if !hasMeta {
		return h, nil
	}
	h.Metadata = &Metadata{}
	if len(rest) == 0 {
		return Header{}, ErrBadWire
	}
	hasFeed := rest[0] == 1
	rest = rest[1:]
	if hasFeed {
		feed, _, err := readBytesField(rest)
		if err != nil {
			return Header{}, err
		}
		h.Metadata.ContentFeed = feed
	}
	return h, nil
}

// EncodeNode serializes a tree block's payload.
func EncodeNode(n Node) []byte {
	buf := []byte{blockTagNode}
	buf = appendBytesField(buf, n.Index)
	buf = appendBytesField(buf, n.Key)
	if !n.HasValue {
		buf = append(buf, 0)
		return buf
	}
	buf = append(buf, 1)
	buf = appendBytesField(buf, n.Value)
	return buf
}

// DecodeNode is the inverse of EncodeNode.
func DecodeNode(b []byte) (Node, error) {
	if len(b) == 0 || b[0] != blockTagNode {
		return Node{}, ErrBadWire
	}
	index, rest, err := readBytesField(b[1:])
	if err != nil {
		return Node{}, err
	}
	key, rest, err := readBytesField(rest)
	if err != nil {
		return Node{}, err
	}
	n := Node{Index: index, Key: key}
	if len(rest) == 0 {
		return Node{}, ErrBadWire
	}
	if rest[0] == 1 {
		value, _, err := readBytesField(rest[1:])
		if err != nil {
			return Node{}, err
		}
		n.Value = value
		n.HasValue = true
	}
	return n, nil
}

// blockKind reports which of Header/Node a raw block decodes as, without
// fully decoding it.
func blockKind(raw []byte) (byte, error) {
	if len(raw) == 0 {
		return 0, ErrBadWire
	}
	return raw[0], nil
}

package codec

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRawRoundTrip(t *testing.T) {
	in := []byte("hello")
	if !bytes.Equal(Raw.Decode(Raw.Encode(in)), in) {
		t.Fatal("raw codec must round-trip unchanged")
	}
}

func TestBinaryUint64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 255, 1 << 40, ^uint64(0)} {
		varint := make([]byte, binary.MaxVarintLen64)
		varint = varint[:binary.PutUvarint(varint, v)]

		stored := Binary.Encode(varint)
		if len(stored) != 8 {
			t.Fatalf("want 8 stored bytes, got %d", len(stored))
		}
		if got := DecodeUint64(stored); got != v {
			t.Fatalf("want %d, got %d", v, got)
		}

		back := Binary.Decode(stored)
		if !bytes.Equal(back, varint) {
			t.Fatalf("round trip: want % x, got % x", varint, back)
		}
	}
}

func TestBinaryOrderMatchesNumericOrder(t *testing.T) {
	a, b := EncodeUint64(5), EncodeUint64(10)
	if bytes.Compare(a, b) >= 0 {
		t.Fatal("encoded 5 must sort before encoded 10")
	}
}

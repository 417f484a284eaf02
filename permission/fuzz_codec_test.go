package permission

import (
	"bytes"
	"testing"
)

// FuzzSetCodecRoundTrip exercises the permission-set decode path with arbitrary bytes.
// Goal: no panics; anything that decodes must re-encode to the same bytes.
func FuzzSetCodecRoundTrip(f *testing.F) {
	seed, err := EncodeSet(NewSet("system:user:list", "monitor:online:list"))
	if err != nil {
		f.Fatal(err)
	}
	empty, err := EncodeSet(NewSet())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(seed)
	f.Add(empty)
	f.Add([]byte{})
	f.Add([]byte{1, 0, 0, 0, 9})
	f.Add([]byte{2, 0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		set, err := DecodeSet(data)
		if err != nil {
			return
		}

		encoded, err := EncodeSet(set)
		if err != nil {
			t.Fatalf("EncodeSet failed after successful DecodeSet: %v", err)
		}

		reDecoded, err := DecodeSet(encoded)
		if err != nil {
			t.Fatalf("DecodeSet roundtrip failed: %v", err)
		}
		reEncoded, _ := EncodeSet(reDecoded)
		if !bytes.Equal(encoded, reEncoded) {
			t.Fatal("roundtrip produced different bytes")
		}
	})
}

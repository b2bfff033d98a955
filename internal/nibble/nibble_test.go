package nibble

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		nibbles []byte
		kind    Kind
	}{
		{"ExtensionEven", []byte{0x1, 0x2, 0x3, 0x4}, Extension},
		{"ExtensionOdd", []byte{0x1, 0x2, 0x3}, Extension},
		{"LeafEven", []byte{0xa, 0xb, 0xc, 0xd}, Leaf},
		{"LeafOdd", []byte{0xa, 0xb, 0xc}, Leaf},
		{"Empty", []byte{}, Leaf},
		{"SingleNibble", []byte{0x7}, Extension},
	}

	for _, tc := range tests {
		encoded, err := Encode(tc.nibbles, tc.kind)
		if err != nil {
			t.Fatalf("%s: Encode: %v", tc.name, err)
		}
		decoded, kind, err := Decode(encoded)
		if err != nil {
			t.Fatalf("%s: Decode: %v", tc.name, err)
		}
		if kind != tc.kind {
			t.Fatalf("%s: kind = %v, want %v", tc.name, kind, tc.kind)
		}
		if !bytes.Equal(decoded, tc.nibbles) && len(decoded)+len(tc.nibbles) != 0 {
			t.Fatalf("%s: decoded = %v, want %v", tc.name, decoded, tc.nibbles)
		}
	}
}

func TestDecodeIllegalPrefix(t *testing.T) {
	if _, _, err := Decode([]byte{0x40}); err == nil {
		t.Fatal("expected error for illegal high nibble, got nil")
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding an empty partial path, got nil")
	}
}

func TestPathClassify(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 0x12
	key[1] = 0x34
	path := FromBytes(key)

	subMatch, err := Encode([]byte{0x1, 0x2}, Extension)
	if err != nil {
		t.Fatal(err)
	}
	nature, _, err := path.Classify(subMatch)
	if err != nil {
		t.Fatal(err)
	}
	if nature != SubPathMatches {
		t.Fatalf("nature = %v, want SubPathMatches", nature)
	}

	diverging, err := Encode([]byte{0x1, 0xf}, Extension)
	if err != nil {
		t.Fatal(err)
	}
	nature, divergeIdx, err := path.Classify(diverging)
	if err != nil {
		t.Fatal(err)
	}
	if nature != SubPathDiverges {
		t.Fatalf("nature = %v, want SubPathDiverges", nature)
	}
	if divergeIdx != 1 {
		t.Fatalf("divergeIdx = %d, want 1", divergeIdx)
	}
}

func TestPathClassifyFullMatch(t *testing.T) {
	key := make([]byte, 32)
	path := FromBytes(key)
	full := make([]byte, 64)
	encoded, err := Encode(full, Leaf)
	if err != nil {
		t.Fatal(err)
	}
	nature, _, err := path.Classify(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if nature != FullPathMatches {
		t.Fatalf("nature = %v, want FullPathMatches", nature)
	}
}

func TestPathNextAndCursor(t *testing.T) {
	key := []byte{0xab, 0xcd}
	path := FromBytes(key)
	if path.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", path.Len())
	}
	want := []byte{0xa, 0xb, 0xc, 0xd}
	for i, w := range want {
		got, err := path.Next()
		if err != nil {
			t.Fatalf("Next() at %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("Next() at %d = %x, want %x", i, got, w)
		}
	}
	if _, err := path.Next(); err == nil {
		t.Fatal("expected error reading past the end of the path")
	}
}

func TestAppendPrependMerge(t *testing.T) {
	base, err := Encode([]byte{0x1, 0x2}, Extension)
	if err != nil {
		t.Fatal(err)
	}
	appended, err := AppendOne(base, 0x3, Extension)
	if err != nil {
		t.Fatal(err)
	}
	nibbles, _, err := Decode(appended)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(nibbles, []byte{0x1, 0x2, 0x3}) {
		t.Fatalf("AppendOne result = %v, want [1 2 3]", nibbles)
	}

	prepended, err := PrependOne(0x0, base, Extension)
	if err != nil {
		t.Fatal(err)
	}
	nibbles, _, err = Decode(prepended)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(nibbles, []byte{0x0, 0x1, 0x2}) {
		t.Fatalf("PrependOne result = %v, want [0 1 2]", nibbles)
	}

	orphan, err := Encode([]byte{0x9}, Extension)
	if err != nil {
		t.Fatal(err)
	}
	merged, err := Merge(base, 0x5, orphan, Extension)
	if err != nil {
		t.Fatal(err)
	}
	nibbles, _, err = Decode(merged)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(nibbles, []byte{0x1, 0x2, 0x5, 0x9}) {
		t.Fatalf("Merge result = %v, want [1 2 5 9]", nibbles)
	}
}

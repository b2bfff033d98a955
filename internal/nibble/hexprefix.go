package nibble

import "github.com/mattlabs/triewitness/internal/trieerr"

// Kind distinguishes the two hex-prefix encodings, which differ only in
// the terminator bit of the flag nibble: Extension partial paths continue
// to a child node, Leaf partial paths terminate at a value.
type Kind int

const (
	Extension Kind = iota
	Leaf
)

// Decode parses a hex-prefix (compact) encoded byte string, returning the
// nibbles it represents and which Kind produced it.
func Decode(encoded []byte) ([]byte, Kind, error) {
	if len(encoded) == 0 {
		return nil, 0, trieerr.NewStructural("decode hex-prefix", "empty partial path")
	}

	flag := encoded[0] >> 4
	var kind Kind
	var odd bool
	switch flag {
	case 0:
		kind, odd = Extension, false
	case 1:
		kind, odd = Extension, true
	case 2:
		kind, odd = Leaf, false
	case 3:
		kind, odd = Leaf, true
	default:
		return nil, 0, trieerr.NewStructural("decode hex-prefix", "illegal high nibble in prefix byte")
	}

	nibbles := make([]byte, 0, len(encoded)*2)
	if odd {
		nibbles = append(nibbles, encoded[0]&0x0f)
	} else if encoded[0]&0x0f != 0 {
		return nil, 0, trieerr.NewStructural("decode hex-prefix", "non-zero padding nibble on an even-length prefix")
	}
	for _, b := range encoded[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles, kind, nil
}

// Encode produces the hex-prefix byte string for nibbles, tagged as kind.
func Encode(nibbles []byte, kind Kind) ([]byte, error) {
	for _, n := range nibbles {
		if n > 0x0f {
			return nil, trieerr.NewRange("encode hex-prefix", "nibble value out of range 0..15")
		}
	}

	odd := len(nibbles)%2 == 1
	var flag byte
	switch {
	case kind == Extension && !odd:
		flag = 0x00
	case kind == Extension && odd:
		flag = 0x10
	case kind == Leaf && !odd:
		flag = 0x20
	case kind == Leaf && odd:
		flag = 0x30
	}

	out := make([]byte, 0, len(nibbles)/2+1)
	i := 0
	if odd {
		out = append(out, flag|nibbles[0])
		i = 1
	} else {
		out = append(out, flag)
	}
	for ; i+1 < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out, nil
}

// AppendOne decodes encoded, appends n to its nibble sequence, and
// re-encodes the result as kind.
func AppendOne(encoded []byte, n byte, kind Kind) ([]byte, error) {
	nibbles, _, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	return Encode(append(nibbles, n), kind)
}

// PrependOne decodes encoded, prepends n to its nibble sequence, and
// re-encodes the result as kind.
func PrependOne(n byte, encoded []byte, kind Kind) ([]byte, error) {
	nibbles, _, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nibbles)+1)
	out = append(out, n)
	out = append(out, nibbles...)
	return Encode(out, kind)
}

// Merge decodes grandparentEncoded and orphanEncoded, concatenates
// grandparent-nibbles + n + orphan-nibbles, and re-encodes the result as
// kind. Used when a grandparent absorbs an orphan node during a branch
// collapse.
func Merge(grandparentEncoded []byte, n byte, orphanEncoded []byte, kind Kind) ([]byte, error) {
	gp, _, err := Decode(grandparentEncoded)
	if err != nil {
		return nil, err
	}
	orphan, _, err := Decode(orphanEncoded)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(gp)+1+len(orphan))
	out = append(out, gp...)
	out = append(out, n)
	out = append(out, orphan...)
	return Encode(out, kind)
}

// Single encodes the one-nibble partial path [n] as kind. Used to wrap an
// orphan branch in a minimal extension during a collapse.
func Single(n byte, kind Kind) ([]byte, error) {
	return Encode([]byte{n}, kind)
}

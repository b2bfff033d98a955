package nibble

import "github.com/mattlabs/triewitness/internal/trieerr"

// Nature classifies the outcome of comparing a terminal node's partial
// path against the remaining nibbles of a Path being traversed.
type Nature int

const (
	SubPathMatches Nature = iota
	SubPathDiverges
	FullPathMatches
	FullPathDiverges
)

// Path is the expanded nibble sequence of a 32-byte trie path (the keccak
// of a logical key), with a cursor tracking how much of it traversal has
// already consumed.
type Path struct {
	nibbles []byte
	cursor  int
}

// FromBytes expands key (expected to be a 32-byte hash) into its 64-nibble
// big-endian sequence, cursor at zero.
func FromBytes(key []byte) *Path {
	out := make([]byte, len(key)*2)
	for i, b := range key {
		out[i*2] = b >> 4
		out[i*2+1] = b & 0x0f
	}
	return &Path{nibbles: out}
}

// Len returns the total number of nibbles in the path.
func (p *Path) Len() int { return len(p.nibbles) }

// Cursor returns how many nibbles have been consumed so far.
func (p *Path) Cursor() int { return p.cursor }

// At returns the nibble at absolute index i without moving the cursor.
func (p *Path) At(i int) (byte, error) {
	if i < 0 || i >= len(p.nibbles) {
		return 0, trieerr.NewRange("path index", "nibble index out of range")
	}
	return p.nibbles[i], nil
}

// Next returns the nibble at the cursor and advances the cursor by one.
func (p *Path) Next() (byte, error) {
	n, err := p.At(p.cursor)
	if err != nil {
		return 0, err
	}
	p.cursor++
	return n, nil
}

// SkipExtension decodes the nibbles hex-prefix encoded in partial,
// asserts each matches the path starting at the cursor, and advances the
// cursor past them. Traversal callers usually run Classify first, so the
// check here is then a defensive re-verification; the oracle-task re-walk
// in package multiproof calls it without classifying and relies on it.
func (p *Path) SkipExtension(partial []byte) error {
	nibbles, _, err := Decode(partial)
	if err != nil {
		return err
	}
	for i, want := range nibbles {
		got, err := p.At(p.cursor + i)
		if err != nil {
			return err
		}
		if got != want {
			return trieerr.NewStructural("skip extension", "nibble mismatch against an already-classified path")
		}
	}
	p.cursor += len(nibbles)
	return nil
}

// Classify compares the nibbles hex-prefix encoded in partial against the
// path from the cursor onward, without moving the cursor. The Full
// variants apply exactly when cursor + len(nibbles) equals the path's
// total length; otherwise the Sub variants apply. divergeIndex is only
// meaningful when the returned Nature is one of the Diverges variants.
func (p *Path) Classify(partial []byte) (nature Nature, divergeIndex int, err error) {
	nibbles, _, err := Decode(partial)
	if err != nil {
		return 0, 0, err
	}
	full := p.cursor+len(nibbles) == len(p.nibbles)

	for i, want := range nibbles {
		idx := p.cursor + i
		if idx >= len(p.nibbles) {
			return 0, 0, trieerr.NewStructural("classify path", "partial path longer than remaining path")
		}
		if p.nibbles[idx] != want {
			if full {
				return FullPathDiverges, idx, nil
			}
			return SubPathDiverges, idx, nil
		}
	}
	if full {
		return FullPathMatches, 0, nil
	}
	return SubPathMatches, 0, nil
}

// EncodeRange hex-prefix encodes the half-open nibble range [low, high) of
// the path as kind.
func (p *Path) EncodeRange(low, high int, kind Kind) ([]byte, error) {
	if low < 0 || high > len(p.nibbles) || low > high {
		return nil, trieerr.NewRange("encode range", "invalid nibble range over path")
	}
	return Encode(p.nibbles[low:high], kind)
}

// Package node implements the RLP sum type of the secure Merkle Patricia
// Trie: Branch (17 items), Extension (2 items), Leaf (2 items). All node
// references between these forms are 32-byte keccak hashes; this package
// never embeds a short node directly inside its parent's RLP the way a
// disk-resident trie sometimes does (see DESIGN.md).
package node

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/trieerr"
)

// Kind names one of the three node shapes.
type Kind int

const (
	Branch Kind = iota
	Extension
	Leaf
)

const branchItemCount = 17
const branchValueSlot = 16

// Decoded is a typed view over an RLP-decoded trie node. Only the fields
// relevant to Kind are populated.
type Decoded struct {
	Kind Kind

	// Branch
	Children [16][]byte // each empty ([]byte{}) or a 32-byte child hash

	// Extension and Leaf
	Path []byte // hex-prefix encoded partial path

	// Extension only
	Child []byte // 32-byte child hash

	// Leaf only
	Value []byte // opaque RLP-encoded value bytes
}

// NewBranch builds a Branch node from its 16 child references.
func NewBranch(children [16][]byte) *Decoded {
	return &Decoded{Kind: Branch, Children: children}
}

// NewExtension builds an Extension node from its hex-prefix path and
// 32-byte child hash.
func NewExtension(path, child []byte) *Decoded {
	return &Decoded{Kind: Extension, Path: path, Child: child}
}

// NewLeaf builds a Leaf node from its hex-prefix path and opaque value.
func NewLeaf(path, value []byte) *Decoded {
	return &Decoded{Kind: Leaf, Path: path, Value: value}
}

// Decode RLP-decodes raw and classifies it as Branch, Extension, or Leaf.
func Decode(raw []byte) (*Decoded, error) {
	var items [][]byte
	if err := rlp.DecodeBytes(raw, &items); err != nil {
		return nil, trieerr.NewStructural("decode node", "not a well-formed RLP list: "+err.Error())
	}

	switch len(items) {
	case branchItemCount:
		if len(items[branchValueSlot]) != 0 {
			return nil, trieerr.NewStructural("decode node", "branch node carries a value")
		}
		var children [16][]byte
		for i := 0; i < 16; i++ {
			switch len(items[i]) {
			case 0:
				children[i] = []byte{}
			case common.HashLength:
				children[i] = items[i]
			default:
				return nil, trieerr.NewStructural("decode node", "branch child has an unsupported encoding length")
			}
		}
		return &Decoded{Kind: Branch, Children: children}, nil

	case 2:
		if len(items[0]) == 0 {
			return nil, trieerr.NewStructural("decode node", "empty partial path")
		}
		_, kind, err := nibble.Decode(items[0])
		if err != nil {
			return nil, err
		}
		switch kind {
		case nibble.Extension:
			if len(items[1]) != common.HashLength {
				return nil, trieerr.NewStructural("decode node", "extension child has an unsupported encoding length")
			}
			return &Decoded{Kind: Extension, Path: items[0], Child: items[1]}, nil
		default: // nibble.Leaf
			return &Decoded{Kind: Leaf, Path: items[0], Value: items[1]}, nil
		}

	default:
		return nil, trieerr.NewStructural("decode node", "unexpected RLP item count")
	}
}

// Encode produces the canonical RLP encoding of d.
func (d *Decoded) Encode() ([]byte, error) {
	switch d.Kind {
	case Branch:
		items := make([][]byte, branchItemCount)
		for i := 0; i < 16; i++ {
			items[i] = d.Children[i]
		}
		items[branchValueSlot] = []byte{}
		return rlp.EncodeToBytes(items)
	case Extension:
		return rlp.EncodeToBytes([][]byte{d.Path, d.Child})
	case Leaf:
		return rlp.EncodeToBytes([][]byte{d.Path, d.Value})
	default:
		return nil, trieerr.NewStructural("encode node", "unknown node kind")
	}
}

// Hash returns the keccak256 of d's canonical RLP encoding: the reference
// by which its parent addresses it.
func (d *Decoded) Hash() (common.Hash, error) {
	raw, err := d.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

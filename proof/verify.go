// Package proof verifies a single EIP-1186 style Merkle proof against a
// known state root, independent of the multi-proof store: given an
// ordered list of node RLP blobs from the root down to a leaf or
// exclusion point, confirm that each hashes correctly into the one above
// it and that the terminal node settles the claimed inclusion or
// exclusion.
package proof

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/node"
	"github.com/mattlabs/triewitness/internal/trieerr"
)

// VerifyInclusion confirms that nodes, walked from root along the trie
// path for key, terminates in a leaf whose value equals want.
func VerifyInclusion(root common.Hash, key []byte, want []byte, nodes [][]byte) error {
	leafValue, err := walk(root, key, nodes)
	if err != nil {
		return err
	}
	if leafValue == nil {
		return trieerr.NewInclusionRequired()
	}
	if !bytes.Equal(leafValue, want) {
		return trieerr.NewValueMismatch(want, leafValue)
	}
	return nil
}

// VerifyExclusion confirms that nodes, walked from root along the trie
// path for key, terminates before reaching a leaf for key: an empty
// branch slot, or a leaf/extension whose partial path diverges from key.
func VerifyExclusion(root common.Hash, key []byte, nodes [][]byte) error {
	leafValue, err := walk(root, key, nodes)
	if err != nil {
		return err
	}
	if leafValue != nil {
		return trieerr.NewExclusionRequired()
	}
	return nil
}

// walk traverses nodes (an ordered root-to-terminus sequence) along key's
// path, returning the leaf's value on inclusion or nil on exclusion.
func walk(root common.Hash, key []byte, nodes [][]byte) ([]byte, error) {
	if len(nodes) == 0 {
		return nil, trieerr.NewRange("verify proof", "empty node list")
	}
	if len(key) != common.HashLength {
		return nil, trieerr.NewRange("verify proof", "key must be a 32-byte trie path")
	}

	path := nibble.FromBytes(key)
	expected := root

	for i, raw := range nodes {
		got := crypto.Keccak256Hash(raw)
		if got != expected {
			return nil, trieerr.NewIntegrity(expected, got)
		}
		dec, err := node.Decode(raw)
		if err != nil {
			return nil, err
		}

		switch dec.Kind {
		case node.Branch:
			nib, err := path.Next()
			if err != nil {
				return nil, err
			}
			ref := dec.Children[nib]
			if len(ref) == 0 {
				if i != len(nodes)-1 {
					return nil, trieerr.NewStructural("verify proof", "proof continues past an empty branch slot")
				}
				return nil, nil
			}
			expected = common.BytesToHash(ref)

		case node.Extension:
			nature, _, err := path.Classify(dec.Path)
			if err != nil {
				return nil, err
			}
			switch nature {
			case nibble.SubPathMatches:
				if err := path.SkipExtension(dec.Path); err != nil {
					return nil, err
				}
				expected = common.BytesToHash(dec.Child)
			case nibble.FullPathMatches:
				return nil, trieerr.NewStructural("verify proof", "extension node terminates a full path")
			default: // diverges
				if i != len(nodes)-1 {
					return nil, trieerr.NewStructural("verify proof", "proof continues past a diverging extension")
				}
				return nil, nil
			}

		case node.Leaf:
			nature, _, err := path.Classify(dec.Path)
			if err != nil {
				return nil, err
			}
			if i != len(nodes)-1 {
				return nil, trieerr.NewStructural("verify proof", "proof continues past a leaf")
			}
			switch nature {
			case nibble.FullPathMatches:
				return dec.Value, nil
			case nibble.SubPathMatches:
				return nil, trieerr.NewStructural("verify proof", "leaf node terminates a sub-path")
			default: // diverges
				return nil, nil
			}
		}
	}

	return nil, trieerr.NewStructural("verify proof", "proof ended without reaching a terminus")
}

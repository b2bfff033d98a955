package multiproof

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/node"
	"github.com/mattlabs/triewitness/internal/trieerr"
)

// OracleTarget identifies the node-oracle entry a deferred branch-collapse
// task resolves against. Key is the 32-byte trie path (the keccak of the
// logical storage slot), the same value passed to Traverse — not the raw
// pre-image EIP-1186 reports storage keys by.
type OracleTarget struct {
	Address common.Address
	Key     common.Hash
}

// OracleTask is a branch collapse Traverse could not finish without data
// it does not have: the sibling ("orphan") of the node it just removed,
// needed to build the node that replaces both the collapsed branch and
// its former grandparent. TraversalIndex records the nibble-path cursor
// position of that grandparent, so resolution can re-locate exactly where
// to splice in the oracle's answer.
type OracleTask struct {
	Target         OracleTarget
	TraversalIndex int
}

// Outcome reports what a Traverse or ResolveOracleTask call produced: a
// new Root when a mutation completed, or a deferred Task when it could
// not (Root is unset in that case — the store's root is unchanged until
// the task resolves).
type Outcome struct {
	Root common.Hash
	Task *OracleTask
}

// visitedNode records one step of a traversal: which node was visited,
// which of its slots is on the path being traversed, and where the cursor
// stood on arrival. The trail of these, read in reverse, is exactly what
// a hash cascade needs to bring changes back up to the root.
type visitedNode struct {
	kind          node.Kind
	hash          common.Hash
	itemIndex     int // branch child index, meaningless for other kinds
	cursorAtEntry int
}

// Traverse walks the store from its current root along path (a 32-byte
// trie path, already the keccak of the logical key) and carries out
// intent once it reaches the key's terminus. target is required only
// when intent is Remove and the removal might need to collapse a branch
// whose orphan sibling is not in the pool; pass nil otherwise (including
// for every account-trie call, since accounts are never removed — see
// DESIGN.md).
func (s *Store) Traverse(path []byte, target *OracleTarget, intent Intent) (Outcome, error) {
	if len(path) != common.HashLength {
		return Outcome{}, trieerr.NewRange("traverse", "path must be a 32-byte trie path")
	}
	return s.traverse(nibble.FromBytes(path), target, intent)
}

func (s *Store) traverse(path *nibble.Path, target *OracleTarget, intent Intent) (Outcome, error) {
	var trail []visitedNode
	currentHash := s.root

	// EmptyRoot means no proof has ever been ingested (or every node was
	// since removed): an entirely empty trie, e.g. a brand-new account's
	// never-touched storage trie. It behaves exactly like a branch's
	// empty slot: Modify installs a new leaf as the root directly,
	// Remove and verify-exclusion are no-ops, verify-inclusion fails.
	if currentHash == EmptyRoot {
		return s.onBranchExclusion(path, intent, nil)
	}

	for {
		raw, ok := s.Get(currentHash)
		if !ok {
			return Outcome{}, trieerr.NewNoProofNode(currentHash)
		}
		dec, err := node.Decode(raw)
		if err != nil {
			return Outcome{}, err
		}

		switch dec.Kind {
		case node.Branch:
			cursorAtEntry := path.Cursor()
			nib, err := path.Next()
			if err != nil {
				return Outcome{}, err
			}
			trail = append(trail, visitedNode{kind: node.Branch, hash: currentHash, itemIndex: int(nib), cursorAtEntry: cursorAtEntry})

			ref := dec.Children[nib]
			if len(ref) == 0 {
				return s.onBranchExclusion(path, intent, trail)
			}
			currentHash = common.BytesToHash(ref)

		case node.Extension:
			cursorAtEntry := path.Cursor()
			nature, divergeIdx, err := path.Classify(dec.Path)
			if err != nil {
				return Outcome{}, err
			}
			trail = append(trail, visitedNode{kind: node.Extension, hash: currentHash, cursorAtEntry: cursorAtEntry})

			switch nature {
			case nibble.SubPathMatches:
				if err := path.SkipExtension(dec.Path); err != nil {
					return Outcome{}, err
				}
				currentHash = common.BytesToHash(dec.Child)
			case nibble.FullPathMatches:
				return Outcome{}, trieerr.NewStructural("traverse", "extension node terminates a full path")
			default: // SubPathDiverges, FullPathDiverges
				return s.onExtensionDivergence(path, dec, divergeIdx, intent, trail)
			}

		case node.Leaf:
			cursorAtEntry := path.Cursor()
			nature, divergeIdx, err := path.Classify(dec.Path)
			if err != nil {
				return Outcome{}, err
			}
			trail = append(trail, visitedNode{kind: node.Leaf, hash: currentHash, cursorAtEntry: cursorAtEntry})

			switch nature {
			case nibble.SubPathMatches:
				return Outcome{}, trieerr.NewStructural("traverse", "leaf node terminates a sub-path")
			case nibble.FullPathMatches:
				return s.onLeafMatch(path, target, dec, intent, trail)
			default: // diverges
				return s.onLeafDivergence(path, dec, divergeIdx, intent, trail)
			}
		}
	}
}

// cascade installs childRef (nil/empty meaning "no child", else a 32-byte
// hash) into the last entry of trail, recomputes and stores that node's
// new hash, and repeats for each ancestor above it. The result becomes
// the store's new root. An empty trail means the modification site was
// already the root: childRef becomes the new root directly.
func (s *Store) cascade(trail []visitedNode, childRef []byte) (Outcome, error) {
	current := childRef
	for i := len(trail) - 1; i >= 0; i-- {
		v := trail[i]
		raw, ok := s.Get(v.hash)
		if !ok {
			return Outcome{}, trieerr.NewNoProofNode(v.hash)
		}
		dec, err := node.Decode(raw)
		if err != nil {
			return Outcome{}, err
		}
		switch v.kind {
		case node.Branch:
			dec.Children[v.itemIndex] = current
		case node.Extension:
			dec.Child = current
		default:
			return Outcome{}, trieerr.NewStructural("cascade", "leaf node encountered above a modification site")
		}
		newRaw, err := dec.Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(newRaw)
		current = h.Bytes()
	}
	root := common.BytesToHash(current)
	s.root = root
	return Outcome{Root: root}, nil
}

func (s *Store) onBranchExclusion(path *nibble.Path, intent Intent, trail []visitedNode) (Outcome, error) {
	switch intent.kind {
	case intentModify:
		leafPath, err := path.EncodeRange(path.Cursor(), path.Len(), nibble.Leaf)
		if err != nil {
			return Outcome{}, err
		}
		leaf := node.NewLeaf(leafPath, intent.value)
		raw, err := leaf.Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(trail, h.Bytes())
	case intentRemove:
		return Outcome{Root: s.root}, nil
	case intentVerifyExclusion:
		return Outcome{Root: s.root}, nil
	default: // intentVerifyInclusion
		return Outcome{}, trieerr.NewInclusionRequired()
	}
}

func (s *Store) onExtensionDivergence(path *nibble.Path, ext *node.Decoded, divergeIdx int, intent Intent, trail []visitedNode) (Outcome, error) {
	switch intent.kind {
	case intentModify:
		entry := trail[len(trail)-1]
		h, err := buildSplitNode(path, entry.cursorAtEntry, divergeIdx, node.Extension, ext, intent.value, s.store)
		if err != nil {
			return Outcome{}, err
		}
		return s.cascade(trail[:len(trail)-1], h.Bytes())
	case intentRemove, intentVerifyExclusion:
		return Outcome{Root: s.root}, nil
	default: // intentVerifyInclusion
		return Outcome{}, trieerr.NewInclusionRequired()
	}
}

func (s *Store) onLeafDivergence(path *nibble.Path, leaf *node.Decoded, divergeIdx int, intent Intent, trail []visitedNode) (Outcome, error) {
	switch intent.kind {
	case intentModify:
		entry := trail[len(trail)-1]
		h, err := buildSplitNode(path, entry.cursorAtEntry, divergeIdx, node.Leaf, leaf, intent.value, s.store)
		if err != nil {
			return Outcome{}, err
		}
		return s.cascade(trail[:len(trail)-1], h.Bytes())
	case intentRemove, intentVerifyExclusion:
		return Outcome{Root: s.root}, nil
	default: // intentVerifyInclusion
		return Outcome{}, trieerr.NewInclusionRequired()
	}
}

func (s *Store) onLeafMatch(path *nibble.Path, target *OracleTarget, leaf *node.Decoded, intent Intent, trail []visitedNode) (Outcome, error) {
	switch intent.kind {
	case intentModify:
		newLeaf := node.NewLeaf(leaf.Path, intent.value)
		raw, err := newLeaf.Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(trail[:len(trail)-1], h.Bytes())
	case intentVerifyInclusion:
		if !bytes.Equal(leaf.Value, intent.value) {
			return Outcome{}, trieerr.NewValueMismatch(intent.value, leaf.Value)
		}
		return Outcome{Root: s.root}, nil
	case intentVerifyExclusion:
		return Outcome{}, trieerr.NewExclusionRequired()
	default: // intentRemove
		if len(trail) == 1 {
			// The leaf being removed was the root itself (no branch
			// parent): the trie becomes empty, the same sentinel state
			// a never-ingested store starts in.
			s.root = EmptyRoot
			return Outcome{Root: s.root}, nil
		}
		return s.removeLeaf(target, trail)
	}
}

// buildSplitNode builds the replacement structure for an extension or
// leaf whose partial path diverges from the key being inserted: a branch
// with two children (the shortened original node, and a new leaf for the
// inserted key), wrapped in a common extension if the two shared any
// nibbles before the divergence point. It returns the hash of whichever
// of those is the outermost (the one to splice into the old node's former
// parent).
func buildSplitNode(path *nibble.Path, cursorAtEntry, divergeIdx int, oldKind node.Kind, oldDecoded *node.Decoded, newValue []byte, put func([]byte) common.Hash) (common.Hash, error) {
	oldNibbles, _, err := nibble.Decode(oldDecoded.Path)
	if err != nil {
		return common.Hash{}, err
	}
	offset := divergeIdx - cursorAtEntry
	if offset < 0 || offset >= len(oldNibbles) {
		return common.Hash{}, trieerr.NewStructural("split node", "divergence index outside the old node's partial path")
	}
	oldDivergentNibble := oldNibbles[offset]
	newDivergentNibble, err := path.At(divergeIdx)
	if err != nil {
		return common.Hash{}, err
	}
	commonNibbles := oldNibbles[:offset]
	remainder := oldNibbles[offset+1:]

	var oldSideRef []byte
	switch oldKind {
	case node.Extension:
		if len(remainder) == 0 {
			// The divergent nibble was the old extension's last: its own
			// child becomes the branch slot directly, no wrapper needed.
			oldSideRef = oldDecoded.Child
		} else {
			rp, err := nibble.Encode(remainder, nibble.Extension)
			if err != nil {
				return common.Hash{}, err
			}
			raw, err := node.NewExtension(rp, oldDecoded.Child).Encode()
			if err != nil {
				return common.Hash{}, err
			}
			oldSideRef = put(raw).Bytes()
		}
	case node.Leaf:
		rp, err := nibble.Encode(remainder, nibble.Leaf)
		if err != nil {
			return common.Hash{}, err
		}
		raw, err := node.NewLeaf(rp, oldDecoded.Value).Encode()
		if err != nil {
			return common.Hash{}, err
		}
		oldSideRef = put(raw).Bytes()
	default:
		return common.Hash{}, trieerr.NewStructural("split node", "unsupported node kind at divergence")
	}

	newLeafPath, err := path.EncodeRange(divergeIdx+1, path.Len(), nibble.Leaf)
	if err != nil {
		return common.Hash{}, err
	}
	newLeafRaw, err := node.NewLeaf(newLeafPath, newValue).Encode()
	if err != nil {
		return common.Hash{}, err
	}
	newLeafHash := put(newLeafRaw)

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[oldDivergentNibble] = oldSideRef
	children[newDivergentNibble] = newLeafHash.Bytes()
	branchRaw, err := node.NewBranch(children).Encode()
	if err != nil {
		return common.Hash{}, err
	}
	branchHash := put(branchRaw)

	if len(commonNibbles) == 0 {
		return branchHash, nil
	}
	commonPath, err := nibble.Encode(commonNibbles, nibble.Extension)
	if err != nil {
		return common.Hash{}, err
	}
	extRaw, err := node.NewExtension(commonPath, branchHash.Bytes()).Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return put(extRaw), nil
}

// Value returns the leaf value stored at path, and false if path is
// absent from the trie. It never mutates the store; callers that need
// verification semantics (matching against an expected value, surfacing
// a typed inclusion/exclusion error) should use Traverse instead.
func (s *Store) Value(path []byte) ([]byte, bool, error) {
	if len(path) != common.HashLength {
		return nil, false, trieerr.NewRange("value", "path must be a 32-byte trie path")
	}
	p := nibble.FromBytes(path)
	currentHash := s.root

	for {
		raw, ok := s.Get(currentHash)
		if !ok {
			return nil, false, trieerr.NewNoProofNode(currentHash)
		}
		dec, err := node.Decode(raw)
		if err != nil {
			return nil, false, err
		}
		switch dec.Kind {
		case node.Branch:
			nib, err := p.Next()
			if err != nil {
				return nil, false, err
			}
			ref := dec.Children[nib]
			if len(ref) == 0 {
				return nil, false, nil
			}
			currentHash = common.BytesToHash(ref)
		case node.Extension:
			nature, _, err := p.Classify(dec.Path)
			if err != nil {
				return nil, false, err
			}
			if nature != nibble.SubPathMatches {
				return nil, false, nil
			}
			if err := p.SkipExtension(dec.Path); err != nil {
				return nil, false, err
			}
			currentHash = common.BytesToHash(dec.Child)
		case node.Leaf:
			nature, _, err := p.Classify(dec.Path)
			if err != nil {
				return nil, false, err
			}
			if nature != nibble.FullPathMatches {
				return nil, false, nil
			}
			return dec.Value, true, nil
		}
	}
}

// View returns the ordered sequence of node RLP encountered walking path
// from the current root, stopping at inclusion or an exclusion terminus.
// Diagnostic only; Traverse does not use it.
func (s *Store) View(path []byte) ([][]byte, error) {
	if len(path) != common.HashLength {
		return nil, trieerr.NewRange("view", "path must be a 32-byte trie path")
	}
	p := nibble.FromBytes(path)
	var out [][]byte
	currentHash := s.root

	for {
		raw, ok := s.Get(currentHash)
		if !ok {
			return out, trieerr.NewNoProofNode(currentHash)
		}
		out = append(out, raw)
		dec, err := node.Decode(raw)
		if err != nil {
			return out, err
		}
		switch dec.Kind {
		case node.Branch:
			nib, err := p.Next()
			if err != nil {
				return out, err
			}
			ref := dec.Children[nib]
			if len(ref) == 0 {
				return out, nil
			}
			currentHash = common.BytesToHash(ref)
		case node.Extension:
			nature, _, err := p.Classify(dec.Path)
			if err != nil {
				return out, err
			}
			if nature != nibble.SubPathMatches {
				return out, nil
			}
			if err := p.SkipExtension(dec.Path); err != nil {
				return out, err
			}
			currentHash = common.BytesToHash(dec.Child)
		case node.Leaf:
			return out, nil
		}
	}
}

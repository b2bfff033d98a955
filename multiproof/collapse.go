package multiproof

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/node"
	"github.com/mattlabs/triewitness/internal/trieerr"
)

// removeLeaf clears the removed leaf's slot in its parent branch and,
// if that branch now has only one child left, collapses it per the
// (grandparent kind, orphan kind) table: a branch can never shrink below
// two children, so the lone survivor ("orphan") is absorbed by whatever
// sits above the collapsing branch.
func (s *Store) removeLeaf(target *OracleTarget, trail []visitedNode) (Outcome, error) {
	if len(trail) < 2 {
		return Outcome{}, trieerr.NewStructural("remove leaf", "leaf has no branch parent")
	}
	branchEntry := trail[len(trail)-2]
	branchRaw, ok := s.Get(branchEntry.hash)
	if !ok {
		return Outcome{}, trieerr.NewNoProofNode(branchEntry.hash)
	}
	branch, err := node.Decode(branchRaw)
	if err != nil {
		return Outcome{}, err
	}
	if branch.Kind != node.Branch {
		return Outcome{}, trieerr.NewStructural("remove leaf", "leaf's recorded parent is not a branch")
	}
	branch.Children[branchEntry.itemIndex] = []byte{}

	orphanIdx, orphanRef, count := lastLivingChild(branch)
	ancestorTrail := trail[:len(trail)-2]

	switch {
	case count >= 2:
		raw, err := branch.Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail, h.Bytes())
	case count == 0:
		return Outcome{}, trieerr.NewStructural("remove leaf", "branch has no remaining children after removal")
	}

	orphanHash := common.BytesToHash(orphanRef)
	orphanRaw, have := s.Get(orphanHash)
	if !have {
		if target == nil {
			return Outcome{}, trieerr.NewStructural("remove leaf", "branch collapse needs an oracle node but no target was supplied")
		}
		grandparentCursor := 0
		if len(ancestorTrail) > 0 {
			grandparentCursor = ancestorTrail[len(ancestorTrail)-1].cursorAtEntry
		}
		return Outcome{Task: &OracleTask{Target: *target, TraversalIndex: grandparentCursor}}, nil
	}

	orphan, err := node.Decode(orphanRaw)
	if err != nil {
		return Outcome{}, err
	}
	return s.collapseBranch(ancestorTrail, byte(orphanIdx), orphanHash, orphan)
}

// lastLivingChild scans a branch's 16 children and reports the index and
// reference of the only non-empty one, along with how many non-empty
// children it found (capped-relevant callers only need to distinguish
// 0, 1, and "2 or more").
func lastLivingChild(branch *node.Decoded) (idx int, ref []byte, count int) {
	for i, c := range branch.Children {
		if len(c) != 0 {
			count++
			idx, ref = i, c
		}
	}
	return idx, ref, count
}

// collapseBranch builds the replacement for a two-child branch that just
// lost a child, given its one remaining ("orphan") child's index, hash,
// and decoded content. ancestorTrail is the trail excluding the
// now-collapsed branch and the leaf that was removed from it; its last
// entry (if any) is the branch's former parent, the grandparent absorbing
// the orphan.
func (s *Store) collapseBranch(ancestorTrail []visitedNode, orphanIdx byte, orphanHash common.Hash, orphan *node.Decoded) (Outcome, error) {
	if len(ancestorTrail) == 0 {
		return s.collapseAtRoot(orphanIdx, orphanHash, orphan)
	}

	grandparent := ancestorTrail[len(ancestorTrail)-1]
	grandparentRaw, ok := s.Get(grandparent.hash)
	if !ok {
		return Outcome{}, trieerr.NewNoProofNode(grandparent.hash)
	}
	grandparentNode, err := node.Decode(grandparentRaw)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case grandparentNode.Kind == node.Extension && orphan.Kind == node.Branch:
		// Grandparent extension extended by one nibble; orphan unchanged.
		newPath, err := nibble.AppendOne(grandparentNode.Path, orphanIdx, nibble.Extension)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewExtension(newPath, orphanHash.Bytes()).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail[:len(ancestorTrail)-1], h.Bytes())

	case grandparentNode.Kind == node.Branch && orphan.Kind == node.Branch:
		// Grandparent's slot now points to a new one-nibble extension
		// wrapping the unchanged orphan branch.
		wrapPath, err := nibble.Single(orphanIdx, nibble.Extension)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewExtension(wrapPath, orphanHash.Bytes()).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail, h.Bytes())

	case grandparentNode.Kind == node.Extension && orphan.Kind == node.Extension:
		mergedPath, err := nibble.Merge(grandparentNode.Path, orphanIdx, orphan.Path, nibble.Extension)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewExtension(mergedPath, orphan.Child).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail[:len(ancestorTrail)-1], h.Bytes())

	case grandparentNode.Kind == node.Extension && orphan.Kind == node.Leaf:
		mergedPath, err := nibble.Merge(grandparentNode.Path, orphanIdx, orphan.Path, nibble.Leaf)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewLeaf(mergedPath, orphan.Value).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail[:len(ancestorTrail)-1], h.Bytes())

	case grandparentNode.Kind == node.Branch && orphan.Kind == node.Extension:
		newPath, err := nibble.PrependOne(orphanIdx, orphan.Path, nibble.Extension)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewExtension(newPath, orphan.Child).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail, h.Bytes())

	case grandparentNode.Kind == node.Branch && orphan.Kind == node.Leaf:
		newPath, err := nibble.PrependOne(orphanIdx, orphan.Path, nibble.Leaf)
		if err != nil {
			return Outcome{}, err
		}
		raw, err := node.NewLeaf(newPath, orphan.Value).Encode()
		if err != nil {
			return Outcome{}, err
		}
		h := s.store(raw)
		return s.cascade(ancestorTrail, h.Bytes())

	default:
		return Outcome{}, trieerr.NewStructural("collapse branch", "unsupported grandparent/orphan kind combination")
	}
}

// collapseAtRoot handles the degenerate case where the collapsing branch
// had no grandparent (it was the trie root itself): the orphan, absorbing
// the one nibble it occupied, becomes the new root directly. The
// branch-collapse table above assumes a grandparent; this extends it
// the same way replaceChild does in a versioned trie (see DESIGN.md).
func (s *Store) collapseAtRoot(orphanIdx byte, orphanHash common.Hash, orphan *node.Decoded) (Outcome, error) {
	var raw []byte
	var err error
	switch orphan.Kind {
	case node.Branch:
		path, perr := nibble.Single(orphanIdx, nibble.Extension)
		if perr != nil {
			return Outcome{}, perr
		}
		raw, err = node.NewExtension(path, orphanHash.Bytes()).Encode()
	case node.Extension:
		path, perr := nibble.PrependOne(orphanIdx, orphan.Path, nibble.Extension)
		if perr != nil {
			return Outcome{}, perr
		}
		raw, err = node.NewExtension(path, orphan.Child).Encode()
	case node.Leaf:
		path, perr := nibble.PrependOne(orphanIdx, orphan.Path, nibble.Leaf)
		if perr != nil {
			return Outcome{}, perr
		}
		raw, err = node.NewLeaf(path, orphan.Value).Encode()
	default:
		return Outcome{}, trieerr.NewStructural("collapse at root", "unknown orphan kind")
	}
	if err != nil {
		return Outcome{}, err
	}
	h := s.store(raw)
	s.root = h
	return Outcome{Root: h}, nil
}

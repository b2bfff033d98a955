package multiproof

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/node"
)

func mustHash(t *testing.T, n *node.Decoded) (common.Hash, []byte) {
	t.Helper()
	raw, err := n.Encode()
	if err != nil {
		t.Fatal(err)
	}
	h, err := n.Hash()
	if err != nil {
		t.Fatal(err)
	}
	return h, raw
}

func TestModifyInsertsNewLeafUnderEmptyBranchSlot(t *testing.T) {
	keyA := make([]byte, 32)
	keyA[0] = 0x10
	keyB := make([]byte, 32)
	keyB[0] = 0x20

	pathA := nibble.FromBytes(keyA)
	restA, err := pathA.EncodeRange(1, pathA.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafA := node.NewLeaf(restA, []byte("a"))
	hashA, rawA := mustHash(t, leafA)

	pathB := nibble.FromBytes(keyB)
	restB, err := pathB.EncodeRange(1, pathB.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafB := node.NewLeaf(restB, []byte("b"))
	hashB, rawB := mustHash(t, leafB)

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[1] = hashA.Bytes()
	children[2] = hashB.Bytes()
	branch := node.NewBranch(children)
	branchHash, branchRaw := mustHash(t, branch)

	store := New(branchHash)
	if err := store.InsertProof([][]byte{branchRaw, rawA}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertProof([][]byte{branchRaw, rawB}); err != nil {
		t.Fatal(err)
	}

	keyC := make([]byte, 32)
	keyC[0] = 0x30
	out, err := store.Traverse(keyC, nil, Modify([]byte("c")))
	if err != nil {
		t.Fatal(err)
	}
	if out.Task != nil {
		t.Fatal("expected no oracle task for a plain insert")
	}
	if out.Root == branchHash {
		t.Fatal("root did not change after insert")
	}

	if err := proofVerifyInclusion(store, keyC, []byte("c")); err != nil {
		t.Fatalf("inserted key not included: %v", err)
	}
	if err := proofVerifyInclusion(store, keyA, []byte("a")); err != nil {
		t.Fatalf("keyA should still be included: %v", err)
	}
}

func proofVerifyInclusion(store *Store, key, want []byte) error {
	_, err := store.Traverse(key, nil, VerifyInclusion(want))
	return err
}

func TestModifyExistingLeaf(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 0xcc
	path := nibble.FromBytes(key)
	full, err := path.EncodeRange(0, path.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leaf := node.NewLeaf(full, []byte("old"))
	root, raw := mustHash(t, leaf)

	store := New(root)
	if err := store.InsertProof([][]byte{raw}); err != nil {
		t.Fatal(err)
	}
	out, err := store.Traverse(key, nil, Modify([]byte("new")))
	if err != nil {
		t.Fatal(err)
	}
	if out.Root == root {
		t.Fatal("root unchanged after modifying the only leaf")
	}
	if err := proofVerifyInclusion(store, key, []byte("new")); err != nil {
		t.Fatalf("updated value not found: %v", err)
	}
}

func TestRemoveLeavesBranchWithTwoOrMoreChildren(t *testing.T) {
	keyA := make([]byte, 32)
	keyA[0] = 0x10
	keyB := make([]byte, 32)
	keyB[0] = 0x20
	keyC := make([]byte, 32)
	keyC[0] = 0x30

	build := func(key []byte, val string) (common.Hash, []byte, *node.Decoded) {
		p := nibble.FromBytes(key)
		rest, err := p.EncodeRange(1, p.Len(), nibble.Leaf)
		if err != nil {
			t.Fatal(err)
		}
		leaf := node.NewLeaf(rest, []byte(val))
		h, raw := mustHash(t, leaf)
		return h, raw, leaf
	}
	hashA, rawA, _ := build(keyA, "a")
	hashB, rawB, _ := build(keyB, "b")
	hashC, rawC, _ := build(keyC, "c")

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[1] = hashA.Bytes()
	children[2] = hashB.Bytes()
	children[3] = hashC.Bytes()
	branch := node.NewBranch(children)
	branchHash, branchRaw := mustHash(t, branch)

	store := New(branchHash)
	for _, p := range [][][]byte{{branchRaw, rawA}, {branchRaw, rawB}, {branchRaw, rawC}} {
		if err := store.InsertProof(p); err != nil {
			t.Fatal(err)
		}
	}

	target := &OracleTarget{Key: common.BytesToHash(keyA)}
	out, err := store.Traverse(keyA, target, Remove())
	if err != nil {
		t.Fatal(err)
	}
	if out.Task != nil {
		t.Fatal("removing one of three children should never need the oracle")
	}
	if err := proofVerifyInclusion(store, keyB, []byte("b")); err != nil {
		t.Fatalf("keyB should still be present: %v", err)
	}
	if _, err := store.Traverse(keyA, nil, VerifyExclusion()); err != nil {
		t.Fatalf("keyA should be excluded after removal: %v", err)
	}
}

func TestRemoveCollapsesRootBranchToOrphanLeaf(t *testing.T) {
	keyA := make([]byte, 32)
	keyA[0] = 0x10
	keyB := make([]byte, 32)
	keyB[0] = 0x20

	pathA := nibble.FromBytes(keyA)
	restA, err := pathA.EncodeRange(1, pathA.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafA := node.NewLeaf(restA, []byte("a"))
	hashA, rawA := mustHash(t, leafA)

	pathB := nibble.FromBytes(keyB)
	restB, err := pathB.EncodeRange(1, pathB.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafB := node.NewLeaf(restB, []byte("b"))
	hashB, rawB := mustHash(t, leafB)

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[1] = hashA.Bytes()
	children[2] = hashB.Bytes()
	branch := node.NewBranch(children)
	branchHash, branchRaw := mustHash(t, branch)

	store := New(branchHash)
	if err := store.InsertProof([][]byte{branchRaw, rawA}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertProof([][]byte{branchRaw, rawB}); err != nil {
		t.Fatal(err)
	}

	target := &OracleTarget{Key: common.BytesToHash(keyA)}
	out, err := store.Traverse(keyA, target, Remove())
	if err != nil {
		t.Fatal(err)
	}
	if out.Task != nil {
		t.Fatal("orphan was already in the store; no oracle task should be needed")
	}

	// The collapsed trie should now hold exactly keyB -> "b", reachable
	// directly from the new root.
	if err := proofVerifyInclusion(store, keyB, []byte("b")); err != nil {
		t.Fatalf("keyB should be reachable from the collapsed root: %v", err)
	}
}

func TestRemoveDefersToOracleWhenOrphanMissing(t *testing.T) {
	keyA := make([]byte, 32)
	keyA[0] = 0x10
	keyB := make([]byte, 32)
	keyB[0] = 0x20

	pathA := nibble.FromBytes(keyA)
	restA, err := pathA.EncodeRange(1, pathA.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafA := node.NewLeaf(restA, []byte("a"))
	hashA, rawA := mustHash(t, leafA)

	pathB := nibble.FromBytes(keyB)
	restB, err := pathB.EncodeRange(1, pathB.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafB := node.NewLeaf(restB, []byte("b"))
	hashB, _ := mustHash(t, leafB)

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[1] = hashA.Bytes()
	children[2] = hashB.Bytes()
	branch := node.NewBranch(children)
	branchHash, branchRaw := mustHash(t, branch)

	// Only keyA's proof is ingested: leafB (the orphan once keyA is
	// removed) is never supplied.
	store := New(branchHash)
	if err := store.InsertProof([][]byte{branchRaw, rawA}); err != nil {
		t.Fatal(err)
	}

	address := common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	target := &OracleTarget{Address: address, Key: common.BytesToHash(keyA)}
	out, err := store.Traverse(keyA, target, Remove())
	if err != nil {
		t.Fatal(err)
	}
	if out.Task == nil {
		t.Fatal("expected a deferred oracle task when the orphan is missing")
	}

	// The oracle supplies the fully merged replacement node, exactly what
	// collapseBranch would have built from leafB locally: a leaf keyed on
	// keyB's whole path, absorbing the nibble the collapsing branch used
	// to consume. ResolveOracleTask never merges on its own behalf.
	fullPathB, err := pathB.EncodeRange(0, pathB.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	_, mergedRawB := mustHash(t, node.NewLeaf(fullPathB, []byte("b")))

	oracle := NewOracle()
	oracle.Put(address, common.BytesToHash(keyA), mergedRawB)

	resolved, err := store.ResolveOracleTask(*out.Task, oracle)
	if err != nil {
		t.Fatalf("ResolveOracleTask: %v", err)
	}
	if resolved.Task != nil {
		t.Fatal("resolving a task should not itself produce another task")
	}

	if err := proofVerifyInclusion(store, keyB, []byte("b")); err != nil {
		t.Fatalf("keyB should be reachable after oracle resolution: %v", err)
	}
}

func TestVerifyExclusionAtEmptyBranchSlot(t *testing.T) {
	keyA := make([]byte, 32)
	keyA[0] = 0x10
	pathA := nibble.FromBytes(keyA)
	restA, err := pathA.EncodeRange(1, pathA.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leafA := node.NewLeaf(restA, []byte("a"))
	hashA, rawA := mustHash(t, leafA)

	var children [16][]byte
	for i := range children {
		children[i] = []byte{}
	}
	children[1] = hashA.Bytes()
	branch := node.NewBranch(children)
	branchHash, branchRaw := mustHash(t, branch)

	store := New(branchHash)
	if err := store.InsertProof([][]byte{branchRaw, rawA}); err != nil {
		t.Fatal(err)
	}

	keyMissing := make([]byte, 32)
	keyMissing[0] = 0x50
	if _, err := store.Traverse(keyMissing, nil, VerifyExclusion()); err != nil {
		t.Fatalf("VerifyExclusion: %v", err)
	}
	if _, err := store.Traverse(keyMissing, nil, VerifyInclusion([]byte("x"))); err == nil {
		t.Fatal("VerifyInclusion should fail for an excluded key")
	}
}

func TestInsertProofRejectsRootMismatch(t *testing.T) {
	key := make([]byte, 32)
	path := nibble.FromBytes(key)
	full, err := path.EncodeRange(0, path.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leaf := node.NewLeaf(full, []byte("v"))
	root, raw := mustHash(t, leaf)

	store := New(root)
	if err := store.InsertProof([][]byte{raw}); err != nil {
		t.Fatal(err)
	}

	otherLeaf := node.NewLeaf(full, []byte("other"))
	_, otherRaw := mustHash(t, otherLeaf)
	if err := store.InsertProof([][]byte{otherRaw}); err == nil {
		t.Fatal("expected a root mismatch error ingesting a proof for a different root")
	}
}

func TestEncodeRangeRejectsInvertedRange(t *testing.T) {
	key := make([]byte, 32)
	path := nibble.FromBytes(key)
	if _, err := path.EncodeRange(5, 2, nibble.Leaf); err == nil {
		t.Fatal("expected an error for an inverted range")
	}
}

func TestModifyOnEmptyTrieInsertsRootLeaf(t *testing.T) {
	store := New(common.Hash{})
	if store.Root() != EmptyRoot {
		t.Fatalf("a freshly constructed store should read as EmptyRoot, got %v", store.Root())
	}

	key := make([]byte, 32)
	key[0] = 0x42
	out, err := store.Traverse(key, nil, Modify([]byte("v")))
	if err != nil {
		t.Fatal(err)
	}
	if out.Root == EmptyRoot {
		t.Fatal("root should have changed after inserting into an empty trie")
	}
	if err := proofVerifyInclusion(store, key, []byte("v")); err != nil {
		t.Fatalf("inserted key not included: %v", err)
	}
}

func TestRemoveRootLeafEmptiesTheTrie(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 0x42
	path := nibble.FromBytes(key)
	full, err := path.EncodeRange(0, path.Len(), nibble.Leaf)
	if err != nil {
		t.Fatal(err)
	}
	leaf := node.NewLeaf(full, []byte("v"))
	root, raw := mustHash(t, leaf)

	store := New(root)
	if err := store.InsertProof([][]byte{raw}); err != nil {
		t.Fatal(err)
	}

	out, err := store.Traverse(key, nil, Remove())
	if err != nil {
		t.Fatal(err)
	}
	if out.Task != nil {
		t.Fatal("removing a root leaf never needs the oracle")
	}
	if out.Root != EmptyRoot {
		t.Fatalf("expected the trie to read back as EmptyRoot, got %v", out.Root)
	}
	if _, err := store.Traverse(key, nil, VerifyExclusion()); err != nil {
		t.Fatalf("key should be excluded from the now-empty trie: %v", err)
	}
}

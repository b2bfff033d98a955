package multiproof

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mattlabs/triewitness/internal/nibble"
	"github.com/mattlabs/triewitness/internal/node"
	"github.com/mattlabs/triewitness/internal/trieerr"
)

// Oracle is the node oracle: a mapping from (account address,
// storage key) to the RLP bytes of the one node a deferred branch
// collapse needs but the ingested proofs don't carry. The provider of a
// witness parcel populates it by examining the block's post-state; this
// package only ever reads from it.
type Oracle struct {
	entries map[oracleKey][]byte
}

type oracleKey struct {
	address common.Address
	key     common.Hash
}

// NewOracle returns an empty Oracle.
func NewOracle() *Oracle {
	return &Oracle{entries: make(map[oracleKey][]byte)}
}

// Put registers the RLP bytes of the node needed to resolve a collapse at
// (address, key).
func (o *Oracle) Put(address common.Address, key common.Hash, nodeRLP []byte) {
	o.entries[oracleKey{address, key}] = nodeRLP
}

// Lookup returns the node RLP registered for (address, key), if any.
func (o *Oracle) Lookup(address common.Address, key common.Hash) ([]byte, bool) {
	raw, ok := o.entries[oracleKey{address, key}]
	return raw, ok
}

// ResolveOracleTask finishes a deferred branch collapse using oracle.
// Tasks belonging to the same account's storage trie must be resolved in
// descending TraversalIndex order (deepest first): an earlier-resolved
// shallow task can change nodes a deeper task's own re-walk still needs
// to see. See state.Adapter.resolveTasks for that ordering.
func (s *Store) ResolveOracleTask(task OracleTask, oracle *Oracle) (Outcome, error) {
	raw, ok := oracle.Lookup(task.Target.Address, task.Target.Key)
	if !ok {
		return Outcome{}, trieerr.NewNoOracleNode(task.Target.Address, task.Target.Key)
	}

	path := nibble.FromBytes(task.Target.Key.Bytes())
	trail, err := s.resolveOracleTrail(path, task.TraversalIndex)
	if err != nil {
		return Outcome{}, err
	}
	h := s.store(raw)
	return s.cascade(trail, h.Bytes())
}

// resolveOracleTrail re-walks the store from its current root along path,
// recording the trail up to (but not including) the node sitting at
// traversalIndex: the one the oracle's node subsumes.
func (s *Store) resolveOracleTrail(path *nibble.Path, traversalIndex int) ([]visitedNode, error) {
	var trail []visitedNode
	currentHash := s.root

	for {
		if path.Cursor() >= traversalIndex {
			return trail, nil
		}
		raw, ok := s.Get(currentHash)
		if !ok {
			return nil, trieerr.NewNoProofNode(currentHash)
		}
		dec, err := node.Decode(raw)
		if err != nil {
			return nil, err
		}
		switch dec.Kind {
		case node.Branch:
			cursorAtEntry := path.Cursor()
			nib, err := path.Next()
			if err != nil {
				return nil, err
			}
			ref := dec.Children[nib]
			if len(ref) == 0 {
				return nil, trieerr.NewStructural("resolve oracle task", "unexpected empty branch slot while walking to the task's position")
			}
			trail = append(trail, visitedNode{kind: node.Branch, hash: currentHash, itemIndex: int(nib), cursorAtEntry: cursorAtEntry})
			currentHash = common.BytesToHash(ref)
		case node.Extension:
			cursorAtEntry := path.Cursor()
			if err := path.SkipExtension(dec.Path); err != nil {
				return nil, err
			}
			trail = append(trail, visitedNode{kind: node.Extension, hash: currentHash, cursorAtEntry: cursorAtEntry})
			currentHash = common.BytesToHash(dec.Child)
		default:
			return nil, trieerr.NewStructural("resolve oracle task", "unexpected leaf while walking to the task's position")
		}
	}
}

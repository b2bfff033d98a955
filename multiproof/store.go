// Package multiproof ingests EIP-1186 proof bundles for many keys of the
// same trie into one content-addressed node pool, then replays account
// and storage changes for a block over that pool, recomputing the state
// root as it goes, without ever needing a full copy of the trie.
//
// The central operation is Traverse: it walks the pool from the root
// along a key's path and either verifies what it finds there, or
// mutates it and cascades the resulting hash changes back to a new
// root. Deleting the last-but-one
// entry from a branch can require data this pool was never given — the
// sibling ("orphan") subtree that the branch collapses into. When that
// happens Traverse defers the change as an OracleTask instead of failing
// outright; ResolveOracleTask finishes it once a node oracle can supply
// the missing node.
package multiproof

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mattlabs/triewitness/internal/trieerr"
	"github.com/mattlabs/triewitness/internal/xlog"
	"github.com/mattlabs/triewitness/triedb"
)

// Store is a content-addressed pool of trie nodes (keccak(rlp(node)) ->
// rlp(node)) covering a (possibly partial) view of one trie, plus the
// root hash that view currently resolves to. An in-memory map is always
// the primary cache; an optional triedb.Store backend, when installed,
// is written through to and consulted on a cache miss, so a long-running
// host can spill the node pool to disk without changing any traversal
// logic above this file.
type Store struct {
	data    map[common.Hash][]byte
	root    common.Hash
	logger  xlog.Logger
	backend triedb.Store
}

// EmptyRoot is the hash of RLP's encoding of the empty byte string
// (keccak256(0x80)): the real root value go-ethereum assigns an account
// with no storage slots at all. The store treats it, and the
// convenience zero common.Hash{}, as the same "no nodes" sentinel —
// passing either one means "start (or end up) empty".
var EmptyRoot = crypto.Keccak256Hash([]byte{0x80})

// New returns an empty Store rooted at root. A zero root is normalized
// to EmptyRoot and means "no proof ingested yet"; the first InsertProof
// call establishes the real root.
func New(root common.Hash) *Store {
	if root == (common.Hash{}) {
		root = EmptyRoot
	}
	return &Store{data: make(map[common.Hash][]byte), root: root, logger: xlog.Noop()}
}

// NewWithBackend is like New, but write-through caches every stored node
// into backend and falls back to it on a local cache miss. Persistence
// is a throughput convenience for the CLI's on-disk node cache; it
// carries no correctness weight of its own — a backend read/write
// failure is logged and otherwise ignored, never surfaced as a trie
// error, since the in-memory map is always authoritative for whatever
// it already holds.
func NewWithBackend(root common.Hash, backend triedb.Store) *Store {
	s := New(root)
	s.backend = backend
	return s
}

// SetBackend installs (or replaces) the write-through backend after
// construction, for callers that only decide whether to persist once a
// Store already exists (e.g. the replay CLI's optional on-disk cache).
func (s *Store) SetBackend(backend triedb.Store) {
	s.backend = backend
}

// SetLogger overrides the Store's logger; the default discards everything.
func (s *Store) SetLogger(l xlog.Logger) {
	if l == nil {
		l = xlog.Noop()
	}
	s.logger = l
}

// Root returns the store's current state root.
func (s *Store) Root() common.Hash { return s.root }

// NodeCount reports how many distinct nodes the pool currently holds.
// Diagnostic only.
func (s *Store) NodeCount() int { return len(s.data) }

// InsertProof ingests an ordered root-to-terminus list of node RLP blobs,
// as returned by eth_getProof's accountProof or storageProof arrays. The
// first node's hash must equal the store's established root (or becomes
// it, if the store had none yet); every node is stored keyed by its own
// hash, so overlapping proofs for different keys naturally share their
// common ancestors.
func (s *Store) InsertProof(nodes [][]byte) error {
	if len(nodes) == 0 {
		return trieerr.NewRange("insert proof", "empty proof")
	}

	firstHash := crypto.Keccak256Hash(nodes[0])
	if s.root == EmptyRoot {
		s.root = firstHash
	} else if s.root != firstHash {
		return trieerr.NewRootMismatch(s.root, firstHash)
	}

	s.data[firstHash] = nodes[0]
	s.writeThrough(firstHash, nodes[0])
	for _, raw := range nodes[1:] {
		h := crypto.Keccak256Hash(raw)
		s.data[h] = raw
		s.writeThrough(h, raw)
	}

	if s.logger.IsTrace() {
		s.logger.Trace("ingested proof", "nodes", len(nodes), "root", s.root)
	}
	return nil
}

// Get returns the raw RLP for hash, consulting the backend (if any) on a
// local cache miss.
func (s *Store) Get(hash common.Hash) ([]byte, bool) {
	if raw, ok := s.data[hash]; ok {
		return raw, true
	}
	if s.backend == nil {
		return nil, false
	}
	raw, err := s.backend.Get(hash.Bytes())
	if err != nil || raw == nil {
		if err != nil && s.logger.IsDebug() {
			s.logger.Debug("backend get failed", "hash", hash, "err", err)
		}
		return nil, false
	}
	s.data[hash] = raw
	return raw, true
}

func (s *Store) store(raw []byte) common.Hash {
	h := crypto.Keccak256Hash(raw)
	s.data[h] = raw
	s.writeThrough(h, raw)
	return h
}

func (s *Store) writeThrough(hash common.Hash, raw []byte) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Put(hash.Bytes(), raw); err != nil && s.logger.IsDebug() {
		s.logger.Debug("backend put failed", "hash", hash, "err", err)
	}
}

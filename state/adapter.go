// Package state is the EVM-facing adapter: it exposes account info,
// storage slots, and recent block hashes to an executor reading from a
// witness-backed multiproof, and applies the executor's per-account
// deltas back into those multiproofs to produce the block's post-state
// root. It owns one account multiproof.Store and one per-address
// storage multiproof.Store, mirroring the real account-trie /
// per-account-storage-trie split go-ethereum itself uses, generalized
// from a persisted trie to a multiproof-backed one.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/mattlabs/triewitness/internal/xlog"
	"github.com/mattlabs/triewitness/multiproof"
	"github.com/mattlabs/triewitness/triedb"
	"github.com/mattlabs/triewitness/witness"
)

// AccountDelta is one account's worth of EVM execution output: the
// account fields after execution plus any storage slots it touched.
// Storage values are the raw RLP bytes to store at that key; a nil or
// empty value means the slot reverted to zero and should be removed
// from the storage trie.
type AccountDelta struct {
	Address  common.Address
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Storage  map[common.Hash][]byte
}

// Adapter drives one block's account and storage multiproofs. It is
// constructed empty and populated via LoadFromParcel (or the lower-level
// Ingest* methods) before ApplyChanges is called.
type Adapter struct {
	accounts     *multiproof.Store
	storageTries map[common.Address]*multiproof.Store
	storageKeys  map[common.Address][]common.Hash
	blockHashes  map[uint64]common.Hash
	oracle       *multiproof.Oracle
	logger       xlog.Logger
	backend      triedb.Store
}

// NewAdapter returns an empty Adapter. oracle may be nil if the block
// being replayed is known not to need any branch-collapse resolution;
// ApplyChanges returns a MissingData error if a task turns up anyway.
func NewAdapter(oracle *multiproof.Oracle) *Adapter {
	return &Adapter{
		accounts:     multiproof.New(common.Hash{}),
		storageTries: make(map[common.Address]*multiproof.Store),
		storageKeys:  make(map[common.Address][]common.Hash),
		blockHashes:  make(map[uint64]common.Hash),
		oracle:       oracle,
		logger:       xlog.Noop(),
	}
}

// SetLogger overrides the Adapter's logger and every multiproof.Store it
// already owns.
func (a *Adapter) SetLogger(l xlog.Logger) {
	if l == nil {
		l = xlog.Noop()
	}
	a.logger = l
	a.accounts.SetLogger(l)
	for _, s := range a.storageTries {
		s.SetLogger(l)
	}
}

// SetBackend installs an on-disk node cache behind every multiproof.Store
// the Adapter owns, including ones created after this call (storage
// tries are opened lazily on first proof or delta for an address). Purely
// a throughput option for the replay CLI; correctness never depends on
// it (see multiproof.NewWithBackend's doc comment).
func (a *Adapter) SetBackend(backend triedb.Store) {
	a.backend = backend
	a.accounts.SetBackend(backend)
	for _, s := range a.storageTries {
		s.SetBackend(backend)
	}
}

// IngestAccountProof feeds one account's root-to-leaf proof nodes into
// the shared account multiproof.
func (a *Adapter) IngestAccountProof(nodes [][]byte) error {
	return a.accounts.InsertProof(nodes)
}

// IngestStorageSlot feeds one storage key's root-to-leaf proof nodes
// into address's storage multiproof, creating it on first use.
func (a *Adapter) IngestStorageSlot(address common.Address, key common.Hash, nodes [][]byte) error {
	store, ok := a.storageTries[address]
	if !ok {
		store = multiproof.New(common.Hash{})
		store.SetLogger(a.logger)
		store.SetBackend(a.backend)
		a.storageTries[address] = store
	}
	if err := store.InsertProof(nodes); err != nil {
		return err
	}
	a.rememberKey(address, key)
	return nil
}

func (a *Adapter) rememberKey(address common.Address, key common.Hash) {
	for _, k := range a.storageKeys[address] {
		if k == key {
			return
		}
	}
	a.storageKeys[address] = append(a.storageKeys[address], key)
}

func (a *Adapter) forgetKey(address common.Address, key common.Hash) {
	keys := a.storageKeys[address]
	for i, k := range keys {
		if k == key {
			a.storageKeys[address] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}

// LoadFromParcel resolves every account and storage proof in p against
// its node pools and ingests them, and records p's recent block hashes.
func (a *Adapter) LoadFromParcel(p *witness.Parcel) error {
	for i := range p.Accounts {
		acct := &p.Accounts[i]
		nodes, err := p.ResolveAccountProof(acct)
		if err != nil {
			return err
		}
		if err := a.IngestAccountProof(nodes); err != nil {
			return err
		}
		for j := range acct.StorageProofs {
			sp := &acct.StorageProofs[j]
			snodes, err := p.ResolveStorageProof(sp)
			if err != nil {
				return err
			}
			if err := a.IngestStorageSlot(acct.Address, sp.Key, snodes); err != nil {
				return err
			}
		}
	}
	for _, bh := range p.BlockHashes {
		a.blockHashes[bh.Number] = bh.Hash
	}
	return nil
}

// GetAccount returns address's account record, and false if it is
// absent from the ingested account proofs.
func (a *Adapter) GetAccount(address common.Address) (AccountRecord, bool, error) {
	path := crypto.Keccak256(address.Bytes())
	raw, ok, err := a.accounts.Value(path)
	if err != nil || !ok {
		return AccountRecord{}, false, err
	}
	rec, err := DecodeAccountRecord(raw)
	return rec, err == nil, err
}

// GetStorage returns every storage slot known for address from the
// ingested proof bundle, key to current value.
func (a *Adapter) GetStorage(address common.Address) (map[common.Hash][]byte, error) {
	out := make(map[common.Hash][]byte)
	store, ok := a.storageTries[address]
	if !ok {
		return out, nil
	}
	for _, key := range a.storageKeys[address] {
		val, present, err := store.Value(key.Bytes())
		if err != nil {
			return nil, err
		}
		if present {
			out[key] = val
		}
	}
	return out, nil
}

// GetBlockHash returns the hash recorded for block number, and false if
// it falls outside the 256-entry recent-block-hash window the parcel
// carried.
func (a *Adapter) GetBlockHash(number uint64) (common.Hash, bool) {
	h, ok := a.blockHashes[number]
	return h, ok
}

// AccountRoot returns the account multiproof's current root, the
// post-state root once all deltas for a block have been applied.
func (a *Adapter) AccountRoot() common.Hash {
	return a.accounts.Root()
}

func isZeroValue(v []byte) bool {
	return len(v) == 0
}

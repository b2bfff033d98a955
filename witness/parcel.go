// Package witness implements the binary transfer envelope a witness
// provider ships to a block-replay consumer: one block's worth of
// EIP-1186 account and storage proofs, deduplicated against two shared
// node pools, plus contract bytecode and the 256 most recent block
// hashes BLOCKHASH can address. It never touches the trie itself; its
// only job is turning wire bytes into the per-account proof lists that
// seed a multiproof.Store, and back.
package witness

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mattlabs/triewitness/internal/trieerr"
)

// Size ceilings from the wire format; decode rejects anything beyond
// these rather than silently truncating.
const (
	MaxAccountProofs     = 8192
	MaxProofIndices      = 64
	MaxNodesPerPool      = 32768
	MaxBytesPerNode      = 32768
	MaxContracts         = 2048
	MaxBytesPerContract  = 32768
	MaxRecentBlockHashes = 256
)

// StorageProof is one storage key's proof within an account's entry,
// carrying index lists into the parcel's storage-node pool rather than
// inline node bytes.
type StorageProof struct {
	Key          common.Hash
	Value        []byte
	ProofIndices []uint16
}

// AccountProof is one account's entry: its record fields plus index
// lists into the parcel's two node pools.
type AccountProof struct {
	Address             common.Address
	Balance             *big.Int
	CodeHash            common.Hash
	Nonce               uint64
	StorageRoot         common.Hash
	AccountProofIndices []uint16
	StorageProofs       []StorageProof
}

// BlockHashEntry is one (number, hash) pair out of the recent-block-hash
// list BLOCKHASH needs.
type BlockHashEntry struct {
	Number uint64
	Hash   common.Hash
}

// Parcel is the decoded form of the wire envelope: `[accountProofs,
// contracts, accountNodePool, storageNodePool, blockHashes]`.
type Parcel struct {
	Accounts        []AccountProof
	Contracts       [][]byte
	AccountNodePool [][]byte
	StorageNodePool [][]byte
	BlockHashes     []BlockHashEntry
}

// Encode serializes p as the canonical RLP envelope.
func Encode(p *Parcel) ([]byte, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(p)
}

// Decode parses raw as a Parcel, enforcing every size ceiling validate checks.
// raw may be the RLP bytes directly or the contents of a stream
// compressor's output already decompressed by the caller; this package
// only ever sees RLP bytes.
func Decode(raw []byte) (*Parcel, error) {
	var p Parcel
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return nil, err
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validate(p *Parcel) error {
	if len(p.Accounts) > MaxAccountProofs {
		return trieerr.NewRange("witness parcel", "account proof count exceeds ceiling")
	}
	if len(p.Contracts) > MaxContracts {
		return trieerr.NewRange("witness parcel", "contract count exceeds ceiling")
	}
	for _, c := range p.Contracts {
		if len(c) > MaxBytesPerContract {
			return trieerr.NewRange("witness parcel", "contract bytecode exceeds ceiling")
		}
	}
	if len(p.AccountNodePool) > MaxNodesPerPool || len(p.StorageNodePool) > MaxNodesPerPool {
		return trieerr.NewRange("witness parcel", "node pool size exceeds ceiling")
	}
	for _, n := range p.AccountNodePool {
		if len(n) > MaxBytesPerNode {
			return trieerr.NewRange("witness parcel", "account pool node exceeds byte ceiling")
		}
	}
	for _, n := range p.StorageNodePool {
		if len(n) > MaxBytesPerNode {
			return trieerr.NewRange("witness parcel", "storage pool node exceeds byte ceiling")
		}
	}
	if len(p.BlockHashes) > MaxRecentBlockHashes {
		return trieerr.NewRange("witness parcel", "recent block hash count exceeds ceiling")
	}
	for _, a := range p.Accounts {
		if len(a.AccountProofIndices) > MaxProofIndices {
			return trieerr.NewRange("witness parcel", "account proof index list exceeds ceiling")
		}
		if len(a.StorageProofs) > MaxAccountProofs {
			return trieerr.NewRange("witness parcel", "storage proof count exceeds ceiling")
		}
		for _, sp := range a.StorageProofs {
			if len(sp.ProofIndices) > MaxProofIndices {
				return trieerr.NewRange("witness parcel", "storage proof index list exceeds ceiling")
			}
		}
	}
	return nil
}

// ResolveAccountProof materializes the root-to-leaf node list for one
// account's entry by looking its AccountProofIndices up in the account
// node pool, in order, as eth_getProof's accountProof array would carry
// them.
func (p *Parcel) ResolveAccountProof(a *AccountProof) ([][]byte, error) {
	return resolve(a.AccountProofIndices, p.AccountNodePool)
}

// ResolveStorageProof is ResolveAccountProof's storage-proof analogue.
func (p *Parcel) ResolveStorageProof(sp *StorageProof) ([][]byte, error) {
	return resolve(sp.ProofIndices, p.StorageNodePool)
}

func resolve(indices []uint16, pool [][]byte) ([][]byte, error) {
	out := make([][]byte, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(pool) {
			return nil, trieerr.NewRange("witness parcel", "proof index out of bounds in node pool")
		}
		out[i] = pool[idx]
	}
	return out, nil
}

// ContractsByHash indexes the parcel's bytecode pool by keccak of its
// contents, matching how AccountProof.CodeHash looks bytecode up.
func (p *Parcel) ContractsByHash() map[common.Hash][]byte {
	out := make(map[common.Hash][]byte, len(p.Contracts))
	for _, code := range p.Contracts {
		out[crypto.Keccak256Hash(code)] = code
	}
	return out
}

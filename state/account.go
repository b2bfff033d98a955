package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/mattlabs/triewitness/multiproof"
)

// AccountRecord is the account trie leaf value: (nonce, balance,
// storage-root, code-hash), in that field order, matching go-ethereum's
// own on-disk account encoding. Balance is a uint256.Int, matching
// go-ethereum's own StateAccount field type rather than a general-purpose
// big.Int: an account balance can never be negative and is bounded by the
// 256-bit word size the EVM itself operates on.
type AccountRecord struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EmptyCodeHash is the code hash of an account with no bytecode.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// EmptyStorageRoot is the storage root of an account with no storage
// slots: the same EmptyRoot sentinel multiproof.Store uses for a trie
// that has never had a node in it.
var EmptyStorageRoot = multiproof.EmptyRoot

// ZeroAccount is the account record a brand-new or fully self-destructed
// address has: a zero nonce and balance, empty storage, no code. Accounts
// are overwritten with this rather than removed from the account trie
// (see DESIGN.md, "self-destruct account policy").
func ZeroAccount() AccountRecord {
	return AccountRecord{
		Nonce:       0,
		Balance:     new(uint256.Int),
		StorageRoot: EmptyStorageRoot,
		CodeHash:    EmptyCodeHash,
	}
}

// Encode RLP-encodes the record as the account trie would store it.
func (r AccountRecord) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(&r)
}

// DecodeAccountRecord parses raw as an AccountRecord.
func DecodeAccountRecord(raw []byte) (AccountRecord, error) {
	var r AccountRecord
	if err := rlp.DecodeBytes(raw, &r); err != nil {
		return AccountRecord{}, err
	}
	return r, nil
}

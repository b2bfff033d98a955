// Package trieerr defines the categorized error types produced by the
// codec, node, proof, multiproof and state packages. Every exported error
// type here implements error and carries enough context for a caller to
// use errors.As to recover it; categories mirror the failure taxonomy the
// rest of this module is built against (structural, integrity,
// missing-data, semantic, input-range).
package trieerr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names one of the five failure categories.
type Kind int

const (
	Structural Kind = iota
	Integrity
	MissingData
	Semantic
	InputRange
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Integrity:
		return "integrity"
	case MissingData:
		return "missing-data"
	case Semantic:
		return "semantic"
	case InputRange:
		return "input-range"
	default:
		return "unknown"
	}
}

// StructuralError reports RLP or node-shape that does not conform to the
// secure trie's node model (wrong item count, illegal hex-prefix nibble,
// a branch node carrying a value, an extension node claiming a full path).
type StructuralError struct {
	Op     string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural: %s: %s", e.Op, e.Detail)
}

func NewStructural(op, detail string) *StructuralError {
	return &StructuralError{Op: op, Detail: detail}
}

// IntegrityError reports a node whose RLP does not keccak to the hash its
// parent (or the witness parcel's stated root) claims for it.
type IntegrityError struct {
	Expected common.Hash
	Computed common.Hash
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: node hash mismatch: expected %s, computed %s", e.Expected, e.Computed)
}

func NewIntegrity(expected, computed common.Hash) *IntegrityError {
	return &IntegrityError{Expected: expected, Computed: computed}
}

// NoProofNodeError reports that a traversal needed a node by hash that is
// not present in the multi-proof store.
type NoProofNodeError struct {
	Hash common.Hash
}

func (e *NoProofNodeError) Error() string {
	return fmt.Sprintf("missing-data: no proof node for hash %s", e.Hash)
}

func NewNoProofNode(hash common.Hash) *NoProofNodeError {
	return &NoProofNodeError{Hash: hash}
}

// NoOracleNodeError reports that a deferred branch-collapse task could not
// be resolved because the node oracle has no entry for (address, key).
type NoOracleNodeError struct {
	Address common.Address
	Key     common.Hash
}

func (e *NoOracleNodeError) Error() string {
	return fmt.Sprintf("missing-data: no oracle node for address %s key %s", e.Address, e.Key)
}

func NewNoOracleNode(address common.Address, key common.Hash) *NoOracleNodeError {
	return &NoOracleNodeError{Address: address, Key: key}
}

// InclusionRequiredError reports that VerifyInclusion was asked to confirm
// a key the traversal found excluded from the trie.
type InclusionRequiredError struct{}

func (e *InclusionRequiredError) Error() string {
	return "semantic: verify-inclusion failed: key is excluded from the trie"
}

func NewInclusionRequired() *InclusionRequiredError { return &InclusionRequiredError{} }

// ExclusionRequiredError reports that VerifyExclusion was asked to confirm
// a key the traversal found included in the trie.
type ExclusionRequiredError struct{}

func (e *ExclusionRequiredError) Error() string {
	return "semantic: verify-exclusion failed: key is included in the trie"
}

func NewExclusionRequired() *ExclusionRequiredError { return &ExclusionRequiredError{} }

// ValueMismatchError reports that VerifyInclusion found the key but its
// leaf value did not equal the expected bytes.
type ValueMismatchError struct {
	Expected []byte
	Got      []byte
}

func (e *ValueMismatchError) Error() string {
	return fmt.Sprintf("semantic: verify-inclusion failed: value mismatch (expected %x, got %x)", e.Expected, e.Got)
}

func NewValueMismatch(expected, got []byte) *ValueMismatchError {
	return &ValueMismatchError{Expected: expected, Got: got}
}

// RootMismatchError reports that a proof's first node hashes to something
// other than the store's already-established root.
type RootMismatchError struct {
	Expected common.Hash
	Computed common.Hash
}

func (e *RootMismatchError) Error() string {
	return fmt.Sprintf("integrity: proof root mismatch: store has %s, proof's first node hashes to %s", e.Expected, e.Computed)
}

func NewRootMismatch(expected, computed common.Hash) *RootMismatchError {
	return &RootMismatchError{Expected: expected, Computed: computed}
}

// RangeError is a generic input-range failure: a value outside the bounds
// this component accepts (an out-of-range nibble, a path of the wrong
// length, a witness-parcel field over its size ceiling).
type RangeError struct {
	Op     string
	Detail string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("input-range: %s: %s", e.Op, e.Detail)
}

func NewRange(op, detail string) *RangeError {
	return &RangeError{Op: op, Detail: detail}
}

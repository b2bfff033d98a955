package multiproof

// intentKind names the four operations a traversal can carry out once it
// reaches the key's terminus.
type intentKind int

const (
	intentVerifyInclusion intentKind = iota
	intentVerifyExclusion
	intentModify
	intentRemove
)

// Intent selects what a Traverse call does once it reaches the terminus
// of a key's path: confirm inclusion or exclusion without mutating
// anything, or replace/delete the value there.
type Intent struct {
	kind  intentKind
	value []byte
}

// VerifyInclusion asks Traverse to confirm that key's leaf value equals
// want, without mutating the store.
func VerifyInclusion(want []byte) Intent { return Intent{kind: intentVerifyInclusion, value: want} }

// VerifyExclusion asks Traverse to confirm that key is absent from the
// trie, without mutating the store.
func VerifyExclusion() Intent { return Intent{kind: intentVerifyExclusion} }

// Modify asks Traverse to set key's leaf value to newValue, inserting a
// new leaf (and any intermediate branch/extension nodes) if key was
// previously absent.
func Modify(newValue []byte) Intent { return Intent{kind: intentModify, value: newValue} }

// Remove asks Traverse to delete key's leaf, collapsing its parent branch
// if doing so leaves it with only one remaining child.
func Remove() Intent { return Intent{kind: intentRemove} }

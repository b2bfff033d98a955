package witness

import (
	"fmt"

	"github.com/mattlabs/triewitness/ethdb/vectordb"
)

// Archive is an on-disk, append-only run of witness parcels, one per
// consecutively replayed block: block N's parcel lives at position N
// (relative to whatever block the archive was first opened at). A long-
// running replay host uses it to keep the parcels it has already
// consumed without re-requesting them from a peer.
type Archive struct {
	store *vectordb.VectorDB
}

// OpenArchive opens (creating if absent) a parcel archive named name
// under dir.
func OpenArchive(dir, name string) (*Archive, error) {
	store, err := vectordb.Open(name, dir)
	if err != nil {
		return nil, fmt.Errorf("opening witness archive: %w", err)
	}
	return &Archive{store: store}, nil
}

// Append encodes p and adds it to the end of the archive.
func (a *Archive) Append(p *Parcel) error {
	raw, err := Encode(p)
	if err != nil {
		return err
	}
	return a.store.Append(raw)
}

// At decodes and returns the parcel stored at position pos.
func (a *Archive) At(pos uint64) (*Parcel, error) {
	raw, err := a.store.Get(pos)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Len reports how many parcels the archive currently holds.
func (a *Archive) Len() uint64 {
	return a.store.Items()
}

// Close closes the underlying store.
func (a *Archive) Close() error {
	return a.store.Close()
}

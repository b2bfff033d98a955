// Package triedb provides a swappable key/value backend for the node pool
// that multiproof.Store keeps in memory by default. The shape mirrors
// go-ethereum's own ethdb.Database (Get/Put/Has/Delete/Batch) without
// pulling in its ancient-store and iterator surface, which nothing here
// needs: a multi-proof node pool is addressed purely by hash.
package triedb

// Store is the minimal key/value contract a node pool can be spilled to.
// MemoryStore and LevelDBStore both implement it.
type Store interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	Close() error
}

// Batch accumulates writes for a single atomic commit, mirroring
// ethdb.Batch.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	ValueSize() int
	Write() error
	Reset()
}

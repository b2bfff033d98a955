package triedb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
)

// LevelDBStore is the persistent Store option, for the replay CLI's
// on-disk node cache (see the cmd/replay --node-cache-dir flag). The
// core library never constructs one on its own; a caller opens it and
// hands it to multiproof.NewWithBackend or a SetBackend method (the
// replay CLI uses state.Adapter.SetBackend).
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if absent) a LevelDB store at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == errors.ErrNotFound {
		return nil, nil
	}
	return v, err
}

func (s *LevelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *LevelDBStore) NewBatch() Batch {
	return &levelDBBatch{db: s.db, batch: new(leveldb.Batch)}
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

type levelDBBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
	size  int
}

func (b *levelDBBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelDBBatch) ValueSize() int { return b.size }

func (b *levelDBBatch) Write() error {
	return b.db.Write(b.batch, nil)
}

func (b *levelDBBatch) Reset() {
	b.batch.Reset()
	b.size = 0
}

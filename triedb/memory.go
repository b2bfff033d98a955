package triedb

import (
	"sync"
)

// MemoryStore is the in-memory Store: a plain map guarded by a mutex,
// equivalent in shape to go-ethereum's ethdb/memorydb. A multiproof.Store
// does not install it on its own: without an explicit backend it keeps
// nodes only in its own map.
type MemoryStore struct {
	lock sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Has(key []byte) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(key, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MemoryStore) Delete(key []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) Close() error { return nil }

type memoryKV struct {
	key, value []byte
	delete     bool
}

type memoryBatch struct {
	store *MemoryStore
	ops   []memoryKV
	size  int
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryKV{key: key, value: value})
	b.size += len(key) + len(value)
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryKV{key: key, delete: true})
	b.size += len(key)
	return nil
}

func (b *memoryBatch) ValueSize() int { return b.size }

func (b *memoryBatch) Write() error {
	for _, op := range b.ops {
		if op.delete {
			if err := b.store.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := b.store.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

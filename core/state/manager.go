package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rentmarket/storage"
)

// Manager provides typed access to the keyed tables persisted in the backing
// key-value store. All records are RLP encoded under string key prefixes; see
// prefixes.go for the layout.
type Manager struct {
	db storage.Database
}

// NewManager binds a state manager to the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVPut RLP-encodes the value and stores it under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVPutBatch RLP-encodes each value and stores all pairs in one atomic
// write.
func (m *Manager) KVPutBatch(keys [][]byte, values []interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	if len(keys) != len(values) {
		return fmt.Errorf("state: mismatched batch lengths")
	}
	encoded := make([][]byte, len(keys))
	for i, key := range keys {
		if len(key) == 0 {
			return fmt.Errorf("state: key must not be empty")
		}
		data, err := rlp.EncodeToBytes(values[i])
		if err != nil {
			return err
		}
		encoded[i] = data
	}
	return m.db.PutBatch(keys, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: manager not initialised")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("state: key must not be empty")
	}
	ok, err := m.db.Has(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

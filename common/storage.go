package common

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/io"
)

// Store is a key-value storage shared by all contract components. It is
// satisfied by storage.MemCachedStore, so every contract call can work on
// its own cache and either persist or drop it.
type Store interface {
	// Get returns value stored by the key or storage.ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Put saves the value by the key. Value must not be changed afterwards.
	Put(key, value []byte)
	// Delete removes the value stored by the key if any.
	Delete(key []byte)
	// Seek calls f for every item matching the range until f returns false.
	Seek(rng storage.SeekRange, f func(k, v []byte) bool)
}

// Has checks whether the key is present in the store.
func Has(s Store, key []byte) bool {
	_, err := s.Get(key)
	return err == nil
}

// Key concatenates prefix and key parts into a storage key.
func Key(prefix byte, parts ...[]byte) []byte {
	n := 1
	for i := range parts {
		n += len(parts[i])
	}

	key := make([]byte, 0, n)
	key = append(key, prefix)
	for i := range parts {
		key = append(key, parts[i]...)
	}
	return key
}

// GetSerialized reads the item by the key and decodes it into v. It returns
// false if there is no such item.
func GetSerialized(s Store, key []byte, v io.Serializable) (bool, error) {
	data, err := s.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read %x: %w", key, err)
	}

	r := io.NewBinReaderFromBuf(data)
	v.DecodeBinary(r)
	if r.Err != nil {
		return false, NewError(Internal, fmt.Sprintf("decode %x: %v", key, r.Err))
	}

	return true, nil
}

// SetSerialized serializes data and puts it into the store.
func SetSerialized(s Store, key []byte, v io.Serializable) error {
	w := io.NewBufBinWriter()
	v.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return NewError(Internal, fmt.Sprintf("encode %x: %v", key, w.Err))
	}

	s.Put(key, w.Bytes())
	return nil
}

package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// EvictFunc is called for every item pushed out of a full ledger. It
// performs cascade deletion of the data referenced by the item only.
type EvictFunc func(owner, item []byte) error

// Ledger is a fixed-capacity FIFO list of fixed-size items kept per owner
// key. When the list is full, the oldest item is evicted before a new one
// is appended. Order is the order of insertion and reads never change it.
type Ledger struct {
	store    common.Store
	prefix   byte
	capacity int
	itemSize int
	onEvict  EvictFunc
}

// New returns a ledger stored under the given key prefix. Zero capacity
// means unbounded list. onEvict may be nil.
func New(s common.Store, prefix byte, capacity, itemSize int, onEvict EvictFunc) *Ledger {
	return &Ledger{
		store:    s,
		prefix:   prefix,
		capacity: capacity,
		itemSize: itemSize,
		onEvict:  onEvict,
	}
}

// Capacity returns the maximum number of items per owner.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Append pushes the item to the back of the owner's list evicting the
// oldest items while the list is full.
func (l *Ledger) Append(owner, item []byte) error {
	if err := l.checkItem(item); err != nil {
		return err
	}

	for l.capacity > 0 {
		list, err := l.load(owner)
		if err != nil {
			return err
		}
		if len(list) < l.capacity {
			break
		}
		if _, _, err := l.evictFront(owner, list); err != nil {
			return err
		}
	}

	// cascade may have changed the list
	list, err := l.load(owner)
	if err != nil {
		return err
	}

	return l.save(owner, append(list, item))
}

// EvictOldest removes the front item of the owner's list and runs the
// cascade for it. It returns false if the list is empty.
func (l *Ledger) EvictOldest(owner []byte) ([]byte, bool, error) {
	list, err := l.load(owner)
	if err != nil {
		return nil, false, err
	}
	if len(list) == 0 {
		return nil, false, nil
	}
	return l.evictFront(owner, list)
}

func (l *Ledger) evictFront(owner []byte, list [][]byte) ([]byte, bool, error) {
	evicted := list[0]
	if err := l.save(owner, list[1:]); err != nil {
		return nil, false, err
	}

	if l.onEvict != nil {
		if err := l.onEvict(owner, evicted); err != nil {
			return nil, false, fmt.Errorf("evict %x: %w", evicted, err)
		}
	}

	return evicted, true, nil
}

// Remove deletes the first occurrence of the item. It is a no-op if there
// is no such item. The cascade is not called.
func (l *Ledger) Remove(owner, item []byte) error {
	list, err := l.load(owner)
	if err != nil {
		return err
	}

	for i := range list {
		if bytes.Equal(list[i], item) {
			return l.save(owner, append(list[:i:i], list[i+1:]...))
		}
	}

	return nil
}

// Contains checks whether the item is in the owner's list.
func (l *Ledger) Contains(owner, item []byte) (bool, error) {
	list, err := l.load(owner)
	if err != nil {
		return false, err
	}

	for i := range list {
		if bytes.Equal(list[i], item) {
			return true, nil
		}
	}
	return false, nil
}

// List returns the owner's items, oldest first.
func (l *Ledger) List(owner []byte) ([][]byte, error) {
	return l.load(owner)
}

// Len returns the number of items in the owner's list.
func (l *Ledger) Len(owner []byte) (int, error) {
	list, err := l.load(owner)
	return len(list), err
}

// Drop deletes the owner's list without running the cascade.
func (l *Ledger) Drop(owner []byte) {
	l.store.Delete(common.Key(l.prefix, owner))
}

func (l *Ledger) checkItem(item []byte) error {
	if len(item) != l.itemSize {
		return common.NewError(common.Internal,
			fmt.Sprintf("ledger item length %d, expected %d", len(item), l.itemSize))
	}
	return nil
}

func (l *Ledger) load(owner []byte) ([][]byte, error) {
	key := common.Key(l.prefix, owner)

	data, err := l.store.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %x: %w", key, err)
	}

	r := io.NewBinReaderFromBuf(data)
	if v := r.ReadB(); r.Err == nil && v != common.EntityVersion {
		return nil, common.NewError(common.Internal, fmt.Sprintf("ledger %x: unsupported version %d", key, v))
	}

	n := r.ReadVarUint()
	if r.Err == nil && n > uint64(len(data)/l.itemSize) {
		return nil, common.NewError(common.Internal, fmt.Sprintf("ledger %x: corrupted item list", key))
	}

	list := make([][]byte, 0, n)
	for i := uint64(0); i < n && r.Err == nil; i++ {
		item := make([]byte, l.itemSize)
		r.ReadBytes(item)
		list = append(list, item)
	}

	if r.Err != nil {
		return nil, common.NewError(common.Internal, fmt.Sprintf("decode ledger %x: %v", key, r.Err))
	}

	return list, nil
}

func (l *Ledger) save(owner []byte, list [][]byte) error {
	key := common.Key(l.prefix, owner)
	if len(list) == 0 {
		l.store.Delete(key)
		return nil
	}

	w := io.NewBufBinWriter()
	w.WriteB(common.EntityVersion)
	w.WriteVarUint(uint64(len(list)))
	for i := range list {
		w.WriteBytes(list[i])
	}
	if w.Err != nil {
		return common.NewError(common.Internal, fmt.Sprintf("encode ledger %x: %v", key, w.Err))
	}

	l.store.Put(key, w.Bytes())
	return nil
}

// IDs is a ledger of message identifiers.
type IDs struct {
	*Ledger
}

// Append pushes the id to the back of the owner's list.
func (x IDs) Append(owner []byte, id util.Uint256) error {
	return x.Ledger.Append(owner, id.BytesBE())
}

// Remove deletes the first occurrence of the id.
func (x IDs) Remove(owner []byte, id util.Uint256) error {
	return x.Ledger.Remove(owner, id.BytesBE())
}

// Contains checks whether the owner's list contains the id.
func (x IDs) Contains(owner []byte, id util.Uint256) (bool, error) {
	return x.Ledger.Contains(owner, id.BytesBE())
}

// List returns the owner's ids, oldest first.
func (x IDs) List(owner []byte) ([]util.Uint256, error) {
	raw, err := x.Ledger.List(owner)
	if err != nil {
		return nil, err
	}

	res := make([]util.Uint256, len(raw))
	for i := range raw {
		res[i], err = util.Uint256DecodeBytesBE(raw[i])
		if err != nil {
			return nil, common.NewError(common.Internal, err.Error())
		}
	}
	return res, nil
}

// Accounts is a ledger of account identifiers.
type Accounts struct {
	*Ledger
}

// Append pushes the account to the back of the owner's list.
func (x Accounts) Append(owner []byte, acc util.Uint160) error {
	return x.Ledger.Append(owner, acc.BytesBE())
}

// Remove deletes the first occurrence of the account.
func (x Accounts) Remove(owner []byte, acc util.Uint160) error {
	return x.Ledger.Remove(owner, acc.BytesBE())
}

// Contains checks whether the owner's list contains the account.
func (x Accounts) Contains(owner []byte, acc util.Uint160) (bool, error) {
	return x.Ledger.Contains(owner, acc.BytesBE())
}

// List returns the owner's accounts, oldest first.
func (x Accounts) List(owner []byte) ([]util.Uint160, error) {
	raw, err := x.Ledger.List(owner)
	if err != nil {
		return nil, err
	}

	res := make([]util.Uint160, len(raw))
	for i := range raw {
		res[i], err = util.Uint160DecodeBytesBE(raw[i])
		if err != nil {
			return nil, common.NewError(common.Internal, err.Error())
		}
	}
	return res, nil
}

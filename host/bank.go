package host

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const bankPrefix = 'B'

var (
	// ErrInsufficientFunds is returned by Bank.Transfer when the sender
	// can't cover the amount.
	ErrInsufficientFunds = common.NewError(common.Exhausted, "insufficient funds")

	// ErrPaymentRejected is returned when the receiver's PaymentHandler
	// rejects incoming transfer.
	ErrPaymentRejected = common.NewError(common.External, "payment rejected by receiver")
)

// PaymentHandler is called after the funds are moved to the receiver.
// Returned error reverts the transfer.
type PaymentHandler func(from util.Uint160, amount uint64, details []byte) error

// Bank keeps account balances in the key-value storage.
type Bank struct {
	mtx      sync.Mutex
	store    storage.Store
	handlers map[util.Uint160]PaymentHandler
	attached map[util.Uint160]uint64
}

// NewBank returns Bank working over the given storage. Balances are kept
// under the separate key prefix so the bank may share storage with the
// contract.
func NewBank(s storage.Store) *Bank {
	return &Bank{
		store:    s,
		handlers: make(map[util.Uint160]PaymentHandler),
		attached: make(map[util.Uint160]uint64),
	}
}

// SetPaymentHandler registers handler for incoming transfers of the
// account. Nil handler unregisters it.
func (b *Bank) SetPaymentHandler(acc util.Uint160, h PaymentHandler) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if h == nil {
		delete(b.handlers, acc)
		return
	}
	b.handlers[acc] = h
}

// BalanceOf returns balance of the account. Unreadable balance is zero.
func (b *Bank) BalanceOf(acc util.Uint160) uint64 {
	return balanceOf(b.store, acc)
}

// Deposit mints amount to the account.
func (b *Bank) Deposit(acc util.Uint160, amount uint64) error {
	cache := storage.NewMemCachedStore(b.store)

	bal, err := common.Add(balanceOf(cache, acc), amount)
	if err != nil {
		return fmt.Errorf("deposit to %s: %w", acc.StringLE(), err)
	}
	setBalance(cache, acc, bal)

	if _, err := cache.Persist(); err != nil {
		return fmt.Errorf("persist deposit: %w", err)
	}
	return nil
}

// Transfer moves amount between accounts. Receiver's payment handler is
// called after the funds are moved, the transfer is reverted if the handler
// fails. Handler may make transfers of its own.
func (b *Bank) Transfer(from, to util.Uint160, amount uint64, details []byte) error {
	if err := b.move(from, to, amount); err != nil {
		return err
	}

	b.mtx.Lock()
	h := b.handlers[to]
	b.mtx.Unlock()

	if h == nil {
		return nil
	}

	if err := h(from, amount, details); err != nil {
		if rErr := b.move(to, from, amount); rErr != nil {
			return common.NewError(common.Internal, fmt.Sprintf("revert rejected payment: %v", rErr))
		}
		return fmt.Errorf("%w: %v", ErrPaymentRejected, err)
	}

	return nil
}

// Attach moves amount from the caller to the contract and runs the contract
// call the amount is attached to. The amount is returned to the caller if
// the call fails. The contract sees the amount as attached to the call
// until it returns, nested calls see their own amounts.
func (b *Bank) Attach(from, contract util.Uint160, amount uint64, call func() error) error {
	if err := b.move(from, contract, amount); err != nil {
		return err
	}

	b.mtx.Lock()
	prev, hadPrev := b.attached[contract]
	b.attached[contract] = amount
	b.mtx.Unlock()

	err := call()

	b.mtx.Lock()
	if hadPrev {
		b.attached[contract] = prev
	} else {
		delete(b.attached, contract)
	}
	b.mtx.Unlock()

	if err != nil {
		if rErr := b.move(contract, from, amount); rErr != nil {
			return common.NewError(common.Internal, fmt.Sprintf("return attached funds: %v (call error: %v)", rErr, err))
		}
		return err
	}

	return nil
}

func (b *Bank) move(from, to util.Uint160, amount uint64) error {
	cache := storage.NewMemCachedStore(b.store)

	fromBal := balanceOf(cache, from)
	if fromBal < amount {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientFunds, fromBal, amount)
	}
	setBalance(cache, from, fromBal-amount)

	toBal, err := common.Add(balanceOf(cache, to), amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to.StringLE(), err)
	}
	setBalance(cache, to, toBal)

	if _, err := cache.Persist(); err != nil {
		return fmt.Errorf("persist transfer: %w", err)
	}
	return nil
}

// Treasury returns Treasury view of the account.
func (b *Bank) Treasury(acc util.Uint160) Treasury {
	return treasury{bank: b, acc: acc}
}

type treasury struct {
	bank *Bank
	acc  util.Uint160
}

func (t treasury) Balance() uint64 {
	return t.bank.BalanceOf(t.acc)
}

func (t treasury) Transfer(to util.Uint160, amount uint64, details []byte) error {
	return t.bank.Transfer(t.acc, to, amount, details)
}

func (t treasury) Attached() uint64 {
	t.bank.mtx.Lock()
	defer t.bank.mtx.Unlock()
	return t.bank.attached[t.acc]
}

type getter interface {
	Get(key []byte) ([]byte, error)
}

func balanceOf(s getter, acc util.Uint160) uint64 {
	data, err := s.Get(common.Key(bankPrefix, acc.BytesBE()))
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data)
}

func setBalance(s *storage.MemCachedStore, acc util.Uint160, v uint64) {
	key := common.Key(bankPrefix, acc.BytesBE())
	if v == 0 {
		s.Delete(key)
		return
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	s.Put(key, buf)
}

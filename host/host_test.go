package host

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBank(t *testing.T) {
	b := NewBank(storage.NewMemCachedStore(storage.NewMemoryStore()))
	alice, bob := util.Uint160{1}, util.Uint160{2}

	require.NoError(t, b.Deposit(alice, 100))
	require.EqualValues(t, 100, b.BalanceOf(alice))
	require.Zero(t, b.BalanceOf(bob))

	require.NoError(t, b.Transfer(alice, bob, 30, nil))
	require.EqualValues(t, 70, b.BalanceOf(alice))
	require.EqualValues(t, 30, b.BalanceOf(bob))

	t.Run("insufficient funds", func(t *testing.T) {
		err := b.Transfer(bob, alice, 31, nil)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		require.Equal(t, common.Exhausted, common.KindOf(err))
		require.EqualValues(t, 30, b.BalanceOf(bob))
	})

	t.Run("overflow", func(t *testing.T) {
		require.ErrorIs(t, b.Deposit(alice, math.MaxUint64), common.ErrOverflow)
		require.EqualValues(t, 70, b.BalanceOf(alice))
	})

	t.Run("payment handler", func(t *testing.T) {
		var got []byte
		b.SetPaymentHandler(bob, func(from util.Uint160, amount uint64, details []byte) error {
			require.Equal(t, alice, from)
			require.EqualValues(t, 5, amount)
			got = details
			return nil
		})
		require.NoError(t, b.Transfer(alice, bob, 5, []byte{1, 2}))
		require.Equal(t, []byte{1, 2}, got)
		require.EqualValues(t, 35, b.BalanceOf(bob))
	})

	t.Run("rejected payment is rolled back", func(t *testing.T) {
		b.SetPaymentHandler(bob, func(util.Uint160, uint64, []byte) error {
			return errors.New("no thanks")
		})
		defer b.SetPaymentHandler(bob, nil)

		err := b.Transfer(alice, bob, 5, nil)
		require.ErrorIs(t, err, ErrPaymentRejected)
		require.EqualValues(t, 65, b.BalanceOf(alice))
		require.EqualValues(t, 35, b.BalanceOf(bob))
	})

	t.Run("attach", func(t *testing.T) {
		err := b.Attach(alice, bob, 10, func() error {
			require.EqualValues(t, 45, b.BalanceOf(bob))
			return errors.New("call failed")
		})
		require.EqualError(t, err, "call failed")
		require.EqualValues(t, 65, b.BalanceOf(alice))
		require.EqualValues(t, 35, b.BalanceOf(bob))

		require.NoError(t, b.Attach(alice, bob, 10, func() error { return nil }))
		require.EqualValues(t, 55, b.BalanceOf(alice))
		require.NoError(t, b.Transfer(bob, alice, 10, nil))
	})

	t.Run("attached value", func(t *testing.T) {
		tr := b.Treasury(bob)
		require.Zero(t, tr.Attached())

		require.NoError(t, b.Attach(alice, bob, 7, func() error {
			require.EqualValues(t, 7, tr.Attached())
			require.Zero(t, b.Treasury(alice).Attached())

			require.NoError(t, b.Attach(alice, bob, 3, func() error {
				require.EqualValues(t, 3, tr.Attached())
				return nil
			}))

			require.EqualValues(t, 7, tr.Attached())
			return nil
		}))
		require.Zero(t, tr.Attached())

		_ = b.Attach(alice, bob, 1, func() error { return errors.New("fail") })
		require.Zero(t, tr.Attached())

		require.NoError(t, b.Transfer(bob, alice, 10, nil))
	})

	t.Run("treasury", func(t *testing.T) {
		tr := b.Treasury(alice)
		require.EqualValues(t, 65, tr.Balance())
		require.NoError(t, tr.Transfer(bob, 65, nil))
		require.Zero(t, tr.Balance())
	})
}

func TestClocks(t *testing.T) {
	c := NewManualClock(1000)
	require.EqualValues(t, 1000, c.Now())
	c.Advance(2 * time.Second)
	require.EqualValues(t, 3000, c.Now())

	var sc SystemClock
	a := sc.Now()
	require.GreaterOrEqual(t, sc.Now(), a)
}

func TestSHA256(t *testing.T) {
	h := SHA256{}.Hash([]byte("ab"), []byte("c"))
	require.Equal(t, hash.Sha256([]byte("abc")), h)
	require.NotEqual(t, h, SHA256{}.Hash([]byte("abd")))
}

func TestSinks(t *testing.T) {
	var j Journal
	sink := MultiSink{NewLogSink(zaptest.NewLogger(t)), &j, NopSink{}}

	ev := state.NotificationEvent{
		ScriptHash: util.Uint160{9},
		Name:       "Test",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray([]byte{0xab}),
			stackitem.NewBigInteger(big.NewInt(42)),
		}),
	}
	sink.Notify(ev)
	sink.Notify(ev)

	entries := j.Entries()
	require.Len(t, entries, 2)
	require.NotEqual(t, entries[0].ID, entries[1].ID)
	require.Equal(t, []string{"Test", "Test"}, j.Names())
	require.Equal(t, []string{"ab", "42"}, itemStrings(ev.Item))
	require.Equal(t, "Test(ab, 42)", entries[0].String())

	j.Reset()
	require.Empty(t, j.Entries())
}

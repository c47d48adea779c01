package message

import (
	"strings"
	"testing"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

var (
	alice = util.Uint160{1}
	bob   = util.Uint160{2}
)

func newStore(t *testing.T, sentCap int) (*Store, *[]FreeMessage) {
	cfg := config.Default()
	cfg.Capacities.SentMessages = sentCap
	cfg.Capacities.Replies = 2

	var deleted []FreeMessage
	s := New(Prm{
		Store:      storage.NewMemCachedStore(storage.NewMemoryStore()),
		Hasher:     host.SHA256{},
		Capacities: cfg.Capacities,
		Limits:     cfg.Limits,
		OnDelete: func(m FreeMessage) {
			deleted = append(deleted, m)
		},
	})
	return s, &deleted
}

func post(t *testing.T, s *Store, author util.Uint160, parent util.Uint256, content string, now uint64) FreeMessage {
	m, err := s.CreateMessage(author, parent, content, "", "", now)
	require.NoError(t, err)
	return m
}

func requireGone(t *testing.T, s *Store, id util.Uint256) {
	_, ok, err := s.Message(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateMessage(t *testing.T) {
	s, _ := newStore(t, 10)

	m := post(t, s, alice, util.Uint256{}, "hello", 1)
	require.Equal(t, ID(host.SHA256{}, alice, "hello", 1), m.ID)
	require.False(t, m.IsReply())

	got, ok, err := s.Message(m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)

	t.Run("duplicate", func(t *testing.T) {
		_, err := s.CreateMessage(alice, util.Uint256{}, "hello", "", "", 1)
		require.ErrorIs(t, err, ErrDuplicateMessage)
	})

	t.Run("too large", func(t *testing.T) {
		lim := config.Default().Limits
		_, err := s.CreateMessage(alice, util.Uint256{}, strings.Repeat("x", lim.Content+1), "", "", 2)
		require.ErrorIs(t, err, common.ErrContentTooLarge)
		require.Equal(t, common.Validation, common.KindOf(err))

		_, err = s.CreateMessage(alice, util.Uint256{}, "x", strings.Repeat("x", lim.Media+1), "", 2)
		require.ErrorIs(t, err, common.ErrContentTooLarge)

		_, err = s.CreateMessage(alice, util.Uint256{}, "x", "", strings.Repeat("x", lim.Link+1), 2)
		require.ErrorIs(t, err, common.ErrContentTooLarge)
	})

	t.Run("reply", func(t *testing.T) {
		r := post(t, s, bob, m.ID, "hi", 3)
		require.True(t, r.IsReply())

		parent, _, err := s.Message(m.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, parent.ReplyCount)

		replies, err := s.Replies(m.ID)
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{r.ID}, replies)

		_, err = s.CreateMessage(alice, util.Uint256{0xff}, "x", "", "", 4)
		require.ErrorIs(t, err, ErrReplyTargetMissing)

		_, err = s.CreateMessage(alice, r.ID, "x", "", "", 4)
		require.ErrorIs(t, err, ErrNestedReply)
	})
}

func TestSentEvictionCascade(t *testing.T) {
	s, deleted := newStore(t, 3)

	m1 := post(t, s, alice, util.Uint256{}, "1", 1)
	r1 := post(t, s, bob, m1.ID, "r1", 2)
	r2 := post(t, s, bob, m1.ID, "r2", 3)
	m2 := post(t, s, alice, util.Uint256{}, "2", 4)
	m3 := post(t, s, alice, util.Uint256{}, "3", 5)
	m4 := post(t, s, alice, util.Uint256{}, "4", 6)

	sent, err := s.SentBy(alice)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{m2.ID, m3.ID, m4.ID}, sent)

	requireGone(t, s, m1.ID)
	requireGone(t, s, r1.ID)
	requireGone(t, s, r2.ID)
	require.Len(t, *deleted, 3)

	replies, err := s.Replies(m1.ID)
	require.NoError(t, err)
	require.Empty(t, replies)

	sent, err = s.SentBy(bob)
	require.NoError(t, err)
	require.Empty(t, sent)
}

func TestReplyEviction(t *testing.T) {
	s, _ := newStore(t, 10)

	m := post(t, s, alice, util.Uint256{}, "m", 1)
	r1 := post(t, s, bob, m.ID, "r1", 2)
	r2 := post(t, s, bob, m.ID, "r2", 3)
	r3 := post(t, s, bob, m.ID, "r3", 4)

	requireGone(t, s, r1.ID)

	replies, err := s.Replies(m.ID)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{r2.ID, r3.ID}, replies)

	sent, err := s.SentBy(bob)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{r2.ID, r3.ID}, sent)

	parent, _, err := s.Message(m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, parent.ReplyCount)
}

func TestReplyEvictedFromAuthorQuota(t *testing.T) {
	s, _ := newStore(t, 2)

	m := post(t, s, alice, util.Uint256{}, "m", 1)
	r := post(t, s, bob, m.ID, "r", 2)
	post(t, s, bob, util.Uint256{}, "b1", 3)
	post(t, s, bob, util.Uint256{}, "b2", 4)

	requireGone(t, s, r.ID)

	replies, err := s.Replies(m.ID)
	require.NoError(t, err)
	require.Empty(t, replies)
}

func TestReplyToOwnEvictedParent(t *testing.T) {
	s, _ := newStore(t, 1)

	m := post(t, s, alice, util.Uint256{}, "m", 1)
	_, err := s.CreateMessage(alice, m.ID, "r", "", "", 2)
	require.ErrorIs(t, err, ErrReplyTargetMissing)
}

func TestEndorseFree(t *testing.T) {
	s, _ := newStore(t, 10)
	m := post(t, s, alice, util.Uint256{}, "m", 1)

	_, err := s.EndorseFree(util.Uint256{0xff}, bob)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.EndorseFree(m.ID, alice)
	require.ErrorIs(t, err, ErrDuplicateOrSelfEndorsement)

	got, err := s.EndorseFree(m.ID, bob)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.EndorserCount)

	_, err = s.EndorseFree(m.ID, bob)
	require.ErrorIs(t, err, ErrDuplicateOrSelfEndorsement)
	require.Equal(t, common.Conflict, common.KindOf(err))

	endorsers, err := s.Endorsers(m.ID)
	require.NoError(t, err)
	require.Equal(t, []util.Uint160{bob}, endorsers)

	endorsed, err := s.EndorsedBy(bob)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{m.ID}, endorsed)
}

func TestPaidMessage(t *testing.T) {
	s, _ := newStore(t, 10)

	m, err := s.NewPaidMessage(alice, "ad", "", "", "sports", 105, 10, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, m.PaymentPerEndorser)
	require.EqualValues(t, 105, m.StakedBalance)

	_, ok, err := s.PaidMessage(m.ID)
	require.NoError(t, err)
	require.False(t, ok, "new paid message must not be stored")

	require.NoError(t, s.PutPaid(&m))
	got, ok, err := s.PaidMessage(m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)

	require.NoError(t, s.AddPaidEndorser(&m, bob))
	has, err := s.HasPaidEndorser(m.ID, bob)
	require.NoError(t, err)
	require.True(t, has)

	t.Run("id collision", func(t *testing.T) {
		_, err := s.NewPaidMessage(alice, "ad", "", "", "sports", 105, 10, 1)
		require.ErrorIs(t, err, ErrDuplicateMessage)
	})

	t.Run("invalid terms", func(t *testing.T) {
		for _, tc := range []struct {
			tag        string
			stake, max uint64
		}{
			{"", 10, 1},
			{"tag", 10, 0},
			{"tag", 1000, config.Default().Limits.MaxPaidEndorsers + 1},
			{"tag", 9, 10},
			{"tag", 0, 1},
		} {
			_, err := s.NewPaidMessage(alice, "x", "", "", tc.tag, tc.stake, tc.max, 2)
			require.ErrorIs(t, err, ErrInvalidPaidTerms, tc)
		}

		_, err := s.NewPaidMessage(alice, "x", "", "", strings.Repeat("t", config.Default().Limits.Tag+1), 10, 1, 2)
		require.ErrorIs(t, err, common.ErrContentTooLarge)
	})

	s.DeletePaid(m.ID)
	_, ok, err = s.PaidMessage(m.ID)
	require.NoError(t, err)
	require.False(t, ok)

	endorsers, err := s.PaidEndorsers(m.ID)
	require.NoError(t, err)
	require.Empty(t, endorsers)
}

func TestPaidMessageBrokenAccounting(t *testing.T) {
	m := PaidMessage{TotalStaked: 10, StakedBalance: 11, MaxEndorsers: 1}

	w := io.NewBufBinWriter()
	m.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)

	var got PaidMessage
	r := io.NewBinReaderFromBuf(w.Bytes())
	got.DecodeBinary(r)
	require.Error(t, r.Err)
}

func TestPaidEndorsersOutliveLimitChange(t *testing.T) {
	store := storage.NewMemCachedStore(storage.NewMemoryStore())

	open := func(maxPaid uint64) *Store {
		cfg := config.Default()
		cfg.Limits.MaxPaidEndorsers = maxPaid
		return New(Prm{
			Store:      store,
			Hasher:     host.SHA256{},
			Capacities: cfg.Capacities,
			Limits:     cfg.Limits,
		})
	}

	s := open(3)
	m, err := s.NewPaidMessage(alice, "ad", "", "", "sports", 30, 3, 1)
	require.NoError(t, err)
	require.NoError(t, s.PutPaid(&m))

	endorsers := []util.Uint160{{0x21}, {0x22}, {0x23}}
	for _, acc := range endorsers {
		require.NoError(t, s.AddPaidEndorser(&m, acc))
	}

	// lowered limit applies to new messages only
	s = open(1)
	for _, acc := range endorsers {
		has, err := s.HasPaidEndorser(m.ID, acc)
		require.NoError(t, err)
		require.True(t, has)
	}

	require.NoError(t, s.AddPaidEndorser(&m, alice), "room for the author's reclaim")

	err = s.AddPaidEndorser(&m, bob)
	require.Equal(t, common.Internal, common.KindOf(err))

	list, err := s.PaidEndorsers(m.ID)
	require.NoError(t, err)
	require.Equal(t, append(endorsers, alice), list)

	_, err = s.NewPaidMessage(alice, "ad2", "", "", "sports", 30, 3, 2)
	require.ErrorIs(t, err, ErrInvalidPaidTerms)
}

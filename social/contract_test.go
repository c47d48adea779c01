package social

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/geode-social/social-contract/account"
	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/geode-social/social-contract/message"
	"github.com/geode-social/social-contract/metrics"
	"github.com/geode-social/social-contract/payout"
	"github.com/geode-social/social-contract/topic"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var (
	contractAcc = util.Uint160{0xc0}
	owner       = util.Uint160{0x0e}

	alice = util.Uint160{1}
	bob   = util.Uint160{2}
	carol = util.Uint160{3}
)

type env struct {
	c       *Contract
	bank    *host.Bank
	clock   *host.ManualClock
	journal *host.Journal
	reg     *prometheus.Registry
	logs    *observer.ObservedLogs
}

func newEnv(t *testing.T, modify func(*config.Config)) *env {
	cfg := config.Default()
	if modify != nil {
		modify(&cfg)
	}

	store := storage.NewMemCachedStore(storage.NewMemoryStore())

	e := &env{
		bank:    host.NewBank(store),
		clock:   host.NewManualClock(1_700_000_000_000),
		journal: new(host.Journal),
		reg:     prometheus.NewRegistry(),
	}

	col, err := metrics.New(e.reg)
	require.NoError(t, err)

	var observed zapcore.Core
	observed, e.logs = observer.New(zap.DebugLevel)

	e.c, err = New(Prm{
		Store:    store,
		Address:  contractAcc,
		Owner:    owner,
		Treasury: e.bank.Treasury(contractAcc),
		Clock:    e.clock,
		Hasher:   host.SHA256{},
		Events:   e.journal,
		Config:   cfg,
		Logger:   zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), observed)),
		Metrics:  col,
	})
	require.NoError(t, err)

	// operational funds covering the reserve floor
	require.NoError(t, e.bank.Deposit(contractAcc, cfg.Payout.ReserveFloor+1))

	return e
}

func (e *env) tick() {
	e.clock.Advance(time.Millisecond)
}

func (e *env) send(t *testing.T, acc util.Uint160, content string) util.Uint256 {
	e.tick()
	id, err := e.c.SendMessage(acc, content, "", "")
	require.NoError(t, err)
	return id
}

func (e *env) reply(t *testing.T, acc util.Uint160, parent util.Uint256, content string) util.Uint256 {
	e.tick()
	id, err := e.c.SendReply(acc, parent, content, "", "")
	require.NoError(t, err)
	return id
}

func (e *env) sendPaid(acc util.Uint160, tag string, stake, max uint64) (util.Uint256, error) {
	e.tick()

	var id util.Uint256
	err := e.bank.Attach(acc, contractAcc, stake, func() error {
		var err error
		id, err = e.c.SendPaidMessage(acc, PaidPost{
			Content:      "ad",
			Tag:          tag,
			Stake:        stake,
			MaxEndorsers: max,
		})
		return err
	})
	return id, err
}

func (e *env) mustSendPaid(t *testing.T, acc util.Uint160, tag string, stake, max uint64) util.Uint256 {
	require.NoError(t, e.bank.Deposit(acc, stake))
	id, err := e.sendPaid(acc, tag, stake, max)
	require.NoError(t, err)
	return id
}

func (e *env) settings(t *testing.T, acc util.Uint160, username, interests string) {
	e.tick()
	require.NoError(t, e.c.UpdateSettings(acc, username, interests, 0, 0))
}

func TestEvictionCascade(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Capacities.SentMessages = 3
	})

	m1 := e.send(t, alice, "first")
	r1 := e.reply(t, bob, m1, "reply one")
	r2 := e.reply(t, carol, m1, "reply two")
	m2 := e.send(t, alice, "second")
	m3 := e.send(t, alice, "third")
	m4 := e.send(t, alice, "fourth")

	sent, err := e.c.MessagesSentByAccount(alice)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{m2, m3, m4}, sent)

	for _, id := range []util.Uint256{m1, r1, r2} {
		m, err := e.c.Message(id)
		require.NoError(t, err)
		require.Equal(t, message.FreeMessage{}, m)
	}

	replies, err := e.c.Replies(m1)
	require.NoError(t, err)
	require.Empty(t, replies)

	sent, err = e.c.MessagesSentByAccount(bob)
	require.NoError(t, err)
	require.Empty(t, sent)

	require.Equal(t, []string{
		MessageBroadcastEvent,
		ReplyMessageBroadcastEvent,
		ReplyMessageBroadcastEvent,
		MessageBroadcastEvent,
		MessageBroadcastEvent,
		MessageBroadcastEvent,
	}, e.journal.Names())
}

func TestAuction(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Capacities.PaidMessages = 2
	})

	bid5 := e.mustSendPaid(t, util.Uint160{0x11}, "sports", 5, 1)
	bid8 := e.mustSendPaid(t, util.Uint160{0x12}, "sports", 8, 1)
	bid6 := e.mustSendPaid(t, util.Uint160{0x13}, "sports", 6, 1)

	ids, err := e.c.Topic("sports")
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{bid8, bid6}, ids)

	floor, full, err := e.c.TopicFloor("sports")
	require.NoError(t, err)
	require.True(t, full)
	require.EqualValues(t, 6, floor)

	require.Contains(t, e.journal.Names(), BidEvictedEvent)

	t.Run("evicted bid is reclaimable", func(t *testing.T) {
		m, err := e.c.PaidMessage(bid5)
		require.NoError(t, err)
		require.EqualValues(t, 5, m.StakedBalance)

		// the contract keeps its reserve floor, top it up for the reclaim
		require.NoError(t, e.bank.Deposit(contractAcc, 100))

		amount, err := e.c.ElevatePaidMessage(util.Uint160{0x11}, bid5)
		require.NoError(t, err)
		require.EqualValues(t, 5, amount)
		require.EqualValues(t, 5, e.bank.BalanceOf(util.Uint160{0x11}))
	})

	t.Run("low bid is rejected", func(t *testing.T) {
		low := util.Uint160{0x14}
		require.NoError(t, e.bank.Deposit(low, 3))
		before := e.bank.BalanceOf(contractAcc)
		events := len(e.journal.Entries())

		_, err := e.sendPaid(low, "sports", 3, 1)
		require.ErrorIs(t, err, topic.ErrBidTooLow)

		ids, err := e.c.Topic("sports")
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{bid8, bid6}, ids)

		sent, err := e.c.PaidMessagesSentByAccount(low)
		require.NoError(t, err)
		require.Empty(t, sent)

		require.EqualValues(t, 3, e.bank.BalanceOf(low), "stake must be returned")
		require.Equal(t, before, e.bank.BalanceOf(contractAcc))
		require.Len(t, e.journal.Entries(), events)
	})

	t.Run("author quota eviction is undone with rejected bid", func(t *testing.T) {
		const strandedMsg = "paid message with remaining stake evicted by author quota"

		author := util.Uint160{0x15}
		first := e.mustSendPaid(t, author, "arts", 4, 1)
		second := e.mustSendPaid(t, author, "music", 4, 1)

		require.NoError(t, e.bank.Deposit(author, 3))
		_, err := e.sendPaid(author, "sports", 3, 1)
		require.ErrorIs(t, err, topic.ErrBidTooLow)

		m, err := e.c.PaidMessage(first)
		require.NoError(t, err)
		require.Equal(t, first, m.ID)
		require.EqualValues(t, 4, m.StakedBalance)

		ids, err := e.c.Topic("arts")
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{first}, ids)

		sent, err := e.c.PaidMessagesSentByAccount(author)
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{first, second}, sent)

		ids, err = e.c.Topic("sports")
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{bid8, bid6}, ids)

		require.EqualValues(t, 3, e.bank.BalanceOf(author))
		require.Zero(t, e.logs.FilterMessage(strandedMsg).Len(), "rolled back call must not log")

		require.NoError(t, e.bank.Deposit(author, 4))
		third, err := e.sendPaid(author, "sports", 7, 1)
		require.NoError(t, err)

		m, err = e.c.PaidMessage(first)
		require.NoError(t, err)
		require.Equal(t, message.PaidMessage{}, m)

		sent, err = e.c.PaidMessagesSentByAccount(author)
		require.NoError(t, err)
		require.Equal(t, []util.Uint256{second, third}, sent)

		require.NotContains(t, e.c.Topics(), "arts")
		require.Equal(t, 1, e.logs.FilterMessage(strandedMsg).Len())
	})
}

func TestUnbackedStake(t *testing.T) {
	e := newEnv(t, nil)

	honest := e.mustSendPaid(t, carol, "sports", 100, 1)

	require.NoError(t, e.bank.Deposit(alice, 1))
	e.tick()
	err := e.bank.Attach(alice, contractAcc, 1, func() error {
		_, err := e.c.SendPaidMessage(alice, PaidPost{
			Content:      "ad",
			Tag:          "sports",
			Stake:        100,
			MaxEndorsers: 1,
		})
		return err
	})
	require.ErrorIs(t, err, ErrAttachedValueMismatch)
	require.Equal(t, common.Validation, common.KindOf(err))
	require.EqualValues(t, 1, e.bank.BalanceOf(alice))

	sent, err := e.c.PaidMessagesSentByAccount(alice)
	require.NoError(t, err)
	require.Empty(t, sent)

	t.Run("nothing attached", func(t *testing.T) {
		e.tick()
		_, err := e.c.SendPaidMessage(alice, PaidPost{
			Content:      "ad",
			Tag:          "sports",
			Stake:        5,
			MaxEndorsers: 1,
		})
		require.ErrorIs(t, err, ErrAttachedValueMismatch)
	})

	t.Run("unbacked reward funding", func(t *testing.T) {
		require.NoError(t, e.bank.Deposit(owner, 10))
		err := e.bank.Attach(owner, contractAcc, 10, func() error {
			return e.c.FundRewards(owner, 50)
		})
		require.ErrorIs(t, err, ErrAttachedValueMismatch)
		require.EqualValues(t, 10, e.bank.BalanceOf(owner))

		st, err := e.c.Rewards()
		require.NoError(t, err)
		require.Zero(t, st.Pool)
	})

	amount, err := e.c.ElevatePaidMessage(carol, honest)
	require.NoError(t, err)
	require.EqualValues(t, 100, amount)
	require.EqualValues(t, 100, e.bank.BalanceOf(carol))
}

func TestPaidEndorsement(t *testing.T) {
	e := newEnv(t, nil)
	author := util.Uint160{0xaa}

	id := e.mustSendPaid(t, author, "sports", 100, 10)

	m, err := e.c.PaidMessage(id)
	require.NoError(t, err)
	require.EqualValues(t, 10, m.PaymentPerEndorser)

	endorsers := []util.Uint160{alice, bob, carol}
	for _, acc := range endorsers {
		e.settings(t, acc, "", "sports")
	}

	feed, err := e.c.PaidFeed(alice)
	require.NoError(t, err)
	require.Len(t, feed, 1)

	e.journal.Reset()
	for _, acc := range endorsers {
		amount, err := e.c.ElevatePaidMessage(acc, id)
		require.NoError(t, err)
		require.EqualValues(t, 10, amount)
		require.EqualValues(t, 10, e.bank.BalanceOf(acc))
	}

	_, err = e.c.ElevatePaidMessage(alice, id)
	require.ErrorIs(t, err, payout.ErrDuplicateEndorsement)

	feed, err = e.c.PaidFeed(alice)
	require.NoError(t, err)
	require.Empty(t, feed, "endorsed messages leave the feed")

	m, err = e.c.PaidMessage(id)
	require.NoError(t, err)
	require.EqualValues(t, 70, m.StakedBalance)
	require.EqualValues(t, 3, m.EndorserCount)

	amount, err := e.c.ElevatePaidMessage(author, id)
	require.NoError(t, err)
	require.EqualValues(t, 70, amount)
	require.EqualValues(t, 70, e.bank.BalanceOf(author))

	m, err = e.c.PaidMessage(id)
	require.NoError(t, err)
	require.Zero(t, m.StakedBalance)
	require.LessOrEqual(t, m.StakedBalance, m.TotalStaked)
	require.LessOrEqual(t, m.EndorserCount, m.MaxEndorsers)

	require.Equal(t, []string{
		PaidMessageElevatedEvent,
		PaidMessageElevatedEvent,
		PaidMessageElevatedEvent,
	}, e.journal.Names(), "reclaim is not announced")

	list, err := e.c.PaidEndorsers(id)
	require.NoError(t, err)
	require.Equal(t, append(endorsers, author), list)

	list2, err := e.c.PaidMessagesEndorsedByAccount(bob)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{id}, list2)
}

func TestPayoutFailureLeavesStateIntact(t *testing.T) {
	e := newEnv(t, nil)
	id := e.mustSendPaid(t, util.Uint160{0xaa}, "art", 50, 5)
	e.settings(t, alice, "", "art")

	e.bank.SetPaymentHandler(alice, func(util.Uint160, uint64, []byte) error {
		return errors.New("not accepting")
	})

	e.journal.Reset()
	_, err := e.c.ElevatePaidMessage(alice, id)
	require.ErrorIs(t, err, payout.ErrEndorserPayoutFailed)
	require.Equal(t, common.External, common.KindOf(err))

	m, err := e.c.PaidMessage(id)
	require.NoError(t, err)
	require.Zero(t, m.EndorserCount)
	require.EqualValues(t, 50, m.StakedBalance)

	list, err := e.c.PaidEndorsers(id)
	require.NoError(t, err)
	require.Empty(t, list)

	list2, err := e.c.PaidMessagesEndorsedByAccount(alice)
	require.NoError(t, err)
	require.Empty(t, list2)

	require.Empty(t, e.journal.Entries())
	require.Zero(t, e.bank.BalanceOf(alice))

	e.bank.SetPaymentHandler(alice, nil)
	_, err = e.c.ElevatePaidMessage(alice, id)
	require.NoError(t, err, "failed attempt must not count")
}

func TestReentrantPayout(t *testing.T) {
	e := newEnv(t, nil)
	id := e.mustSendPaid(t, util.Uint160{0xaa}, "art", 50, 5)
	e.settings(t, alice, "", "art")

	var nested []error
	e.bank.SetPaymentHandler(alice, func(util.Uint160, uint64, []byte) error {
		_, err := e.c.ElevatePaidMessage(alice, id)
		nested = append(nested, err)

		_, err = e.c.SendMessage(alice, "from callback", "", "")
		nested = append(nested, err)
		return nil
	})

	amount, err := e.c.ElevatePaidMessage(alice, id)
	require.NoError(t, err)
	require.EqualValues(t, 10, amount)

	require.Len(t, nested, 2)
	for _, err := range nested {
		require.ErrorIs(t, err, ErrReentrantCall)
	}

	require.EqualValues(t, 10, e.bank.BalanceOf(alice))

	m, err := e.c.PaidMessage(id)
	require.NoError(t, err)
	require.EqualValues(t, 1, m.EndorserCount)
	require.EqualValues(t, 40, m.StakedBalance)
}

func TestFreeEndorsement(t *testing.T) {
	e := newEnv(t, nil)
	id := e.send(t, alice, "hello")

	require.ErrorIs(t, e.c.ElevateMessage(alice, id), message.ErrDuplicateOrSelfEndorsement)
	require.ErrorIs(t, e.c.ElevateMessage(bob, util.Uint256{0xff}), message.ErrNotFound)

	require.NoError(t, e.c.ElevateMessage(bob, id))
	require.ErrorIs(t, e.c.ElevateMessage(bob, id), message.ErrDuplicateOrSelfEndorsement)

	m, err := e.c.Message(id)
	require.NoError(t, err)
	require.EqualValues(t, 1, m.EndorserCount)

	endorsed, err := e.c.MessagesEndorsedByAccount(bob)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{id}, endorsed)

	list, err := e.c.Endorsers(id)
	require.NoError(t, err)
	require.Equal(t, []util.Uint160{bob}, list)
}

func TestRewards(t *testing.T) {
	e := newEnv(t, nil)

	require.ErrorIs(t, e.c.ConfigureRewards(alice, true, 2, 5), common.ErrUnauthorized)
	require.NoError(t, e.c.ConfigureRewards(owner, true, 2, 5))

	require.NoError(t, e.bank.Deposit(owner, 50))
	require.ErrorIs(t, e.bank.Attach(alice, contractAcc, 0, func() error {
		return e.c.FundRewards(alice, 0)
	}), common.ErrUnauthorized)
	require.NoError(t, e.bank.Attach(owner, contractAcc, 50, func() error {
		return e.c.FundRewards(owner, 50)
	}))

	e.journal.Reset()
	for i := 0; i < 4; i++ {
		e.send(t, alice, string(rune('a'+i)))
	}

	require.EqualValues(t, 10, e.bank.BalanceOf(alice))

	st, err := e.c.Rewards()
	require.NoError(t, err)
	require.EqualValues(t, 4, st.Counter)
	require.EqualValues(t, 40, st.Pool)
	require.EqualValues(t, 10, st.Paid)

	var rewards int
	for _, name := range e.journal.Names() {
		if name == RewardEvent {
			rewards++
		}
	}
	require.Equal(t, 2, rewards)

	t.Run("failed post is not counted", func(t *testing.T) {
		_, err := e.c.SendReply(alice, util.Uint256{0xff}, "x", "", "")
		require.ErrorIs(t, err, message.ErrReplyTargetMissing)

		st, err := e.c.Rewards()
		require.NoError(t, err)
		require.EqualValues(t, 4, st.Counter)
	})
}

func TestSettings(t *testing.T) {
	e := newEnv(t, nil)

	e.settings(t, alice, "alice", "sports")
	require.ErrorIs(t, e.c.UpdateSettings(bob, "alice", "", 0, 0), account.ErrUsernameTaken)
	require.ErrorIs(t, e.c.UpdateSettings(alice, "queen", "", 0, 0), account.ErrCooldown)

	e.clock.Advance(24 * time.Hour)
	e.settings(t, alice, "queen", "sports")
	e.settings(t, bob, "alice", "")

	acc, err := e.c.AccountByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, bob, acc)

	acc, err = e.c.AccountByUsername("queen")
	require.NoError(t, err)
	require.Equal(t, alice, acc)

	acc, err = e.c.AccountByUsername("nobody")
	require.NoError(t, err)
	require.Equal(t, util.Uint160{}, acc)

	s, err := e.c.Settings(alice)
	require.NoError(t, err)
	require.Equal(t, "queen", s.Username)
	require.Equal(t, e.clock.Now(), s.LastUpdate+1)
}

func TestPublicFeed(t *testing.T) {
	e := newEnv(t, nil)

	a1 := e.send(t, alice, "a1")
	a2 := e.send(t, alice, "a2")
	e.reply(t, alice, a1, "self reply")
	b1 := e.send(t, bob, "b1")

	require.NoError(t, e.c.Follow(carol, alice))
	require.NoError(t, e.c.Follow(carol, bob))
	require.ErrorIs(t, e.c.Follow(carol, bob), account.ErrDuplicateFollow)

	feed, err := e.c.PublicFeed(carol)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{a2, a1, b1}, feedIDs(feed))

	require.NoError(t, e.c.Block(carol, alice))
	feed, err = e.c.PublicFeed(carol)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{b1}, feedIDs(feed))

	require.NoError(t, e.c.Unblock(carol, alice))
	require.NoError(t, e.c.UpdateSettings(carol, "", "", 2, 0))
	feed, err = e.c.PublicFeed(carol)
	require.NoError(t, err)
	require.Equal(t, []util.Uint256{a2, a1}, feedIDs(feed))

	require.NoError(t, e.c.Unfollow(carol, alice))
	followers, err := e.c.Followers(alice)
	require.NoError(t, err)
	require.Empty(t, followers)

	following, err := e.c.Following(carol)
	require.NoError(t, err)
	require.Equal(t, []util.Uint160{bob}, following)
}

func TestPaidFeedInterests(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Payout.InterestPolicy = config.TagSetPolicy
	})

	e.mustSendPaid(t, util.Uint160{0xaa}, "ball", 10, 1)
	art := e.mustSendPaid(t, util.Uint160{0xab}, "art", 10, 1)

	e.settings(t, alice, "", "basketball, art")

	feed, err := e.c.PaidFeed(alice)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, art, feed[0].ID)

	require.ElementsMatch(t, []string{"art", "ball"}, e.c.Topics())
}

func TestVersionMismatch(t *testing.T) {
	store := storage.NewMemCachedStore(storage.NewMemoryStore())

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, common.Version+1)
	store.Put([]byte{'v'}, buf)

	bank := host.NewBank(store)
	_, err := New(Prm{
		Store:    store,
		Treasury: bank.Treasury(contractAcc),
		Clock:    host.NewManualClock(0),
		Hasher:   host.SHA256{},
		Config:   config.Default(),
	})
	require.ErrorIs(t, err, common.ErrVersionMismatch)
}

func TestMetricsWiring(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, alice, "x")
	_, err := e.c.SendMessage(alice, string(make([]byte, 1000)), "", "")
	require.Error(t, err)

	families, err := e.reg.Gather()
	require.NoError(t, err)

	got := make(map[string]int)
	for _, mf := range families {
		got[mf.GetName()] = len(mf.GetMetric())
	}
	require.Equal(t, 2, got["social_contract_calls_total"])
	require.Equal(t, 1, got["social_contract_events_total"])
}

func feedIDs(ms []message.FreeMessage) []util.Uint256 {
	res := make([]util.Uint256, len(ms))
	for i := range ms {
		res[i] = ms[i].ID
	}
	return res
}

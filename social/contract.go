package social

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/geode-social/social-contract/account"
	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/geode-social/social-contract/message"
	"github.com/geode-social/social-contract/metrics"
	"github.com/geode-social/social-contract/payout"
	"github.com/geode-social/social-contract/reward"
	"github.com/geode-social/social-contract/topic"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// ErrReentrantCall is returned when a state-changing method is called while
// another one is in progress.
var ErrReentrantCall = common.NewError(common.Eligibility, "reentrant call")

// ErrAttachedValueMismatch is returned when the amount declared by the
// caller differs from the funds attached to the call.
var ErrAttachedValueMismatch = common.NewError(common.Validation, "declared amount differs from attached funds")

// Prm groups parameters of the contract.
type Prm struct {
	// Persistent storage. Contract writes only its own key prefixes.
	Store storage.Store

	// Script hash of the contract, used as notification source.
	Address util.Uint160

	// Owner manages posting rewards.
	Owner util.Uint160

	Treasury host.Treasury
	Clock    host.Clock
	Hasher   host.Hasher
	Events   host.EventSink

	Config config.Config

	// Optional, nop by default.
	Logger *zap.Logger

	// Optional, nil means no metrics.
	Metrics *metrics.Collector
}

// Contract is the social feed contract.
type Contract struct {
	prm    Prm
	log    *zap.Logger
	policy payout.InterestPolicy

	busy atomic.Bool
}

// New checks the configuration and the storage version and returns the
// contract. Empty storage is stamped with the current version.
func New(prm Prm) (*Contract, error) {
	switch {
	case prm.Store == nil:
		return nil, errors.New("missing storage")
	case prm.Treasury == nil:
		return nil, errors.New("missing treasury")
	case prm.Clock == nil:
		return nil, errors.New("missing clock")
	case prm.Hasher == nil:
		return nil, errors.New("missing hasher")
	}

	if err := prm.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	policy, err := payout.PolicyByName(prm.Config.Payout.InterestPolicy)
	if err != nil {
		return nil, err
	}

	if prm.Events == nil {
		prm.Events = host.NopSink{}
	}

	c := &Contract{
		prm:    prm,
		log:    prm.Logger,
		policy: policy,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	cache := storage.NewMemCachedStore(prm.Store)
	if err := common.EnsureVersion(cache); err != nil {
		return nil, err
	}
	if _, err := cache.Persist(); err != nil {
		return nil, fmt.Errorf("persist storage version: %w", err)
	}

	return c, nil
}

// txn is a state of one contract call. All changes are made in the cache
// and reach the storage only if the call succeeds.
type txn struct {
	cache *storage.MemCachedStore

	msgs     *message.Store
	topics   *topic.Index
	payouts  *payout.Engine
	rewards  *reward.Ledger
	accounts *account.Store

	events    []state.NotificationEvent
	evictions []string
	paid      uint64
	rewarded  uint64

	// paid messages deleted by author quota with unpaid stake
	stranded []message.PaidMessage
}

func (c *Contract) newTxn() *txn {
	cfg := c.prm.Config
	tx := &txn{cache: storage.NewMemCachedStore(c.prm.Store)}

	tx.msgs = message.New(message.Prm{
		Store:      tx.cache,
		Hasher:     c.prm.Hasher,
		Capacities: cfg.Capacities,
		Limits:     cfg.Limits,
		OnDelete: func(message.FreeMessage) {
			tx.evictions = append(tx.evictions, metrics.EvictedMessage)
		},
	})
	tx.accounts = account.New(account.Prm{
		Store:      tx.cache,
		Capacities: cfg.Capacities,
		Limits:     cfg.Limits,
		Feed:       cfg.Feed,
		Cooldown:   cfg.SettingsCooldown,
	})
	tx.topics = topic.New(topic.Prm{
		Store:      tx.cache,
		Messages:   tx.msgs,
		Capacities: cfg.Capacities,
		OnBidEvicted: func(tag string, id util.Uint256) {
			tx.evictions = append(tx.evictions, metrics.EvictedBid)
			c.notify(tx, BidEvictedEvent, stringItem(tag), hash256Item(id))
		},
		OnQuotaEvicted: func(m message.PaidMessage) {
			tx.evictions = append(tx.evictions, metrics.EvictedQuota)
			if m.StakedBalance > 0 {
				tx.stranded = append(tx.stranded, m)
			}
		},
	})
	tx.payouts = payout.New(payout.Prm{
		Store:        tx.cache,
		Messages:     tx.msgs,
		Profiles:     tx.accounts,
		Treasury:     c.prm.Treasury,
		Capacities:   cfg.Capacities,
		ReserveFloor: cfg.Payout.ReserveFloor,
		Policy:       c.policy,
	})
	tx.rewards = reward.New(reward.Prm{
		Store:        tx.cache,
		Treasury:     c.prm.Treasury,
		ReserveFloor: cfg.Payout.ReserveFloor,
		Initial:      cfg.Rewards,
		Logger:       c.log,
	})

	return tx
}

func (c *Contract) notify(tx *txn, name string, items ...stackitem.Item) {
	tx.events = append(tx.events, state.NotificationEvent{
		ScriptHash: c.prm.Address,
		Name:       name,
		Item:       stackitem.NewArray(items),
	})
}

// invoke runs state-changing method. The call's changes are persisted and
// its notifications are emitted only if f succeeds.
func (c *Contract) invoke(method string, f func(tx *txn) error) (err error) {
	defer func() {
		c.prm.Metrics.ObserveCall(method, err)
	}()

	if !c.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer c.busy.Store(false)

	tx := c.newTxn()

	if err = f(tx); err != nil {
		c.log.Debug("contract call failed",
			zap.String("method", method),
			zap.Stringer("kind", common.KindOf(err)),
			zap.Error(err))
		return err
	}

	if _, err = tx.cache.Persist(); err != nil {
		c.log.Error("failed to persist contract call",
			zap.String("method", method),
			zap.Error(err))
		return fmt.Errorf("persist changes: %w", err)
	}

	for i := range tx.events {
		c.prm.Events.Notify(tx.events[i])
		c.prm.Metrics.Notify(tx.events[i])
	}
	for i := range tx.evictions {
		c.prm.Metrics.Evicted(tx.evictions[i])
	}
	for _, m := range tx.stranded {
		c.log.Info("paid message with remaining stake evicted by author quota",
			zap.Stringer("id", m.ID),
			zap.Stringer("author", m.Author),
			zap.Uint64("stake", m.StakedBalance))
	}
	c.prm.Metrics.Paid(tx.paid)
	c.prm.Metrics.Rewarded(tx.rewarded)

	return nil
}

// onPost counts the post and pays the posting reward if it is due.
func (c *Contract) onPost(tx *txn, poster util.Uint160) error {
	claim, err := tx.rewards.OnPost(poster)
	if err != nil {
		return err
	}

	if claim.Amount != 0 {
		tx.rewarded += claim.Amount
		c.notify(tx, RewardEvent, hash160Item(poster), intItem(claim.Amount), intItem(claim.Counter))
	}
	return nil
}

// SendMessage posts top-level free message.
func (c *Contract) SendMessage(caller util.Uint160, content, media, link string) (util.Uint256, error) {
	var id util.Uint256

	err := c.invoke("SendMessage", func(tx *txn) error {
		m, err := tx.msgs.CreateMessage(caller, util.Uint256{}, content, media, link, c.prm.Clock.Now())
		if err != nil {
			return err
		}

		id = m.ID
		c.notify(tx, MessageBroadcastEvent, hash160Item(caller), hash256Item(m.ID), intItem(m.CreatedAt))

		return c.onPost(tx, caller)
	})

	return id, err
}

// SendReply posts reply to the top-level free message.
func (c *Contract) SendReply(caller util.Uint160, parent util.Uint256, content, media, link string) (util.Uint256, error) {
	var id util.Uint256

	err := c.invoke("SendReply", func(tx *txn) error {
		if parent.Equals(util.Uint256{}) {
			return fmt.Errorf("%w: empty parent", message.ErrReplyTargetMissing)
		}

		m, err := tx.msgs.CreateMessage(caller, parent, content, media, link, c.prm.Clock.Now())
		if err != nil {
			return err
		}

		id = m.ID
		c.notify(tx, ReplyMessageBroadcastEvent, hash160Item(caller), hash256Item(m.ID),
			hash256Item(parent), intItem(m.CreatedAt))

		return c.onPost(tx, caller)
	})

	return id, err
}

// PaidPost describes paid message.
type PaidPost struct {
	Content string
	Media   string
	Link    string
	// Interest tag of the topic
	Tag string
	// Declared stake, must be equal to the funds attached to the call
	Stake uint64
	// Number of endorsers the stake is split between
	MaxEndorsers uint64
}

// SendPaidMessage posts paid message and admits it to the topic of its tag.
// The stake is the value transferred to the contract together with the
// call: the host must revert the transfer if the call fails.
func (c *Contract) SendPaidMessage(caller util.Uint160, p PaidPost) (util.Uint256, error) {
	var id util.Uint256

	err := c.invoke("SendPaidMessage", func(tx *txn) error {
		stake, err := c.attached(p.Stake)
		if err != nil {
			return err
		}

		m, err := tx.msgs.NewPaidMessage(caller, p.Content, p.Media, p.Link, p.Tag, stake, p.MaxEndorsers, c.prm.Clock.Now())
		if err != nil {
			return err
		}

		if err := tx.msgs.PutPaid(&m); err != nil {
			return err
		}

		if err := tx.topics.Admit(caller, m.TargetTag, m.ID, m.PaymentPerEndorser); err != nil {
			return err
		}

		id = m.ID
		c.notify(tx, PaidMessageBroadcastEvent, hash160Item(caller), hash256Item(m.ID),
			stringItem(m.TargetTag), intItem(m.PaymentPerEndorser), intItem(m.CreatedAt))

		return c.onPost(tx, caller)
	})

	return id, err
}

// ElevateMessage endorses free message.
func (c *Contract) ElevateMessage(caller util.Uint160, id util.Uint256) error {
	return c.invoke("ElevateMessage", func(tx *txn) error {
		if _, err := tx.msgs.EndorseFree(id, caller); err != nil {
			return err
		}

		c.notify(tx, MessageElevatedEvent, hash256Item(id), hash160Item(caller))
		return nil
	})
}

// ElevatePaidMessage endorses paid message and pays the caller. The author
// calling it takes back the remaining stake. It returns paid amount.
func (c *Contract) ElevatePaidMessage(caller util.Uint160, id util.Uint256) (uint64, error) {
	var amount uint64

	err := c.invoke("ElevatePaidMessage", func(tx *txn) error {
		res, err := tx.payouts.ElevatePaid(id, caller)
		if err != nil {
			return err
		}

		amount = res.Payout
		tx.paid += res.Payout

		if !res.Reclaim {
			c.notify(tx, PaidMessageElevatedEvent, hash256Item(id), hash160Item(caller), intItem(res.Payout))
		}
		return nil
	})

	return amount, err
}

// UpdateSettings replaces settings of the caller.
func (c *Contract) UpdateSettings(caller util.Uint160, username, interests string, maxFeed, maxPaidFeed uint64) error {
	return c.invoke("UpdateSettings", func(tx *txn) error {
		if _, err := tx.accounts.UpdateSettings(caller, username, interests, maxFeed, maxPaidFeed, c.prm.Clock.Now()); err != nil {
			return err
		}

		c.notify(tx, SettingsUpdatedEvent, hash160Item(caller), stringItem(username))
		return nil
	})
}

// Follow makes the caller follow the target.
func (c *Contract) Follow(caller, target util.Uint160) error {
	return c.invoke("Follow", func(tx *txn) error {
		return tx.accounts.Follow(caller, target)
	})
}

// Unfollow makes the caller stop following the target.
func (c *Contract) Unfollow(caller, target util.Uint160) error {
	return c.invoke("Unfollow", func(tx *txn) error {
		return tx.accounts.Unfollow(caller, target)
	})
}

// Block hides messages of the target from the caller's public feed.
func (c *Contract) Block(caller, target util.Uint160) error {
	return c.invoke("Block", func(tx *txn) error {
		return tx.accounts.Block(caller, target)
	})
}

// Unblock reverts Block.
func (c *Contract) Unblock(caller, target util.Uint160) error {
	return c.invoke("Unblock", func(tx *txn) error {
		return tx.accounts.Unblock(caller, target)
	})
}

// FundRewards adds funds attached to the call to the posting reward pool.
// The amount must be equal to the attached funds. Only the owner may call
// it.
func (c *Contract) FundRewards(caller util.Uint160, amount uint64) error {
	return c.invoke("FundRewards", func(tx *txn) error {
		if err := common.CheckOwner(caller, c.prm.Owner); err != nil {
			return err
		}

		funds, err := c.attached(amount)
		if err != nil {
			return err
		}

		_, err = tx.rewards.Fund(funds)
		return err
	})
}

// attached returns funds attached to the call if they are equal to the
// declared amount.
func (c *Contract) attached(declared uint64) (uint64, error) {
	funds := c.prm.Treasury.Attached()
	if funds != declared {
		return 0, fmt.Errorf("%w: declared %d, attached %d", ErrAttachedValueMismatch, declared, funds)
	}
	return funds, nil
}

// ConfigureRewards changes posting reward parameters. Only the owner may
// call it.
func (c *Contract) ConfigureRewards(caller util.Uint160, enabled bool, interval, amount uint64) error {
	return c.invoke("ConfigureRewards", func(tx *txn) error {
		if err := common.CheckOwner(caller, c.prm.Owner); err != nil {
			return err
		}

		_, err := tx.rewards.Configure(enabled, interval, amount)
		return err
	})
}

/*
Package topic indexes paid messages by their target interest tag.

Every tag owns a bounded slot of paid message identifiers. When the slot is
full, a new message is admitted only if its payment per endorser is strictly
greater than the lowest bid in the slot; the lowest bid then leaves the slot.
Such a message stays in the message store and in its author's list, so the
author can still reclaim the remaining stake.

Every author also owns a bounded list of paid messages. Posting to a full
list deletes the oldest paid message of the author from the store and from
its topic regardless of bids.
*/
package topic

import (
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/ledger"
	"github.com/geode-social/social-contract/message"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const (
	slotPrefix     = 't'
	paidSentPrefix = 'q'
)

// ErrBidTooLow is returned when the topic is full and the bid does not
// exceed the lowest one in it.
var ErrBidTooLow = common.NewError(common.Conflict, "bid too low")

// Prm groups parameters of the topic index.
type Prm struct {
	Store    common.Store
	Messages *message.Store

	Capacities config.Capacities

	// Optional callback for every message pushed out of its topic by a
	// higher bid.
	OnBidEvicted func(tag string, id util.Uint256)

	// Optional callback for every paid message deleted because its author
	// posted over the quota.
	OnQuotaEvicted func(m message.PaidMessage)
}

// Index is the topic index with auction admission.
type Index struct {
	prm Prm

	slots    ledger.IDs
	paidSent ledger.IDs
}

// New returns topic index over the contract storage.
func New(prm Prm) *Index {
	x := &Index{prm: prm}

	x.slots = ledger.IDs{Ledger: ledger.New(prm.Store, slotPrefix, prm.Capacities.PaidMessages, util.Uint256Size, nil)}
	x.paidSent = ledger.IDs{Ledger: ledger.New(prm.Store, paidSentPrefix, prm.Capacities.PaidMessages, util.Uint256Size, x.evictPaid)}

	return x
}

// Admit puts stored paid message into the topic of the given tag and into
// the author's list. ErrBidTooLow is returned if the topic is full and all
// its bids are not lower than bid.
//
// Admit does not roll back the author's quota eviction on failure, the
// caller must drop all changes.
func (x *Index) Admit(author util.Uint160, tag string, id util.Uint256, bid uint64) error {
	owner := author.BytesBE()

	n, err := x.paidSent.Len(owner)
	if err != nil {
		return err
	}
	if n >= x.paidSent.Capacity() {
		if _, _, err := x.paidSent.EvictOldest(owner); err != nil {
			return fmt.Errorf("evict oldest paid message: %w", err)
		}
	}

	slot := []byte(tag)

	ids, err := x.slots.List(slot)
	if err != nil {
		return err
	}

	if len(ids) >= x.slots.Capacity() {
		minID, minBid, err := x.lowestBid(ids)
		if err != nil {
			return err
		}

		if bid <= minBid {
			return fmt.Errorf("%w: %d <= %d in topic '%s'", ErrBidTooLow, bid, minBid, tag)
		}

		if err := x.slots.Remove(slot, minID); err != nil {
			return err
		}

		if x.prm.OnBidEvicted != nil {
			x.prm.OnBidEvicted(tag, minID)
		}
	}

	if err := x.slots.Append(slot, id); err != nil {
		return fmt.Errorf("append to topic: %w", err)
	}

	if err := x.paidSent.Append(owner, id); err != nil {
		return fmt.Errorf("append to paid messages: %w", err)
	}

	return nil
}

// lowestBid returns the first message with the lowest payment.
func (x *Index) lowestBid(ids []util.Uint256) (util.Uint256, uint64, error) {
	var (
		minID  util.Uint256
		minBid uint64
	)

	for i := range ids {
		m, ok, err := x.prm.Messages.PaidMessage(ids[i])
		if err != nil {
			return util.Uint256{}, 0, err
		} else if !ok {
			return util.Uint256{}, 0, common.NewError(common.Internal,
				fmt.Sprintf("indexed paid message %s is missing", ids[i].StringLE()))
		}

		if i == 0 || m.PaymentPerEndorser < minBid {
			minID, minBid = ids[i], m.PaymentPerEndorser
		}
	}

	return minID, minBid, nil
}

// Floor returns the lowest bid of the topic if it is full. A full topic
// admits only higher bids.
func (x *Index) Floor(tag string) (uint64, bool, error) {
	ids, err := x.slots.List([]byte(tag))
	if err != nil || len(ids) < x.slots.Capacity() {
		return 0, false, err
	}

	_, bid, err := x.lowestBid(ids)
	return bid, err == nil, err
}

// Topic returns identifiers of paid messages in the topic, oldest first.
func (x *Index) Topic(tag string) ([]util.Uint256, error) {
	return x.slots.List([]byte(tag))
}

// Topics returns tags of all non-empty topics in lexicographic order.
func (x *Index) Topics() []string {
	var res []string

	x.prm.Store.Seek(storage.SeekRange{Prefix: []byte{slotPrefix}}, func(k, _ []byte) bool {
		res = append(res, string(k[1:]))
		return true
	})

	return res
}

// PaidSentBy returns identifiers of paid messages of the author, oldest
// first.
func (x *Index) PaidSentBy(author util.Uint160) ([]util.Uint256, error) {
	return x.paidSent.List(author.BytesBE())
}

// evictPaid deletes paid message pushed out of the author's list and
// removes it from its own topic.
func (x *Index) evictPaid(_, item []byte) error {
	id, err := util.Uint256DecodeBytesBE(item)
	if err != nil {
		return common.NewError(common.Internal, err.Error())
	}

	m, ok, err := x.prm.Messages.PaidMessage(id)
	if err != nil || !ok {
		return err
	}

	if err := x.slots.Remove([]byte(m.TargetTag), id); err != nil {
		return err
	}

	x.prm.Messages.DeletePaid(id)

	if x.prm.OnQuotaEvicted != nil {
		x.prm.OnQuotaEvicted(m)
	}

	return nil
}

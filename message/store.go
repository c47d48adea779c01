package message

import (
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/geode-social/social-contract/ledger"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const (
	freePrefix          = 'm'
	paidPrefix          = 'p'
	sentPrefix          = 's'
	repliesPrefix       = 'r'
	endorsersPrefix     = 'e'
	paidEndorsersPrefix = 'E'
	endorsedPrefix      = 'a'
)

var (
	// ErrNotFound is returned when the endorsed message does not exist.
	ErrNotFound = common.NewError(common.Validation, "message not found")

	// ErrReplyTargetMissing is returned when the replied message does not
	// exist.
	ErrReplyTargetMissing = common.NewError(common.Validation, "reply target not found")

	// ErrNestedReply is returned on attempt to reply to a reply.
	ErrNestedReply = common.NewError(common.Validation, "reply target is a reply")

	// ErrDuplicateMessage is returned when the derived identifier belongs to
	// a live message.
	ErrDuplicateMessage = common.NewError(common.Conflict, "message already exists")

	// ErrDuplicateOrSelfEndorsement is returned when the account endorses
	// its own message or endorses the message twice.
	ErrDuplicateOrSelfEndorsement = common.NewError(common.Conflict, "duplicate or self endorsement")

	// ErrInvalidPaidTerms is returned for paid messages with zero stake,
	// zero payment or unsupported number of endorsers.
	ErrInvalidPaidTerms = common.NewError(common.Validation, "invalid paid message terms")
)

// Prm groups parameters of the message store.
type Prm struct {
	// Contract storage
	Store common.Store

	// Derives message identifiers
	Hasher host.Hasher

	Capacities config.Capacities
	Limits     config.Limits

	// Optional callback called for every free message deleted by an
	// eviction cascade.
	OnDelete func(FreeMessage)
}

// Store keeps free and paid messages, replies and endorsement lists of free
// messages.
type Store struct {
	store    common.Store
	hasher   host.Hasher
	limits   config.Limits
	onDelete func(FreeMessage)

	sent          ledger.IDs
	replies       ledger.IDs
	endorsers     ledger.Accounts
	endorsed      ledger.IDs
	paidEndorsers ledger.Accounts
}

// New returns message store over the contract storage.
func New(prm Prm) *Store {
	x := &Store{
		store:    prm.Store,
		hasher:   prm.Hasher,
		limits:   prm.Limits,
		onDelete: prm.OnDelete,
	}

	x.sent = ledger.IDs{Ledger: ledger.New(prm.Store, sentPrefix, prm.Capacities.SentMessages, util.Uint256Size, x.evictSent)}
	x.replies = ledger.IDs{Ledger: ledger.New(prm.Store, repliesPrefix, prm.Capacities.Replies, util.Uint256Size, x.evictReply)}
	x.endorsers = ledger.Accounts{Ledger: ledger.New(prm.Store, endorsersPrefix, prm.Capacities.Endorsers, util.Uint160Size, nil)}
	x.endorsed = ledger.IDs{Ledger: ledger.New(prm.Store, endorsedPrefix, prm.Capacities.Endorsed, util.Uint256Size, nil)}
	// bounded by every message's own MaxEndorsers, see AddPaidEndorser
	x.paidEndorsers = ledger.Accounts{Ledger: ledger.New(prm.Store, paidEndorsersPrefix, 0, util.Uint160Size, nil)}

	return x
}

// CreateMessage stores new free message and returns it. Non-zero parentID
// makes the message a reply to the top-level message with that identifier.
//
// The message is appended to the author's sent list evicting the oldest one
// along with its replies if the list is full. A reply is also appended to
// the parent's reply list.
func (x *Store) CreateMessage(author util.Uint160, parentID util.Uint256, content, media, link string, now uint64) (FreeMessage, error) {
	if err := x.checkFields(content, media, link); err != nil {
		return FreeMessage{}, err
	}

	m := FreeMessage{
		ID:        ID(x.hasher, author, content, now),
		ParentID:  parentID,
		Author:    author,
		Content:   content,
		Media:     media,
		Link:      link,
		CreatedAt: now,
	}

	if err := x.checkUnique(m.ID); err != nil {
		return FreeMessage{}, err
	}

	if m.IsReply() {
		if _, err := x.parent(parentID); err != nil {
			return FreeMessage{}, err
		}
	}

	if err := x.sent.Append(author.BytesBE(), m.ID); err != nil {
		return FreeMessage{}, fmt.Errorf("append to sent messages: %w", err)
	}

	if m.IsReply() {
		// the author's quota might have evicted the parent
		parent, err := x.parent(parentID)
		if err != nil {
			return FreeMessage{}, err
		}

		parent.ReplyCount, err = common.Inc(parent.ReplyCount)
		if err != nil {
			return FreeMessage{}, fmt.Errorf("reply count: %w", err)
		}

		if err := x.putFree(&parent); err != nil {
			return FreeMessage{}, err
		}

		if err := x.replies.Append(parentID.BytesBE(), m.ID); err != nil {
			return FreeMessage{}, fmt.Errorf("append to replies: %w", err)
		}
	}

	return m, x.putFree(&m)
}

// EndorseFree records endorsement of the free message by the caller. The
// caller may endorse any message except its own and at most once while it
// is in the message endorser list.
func (x *Store) EndorseFree(id util.Uint256, caller util.Uint160) (FreeMessage, error) {
	m, ok, err := x.Message(id)
	if err != nil {
		return FreeMessage{}, err
	} else if !ok {
		return FreeMessage{}, ErrNotFound
	}

	if m.Author.Equals(caller) {
		return FreeMessage{}, ErrDuplicateOrSelfEndorsement
	}

	endorsed, err := x.endorsers.Contains(id.BytesBE(), caller)
	if err != nil {
		return FreeMessage{}, err
	} else if endorsed {
		return FreeMessage{}, ErrDuplicateOrSelfEndorsement
	}

	m.EndorserCount, err = common.Inc(m.EndorserCount)
	if err != nil {
		return FreeMessage{}, fmt.Errorf("endorser count: %w", err)
	}

	if err := x.putFree(&m); err != nil {
		return FreeMessage{}, err
	}

	if err := x.endorsers.Append(id.BytesBE(), caller); err != nil {
		return FreeMessage{}, fmt.Errorf("append to endorsers: %w", err)
	}

	if err := x.endorsed.Append(caller.BytesBE(), id); err != nil {
		return FreeMessage{}, fmt.Errorf("append to endorsed: %w", err)
	}

	return m, nil
}

// NewPaidMessage validates paid message terms and returns the message. The
// message is not stored. Payment per endorser is the stake split evenly
// between maxEndorsers, the remainder can be reclaimed by the author.
func (x *Store) NewPaidMessage(author util.Uint160, content, media, link, tag string, stake, maxEndorsers, now uint64) (PaidMessage, error) {
	if err := x.checkFields(content, media, link); err != nil {
		return PaidMessage{}, err
	}

	switch {
	case len(tag) > x.limits.Tag:
		return PaidMessage{}, fmt.Errorf("%w: target tag", common.ErrContentTooLarge)
	case tag == "":
		return PaidMessage{}, fmt.Errorf("%w: empty target tag", ErrInvalidPaidTerms)
	case maxEndorsers == 0 || maxEndorsers > x.limits.MaxPaidEndorsers:
		return PaidMessage{}, fmt.Errorf("%w: max endorsers must be in [1, %d], got %d",
			ErrInvalidPaidTerms, x.limits.MaxPaidEndorsers, maxEndorsers)
	case stake/maxEndorsers == 0:
		return PaidMessage{}, fmt.Errorf("%w: stake %d can't pay %d endorsers",
			ErrInvalidPaidTerms, stake, maxEndorsers)
	}

	m := PaidMessage{
		ID:                 ID(x.hasher, author, content, now),
		Author:             author,
		Content:            content,
		Media:              media,
		Link:               link,
		CreatedAt:          now,
		MaxEndorsers:       maxEndorsers,
		PaymentPerEndorser: stake / maxEndorsers,
		TargetTag:          tag,
		TotalStaked:        stake,
		StakedBalance:      stake,
	}

	return m, x.checkUnique(m.ID)
}

// Message returns free message by identifier.
func (x *Store) Message(id util.Uint256) (FreeMessage, bool, error) {
	var m FreeMessage
	ok, err := common.GetSerialized(x.store, common.Key(freePrefix, id.BytesBE()), &m)
	return m, ok, err
}

// PaidMessage returns paid message by identifier.
func (x *Store) PaidMessage(id util.Uint256) (PaidMessage, bool, error) {
	var m PaidMessage
	ok, err := common.GetSerialized(x.store, common.Key(paidPrefix, id.BytesBE()), &m)
	return m, ok, err
}

// PutPaid saves paid message.
func (x *Store) PutPaid(m *PaidMessage) error {
	return common.SetSerialized(x.store, common.Key(paidPrefix, m.ID.BytesBE()), m)
}

// DeletePaid deletes paid message and its endorser list.
func (x *Store) DeletePaid(id util.Uint256) {
	x.store.Delete(common.Key(paidPrefix, id.BytesBE()))
	x.paidEndorsers.Drop(id.BytesBE())
}

// HasPaidEndorser checks whether the account is recorded as the endorser
// of the paid message.
func (x *Store) HasPaidEndorser(id util.Uint256, acc util.Uint160) (bool, error) {
	return x.paidEndorsers.Contains(id.BytesBE(), acc)
}

// AddPaidEndorser records the account as the endorser of the paid message.
// The list holds at most MaxEndorsers paid endorsers and the author's
// reclaim, endorsers are never evicted from it.
func (x *Store) AddPaidEndorser(m *PaidMessage, acc util.Uint160) error {
	n, err := x.paidEndorsers.Len(m.ID.BytesBE())
	if err != nil {
		return err
	}

	if uint64(n) > m.MaxEndorsers {
		return common.NewError(common.Internal,
			fmt.Sprintf("paid message %s: endorser list is full (%d)", m.ID.StringLE(), n))
	}

	return x.paidEndorsers.Append(m.ID.BytesBE(), acc)
}

// PaidEndorsers returns endorsers of the paid message in order of
// endorsement.
func (x *Store) PaidEndorsers(id util.Uint256) ([]util.Uint160, error) {
	return x.paidEndorsers.List(id.BytesBE())
}

// Endorsers returns endorsers of the free message in order of endorsement.
func (x *Store) Endorsers(id util.Uint256) ([]util.Uint160, error) {
	return x.endorsers.List(id.BytesBE())
}

// Replies returns identifiers of live replies to the message, oldest
// first.
func (x *Store) Replies(id util.Uint256) ([]util.Uint256, error) {
	return x.replies.List(id.BytesBE())
}

// SentBy returns identifiers of messages and replies sent by the account,
// oldest first.
func (x *Store) SentBy(acc util.Uint160) ([]util.Uint256, error) {
	return x.sent.List(acc.BytesBE())
}

// EndorsedBy returns identifiers of free messages endorsed by the account,
// oldest first. Some of them may be deleted already.
func (x *Store) EndorsedBy(acc util.Uint160) ([]util.Uint256, error) {
	return x.endorsed.List(acc.BytesBE())
}

func (x *Store) checkFields(content, media, link string) error {
	switch {
	case len(content) > x.limits.Content:
		return fmt.Errorf("%w: content is %d bytes, limit %d", common.ErrContentTooLarge, len(content), x.limits.Content)
	case len(media) > x.limits.Media:
		return fmt.Errorf("%w: media is %d bytes, limit %d", common.ErrContentTooLarge, len(media), x.limits.Media)
	case len(link) > x.limits.Link:
		return fmt.Errorf("%w: link is %d bytes, limit %d", common.ErrContentTooLarge, len(link), x.limits.Link)
	}
	return nil
}

func (x *Store) checkUnique(id util.Uint256) error {
	if common.Has(x.store, common.Key(freePrefix, id.BytesBE())) ||
		common.Has(x.store, common.Key(paidPrefix, id.BytesBE())) {
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, id.StringLE())
	}
	return nil
}

func (x *Store) parent(id util.Uint256) (FreeMessage, error) {
	parent, ok, err := x.Message(id)
	switch {
	case err != nil:
		return FreeMessage{}, err
	case !ok:
		return FreeMessage{}, fmt.Errorf("%w: %s", ErrReplyTargetMissing, id.StringLE())
	case parent.IsReply():
		return FreeMessage{}, fmt.Errorf("%w: %s", ErrNestedReply, id.StringLE())
	}
	return parent, nil
}

func (x *Store) putFree(m *FreeMessage) error {
	return common.SetSerialized(x.store, common.Key(freePrefix, m.ID.BytesBE()), m)
}

// evictSent deletes message pushed out of the author's sent list. Replies
// of a top-level message go with it.
func (x *Store) evictSent(_, item []byte) error {
	id, err := util.Uint256DecodeBytesBE(item)
	if err != nil {
		return common.NewError(common.Internal, err.Error())
	}

	m, ok, err := x.Message(id)
	if err != nil || !ok {
		return err
	}

	if m.IsReply() {
		if err := x.replies.Remove(m.ParentID.BytesBE(), id); err != nil {
			return err
		}
		x.deleteFree(m)
		return nil
	}

	replies, err := x.replies.List(id.BytesBE())
	if err != nil {
		return err
	}

	for i := range replies {
		if err := x.deleteReply(replies[i]); err != nil {
			return err
		}
	}
	x.replies.Drop(id.BytesBE())
	x.deleteFree(m)

	return nil
}

// evictReply deletes reply pushed out of the parent's reply list.
func (x *Store) evictReply(_, item []byte) error {
	id, err := util.Uint256DecodeBytesBE(item)
	if err != nil {
		return common.NewError(common.Internal, err.Error())
	}
	return x.deleteReply(id)
}

// deleteReply deletes reply and removes it from the author's sent list.
func (x *Store) deleteReply(id util.Uint256) error {
	m, ok, err := x.Message(id)
	if err != nil || !ok {
		return err
	}

	if err := x.sent.Remove(m.Author.BytesBE(), id); err != nil {
		return err
	}
	x.deleteFree(m)

	return nil
}

func (x *Store) deleteFree(m FreeMessage) {
	x.store.Delete(common.Key(freePrefix, m.ID.BytesBE()))
	x.endorsers.Drop(m.ID.BytesBE())

	if x.onDelete != nil {
		x.onDelete(m)
	}
}

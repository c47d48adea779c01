package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/ledger"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const (
	settingsPrefix  = 'c'
	usernamePrefix  = 'u'
	followingPrefix = 'f'
	followersPrefix = 'F'
	blockedPrefix   = 'b'
)

var (
	// ErrCooldown is returned when settings are updated too often.
	ErrCooldown = common.NewError(common.Eligibility, "settings cooldown")

	// ErrUsernameTaken is returned when the username belongs to another
	// account.
	ErrUsernameTaken = common.NewError(common.Conflict, "username already taken")

	// ErrSelfAction is returned on attempt to follow or block oneself.
	ErrSelfAction = common.NewError(common.Conflict, "action targets the caller")

	// ErrDuplicateFollow is returned when the account is already followed.
	ErrDuplicateFollow = common.NewError(common.Conflict, "already following")

	// ErrNotFollowing is returned on attempt to unfollow not followed
	// account.
	ErrNotFollowing = common.NewError(common.Conflict, "not following")

	// ErrDuplicateBlock is returned when the account is already blocked.
	ErrDuplicateBlock = common.NewError(common.Conflict, "already blocked")

	// ErrNotBlocked is returned on attempt to unblock not blocked account.
	ErrNotBlocked = common.NewError(common.Conflict, "not blocked")

	// ErrInvalidFeedSize is returned when the requested feed size exceeds
	// the limit.
	ErrInvalidFeedSize = common.NewError(common.Validation, "invalid feed size")
)

// Settings is the account profile.
type Settings struct {
	// Unique across accounts, empty if not claimed
	Username string
	// Interests matched against paid message targets
	Interests string
	// Feed sizes, zero means default
	MaxFeed     uint64
	MaxPaidFeed uint64
	// Time of the last update in milliseconds
	LastUpdate uint64
}

// EncodeBinary implements io.Serializable.
func (s *Settings) EncodeBinary(w *io.BinWriter) {
	w.WriteB(common.EntityVersion)
	w.WriteString(s.Username)
	w.WriteString(s.Interests)
	w.WriteU64LE(s.MaxFeed)
	w.WriteU64LE(s.MaxPaidFeed)
	w.WriteU64LE(s.LastUpdate)
}

// DecodeBinary implements io.Serializable.
func (s *Settings) DecodeBinary(r *io.BinReader) {
	if v := r.ReadB(); r.Err == nil && v != common.EntityVersion {
		r.Err = fmt.Errorf("unsupported entity version %d", v)
	}
	s.Username = r.ReadString()
	s.Interests = r.ReadString()
	s.MaxFeed = r.ReadU64LE()
	s.MaxPaidFeed = r.ReadU64LE()
	s.LastUpdate = r.ReadU64LE()
}

// Prm groups parameters of the account store.
type Prm struct {
	Store common.Store

	Capacities config.Capacities
	Limits     config.Limits
	Feed       config.Feed

	// Minimum time between settings updates.
	Cooldown time.Duration
}

// Store keeps account settings and relations between accounts.
type Store struct {
	prm Prm

	following ledger.Accounts
	followers ledger.Accounts
	blocked   ledger.Accounts
}

// New returns account store over the contract storage.
func New(prm Prm) *Store {
	x := &Store{prm: prm}

	x.following = ledger.Accounts{Ledger: ledger.New(prm.Store, followingPrefix, prm.Capacities.Following, util.Uint160Size, x.evictFollowing)}
	x.followers = ledger.Accounts{Ledger: ledger.New(prm.Store, followersPrefix, prm.Capacities.Followers, util.Uint160Size, x.evictFollower)}
	x.blocked = ledger.Accounts{Ledger: ledger.New(prm.Store, blockedPrefix, prm.Capacities.Blocked, util.Uint160Size, nil)}

	return x
}

// Settings returns settings of the account.
func (x *Store) Settings(acc util.Uint160) (Settings, bool, error) {
	var s Settings
	ok, err := common.GetSerialized(x.prm.Store, common.Key(settingsPrefix, acc.BytesBE()), &s)
	return s, ok, err
}

// Interests returns declared interests of the account.
func (x *Store) Interests(acc util.Uint160) (string, error) {
	s, _, err := x.Settings(acc)
	return s.Interests, err
}

// FeedSizes returns feed sizes of the account with defaults applied.
func (x *Store) FeedSizes(acc util.Uint160) (uint64, uint64, error) {
	s, _, err := x.Settings(acc)
	if err != nil {
		return 0, 0, err
	}

	feed, paid := s.MaxFeed, s.MaxPaidFeed
	if feed == 0 {
		feed = x.prm.Feed.Default
	}
	if paid == 0 {
		paid = x.prm.Feed.Default
	}
	return feed, paid, nil
}

// UpdateSettings replaces settings of the account. The first update is
// always allowed, next ones only after the cooldown. Claiming new username
// releases the previous one.
func (x *Store) UpdateSettings(acc util.Uint160, username, interests string, maxFeed, maxPaidFeed, now uint64) (Settings, error) {
	switch {
	case len(username) > x.prm.Limits.Username:
		return Settings{}, fmt.Errorf("%w: username", common.ErrContentTooLarge)
	case len(interests) > x.prm.Limits.Interests:
		return Settings{}, fmt.Errorf("%w: interests", common.ErrContentTooLarge)
	case maxFeed > x.prm.Feed.Max || maxPaidFeed > x.prm.Feed.Max:
		return Settings{}, fmt.Errorf("%w: limit %d", ErrInvalidFeedSize, x.prm.Feed.Max)
	}

	old, ok, err := x.Settings(acc)
	if err != nil {
		return Settings{}, err
	}

	if ok {
		next, err := common.Add(old.LastUpdate, uint64(x.prm.Cooldown.Milliseconds()))
		if err != nil {
			return Settings{}, err
		}
		if now < next {
			return Settings{}, fmt.Errorf("%w: next update at %d", ErrCooldown, next)
		}
	}

	if username != old.Username {
		if username != "" {
			owner, taken, err := x.AccountByUsername(username)
			if err != nil {
				return Settings{}, err
			}
			if taken && !owner.Equals(acc) {
				return Settings{}, fmt.Errorf("%w: '%s'", ErrUsernameTaken, username)
			}
			x.prm.Store.Put(common.Key(usernamePrefix, []byte(username)), acc.BytesBE())
		}

		if old.Username != "" {
			x.prm.Store.Delete(common.Key(usernamePrefix, []byte(old.Username)))
		}
	}

	s := Settings{
		Username:    username,
		Interests:   interests,
		MaxFeed:     maxFeed,
		MaxPaidFeed: maxPaidFeed,
		LastUpdate:  now,
	}

	return s, common.SetSerialized(x.prm.Store, common.Key(settingsPrefix, acc.BytesBE()), &s)
}

// AccountByUsername returns owner of the username.
func (x *Store) AccountByUsername(username string) (util.Uint160, bool, error) {
	data, err := x.prm.Store.Get(common.Key(usernamePrefix, []byte(username)))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return util.Uint160{}, false, nil
		}
		return util.Uint160{}, false, err
	}

	acc, err := util.Uint160DecodeBytesBE(data)
	if err != nil {
		return util.Uint160{}, false, common.NewError(common.Internal, err.Error())
	}
	return acc, true, nil
}

// Follow makes acc follow the target.
func (x *Store) Follow(acc, target util.Uint160) error {
	if acc.Equals(target) {
		return ErrSelfAction
	}

	ok, err := x.following.Contains(acc.BytesBE(), target)
	if err != nil {
		return err
	} else if ok {
		return ErrDuplicateFollow
	}

	if err := x.following.Append(acc.BytesBE(), target); err != nil {
		return fmt.Errorf("append to following: %w", err)
	}

	if err := x.followers.Append(target.BytesBE(), acc); err != nil {
		return fmt.Errorf("append to followers: %w", err)
	}
	return nil
}

// Unfollow makes acc stop following the target.
func (x *Store) Unfollow(acc, target util.Uint160) error {
	ok, err := x.following.Contains(acc.BytesBE(), target)
	if err != nil {
		return err
	} else if !ok {
		return ErrNotFollowing
	}

	if err := x.following.Remove(acc.BytesBE(), target); err != nil {
		return err
	}
	return x.followers.Remove(target.BytesBE(), acc)
}

// Block hides target's messages from the acc feed.
func (x *Store) Block(acc, target util.Uint160) error {
	if acc.Equals(target) {
		return ErrSelfAction
	}

	ok, err := x.blocked.Contains(acc.BytesBE(), target)
	if err != nil {
		return err
	} else if ok {
		return ErrDuplicateBlock
	}

	return x.blocked.Append(acc.BytesBE(), target)
}

// Unblock reverts Block.
func (x *Store) Unblock(acc, target util.Uint160) error {
	ok, err := x.blocked.Contains(acc.BytesBE(), target)
	if err != nil {
		return err
	} else if !ok {
		return ErrNotBlocked
	}

	return x.blocked.Remove(acc.BytesBE(), target)
}

// IsBlocked checks whether acc blocked the target.
func (x *Store) IsBlocked(acc, target util.Uint160) (bool, error) {
	return x.blocked.Contains(acc.BytesBE(), target)
}

// Following returns accounts followed by acc, oldest first.
func (x *Store) Following(acc util.Uint160) ([]util.Uint160, error) {
	return x.following.List(acc.BytesBE())
}

// Followers returns followers of acc, oldest first.
func (x *Store) Followers(acc util.Uint160) ([]util.Uint160, error) {
	return x.followers.List(acc.BytesBE())
}

// Blocked returns accounts blocked by acc, oldest first.
func (x *Store) Blocked(acc util.Uint160) ([]util.Uint160, error) {
	return x.blocked.List(acc.BytesBE())
}

// evictFollowing keeps followers in sync when owner's oldest followed
// account is pushed out.
func (x *Store) evictFollowing(owner, item []byte) error {
	acc, err := util.Uint160DecodeBytesBE(owner)
	if err != nil {
		return common.NewError(common.Internal, err.Error())
	}
	return x.followers.Remove(item, acc)
}

// evictFollower keeps following lists in sync when owner's oldest follower
// is pushed out.
func (x *Store) evictFollower(owner, item []byte) error {
	acc, err := util.Uint160DecodeBytesBE(owner)
	if err != nil {
		return common.NewError(common.Internal, err.Error())
	}
	return x.following.Remove(item, acc)
}

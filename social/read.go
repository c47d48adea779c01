package social

import (
	"github.com/geode-social/social-contract/account"
	"github.com/geode-social/social-contract/message"
	"github.com/geode-social/social-contract/reward"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// view returns components over the current state. Changes made through
// them are never persisted.
func (c *Contract) view() *txn {
	return c.newTxn()
}

// Message returns free message or zero message if there is no such one.
func (c *Contract) Message(id util.Uint256) (message.FreeMessage, error) {
	m, _, err := c.view().msgs.Message(id)
	return m, err
}

// PaidMessage returns paid message or zero message if there is no such one.
func (c *Contract) PaidMessage(id util.Uint256) (message.PaidMessage, error) {
	m, _, err := c.view().msgs.PaidMessage(id)
	return m, err
}

// MessagesSentByAccount returns identifiers of free messages and replies
// sent by the account, oldest first.
func (c *Contract) MessagesSentByAccount(acc util.Uint160) ([]util.Uint256, error) {
	return c.view().msgs.SentBy(acc)
}

// PaidMessagesSentByAccount returns identifiers of paid messages sent by
// the account, oldest first.
func (c *Contract) PaidMessagesSentByAccount(acc util.Uint160) ([]util.Uint256, error) {
	return c.view().topics.PaidSentBy(acc)
}

// MessagesEndorsedByAccount returns identifiers of free messages endorsed
// by the account, oldest first.
func (c *Contract) MessagesEndorsedByAccount(acc util.Uint160) ([]util.Uint256, error) {
	return c.view().msgs.EndorsedBy(acc)
}

// PaidMessagesEndorsedByAccount returns identifiers of paid messages
// endorsed by the account, oldest first.
func (c *Contract) PaidMessagesEndorsedByAccount(acc util.Uint160) ([]util.Uint256, error) {
	return c.view().payouts.PaidEndorsedBy(acc)
}

// Replies returns identifiers of replies to the message, oldest first.
func (c *Contract) Replies(id util.Uint256) ([]util.Uint256, error) {
	return c.view().msgs.Replies(id)
}

// Endorsers returns endorsers of the free message.
func (c *Contract) Endorsers(id util.Uint256) ([]util.Uint160, error) {
	return c.view().msgs.Endorsers(id)
}

// PaidEndorsers returns endorsers of the paid message including its author
// if the stake was reclaimed.
func (c *Contract) PaidEndorsers(id util.Uint256) ([]util.Uint160, error) {
	return c.view().msgs.PaidEndorsers(id)
}

// Topic returns identifiers of paid messages in the topic, oldest first.
func (c *Contract) Topic(tag string) ([]util.Uint256, error) {
	return c.view().topics.Topic(tag)
}

// TopicFloor returns the lowest bid of the full topic. New paid messages
// must bid higher. False is returned if the topic is not full.
func (c *Contract) TopicFloor(tag string) (uint64, bool, error) {
	return c.view().topics.Floor(tag)
}

// Topics returns tags of non-empty topics.
func (c *Contract) Topics() []string {
	return c.view().topics.Topics()
}

// Settings returns settings of the account.
func (c *Contract) Settings(acc util.Uint160) (account.Settings, error) {
	s, _, err := c.view().accounts.Settings(acc)
	return s, err
}

// AccountByUsername returns owner of the username or zero account.
func (c *Contract) AccountByUsername(username string) (util.Uint160, error) {
	acc, _, err := c.view().accounts.AccountByUsername(username)
	return acc, err
}

// Following returns accounts followed by acc.
func (c *Contract) Following(acc util.Uint160) ([]util.Uint160, error) {
	return c.view().accounts.Following(acc)
}

// Followers returns followers of acc.
func (c *Contract) Followers(acc util.Uint160) ([]util.Uint160, error) {
	return c.view().accounts.Followers(acc)
}

// Blocked returns accounts blocked by acc.
func (c *Contract) Blocked(acc util.Uint160) ([]util.Uint160, error) {
	return c.view().accounts.Blocked(acc)
}

// Rewards returns posting reward state.
func (c *Contract) Rewards() (reward.State, error) {
	return c.view().rewards.State()
}

// PublicFeed returns top-level messages of the accounts followed by the
// caller and not blocked by it. Messages of every account go newest first,
// accounts go in the order they were followed. The feed is limited by the
// caller's feed size.
func (c *Contract) PublicFeed(caller util.Uint160) ([]message.FreeMessage, error) {
	v := c.view()

	limit, _, err := v.accounts.FeedSizes(caller)
	if err != nil {
		return nil, err
	}

	following, err := v.accounts.Following(caller)
	if err != nil {
		return nil, err
	}

	var res []message.FreeMessage

	for _, acc := range following {
		blocked, err := v.accounts.IsBlocked(caller, acc)
		if err != nil {
			return nil, err
		} else if blocked {
			continue
		}

		ids, err := v.msgs.SentBy(acc)
		if err != nil {
			return nil, err
		}

		for i := len(ids) - 1; i >= 0; i-- {
			if uint64(len(res)) >= limit {
				return res, nil
			}

			m, ok, err := v.msgs.Message(ids[i])
			if err != nil {
				return nil, err
			}
			if ok && !m.IsReply() {
				res = append(res, m)
			}
		}
	}

	return res, nil
}

// PaidFeed returns paid messages from topics matching the caller's
// interests which the caller may still endorse. The feed is limited by the
// caller's paid feed size.
func (c *Contract) PaidFeed(caller util.Uint160) ([]message.PaidMessage, error) {
	v := c.view()

	_, limit, err := v.accounts.FeedSizes(caller)
	if err != nil {
		return nil, err
	}

	interests, err := v.accounts.Interests(caller)
	if err != nil {
		return nil, err
	}

	var res []message.PaidMessage

	for _, tag := range v.topics.Topics() {
		if !c.policy(interests, tag) {
			continue
		}

		ids, err := v.topics.Topic(tag)
		if err != nil {
			return nil, err
		}

		for i := range ids {
			if uint64(len(res)) >= limit {
				return res, nil
			}

			m, ok, err := v.msgs.PaidMessage(ids[i])
			if err != nil {
				return nil, err
			}
			if !ok || m.Author.Equals(caller) || m.EndorserCount >= m.MaxEndorsers {
				continue
			}

			endorsed, err := v.msgs.HasPaidEndorser(m.ID, caller)
			if err != nil {
				return nil, err
			}
			if !endorsed {
				res = append(res, m)
			}
		}
	}

	return res, nil
}

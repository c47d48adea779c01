/*
Package social implements the pay-to-promote social feed contract.

Accounts post free messages and replies, and paid messages targeting an
interest tag. Paid messages stake funds which are paid out to accounts
endorsing them. Paid messages of one tag compete for a bounded topic in a
continuous auction: a full topic admits only bids higher than its lowest
one, and the lowest bid leaves the topic. Every per-account and per-message
list is bounded, old entries are evicted with everything depending on them.

Every state-changing method either succeeds completely or leaves the state
intact. Notifications of a call are emitted only after the call succeeds.
Contract is not safe for concurrent use: the host must serialize calls.
Nested state-changing calls, e.g. from the payment handler of a receiver,
fail with ErrReentrantCall.

# Contract notifications

MessageBroadcast notification. This notification is produced when an account
posts a top-level free message.

	MessageBroadcast:
	  - name: author
	    type: Hash160
	  - name: id
	    type: Hash256
	  - name: createdAt
	    type: Integer

ReplyMessageBroadcast notification. This notification is produced when an
account replies to a message.

	ReplyMessageBroadcast:
	  - name: author
	    type: Hash160
	  - name: id
	    type: Hash256
	  - name: parent
	    type: Hash256
	  - name: createdAt
	    type: Integer

PaidMessageBroadcast notification. This notification is produced when a paid
message is admitted to its topic.

	PaidMessageBroadcast:
	  - name: author
	    type: Hash160
	  - name: id
	    type: Hash256
	  - name: tag
	    type: String
	  - name: paymentPerEndorser
	    type: Integer
	  - name: createdAt
	    type: Integer

BidEvicted notification. This notification is produced when a paid message
leaves its topic because of a higher bid.

	BidEvicted:
	  - name: tag
	    type: String
	  - name: id
	    type: Hash256

MessageElevated notification. This notification is produced when an account
endorses a free message.

	MessageElevated:
	  - name: id
	    type: Hash256
	  - name: endorser
	    type: Hash160

PaidMessageElevated notification. This notification is produced when an
account endorses a paid message and receives the payment. Author's reclaim
of the remaining stake produces no notification.

	PaidMessageElevated:
	  - name: id
	    type: Hash256
	  - name: endorser
	    type: Hash160
	  - name: amount
	    type: Integer

Reward notification. This notification is produced when a post is rewarded.

	Reward:
	  - name: poster
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: counter
	    type: Integer

SettingsUpdated notification. This notification is produced when an account
updates its settings.

	SettingsUpdated:
	  - name: account
	    type: Hash160
	  - name: username
	    type: String

# Contract storage model

	| Key                    | Value                                   |
	|------------------------|-----------------------------------------|
	| 'v'                    | storage version, 4 bytes LE             |
	| 'm' + ID               | free message                            |
	| 'p' + ID               | paid message                            |
	| 's' + account          | messages and replies sent by account    |
	| 'q' + account          | paid messages sent by account           |
	| 't' + tag              | paid messages in the topic              |
	| 'r' + ID               | replies to the message                  |
	| 'e' + ID               | endorsers of the free message           |
	| 'E' + ID               | endorsers of the paid message           |
	| 'a' + account          | free messages endorsed by account       |
	| 'A' + account          | paid messages endorsed by account       |
	| 'c' + account          | account settings                        |
	| 'u' + username         | account owning the username             |
	| 'f' + account          | accounts followed by account            |
	| 'F' + account          | followers of account                    |
	| 'b' + account          | accounts blocked by account             |
	| 'R'                    | posting reward state                    |

IDs are 32-byte big-endian message hashes, accounts are 20-byte big-endian
script hashes. Lists are stored as a version byte, the number of items and
the items themselves, oldest first. Empty lists are not stored.
*/
package social

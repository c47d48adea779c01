/*
Package host describes collaborators the social contract consumes from its
execution environment and provides in-process implementations of them.

The contract never moves funds, reads time or hashes data on its own. It
calls:

	Treasury  - contract account balance and outgoing transfers
	Clock     - monotonic logical time in milliseconds
	Hasher    - 256-bit digest of the message fields
	EventSink - append-only audit log

Bank is a simple account registry backed by the same key-value storage as
the contract. Accounts may register a PaymentHandler which is called on
every incoming transfer, the way NEP-17 calls onNEP17Payment of receiving
contracts, so the handler may call back into the contract. Funds attached
to a contract call are visible to the contract through Treasury.Attached for
the duration of the call.
*/
package host

import (
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Treasury is the balance of the contract account.
type Treasury interface {
	// Balance returns current spendable balance of the contract.
	Balance() uint64
	// Transfer moves amount from the contract to the given account. Details
	// are attached to the transfer for the receiver. Transfer may call back
	// into the contract.
	Transfer(to util.Uint160, amount uint64, details []byte) error
	// Attached returns the amount transferred to the contract together
	// with the current call, zero if nothing is attached.
	Attached() uint64
}

// Clock is a monotonic logical clock.
type Clock interface {
	// Now returns current time in milliseconds.
	Now() uint64
}

// Hasher derives message identifiers.
type Hasher interface {
	// Hash returns digest of the concatenated parts.
	Hash(parts ...[]byte) util.Uint256
}

// EventSink receives contract notifications. Sinks must not fail the
// caller: delivery problems are handled inside the sink.
type EventSink interface {
	Notify(ev state.NotificationEvent)
}

package social

import (
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Notification names.
const (
	MessageBroadcastEvent      = "MessageBroadcast"
	ReplyMessageBroadcastEvent = "ReplyMessageBroadcast"
	PaidMessageBroadcastEvent  = "PaidMessageBroadcast"
	BidEvictedEvent            = "BidEvicted"
	MessageElevatedEvent       = "MessageElevated"
	PaidMessageElevatedEvent   = "PaidMessageElevated"
	RewardEvent                = "Reward"
	SettingsUpdatedEvent       = "SettingsUpdated"
)

func hash160Item(u util.Uint160) stackitem.Item {
	return stackitem.NewByteArray(u.BytesBE())
}

func hash256Item(u util.Uint256) stackitem.Item {
	return stackitem.NewByteArray(u.BytesBE())
}

func intItem(v uint64) stackitem.Item {
	return stackitem.NewBigInteger(new(big.Int).SetUint64(v))
}

func stringItem(s string) stackitem.Item {
	return stackitem.NewByteArray([]byte(s))
}

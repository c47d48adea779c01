package common

import (
	"encoding/binary"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

var (
	endorsementPrefix = []byte{0x01}
	reclaimPrefix     = []byte{0x02}
	rewardPrefix      = []byte{0x03}
)

// EndorsementTransferDetails returns details of the payout for the paid
// message endorsement.
func EndorsementTransferDetails(id util.Uint256) []byte {
	return append(append([]byte{}, endorsementPrefix...), id.BytesBE()...)
}

// ReclaimTransferDetails returns details of the stake remainder returned to
// the paid message author.
func ReclaimTransferDetails(id util.Uint256) []byte {
	return append(append([]byte{}, reclaimPrefix...), id.BytesBE()...)
}

// RewardTransferDetails returns details of the posting reward paid for the
// post with the given sequence number.
func RewardTransferDetails(counter uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = rewardPrefix[0]
	binary.LittleEndian.PutUint64(buf[1:], counter)
	return buf
}

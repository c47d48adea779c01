package main

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// parseAccount decodes Neo address. '@name' stands for the account derived
// from the name which is handy for local experiments.
func parseAccount(s string) (util.Uint160, error) {
	if name, ok := strings.CutPrefix(s, "@"); ok {
		if name == "" {
			return util.Uint160{}, fmt.Errorf("empty account name")
		}
		return hash.Hash160([]byte(name)), nil
	}

	acc, err := address.StringToUint160(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("decode address '%s': %w", s, err)
	}
	return acc, nil
}

// parseID decodes message identifier given either in little-endian hex or
// in base58 of big-endian bytes.
func parseID(s string) (util.Uint256, error) {
	if len(s) == 2*util.Uint256Size {
		return util.Uint256DecodeStringLE(s)
	}

	b, err := base58.Decode(s)
	if err != nil {
		return util.Uint256{}, fmt.Errorf("decode message ID '%s': %w", s, err)
	}
	return util.Uint256DecodeBytesBE(b)
}

func formatAccount(acc util.Uint160) string {
	return address.Uint160ToString(acc)
}

func formatID(id util.Uint256) string {
	return fmt.Sprintf("%s (%s)", id.StringLE(), base58.Encode(id.BytesBE()))
}

package common

import "github.com/nspcc-dev/neo-go/pkg/util"

// CheckOwner checks that the caller is the contract owner. It returns
// ErrUnauthorized otherwise.
func CheckOwner(caller, owner util.Uint160) error {
	if !caller.Equals(owner) {
		return ErrUnauthorized
	}
	return nil
}

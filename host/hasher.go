package host

import (
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// SHA256 hashes concatenation of the parts with SHA-256.
type SHA256 struct{}

// Hash implements Hasher.
func (SHA256) Hash(parts ...[]byte) util.Uint256 {
	var n int
	for i := range parts {
		n += len(parts[i])
	}

	buf := make([]byte, 0, n)
	for i := range parts {
		buf = append(buf, parts[i]...)
	}

	return hash.Sha256(buf)
}

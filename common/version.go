package common

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
)

const (
	major = 0
	minor = 3
	patch = 0

	// Versions from which the storage can be opened without migration.
	prevMajor = 0
	prevMinor = 3
	prevPatch = 0

	Version = major*1_000_000 + minor*1_000 + patch

	PrevVersion = prevMajor*1_000_000 + prevMinor*1_000 + prevPatch

	// EntityVersion is the first byte of every encoded entity.
	EntityVersion byte = 1

	versionKey = 'v'
)

// ErrVersionMismatch is returned by CheckVersion if the storage was written
// by an incompatible contract version.
var ErrVersionMismatch = NewError(Internal, "storage version mismatch")

// CheckVersion checks that the storage version can be served by the current
// contract version.
func CheckVersion(from int) error {
	if from < PrevVersion || from > Version {
		return fmt.Errorf("%w: expected [%d, %d], got %d", ErrVersionMismatch, PrevVersion, Version, from)
	}
	return nil
}

// StoredVersion returns the version the storage is stamped with. False is
// returned for unstamped storage.
func StoredVersion(s Store) (int, bool, error) {
	data, err := s.Get([]byte{versionKey})
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read storage version: %w", err)
	}

	if len(data) != 4 {
		return 0, false, fmt.Errorf("%w: invalid version item length %d", ErrVersionMismatch, len(data))
	}

	return int(binary.LittleEndian.Uint32(data)), true, nil
}

// EnsureVersion stamps an empty storage with the current version or checks
// the stamped one.
func EnsureVersion(s Store) error {
	v, ok, err := StoredVersion(s)
	if err != nil {
		return err
	}

	if !ok {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, Version)
		s.Put([]byte{versionKey}, buf)
		return nil
	}

	return CheckVersion(v)
}

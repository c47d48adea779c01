package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Creator dumps the contract storage. Output file format:
//
//	'<label>-<seq>-meta.json': JSON object of Meta
//	'<label>-<seq>-storage.csv': CSV of storage items
//
// Storage CSV are 'prefix,key,value' where prefix is the first key byte and
// binary key-value are base64-encoded.
//
// Use IterateDumps to access existing dumps.
type Creator struct {
	dumpStreams

	meta Meta

	storageItemsCSV *csv.Writer
}

// NewCreator returns Creator which dumps storage into given directory. The
// dump is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.storageItemsCSV = csv.NewWriter(res.dumpStreams.storageItems)
	res.meta.Items = make(map[string]int)

	return &res, nil
}

// AddStore writes all items of the contract storage to the dump. Storage
// must be stamped with the contract version. Items are written in key order.
func (x *Creator) AddStore(contract util.Uint160, timestamp uint64, s common.Store) error {
	v, ok, err := common.StoredVersion(s)
	if err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("storage is not stamped with contract version")
	}

	x.meta.Contract = address.Uint160ToString(contract)
	x.meta.Version = uint32(v)
	x.meta.Timestamp = timestamp

	s.Seek(storage.SeekRange{}, func(k, v []byte) bool {
		name := prefixName(k)
		err = x.storageItemsCSV.Write([]string{
			name,
			_encoding.EncodeToString(k),
			_encoding.EncodeToString(v),
		})
		if err != nil {
			err = fmt.Errorf("write storage item as CSV data: %w", err)
			return false
		}
		x.meta.Items[name]++
		return true
	})

	return err
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.meta)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.meta)
	if err != nil {
		return fmt.Errorf("encode dump metadata to JSON: %w", err)
	}

	x.storageItemsCSV.Flush()

	err = x.storageItemsCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() {
	x.close()
}

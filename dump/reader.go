package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/geode-social/social-contract/common"
)

// IterateDumps iterates over all dumps collected by the Creator in the
// specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	var id ID
	var r Reader
	var streams dumpStreams

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		} else if e != nil {
			return e
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()

		if !strings.HasSuffix(name, metaFileSuffix) {
			return nil
		}

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", d.Name(), err)
		}

		err = initDumpStreams(&streams, filepath.Dir(path), id, true)
		if err != nil {
			return fmt.Errorf("init dump streams ('%s'): %w", name, err)
		}

		err = r.fromDumpStreams(streams.meta, streams.storageItems)
		streams.close()
		if err != nil {
			return fmt.Errorf("init dump reader ('%s'): %w", name, err)
		}

		f(id, &r)

		return nil
	})
}

type kv struct{ k, v []byte }

// Reader reads storage collected in the superior dump.
type Reader struct {
	meta  Meta
	items []kv
}

func (x *Reader) fromDumpStreams(rMeta, rStorageItems io.Reader) error {
	x.meta = Meta{}

	err := json.NewDecoder(rMeta).Decode(&x.meta)
	if err != nil {
		return fmt.Errorf("decode dump metadata from JSON: %w", err)
	}

	var rec []string
	var _kv kv

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 3
	_csv.ReuseRecord = true

	x.items = x.items[:0]

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		_kv.k, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		if prefixName(_kv.k) != rec[0] {
			return fmt.Errorf("storage item prefix '%s' does not match key", rec[0])
		}

		_kv.v, err = _encoding.DecodeString(rec[2])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.items = append(x.items, _kv)
	}
}

// Meta returns metadata of the dump.
func (x *Reader) Meta() Meta {
	return x.meta
}

// Iterate passes storage items of the dump into f in key order.
func (x *Reader) Iterate(f func(key, value []byte)) {
	for i := range x.items {
		f(x.items[i].k, x.items[i].v)
	}
}

// Restore puts all storage items of the dump into s. Dump must be taken
// from the storage of compatible contract version.
func (x *Reader) Restore(s common.Store) error {
	err := common.CheckVersion(int(x.meta.Version))
	if err != nil {
		return err
	}

	x.Iterate(func(key, value []byte) {
		s.Put(key, value)
	})

	return nil
}

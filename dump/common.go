package dump

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ID is a unique identifier of the dump.
type ID struct {
	// Label of the dump source (e.g. node name).
	Label string
	// Sequence number of the dump for the label.
	Seq uint64
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(x.Seq, 10)
}

// decodes ID fields from the hyphen-separated string.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 3 {
		return fmt.Errorf("expected '%s'-separated string with at least 3 items", sep)
	}

	n, err := strconv.ParseUint(ss[len(ss)-2], 10, 64)
	if err != nil {
		return fmt.Errorf("decode sequence number from '%s': %w", ss[len(ss)-2], err)
	}

	x.Label = strings.Join(ss[:len(ss)-2], sep)
	x.Seq = n

	return nil
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// Meta is a JSON-encoded information about the dumped storage.
type Meta struct {
	// Neo address of the contract.
	Contract string `json:"contract"`
	// Storage version.
	Version uint32 `json:"version"`
	// Unix time of the dump in milliseconds.
	Timestamp uint64 `json:"timestamp"`
	// Number of items per key prefix.
	Items map[string]int `json:"items"`
}

// dumpStreams groups data streams for metadata and storage.
type dumpStreams struct {
	meta, storageItems io.ReadWriteCloser
}

// close closes all streams.
func (x *dumpStreams) close() {
	_ = x.storageItems.Close()
	_ = x.meta.Close()
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with metadata
	metaFileSuffix = "meta.json"
	// suffix of file with storage items
	storageFileSuffix = "storage.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathStorage := filepath.Join(dir, strings.Join([]string{id.String(), storageFileSuffix}, sep))
	pathMeta := filepath.Join(dir, strings.Join([]string{id.String(), metaFileSuffix}, sep))

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		for _, p := range []string{pathStorage, pathMeta} {
			if err = checkFileNotExists(p); err != nil {
				return err
			}
		}

		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.storageItems, err = os.OpenFile(pathStorage, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with storage items: %w", err)
	}

	d.meta, err = os.OpenFile(pathMeta, flag, perm)
	if err != nil {
		_ = d.storageItems.Close()
		return fmt.Errorf("open file with metadata: %w", err)
	}

	return nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}

// prefixName returns printable name of the key prefix.
func prefixName(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	return string(key[:1])
}

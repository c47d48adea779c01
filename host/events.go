package host

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// LogSink writes notifications to the log.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink returns sink writing to the given logger.
func NewLogSink(l *zap.Logger) LogSink {
	return LogSink{log: l}
}

// Notify implements EventSink.
func (x LogSink) Notify(ev state.NotificationEvent) {
	x.log.Info("contract notification",
		zap.String("event", ev.Name),
		zap.Stringer("contract", ev.ScriptHash),
		zap.Strings("params", itemStrings(ev.Item)),
	)
}

// JournalEntry is a notification recorded by Journal.
type JournalEntry struct {
	ID    uuid.UUID
	Event state.NotificationEvent
}

// String returns notification name followed by its parameters.
func (e JournalEntry) String() string {
	return e.Event.Name + "(" + strings.Join(itemStrings(e.Event.Item), ", ") + ")"
}

// Journal keeps notifications in memory in the order of arrival.
type Journal struct {
	mtx     sync.Mutex
	entries []JournalEntry
}

// Notify implements EventSink.
func (j *Journal) Notify(ev state.NotificationEvent) {
	id, err := uuid.NewRandom()
	if err != nil {
		// entries stay ordered, the identifier is optional
		id = uuid.Nil
	}

	j.mtx.Lock()
	j.entries = append(j.entries, JournalEntry{ID: id, Event: ev})
	j.mtx.Unlock()
}

// Entries returns copy of the recorded entries.
func (j *Journal) Entries() []JournalEntry {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	res := make([]JournalEntry, len(j.entries))
	copy(res, j.entries)
	return res
}

// Names returns names of the recorded notifications.
func (j *Journal) Names() []string {
	j.mtx.Lock()
	defer j.mtx.Unlock()

	res := make([]string, len(j.entries))
	for i := range j.entries {
		res[i] = j.entries[i].Event.Name
	}
	return res
}

// Reset drops all recorded entries.
func (j *Journal) Reset() {
	j.mtx.Lock()
	j.entries = nil
	j.mtx.Unlock()
}

// MultiSink passes every notification to all sinks in order.
type MultiSink []EventSink

// Notify implements EventSink.
func (m MultiSink) Notify(ev state.NotificationEvent) {
	for i := range m {
		m[i].Notify(ev)
	}
}

// NopSink drops notifications.
type NopSink struct{}

// Notify implements EventSink.
func (NopSink) Notify(state.NotificationEvent) {}

func itemStrings(arr *stackitem.Array) []string {
	if arr == nil {
		return nil
	}

	items := arr.Value().([]stackitem.Item)
	res := make([]string, len(items))
	for i := range items {
		switch v := items[i].Value().(type) {
		case []byte:
			res[i] = hex.EncodeToString(v)
		case *big.Int:
			res[i] = v.String()
		default:
			res[i] = fmt.Sprint(v)
		}
	}
	return res
}

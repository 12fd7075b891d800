// Package sbb implements spec §4.7: the Secure Bulletin Board, an
// append-only, totally-ordered, publicly-readable log that every other
// module posts its artifacts to, and which refuses further posts once
// closed.
package sbb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/types"
)

// Clock returns the current time for timestamped posts. It is a package
// variable, not a direct time.Now() call, so tests needing byte-identical
// transcripts (spec §8 scenario S6) can swap in a fixed clock.
var Clock = time.Now

var entryPrefix = []byte("sbb/")

// Entry is one posted record: a label (e.g. "proof:icl", "tally", a race or
// ballot id) and its payload. Payloads are `map[string]any` or any value
// `encoding/json` can marshal; Go's json package sorts map keys
// lexicographically, so a map[string]any payload serializes to the same
// canonical-JSON encoding every time (spec §4.7 point 3 "canonical
// serialization"), with no bespoke canonicalizer needed.
type Entry struct {
	Seq     uint64
	Label   string
	Time    string // ISO-8601, empty if suppressed for this entry
	Payload json.RawMessage
}

// Board is the bulletin board for one election: a durable, totally-ordered
// append log plus an in-memory index for fast reads (spec §9 "append-only
// log... typed records").
type Board struct {
	mu     sync.Mutex
	db     db.Database
	closed bool
	next   uint64
	order  []Entry // in-memory mirror in append order
}

// New creates a bulletin board backed by database.
func New(database db.Database) *Board {
	return &Board{db: database}
}

// Post appends a labeled, timestamped entry to the board (spec §4.7 point
// 1). value is marshaled to JSON before storage. Returns ErrSBBClosed if the
// board has already been closed.
func (b *Board) Post(label string, value any) (Entry, error) {
	return b.post(label, value, true)
}

// PostUntimestamped appends a labeled entry with no timestamp (spec §4.7
// "suppressible for static setup data so that the transcript is
// reproducible"), for static setup postings such as setup:races and
// setup:voters.
func (b *Board) PostUntimestamped(label string, value any) (Entry, error) {
	return b.post(label, value, false)
}

func (b *Board) post(label string, value any, withTimestamp bool) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Entry{}, fmt.Errorf("%w: post %q rejected", types.ErrSBBClosed, label)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return Entry{}, fmt.Errorf("sbb: marshal payload for %q: %w", label, err)
	}

	e := Entry{Seq: b.next, Label: label, Payload: payload}
	if withTimestamp {
		e.Time = Clock().UTC().Format(time.RFC3339)
	}
	if err := b.save(e); err != nil {
		return Entry{}, fmt.Errorf("sbb: persist entry %q: %w", label, err)
	}
	b.order = append(b.order, e)
	b.next++

	log.Debugw("sbb post", "seq", e.Seq, "label", label, "bytes", len(payload))
	return e, nil
}

// Close marks the board closed; every subsequent Post fails with
// ErrSBBClosed (spec §4.7 point 2).
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	log.Infow("sbb closed", "entries", len(b.order))
}

// Closed reports whether the board has been closed.
func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ReadAll returns every posted entry in post order (spec §4.7 point 4
// "read_all... total order").
func (b *Board) ReadAll() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.order))
	copy(out, b.order)
	return out
}

// ReadLabel returns every entry posted under label, in post order.
func (b *Board) ReadLabel(label string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Entry
	for _, e := range b.order {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

func (b *Board) save(e Entry) error {
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), entryPrefix)
	key := seqKey(e.Seq)
	var buf bytes.Buffer
	if err := encodeEntry(&buf, e); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Set(key, buf.Bytes()); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// LoadAll rebuilds a Board's in-memory mirror from durable storage, e.g.
// after a restart (spec §13: a sequence-keyed persistent log plus an
// in-memory ordered mirror).
func LoadAll(database db.Database) (*Board, error) {
	b := New(database)
	rd := prefixeddb.NewPrefixedReader(database, entryPrefix)
	var loadErr error
	if err := rd.Iterate(nil, func(k, v []byte) bool {
		e, err := decodeEntry(v)
		if err != nil {
			loadErr = fmt.Errorf("sbb: decode entry at key %x: %w", k, err)
			return false
		}
		b.order = append(b.order, e)
		if e.Seq >= b.next {
			b.next = e.Seq + 1
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("sbb: iterate entries: %w", err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return b, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// wireEntry is the on-disk shape of an Entry (JSON, for human-readable
// storage and because Payload is already JSON).
type wireEntry struct {
	Seq     uint64          `json:"seq"`
	Label   string          `json:"label"`
	Time    string          `json:"time,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEntry(buf *bytes.Buffer, e Entry) error {
	return json.NewEncoder(buf).Encode(wireEntry{Seq: e.Seq, Label: e.Label, Time: e.Time, Payload: e.Payload})
}

func decodeEntry(data []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, err
	}
	return Entry{Seq: w.Seq, Label: w.Label, Time: w.Time, Payload: w.Payload}, nil
}

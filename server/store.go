package server

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	column0Prefix = []byte("g0/")
	passPrefix    = []byte("gp/")
)

// Store is the durable backing for a race's mix grid, a typed-record
// key-value layer over a db.Database (spec §9 "Dynamic dictionaries ->
// typed records", §13). There is no default backing: the caller supplies
// the db.Database (the tests open a pebble database through
// go.vocdoni.io/dvote/db/metadb); a real networked/file-system store is
// reachable through the same db.Database contract but is explicitly out of
// scope for the core (spec §1).
type Store struct {
	db db.Database
}

// NewStore wraps an existing db.Database as mix-grid storage.
func NewStore(database db.Database) *Store {
	return &Store{db: database}
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}

func cellKey(raceID, row, position string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", raceID, row, position))
}

func passKey(raceID, pass string) []byte {
	return []byte(fmt.Sprintf("%s/%s", raceID, pass))
}

func (s *Store) saveColumn0(raceID, row, position string, cell Cell) error {
	data, err := gobEncode(cell)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), column0Prefix)
	if err := wTx.Set(cellKey(raceID, row, position), data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

func (s *Store) savePass(raceID string, pr *PassRecord) error {
	data, err := gobEncode(pr)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), passPrefix)
	if err := wTx.Set(passKey(raceID, pr.Pass), data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// LoadPass reads back a previously persisted pass record, e.g. to rebuild a
// Grid's in-memory view from durable storage after a restart.
func (s *Store) LoadPass(raceID, pass string) (*PassRecord, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, passPrefix)
	data, err := rd.Get(passKey(raceID, pass))
	if err != nil {
		return nil, err
	}
	var pr PassRecord
	if err := gobDecode(data, &pr); err != nil {
		return nil, fmt.Errorf("server: decode pass %s/%s: %w", raceID, pass, err)
	}
	return &pr, nil
}

package sbb

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestPostAppendsInOrderAndIsReadable(t *testing.T) {
	c := qt.New(t)

	dbPath := filepath.Join(t.TempDir(), "sbb-db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	defer database.Close()

	b := New(database)

	_, err = b.Post("about", map[string]any{"title": "test election"})
	c.Assert(err, qt.IsNil)
	_, err = b.Post("commitment", map[string]any{"race_id": "P", "cu": "ab"})
	c.Assert(err, qt.IsNil)
	_, err = b.Post("commitment", map[string]any{"race_id": "P", "cu": "cd"})
	c.Assert(err, qt.IsNil)

	all := b.ReadAll()
	c.Assert(all, qt.HasLen, 3)
	c.Assert(all[0].Seq, qt.Equals, uint64(0))
	c.Assert(all[1].Seq, qt.Equals, uint64(1))
	c.Assert(all[2].Seq, qt.Equals, uint64(2))
	c.Assert(all[0].Label, qt.Equals, "about")

	commits := b.ReadLabel("commitment")
	c.Assert(commits, qt.HasLen, 2)
}

func TestCloseRejectsFurtherPosts(t *testing.T) {
	c := qt.New(t)

	dbPath := filepath.Join(t.TempDir(), "sbb-db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	defer database.Close()

	b := New(database)
	_, err = b.Post("about", map[string]any{"title": "x"})
	c.Assert(err, qt.IsNil)

	b.Close()
	c.Assert(b.Closed(), qt.IsTrue)

	_, err = b.Post("tally", map[string]any{"A": 1})
	c.Assert(err, qt.ErrorMatches, ".*sbb closed.*")
}

func TestLoadAllRebuildsMirror(t *testing.T) {
	c := qt.New(t)

	dbPath := filepath.Join(t.TempDir(), "sbb-db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	defer database.Close()

	b := New(database)
	_, err = b.Post("about", map[string]any{"title": "x"})
	c.Assert(err, qt.IsNil)
	_, err = b.Post("tally", map[string]any{"A": 3, "B": 1})
	c.Assert(err, qt.IsNil)

	reloaded, err := LoadAll(database)
	c.Assert(err, qt.IsNil)
	all := reloaded.ReadAll()
	c.Assert(all, qt.HasLen, 2)
	c.Assert(all[1].Label, qt.Equals, "tally")

	// new posts after reload continue the sequence.
	e, err := reloaded.Post("close", map[string]any{})
	c.Assert(err, qt.IsNil)
	c.Assert(e.Seq, qt.Equals, uint64(2))
}

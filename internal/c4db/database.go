// Package c4db is the database façade: it owns one index file and one
// table file per named database and exposes Create/Open/Close/Put/Get,
// composing internal/nodestore, internal/rowstore, internal/bptree and
// internal/board.
package c4db

import (
	"fmt"

	"github.com/ericherman/c4db/internal/bnode"
	"github.com/ericherman/c4db/internal/board"
	"github.com/ericherman/c4db/internal/bptree"
	"github.com/ericherman/c4db/internal/diag"
	"github.com/ericherman/c4db/internal/nodestore"
	"github.com/ericherman/c4db/internal/rowstore"
)

// Outcome mirrors bptree.Outcome at the façade's boundary.
type Outcome = bptree.Outcome

const (
	Inserted = bptree.Inserted
	Updated  = bptree.Updated
)

// DB is one open c4db database: an index file and a table file, plus the
// diagnostic counters accumulated over its lifetime.
type DB struct {
	ns       *nodestore.Store
	rows     *rowstore.Store
	counters diag.Counters
}

func indexPath(name string) string { return name + ".c4_index" }
func tablePath(name string) string { return name + ".c4_table" }

// Create bootstraps a brand-new database at name: an empty index file
// with node_count=1 holding a fresh root leaf, and an empty table file.
func Create(name string) (*DB, error) {
	db := &DB{}
	ns, err := nodestore.Create(indexPath(name), &db.counters)
	if err != nil {
		return nil, err
	}
	db.ns = ns

	rootID := ns.Allocate()
	root := bnode.NewLeaf(rootID)
	if err := ns.Store(root); err != nil {
		ns.Close()
		return nil, fmt.Errorf("c4db: persist initial root: %w", err)
	}
	if err := ns.Release(root); err != nil {
		ns.Close()
		return nil, err
	}
	ns.SetRootNodeID(rootID)
	if err := ns.HeaderWrite(); err != nil {
		ns.Close()
		return nil, err
	}

	rows, err := rowstore.Open(tablePath(name), board.BoardSerializationNumBytes)
	if err != nil {
		ns.Close()
		return nil, err
	}
	db.rows = rows
	return db, nil
}

// Open resumes an existing database by name; both files stay open for the
// database's lifetime.
func Open(name string) (*DB, error) {
	db := &DB{}
	ns, err := nodestore.Open(indexPath(name), &db.counters)
	if err != nil {
		return nil, err
	}
	db.ns = ns

	rows, err := rowstore.Open(tablePath(name), board.BoardSerializationNumBytes)
	if err != nil {
		ns.Close()
		return nil, err
	}
	db.rows = rows
	return db, nil
}

// Close flushes the header and closes both underlying files. The caller
// is expected to have drained every outstanding node handle first; a
// non-balanced counters set at this point indicates a release bug
// upstream, not something Close can repair.
func (db *DB) Close() error {
	if !db.counters.Balanced() {
		return fmt.Errorf("c4db: close with unbalanced node handles: %+v", db.counters)
	}
	if err := db.rows.Close(); err != nil {
		db.ns.Close()
		return err
	}
	return db.ns.Close()
}

// Put inserts or updates the board snapshot b: the key is encode(b); a
// genuine insert appends b's serialized bytes as a new row and advances
// table_row_count, matching the row index used as the leaf's stored
// value. A duplicate key reports Updated and leaves the table file
// untouched.
func (db *DB) Put(b *board.Board) (Outcome, error) {
	key := board.Encode(b)
	row := bnode.RowIndex(db.ns.RowCount())

	root, err := bptree.RediscoverRoot(db.ns)
	if err != nil {
		return 0, err
	}

	outcome, err := bptree.Put(db.ns, root, key, row, &db.counters)
	if err != nil {
		return 0, err
	}
	if _, err := bptree.RediscoverRoot(db.ns); err != nil {
		return 0, err
	}

	if outcome == Inserted {
		if err := db.rows.Append(row, b.Serialize()); err != nil {
			return 0, err
		}
		db.ns.IncrementRowCount()
		if err := db.ns.HeaderWrite(); err != nil {
			return 0, err
		}
	}
	return outcome, nil
}

// Get looks up the board snapshot previously stored for b's encoding and
// returns it deserialized, or found=false if it was never inserted.
func (db *DB) Get(b *board.Board) (*board.Board, bool, error) {
	key := board.Encode(b)
	root, err := bptree.RediscoverRoot(db.ns)
	if err != nil {
		return nil, false, err
	}

	row, found, err := bptree.Get(db.ns, root, key)
	if err != nil || !found {
		return nil, found, err
	}

	buf, err := db.rows.Fetch(row)
	if err != nil {
		return nil, false, err
	}
	got, err := board.Deserialize(buf)
	if err != nil {
		return nil, false, err
	}
	return got, true, nil
}

// Check runs the whole-tree correctness audit over the current root.
func (db *DB) Check() error {
	root, err := bptree.RediscoverRoot(db.ns)
	if err != nil {
		return err
	}
	return bptree.Check(db.ns, root)
}

// Counters returns a snapshot of the diagnostic counters accumulated over
// this database's lifetime.
func (db *DB) Counters() diag.Counters { return db.counters }

// RowCount reports how many distinct boards are currently stored.
func (db *DB) RowCount() uint64 { return db.ns.RowCount() }

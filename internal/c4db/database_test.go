package c4db

import (
	"path/filepath"
	"testing"

	"github.com/ericherman/c4db/internal/board"
)

func dropSeq(t *testing.T, seq []int) *board.Board {
	t.Helper()
	b := board.New()
	var err error
	for _, col := range seq {
		b, err = board.Drop(b, col-1)
		if err != nil {
			t.Fatalf("Drop(%d): %v", col, err)
		}
	}
	return b
}

func TestCreatePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "game")

	db, err := Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := dropSeq(t, []int{4})
	outcome, err := db.Put(b)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if outcome != Inserted {
		t.Fatalf("outcome = %v, want Inserted", outcome)
	}

	got, found, err := db.Get(b)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("Get reported not found")
	}
	if got.At(3, 0) != board.Red {
		t.Fatalf("round-tripped board mismatch: At(3,0) = %v, want Red", got.At(3, 0))
	}

	if err := db.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestScriptedDupeSequenceMatchesRowCountInvariant(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "dupes")

	db, err := Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	drops := []int{3, 4, 1, 2, 5, 1, 4, 6, 3, 4}
	cur := board.New()
	for _, col := range drops {
		cur, err = board.Drop(cur, col-1)
		if err != nil {
			t.Fatalf("Drop(%d): %v", col, err)
		}
		if _, err := db.Put(cur); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if db.RowCount() != 10 {
		t.Fatalf("RowCount = %d, want 10 (all distinct boards)", db.RowCount())
	}

	// Rerunning the identical sequence yields no new rows and every
	// step reports Updated (spec scenario S4).
	cur2 := board.New()
	for _, col := range drops {
		cur2, err = board.Drop(cur2, col-1)
		if err != nil {
			t.Fatalf("Drop(%d): %v", col, err)
		}
		outcome, err := db.Put(cur2)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if outcome != Updated {
			t.Fatalf("rerun step col %d: outcome = %v, want Updated", col, outcome)
		}
	}
	if db.RowCount() != 10 {
		t.Fatalf("RowCount after rerun = %d, want still 10", db.RowCount())
	}
}

func TestGetMissingReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	db, err := Create(filepath.Join(dir, "empty"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	_, found, err := db.Get(board.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("Get on never-inserted board reported found")
	}
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "resume")

	db, err := Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b := dropSeq(t, []int{2, 2, 3})
	if _, err := db.Put(b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db2.Close()

	got, found, err := db2.Get(b)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !found {
		t.Fatalf("Get after reopen reported not found")
	}
	if got.Height(1) != 2 || got.Height(2) != 1 {
		t.Fatalf("reopened board heights mismatch: col1=%d col2=%d", got.Height(1), got.Height(2))
	}
}

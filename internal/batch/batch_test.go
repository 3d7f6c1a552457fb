package batch

import (
	"path/filepath"
	"testing"

	"github.com/ericherman/c4db/internal/auditlog"
	"github.com/ericherman/c4db/internal/board"
	"github.com/ericherman/c4db/internal/c4db"
)

func newDB(t *testing.T) *c4db.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := c4db.Create(filepath.Join(dir, "game"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCommitAppliesStagedPutsInOrder(t *testing.T) {
	db := newDB(t)
	mgr := NewManager(db, nil)

	b := mgr.Begin()
	b1, _ := board.Drop(board.New(), 0)
	b2, _ := board.Drop(b1, 1)
	if err := b.Stage(b1); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := b.Stage(b2); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if b.Staged() != 2 {
		t.Fatalf("Staged() = %d, want 2", b.Staged())
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if db.RowCount() != 2 {
		t.Fatalf("RowCount = %d, want 2", db.RowCount())
	}
	if _, found, _ := db.Get(b2); !found {
		t.Fatalf("committed board not found after Commit")
	}
}

func TestRollbackDiscardsStagedPuts(t *testing.T) {
	db := newDB(t)
	mgr := NewManager(db, nil)

	b := mgr.Begin()
	dropped, _ := board.Drop(board.New(), 2)
	if err := b.Stage(dropped); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := b.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if db.RowCount() != 0 {
		t.Fatalf("RowCount = %d, want 0 after rollback", db.RowCount())
	}
	if err := b.Stage(dropped); err == nil {
		t.Fatalf("expected error staging into a rolled-back batch")
	}
}

func TestCommitRecordsAuditEntries(t *testing.T) {
	db := newDB(t)
	dir := t.TempDir()
	log, err := auditlog.Open(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("auditlog.Open: %v", err)
	}
	defer log.Close()

	mgr := NewManager(db, log)
	b := mgr.Begin()
	dropped, _ := board.Drop(board.New(), 5)
	b.Stage(dropped)
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err := auditlog.ReadAll(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Type != auditlog.EntryInserted {
		t.Fatalf("entries[0].Type = %v, want EntryInserted", entries[0].Type)
	}
}

func TestDoubleCommitRejected(t *testing.T) {
	db := newDB(t)
	mgr := NewManager(db, nil)
	b := mgr.Begin()
	if err := b.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := b.Commit(); err == nil {
		t.Fatalf("expected error on second Commit")
	}
}

package auditlog

import (
	"path/filepath"
	"testing"
)

func TestRecordAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := l.Record(EntryInserted, 100); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(EntryUpdated, 100); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Type != EntryInserted || entries[0].Key != 100 {
		t.Fatalf("entries[0] = %+v, want Inserted/100", entries[0])
	}
	if entries[1].Type != EntryUpdated || entries[1].Key != 100 {
		t.Fatalf("entries[1] = %+v, want Updated/100", entries[1])
	}
}

func TestReadAllMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	entries, err := ReadAll(filepath.Join(dir, "nope.log"))
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if entries != nil {
		t.Fatalf("entries = %v, want nil", entries)
	}
}

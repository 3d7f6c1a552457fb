// Package rowstore owns the table file: a flat array of fixed-width rows,
// appended once and never rewritten.
package rowstore

import (
	"fmt"
	"os"

	"github.com/ericherman/c4db/internal/bnode"
)

// Store is a flat array of fixed RowWidth-byte rows backed by a single
// file handle.
type Store struct {
	f        *os.File
	rowWidth int
}

// Open opens (creating if necessary) the table file at path for rows of
// the given fixed width.
func Open(path string, rowWidth int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rowstore: open %s: %w", path, err)
	}
	return &Store{f: f, rowWidth: rowWidth}, nil
}

// Close closes the underlying file handle.
func (s *Store) Close() error { return s.f.Close() }

// Append writes row (which must be exactly rowWidth bytes) at the offset
// implied by rowIndex and returns that index unchanged for convenience.
func (s *Store) Append(rowIndex bnode.RowIndex, row []byte) error {
	if len(row) != s.rowWidth {
		return fmt.Errorf("rowstore: row is %d bytes, want %d", len(row), s.rowWidth)
	}
	off := int64(rowIndex) * int64(s.rowWidth)
	if _, err := s.f.WriteAt(row, off); err != nil {
		return fmt.Errorf("rowstore: append row %d: %w", rowIndex, err)
	}
	return nil
}

// Fetch reads the row at rowIndex.
func (s *Store) Fetch(rowIndex bnode.RowIndex) ([]byte, error) {
	buf := make([]byte, s.rowWidth)
	off := int64(rowIndex) * int64(s.rowWidth)
	if _, err := s.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("rowstore: fetch row %d: %w", rowIndex, err)
	}
	return buf, nil
}

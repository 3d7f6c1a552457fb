// Package nodestore owns the index file: a fixed-size header followed by
// fixed-size node slots, addressed by a monotonically assigned NodeId.
package nodestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/ericherman/c4db/internal/bnode"
	"github.com/ericherman/c4db/internal/diag"
)

// headerMagic and headerVersion let a corrupt or foreign file be rejected
// up front rather than silently misparsed.
const (
	headerMagic   uint32 = 0x43345442 // "C4TB"
	headerVersion uint16 = 1
	// HeaderSize is the fixed byte width of the index file's header record:
	// magic(4) + version(2) + pad(2) + node_count(8) + table_row_count(8) + root_node_id(8).
	HeaderSize = 4 + 2 + 2 + 8 + 8 + 8
)

// ErrCorruptHeader is returned when the index file's header fails its
// magic-number check.
var ErrCorruptHeader = errors.New("nodestore: corrupt or foreign header")

// Header is the fixed record at offset 0 of the index file.
type Header struct {
	NodeCount     uint64
	TableRowCount uint64
	RootNodeID    bnode.ID
}

// Store owns the index file: header plus the fixed-size node slots that
// follow it.
type Store struct {
	f        *os.File
	header   Header
	counters *diag.Counters
}

// Create bootstraps a brand-new index file with an empty header
// (node_count=0; the caller is expected to allocate the first root leaf
// immediately afterward).
func Create(path string, counters *diag.Counters) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("nodestore: create %s: %w", path, err)
	}
	s := &Store{f: f, counters: counters}
	if err := s.HeaderWrite(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Open resumes an existing index file, reading its header.
func Open(path string, counters *diag.Counters) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("nodestore: open %s: %w", path, err)
	}
	s := &Store{f: f, counters: counters}
	if err := s.HeaderRead(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes the header and closes the underlying file handle. Callers
// are expected to have already verified counters.Balanced() (the database
// façade does this before calling Close).
func (s *Store) Close() error {
	if err := s.HeaderWrite(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// Header returns a copy of the in-memory header.
func (s *Store) Header() Header { return s.header }

// SetRootNodeID updates the cached root pointer. The caller is responsible
// for calling HeaderWrite to persist it; root promotion writes the header
// synchronously when the root changes.
func (s *Store) SetRootNodeID(id bnode.ID) { s.header.RootNodeID = id }

// IncrementRowCount advances table_row_count by one, mirroring a row
// appended to the row store.
func (s *Store) IncrementRowCount() { s.header.TableRowCount++ }

// RowCount returns the current table_row_count.
func (s *Store) RowCount() uint64 { return s.header.TableRowCount }

// Allocate assigns a fresh NodeId by incrementing node_count. Id 0 is
// never allocated. The counters' Creates field advances; the caller must
// Store the node before any other operation observes it.
func (s *Store) Allocate() bnode.ID {
	s.header.NodeCount++
	s.counters.Creates++
	return bnode.ID(s.header.NodeCount)
}

func (s *Store) offsetFor(id bnode.ID) (int64, error) {
	if id == bnode.NoID {
		return 0, errors.New("nodestore: id 0 is never stored or loaded")
	}
	return int64(HeaderSize) + int64(id-1)*int64(bnode.Size), nil
}

// Store writes node's fixed-size record to its slot.
func (s *Store) Store(n *bnode.Node) error {
	off, err := s.offsetFor(n.ID)
	if err != nil {
		return err
	}
	if _, err := s.f.WriteAt(n.Encode(), off); err != nil {
		return fmt.Errorf("nodestore: write node %d: %w", n.ID, err)
	}
	return nil
}

// Load reads the node at id into a fresh in-memory handle.
func (s *Store) Load(id bnode.ID) (*bnode.Node, error) {
	off, err := s.offsetFor(id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, bnode.Size)
	if _, err := s.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("nodestore: read node %d: %w", id, err)
	}
	n, err := bnode.Decode(buf)
	if err != nil {
		return nil, err
	}
	s.counters.Loads++
	return n, nil
}

// Release drops an in-memory node handle. Releasing a handle whose id is 0
// is a programming error.
func (s *Store) Release(n *bnode.Node) error {
	if n == nil || n.ID == bnode.NoID {
		return errors.New("nodestore: release of id-0 handle is a programming error")
	}
	s.counters.Frees++
	return nil
}

// HeaderWrite serializes the header fields at offset 0.
func (s *Store) HeaderWrite() error {
	buf := make([]byte, HeaderSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], headerMagic)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], headerVersion)
	off += 2
	off += 2 // reserved padding
	binary.LittleEndian.PutUint64(buf[off:], s.header.NodeCount)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.header.TableRowCount)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(s.header.RootNodeID))
	if _, err := s.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("nodestore: write header: %w", err)
	}
	return nil
}

// HeaderRead parses the header at offset 0.
func (s *Store) HeaderRead() error {
	buf := make([]byte, HeaderSize)
	if _, err := s.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("nodestore: read header: %w", err)
	}
	off := 0
	magic := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	_ = binary.LittleEndian.Uint16(buf[off:]) // version, unused for now
	off += 2
	off += 2
	if magic != headerMagic {
		return ErrCorruptHeader
	}
	s.header.NodeCount = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.header.TableRowCount = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.header.RootNodeID = bnode.ID(binary.LittleEndian.Uint64(buf[off:]))
	return nil
}

// Package auditlog is an append-only diagnostic record of Put calls
// against a database. Nothing here is ever replayed on Open — the index
// and table files are always the sole source of truth; this log exists
// purely so an operator can answer "what keys were written and when"
// after the fact.
package auditlog

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EntryType distinguishes the two outcomes a Put call can report.
type EntryType uint8

const (
	EntryInserted EntryType = iota + 1
	EntryUpdated
)

// Entry is one logged Put call.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	Key       uint64    `json:"key"`
}

// Log appends length-prefixed JSON entries to a single file, fsyncing
// after every write so the log always reflects exactly the Put calls
// that have returned.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens (creating if necessary) the audit log file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	return &Log{path: path, f: f}, nil
}

// Close closes the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Record appends one entry for the given key and outcome type.
func (l *Log) Record(entryType EntryType, key uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{Timestamp: time.Now(), Type: entryType, Key: key}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("auditlog: marshal entry: %w", err)
	}
	if err := binary.Write(l.f, binary.LittleEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("auditlog: write entry length: %w", err)
	}
	if _, err := l.f.Write(data); err != nil {
		return fmt.Errorf("auditlog: write entry: %w", err)
	}
	return l.f.Sync()
}

// ReadAll reads every entry currently in the log at path, for operator
// inspection only — this is never called on the write path, and no code
// here ever replays an entry back into a database.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var entries []Entry
	for {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			break
		}
		buf := make([]byte, length)
		if _, err := r.Read(buf); err != nil {
			return entries, fmt.Errorf("auditlog: read entry body: %w", err)
		}
		var e Entry
		if err := json.Unmarshal(buf, &e); err != nil {
			return entries, fmt.Errorf("auditlog: unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Package batch lets a caller stage a sequence of board drops and commit
// them as one logical unit. It adds no atomicity or isolation guarantee
// beyond the engine's own single-writer model — Commit simply replays
// the staged Put calls in order and Rollback discards them unapplied.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/ericherman/c4db/internal/auditlog"
	"github.com/ericherman/c4db/internal/board"
	"github.com/ericherman/c4db/internal/c4db"
)

// State tracks a Batch's lifecycle.
type State int

const (
	Active State = iota
	Committed
	RolledBack
)

// Batch is a staged sequence of board drops against one database.
type Batch struct {
	ID        string
	State     State
	StartTime time.Time
	EndTime   time.Time

	mu     sync.Mutex
	boards []*board.Board
	db     *c4db.DB
	log    *auditlog.Log // optional; nil means no audit entries are recorded
}

// Manager issues and tracks batches against a single database.
type Manager struct {
	mu      sync.Mutex
	db      *c4db.DB
	log     *auditlog.Log
	nextID  int64
	batches map[string]*Batch
}

// NewManager returns a Manager staging batches against db, optionally
// recording one audit-log entry per committed put.
func NewManager(db *c4db.DB, log *auditlog.Log) *Manager {
	return &Manager{db: db, log: log, nextID: 1, batches: make(map[string]*Batch)}
}

// Begin opens a new Active batch.
func (m *Manager) Begin() *Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("batch-%d", m.nextID)
	m.nextID++
	b := &Batch{ID: id, State: Active, StartTime: time.Now(), db: m.db, log: m.log}
	m.batches[id] = b
	return b
}

// Stage records a board to be put when the batch commits. It is an error
// to stage into a batch that is no longer Active.
func (b *Batch) Stage(snapshot *board.Board) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State != Active {
		return fmt.Errorf("batch: %s is not active (state %d)", b.ID, b.State)
	}
	b.boards = append(b.boards, snapshot)
	return nil
}

// Commit applies every staged board in order via the underlying
// database's Put, recording one audit-log entry per put when a log was
// configured. Commit stops at the first error, leaving already-applied
// puts in place — there is no rollback of partial application, matching
// the package's no-atomicity contract.
func (b *Batch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State != Active {
		return fmt.Errorf("batch: %s is not active (state %d)", b.ID, b.State)
	}

	for _, snapshot := range b.boards {
		outcome, err := b.db.Put(snapshot)
		if err != nil {
			return fmt.Errorf("batch: %s: commit stopped: %w", b.ID, err)
		}
		if b.log != nil {
			entryType := auditlog.EntryUpdated
			if outcome == c4db.Inserted {
				entryType = auditlog.EntryInserted
			}
			if err := b.log.Record(entryType, board.Encode(snapshot)); err != nil {
				return fmt.Errorf("batch: %s: audit log: %w", b.ID, err)
			}
		}
	}

	b.State = Committed
	b.EndTime = time.Now()
	return nil
}

// Rollback discards every staged board without applying it.
func (b *Batch) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State != Active {
		return fmt.Errorf("batch: %s is not active (state %d)", b.ID, b.State)
	}
	b.boards = nil
	b.State = RolledBack
	b.EndTime = time.Now()
	return nil
}

// Staged reports how many boards are currently queued.
func (b *Batch) Staged() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.boards)
}

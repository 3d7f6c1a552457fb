// cmd/c4db/main.go is the CLI driver: one positional argument
// "c1,c2,..." runs a deterministic scripted insertion against a fresh
// database; no arguments runs the built-in duplicate-rejection test.
// Exit code is 0 on success, non-zero on any assertion failure.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ericherman/c4db/internal/board"
	"github.com/ericherman/c4db/internal/c4db"
)

func main() {
	dbName := flag.String("db", "", "database name (file prefix); a temp dir is used if empty")
	flag.Parse()

	name := *dbName
	if name == "" {
		dir, err := os.MkdirTemp("", "c4db-cli-")
		if err != nil {
			log.Fatalf("failed to create scratch directory: %v", err)
		}
		name = dir + "/game"
	}

	db, err := c4db.Create(name)
	if err != nil {
		log.Fatalf("failed to create database %s: %v", name, err)
	}
	defer db.Close()

	args := flag.Args()
	switch len(args) {
	case 0:
		if err := runDupeTest(db); err != nil {
			log.Fatalf("duplicate-rejection test failed: %v", err)
		}
		fmt.Println("OK: duplicate-rejection test passed")
	case 1:
		if err := runScriptedSequence(db, args[0]); err != nil {
			log.Fatalf("scripted sequence failed: %v", err)
		}
		fmt.Println("OK: scripted sequence applied")
	default:
		log.Fatalf("usage: c4db [\"c1,c2,...\"]")
	}
}

// runScriptedSequence parses a comma-separated column list and applies it
// as one drop sequence, putting every intermediate board into db.
func runScriptedSequence(db *c4db.DB, csv string) error {
	b := board.New()
	for _, tok := range strings.Split(csv, ",") {
		col, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return fmt.Errorf("invalid column %q: %w", tok, err)
		}
		var dropErr error
		b, dropErr = board.Drop(b, col-1)
		if dropErr != nil {
			return dropErr
		}
		if _, err := db.Put(b); err != nil {
			return err
		}
	}
	return db.Check()
}

// runDupeTest drops the scripted sequence {3,4,1,2,5,1,4,6,3,4}
// (1-indexed columns) into a fresh database twice. Every board in the
// sequence is indexed for the first time on the first pass, so every Put
// there must report Inserted. Replaying the identical sequence a second
// pass reaches the exact same boards in the exact same order, so every
// Put there must report Updated and the row count must not move —
// that is the actual duplicate-rejection behavior this test exists to
// exercise.
func runDupeTest(db *c4db.DB) error {
	drops := []int{3, 4, 1, 2, 5, 1, 4, 6, 3, 4}

	boards, err := playSequence(drops)
	if err != nil {
		return err
	}

	for pass, wantOutcome := range []c4db.Outcome{c4db.Inserted, c4db.Updated} {
		for i, b := range boards {
			outcome, err := db.Put(b)
			if err != nil {
				return fmt.Errorf("pass %d, put at step %d: %w", pass, i, err)
			}
			if outcome != wantOutcome {
				return fmt.Errorf("pass %d, step %d: expected %v, got %v", pass, i, wantOutcome, outcome)
			}

			got, found, err := db.Get(b)
			if err != nil {
				return fmt.Errorf("pass %d, get at step %d: %w", pass, i, err)
			}
			if !found {
				return fmt.Errorf("pass %d, step %d: board not found immediately after put", pass, i)
			}
			if board.Encode(got) != board.Encode(b) {
				return fmt.Errorf("pass %d, step %d: round-tripped board encodes to a different key", pass, i)
			}
		}
	}

	distinct := make(map[uint64]bool)
	for _, b := range boards {
		distinct[board.Encode(b)] = true
	}
	if db.RowCount() != uint64(len(distinct)) {
		return fmt.Errorf("table_row_count = %d, want %d distinct boards", db.RowCount(), len(distinct))
	}
	return db.Check()
}

// playSequence drops each 1-indexed column in order against a single
// board, returning the board snapshot produced after every drop.
func playSequence(drops []int) ([]*board.Board, error) {
	boards := make([]*board.Board, 0, len(drops))
	cur := board.New()
	for i, col := range drops {
		next, err := board.Drop(cur, col-1)
		if err != nil {
			return nil, fmt.Errorf("illegal drop in column %d at step %d: %w", col, i, err)
		}
		cur = next
		boards = append(boards, cur)
	}
	return boards, nil
}

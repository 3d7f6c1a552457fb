// cmd/c4server/main.go
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ericherman/c4db/internal/auditlog"
	"github.com/ericherman/c4db/internal/auth"
	"github.com/ericherman/c4db/internal/board"
	"github.com/ericherman/c4db/internal/c4db"
	"github.com/ericherman/c4db/internal/diag"
)

const serverVersion = "v0.1.0"

// guardedDB serializes every call into the database behind one mutex so
// that concurrent connections never run two public operations against
// the same index/table files at once.
type guardedDB struct {
	mu sync.Mutex
	db *c4db.DB
}

func (g *guardedDB) Put(b *board.Board) (c4db.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Put(b)
}

func (g *guardedDB) Get(b *board.Board) (*board.Board, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Get(b)
}

func (g *guardedDB) Counters() diag.Counters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Counters()
}

func (g *guardedDB) RowCount() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.RowCount()
}

func (g *guardedDB) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Close()
}

func main() {
	dbName := flag.String("db", "./c4db-data/game", "database name (file prefix for <name>.c4_index/.c4_table)")
	enableTLS := flag.Bool("tls", false, "enable TLS encryption")
	port := flag.String("port", "54321", "port to listen on")
	auditPath := flag.String("audit-log", "", "path to an audit log file; empty disables audit logging")
	flag.Parse()

	rawDB, err := c4db.Open(*dbName)
	if err != nil {
		rawDB, err = c4db.Create(*dbName)
		if err != nil {
			log.Fatalf("failed to open or create database %s: %v", *dbName, err)
		}
	}
	db := &guardedDB{db: rawDB}
	defer db.Close()

	var audit *auditlog.Log
	if *auditPath != "" {
		audit, err = auditlog.Open(*auditPath)
		if err != nil {
			log.Fatalf("failed to open audit log %s: %v", *auditPath, err)
		}
		defer audit.Close()
	}

	gate := auth.NewGate()
	if gate.IsDefaultPassword() {
		log.Printf("using default admin credential %s/%s — change it with CHPASS after logging in", auth.DefaultUsername, auth.DefaultPassword)
	}

	var listener net.Listener
	if *enableTLS {
		tlsManager := auth.NewTLSManager(".")
		if !tlsManager.IsTLSEnabled() {
			log.Fatalf("TLS requested but could not be configured")
		}
		tcpListener, err := net.Listen("tcp", ":"+*port)
		if err != nil {
			log.Fatalf("failed to listen on port %s: %v", *port, err)
		}
		listener = tls.NewListener(tcpListener, tlsManager.GetTLSConfig())
		log.Printf("🚀 c4server started on port %s with TLS (db: %s)", *port, *dbName)
	} else {
		listener, err = net.Listen("tcp", ":"+*port)
		if err != nil {
			log.Fatalf("failed to listen on port %s: %v", *port, err)
		}
		log.Printf("🚀 c4server started on port %s (db: %s)", *port, *dbName)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("error accepting connection: %v", err)
			continue
		}
		go handleConnection(conn, db, gate, audit)
	}
}

func handleConnection(conn net.Conn, db *guardedDB, gate *auth.Gate, audit *auditlog.Log) {
	defer conn.Close()

	fmt.Fprintf(conn, "\nWelcome to c4db %s 🔴🟡\n", serverVersion)
	conn.Write([]byte("Authentication required: LOGIN <user> <pass>\n\n"))

	authenticated := false
	scanner := bufio.NewScanner(conn)
	for {
		conn.Write([]byte("c4db> \n"))
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" {
			conn.Write([]byte("Goodbye 👋\n"))
			return
		}

		result := dispatch(input, db, gate, audit, &authenticated)
		if !strings.HasSuffix(result, "\n") {
			result += "\n"
		}
		conn.Write([]byte(result))
	}
}

func dispatch(input string, db *guardedDB, gate *auth.Gate, audit *auditlog.Log, authenticated *bool) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "ERR empty command"
	}
	cmd := strings.ToUpper(fields[0])

	if cmd == "LOGIN" {
		if len(fields) != 3 {
			return "ERR usage: LOGIN <user> <pass>"
		}
		if _, err := gate.Authenticate(fields[1], fields[2]); err != nil {
			return "ERR " + err.Error()
		}
		*authenticated = true
		return "OK logged in"
	}

	if !*authenticated {
		return "ERR login required"
	}

	switch cmd {
	case "PUT":
		if len(fields) != 2 {
			return "ERR usage: PUT <col,col,...>"
		}
		b, err := boardFromCSV(fields[1])
		if err != nil {
			return "ERR " + err.Error()
		}
		outcome, err := db.Put(b)
		if err != nil {
			return "ERR " + err.Error()
		}
		if audit != nil {
			entryType := auditlog.EntryUpdated
			if outcome == c4db.Inserted {
				entryType = auditlog.EntryInserted
			}
			audit.Record(entryType, board.Encode(b))
		}
		if outcome == c4db.Inserted {
			return fmt.Sprintf("OK inserted key=%d", board.Encode(b))
		}
		return fmt.Sprintf("OK updated key=%d", board.Encode(b))

	case "GET":
		if len(fields) != 2 {
			return "ERR usage: GET <col,col,...>"
		}
		b, err := boardFromCSV(fields[1])
		if err != nil {
			return "ERR " + err.Error()
		}
		got, found, err := db.Get(b)
		if err != nil {
			return "ERR " + err.Error()
		}
		if !found {
			return "MISS"
		}
		return "FOUND\n" + board.Render(got, "board")

	case "STATS":
		c := db.Counters()
		return fmt.Sprintf("rows=%d creates=%d loads=%d frees=%d splits=%d inserts=%d updates=%d",
			db.RowCount(), c.Creates, c.Loads, c.Frees, c.Splits, c.KeyInserts, c.KeyUpdates)

	case "CHPASS":
		if len(fields) != 2 {
			return "ERR usage: CHPASS <new-password>"
		}
		gate.ChangePassword(fields[1])
		return "OK password changed"

	default:
		return "ERR unknown command: " + cmd
	}
}

func boardFromCSV(csv string) (*board.Board, error) {
	b := board.New()
	for _, tok := range strings.Split(csv, ",") {
		col, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("invalid column %q: %w", tok, err)
		}
		b, err = board.Drop(b, col-1)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

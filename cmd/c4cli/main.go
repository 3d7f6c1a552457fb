// cmd/c4cli/main.go is a REPL client for cmd/c4server's line protocol.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

const prompt = "c4db> "

func main() {
	port := flag.String("port", "54321", "port to connect to")
	host := flag.String("host", "localhost", "host to connect to")
	flag.Parse()

	conn, err := net.Dial("tcp", *host+":"+*port)
	if err != nil {
		fmt.Println("❌ failed to connect:", err)
		return
	}
	defer conn.Close()
	server := bufio.NewReader(conn)

	if err := drainUntilPrompt(server, true); err != nil {
		fmt.Println("❌ connection closed")
		return
	}
	fmt.Println("\n💡 Commands: LOGIN <user> <pass> | PUT <col,col,...> | GET <col,col,...> | STATS | CHPASS <new> | exit")

	line, historyFile := newLineEditor()
	defer line.Close()

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fmt.Fprintln(conn, input)
		if input == "exit" {
			break
		}
		if err := drainUntilPrompt(server, false); err != nil {
			fmt.Println("❌ connection closed")
			break
		}
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

// drainUntilPrompt copies lines from server to stdout up to and
// including the line carrying the prompt, which it swallows rather than
// prints. Used both for the initial connection banner and for every
// command's response.
func drainUntilPrompt(server *bufio.Reader, echoPrompt bool) error {
	for {
		line, err := server.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, prompt) {
			if echoPrompt {
				fmt.Print(line)
			}
			return nil
		}
		fmt.Print(line)
	}
}

func newLineEditor() (*liner.State, string) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".c4db_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return line, historyFile
}
